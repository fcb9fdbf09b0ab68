package validation

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupApp(cfg Config) *fiber.App {
	app := fiber.New()
	app.Use(Middleware(cfg))
	app.Post("/api/v1/ask", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})
	app.Post("/api/v1/documents", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})
	return app
}

func postJSON(t *testing.T, app *fiber.App, path, body string) int {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.StatusCode
}

func TestValidQuestionPasses(t *testing.T) {
	app := setupApp(Config{Logger: zap.NewNop()})
	code := postJSON(t, app, "/api/v1/ask", `{"question":"how do i enable versioning"}`)
	assert.Equal(t, fiber.StatusOK, code)
}

func TestMissingQuestionRejected(t *testing.T) {
	app := setupApp(Config{Logger: zap.NewNop()})
	assert.Equal(t, fiber.StatusBadRequest, postJSON(t, app, "/api/v1/ask", `{}`))
	assert.Equal(t, fiber.StatusBadRequest, postJSON(t, app, "/api/v1/ask", `{"question":"   "}`))
	assert.Equal(t, fiber.StatusBadRequest, postJSON(t, app, "/api/v1/ask", `not json`))
}

func TestOversizedQuestionRejected(t *testing.T) {
	app := setupApp(Config{MaxQuestionLength: 20, Logger: zap.NewNop()})
	code := postJSON(t, app, "/api/v1/ask", `{"question":"`+strings.Repeat("a", 50)+`"}`)
	assert.Equal(t, fiber.StatusBadRequest, code)
}

func TestScriptInjectionRejected(t *testing.T) {
	app := setupApp(Config{Logger: zap.NewNop()})
	code := postJSON(t, app, "/api/v1/ask", `{"question":"<script>alert(1)</script>"}`)
	assert.Equal(t, fiber.StatusBadRequest, code)
}

func TestUnsupportedContentType(t *testing.T) {
	app := setupApp(Config{Logger: zap.NewNop()})
	req := httptest.NewRequest("POST", "/api/v1/ask", strings.NewReader("question=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestDocumentFilenameValidation(t *testing.T) {
	app := setupApp(Config{Logger: zap.NewNop()})
	assert.Equal(t, fiber.StatusOK, postJSON(t, app, "/api/v1/documents", `{"filename":"guide.txt","content":"hello"}`))
	assert.Equal(t, fiber.StatusBadRequest, postJSON(t, app, "/api/v1/documents", `{"filename":"../etc/passwd","content":"x"}`))
	assert.Equal(t, fiber.StatusBadRequest, postJSON(t, app, "/api/v1/documents", `{"content":"x"}`))
}

func TestDocumentSizeLimit(t *testing.T) {
	app := setupApp(Config{MaxDocumentSize: 10, Logger: zap.NewNop()})
	code := postJSON(t, app, "/api/v1/documents", `{"filename":"a.txt","content":"`+strings.Repeat("b", 50)+`"}`)
	assert.Equal(t, fiber.StatusRequestEntityTooLarge, code)
}
