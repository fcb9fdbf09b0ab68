package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s3ai/backend/internal/pipeline"
	"github.com/s3ai/backend/internal/storage/models"
)

type stubResolver struct {
	result *pipeline.Result
	err    error
	asked  string
}

func (s *stubResolver) Resolve(_ context.Context, question string, _ bool) (*pipeline.Result, error) {
	s.asked = question
	return s.result, s.err
}

type stubHistory struct {
	records []models.QueryRecord
}

func (s *stubHistory) ListRecentQueries(context.Context, int) ([]models.QueryRecord, error) {
	return s.records, nil
}

func setupAskApp(resolver Resolver) *fiber.App {
	app := fiber.New()
	h := NewQueryHandler(resolver, &stubHistory{})
	app.Post("/api/v1/ask", h.HandleAsk)
	return app
}

func TestHandleAsk(t *testing.T) {
	resolver := &stubResolver{result: &pipeline.Result{
		ID:           "abc",
		Answer:       "Enable versioning in bucket settings.",
		Source:       pipeline.SourceVector,
		ResponseTime: 0.42,
	}}
	app := setupAskApp(resolver)

	req := httptest.NewRequest("POST", "/api/v1/ask", strings.NewReader(`{"question":"how do i enable versioning","ai_format":true}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Enable versioning in bucket settings.", body["answer"])
	assert.Equal(t, "vector", body["source"])
	assert.Equal(t, "how do i enable versioning", resolver.asked)
}

func TestHandleAskInvalidQuery(t *testing.T) {
	resolver := &stubResolver{err: pipeline.ErrInvalidQuery}
	app := setupAskApp(resolver)

	req := httptest.NewRequest("POST", "/api/v1/ask", strings.NewReader(`{"question":""}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestHandleAskBadBody(t *testing.T) {
	app := setupAskApp(&stubResolver{})

	req := httptest.NewRequest("POST", "/api/v1/ask", strings.NewReader(`{broken`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestGetHistory(t *testing.T) {
	history := &stubHistory{records: []models.QueryRecord{
		{ID: "1", QueryText: "q1", Response: "a1", Source: "quick", ResponseTime: 0.01},
		{ID: "2", QueryText: "q2", Response: "a2", Source: "cache", ResponseTime: 0.001},
	}}
	app := fiber.New()
	h := NewQueryHandler(&stubResolver{}, history)
	app.Get("/api/v1/history", h.GetHistory)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/history?limit=10", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		History []map[string]interface{} `json:"history"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body.History, 2)
	assert.Equal(t, "q1", body.History[0]["question"])
}
