package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/s3ai/backend/internal/storage/models"
	"github.com/s3ai/backend/pkg/logger"
)

// Ingestor processes an uploaded document end to end.
type Ingestor interface {
	ProcessDocument(ctx context.Context, filename, content string) error
}

// DocumentLister lists stored documents.
type DocumentLister interface {
	ListDocuments(ctx context.Context) ([]models.Document, error)
}

type DocumentHandler struct {
	processor Ingestor
	store     DocumentLister
}

func NewDocumentHandler(processor Ingestor, store DocumentLister) *DocumentHandler {
	return &DocumentHandler{
		processor: processor,
		store:     store,
	}
}

func (h *DocumentHandler) UploadDocument(c *fiber.Ctx) error {
	var req struct {
		Filename string `json:"filename"`
		Content  string `json:"content"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Filename == "" || req.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Filename and content are required",
		})
	}

	if err := h.processor.ProcessDocument(c.Context(), req.Filename, req.Content); err != nil {
		logger.Error("Failed to process document", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process document",
		})
	}

	return c.JSON(fiber.Map{
		"message":  "Document processed",
		"filename": req.Filename,
	})
}

func (h *DocumentHandler) ListDocuments(c *fiber.Ctx) error {
	docs, err := h.store.ListDocuments(c.Context())
	if err != nil {
		logger.Error("Failed to list documents", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list documents",
		})
	}

	items := make([]fiber.Map, 0, len(docs))
	for _, doc := range docs {
		items = append(items, fiber.Map{
			"id":          doc.ID,
			"filename":    doc.Filename,
			"title":       doc.Title,
			"doc_type":    doc.DocType,
			"chunk_count": doc.ChunkCount,
			"updated_at":  doc.UpdatedAt,
		})
	}

	return c.JSON(fiber.Map{
		"documents": items,
	})
}
