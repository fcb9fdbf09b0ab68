package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/s3ai/backend/internal/pipeline"
	"github.com/s3ai/backend/internal/storage/models"
	"github.com/s3ai/backend/pkg/logger"
)

// Resolver is the slice of the pipeline the HTTP layer needs.
type Resolver interface {
	Resolve(ctx context.Context, question string, aiFormat bool) (*pipeline.Result, error)
}

// HistoryLister lists recently resolved queries.
type HistoryLister interface {
	ListRecentQueries(ctx context.Context, limit int) ([]models.QueryRecord, error)
}

type QueryHandler struct {
	resolver Resolver
	history  HistoryLister
}

func NewQueryHandler(resolver Resolver, history HistoryLister) *QueryHandler {
	return &QueryHandler{
		resolver: resolver,
		history:  history,
	}
}

func (h *QueryHandler) HandleAsk(c *fiber.Ctx) error {
	var req struct {
		Question string `json:"question"`
		AIFormat bool   `json:"ai_format"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	result, err := h.resolver.Resolve(c.Context(), req.Question, req.AIFormat)
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidQuery) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Question is empty or too long",
			})
		}
		logger.Error("Failed to resolve query", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process question",
		})
	}

	return c.JSON(fiber.Map{
		"id":            result.ID,
		"answer":        result.Answer,
		"source":        result.Source,
		"cached":        result.Cached,
		"response_time": result.ResponseTime,
	})
}

func (h *QueryHandler) GetHistory(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)

	records, err := h.history.ListRecentQueries(c.Context(), limit)
	if err != nil {
		logger.Error("Failed to list query history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load history",
		})
	}

	items := make([]fiber.Map, 0, len(records))
	for _, rec := range records {
		items = append(items, fiber.Map{
			"id":            rec.ID,
			"question":      rec.QueryText,
			"answer":        rec.Response,
			"source":        rec.Source,
			"response_time": rec.ResponseTime,
			"created_at":    rec.CreatedAt,
		})
	}

	return c.JSON(fiber.Map{
		"history": items,
	})
}
