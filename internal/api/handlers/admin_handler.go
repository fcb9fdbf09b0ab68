package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/s3ai/backend/internal/cache"
	"github.com/s3ai/backend/internal/metadata"
	"github.com/s3ai/backend/internal/metrics"
	"github.com/s3ai/backend/pkg/logger"
)

type AdminHandler struct {
	store        cache.Store
	index        *metadata.Index
	metadataPath string
}

func NewAdminHandler(store cache.Store, index *metadata.Index, metadataPath string) *AdminHandler {
	return &AdminHandler{
		store:        store,
		index:        index,
		metadataPath: metadataPath,
	}
}

func (h *AdminHandler) CacheStats(c *fiber.Ctx) error {
	stats, err := h.store.Stats(c.Context())
	if err != nil {
		logger.Error("Failed to read cache stats", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read cache stats",
		})
	}

	return c.JSON(fiber.Map{
		"entries": stats.Entries,
		"hits":    stats.Hits,
		"misses":  stats.Misses,
	})
}

func (h *AdminHandler) ClearCache(c *fiber.Ctx) error {
	if err := h.store.ClearAll(c.Context()); err != nil {
		logger.Error("Failed to clear cache", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to clear cache",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Cache cleared",
	})
}

func (h *AdminHandler) ClearExpired(c *fiber.Ctx) error {
	removed, err := h.store.ClearExpired(c.Context())
	if err != nil {
		logger.Error("Failed to clear expired entries", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to clear expired entries",
		})
	}

	return c.JSON(fiber.Map{
		"removed": removed,
	})
}

// RebuildIndex rebuilds the metadata index from the configured source.
// A failed rebuild leaves the previous index serving.
func (h *AdminHandler) RebuildIndex(c *fiber.Ctx) error {
	if err := h.index.Build(h.metadataPath); err != nil {
		logger.Error("Metadata index rebuild failed", zap.Error(err))
		status := fiber.StatusInternalServerError
		if errors.Is(err, metadata.ErrBuildFailed) {
			return c.Status(status).JSON(fiber.Map{
				"error":   "Index rebuild failed; previous index still serving",
				"records": h.index.Len(),
			})
		}
		return c.Status(status).JSON(fiber.Map{
			"error": "Index rebuild failed",
		})
	}

	metrics.MetadataRecords.Set(float64(h.index.Len()))

	return c.JSON(fiber.Map{
		"message": "Index rebuilt",
		"records": h.index.Len(),
	})
}
