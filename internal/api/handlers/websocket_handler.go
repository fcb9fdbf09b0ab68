package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/s3ai/backend/internal/pipeline"
	"github.com/s3ai/backend/pkg/logger"
)

type WebSocketHandler struct {
	resolver Resolver
}

func NewWebSocketHandler(resolver Resolver) *WebSocketHandler {
	return &WebSocketHandler{
		resolver: resolver,
	}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type     string `json:"type"`
			Content  string `json:"content"`
			AIFormat bool   `json:"ai_format"`
		}

		if err := c.ReadJSON(&msg); err != nil {
			logger.Debug("WebSocket read ended", zap.Error(err))
			break
		}

		if msg.Type != "question" {
			continue
		}

		if err := h.streamAnswer(c, msg.Content, msg.AIFormat); err != nil {
			logger.Error("Failed to stream answer", zap.Error(err))
			h.sendError(c, "Failed to process question")
		}
	}
}

func (h *WebSocketHandler) streamAnswer(c *websocket.Conn, question string, aiFormat bool) error {
	h.send(c, "status", "Working on it...")

	result, err := h.resolver.Resolve(context.Background(), question, aiFormat)
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidQuery) {
			h.sendError(c, "Question is empty or too long")
			return nil
		}
		return err
	}

	// Cached answers arrive at once; fresh ones stream word by word.
	if result.Cached {
		if err := h.send(c, "chunk", result.Answer); err != nil {
			return err
		}
	} else {
		words := strings.Fields(result.Answer)
		for i, word := range words {
			chunk := word
			if i < len(words)-1 {
				chunk += " "
			}
			if err := h.send(c, "chunk", chunk); err != nil {
				return err
			}
		}
	}

	return c.WriteJSON(map[string]interface{}{
		"type":          "complete",
		"message_id":    result.ID,
		"source":        result.Source,
		"cached":        result.Cached,
		"response_time": result.ResponseTime,
	})
}

func (h *WebSocketHandler) send(c *websocket.Conn, msgType, content string) error {
	return c.WriteJSON(map[string]interface{}{
		"type":    msgType,
		"content": content,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	})
}
