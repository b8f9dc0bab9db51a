package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hostpulse/hostpulse/internal/valkey"
)

const defaultDLQCount = 100

// deadLetterReader reads back reports parked after a persistence failure.
type deadLetterReader interface {
	FailedReports(ctx context.Context, count int64) ([]valkey.StreamMessage, error)
}

type DLQHandler struct {
	dlq deadLetterReader
	log *slog.Logger
}

func NewDLQHandler(dlq deadLetterReader, logger *slog.Logger) *DLQHandler {
	return &DLQHandler{dlq: dlq, log: logger}
}

// List exposes the dead-letter stream for operators debugging lost reports.
// Mounted on the internal router only, never on the public API.
func (h *DLQHandler) List(c *gin.Context) {
	count := int64(defaultDLQCount)
	if raw := c.Query("count"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "count must be a positive integer"})
			return
		}
		count = parsed
	}

	messages, err := h.dlq.FailedReports(c.Request.Context(), count)
	if err != nil {
		h.log.Error("DLQ read failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read dead letter queue"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"reports": messages, "count": len(messages)})
}
