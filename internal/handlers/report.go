// Package handlers contains the gin handlers for the ingest and operator
// API services.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hostpulse/hostpulse/internal/ingest"
)

type ReportHandler struct {
	pipeline *ingest.Pipeline
	timeout  time.Duration
}

func NewReportHandler(pipeline *ingest.Pipeline, timeout time.Duration) *ReportHandler {
	return &ReportHandler{
		pipeline: pipeline,
		timeout:  timeout,
	}
}

// Report handles incoming samples from agents.
func (h *ReportHandler) Report(c *gin.Context) {
	var payload ingest.ReportPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed payload: " + err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	err := h.pipeline.Process(ctx, payload)
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}

	var malformed *ingest.MalformedPayloadError
	switch {
	case errors.Is(err, ingest.ErrMissingToken):
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
	case errors.Is(err, ingest.ErrUnknownToken):
		c.JSON(http.StatusNotFound, gin.H{"error": "invalid token"})
	case errors.As(err, &malformed):
		c.JSON(http.StatusBadRequest, gin.H{"error": malformed.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store report"})
	}
}
