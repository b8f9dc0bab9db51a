package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hostpulse/hostpulse/internal/auth"
	"github.com/hostpulse/hostpulse/internal/models"
)

const alertFeedLimit = 50

// AlertStore is the alert read surface the alerts handler needs.
type AlertStore interface {
	RecentAlerts(ctx context.Context, accountID uuid.UUID, limit int) ([]models.AlertWithHost, error)
}

type AlertsHandler struct {
	store AlertStore
	log   *slog.Logger
}

func NewAlertsHandler(store AlertStore, logger *slog.Logger) *AlertsHandler {
	return &AlertsHandler{store: store, log: logger}
}

// List returns the account's most recent alerts, newest first, active and
// resolved alike.
func (h *AlertsHandler) List(c *gin.Context) {
	accountID, ok := auth.AccountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	alerts, err := h.store.RecentAlerts(c.Request.Context(), accountID, alertFeedLimit)
	if err != nil {
		h.log.Error("alert query failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load alerts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}
