package handlers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hostpulse/hostpulse/internal/auth"
	"github.com/hostpulse/hostpulse/internal/models"
)

const (
	defaultSampleLimit = 50
	maxSampleLimit     = 1000
)

// HostStore is the host persistence surface the host handler needs.
type HostStore interface {
	CreateHost(ctx context.Context, accountID uuid.UUID, name string, ip *string, token string) (models.Host, error)
	HostsByAccount(ctx context.Context, accountID uuid.UUID) ([]models.Host, error)
	HostByID(ctx context.Context, accountID, hostID uuid.UUID) (models.Host, error)
	DeleteHost(ctx context.Context, accountID, hostID uuid.UUID) error
	RecentSamples(ctx context.Context, hostID uuid.UUID, limit int) ([]models.Sample, error)
}

// TokenInvalidator drops a report token from the cache when its host goes away.
type TokenInvalidator interface {
	Invalidate(ctx context.Context, token string) error
}

type HostsHandler struct {
	store       HostStore
	invalidator TokenInvalidator
	log         *slog.Logger
}

func NewHostsHandler(store HostStore, invalidator TokenInvalidator, logger *slog.Logger) *HostsHandler {
	return &HostsHandler{
		store:       store,
		invalidator: invalidator,
		log:         logger,
	}
}

type createHostRequest struct {
	Name string  `json:"name" binding:"required"`
	IP   *string `json:"ip"`
}

func (h *HostsHandler) Create(c *gin.Context) {
	accountID, ok := auth.AccountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req createHostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	token, err := newReportToken()
	if err != nil {
		h.log.Error("token generation failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create host"})
		return
	}

	host, err := h.store.CreateHost(c.Request.Context(), accountID, req.Name, req.IP, token)
	if err != nil {
		h.log.Error("host creation failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create host"})
		return
	}

	c.JSON(http.StatusCreated, host)
}

func (h *HostsHandler) List(c *gin.Context) {
	accountID, ok := auth.AccountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	hosts, err := h.store.HostsByAccount(c.Request.Context(), accountID)
	if err != nil {
		h.log.Error("host listing failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list hosts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"hosts": hosts})
}

func (h *HostsHandler) Get(c *gin.Context) {
	accountID, ok := auth.AccountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	hostID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "host not found"})
		return
	}

	host, err := h.store.HostByID(c.Request.Context(), accountID, hostID)
	if err != nil {
		if errors.Is(err, models.ErrHostNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "host not found"})
			return
		}
		h.log.Error("host lookup failed", "host_id", hostID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load host"})
		return
	}

	c.JSON(http.StatusOK, host)
}

func (h *HostsHandler) Delete(c *gin.Context) {
	accountID, ok := auth.AccountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	hostID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "host not found"})
		return
	}

	// Fetch first so the cached token can be invalidated after the delete.
	host, err := h.store.HostByID(c.Request.Context(), accountID, hostID)
	if err != nil {
		if errors.Is(err, models.ErrHostNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "host not found"})
			return
		}
		h.log.Error("host lookup failed", "host_id", hostID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete host"})
		return
	}

	if err := h.store.DeleteHost(c.Request.Context(), accountID, hostID); err != nil {
		if errors.Is(err, models.ErrHostNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "host not found"})
			return
		}
		h.log.Error("host deletion failed", "host_id", hostID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete host"})
		return
	}

	if h.invalidator != nil {
		if err := h.invalidator.Invalidate(c.Request.Context(), host.Token); err != nil {
			h.log.Warn("token cache invalidation failed", "host_id", hostID, "err", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Samples returns the most recent samples for a host, oldest first.
func (h *HostsHandler) Samples(c *gin.Context) {
	accountID, ok := auth.AccountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	hostID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "host not found"})
		return
	}

	// Ownership check keeps cross-account probing indistinguishable from a
	// missing host.
	if _, err := h.store.HostByID(c.Request.Context(), accountID, hostID); err != nil {
		if errors.Is(err, models.ErrHostNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "host not found"})
			return
		}
		h.log.Error("host lookup failed", "host_id", hostID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load samples"})
		return
	}

	limit := defaultSampleLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxSampleLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 1000"})
			return
		}
		limit = parsed
	}

	samples, err := h.store.RecentSamples(c.Request.Context(), hostID, limit)
	if err != nil {
		h.log.Error("sample query failed", "host_id", hostID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load samples"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"samples": samples})
}

func newReportToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
