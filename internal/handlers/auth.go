package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hostpulse/hostpulse/internal/auth"
	"github.com/hostpulse/hostpulse/internal/models"
)

// AccountStore is the account persistence surface the auth handler needs.
type AccountStore interface {
	CreateAccount(ctx context.Context, email, passwordHash string) (models.Account, error)
	AccountByEmail(ctx context.Context, email string) (models.Account, error)
}

type AuthHandler struct {
	store AccountStore
	auth  *auth.Service
	log   *slog.Logger
}

func NewAuthHandler(store AccountStore, authSvc *auth.Service, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		store: store,
		auth:  authSvc,
		log:   logger,
	}
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password (min 8 chars) are required"})
		return
	}

	hash, err := h.auth.HashPassword(req.Password)
	if err != nil {
		h.log.Error("password hashing failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create account"})
		return
	}

	account, err := h.store.CreateAccount(c.Request.Context(), req.Email, hash)
	if err != nil {
		if errors.Is(err, models.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		h.log.Error("account creation failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create account"})
		return
	}

	token, err := h.auth.GenerateToken(account.ID)
	if err != nil {
		h.log.Error("token generation failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create account"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"token": token, "account": account})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	account, err := h.store.AccountByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, models.ErrAccountNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		h.log.Error("account lookup failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	if !h.auth.CheckPassword(req.Password, account.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := h.auth.GenerateToken(account.ID)
	if err != nil {
		h.log.Error("token generation failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "account": account})
}
