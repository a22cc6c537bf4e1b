package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sirosfoundation/relay-panel/internal/domain"
	"github.com/sirosfoundation/relay-panel/internal/service"
	"github.com/sirosfoundation/relay-panel/internal/storage"
	"github.com/sirosfoundation/relay-panel/pkg/config"
	"github.com/sirosfoundation/relay-panel/pkg/middleware"
)

// Handlers aggregates all HTTP handlers
type Handlers struct {
	services *service.Services
	store    storage.Store
	cfg      *config.Config
	logger   *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services *service.Services, store storage.Store, cfg *config.Config, logger *zap.Logger) *Handlers {
	return &Handlers{
		services: services,
		store:    store,
		cfg:      cfg,
		logger:   logger.Named("handlers"),
	}
}

// Status handles the /status endpoint
func (h *Handlers) Status(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{
		Status:       "ok",
		Service:      "relay-panel",
		APIVersion:   CurrentAPIVersion,
		Capabilities: APICapabilities[CurrentAPIVersion],
	})
}

// Health reports whether the storage backend is reachable
func (h *Handlers) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("Health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Login handles phase one: password check and code dispatch
func (h *Handlers) Login(c *gin.Context) {
	var req domain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	if err := h.services.Auth.Login(c.Request.Context(), &req, c.ClientIP()); err != nil {
		h.writeLoginError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "code sent"})
}

// VerifyOTP handles phase two: code check, token issuance and session cookie
func (h *Handlers) VerifyOTP(c *gin.Context) {
	var req domain.VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and code are required"})
		return
	}

	result, err := h.services.Auth.VerifyOTP(c.Request.Context(), &req, c.ClientIP())
	if err != nil {
		h.writeChallengeError(c, err)
		return
	}

	h.setSessionCookie(c, result.Token, int(h.services.Session.TTL().Seconds()))

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   result.Token,
		"user":    result.User,
	})
}

// Logout revokes the current session and clears the cookie
func (h *Handlers) Logout(c *gin.Context) {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": middleware.ErrMissingToken.Error()})
		return
	}

	if err := h.services.Auth.Logout(c.Request.Context(), claims); err != nil {
		h.logger.Error("Failed to revoke session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	h.setSessionCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Me returns the identity behind the current session
func (h *Handlers) Me(c *gin.Context) {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": middleware.ErrMissingToken.Error()})
		return
	}

	user, err := h.services.Auth.Me(c.Request.Context(), claims)
	if err != nil {
		if errors.Is(err, service.ErrUnknownIdentity) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		h.logger.Error("Failed to load current user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

// AdminNotify sends a summary of a user account to the admin chat
func (h *Handlers) AdminNotify(c *gin.Context) {
	var req domain.NotifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
		return
	}

	err := h.services.AdminNotifier.Notify(c.Request.Context(), req.Username)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
		case errors.Is(err, service.ErrUnknownIdentity):
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		case errors.Is(err, service.ErrNoAdminTarget):
			c.JSON(http.StatusBadRequest, gin.H{"error": "admin chat is not configured"})
		case errors.Is(err, service.ErrDeliveryFailed):
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send notification"})
		default:
			h.logger.Error("Admin notify failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Login event listing limits
const (
	defaultEventLimit = 20
	maxEventLimit     = 100
)

// LoginEvents lists the newest audit records for a username
func (h *Handlers) LoginEvents(c *gin.Context) {
	username := c.Query("username")
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
		return
	}

	limit := defaultEventLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxEventLimit)
	}

	events, err := h.services.Audit.Recent(c.Request.Context(), username, limit)
	if err != nil {
		h.logger.Error("Failed to list login events", zap.String("username", username), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "events": events})
}

func (h *Handlers) writeLoginError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrMissingInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
	case errors.Is(err, service.ErrUnknownIdentity), errors.Is(err, service.ErrBadCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case errors.Is(err, service.ErrInactiveAccount):
		c.JSON(http.StatusForbidden, gin.H{"error": "account is inactive"})
	case errors.Is(err, service.ErrExpiredAccount):
		c.JSON(http.StatusForbidden, gin.H{"error": "account has expired"})
	case errors.Is(err, service.ErrNoNotificationTarget):
		c.JSON(http.StatusBadRequest, gin.H{"error": "no chat configured for this account"})
	case errors.Is(err, service.ErrDeliveryFailed):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send code"})
	default:
		h.logger.Error("Login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func (h *Handlers) writeChallengeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrMissingInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and code are required"})
	case errors.Is(err, service.ErrNoChallenge):
		c.JSON(http.StatusBadRequest, gin.H{"error": "no pending code"})
	case errors.Is(err, service.ErrChallengeExpired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "code expired"})
	case errors.Is(err, service.ErrUnknownIdentity), errors.Is(err, service.ErrChallengeMismatch):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid code"})
	case errors.Is(err, service.ErrChallengeLocked):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many attempts, log in again"})
	default:
		h.logger.Error("Code verification failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// setSessionCookie writes the session cookie; maxAge < 0 deletes it
func (h *Handlers) setSessionCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.cfg.Session.CookieName, token, maxAge, "/", "", h.isSecureRequest(c), true)
}

// isSecureRequest reports whether the client reached us over TLS
func (h *Handlers) isSecureRequest(c *gin.Context) bool {
	if c.Request.TLS != nil {
		return true
	}
	return h.cfg.Server.TrustForwardedProto &&
		strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https")
}
