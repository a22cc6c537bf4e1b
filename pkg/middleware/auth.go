package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sirosfoundation/relay-panel/internal/domain"
)

// Gate errors
var (
	ErrMissingToken = errors.New("authorization required")
	ErrInvalidToken = errors.New("invalid token")
	ErrForbidden    = errors.New("admin access required")
)

// Context keys set by AuthMiddleware
const (
	ContextUserID   = "user_id"
	ContextUsername = "username"
	ContextRole     = "role"
	ContextClaims   = "claims"
	ContextToken    = "token"
)

// TokenParser validates a session token and returns its claims
type TokenParser interface {
	ParseToken(ctx context.Context, token string) (*domain.SessionClaims, error)
}

// AuthMiddleware validates the session token and attaches its claims to the context.
// The token is read from an "Authorization: Bearer" header, or from the
// session cookie when no header is sent.
func AuthMiddleware(parser TokenParser, cookieName string, logger *zap.Logger) gin.HandlerFunc {
	logger = logger.Named("auth")

	return func(c *gin.Context) {
		tokenString, err := extractToken(c, cookieName)
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, err)
			return
		}

		claims, err := parser.ParseToken(c.Request.Context(), tokenString)
		if err != nil {
			logger.Debug("Rejected session token",
				zap.String("client_ip", c.ClientIP()),
				zap.Error(err),
			)
			abortWithError(c, http.StatusUnauthorized, ErrInvalidToken)
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUsername, claims.Username)
		c.Set(ContextRole, string(claims.Role))
		c.Set(ContextClaims, claims)
		c.Set(ContextToken, tokenString)

		c.Next()
	}
}

func extractToken(c *gin.Context, cookieName string) (string, error) {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return "", ErrInvalidToken
		}
		token := strings.TrimSpace(parts[1])
		if token == "" {
			return "", ErrMissingToken
		}
		return token, nil
	}

	if cookieName != "" {
		if token, err := c.Cookie(cookieName); err == nil && token != "" {
			return token, nil
		}
	}

	return "", ErrMissingToken
}

// RequireAdmin rejects requests whose session does not carry the admin role.
// It must run after AuthMiddleware.
func RequireAdmin(logger *zap.Logger) gin.HandlerFunc {
	logger = logger.Named("auth")

	return func(c *gin.Context) {
		claims, ok := ClaimsFromContext(c)
		if !ok {
			abortWithError(c, http.StatusUnauthorized, ErrMissingToken)
			return
		}

		if !claims.IsAdmin() {
			logger.Warn("Non-admin access to admin route",
				zap.String("username", claims.Username),
				zap.String("path", c.Request.URL.Path),
			)
			abortWithError(c, http.StatusForbidden, ErrForbidden)
			return
		}

		c.Next()
	}
}

// ClaimsFromContext returns the session claims attached by AuthMiddleware
func ClaimsFromContext(c *gin.Context) (*domain.SessionClaims, bool) {
	v, exists := c.Get(ContextClaims)
	if !exists {
		return nil, false
	}
	claims, ok := v.(*domain.SessionClaims)
	return claims, ok && claims != nil
}

func abortWithError(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

// Logger returns a gin middleware for request logging
func Logger(logger *zap.Logger) gin.HandlerFunc {
	logger = logger.Named("http")

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
