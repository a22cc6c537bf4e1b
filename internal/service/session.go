package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sirosfoundation/relay-panel/internal/domain"
	"github.com/sirosfoundation/relay-panel/pkg/config"
)

// sessionClaims is the JWT payload of a session token
type sessionClaims struct {
	UserID   int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// SessionService mints and validates stateless session tokens
type SessionService struct {
	cfg      config.SessionConfig
	denylist *TokenDenylist
	logger   *zap.Logger
	now      func() time.Time
}

// NewSessionService creates a new SessionService. denylist may be nil.
func NewSessionService(cfg config.SessionConfig, denylist *TokenDenylist, logger *zap.Logger) *SessionService {
	return &SessionService{
		cfg:      cfg,
		denylist: denylist,
		logger:   logger.Named("session-service"),
		now:      time.Now,
	}
}

// TTL returns the lifetime of issued tokens
func (s *SessionService) TTL() time.Duration {
	return s.cfg.TTL()
}

// Issue signs a token carrying the identity and role of user
func (s *SessionService) Issue(user *domain.User) (string, *domain.SessionClaims, error) {
	now := s.now().Truncate(time.Second)
	expiresAt := now.Add(s.cfg.TTL())
	jti := uuid.NewString()

	claims := sessionClaims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    s.cfg.Issuer,
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	return token, &domain.SessionClaims{
		UserID:    user.ID,
		Username:  user.Username,
		Role:      user.Role,
		TokenID:   jti,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	}, nil
}

// ParseToken validates tokenString and returns its claims.
// Any signature, format or expiry problem yields ErrInvalidSession.
func (s *SessionService) ParseToken(ctx context.Context, tokenString string) (*domain.SessionClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if s.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.cfg.Issuer))
	}

	var claims sessionClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.Secret), nil
	}, opts...)
	if err != nil || !token.Valid {
		if errors.Is(err, jwt.ErrTokenExpired) {
			s.logger.Debug("Session token expired")
		}
		return nil, ErrInvalidSession
	}

	role, err := domain.ParseRole(claims.Role)
	if err != nil || claims.Username == "" {
		return nil, ErrInvalidSession
	}

	if s.denylist != nil && s.denylist.IsRevoked(ctx, claims.ID) {
		return nil, ErrSessionRevoked
	}

	out := &domain.SessionClaims{
		UserID:   claims.UserID,
		Username: claims.Username,
		Role:     role,
		TokenID:  claims.ID,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

// Revoke puts the token described by claims on the denylist until it expires
func (s *SessionService) Revoke(ctx context.Context, claims *domain.SessionClaims) error {
	if s.denylist == nil || !s.denylist.Enabled() {
		return nil
	}
	if err := s.denylist.Add(ctx, claims.TokenID, claims.ExpiresAt); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	s.logger.Info("Session revoked", zap.String("username", claims.Username))
	return nil
}
