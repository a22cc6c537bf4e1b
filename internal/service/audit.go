package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sirosfoundation/relay-panel/internal/domain"
	"github.com/sirosfoundation/relay-panel/internal/storage"
)

// LoginAudit records authentication outcomes. Recording is best effort.
type LoginAudit struct {
	store  storage.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewLoginAudit creates a new LoginAudit
func NewLoginAudit(store storage.Store, logger *zap.Logger) *LoginAudit {
	return &LoginAudit{
		store:  store,
		logger: logger.Named("login-audit"),
		now:    time.Now,
	}
}

// Record stores one outcome; err == nil means success
func (a *LoginAudit) Record(ctx context.Context, username, clientIP, stage string, err error) {
	event := &domain.LoginEvent{
		ID:        uuid.NewString(),
		Username:  username,
		ClientIP:  clientIP,
		Stage:     stage,
		Success:   err == nil,
		CreatedAt: a.now(),
	}
	if err != nil {
		event.Reason = err.Error()
	}

	if storeErr := a.store.LoginEvents().Create(ctx, event); storeErr != nil {
		a.logger.Warn("Failed to record login event",
			zap.String("username", username),
			zap.Error(storeErr),
		)
	}
}

// Recent returns the newest events for username
func (a *LoginAudit) Recent(ctx context.Context, username string, limit int) ([]*domain.LoginEvent, error) {
	return a.store.LoginEvents().GetRecentByUsername(ctx, username, limit)
}
