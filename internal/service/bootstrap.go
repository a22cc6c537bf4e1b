package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sirosfoundation/relay-panel/internal/domain"
	"github.com/sirosfoundation/relay-panel/internal/storage"
	"github.com/sirosfoundation/relay-panel/pkg/config"
)

// EnsureAdmin creates the bootstrap admin when the store holds no admin yet.
// It does nothing if an admin exists or no bootstrap password is configured.
func EnsureAdmin(ctx context.Context, store storage.Store, cfg config.BootstrapConfig, logger *zap.Logger) error {
	logger = logger.Named("bootstrap")

	has, err := store.Users().HasAdmin(ctx)
	if err != nil {
		return fmt.Errorf("failed to check for admin: %w", err)
	}
	if has {
		return nil
	}

	if cfg.AdminPassword == "" {
		logger.Warn("No admin account exists and no bootstrap password is configured")
		return nil
	}

	hash, err := HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}

	admin := &domain.User{
		Username:     cfg.AdminUsername,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		Active:       true,
		ChatID:       cfg.AdminChatID,
	}
	if err := store.Users().Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}

	logger.Info("Created bootstrap admin", zap.String("username", admin.Username), zap.Int64("user_id", admin.ID))
	return nil
}
