package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sirosfoundation/relay-panel/internal/notify"
	"github.com/sirosfoundation/relay-panel/internal/storage"
)

// AdminNotifier sends account summaries to the admin chat
type AdminNotifier struct {
	store     storage.Store
	sender    notify.Sender
	adminChat string
	logger    *zap.Logger
}

// NewAdminNotifier creates a new AdminNotifier
func NewAdminNotifier(store storage.Store, sender notify.Sender, adminChat string, logger *zap.Logger) *AdminNotifier {
	return &AdminNotifier{
		store:     store,
		sender:    sender,
		adminChat: adminChat,
		logger:    logger.Named("admin-notify"),
	}
}

// Notify sends a summary of username's account to the admin chat
func (n *AdminNotifier) Notify(ctx context.Context, username string) error {
	if username == "" {
		return ErrMissingInput
	}

	user, err := n.store.Users().GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrUnknownIdentity
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	if n.adminChat == "" {
		return ErrNoAdminTarget
	}

	text := fmt.Sprintf("Login: %s\nMessages: %d\nLocation: %s - %s",
		user.Username, user.MessageCount, user.Country, user.City)

	if err := n.sender.Send(ctx, n.adminChat, text); err != nil {
		n.logger.Error("Failed to notify admin",
			zap.String("username", username),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return nil
}
