package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/sirosfoundation/relay-panel/internal/domain"
	"github.com/sirosfoundation/relay-panel/internal/storage"
)

// dummyHash is compared against when the username is unknown so both paths cost one bcrypt run.
var dummyHash = sync.OnceValue(func() []byte {
	hash, _ := bcrypt.GenerateFromPassword([]byte("relay-panel"), bcrypt.DefaultCost)
	return hash
})

// CredentialVerifier checks username/password pairs against stored identities
type CredentialVerifier struct {
	store        storage.Store
	fallbackChat string
	logger       *zap.Logger
	now          func() time.Time
}

// NewCredentialVerifier creates a CredentialVerifier. fallbackChat is the
// notification address used for admins without one of their own.
func NewCredentialVerifier(store storage.Store, fallbackChat string, logger *zap.Logger) *CredentialVerifier {
	return &CredentialVerifier{
		store:        store,
		fallbackChat: fallbackChat,
		logger:       logger.Named("credentials"),
		now:          time.Now,
	}
}

// Verify returns the identity matching username and password.
func (v *CredentialVerifier) Verify(ctx context.Context, username, password string) (*domain.User, error) {
	if username == "" || password == "" {
		return nil, ErrMissingInput
	}

	user, err := v.store.Users().GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
			return nil, ErrUnknownIdentity
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !user.Active {
		return nil, ErrInactiveAccount
	}
	if user.IsExpired(v.now()) {
		return nil, ErrExpiredAccount
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrBadCredentials
	}

	return user, nil
}

// NotificationTarget resolves where the one-time code for user is delivered
func (v *CredentialVerifier) NotificationTarget(user *domain.User) (string, error) {
	if user.ChatID != "" {
		return user.ChatID, nil
	}
	if user.IsAdmin() && v.fallbackChat != "" {
		return v.fallbackChat, nil
	}
	return "", ErrNoNotificationTarget
}

// HashPassword hashes a password for storage
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrMissingInput
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
