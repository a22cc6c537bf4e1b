package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/sirosfoundation/relay-panel/internal/domain"
	"github.com/sirosfoundation/relay-panel/internal/notify"
	"github.com/sirosfoundation/relay-panel/internal/storage"
	"github.com/sirosfoundation/relay-panel/pkg/config"
)

const defaultDispatchTimeout = 10 * time.Second

// GenerateCode returns a uniformly chosen 6-digit numeric code
func GenerateCode() string {
	return strconv.Itoa(100000 + rand.IntN(900000))
}

// OTPService issues and verifies one-time code challenges
type OTPService struct {
	store      storage.Store
	challenges *ChallengeStore
	sender     notify.Sender
	cfg        config.ChallengeConfig
	timeout    time.Duration
	logger     *zap.Logger

	now      func() time.Time
	generate func() string
}

// NewOTPService creates a new OTPService
func NewOTPService(store storage.Store, challenges *ChallengeStore, sender notify.Sender, cfg *config.Config, logger *zap.Logger) *OTPService {
	timeout := cfg.Telegram.Timeout()
	if timeout <= 0 {
		timeout = defaultDispatchTimeout
	}
	return &OTPService{
		store:      store,
		challenges: challenges,
		sender:     sender,
		cfg:        cfg.Challenge,
		timeout:    timeout,
		logger:     logger.Named("otp-service"),
		now:        time.Now,
		generate:   GenerateCode,
	}
}

// Issue creates a challenge for user, replacing any pending one, and sends
// the code to target. If delivery fails the challenge just written is withdrawn.
func (s *OTPService) Issue(ctx context.Context, user *domain.User, target string) error {
	now := s.now()
	ch := domain.Challenge{
		Username:  user.Username,
		Code:      s.generate(),
		ExpiresAt: now.Add(s.cfg.TTL()),
		CreatedAt: now,
	}
	seq := s.challenges.Put(ch)

	sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.sender.Send(sendCtx, target, "Your login code: "+ch.Code); err != nil {
		s.challenges.RemoveIfSame(user.Username, seq)
		s.logger.Error("Failed to deliver one-time code",
			zap.String("username", user.Username),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	s.logger.Info("Challenge issued",
		zap.String("username", user.Username),
		zap.Time("expires_at", ch.ExpiresAt),
	)
	return nil
}

// Verify checks code against the pending challenge for username and returns
// the identity once the challenge has been consumed.
func (s *OTPService) Verify(ctx context.Context, username, code string) (*domain.User, error) {
	if username == "" || code == "" {
		return nil, ErrMissingInput
	}

	user, err := s.store.Users().GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUnknownIdentity
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := s.challenges.Consume(username, code, s.now(), s.cfg.MaxAttempts); err != nil {
		s.logger.Info("Challenge rejected",
			zap.String("username", username),
			zap.String("reason", err.Error()),
		)
		return nil, err
	}

	s.logger.Info("Challenge consumed", zap.String("username", username))
	return user, nil
}
