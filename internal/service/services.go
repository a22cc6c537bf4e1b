package service

import (
	"go.uber.org/zap"

	"github.com/sirosfoundation/relay-panel/internal/notify"
	"github.com/sirosfoundation/relay-panel/internal/storage"
	"github.com/sirosfoundation/relay-panel/pkg/config"
)

// Services aggregates all application services
type Services struct {
	Auth          *AuthService
	Credentials   *CredentialVerifier
	Challenges    *ChallengeStore
	OTP           *OTPService
	Session       *SessionService
	TokenDenylist *TokenDenylist
	Sweeper       *ChallengeSweeper
	AdminNotifier *AdminNotifier
	Audit         *LoginAudit
}

// NewServices creates a new Services instance
func NewServices(store storage.Store, sender notify.Sender, cfg *config.Config, logger *zap.Logger) *Services {
	challenges := NewChallengeStore()
	denylist := NewTokenDenylist(cfg.Security.TokenDenylist, logger)

	credentials := NewCredentialVerifier(store, cfg.Telegram.AdminChatID, logger)
	otp := NewOTPService(store, challenges, sender, cfg, logger)
	session := NewSessionService(cfg.Session, denylist, logger)
	audit := NewLoginAudit(store, logger)

	return &Services{
		Auth:          NewAuthService(store, credentials, otp, session, audit, cfg.Security.GenericLoginErrors, logger),
		Credentials:   credentials,
		Challenges:    challenges,
		OTP:           otp,
		Session:       session,
		TokenDenylist: denylist,
		Sweeper:       NewChallengeSweeper(cfg.Challenge, challenges, logger),
		AdminNotifier: NewAdminNotifier(store, sender, cfg.Telegram.AdminChatID, logger),
		Audit:         audit,
	}
}

// Start starts background workers
func (s *Services) Start() {
	if s.TokenDenylist != nil {
		s.TokenDenylist.Start()
	}
	if s.Sweeper != nil {
		s.Sweeper.Start()
	}
}

// Stop gracefully stops background workers
func (s *Services) Stop() {
	if s.Sweeper != nil {
		s.Sweeper.Stop()
	}
	if s.TokenDenylist != nil {
		s.TokenDenylist.Stop()
	}
}
