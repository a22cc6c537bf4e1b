package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sirosfoundation/relay-panel/internal/domain"
	"github.com/sirosfoundation/relay-panel/internal/storage"
)

// AuthService runs the two-phase login flow: credentials, then one-time code.
type AuthService struct {
	store       storage.Store
	credentials *CredentialVerifier
	otp         *OTPService
	sessions    *SessionService
	audit       *LoginAudit
	generic     bool
	logger      *zap.Logger
}

// NewAuthService creates a new AuthService. With genericErrors set, account
// state failures are reported to callers as ErrBadCredentials.
func NewAuthService(store storage.Store, credentials *CredentialVerifier, otp *OTPService, sessions *SessionService, audit *LoginAudit, genericErrors bool, logger *zap.Logger) *AuthService {
	return &AuthService{
		store:       store,
		credentials: credentials,
		otp:         otp,
		sessions:    sessions,
		audit:       audit,
		generic:     genericErrors,
		logger:      logger.Named("auth-service"),
	}
}

// Login verifies the password and sends a fresh one-time code.
func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest, clientIP string) error {
	err := s.login(ctx, req)
	if errors.Is(err, ErrMissingInput) {
		return err
	}

	s.audit.Record(ctx, req.Username, clientIP, domain.StageCredentials, err)
	if err != nil {
		s.logger.Info("Login rejected",
			zap.String("username", req.Username),
			zap.String("client_ip", clientIP),
			zap.String("reason", err.Error()),
		)
		if s.generic && isCredentialFailure(err) {
			return ErrBadCredentials
		}
		return err
	}

	s.logger.Info("Login accepted, code sent",
		zap.String("username", req.Username),
		zap.String("client_ip", clientIP),
	)
	return nil
}

func (s *AuthService) login(ctx context.Context, req *domain.LoginRequest) error {
	user, err := s.credentials.Verify(ctx, req.Username, req.Password)
	if err != nil {
		return err
	}

	target, err := s.credentials.NotificationTarget(user)
	if err != nil {
		return err
	}

	return s.otp.Issue(ctx, user, target)
}

// VerifyOTP consumes the pending challenge and issues a session token
func (s *AuthService) VerifyOTP(ctx context.Context, req *domain.VerifyOTPRequest, clientIP string) (*domain.LoginResult, error) {
	user, err := s.otp.Verify(ctx, req.Username, req.OTP)
	if err != nil {
		if !errors.Is(err, ErrMissingInput) {
			s.audit.Record(ctx, req.Username, clientIP, domain.StageChallenge, err)
		}
		return nil, err
	}

	token, claims, err := s.sessions.Issue(user)
	if err != nil {
		s.logger.Error("Failed to issue session", zap.String("username", user.Username), zap.Error(err))
		return nil, err
	}

	s.audit.Record(ctx, user.Username, clientIP, domain.StageChallenge, nil)
	s.logger.Info("User logged in",
		zap.Int64("user_id", user.ID),
		zap.String("username", user.Username),
		zap.String("client_ip", clientIP),
	)

	return &domain.LoginResult{
		Token:  token,
		User:   user.Projection(),
		Claims: claims,
	}, nil
}

// Logout revokes the session described by claims
func (s *AuthService) Logout(ctx context.Context, claims *domain.SessionClaims) error {
	return s.sessions.Revoke(ctx, claims)
}

// Me returns the current projection of the identity behind claims
func (s *AuthService) Me(ctx context.Context, claims *domain.SessionClaims) (*domain.UserProjection, error) {
	user, err := s.store.Users().GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUnknownIdentity
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	p := user.Projection()
	return &p, nil
}
