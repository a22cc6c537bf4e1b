package service

import "errors"

// Credential phase
var (
	ErrMissingInput         = errors.New("missing input")
	ErrUnknownIdentity      = errors.New("unknown identity")
	ErrInactiveAccount      = errors.New("account inactive")
	ErrExpiredAccount       = errors.New("account expired")
	ErrBadCredentials       = errors.New("invalid credentials")
	ErrNoNotificationTarget = errors.New("no notification target")
	ErrDeliveryFailed       = errors.New("code delivery failed")
)

// Challenge phase
var (
	ErrNoChallenge       = errors.New("no pending challenge")
	ErrChallengeExpired  = errors.New("challenge expired")
	ErrChallengeMismatch = errors.New("challenge code mismatch")
	ErrChallengeLocked   = errors.New("too many failed attempts")
)

// Sessions and admin operations
var (
	ErrInvalidSession = errors.New("invalid session token")
	ErrSessionRevoked = errors.New("session token revoked")
	ErrNoAdminTarget  = errors.New("no admin notification target")
)

// isCredentialFailure reports whether err is one of the account-state
// failures that may be collapsed into ErrBadCredentials.
func isCredentialFailure(err error) bool {
	return errors.Is(err, ErrUnknownIdentity) ||
		errors.Is(err, ErrInactiveAccount) ||
		errors.Is(err, ErrExpiredAccount) ||
		errors.Is(err, ErrBadCredentials)
}
