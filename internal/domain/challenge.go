package domain

import "time"

// Challenge is a pending one-time code bound to a username.
// At most one challenge exists per username.
type Challenge struct {
	Username  string    `json:"username"`
	Code      string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
}

// IsExpired reports whether the challenge validity window has elapsed
func (c *Challenge) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// SessionClaims are the identity claims carried by a session token
type SessionClaims struct {
	UserID    int64     `json:"id"`
	Username  string    `json:"username"`
	Role      Role      `json:"role"`
	TokenID   string    `json:"jti"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

// IsAdmin reports whether the claims carry the admin role
func (c *SessionClaims) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// LoginEvent is an audit record of one authentication step
type LoginEvent struct {
	ID        string    `json:"id" bson:"_id"`
	Username  string    `json:"username" bson:"username"`
	ClientIP  string    `json:"client_ip" bson:"client_ip"`
	Stage     string    `json:"stage" bson:"stage"` // credentials, challenge
	Success   bool      `json:"success" bson:"success"`
	Reason    string    `json:"reason,omitempty" bson:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// Login event stages
const (
	StageCredentials = "credentials"
	StageChallenge   = "challenge"
)
