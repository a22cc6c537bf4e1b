package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Role defines the privilege level of a panel identity
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// IsValid reports whether r is a known role
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

// ParseRole parses a role name, rejecting unknown values
func ParseRole(s string) (Role, error) {
	role := Role(s)
	if !role.IsValid() {
		return "", fmt.Errorf("invalid role %q (must be %s or %s)", s, RoleUser, RoleAdmin)
	}
	return role, nil
}

// User represents a panel operator account.
// ChatID is the notification address one-time codes are delivered to.
type User struct {
	ID           int64      `json:"id" bson:"_id"`
	Username     string     `json:"username" bson:"username"`
	PasswordHash string     `json:"-" bson:"password_hash"`
	Role         Role       `json:"role" bson:"role"`
	Active       bool       `json:"active" bson:"active"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty" bson:"expires_at,omitempty"`
	ChatID       string     `json:"chat_id,omitempty" bson:"chat_id,omitempty"`

	Credits      int64   `json:"credits" bson:"credits"`
	InstanceName *string `json:"instance_name,omitempty" bson:"instance_name,omitempty"`
	MessageCount int64   `json:"message_count" bson:"message_count"`
	Country      string  `json:"country,omitempty" bson:"country,omitempty"`
	City         string  `json:"city,omitempty" bson:"city,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// IsAdmin reports whether the user holds the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsExpired reports whether the account is past its expiry at the given instant.
// Admin accounts never expire.
func (u *User) IsExpired(now time.Time) bool {
	if u.IsAdmin() || u.ExpiresAt == nil || u.ExpiresAt.IsZero() {
		return false
	}
	return now.After(*u.ExpiresAt)
}

// Projection returns the fields of the user that are safe to hand to clients
func (u *User) Projection() UserProjection {
	return UserProjection{
		ID:           u.ID,
		Username:     u.Username,
		Role:         u.Role,
		ExpiresAt:    u.ExpiresAt,
		Credits:      u.Credits,
		InstanceName: u.InstanceName,
	}
}

// UserProjection is the client-facing view of a user; it never carries the password hash
type UserProjection struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	Role         Role       `json:"role"`
	ExpiresAt    *time.Time `json:"expires_at"`
	Credits      int64      `json:"credits"`
	InstanceName *string    `json:"instance_name"`
}

// LoginRequest is the phase-one body of the login flow
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// VerifyOTPRequest is the phase-two body of the login flow.
// The code may be sent as a JSON string or a JSON number.
type VerifyOTPRequest struct {
	Username string `json:"username"`
	OTP      string `json:"otp"`
}

// ErrInvalidCodeType is returned when otp is neither a string nor a number
var ErrInvalidCodeType = errors.New("otp must be a string or a number")

func (r *VerifyOTPRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		Username string          `json:"username"`
		OTP      json.RawMessage `json:"otp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	code, err := decodeCode(raw.OTP)
	if err != nil {
		return err
	}

	r.Username = raw.Username
	r.OTP = code
	return nil
}

// decodeCode normalises a string or numeric code to its decimal text
func decodeCode(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", ErrInvalidCodeType
	}
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	return n.String(), nil
}

// NotifyRequest asks for an admin notification about a user
type NotifyRequest struct {
	Username string `json:"username"`
}

// LoginResult is returned once a challenge has been answered
type LoginResult struct {
	Token  string         `json:"token"`
	User   UserProjection `json:"user"`
	Claims *SessionClaims `json:"-"`
}
