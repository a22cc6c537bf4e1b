package storage

import (
	"context"
	"errors"

	"github.com/sirosfoundation/relay-panel/internal/domain"
)

// Common errors
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
)

// UserStore defines the interface for panel identity storage
type UserStore interface {
	// Create creates a new user and assigns its numeric ID
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id int64) (*domain.User, error)

	// GetByUsername retrieves a user by username (case-sensitive)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)

	// GetAll retrieves all users
	GetAll(ctx context.Context) ([]*domain.User, error)

	// Update updates a user
	Update(ctx context.Context, user *domain.User) error

	// Delete deletes a user
	Delete(ctx context.Context, id int64) error

	// HasAdmin reports whether at least one admin identity exists
	HasAdmin(ctx context.Context) (bool, error)
}

// LoginEventStore defines the interface for the login audit trail
type LoginEventStore interface {
	// Create records a login event
	Create(ctx context.Context, event *domain.LoginEvent) error

	// GetRecentByUsername returns the newest events for a username, newest first
	GetRecentByUsername(ctx context.Context, username string, limit int) ([]*domain.LoginEvent, error)
}

// Store aggregates all storage interfaces
type Store interface {
	Users() UserStore
	LoginEvents() LoginEventStore

	// Close closes the storage connection
	Close() error

	// Ping checks if the storage is alive
	Ping(ctx context.Context) error
}
