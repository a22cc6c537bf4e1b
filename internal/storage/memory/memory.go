package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirosfoundation/relay-panel/internal/domain"
	"github.com/sirosfoundation/relay-panel/internal/storage"
)

// Store implements an in-memory storage
type Store struct {
	users       *UserStore
	loginEvents *LoginEventStore
}

// NewStore creates a new in-memory store
func NewStore() *Store {
	return &Store{
		users:       &UserStore{data: make(map[int64]*domain.User)},
		loginEvents: &LoginEventStore{},
	}
}

func (s *Store) Users() storage.UserStore             { return s.users }
func (s *Store) LoginEvents() storage.LoginEventStore { return s.loginEvents }
func (s *Store) Close() error                         { return nil }
func (s *Store) Ping(ctx context.Context) error       { return nil }

// UserStore implements in-memory user storage.
// Values are copied in and out so callers never share state with the map.
type UserStore struct {
	mu     sync.RWMutex
	data   map[int64]*domain.User
	nextID int64
}

func (s *UserStore) Create(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Username == "" {
		return storage.ErrInvalidInput
	}
	for _, existing := range s.data {
		if existing.Username == user.Username {
			return storage.ErrAlreadyExists
		}
	}

	s.nextID++
	user.ID = s.nextID
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt

	stored := *user
	s.data[user.ID] = &stored
	return nil
}

func (s *UserStore) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	out := *user
	return &out, nil
}

func (s *UserStore) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.data {
		if user.Username == username {
			out := *user
			return &out, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *UserStore) GetAll(ctx context.Context) ([]*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*domain.User, 0, len(s.data))
	for _, user := range s.data {
		out := *user
		users = append(users, &out)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (s *UserStore) Update(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[user.ID]; !exists {
		return storage.ErrNotFound
	}
	for id, existing := range s.data {
		if id != user.ID && existing.Username == user.Username {
			return storage.ErrAlreadyExists
		}
	}

	user.UpdatedAt = time.Now()
	stored := *user
	s.data[user.ID] = &stored
	return nil
}

func (s *UserStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[id]; !exists {
		return storage.ErrNotFound
	}

	delete(s.data, id)
	return nil
}

func (s *UserStore) HasAdmin(ctx context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.data {
		if user.IsAdmin() {
			return true, nil
		}
	}
	return false, nil
}

// LoginEventStore implements in-memory login audit storage
type LoginEventStore struct {
	mu     sync.RWMutex
	events []*domain.LoginEvent
}

func (s *LoginEventStore) Create(ctx context.Context, event *domain.LoginEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	stored := *event
	s.events = append(s.events, &stored)
	return nil
}

func (s *LoginEventStore) GetRecentByUsername(ctx context.Context, username string, limit int) ([]*domain.LoginEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]*domain.LoginEvent, 0)
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].Username != username {
			continue
		}
		out := *s.events[i]
		events = append(events, &out)
		if limit > 0 && len(events) == limit {
			break
		}
	}
	return events, nil
}
