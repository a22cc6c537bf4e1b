package memory

import (
	"errors"
	"testing"
	"time"

	"github.com/sirosfoundation/relay-panel/internal/domain"
	"github.com/sirosfoundation/relay-panel/internal/storage"
)

func TestNewStore(t *testing.T) {
	store := NewStore()

	if store == nil {
		t.Fatal("NewStore() returned nil")
	}
	if store.Users() == nil {
		t.Error("Users() returned nil")
	}
	if store.LoginEvents() == nil {
		t.Error("LoginEvents() returned nil")
	}
	if err := store.Ping(t.Context()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestUserStore_CreateAssignsIDs(t *testing.T) {
	ctx := t.Context()
	store := NewStore()

	alice := &domain.User{Username: "alice", Role: domain.RoleUser, Active: true}
	bob := &domain.User{Username: "bob", Role: domain.RoleUser, Active: true}

	if err := store.Users().Create(ctx, alice); err != nil {
		t.Fatalf("Create(alice) error = %v", err)
	}
	if err := store.Users().Create(ctx, bob); err != nil {
		t.Fatalf("Create(bob) error = %v", err)
	}

	if alice.ID != 1 || bob.ID != 2 {
		t.Errorf("IDs = %d, %d, want 1, 2", alice.ID, bob.ID)
	}
	if alice.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestUserStore_CreateDuplicateUsername(t *testing.T) {
	ctx := t.Context()
	store := NewStore()

	if err := store.Users().Create(ctx, &domain.User{Username: "alice"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	err := store.Users().Create(ctx, &domain.User{Username: "alice"})
	if !errors.Is(err, storage.ErrAlreadyExists) {
		t.Errorf("Create() duplicate error = %v, want ErrAlreadyExists", err)
	}
}

func TestUserStore_CreateEmptyUsername(t *testing.T) {
	err := NewStore().Users().Create(t.Context(), &domain.User{})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Create() error = %v, want ErrInvalidInput", err)
	}
}

func TestUserStore_GetByUsernameIsCaseSensitive(t *testing.T) {
	ctx := t.Context()
	store := NewStore()

	if err := store.Users().Create(ctx, &domain.User{Username: "Alice"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := store.Users().GetByUsername(ctx, "Alice"); err != nil {
		t.Errorf("GetByUsername(Alice) error = %v", err)
	}
	if _, err := store.Users().GetByUsername(ctx, "alice"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetByUsername(alice) error = %v, want ErrNotFound", err)
	}
}

func TestUserStore_ReturnsCopies(t *testing.T) {
	ctx := t.Context()
	store := NewStore()

	user := &domain.User{Username: "alice", Active: true}
	if err := store.Users().Create(ctx, user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	user.Active = false

	got, err := store.Users().GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if !got.Active {
		t.Error("mutating the caller's value must not change the stored user")
	}

	got.Username = "mallory"
	again, _ := store.Users().GetByID(ctx, user.ID)
	if again.Username != "alice" {
		t.Error("mutating a returned value must not change the stored user")
	}
}

func TestUserStore_Update(t *testing.T) {
	ctx := t.Context()
	store := NewStore()

	user := &domain.User{Username: "alice", Credits: 1}
	if err := store.Users().Create(ctx, user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	user.Credits = 10
	if err := store.Users().Update(ctx, user); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, _ := store.Users().GetByID(ctx, user.ID)
	if got.Credits != 10 {
		t.Errorf("Credits = %d, want 10", got.Credits)
	}

	missing := &domain.User{ID: 99, Username: "ghost"}
	if err := store.Users().Update(ctx, missing); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
	}
}

func TestUserStore_UpdateRenameConflict(t *testing.T) {
	ctx := t.Context()
	store := NewStore()

	alice := &domain.User{Username: "alice"}
	bob := &domain.User{Username: "bob"}
	_ = store.Users().Create(ctx, alice)
	_ = store.Users().Create(ctx, bob)

	bob.Username = "alice"
	if err := store.Users().Update(ctx, bob); !errors.Is(err, storage.ErrAlreadyExists) {
		t.Errorf("Update() error = %v, want ErrAlreadyExists", err)
	}
}

func TestUserStore_DeleteAndGetAll(t *testing.T) {
	ctx := t.Context()
	store := NewStore()

	for _, name := range []string{"a", "b", "c"} {
		if err := store.Users().Create(ctx, &domain.User{Username: name}); err != nil {
			t.Fatalf("Create(%s) error = %v", name, err)
		}
	}

	if err := store.Users().Delete(ctx, 2); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Users().Delete(ctx, 2); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}

	users, err := store.Users().GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	if len(users) != 2 || users[0].Username != "a" || users[1].Username != "c" {
		t.Errorf("GetAll() = %v, want [a c]", users)
	}
}

func TestUserStore_HasAdmin(t *testing.T) {
	ctx := t.Context()
	store := NewStore()

	has, err := store.Users().HasAdmin(ctx)
	if err != nil || has {
		t.Fatalf("HasAdmin() on empty store = %v, %v", has, err)
	}

	_ = store.Users().Create(ctx, &domain.User{Username: "alice", Role: domain.RoleUser})
	has, _ = store.Users().HasAdmin(ctx)
	if has {
		t.Error("HasAdmin() should be false with only users")
	}

	_ = store.Users().Create(ctx, &domain.User{Username: "root", Role: domain.RoleAdmin})
	has, _ = store.Users().HasAdmin(ctx)
	if !has {
		t.Error("HasAdmin() should be true after creating an admin")
	}
}

func TestLoginEventStore_GetRecentByUsername(t *testing.T) {
	ctx := t.Context()
	store := NewStore()
	base := time.Now()

	for i := 0; i < 5; i++ {
		event := &domain.LoginEvent{
			ID:        string(rune('a' + i)),
			Username:  "alice",
			Success:   i%2 == 0,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := store.LoginEvents().Create(ctx, event); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	_ = store.LoginEvents().Create(ctx, &domain.LoginEvent{ID: "z", Username: "bob"})

	events, err := store.LoginEvents().GetRecentByUsername(ctx, "alice", 3)
	if err != nil {
		t.Fatalf("GetRecentByUsername() error = %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("len(events) = %d, want 3", len(events))
	}
	if events[0].ID != "e" || events[2].ID != "c" {
		t.Errorf("events not newest first: %s..%s", events[0].ID, events[2].ID)
	}

	all, _ := store.LoginEvents().GetRecentByUsername(ctx, "alice", 0)
	if len(all) != 5 {
		t.Errorf("unlimited query returned %d events, want 5", len(all))
	}
}
