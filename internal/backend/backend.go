package backend

import (
	"context"
	"fmt"

	"github.com/sirosfoundation/relay-panel/internal/storage"
	"github.com/sirosfoundation/relay-panel/internal/storage/memory"
	"github.com/sirosfoundation/relay-panel/internal/storage/mongodb"
	"github.com/sirosfoundation/relay-panel/pkg/config"
)

// Type defines the type of storage backend
type Type string

const (
	// TypeMemory uses in-memory storage (for testing/development)
	TypeMemory Type = "memory"
	// TypeMongoDB uses MongoDB storage (for production)
	TypeMongoDB Type = "mongodb"
)

// Backend wraps the identity and audit stores with lifecycle management
type Backend interface {
	storage.Store
	// Type reports which storage engine backs this instance
	Type() Type
}

type memoryBackend struct {
	*memory.Store
}

func (b *memoryBackend) Type() Type { return TypeMemory }

type mongoBackend struct {
	*mongodb.Store
}

func (b *mongoBackend) Type() Type { return TypeMongoDB }

// New creates a storage backend based on the configuration
func New(ctx context.Context, cfg *config.Config) (Backend, error) {
	storageType := Type(cfg.Storage.Type)

	switch storageType {
	case TypeMemory, "":
		return &memoryBackend{Store: memory.NewStore()}, nil

	case TypeMongoDB:
		store, err := mongodb.NewStore(ctx, &cfg.Storage.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("failed to create MongoDB backend: %w", err)
		}
		return &mongoBackend{Store: store}, nil

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}
