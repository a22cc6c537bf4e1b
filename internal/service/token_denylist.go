package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sirosfoundation/relay-panel/pkg/config"
)

// TokenDenylist holds revoked session token IDs.
// Entries are kept until the token itself expires, then cleaned up.
type TokenDenylist struct {
	config config.TokenDenylistConfig
	logger *zap.Logger
	now    func() time.Time

	mu       sync.RWMutex
	tokens   map[string]time.Time // jti -> token expiry
	started  bool
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewTokenDenylist creates a new token denylist
func NewTokenDenylist(cfg config.TokenDenylistConfig, logger *zap.Logger) *TokenDenylist {
	cfg.SetDefaults()
	return &TokenDenylist{
		config:   cfg,
		logger:   logger.Named("token-denylist"),
		now:      time.Now,
		tokens:   make(map[string]time.Time),
		stopChan: make(chan struct{}),
	}
}

// Enabled reports whether revocation is active
func (d *TokenDenylist) Enabled() bool {
	return d.config.Enabled
}

// Start begins the cleanup worker for expired entries
func (d *TokenDenylist) Start() {
	if !d.config.Enabled {
		d.logger.Info("Token denylist disabled")
		return
	}

	d.started = true
	d.wg.Add(1)
	go d.cleanupLoop()

	d.logger.Info("Token denylist started",
		zap.Int("cleanup_interval_seconds", d.config.CleanupIntervalSeconds),
	)
}

// Stop stops the cleanup worker. Safe to call more than once.
func (d *TokenDenylist) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopChan)
		d.wg.Wait()
		if d.started {
			d.logger.Info("Token denylist stopped")
		}
	})
}

func (d *TokenDenylist) cleanupLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(time.Duration(d.config.CleanupIntervalSeconds) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopChan:
			return
		case <-ticker.C:
			d.Cleanup()
		}
	}
}

// Cleanup removes entries whose token has expired and returns how many were removed
func (d *TokenDenylist) Cleanup() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	removed := 0

	for jti, expiry := range d.tokens {
		if now.After(expiry) {
			delete(d.tokens, jti)
			removed++
		}
	}

	if removed > 0 {
		d.logger.Debug("Cleaned up expired denylist entries",
			zap.Int("removed", removed),
			zap.Int("remaining", len(d.tokens)),
		)
	}
	return removed
}

// Add revokes the token with the given jti until expiry
func (d *TokenDenylist) Add(ctx context.Context, jti string, expiry time.Time) error {
	if !d.config.Enabled || jti == "" {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.tokens[jti] = expiry

	d.logger.Debug("Token revoked",
		zap.String("jti", jti),
		zap.Time("expiry", expiry),
	)
	return nil
}

// IsRevoked reports whether the token with the given jti has been revoked
func (d *TokenDenylist) IsRevoked(ctx context.Context, jti string) bool {
	if !d.config.Enabled || jti == "" {
		return false
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	expiry, exists := d.tokens[jti]
	if !exists {
		return false
	}
	return !d.now().After(expiry)
}

// Count returns the number of entries currently held
func (d *TokenDenylist) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.tokens)
}
