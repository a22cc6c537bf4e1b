package middleware

import (
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sirosfoundation/relay-panel/pkg/config"
)

// AuthRateLimiter limits authentication attempts per client.
// A client that exhausts its budget is locked out for a fixed period.
type AuthRateLimiter struct {
	config config.AuthRateLimitConfig
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	limiters map[string]*authLimiter

	cleanupInterval time.Duration
	lastCleanup     time.Time
}

// authLimiter tracks rate limiting state for a single identifier
type authLimiter struct {
	limiter    *rate.Limiter
	lastSeen   time.Time
	lockoutEnd time.Time
}

// NewAuthRateLimiter creates a new rate limiter for auth endpoints
func NewAuthRateLimiter(cfg config.AuthRateLimitConfig, logger *zap.Logger) *AuthRateLimiter {
	cfg.SetDefaults()
	return &AuthRateLimiter{
		config:          cfg,
		logger:          logger.Named("auth-ratelimit"),
		now:             time.Now,
		limiters:        make(map[string]*authLimiter),
		cleanupInterval: 10 * time.Minute,
		lastCleanup:     time.Now(),
	}
}

// getLimiter returns the limiter for identifier, creating it if needed. Caller holds r.mu.
func (r *AuthRateLimiter) getLimiter(identifier string, now time.Time) *authLimiter {
	if now.Sub(r.lastCleanup) > r.cleanupInterval {
		r.cleanup(now)
	}

	limiter, exists := r.limiters[identifier]
	if exists {
		limiter.lastSeen = now
		return limiter
	}

	// MaxAttempts per WindowSeconds, half of it available as burst
	rateLimit := rate.Limit(float64(r.config.MaxAttempts) / float64(r.config.WindowSeconds))
	burst := int(math.Ceil(float64(r.config.MaxAttempts) / 2.0))
	if burst < 1 {
		burst = 1
	}

	limiter = &authLimiter{
		limiter:  rate.NewLimiter(rateLimit, burst),
		lastSeen: now,
	}
	r.limiters[identifier] = limiter
	return limiter
}

// cleanup drops limiters idle for 30 minutes and not locked out. Caller holds r.mu.
func (r *AuthRateLimiter) cleanup(now time.Time) {
	cutoff := now.Add(-30 * time.Minute)
	for key, limiter := range r.limiters {
		if limiter.lastSeen.Before(cutoff) && now.After(limiter.lockoutEnd) {
			delete(r.limiters, key)
		}
	}
	r.lastCleanup = now
}

// Allow reports whether a request from identifier may proceed
func (r *AuthRateLimiter) Allow(identifier string) bool {
	if !r.config.Enabled {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	limiter := r.getLimiter(identifier, now)

	if now.Before(limiter.lockoutEnd) {
		return false
	}

	if !limiter.limiter.AllowN(now, 1) {
		lockout := time.Duration(r.config.LockoutSeconds) * time.Second
		limiter.lockoutEnd = now.Add(lockout)

		r.logger.Warn("Auth rate limit exceeded, applying lockout",
			zap.String("identifier", identifier),
			zap.Duration("lockout_duration", lockout),
		)
		return false
	}

	return true
}

// RecordFailure makes a failed attempt cost one extra token
func (r *AuthRateLimiter) RecordFailure(identifier string) {
	if !r.config.Enabled {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.getLimiter(identifier, now).limiter.AllowN(now, 1)
}

// Len returns the number of tracked identifiers
func (r *AuthRateLimiter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.limiters)
}

// AuthRateLimitMiddleware rate limits auth endpoints per client IP.
// Responses with status 400, 401, 403 or 429 count as failures.
func AuthRateLimitMiddleware(rl *AuthRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.config.Enabled {
			c.Next()
			return
		}

		identifier := c.ClientIP()
		if identifier == "" {
			identifier = "_anonymous"
		}

		if !rl.Allow(identifier) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "too many authentication attempts, try again later",
			})
			return
		}

		c.Next()

		switch c.Writer.Status() {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
			rl.RecordFailure(identifier)
		}
	}
}
