package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sirosfoundation/relay-panel/pkg/config"
)

// ChallengeSweeper periodically drops expired challenges so abandoned
// logins do not accumulate in memory.
type ChallengeSweeper struct {
	interval   time.Duration
	challenges *ChallengeStore
	logger     *zap.Logger
	now        func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewChallengeSweeper creates a new challenge sweeper
func NewChallengeSweeper(cfg config.ChallengeConfig, challenges *ChallengeStore, logger *zap.Logger) *ChallengeSweeper {
	return &ChallengeSweeper{
		interval:   time.Duration(cfg.CleanupIntervalSeconds) * time.Second,
		challenges: challenges,
		logger:     logger.Named("challenge-sweeper"),
		now:        time.Now,
	}
}

// Start begins the sweeper in the background
func (w *ChallengeSweeper) Start() {
	if w.interval <= 0 {
		w.logger.Info("Challenge sweeper disabled")
		return
	}

	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.wg.Add(1)

	go w.run()

	w.logger.Info("Challenge sweeper started",
		zap.Duration("interval", w.interval),
	)
}

// Stop gracefully stops the sweeper
func (w *ChallengeSweeper) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	w.wg.Wait()
	w.cancel = nil
	w.logger.Info("Challenge sweeper stopped")
}

func (w *ChallengeSweeper) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce()
		}
	}
}

// RunOnce performs a single sweep and returns the number of challenges removed
func (w *ChallengeSweeper) RunOnce() int {
	removed := w.challenges.DeleteExpired(w.now())
	if removed > 0 {
		w.logger.Debug("Swept expired challenges",
			zap.Int("removed", removed),
			zap.Int("remaining", w.challenges.Len()),
		)
	}
	return removed
}
