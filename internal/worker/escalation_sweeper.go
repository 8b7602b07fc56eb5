package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const sweepLockKey = "support:escalation-sweep"

// Escalator escalates overdue tickets in one batch.
type Escalator interface {
	EscalateOverdue(ctx context.Context, limit int) (int, error)
}

// Locker guards a sweep so only one replica runs it at a time.
type Locker interface {
	TryLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key, token string) error
}

// EscalationSweeper periodically escalates tickets whose company response deadline passed,
// so they reach the admin queue without waiting for someone to open them.
type EscalationSweeper struct {
	escalator Escalator
	locker    Locker
	logger    *zap.Logger
	interval  time.Duration
	lockTTL   time.Duration
	batchSize int
	token     string
}

// NewEscalationSweeper builds a sweeper. A nil locker runs every tick unguarded.
func NewEscalationSweeper(escalator Escalator, locker Locker, logger *zap.Logger, interval, lockTTL time.Duration, batchSize int) *EscalationSweeper {
	if batchSize <= 0 {
		batchSize = 200
	}
	return &EscalationSweeper{
		escalator: escalator,
		locker:    locker,
		logger:    logger,
		interval:  interval,
		lockTTL:   lockTTL,
		batchSize: batchSize,
		token:     uuid.NewString(),
	}
}

// Run sweeps on every interval tick until ctx is cancelled.
func (s *EscalationSweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	s.logger.Info("escalation sweeper started", zap.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("escalation sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("escalation sweep failed", zap.Error(err))
			}
		}
	}
}

// SweepOnce escalates overdue tickets in batches until none remain.
// It returns zero without sweeping when another replica holds the lock.
func (s *EscalationSweeper) SweepOnce(ctx context.Context) (int, error) {
	if s.locker != nil {
		ok, err := s.locker.TryLock(ctx, sweepLockKey, s.token, s.lockTTL)
		if err != nil {
			return 0, err
		}
		if !ok {
			s.logger.Debug("escalation sweep held by another replica")
			return 0, nil
		}
		defer func() {
			if err := s.locker.Unlock(context.WithoutCancel(ctx), sweepLockKey, s.token); err != nil {
				s.logger.Warn("release sweep lock", zap.Error(err))
			}
		}()
	}

	total := 0
	for {
		n, err := s.escalator.EscalateOverdue(ctx, s.batchSize)
		total += n
		if err != nil {
			return total, err
		}
		if n < s.batchSize {
			break
		}
	}
	if total > 0 {
		s.logger.Info("escalated overdue tickets", zap.Int("count", total))
	}
	return total, nil
}
