package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/itsm-core/internal/config"
	"github.com/spec-kit/itsm-core/internal/persistence"
	"github.com/spec-kit/itsm-core/internal/service"
)

const runLockKey = "itsm:escalation:run-lock"

// EscalationWorker drives the evaluator on a fixed cadence. A Redis lock
// keeps overlapping instances from scanning at the same time; correctness
// does not depend on it, since the escalation-state CAS already prevents
// duplicate notifications.
type EscalationWorker struct {
	evaluator *service.EscalationService
	redis     *persistence.Redis
	logger    *zap.Logger
	cfg       config.EscalationConfig
	instance  string
}

// NewEscalationWorker constructs the worker.
func NewEscalationWorker(evaluator *service.EscalationService, redis *persistence.Redis, logger *zap.Logger, cfg config.EscalationConfig) *EscalationWorker {
	return &EscalationWorker{
		evaluator: evaluator,
		redis:     redis,
		logger:    logger,
		cfg:       cfg,
		instance:  uuid.NewString(),
	}
}

// Run blocks until ctx is cancelled, triggering one evaluation per tick.
// A fully failed run is reported and dropped: the next tick re-derives
// everything from current deadlines, so there is no backlog to replay.
func (w *EscalationWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval())
	defer ticker.Stop()

	w.logger.Info("escalation worker started",
		zap.Duration("interval", w.cfg.Interval()),
		zap.Int("warning_percent", w.cfg.WarningPercent),
		zap.Int("critical_minutes", w.cfg.CriticalMinutes))

	// First pass immediately; don't wait a full interval after boot.
	w.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("escalation worker stopped")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *EscalationWorker) runOnce(ctx context.Context) {
	if w.redis != nil {
		acquired, err := w.redis.AcquireLock(ctx, runLockKey, w.instance, w.cfg.LockTTL())
		if err != nil {
			// Redis being down only costs us the overlap guard.
			w.logger.Warn("run lock unavailable, proceeding unlocked", zap.Error(err))
		} else if !acquired {
			w.logger.Debug("another evaluator holds the run lock, skipping tick")
			return
		} else {
			defer func() {
				if err := w.redis.ReleaseLock(ctx, runLockKey, w.instance); err != nil {
					w.logger.Warn("failed to release run lock", zap.Error(err))
				}
			}()
		}
	}

	backoff := w.cfg.RetryBackoff()
	attempts := w.cfg.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		summary, err := w.evaluator.EvaluateAll(ctx)
		if err == nil {
			w.logger.Info("escalation run complete",
				zap.Int("evaluated", summary.Evaluated),
				zap.Int("notified", summary.Notified),
				zap.Int("breached", summary.Breached),
				zap.Int("failed", summary.Failed))
			return
		}
		if ctx.Err() != nil {
			return
		}
		w.logger.Warn("escalation run failed",
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	w.logger.Error("escalation run exhausted retries; next tick will self-heal")
}
