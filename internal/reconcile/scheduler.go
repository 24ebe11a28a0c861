package reconcile

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/proximity-service/internal/model"
)

// Scheduler runs consistency checks periodically in the background.
type Scheduler struct {
	orch     *Orchestrator
	interval time.Duration
}

// NewScheduler creates a background reconciler firing every interval.
func NewScheduler(orch *Orchestrator, interval time.Duration) *Scheduler {
	return &Scheduler{orch: orch, interval: interval}
}

// Run starts the periodic loop. It blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	interval := s.interval
	if interval <= 0 {
		interval = time.Hour
	}

	log := zap.L().With(zap.String("component", "reconcile.scheduler"))
	log.Info("starting reconcile scheduler", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("reconcile scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx, log)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, log *zap.Logger) {
	res, err := s.orch.ConsistencyCheck(ctx)
	if errors.Is(err, model.ErrBatchAlreadyRunning) {
		log.Debug("reconcile: batch already running, skipping tick")
		return
	}
	if err != nil {
		log.Error("reconcile: consistency check failed", zap.Error(err))
		return
	}
	if res.Added > 0 || res.Removed > 0 {
		log.Info("reconcile: drift repaired",
			zap.Int("added", res.Added),
			zap.Int("removed", res.Removed),
			zap.Int("errors", res.Errors),
		)
	}
}
