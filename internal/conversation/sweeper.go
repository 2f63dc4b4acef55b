package conversation

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/wolfman30/pharmacy-ai-platform/pkg/logging"
)

// Sweeper runs ContextStore.Sweep on a cron schedule.
type Sweeper struct {
	cron   *cron.Cron
	store  *ContextStore
	logger *logging.Logger
}

// NewSweeper schedules the sweep; schedule accepts cron specs and "@every 15m".
func NewSweeper(store *ContextStore, schedule string, logger *logging.Logger) (*Sweeper, error) {
	if logger == nil {
		logger = logging.Default()
	}
	s := &Sweeper{cron: cron.New(), store: store, logger: logger}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("conversation: invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Sweeper) run() {
	removed, err := s.store.Sweep(context.Background())
	if err != nil {
		s.logger.Error("context sweep failed", "error", err)
		return
	}
	if removed > 0 {
		s.logger.Info("context cache swept", "evicted", removed)
	}
}

// Start begins the schedule in its own goroutine.
func (s *Sweeper) Start() {
	s.cron.Start()
	s.logger.Info("context sweeper started")
}

// Stop halts the schedule and waits for a running sweep or ctx, whichever is first.
func (s *Sweeper) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
