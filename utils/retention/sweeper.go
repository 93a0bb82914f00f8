// Package retention removes old runs and their conversations on a schedule.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/kris-hansen/personaflow/utils/config"
	"github.com/kris-hansen/personaflow/utils/metrics"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Pruner deletes runs created before a cutoff, together with their turns
type Pruner interface {
	DeleteRunsBefore(ctx context.Context, t time.Time) ([]string, error)
}

// Sweeper periodically prunes runs older than maxAge
type Sweeper struct {
	cron   *cron.Cron
	store  Pruner
	maxAge time.Duration
	now    func() time.Time
	log    zerolog.Logger
}

// NewSweeper schedules a sweep with the given cron spec ("@hourly", "0 3 * * *", ...)
func NewSweeper(store Pruner, maxAge time.Duration, schedule string) (*Sweeper, error) {
	if maxAge <= 0 {
		return nil, fmt.Errorf("retention max_age must be positive, got %s", maxAge)
	}
	s := &Sweeper{
		cron:   cron.New(),
		store:  store,
		maxAge: maxAge,
		now:    time.Now,
		log:    config.Logger("retention"),
	}
	if _, err := s.cron.AddFunc(schedule, func() {
		if _, err := s.Sweep(context.Background()); err != nil {
			s.log.Error().Err(err).Msg("retention sweep failed")
		}
	}); err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start starts the scheduler
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for a running sweep
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Sweep prunes once and returns the ids of the removed runs
func (s *Sweeper) Sweep(ctx context.Context) ([]string, error) {
	cutoff := s.now().Add(-s.maxAge)
	removed, err := s.store.DeleteRunsBefore(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("error pruning runs: %w", err)
	}
	metrics.RunsPruned.Add(float64(len(removed)))
	if len(removed) > 0 {
		s.log.Info().Int("runs", len(removed)).Time("cutoff", cutoff).Msg("pruned old runs")
	}
	return removed, nil
}
