// Package retention runs the background sweep that permanently removes
// soft-deleted documents and answers once they age past the configured
// retention window.
package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/antwort-dev/auskunft/pkg/observability"
	"github.com/antwort-dev/auskunft/pkg/storage"
)

// Sweeper periodically purges soft-deleted records from a store.
type Sweeper struct {
	store    storage.Store
	maxAge   time.Duration
	schedule string
	logger   *slog.Logger
	cron     *cron.Cron
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithLogger sets the logger used for sweep reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) { s.logger = logger }
}

// New creates a sweeper that deletes records soft-deleted more than
// maxAge ago, on the given cron schedule (standard five-field syntax or
// a descriptor such as "@hourly").
func New(store storage.Store, schedule string, maxAge time.Duration, opts ...Option) (*Sweeper, error) {
	s := &Sweeper{
		store:    store,
		maxAge:   maxAge,
		schedule: schedule,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.cron = cron.New()
	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins scheduled sweeping. It returns immediately; sweeps run on
// the cron's own goroutine.
func (s *Sweeper) Start() {
	s.logger.Info("retention sweeper started",
		"schedule", s.schedule,
		"max_age", s.maxAge.String(),
	)
	s.cron.Start()
}

// Stop halts scheduling and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep purges eligible records once, outside the schedule. Used at
// startup and by tests.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.maxAge)
	purged, err := s.store.PurgeDeleted(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		observability.RetentionPurgedTotal.Add(float64(purged))
	}
	return purged, nil
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	purged, err := s.Sweep(ctx)
	if err != nil {
		s.logger.Error("retention sweep failed", "error", err)
		return
	}
	if purged > 0 {
		s.logger.Info("retention sweep purged records", "count", purged)
	}
}
