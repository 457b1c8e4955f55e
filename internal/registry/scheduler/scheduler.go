// Package scheduler runs the background sweep that finalizes persons whose
// death deadline has elapsed. The scheduler holds no state of its own: each
// tick reads the due set and funnels every candidate through the same
// conditional-write finalization path that request handlers use, so a race
// between a sweep and a request is decided by the store, not by locking.
package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"deathnote/internal/platform/metrics"
	"deathnote/internal/registry/models"
	id "deathnote/pkg/domain"
)

const (
	DefaultInterval    = 5 * time.Second
	DefaultConcurrency = 8
)

// DueLister reads the set of living persons whose deadline is at or before
// the given instant.
type DueLister interface {
	ListDue(ctx context.Context, now time.Time) ([]*models.Person, error)
}

// Finalizer applies the overdue transition to one person. The boolean
// result reports whether the call performed the finalization.
type Finalizer interface {
	FinalizeOverdue(ctx context.Context, personID id.PersonID, now time.Time) (*models.Person, bool, error)
}

// SweepReport summarizes one scheduler tick.
type SweepReport struct {
	Examined  int `json:"examined"`
	Finalized int `json:"finalized"`
	Failed    int `json:"failed"`
}

// Scheduler periodically finalizes overdue persons.
type Scheduler struct {
	lister      DueLister
	finalizer   Finalizer
	interval    time.Duration
	concurrency int
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
}

type Option func(s *Scheduler)

func WithInterval(interval time.Duration) Option {
	return func(s *Scheduler) {
		s.interval = interval
	}
}

func WithConcurrency(concurrency int) Option {
	return func(s *Scheduler) {
		s.concurrency = concurrency
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

func New(lister DueLister, finalizer Finalizer, opts ...Option) *Scheduler {
	s := &Scheduler{
		lister:      lister,
		finalizer:   finalizer,
		interval:    DefaultInterval,
		concurrency: DefaultConcurrency,
		tracer:      otel.Tracer("deathnote/scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Run sweeps on the configured interval until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "scheduler started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "scheduler stopped")
			return
		case now := <-ticker.C:
			report, err := s.Sweep(ctx, now.UTC())
			if err != nil {
				s.logger.ErrorContext(ctx, "sweep failed", "error", err)
				continue
			}
			if report.Finalized > 0 || report.Failed > 0 {
				s.logger.InfoContext(ctx, "sweep completed",
					"examined", report.Examined,
					"finalized", report.Finalized,
					"failed", report.Failed)
			}
		}
	}
}

// Sweep finalizes every person due at now. Failures on individual persons
// never stop the fan-out; a finalization that loses a version race to a
// concurrent writer and reloads a terminal or rescheduled record counts as
// neither finalized nor failed.
func (s *Scheduler) Sweep(ctx context.Context, now time.Time) (SweepReport, error) {
	ctx, span := s.tracer.Start(ctx, "scheduler.Sweep")
	defer span.End()

	started := time.Now()
	due, err := s.lister.ListDue(ctx, now)
	if err != nil {
		return SweepReport{}, err
	}

	var finalized, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, p := range due {
		personID := p.ID
		g.Go(func() error {
			_, done, err := s.finalizer.FinalizeOverdue(gctx, personID, now)
			if err != nil {
				failed.Add(1)
				if s.metrics != nil {
					s.metrics.SweepFailures.Inc()
				}
				s.logger.WarnContext(gctx, "finalization failed",
					"person_id", personID, "error", err)
				return nil
			}
			if done {
				finalized.Add(1)
			}
			return nil
		})
	}
	// Goroutines always return nil; Wait only joins them.
	_ = g.Wait()

	if s.metrics != nil {
		s.metrics.SweepDuration.Observe(time.Since(started).Seconds())
	}
	return SweepReport{
		Examined:  len(due),
		Finalized: int(finalized.Load()),
		Failed:    int(failed.Load()),
	}, nil
}
