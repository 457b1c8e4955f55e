// Package service implements the registry's lifecycle and ownership
// operations. All coordination with the scheduler happens through the
// stores' conditional writes: every mutation here loads a record, applies a
// model transition, and writes back conditional on the loaded version,
// retrying from a fresh read when a racing writer got there first.
package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"deathnote/internal/platform/metrics"
	"deathnote/internal/registry/events"
	"deathnote/internal/registry/models"
	id "deathnote/pkg/domain"
)

// writeAttempts bounds optimistic-concurrency retry loops. Contention on a
// single person record is scheduler-vs-request only, so losing twice in a
// row already means the record reached a state that decides the outcome.
const writeAttempts = 3

type PersonStore interface {
	Create(ctx context.Context, p *models.Person) error
	FindByID(ctx context.Context, personID id.PersonID) (*models.Person, error)
	List(ctx context.Context) ([]*models.Person, error)
	ListDue(ctx context.Context, now time.Time) ([]*models.Person, error)
	Update(ctx context.Context, p *models.Person) error
	Delete(ctx context.Context, personID id.PersonID) error
}

type NoteStore interface {
	Create(ctx context.Context, n *models.DeathNote) error
	FindByID(ctx context.Context, noteID id.NoteID) (*models.DeathNote, error)
	List(ctx context.Context) ([]*models.DeathNote, error)
	ListContaining(ctx context.Context, personID id.PersonID) ([]*models.DeathNote, error)
	CountOwned(ctx context.Context) (int, error)
	Update(ctx context.Context, n *models.DeathNote) error
}

type OwnerStore interface {
	Create(ctx context.Context, o *models.Owner) error
	FindByID(ctx context.Context, ownerID id.OwnerID) (*models.Owner, error)
	Update(ctx context.Context, o *models.Owner) error
}

type EventPublisher interface {
	Emit(ctx context.Context, event events.Event) error
}

// Config carries the tunable lifecycle knobs.
type Config struct {
	// DefaultDeadline is how long a freshly registered person has before
	// the scheduler finalizes them.
	DefaultDeadline time.Duration
	// DetailDeadline extends the deadline (relative to entry time) while
	// details are being specified.
	DetailDeadline time.Duration
	// SingleOwnedNote enforces that at most one note is created with a
	// non-nil initial owner.
	SingleOwnedNote bool
}

// DefaultConfig returns the canonical 40s/400s deadlines with the
// single-owned-note policy enabled.
func DefaultConfig() Config {
	return Config{
		DefaultDeadline: 40 * time.Second,
		DetailDeadline:  400 * time.Second,
		SingleOwnedNote: true,
	}
}

// Service orchestrates person lifecycle and death-note ownership.
type Service struct {
	persons PersonStore
	notes   NoteStore
	owners  OwnerStore
	cfg     Config
	logger  *slog.Logger
	events  EventPublisher
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithEventPublisher(publisher EventPublisher) Option {
	return func(s *Service) {
		s.events = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service.
func New(persons PersonStore, notes NoteStore, owners OwnerStore, cfg Config, opts ...Option) *Service {
	s := &Service{
		persons: persons,
		notes:   notes,
		owners:  owners,
		cfg:     cfg,
		tracer:  otel.Tracer("deathnote/registry"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

func (s *Service) emit(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Emit(ctx, event); err != nil {
		// Event emission is best-effort; the write already succeeded.
		s.logger.WarnContext(ctx, "event emission failed",
			"event", event.Type, "error", err)
	}
}
