package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/onboardiq/onboardiq/internal/domain"
)

const tracerName = "github.com/onboardiq/onboardiq/internal/adapter/otel"

// sessionStore is what the tracing decorator wraps: the session
// repository together with its transactional cancellation.
type sessionStore interface {
	domain.SessionRepository
	domain.CompensationStore
}

// TracingSessionStore wraps a session store with OpenTelemetry tracing.
// Each method creates a span with semantic attributes and records errors.
type TracingSessionStore struct {
	next   sessionStore
	tracer trace.Tracer
}

// Compile-time checks: TracingSessionStore implements both ports.
var (
	_ domain.SessionRepository = (*TracingSessionStore)(nil)
	_ domain.CompensationStore = (*TracingSessionStore)(nil)
)

// NewTracingSessionStore creates a tracing decorator around the given store.
func NewTracingSessionStore(next sessionStore) *TracingSessionStore {
	return &TracingSessionStore{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (s *TracingSessionStore) Create(ctx context.Context, session domain.Session) error {
	ctx, span := s.tracer.Start(ctx, "SessionRepository.Create",
		trace.WithAttributes(
			attribute.String("session.id", session.ID),
			attribute.String("session.step", string(session.CurrentStep)),
		),
	)
	defer span.End()

	err := s.next.Create(ctx, session)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (s *TracingSessionStore) GetByID(ctx context.Context, id string) (domain.Session, error) {
	ctx, span := s.tracer.Start(ctx, "SessionRepository.GetByID",
		trace.WithAttributes(attribute.String("session.id", id)),
	)
	defer span.End()

	session, err := s.next.GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return session, err
}

func (s *TracingSessionStore) Update(ctx context.Context, session domain.Session) error {
	ctx, span := s.tracer.Start(ctx, "SessionRepository.Update",
		trace.WithAttributes(
			attribute.String("session.id", session.ID),
			attribute.String("session.step", string(session.CurrentStep)),
			attribute.String("session.status", string(session.Status)),
		),
	)
	defer span.End()

	err := s.next.Update(ctx, session)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (s *TracingSessionStore) List(ctx context.Context, filter domain.ListFilter) ([]domain.Session, error) {
	ctx, span := s.tracer.Start(ctx, "SessionRepository.List",
		trace.WithAttributes(
			attribute.Int("filter.limit", filter.Limit),
			attribute.Int("filter.offset", filter.Offset),
		),
	)
	defer span.End()

	if filter.Status != nil {
		span.SetAttributes(attribute.String("filter.status", string(*filter.Status)))
	}

	sessions, err := s.next.List(ctx, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int("result.count", len(sessions)))
	}
	return sessions, err
}

func (s *TracingSessionStore) CancelWithCleanup(ctx context.Context, session domain.Session) error {
	ctx, span := s.tracer.Start(ctx, "SessionRepository.CancelWithCleanup",
		trace.WithAttributes(
			attribute.String("session.id", session.ID),
			attribute.Bool("cleanup.tenant", session.TenantID != ""),
			attribute.Bool("cleanup.account", session.AdminUserID != ""),
		),
	)
	defer span.End()

	err := s.next.CancelWithCleanup(ctx, session)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
