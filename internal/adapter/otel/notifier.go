package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/onboardiq/onboardiq/internal/domain"
)

// TracingNotifier wraps a domain.Notifier with OpenTelemetry tracing.
// Span attributes never include the verification token.
type TracingNotifier struct {
	next   domain.Notifier
	tracer trace.Tracer
}

// Compile-time check: TracingNotifier implements domain.Notifier.
var _ domain.Notifier = (*TracingNotifier)(nil)

// NewTracingNotifier creates a tracing decorator around the given notifier.
func NewTracingNotifier(next domain.Notifier) *TracingNotifier {
	return &TracingNotifier{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (n *TracingNotifier) SendVerification(ctx context.Context, msg domain.VerificationMessage) error {
	ctx, span := n.tracer.Start(ctx, "Notifier.SendVerification",
		trace.WithAttributes(
			attribute.String("email.template", "verification"),
			attribute.String("session.id", msg.OnboardingID),
		),
	)
	defer span.End()

	err := n.next.SendVerification(ctx, msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (n *TracingNotifier) SendWelcome(ctx context.Context, msg domain.WelcomeMessage) error {
	ctx, span := n.tracer.Start(ctx, "Notifier.SendWelcome",
		trace.WithAttributes(
			attribute.String("email.template", "welcome"),
			attribute.String("tenant.name", msg.TenantName),
		),
	)
	defer span.End()

	err := n.next.SendWelcome(ctx, msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
