// Package river delivers onboarding emails as durable jobs: the enqueue
// is the synchronous notifier call the workflow sees, and the worker
// performs delivery with River's retry semantics.
package river

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/riverqueue/river"

	"github.com/onboardiq/onboardiq/internal/domain"
)

// Compile-time check: Notifier implements domain.Notifier.
var _ domain.Notifier = (*Notifier)(nil)

// Email job templates.
const (
	TemplateVerification = "verification"
	TemplateWelcome      = "welcome"
)

// EmailJobArgs carries everything needed to deliver one onboarding email.
// River serializes this as JSON into its job queue table. The token rides
// along for verification emails and must never appear in logs.
type EmailJobArgs struct {
	Template     string `json:"template"`
	Email        string `json:"email"`
	FirstName    string `json:"first_name"`
	TenantName   string `json:"tenant_name"`
	Token        string `json:"token,omitempty"`
	OnboardingID string `json:"onboarding_id,omitempty"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (EmailJobArgs) Kind() string { return "email.send" }

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// Notifier implements domain.Notifier by enqueuing River email jobs.
// An enqueue failure is the delivery error the verification step treats
// as fatal.
type Notifier struct {
	client *Client
}

// NewNotifier creates a notifier backed by the given River client.
func NewNotifier(client *Client) *Notifier {
	return &Notifier{client: client}
}

func (n *Notifier) SendVerification(ctx context.Context, msg domain.VerificationMessage) error {
	_, err := n.client.Insert(ctx, EmailJobArgs{
		Template:     TemplateVerification,
		Email:        msg.Email,
		FirstName:    msg.FirstName,
		TenantName:   msg.TenantName,
		Token:        msg.Token,
		OnboardingID: msg.OnboardingID,
	}, nil)
	if err != nil {
		return fmt.Errorf("enqueuing verification email: %w", err)
	}
	return nil
}

func (n *Notifier) SendWelcome(ctx context.Context, msg domain.WelcomeMessage) error {
	_, err := n.client.Insert(ctx, EmailJobArgs{
		Template:   TemplateWelcome,
		Email:      msg.Email,
		FirstName:  msg.FirstName,
		TenantName: msg.TenantName,
	}, nil)
	if err != nil {
		return fmt.Errorf("enqueuing welcome email: %w", err)
	}
	return nil
}
