package domain

import (
	"context"
	"time"
)

// SessionRepository defines the persistence contract for onboarding sessions.
type SessionRepository interface {
	Create(ctx context.Context, session Session) error
	GetByID(ctx context.Context, id string) (Session, error)
	Update(ctx context.Context, session Session) error
	List(ctx context.Context, filter ListFilter) ([]Session, error)
}

// ListFilter holds optional criteria for listing sessions.
type ListFilter struct {
	Status *Status
	Limit  int
	Offset int
}

// CompensationStore persists a cancellation together with its compensating
// cleanup as one all-or-nothing transaction: the session update and the
// soft deletion of the tenant and admin account either all commit or none do.
type CompensationStore interface {
	CancelWithCleanup(ctx context.Context, session Session) error
}

// Tenant is the registry's view of a provisioned tenant.
type Tenant struct {
	ID          string
	Name        string
	Domain      string
	Plan        string
	TrialEndsAt time.Time
}

// NewTenant holds the fields needed to provision a tenant.
type NewTenant struct {
	Name      string
	Domain    string
	Plan      string
	TrialDays int
}

// TenantRegistry is the external collaborator owning tenant records.
// Create returns a ConflictError when the name or domain is taken; that
// constraint, not the pre-check, is the authoritative uniqueness guard.
type TenantRegistry interface {
	Create(ctx context.Context, t NewTenant) (Tenant, error)
	NameOrDomainTaken(ctx context.Context, name, domain string) (bool, error)
	EnableFeature(ctx context.Context, tenantID, feature string) error
	SoftDelete(ctx context.Context, id string) error
}

// Account is the registry's view of an administrator account.
type Account struct {
	ID        string
	TenantID  string
	Email     string
	FirstName string
	LastName  string
}

// NewAccount holds the fields needed to create an administrator account.
type NewAccount struct {
	TenantID  string
	Email     string
	FirstName string
	LastName  string
}

// AccountRegistry is the external collaborator owning admin accounts.
type AccountRegistry interface {
	Create(ctx context.Context, a NewAccount) (Account, error)
	EmailTaken(ctx context.Context, email string) (bool, error)
	SoftDelete(ctx context.Context, id string) error
}

// BillingGateway arranges a billable profile for paid plans. It is only
// invoked for non-free plans.
type BillingGateway interface {
	Provision(ctx context.Context, tenantID, plan string) (string, error)
}

// VerificationMessage carries everything the notifier needs to deliver a
// verification email. The token travels here and nowhere else.
type VerificationMessage struct {
	Email        string
	FirstName    string
	TenantName   string
	Token        string
	OnboardingID string
}

// WelcomeMessage carries the fields for the post-completion welcome email.
type WelcomeMessage struct {
	Email      string
	FirstName  string
	TenantName string
}

// Notifier delivers onboarding emails. Notifications are not retractable;
// cancellation never attempts to undo them.
type Notifier interface {
	SendVerification(ctx context.Context, msg VerificationMessage) error
	SendWelcome(ctx context.Context, msg WelcomeMessage) error
}

// TransitionValidator checks whether an event is valid from the current
// step and returns the destination step.
type TransitionValidator interface {
	Apply(ctx context.Context, current Step, event Event) (Step, error)
}
