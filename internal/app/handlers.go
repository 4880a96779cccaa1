package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/onboardiq/onboardiq/internal/domain"
)

// stepResult is a step handler's outcome. Exactly one of event, pause,
// or done is meaningful: an event advances the workflow, pause suspends
// it awaiting external input, done finalizes the session.
type stepResult struct {
	event domain.Event
	pause bool
	done  bool
}

// stepHandler is the unit of logic for one workflow step. Handlers read
// the session's immutable data snapshot plus already-populated fields and
// are idempotent: re-running a step whose side effects are already
// recorded on the session is a safe no-op.
type stepHandler func(ctx context.Context, sess *domain.Session) (stepResult, error)

// setupTenant provisions the tenant record. A registry uniqueness
// violation here means a concurrent start won the race past the advisory
// pre-check; it fails the step like any other collaborator error.
func (s *OnboardingService) setupTenant(ctx context.Context, sess *domain.Session) (stepResult, error) {
	if sess.TenantID != "" {
		return stepResult{event: domain.EventTenantCreated}, nil
	}

	tenant, err := s.tenants.Create(ctx, domain.NewTenant{
		Name:      sess.Data.TenantName,
		Domain:    sess.Data.TenantDomain,
		Plan:      sess.Data.Plan,
		TrialDays: sess.Data.TrialDays,
	})
	if err != nil {
		return stepResult{}, fmt.Errorf("creating tenant: %w", err)
	}

	sess.TenantID = tenant.ID
	sess.NextAction = "Creating administrator account"
	return stepResult{event: domain.EventTenantCreated}, nil
}

// createAdmin provisions the administrator account scoped to the new
// tenant, re-checking email uniqueness first.
func (s *OnboardingService) createAdmin(ctx context.Context, sess *domain.Session) (stepResult, error) {
	if sess.AdminUserID != "" {
		return stepResult{event: domain.EventAdminCreated}, nil
	}

	taken, err := s.accounts.EmailTaken(ctx, sess.Data.AdminEmail)
	if err != nil {
		return stepResult{}, fmt.Errorf("checking admin email: %w", err)
	}
	if taken {
		return stepResult{}, &domain.ConflictError{Field: "admin email", Value: sess.Data.AdminEmail}
	}

	account, err := s.accounts.Create(ctx, domain.NewAccount{
		TenantID:  sess.TenantID,
		Email:     sess.Data.AdminEmail,
		FirstName: sess.Data.AdminFirstName,
		LastName:  sess.Data.AdminLastName,
	})
	if err != nil {
		return stepResult{}, fmt.Errorf("creating admin account: %w", err)
	}

	sess.AdminUserID = account.ID
	sess.NextAction = "Selecting plan"
	return stepResult{event: domain.EventAdminCreated}, nil
}

// selectPlan is pure computation: paid plans route through payment setup,
// free plans skip it. Always safe to re-run.
func (s *OnboardingService) selectPlan(_ context.Context, sess *domain.Session) (stepResult, error) {
	if sess.Data.PaidPlan() {
		sess.NextAction = "Arranging billing"
		return stepResult{event: domain.EventPaidPlanSelected}, nil
	}
	sess.NextAction = "Configuring features"
	return stepResult{event: domain.EventFreePlanSelected}, nil
}

// setupPayment arranges a billing profile. This step is only reached for
// paid plans, so a gateway error fails the step: a paid tenant without
// billing configured is not a valid onboarding outcome.
func (s *OnboardingService) setupPayment(ctx context.Context, sess *domain.Session) (stepResult, error) {
	if sess.BillingRef != "" {
		return stepResult{event: domain.EventPaymentArranged}, nil
	}

	ref, err := s.billing.Provision(ctx, sess.TenantID, sess.Data.Plan)
	if err != nil {
		return stepResult{}, fmt.Errorf("provisioning billing profile: %w", err)
	}

	sess.BillingRef = ref
	sess.NextAction = "Configuring features"
	return stepResult{event: domain.EventPaymentArranged}, nil
}

// configureFeatures applies each requested feature flag to the tenant.
// The flag set is deterministic and re-applying a flag is idempotent, so
// a partial failure can simply fail the step and be re-run.
func (s *OnboardingService) configureFeatures(ctx context.Context, sess *domain.Session) (stepResult, error) {
	for _, feature := range sess.Data.Features {
		if err := s.tenants.EnableFeature(ctx, sess.TenantID, feature); err != nil {
			return stepResult{}, fmt.Errorf("enabling feature %q: %w", feature, err)
		}
	}

	sess.NextAction = "Verifying email address"
	return stepResult{event: domain.EventFeaturesConfigured}, nil
}

// requestVerification issues a token and delivers it, then pauses the
// workflow until the client supplies the token through Verify. Sessions
// with autoVerify skip straight through without a token ever existing.
func (s *OnboardingService) requestVerification(ctx context.Context, sess *domain.Session) (stepResult, error) {
	if !sess.VerifiedAt.IsZero() {
		return stepResult{event: domain.EventEmailVerified}, nil
	}
	if sess.AutoVerify {
		s.tokens.MarkVerified(sess)
		return stepResult{event: domain.EventEmailVerified}, nil
	}

	tok, err := s.tokens.Issue(sess)
	if err != nil {
		return stepResult{}, fmt.Errorf("issuing verification token: %w", err)
	}

	if err := s.notifier.SendVerification(ctx, domain.VerificationMessage{
		Email:        sess.Data.AdminEmail,
		FirstName:    sess.Data.AdminFirstName,
		TenantName:   sess.Data.TenantName,
		Token:        tok,
		OnboardingID: sess.ID,
	}); err != nil {
		return stepResult{}, fmt.Errorf("sending verification email: %w", err)
	}

	sess.NextAction = "Check your email for the verification link"
	sess.EstimatedCompletion = sess.VerificationTokenExpiresAt
	return stepResult{pause: true}, nil
}

// complete finalizes the session. The welcome email is best-effort:
// delivery failure is logged but never fails an otherwise finished
// onboarding.
func (s *OnboardingService) complete(ctx context.Context, sess *domain.Session) (stepResult, error) {
	if sess.SendWelcomeEmail {
		if err := s.notifier.SendWelcome(ctx, domain.WelcomeMessage{
			Email:      sess.Data.AdminEmail,
			FirstName:  sess.Data.AdminFirstName,
			TenantName: sess.Data.TenantName,
		}); err != nil {
			s.logger.Warn("welcome email failed",
				zap.String("session_id", sess.ID),
				zap.Error(err),
			)
		}
	}

	sess.NextAction = "Onboarding complete"
	return stepResult{done: true}, nil
}
