// Package app implements the onboarding workflow engine: a state machine
// that drives a session through its steps synchronously until the first
// pausing or terminal step, persisting progress after every transition.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/onboardiq/onboardiq/internal/domain"
	"github.com/onboardiq/onboardiq/internal/token"
)

// Deps holds the collaborators the onboarding service orchestrates.
type Deps struct {
	Sessions    domain.SessionRepository
	Compensator domain.CompensationStore
	Tenants     domain.TenantRegistry
	Accounts    domain.AccountRegistry
	Billing     domain.BillingGateway
	Notifier    domain.Notifier
	Validator   domain.TransitionValidator
	Tokens      *token.Manager
	Logger      *zap.Logger
}

// OnboardingService sequences the onboarding saga. All session mutations
// go through here, serialized per session.
type OnboardingService struct {
	sessions    domain.SessionRepository
	compensator domain.CompensationStore
	tenants     domain.TenantRegistry
	accounts    domain.AccountRegistry
	billing     domain.BillingGateway
	notifier    domain.Notifier
	validator   domain.TransitionValidator
	tokens      *token.Manager
	logger      *zap.Logger

	steps map[domain.Step]stepHandler
	locks sessionLocks
}

// NewOnboardingService creates a service with the given collaborators.
func NewOnboardingService(d Deps) *OnboardingService {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &OnboardingService{
		sessions:    d.Sessions,
		compensator: d.Compensator,
		tenants:     d.Tenants,
		accounts:    d.Accounts,
		billing:     d.Billing,
		notifier:    d.Notifier,
		validator:   d.Validator,
		tokens:      d.Tokens,
		logger:      logger,
	}

	// Static binding of each workflow step to its handler. Allowed
	// transitions live in domain.Transitions.
	s.steps = map[domain.Step]stepHandler{
		domain.StepTenantSetup:          s.setupTenant,
		domain.StepAdminUserCreation:    s.createAdmin,
		domain.StepPlanSelection:        s.selectPlan,
		domain.StepPaymentSetup:         s.setupPayment,
		domain.StepFeatureConfiguration: s.configureFeatures,
		domain.StepVerification:         s.requestVerification,
		domain.StepCompletion:           s.complete,
	}

	return s
}

// StartRequest holds the client's onboarding request. Its fields are
// snapshotted onto the session and never mutated afterwards.
type StartRequest struct {
	TenantName       string
	TenantDomain     string
	AdminEmail       string
	AdminFirstName   string
	AdminLastName    string
	Plan             string
	Features         []string
	TrialDays        int
	Metadata         map[string]string
	SendWelcomeEmail bool
	AutoVerify       bool
	IPAddress        string
	UserAgent        string
}

// Start creates an onboarding session after advisory uniqueness
// pre-checks and drives it forward until it pauses, completes, or fails.
// The registries' own constraints remain the authoritative uniqueness
// guard; a race past the pre-check surfaces as an ordinary step failure.
func (s *OnboardingService) Start(ctx context.Context, req StartRequest) (domain.Session, error) {
	plan := req.Plan
	if plan == "" {
		plan = domain.FreePlan
	}

	taken, err := s.tenants.NameOrDomainTaken(ctx, req.TenantName, req.TenantDomain)
	if err != nil {
		return domain.Session{}, fmt.Errorf("checking tenant uniqueness: %w", err)
	}
	if taken {
		return domain.Session{}, &domain.ConflictError{Field: "tenant name or domain", Value: req.TenantName}
	}

	taken, err = s.accounts.EmailTaken(ctx, req.AdminEmail)
	if err != nil {
		return domain.Session{}, fmt.Errorf("checking admin email uniqueness: %w", err)
	}
	if taken {
		return domain.Session{}, &domain.ConflictError{Field: "admin email", Value: req.AdminEmail}
	}

	data := domain.OnboardingData{
		TenantName:     req.TenantName,
		TenantDomain:   req.TenantDomain,
		AdminEmail:     req.AdminEmail,
		AdminFirstName: req.AdminFirstName,
		AdminLastName:  req.AdminLastName,
		Plan:           plan,
		Features:       req.Features,
		TrialDays:      req.TrialDays,
		Metadata:       req.Metadata,
	}

	sess := domain.NewSession(newSessionID(), data, req.IPAddress, req.UserAgent, req.SendWelcomeEmail, req.AutoVerify)
	if err := s.sessions.Create(ctx, sess); err != nil {
		return domain.Session{}, fmt.Errorf("creating session: %w", err)
	}

	s.logger.Info("onboarding started",
		zap.String("session_id", sess.ID),
		zap.String("tenant_name", data.TenantName),
		zap.String("plan", data.Plan),
	)

	return s.Advance(ctx, sess.ID)
}

// GetProgress returns the last known consistent state of a session.
func (s *OnboardingService) GetProgress(ctx context.Context, id string) (domain.Session, error) {
	return s.sessions.GetByID(ctx, id)
}

// List returns sessions matching the given filter.
func (s *OnboardingService) List(ctx context.Context, filter domain.ListFilter) ([]domain.Session, error) {
	return s.sessions.List(ctx, filter)
}

// Advance drives the session through its steps until one pauses, fails,
// or the workflow completes. Each call performs at most one chain of
// synchronous step executions; concurrent calls on the same session are
// serialized.
func (s *OnboardingService) Advance(ctx context.Context, id string) (domain.Session, error) {
	unlock := s.locks.acquire(id)
	defer unlock()
	return s.advance(ctx, id)
}

func (s *OnboardingService) advance(ctx context.Context, id string) (domain.Session, error) {
	for {
		sess, err := s.sessions.GetByID(ctx, id)
		if err != nil {
			return domain.Session{}, err
		}
		if sess.Status.Terminal() {
			return sess, &domain.TerminalStateError{Status: sess.Status}
		}
		if sess.Status == domain.StatusPending {
			sess.Status = domain.StatusInProgress
		}

		handler, ok := s.steps[sess.CurrentStep]
		if !ok {
			return s.fail(ctx, sess, fmt.Errorf("no handler bound to step %q", sess.CurrentStep))
		}

		res, err := handler(ctx, &sess)
		if err != nil {
			return s.fail(ctx, sess, err)
		}

		if res.pause {
			if err := s.sessions.Update(ctx, sess); err != nil {
				return sess, fmt.Errorf("persisting paused session: %w", err)
			}
			return sess, nil
		}

		if res.done {
			sess.CompletedSteps = append(sess.CompletedSteps, sess.CurrentStep)
			sess.Status = domain.StatusCompleted
			if err := s.sessions.Update(ctx, sess); err != nil {
				return sess, fmt.Errorf("persisting completed session: %w", err)
			}
			s.logger.Info("onboarding completed",
				zap.String("session_id", sess.ID),
				zap.String("tenant_id", sess.TenantID),
			)
			return sess, nil
		}

		next, err := s.validator.Apply(ctx, sess.CurrentStep, res.event)
		if err != nil {
			return s.fail(ctx, sess, err)
		}

		sess.CompletedSteps = append(sess.CompletedSteps, sess.CurrentStep)
		sess.CurrentStep = next
		if err := s.sessions.Update(ctx, sess); err != nil {
			return sess, fmt.Errorf("persisting session: %w", err)
		}
	}
}

// fail marks the session failed with the cause recorded. Failed sessions
// have no automatic retry; they can still be cancelled to release their
// tenant name, domain, and admin email.
func (s *OnboardingService) fail(ctx context.Context, sess domain.Session, cause error) (domain.Session, error) {
	stepErr := &domain.StepError{Step: sess.CurrentStep, Err: cause}

	sess.Status = domain.StatusFailed
	sess.FailureReason = cause.Error()
	sess.NextAction = "Onboarding failed; contact support"
	if err := s.sessions.Update(ctx, sess); err != nil {
		return sess, fmt.Errorf("persisting failed session: %w", err)
	}

	s.logger.Warn("onboarding step failed",
		zap.String("session_id", sess.ID),
		zap.String("step", string(stepErr.Step)),
		zap.Error(cause),
	)
	return sess, stepErr
}

// Verify consumes a verification token and, on success, resumes the
// workflow through to completion. Token failures reject the call without
// touching the session's step or status.
func (s *OnboardingService) Verify(ctx context.Context, id, suppliedToken string) (domain.Session, error) {
	unlock := s.locks.acquire(id)
	defer unlock()

	sess, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return domain.Session{}, err
	}
	if sess.Status.Terminal() {
		return sess, &domain.TerminalStateError{Status: sess.Status}
	}
	if !sess.AwaitingVerification() {
		return sess, domain.ErrNotAwaitingVerification
	}

	if err := s.tokens.Verify(&sess, suppliedToken); err != nil {
		return sess, err
	}

	if err := s.sessions.Update(ctx, sess); err != nil {
		return sess, fmt.Errorf("persisting verified session: %w", err)
	}

	s.logger.Info("email verified", zap.String("session_id", sess.ID))

	return s.advance(ctx, sess.ID)
}

// Resend invalidates the prior verification token, issues a new one, and
// delivers it. Only valid while the session is paused at verification.
// The optional email overrides the delivery address for this send only.
func (s *OnboardingService) Resend(ctx context.Context, id, email string) (domain.Session, error) {
	unlock := s.locks.acquire(id)
	defer unlock()

	sess, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return domain.Session{}, err
	}
	if sess.Status.Terminal() {
		return sess, &domain.TerminalStateError{Status: sess.Status}
	}
	if !sess.AwaitingVerification() {
		return sess, domain.ErrNotAwaitingVerification
	}

	tok, err := s.tokens.Issue(&sess)
	if err != nil {
		return sess, fmt.Errorf("issuing verification token: %w", err)
	}

	to := sess.Data.AdminEmail
	if email != "" {
		to = email
	}

	if err := s.notifier.SendVerification(ctx, domain.VerificationMessage{
		Email:        to,
		FirstName:    sess.Data.AdminFirstName,
		TenantName:   sess.Data.TenantName,
		Token:        tok,
		OnboardingID: sess.ID,
	}); err != nil {
		return sess, fmt.Errorf("sending verification email: %w", err)
	}

	// The new token is only persisted once delivery was accepted, so a
	// notifier outage leaves the previous token valid.
	if err := s.sessions.Update(ctx, sess); err != nil {
		return sess, fmt.Errorf("persisting reissued token: %w", err)
	}

	s.logger.Info("verification resent", zap.String("session_id", sess.ID))
	return sess, nil
}

// Cancel marks the session cancelled. With cleanup, the administrator
// account and tenant created so far are soft-deleted in the same
// transaction as the cancellation write, releasing their names for a
// fresh start. Billing and notifier side effects are not reversed.
func (s *OnboardingService) Cancel(ctx context.Context, id, reason string, cleanup bool) (domain.Session, error) {
	unlock := s.locks.acquire(id)
	defer unlock()

	sess, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return domain.Session{}, err
	}
	if sess.Status == domain.StatusCompleted || sess.Status == domain.StatusCancelled {
		return sess, &domain.TerminalStateError{Status: sess.Status}
	}

	if reason == "" {
		reason = "cancelled by administrator"
	}
	sess.Status = domain.StatusCancelled
	sess.CancelReason = reason
	sess.NextAction = "Onboarding cancelled"

	if cleanup {
		if err := s.compensator.CancelWithCleanup(ctx, sess); err != nil {
			return sess, fmt.Errorf("cancelling with cleanup: %w", err)
		}
	} else {
		if err := s.sessions.Update(ctx, sess); err != nil {
			return sess, fmt.Errorf("persisting cancelled session: %w", err)
		}
	}

	s.logger.Info("onboarding cancelled",
		zap.String("session_id", sess.ID),
		zap.String("reason", reason),
		zap.Bool("cleanup", cleanup),
	)
	return sess, nil
}
