package domain

import "time"

// FreePlan is the plan that skips billing entirely.
const FreePlan = "free"

// OnboardingData is the immutable snapshot of the original onboarding
// request. Step handlers read from it; nothing mutates it after the
// session is created.
type OnboardingData struct {
	TenantName     string
	TenantDomain   string
	AdminEmail     string
	AdminFirstName string
	AdminLastName  string
	Plan           string
	Features       []string
	TrialDays      int
	Metadata       map[string]string
}

// PaidPlan reports whether the requested plan needs a billing profile.
func (d OnboardingData) PaidPlan() bool {
	return d.Plan != "" && d.Plan != FreePlan
}

// Session is the aggregate root of the onboarding saga. It is mutated
// exclusively by the workflow engine, token issuance/consumption, and
// cancellation; terminal sessions are retained for audit, never deleted.
type Session struct {
	ID             string
	CurrentStep    Step
	Status         Status
	CompletedSteps []Step

	// Set once the corresponding step succeeds; empty before. Cleared
	// only by cancellation cleanup.
	TenantID    string
	AdminUserID string
	BillingRef  string

	Data OnboardingData

	// Present only while the session is paused at verification and the
	// email is unverified; cleared on successful verification.
	VerificationToken          string
	VerificationTokenExpiresAt time.Time
	VerifiedAt                 time.Time

	FailureReason string
	CancelReason  string

	// Provenance, recorded at creation.
	IPAddress string
	UserAgent string

	// Advisory fields for client display; never used for control decisions.
	NextAction          string
	EstimatedCompletion time.Time

	SendWelcomeEmail bool
	AutoVerify       bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSession creates a session at the first workflow step in the
// "pending" status.
func NewSession(id string, data OnboardingData, ip, userAgent string, sendWelcome, autoVerify bool) Session {
	now := time.Now().UTC()
	return Session{
		ID:                  id,
		CurrentStep:         StepTenantSetup,
		Status:              StatusPending,
		Data:                data,
		IPAddress:           ip,
		UserAgent:           userAgent,
		NextAction:          "Provisioning tenant",
		EstimatedCompletion: now.Add(10 * time.Minute),
		SendWelcomeEmail:    sendWelcome,
		AutoVerify:          autoVerify,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// Progress derives the completion percentage from the current step's
// position in the canonical order. A completed session is always 100.
func (s Session) Progress() int {
	if s.Status == StatusCompleted {
		return 100
	}
	idx := StepIndex(s.CurrentStep)
	if idx < 0 {
		return 0
	}
	return int(float64(idx)*100/float64(len(StepOrder)) + 0.5)
}

// AwaitingVerification reports whether the session is paused at the
// verification step with the email still unverified.
func (s Session) AwaitingVerification() bool {
	return s.CurrentStep == StepVerification && s.VerifiedAt.IsZero() && !s.Status.Terminal()
}
