package domain

// Step is one state of the onboarding workflow.
type Step string

const (
	StepTenantSetup          Step = "tenant_setup"
	StepAdminUserCreation    Step = "admin_user_creation"
	StepPlanSelection        Step = "plan_selection"
	StepPaymentSetup         Step = "payment_setup"
	StepFeatureConfiguration Step = "feature_configuration"
	StepVerification         Step = "verification"
	StepCompletion           Step = "completion"
)

// StepOrder is the canonical progression of the workflow. Progress
// percentages are derived from a step's position in this slice.
var StepOrder = []Step{
	StepTenantSetup,
	StepAdminUserCreation,
	StepPlanSelection,
	StepPaymentSetup,
	StepFeatureConfiguration,
	StepVerification,
	StepCompletion,
}

// StepIndex returns the position of a step in the canonical order,
// or -1 for an unknown step.
func StepIndex(s Step) int {
	for i, step := range StepOrder {
		if step == s {
			return i
		}
	}
	return -1
}

// Status represents the lifecycle state of an onboarding session.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether a session in this status can never transition again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Event represents a step handler outcome that advances the workflow.
type Event string

const (
	EventTenantCreated      Event = "tenant_created"
	EventAdminCreated       Event = "admin_created"
	EventPaidPlanSelected   Event = "paid_plan_selected"
	EventFreePlanSelected   Event = "free_plan_selected"
	EventPaymentArranged    Event = "payment_arranged"
	EventFeaturesConfigured Event = "features_configured"
	EventEmailVerified      Event = "email_verified"
)

// Transition defines a valid state change: an event moves a session from Src to Dst.
type Transition struct {
	Event Event
	Src   Step
	Dst   Step
}

// Transitions defines all valid step changes in the onboarding workflow.
// The plan_selection branch is the only fork: free plans skip payment setup.
// This is domain knowledge consumed by the FSM adapter.
var Transitions = []Transition{
	{Event: EventTenantCreated, Src: StepTenantSetup, Dst: StepAdminUserCreation},
	{Event: EventAdminCreated, Src: StepAdminUserCreation, Dst: StepPlanSelection},
	{Event: EventPaidPlanSelected, Src: StepPlanSelection, Dst: StepPaymentSetup},
	{Event: EventFreePlanSelected, Src: StepPlanSelection, Dst: StepFeatureConfiguration},
	{Event: EventPaymentArranged, Src: StepPaymentSetup, Dst: StepFeatureConfiguration},
	{Event: EventFeaturesConfigured, Src: StepFeatureConfiguration, Dst: StepVerification},
	{Event: EventEmailVerified, Src: StepVerification, Dst: StepCompletion},
}
