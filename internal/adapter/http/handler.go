package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/onboardiq/onboardiq/internal/app"
	"github.com/onboardiq/onboardiq/internal/domain"
)

// SessionResponse is the API representation of an onboarding session.
// Verification tokens are deliberately absent from this shape.
type SessionResponse struct {
	OnboardingID        string   `json:"onboarding_id" doc:"Unique session identifier"`
	CurrentStep         string   `json:"current_step" doc:"Workflow step the session is at"`
	Status              string   `json:"status" doc:"Session lifecycle status"`
	CompletedSteps      []string `json:"completed_steps" doc:"Steps already finished, in order"`
	ProgressPercentage  int      `json:"progress_percentage" doc:"Derived completion percentage"`
	TenantID            string   `json:"tenant_id,omitempty" doc:"Set once the tenant is provisioned"`
	AdminUserID         string   `json:"admin_user_id,omitempty" doc:"Set once the admin account is created"`
	BillingRef          string   `json:"billing_ref,omitempty" doc:"Billing profile reference for paid plans"`
	NextAction          string   `json:"next_action" doc:"Advisory guidance for the client"`
	EstimatedCompletion string   `json:"estimated_completion,omitempty" doc:"Advisory completion estimate (ISO 8601)"`
	FailureReason       string   `json:"failure_reason,omitempty" doc:"Why the session failed, if it did"`
	CancelReason        string   `json:"cancel_reason,omitempty" doc:"Why the session was cancelled, if it was"`
	CreatedAt           string   `json:"created_at" doc:"Creation timestamp (ISO 8601)"`
}

func toSessionResponse(s domain.Session) SessionResponse {
	completed := make([]string, len(s.CompletedSteps))
	for i, step := range s.CompletedSteps {
		completed[i] = string(step)
	}

	resp := SessionResponse{
		OnboardingID:       s.ID,
		CurrentStep:        string(s.CurrentStep),
		Status:             string(s.Status),
		CompletedSteps:     completed,
		ProgressPercentage: s.Progress(),
		TenantID:           s.TenantID,
		AdminUserID:        s.AdminUserID,
		BillingRef:         s.BillingRef,
		NextAction:         s.NextAction,
		FailureReason:      s.FailureReason,
		CancelReason:       s.CancelReason,
		CreatedAt:          s.CreatedAt.Format(time.RFC3339),
	}
	if !s.EstimatedCompletion.IsZero() {
		resp.EstimatedCompletion = s.EstimatedCompletion.Format(time.RFC3339)
	}
	return resp
}

// --- Start onboarding ---

type StartOnboardingInput struct {
	UserAgent    string `header:"User-Agent"`
	ForwardedFor string `header:"X-Forwarded-For"`
	Body         struct {
		TenantName       string            `json:"tenant_name" minLength:"1" maxLength:"255" doc:"Tenant display name"`
		TenantDomain     string            `json:"tenant_domain" minLength:"1" maxLength:"255" pattern:"^[a-z0-9]+(?:[.-][a-z0-9]+)*$" doc:"Tenant domain (lowercase)"`
		AdminEmail       string            `json:"admin_email" format:"email" doc:"Administrator email address"`
		AdminFirstName   string            `json:"admin_first_name" minLength:"1" maxLength:"100" doc:"Administrator first name"`
		AdminLastName    string            `json:"admin_last_name,omitempty" maxLength:"100" doc:"Administrator last name"`
		Plan             string            `json:"plan,omitempty" default:"free" doc:"Subscription plan"`
		Features         []string          `json:"features,omitempty" doc:"Feature flags to enable"`
		TrialDays        int               `json:"trial_days,omitempty" minimum:"0" maximum:"365" doc:"Trial length in days"`
		Metadata         map[string]string `json:"metadata,omitempty" doc:"Opaque client metadata"`
		SendWelcomeEmail bool              `json:"send_welcome_email,omitempty" default:"true" doc:"Send a welcome email on completion"`
		AutoVerify       bool              `json:"auto_verify,omitempty" doc:"Skip email verification"`
	}
}

type StartOnboardingOutput struct {
	Body SessionResponse
}

// --- Get progress ---

type GetProgressInput struct {
	ID string `path:"id" doc:"Onboarding session ID"`
}

type GetProgressOutput struct {
	Body SessionResponse
}

// --- List sessions ---

type ListOnboardingsInput struct {
	Status string `query:"status" required:"false" doc:"Filter by status"`
	Limit  int    `query:"limit" required:"false" default:"50" doc:"Max results"`
	Offset int    `query:"offset" required:"false" default:"0" doc:"Pagination offset"`
}

type ListOnboardingsOutput struct {
	Body []SessionResponse
}

// --- Verify ---

type VerifyOnboardingInput struct {
	ID   string `path:"id" doc:"Onboarding session ID"`
	Body struct {
		Token string `json:"token" minLength:"1" doc:"Verification token from the email"`
	}
}

type VerifyOnboardingOutput struct {
	Body SessionResponse
}

// --- Resend verification ---

type ResendVerificationInput struct {
	ID   string `path:"id" doc:"Onboarding session ID"`
	Body struct {
		Email string `json:"email,omitempty" format:"email" doc:"Override delivery address for this send"`
	}
}

// --- Cancel ---

type CancelOnboardingInput struct {
	ID   string `path:"id" doc:"Onboarding session ID"`
	Body struct {
		Reason  string `json:"reason,omitempty" maxLength:"500" doc:"Why the onboarding is being cancelled"`
		Cleanup *bool  `json:"cleanup,omitempty" doc:"Soft-delete records created so far (default true)"`
	}
}

type MessageOutput struct {
	Body struct {
		Message string `json:"message"`
	}
}

func messageOutput(msg string) *MessageOutput {
	out := &MessageOutput{}
	out.Body.Message = msg
	return out
}

// Register adds all onboarding API routes to the Huma API.
func Register(api huma.API, svc *app.OnboardingService) {
	huma.Register(api, huma.Operation{
		OperationID: "start-onboarding",
		Method:      http.MethodPost,
		Path:        "/api/v1/onboarding",
		Summary:     "Start tenant onboarding",
		Tags:        []string{"Onboarding"},
	}, func(ctx context.Context, input *StartOnboardingInput) (*StartOnboardingOutput, error) {
		sess, err := svc.Start(ctx, app.StartRequest{
			TenantName:       input.Body.TenantName,
			TenantDomain:     input.Body.TenantDomain,
			AdminEmail:       input.Body.AdminEmail,
			AdminFirstName:   input.Body.AdminFirstName,
			AdminLastName:    input.Body.AdminLastName,
			Plan:             input.Body.Plan,
			Features:         input.Body.Features,
			TrialDays:        input.Body.TrialDays,
			Metadata:         input.Body.Metadata,
			SendWelcomeEmail: input.Body.SendWelcomeEmail,
			AutoVerify:       input.Body.AutoVerify,
			IPAddress:        input.ForwardedFor,
			UserAgent:        input.UserAgent,
		})
		if err != nil {
			return nil, toHumaError(err)
		}
		return &StartOnboardingOutput{Body: toSessionResponse(sess)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-onboarding-progress",
		Method:      http.MethodGet,
		Path:        "/api/v1/onboarding/{id}",
		Summary:     "Get onboarding progress",
		Tags:        []string{"Onboarding"},
	}, func(ctx context.Context, input *GetProgressInput) (*GetProgressOutput, error) {
		sess, err := svc.GetProgress(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &GetProgressOutput{Body: toSessionResponse(sess)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-onboardings",
		Method:      http.MethodGet,
		Path:        "/api/v1/onboarding",
		Summary:     "List onboarding sessions",
		Tags:        []string{"Onboarding"},
	}, func(ctx context.Context, input *ListOnboardingsInput) (*ListOnboardingsOutput, error) {
		filter := domain.ListFilter{
			Limit:  input.Limit,
			Offset: input.Offset,
		}
		if input.Status != "" {
			s := domain.Status(input.Status)
			filter.Status = &s
		}

		sessions, err := svc.List(ctx, filter)
		if err != nil {
			return nil, toHumaError(err)
		}

		resp := make([]SessionResponse, len(sessions))
		for i, s := range sessions {
			resp[i] = toSessionResponse(s)
		}
		return &ListOnboardingsOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "verify-onboarding",
		Method:      http.MethodPost,
		Path:        "/api/v1/onboarding/{id}/verify",
		Summary:     "Submit the email verification token",
		Tags:        []string{"Onboarding"},
	}, func(ctx context.Context, input *VerifyOnboardingInput) (*VerifyOnboardingOutput, error) {
		sess, err := svc.Verify(ctx, input.ID, input.Body.Token)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &VerifyOnboardingOutput{Body: toSessionResponse(sess)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "resend-verification",
		Method:      http.MethodPost,
		Path:        "/api/v1/onboarding/{id}/resend",
		Summary:     "Resend the verification email",
		Tags:        []string{"Onboarding"},
	}, func(ctx context.Context, input *ResendVerificationInput) (*MessageOutput, error) {
		if _, err := svc.Resend(ctx, input.ID, input.Body.Email); err != nil {
			return nil, toHumaError(err)
		}
		return messageOutput("verification email sent"), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "cancel-onboarding",
		Method:      http.MethodPost,
		Path:        "/api/v1/onboarding/{id}/cancel",
		Summary:     "Cancel onboarding",
		Tags:        []string{"Onboarding"},
	}, func(ctx context.Context, input *CancelOnboardingInput) (*MessageOutput, error) {
		cleanup := true
		if input.Body.Cleanup != nil {
			cleanup = *input.Body.Cleanup
		}

		if _, err := svc.Cancel(ctx, input.ID, input.Body.Reason, cleanup); err != nil {
			return nil, toHumaError(err)
		}
		return messageOutput("onboarding cancelled"), nil
	})
}

// toHumaError translates domain errors to Huma HTTP errors. Internal
// detail stays out of responses; callers get a human-readable reason.
func toHumaError(err error) error {
	if errors.Is(err, domain.ErrSessionNotFound) {
		return huma.Error404NotFound("onboarding session not found")
	}

	if errors.Is(err, domain.ErrTokenInvalid) ||
		errors.Is(err, domain.ErrTokenExpired) ||
		errors.Is(err, domain.ErrNotAwaitingVerification) {
		return huma.Error400BadRequest(err.Error())
	}

	var conflictErr *domain.ConflictError
	if errors.As(err, &conflictErr) {
		return huma.Error409Conflict(conflictErr.Error())
	}

	var terminalErr *domain.TerminalStateError
	if errors.As(err, &terminalErr) {
		return huma.Error400BadRequest(terminalErr.Error())
	}

	var stepErr *domain.StepError
	if errors.As(err, &stepErr) {
		return huma.Error422UnprocessableEntity(stepErr.Error())
	}

	var trErr *domain.TransitionError
	if errors.As(err, &trErr) {
		return huma.Error422UnprocessableEntity(trErr.Error())
	}

	return huma.Error500InternalServerError("internal server error")
}
