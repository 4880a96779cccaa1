package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for simple conditions without extra context.
var (
	ErrSessionNotFound = errors.New("onboarding session not found")

	// Verification failures. They reject the call but never fail the
	// session; the client can retry or request a resend.
	ErrTokenInvalid            = errors.New("verification token is invalid")
	ErrTokenExpired            = errors.New("verification token has expired")
	ErrNotAwaitingVerification = errors.New("session is not awaiting email verification")
)

// ConflictError is returned when a tenant name, domain, or admin email
// is already in use. The registries are the source of truth for global
// uniqueness, so this can surface both at the pre-check and at step time.
type ConflictError struct {
	Field string
	Value string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %q is already in use", e.Field, e.Value)
}

// TransitionError is returned when a step transition is not allowed.
type TransitionError struct {
	Event   Event
	Current Step
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("event %q is not valid from step %q", e.Event, e.Current)
}

// TerminalStateError is returned when an operation targets a session
// that has already reached a terminal status.
type TerminalStateError struct {
	Status Status
}

func (e *TerminalStateError) Error() string {
	return fmt.Sprintf("session is already %s", e.Status)
}

// StepError wraps a collaborator failure that occurred inside a step
// handler. The session it belongs to has been marked failed.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %q failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
