/*
errors.go - Centralized error types for the calculation engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers branch on behavior via errors.Is, never by string matching.

ERROR CATEGORIES:
  1. Validation errors - bad input records, recorded per rep, never fatal
  2. Structural errors - bad plan or curve, abort only their scope
  3. Workflow errors - rejected state transitions, no state mutated
  4. Concurrency errors - optimistic check failed, caller retries

SEE ALSO:
  - curve.go: Returns InvalidCurveError
  - adjustment.go: Returns InvalidTransitionError, ErrConcurrencyConflict
  - engine.go: Collects per-rep ValidationErrors into the job error count
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidCurve is returned when a pay curve has fewer than two
	// breakpoints or a non-increasing performance sequence. Fatal for the
	// affected plan only.
	ErrInvalidCurve = errors.New("invalid pay curve")

	// ErrInvalidTransition is returned when a workflow action is attempted
	// from a non-adjacent state. No state is mutated.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrConcurrencyConflict is returned when an optimistic version check
	// fails. The caller must reload and retry with fresh state.
	ErrConcurrencyConflict = errors.New("concurrent modification detected")

	// ErrPlanNotFound is returned when a referenced plan doesn't exist.
	ErrPlanNotFound = errors.New("plan not found")

	// ErrRepNotFound is returned when a referenced representative doesn't exist.
	ErrRepNotFound = errors.New("representative not found")

	// ErrJobNotFound is returned when a referenced calculation job doesn't exist.
	ErrJobNotFound = errors.New("calculation job not found")

	// ErrAdjustmentNotFound is returned when a referenced adjustment doesn't exist.
	ErrAdjustmentNotFound = errors.New("adjustment not found")

	// ErrVersionNotFound is returned when a referenced plan version doesn't exist.
	ErrVersionNotFound = errors.New("plan version not found")

	// ErrAnomalyNotFound is returned when a referenced anomaly doesn't exist.
	ErrAnomalyNotFound = errors.New("anomaly not found")

	// ErrSelfReview is returned when separation of duties is enforced and
	// the reviewer is the submitter.
	ErrSelfReview = errors.New("reviewer must differ from submitter")

	// ErrJustificationRequired is returned when an adjustment is submitted
	// without a justification.
	ErrJustificationRequired = errors.New("justification required")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes a per-rep input violation. Recorded against the
// job's error count; never aborts the batch.
type ValidationError struct {
	RepID  RepID
	Field  string // "quota", "actual_sales"
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for rep %s: %s %s", e.RepID, e.Field, e.Reason)
}

// InvalidCurveError describes why a pay curve was rejected.
type InvalidCurveError struct {
	PlanID PlanID
	Reason string
}

func (e *InvalidCurveError) Error() string {
	if e.PlanID != "" {
		return fmt.Sprintf("invalid pay curve for plan %s: %s", e.PlanID, e.Reason)
	}
	return "invalid pay curve: " + e.Reason
}

func (e *InvalidCurveError) Unwrap() error { return ErrInvalidCurve }

// InvalidTransitionError describes a rejected workflow transition.
// The reason string is surfaced to the caller verbatim; transitions never
// fail as a silent no-op.
type InvalidTransitionError struct {
	From   string
	Action string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s from status %q", e.Action, e.From)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry with fresh
// state. The core never retries on its own.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrInvalidCurve) ||
		errors.Is(err, ErrSelfReview) ||
		errors.Is(err, ErrJustificationRequired)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPlanNotFound) ||
		errors.Is(err, ErrRepNotFound) ||
		errors.Is(err, ErrJobNotFound) ||
		errors.Is(err, ErrAdjustmentNotFound) ||
		errors.Is(err, ErrVersionNotFound) ||
		errors.Is(err, ErrAnomalyNotFound)
}
