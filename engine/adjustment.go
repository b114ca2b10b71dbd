/*
adjustment.go - Manual payout adjustment workflow

PURPOSE:
  Handles the full lifecycle of manual overrides to a computed payout:
  1. Submit:  Validate and record a pending adjustment (justification required)
  2. Approve: A reviewer confirms the adjustment
  3. Reject:  Terminal refusal with a reason
  4. Apply:   Recompute finalPayout = original + amount and patch the
              stored payout result

STATE MACHINE:
  pending -> approved -> applied
  pending -> rejected            (terminal)

  No transition skips a state. Applying from pending fails with
  InvalidTransitionError. A failed transition returns a specific reason,
  never a silent no-op.

SEPARATION OF DUTIES:
  Approve/reject require the actor to differ from the submitter unless
  AllowSelfReview is set.

CONCURRENCY:
  At most one in-flight transition per adjustment: every transition
  carries the version the caller last saw, and the store rejects the
  update when the current version no longer matches (optimistic
  concurrency). Callers retry with fresh state.

SEE ALSO:
  - store.go: AdjustmentStore and ResultStore interfaces
  - pipeline.go: Stage 7 picks up applied adjustments on engine re-runs
*/
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// ADJUSTMENT - Manual override to a computed payout
// =============================================================================

type AdjustmentStatus string

const (
	AdjustmentPending  AdjustmentStatus = "pending"
	AdjustmentApproved AdjustmentStatus = "approved"
	AdjustmentRejected AdjustmentStatus = "rejected"
	AdjustmentApplied  AdjustmentStatus = "applied"
)

type AdjustmentType string

const (
	AdjustmentBonus      AdjustmentType = "bonus"
	AdjustmentCorrection AdjustmentType = "correction"
	AdjustmentPenalty    AdjustmentType = "penalty"
	AdjustmentOverride   AdjustmentType = "override"
)

type AdjustmentPriority string

const (
	PriorityLow    AdjustmentPriority = "low"
	PriorityNormal AdjustmentPriority = "normal"
	PriorityHigh   AdjustmentPriority = "high"
	PriorityUrgent AdjustmentPriority = "urgent"
)

// Adjustment is a manual override, mutated only through the workflow.
type Adjustment struct {
	ID    string
	RepID RepID
	JobID JobID

	OriginalPayout decimal.Decimal
	Amount         decimal.Decimal
	FinalPayout    decimal.Decimal // original + amount, set on apply

	Type          AdjustmentType
	Reason        string
	Justification string
	Priority      AdjustmentPriority

	Status          AdjustmentStatus
	SubmittedBy     string
	ReviewedBy      string
	RejectionReason string

	// Version supports optimistic concurrency; bumped on every transition.
	Version int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// WORKFLOW - Orchestrates the adjustment lifecycle
// =============================================================================

// Workflow drives adjustment state transitions against a store.
type Workflow struct {
	Adjustments AdjustmentStore
	Results     ResultStore

	// AllowSelfReview disables the separation-of-duties check.
	AllowSelfReview bool
}

// SubmitInput contains everything needed to create a pending adjustment.
type SubmitInput struct {
	RepID          RepID
	JobID          JobID
	OriginalPayout decimal.Decimal
	Amount         decimal.Decimal
	Type           AdjustmentType
	Reason         string
	Justification  string
	Priority       AdjustmentPriority
	SubmittedBy    string
}

// Submit creates a pending adjustment. Justification is mandatory.
func (w *Workflow) Submit(ctx context.Context, in SubmitInput) (*Adjustment, error) {
	if in.Justification == "" {
		return nil, ErrJustificationRequired
	}
	if in.Priority == "" {
		in.Priority = PriorityNormal
	}

	now := time.Now().UTC()
	adj := &Adjustment{
		ID:             uuid.NewString(),
		RepID:          in.RepID,
		JobID:          in.JobID,
		OriginalPayout: in.OriginalPayout,
		Amount:         in.Amount,
		Type:           in.Type,
		Reason:         in.Reason,
		Justification:  in.Justification,
		Priority:       in.Priority,
		Status:         AdjustmentPending,
		SubmittedBy:    in.SubmittedBy,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := w.Adjustments.SaveAdjustment(ctx, adj); err != nil {
		return nil, err
	}
	return adj, nil
}

// Approve moves pending -> approved.
// expectedVersion is the version the caller last read.
func (w *Workflow) Approve(ctx context.Context, id, actor string, expectedVersion int) (*Adjustment, error) {
	return w.transition(ctx, id, actor, expectedVersion, "approve", AdjustmentPending, func(adj *Adjustment) error {
		if err := w.checkReviewer(adj, actor); err != nil {
			return err
		}
		adj.Status = AdjustmentApproved
		adj.ReviewedBy = actor
		return nil
	})
}

// Reject moves pending -> rejected (terminal). Reason is surfaced to the
// submitter.
func (w *Workflow) Reject(ctx context.Context, id, actor, reason string, expectedVersion int) (*Adjustment, error) {
	return w.transition(ctx, id, actor, expectedVersion, "reject", AdjustmentPending, func(adj *Adjustment) error {
		if err := w.checkReviewer(adj, actor); err != nil {
			return err
		}
		adj.Status = AdjustmentRejected
		adj.ReviewedBy = actor
		adj.RejectionReason = reason
		return nil
	})
}

// Apply moves approved -> applied, recomputes the final payout, and
// patches the stored payout result for this rep/job.
func (w *Workflow) Apply(ctx context.Context, id, actor string, expectedVersion int) (*Adjustment, error) {
	adj, err := w.transition(ctx, id, actor, expectedVersion, "apply", AdjustmentApproved, func(adj *Adjustment) error {
		adj.Status = AdjustmentApplied
		adj.FinalPayout = adj.OriginalPayout.Add(adj.Amount)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Patch the payout result post-hoc. An engine re-run would instead pick
	// the applied adjustment up in the manual_adjustment pipeline stage.
	if w.Results != nil {
		if err := w.Results.ApplyAdjustment(ctx, adj.JobID, adj.RepID, adj.Amount); err != nil {
			return nil, err
		}
	}
	return adj, nil
}

// transition loads, checks, mutates, and saves with the optimistic version
// check delegated to the store.
func (w *Workflow) transition(
	ctx context.Context,
	id, actor string,
	expectedVersion int,
	action string,
	requiredStatus AdjustmentStatus,
	mutate func(*Adjustment) error,
) (*Adjustment, error) {
	adj, err := w.Adjustments.GetAdjustment(ctx, id)
	if err != nil {
		return nil, err
	}
	if adj == nil {
		return nil, ErrAdjustmentNotFound
	}
	if adj.Version != expectedVersion {
		return nil, ErrConcurrencyConflict
	}
	if adj.Status != requiredStatus {
		return nil, &InvalidTransitionError{From: string(adj.Status), Action: action}
	}

	if err := mutate(adj); err != nil {
		return nil, err
	}
	adj.Version++
	adj.UpdatedAt = time.Now().UTC()

	// The store re-checks the version during the update, so a concurrent
	// transition between our read and write still conflicts cleanly.
	if err := w.Adjustments.UpdateAdjustment(ctx, adj, expectedVersion); err != nil {
		return nil, err
	}
	return adj, nil
}

func (w *Workflow) checkReviewer(adj *Adjustment, actor string) error {
	if w.AllowSelfReview {
		return nil
	}
	if actor != "" && actor == adj.SubmittedBy {
		return ErrSelfReview
	}
	return nil
}
