/*
store.go - Persistence interfaces for the calculation engine

PURPOSE:
  Defines the boundary between the engine and the database. The engine
  consumes and produces plain records; how they are stored is an external
  concern. Different implementations use SQLite or in-memory storage.

APPEND-ONLY CONTRACTS:
  Calculation traces, plan versions, and audit entries are append-only:
  the interfaces expose no update or delete for them. Payout results
  accept exactly one mutation - applying an approved adjustment - which
  is itself recorded by the adjustment workflow.

OPTIMISTIC CONCURRENCY:
  UpdateAdjustment takes the version the caller read; implementations
  must reject the write with ErrConcurrencyConflict when the stored
  version differs.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite
  - engine/store: In-memory for tests and dev

SEE ALSO:
  - adjustment.go, version.go: The services built on these interfaces
*/
package engine

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// INPUT RECORDS
// =============================================================================

// RepStore persists representative records.
type RepStore interface {
	SaveRep(ctx context.Context, rep Representative) error
	GetRep(ctx context.Context, id RepID) (*Representative, error)
	ListReps(ctx context.Context) ([]Representative, error)
}

// PlanStore persists plan configurations.
type PlanStore interface {
	SavePlan(ctx context.Context, plan *PlanConfiguration) error
	GetPlan(ctx context.Context, id PlanID) (*PlanConfiguration, error)
	ListPlans(ctx context.Context) ([]*PlanConfiguration, error)
}

// =============================================================================
// JOB / RESULT / TRACE
// =============================================================================

// JobStore persists calculation jobs. SaveJob upserts: the engine saves
// the job once when created and again as progress and status change.
type JobStore interface {
	SaveJob(ctx context.Context, job *CalculationJob) error
	GetJob(ctx context.Context, id JobID) (*CalculationJob, error)
	ListJobs(ctx context.Context) ([]*CalculationJob, error)
}

// ResultStore persists final payout results. ApplyAdjustment is the only
// mutation: it adds the amount to the stored final payout and adjustment
// total for one (job, rep).
type ResultStore interface {
	SaveResults(ctx context.Context, results []FinalPayoutResult) error
	ResultsByJob(ctx context.Context, jobID JobID) ([]FinalPayoutResult, error)
	GetResult(ctx context.Context, jobID JobID, repID RepID) (*FinalPayoutResult, error)
	ApplyAdjustment(ctx context.Context, jobID JobID, repID RepID, amount decimal.Decimal) error
}

// TraceStore persists calculation traces. Append-only: steps are written
// in order and never modified.
type TraceStore interface {
	SaveTraces(ctx context.Context, traces []CalculationTrace) error
	Trace(ctx context.Context, jobID JobID, repID RepID) (*CalculationTrace, error)
	TracesByJob(ctx context.Context, jobID JobID) ([]CalculationTrace, error)
}

// =============================================================================
// WORKFLOW / ANOMALY
// =============================================================================

// AdjustmentStore persists adjustments. UpdateAdjustment must reject the
// write with ErrConcurrencyConflict when the stored version differs from
// expectedVersion.
type AdjustmentStore interface {
	SaveAdjustment(ctx context.Context, adj *Adjustment) error
	GetAdjustment(ctx context.Context, id string) (*Adjustment, error)
	ListAdjustments(ctx context.Context, status AdjustmentStatus) ([]*Adjustment, error)
	UpdateAdjustment(ctx context.Context, adj *Adjustment, expectedVersion int) error
}

// AnomalyStore persists anomaly records and reviewer transitions.
type AnomalyStore interface {
	SaveAnomalies(ctx context.Context, anomalies []Anomaly) error
	GetAnomaly(ctx context.Context, id string) (*Anomaly, error)
	ListAnomalies(ctx context.Context, jobID JobID) ([]Anomaly, error)
	UpdateAnomalyStatus(ctx context.Context, a *Anomaly) error
}

// BaselineStore loads the historical baseline used by the detector.
type BaselineStore interface {
	SaveCohortBaseline(ctx context.Context, b CohortBaseline) error
	Baseline(ctx context.Context) (HistoricalBaseline, error)
}

// =============================================================================
// VERSIONING / AUDIT
// =============================================================================

// VersionStore persists plan versions. Append-only; implementations must
// keep AppendVersion atomic with the current-version advance so version
// numbers never collide.
type VersionStore interface {
	CurrentVersionNumber(ctx context.Context, planID PlanID) (int, error)
	AppendVersion(ctx context.Context, v *PlanVersion) error
	GetVersion(ctx context.Context, id string) (*PlanVersion, error)
	VersionsByPlan(ctx context.Context, planID PlanID) ([]PlanVersion, error)
}

// AuditLog stores configuration audit entries. Append-only, ever.
type AuditLog interface {
	AppendEntry(ctx context.Context, entry AuditEntry) error
	EntriesByPlan(ctx context.Context, planID PlanID) ([]AuditEntry, error)
}
