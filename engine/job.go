package engine

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// CALCULATION JOB - Groups one calculation run
// =============================================================================

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// CalculationJob groups a calculation run over a period. The engine mutates
// the progress counters while processing; everything else is set once.
//
// A job completes even when some reps failed validation - partial-failure
// semantics. It fails only when no rep could be processed at all.
type CalculationJob struct {
	ID          JobID
	PlanIDs     []PlanID
	PeriodStart time.Time
	PeriodEnd   time.Time

	Status           JobStatus
	TotalRecords     int
	ProcessedRecords int
	ErrorCount       int
	Error            string // set when Status is failed

	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// NewJob creates a pending job for the given plans and period.
func NewJob(planIDs []PlanID, periodStart, periodEnd time.Time) *CalculationJob {
	return &CalculationJob{
		ID:          JobID(uuid.NewString()),
		PlanIDs:     planIDs,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		Status:      JobPending,
		CreatedAt:   time.Now().UTC(),
	}
}

// Progress returns processed/total as a percentage (0 when empty).
func (j *CalculationJob) Progress() float64 {
	if j.TotalRecords == 0 {
		return 0
	}
	return float64(j.ProcessedRecords) / float64(j.TotalRecords) * 100
}

// IsTerminal reports whether the job reached a final status.
func (j *CalculationJob) IsTerminal() bool {
	return j.Status == JobCompleted || j.Status == JobFailed
}
