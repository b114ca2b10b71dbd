/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY FORMAT:
  Monetary and percent values cross the wire as decimal strings, never
  floats. Clients parse them with a decimal library; the engine's
  precision survives the round trip.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/plan.go: PlanJSON type
*/
package api

import (
	"time"

	"github.com/warp/incentive-engine/engine"
	"github.com/warp/incentive-engine/factory"
)

// =============================================================================
// REPRESENTATIVES
// =============================================================================

// RepDTO represents a sales rep in API responses.
type RepDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Territory   string `json:"territory"`
	PlanID      string `json:"plan_id"`
	Quota       string `json:"quota"`
	ActualSales string `json:"actual_sales"`
	TargetPay   string `json:"target_pay"`
}

// CreateRepRequest is the request to create or update a rep.
type CreateRepRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Territory   string `json:"territory"`
	PlanID      string `json:"plan_id"`
	Quota       string `json:"quota"`
	ActualSales string `json:"actual_sales"`
	TargetPay   string `json:"target_pay"`
}

// =============================================================================
// PLANS
// =============================================================================

// PlanDTO represents a plan in API responses.
type PlanDTO struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	Type           string           `json:"type"`
	Config         factory.PlanJSON `json:"config"`
	CurrentVersion int              `json:"current_version"`
}

// CreatePlanRequest is the request to create a plan.
type CreatePlanRequest struct {
	Config factory.PlanJSON `json:"config"`
}

// SnapshotRequest asks for a new plan version.
type SnapshotRequest struct {
	Description       string `json:"description"`
	CreatedBy         string `json:"created_by"`
	SimulationResults string `json:"simulation_results,omitempty"`
}

// RestoreRequest asks to restore a plan to an earlier version.
type RestoreRequest struct {
	VersionID string `json:"version_id"`
	Actor     string `json:"actor"`
}

// VersionDTO represents a plan version.
type VersionDTO struct {
	ID                string `json:"id"`
	PlanID            string `json:"plan_id"`
	VersionNumber     int    `json:"version_number"`
	ChangeDescription string `json:"change_description"`
	CreatedBy         string `json:"created_by"`
	CreatedAt         string `json:"created_at"`
	IsSnapshot        bool   `json:"is_snapshot"`
}

// AuditEntryDTO represents one configuration audit entry.
type AuditEntryDTO struct {
	ID           string `json:"id"`
	PlanID       string `json:"plan_id"`
	VersionID    string `json:"version_id,omitempty"`
	UserID       string `json:"user_id"`
	Action       string `json:"action"`
	Category     string `json:"category"`
	FieldChanged string `json:"field_changed,omitempty"`
	OldValue     string `json:"old_value,omitempty"`
	NewValue     string `json:"new_value,omitempty"`
	ChangeSource string `json:"change_source,omitempty"`
	Timestamp    string `json:"timestamp"`
}

// =============================================================================
// JOBS / RESULTS / TRACES
// =============================================================================

// StartJobRequest starts a calculation job.
type StartJobRequest struct {
	PlanIDs     []string `json:"plan_ids,omitempty"` // empty = all plans
	PeriodStart string   `json:"period_start"`       // YYYY-MM-DD
	PeriodEnd   string   `json:"period_end"`         // YYYY-MM-DD
}

// JobDTO represents a calculation job.
type JobDTO struct {
	ID               string   `json:"id"`
	PlanIDs          []string `json:"plan_ids"`
	PeriodStart      string   `json:"period_start"`
	PeriodEnd        string   `json:"period_end"`
	Status           string   `json:"status"`
	TotalRecords     int      `json:"total_records"`
	ProcessedRecords int      `json:"processed_records"`
	ErrorCount       int      `json:"error_count"`
	Progress         float64  `json:"progress"`
	Error            string   `json:"error,omitempty"`
	CreatedAt        string   `json:"created_at"`
	StartedAt        string   `json:"started_at,omitempty"`
	CompletedAt      string   `json:"completed_at,omitempty"`
}

// ResultDTO represents one rep's final payout.
type ResultDTO struct {
	JobID              string `json:"job_id"`
	RepID              string `json:"rep_id"`
	RepName            string `json:"rep_name"`
	Territory          string `json:"territory"`
	Quota              string `json:"quota"`
	ActualSales        string `json:"actual_sales"`
	AttainmentPercent  string `json:"attainment_percent"`
	PlanType           string `json:"plan_type"`
	CurvePayoutPercent string `json:"curve_payout_percent"`
	FinalPayout        string `json:"final_payout"`
	PercentOfTargetPay string `json:"percent_of_target_pay"`
	AdjustmentTotal    string `json:"adjustment_total"`
	Notes              string `json:"notes,omitempty"`
}

// StepDTO represents one calculation step in a trace.
type StepDTO struct {
	Index        int               `json:"index"`
	Name         string            `json:"name"`
	Input        map[string]string `json:"input"`
	Rule         string            `json:"rule,omitempty"`
	Formula      string            `json:"formula,omitempty"`
	Intermediate string            `json:"intermediate"`
	Result       string            `json:"result"`
}

// TraceDTO represents the full audit trail for one (job, rep).
type TraceDTO struct {
	JobID string    `json:"job_id"`
	RepID string    `json:"rep_id"`
	Steps []StepDTO `json:"steps"`
}

// =============================================================================
// ADJUSTMENTS
// =============================================================================

// SubmitAdjustmentRequest submits a manual adjustment for review.
type SubmitAdjustmentRequest struct {
	RepID         string `json:"rep_id"`
	JobID         string `json:"job_id"`
	Amount        string `json:"amount"`
	Type          string `json:"type"`
	Reason        string `json:"reason"`
	Justification string `json:"justification"`
	Priority      string `json:"priority,omitempty"`
	SubmittedBy   string `json:"submitted_by"`
}

// ReviewAdjustmentRequest carries a reviewer action on an adjustment.
type ReviewAdjustmentRequest struct {
	Actor   string `json:"actor"`
	Version int    `json:"version"`
	Reason  string `json:"reason,omitempty"` // rejection reason
}

// AdjustmentDTO represents an adjustment in API responses.
type AdjustmentDTO struct {
	ID              string `json:"id"`
	RepID           string `json:"rep_id"`
	JobID           string `json:"job_id"`
	OriginalPayout  string `json:"original_payout"`
	Amount          string `json:"amount"`
	FinalPayout     string `json:"final_payout"`
	Type            string `json:"type"`
	Reason          string `json:"reason,omitempty"`
	Justification   string `json:"justification"`
	Priority        string `json:"priority"`
	Status          string `json:"status"`
	SubmittedBy     string `json:"submitted_by"`
	ReviewedBy      string `json:"reviewed_by,omitempty"`
	RejectionReason string `json:"rejection_reason,omitempty"`
	Version         int    `json:"version"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

// =============================================================================
// ANOMALIES
// =============================================================================

// AnomalyDTO represents a detected anomaly.
type AnomalyDTO struct {
	ID                 string   `json:"id"`
	RepID              string   `json:"rep_id"`
	JobID              string   `json:"job_id"`
	Type               string   `json:"type"`
	Severity           string   `json:"severity"`
	ConfidenceScore    int      `json:"confidence_score"`
	CurrentValue       string   `json:"current_value"`
	ExpectedValue      string   `json:"expected_value"`
	Variance           string   `json:"variance"`
	VariancePercent    string   `json:"variance_percent"`
	RootCause          string   `json:"root_cause"`
	RecommendedActions []string `json:"recommended_actions"`
	Status             string   `json:"status"`
	ReviewedBy         string   `json:"reviewed_by,omitempty"`
	CreatedAt          string   `json:"created_at"`
}

// ReviewAnomalyRequest carries a reviewer transition on an anomaly.
type ReviewAnomalyRequest struct {
	Status   string `json:"status"` // reviewed, resolved, false_positive
	Reviewer string `json:"reviewer"`
}

// =============================================================================
// SCENARIOS / ERRORS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest picks a demo scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toRepDTO(rep engine.Representative) RepDTO {
	return RepDTO{
		ID:          string(rep.ID),
		Name:        rep.Name,
		Territory:   rep.Territory,
		PlanID:      string(rep.PlanID),
		Quota:       rep.Quota.String(),
		ActualSales: rep.ActualSales.String(),
		TargetPay:   rep.TargetPay.String(),
	}
}

func toJobDTO(job *engine.CalculationJob) JobDTO {
	dto := JobDTO{
		ID:               string(job.ID),
		PeriodStart:      job.PeriodStart.Format("2006-01-02"),
		PeriodEnd:        job.PeriodEnd.Format("2006-01-02"),
		Status:           string(job.Status),
		TotalRecords:     job.TotalRecords,
		ProcessedRecords: job.ProcessedRecords,
		ErrorCount:       job.ErrorCount,
		Progress:         job.Progress(),
		Error:            job.Error,
		CreatedAt:        job.CreatedAt.Format(time.RFC3339),
	}
	for _, id := range job.PlanIDs {
		dto.PlanIDs = append(dto.PlanIDs, string(id))
	}
	if job.StartedAt != nil {
		dto.StartedAt = job.StartedAt.Format(time.RFC3339)
	}
	if job.CompletedAt != nil {
		dto.CompletedAt = job.CompletedAt.Format(time.RFC3339)
	}
	return dto
}

func toResultDTO(r engine.FinalPayoutResult) ResultDTO {
	return ResultDTO{
		JobID:              string(r.JobID),
		RepID:              string(r.RepID),
		RepName:            r.RepName,
		Territory:          r.Territory,
		Quota:              r.Quota.String(),
		ActualSales:        r.ActualSales.String(),
		AttainmentPercent:  r.AttainmentPercent.String(),
		PlanType:           string(r.PlanType),
		CurvePayoutPercent: r.CurvePayoutPercent.String(),
		FinalPayout:        r.FinalPayout.String(),
		PercentOfTargetPay: r.PercentOfTargetPay.String(),
		AdjustmentTotal:    r.AdjustmentTotal.String(),
		Notes:              r.Notes,
	}
}

func toTraceDTO(t engine.CalculationTrace) TraceDTO {
	dto := TraceDTO{
		JobID: string(t.JobID),
		RepID: string(t.RepID),
	}
	for _, step := range t.Steps {
		input := make(map[string]string, len(step.Input))
		for k, v := range step.Input {
			input[k] = v.String()
		}
		dto.Steps = append(dto.Steps, StepDTO{
			Index:        step.Index,
			Name:         step.Name,
			Input:        input,
			Rule:         step.Rule,
			Formula:      step.Formula,
			Intermediate: step.Intermediate.String(),
			Result:       step.Result.String(),
		})
	}
	return dto
}

func toAdjustmentDTO(adj *engine.Adjustment) AdjustmentDTO {
	return AdjustmentDTO{
		ID:              adj.ID,
		RepID:           string(adj.RepID),
		JobID:           string(adj.JobID),
		OriginalPayout:  adj.OriginalPayout.String(),
		Amount:          adj.Amount.String(),
		FinalPayout:     adj.FinalPayout.String(),
		Type:            string(adj.Type),
		Reason:          adj.Reason,
		Justification:   adj.Justification,
		Priority:        string(adj.Priority),
		Status:          string(adj.Status),
		SubmittedBy:     adj.SubmittedBy,
		ReviewedBy:      adj.ReviewedBy,
		RejectionReason: adj.RejectionReason,
		Version:         adj.Version,
		CreatedAt:       adj.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       adj.UpdatedAt.Format(time.RFC3339),
	}
}

func toAnomalyDTO(a engine.Anomaly) AnomalyDTO {
	return AnomalyDTO{
		ID:                 a.ID,
		RepID:              string(a.RepID),
		JobID:              string(a.JobID),
		Type:               string(a.Type),
		Severity:           string(a.Severity),
		ConfidenceScore:    a.ConfidenceScore,
		CurrentValue:       a.CurrentValue.String(),
		ExpectedValue:      a.ExpectedValue.String(),
		Variance:           a.Variance.String(),
		VariancePercent:    a.VariancePercent.String(),
		RootCause:          a.RootCause,
		RecommendedActions: a.RecommendedActions,
		Status:             string(a.Status),
		ReviewedBy:         a.ReviewedBy,
		CreatedAt:          a.CreatedAt.Format(time.RFC3339),
	}
}

func toVersionDTO(v engine.PlanVersion) VersionDTO {
	return VersionDTO{
		ID:                v.ID,
		PlanID:            string(v.PlanID),
		VersionNumber:     v.VersionNumber,
		ChangeDescription: v.ChangeDescription,
		CreatedBy:         v.CreatedBy,
		CreatedAt:         v.CreatedAt.Format(time.RFC3339),
		IsSnapshot:        v.IsSnapshot,
	}
}

func toAuditEntryDTO(e engine.AuditEntry) AuditEntryDTO {
	return AuditEntryDTO{
		ID:           e.ID,
		PlanID:       string(e.PlanID),
		VersionID:    e.VersionID,
		UserID:       e.UserID,
		Action:       e.Action,
		Category:     string(e.Category),
		FieldChanged: e.FieldChanged,
		OldValue:     e.OldValue,
		NewValue:     e.NewValue,
		ChangeSource: e.ChangeSource,
		Timestamp:    e.Timestamp.Format(time.RFC3339),
	}
}
