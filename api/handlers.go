/*
handlers.go - HTTP API handlers for the incentive compensation engine

PURPOSE:
  Exposes the calculation engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Representatives:
    GET    /api/reps                   List all reps
    POST   /api/reps                   Create/update rep
    GET    /api/reps/{id}              Get rep details

  Plans:
    GET    /api/plans                  List all plans
    POST   /api/plans                  Create plan from JSON
    GET    /api/plans/{id}             Get plan details
    POST   /api/plans/{id}/snapshot    Create plan version
    GET    /api/plans/{id}/versions    Version history
    POST   /api/plans/{id}/restore     Restore to a version (as new version)
    GET    /api/plans/{id}/audit       Audit log entries

  Jobs:
    POST   /api/jobs                   Start calculation job (async)
    GET    /api/jobs                   List jobs
    GET    /api/jobs/{id}              Job status and progress
    GET    /api/jobs/{id}/results      Final payout results
    GET    /api/jobs/{id}/results/{rep}/trace  Calculation trace
    POST   /api/jobs/{id}/anomalies/scan       Run anomaly detector

  Adjustments:
    POST   /api/adjustments            Submit adjustment
    GET    /api/adjustments            List (filter by status)
    GET    /api/adjustments/{id}       Get adjustment
    POST   /api/adjustments/{id}/approve
    POST   /api/adjustments/{id}/reject
    POST   /api/adjustments/{id}/apply

  Anomalies:
    GET    /api/anomalies              List anomalies (filter by job_id)
    GET    /api/anomalies/{id}         Get anomaly
    POST   /api/anomalies/{id}/review  Reviewer transition

  Scenarios:
    GET    /api/scenarios              List demo scenarios
    POST   /api/scenarios/load         Load a demo scenario
    POST   /api/scenarios/reset        Reset database

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (version check, invalid transition)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. Actor identity comes from
  request bodies. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/incentive-engine/engine"
	"github.com/warp/incentive-engine/factory"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is everything the API needs from persistence: all engine store
// interfaces behind one value, plus Reset for demo scenarios.
type Store interface {
	engine.RepStore
	engine.PlanStore
	engine.JobStore
	engine.ResultStore
	engine.TraceStore
	engine.AdjustmentStore
	engine.AnomalyStore
	engine.BaselineStore
	engine.VersionStore
	engine.AuditLog

	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    Store
	Engine   *engine.Engine
	Workflow *engine.Workflow
	Versions *engine.VersionService
	Detector *engine.Detector
	Factory  *factory.PlanFactory

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler wired to the given store.
func NewHandler(store Store, eng *engine.Engine, detector *engine.Detector) *Handler {
	return &Handler{
		Store:    store,
		Engine:   eng,
		Workflow: &engine.Workflow{Adjustments: store, Results: store},
		Versions: engine.NewVersionService(store, store),
		Detector: detector,
		Factory:  factory.NewPlanFactory(),
	}
}

// =============================================================================
// REPRESENTATIVE HANDLERS
// =============================================================================

// ListReps returns all representatives.
func (h *Handler) ListReps(w http.ResponseWriter, r *http.Request) {
	reps, err := h.Store.ListReps(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list reps", err)
		return
	}

	dtos := make([]RepDTO, len(reps))
	for i, rep := range reps {
		dtos[i] = toRepDTO(rep)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRep returns a single representative.
func (h *Handler) GetRep(w http.ResponseWriter, r *http.Request) {
	id := engine.RepID(chi.URLParam(r, "id"))

	rep, err := h.Store.GetRep(r.Context(), id)
	if err != nil {
		writeError(w, errStatus(err), "Failed to get rep", err)
		return
	}
	writeJSON(w, http.StatusOK, toRepDTO(*rep))
}

// CreateRep creates or updates a representative.
func (h *Handler) CreateRep(w http.ResponseWriter, r *http.Request) {
	var req CreateRepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required", nil)
		return
	}

	quota, err := decimal.NewFromString(req.Quota)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid quota", err)
		return
	}
	actualSales, err := decimal.NewFromString(req.ActualSales)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid actual_sales", err)
		return
	}
	targetPay, err := decimal.NewFromString(req.TargetPay)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid target_pay", err)
		return
	}

	rep := engine.Representative{
		ID:          engine.RepID(req.ID),
		Name:        req.Name,
		Territory:   req.Territory,
		PlanID:      engine.PlanID(req.PlanID),
		Quota:       quota,
		ActualSales: actualSales,
		TargetPay:   targetPay,
	}

	if err := h.Store.SaveRep(r.Context(), rep); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save rep", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRepDTO(rep))
}

// =============================================================================
// PLAN HANDLERS
// =============================================================================

// ListPlans returns all plans.
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.Store.ListPlans(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list plans", err)
		return
	}

	dtos := make([]PlanDTO, len(plans))
	for i, plan := range plans {
		dtos[i] = h.toPlanDTO(plan)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetPlan returns a single plan.
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	id := engine.PlanID(chi.URLParam(r, "id"))

	plan, err := h.Store.GetPlan(r.Context(), id)
	if err != nil {
		writeError(w, errStatus(err), "Failed to get plan", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toPlanDTO(plan))
}

// CreatePlan creates a plan from its JSON configuration.
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req CreatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	plan, err := h.Factory.FromJSON(req.Config)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid plan configuration", err)
		return
	}

	if err := h.Store.SavePlan(r.Context(), plan); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save plan", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toPlanDTO(plan))
}

func (h *Handler) toPlanDTO(plan *engine.PlanConfiguration) PlanDTO {
	return PlanDTO{
		ID:             string(plan.ID),
		Name:           plan.Name,
		Type:           string(plan.Type),
		Config:         h.Factory.ToJSON(plan),
		CurrentVersion: plan.CurrentVersion,
	}
}

// =============================================================================
// PLAN VERSIONING HANDLERS
// =============================================================================

// CreateSnapshot captures the plan's current configuration as a new version.
func (h *Handler) CreateSnapshot(w http.ResponseWriter, r *http.Request) {
	planID := engine.PlanID(chi.URLParam(r, "id"))

	var req SnapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	plan, err := h.Store.GetPlan(r.Context(), planID)
	if err != nil {
		writeError(w, errStatus(err), "Failed to get plan", err)
		return
	}

	pj := h.Factory.ToJSON(plan)
	configData, err := json.Marshal(pj)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to serialize plan", err)
		return
	}
	curveData, err := json.Marshal(pj.Breakpoints)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to serialize pay curve", err)
		return
	}

	version, err := h.Versions.CreateSnapshot(r.Context(), engine.SnapshotInput{
		PlanID:            planID,
		ConfigurationData: string(configData),
		PayCurveData:      string(curveData),
		SimulationResults: req.SimulationResults,
		ChangeDescription: req.Description,
		CreatedBy:         req.CreatedBy,
		ChangeSource:      "api",
	})
	if err != nil {
		writeError(w, errStatus(err), "Failed to create snapshot", err)
		return
	}

	plan.CurrentVersion = version.VersionNumber
	if err := h.Store.SavePlan(r.Context(), plan); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update plan version", err)
		return
	}

	writeJSON(w, http.StatusCreated, toVersionDTO(*version))
}

// ListVersions returns the version history of a plan.
func (h *Handler) ListVersions(w http.ResponseWriter, r *http.Request) {
	planID := engine.PlanID(chi.URLParam(r, "id"))

	versions, err := h.Versions.History(r.Context(), planID)
	if err != nil {
		writeError(w, errStatus(err), "Failed to list versions", err)
		return
	}

	dtos := make([]VersionDTO, len(versions))
	for i, v := range versions {
		dtos[i] = toVersionDTO(v)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RestorePlan restores a plan to an earlier version. History stays intact:
// the restore lands as a new version on top.
func (h *Handler) RestorePlan(w http.ResponseWriter, r *http.Request) {
	planID := engine.PlanID(chi.URLParam(r, "id"))

	var req RestoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	restored, err := h.Versions.Restore(r.Context(), req.VersionID, req.Actor)
	if err != nil {
		writeError(w, errStatus(err), "Failed to restore version", err)
		return
	}
	if restored.PlanID != planID {
		writeError(w, http.StatusBadRequest, "Version belongs to a different plan", nil)
		return
	}

	// Make the restored configuration live again.
	plan, err := h.Factory.ParsePlan(restored.ConfigurationData)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to parse restored configuration", err)
		return
	}
	plan.CurrentVersion = restored.VersionNumber
	if err := h.Store.SavePlan(r.Context(), plan); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save restored plan", err)
		return
	}

	writeJSON(w, http.StatusOK, toVersionDTO(*restored))
}

// ListAuditEntries returns the configuration audit log for a plan.
func (h *Handler) ListAuditEntries(w http.ResponseWriter, r *http.Request) {
	planID := engine.PlanID(chi.URLParam(r, "id"))

	entries, err := h.Store.EntriesByPlan(r.Context(), planID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list audit entries", err)
		return
	}

	dtos := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toAuditEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// JOB HANDLERS
// =============================================================================

// StartJob creates a calculation job and runs it in the background.
// Responds 202 immediately; clients poll GET /api/jobs/{id} for progress.
func (h *Handler) StartJob(w http.ResponseWriter, r *http.Request) {
	var req StartJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	periodStart, err := time.Parse("2006-01-02", req.PeriodStart)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period_start (use YYYY-MM-DD)", err)
		return
	}
	periodEnd, err := time.Parse("2006-01-02", req.PeriodEnd)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period_end (use YYYY-MM-DD)", err)
		return
	}
	if !periodEnd.After(periodStart) {
		writeError(w, http.StatusBadRequest, "period_end must be after period_start", nil)
		return
	}

	ctx := r.Context()

	plans, err := h.Store.ListPlans(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list plans", err)
		return
	}

	// Empty plan_ids means every plan.
	wanted := make(map[engine.PlanID]bool, len(req.PlanIDs))
	for _, id := range req.PlanIDs {
		wanted[engine.PlanID(id)] = true
	}

	planMap := make(map[engine.PlanID]*engine.PlanConfiguration)
	var planIDs []engine.PlanID
	for _, plan := range plans {
		if len(wanted) > 0 && !wanted[plan.ID] {
			continue
		}
		planMap[plan.ID] = plan
		planIDs = append(planIDs, plan.ID)
	}
	if len(planMap) == 0 {
		writeError(w, http.StatusBadRequest, "No matching plans", nil)
		return
	}

	allReps, err := h.Store.ListReps(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list reps", err)
		return
	}
	var reps []engine.Representative
	for _, rep := range allReps {
		if _, ok := planMap[rep.PlanID]; ok {
			reps = append(reps, rep)
		}
	}

	applied, err := h.appliedAdjustments(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load adjustments", err)
		return
	}

	job := engine.NewJob(planIDs, periodStart, periodEnd)
	if err := h.Store.SaveJob(ctx, job); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save job", err)
		return
	}

	// Snapshot the DTO before handing the job to the worker goroutine:
	// RunJob mutates the job's status and counters immediately.
	dto := toJobDTO(job)

	go h.runJob(job, engine.RunInput{
		Reps:               reps,
		Plans:              planMap,
		AppliedAdjustments: applied,
	})

	writeJSON(w, http.StatusAccepted, dto)
}

// runJob executes the calculation and persists everything it produced.
// Detached from the request context: a disconnecting client must not
// abort a running payout calculation.
func (h *Handler) runJob(job *engine.CalculationJob, in engine.RunInput) {
	ctx := context.Background()

	out, err := h.Engine.RunJob(ctx, job, in)
	if err != nil {
		if saveErr := h.Store.SaveJob(ctx, job); saveErr != nil {
			zap.L().Error("failed to persist failed job",
				zap.String("job_id", string(job.ID)), zap.Error(saveErr))
		}
		return
	}

	if err := h.Store.SaveResults(ctx, out.Results); err != nil {
		zap.L().Error("failed to persist results",
			zap.String("job_id", string(job.ID)), zap.Error(err))
	}
	if err := h.Store.SaveTraces(ctx, out.Traces); err != nil {
		zap.L().Error("failed to persist traces",
			zap.String("job_id", string(job.ID)), zap.Error(err))
	}
	if err := h.Store.SaveJob(ctx, job); err != nil {
		zap.L().Error("failed to persist job",
			zap.String("job_id", string(job.ID)), zap.Error(err))
	}
}

// appliedAdjustments sums adjustments in applied status per rep.
func (h *Handler) appliedAdjustments(ctx context.Context) (map[engine.RepID]decimal.Decimal, error) {
	adjs, err := h.Store.ListAdjustments(ctx, engine.AdjustmentApplied)
	if err != nil {
		return nil, err
	}
	applied := make(map[engine.RepID]decimal.Decimal, len(adjs))
	for _, adj := range adjs {
		applied[adj.RepID] = applied[adj.RepID].Add(adj.Amount)
	}
	return applied, nil
}

// ListJobs returns all calculation jobs.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.Store.ListJobs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list jobs", err)
		return
	}

	dtos := make([]JobDTO, len(jobs))
	for i, job := range jobs {
		dtos[i] = toJobDTO(job)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetJob returns a job's status and progress.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := engine.JobID(chi.URLParam(r, "id"))

	job, err := h.Store.GetJob(r.Context(), id)
	if err != nil {
		writeError(w, errStatus(err), "Failed to get job", err)
		return
	}
	writeJSON(w, http.StatusOK, toJobDTO(job))
}

// ListResults returns the final payout results of a job.
func (h *Handler) ListResults(w http.ResponseWriter, r *http.Request) {
	id := engine.JobID(chi.URLParam(r, "id"))

	if _, err := h.Store.GetJob(r.Context(), id); err != nil {
		writeError(w, errStatus(err), "Failed to get job", err)
		return
	}

	results, err := h.Store.ResultsByJob(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list results", err)
		return
	}

	dtos := make([]ResultDTO, len(results))
	for i, res := range results {
		dtos[i] = toResultDTO(res)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetTrace returns the step-by-step calculation trace for one rep.
func (h *Handler) GetTrace(w http.ResponseWriter, r *http.Request) {
	jobID := engine.JobID(chi.URLParam(r, "id"))
	repID := engine.RepID(chi.URLParam(r, "rep"))

	trace, err := h.Store.Trace(r.Context(), jobID, repID)
	if err != nil {
		writeError(w, errStatus(err), "Failed to get trace", err)
		return
	}
	writeJSON(w, http.StatusOK, toTraceDTO(*trace))
}

// =============================================================================
// ADJUSTMENT HANDLERS
// =============================================================================

// SubmitAdjustment submits a manual adjustment for review.
func (h *Handler) SubmitAdjustment(w http.ResponseWriter, r *http.Request) {
	var req SubmitAdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	// The adjustment targets an existing payout result.
	result, err := h.Store.GetResult(r.Context(),
		engine.JobID(req.JobID), engine.RepID(req.RepID))
	if err != nil {
		writeError(w, errStatus(err), "Payout result not found", err)
		return
	}

	adj, err := h.Workflow.Submit(r.Context(), engine.SubmitInput{
		RepID:          engine.RepID(req.RepID),
		JobID:          engine.JobID(req.JobID),
		OriginalPayout: result.FinalPayout,
		Amount:         amount,
		Type:           engine.AdjustmentType(req.Type),
		Reason:         req.Reason,
		Justification:  req.Justification,
		Priority:       engine.AdjustmentPriority(req.Priority),
		SubmittedBy:    req.SubmittedBy,
	})
	if err != nil {
		writeError(w, errStatus(err), "Failed to submit adjustment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAdjustmentDTO(adj))
}

// ListAdjustments returns adjustments, optionally filtered by ?status=.
func (h *Handler) ListAdjustments(w http.ResponseWriter, r *http.Request) {
	status := engine.AdjustmentStatus(r.URL.Query().Get("status"))

	adjs, err := h.Store.ListAdjustments(r.Context(), status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list adjustments", err)
		return
	}

	dtos := make([]AdjustmentDTO, len(adjs))
	for i, adj := range adjs {
		dtos[i] = toAdjustmentDTO(adj)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetAdjustment returns a single adjustment.
func (h *Handler) GetAdjustment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	adj, err := h.Store.GetAdjustment(r.Context(), id)
	if err != nil {
		writeError(w, errStatus(err), "Failed to get adjustment", err)
		return
	}
	writeJSON(w, http.StatusOK, toAdjustmentDTO(adj))
}

// ApproveAdjustment approves a pending adjustment.
func (h *Handler) ApproveAdjustment(w http.ResponseWriter, r *http.Request) {
	h.reviewAdjustment(w, r, func(ctx context.Context, id string, req ReviewAdjustmentRequest) (*engine.Adjustment, error) {
		return h.Workflow.Approve(ctx, id, req.Actor, req.Version)
	})
}

// RejectAdjustment rejects a pending adjustment.
func (h *Handler) RejectAdjustment(w http.ResponseWriter, r *http.Request) {
	h.reviewAdjustment(w, r, func(ctx context.Context, id string, req ReviewAdjustmentRequest) (*engine.Adjustment, error) {
		return h.Workflow.Reject(ctx, id, req.Actor, req.Reason, req.Version)
	})
}

// ApplyAdjustment applies an approved adjustment to the payout result.
func (h *Handler) ApplyAdjustment(w http.ResponseWriter, r *http.Request) {
	h.reviewAdjustment(w, r, func(ctx context.Context, id string, req ReviewAdjustmentRequest) (*engine.Adjustment, error) {
		return h.Workflow.Apply(ctx, id, req.Actor, req.Version)
	})
}

func (h *Handler) reviewAdjustment(
	w http.ResponseWriter,
	r *http.Request,
	action func(ctx context.Context, id string, req ReviewAdjustmentRequest) (*engine.Adjustment, error),
) {
	id := chi.URLParam(r, "id")

	var req ReviewAdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	adj, err := action(r.Context(), id, req)
	if err != nil {
		writeError(w, errStatus(err), "Adjustment action failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toAdjustmentDTO(adj))
}

// =============================================================================
// ANOMALY HANDLERS
// =============================================================================

// ScanJob runs the anomaly detector over a completed job's results.
func (h *Handler) ScanJob(w http.ResponseWriter, r *http.Request) {
	jobID := engine.JobID(chi.URLParam(r, "id"))
	ctx := r.Context()

	job, err := h.Store.GetJob(ctx, jobID)
	if err != nil {
		writeError(w, errStatus(err), "Failed to get job", err)
		return
	}
	if job.Status != engine.JobCompleted {
		writeError(w, http.StatusConflict, "Job has not completed", nil)
		return
	}

	anomalies, err := h.detectForJob(ctx, jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Anomaly scan failed", err)
		return
	}

	if err := h.Store.SaveAnomalies(ctx, anomalies); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save anomalies", err)
		return
	}

	dtos := make([]AnomalyDTO, len(anomalies))
	for i, a := range anomalies {
		dtos[i] = toAnomalyDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// detectForJob loads a job's results, traces, and the historical baseline,
// then runs the detector. Shared with the background scan scheduler.
func (h *Handler) detectForJob(ctx context.Context, jobID engine.JobID) ([]engine.Anomaly, error) {
	results, err := h.Store.ResultsByJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	traceList, err := h.Store.TracesByJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	traces := make(map[engine.RepID]engine.CalculationTrace, len(traceList))
	for _, t := range traceList {
		traces[t.RepID] = t
	}
	baseline, err := h.Store.Baseline(ctx)
	if err != nil {
		return nil, err
	}
	return h.Detector.Detect(results, traces, baseline), nil
}

// ListAnomalies returns anomalies, optionally filtered by ?job_id=.
func (h *Handler) ListAnomalies(w http.ResponseWriter, r *http.Request) {
	jobID := engine.JobID(r.URL.Query().Get("job_id"))

	anomalies, err := h.Store.ListAnomalies(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list anomalies", err)
		return
	}

	dtos := make([]AnomalyDTO, len(anomalies))
	for i, a := range anomalies {
		dtos[i] = toAnomalyDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetAnomaly returns a single anomaly.
func (h *Handler) GetAnomaly(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	a, err := h.Store.GetAnomaly(r.Context(), id)
	if err != nil {
		writeError(w, errStatus(err), "Failed to get anomaly", err)
		return
	}
	writeJSON(w, http.StatusOK, toAnomalyDTO(*a))
}

// ReviewAnomaly applies a reviewer transition to an anomaly.
func (h *Handler) ReviewAnomaly(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req ReviewAnomalyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	a, err := h.Store.GetAnomaly(r.Context(), id)
	if err != nil {
		writeError(w, errStatus(err), "Failed to get anomaly", err)
		return
	}

	if err := engine.ReviewAnomaly(a, engine.AnomalyStatus(req.Status), req.Reviewer); err != nil {
		writeError(w, errStatus(err), "Invalid review transition", err)
		return
	}

	if err := h.Store.UpdateAnomalyStatus(r.Context(), a); err != nil {
		writeError(w, errStatus(err), "Failed to update anomaly", err)
		return
	}
	writeJSON(w, http.StatusOK, toAnomalyDTO(*a))
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// errStatus maps domain errors to HTTP status codes.
func errStatus(err error) int {
	switch {
	case engine.IsNotFound(err):
		return http.StatusNotFound
	case engine.IsRetryable(err):
		return http.StatusConflict
	case errors.Is(err, engine.ErrInvalidTransition):
		return http.StatusConflict
	case engine.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
