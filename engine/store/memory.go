// Package store provides in-memory implementations of the engine's
// persistence interfaces, for testing and dev.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/warp/incentive-engine/engine"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements every engine store interface behind one RWMutex.
// Reads return copies so callers can never mutate stored state.
type Memory struct {
	mu sync.RWMutex

	reps  map[engine.RepID]engine.Representative
	plans map[engine.PlanID]*engine.PlanConfiguration
	jobs  map[engine.JobID]*engine.CalculationJob

	results map[resultKey]engine.FinalPayoutResult
	traces  map[resultKey]engine.CalculationTrace

	adjustments map[string]*engine.Adjustment
	anomalies   map[string]engine.Anomaly

	versions map[string]*engine.PlanVersion
	byPlan   map[engine.PlanID][]string // version IDs in append order
	audit    []engine.AuditEntry

	baselines map[string]engine.CohortBaseline
}

type resultKey struct {
	JobID engine.JobID
	RepID engine.RepID
}

func NewMemory() *Memory {
	return &Memory{
		reps:        make(map[engine.RepID]engine.Representative),
		plans:       make(map[engine.PlanID]*engine.PlanConfiguration),
		jobs:        make(map[engine.JobID]*engine.CalculationJob),
		results:     make(map[resultKey]engine.FinalPayoutResult),
		traces:      make(map[resultKey]engine.CalculationTrace),
		adjustments: make(map[string]*engine.Adjustment),
		anomalies:   make(map[string]engine.Anomaly),
		versions:    make(map[string]*engine.PlanVersion),
		byPlan:      make(map[engine.PlanID][]string),
		baselines:   make(map[string]engine.CohortBaseline),
	}
}

// Reset clears all data (for testing/demo).
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reps = make(map[engine.RepID]engine.Representative)
	m.plans = make(map[engine.PlanID]*engine.PlanConfiguration)
	m.jobs = make(map[engine.JobID]*engine.CalculationJob)
	m.results = make(map[resultKey]engine.FinalPayoutResult)
	m.traces = make(map[resultKey]engine.CalculationTrace)
	m.adjustments = make(map[string]*engine.Adjustment)
	m.anomalies = make(map[string]engine.Anomaly)
	m.versions = make(map[string]*engine.PlanVersion)
	m.byPlan = make(map[engine.PlanID][]string)
	m.audit = nil
	m.baselines = make(map[string]engine.CohortBaseline)
	return nil
}

// =============================================================================
// REPRESENTATIVES
// =============================================================================

func (m *Memory) SaveRep(_ context.Context, rep engine.Representative) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reps[rep.ID] = rep
	return nil
}

func (m *Memory) GetRep(_ context.Context, id engine.RepID) (*engine.Representative, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rep, ok := m.reps[id]
	if !ok {
		return nil, engine.ErrRepNotFound
	}
	return &rep, nil
}

func (m *Memory) ListReps(_ context.Context) ([]engine.Representative, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]engine.Representative, 0, len(m.reps))
	for _, rep := range m.reps {
		out = append(out, rep)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// PLANS
// =============================================================================

func (m *Memory) SavePlan(_ context.Context, plan *engine.PlanConfiguration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *plan
	m.plans[plan.ID] = &cp
	return nil
}

func (m *Memory) GetPlan(_ context.Context, id engine.PlanID) (*engine.PlanConfiguration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	plan, ok := m.plans[id]
	if !ok {
		return nil, engine.ErrPlanNotFound
	}
	cp := *plan
	return &cp, nil
}

func (m *Memory) ListPlans(_ context.Context) ([]*engine.PlanConfiguration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*engine.PlanConfiguration, 0, len(m.plans))
	for _, plan := range m.plans {
		cp := *plan
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// CALCULATION JOBS
// =============================================================================

func (m *Memory) SaveJob(_ context.Context, job *engine.CalculationJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *Memory) GetJob(_ context.Context, id engine.JobID) (*engine.CalculationJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, engine.ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (m *Memory) ListJobs(_ context.Context) ([]*engine.CalculationJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*engine.CalculationJob, 0, len(m.jobs))
	for _, job := range m.jobs {
		cp := *job
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// =============================================================================
// PAYOUT RESULTS
// =============================================================================

func (m *Memory) SaveResults(_ context.Context, results []engine.FinalPayoutResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range results {
		m.results[resultKey{JobID: r.JobID, RepID: r.RepID}] = r
	}
	return nil
}

func (m *Memory) ResultsByJob(_ context.Context, jobID engine.JobID) ([]engine.FinalPayoutResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.FinalPayoutResult
	for k, r := range m.results {
		if k.JobID == jobID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RepID < out[j].RepID })
	return out, nil
}

func (m *Memory) GetResult(_ context.Context, jobID engine.JobID, repID engine.RepID) (*engine.FinalPayoutResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.results[resultKey{JobID: jobID, RepID: repID}]
	if !ok {
		return nil, engine.ErrRepNotFound
	}
	return &r, nil
}

// ApplyAdjustment is the sole mutation on stored results: it folds an
// approved adjustment amount into the final payout and adjustment total.
func (m *Memory) ApplyAdjustment(_ context.Context, jobID engine.JobID, repID engine.RepID, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := resultKey{JobID: jobID, RepID: repID}
	r, ok := m.results[k]
	if !ok {
		return engine.ErrRepNotFound
	}
	r.FinalPayout = r.FinalPayout.Add(amount)
	r.AdjustmentTotal = r.AdjustmentTotal.Add(amount)
	m.results[k] = r
	return nil
}

// =============================================================================
// CALCULATION TRACES - Append-only
// =============================================================================

func (m *Memory) SaveTraces(_ context.Context, traces []engine.CalculationTrace) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range traces {
		k := resultKey{JobID: t.JobID, RepID: t.RepID}
		cp := t
		cp.Steps = append([]engine.CalculationStep(nil), t.Steps...)
		m.traces[k] = cp
	}
	return nil
}

func (m *Memory) Trace(_ context.Context, jobID engine.JobID, repID engine.RepID) (*engine.CalculationTrace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.traces[resultKey{JobID: jobID, RepID: repID}]
	if !ok {
		return nil, engine.ErrRepNotFound
	}
	cp := t
	cp.Steps = append([]engine.CalculationStep(nil), t.Steps...)
	return &cp, nil
}

func (m *Memory) TracesByJob(_ context.Context, jobID engine.JobID) ([]engine.CalculationTrace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.CalculationTrace
	for k, t := range m.traces {
		if k.JobID != jobID {
			continue
		}
		cp := t
		cp.Steps = append([]engine.CalculationStep(nil), t.Steps...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RepID < out[j].RepID })
	return out, nil
}

// =============================================================================
// ADJUSTMENTS - Optimistic concurrency on Version
// =============================================================================

func (m *Memory) SaveAdjustment(_ context.Context, adj *engine.Adjustment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *adj
	m.adjustments[adj.ID] = &cp
	return nil
}

func (m *Memory) GetAdjustment(_ context.Context, id string) (*engine.Adjustment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	adj, ok := m.adjustments[id]
	if !ok {
		return nil, engine.ErrAdjustmentNotFound
	}
	cp := *adj
	return &cp, nil
}

func (m *Memory) ListAdjustments(_ context.Context, status engine.AdjustmentStatus) ([]*engine.Adjustment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*engine.Adjustment
	for _, adj := range m.adjustments {
		if status != "" && adj.Status != status {
			continue
		}
		cp := *adj
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) UpdateAdjustment(_ context.Context, adj *engine.Adjustment, expectedVersion int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.adjustments[adj.ID]
	if !ok {
		return engine.ErrAdjustmentNotFound
	}
	if stored.Version != expectedVersion {
		return engine.ErrConcurrencyConflict
	}
	cp := *adj
	m.adjustments[adj.ID] = &cp
	return nil
}

// =============================================================================
// ANOMALIES
// =============================================================================

func (m *Memory) SaveAnomalies(_ context.Context, anomalies []engine.Anomaly) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range anomalies {
		m.anomalies[a.ID] = a
	}
	return nil
}

func (m *Memory) GetAnomaly(_ context.Context, id string) (*engine.Anomaly, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.anomalies[id]
	if !ok {
		return nil, engine.ErrAnomalyNotFound
	}
	return &a, nil
}

func (m *Memory) ListAnomalies(_ context.Context, jobID engine.JobID) ([]engine.Anomaly, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.Anomaly
	for _, a := range m.anomalies {
		if jobID != "" && a.JobID != jobID {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) UpdateAnomalyStatus(_ context.Context, a *engine.Anomaly) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.anomalies[a.ID]; !ok {
		return engine.ErrAnomalyNotFound
	}
	m.anomalies[a.ID] = *a
	return nil
}

// =============================================================================
// BASELINES
// =============================================================================

func (m *Memory) SaveCohortBaseline(_ context.Context, b engine.CohortBaseline) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.baselines[b.Cohort] = b
	return nil
}

func (m *Memory) Baseline(_ context.Context) (engine.HistoricalBaseline, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cohorts := make(map[string]engine.CohortBaseline, len(m.baselines))
	for k, v := range m.baselines {
		cohorts[k] = v
	}
	return engine.HistoricalBaseline{Cohorts: cohorts}, nil
}

// =============================================================================
// PLAN VERSIONS - Append-only
// =============================================================================

func (m *Memory) CurrentVersionNumber(_ context.Context, planID engine.PlanID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.byPlan[planID]
	if len(ids) == 0 {
		return 0, nil
	}
	return m.versions[ids[len(ids)-1]].VersionNumber, nil
}

func (m *Memory) AppendVersion(_ context.Context, v *engine.PlanVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *v
	m.versions[v.ID] = &cp
	m.byPlan[v.PlanID] = append(m.byPlan[v.PlanID], v.ID)
	if plan, ok := m.plans[v.PlanID]; ok {
		plan.CurrentVersion = v.VersionNumber
	}
	return nil
}

func (m *Memory) GetVersion(_ context.Context, id string) (*engine.PlanVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.versions[id]
	if !ok {
		return nil, engine.ErrVersionNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *Memory) VersionsByPlan(_ context.Context, planID engine.PlanID) ([]engine.PlanVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.byPlan[planID]
	out := make([]engine.PlanVersion, 0, len(ids))
	for _, id := range ids {
		out = append(out, *m.versions[id])
	}
	return out, nil
}

// =============================================================================
// AUDIT LOG - Append-only, ever
// =============================================================================

func (m *Memory) AppendEntry(_ context.Context, entry engine.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, entry)
	return nil
}

func (m *Memory) EntriesByPlan(_ context.Context, planID engine.PlanID) ([]engine.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.AuditEntry
	for _, e := range m.audit {
		if e.PlanID == planID {
			out = append(out, e)
		}
	}
	return out, nil
}
