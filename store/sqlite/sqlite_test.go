package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/incentive-engine/engine"
	"github.com/warp/incentive-engine/store/sqlite"
)

// =============================================================================
// FIXTURES
// =============================================================================

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func d(s string) decimal.Decimal {
	return engine.MustDecimal(s)
}

func sampleResult(jobID engine.JobID, repID engine.RepID) engine.FinalPayoutResult {
	return engine.FinalPayoutResult{
		JobID:              jobID,
		RepID:              repID,
		RepName:            "Dana Whitfield",
		Territory:          "west",
		Quota:              d("500000"),
		ActualSales:        d("650000"),
		AttainmentPercent:  d("130"),
		PlanType:           engine.PlanTieredCommission,
		CurvePayoutPercent: d("175"),
		FinalPayout:        d("21450"),
		PercentOfTargetPay: d("26.8125"),
		AdjustmentTotal:    d("0"),
	}
}

// =============================================================================
// REPRESENTATIVES
// =============================================================================

func TestRepRoundTrip(t *testing.T) {
	// GIVEN a representative saved to the store
	s := newStore(t)
	ctx := context.Background()
	rep := engine.Representative{
		ID: "rep-1", Name: "Amara Okafor", Territory: "east", PlanID: "plan-1",
		Quota: d("400000"), ActualSales: d("240000"), TargetPay: d("60000"),
	}
	require.NoError(t, s.SaveRep(ctx, rep))

	// WHEN it is read back
	got, err := s.GetRep(ctx, "rep-1")
	require.NoError(t, err)

	// THEN every field survives, decimals intact
	assert.Equal(t, rep.Name, got.Name)
	assert.Equal(t, rep.Territory, got.Territory)
	assert.Equal(t, rep.PlanID, got.PlanID)
	assert.True(t, got.Quota.Equal(rep.Quota))
	assert.True(t, got.ActualSales.Equal(rep.ActualSales))
	assert.True(t, got.TargetPay.Equal(rep.TargetPay))
}

func TestRepUpsertAndList(t *testing.T) {
	// GIVEN two reps, one saved twice with changed sales
	s := newStore(t)
	ctx := context.Background()
	rep := engine.Representative{
		ID: "rep-1", Name: "Amara Okafor", PlanID: "plan-1",
		Quota: d("400000"), ActualSales: d("240000"), TargetPay: d("60000"),
	}
	require.NoError(t, s.SaveRep(ctx, rep))
	rep.ActualSales = d("300000")
	require.NoError(t, s.SaveRep(ctx, rep))
	require.NoError(t, s.SaveRep(ctx, engine.Representative{
		ID: "rep-2", Name: "Boris Kovac", PlanID: "plan-1",
		Quota: d("400000"), ActualSales: d("400000"), TargetPay: d("60000"),
	}))

	// WHEN all reps are listed
	reps, err := s.ListReps(ctx)
	require.NoError(t, err)

	// THEN the second save replaced, not duplicated
	require.Len(t, reps, 2)
	assert.True(t, reps[0].ActualSales.Equal(d("300000")))
}

func TestGetRep_NotFound(t *testing.T) {
	s := newStore(t)
	_, err := s.GetRep(context.Background(), "nope")
	assert.True(t, engine.IsNotFound(err))
}

// =============================================================================
// PLANS
// =============================================================================

func TestPlanRoundTrip(t *testing.T) {
	// GIVEN a plan with a cap, accelerator, and territory multipliers
	s := newStore(t)
	ctx := context.Background()
	capPercent := d("300")
	threshold := d("120")
	plan := &engine.PlanConfiguration{
		ID:                 "plan-1",
		Name:               "Accelerated West",
		Type:               engine.PlanTieredCommission,
		BaseCommissionRate: d("0.02"),
		Breakpoints: []engine.Breakpoint{
			{PerformancePercent: d("0"), PayoutPercent: d("0")},
			{PerformancePercent: d("100"), PayoutPercent: d("100")},
			{PerformancePercent: d("140"), PayoutPercent: d("200")},
		},
		PayoutCapPercent:     &capPercent,
		AcceleratorThreshold: &threshold,
		AcceleratorFactor:    d("1.5"),
		TerritoryMultipliers: map[string]decimal.Decimal{"west": d("1.1")},
		CurrentVersion:       2,
	}
	require.NoError(t, s.SavePlan(ctx, plan))

	// WHEN it is read back
	got, err := s.GetPlan(ctx, "plan-1")
	require.NoError(t, err)

	// THEN the JSON column preserved the full configuration
	assert.Equal(t, plan.Name, got.Name)
	assert.Equal(t, engine.PlanTieredCommission, got.Type)
	assert.True(t, got.BaseCommissionRate.Equal(d("0.02")))
	require.Len(t, got.Breakpoints, 3)
	require.NotNil(t, got.PayoutCapPercent)
	assert.True(t, got.PayoutCapPercent.Equal(capPercent))
	require.NotNil(t, got.AcceleratorThreshold)
	assert.True(t, got.AcceleratorFactor.Equal(d("1.5")))
	assert.True(t, got.TerritoryMultipliers["west"].Equal(d("1.1")))
	assert.Equal(t, 2, got.CurrentVersion)
}

func TestGetPlan_NotFound(t *testing.T) {
	s := newStore(t)
	_, err := s.GetPlan(context.Background(), "nope")
	assert.True(t, engine.IsNotFound(err))
}

// =============================================================================
// JOBS
// =============================================================================

func TestJobRoundTrip(t *testing.T) {
	// GIVEN a job saved at creation and again after it ran
	s := newStore(t)
	ctx := context.Background()
	job := engine.NewJob([]engine.PlanID{"plan-1", "plan-2"},
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, s.SaveJob(ctx, job))

	started := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	completed := started.Add(2 * time.Second)
	job.Status = engine.JobCompleted
	job.StartedAt = &started
	job.CompletedAt = &completed
	job.TotalRecords = 3
	job.ProcessedRecords = 3
	require.NoError(t, s.SaveJob(ctx, job))

	// WHEN it is read back
	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)

	// THEN the upsert carried the lifecycle fields forward
	assert.Equal(t, engine.JobCompleted, got.Status)
	assert.Equal(t, []engine.PlanID{"plan-1", "plan-2"}, got.PlanIDs)
	assert.Equal(t, 3, got.TotalRecords)
	assert.Equal(t, 3, got.ProcessedRecords)
	require.NotNil(t, got.StartedAt)
	assert.True(t, got.StartedAt.Equal(started))
	require.NotNil(t, got.CompletedAt)
	assert.True(t, got.CompletedAt.Equal(completed))
}

func TestGetJob_NotFound(t *testing.T) {
	s := newStore(t)
	_, err := s.GetJob(context.Background(), "nope")
	assert.True(t, engine.IsNotFound(err))
}

// =============================================================================
// RESULTS
// =============================================================================

func TestResultsByJobAndGetResult(t *testing.T) {
	// GIVEN results for two jobs
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveResults(ctx, []engine.FinalPayoutResult{
		sampleResult("job-1", "rep-2"),
		sampleResult("job-1", "rep-1"),
	}))
	require.NoError(t, s.SaveResults(ctx, []engine.FinalPayoutResult{
		sampleResult("job-2", "rep-1"),
	}))

	// WHEN one job's results are queried
	results, err := s.ResultsByJob(ctx, "job-1")
	require.NoError(t, err)

	// THEN only that job's rows come back, ordered by rep
	require.Len(t, results, 2)
	assert.Equal(t, engine.RepID("rep-1"), results[0].RepID)
	assert.Equal(t, engine.RepID("rep-2"), results[1].RepID)

	got, err := s.GetResult(ctx, "job-1", "rep-1")
	require.NoError(t, err)
	assert.True(t, got.FinalPayout.Equal(d("21450")))
	assert.True(t, got.CurvePayoutPercent.Equal(d("175")))

	_, err = s.GetResult(ctx, "job-1", "rep-9")
	assert.True(t, engine.IsNotFound(err))
}

func TestApplyAdjustment_PatchesStoredResult(t *testing.T) {
	// GIVEN a stored result
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveResults(ctx, []engine.FinalPayoutResult{sampleResult("job-1", "rep-1")}))

	// WHEN an approved adjustment amount is folded in
	require.NoError(t, s.ApplyAdjustment(ctx, "job-1", "rep-1", d("500")))

	// THEN both the payout and the adjustment total move
	got, err := s.GetResult(ctx, "job-1", "rep-1")
	require.NoError(t, err)
	assert.True(t, got.FinalPayout.Equal(d("21950")), "FinalPayout = %s", got.FinalPayout)
	assert.True(t, got.AdjustmentTotal.Equal(d("500")), "AdjustmentTotal = %s", got.AdjustmentTotal)
}

func TestApplyAdjustment_MissingResult(t *testing.T) {
	s := newStore(t)
	err := s.ApplyAdjustment(context.Background(), "job-1", "rep-1", d("500"))
	assert.True(t, engine.IsNotFound(err))
}

// =============================================================================
// TRACES
// =============================================================================

func TestTraceRoundTrip(t *testing.T) {
	// GIVEN traces for two reps in one job
	s := newStore(t)
	ctx := context.Background()
	traces := []engine.CalculationTrace{
		{
			JobID: "job-1", RepID: "rep-2",
			Steps: []engine.CalculationStep{
				{Index: 1, Name: "validation", Input: map[string]decimal.Decimal{"quota": d("500000")}, Rule: "inputs valid", Intermediate: d("1"), Result: d("1")},
				{Index: 2, Name: "attainment", Input: map[string]decimal.Decimal{"quota": d("500000"), "actual_sales": d("650000")}, Formula: "650000 / 500000 * 100", Intermediate: d("130"), Result: d("130")},
			},
		},
		{
			JobID: "job-1", RepID: "rep-1",
			Steps: []engine.CalculationStep{
				{Index: 1, Name: "validation", Input: map[string]decimal.Decimal{"quota": d("400000")}, Intermediate: d("1"), Result: d("1")},
			},
		},
	}
	require.NoError(t, s.SaveTraces(ctx, traces))

	// WHEN a single trace is fetched
	got, err := s.Trace(ctx, "job-1", "rep-2")
	require.NoError(t, err)

	// THEN steps come back in index order with their input snapshots
	require.Len(t, got.Steps, 2)
	assert.Equal(t, "validation", got.Steps[0].Name)
	assert.Equal(t, "attainment", got.Steps[1].Name)
	assert.True(t, got.Steps[1].Input["actual_sales"].Equal(d("650000")))
	assert.True(t, got.Steps[1].Result.Equal(d("130")))

	// AND the per-job query groups steps per rep
	all, err := s.TracesByJob(ctx, "job-1")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, engine.RepID("rep-1"), all[0].RepID)
	assert.Equal(t, engine.RepID("rep-2"), all[1].RepID)
	assert.Len(t, all[1].Steps, 2)
}

func TestTrace_NotFound(t *testing.T) {
	s := newStore(t)
	_, err := s.Trace(context.Background(), "job-1", "rep-1")
	assert.True(t, engine.IsNotFound(err))
}

// =============================================================================
// ADJUSTMENTS
// =============================================================================

func sampleAdjustment(id string) *engine.Adjustment {
	now := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	return &engine.Adjustment{
		ID: id, RepID: "rep-1", JobID: "job-1",
		OriginalPayout: engine.MustDecimal("21450"),
		Amount:         engine.MustDecimal("500"),
		FinalPayout:    engine.MustDecimal("21950"),
		Type:           engine.AdjustmentBonus,
		Reason:         "spiff",
		Justification:  "Q1 competitive displacement spiff",
		Priority:       engine.PriorityNormal,
		Status:         engine.AdjustmentPending,
		SubmittedBy:    "manager-a",
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestAdjustmentRoundTripAndFilter(t *testing.T) {
	// GIVEN a pending and an approved adjustment
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveAdjustment(ctx, sampleAdjustment("adj-1")))
	approved := sampleAdjustment("adj-2")
	approved.Status = engine.AdjustmentApproved
	approved.CreatedAt = approved.CreatedAt.Add(time.Minute)
	approved.UpdatedAt = approved.CreatedAt
	require.NoError(t, s.SaveAdjustment(ctx, approved))

	// WHEN queried by ID and by status
	got, err := s.GetAdjustment(ctx, "adj-1")
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(d("500")))
	assert.Equal(t, engine.PriorityNormal, got.Priority)
	assert.Equal(t, 1, got.Version)

	pending, err := s.ListAdjustments(ctx, engine.AdjustmentPending)
	require.NoError(t, err)
	all, err := s.ListAdjustments(ctx, "")
	require.NoError(t, err)

	// THEN the status filter narrows and "" returns everything
	require.Len(t, pending, 1)
	assert.Equal(t, "adj-1", pending[0].ID)
	assert.Len(t, all, 2)
}

func TestUpdateAdjustment_VersionGuard(t *testing.T) {
	// GIVEN a stored adjustment at version 1
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveAdjustment(ctx, sampleAdjustment("adj-1")))

	// WHEN it is approved with the matching expected version
	adj, err := s.GetAdjustment(ctx, "adj-1")
	require.NoError(t, err)
	adj.Status = engine.AdjustmentApproved
	adj.ReviewedBy = "director-b"
	adj.Version = 2
	adj.UpdatedAt = adj.UpdatedAt.Add(time.Minute)
	require.NoError(t, s.UpdateAdjustment(ctx, adj, 1))

	// THEN the write lands
	got, err := s.GetAdjustment(ctx, "adj-1")
	require.NoError(t, err)
	assert.Equal(t, engine.AdjustmentApproved, got.Status)
	assert.Equal(t, 2, got.Version)

	// AND a second write against the stale version conflicts
	stale := *adj
	stale.Status = engine.AdjustmentRejected
	err = s.UpdateAdjustment(ctx, &stale, 1)
	assert.ErrorIs(t, err, engine.ErrConcurrencyConflict)

	// AND a write against a missing row reports not found
	ghost := sampleAdjustment("adj-9")
	err = s.UpdateAdjustment(ctx, ghost, 1)
	assert.True(t, engine.IsNotFound(err))
}

// =============================================================================
// ANOMALIES
// =============================================================================

func TestAnomalyRoundTrip(t *testing.T) {
	// GIVEN a detected anomaly with recommended actions
	s := newStore(t)
	ctx := context.Background()
	a := engine.Anomaly{
		ID: "anom-1", RepID: "rep-1", JobID: "job-1",
		Type: engine.AnomalyPayoutSpike, Severity: engine.SeverityCritical,
		ConfidenceScore: 85,
		CurrentValue:    d("32000"), ExpectedValue: d("20000"),
		Variance: d("12000"), VariancePercent: d("60"),
		RootCause:          "payout 60% above historical baseline",
		RecommendedActions: []string{"verify sales credits", "check for duplicate transactions"},
		Status:             engine.AnomalyPending,
		CreatedAt:          time.Date(2026, 4, 2, 11, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.SaveAnomalies(ctx, []engine.Anomaly{a}))

	// WHEN read back by ID and by job
	got, err := s.GetAnomaly(ctx, "anom-1")
	require.NoError(t, err)
	byJob, err := s.ListAnomalies(ctx, "job-1")
	require.NoError(t, err)
	other, err := s.ListAnomalies(ctx, "job-9")
	require.NoError(t, err)

	// THEN values, actions, and the job filter all hold
	assert.Equal(t, engine.AnomalyPayoutSpike, got.Type)
	assert.True(t, got.VariancePercent.Equal(d("60")))
	assert.Equal(t, a.RecommendedActions, got.RecommendedActions)
	assert.Len(t, byJob, 1)
	assert.Empty(t, other)
}

func TestUpdateAnomalyStatus(t *testing.T) {
	// GIVEN a pending anomaly
	s := newStore(t)
	ctx := context.Background()
	a := engine.Anomaly{
		ID: "anom-1", RepID: "rep-1", JobID: "job-1",
		Type: engine.AnomalyPayoutDrop, Severity: engine.SeverityHigh,
		CurrentValue: d("1"), ExpectedValue: d("2"), Variance: d("1"), VariancePercent: d("50"),
		Status: engine.AnomalyPending, CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.SaveAnomalies(ctx, []engine.Anomaly{a}))

	// WHEN a reviewer transition is written
	a.Status = engine.AnomalyReviewed
	a.ReviewedBy = "analyst-c"
	require.NoError(t, s.UpdateAnomalyStatus(ctx, &a))

	// THEN the transition persists, and missing IDs report not found
	got, err := s.GetAnomaly(ctx, "anom-1")
	require.NoError(t, err)
	assert.Equal(t, engine.AnomalyReviewed, got.Status)
	assert.Equal(t, "analyst-c", got.ReviewedBy)

	ghost := engine.Anomaly{ID: "anom-9", Status: engine.AnomalyReviewed}
	assert.True(t, engine.IsNotFound(s.UpdateAnomalyStatus(ctx, &ghost)))
}

// =============================================================================
// BASELINES
// =============================================================================

func TestBaselineUpsert(t *testing.T) {
	// GIVEN cohort baselines, one written twice
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveCohortBaseline(ctx, engine.CohortBaseline{
		Cohort: "per_rep:rep-1", ExpectedPayout: d("20000"), StdDev: d("1500"),
	}))
	require.NoError(t, s.SaveCohortBaseline(ctx, engine.CohortBaseline{
		Cohort: "per_rep:rep-1", ExpectedPayout: d("21000"), StdDev: d("1500"),
	}))
	require.NoError(t, s.SaveCohortBaseline(ctx, engine.CohortBaseline{
		Cohort: "west", ExpectedPayout: d("18000"), StdDev: d("2000"),
	}))

	// WHEN the full baseline loads
	baseline, err := s.Baseline(ctx)
	require.NoError(t, err)

	// THEN the upsert replaced and both cohorts are present
	require.Len(t, baseline.Cohorts, 2)
	assert.True(t, baseline.Cohorts["per_rep:rep-1"].ExpectedPayout.Equal(d("21000")))
	assert.True(t, baseline.Cohorts["west"].StdDev.Equal(d("2000")))
}

// =============================================================================
// VERSIONS
// =============================================================================

func sampleVersion(id string, planID engine.PlanID, n int) *engine.PlanVersion {
	return &engine.PlanVersion{
		ID: id, PlanID: planID, VersionNumber: n,
		ConfigurationData: `{"id":"` + string(planID) + `"}`,
		PayCurveData:      `[{"performance":0,"payout":0}]`,
		ChangeDescription: "snapshot",
		CreatedBy:         "admin",
		CreatedAt:         time.Date(2026, 4, 2, 12, n, 0, 0, time.UTC),
		IsSnapshot:        true,
	}
}

func TestAppendVersion_HistoryAndCurrentNumber(t *testing.T) {
	// GIVEN a plan with three appended versions
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.SavePlan(ctx, &engine.PlanConfiguration{
		ID: "plan-1", Name: "Plan", Type: engine.PlanGoalAttainment,
		BaseCommissionRate: d("0.02"),
		Breakpoints: []engine.Breakpoint{
			{PerformancePercent: d("0"), PayoutPercent: d("0")},
			{PerformancePercent: d("100"), PayoutPercent: d("100")},
		},
	}))
	for i := 1; i <= 3; i++ {
		require.NoError(t, s.AppendVersion(ctx, sampleVersion("v"+string(rune('0'+i)), "plan-1", i)))
	}

	// WHEN history and the current number are queried
	versions, err := s.VersionsByPlan(ctx, "plan-1")
	require.NoError(t, err)
	n, err := s.CurrentVersionNumber(ctx, "plan-1")
	require.NoError(t, err)

	// THEN history is ascending and the number tracks the height
	require.Len(t, versions, 3)
	assert.Equal(t, 1, versions[0].VersionNumber)
	assert.Equal(t, 3, versions[2].VersionNumber)
	assert.Equal(t, 3, n)

	// AND the plan row's current_version advanced with each append
	plan, err := s.GetPlan(ctx, "plan-1")
	require.NoError(t, err)
	assert.Equal(t, 3, plan.CurrentVersion)
}

func TestAppendVersion_DuplicateNumberConflicts(t *testing.T) {
	// GIVEN an existing version 1
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.AppendVersion(ctx, sampleVersion("v1", "plan-1", 1)))

	// WHEN another writer appends the same number
	err := s.AppendVersion(ctx, sampleVersion("v1b", "plan-1", 1))

	// THEN the unique index surfaces as a concurrency conflict
	assert.ErrorIs(t, err, engine.ErrConcurrencyConflict)

	// AND the same number on a different plan is fine
	assert.NoError(t, s.AppendVersion(ctx, sampleVersion("v1c", "plan-2", 1)))
}

func TestGetVersion_NotFound(t *testing.T) {
	s := newStore(t)
	_, err := s.GetVersion(context.Background(), "nope")
	assert.True(t, engine.IsNotFound(err))
}

func TestCurrentVersionNumber_EmptyPlan(t *testing.T) {
	s := newStore(t)
	n, err := s.CurrentVersionNumber(context.Background(), "plan-1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func TestAuditLogAppendOnly(t *testing.T) {
	// GIVEN three audit entries across two plans
	s := newStore(t)
	ctx := context.Background()
	base := time.Date(2026, 4, 2, 13, 0, 0, 0, time.UTC)
	entries := []engine.AuditEntry{
		{ID: "a1", PlanID: "plan-1", Action: "snapshot_created", Category: "version", ChangeSource: "api", Timestamp: base},
		{ID: "a2", PlanID: "plan-1", Action: "field_changed", Category: "configuration", FieldChanged: "base_commission_rate", OldValue: "0.02", NewValue: "0.025", Timestamp: base.Add(time.Minute)},
		{ID: "a3", PlanID: "plan-2", Action: "snapshot_created", Category: "version", Timestamp: base},
	}
	for _, e := range entries {
		require.NoError(t, s.AppendEntry(ctx, e))
	}

	// WHEN one plan's history is read
	got, err := s.EntriesByPlan(ctx, "plan-1")
	require.NoError(t, err)

	// THEN entries come back chronologically, scoped to the plan
	require.Len(t, got, 2)
	assert.Equal(t, "a1", got[0].ID)
	assert.Equal(t, "a2", got[1].ID)
	assert.Equal(t, "base_commission_rate", got[1].FieldChanged)
	assert.Equal(t, "0.025", got[1].NewValue)
}

// =============================================================================
// RESET
// =============================================================================

func TestReset(t *testing.T) {
	// GIVEN data in several tables
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveRep(ctx, engine.Representative{
		ID: "rep-1", Name: "Amara Okafor", PlanID: "plan-1",
		Quota: d("400000"), ActualSales: d("240000"), TargetPay: d("60000"),
	}))
	require.NoError(t, s.SaveResults(ctx, []engine.FinalPayoutResult{sampleResult("job-1", "rep-1")}))
	require.NoError(t, s.SaveAdjustment(ctx, sampleAdjustment("adj-1")))

	// WHEN the store resets
	require.NoError(t, s.Reset(ctx))

	// THEN everything is gone
	reps, err := s.ListReps(ctx)
	require.NoError(t, err)
	assert.Empty(t, reps)
	results, err := s.ResultsByJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Empty(t, results)
	_, err = s.GetAdjustment(ctx, "adj-1")
	assert.True(t, engine.IsNotFound(err))
}
