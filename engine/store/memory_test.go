package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/incentive-engine/engine"
	"github.com/warp/incentive-engine/engine/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func seedResult(t *testing.T, m *store.Memory, jobID engine.JobID, repID engine.RepID, payout float64) {
	t.Helper()
	err := m.SaveResults(context.Background(), []engine.FinalPayoutResult{{
		JobID:       jobID,
		RepID:       repID,
		FinalPayout: decimal.NewFromFloat(payout),
	}})
	if err != nil {
		t.Fatalf("seed result failed: %v", err)
	}
}

// =============================================================================
// NOT-FOUND SENTINELS
// =============================================================================

func TestMemory_NotFoundSentinels(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	if _, err := m.GetRep(ctx, "none"); !engine.IsNotFound(err) {
		t.Errorf("GetRep: expected not-found, got %v", err)
	}
	if _, err := m.GetPlan(ctx, "none"); !engine.IsNotFound(err) {
		t.Errorf("GetPlan: expected not-found, got %v", err)
	}
	if _, err := m.GetJob(ctx, "none"); !engine.IsNotFound(err) {
		t.Errorf("GetJob: expected not-found, got %v", err)
	}
	if _, err := m.GetResult(ctx, "j", "r"); !engine.IsNotFound(err) {
		t.Errorf("GetResult: expected not-found, got %v", err)
	}
	if _, err := m.Trace(ctx, "j", "r"); !engine.IsNotFound(err) {
		t.Errorf("Trace: expected not-found, got %v", err)
	}
	if _, err := m.GetAdjustment(ctx, "none"); !engine.IsNotFound(err) {
		t.Errorf("GetAdjustment: expected not-found, got %v", err)
	}
	if _, err := m.GetAnomaly(ctx, "none"); !engine.IsNotFound(err) {
		t.Errorf("GetAnomaly: expected not-found, got %v", err)
	}
	if _, err := m.GetVersion(ctx, "none"); !engine.IsNotFound(err) {
		t.Errorf("GetVersion: expected not-found, got %v", err)
	}
}

// =============================================================================
// REP / PLAN ROUND TRIPS
// =============================================================================

func TestMemory_SaveRep_UpsertAndIsolation(t *testing.T) {
	// GIVEN: A saved rep
	// WHEN: Mutating the struct returned by GetRep
	// THEN: The stored copy is unaffected; reads return copies

	ctx := context.Background()
	m := store.NewMemory()

	rep := engine.Representative{
		ID: "rep-1", Name: "First", Territory: "west", PlanID: "plan-a",
		Quota: engine.Dec(100000), ActualSales: engine.Dec(90000), TargetPay: engine.Dec(20000),
	}
	if err := m.SaveRep(ctx, rep); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := m.GetRep(ctx, "rep-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	got.Name = "Mutated"

	again, _ := m.GetRep(ctx, "rep-1")
	if again.Name != "First" {
		t.Error("store handed out a shared reference")
	}

	// Upsert replaces.
	rep.Name = "Renamed"
	if err := m.SaveRep(ctx, rep); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	final, _ := m.GetRep(ctx, "rep-1")
	if final.Name != "Renamed" {
		t.Errorf("upsert did not replace: %q", final.Name)
	}

	reps, err := m.ListReps(ctx)
	if err != nil || len(reps) != 1 {
		t.Fatalf("expected 1 rep, got %d (err %v)", len(reps), err)
	}
}

// =============================================================================
// RESULTS AND THE SINGLE PERMITTED MUTATION
// =============================================================================

func TestMemory_ApplyAdjustment_PatchesResultOnce(t *testing.T) {
	// GIVEN: A stored payout result of 21450
	// WHEN: Applying a +500 adjustment
	// THEN: FinalPayout and AdjustmentTotal both move by 500

	ctx := context.Background()
	m := store.NewMemory()
	seedResult(t, m, "job-1", "rep-1", 21450)

	if err := m.ApplyAdjustment(ctx, "job-1", "rep-1", engine.Dec(500)); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	got, err := m.GetResult(ctx, "job-1", "rep-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !got.FinalPayout.Equal(engine.Dec(21950)) {
		t.Errorf("expected 21950, got %v", got.FinalPayout)
	}
	if !got.AdjustmentTotal.Equal(engine.Dec(500)) {
		t.Errorf("expected adjustment total 500, got %v", got.AdjustmentTotal)
	}
}

func TestMemory_ApplyAdjustment_MissingResult_NotFound(t *testing.T) {
	m := store.NewMemory()
	err := m.ApplyAdjustment(context.Background(), "job-x", "rep-x", engine.Dec(1))
	if !engine.IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestMemory_ResultsByJob_FiltersAcrossJobs(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	seedResult(t, m, "job-1", "rep-1", 100)
	seedResult(t, m, "job-1", "rep-2", 200)
	seedResult(t, m, "job-2", "rep-1", 300)

	results, err := m.ResultsByJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results for job-1, got %d", len(results))
	}
}

// =============================================================================
// ADJUSTMENT VERSION CHECK
// =============================================================================

func TestMemory_UpdateAdjustment_VersionMismatch_Conflict(t *testing.T) {
	// GIVEN: A stored adjustment at version 2
	// WHEN: Updating with expectedVersion 1
	// THEN: ErrConcurrencyConflict and no mutation

	ctx := context.Background()
	m := store.NewMemory()

	adj := &engine.Adjustment{
		ID: "adj-1", RepID: "rep-1", JobID: "job-1",
		Status: engine.AdjustmentApproved, Version: 2,
	}
	if err := m.SaveAdjustment(ctx, adj); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	stale := *adj
	stale.Status = engine.AdjustmentRejected
	stale.Version = 2
	err := m.UpdateAdjustment(ctx, &stale, 1)
	if err != engine.ErrConcurrencyConflict {
		t.Fatalf("expected ErrConcurrencyConflict, got %v", err)
	}

	current, _ := m.GetAdjustment(ctx, "adj-1")
	if current.Status != engine.AdjustmentApproved {
		t.Error("failed update must not mutate the stored adjustment")
	}
}

func TestMemory_ListAdjustments_StatusFilter(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	statuses := []engine.AdjustmentStatus{
		engine.AdjustmentPending, engine.AdjustmentPending, engine.AdjustmentApplied,
	}
	for i, s := range statuses {
		adj := &engine.Adjustment{ID: string(rune('a' + i)), Status: s, Version: 1}
		if err := m.SaveAdjustment(ctx, adj); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	pending, _ := m.ListAdjustments(ctx, engine.AdjustmentPending)
	if len(pending) != 2 {
		t.Errorf("expected 2 pending, got %d", len(pending))
	}
	all, _ := m.ListAdjustments(ctx, "")
	if len(all) != 3 {
		t.Errorf("expected 3 total, got %d", len(all))
	}
}

// =============================================================================
// VERSIONS ARE APPEND-ONLY AND ORDERED
// =============================================================================

func TestMemory_AppendVersion_PreservesAppendOrder(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	for i := 1; i <= 3; i++ {
		v := &engine.PlanVersion{
			ID:            string(rune('0' + i)),
			PlanID:        "plan-a",
			VersionNumber: i,
			CreatedAt:     time.Now().UTC(),
		}
		if err := m.AppendVersion(ctx, v); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	n, err := m.CurrentVersionNumber(ctx, "plan-a")
	if err != nil || n != 3 {
		t.Fatalf("expected current version 3, got %d (err %v)", n, err)
	}

	versions, err := m.VersionsByPlan(ctx, "plan-a")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	for i, v := range versions {
		if v.VersionNumber != i+1 {
			t.Errorf("versions out of append order at %d: %d", i, v.VersionNumber)
		}
	}
}

func TestMemory_CurrentVersionNumber_ZeroWhenEmpty(t *testing.T) {
	m := store.NewMemory()
	n, err := m.CurrentVersionNumber(context.Background(), "plan-new")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 for a plan with no versions, got %d", n)
	}
}

// =============================================================================
// BASELINES AND RESET
// =============================================================================

func TestMemory_Baseline_RoundTrip(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	err := m.SaveCohortBaseline(ctx, engine.CohortBaseline{
		Cohort: "west", ExpectedPayout: engine.Dec(12000), StdDev: engine.Dec(2000),
	})
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	b, err := m.Baseline(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	c, ok := b.Cohorts["west"]
	if !ok {
		t.Fatal("west cohort missing")
	}
	if !c.ExpectedPayout.Equal(engine.Dec(12000)) {
		t.Errorf("expected payout 12000, got %v", c.ExpectedPayout)
	}
}

func TestMemory_Reset_ClearsEverything(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	if err := m.SaveRep(ctx, engine.Representative{ID: "rep-1", Quota: engine.Dec(1)}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	seedResult(t, m, "job-1", "rep-1", 100)

	if err := m.Reset(ctx); err != nil {
		t.Fatalf("reset failed: %v", err)
	}

	reps, _ := m.ListReps(ctx)
	if len(reps) != 0 {
		t.Error("reset left reps behind")
	}
	if _, err := m.GetResult(ctx, "job-1", "rep-1"); !engine.IsNotFound(err) {
		t.Error("reset left results behind")
	}
}
