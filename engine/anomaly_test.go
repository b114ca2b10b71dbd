package engine_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/warp/incentive-engine/engine"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func baselineFor(repID engine.RepID, expected float64) engine.HistoricalBaseline {
	return engine.HistoricalBaseline{
		PerRep: map[engine.RepID]decimal.Decimal{repID: engine.Dec(expected)},
	}
}

func resultWithPayout(repID engine.RepID, payout float64) engine.FinalPayoutResult {
	return engine.FinalPayoutResult{
		JobID:       "job-1",
		RepID:       repID,
		Territory:   "west",
		FinalPayout: engine.Dec(payout),
	}
}

func detect(results []engine.FinalPayoutResult, traces map[engine.RepID]engine.CalculationTrace, b engine.HistoricalBaseline) []engine.Anomaly {
	return engine.NewDetector(engine.DefaultThresholds()).Detect(results, traces, b)
}

func findType(anomalies []engine.Anomaly, t engine.AnomalyType) (engine.Anomaly, bool) {
	for _, a := range anomalies {
		if a.Type == t {
			return a, true
		}
	}
	return engine.Anomaly{}, false
}

// =============================================================================
// VARIANCE CLASSIFICATION TESTS
// =============================================================================

func TestDetector_SixtyPercentVariance_CriticalSpike(t *testing.T) {
	// GIVEN: Expected payout 10000, actual 16000 (+60%)
	// WHEN: Detecting with default thresholds (critical > 50%)
	// THEN: One payout_spike anomaly at critical severity

	anomalies := detect(
		[]engine.FinalPayoutResult{resultWithPayout("rep-1", 16000)},
		nil,
		baselineFor("rep-1", 10000),
	)

	spike, ok := findType(anomalies, engine.AnomalyPayoutSpike)
	if !ok {
		t.Fatalf("expected a payout_spike, got %+v", anomalies)
	}
	if spike.Severity != engine.SeverityCritical {
		t.Errorf("expected critical severity, got %s", spike.Severity)
	}
	if spike.Status != engine.AnomalyPending {
		t.Errorf("new anomalies must start pending, got %s", spike.Status)
	}
	wantDecimal(t, spike.VariancePercent, 60)
}

func TestDetector_TenPercentVariance_NotFlagged(t *testing.T) {
	// GIVEN: +10% variance, below the medium threshold of 15%
	// THEN: No anomaly at all

	anomalies := detect(
		[]engine.FinalPayoutResult{resultWithPayout("rep-1", 11000)},
		nil,
		baselineFor("rep-1", 10000),
	)
	if _, ok := findType(anomalies, engine.AnomalyPayoutSpike); ok {
		t.Fatal("10% variance must not be flagged")
	}
	if _, ok := findType(anomalies, engine.AnomalyPayoutDrop); ok {
		t.Fatal("10% variance must not be flagged")
	}
}

func TestDetector_NegativeVariance_Drop(t *testing.T) {
	// GIVEN: Expected 10000, actual 6500 (-35%)
	// THEN: payout_drop at high severity (30 < 35 <= 50)

	anomalies := detect(
		[]engine.FinalPayoutResult{resultWithPayout("rep-1", 6500)},
		nil,
		baselineFor("rep-1", 10000),
	)

	drop, ok := findType(anomalies, engine.AnomalyPayoutDrop)
	if !ok {
		t.Fatalf("expected a payout_drop, got %+v", anomalies)
	}
	if drop.Severity != engine.SeverityHigh {
		t.Errorf("expected high severity, got %s", drop.Severity)
	}
}

func TestDetector_NoBaseline_NoVarianceAnomaly(t *testing.T) {
	anomalies := detect(
		[]engine.FinalPayoutResult{resultWithPayout("rep-unknown", 50000)},
		nil,
		engine.HistoricalBaseline{},
	)
	if len(anomalies) != 0 {
		t.Fatalf("no baseline means no variance anomalies, got %+v", anomalies)
	}
}

// =============================================================================
// TERRITORY OUTLIER TESTS
// =============================================================================

func TestDetector_TerritoryOutlier_BeyondTwoStdDevs(t *testing.T) {
	// GIVEN: West cohort mean 10000, std dev 1000
	// WHEN: A payout at 13500 (3.5 std devs out)
	// THEN: territory_outlier fires; a peer at 11000 (1 std dev) stays clean

	baseline := engine.HistoricalBaseline{
		Cohorts: map[string]engine.CohortBaseline{
			"west": {Cohort: "west", ExpectedPayout: engine.Dec(10000), StdDev: engine.Dec(1000)},
		},
	}

	anomalies := detect(
		[]engine.FinalPayoutResult{
			resultWithPayout("rep-outlier", 13500),
			resultWithPayout("rep-normal", 11000),
		},
		nil,
		baseline,
	)

	outlier, ok := findType(anomalies, engine.AnomalyTerritoryOutlier)
	if !ok {
		t.Fatalf("expected a territory_outlier, got %+v", anomalies)
	}
	if outlier.RepID != "rep-outlier" {
		t.Errorf("wrong rep flagged: %s", outlier.RepID)
	}
	for _, a := range anomalies {
		if a.RepID == "rep-normal" && a.Type == engine.AnomalyTerritoryOutlier {
			t.Error("rep within 2 std devs must not be flagged as outlier")
		}
	}
}

// =============================================================================
// CALCULATION ERROR TESTS
// =============================================================================

func TestDetector_TamperedResult_CalculationError(t *testing.T) {
	// GIVEN: A valid trace but a stored payout inflated by 5000
	// WHEN: Detecting with the trace available
	// THEN: calculation_error at critical severity with high confidence

	result, trace, err := engine.ComputeRep(westRep(), acceleratedPlan(), decimal.Zero)
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}
	tampered := *result
	tampered.FinalPayout = tampered.FinalPayout.Add(engine.Dec(5000))
	trace.JobID = "job-1"
	tampered.JobID = "job-1"

	anomalies := detect(
		[]engine.FinalPayoutResult{tampered},
		map[engine.RepID]engine.CalculationTrace{tampered.RepID: trace},
		engine.HistoricalBaseline{},
	)

	calcErr, ok := findType(anomalies, engine.AnomalyCalculationError)
	if !ok {
		t.Fatalf("expected a calculation_error, got %+v", anomalies)
	}
	if calcErr.Severity != engine.SeverityCritical {
		t.Errorf("expected critical severity, got %s", calcErr.Severity)
	}
	if calcErr.ConfidenceScore < 90 {
		t.Errorf("replay divergence should carry high confidence, got %d", calcErr.ConfidenceScore)
	}
	if len(calcErr.RecommendedActions) == 0 {
		t.Error("expected recommended actions")
	}
}

func TestDetector_CleanResults_NoAnomalies(t *testing.T) {
	result, trace, err := engine.ComputeRep(westRep(), acceleratedPlan(), decimal.Zero)
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}

	anomalies := detect(
		[]engine.FinalPayoutResult{*result},
		map[engine.RepID]engine.CalculationTrace{result.RepID: trace},
		engine.HistoricalBaseline{},
	)
	for _, a := range anomalies {
		if a.Type == engine.AnomalyCalculationError {
			t.Fatalf("clean result flagged as calculation error: %+v", a)
		}
	}
}

// =============================================================================
// DETERMINISM
// =============================================================================

func TestDetector_Deterministic(t *testing.T) {
	// GIVEN: The same inputs
	// WHEN: Detecting twice
	// THEN: Same anomaly types, severities, and narratives

	results := []engine.FinalPayoutResult{resultWithPayout("rep-1", 16000)}
	b := baselineFor("rep-1", 10000)

	first := detect(results, nil, b)
	second := detect(results, nil, b)

	if len(first) != len(second) {
		t.Fatalf("anomaly counts diverged: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Type != second[i].Type ||
			first[i].Severity != second[i].Severity ||
			first[i].RootCause != second[i].RootCause {
			t.Errorf("anomaly %d diverged between runs", i)
		}
	}
}

// =============================================================================
// REVIEW TRANSITION TESTS
// =============================================================================

func TestReviewAnomaly_ValidLifecycle(t *testing.T) {
	a := &engine.Anomaly{Status: engine.AnomalyPending}

	if err := engine.ReviewAnomaly(a, engine.AnomalyReviewed, "analyst"); err != nil {
		t.Fatalf("pending -> reviewed failed: %v", err)
	}
	if a.ReviewedBy != "analyst" {
		t.Errorf("reviewer not recorded: %q", a.ReviewedBy)
	}
	if err := engine.ReviewAnomaly(a, engine.AnomalyResolved, "analyst"); err != nil {
		t.Fatalf("reviewed -> resolved failed: %v", err)
	}
}

func TestReviewAnomaly_PendingToFalsePositive(t *testing.T) {
	a := &engine.Anomaly{Status: engine.AnomalyPending}
	if err := engine.ReviewAnomaly(a, engine.AnomalyFalsePositive, "analyst"); err != nil {
		t.Fatalf("pending -> false_positive failed: %v", err)
	}
}

func TestReviewAnomaly_InvalidTransitions(t *testing.T) {
	cases := []struct {
		from engine.AnomalyStatus
		to   engine.AnomalyStatus
	}{
		{engine.AnomalyPending, engine.AnomalyResolved},
		{engine.AnomalyResolved, engine.AnomalyReviewed},
		{engine.AnomalyFalsePositive, engine.AnomalyReviewed},
	}
	for _, c := range cases {
		a := &engine.Anomaly{Status: c.from}
		err := engine.ReviewAnomaly(a, c.to, "analyst")
		var terr *engine.InvalidTransitionError
		if !errors.As(err, &terr) {
			t.Errorf("%s -> %s should be invalid, got %v", c.from, c.to, err)
		}
		if a.Status != c.from {
			t.Errorf("failed transition must not mutate status: %s", a.Status)
		}
	}
}
