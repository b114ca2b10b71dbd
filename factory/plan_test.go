/*
Plan factory tests.

PURPOSE:
  Verifies JSON parsing, validation, defaulting, round-tripping, and the
  shipped preset plans.

TEST STRATEGY:
  - Parse valid and malformed JSON strings
  - Confirm defaults kick in for unknown plan types and zero factors
  - Round-trip FromJSON -> ToJSON and compare
  - Parse every preset and check its curve shape
*/
package factory_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/warp/incentive-engine/engine"
	"github.com/warp/incentive-engine/factory"
)

// =============================================================================
// FIXTURES
// =============================================================================

func validPlanJSON() string {
	return `{
		"id": "enterprise-2026",
		"name": "Enterprise Sales 2026",
		"type": "tiered_commission",
		"base_commission_rate": 0.02,
		"breakpoints": [
			{"performance": 0, "payout": 0},
			{"performance": 100, "payout": 100},
			{"performance": 140, "payout": 200}
		],
		"payout_cap_percent": 250,
		"accelerator": {"threshold": 120, "factor": 1.5},
		"territory_multipliers": {"west": 1.1}
	}`
}

// =============================================================================
// PARSING
// =============================================================================

func TestParsePlan_Valid(t *testing.T) {
	// GIVEN a well-formed plan definition
	f := factory.NewPlanFactory()

	// WHEN it is parsed
	plan, err := f.ParsePlan(validPlanJSON())
	if err != nil {
		t.Fatalf("ParsePlan: %v", err)
	}

	// THEN every field lands on the configuration
	if plan.ID != engine.PlanID("enterprise-2026") {
		t.Errorf("ID = %q, want enterprise-2026", plan.ID)
	}
	if plan.Type != engine.PlanTieredCommission {
		t.Errorf("Type = %q, want tiered_commission", plan.Type)
	}
	if !plan.BaseCommissionRate.Equal(decimal.NewFromFloat(0.02)) {
		t.Errorf("BaseCommissionRate = %s, want 0.02", plan.BaseCommissionRate)
	}
	if len(plan.Breakpoints) != 3 {
		t.Fatalf("got %d breakpoints, want 3", len(plan.Breakpoints))
	}
	if plan.PayoutCapPercent == nil || !plan.PayoutCapPercent.Equal(decimal.NewFromInt(250)) {
		t.Errorf("PayoutCapPercent = %v, want 250", plan.PayoutCapPercent)
	}
	if plan.AcceleratorThreshold == nil || !plan.AcceleratorThreshold.Equal(decimal.NewFromInt(120)) {
		t.Errorf("AcceleratorThreshold = %v, want 120", plan.AcceleratorThreshold)
	}
	if !plan.AcceleratorFactor.Equal(decimal.NewFromFloat(1.5)) {
		t.Errorf("AcceleratorFactor = %s, want 1.5", plan.AcceleratorFactor)
	}
	if !plan.TerritoryMultipliers["west"].Equal(decimal.NewFromFloat(1.1)) {
		t.Errorf("west multiplier = %s, want 1.1", plan.TerritoryMultipliers["west"])
	}
}

func TestParsePlan_MalformedJSON(t *testing.T) {
	// GIVEN a string that is not JSON
	f := factory.NewPlanFactory()

	// WHEN it is parsed
	_, err := f.ParsePlan(`{"id": "broken",`)

	// THEN parsing fails
	if err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestParsePlan_InvalidCurve(t *testing.T) {
	// GIVEN a plan whose curve points are not strictly increasing
	f := factory.NewPlanFactory()
	jsonStr := `{
		"id": "bad-curve",
		"name": "Bad Curve",
		"base_commission_rate": 0.02,
		"breakpoints": [
			{"performance": 100, "payout": 100},
			{"performance": 100, "payout": 150}
		]
	}`

	// WHEN it is parsed
	_, err := f.ParsePlan(jsonStr)

	// THEN curve validation rejects it
	var curveErr *engine.InvalidCurveError
	if !errors.As(err, &curveErr) {
		t.Fatalf("expected InvalidCurveError, got %v", err)
	}
}

func TestParsePlan_UnknownTypeDefaultsToGoalAttainment(t *testing.T) {
	// GIVEN a plan with an unrecognized type string
	f := factory.NewPlanFactory()
	jsonStr := `{
		"id": "odd-type",
		"name": "Odd Type",
		"type": "lottery",
		"base_commission_rate": 0.02,
		"breakpoints": [
			{"performance": 0, "payout": 0},
			{"performance": 100, "payout": 100}
		]
	}`

	// WHEN it is parsed
	plan, err := f.ParsePlan(jsonStr)
	if err != nil {
		t.Fatalf("ParsePlan: %v", err)
	}

	// THEN the type falls back to goal attainment
	if plan.Type != engine.PlanGoalAttainment {
		t.Errorf("Type = %q, want %q", plan.Type, engine.PlanGoalAttainment)
	}
}

func TestFromJSON_ZeroModifierFactorDefaultsToOne(t *testing.T) {
	// GIVEN an accelerator with a missing factor
	f := factory.NewPlanFactory()
	pj := factory.PlanJSON{
		ID:                 "no-factor",
		Name:               "No Factor",
		BaseCommissionRate: 0.02,
		Breakpoints: []factory.BreakpointJSON{
			{Performance: 0, Payout: 0},
			{Performance: 100, Payout: 100},
		},
		Accelerator: &factory.ModifierJSON{Threshold: 120},
	}

	// WHEN it is converted
	plan, err := f.FromJSON(pj)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}

	// THEN the factor defaults to a no-op 1x
	if !plan.AcceleratorFactor.Equal(decimal.NewFromInt(1)) {
		t.Errorf("AcceleratorFactor = %s, want 1", plan.AcceleratorFactor)
	}
}

// =============================================================================
// ROUND-TRIPPING
// =============================================================================

func TestToJSON_RoundTrip(t *testing.T) {
	// GIVEN a parsed plan
	f := factory.NewPlanFactory()
	plan, err := f.ParsePlan(validPlanJSON())
	if err != nil {
		t.Fatalf("ParsePlan: %v", err)
	}

	// WHEN it is serialized and parsed again
	pj := f.ToJSON(plan)
	restored, err := f.FromJSON(pj)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}

	// THEN nothing is lost in the round trip
	if restored.ID != plan.ID || restored.Name != plan.Name || restored.Type != plan.Type {
		t.Errorf("identity fields changed: got %s/%s/%s", restored.ID, restored.Name, restored.Type)
	}
	if !restored.BaseCommissionRate.Equal(plan.BaseCommissionRate) {
		t.Errorf("BaseCommissionRate = %s, want %s", restored.BaseCommissionRate, plan.BaseCommissionRate)
	}
	if len(restored.Breakpoints) != len(plan.Breakpoints) {
		t.Fatalf("got %d breakpoints, want %d", len(restored.Breakpoints), len(plan.Breakpoints))
	}
	for i := range plan.Breakpoints {
		if !restored.Breakpoints[i].PerformancePercent.Equal(plan.Breakpoints[i].PerformancePercent) ||
			!restored.Breakpoints[i].PayoutPercent.Equal(plan.Breakpoints[i].PayoutPercent) {
			t.Errorf("breakpoint %d changed", i)
		}
	}
	if restored.PayoutCapPercent == nil || !restored.PayoutCapPercent.Equal(*plan.PayoutCapPercent) {
		t.Errorf("PayoutCapPercent changed: %v", restored.PayoutCapPercent)
	}
	if restored.AcceleratorThreshold == nil || !restored.AcceleratorThreshold.Equal(*plan.AcceleratorThreshold) {
		t.Errorf("AcceleratorThreshold changed: %v", restored.AcceleratorThreshold)
	}
	if !restored.TerritoryMultipliers["west"].Equal(plan.TerritoryMultipliers["west"]) {
		t.Errorf("territory multipliers changed")
	}
}

// =============================================================================
// PRESETS
// =============================================================================

func TestPresets_AllParse(t *testing.T) {
	// GIVEN the factory's shipped presets
	f := factory.NewPlanFactory()
	presets := map[string]string{
		"standard":    f.StandardGoalAttainmentJSON("p1", "Standard", 0.025),
		"accelerated": f.AcceleratedTieredJSON("p2", "Accelerated", 0.02, 300),
		"territory":   f.TerritoryWeightedJSON("p3", "Territory", 0.03, map[string]float64{"south": 1.2}),
	}

	// WHEN each is parsed
	// THEN all pass validation
	for name, jsonStr := range presets {
		if _, err := f.ParsePlan(jsonStr); err != nil {
			t.Errorf("preset %s failed to parse: %v", name, err)
		}
	}
}

func TestStandardGoalAttainmentJSON_Shape(t *testing.T) {
	// GIVEN the standard goal-attainment preset
	f := factory.NewPlanFactory()
	plan, err := f.ParsePlan(f.StandardGoalAttainmentJSON("std", "Standard", 0.025))
	if err != nil {
		t.Fatalf("ParsePlan: %v", err)
	}

	// THEN it is a linear four-point curve with no cap or modifiers
	if plan.Type != engine.PlanGoalAttainment {
		t.Errorf("Type = %q, want goal_attainment", plan.Type)
	}
	wantCurve := [][2]int64{{0, 0}, {50, 25}, {100, 100}, {150, 150}}
	if len(plan.Breakpoints) != len(wantCurve) {
		t.Fatalf("got %d breakpoints, want %d", len(plan.Breakpoints), len(wantCurve))
	}
	for i, want := range wantCurve {
		if !plan.Breakpoints[i].PerformancePercent.Equal(decimal.NewFromInt(want[0])) ||
			!plan.Breakpoints[i].PayoutPercent.Equal(decimal.NewFromInt(want[1])) {
			t.Errorf("breakpoint %d = (%s, %s), want (%d, %d)", i,
				plan.Breakpoints[i].PerformancePercent, plan.Breakpoints[i].PayoutPercent,
				want[0], want[1])
		}
	}
	if plan.PayoutCapPercent != nil {
		t.Errorf("unexpected cap: %s", plan.PayoutCapPercent)
	}
	if plan.AcceleratorThreshold != nil {
		t.Errorf("unexpected accelerator")
	}
}

func TestAcceleratedTieredJSON_Shape(t *testing.T) {
	// GIVEN the accelerated tiered preset
	f := factory.NewPlanFactory()
	plan, err := f.ParsePlan(f.AcceleratedTieredJSON("acc", "Accelerated", 0.02, 300))
	if err != nil {
		t.Fatalf("ParsePlan: %v", err)
	}

	// THEN it carries the five-point curve, the cap, and the 1.5x accelerator
	if plan.Type != engine.PlanTieredCommission {
		t.Errorf("Type = %q, want tiered_commission", plan.Type)
	}
	if len(plan.Breakpoints) != 5 {
		t.Fatalf("got %d breakpoints, want 5", len(plan.Breakpoints))
	}
	last := plan.Breakpoints[4]
	if !last.PerformancePercent.Equal(decimal.NewFromInt(140)) || !last.PayoutPercent.Equal(decimal.NewFromInt(200)) {
		t.Errorf("last breakpoint = (%s, %s), want (140, 200)", last.PerformancePercent, last.PayoutPercent)
	}
	if plan.PayoutCapPercent == nil || !plan.PayoutCapPercent.Equal(decimal.NewFromInt(300)) {
		t.Errorf("PayoutCapPercent = %v, want 300", plan.PayoutCapPercent)
	}
	if plan.AcceleratorThreshold == nil || !plan.AcceleratorThreshold.Equal(decimal.NewFromInt(120)) {
		t.Errorf("AcceleratorThreshold = %v, want 120", plan.AcceleratorThreshold)
	}
	if !plan.AcceleratorFactor.Equal(decimal.NewFromFloat(1.5)) {
		t.Errorf("AcceleratorFactor = %s, want 1.5", plan.AcceleratorFactor)
	}
}

func TestTerritoryWeightedJSON_Shape(t *testing.T) {
	// GIVEN the territory-weighted preset
	f := factory.NewPlanFactory()
	multipliers := map[string]float64{"south": 1.2, "east": 1.0}
	plan, err := f.ParsePlan(f.TerritoryWeightedJSON("terr", "Territory", 0.03, multipliers))
	if err != nil {
		t.Fatalf("ParsePlan: %v", err)
	}

	// THEN the multipliers and curve survive
	if plan.Type != engine.PlanTerritoryBased {
		t.Errorf("Type = %q, want territory_based", plan.Type)
	}
	if len(plan.Breakpoints) != 3 {
		t.Fatalf("got %d breakpoints, want 3", len(plan.Breakpoints))
	}
	if !plan.Breakpoints[2].PayoutPercent.Equal(decimal.NewFromInt(175)) {
		t.Errorf("top payout = %s, want 175", plan.Breakpoints[2].PayoutPercent)
	}
	if !plan.TerritoryMultipliers["south"].Equal(decimal.NewFromFloat(1.2)) {
		t.Errorf("south multiplier = %s, want 1.2", plan.TerritoryMultipliers["south"])
	}
	if !plan.TerritoryMultipliers["east"].Equal(decimal.NewFromInt(1)) {
		t.Errorf("east multiplier = %s, want 1", plan.TerritoryMultipliers["east"])
	}
}
