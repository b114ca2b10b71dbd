/*
Package factory provides JSON to Go plan conversion.

PURPOSE:
  Converts JSON plan definitions into engine.PlanConfiguration objects.
  This enables plan configuration without code changes - comp admins can
  define plans in JSON, and the factory creates the proper Go structs.

WHY JSON?
  - Non-developers can modify plans
  - Easy integration with admin UI
  - Version control for plan definitions
  - Database storage of plan configs

JSON SCHEMA:
  {
    "id": "enterprise-2026",
    "name": "Enterprise Sales 2026",
    "type": "goal_attainment",
    "base_commission_rate": 0.02,
    "breakpoints": [
      {"performance": 0, "payout": 0},
      {"performance": 100, "payout": 100},
      {"performance": 140, "payout": 200}
    ],
    "payout_cap_percent": 250,
    "accelerator": {"threshold": 120, "factor": 1.5},
    "territory_multipliers": {"west": 1.1}
  }

KEY FEATURES:
  - Validates JSON structure and the pay curve
  - Sets sensible defaults (plan type, factors)
  - Round-trips plans back to JSON for version snapshots
  - Ships preset plans for common compensation designs

USAGE:
  factory := NewPlanFactory()

  // From JSON string
  plan, err := factory.ParsePlan(jsonString)

  // From preset (recommended)
  jsonStr := factory.StandardGoalAttainmentJSON("enterprise-2026", "Enterprise Sales 2026", 0.02)
  plan, err := factory.ParsePlan(jsonStr)

SEE ALSO:
  - engine/types.go: PlanConfiguration type definition
  - engine/curve.go: Pay curve validation rules
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/incentive-engine/engine"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PlanJSON is the JSON representation of a plan configuration.
type PlanJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`

	BaseCommissionRate float64          `json:"base_commission_rate"`
	Breakpoints        []BreakpointJSON `json:"breakpoints"`

	PayoutCapPercent *float64 `json:"payout_cap_percent,omitempty"`

	Accelerator *ModifierJSON `json:"accelerator,omitempty"`
	Decelerator *ModifierJSON `json:"decelerator,omitempty"`

	ExtendBeyondCurve bool `json:"extend_beyond_curve,omitempty"`

	TerritoryMultipliers map[string]float64 `json:"territory_multipliers,omitempty"`
}

// BreakpointJSON is one (performance, payout) point on a pay curve.
type BreakpointJSON struct {
	Performance float64 `json:"performance"`
	Payout      float64 `json:"payout"`
}

// ModifierJSON configures an accelerator or decelerator.
type ModifierJSON struct {
	Threshold float64 `json:"threshold"`
	Factor    float64 `json:"factor"`
}

// =============================================================================
// PLAN FACTORY
// =============================================================================

// PlanFactory converts JSON plans to Go structs.
type PlanFactory struct{}

// NewPlanFactory creates a new plan factory.
func NewPlanFactory() *PlanFactory {
	return &PlanFactory{}
}

// ParsePlan parses a JSON string into a validated PlanConfiguration.
func (f *PlanFactory) ParsePlan(jsonStr string) (*engine.PlanConfiguration, error) {
	var pj PlanJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return nil, fmt.Errorf("failed to parse plan JSON: %w", err)
	}

	return f.FromJSON(pj)
}

// FromJSON converts PlanJSON to an engine.PlanConfiguration.
func (f *PlanFactory) FromJSON(pj PlanJSON) (*engine.PlanConfiguration, error) {
	plan := &engine.PlanConfiguration{
		ID:                 engine.PlanID(pj.ID),
		Name:               pj.Name,
		Type:               parsePlanType(pj.Type),
		BaseCommissionRate: decimal.NewFromFloat(pj.BaseCommissionRate),
		ExtendBeyondCurve:  pj.ExtendBeyondCurve,
	}

	for _, bp := range pj.Breakpoints {
		plan.Breakpoints = append(plan.Breakpoints, engine.Breakpoint{
			PerformancePercent: decimal.NewFromFloat(bp.Performance),
			PayoutPercent:      decimal.NewFromFloat(bp.Payout),
		})
	}

	if pj.PayoutCapPercent != nil {
		capPercent := decimal.NewFromFloat(*pj.PayoutCapPercent)
		plan.PayoutCapPercent = &capPercent
	}

	if pj.Accelerator != nil {
		threshold := decimal.NewFromFloat(pj.Accelerator.Threshold)
		plan.AcceleratorThreshold = &threshold
		plan.AcceleratorFactor = modifierFactor(pj.Accelerator.Factor)
	}

	if pj.Decelerator != nil {
		threshold := decimal.NewFromFloat(pj.Decelerator.Threshold)
		plan.DeceleratorThreshold = &threshold
		plan.DeceleratorFactor = modifierFactor(pj.Decelerator.Factor)
	}

	if len(pj.TerritoryMultipliers) > 0 {
		plan.TerritoryMultipliers = make(map[string]decimal.Decimal, len(pj.TerritoryMultipliers))
		for territory, m := range pj.TerritoryMultipliers {
			plan.TerritoryMultipliers[territory] = decimal.NewFromFloat(m)
		}
	}

	if err := plan.Validate(); err != nil {
		return nil, err
	}

	return plan, nil
}

// ToJSON converts a PlanConfiguration back to PlanJSON. Used when
// snapshotting plan versions.
func (f *PlanFactory) ToJSON(plan *engine.PlanConfiguration) PlanJSON {
	pj := PlanJSON{
		ID:                string(plan.ID),
		Name:              plan.Name,
		Type:              string(plan.Type),
		ExtendBeyondCurve: plan.ExtendBeyondCurve,
	}
	pj.BaseCommissionRate, _ = plan.BaseCommissionRate.Float64()

	for _, bp := range plan.Breakpoints {
		perf, _ := bp.PerformancePercent.Float64()
		pay, _ := bp.PayoutPercent.Float64()
		pj.Breakpoints = append(pj.Breakpoints, BreakpointJSON{Performance: perf, Payout: pay})
	}

	if plan.PayoutCapPercent != nil {
		v, _ := plan.PayoutCapPercent.Float64()
		pj.PayoutCapPercent = &v
	}

	if plan.AcceleratorThreshold != nil {
		threshold, _ := plan.AcceleratorThreshold.Float64()
		factor, _ := plan.AcceleratorFactor.Float64()
		pj.Accelerator = &ModifierJSON{Threshold: threshold, Factor: factor}
	}

	if plan.DeceleratorThreshold != nil {
		threshold, _ := plan.DeceleratorThreshold.Float64()
		factor, _ := plan.DeceleratorFactor.Float64()
		pj.Decelerator = &ModifierJSON{Threshold: threshold, Factor: factor}
	}

	if len(plan.TerritoryMultipliers) > 0 {
		pj.TerritoryMultipliers = make(map[string]float64, len(plan.TerritoryMultipliers))
		for territory, m := range plan.TerritoryMultipliers {
			v, _ := m.Float64()
			pj.TerritoryMultipliers[territory] = v
		}
	}

	return pj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parsePlanType(s string) engine.PlanType {
	switch engine.PlanType(s) {
	case engine.PlanGoalAttainmentRank, engine.PlanMatrix, engine.PlanRankBased,
		engine.PlanVolumeGrowth, engine.PlanTerritoryBased, engine.PlanTieredCommission:
		return engine.PlanType(s)
	default:
		return engine.PlanGoalAttainment
	}
}

// modifierFactor defaults a zero or missing factor to 1 (no-op modifier).
func modifierFactor(f float64) decimal.Decimal {
	if f <= 0 {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromFloat(f)
}

// =============================================================================
// PRESET PLANS
// =============================================================================

// StandardGoalAttainmentJSON returns a linear goal-attainment plan: payout
// tracks attainment one-to-one up to 150%, with a floor below 50%.
func (f *PlanFactory) StandardGoalAttainmentJSON(id, name string, commissionRate float64) string {
	pj := PlanJSON{
		ID:                 id,
		Name:               name,
		Type:               string(engine.PlanGoalAttainment),
		BaseCommissionRate: commissionRate,
		Breakpoints: []BreakpointJSON{
			{Performance: 0, Payout: 0},
			{Performance: 50, Payout: 25},
			{Performance: 100, Payout: 100},
			{Performance: 150, Payout: 150},
		},
	}
	return marshalPlan(pj)
}

// AcceleratedTieredJSON returns a tiered commission plan with a 1.5x
// accelerator above 120% attainment and a payout cap.
func (f *PlanFactory) AcceleratedTieredJSON(id, name string, commissionRate, capPercent float64) string {
	pj := PlanJSON{
		ID:                 id,
		Name:               name,
		Type:               string(engine.PlanTieredCommission),
		BaseCommissionRate: commissionRate,
		Breakpoints: []BreakpointJSON{
			{Performance: 0, Payout: 0},
			{Performance: 80, Payout: 50},
			{Performance: 100, Payout: 100},
			{Performance: 120, Payout: 150},
			{Performance: 140, Payout: 200},
		},
		PayoutCapPercent: &capPercent,
		Accelerator:      &ModifierJSON{Threshold: 120, Factor: 1.5},
	}
	return marshalPlan(pj)
}

// TerritoryWeightedJSON returns a territory-based plan where listed
// territories carry payout multipliers.
func (f *PlanFactory) TerritoryWeightedJSON(id, name string, commissionRate float64, multipliers map[string]float64) string {
	pj := PlanJSON{
		ID:                 id,
		Name:               name,
		Type:               string(engine.PlanTerritoryBased),
		BaseCommissionRate: commissionRate,
		Breakpoints: []BreakpointJSON{
			{Performance: 0, Payout: 0},
			{Performance: 100, Payout: 100},
			{Performance: 150, Payout: 175},
		},
		TerritoryMultipliers: multipliers,
	}
	return marshalPlan(pj)
}

func marshalPlan(pj PlanJSON) string {
	data, _ := json.Marshal(pj)
	return string(data)
}
