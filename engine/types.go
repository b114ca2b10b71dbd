/*
Package engine provides the core incentive compensation calculation engine.

PURPOSE:
  This package contains the types and algorithms that turn (quota, actual
  sales, pay curve, adjustments) into a final payout with a step-by-step
  audit trail. Everything here is deterministic: the same inputs always
  produce the same payouts and the same traces.

KEY CONCEPTS IN THIS FILE (types.go):
  - Representative: A sales rep record (quota, actuals, target pay)
  - PlanConfiguration: Pay curve breakpoints plus plan modifiers
  - Breakpoint: One (performancePercent, payoutPercent) point on a curve
  - FinalPayoutResult: The computed payout for one rep in one job

DESIGN PRINCIPLES:
  1. Determinism: No randomness, no clocks inside calculations
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Immutability: Input records are never mutated by the engine
  4. Auditability: Every payout is backed by a replayable trace

USAGE:
  plan := engine.PlanConfiguration{
      Type:               engine.PlanGoalAttainment,
      BaseCommissionRate: engine.MustDecimal("0.02"),
      Breakpoints: []engine.Breakpoint{
          {PerformancePercent: engine.Dec(0), PayoutPercent: engine.Dec(0)},
          {PerformancePercent: engine.Dec(100), PayoutPercent: engine.Dec(100)},
      },
  }

SEE ALSO:
  - curve.go: Pay curve evaluation (interpolation, cap, accelerator)
  - pipeline.go: The per-rep calculation pipeline and trace steps
  - engine.go: Job orchestration across representatives
*/
package engine

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type RepID string
type PlanID string
type JobID string

// =============================================================================
// DECIMAL HELPERS
// =============================================================================

// Dec builds a decimal from a float. Only for literals and test fixtures;
// persisted values round-trip through strings.
func Dec(value float64) decimal.Decimal {
	return decimal.NewFromFloat(value)
}

// MustDecimal parses a decimal string, panicking on failure. Only for
// values this process wrote itself (stored decimal columns, fixtures);
// a failed parse there means corrupted data, not caller input.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic("invalid stored decimal " + strconv.Quote(s) + ": " + err.Error())
	}
	return d
}

var hundred = decimal.NewFromInt(100)

// =============================================================================
// REPRESENTATIVE - Canonical rep record
// =============================================================================

// Representative is the per-rep input to a calculation run. Owned by the
// data-ingestion layer; the engine treats it as immutable once a job starts.
type Representative struct {
	ID        RepID
	Name      string
	Territory string
	PlanID    PlanID

	Quota       decimal.Decimal // must be > 0 to pass validation
	ActualSales decimal.Decimal // must be >= 0
	TargetPay   decimal.Decimal // annual target incentive, >= 0
}

// =============================================================================
// PLAN CONFIGURATION - Pay curve plus modifiers, versioned
// =============================================================================

type PlanType string

const (
	PlanGoalAttainment     PlanType = "goal_attainment"
	PlanGoalAttainmentRank PlanType = "goal_attainment_rank"
	PlanMatrix             PlanType = "matrix"
	PlanRankBased          PlanType = "rank_based"
	PlanVolumeGrowth       PlanType = "volume_growth"
	PlanTerritoryBased     PlanType = "territory_based"
	PlanTieredCommission   PlanType = "tiered_commission"
)

// Breakpoint is one point on a pay curve. PerformancePercent values must be
// strictly increasing within a curve.
type Breakpoint struct {
	PerformancePercent decimal.Decimal
	PayoutPercent      decimal.Decimal
}

// PlanConfiguration holds everything needed to compute payouts under a plan.
//
// INVARIANTS:
//   - Breakpoints has at least 2 points, strictly increasing performance
//   - The first breakpoint conventionally sits at performance 0
//   - BaseCommissionRate is a fraction (0.02 = 2%)
type PlanConfiguration struct {
	ID   PlanID
	Name string
	Type PlanType

	BaseCommissionRate decimal.Decimal
	Breakpoints        []Breakpoint

	// PayoutCapPercent caps the payout percent (and, via target pay, the
	// dollar payout). Nil means uncapped.
	PayoutCapPercent *decimal.Decimal

	// Accelerator multiplies commission once attainment reaches the
	// threshold. Decelerator is the mirror below its threshold.
	AcceleratorThreshold *decimal.Decimal
	AcceleratorFactor    decimal.Decimal
	DeceleratorThreshold *decimal.Decimal
	DeceleratorFactor    decimal.Decimal

	// ExtendBeyondCurve lets the accelerator continue payout growth past
	// the last breakpoint instead of flattening there.
	ExtendBeyondCurve bool

	// TerritoryMultipliers maps territory name to a payout factor.
	// Absent territories default to 1.0.
	TerritoryMultipliers map[string]decimal.Decimal

	// CurrentVersion is advanced by the version service on every snapshot.
	CurrentVersion int
}

// TerritoryMultiplier returns the factor for a territory, defaulting to 1.
func (p *PlanConfiguration) TerritoryMultiplier(territory string) decimal.Decimal {
	if p.TerritoryMultipliers != nil {
		if m, ok := p.TerritoryMultipliers[territory]; ok {
			return m
		}
	}
	return decimal.NewFromInt(1)
}

// Validate checks the pay curve invariants. Returns an *InvalidCurveError
// describing the first violation found.
func (p *PlanConfiguration) Validate() error {
	return validateCurve(p.Breakpoints)
}

// =============================================================================
// FINAL PAYOUT RESULT - Engine output, one per (job, rep)
// =============================================================================

// FinalPayoutResult is the computed payout for one representative.
// AdjustmentTotal reflects applied manual adjustments; anomaly detection
// reads these records but never writes them.
type FinalPayoutResult struct {
	JobID     JobID
	RepID     RepID
	RepName   string
	Territory string

	Quota             decimal.Decimal
	ActualSales       decimal.Decimal
	AttainmentPercent decimal.Decimal

	PlanType PlanType

	// CurvePayoutPercent is the pay-curve evaluation of the attainment,
	// before commission math. Used for quota-mismatch anomaly checks.
	CurvePayoutPercent decimal.Decimal

	FinalPayout        decimal.Decimal
	PercentOfTargetPay decimal.Decimal
	AdjustmentTotal    decimal.Decimal

	Notes string
}
