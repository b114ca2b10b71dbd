/*
curve.go - Pay curve evaluation

PURPOSE:
  Maps an attainment percentage to a payout percentage given an ordered
  list of breakpoints and plan modifiers. This is the one place in the
  system where a curve is interpreted; everything else consumes its output.

ALGORITHM:
  - Below the first breakpoint: floor at the first payout value
    (no negative extrapolation)
  - Between breakpoints: linear interpolation
  - Above the last breakpoint: flat at the last payout value, unless the
    plan extends the curve, in which case growth continues at the last
    segment's slope scaled by the accelerator factor
  - Cap, if set, clamps the result last

PROPERTIES:
  - Pure function, no side effects
  - Monotonically non-decreasing in attainment for any valid curve
  - Fails with InvalidCurveError for malformed curves

SEE ALSO:
  - types.go: Breakpoint, PlanConfiguration
  - pipeline.go: Uses the evaluated percent for quota-mismatch context
*/
package engine

import (
	"github.com/shopspring/decimal"
)

// CurveOptions carries the plan modifiers that affect curve evaluation.
type CurveOptions struct {
	// CapPercent clamps the payout percent. Nil means uncapped.
	CapPercent *decimal.Decimal

	// ExtendFactor, when positive, continues payout growth past the last
	// breakpoint at the last segment's slope multiplied by this factor.
	// Zero means the curve flattens at the last breakpoint.
	ExtendFactor decimal.Decimal
}

// EvaluateCurve maps attainmentPercent to a payout percent.
// Breakpoints must be sorted ascending by PerformancePercent.
func EvaluateCurve(breakpoints []Breakpoint, attainmentPercent decimal.Decimal, opts CurveOptions) (decimal.Decimal, error) {
	if err := validateCurve(breakpoints); err != nil {
		return decimal.Zero, err
	}

	payout := evaluateValidCurve(breakpoints, attainmentPercent, opts.ExtendFactor)

	if opts.CapPercent != nil && payout.GreaterThan(*opts.CapPercent) {
		payout = *opts.CapPercent
	}
	return payout, nil
}

// validateCurve checks the breakpoint invariants shared by EvaluateCurve
// and PlanConfiguration.Validate.
func validateCurve(breakpoints []Breakpoint) error {
	if len(breakpoints) < 2 {
		return &InvalidCurveError{Reason: "requires at least 2 breakpoints"}
	}
	for i := 1; i < len(breakpoints); i++ {
		if !breakpoints[i].PerformancePercent.GreaterThan(breakpoints[i-1].PerformancePercent) {
			return &InvalidCurveError{Reason: "performance percents must be strictly increasing"}
		}
	}
	return nil
}

// evaluateValidCurve assumes breakpoints already passed validateCurve.
func evaluateValidCurve(breakpoints []Breakpoint, attainment decimal.Decimal, extendFactor decimal.Decimal) decimal.Decimal {
	first := breakpoints[0]
	last := breakpoints[len(breakpoints)-1]

	// Floor: below the first breakpoint there is no extrapolation.
	if attainment.LessThanOrEqual(first.PerformancePercent) {
		return first.PayoutPercent
	}

	// Past the last breakpoint: flat, or extended at scaled slope.
	if attainment.GreaterThanOrEqual(last.PerformancePercent) {
		if extendFactor.IsPositive() {
			prev := breakpoints[len(breakpoints)-2]
			slope := segmentSlope(prev, last)
			over := attainment.Sub(last.PerformancePercent)
			return last.PayoutPercent.Add(over.Mul(slope).Mul(extendFactor))
		}
		return last.PayoutPercent
	}

	// Interpolate between the bracketing breakpoints.
	for i := 1; i < len(breakpoints); i++ {
		hi := breakpoints[i]
		if attainment.LessThanOrEqual(hi.PerformancePercent) {
			lo := breakpoints[i-1]
			slope := segmentSlope(lo, hi)
			return lo.PayoutPercent.Add(attainment.Sub(lo.PerformancePercent).Mul(slope))
		}
	}

	return last.PayoutPercent // unreachable for valid curves
}

func segmentSlope(lo, hi Breakpoint) decimal.Decimal {
	run := hi.PerformancePercent.Sub(lo.PerformancePercent)
	rise := hi.PayoutPercent.Sub(lo.PayoutPercent)
	return rise.Div(run)
}
