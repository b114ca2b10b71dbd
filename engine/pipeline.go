/*
pipeline.go - The per-representative calculation pipeline

PURPOSE:
  Executes the fixed, ordered sequence of calculation stages for one
  representative and emits one CalculationStep per stage. The concatenation
  of steps is the rep's CalculationTrace - the audit trail that replay.go
  can re-execute to verify a stored payout.

PIPELINE (strictly ordered, later steps consume earlier results):
  1. validation            quota > 0, actual sales >= 0
  2. attainment            actualSales / quota * 100
  3. base_commission       actualSales * baseCommissionRate
  4. accelerator           x factor when attainment crosses the threshold
  5. territory_multiplier  x rep's territory factor (default 1.0)
  6. cap                   clamp to the plan cap, record whether binding
  7. manual_adjustment     + applied adjustment total (default 0)

TRACE CONTRACT:
  Each step's Input is a pure snapshot of every value the step consumed.
  A step is fully recomputable from its own Input map - replay never needs
  the plan or the rep record. Steps are immutable once written.

SEE ALSO:
  - replay.go: Recomputes steps from their recorded inputs
  - engine.go: Runs this pipeline across a job's rep set
*/
package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CALCULATION STEP / TRACE
// =============================================================================

// Step names, in pipeline order.
const (
	StepValidation          = "validation"
	StepAttainment          = "attainment"
	StepBaseCommission      = "base_commission"
	StepAccelerator         = "accelerator"
	StepTerritoryMultiplier = "territory_multiplier"
	StepCap                 = "cap"
	StepManualAdjustment    = "manual_adjustment"
)

// Input keys recorded in step snapshots.
const (
	inQuota         = "quota"
	inActualSales   = "actual_sales"
	inRate          = "commission_rate"
	inAmount        = "amount"
	inAttainment    = "attainment_percent"
	inAccelThresh   = "accelerator_threshold"
	inAccelFactor   = "accelerator_factor"
	inDecelThresh   = "decelerator_threshold"
	inDecelFactor   = "decelerator_factor"
	inMultiplier    = "territory_multiplier"
	inCapAmount     = "cap_amount"
	inAdjustment    = "adjustment_total"
)

// CalculationStep records one stage of the pipeline.
// Immutable once written; persisted in Index order.
type CalculationStep struct {
	Index        int
	Name         string
	Input        map[string]decimal.Decimal
	Rule         string // which rule fired, e.g. "accelerator applied (>= 120)"
	Formula      string // human-readable formula text
	Intermediate decimal.Decimal
	Result       decimal.Decimal
}

// CalculationTrace is the ordered step list for one rep in one job.
type CalculationTrace struct {
	JobID JobID
	RepID RepID
	Steps []CalculationStep
}

// FinalResult returns the last step's result, which is the final payout.
func (t CalculationTrace) FinalResult() decimal.Decimal {
	if len(t.Steps) == 0 {
		return decimal.Zero
	}
	return t.Steps[len(t.Steps)-1].Result
}

// =============================================================================
// PIPELINE EXECUTION
// =============================================================================

// ComputeRep runs the full pipeline for one representative.
// adjustmentTotal is the sum of applied manual adjustments for this
// rep/period (zero when none).
//
// On validation failure the returned trace holds the single FAILED step and
// the error is a *ValidationError; the caller records it against the job
// and continues with the other reps.
func ComputeRep(rep Representative, plan *PlanConfiguration, adjustmentTotal decimal.Decimal) (*FinalPayoutResult, CalculationTrace, error) {
	trace := CalculationTrace{RepID: rep.ID}

	// Stage 1: validation.
	step, verr := validationStep(rep)
	trace.Steps = append(trace.Steps, step)
	if verr != nil {
		return nil, trace, verr
	}

	// Stage 2: attainment. The curve evaluation of the attainment is
	// recorded as the step's intermediate for downstream anomaly checks.
	attainment := rep.ActualSales.Div(rep.Quota).Mul(hundred)
	curvePercent, err := EvaluateCurve(plan.Breakpoints, attainment, CurveOptions{
		CapPercent:   plan.PayoutCapPercent,
		ExtendFactor: curveExtendFactor(plan, attainment),
	})
	if err != nil {
		return nil, trace, err
	}
	trace.Steps = append(trace.Steps, CalculationStep{
		Index: 2,
		Name:  StepAttainment,
		Input: map[string]decimal.Decimal{
			inActualSales: rep.ActualSales,
			inQuota:       rep.Quota,
		},
		Rule:         fmt.Sprintf("pay curve (%s) evaluates to %s%%", plan.Type, curvePercent),
		Formula:      "attainment = actual_sales / quota * 100",
		Intermediate: curvePercent,
		Result:       attainment,
	})

	// Stage 3: base commission.
	baseCommission := rep.ActualSales.Mul(plan.BaseCommissionRate)
	trace.Steps = append(trace.Steps, CalculationStep{
		Index: 3,
		Name:  StepBaseCommission,
		Input: map[string]decimal.Decimal{
			inActualSales: rep.ActualSales,
			inRate:        plan.BaseCommissionRate,
		},
		Formula: "base_commission = actual_sales * commission_rate",
		Result:  baseCommission,
	})

	// Stage 4: accelerator / decelerator.
	accelStep := acceleratorStep(plan, attainment, baseCommission)
	trace.Steps = append(trace.Steps, accelStep)
	afterAccel := accelStep.Result

	// Stage 5: territory multiplier.
	multiplier := plan.TerritoryMultiplier(rep.Territory)
	afterTerritory := afterAccel.Mul(multiplier)
	trace.Steps = append(trace.Steps, CalculationStep{
		Index: 5,
		Name:  StepTerritoryMultiplier,
		Input: map[string]decimal.Decimal{
			inAmount:     afterAccel,
			inMultiplier: multiplier,
		},
		Rule:    fmt.Sprintf("territory %q factor %s", rep.Territory, multiplier),
		Formula: "amount = amount * territory_multiplier",
		Result:  afterTerritory,
	})

	// Stage 6: cap application.
	capped := capStep(plan, rep, afterTerritory)
	trace.Steps = append(trace.Steps, capped)
	afterCap := capped.Result

	// Stage 7: manual adjustment.
	finalPayout := afterCap.Add(adjustmentTotal)
	trace.Steps = append(trace.Steps, CalculationStep{
		Index: 7,
		Name:  StepManualAdjustment,
		Input: map[string]decimal.Decimal{
			inAmount:     afterCap,
			inAdjustment: adjustmentTotal,
		},
		Rule:    adjustmentRule(adjustmentTotal),
		Formula: "final_payout = amount + adjustment_total",
		Result:  finalPayout,
	})

	result := &FinalPayoutResult{
		RepID:              rep.ID,
		RepName:            rep.Name,
		Territory:          rep.Territory,
		Quota:              rep.Quota,
		ActualSales:        rep.ActualSales,
		AttainmentPercent:  attainment,
		PlanType:           plan.Type,
		CurvePayoutPercent: curvePercent,
		FinalPayout:        finalPayout,
		PercentOfTargetPay: percentOfTarget(finalPayout, rep.TargetPay),
		AdjustmentTotal:    adjustmentTotal,
	}
	return result, trace, nil
}

// validationStep is stage 1: reject bad rep records before any math.
func validationStep(rep Representative) (CalculationStep, error) {
	step := CalculationStep{
		Index: 1,
		Name:  StepValidation,
		Input: map[string]decimal.Decimal{
			inQuota:       rep.Quota,
			inActualSales: rep.ActualSales,
		},
		Formula: "quota > 0 AND actual_sales >= 0",
	}

	if !rep.Quota.IsPositive() {
		step.Rule = "FAILED: quota must be positive"
		step.Result = decimal.Zero
		return step, &ValidationError{RepID: rep.ID, Field: "quota", Reason: "must be > 0"}
	}
	if rep.ActualSales.IsNegative() {
		step.Rule = "FAILED: actual sales cannot be negative"
		step.Result = decimal.Zero
		return step, &ValidationError{RepID: rep.ID, Field: "actual_sales", Reason: "must be >= 0"}
	}

	step.Rule = "PASSED"
	step.Result = decimal.NewFromInt(1)
	return step, nil
}

// acceleratorStep is stage 4. The input snapshot only carries the threshold
// that can fire, so replay reproduces the branch from the snapshot alone.
func acceleratorStep(plan *PlanConfiguration, attainment, baseCommission decimal.Decimal) CalculationStep {
	step := CalculationStep{
		Index: 4,
		Name:  StepAccelerator,
		Input: map[string]decimal.Decimal{
			inAmount:     baseCommission,
			inAttainment: attainment,
		},
		Formula: "amount = amount * factor when threshold crossed",
	}

	if plan.AcceleratorThreshold != nil && plan.AcceleratorFactor.IsPositive() {
		step.Input[inAccelThresh] = *plan.AcceleratorThreshold
		step.Input[inAccelFactor] = plan.AcceleratorFactor
		if attainment.GreaterThanOrEqual(*plan.AcceleratorThreshold) {
			step.Rule = fmt.Sprintf("accelerator applied (attainment >= %s)", plan.AcceleratorThreshold)
			step.Result = baseCommission.Mul(plan.AcceleratorFactor)
			return step
		}
	}
	if plan.DeceleratorThreshold != nil && plan.DeceleratorFactor.IsPositive() {
		step.Input[inDecelThresh] = *plan.DeceleratorThreshold
		step.Input[inDecelFactor] = plan.DeceleratorFactor
		if attainment.LessThanOrEqual(*plan.DeceleratorThreshold) {
			step.Rule = fmt.Sprintf("decelerator applied (attainment <= %s)", plan.DeceleratorThreshold)
			step.Result = baseCommission.Mul(plan.DeceleratorFactor)
			return step
		}
	}

	step.Rule = "no threshold crossed"
	step.Result = baseCommission
	return step
}

// capStep is stage 6. The dollar cap is the plan's payout-percent cap
// applied to the rep's target pay; it is snapshotted into the input so the
// step replays without the plan.
func capStep(plan *PlanConfiguration, rep Representative, amount decimal.Decimal) CalculationStep {
	step := CalculationStep{
		Index:   6,
		Name:    StepCap,
		Input:   map[string]decimal.Decimal{inAmount: amount},
		Formula: "amount = min(amount, cap_amount)",
	}

	if plan.PayoutCapPercent == nil || !rep.TargetPay.IsPositive() {
		step.Rule = "no cap configured"
		step.Result = amount
		return step
	}

	capAmount := rep.TargetPay.Mul(plan.PayoutCapPercent.Div(hundred))
	step.Input[inCapAmount] = capAmount
	if amount.GreaterThan(capAmount) {
		step.Rule = fmt.Sprintf("cap binding at %s%% of target pay", plan.PayoutCapPercent)
		step.Result = capAmount
	} else {
		step.Rule = "cap not binding"
		step.Result = amount
	}
	return step
}

func adjustmentRule(total decimal.Decimal) string {
	if total.IsZero() {
		return "no applied adjustments"
	}
	return "applied adjustment total " + total.String()
}

// curveExtendFactor returns the accelerator factor for above-curve growth
// when the plan opts in and the attainment crossed the threshold.
func curveExtendFactor(plan *PlanConfiguration, attainment decimal.Decimal) decimal.Decimal {
	if !plan.ExtendBeyondCurve || plan.AcceleratorThreshold == nil {
		return decimal.Zero
	}
	if attainment.GreaterThanOrEqual(*plan.AcceleratorThreshold) {
		return plan.AcceleratorFactor
	}
	return decimal.Zero
}

func percentOfTarget(payout, targetPay decimal.Decimal) decimal.Decimal {
	if !targetPay.IsPositive() {
		return decimal.Zero
	}
	return payout.Div(targetPay).Mul(hundred)
}
