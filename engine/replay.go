/*
replay.go - Trace replay verification

PURPOSE:
  A stored CalculationTrace must be able to prove the payout it produced.
  Replay re-executes every step's formula against the step's recorded input
  snapshot and compares against the recorded result. Any divergence means
  either the trace or the stored payout was tampered with or mis-persisted.

  This is exactly the check the anomaly detector's calculation_error type
  relies on.

REPLAY CONTRACT:
  Every step is recomputable from its own Input map alone - no plan or rep
  record is needed. pipeline.go guarantees the snapshots carry everything
  the step consumed, including derived inputs like the dollar cap amount.

SEE ALSO:
  - pipeline.go: Produces the traces replayed here
  - anomaly.go: Emits calculation_error anomalies on replay failure
*/
package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ReplayError describes the first step where replay diverged.
type ReplayError struct {
	RepID    RepID
	Index    int
	Name     string
	Expected decimal.Decimal
	Got      decimal.Decimal
}

func (e *ReplayError) Error() string {
	return fmt.Sprintf("trace replay diverged for rep %s at step %d (%s): recorded %s, recomputed %s",
		e.RepID, e.Index, e.Name, e.Expected, e.Got)
}

// ReplayTrace re-executes every step of a trace from its recorded inputs
// and verifies each recorded result, then checks the last step against the
// stored final payout. Returns nil when the trace reproduces the payout.
func ReplayTrace(trace CalculationTrace, storedFinalPayout decimal.Decimal) error {
	for _, step := range trace.Steps {
		got, err := replayStep(step)
		if err != nil {
			return err
		}
		if !got.Equal(step.Result) {
			return &ReplayError{RepID: trace.RepID, Index: step.Index, Name: step.Name, Expected: step.Result, Got: got}
		}
	}

	final := trace.FinalResult()
	if !final.Equal(storedFinalPayout) {
		return &ReplayError{RepID: trace.RepID, Index: len(trace.Steps), Name: "final_payout", Expected: storedFinalPayout, Got: final}
	}
	return nil
}

// replayStep recomputes one step from its input snapshot. Snapshots carry
// the running amount explicitly, so no cross-step state is needed here.
func replayStep(step CalculationStep) (decimal.Decimal, error) {
	in := step.Input
	switch step.Name {
	case StepValidation:
		if in[inQuota].IsPositive() && !in[inActualSales].IsNegative() {
			return decimal.NewFromInt(1), nil
		}
		return decimal.Zero, nil

	case StepAttainment:
		if !in[inQuota].IsPositive() {
			return decimal.Zero, fmt.Errorf("replay: attainment step has non-positive quota")
		}
		return in[inActualSales].Div(in[inQuota]).Mul(hundred), nil

	case StepBaseCommission:
		return in[inActualSales].Mul(in[inRate]), nil

	case StepAccelerator:
		amount := in[inAmount]
		if thresh, ok := in[inAccelThresh]; ok && in[inAttainment].GreaterThanOrEqual(thresh) {
			return amount.Mul(in[inAccelFactor]), nil
		}
		if thresh, ok := in[inDecelThresh]; ok && in[inAttainment].LessThanOrEqual(thresh) {
			return amount.Mul(in[inDecelFactor]), nil
		}
		return amount, nil

	case StepTerritoryMultiplier:
		return in[inAmount].Mul(in[inMultiplier]), nil

	case StepCap:
		amount := in[inAmount]
		if capAmount, ok := in[inCapAmount]; ok && amount.GreaterThan(capAmount) {
			return capAmount, nil
		}
		return amount, nil

	case StepManualAdjustment:
		return in[inAmount].Add(in[inAdjustment]), nil

	default:
		return decimal.Zero, fmt.Errorf("replay: unknown step %q at index %d", step.Name, step.Index)
	}
}
