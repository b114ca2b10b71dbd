/*
anomaly.go - Statistical payout anomaly detection

PURPOSE:
  Flags computed payouts that deviate from an expected baseline, assigns
  severity and confidence, and proposes a root cause with remediation
  steps. Anomalies are advisory only: they never mutate a payout result.

ANOMALY TYPES:
  payout_spike       variance percent above the high threshold
  payout_drop        variance percent below the negative high threshold
  quota_mismatch     payout inconsistent with the pay-curve expectation
  territory_outlier  deviates from the territory cohort by > N std devs
  calculation_error  trace replay does not reproduce the stored payout

THRESHOLDS:
  Deployment-tunable via Thresholds (defaults: critical 50, high 30,
  medium 15, 2 standard deviations). Confidence grows with the variance
  magnitude and with the number of corroborating signals.

DETERMINISM:
  Narratives and recommended actions are template-based. Same inputs,
  same anomalies, always.

SEE ALSO:
  - replay.go: The calculation_error check
  - config/: Loads threshold overrides
*/
package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// ANOMALY RECORD
// =============================================================================

type AnomalyType string

const (
	AnomalyPayoutSpike      AnomalyType = "payout_spike"
	AnomalyPayoutDrop       AnomalyType = "payout_drop"
	AnomalyQuotaMismatch    AnomalyType = "quota_mismatch"
	AnomalyTerritoryOutlier AnomalyType = "territory_outlier"
	AnomalyCalculationError AnomalyType = "calculation_error"
)

type AnomalySeverity string

const (
	SeverityLow      AnomalySeverity = "low"
	SeverityMedium   AnomalySeverity = "medium"
	SeverityHigh     AnomalySeverity = "high"
	SeverityCritical AnomalySeverity = "critical"
)

type AnomalyStatus string

const (
	AnomalyPending       AnomalyStatus = "pending"
	AnomalyReviewed      AnomalyStatus = "reviewed"
	AnomalyResolved      AnomalyStatus = "resolved"
	AnomalyFalsePositive AnomalyStatus = "false_positive"
)

// Anomaly is one flagged payout. Created by the detector after a job
// completes; mutated only by reviewer status transitions.
type Anomaly struct {
	ID    string
	RepID RepID
	JobID JobID

	Type            AnomalyType
	Severity        AnomalySeverity
	ConfidenceScore int // 0-100

	CurrentValue    decimal.Decimal
	ExpectedValue   decimal.Decimal
	Variance        decimal.Decimal
	VariancePercent decimal.Decimal

	RootCause          string
	RecommendedActions []string

	Status     AnomalyStatus
	ReviewedBy string
	CreatedAt  time.Time
}

// ReviewAnomaly transitions an anomaly's review status. Valid moves:
// pending -> reviewed | false_positive, reviewed -> resolved | false_positive.
func ReviewAnomaly(a *Anomaly, to AnomalyStatus, reviewer string) error {
	allowed := map[AnomalyStatus][]AnomalyStatus{
		AnomalyPending:  {AnomalyReviewed, AnomalyFalsePositive},
		AnomalyReviewed: {AnomalyResolved, AnomalyFalsePositive},
	}
	for _, next := range allowed[a.Status] {
		if next == to {
			a.Status = to
			a.ReviewedBy = reviewer
			return nil
		}
	}
	return &InvalidTransitionError{From: string(a.Status), Action: "review to " + string(to)}
}

// =============================================================================
// BASELINE - External historical input
// =============================================================================

// CohortBaseline is the expected payout and spread for one cohort
// (role/territory peer group).
type CohortBaseline struct {
	Cohort         string
	ExpectedPayout decimal.Decimal
	StdDev         decimal.Decimal
}

// HistoricalBaseline is the external baseline input to detection.
// Rep-level expectations take precedence over cohort averages.
type HistoricalBaseline struct {
	Cohorts map[string]CohortBaseline
	PerRep  map[RepID]decimal.Decimal
}

// ExpectedFor resolves the expected payout for a rep, falling back from
// rep-level history to the territory cohort.
func (b HistoricalBaseline) ExpectedFor(repID RepID, territory string) (decimal.Decimal, bool) {
	if b.PerRep != nil {
		if v, ok := b.PerRep[repID]; ok {
			return v, true
		}
	}
	if b.Cohorts != nil {
		if c, ok := b.Cohorts[territory]; ok {
			return c.ExpectedPayout, true
		}
	}
	return decimal.Zero, false
}

// =============================================================================
// THRESHOLDS - Deployment-tunable classification parameters
// =============================================================================

// Thresholds carries the variance-percent cutoffs for severity
// classification. There is no universally right cutoff; treat these as
// configuration, not law.
type Thresholds struct {
	CriticalVariancePercent float64
	HighVariancePercent     float64
	MediumVariancePercent   float64

	// TerritoryStdDevs is the N in "deviates from the cohort by more than
	// N standard deviations".
	TerritoryStdDevs float64

	// CurveMismatchRatio flags quota_mismatch when percent-of-target and
	// the curve's payout percent differ by more than this factor.
	CurveMismatchRatio float64
}

// DefaultThresholds returns the suggested deployment defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CriticalVariancePercent: 50,
		HighVariancePercent:     30,
		MediumVariancePercent:   15,
		TerritoryStdDevs:        2,
		CurveMismatchRatio:      2,
	}
}

// =============================================================================
// DETECTOR
// =============================================================================

// Detector classifies payout results against a baseline. Zero value uses
// DefaultThresholds.
type Detector struct {
	Thresholds Thresholds
}

// NewDetector creates a detector with the given thresholds, filling in
// defaults for unset cutoffs.
func NewDetector(t Thresholds) *Detector {
	def := DefaultThresholds()
	if t.CriticalVariancePercent <= 0 {
		t.CriticalVariancePercent = def.CriticalVariancePercent
	}
	if t.HighVariancePercent <= 0 {
		t.HighVariancePercent = def.HighVariancePercent
	}
	if t.MediumVariancePercent <= 0 {
		t.MediumVariancePercent = def.MediumVariancePercent
	}
	if t.TerritoryStdDevs <= 0 {
		t.TerritoryStdDevs = def.TerritoryStdDevs
	}
	if t.CurveMismatchRatio <= 0 {
		t.CurveMismatchRatio = def.CurveMismatchRatio
	}
	return &Detector{Thresholds: t}
}

// Detect evaluates every result against the baseline and the recorded
// traces. Traces are keyed by rep ID; a missing trace skips the replay
// check for that rep. Results are never mutated.
func (d *Detector) Detect(results []FinalPayoutResult, traces map[RepID]CalculationTrace, baseline HistoricalBaseline) []Anomaly {
	t := NewDetector(d.Thresholds).Thresholds // normalize zero values
	now := time.Now().UTC()

	var anomalies []Anomaly
	for _, r := range results {
		signals := d.classify(r, traces, baseline, t)
		for _, s := range signals {
			a := Anomaly{
				ID:              uuid.NewString(),
				RepID:           r.RepID,
				JobID:           r.JobID,
				Type:            s.anomalyType,
				Severity:        s.severity,
				ConfidenceScore: confidence(s, len(signals)),
				CurrentValue:    r.FinalPayout,
				ExpectedValue:   s.expected,
				Variance:        s.variance,
				VariancePercent: s.variancePercent,
				Status:          AnomalyPending,
				CreatedAt:       now,
			}
			a.RootCause = rootCause(s, r)
			a.RecommendedActions = recommendedActions(s.anomalyType)
			anomalies = append(anomalies, a)
		}
	}
	return anomalies
}

// signal is one firing check for a result.
type signal struct {
	anomalyType     AnomalyType
	severity        AnomalySeverity
	expected        decimal.Decimal
	variance        decimal.Decimal
	variancePercent decimal.Decimal
}

func (d *Detector) classify(r FinalPayoutResult, traces map[RepID]CalculationTrace, baseline HistoricalBaseline, t Thresholds) []signal {
	var signals []signal

	expected, hasBaseline := baseline.ExpectedFor(r.RepID, r.Territory)
	variance := decimal.Zero
	variancePercent := decimal.Zero
	if hasBaseline && expected.IsPositive() {
		variance = r.FinalPayout.Sub(expected)
		variancePercent = variance.Div(expected).Mul(hundred)
	}

	// calculation_error: trace replay must reproduce the stored payout.
	if trace, ok := traces[r.RepID]; ok {
		if err := ReplayTrace(trace, r.FinalPayout); err != nil {
			signals = append(signals, signal{
				anomalyType:     AnomalyCalculationError,
				severity:        SeverityCritical,
				expected:        trace.FinalResult(),
				variance:        r.FinalPayout.Sub(trace.FinalResult()),
				variancePercent: variancePercent,
			})
		}
	}

	// payout_spike / payout_drop against the baseline.
	if hasBaseline && expected.IsPositive() {
		vp := variancePercent.InexactFloat64()
		if sev, flagged := varianceSeverity(vp, t); flagged {
			anomalyType := AnomalyPayoutSpike
			if vp < 0 {
				anomalyType = AnomalyPayoutDrop
			}
			signals = append(signals, signal{
				anomalyType:     anomalyType,
				severity:        sev,
				expected:        expected,
				variance:        variance,
				variancePercent: variancePercent,
			})
		}
	}

	// quota_mismatch: the realized percent of target pay disagrees with
	// what the pay curve says this attainment should earn.
	if r.CurvePayoutPercent.IsPositive() && r.PercentOfTargetPay.IsPositive() {
		ratio := r.PercentOfTargetPay.Div(r.CurvePayoutPercent).InexactFloat64()
		if ratio > t.CurveMismatchRatio || ratio < 1/t.CurveMismatchRatio {
			signals = append(signals, signal{
				anomalyType:     AnomalyQuotaMismatch,
				severity:        SeverityMedium,
				expected:        r.CurvePayoutPercent,
				variance:        r.PercentOfTargetPay.Sub(r.CurvePayoutPercent),
				variancePercent: variancePercent,
			})
		}
	}

	// territory_outlier: distance from the cohort mean in std devs.
	if baseline.Cohorts != nil {
		if c, ok := baseline.Cohorts[r.Territory]; ok && c.StdDev.IsPositive() {
			distance := r.FinalPayout.Sub(c.ExpectedPayout).Abs().Div(c.StdDev).InexactFloat64()
			if distance > t.TerritoryStdDevs {
				signals = append(signals, signal{
					anomalyType:     AnomalyTerritoryOutlier,
					severity:        SeverityMedium,
					expected:        c.ExpectedPayout,
					variance:        r.FinalPayout.Sub(c.ExpectedPayout),
					variancePercent: variancePercent,
				})
			}
		}
	}

	return signals
}

// varianceSeverity maps |variancePercent| to a severity. Values under the
// medium threshold are not flagged at all.
func varianceSeverity(variancePercent float64, t Thresholds) (AnomalySeverity, bool) {
	abs := math.Abs(variancePercent)
	switch {
	case abs > t.CriticalVariancePercent:
		return SeverityCritical, true
	case abs > t.HighVariancePercent:
		return SeverityHigh, true
	case abs > t.MediumVariancePercent:
		return SeverityMedium, true
	default:
		return SeverityLow, false
	}
}

// confidence grows with variance magnitude and corroborating signals.
// calculation_error is pinned high: replay divergence is near-certain
// evidence something is wrong.
func confidence(s signal, signalCount int) int {
	base := 0
	if s.anomalyType == AnomalyCalculationError {
		base = 95
	} else {
		base = 40 + int(math.Abs(s.variancePercent.InexactFloat64()))
		if base > 90 {
			base = 90
		}
	}
	base += (signalCount - 1) * 10
	if base > 100 {
		base = 100
	}
	return base
}

// =============================================================================
// NARRATIVES - Deterministic, template-based
// =============================================================================

func rootCause(s signal, r FinalPayoutResult) string {
	switch s.anomalyType {
	case AnomalyCalculationError:
		return fmt.Sprintf("stored payout %s does not match the replayed calculation trace (%s); the result was modified outside the engine or persisted incorrectly",
			r.FinalPayout, s.expected)
	case AnomalyPayoutSpike:
		return fmt.Sprintf("payout %s exceeds the expected baseline %s by %s%%; likely drivers are an accelerator firing on unusually high attainment (%s%%) or an oversized manual adjustment",
			r.FinalPayout, s.expected, s.variancePercent.Round(1), r.AttainmentPercent.Round(1))
	case AnomalyPayoutDrop:
		return fmt.Sprintf("payout %s falls short of the expected baseline %s by %s%%; likely drivers are low attainment (%s%%), a decelerator, or missing sales data",
			r.FinalPayout, s.expected, s.variancePercent.Round(1), r.AttainmentPercent.Round(1))
	case AnomalyQuotaMismatch:
		return fmt.Sprintf("realized %s%% of target pay but the pay curve maps %s%% attainment to %s%%; quota or target pay may be misconfigured",
			r.PercentOfTargetPay.Round(1), r.AttainmentPercent.Round(1), r.CurvePayoutPercent.Round(1))
	case AnomalyTerritoryOutlier:
		return fmt.Sprintf("payout %s is a statistical outlier within territory %q (cohort average %s)",
			r.FinalPayout, r.Territory, s.expected)
	default:
		return "unclassified deviation"
	}
}

func recommendedActions(t AnomalyType) []string {
	switch t {
	case AnomalyCalculationError:
		return []string{
			"re-run the calculation job for this representative",
			"compare the stored result against the trace step by step",
			"audit adjustments applied outside the workflow",
		}
	case AnomalyPayoutSpike:
		return []string{
			"verify the representative's reported sales figures",
			"review accelerator thresholds on the plan configuration",
			"check for duplicate or oversized manual adjustments",
		}
	case AnomalyPayoutDrop:
		return []string{
			"confirm all sales for the period were ingested",
			"verify the quota assignment for this representative",
			"review decelerator thresholds on the plan configuration",
		}
	case AnomalyQuotaMismatch:
		return []string{
			"verify the quota and target pay on the representative record",
			"review the plan's pay curve breakpoints",
		}
	case AnomalyTerritoryOutlier:
		return []string{
			"compare against peers in the same territory",
			"verify the territory multiplier configuration",
		}
	default:
		return []string{"review the payout manually"}
	}
}
