/*
engine.go - Calculation job orchestration

PURPOSE:
  Runs the per-rep pipeline (pipeline.go) across a job's full rep set,
  tracking progress and collecting results and traces. Representatives are
  independent units of work with no shared mutable state, so they fan out
  to a bounded worker pool; the job's counters are the only shared state
  and live behind a single mutex.

PARTIAL FAILURE SEMANTICS:
  - A rep failing validation increments ErrorCount; the job continues and
    completes with a non-zero error count, omitting that rep from results.
  - A plan failing curve validation aborts calculation for that plan's
    reps only (each counted as an error).
  - The job fails only when no rep could be processed at all, e.g. every
    rep referenced a missing plan.

CANCELLATION:
  Cooperative, checked once per representative - never mid-pipeline, so a
  rep's trace is always complete or absent.

ORDERING:
  Steps within a trace are strictly ordered 1..7. Across reps there is no
  ordering requirement; results are sorted by rep ID for determinism.

SEE ALSO:
  - pipeline.go: The per-rep stage sequence
  - anomaly.go: Consumes the results this produces
*/
package engine

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// defaultWorkers bounds the per-rep fan-out when Engine.Workers is unset.
const defaultWorkers = 4

// Engine executes calculation jobs. Zero value is usable.
type Engine struct {
	// Workers bounds the parallel rep fan-out. <= 0 means defaultWorkers.
	Workers int
}

// RunInput carries the already-fetched data for one job. The engine does
// no I/O of its own; reading inputs and writing outputs happen at job
// boundaries, never inside the pipeline.
type RunInput struct {
	Reps  []Representative
	Plans map[PlanID]*PlanConfiguration

	// AppliedAdjustments maps rep ID to the sum of adjustments in
	// "applied" status for the period. Missing reps default to zero.
	AppliedAdjustments map[RepID]decimal.Decimal
}

// RepErrorKind classifies why a representative was omitted. Job status
// semantics branch on the kind, never on the reason wording.
type RepErrorKind string

const (
	// RepErrorPlan: the rep's plan was missing or failed curve validation.
	RepErrorPlan RepErrorKind = "plan"
	// RepErrorValidation: the rep's own input record failed validation.
	RepErrorValidation RepErrorKind = "validation"
)

// RepError records a rep that was omitted from results.
type RepError struct {
	RepID  RepID
	Kind   RepErrorKind
	Reason string
}

// RunOutput is everything a completed job produced.
type RunOutput struct {
	Results   []FinalPayoutResult
	Traces    []CalculationTrace
	RepErrors []RepError
}

// RunJob processes every representative through the pipeline, mutating the
// job's status and progress counters as it goes. The returned error is
// non-nil only for unrecoverable faults (the job is then marked failed).
func (e *Engine) RunJob(ctx context.Context, job *CalculationJob, in RunInput) (*RunOutput, error) {
	now := time.Now().UTC()
	job.Status = JobRunning
	job.StartedAt = &now
	job.TotalRecords = len(in.Reps)

	// Validate each plan's curve up front. An invalid curve aborts
	// calculation for that plan's reps only.
	badPlans := make(map[PlanID]error)
	for id, plan := range in.Plans {
		if err := plan.Validate(); err != nil {
			badPlans[id] = err
			zap.L().Warn("plan failed curve validation, skipping its reps",
				zap.String("plan_id", string(id)),
				zap.Error(err),
			)
		}
	}

	var (
		mu     sync.Mutex
		out    RunOutput
		g, gctx = errgroup.WithContext(ctx)
	)

	workers := e.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	g.SetLimit(workers)

	for _, rep := range in.Reps {
		// Cooperative cancellation: checked once per rep, not mid-pipeline.
		if err := gctx.Err(); err != nil {
			break
		}

		rep := rep
		g.Go(func() error {
			plan, reason := resolvePlan(rep, in.Plans, badPlans)
			if plan == nil {
				mu.Lock()
				job.ProcessedRecords++
				job.ErrorCount++
				out.RepErrors = append(out.RepErrors, RepError{RepID: rep.ID, Kind: RepErrorPlan, Reason: reason})
				mu.Unlock()
				return nil
			}

			adjustment := decimal.Zero
			if in.AppliedAdjustments != nil {
				if a, ok := in.AppliedAdjustments[rep.ID]; ok {
					adjustment = a
				}
			}

			result, trace, err := ComputeRep(rep, plan, adjustment)
			trace.JobID = job.ID

			mu.Lock()
			defer mu.Unlock()
			job.ProcessedRecords++
			if err != nil {
				// Validation failure: record and continue with other reps.
				job.ErrorCount++
				out.RepErrors = append(out.RepErrors, RepError{RepID: rep.ID, Kind: RepErrorValidation, Reason: err.Error()})
				out.Traces = append(out.Traces, trace)
				return nil
			}
			result.JobID = job.ID
			out.Results = append(out.Results, *result)
			out.Traces = append(out.Traces, trace)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, e.fail(job, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, e.fail(job, err)
	}

	// Unrecoverable fault: nothing at all could be processed.
	if len(in.Reps) > 0 && len(out.Results) == 0 && job.ErrorCount == job.TotalRecords && allPlanFailures(out.RepErrors) {
		return nil, e.fail(job, errNoProcessableReps)
	}

	sort.Slice(out.Results, func(i, j int) bool { return out.Results[i].RepID < out.Results[j].RepID })
	sort.Slice(out.Traces, func(i, j int) bool { return out.Traces[i].RepID < out.Traces[j].RepID })

	done := time.Now().UTC()
	job.Status = JobCompleted
	job.CompletedAt = &done

	zap.L().Info("calculation job completed",
		zap.String("job_id", string(job.ID)),
		zap.Int("processed", job.ProcessedRecords),
		zap.Int("errors", job.ErrorCount),
	)
	return &out, nil
}

func (e *Engine) fail(job *CalculationJob, err error) error {
	done := time.Now().UTC()
	job.Status = JobFailed
	job.Error = err.Error()
	job.CompletedAt = &done
	zap.L().Error("calculation job failed",
		zap.String("job_id", string(job.ID)),
		zap.Error(err),
	)
	return err
}

// resolvePlan finds the rep's plan, or explains why it can't be used.
func resolvePlan(rep Representative, plans map[PlanID]*PlanConfiguration, badPlans map[PlanID]error) (*PlanConfiguration, string) {
	if err, bad := badPlans[rep.PlanID]; bad {
		return nil, "plan unusable: " + err.Error()
	}
	plan, ok := plans[rep.PlanID]
	if !ok {
		return nil, "plan not found: " + string(rep.PlanID)
	}
	return plan, ""
}

// allPlanFailures reports whether every rep error was a plan resolution
// failure (as opposed to per-rep validation, which is normal partial
// failure and keeps the job completed).
func allPlanFailures(errs []RepError) bool {
	for _, e := range errs {
		if e.Kind != RepErrorPlan {
			return false
		}
	}
	return len(errs) > 0
}

var errNoProcessableReps = errors.New("no representative had a usable plan configuration")
