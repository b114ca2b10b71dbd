/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements all engine persistence interfaces using SQLite. In production,
  the same patterns apply to PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  engine.RepStore:        Representative records
  engine.PlanStore:       Plan configurations (JSON column + queryable fields)
  engine.JobStore:        Calculation job lifecycle
  engine.ResultStore:     Final payout results
  engine.TraceStore:      Step-by-step calculation traces
  engine.AdjustmentStore: Manual adjustments with optimistic concurrency
  engine.AnomalyStore:    Detected anomalies and reviewer transitions
  engine.BaselineStore:   Historical payout baselines
  engine.VersionStore:    Plan version history
  engine.AuditLog:        Configuration audit entries

APPEND-ONLY ENFORCEMENT:
  calculation_steps, plan_versions, and audit_log carry no UPDATE or
  DELETE statements. Payout results accept exactly one mutation: folding
  an approved adjustment into the stored totals.

OPTIMISTIC CONCURRENCY:
  UpdateAdjustment writes with WHERE version = ?. Zero rows affected
  means a concurrent writer advanced the version first; the caller gets
  engine.ErrConcurrencyConflict and must reload.

DECIMALS AND TIMES:
  Monetary values are stored as TEXT (decimal string form), never REAL.
  Timestamps are stored as RFC3339 TEXT.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/incentive.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - engine/store.go: Interface definitions
  - engine/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/incentive-engine/engine"
)

// Store implements all engine storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Representatives (calculation inputs)
	CREATE TABLE IF NOT EXISTS representatives (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		territory TEXT NOT NULL DEFAULT '',
		plan_id TEXT NOT NULL,
		quota TEXT NOT NULL,
		actual_sales TEXT NOT NULL,
		target_pay TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_representatives_plan
		ON representatives(plan_id);
	CREATE INDEX IF NOT EXISTS idx_representatives_territory
		ON representatives(territory);

	-- Plans (full configuration as JSON, queryable fields as columns)
	CREATE TABLE IF NOT EXISTS plans (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		plan_type TEXT NOT NULL,
		config_json TEXT NOT NULL,
		current_version INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_plans_type
		ON plans(plan_type);

	-- Calculation jobs
	CREATE TABLE IF NOT EXISTS calculation_jobs (
		id TEXT PRIMARY KEY,
		plan_ids_json TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		total_records INTEGER NOT NULL DEFAULT 0,
		processed_records INTEGER NOT NULL DEFAULT 0,
		error_count INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		started_at TEXT,
		completed_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_status
		ON calculation_jobs(status);

	-- Final payout results, one per (job, rep)
	CREATE TABLE IF NOT EXISTS payout_results (
		job_id TEXT NOT NULL,
		rep_id TEXT NOT NULL,
		rep_name TEXT NOT NULL,
		territory TEXT NOT NULL DEFAULT '',
		quota TEXT NOT NULL,
		actual_sales TEXT NOT NULL,
		attainment_percent TEXT NOT NULL,
		plan_type TEXT NOT NULL,
		curve_payout_percent TEXT NOT NULL,
		final_payout TEXT NOT NULL,
		percent_of_target_pay TEXT NOT NULL,
		adjustment_total TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (job_id, rep_id)
	);

	-- Calculation steps (append-only audit trail)
	CREATE TABLE IF NOT EXISTS calculation_steps (
		job_id TEXT NOT NULL,
		rep_id TEXT NOT NULL,
		step_index INTEGER NOT NULL,
		name TEXT NOT NULL,
		input_json TEXT NOT NULL,
		rule TEXT NOT NULL DEFAULT '',
		formula TEXT NOT NULL DEFAULT '',
		intermediate TEXT NOT NULL,
		result TEXT NOT NULL,
		PRIMARY KEY (job_id, rep_id, step_index)
	);

	-- Manual adjustments (optimistic concurrency on version)
	CREATE TABLE IF NOT EXISTS adjustments (
		id TEXT PRIMARY KEY,
		rep_id TEXT NOT NULL,
		job_id TEXT NOT NULL,
		original_payout TEXT NOT NULL,
		amount TEXT NOT NULL,
		final_payout TEXT NOT NULL,
		adj_type TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		justification TEXT NOT NULL,
		priority TEXT NOT NULL DEFAULT 'normal',
		status TEXT NOT NULL DEFAULT 'pending',
		submitted_by TEXT NOT NULL DEFAULT '',
		reviewed_by TEXT NOT NULL DEFAULT '',
		rejection_reason TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_adjustments_status
		ON adjustments(status);
	CREATE INDEX IF NOT EXISTS idx_adjustments_job_rep
		ON adjustments(job_id, rep_id);

	-- Detected anomalies
	CREATE TABLE IF NOT EXISTS anomalies (
		id TEXT PRIMARY KEY,
		rep_id TEXT NOT NULL,
		job_id TEXT NOT NULL,
		anomaly_type TEXT NOT NULL,
		severity TEXT NOT NULL,
		confidence INTEGER NOT NULL DEFAULT 0,
		current_value TEXT NOT NULL,
		expected_value TEXT NOT NULL,
		variance TEXT NOT NULL,
		variance_percent TEXT NOT NULL,
		root_cause TEXT NOT NULL DEFAULT '',
		actions_json TEXT NOT NULL DEFAULT '[]',
		status TEXT NOT NULL DEFAULT 'pending',
		reviewed_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_anomalies_job
		ON anomalies(job_id);
	CREATE INDEX IF NOT EXISTS idx_anomalies_status
		ON anomalies(status);

	-- Historical payout baselines per cohort
	CREATE TABLE IF NOT EXISTS baselines (
		cohort TEXT PRIMARY KEY,
		expected_payout TEXT NOT NULL,
		std_dev TEXT NOT NULL
	);

	-- Plan versions (append-only history)
	CREATE TABLE IF NOT EXISTS plan_versions (
		id TEXT PRIMARY KEY,
		plan_id TEXT NOT NULL,
		version_number INTEGER NOT NULL,
		configuration_json TEXT NOT NULL,
		pay_curve_json TEXT NOT NULL,
		simulation_json TEXT NOT NULL DEFAULT '',
		change_description TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		is_snapshot BOOLEAN NOT NULL DEFAULT TRUE
	);

	-- CRITICAL: no two versions of a plan may share a number
	CREATE UNIQUE INDEX IF NOT EXISTS idx_plan_versions_unique
		ON plan_versions(plan_id, version_number);

	-- Audit log (append-only, ever)
	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		plan_id TEXT NOT NULL,
		version_id TEXT NOT NULL DEFAULT '',
		user_id TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL,
		category TEXT NOT NULL,
		field_changed TEXT NOT NULL DEFAULT '',
		old_value TEXT NOT NULL DEFAULT '',
		new_value TEXT NOT NULL DEFAULT '',
		change_source TEXT NOT NULL DEFAULT '',
		timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_plan
		ON audit_log(plan_id, timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// REPRESENTATIVE STORE (engine.RepStore interface)
// =============================================================================

// SaveRep upserts a representative.
func (s *Store) SaveRep(ctx context.Context, rep engine.Representative) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO representatives (id, name, territory, plan_id, quota, actual_sales, target_pay, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			territory = excluded.territory,
			plan_id = excluded.plan_id,
			quota = excluded.quota,
			actual_sales = excluded.actual_sales,
			target_pay = excluded.target_pay
	`

	_, err := s.db.ExecContext(ctx, query,
		rep.ID, rep.Name, rep.Territory, rep.PlanID,
		rep.Quota.String(), rep.ActualSales.String(), rep.TargetPay.String(),
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// GetRep retrieves a representative by ID.
func (s *Store) GetRep(ctx context.Context, id engine.RepID) (*engine.Representative, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rep engine.Representative
	var quota, actualSales, targetPay string

	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, territory, plan_id, quota, actual_sales, target_pay FROM representatives WHERE id = ?",
		id,
	).Scan(&rep.ID, &rep.Name, &rep.Territory, &rep.PlanID, &quota, &actualSales, &targetPay)

	if err == sql.ErrNoRows {
		return nil, engine.ErrRepNotFound
	}
	if err != nil {
		return nil, err
	}

	rep.Quota = engine.MustDecimal(quota)
	rep.ActualSales = engine.MustDecimal(actualSales)
	rep.TargetPay = engine.MustDecimal(targetPay)
	return &rep, nil
}

// ListReps returns all representatives ordered by ID.
func (s *Store) ListReps(ctx context.Context) ([]engine.Representative, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, territory, plan_id, quota, actual_sales, target_pay FROM representatives ORDER BY id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reps []engine.Representative
	for rows.Next() {
		var rep engine.Representative
		var quota, actualSales, targetPay string
		if err := rows.Scan(&rep.ID, &rep.Name, &rep.Territory, &rep.PlanID, &quota, &actualSales, &targetPay); err != nil {
			return nil, err
		}
		rep.Quota = engine.MustDecimal(quota)
		rep.ActualSales = engine.MustDecimal(actualSales)
		rep.TargetPay = engine.MustDecimal(targetPay)
		reps = append(reps, rep)
	}
	return reps, rows.Err()
}

// =============================================================================
// PLAN STORE (engine.PlanStore interface)
// =============================================================================

// SavePlan upserts a plan configuration. The full configuration is stored
// as JSON; name, type and current version are lifted into columns.
func (s *Store) SavePlan(ctx context.Context, plan *engine.PlanConfiguration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	configJSON, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}

	query := `
		INSERT INTO plans (id, name, plan_type, config_json, current_version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			plan_type = excluded.plan_type,
			config_json = excluded.config_json,
			current_version = excluded.current_version,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx, query,
		plan.ID, plan.Name, plan.Type, string(configJSON), plan.CurrentVersion, now, now,
	)
	return err
}

// GetPlan retrieves a plan by ID.
func (s *Store) GetPlan(ctx context.Context, id engine.PlanID) (*engine.PlanConfiguration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var configJSON string
	var currentVersion int

	err := s.db.QueryRowContext(ctx,
		"SELECT config_json, current_version FROM plans WHERE id = ?",
		id,
	).Scan(&configJSON, &currentVersion)

	if err == sql.ErrNoRows {
		return nil, engine.ErrPlanNotFound
	}
	if err != nil {
		return nil, err
	}

	var plan engine.PlanConfiguration
	if err := json.Unmarshal([]byte(configJSON), &plan); err != nil {
		return nil, fmt.Errorf("failed to unmarshal plan %s: %w", id, err)
	}
	plan.CurrentVersion = currentVersion
	return &plan, nil
}

// ListPlans returns all plans ordered by ID.
func (s *Store) ListPlans(ctx context.Context) ([]*engine.PlanConfiguration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, config_json, current_version FROM plans ORDER BY id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []*engine.PlanConfiguration
	for rows.Next() {
		var id, configJSON string
		var currentVersion int
		if err := rows.Scan(&id, &configJSON, &currentVersion); err != nil {
			return nil, err
		}
		var plan engine.PlanConfiguration
		if err := json.Unmarshal([]byte(configJSON), &plan); err != nil {
			return nil, fmt.Errorf("failed to unmarshal plan %s: %w", id, err)
		}
		plan.CurrentVersion = currentVersion
		plans = append(plans, &plan)
	}
	return plans, rows.Err()
}

// =============================================================================
// JOB STORE (engine.JobStore interface)
// =============================================================================

// SaveJob upserts a calculation job. The engine saves once on creation and
// again as progress and status advance.
func (s *Store) SaveJob(ctx context.Context, job *engine.CalculationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	planIDs, err := json.Marshal(job.PlanIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal plan ids: %w", err)
	}

	query := `
		INSERT INTO calculation_jobs
		(id, plan_ids_json, period_start, period_end, status, total_records,
		 processed_records, error_count, error, created_at, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			total_records = excluded.total_records,
			processed_records = excluded.processed_records,
			error_count = excluded.error_count,
			error = excluded.error,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at
	`

	_, err = s.db.ExecContext(ctx, query,
		job.ID, string(planIDs),
		job.PeriodStart.Format(time.RFC3339), job.PeriodEnd.Format(time.RFC3339),
		job.Status, job.TotalRecords, job.ProcessedRecords, job.ErrorCount, job.Error,
		job.CreatedAt.Format(time.RFC3339),
		nullTime(job.StartedAt), nullTime(job.CompletedAt),
	)
	return err
}

// GetJob retrieves a calculation job by ID.
func (s *Store) GetJob(ctx context.Context, id engine.JobID) (*engine.CalculationJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, plan_ids_json, period_start, period_end, status, total_records,
		       processed_records, error_count, error, created_at, started_at, completed_at
		FROM calculation_jobs WHERE id = ?
	`

	jobs, err := s.queryJobs(ctx, query, id)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, engine.ErrJobNotFound
	}
	return jobs[0], nil
}

// ListJobs returns all jobs, oldest first.
func (s *Store) ListJobs(ctx context.Context) ([]*engine.CalculationJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, plan_ids_json, period_start, period_end, status, total_records,
		       processed_records, error_count, error, created_at, started_at, completed_at
		FROM calculation_jobs
		ORDER BY created_at ASC
	`

	return s.queryJobs(ctx, query)
}

func (s *Store) queryJobs(ctx context.Context, query string, args ...any) ([]*engine.CalculationJob, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*engine.CalculationJob
	for rows.Next() {
		var job engine.CalculationJob
		var planIDs, periodStart, periodEnd, createdAt string
		var startedAt, completedAt sql.NullString

		if err := rows.Scan(
			&job.ID, &planIDs, &periodStart, &periodEnd, &job.Status,
			&job.TotalRecords, &job.ProcessedRecords, &job.ErrorCount, &job.Error,
			&createdAt, &startedAt, &completedAt,
		); err != nil {
			return nil, err
		}

		json.Unmarshal([]byte(planIDs), &job.PlanIDs)
		job.PeriodStart, _ = time.Parse(time.RFC3339, periodStart)
		job.PeriodEnd, _ = time.Parse(time.RFC3339, periodEnd)
		job.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		if startedAt.Valid {
			t, _ := time.Parse(time.RFC3339, startedAt.String)
			job.StartedAt = &t
		}
		if completedAt.Valid {
			t, _ := time.Parse(time.RFC3339, completedAt.String)
			job.CompletedAt = &t
		}

		jobs = append(jobs, &job)
	}
	return jobs, rows.Err()
}

// =============================================================================
// RESULT STORE (engine.ResultStore interface)
// =============================================================================

// SaveResults writes a batch of payout results atomically.
func (s *Store) SaveResults(ctx context.Context, results []engine.FinalPayoutResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO payout_results
		(job_id, rep_id, rep_name, territory, quota, actual_sales, attainment_percent,
		 plan_type, curve_payout_percent, final_payout, percent_of_target_pay, adjustment_total, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for _, r := range results {
		if _, err := tx.ExecContext(ctx, query,
			r.JobID, r.RepID, r.RepName, r.Territory,
			r.Quota.String(), r.ActualSales.String(), r.AttainmentPercent.String(),
			r.PlanType, r.CurvePayoutPercent.String(), r.FinalPayout.String(),
			r.PercentOfTargetPay.String(), r.AdjustmentTotal.String(), r.Notes,
		); err != nil {
			return fmt.Errorf("failed to insert result for rep %s: %w", r.RepID, err)
		}
	}

	return tx.Commit()
}

// ResultsByJob returns all results for a job ordered by rep ID.
func (s *Store) ResultsByJob(ctx context.Context, jobID engine.JobID) ([]engine.FinalPayoutResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT job_id, rep_id, rep_name, territory, quota, actual_sales, attainment_percent,
		       plan_type, curve_payout_percent, final_payout, percent_of_target_pay, adjustment_total, notes
		FROM payout_results
		WHERE job_id = ?
		ORDER BY rep_id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []engine.FinalPayoutResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// GetResult returns a single (job, rep) result.
func (s *Store) GetResult(ctx context.Context, jobID engine.JobID, repID engine.RepID) (*engine.FinalPayoutResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT job_id, rep_id, rep_name, territory, quota, actual_sales, attainment_percent,
		       plan_type, curve_payout_percent, final_payout, percent_of_target_pay, adjustment_total, notes
		FROM payout_results
		WHERE job_id = ? AND rep_id = ?
	`

	rows, err := s.db.QueryContext(ctx, query, jobID, repID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, engine.ErrRepNotFound
	}
	r, err := scanResult(rows)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ApplyAdjustment folds an approved adjustment amount into the stored
// result. Decimals live as TEXT, so the arithmetic happens here rather
// than in SQL, inside one database transaction.
func (s *Store) ApplyAdjustment(ctx context.Context, jobID engine.JobID, repID engine.RepID, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var finalPayout, adjustmentTotal string
	err = tx.QueryRowContext(ctx,
		"SELECT final_payout, adjustment_total FROM payout_results WHERE job_id = ? AND rep_id = ?",
		jobID, repID,
	).Scan(&finalPayout, &adjustmentTotal)
	if err == sql.ErrNoRows {
		return engine.ErrRepNotFound
	}
	if err != nil {
		return err
	}

	newPayout := engine.MustDecimal(finalPayout).Add(amount)
	newTotal := engine.MustDecimal(adjustmentTotal).Add(amount)

	_, err = tx.ExecContext(ctx,
		"UPDATE payout_results SET final_payout = ?, adjustment_total = ? WHERE job_id = ? AND rep_id = ?",
		newPayout.String(), newTotal.String(), jobID, repID,
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func scanResult(rows *sql.Rows) (engine.FinalPayoutResult, error) {
	var r engine.FinalPayoutResult
	var quota, actualSales, attainment, curvePercent, finalPayout, percentOfTarget, adjustmentTotal string

	err := rows.Scan(
		&r.JobID, &r.RepID, &r.RepName, &r.Territory,
		&quota, &actualSales, &attainment,
		&r.PlanType, &curvePercent, &finalPayout, &percentOfTarget, &adjustmentTotal, &r.Notes,
	)
	if err != nil {
		return r, fmt.Errorf("failed to scan result: %w", err)
	}

	r.Quota = engine.MustDecimal(quota)
	r.ActualSales = engine.MustDecimal(actualSales)
	r.AttainmentPercent = engine.MustDecimal(attainment)
	r.CurvePayoutPercent = engine.MustDecimal(curvePercent)
	r.FinalPayout = engine.MustDecimal(finalPayout)
	r.PercentOfTargetPay = engine.MustDecimal(percentOfTarget)
	r.AdjustmentTotal = engine.MustDecimal(adjustmentTotal)
	return r, nil
}

// =============================================================================
// TRACE STORE (engine.TraceStore interface) - Append-only
// =============================================================================

// SaveTraces writes calculation traces atomically. Steps are inserted in
// order and never updated.
func (s *Store) SaveTraces(ctx context.Context, traces []engine.CalculationTrace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO calculation_steps
		(job_id, rep_id, step_index, name, input_json, rule, formula, intermediate, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for _, trace := range traces {
		for _, step := range trace.Steps {
			inputJSON, err := json.Marshal(step.Input)
			if err != nil {
				return fmt.Errorf("failed to marshal step input: %w", err)
			}
			if _, err := tx.ExecContext(ctx, query,
				trace.JobID, trace.RepID, step.Index, step.Name,
				string(inputJSON), step.Rule, step.Formula,
				step.Intermediate.String(), step.Result.String(),
			); err != nil {
				return fmt.Errorf("failed to insert step for rep %s: %w", trace.RepID, err)
			}
		}
	}

	return tx.Commit()
}

// Trace returns the full step trace for one (job, rep).
func (s *Store) Trace(ctx context.Context, jobID engine.JobID, repID engine.RepID) (*engine.CalculationTrace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	steps, err := s.querySteps(ctx, jobID, repID)
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, engine.ErrRepNotFound
	}
	return &engine.CalculationTrace{JobID: jobID, RepID: repID, Steps: steps}, nil
}

// TracesByJob returns all traces for a job, grouped per rep.
func (s *Store) TracesByJob(ctx context.Context, jobID engine.JobID) ([]engine.CalculationTrace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT rep_id, step_index, name, input_json, rule, formula, intermediate, result
		FROM calculation_steps
		WHERE job_id = ?
		ORDER BY rep_id ASC, step_index ASC
	`

	rows, err := s.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var traces []engine.CalculationTrace
	var current *engine.CalculationTrace
	for rows.Next() {
		var repID engine.RepID
		step, err := scanStepWithRep(rows, &repID)
		if err != nil {
			return nil, err
		}
		if current == nil || current.RepID != repID {
			traces = append(traces, engine.CalculationTrace{JobID: jobID, RepID: repID})
			current = &traces[len(traces)-1]
		}
		current.Steps = append(current.Steps, step)
	}
	return traces, rows.Err()
}

func (s *Store) querySteps(ctx context.Context, jobID engine.JobID, repID engine.RepID) ([]engine.CalculationStep, error) {
	query := `
		SELECT step_index, name, input_json, rule, formula, intermediate, result
		FROM calculation_steps
		WHERE job_id = ? AND rep_id = ?
		ORDER BY step_index ASC
	`

	rows, err := s.db.QueryContext(ctx, query, jobID, repID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []engine.CalculationStep
	for rows.Next() {
		var step engine.CalculationStep
		var inputJSON, intermediate, result string
		if err := rows.Scan(&step.Index, &step.Name, &inputJSON, &step.Rule, &step.Formula, &intermediate, &result); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(inputJSON), &step.Input); err != nil {
			return nil, fmt.Errorf("failed to unmarshal step input: %w", err)
		}
		step.Intermediate = engine.MustDecimal(intermediate)
		step.Result = engine.MustDecimal(result)
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

func scanStepWithRep(rows *sql.Rows, repID *engine.RepID) (engine.CalculationStep, error) {
	var step engine.CalculationStep
	var inputJSON, intermediate, result string
	if err := rows.Scan(repID, &step.Index, &step.Name, &inputJSON, &step.Rule, &step.Formula, &intermediate, &result); err != nil {
		return step, fmt.Errorf("failed to scan step: %w", err)
	}
	if err := json.Unmarshal([]byte(inputJSON), &step.Input); err != nil {
		return step, fmt.Errorf("failed to unmarshal step input: %w", err)
	}
	step.Intermediate = engine.MustDecimal(intermediate)
	step.Result = engine.MustDecimal(result)
	return step, nil
}

// =============================================================================
// ADJUSTMENT STORE (engine.AdjustmentStore interface)
// =============================================================================

// SaveAdjustment inserts a new adjustment.
func (s *Store) SaveAdjustment(ctx context.Context, adj *engine.Adjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO adjustments
		(id, rep_id, job_id, original_payout, amount, final_payout, adj_type, reason,
		 justification, priority, status, submitted_by, reviewed_by, rejection_reason,
		 version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		adj.ID, adj.RepID, adj.JobID,
		adj.OriginalPayout.String(), adj.Amount.String(), adj.FinalPayout.String(),
		adj.Type, adj.Reason, adj.Justification, adj.Priority,
		adj.Status, adj.SubmittedBy, adj.ReviewedBy, adj.RejectionReason,
		adj.Version,
		adj.CreatedAt.Format(time.RFC3339), adj.UpdatedAt.Format(time.RFC3339),
	)
	return err
}

// GetAdjustment retrieves an adjustment by ID.
func (s *Store) GetAdjustment(ctx context.Context, id string) (*engine.Adjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	adjs, err := s.queryAdjustments(ctx, adjustmentSelect+" WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(adjs) == 0 {
		return nil, engine.ErrAdjustmentNotFound
	}
	return adjs[0], nil
}

// ListAdjustments returns adjustments, optionally filtered by status.
func (s *Store) ListAdjustments(ctx context.Context, status engine.AdjustmentStatus) ([]*engine.Adjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if status == "" {
		return s.queryAdjustments(ctx, adjustmentSelect+" ORDER BY created_at ASC")
	}
	return s.queryAdjustments(ctx, adjustmentSelect+" WHERE status = ? ORDER BY created_at ASC", status)
}

// UpdateAdjustment writes an adjustment guarded by its version. Zero rows
// affected means a concurrent writer got there first.
func (s *Store) UpdateAdjustment(ctx context.Context, adj *engine.Adjustment, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		UPDATE adjustments SET
			final_payout = ?,
			status = ?,
			reviewed_by = ?,
			rejection_reason = ?,
			version = ?,
			updated_at = ?
		WHERE id = ? AND version = ?
	`

	res, err := s.db.ExecContext(ctx, query,
		adj.FinalPayout.String(), adj.Status, adj.ReviewedBy, adj.RejectionReason,
		adj.Version, adj.UpdatedAt.Format(time.RFC3339),
		adj.ID, expectedVersion,
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var count int
		if err := s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM adjustments WHERE id = ?", adj.ID,
		).Scan(&count); err != nil {
			return err
		}
		if count == 0 {
			return engine.ErrAdjustmentNotFound
		}
		return engine.ErrConcurrencyConflict
	}
	return nil
}

const adjustmentSelect = `
	SELECT id, rep_id, job_id, original_payout, amount, final_payout, adj_type, reason,
	       justification, priority, status, submitted_by, reviewed_by, rejection_reason,
	       version, created_at, updated_at
	FROM adjustments`

func (s *Store) queryAdjustments(ctx context.Context, query string, args ...any) ([]*engine.Adjustment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var adjs []*engine.Adjustment
	for rows.Next() {
		var adj engine.Adjustment
		var originalPayout, amount, finalPayout, createdAt, updatedAt string
		if err := rows.Scan(
			&adj.ID, &adj.RepID, &adj.JobID,
			&originalPayout, &amount, &finalPayout,
			&adj.Type, &adj.Reason, &adj.Justification, &adj.Priority,
			&adj.Status, &adj.SubmittedBy, &adj.ReviewedBy, &adj.RejectionReason,
			&adj.Version, &createdAt, &updatedAt,
		); err != nil {
			return nil, err
		}
		adj.OriginalPayout = engine.MustDecimal(originalPayout)
		adj.Amount = engine.MustDecimal(amount)
		adj.FinalPayout = engine.MustDecimal(finalPayout)
		adj.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		adj.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		adjs = append(adjs, &adj)
	}
	return adjs, rows.Err()
}

// =============================================================================
// ANOMALY STORE (engine.AnomalyStore interface)
// =============================================================================

// SaveAnomalies writes a batch of detected anomalies atomically.
func (s *Store) SaveAnomalies(ctx context.Context, anomalies []engine.Anomaly) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO anomalies
		(id, rep_id, job_id, anomaly_type, severity, confidence, current_value,
		 expected_value, variance, variance_percent, root_cause, actions_json,
		 status, reviewed_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for _, a := range anomalies {
		actionsJSON, err := json.Marshal(a.RecommendedActions)
		if err != nil {
			return fmt.Errorf("failed to marshal actions: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query,
			a.ID, a.RepID, a.JobID, a.Type, a.Severity, a.ConfidenceScore,
			a.CurrentValue.String(), a.ExpectedValue.String(),
			a.Variance.String(), a.VariancePercent.String(),
			a.RootCause, string(actionsJSON),
			a.Status, a.ReviewedBy, a.CreatedAt.Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("failed to insert anomaly %s: %w", a.ID, err)
		}
	}

	return tx.Commit()
}

// GetAnomaly retrieves an anomaly by ID.
func (s *Store) GetAnomaly(ctx context.Context, id string) (*engine.Anomaly, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	anomalies, err := s.queryAnomalies(ctx, anomalySelect+" WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(anomalies) == 0 {
		return nil, engine.ErrAnomalyNotFound
	}
	return &anomalies[0], nil
}

// ListAnomalies returns anomalies, optionally filtered by job.
func (s *Store) ListAnomalies(ctx context.Context, jobID engine.JobID) ([]engine.Anomaly, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if jobID == "" {
		return s.queryAnomalies(ctx, anomalySelect+" ORDER BY created_at ASC, id ASC")
	}
	return s.queryAnomalies(ctx, anomalySelect+" WHERE job_id = ? ORDER BY created_at ASC, id ASC", jobID)
}

// UpdateAnomalyStatus writes a reviewer transition.
func (s *Store) UpdateAnomalyStatus(ctx context.Context, a *engine.Anomaly) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE anomalies SET status = ?, reviewed_by = ? WHERE id = ?",
		a.Status, a.ReviewedBy, a.ID,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return engine.ErrAnomalyNotFound
	}
	return nil
}

const anomalySelect = `
	SELECT id, rep_id, job_id, anomaly_type, severity, confidence, current_value,
	       expected_value, variance, variance_percent, root_cause, actions_json,
	       status, reviewed_by, created_at
	FROM anomalies`

func (s *Store) queryAnomalies(ctx context.Context, query string, args ...any) ([]engine.Anomaly, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var anomalies []engine.Anomaly
	for rows.Next() {
		var a engine.Anomaly
		var currentValue, expectedValue, variance, variancePercent, actionsJSON, createdAt string
		if err := rows.Scan(
			&a.ID, &a.RepID, &a.JobID, &a.Type, &a.Severity, &a.ConfidenceScore,
			&currentValue, &expectedValue, &variance, &variancePercent,
			&a.RootCause, &actionsJSON, &a.Status, &a.ReviewedBy, &createdAt,
		); err != nil {
			return nil, err
		}
		a.CurrentValue = engine.MustDecimal(currentValue)
		a.ExpectedValue = engine.MustDecimal(expectedValue)
		a.Variance = engine.MustDecimal(variance)
		a.VariancePercent = engine.MustDecimal(variancePercent)
		json.Unmarshal([]byte(actionsJSON), &a.RecommendedActions)
		a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		anomalies = append(anomalies, a)
	}
	return anomalies, rows.Err()
}

// =============================================================================
// BASELINE STORE (engine.BaselineStore interface)
// =============================================================================

// SaveCohortBaseline upserts a cohort baseline.
func (s *Store) SaveCohortBaseline(ctx context.Context, b engine.CohortBaseline) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO baselines (cohort, expected_payout, std_dev)
		VALUES (?, ?, ?)
		ON CONFLICT(cohort) DO UPDATE SET
			expected_payout = excluded.expected_payout,
			std_dev = excluded.std_dev
	`

	_, err := s.db.ExecContext(ctx, query,
		b.Cohort, b.ExpectedPayout.String(), b.StdDev.String(),
	)
	return err
}

// Baseline loads all cohort baselines.
func (s *Store) Baseline(ctx context.Context) (engine.HistoricalBaseline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT cohort, expected_payout, std_dev FROM baselines")
	if err != nil {
		return engine.HistoricalBaseline{}, err
	}
	defer rows.Close()

	cohorts := make(map[string]engine.CohortBaseline)
	for rows.Next() {
		var b engine.CohortBaseline
		var expectedPayout, stdDev string
		if err := rows.Scan(&b.Cohort, &expectedPayout, &stdDev); err != nil {
			return engine.HistoricalBaseline{}, err
		}
		b.ExpectedPayout = engine.MustDecimal(expectedPayout)
		b.StdDev = engine.MustDecimal(stdDev)
		cohorts[b.Cohort] = b
	}
	return engine.HistoricalBaseline{Cohorts: cohorts}, rows.Err()
}

// =============================================================================
// VERSION STORE (engine.VersionStore interface) - Append-only
// =============================================================================

// CurrentVersionNumber returns the highest version number for a plan,
// zero when the plan has no versions.
func (s *Store) CurrentVersionNumber(ctx context.Context, planID engine.PlanID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version_number), 0) FROM plan_versions WHERE plan_id = ?",
		planID,
	).Scan(&n)
	return n, err
}

// AppendVersion inserts a plan version and advances the plan's current
// version in one database transaction. The unique (plan_id, version_number)
// index rejects collisions from concurrent writers.
func (s *Store) AppendVersion(ctx context.Context, v *engine.PlanVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO plan_versions
		(id, plan_id, version_number, configuration_json, pay_curve_json, simulation_json,
		 change_description, created_by, created_at, is_snapshot)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.ExecContext(ctx, query,
		v.ID, v.PlanID, v.VersionNumber,
		v.ConfigurationData, v.PayCurveData, v.SimulationResults,
		v.ChangeDescription, v.CreatedBy,
		v.CreatedAt.Format(time.RFC3339), v.IsSnapshot,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return engine.ErrConcurrencyConflict
		}
		return fmt.Errorf("failed to insert plan version: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE plans SET current_version = ?, updated_at = ? WHERE id = ?",
		v.VersionNumber, time.Now().UTC().Format(time.RFC3339), v.PlanID,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// GetVersion retrieves a plan version by ID.
func (s *Store) GetVersion(ctx context.Context, id string) (*engine.PlanVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions, err := s.queryVersions(ctx, versionSelect+" WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, engine.ErrVersionNotFound
	}
	return &versions[0], nil
}

// VersionsByPlan returns all versions of a plan in ascending order.
func (s *Store) VersionsByPlan(ctx context.Context, planID engine.PlanID) ([]engine.PlanVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryVersions(ctx,
		versionSelect+" WHERE plan_id = ? ORDER BY version_number ASC", planID)
}

const versionSelect = `
	SELECT id, plan_id, version_number, configuration_json, pay_curve_json, simulation_json,
	       change_description, created_by, created_at, is_snapshot
	FROM plan_versions`

func (s *Store) queryVersions(ctx context.Context, query string, args ...any) ([]engine.PlanVersion, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []engine.PlanVersion
	for rows.Next() {
		var v engine.PlanVersion
		var createdAt string
		if err := rows.Scan(
			&v.ID, &v.PlanID, &v.VersionNumber,
			&v.ConfigurationData, &v.PayCurveData, &v.SimulationResults,
			&v.ChangeDescription, &v.CreatedBy, &createdAt, &v.IsSnapshot,
		); err != nil {
			return nil, err
		}
		v.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// =============================================================================
// AUDIT LOG (engine.AuditLog interface) - Append-only, ever
// =============================================================================

// AppendEntry writes one audit entry. There is no update or delete path.
func (s *Store) AppendEntry(ctx context.Context, entry engine.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO audit_log
		(id, plan_id, version_id, user_id, action, category, field_changed,
		 old_value, new_value, change_source, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID, entry.PlanID, entry.VersionID, entry.UserID,
		entry.Action, entry.Category, entry.FieldChanged,
		entry.OldValue, entry.NewValue, entry.ChangeSource,
		entry.Timestamp.Format(time.RFC3339),
	)
	return err
}

// EntriesByPlan returns the audit history for a plan in chronological order.
func (s *Store) EntriesByPlan(ctx context.Context, planID engine.PlanID) ([]engine.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, plan_id, version_id, user_id, action, category, field_changed,
		       old_value, new_value, change_source, timestamp
		FROM audit_log
		WHERE plan_id = ?
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []engine.AuditEntry
	for rows.Next() {
		var e engine.AuditEntry
		var timestamp string
		if err := rows.Scan(
			&e.ID, &e.PlanID, &e.VersionID, &e.UserID,
			&e.Action, &e.Category, &e.FieldChanged,
			&e.OldValue, &e.NewValue, &e.ChangeSource, &timestamp,
		); err != nil {
			return nil, err
		}
		e.Timestamp, _ = time.Parse(time.RFC3339, timestamp)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"calculation_steps", "payout_results", "anomalies", "adjustments",
		"calculation_jobs", "audit_log", "plan_versions", "baselines",
		"representatives", "plans",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
