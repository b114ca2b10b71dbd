/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates plans, representatives,
	and baselines that demonstrate specific features.

AVAILABLE SCENARIOS:

	standard-team:      Goal-attainment plan, mixed attainment levels
	accelerated-west:   Accelerator + territory multipliers + cap
	anomaly-review:     Reps engineered to trip the anomaly detector

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create plans via factory, with an initial version snapshot
 3. Create representatives assigned to those plans
 4. Seed territory cohort baselines for anomaly detection
 5. Client starts a calculation job over the loaded data

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "accelerated-west"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx, h)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: LoadScenario, ListScenarios handlers
  - factory/plan.go: Plan JSON definitions
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/warp/incentive-engine/engine"
	"github.com/warp/incentive-engine/factory"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "standard-team",
		Name:        "Standard Team",
		Description: "Goal-attainment plan with reps below, at, and above quota",
	},
	{
		ID:          "accelerated-west",
		Name:        "Accelerated West Region",
		Description: "Tiered plan with accelerator, territory multipliers, and payout cap",
	},
	{
		ID:          "anomaly-review",
		Name:        "Anomaly Review",
		Description: "Payouts deviating from historical baselines to exercise the detector",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	// Scenario ID exists but not in list (shouldn't happen)
	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          current,
		Name:        current,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()

	// Reset first
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	var err error
	switch req.ScenarioID {
	case "standard-team":
		err = h.loadStandardTeamScenario(ctx)
	case "accelerated-west":
		err = h.loadAcceleratedWestScenario(ctx)
	case "anomaly-review":
		err = h.loadAnomalyReviewScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadStandardTeamScenario(ctx context.Context) error {
	// Standard goal-attainment plan, 2.5% of sales, no cap.
	plan, err := h.Factory.ParsePlan(
		h.Factory.StandardGoalAttainmentJSON("plan-standard", "Standard Goal Attainment", 0.025))
	if err != nil {
		return err
	}
	if err := h.createPlanWithSnapshot(ctx, plan); err != nil {
		return err
	}

	// Mixed attainment: 60% (decelerated zone), 100%, and 125%.
	reps := []engine.Representative{
		{
			ID: "rep-amara", Name: "Amara Okafor", Territory: "east", PlanID: "plan-standard",
			Quota:       engine.Dec(400000),
			ActualSales: engine.Dec(240000),
			TargetPay:   engine.Dec(60000),
		},
		{
			ID: "rep-boris", Name: "Boris Kovac", Territory: "east", PlanID: "plan-standard",
			Quota:       engine.Dec(400000),
			ActualSales: engine.Dec(400000),
			TargetPay:   engine.Dec(60000),
		},
		{
			ID: "rep-chen", Name: "Chen Wei", Territory: "central", PlanID: "plan-standard",
			Quota:       engine.Dec(400000),
			ActualSales: engine.Dec(500000),
			TargetPay:   engine.Dec(60000),
		},
	}
	for _, rep := range reps {
		if err := h.Store.SaveRep(ctx, rep); err != nil {
			return err
		}
	}

	return h.seedBaselines(ctx, map[string][2]float64{
		"east":    {9500, 1500},
		"central": {11000, 1800},
	})
}

func (h *Handler) loadAcceleratedWestScenario(ctx context.Context) error {
	// Tiered plan with accelerator, territory multipliers, and a payout cap
	// at 300% of target pay.
	capPercent := 300.0
	pj := factory.PlanJSON{
		ID:                 "plan-accelerated",
		Name:               "Accelerated Tiered (West)",
		Type:               "tiered_commission",
		BaseCommissionRate: 0.02,
		Breakpoints: []factory.BreakpointJSON{
			{Performance: 0, Payout: 0},
			{Performance: 80, Payout: 50},
			{Performance: 100, Payout: 100},
			{Performance: 120, Payout: 150},
			{Performance: 140, Payout: 200},
		},
		PayoutCapPercent: &capPercent,
		Accelerator:      &factory.ModifierJSON{Threshold: 120, Factor: 1.5},
		TerritoryMultipliers: map[string]float64{
			"west":  1.1,
			"north": 1.05,
		},
	}
	plan, err := h.Factory.FromJSON(pj)
	if err != nil {
		return err
	}
	if err := h.createPlanWithSnapshot(ctx, plan); err != nil {
		return err
	}

	// Dana crosses the 120% accelerator threshold in the 1.1x west
	// territory: 650000 * 0.02 * 1.5 * 1.1 = 21450.
	reps := []engine.Representative{
		{
			ID: "rep-dana", Name: "Dana Whitfield", Territory: "west", PlanID: "plan-accelerated",
			Quota:       engine.Dec(500000),
			ActualSales: engine.Dec(650000),
			TargetPay:   engine.Dec(80000),
		},
		{
			ID: "rep-elio", Name: "Elio Marchetti", Territory: "north", PlanID: "plan-accelerated",
			Quota:       engine.Dec(500000),
			ActualSales: engine.Dec(450000),
			TargetPay:   engine.Dec(80000),
		},
		{
			ID: "rep-farah", Name: "Farah Nasser", Territory: "west", PlanID: "plan-accelerated",
			Quota:       engine.Dec(300000),
			ActualSales: engine.Dec(510000), // 170% attainment, cap territory
			TargetPay:   engine.Dec(50000),
		},
	}
	for _, rep := range reps {
		if err := h.Store.SaveRep(ctx, rep); err != nil {
			return err
		}
	}

	return h.seedBaselines(ctx, map[string][2]float64{
		"west":  {15000, 3000},
		"north": {9000, 2000},
	})
}

func (h *Handler) loadAnomalyReviewScenario(ctx context.Context) error {
	plan, err := h.Factory.ParsePlan(
		h.Factory.TerritoryWeightedJSON("plan-weighted", "Territory Weighted", 0.03,
			map[string]float64{"south": 1.2, "east": 1.0}))
	if err != nil {
		return err
	}
	if err := h.createPlanWithSnapshot(ctx, plan); err != nil {
		return err
	}

	// Gita's payout lands far above the south cohort baseline; Hugo sits
	// close to his. A scan after a calculation job flags only Gita.
	reps := []engine.Representative{
		{
			ID: "rep-gita", Name: "Gita Raman", Territory: "south", PlanID: "plan-weighted",
			Quota:       engine.Dec(200000),
			ActualSales: engine.Dec(380000),
			TargetPay:   engine.Dec(45000),
		},
		{
			ID: "rep-hugo", Name: "Hugo Lindqvist", Territory: "east", PlanID: "plan-weighted",
			Quota:       engine.Dec(200000),
			ActualSales: engine.Dec(205000),
			TargetPay:   engine.Dec(45000),
		},
	}
	for _, rep := range reps {
		if err := h.Store.SaveRep(ctx, rep); err != nil {
			return err
		}
	}

	return h.seedBaselines(ctx, map[string][2]float64{
		"south": {7200, 900},
		"east":  {6100, 800},
	})
}

// =============================================================================
// LOADER HELPERS
// =============================================================================

// createPlanWithSnapshot saves a plan and records version 1 so the demo
// data ships with version history from the start.
func (h *Handler) createPlanWithSnapshot(ctx context.Context, plan *engine.PlanConfiguration) error {
	if err := h.Store.SavePlan(ctx, plan); err != nil {
		return err
	}

	pj := h.Factory.ToJSON(plan)
	configData, err := json.Marshal(pj)
	if err != nil {
		return err
	}
	curveData, err := json.Marshal(pj.Breakpoints)
	if err != nil {
		return err
	}
	version, err := h.Versions.CreateSnapshot(ctx, engine.SnapshotInput{
		PlanID:            plan.ID,
		ConfigurationData: string(configData),
		PayCurveData:      string(curveData),
		ChangeDescription: "initial configuration",
		CreatedBy:         "scenario-loader",
		ChangeSource:      "scenario",
	})
	if err != nil {
		return err
	}

	plan.CurrentVersion = version.VersionNumber
	return h.Store.SavePlan(ctx, plan)
}

func (h *Handler) seedBaselines(ctx context.Context, cohorts map[string][2]float64) error {
	for territory, v := range cohorts {
		b := engine.CohortBaseline{
			Cohort:         territory,
			ExpectedPayout: engine.Dec(v[0]),
			StdDev:         engine.Dec(v[1]),
		}
		if err := h.Store.SaveCohortBaseline(ctx, b); err != nil {
			return err
		}
	}
	return nil
}
