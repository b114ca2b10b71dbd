/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/reps/*           Representative management
  /api/plans/*          Plan configuration and versioning
  /api/jobs/*           Calculation jobs, results, traces
  /api/adjustments/*    Adjustment approval workflow
  /api/anomalies/*      Anomaly review
  /api/scenarios/*      Demo scenarios

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Representative routes
		r.Route("/reps", func(r chi.Router) {
			r.Get("/", h.ListReps)
			r.Post("/", h.CreateRep)
			r.Get("/{id}", h.GetRep)
		})

		// Plan routes
		r.Route("/plans", func(r chi.Router) {
			r.Get("/", h.ListPlans)
			r.Post("/", h.CreatePlan)
			r.Get("/{id}", h.GetPlan)
			r.Post("/{id}/snapshot", h.CreateSnapshot)
			r.Get("/{id}/versions", h.ListVersions)
			r.Post("/{id}/restore", h.RestorePlan)
			r.Get("/{id}/audit", h.ListAuditEntries)
		})

		// Job routes
		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", h.ListJobs)
			r.Post("/", h.StartJob)
			r.Get("/{id}", h.GetJob)
			r.Get("/{id}/results", h.ListResults)
			r.Get("/{id}/results/{rep}/trace", h.GetTrace)
			r.Post("/{id}/anomalies/scan", h.ScanJob)
		})

		// Adjustment routes
		r.Route("/adjustments", func(r chi.Router) {
			r.Get("/", h.ListAdjustments)
			r.Post("/", h.SubmitAdjustment)
			r.Get("/{id}", h.GetAdjustment)
			r.Post("/{id}/approve", h.ApproveAdjustment)
			r.Post("/{id}/reject", h.RejectAdjustment)
			r.Post("/{id}/apply", h.ApplyAdjustment)
		})

		// Anomaly routes
		r.Route("/anomalies", func(r chi.Router) {
			r.Get("/", h.ListAnomalies)
			r.Get("/{id}", h.GetAnomaly)
			r.Post("/{id}/review", h.ReviewAnomaly)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	// Minimal landing page listing the API surface.
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Incentive Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Incentive Engine API</h1>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/reps">/api/reps</a> - List representatives</li>
<li><a href="/api/plans">/api/plans</a> - List compensation plans</li>
<li><a href="/api/jobs">/api/jobs</a> - List calculation jobs</li>
<li><a href="/api/adjustments">/api/adjustments</a> - List adjustments</li>
<li><a href="/api/anomalies">/api/anomalies</a> - List anomalies</li>
<li><a href="/api/scenarios">/api/scenarios</a> - List demo scenarios</li>
</ul>
</body>
</html>`))
	})

	return r
}
