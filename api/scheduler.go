/*
scheduler.go - Automated anomaly scan scheduler

PURPOSE:
  Periodically finds completed calculation jobs that have not been
  scanned for anomalies yet and runs the detector over them.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Scans only jobs in completed status
  - Skips jobs already scanned (tracked in memory, backstopped by
    checking for existing anomalies in the store)
  - Saves detected anomalies for reviewer triage

CONFIGURATION:
  - CheckInterval: How often to check (default: 5 minutes)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewScanScheduler(handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: ScanJob endpoint (manual scan)
  - engine/anomaly.go: Detector
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/incentive-engine/engine"
)

// ScanScheduler runs the anomaly detector over completed jobs in the
// background.
type ScanScheduler struct {
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	ticker  *time.Ticker
	stop    chan bool
	wg      sync.WaitGroup
	mu      sync.Mutex
	scanned map[engine.JobID]bool
}

// NewScanScheduler creates a new scheduler.
func NewScanScheduler(handler *Handler) *ScanScheduler {
	return &ScanScheduler{
		Handler:       handler,
		CheckInterval: 5 * time.Minute,
		Enabled:       true,
		stop:          make(chan bool),
		scanned:       make(map[engine.JobID]bool),
	}
}

// Start begins the scheduler.
func (ss *ScanScheduler) Start() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if !ss.Enabled {
		zap.L().Info("anomaly scan scheduler disabled, not starting")
		return
	}

	ss.ticker = time.NewTicker(ss.CheckInterval)
	ss.wg.Add(1)

	go ss.run()

	zap.L().Info("anomaly scan scheduler started",
		zap.Duration("check_interval", ss.CheckInterval))
}

// Stop stops the scheduler.
func (ss *ScanScheduler) Stop() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if ss.ticker != nil {
		ss.ticker.Stop()
		close(ss.stop)
		ss.wg.Wait()
		zap.L().Info("anomaly scan scheduler stopped")
	}
}

func (ss *ScanScheduler) run() {
	defer ss.wg.Done()

	// Run immediately on start
	ss.checkAndScan()

	for {
		select {
		case <-ss.ticker.C:
			ss.checkAndScan()
		case <-ss.stop:
			return
		}
	}
}

func (ss *ScanScheduler) checkAndScan() {
	ctx := context.Background()

	jobs, err := ss.Handler.Store.ListJobs(ctx)
	if err != nil {
		zap.L().Error("scheduler failed to list jobs", zap.Error(err))
		return
	}

	scannedCount := 0
	flaggedCount := 0

	for _, job := range jobs {
		if job.Status != engine.JobCompleted {
			continue
		}
		if ss.alreadyScanned(ctx, job.ID) {
			continue
		}

		anomalies, err := ss.Handler.detectForJob(ctx, job.ID)
		if err != nil {
			zap.L().Error("scheduler anomaly scan failed",
				zap.String("job_id", string(job.ID)), zap.Error(err))
			continue
		}
		if err := ss.Handler.Store.SaveAnomalies(ctx, anomalies); err != nil {
			zap.L().Error("scheduler failed to save anomalies",
				zap.String("job_id", string(job.ID)), zap.Error(err))
			continue
		}

		ss.markScanned(job.ID)
		scannedCount++
		flaggedCount += len(anomalies)
	}

	if scannedCount > 0 {
		zap.L().Info("anomaly scan completed",
			zap.Int("jobs_scanned", scannedCount),
			zap.Int("anomalies_flagged", flaggedCount))
	}
}

// alreadyScanned reports whether a job has been scanned. The in-memory
// set covers this process; existing anomalies in the store cover jobs
// scanned before a restart.
func (ss *ScanScheduler) alreadyScanned(ctx context.Context, jobID engine.JobID) bool {
	ss.mu.Lock()
	seen := ss.scanned[jobID]
	ss.mu.Unlock()
	if seen {
		return true
	}

	existing, err := ss.Handler.Store.ListAnomalies(ctx, jobID)
	if err == nil && len(existing) > 0 {
		ss.markScanned(jobID)
		return true
	}
	return false
}

func (ss *ScanScheduler) markScanned(jobID engine.JobID) {
	ss.mu.Lock()
	ss.scanned[jobID] = true
	ss.mu.Unlock()
}

// RunNow triggers an immediate check (for testing/admin).
func (ss *ScanScheduler) RunNow() {
	ss.checkAndScan()
}
