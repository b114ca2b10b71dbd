/*
version.go - Plan version history and configuration audit log

PURPOSE:
  Append-only history of plan configuration snapshots plus field-level
  change records. History is never rewritten:

  - CreateSnapshot appends version N+1 and advances the plan's current
    version pointer. No overwrite, ever.
  - Restore copies an old snapshot's data into a NEW version rather than
    rewinding the pointer, so the version sequence stays monotonic.
  - Every field-level configuration change writes one AuditEntry with the
    old and new value and where the change came from. Entries are never
    edited or deleted.

CONCURRENCY:
  Version numbers must not collide, so snapshot creation is serialized
  per plan (single writer per plan, enforced with a per-plan mutex here
  and a transactional increment in the SQL store).

SEE ALSO:
  - store.go: VersionStore and AuditLog interfaces
  - factory/: Produces the configuration JSON snapshotted here
*/
package engine

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// PLAN VERSION - Immutable configuration snapshot
// =============================================================================

// PlanVersion is an immutable snapshot of a plan's configuration and pay
// curve at a point in time.
type PlanVersion struct {
	ID            string
	PlanID        PlanID
	VersionNumber int

	ConfigurationData string // plan configuration JSON
	PayCurveData      string // breakpoint list JSON
	SimulationResults string // optional, empty when no simulation was run

	ChangeDescription string
	CreatedBy         string
	CreatedAt         time.Time
	IsSnapshot        bool
}

// =============================================================================
// AUDIT LOG ENTRY - One record per observed configuration mutation
// =============================================================================

type AuditCategory string

const (
	AuditCategoryCurve     AuditCategory = "pay_curve"
	AuditCategoryModifier  AuditCategory = "plan_modifier"
	AuditCategoryLifecycle AuditCategory = "plan_lifecycle"
)

// AuditEntry records one field-level change to plan configuration.
// Append-only; never edited or deleted.
type AuditEntry struct {
	ID        string
	PlanID    PlanID
	VersionID string // set when the change produced a version
	UserID    string

	Action       string
	Category     AuditCategory
	FieldChanged string
	OldValue     string
	NewValue     string

	// ChangeSource identifies the origin: "form", "api", "assistant",
	// "restore", ...
	ChangeSource string

	Timestamp time.Time
}

// =============================================================================
// VERSION SERVICE
// =============================================================================

// VersionService orchestrates snapshot creation, restore, and audit
// recording. One instance per process; it owns the per-plan write locks.
type VersionService struct {
	Versions VersionStore
	Audit    AuditLog

	mu    sync.Mutex
	plans map[PlanID]*sync.Mutex
}

func NewVersionService(versions VersionStore, audit AuditLog) *VersionService {
	return &VersionService{
		Versions: versions,
		Audit:    audit,
		plans:    make(map[PlanID]*sync.Mutex),
	}
}

// planLock returns the single-writer lock for a plan.
func (s *VersionService) planLock(planID PlanID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.plans[planID]
	if !ok {
		l = &sync.Mutex{}
		s.plans[planID] = l
	}
	return l
}

// SnapshotInput carries everything needed to append a version.
type SnapshotInput struct {
	PlanID            PlanID
	ConfigurationData string
	PayCurveData      string
	SimulationResults string
	ChangeDescription string
	CreatedBy         string
	ChangeSource      string
}

// CreateSnapshot appends a new version with the next version number and
// advances the plan's current version. History is never overwritten.
func (s *VersionService) CreateSnapshot(ctx context.Context, in SnapshotInput) (*PlanVersion, error) {
	lock := s.planLock(in.PlanID)
	lock.Lock()
	defer lock.Unlock()

	current, err := s.Versions.CurrentVersionNumber(ctx, in.PlanID)
	if err != nil {
		return nil, err
	}

	v := &PlanVersion{
		ID:                uuid.NewString(),
		PlanID:            in.PlanID,
		VersionNumber:     current + 1,
		ConfigurationData: in.ConfigurationData,
		PayCurveData:      in.PayCurveData,
		SimulationResults: in.SimulationResults,
		ChangeDescription: in.ChangeDescription,
		CreatedBy:         in.CreatedBy,
		CreatedAt:         time.Now().UTC(),
		IsSnapshot:        true,
	}

	if err := s.Versions.AppendVersion(ctx, v); err != nil {
		return nil, err
	}

	if s.Audit != nil {
		entry := AuditEntry{
			ID:           uuid.NewString(),
			PlanID:       in.PlanID,
			VersionID:    v.ID,
			UserID:       in.CreatedBy,
			Action:       "snapshot_created",
			Category:     AuditCategoryLifecycle,
			NewValue:     in.ChangeDescription,
			ChangeSource: in.ChangeSource,
			Timestamp:    v.CreatedAt,
		}
		if err := s.Audit.AppendEntry(ctx, entry); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Restore copies the targeted version's configuration into a NEW version.
// The current version pointer only ever moves forward.
func (s *VersionService) Restore(ctx context.Context, versionID, actor string) (*PlanVersion, error) {
	target, err := s.Versions.GetVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, ErrVersionNotFound
	}

	return s.CreateSnapshot(ctx, SnapshotInput{
		PlanID:            target.PlanID,
		ConfigurationData: target.ConfigurationData,
		PayCurveData:      target.PayCurveData,
		ChangeDescription: "restored from version " + strconv.Itoa(target.VersionNumber),
		CreatedBy:         actor,
		ChangeSource:      "restore",
	})
}

// ChangeInput describes one field-level mutation to record.
type ChangeInput struct {
	PlanID       PlanID
	VersionID    string
	UserID       string
	Action       string
	Category     AuditCategory
	FieldChanged string
	OldValue     string
	NewValue     string
	ChangeSource string
}

// RecordChange appends one audit entry for a field-level configuration
// change. Called for every observed mutation regardless of origin.
func (s *VersionService) RecordChange(ctx context.Context, in ChangeInput) error {
	return s.Audit.AppendEntry(ctx, AuditEntry{
		ID:           uuid.NewString(),
		PlanID:       in.PlanID,
		VersionID:    in.VersionID,
		UserID:       in.UserID,
		Action:       in.Action,
		Category:     in.Category,
		FieldChanged: in.FieldChanged,
		OldValue:     in.OldValue,
		NewValue:     in.NewValue,
		ChangeSource: in.ChangeSource,
		Timestamp:    time.Now().UTC(),
	})
}

// History returns all versions for a plan, oldest first.
func (s *VersionService) History(ctx context.Context, planID PlanID) ([]PlanVersion, error) {
	return s.Versions.VersionsByPlan(ctx, planID)
}
