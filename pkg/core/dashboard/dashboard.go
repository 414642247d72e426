// Package dashboard builds the read-only staffing snapshot shown in the
// status view and logged by the periodic refresh. It never mutates state.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/example/opsdesk/pkg/core/selection"
	"github.com/example/opsdesk/pkg/store"
)

// Store defines the reads the reporter needs.
type Store interface {
	store.AssignmentStore
	store.ApprovalStore
	store.UserStore
	store.ShiftStore
	store.TemplateStore
	store.SettingsStore
}

// BreakLine is one on-break operator in the snapshot.
type BreakLine struct {
	UserID       string
	DisplayName  string
	TaskName     string
	Status       store.AssignmentStatus
	ResumesAt    *time.Time
	CoveredBy    string
}

// AssignmentLine is one working or pending assignment in the snapshot.
type AssignmentLine struct {
	AssignmentID string
	UserID       string
	DisplayName  string
	TaskName     string
	HourIndex    int
	Status       store.AssignmentStatus
	CoveringFor  string
}

// Snapshot is the point-in-time staffing picture.
type Snapshot struct {
	TakenAt       time.Time
	OnShiftCount  int
	WorkingCount  int
	StatusCounts  map[store.AssignmentStatus]int
	Assignments   []AssignmentLine
	OnBreak       []BreakLine
	PendingCount  int
	QueuedBreaks  int
	MinOnDuty     int
	StaffingOK    bool
	NextPoolTask  string
}

// Reporter assembles snapshots.
type Reporter struct {
	store Store
	now   func() time.Time
	// resumeAt looks up the expected auto-resume time for a paused
	// assignment; the breaks manager provides it.
	resumeAt func(assignmentID string) (time.Time, bool)
}

// NewReporter creates a Reporter. resumeAt may be nil when no break manager
// is running.
func NewReporter(st Store, resumeAt func(assignmentID string) (time.Time, bool)) *Reporter {
	if resumeAt == nil {
		resumeAt = func(string) (time.Time, bool) { return time.Time{}, false }
	}
	return &Reporter{
		store:    st,
		now:      func() time.Time { return time.Now().UTC() },
		resumeAt: resumeAt,
	}
}

// WithClock overrides the reporter's clock; tests use this to pin time.
func (r *Reporter) WithClock(now func() time.Time) *Reporter {
	r.now = now
	return r
}

// Snapshot builds the current staffing picture: assignment counts by status,
// the on-break roster with coverage, and the working headcount against the
// staffing floor.
func (r *Reporter) Snapshot(ctx context.Context) (*Snapshot, error) {
	now := r.now()

	settings, err := r.store.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	shifts, err := r.store.ActiveShifts(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch active shifts: %w", err)
	}
	assignments, err := r.store.AssignmentsByStatus(ctx,
		store.StatusPendingAck, store.StatusActive, store.StatusCovering,
		store.StatusPausedBreak, store.StatusPausedLunch)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch assignments: %w", err)
	}
	pending, err := r.store.PendingApprovals(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending approvals: %w", err)
	}
	queued, err := r.store.QueuedBreakRequests(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch queued break requests: %w", err)
	}

	snap := &Snapshot{
		TakenAt:      now,
		OnShiftCount: len(shifts),
		StatusCounts: make(map[store.AssignmentStatus]int),
		PendingCount: len(pending),
		QueuedBreaks: len(queued),
		MinOnDuty:    settings.MinOnDuty,
	}

	coveredBy := make(map[string]string)
	for i := range assignments {
		a := &assignments[i]
		if a.Status == store.StatusCovering && a.CoveringForUserID != nil {
			coveredBy[*a.CoveringForUserID] = a.UserID
		}
	}

	for i := range assignments {
		a := &assignments[i]
		snap.StatusCounts[a.Status]++
		if a.IsWorking() {
			snap.WorkingCount++
		}

		name := a.UserID
		if user, err := r.store.GetUser(ctx, a.UserID); err == nil {
			name = user.DisplayName
		}

		if a.IsPaused() {
			line := BreakLine{
				UserID:      a.UserID,
				DisplayName: name,
				TaskName:    a.TaskName,
				Status:      a.Status,
				CoveredBy:   coveredBy[a.UserID],
			}
			if at, ok := r.resumeAt(a.ID); ok {
				line.ResumesAt = &at
			}
			snap.OnBreak = append(snap.OnBreak, line)
			continue
		}

		line := AssignmentLine{
			AssignmentID: a.ID,
			UserID:       a.UserID,
			DisplayName:  name,
			TaskName:     a.TaskName,
			HourIndex:    a.HourIndex,
			Status:       a.Status,
		}
		if a.CoveringForUserID != nil {
			line.CoveringFor = *a.CoveringForUserID
		}
		snap.Assignments = append(snap.Assignments, line)
	}

	snap.StaffingOK = snap.WorkingCount >= settings.MinOnDuty

	if templates, err := r.store.ListTaskTemplates(ctx, true); err == nil {
		if choice := selection.SelectTaskFromPool(templates, now); choice != nil {
			snap.NextPoolTask = choice.Template.Name
		}
	}

	return snap, nil
}
