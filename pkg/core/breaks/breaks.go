// Package breaks arbitrates break and lunch requests against the staffing
// floor: requests that would drop coverage below min_on_duty are queued
// rather than denied, approved breaks pause the assignment and arrange
// coverage, and countdown timers resume everything automatically.
package breaks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/opsdesk/pkg/audit"
	"github.com/example/opsdesk/pkg/core/selection"
	"github.com/example/opsdesk/pkg/notify"
	"github.com/example/opsdesk/pkg/store"
)

// Lunch is only requestable in the middle stretch of the shift.
const (
	lunchEarliestHour = 3
	lunchLatestHour   = 5
)

// Store defines the persistence operations break arbitration needs.
type Store interface {
	store.AssignmentStore
	store.ApprovalStore
	store.UserStore
	store.SettingsStore
}

// Manager owns break arbitration and the in-flight countdown timers. Timers
// are a transient cache only: every resume re-checks assignment state
// through guarded store transitions, and RearmCountdowns rebuilds the timer
// set from store rows after a restart.
type Manager struct {
	store    Store
	audit    *audit.Recorder
	notifier notify.Notifier
	logger   *zap.Logger
	now      func() time.Time

	// minuteUnit converts payload minutes to wall time; tests shrink it.
	minuteUnit time.Duration

	mu     sync.Mutex
	timers map[string]*breakTimer
}

type breakTimer struct {
	cancel context.CancelFunc
	userID string
	endsAt time.Time
}

// NewManager creates a Manager.
func NewManager(st Store, recorder *audit.Recorder, notifier notify.Notifier, logger *zap.Logger) *Manager {
	return &Manager{
		store:      st,
		audit:      recorder,
		notifier:   notifier,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
		minuteUnit: time.Minute,
		timers:     make(map[string]*breakTimer),
	}
}

// WithClock overrides the manager's clock; tests use this to pin time.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Request files a break (15m) or lunch (60m) request. If granting it now
// would violate the staffing floor the request is queued for capacity, not
// denied.
func (m *Manager) Request(ctx context.Context, assignmentID, userID string, breakType store.ApprovalType, reason string, durationMinutes int) (*store.ApprovalRequest, error) {
	if breakType != store.ApprovalBreak15 && breakType != store.ApprovalLunch60 {
		return nil, fmt.Errorf("request type %s is not a break type: %w", breakType, store.ErrInvalidState)
	}

	a, err := m.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if a.UserID != userID {
		return nil, fmt.Errorf("assignment %s belongs to another operator: %w", assignmentID, store.ErrNotOwner)
	}
	if !a.IsWorking() {
		return nil, fmt.Errorf("task is %s, breaks need an active task: %w", a.Status, store.ErrInvalidState)
	}
	if breakType == store.ApprovalLunch60 && (a.HourIndex < lunchEarliestHour || a.HourIndex > lunchLatestHour) {
		return nil, fmt.Errorf("lunch is only available during hours %d-%d of the shift: %w",
			lunchEarliestHour, lunchLatestHour, store.ErrInvalidState)
	}

	existing, err := m.store.OpenBreakRequest(ctx, userID)
	switch {
	case err == nil:
		return nil, fmt.Errorf("a %s request is already %s: %w", existing.Type, existing.Status, store.ErrDuplicateRequest)
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("failed to check open break requests: %w", err)
	}

	settings, err := m.store.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	hourAssignments, err := m.store.HourAssignments(ctx, a.HourIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to load hour assignments: %w", err)
	}

	req := &store.ApprovalRequest{
		UserID:       userID,
		AssignmentID: assignmentID,
		Type:         breakType,
		RequestedAt:  m.now(),
		Payload: store.ApprovalPayload{
			Break: &store.BreakPayload{Reason: reason, DurationMinutes: durationMinutes},
		},
	}

	if !selection.CheckMinimumStaffing(hourAssignments, userID, settings.MinOnDuty) {
		req.Status = store.ApprovalQueued
		if err := m.store.CreateApproval(ctx, req); err != nil {
			return nil, err
		}
		m.audit.Record(ctx, audit.ActionBreakQueued, userID, assignmentID, map[string]any{
			"break_type":   string(breakType),
			"reason":       reason,
			"queue_reason": "minimum_staffing",
		})
		m.notifier.NotifyOperator(ctx, userID,
			"Break request queued: approving it now would drop staffing below the minimum. You'll be notified when capacity allows.")
		return req, nil
	}

	if err := m.store.CreateApproval(ctx, req); err != nil {
		return nil, err
	}
	m.audit.Record(ctx, audit.ActionBreakRequested, userID, assignmentID, map[string]any{
		"break_type":       string(breakType),
		"reason":           reason,
		"duration_minutes": durationMinutes,
	})
	m.surfaceForApproval(ctx, a, req)
	return req, nil
}

// ResolveBreak actions a PENDING break request. On approval the assignment
// pauses, coverage is arranged if the task needs it, and an auto-resume is
// scheduled. A request that is no longer PENDING fails with
// ErrAlreadyResolved.
func (m *Manager) ResolveBreak(ctx context.Context, requestID string, approved bool, resolverID, note string) error {
	req, err := m.store.GetApproval(ctx, requestID)
	if err != nil {
		return err
	}
	if !req.IsBreakType() {
		return fmt.Errorf("request %s is a %s request: %w", requestID, req.Type, store.ErrInvalidState)
	}

	outcome := store.ApprovalDenied
	if approved {
		outcome = store.ApprovalApproved
	}
	if err := m.store.ResolveApproval(ctx, requestID, outcome, resolverID, note, m.now()); err != nil {
		return err
	}

	if !approved {
		m.audit.Record(ctx, audit.ActionBreakDenied, resolverID, req.AssignmentID, map[string]any{
			"request_id": req.ID,
			"break_type": string(req.Type),
			"note":       note,
		})
		m.notifier.NotifyOperator(ctx, req.UserID,
			fmt.Sprintf("Your %s request was denied: %s", req.Type, note))
		return nil
	}

	if err := m.startBreak(ctx, req); err != nil {
		m.notifier.NotifyAdmins(ctx, fmt.Sprintf(
			"Break request %s was approved but could not start: %v", req.ID, err))
		return fmt.Errorf("request approved but break could not start: %w", err)
	}
	return nil
}

// startBreak pauses the assignment, arranges coverage, and arms the
// countdown.
func (m *Manager) startBreak(ctx context.Context, req *store.ApprovalRequest) error {
	a, err := m.store.GetAssignment(ctx, req.AssignmentID)
	if err != nil {
		return err
	}

	duration := 15
	if req.Payload.Break != nil {
		duration = req.Payload.Break.DurationMinutes
	}
	// Duration is authoritative for the paused state, not the request type.
	paused := store.StatusPausedBreak
	if duration >= 60 {
		paused = store.StatusPausedLunch
	}
	if err := m.store.PauseAssignment(ctx, a.ID, paused); err != nil {
		return err
	}

	var coverageID string
	if a.TaskName != store.DefaultTaskName {
		coverageID = m.setupCoverage(ctx, a)
	}

	endsAt := m.now().Add(time.Duration(duration) * m.minuteUnit)
	m.scheduleResume(a.ID, a.UserID, time.Duration(duration)*m.minuteUnit)

	m.audit.Record(ctx, audit.ActionBreakStarted, a.UserID, a.ID, map[string]any{
		"duration_minutes":       duration,
		"paused_status":          string(paused),
		"coverage_assignment_id": coverageID,
		"break_end_time":         endsAt.Format(time.RFC3339),
	})
	m.notifier.NotifyOperator(ctx, a.UserID,
		fmt.Sprintf("Break approved for %d minutes. Your task resumes automatically.", duration))
	return nil
}

// setupCoverage converts a default-task operator in the same hour into a
// COVERING stand-in. No candidate is non-fatal: admins are alerted and the
// break proceeds uncovered.
func (m *Manager) setupCoverage(ctx context.Context, a *store.Assignment) string {
	hourAssignments, err := m.store.HourAssignments(ctx, a.HourIndex)
	if err != nil {
		m.logger.Error("Failed to load coverage candidates", zap.Error(err))
		return ""
	}
	candidates := selection.CoverageCandidates(hourAssignments, a.UserID)
	if len(candidates) == 0 {
		m.logger.Warn("No coverage candidates for break",
			zap.String("assignment_id", a.ID),
			zap.String("task", a.TaskName))
		m.notifier.NotifyAdmins(ctx, fmt.Sprintf(
			"No coverage available for %s while %s is on break", a.TaskName, a.UserID))
		return ""
	}

	candidate := candidates[0]
	if err := m.store.ConvertToCoverage(ctx, candidate.ID, a); err != nil {
		m.logger.Error("Failed to set up break coverage",
			zap.String("candidate_id", candidate.ID),
			zap.Error(err))
		return ""
	}
	m.notifier.NotifyOperator(ctx, candidate.UserID,
		fmt.Sprintf("You are now covering %s while %s is on break", a.TaskName, a.UserID))
	m.logger.Info("Break coverage arranged",
		zap.String("covering_user", candidate.UserID),
		zap.String("covered_user", a.UserID),
		zap.String("task", a.TaskName))
	return candidate.ID
}

// scheduleResume arms a cancellable countdown that resumes the assignment
// when it fires.
func (m *Manager) scheduleResume(assignmentID, userID string, d time.Duration) {
	timerCtx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	if old, ok := m.timers[assignmentID]; ok {
		old.cancel()
	}
	m.timers[assignmentID] = &breakTimer{cancel: cancel, userID: userID, endsAt: m.now().Add(d)}
	m.mu.Unlock()

	go func() {
		defer cancel()
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timerCtx.Done():
			return
		case <-timer.C:
		}
		m.clearTimer(assignmentID)
		m.resume(context.Background(), assignmentID, audit.ActionBreakResumed, userID)
	}()
}

func (m *Manager) clearTimer(assignmentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.timers[assignmentID]; ok {
		t.cancel()
		delete(m.timers, assignmentID)
	}
}

// resume returns a paused assignment to ACTIVE and reverts any coverage.
// An assignment that already left the paused state makes this a no-op; the
// guarded transitions ensure a cancelled-then-fired timer cannot
// double-resume.
func (m *Manager) resume(ctx context.Context, assignmentID, action, actorID string) {
	if err := m.store.ResumeAssignment(ctx, assignmentID); err != nil {
		m.logger.Debug("Resume skipped, assignment no longer paused",
			zap.String("assignment_id", assignmentID),
			zap.Error(err))
		return
	}

	a, err := m.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		m.logger.Error("Failed to reload resumed assignment", zap.Error(err))
		return
	}

	coverageReverted := false
	if coverage, err := m.store.CoverageFor(ctx, a.UserID); err == nil {
		if err := m.store.RevertCoverage(ctx, coverage.ID); err != nil {
			m.logger.Warn("Failed to revert coverage",
				zap.String("coverage_id", coverage.ID),
				zap.Error(err))
		} else {
			coverageReverted = true
			m.notifier.NotifyOperator(ctx, coverage.UserID,
				fmt.Sprintf("Coverage finished, you are back on %s", store.DefaultTaskName))
		}
	}

	m.audit.Record(ctx, action, actorID, assignmentID, map[string]any{
		"coverage_returned": coverageReverted,
	})
	m.notifier.NotifyOperator(ctx, a.UserID, "Break over, your task is active again")
	m.logger.Info("Assignment resumed from break",
		zap.String("assignment_id", assignmentID),
		zap.Bool("coverage_returned", coverageReverted))
}

// Cancel lets an operator return from their own break early. The countdown
// is disarmed and the assignment resumes immediately; the expired timer
// firing later is harmless because resume re-checks state.
func (m *Manager) Cancel(ctx context.Context, assignmentID, userID string) error {
	a, err := m.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return err
	}
	if a.UserID != userID {
		return fmt.Errorf("assignment %s belongs to another operator: %w", assignmentID, store.ErrNotOwner)
	}
	if !a.IsPaused() {
		return fmt.Errorf("assignment %s is %s, no break to cancel: %w", assignmentID, a.Status, store.ErrInvalidState)
	}

	m.clearTimer(assignmentID)
	m.resume(ctx, assignmentID, audit.ActionBreakCancelled, userID)
	return nil
}

// CheckQueued re-evaluates QUEUED_FOR_CAPACITY requests oldest-first.
// Requests whose assignment left its working state are system-denied; the
// first request the staffing floor can now absorb is promoted to PENDING and
// surfaced to admins. At most one promotion per pass so admins are not
// flooded.
func (m *Manager) CheckQueued(ctx context.Context) error {
	queued, err := m.store.QueuedBreakRequests(ctx)
	if err != nil {
		return fmt.Errorf("failed to list queued break requests: %w", err)
	}
	if len(queued) == 0 {
		return nil
	}

	settings, err := m.store.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	for _, req := range queued {
		a, err := m.store.GetAssignment(ctx, req.AssignmentID)
		if err != nil || !a.IsWorking() {
			if err := m.store.DenyQueuedApproval(ctx, req.ID, "Assignment no longer active", m.now()); err != nil {
				m.logger.Warn("Failed to deny stale queued break request",
					zap.String("request_id", req.ID), zap.Error(err))
			}
			continue
		}

		hourAssignments, err := m.store.HourAssignments(ctx, a.HourIndex)
		if err != nil {
			return fmt.Errorf("failed to load hour assignments: %w", err)
		}
		if !selection.CheckMinimumStaffing(hourAssignments, req.UserID, settings.MinOnDuty) {
			continue
		}

		if err := m.store.PromoteQueuedApproval(ctx, req.ID); err != nil {
			m.logger.Warn("Failed to promote queued break request",
				zap.String("request_id", req.ID), zap.Error(err))
			continue
		}
		m.audit.Record(ctx, audit.ActionBreakUnqueued, "", req.AssignmentID, map[string]any{
			"request_id": req.ID,
			"user_id":    req.UserID,
			"break_type": string(req.Type),
		})
		m.notifier.NotifyOperator(ctx, req.UserID,
			"Capacity opened up, your break request is now awaiting admin approval")
		m.surfaceForApproval(ctx, a, &req)
		// One promotion per pass.
		break
	}
	return nil
}

// RearmCountdowns rebuilds break timers from store state after a restart.
// Breaks whose window already elapsed resume immediately.
func (m *Manager) RearmCountdowns(ctx context.Context) error {
	paused, err := m.store.AssignmentsByStatus(ctx, store.StatusPausedBreak, store.StatusPausedLunch)
	if err != nil {
		return fmt.Errorf("failed to list paused assignments: %w", err)
	}

	for _, a := range paused {
		req, err := m.store.LatestApprovedBreak(ctx, a.ID)
		if err != nil || req.ResolvedAt == nil || req.Payload.Break == nil {
			m.logger.Warn("Paused assignment has no approved break on record, resuming",
				zap.String("assignment_id", a.ID))
			m.resume(ctx, a.ID, audit.ActionBreakResumed, a.UserID)
			continue
		}
		endsAt := req.ResolvedAt.Add(time.Duration(req.Payload.Break.DurationMinutes) * m.minuteUnit)
		remaining := endsAt.Sub(m.now())
		if remaining <= 0 {
			m.resume(ctx, a.ID, audit.ActionBreakResumed, a.UserID)
			continue
		}
		m.logger.Info("Re-armed break countdown",
			zap.String("assignment_id", a.ID),
			zap.Duration("remaining", remaining))
		m.scheduleResume(a.ID, a.UserID, remaining)
	}
	return nil
}

// ActiveBreak reports the countdown deadline for an assignment, if one is
// armed in this process.
func (m *Manager) ActiveBreak(assignmentID string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.timers[assignmentID]
	if !ok {
		return time.Time{}, false
	}
	return t.endsAt, true
}

// Shutdown disarms all countdown timers.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.timers {
		t.cancel()
		delete(m.timers, id)
	}
}

func (m *Manager) surfaceForApproval(ctx context.Context, a *store.Assignment, req *store.ApprovalRequest) {
	operatorName := req.UserID
	if user, err := m.store.GetUser(ctx, req.UserID); err == nil {
		operatorName = user.DisplayName
	}
	reason := ""
	detail := ""
	if req.Payload.Break != nil {
		reason = req.Payload.Break.Reason
		detail = fmt.Sprintf("%d minute break", req.Payload.Break.DurationMinutes)
	}
	m.notifier.RequestApproval(ctx, notify.ApprovalSummary{
		RequestID:    req.ID,
		RequestType:  string(req.Type),
		OperatorName: operatorName,
		TaskName:     a.TaskName,
		HourIndex:    a.HourIndex,
		Reason:       reason,
		Detail:       detail,
	})
}
