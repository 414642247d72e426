// Package lifecycle owns the assignment state machine: acknowledgment,
// completion, and the EDIT / END_EARLY approval workflow. Escalation and
// break transitions build on the same guarded store operations from the
// scheduler and breaks packages.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/opsdesk/pkg/audit"
	"github.com/example/opsdesk/pkg/notify"
	"github.com/example/opsdesk/pkg/store"
)

// Store defines the persistence operations the engine needs.
type Store interface {
	store.AssignmentStore
	store.ApprovalStore
	store.UserStore
	store.SettingsStore
}

// Engine executes assignment state transitions.
type Engine struct {
	store    Store
	audit    *audit.Recorder
	notifier notify.Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewEngine creates an Engine.
func NewEngine(st Store, recorder *audit.Recorder, notifier notify.Notifier, logger *zap.Logger) *Engine {
	return &Engine{
		store:    st,
		audit:    recorder,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the engine's clock; tests use this to pin time.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// owned fetches the assignment and verifies the acting user owns it.
func (e *Engine) owned(ctx context.Context, assignmentID, userID string) (*store.Assignment, error) {
	a, err := e.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if a.UserID != userID {
		return nil, fmt.Errorf("assignment %s belongs to another operator: %w", assignmentID, store.ErrNotOwner)
	}
	return a, nil
}

// Start acknowledges a PENDING_ACK assignment and moves it to ACTIVE,
// stamping started_at. If ends_at was never set it defaults to the next hour
// boundary.
func (e *Engine) Start(ctx context.Context, assignmentID, userID string) (*store.Assignment, error) {
	a, err := e.owned(ctx, assignmentID, userID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	endsAt := now.Truncate(time.Hour).Add(time.Hour)
	if err := e.store.StartAssignment(ctx, a.ID, now, endsAt); err != nil {
		return nil, err
	}

	e.audit.Record(ctx, audit.ActionTaskStarted, userID, a.ID, map[string]any{
		"task_name":  a.TaskName,
		"hour_index": a.HourIndex,
		"started_at": now.Format(time.RFC3339),
	})
	e.logger.Info("Task started",
		zap.String("assignment_id", a.ID),
		zap.String("user_id", userID),
		zap.String("task", a.TaskName))

	return e.store.GetAssignment(ctx, a.ID)
}

// Complete finishes an ACTIVE or COVERING assignment, stamping ended_at.
func (e *Engine) Complete(ctx context.Context, assignmentID, userID string) (*store.Assignment, error) {
	a, err := e.owned(ctx, assignmentID, userID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	if err := e.store.CompleteAssignment(ctx, a.ID, now); err != nil {
		return nil, err
	}

	meta := map[string]any{
		"task_name":    a.TaskName,
		"hour_index":   a.HourIndex,
		"completed_at": now.Format(time.RFC3339),
	}
	if a.StartedAt != nil {
		meta["duration_minutes"] = int(now.Sub(*a.StartedAt).Minutes())
	}
	e.audit.Record(ctx, audit.ActionTaskCompleted, userID, a.ID, meta)
	e.logger.Info("Task completed",
		zap.String("assignment_id", a.ID),
		zap.String("user_id", userID))

	return e.store.GetAssignment(ctx, a.ID)
}

// RequestEdit files an EDIT approval request proposing parameter changes.
// The assignment must be ACTIVE or COVERING, no pending EDIT request may
// exist for it, and the user's edit cooldown must have elapsed.
func (e *Engine) RequestEdit(ctx context.Context, assignmentID, userID string, proposedChanges map[string]any, reason string) (*store.ApprovalRequest, error) {
	a, err := e.owned(ctx, assignmentID, userID)
	if err != nil {
		return nil, err
	}
	if !a.IsWorking() {
		return nil, fmt.Errorf("task is %s, edits need an active task: %w", a.Status, store.ErrInvalidState)
	}

	settings, err := e.store.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if err := e.checkCooldown(ctx, userID, store.ApprovalEdit, settings.CooldownEditSec); err != nil {
		return nil, err
	}

	req := &store.ApprovalRequest{
		UserID:       userID,
		AssignmentID: a.ID,
		Type:         store.ApprovalEdit,
		RequestedAt:  e.now(),
		Payload: store.ApprovalPayload{
			Edit: &store.EditPayload{ProposedChanges: proposedChanges, Reason: reason},
		},
	}
	if err := e.store.CreateApproval(ctx, req); err != nil {
		return nil, err
	}

	e.audit.Record(ctx, audit.ActionEditRequested, userID, a.ID, map[string]any{
		"request_id":       req.ID,
		"reason":           reason,
		"proposed_changes": proposedChanges,
	})
	e.requestApproval(ctx, a, req, reason, "Parameter edit")
	return req, nil
}

// RequestEndEarly files an END_EARLY approval request.
func (e *Engine) RequestEndEarly(ctx context.Context, assignmentID, userID, reason string) (*store.ApprovalRequest, error) {
	a, err := e.owned(ctx, assignmentID, userID)
	if err != nil {
		return nil, err
	}
	if !a.IsWorking() {
		return nil, fmt.Errorf("task is %s, only active tasks can end early: %w", a.Status, store.ErrInvalidState)
	}

	settings, err := e.store.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if err := e.checkCooldown(ctx, userID, store.ApprovalEndEarly, settings.CooldownEndEarlySec); err != nil {
		return nil, err
	}

	req := &store.ApprovalRequest{
		UserID:       userID,
		AssignmentID: a.ID,
		Type:         store.ApprovalEndEarly,
		RequestedAt:  e.now(),
		Payload: store.ApprovalPayload{
			EndEarly: &store.EndEarlyPayload{Reason: reason},
		},
	}
	if err := e.store.CreateApproval(ctx, req); err != nil {
		return nil, err
	}

	e.audit.Record(ctx, audit.ActionEndEarlyRequested, userID, a.ID, map[string]any{
		"request_id": req.ID,
		"reason":     reason,
	})
	e.requestApproval(ctx, a, req, reason, "End task early")
	return req, nil
}

// checkCooldown rejects a new request filed before cooldownSec elapsed since
// the user's previous request of the same type.
func (e *Engine) checkCooldown(ctx context.Context, userID string, t store.ApprovalType, cooldownSec int) error {
	if cooldownSec <= 0 {
		return nil
	}
	last, err := e.store.LastRequestAt(ctx, userID, t)
	if err != nil {
		return fmt.Errorf("failed to check request cooldown: %w", err)
	}
	if last == nil {
		return nil
	}
	elapsed := e.now().Sub(*last)
	cooldown := time.Duration(cooldownSec) * time.Second
	if elapsed < cooldown {
		wait := (cooldown - elapsed).Round(time.Second)
		return fmt.Errorf("a %s request was filed %s ago, wait %s before trying again",
			t, elapsed.Round(time.Second), wait)
	}
	return nil
}

// Resolve actions a PENDING EDIT or END_EARLY request. Exactly one of two
// racing resolvers wins; the loser gets ErrAlreadyResolved. Break requests
// resolve through the breaks package instead.
func (e *Engine) Resolve(ctx context.Context, requestID string, approved bool, resolverID, note string) (*store.ApprovalRequest, error) {
	req, err := e.store.GetApproval(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.IsBreakType() {
		return nil, fmt.Errorf("request %s is a %s request, resolve it through break arbitration: %w",
			requestID, req.Type, store.ErrInvalidState)
	}

	outcome := store.ApprovalDenied
	if approved {
		outcome = store.ApprovalApproved
	}
	now := e.now()
	// Claiming the request is the race arbiter: the status flip from PENDING
	// happens before any side effect is applied.
	if err := e.store.ResolveApproval(ctx, requestID, outcome, resolverID, note, now); err != nil {
		return nil, err
	}

	if !approved {
		e.audit.Record(ctx, audit.ActionRequestDenied, resolverID, req.AssignmentID, map[string]any{
			"request_id":   req.ID,
			"request_type": string(req.Type),
			"note":         note,
		})
		e.notifier.NotifyOperator(ctx, req.UserID,
			fmt.Sprintf("Your %s request was denied: %s", req.Type, note))
		return e.store.GetApproval(ctx, requestID)
	}

	switch req.Type {
	case store.ApprovalEdit:
		changes := map[string]any{}
		if req.Payload.Edit != nil {
			changes = req.Payload.Edit.ProposedChanges
		}
		if err := e.store.MergeAssignmentParams(ctx, req.AssignmentID, changes); err != nil {
			return nil, fmt.Errorf("request approved but applying edit failed: %w", err)
		}
	case store.ApprovalEndEarly:
		if err := e.store.EndAssignmentEarly(ctx, req.AssignmentID, now); err != nil {
			// The assignment left its working state while the request sat in
			// the queue; the approval stands resolved but had no effect.
			e.notifier.NotifyAdmins(ctx, fmt.Sprintf(
				"End-early request %s approved but assignment %s was no longer active", req.ID, req.AssignmentID))
			return nil, fmt.Errorf("request approved but assignment could not be ended: %w", err)
		}
	}

	e.audit.Record(ctx, audit.ActionRequestApproved, resolverID, req.AssignmentID, map[string]any{
		"request_id":   req.ID,
		"request_type": string(req.Type),
		"note":         note,
	})
	e.notifier.NotifyOperator(ctx, req.UserID,
		fmt.Sprintf("Your %s request was approved", req.Type))
	e.logger.Info("Approval request resolved",
		zap.String("request_id", req.ID),
		zap.String("type", string(req.Type)),
		zap.Bool("approved", approved),
		zap.String("resolver_id", resolverID))

	return e.store.GetApproval(ctx, requestID)
}

// requestApproval surfaces a freshly created request to admins, best-effort.
func (e *Engine) requestApproval(ctx context.Context, a *store.Assignment, req *store.ApprovalRequest, reason, detail string) {
	operatorName := req.UserID
	if user, err := e.store.GetUser(ctx, req.UserID); err == nil {
		operatorName = user.DisplayName
	}
	e.notifier.RequestApproval(ctx, notify.ApprovalSummary{
		RequestID:    req.ID,
		RequestType:  string(req.Type),
		OperatorName: operatorName,
		TaskName:     a.TaskName,
		HourIndex:    a.HourIndex,
		Reason:       reason,
		Detail:       detail,
	})
}
