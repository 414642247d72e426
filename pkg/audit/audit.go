// Package audit records every meaningful state transition as an append-only
// store row, mirrored to the structured log. Failing to write an audit row is
// logged but never fails the operation that produced it.
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/example/opsdesk/pkg/store"
)

// Action names recorded in the audit trail.
const (
	ActionAssignmentsPosted  = "assignments_posted"
	ActionTaskStarted        = "task_started"
	ActionTaskCompleted      = "task_completed"
	ActionEditRequested      = "edit_request_created"
	ActionEndEarlyRequested  = "end_early_request_created"
	ActionRequestApproved    = "request_approved"
	ActionRequestDenied      = "request_denied"
	ActionReminderSent       = "acknowledgment_reminder_sent"
	ActionAssignmentEscalate = "assignment_escalated"
	ActionBreakRequested     = "break_request_created"
	ActionBreakQueued        = "break_request_queued"
	ActionBreakUnqueued      = "break_request_unqueued"
	ActionBreakDenied        = "break_request_denied"
	ActionBreakStarted       = "break_started"
	ActionBreakResumed       = "break_auto_resumed"
	ActionBreakCancelled     = "break_cancelled"
	ActionShiftOpened        = "shift_opened"
	ActionShiftClosed        = "shift_closed"
	ActionTemplateCreated    = "task_template_created"
	ActionTemplateToggled    = "task_template_toggled"
)

// Recorder writes audit entries to the store and mirrors them to the log.
type Recorder struct {
	store  store.AuditStore
	logger *zap.Logger
}

// NewRecorder creates a Recorder.
func NewRecorder(st store.AuditStore, logger *zap.Logger) *Recorder {
	return &Recorder{store: st, logger: logger}
}

// Record appends one audit entry. actorID is empty for system actions.
func (r *Recorder) Record(ctx context.Context, action, actorID, target string, metadata map[string]any) {
	entry := &store.AuditEntry{
		At:       time.Now().UTC(),
		ActorID:  actorID,
		Action:   action,
		Target:   target,
		Metadata: metadata,
	}
	if err := r.store.AppendAudit(ctx, entry); err != nil {
		r.logger.Error("Failed to append audit entry",
			zap.String("action", action),
			zap.String("target", target),
			zap.Error(err))
		return
	}
	r.logger.Debug("Audit entry recorded",
		zap.String("action", action),
		zap.String("actor_id", actorID),
		zap.String("target", target))
}
