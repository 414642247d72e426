package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/opsdesk/pkg/store"
)

const assignmentColumns = `id, user_id, shift_id, template_id, task_name, params, status, hour_index,
	started_at, ends_at, ended_at, covering_for_user_id, forced, reminder_sent_at, escalated_at,
	created_at, updated_at`

func scanAssignment(row interface{ Scan(...any) error }, a *store.Assignment) error {
	var status string
	err := row.Scan(&a.ID, &a.UserID, &a.ShiftID, &a.TemplateID, &a.TaskName, &a.Params, &status,
		&a.HourIndex, &a.StartedAt, &a.EndsAt, &a.EndedAt, &a.CoveringForUserID, &a.Forced,
		&a.ReminderSentAt, &a.EscalatedAt, &a.CreatedAt, &a.UpdatedAt)
	a.Status = store.AssignmentStatus(status)
	return err
}

// GetAssignment retrieves one assignment
func (s *Store) GetAssignment(ctx context.Context, id string) (*store.Assignment, error) {
	var a store.Assignment
	err := scanAssignment(s.pool.QueryRow(ctx, `
		SELECT `+assignmentColumns+` FROM assignments WHERE id = $1
	`, id), &a)
	if err != nil {
		return nil, notFound(err, "assignment", id)
	}
	return &a, nil
}

// CreateAssignment inserts a new assignment. The (user, shift, hour)
// uniqueness constraint absorbs duplicate generation passes.
func (s *Store) CreateAssignment(ctx context.Context, a *store.Assignment) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	if a.Params == nil {
		a.Params = map[string]any{}
	}
	if a.Status == "" {
		a.Status = store.StatusPendingAck
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO assignments (id, user_id, shift_id, template_id, task_name, params, status, hour_index,
			started_at, ends_at, ended_at, covering_for_user_id, forced, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, a.ID, a.UserID, a.ShiftID, a.TemplateID, a.TaskName, a.Params, string(a.Status), a.HourIndex,
		a.StartedAt, a.EndsAt, a.EndedAt, a.CoveringForUserID, a.Forced, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "uq_user_shift_hour") {
			return fmt.Errorf("assignment for user %s hour %d: %w", a.UserID, a.HourIndex, store.ErrDuplicateAssignment)
		}
		return fmt.Errorf("failed to create assignment: %w", err)
	}
	return nil
}

// FindAssignment retrieves the assignment for (user, shift, hour), if any
func (s *Store) FindAssignment(ctx context.Context, userID, shiftID string, hourIndex int) (*store.Assignment, error) {
	var a store.Assignment
	err := scanAssignment(s.pool.QueryRow(ctx, `
		SELECT `+assignmentColumns+` FROM assignments
		WHERE user_id = $1 AND shift_id = $2 AND hour_index = $3
	`, userID, shiftID, hourIndex), &a)
	if err != nil {
		return nil, notFound(err, "assignment for user", userID)
	}
	return &a, nil
}

func (s *Store) queryAssignments(ctx context.Context, query string, args ...any) ([]store.Assignment, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	var assignments []store.Assignment
	for rows.Next() {
		var a store.Assignment
		if err := scanAssignment(rows, &a); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assignments: %w", err)
	}
	return assignments, nil
}

// AssignmentsByStatus retrieves assignments in any of the given statuses
func (s *Store) AssignmentsByStatus(ctx context.Context, statuses ...store.AssignmentStatus) ([]store.Assignment, error) {
	return s.queryAssignments(ctx, `
		SELECT `+assignmentColumns+` FROM assignments
		WHERE status = ANY($1) ORDER BY created_at
	`, statusStrings(statuses))
}

// HourAssignments retrieves assignments for one hour index
func (s *Store) HourAssignments(ctx context.Context, hourIndex int, statuses ...store.AssignmentStatus) ([]store.Assignment, error) {
	if len(statuses) == 0 {
		return s.queryAssignments(ctx, `
			SELECT `+assignmentColumns+` FROM assignments
			WHERE hour_index = $1 ORDER BY created_at
		`, hourIndex)
	}
	return s.queryAssignments(ctx, `
		SELECT `+assignmentColumns+` FROM assignments
		WHERE hour_index = $1 AND status = ANY($2) ORDER BY created_at
	`, hourIndex, statusStrings(statuses))
}

// CoverageFor retrieves the COVERING assignment standing in for the user
func (s *Store) CoverageFor(ctx context.Context, coveredUserID string) (*store.Assignment, error) {
	var a store.Assignment
	err := scanAssignment(s.pool.QueryRow(ctx, `
		SELECT `+assignmentColumns+` FROM assignments
		WHERE covering_for_user_id = $1 AND status = $2
	`, coveredUserID, string(store.StatusCovering)), &a)
	if err != nil {
		return nil, notFound(err, "coverage for user", coveredUserID)
	}
	return &a, nil
}

// guardErr distinguishes a missing row from a failed status precondition
// after a conditional update touched nothing.
func (s *Store) guardErr(ctx context.Context, id string) error {
	var status string
	err := s.pool.QueryRow(ctx, `SELECT status FROM assignments WHERE id = $1`, id).Scan(&status)
	if err != nil {
		return notFound(err, "assignment", id)
	}
	return fmt.Errorf("assignment %s is %s: %w", id, status, store.ErrInvalidState)
}

// guarded runs a conditional assignment update and maps a zero-row result to
// ErrNotFound or ErrInvalidState.
func (s *Store) guarded(ctx context.Context, id, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update assignment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.guardErr(ctx, id)
	}
	return nil
}

// StartAssignment moves PENDING_ACK to ACTIVE. An ends_at stamped at
// generation time is preserved; the default only fills the gap.
func (s *Store) StartAssignment(ctx context.Context, id string, startedAt, endsAt time.Time) error {
	return s.guarded(ctx, id, `
		UPDATE assignments SET status = $2, started_at = $3, ends_at = COALESCE(ends_at, $4), updated_at = NOW()
		WHERE id = $1 AND status = $5
	`, id, string(store.StatusActive), startedAt.UTC(), endsAt.UTC(), string(store.StatusPendingAck))
}

// CompleteAssignment moves ACTIVE or COVERING to COMPLETED
func (s *Store) CompleteAssignment(ctx context.Context, id string, endedAt time.Time) error {
	return s.guarded(ctx, id, `
		UPDATE assignments SET status = $2, ended_at = $3, updated_at = NOW()
		WHERE id = $1 AND status = ANY($4)
	`, id, string(store.StatusCompleted), endedAt.UTC(), statusStrings(store.WorkingStatuses))
}

// EndAssignmentEarly moves ACTIVE or COVERING to ENDED_EARLY
func (s *Store) EndAssignmentEarly(ctx context.Context, id string, endedAt time.Time) error {
	return s.guarded(ctx, id, `
		UPDATE assignments SET status = $2, ended_at = $3, updated_at = NOW()
		WHERE id = $1 AND status = ANY($4)
	`, id, string(store.StatusEndedEarly), endedAt.UTC(), statusStrings(store.WorkingStatuses))
}

// PauseAssignment moves ACTIVE or COVERING to a paused status
func (s *Store) PauseAssignment(ctx context.Context, id string, to store.AssignmentStatus) error {
	return s.guarded(ctx, id, `
		UPDATE assignments SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = ANY($3)
	`, id, string(to), statusStrings(store.WorkingStatuses))
}

// ResumeAssignment moves a paused assignment back to ACTIVE
func (s *Store) ResumeAssignment(ctx context.Context, id string) error {
	return s.guarded(ctx, id, `
		UPDATE assignments SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = ANY($3)
	`, id, string(store.StatusActive),
		[]string{string(store.StatusPausedBreak), string(store.StatusPausedLunch)})
}

// MergeAssignmentParams merges approved edit changes into params
func (s *Store) MergeAssignmentParams(ctx context.Context, id string, changes map[string]any) error {
	return s.guarded(ctx, id, `
		UPDATE assignments SET params = params || $2::jsonb, updated_at = NOW()
		WHERE id = $1 AND status = ANY($3)
	`, id, changes, statusStrings(store.WorkingStatuses))
}

// MarkReminderSent stamps reminder_sent_at once
func (s *Store) MarkReminderSent(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE assignments SET reminder_sent_at = $2, updated_at = NOW()
		WHERE id = $1 AND reminder_sent_at IS NULL
	`, id, at.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to mark reminder sent: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// EscalateAssignment ends the unacknowledged original and converts the
// candidate's default-task assignment into coverage, in one transaction.
func (s *Store) EscalateAssignment(ctx context.Context, originalID, candidateID string, at time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin escalation transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var original store.Assignment
	err = scanAssignment(tx.QueryRow(ctx, `
		SELECT `+assignmentColumns+` FROM assignments WHERE id = $1 FOR UPDATE
	`, originalID), &original)
	if err != nil {
		return notFound(err, "assignment", originalID)
	}
	if original.Status != store.StatusPendingAck {
		return fmt.Errorf("assignment %s is %s: %w", originalID, original.Status, store.ErrInvalidState)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE assignments
		SET task_name = $2, template_id = $3, params = $4, status = $5,
			covering_for_user_id = $6, updated_at = NOW()
		WHERE id = $1 AND status = $7 AND task_name = $8
	`, candidateID, original.TaskName, original.TemplateID, original.Params,
		string(store.StatusCovering), original.UserID,
		string(store.StatusActive), store.DefaultTaskName)
	if err != nil {
		return fmt.Errorf("failed to convert candidate assignment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("candidate assignment %s is no longer on the default task: %w", candidateID, store.ErrInvalidState)
	}

	_, err = tx.Exec(ctx, `
		UPDATE assignments SET status = $2, ended_at = $3, escalated_at = $3, updated_at = NOW()
		WHERE id = $1
	`, originalID, string(store.StatusEndedEarly), at.UTC())
	if err != nil {
		return fmt.Errorf("failed to end unacknowledged assignment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit escalation: %w", err)
	}
	return nil
}

// ConvertToCoverage turns the candidate's default-task assignment into a
// COVERING stand-in for the original's task
func (s *Store) ConvertToCoverage(ctx context.Context, candidateID string, original *store.Assignment) error {
	return s.guarded(ctx, candidateID, `
		UPDATE assignments
		SET task_name = $2, template_id = $3, params = $4, status = $5,
			covering_for_user_id = $6, updated_at = NOW()
		WHERE id = $1 AND status = $7 AND task_name = $8
	`, candidateID, original.TaskName, original.TemplateID, original.Params,
		string(store.StatusCovering), original.UserID,
		string(store.StatusActive), store.DefaultTaskName)
}

// RevertCoverage returns a COVERING assignment to the default pooled task
func (s *Store) RevertCoverage(ctx context.Context, id string) error {
	return s.guarded(ctx, id, `
		UPDATE assignments
		SET task_name = $2, template_id = NULL, params = '{}'::jsonb, status = $3,
			covering_for_user_id = NULL, updated_at = NOW()
		WHERE id = $1 AND status = $4
	`, id, store.DefaultTaskName, string(store.StatusActive), string(store.StatusCovering))
}

func statusStrings(statuses []store.AssignmentStatus) []string {
	out := make([]string, len(statuses))
	for i, st := range statuses {
		out[i] = string(st)
	}
	return out
}
