package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/opsdesk/pkg/store"
)

// OpenShift creates an active shift. The partial unique index on open shifts
// rejects a second clock-in.
func (s *Store) OpenShift(ctx context.Context, shift *store.Shift) error {
	if shift.ID == "" {
		shift.ID = uuid.New().String()
	}
	shift.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO shifts (id, user_id, start_at, tz_base, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, shift.ID, shift.UserID, shift.StartAt.UTC(), shift.TZBase, shift.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "uq_shifts_open") {
			return fmt.Errorf("user %s already has an open shift: %w", shift.UserID, store.ErrInvalidState)
		}
		return fmt.Errorf("failed to open shift: %w", err)
	}
	return nil
}

// CloseShift ends the user's open shift
func (s *Store) CloseShift(ctx context.Context, userID string, at time.Time) (*store.Shift, error) {
	var sh store.Shift
	err := s.pool.QueryRow(ctx, `
		UPDATE shifts SET end_at = $2
		WHERE user_id = $1 AND end_at IS NULL
		RETURNING id, user_id, start_at, end_at, tz_base, created_at
	`, userID, at.UTC()).Scan(&sh.ID, &sh.UserID, &sh.StartAt, &sh.EndAt, &sh.TZBase, &sh.CreatedAt)
	if err != nil {
		return nil, notFound(err, "open shift for user", userID)
	}
	return &sh, nil
}

// ActiveShift retrieves the user's open shift
func (s *Store) ActiveShift(ctx context.Context, userID string) (*store.Shift, error) {
	var sh store.Shift
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, start_at, end_at, tz_base, created_at
		FROM shifts WHERE user_id = $1 AND end_at IS NULL
	`, userID).Scan(&sh.ID, &sh.UserID, &sh.StartAt, &sh.EndAt, &sh.TZBase, &sh.CreatedAt)
	if err != nil {
		return nil, notFound(err, "open shift for user", userID)
	}
	return &sh, nil
}

// ActiveShifts returns open shifts whose on-duty window contains now
func (s *Store) ActiveShifts(ctx context.Context, now time.Time) ([]store.Shift, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, start_at, end_at, tz_base, created_at
		FROM shifts
		WHERE end_at IS NULL AND start_at <= $1 AND start_at > $2
		ORDER BY start_at
	`, now.UTC(), now.UTC().Add(-store.ShiftHours*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("failed to query active shifts: %w", err)
	}
	defer rows.Close()

	var shifts []store.Shift
	for rows.Next() {
		var sh store.Shift
		if err := rows.Scan(&sh.ID, &sh.UserID, &sh.StartAt, &sh.EndAt, &sh.TZBase, &sh.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan shift: %w", err)
		}
		shifts = append(shifts, sh)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shifts: %w", err)
	}
	return shifts, nil
}
