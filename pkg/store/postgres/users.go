package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/example/opsdesk/pkg/store"
)

// GetUser retrieves one user record
func (s *Store) GetUser(ctx context.Context, id string) (*store.User, error) {
	var u store.User
	err := s.pool.QueryRow(ctx, `
		SELECT id, display_name, is_operator, is_admin, last_comms_lead_at, created_at, updated_at
		FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.DisplayName, &u.IsOperator, &u.IsAdmin, &u.LastCommsLeadAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "user", id)
	}
	return &u, nil
}

// UpsertUser inserts or updates a user record
func (s *Store) UpsertUser(ctx context.Context, user *store.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, display_name, is_operator, is_admin, last_comms_lead_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			is_operator = EXCLUDED.is_operator,
			is_admin = EXCLUDED.is_admin,
			updated_at = NOW()
	`, user.ID, user.DisplayName, user.IsOperator, user.IsAdmin, user.LastCommsLeadAt)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// MarkCommsLead stamps the user's last_comms_lead_at
func (s *Store) MarkCommsLead(ctx context.Context, userID string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET last_comms_lead_at = $2, updated_at = NOW() WHERE id = $1
	`, userID, at.UTC())
	if err != nil {
		return fmt.Errorf("failed to mark comms lead: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", userID, store.ErrNotFound)
	}
	return nil
}
