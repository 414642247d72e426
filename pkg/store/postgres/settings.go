package postgres

import (
	"context"
	"fmt"

	"github.com/example/opsdesk/pkg/store"
)

// GetSettings retrieves the settings record, inserting defaults on first
// access
func (s *Store) GetSettings(ctx context.Context) (*store.Settings, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO settings (id) VALUES (1) ON CONFLICT (id) DO NOTHING
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to seed settings: %w", err)
	}

	var st store.Settings
	err = s.pool.QueryRow(ctx, `
		SELECT assignments_channel_id, admin_channel_id, operator_role_id, admin_role_id,
			timezone, min_on_duty, cooldown_edit_sec, cooldown_end_early_sec, updated_at
		FROM settings WHERE id = 1
	`).Scan(&st.AssignmentsChannelID, &st.AdminChannelID, &st.OperatorRoleID, &st.AdminRoleID,
		&st.Timezone, &st.MinOnDuty, &st.CooldownEditSec, &st.CooldownEndEarlySec, &st.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	return &st, nil
}

// UpdateSettings replaces the settings record
func (s *Store) UpdateSettings(ctx context.Context, st *store.Settings) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO settings (id, assignments_channel_id, admin_channel_id, operator_role_id, admin_role_id,
			timezone, min_on_duty, cooldown_edit_sec, cooldown_end_early_sec, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (id) DO UPDATE SET
			assignments_channel_id = EXCLUDED.assignments_channel_id,
			admin_channel_id = EXCLUDED.admin_channel_id,
			operator_role_id = EXCLUDED.operator_role_id,
			admin_role_id = EXCLUDED.admin_role_id,
			timezone = EXCLUDED.timezone,
			min_on_duty = EXCLUDED.min_on_duty,
			cooldown_edit_sec = EXCLUDED.cooldown_edit_sec,
			cooldown_end_early_sec = EXCLUDED.cooldown_end_early_sec,
			updated_at = NOW()
	`, st.AssignmentsChannelID, st.AdminChannelID, st.OperatorRoleID, st.AdminRoleID,
		st.Timezone, st.MinOnDuty, st.CooldownEditSec, st.CooldownEndEarlySec)
	if err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}
	return nil
}
