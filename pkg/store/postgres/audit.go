package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/example/opsdesk/pkg/store"
)

// AppendAudit inserts one audit entry
func (s *Store) AppendAudit(ctx context.Context, entry *store.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Metadata == nil {
		entry.Metadata = map[string]any{}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_log (id, at, actor_id, action, target, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.ID, entry.At.UTC(), entry.ActorID, entry.Action, entry.Target, entry.Metadata)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// ListAudit retrieves audit entries matching the filter, newest first
func (s *Store) ListAudit(ctx context.Context, filter store.AuditFilter) ([]store.AuditEntry, error) {
	query := `SELECT id, at, actor_id, action, target, metadata FROM audit_log WHERE TRUE`
	var args []any
	if filter.ActorID != "" {
		args = append(args, filter.ActorID)
		query += fmt.Sprintf(" AND actor_id = $%d", len(args))
	}
	if filter.Action != "" {
		args = append(args, filter.Action)
		query += fmt.Sprintf(" AND action = $%d", len(args))
	}
	query += " ORDER BY at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []store.AuditEntry
	for rows.Next() {
		var e store.AuditEntry
		if err := rows.Scan(&e.ID, &e.At, &e.ActorID, &e.Action, &e.Target, &e.Metadata); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}
	return entries, nil
}
