package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/opsdesk/pkg/store"
)

const templateColumns = `id, name, priority, window_start, window_end, instructions, params_schema, is_active, created_at, updated_at`

func scanTemplate(row interface{ Scan(...any) error }, tpl *store.TaskTemplate) error {
	return row.Scan(&tpl.ID, &tpl.Name, &tpl.Priority, &tpl.WindowStart, &tpl.WindowEnd,
		&tpl.Instructions, &tpl.ParamsSchema, &tpl.IsActive, &tpl.CreatedAt, &tpl.UpdatedAt)
}

// CreateTaskTemplate inserts a new pooled-task template
func (s *Store) CreateTaskTemplate(ctx context.Context, tpl *store.TaskTemplate) error {
	if tpl.ID == "" {
		tpl.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	tpl.CreatedAt = now
	tpl.UpdatedAt = now
	if tpl.ParamsSchema == nil {
		tpl.ParamsSchema = map[string]any{}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO task_templates (id, name, priority, window_start, window_end, instructions, params_schema, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, tpl.ID, tpl.Name, tpl.Priority, tpl.WindowStart, tpl.WindowEnd,
		tpl.Instructions, tpl.ParamsSchema, tpl.IsActive, tpl.CreatedAt, tpl.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create task template: %w", err)
	}
	return nil
}

// SetTemplateActive toggles a template in or out of the pool
func (s *Store) SetTemplateActive(ctx context.Context, name string, active bool) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE task_templates SET is_active = $2, updated_at = NOW() WHERE name = $1
	`, name, active)
	if err != nil {
		return fmt.Errorf("failed to toggle task template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("task template %s: %w", name, store.ErrNotFound)
	}
	return nil
}

// GetTemplateByName retrieves one template by its unique name
func (s *Store) GetTemplateByName(ctx context.Context, name string) (*store.TaskTemplate, error) {
	var tpl store.TaskTemplate
	err := scanTemplate(s.pool.QueryRow(ctx, `
		SELECT `+templateColumns+` FROM task_templates WHERE name = $1
	`, name), &tpl)
	if err != nil {
		return nil, notFound(err, "task template", name)
	}
	return &tpl, nil
}

// ListTaskTemplates retrieves templates, optionally only active ones
func (s *Store) ListTaskTemplates(ctx context.Context, activeOnly bool) ([]store.TaskTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM task_templates`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY priority, created_at`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query task templates: %w", err)
	}
	defer rows.Close()

	var templates []store.TaskTemplate
	for rows.Next() {
		var tpl store.TaskTemplate
		if err := scanTemplate(rows, &tpl); err != nil {
			return nil, fmt.Errorf("failed to scan task template: %w", err)
		}
		templates = append(templates, tpl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task templates: %w", err)
	}
	return templates, nil
}
