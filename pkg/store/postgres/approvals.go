package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/example/opsdesk/pkg/store"
)

const approvalColumns = `id, user_id, assignment_id, request_type, requested_at, payload, status,
	resolved_at, resolver_id, resolver_note`

var breakTypes = []string{string(store.ApprovalBreak15), string(store.ApprovalLunch60)}

func scanApproval(row interface{ Scan(...any) error }, req *store.ApprovalRequest) error {
	var reqType, status string
	err := row.Scan(&req.ID, &req.UserID, &req.AssignmentID, &reqType, &req.RequestedAt,
		&req.Payload, &status, &req.ResolvedAt, &req.ResolverID, &req.ResolverNote)
	req.Type = store.ApprovalType(reqType)
	req.Status = store.ApprovalStatus(status)
	return err
}

// GetApproval retrieves one approval request
func (s *Store) GetApproval(ctx context.Context, id string) (*store.ApprovalRequest, error) {
	var req store.ApprovalRequest
	err := scanApproval(s.pool.QueryRow(ctx, `
		SELECT `+approvalColumns+` FROM approval_requests WHERE id = $1
	`, id), &req)
	if err != nil {
		return nil, notFound(err, "approval request", id)
	}
	return &req, nil
}

// CreateApproval inserts a request. The partial unique index on open
// requests rejects a duplicate of the same type for the same assignment.
func (s *Store) CreateApproval(ctx context.Context, req *store.ApprovalRequest) error {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.Status == "" {
		req.Status = store.ApprovalPending
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO approval_requests (id, user_id, assignment_id, request_type, requested_at, payload, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, req.ID, req.UserID, req.AssignmentID, string(req.Type), req.RequestedAt.UTC(), req.Payload, string(req.Status))
	if err != nil {
		if isUniqueViolation(err, "uq_open_request") {
			return fmt.Errorf("open %s request already exists for assignment %s: %w",
				req.Type, req.AssignmentID, store.ErrDuplicateRequest)
		}
		return fmt.Errorf("failed to create approval request: %w", err)
	}
	return nil
}

// PendingApprovalFor retrieves the PENDING request of the given type for an
// assignment, if any
func (s *Store) PendingApprovalFor(ctx context.Context, assignmentID string, t store.ApprovalType) (*store.ApprovalRequest, error) {
	var req store.ApprovalRequest
	err := scanApproval(s.pool.QueryRow(ctx, `
		SELECT `+approvalColumns+` FROM approval_requests
		WHERE assignment_id = $1 AND request_type = $2 AND status = $3
	`, assignmentID, string(t), string(store.ApprovalPending)), &req)
	if err != nil {
		return nil, notFound(err, "pending approval for assignment", assignmentID)
	}
	return &req, nil
}

// OpenBreakRequest retrieves the user's PENDING or QUEUED break or lunch
// request, if any
func (s *Store) OpenBreakRequest(ctx context.Context, userID string) (*store.ApprovalRequest, error) {
	var req store.ApprovalRequest
	err := scanApproval(s.pool.QueryRow(ctx, `
		SELECT `+approvalColumns+` FROM approval_requests
		WHERE user_id = $1 AND request_type = ANY($2) AND status = ANY($3)
		ORDER BY requested_at DESC LIMIT 1
	`, userID, breakTypes,
		[]string{string(store.ApprovalPending), string(store.ApprovalQueued)}), &req)
	if err != nil {
		return nil, notFound(err, "open break request for user", userID)
	}
	return &req, nil
}

func (s *Store) queryApprovals(ctx context.Context, query string, args ...any) ([]store.ApprovalRequest, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query approval requests: %w", err)
	}
	defer rows.Close()

	var requests []store.ApprovalRequest
	for rows.Next() {
		var req store.ApprovalRequest
		if err := scanApproval(rows, &req); err != nil {
			return nil, fmt.Errorf("failed to scan approval request: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating approval requests: %w", err)
	}
	return requests, nil
}

// PendingApprovals retrieves all PENDING requests, oldest first
func (s *Store) PendingApprovals(ctx context.Context) ([]store.ApprovalRequest, error) {
	return s.queryApprovals(ctx, `
		SELECT `+approvalColumns+` FROM approval_requests
		WHERE status = $1 ORDER BY requested_at
	`, string(store.ApprovalPending))
}

// QueuedBreakRequests retrieves QUEUED_FOR_CAPACITY break requests, oldest
// first
func (s *Store) QueuedBreakRequests(ctx context.Context) ([]store.ApprovalRequest, error) {
	return s.queryApprovals(ctx, `
		SELECT `+approvalColumns+` FROM approval_requests
		WHERE status = $1 AND request_type = ANY($2) ORDER BY requested_at
	`, string(store.ApprovalQueued), breakTypes)
}

// ResolveApproval moves a PENDING request to APPROVED or DENIED. The status
// guard makes the second of two racing resolvers lose cleanly.
func (s *Store) ResolveApproval(ctx context.Context, id string, outcome store.ApprovalStatus, resolverID, note string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE approval_requests
		SET status = $2, resolver_id = $3, resolver_note = $4, resolved_at = $5
		WHERE id = $1 AND status = $6
	`, id, string(outcome), resolverID, note, at.UTC(), string(store.ApprovalPending))
	if err != nil {
		return fmt.Errorf("failed to resolve approval request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.approvalGuardErr(ctx, id)
	}
	return nil
}

// PromoteQueuedApproval moves a QUEUED_FOR_CAPACITY request to PENDING
func (s *Store) PromoteQueuedApproval(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE approval_requests SET status = $2 WHERE id = $1 AND status = $3
	`, id, string(store.ApprovalPending), string(store.ApprovalQueued))
	if err != nil {
		return fmt.Errorf("failed to promote queued request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.approvalGuardErr(ctx, id)
	}
	return nil
}

// DenyQueuedApproval system-denies a QUEUED_FOR_CAPACITY request
func (s *Store) DenyQueuedApproval(ctx context.Context, id, note string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE approval_requests
		SET status = $2, resolver_note = $3, resolved_at = $4
		WHERE id = $1 AND status = $5
	`, id, string(store.ApprovalDenied), note, at.UTC(), string(store.ApprovalQueued))
	if err != nil {
		return fmt.Errorf("failed to deny queued request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.approvalGuardErr(ctx, id)
	}
	return nil
}

func (s *Store) approvalGuardErr(ctx context.Context, id string) error {
	var status string
	err := s.pool.QueryRow(ctx, `SELECT status FROM approval_requests WHERE id = $1`, id).Scan(&status)
	if err != nil {
		return notFound(err, "approval request", id)
	}
	return fmt.Errorf("approval request %s is %s: %w", id, status, store.ErrAlreadyResolved)
}

// LastRequestAt retrieves when the user last filed a request of the given
// type
func (s *Store) LastRequestAt(ctx context.Context, userID string, t store.ApprovalType) (*time.Time, error) {
	var at time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT requested_at FROM approval_requests
		WHERE user_id = $1 AND request_type = $2
		ORDER BY requested_at DESC LIMIT 1
	`, userID, string(t)).Scan(&at)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last request time: %w", err)
	}
	return &at, nil
}

// LatestApprovedBreak retrieves the most recently approved break or lunch
// request for an assignment
func (s *Store) LatestApprovedBreak(ctx context.Context, assignmentID string) (*store.ApprovalRequest, error) {
	var req store.ApprovalRequest
	err := scanApproval(s.pool.QueryRow(ctx, `
		SELECT `+approvalColumns+` FROM approval_requests
		WHERE assignment_id = $1 AND request_type = ANY($2) AND status = $3
		ORDER BY resolved_at DESC LIMIT 1
	`, assignmentID, breakTypes, string(store.ApprovalApproved)), &req)
	if err != nil {
		return nil, notFound(err, "approved break for assignment", assignmentID)
	}
	return &req, nil
}
