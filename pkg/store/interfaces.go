package store

import (
	"context"
	"time"
)

// UserStore defines user record operations.
type UserStore interface {
	GetUser(ctx context.Context, id string) (*User, error)
	UpsertUser(ctx context.Context, user *User) error
	// MarkCommsLead stamps the user's last_comms_lead_at, driving the LRU
	// rotation.
	MarkCommsLead(ctx context.Context, userID string, at time.Time) error
}

// ShiftStore defines shift window operations.
type ShiftStore interface {
	// OpenShift creates an active shift. Fails with ErrInvalidState if the
	// user already has one open.
	OpenShift(ctx context.Context, shift *Shift) error
	// CloseShift ends the user's active shift. Fails with ErrNotFound if the
	// user has none open.
	CloseShift(ctx context.Context, userID string, at time.Time) (*Shift, error)
	ActiveShift(ctx context.Context, userID string) (*Shift, error)
	// ActiveShifts returns open shifts whose 9-hour window contains now.
	ActiveShifts(ctx context.Context, now time.Time) ([]Shift, error)
}

// TemplateStore defines pooled-task template operations.
type TemplateStore interface {
	CreateTaskTemplate(ctx context.Context, tpl *TaskTemplate) error
	SetTemplateActive(ctx context.Context, name string, active bool) error
	GetTemplateByName(ctx context.Context, name string) (*TaskTemplate, error)
	ListTaskTemplates(ctx context.Context, activeOnly bool) ([]TaskTemplate, error)
}

// AssignmentStore defines assignment reads and guarded state transitions.
// Every transition method enforces its status precondition atomically and
// returns ErrInvalidState when the row is no longer in an accepted status,
// so read-check-write races resolve inside the store.
type AssignmentStore interface {
	GetAssignment(ctx context.Context, id string) (*Assignment, error)
	// CreateAssignment inserts a new assignment. Fails with
	// ErrDuplicateAssignment if one exists for (user, shift, hour).
	CreateAssignment(ctx context.Context, a *Assignment) error
	FindAssignment(ctx context.Context, userID, shiftID string, hourIndex int) (*Assignment, error)
	AssignmentsByStatus(ctx context.Context, statuses ...AssignmentStatus) ([]Assignment, error)
	// HourAssignments returns assignments for one hour index, optionally
	// filtered to the given statuses.
	HourAssignments(ctx context.Context, hourIndex int, statuses ...AssignmentStatus) ([]Assignment, error)
	// CoverageFor returns the COVERING assignment standing in for the given
	// user, if any.
	CoverageFor(ctx context.Context, coveredUserID string) (*Assignment, error)

	// StartAssignment: PENDING_ACK -> ACTIVE.
	StartAssignment(ctx context.Context, id string, startedAt, endsAt time.Time) error
	// CompleteAssignment: ACTIVE/COVERING -> COMPLETED.
	CompleteAssignment(ctx context.Context, id string, endedAt time.Time) error
	// EndAssignmentEarly: ACTIVE/COVERING -> ENDED_EARLY.
	EndAssignmentEarly(ctx context.Context, id string, endedAt time.Time) error
	// PauseAssignment: ACTIVE/COVERING -> PAUSED_BREAK or PAUSED_LUNCH.
	PauseAssignment(ctx context.Context, id string, to AssignmentStatus) error
	// ResumeAssignment: PAUSED_BREAK/PAUSED_LUNCH -> ACTIVE.
	ResumeAssignment(ctx context.Context, id string) error
	// MergeAssignmentParams merges approved edit changes into Params.
	MergeAssignmentParams(ctx context.Context, id string, changes map[string]any) error
	// MarkReminderSent stamps reminder_sent_at once; returns false if a
	// reminder was already recorded.
	MarkReminderSent(ctx context.Context, id string, at time.Time) (bool, error)
	// EscalateAssignment atomically ends the unacknowledged original and
	// converts the candidate's default-task assignment to cover it. Either
	// both writes land or neither does.
	EscalateAssignment(ctx context.Context, originalID, candidateID string, at time.Time) error
	// ConvertToCoverage turns the candidate's default-task assignment into a
	// COVERING stand-in for the original's task.
	ConvertToCoverage(ctx context.Context, candidateID string, original *Assignment) error
	// RevertCoverage returns a COVERING assignment to the default pooled
	// task and clears covering_for_user_id.
	RevertCoverage(ctx context.Context, id string) error
}

// ApprovalStore defines approval request operations.
type ApprovalStore interface {
	GetApproval(ctx context.Context, id string) (*ApprovalRequest, error)
	// CreateApproval inserts a request. Fails with ErrDuplicateRequest if a
	// PENDING or QUEUED request of the same type exists for the same
	// (user, assignment).
	CreateApproval(ctx context.Context, req *ApprovalRequest) error
	PendingApprovalFor(ctx context.Context, assignmentID string, t ApprovalType) (*ApprovalRequest, error)
	// OpenBreakRequest returns the user's PENDING or QUEUED break/lunch
	// request, if any.
	OpenBreakRequest(ctx context.Context, userID string) (*ApprovalRequest, error)
	PendingApprovals(ctx context.Context) ([]ApprovalRequest, error)
	// QueuedBreakRequests returns QUEUED_FOR_CAPACITY break/lunch requests,
	// oldest requested_at first.
	QueuedBreakRequests(ctx context.Context) ([]ApprovalRequest, error)
	// ResolveApproval moves a PENDING request to APPROVED or DENIED. Fails
	// with ErrAlreadyResolved if the request is not PENDING, so the second
	// of two racing resolvers loses cleanly.
	ResolveApproval(ctx context.Context, id string, outcome ApprovalStatus, resolverID, note string, at time.Time) error
	// PromoteQueuedApproval moves a QUEUED_FOR_CAPACITY request to PENDING.
	PromoteQueuedApproval(ctx context.Context, id string) error
	// DenyQueuedApproval system-denies a QUEUED_FOR_CAPACITY request.
	DenyQueuedApproval(ctx context.Context, id, note string, at time.Time) error
	// LastRequestAt returns when the user last filed a request of the given
	// type, for cooldown enforcement.
	LastRequestAt(ctx context.Context, userID string, t ApprovalType) (*time.Time, error)
	// LatestApprovedBreak returns the most recently approved break/lunch
	// request for an assignment; used to re-arm countdowns after a restart.
	LatestApprovedBreak(ctx context.Context, assignmentID string) (*ApprovalRequest, error)
}

// SettingsStore defines singleton settings access.
type SettingsStore interface {
	// GetSettings returns the settings record, creating defaults on first
	// access.
	GetSettings(ctx context.Context) (*Settings, error)
	UpdateSettings(ctx context.Context, s *Settings) error
}

// AuditFilter narrows audit listings.
type AuditFilter struct {
	ActorID string
	Action  string
	Limit   int
}

// AuditStore defines the append-only audit trail.
type AuditStore interface {
	AppendAudit(ctx context.Context, entry *AuditEntry) error
	ListAudit(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

// Store is the full persistence contract; *postgres.Store and
// *memstore.Store implement it.
type Store interface {
	UserStore
	ShiftStore
	TemplateStore
	AssignmentStore
	ApprovalStore
	SettingsStore
	AuditStore
}
