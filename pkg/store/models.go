package store

import "time"

// AssignmentStatus tracks an assignment through its lifecycle.
// All transitions are guarded; see the conditional update methods on Store.
type AssignmentStatus string

const (
	StatusPendingAck  AssignmentStatus = "pending_ack"
	StatusActive      AssignmentStatus = "active"
	StatusCompleted   AssignmentStatus = "completed"
	StatusEndedEarly  AssignmentStatus = "ended_early"
	StatusCovering    AssignmentStatus = "covering"
	StatusPausedBreak AssignmentStatus = "paused_break"
	StatusPausedLunch AssignmentStatus = "paused_lunch"
)

// WorkingStatuses are the statuses that count toward the staffing floor.
var WorkingStatuses = []AssignmentStatus{StatusActive, StatusCovering}

// ApprovalType identifies what an operator is asking an admin to approve.
type ApprovalType string

const (
	ApprovalEdit     ApprovalType = "edit"
	ApprovalEndEarly ApprovalType = "end_early"
	ApprovalBreak15  ApprovalType = "break15"
	ApprovalLunch60  ApprovalType = "lunch60"
)

// ApprovalStatus tracks an approval request through resolution.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalDenied   ApprovalStatus = "denied"
	ApprovalQueued   ApprovalStatus = "queued_for_capacity"
)

const (
	// DefaultTaskName is the pooled fallback task every non-lead operator
	// performs; it is also the pool that coverage candidates are drawn from.
	DefaultTaskName = "Data Labelling"

	// CommsLeadTaskName is the always-covered task rotated via LRU.
	CommsLeadTaskName = "Comms Lead"

	// ShiftHours is the length of an on-duty window.
	ShiftHours = 9
)

// User is an operator or admin known to the system.
type User struct {
	ID              string
	DisplayName     string
	IsOperator      bool
	IsAdmin         bool
	LastCommsLeadAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Shift is a contiguous 9-hour on-duty window. EndAt == nil means the
// operator is still clocked in. All times are UTC.
type Shift struct {
	ID        string
	UserID    string
	StartAt   time.Time
	EndAt     *time.Time
	TZBase    string
	CreatedAt time.Time
}

// TaskTemplate is a reusable pooled-task definition. Lower Priority is more
// urgent. WindowStart/WindowEnd bound a UTC validity window; either may be
// nil for unbounded.
type TaskTemplate struct {
	ID           string
	Name         string
	Priority     int
	WindowStart  *time.Time
	WindowEnd    *time.Time
	Instructions string
	ParamsSchema map[string]any
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Assignment is one user's task for one hour of one shift. At most one
// assignment exists per (UserID, ShiftID, HourIndex).
type Assignment struct {
	ID                string
	UserID            string
	ShiftID           string
	TemplateID        *string
	TaskName          string
	Params            map[string]any
	Status            AssignmentStatus
	HourIndex         int
	StartedAt         *time.Time
	EndsAt            *time.Time
	EndedAt           *time.Time
	CoveringForUserID *string
	Forced            bool
	ReminderSentAt    *time.Time
	EscalatedAt       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsWorking reports whether the assignment counts toward the staffing floor.
func (a *Assignment) IsWorking() bool {
	return a.Status == StatusActive || a.Status == StatusCovering
}

// IsPaused reports whether the assignment is on a break or lunch.
func (a *Assignment) IsPaused() bool {
	return a.Status == StatusPausedBreak || a.Status == StatusPausedLunch
}

// EditPayload carries a proposed parameter change awaiting approval.
type EditPayload struct {
	ProposedChanges map[string]any `json:"proposed_changes"`
	Reason          string         `json:"reason"`
}

// EndEarlyPayload carries the operator's reason for ending a task early.
type EndEarlyPayload struct {
	Reason string `json:"reason"`
}

// BreakPayload carries a break or lunch request.
type BreakPayload struct {
	Reason          string `json:"reason"`
	DurationMinutes int    `json:"duration_minutes"`
}

// ApprovalPayload is a tagged union; exactly one variant is set, matching the
// request's Type.
type ApprovalPayload struct {
	Edit     *EditPayload     `json:"edit,omitempty"`
	EndEarly *EndEarlyPayload `json:"end_early,omitempty"`
	Break    *BreakPayload    `json:"break,omitempty"`
}

// ApprovalRequest is a pending human decision tied to one assignment. At most
// one PENDING or QUEUED request of a given type exists per (user, assignment).
type ApprovalRequest struct {
	ID           string
	UserID       string
	AssignmentID string
	Type         ApprovalType
	RequestedAt  time.Time
	Payload      ApprovalPayload
	Status       ApprovalStatus
	ResolvedAt   *time.Time
	ResolverID   *string
	ResolverNote string
}

// IsBreakType reports whether the request is a break or lunch request.
func (r *ApprovalRequest) IsBreakType() bool {
	return r.Type == ApprovalBreak15 || r.Type == ApprovalLunch60
}

// Settings is the singleton operational configuration record.
type Settings struct {
	AssignmentsChannelID string
	AdminChannelID       string
	OperatorRoleID       string
	AdminRoleID          string
	Timezone             string
	MinOnDuty            int
	CooldownEditSec      int
	CooldownEndEarlySec  int
	UpdatedAt            time.Time
}

// AuditEntry is one append-only row per meaningful transition. ActorID is
// empty for system-initiated actions.
type AuditEntry struct {
	ID       string
	At       time.Time
	ActorID  string
	Action   string
	Target   string
	Metadata map[string]any
}
