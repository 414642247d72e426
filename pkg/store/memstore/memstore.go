// Package memstore provides a mutex-guarded in-memory implementation of the
// store interfaces. It backs tests and local development; the postgres
// package is the production implementation.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/opsdesk/pkg/store"
)

// Store holds all records in memory behind one mutex, which makes every
// method an atomic unit the same way a database transaction would be.
type Store struct {
	mu          sync.Mutex
	users       map[string]*store.User
	shifts      map[string]*store.Shift
	templates   map[string]*store.TaskTemplate
	assignments map[string]*store.Assignment
	approvals   map[string]*store.ApprovalRequest
	settings    *store.Settings
	audit       []store.AuditEntry
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		users:       make(map[string]*store.User),
		shifts:      make(map[string]*store.Shift),
		templates:   make(map[string]*store.TaskTemplate),
		assignments: make(map[string]*store.Assignment),
		approvals:   make(map[string]*store.ApprovalRequest),
	}
}

var _ store.Store = (*Store)(nil)

// --- users ---

func (s *Store) GetUser(ctx context.Context, id string) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, store.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (s *Store) UpsertUser(ctx context.Context, user *store.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if existing, ok := s.users[user.ID]; ok {
		existing.DisplayName = user.DisplayName
		existing.IsOperator = user.IsOperator
		existing.IsAdmin = user.IsAdmin
		existing.UpdatedAt = now
		return nil
	}
	cp := *user
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	s.users[user.ID] = &cp
	return nil
}

func (s *Store) MarkCommsLead(ctx context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, store.ErrNotFound)
	}
	t := at
	u.LastCommsLeadAt = &t
	u.UpdatedAt = time.Now().UTC()
	return nil
}

// --- shifts ---

func (s *Store) OpenShift(ctx context.Context, shift *store.Shift) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.shifts {
		if existing.UserID == shift.UserID && existing.EndAt == nil {
			return fmt.Errorf("user %s already has an open shift: %w", shift.UserID, store.ErrInvalidState)
		}
	}
	cp := *shift
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.shifts[cp.ID] = &cp
	shift.ID = cp.ID
	return nil
}

func (s *Store) CloseShift(ctx context.Context, userID string, at time.Time) (*store.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, shift := range s.shifts {
		if shift.UserID == userID && shift.EndAt == nil {
			t := at
			shift.EndAt = &t
			cp := *shift
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("no open shift for user %s: %w", userID, store.ErrNotFound)
}

func (s *Store) ActiveShift(ctx context.Context, userID string) (*store.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, shift := range s.shifts {
		if shift.UserID == userID && shift.EndAt == nil {
			cp := *shift
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("no open shift for user %s: %w", userID, store.ErrNotFound)
}

func (s *Store) ActiveShifts(ctx context.Context, now time.Time) ([]store.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.Shift
	cutoff := now.Add(-store.ShiftHours * time.Hour)
	for _, shift := range s.shifts {
		// The 9-hour window is half-open: a shift exactly 9h old has ended.
		if shift.EndAt == nil && !shift.StartAt.After(now) && shift.StartAt.After(cutoff) {
			out = append(out, *shift)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

// --- templates ---

func (s *Store) CreateTaskTemplate(ctx context.Context, tpl *store.TaskTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.templates {
		if existing.Name == tpl.Name {
			return fmt.Errorf("task template %q already exists", tpl.Name)
		}
	}
	cp := *tpl
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	s.templates[cp.ID] = &cp
	tpl.ID = cp.ID
	return nil
}

func (s *Store) SetTemplateActive(ctx context.Context, name string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tpl := range s.templates {
		if tpl.Name == name {
			tpl.IsActive = active
			tpl.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return fmt.Errorf("task template %q: %w", name, store.ErrNotFound)
}

func (s *Store) GetTemplateByName(ctx context.Context, name string) (*store.TaskTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tpl := range s.templates {
		if tpl.Name == name {
			cp := *tpl
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("task template %q: %w", name, store.ErrNotFound)
}

func (s *Store) ListTaskTemplates(ctx context.Context, activeOnly bool) ([]store.TaskTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.TaskTemplate
	for _, tpl := range s.templates {
		if activeOnly && !tpl.IsActive {
			continue
		}
		out = append(out, *tpl)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// --- assignments ---

func (s *Store) GetAssignment(ctx context.Context, id string) (*store.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[id]
	if !ok {
		return nil, fmt.Errorf("assignment %s: %w", id, store.ErrNotFound)
	}
	cp := copyAssignment(a)
	return &cp, nil
}

func (s *Store) CreateAssignment(ctx context.Context, a *store.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.assignments {
		if existing.UserID == a.UserID && existing.ShiftID == a.ShiftID && existing.HourIndex == a.HourIndex {
			return fmt.Errorf("assignment for user %s hour %d: %w", a.UserID, a.HourIndex, store.ErrDuplicateAssignment)
		}
	}
	cp := copyAssignment(a)
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	if cp.Status == "" {
		cp.Status = store.StatusPendingAck
	}
	s.assignments[cp.ID] = &cp
	a.ID = cp.ID
	a.CreatedAt = cp.CreatedAt
	return nil
}

func (s *Store) FindAssignment(ctx context.Context, userID, shiftID string, hourIndex int) (*store.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.assignments {
		if a.UserID == userID && a.ShiftID == shiftID && a.HourIndex == hourIndex {
			cp := copyAssignment(a)
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("assignment for user %s hour %d: %w", userID, hourIndex, store.ErrNotFound)
}

func (s *Store) AssignmentsByStatus(ctx context.Context, statuses ...store.AssignmentStatus) ([]store.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.Assignment
	for _, a := range s.assignments {
		if matchesStatus(a.Status, statuses) {
			out = append(out, copyAssignment(a))
		}
	}
	sortAssignments(out)
	return out, nil
}

func (s *Store) HourAssignments(ctx context.Context, hourIndex int, statuses ...store.AssignmentStatus) ([]store.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.Assignment
	for _, a := range s.assignments {
		if a.HourIndex == hourIndex && matchesStatus(a.Status, statuses) {
			out = append(out, copyAssignment(a))
		}
	}
	sortAssignments(out)
	return out, nil
}

func (s *Store) CoverageFor(ctx context.Context, coveredUserID string) (*store.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.assignments {
		if a.Status == store.StatusCovering && a.CoveringForUserID != nil && *a.CoveringForUserID == coveredUserID {
			cp := copyAssignment(a)
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("no coverage for user %s: %w", coveredUserID, store.ErrNotFound)
}

func (s *Store) StartAssignment(ctx context.Context, id string, startedAt, endsAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.requireStatus(id, store.StatusPendingAck)
	if err != nil {
		return err
	}
	a.Status = store.StatusActive
	st := startedAt
	a.StartedAt = &st
	if a.EndsAt == nil {
		e := endsAt
		a.EndsAt = &e
	}
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) CompleteAssignment(ctx context.Context, id string, endedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.requireStatus(id, store.StatusActive, store.StatusCovering)
	if err != nil {
		return err
	}
	a.Status = store.StatusCompleted
	e := endedAt
	a.EndedAt = &e
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) EndAssignmentEarly(ctx context.Context, id string, endedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.requireStatus(id, store.StatusActive, store.StatusCovering)
	if err != nil {
		return err
	}
	a.Status = store.StatusEndedEarly
	e := endedAt
	a.EndedAt = &e
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) PauseAssignment(ctx context.Context, id string, to store.AssignmentStatus) error {
	if to != store.StatusPausedBreak && to != store.StatusPausedLunch {
		return fmt.Errorf("pause target %s: %w", to, store.ErrInvalidState)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.requireStatus(id, store.StatusActive, store.StatusCovering)
	if err != nil {
		return err
	}
	a.Status = to
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) ResumeAssignment(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.requireStatus(id, store.StatusPausedBreak, store.StatusPausedLunch)
	if err != nil {
		return err
	}
	a.Status = store.StatusActive
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) MergeAssignmentParams(ctx context.Context, id string, changes map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.requireStatus(id, store.StatusActive, store.StatusCovering)
	if err != nil {
		return err
	}
	if a.Params == nil {
		a.Params = make(map[string]any, len(changes))
	}
	for k, v := range changes {
		a.Params[k] = v
	}
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) MarkReminderSent(ctx context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[id]
	if !ok {
		return false, fmt.Errorf("assignment %s: %w", id, store.ErrNotFound)
	}
	if a.ReminderSentAt != nil {
		return false, nil
	}
	t := at
	a.ReminderSentAt = &t
	a.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *Store) EscalateAssignment(ctx context.Context, originalID, candidateID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	original, ok := s.assignments[originalID]
	if !ok {
		return fmt.Errorf("assignment %s: %w", originalID, store.ErrNotFound)
	}
	candidate, ok := s.assignments[candidateID]
	if !ok {
		return fmt.Errorf("assignment %s: %w", candidateID, store.ErrNotFound)
	}
	// Both preconditions are checked before either row is touched so the
	// pair of writes is all-or-nothing.
	if original.Status != store.StatusPendingAck {
		return fmt.Errorf("assignment %s is %s: %w", originalID, original.Status, store.ErrInvalidState)
	}
	if candidate.Status != store.StatusActive || candidate.TaskName != store.DefaultTaskName {
		return fmt.Errorf("candidate %s not on default task: %w", candidateID, store.ErrInvalidState)
	}
	original.Status = store.StatusEndedEarly
	endedAt := at
	original.EndedAt = &endedAt
	escalatedAt := at
	original.EscalatedAt = &escalatedAt
	original.UpdatedAt = at

	candidate.TaskName = original.TaskName
	candidate.TemplateID = original.TemplateID
	candidate.Params = copyParams(original.Params)
	covered := original.UserID
	candidate.CoveringForUserID = &covered
	candidate.Status = store.StatusCovering
	candidate.UpdatedAt = at
	return nil
}

func (s *Store) ConvertToCoverage(ctx context.Context, candidateID string, original *store.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	candidate, ok := s.assignments[candidateID]
	if !ok {
		return fmt.Errorf("assignment %s: %w", candidateID, store.ErrNotFound)
	}
	if candidate.Status != store.StatusActive || candidate.TaskName != store.DefaultTaskName {
		return fmt.Errorf("candidate %s not on default task: %w", candidateID, store.ErrInvalidState)
	}
	candidate.TaskName = original.TaskName
	candidate.TemplateID = original.TemplateID
	candidate.Params = copyParams(original.Params)
	covered := original.UserID
	candidate.CoveringForUserID = &covered
	candidate.Status = store.StatusCovering
	candidate.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) RevertCoverage(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.requireStatus(id, store.StatusCovering)
	if err != nil {
		return err
	}
	a.TaskName = store.DefaultTaskName
	a.TemplateID = nil
	a.Params = map[string]any{}
	a.CoveringForUserID = nil
	a.Status = store.StatusActive
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// requireStatus returns the live assignment row, failing with ErrInvalidState
// unless its status is one of the accepted set. Callers must hold s.mu.
func (s *Store) requireStatus(id string, accepted ...store.AssignmentStatus) (*store.Assignment, error) {
	a, ok := s.assignments[id]
	if !ok {
		return nil, fmt.Errorf("assignment %s: %w", id, store.ErrNotFound)
	}
	if !matchesStatus(a.Status, accepted) {
		return nil, fmt.Errorf("assignment %s is %s: %w", id, a.Status, store.ErrInvalidState)
	}
	return a, nil
}

// --- approvals ---

func (s *Store) GetApproval(ctx context.Context, id string) (*store.ApprovalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.approvals[id]
	if !ok {
		return nil, fmt.Errorf("approval request %s: %w", id, store.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (s *Store) CreateApproval(ctx context.Context, req *store.ApprovalRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.approvals {
		if existing.UserID == req.UserID && existing.AssignmentID == req.AssignmentID &&
			existing.Type == req.Type && isOpen(existing.Status) {
			return fmt.Errorf("open %s request already exists: %w", req.Type, store.ErrDuplicateRequest)
		}
	}
	cp := *req
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	if cp.RequestedAt.IsZero() {
		cp.RequestedAt = time.Now().UTC()
	}
	if cp.Status == "" {
		cp.Status = store.ApprovalPending
	}
	s.approvals[cp.ID] = &cp
	req.ID = cp.ID
	req.RequestedAt = cp.RequestedAt
	return nil
}

func (s *Store) PendingApprovalFor(ctx context.Context, assignmentID string, t store.ApprovalType) (*store.ApprovalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.approvals {
		if r.AssignmentID == assignmentID && r.Type == t && r.Status == store.ApprovalPending {
			cp := *r
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("no pending %s request for assignment %s: %w", t, assignmentID, store.ErrNotFound)
}

func (s *Store) OpenBreakRequest(ctx context.Context, userID string) (*store.ApprovalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.approvals {
		if r.UserID == userID && r.IsBreakType() && isOpen(r.Status) {
			cp := *r
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("no open break request for user %s: %w", userID, store.ErrNotFound)
}

func (s *Store) PendingApprovals(ctx context.Context) ([]store.ApprovalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.ApprovalRequest
	for _, r := range s.approvals {
		if r.Status == store.ApprovalPending {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.Before(out[j].RequestedAt) })
	return out, nil
}

func (s *Store) QueuedBreakRequests(ctx context.Context) ([]store.ApprovalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.ApprovalRequest
	for _, r := range s.approvals {
		if r.Status == store.ApprovalQueued && r.IsBreakType() {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.Before(out[j].RequestedAt) })
	return out, nil
}

func (s *Store) ResolveApproval(ctx context.Context, id string, outcome store.ApprovalStatus, resolverID, note string, at time.Time) error {
	if outcome != store.ApprovalApproved && outcome != store.ApprovalDenied {
		return fmt.Errorf("resolution outcome %s: %w", outcome, store.ErrInvalidState)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.approvals[id]
	if !ok {
		return fmt.Errorf("approval request %s: %w", id, store.ErrNotFound)
	}
	if r.Status != store.ApprovalPending {
		return fmt.Errorf("approval request %s is %s: %w", id, r.Status, store.ErrAlreadyResolved)
	}
	r.Status = outcome
	t := at
	r.ResolvedAt = &t
	rid := resolverID
	r.ResolverID = &rid
	r.ResolverNote = note
	return nil
}

func (s *Store) PromoteQueuedApproval(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.approvals[id]
	if !ok {
		return fmt.Errorf("approval request %s: %w", id, store.ErrNotFound)
	}
	if r.Status != store.ApprovalQueued {
		return fmt.Errorf("approval request %s is %s: %w", id, r.Status, store.ErrInvalidState)
	}
	r.Status = store.ApprovalPending
	return nil
}

func (s *Store) DenyQueuedApproval(ctx context.Context, id, note string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.approvals[id]
	if !ok {
		return fmt.Errorf("approval request %s: %w", id, store.ErrNotFound)
	}
	if r.Status != store.ApprovalQueued {
		return fmt.Errorf("approval request %s is %s: %w", id, r.Status, store.ErrInvalidState)
	}
	r.Status = store.ApprovalDenied
	t := at
	r.ResolvedAt = &t
	r.ResolverNote = note
	return nil
}

func (s *Store) LastRequestAt(ctx context.Context, userID string, t store.ApprovalType) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *time.Time
	for _, r := range s.approvals {
		if r.UserID == userID && r.Type == t {
			if latest == nil || r.RequestedAt.After(*latest) {
				ts := r.RequestedAt
				latest = &ts
			}
		}
	}
	return latest, nil
}

func (s *Store) LatestApprovedBreak(ctx context.Context, assignmentID string) (*store.ApprovalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *store.ApprovalRequest
	for _, r := range s.approvals {
		if r.AssignmentID == assignmentID && r.IsBreakType() && r.Status == store.ApprovalApproved {
			if latest == nil || (r.ResolvedAt != nil && latest.ResolvedAt != nil && r.ResolvedAt.After(*latest.ResolvedAt)) {
				latest = r
			}
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("no approved break for assignment %s: %w", assignmentID, store.ErrNotFound)
	}
	cp := *latest
	return &cp, nil
}

// --- settings ---

func (s *Store) GetSettings(ctx context.Context) (*store.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings == nil {
		s.settings = &store.Settings{
			Timezone:            "America/Los_Angeles",
			MinOnDuty:           3,
			CooldownEditSec:     300,
			CooldownEndEarlySec: 300,
			UpdatedAt:           time.Now().UTC(),
		}
	}
	cp := *s.settings
	return &cp, nil
}

func (s *Store) UpdateSettings(ctx context.Context, settings *store.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *settings
	cp.UpdatedAt = time.Now().UTC()
	s.settings = &cp
	return nil
}

// --- audit ---

func (s *Store) AppendAudit(ctx context.Context, entry *store.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *entry
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	if cp.At.IsZero() {
		cp.At = time.Now().UTC()
	}
	cp.Metadata = copyParams(entry.Metadata)
	s.audit = append(s.audit, cp)
	entry.ID = cp.ID
	return nil
}

func (s *Store) ListAudit(ctx context.Context, filter store.AuditFilter) ([]store.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.AuditEntry
	// Newest first.
	for i := len(s.audit) - 1; i >= 0; i-- {
		e := s.audit[i]
		if filter.ActorID != "" && e.ActorID != filter.ActorID {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// --- helpers ---

func matchesStatus(status store.AssignmentStatus, statuses []store.AssignmentStatus) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, s := range statuses {
		if status == s {
			return true
		}
	}
	return false
}

func isOpen(status store.ApprovalStatus) bool {
	return status == store.ApprovalPending || status == store.ApprovalQueued
}

func copyAssignment(a *store.Assignment) store.Assignment {
	cp := *a
	cp.Params = copyParams(a.Params)
	return cp
}

func copyParams(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	cp := make(map[string]any, len(params))
	for k, v := range params {
		cp[k] = v
	}
	return cp
}

func sortAssignments(assignments []store.Assignment) {
	sort.Slice(assignments, func(i, j int) bool {
		if !assignments[i].CreatedAt.Equal(assignments[j].CreatedAt) {
			return assignments[i].CreatedAt.Before(assignments[j].CreatedAt)
		}
		return assignments[i].ID < assignments[j].ID
	})
}
