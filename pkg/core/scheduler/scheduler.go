// Package scheduler drives the time-based triggers: hourly assignment
// generation, the minute acknowledgment watch (reminders and escalation),
// queued-break re-evaluation and the dashboard refresh. Each trigger is
// single-flight: a firing that overlaps a still-running execution is dropped,
// and a failed firing is logged without stopping the loop.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/opsdesk/pkg/audit"
	"github.com/example/opsdesk/pkg/core/breaks"
	"github.com/example/opsdesk/pkg/core/dashboard"
	"github.com/example/opsdesk/pkg/core/selection"
	"github.com/example/opsdesk/pkg/notify"
	"github.com/example/opsdesk/pkg/store"
)

// Acknowledgment thresholds. An unacknowledged assignment gets one reminder
// after ReminderAfter; non-default-task assignments escalate after
// EscalateAfter.
const (
	ReminderAfter = 5 * time.Minute
	EscalateAfter = 10 * time.Minute
)

// Store defines the persistence operations the trigger loop needs.
type Store interface {
	store.AssignmentStore
	store.UserStore
	store.ShiftStore
	store.TemplateStore
	store.SettingsStore
}

// Scheduler runs the trigger loop.
type Scheduler struct {
	store    Store
	breaks   *breaks.Manager
	reporter *dashboard.Reporter
	audit    *audit.Recorder
	notifier notify.Notifier
	logger   *zap.Logger
	now      func() time.Time

	hourlyFlight sync.Mutex
	ackFlight    sync.Mutex
	queuedFlight sync.Mutex
	dashFlight   sync.Mutex

	// postedMu guards lastPosted, the hour boundary of the last generation
	// pass that completed. A tick that lands late still belongs to an hour no
	// pass has covered, so the loop fires on hour difference, not on minute
	// zero.
	postedMu   sync.Mutex
	lastPosted time.Time

	// alertMu guards noCandidateAlerted, the assignments whose stalled
	// escalation has already been surfaced to admins. Transient by design: a
	// restart re-alerts once, which is acceptable for an operational nudge.
	alertMu            sync.Mutex
	noCandidateAlerted map[string]struct{}
}

// New creates a Scheduler.
func New(st Store, breakMgr *breaks.Manager, reporter *dashboard.Reporter, recorder *audit.Recorder, notifier notify.Notifier, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		store:              st,
		breaks:             breakMgr,
		reporter:           reporter,
		audit:              recorder,
		notifier:           notifier,
		logger:             logger,
		now:                func() time.Time { return time.Now().UTC() },
		noCandidateAlerted: make(map[string]struct{}),
	}
}

// WithClock overrides the scheduler's clock; tests use this to pin time.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Run executes the trigger loop until the context is cancelled. Break
// countdowns are re-armed from store state first, so a restart cannot lose a
// pending resume.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("Scheduler starting")
	if err := s.breaks.RearmCountdowns(ctx); err != nil {
		s.logger.Error("Failed to re-arm break countdowns", zap.Error(err))
	}

	for {
		now := s.now()
		next := now.Truncate(time.Minute).Add(time.Minute)
		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.breaks.Shutdown()
			s.logger.Info("Scheduler stopped")
			return ctx.Err()
		case <-timer.C:
		}

		tick := s.now()
		if s.hourlyDue(tick) {
			go s.fire(ctx, "hourly_assignments", &s.hourlyFlight, s.PostHourlyAssignments)
		}
		go s.fire(ctx, "acknowledgment_watch", &s.ackFlight, s.CheckPendingAcks)
		go s.fire(ctx, "queued_breaks", &s.queuedFlight, s.breaks.CheckQueued)
		go s.fire(ctx, "dashboard_refresh", &s.dashFlight, s.RefreshDashboard)
	}
}

// hourlyDue reports whether the current hour still needs a generation pass.
// A delayed tick (GC pause, clock suspend) that misses minute zero fires as
// soon as the loop catches up; posting is idempotent so the jitter is safe.
func (s *Scheduler) hourlyDue(now time.Time) bool {
	s.postedMu.Lock()
	defer s.postedMu.Unlock()
	return now.Truncate(time.Hour).After(s.lastPosted)
}

func (s *Scheduler) markHourPosted(hour time.Time) {
	s.postedMu.Lock()
	defer s.postedMu.Unlock()
	if hour.After(s.lastPosted) {
		s.lastPosted = hour
	}
}

// fire runs one trigger execution under its single-flight guard. If the
// previous execution is still running the firing is dropped, not queued.
func (s *Scheduler) fire(ctx context.Context, name string, guard *sync.Mutex, fn func(context.Context) error) {
	if !guard.TryLock() {
		s.logger.Warn("Trigger still running, dropping firing", zap.String("trigger", name))
		return
	}
	defer guard.Unlock()

	if err := fn(ctx); err != nil {
		s.logger.Error("Trigger execution failed",
			zap.String("trigger", name),
			zap.Error(err))
	}
}

// onShiftOperator pairs an operator with their open shift and current hour.
type onShiftOperator struct {
	user      store.User
	shift     store.Shift
	hourIndex int
}

// onShiftOperators returns every operator currently inside an active shift
// window with their hour index.
func (s *Scheduler) onShiftOperators(ctx context.Context, now time.Time) ([]onShiftOperator, error) {
	shifts, err := s.store.ActiveShifts(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch active shifts: %w", err)
	}

	var out []onShiftOperator
	for _, shift := range shifts {
		user, err := s.store.GetUser(ctx, shift.UserID)
		if err != nil {
			s.logger.Warn("Shift references unknown user",
				zap.String("shift_id", shift.ID),
				zap.String("user_id", shift.UserID))
			continue
		}
		if !user.IsOperator {
			continue
		}
		out = append(out, onShiftOperator{
			user:      *user,
			shift:     shift,
			hourIndex: selection.HourIndex(shift.StartAt, now),
		})
	}
	return out, nil
}

// PostHourlyAssignments creates the current hour's assignments for every
// on-shift operator: the LRU comms lead gets the always-covered comms task,
// everyone else the default pooled task. Re-running within the same hour is
// idempotent; the (user, shift, hour) uniqueness constraint absorbs
// duplicates.
func (s *Scheduler) PostHourlyAssignments(ctx context.Context) (err error) {
	now := s.now()
	defer func() {
		if err == nil {
			s.markHourPosted(now.Truncate(time.Hour))
		}
	}()

	operators, err := s.onShiftOperators(ctx, now)
	if err != nil {
		return err
	}
	if len(operators) == 0 {
		s.logger.Info("No operators on shift, skipping assignment posting")
		return nil
	}

	users := make([]store.User, len(operators))
	for i, op := range operators {
		users[i] = op.user
	}
	lead := selection.SelectCommsLead(users)
	s.logger.Info("Selected comms lead",
		zap.String("user_id", lead.ID),
		zap.String("display_name", lead.DisplayName))

	endsAt := selection.NextHourBoundary(now)
	var created []*store.Assignment
	for _, op := range operators {
		taskName := store.DefaultTaskName
		if op.user.ID == lead.ID {
			taskName = store.CommsLeadTaskName
		}

		a := &store.Assignment{
			UserID:    op.user.ID,
			ShiftID:   op.shift.ID,
			TaskName:  taskName,
			Params:    map[string]any{},
			Status:    store.StatusPendingAck,
			HourIndex: op.hourIndex,
			EndsAt:    &endsAt,
		}
		if tpl, err := s.store.GetTemplateByName(ctx, taskName); err == nil {
			a.TemplateID = &tpl.ID
		}

		if err := s.store.CreateAssignment(ctx, a); err != nil {
			if isDuplicate(err) {
				s.logger.Debug("Assignment already exists for hour",
					zap.String("user_id", op.user.ID),
					zap.Int("hour_index", op.hourIndex))
				continue
			}
			s.logger.Error("Failed to create assignment",
				zap.String("user_id", op.user.ID),
				zap.Error(err))
			continue
		}
		created = append(created, a)
		s.notifier.NotifyOperator(ctx, op.user.ID,
			fmt.Sprintf("Hour %d assignment: %s. Acknowledge to start.", op.hourIndex, taskName))
	}

	if len(created) == 0 {
		return nil
	}

	if err := s.store.MarkCommsLead(ctx, lead.ID, now); err != nil {
		s.logger.Error("Failed to stamp comms lead rotation", zap.Error(err))
	}

	summary := make([]map[string]any, len(created))
	for i, a := range created {
		summary[i] = map[string]any{
			"user_id":    a.UserID,
			"task_name":  a.TaskName,
			"hour_index": a.HourIndex,
		}
	}
	s.audit.Record(ctx, audit.ActionAssignmentsPosted, "", "", map[string]any{
		"count":         len(created),
		"comms_lead_id": lead.ID,
		"assignments":   summary,
	})
	s.logger.Info("Posted hourly assignments", zap.Int("count", len(created)))
	return nil
}

// CheckPendingAcks sends one reminder per unacknowledged assignment past the
// reminder threshold and escalates non-default-task assignments past the
// escalation threshold. The reminder_sent_at marker makes reminders
// idempotent regardless of trigger timing jitter.
func (s *Scheduler) CheckPendingAcks(ctx context.Context) error {
	now := s.now()
	pending, err := s.store.AssignmentsByStatus(ctx, store.StatusPendingAck)
	if err != nil {
		return fmt.Errorf("failed to fetch pending assignments: %w", err)
	}

	for i := range pending {
		a := &pending[i]
		age := now.Sub(a.CreatedAt)

		if age >= ReminderAfter && a.ReminderSentAt == nil {
			s.sendReminder(ctx, a, now)
		}
		if age >= EscalateAfter && a.TaskName != store.DefaultTaskName {
			s.escalate(ctx, a, now)
		}
	}
	return nil
}

func (s *Scheduler) sendReminder(ctx context.Context, a *store.Assignment, now time.Time) {
	sent, err := s.store.MarkReminderSent(ctx, a.ID, now)
	if err != nil {
		s.logger.Error("Failed to mark reminder sent",
			zap.String("assignment_id", a.ID),
			zap.Error(err))
		return
	}
	if !sent {
		return
	}

	minutes := int(now.Sub(a.CreatedAt).Minutes())
	s.notifier.NotifyOperator(ctx, a.UserID,
		fmt.Sprintf("Reminder: your hour %d task %q is waiting for acknowledgment", a.HourIndex, a.TaskName))
	s.notifier.NotifyAdmins(ctx,
		fmt.Sprintf("Assignment %s (%s) unacknowledged for %d minutes", a.ID, a.TaskName, minutes))
	s.audit.Record(ctx, audit.ActionReminderSent, "", a.ID, map[string]any{
		"user_id":         a.UserID,
		"task_name":       a.TaskName,
		"minutes_elapsed": minutes,
	})
	s.logger.Info("Acknowledgment reminder sent",
		zap.String("assignment_id", a.ID),
		zap.String("user_id", a.UserID))
}

// escalate ends the unacknowledged assignment and hands its task to an
// operator currently on the default pooled task in the same hour. The two
// writes are one atomic store operation; with no candidate the assignment
// stays pending and only an operational alert goes out.
func (s *Scheduler) escalate(ctx context.Context, a *store.Assignment, now time.Time) {
	hourAssignments, err := s.store.HourAssignments(ctx, a.HourIndex, store.StatusActive)
	if err != nil {
		s.logger.Error("Failed to fetch escalation candidates",
			zap.String("assignment_id", a.ID),
			zap.Error(err))
		return
	}
	candidates := selection.CoverageCandidates(hourAssignments, a.UserID)
	minutes := int(now.Sub(a.CreatedAt).Minutes())

	if len(candidates) == 0 {
		// The watch keeps retrying every pass, but admins hear about a
		// stalled escalation once, not once per minute.
		if s.firstNoCandidateAlert(a.ID) {
			s.notifier.NotifyAdmins(ctx, fmt.Sprintf(
				"Assignment %s (%s) unacknowledged for %d minutes and no reassignment candidates are available",
				a.ID, a.TaskName, minutes))
			s.audit.Record(ctx, audit.ActionAssignmentEscalate, "", a.ID, map[string]any{
				"user_id":          a.UserID,
				"task_name":        a.TaskName,
				"candidates_found": 0,
				"minutes_elapsed":  minutes,
			})
			s.logger.Warn("No reassignment candidates for escalation",
				zap.String("assignment_id", a.ID))
		} else {
			s.logger.Debug("Still no reassignment candidates for escalation",
				zap.String("assignment_id", a.ID))
		}
		return
	}

	target := candidates[0]
	if err := s.store.EscalateAssignment(ctx, a.ID, target.ID, now); err != nil {
		// The original was acknowledged or the candidate moved on between the
		// read and the write; the store guard kept both rows consistent.
		s.logger.Warn("Escalation lost the race, leaving assignment as-is",
			zap.String("assignment_id", a.ID),
			zap.Error(err))
		return
	}

	s.clearNoCandidateAlert(a.ID)
	s.audit.Record(ctx, audit.ActionAssignmentEscalate, "", a.ID, map[string]any{
		"user_id":          a.UserID,
		"task_name":        a.TaskName,
		"candidates_found": len(candidates),
		"reassigned_to":    target.UserID,
		"minutes_elapsed":  minutes,
	})
	s.notifier.NotifyOperator(ctx, target.UserID,
		fmt.Sprintf("You are now covering %q for hour %d (unacknowledged by %s)", a.TaskName, a.HourIndex, a.UserID))
	s.notifier.NotifyOperator(ctx, a.UserID,
		fmt.Sprintf("Your hour %d task %q was reassigned after going unacknowledged", a.HourIndex, a.TaskName))
	s.notifier.NotifyAdmins(ctx,
		fmt.Sprintf("Escalated %q from %s to %s", a.TaskName, a.UserID, target.UserID))
	s.logger.Info("Assignment escalated",
		zap.String("assignment_id", a.ID),
		zap.String("from_user", a.UserID),
		zap.String("to_user", target.UserID))
}

// firstNoCandidateAlert records that a stalled escalation has been surfaced
// and reports whether this call was the first to do so.
func (s *Scheduler) firstNoCandidateAlert(assignmentID string) bool {
	s.alertMu.Lock()
	defer s.alertMu.Unlock()
	if _, ok := s.noCandidateAlerted[assignmentID]; ok {
		return false
	}
	s.noCandidateAlerted[assignmentID] = struct{}{}
	return true
}

func (s *Scheduler) clearNoCandidateAlert(assignmentID string) {
	s.alertMu.Lock()
	defer s.alertMu.Unlock()
	delete(s.noCandidateAlerted, assignmentID)
}

// RefreshDashboard recomputes the read-only staffing snapshot and logs it.
// No state is mutated.
func (s *Scheduler) RefreshDashboard(ctx context.Context) error {
	snap, err := s.reporter.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to build dashboard snapshot: %w", err)
	}
	s.logger.Debug("Dashboard refreshed",
		zap.Int("working", snap.WorkingCount),
		zap.Int("pending_ack", snap.StatusCounts[store.StatusPendingAck]),
		zap.Int("on_break", len(snap.OnBreak)),
		zap.Int("min_on_duty", snap.MinOnDuty),
		zap.Bool("staffing_ok", snap.StaffingOK))
	return nil
}

func isDuplicate(err error) bool {
	return errors.Is(err, store.ErrDuplicateAssignment)
}
