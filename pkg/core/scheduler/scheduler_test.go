package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/opsdesk/pkg/audit"
	"github.com/example/opsdesk/pkg/core/breaks"
	"github.com/example/opsdesk/pkg/core/dashboard"
	"github.com/example/opsdesk/pkg/notify"
	"github.com/example/opsdesk/pkg/store"
	"github.com/example/opsdesk/pkg/store/memstore"
)

var testNow = time.Date(2026, 8, 20, 10, 30, 0, 0, time.UTC)

func newScheduler(t *testing.T) (*Scheduler, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	logger := zap.NewNop()
	recorder := audit.NewRecorder(st, logger)
	breakMgr := breaks.NewManager(st, recorder, notify.NopNotifier{}, logger)
	t.Cleanup(breakMgr.Shutdown)
	reporter := dashboard.NewReporter(st, breakMgr.ActiveBreak)

	sched := New(st, breakMgr, reporter, recorder, notify.NopNotifier{}, logger).
		WithClock(func() time.Time { return testNow })
	return sched, st
}

// seedOperator registers an operator and opens a shift that started 90
// minutes ago, placing them in hour 2.
func seedOperator(t *testing.T, st *memstore.Store, userID string, lastLead *time.Time) *store.Shift {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.UpsertUser(ctx, &store.User{
		ID: userID, DisplayName: userID, IsOperator: true, LastCommsLeadAt: lastLead,
	}))
	shift := &store.Shift{UserID: userID, StartAt: testNow.Add(-90 * time.Minute)}
	require.NoError(t, st.OpenShift(ctx, shift))
	return shift
}

func seedAged(t *testing.T, st *memstore.Store, userID, shiftID, taskName string, status store.AssignmentStatus, createdAt time.Time) *store.Assignment {
	t.Helper()
	a := &store.Assignment{
		UserID:    userID,
		ShiftID:   shiftID,
		TaskName:  taskName,
		Status:    status,
		HourIndex: 2,
		CreatedAt: createdAt,
	}
	require.NoError(t, st.CreateAssignment(context.Background(), a))
	return a
}

func auditCount(t *testing.T, st *memstore.Store, action string) int {
	t.Helper()
	entries, err := st.ListAudit(context.Background(), store.AuditFilter{Action: action})
	require.NoError(t, err)
	return len(entries)
}

func TestPostHourlyAssignments(t *testing.T) {
	sched, st := newScheduler(t)
	ctx := context.Background()

	served := testNow.Add(-3 * time.Hour)
	seedOperator(t, st, "u1", &served)
	seedOperator(t, st, "u2", nil)
	seedOperator(t, st, "u3", &served)

	require.NoError(t, sched.PostHourlyAssignments(ctx))

	assignments, err := st.HourAssignments(ctx, 2)
	require.NoError(t, err)
	require.Len(t, assignments, 3)

	byUser := map[string]store.Assignment{}
	for _, a := range assignments {
		byUser[a.UserID] = a
	}

	// u2 has never served as comms lead, so the rotation picks them.
	assert.Equal(t, store.CommsLeadTaskName, byUser["u2"].TaskName)
	assert.Equal(t, store.DefaultTaskName, byUser["u1"].TaskName)
	assert.Equal(t, store.DefaultTaskName, byUser["u3"].TaskName)

	boundary := time.Date(2026, 8, 20, 11, 0, 0, 0, time.UTC)
	for _, a := range assignments {
		assert.Equal(t, store.StatusPendingAck, a.Status)
		require.NotNil(t, a.EndsAt)
		assert.Equal(t, boundary, *a.EndsAt)
	}

	lead, err := st.GetUser(ctx, "u2")
	require.NoError(t, err)
	require.NotNil(t, lead.LastCommsLeadAt)
	assert.Equal(t, testNow, *lead.LastCommsLeadAt)

	assert.Equal(t, 1, auditCount(t, st, audit.ActionAssignmentsPosted))
}

func TestPostHourlyAssignments_Idempotent(t *testing.T) {
	sched, st := newScheduler(t)
	ctx := context.Background()

	seedOperator(t, st, "u1", nil)
	seedOperator(t, st, "u2", nil)

	require.NoError(t, sched.PostHourlyAssignments(ctx))
	require.NoError(t, sched.PostHourlyAssignments(ctx))

	assignments, err := st.HourAssignments(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, assignments, 2)
	// The duplicate run created nothing and posted no second audit entry.
	assert.Equal(t, 1, auditCount(t, st, audit.ActionAssignmentsPosted))
}

func TestPostHourlyAssignments_NoOperators(t *testing.T) {
	sched, st := newScheduler(t)

	require.NoError(t, sched.PostHourlyAssignments(context.Background()))
	assert.Equal(t, 0, auditCount(t, st, audit.ActionAssignmentsPosted))
}

func TestHourlyDue_CatchesMissedBoundary(t *testing.T) {
	sched, st := newScheduler(t)
	ctx := context.Background()
	seedOperator(t, st, "u1", nil)

	// Before any pass this hour is still uncovered, minute zero or not.
	assert.True(t, sched.hourlyDue(testNow))

	require.NoError(t, sched.PostHourlyAssignments(ctx))

	// Covered for the rest of the hour, even for a jittered tick.
	assert.False(t, sched.hourlyDue(testNow))
	assert.False(t, sched.hourlyDue(testNow.Add(29*time.Minute)))

	// The next hour is due from its boundary onward, so a tick delayed past
	// minute zero still fires.
	assert.True(t, sched.hourlyDue(testNow.Add(30*time.Minute)))
	assert.True(t, sched.hourlyDue(testNow.Add(31*time.Minute)))
}

func TestCheckPendingAcks_ReminderSentOnce(t *testing.T) {
	sched, st := newScheduler(t)
	ctx := context.Background()

	shift := seedOperator(t, st, "u1", nil)
	a := seedAged(t, st, "u1", shift.ID, store.DefaultTaskName, store.StatusPendingAck, testNow.Add(-6*time.Minute))

	require.NoError(t, sched.CheckPendingAcks(ctx))
	require.NoError(t, sched.CheckPendingAcks(ctx))

	reloaded, err := st.GetAssignment(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.ReminderSentAt)
	assert.Equal(t, 1, auditCount(t, st, audit.ActionReminderSent))
}

func TestCheckPendingAcks_BeforeThreshold(t *testing.T) {
	sched, st := newScheduler(t)
	ctx := context.Background()

	shift := seedOperator(t, st, "u1", nil)
	a := seedAged(t, st, "u1", shift.ID, store.DefaultTaskName, store.StatusPendingAck, testNow.Add(-2*time.Minute))

	require.NoError(t, sched.CheckPendingAcks(ctx))

	reloaded, err := st.GetAssignment(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, reloaded.ReminderSentAt)
	assert.Equal(t, 0, auditCount(t, st, audit.ActionReminderSent))
}

func TestCheckPendingAcks_Escalates(t *testing.T) {
	sched, st := newScheduler(t)
	ctx := context.Background()

	s1 := seedOperator(t, st, "u1", nil)
	s2 := seedOperator(t, st, "u2", nil)
	original := seedAged(t, st, "u1", s1.ID, store.CommsLeadTaskName, store.StatusPendingAck, testNow.Add(-11*time.Minute))
	candidate := seedAged(t, st, "u2", s2.ID, store.DefaultTaskName, store.StatusActive, testNow.Add(-11*time.Minute))

	require.NoError(t, sched.CheckPendingAcks(ctx))

	ended, err := st.GetAssignment(ctx, original.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusEndedEarly, ended.Status)
	require.NotNil(t, ended.EndedAt)
	require.NotNil(t, ended.EscalatedAt)

	covering, err := st.GetAssignment(ctx, candidate.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCovering, covering.Status)
	assert.Equal(t, store.CommsLeadTaskName, covering.TaskName)
	require.NotNil(t, covering.CoveringForUserID)
	assert.Equal(t, "u1", *covering.CoveringForUserID)

	assert.Equal(t, 1, auditCount(t, st, audit.ActionAssignmentEscalate))
}

func TestCheckPendingAcks_EscalationWithoutCandidates(t *testing.T) {
	sched, st := newScheduler(t)
	ctx := context.Background()

	shift := seedOperator(t, st, "u1", nil)
	a := seedAged(t, st, "u1", shift.ID, store.CommsLeadTaskName, store.StatusPendingAck, testNow.Add(-11*time.Minute))

	require.NoError(t, sched.CheckPendingAcks(ctx))
	require.NoError(t, sched.CheckPendingAcks(ctx))
	require.NoError(t, sched.CheckPendingAcks(ctx))

	// Nobody to hand the task to: it stays pending, and repeated watch
	// passes surface the stall to admins once, not once per minute.
	reloaded, err := st.GetAssignment(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusPendingAck, reloaded.Status)

	entries, err := st.ListAudit(ctx, store.AuditFilter{Action: audit.ActionAssignmentEscalate})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 0, entries[0].Metadata["candidates_found"])
}

func TestCheckPendingAcks_EscalatesWhenCandidateAppears(t *testing.T) {
	sched, st := newScheduler(t)
	ctx := context.Background()

	s1 := seedOperator(t, st, "u1", nil)
	a := seedAged(t, st, "u1", s1.ID, store.CommsLeadTaskName, store.StatusPendingAck, testNow.Add(-11*time.Minute))

	// Two stalled passes, then a candidate acknowledges their pooled task.
	require.NoError(t, sched.CheckPendingAcks(ctx))
	require.NoError(t, sched.CheckPendingAcks(ctx))

	s2 := seedOperator(t, st, "u2", nil)
	seedAged(t, st, "u2", s2.ID, store.DefaultTaskName, store.StatusActive, testNow.Add(-11*time.Minute))

	require.NoError(t, sched.CheckPendingAcks(ctx))

	ended, err := st.GetAssignment(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusEndedEarly, ended.Status)

	// One stall alert plus one successful escalation.
	assert.Equal(t, 2, auditCount(t, st, audit.ActionAssignmentEscalate))
}

func TestCheckPendingAcks_DefaultTaskNeverEscalates(t *testing.T) {
	sched, st := newScheduler(t)
	ctx := context.Background()

	s1 := seedOperator(t, st, "u1", nil)
	s2 := seedOperator(t, st, "u2", nil)
	a := seedAged(t, st, "u1", s1.ID, store.DefaultTaskName, store.StatusPendingAck, testNow.Add(-20*time.Minute))
	seedAged(t, st, "u2", s2.ID, store.DefaultTaskName, store.StatusActive, testNow.Add(-20*time.Minute))

	require.NoError(t, sched.CheckPendingAcks(ctx))

	reloaded, err := st.GetAssignment(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusPendingAck, reloaded.Status)
	assert.Equal(t, 0, auditCount(t, st, audit.ActionAssignmentEscalate))
}

func TestRefreshDashboard(t *testing.T) {
	sched, st := newScheduler(t)
	ctx := context.Background()

	shift := seedOperator(t, st, "u1", nil)
	seedAged(t, st, "u1", shift.ID, store.DefaultTaskName, store.StatusActive, testNow)

	require.NoError(t, sched.RefreshDashboard(ctx))
}
