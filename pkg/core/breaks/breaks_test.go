package breaks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/opsdesk/pkg/audit"
	"github.com/example/opsdesk/pkg/notify"
	"github.com/example/opsdesk/pkg/store"
	"github.com/example/opsdesk/pkg/store/memstore"
)

func newManager(t *testing.T) (*Manager, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	logger := zap.NewNop()
	m := NewManager(st, audit.NewRecorder(st, logger), notify.NopNotifier{}, logger)
	t.Cleanup(m.Shutdown)
	return m, st
}

func setMinOnDuty(t *testing.T, st *memstore.Store, min int) {
	t.Helper()
	ctx := context.Background()
	settings, err := st.GetSettings(ctx)
	require.NoError(t, err)
	settings.MinOnDuty = min
	require.NoError(t, st.UpdateSettings(ctx, settings))
}

func seedWorking(t *testing.T, st *memstore.Store, userID, taskName string, hourIndex int) *store.Assignment {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.UpsertUser(ctx, &store.User{ID: userID, DisplayName: userID, IsOperator: true}))

	shift := &store.Shift{UserID: userID, StartAt: time.Now().UTC().Add(-2 * time.Hour)}
	require.NoError(t, st.OpenShift(ctx, shift))

	a := &store.Assignment{
		UserID:    userID,
		ShiftID:   shift.ID,
		TaskName:  taskName,
		Status:    store.StatusActive,
		HourIndex: hourIndex,
	}
	require.NoError(t, st.CreateAssignment(ctx, a))
	return a
}

func auditCount(t *testing.T, st *memstore.Store, action string) int {
	t.Helper()
	entries, err := st.ListAudit(context.Background(), store.AuditFilter{Action: action})
	require.NoError(t, err)
	return len(entries)
}

func TestRequest_QueuedBelowStaffingFloor(t *testing.T) {
	m, st := newManager(t)
	ctx := context.Background()
	setMinOnDuty(t, st, 3)

	a := seedWorking(t, st, "u1", store.DefaultTaskName, 2)
	seedWorking(t, st, "u2", store.DefaultTaskName, 2)
	seedWorking(t, st, "u3", store.DefaultTaskName, 2)

	// Only 2 would remain: queued, not denied.
	req, err := m.Request(ctx, a.ID, "u1", store.ApprovalBreak15, "coffee", 15)
	require.NoError(t, err)
	assert.Equal(t, store.ApprovalQueued, req.Status)
	assert.Equal(t, 1, auditCount(t, st, audit.ActionBreakQueued))
}

func TestRequest_AllowedAtExactFloor(t *testing.T) {
	m, st := newManager(t)
	ctx := context.Background()
	setMinOnDuty(t, st, 2)

	a := seedWorking(t, st, "u1", store.DefaultTaskName, 2)
	seedWorking(t, st, "u2", store.DefaultTaskName, 2)
	seedWorking(t, st, "u3", store.DefaultTaskName, 2)

	req, err := m.Request(ctx, a.ID, "u1", store.ApprovalBreak15, "coffee", 15)
	require.NoError(t, err)
	assert.Equal(t, store.ApprovalPending, req.Status)
}

func TestRequest_LunchHourGate(t *testing.T) {
	m, st := newManager(t)
	ctx := context.Background()
	setMinOnDuty(t, st, 0)

	early := seedWorking(t, st, "u1", store.DefaultTaskName, 2)
	_, err := m.Request(ctx, early.ID, "u1", store.ApprovalLunch60, "lunch", 60)
	assert.ErrorIs(t, err, store.ErrInvalidState)

	mid := seedWorking(t, st, "u2", store.DefaultTaskName, 4)
	req, err := m.Request(ctx, mid.ID, "u2", store.ApprovalLunch60, "lunch", 60)
	require.NoError(t, err)
	assert.Equal(t, store.ApprovalPending, req.Status)
}

func TestRequest_DuplicateOpenRequest(t *testing.T) {
	m, st := newManager(t)
	ctx := context.Background()
	setMinOnDuty(t, st, 0)

	a := seedWorking(t, st, "u1", store.DefaultTaskName, 2)
	_, err := m.Request(ctx, a.ID, "u1", store.ApprovalBreak15, "coffee", 15)
	require.NoError(t, err)

	_, err = m.Request(ctx, a.ID, "u1", store.ApprovalBreak15, "again", 15)
	assert.ErrorIs(t, err, store.ErrDuplicateRequest)
}

// openCheckFailStore fails the open-request lookup outright instead of
// reporting no match.
type openCheckFailStore struct {
	Store
	err error
}

func (s openCheckFailStore) OpenBreakRequest(ctx context.Context, userID string) (*store.ApprovalRequest, error) {
	return nil, s.err
}

func TestRequest_OpenCheckFailurePropagates(t *testing.T) {
	st := memstore.New()
	setMinOnDuty(t, st, 0)
	a := seedWorking(t, st, "u1", store.DefaultTaskName, 2)

	boom := errors.New("connection reset")
	logger := zap.NewNop()
	m := NewManager(openCheckFailStore{Store: st, err: boom}, audit.NewRecorder(st, logger), notify.NopNotifier{}, logger)
	t.Cleanup(m.Shutdown)

	_, err := m.Request(context.Background(), a.ID, "u1", store.ApprovalBreak15, "coffee", 15)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, store.ErrDuplicateRequest)

	// The failed check blocked the request entirely.
	_, lookupErr := st.OpenBreakRequest(context.Background(), "u1")
	assert.ErrorIs(t, lookupErr, store.ErrNotFound)
}

func TestRequest_WrongOwner(t *testing.T) {
	m, st := newManager(t)
	a := seedWorking(t, st, "u1", store.DefaultTaskName, 2)

	_, err := m.Request(context.Background(), a.ID, "intruder", store.ApprovalBreak15, "", 15)
	assert.ErrorIs(t, err, store.ErrNotOwner)
}

func TestResolveBreak_ApprovedArrangesCoverage(t *testing.T) {
	m, st := newManager(t)
	ctx := context.Background()
	setMinOnDuty(t, st, 0)

	a := seedWorking(t, st, "u1", store.CommsLeadTaskName, 2)
	candidate := seedWorking(t, st, "u2", store.DefaultTaskName, 2)

	req, err := m.Request(ctx, a.ID, "u1", store.ApprovalBreak15, "coffee", 15)
	require.NoError(t, err)
	require.NoError(t, m.ResolveBreak(ctx, req.ID, true, "admin", ""))

	paused, err := st.GetAssignment(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusPausedBreak, paused.Status)

	cover, err := st.GetAssignment(ctx, candidate.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCovering, cover.Status)
	assert.Equal(t, store.CommsLeadTaskName, cover.TaskName)
	require.NotNil(t, cover.CoveringForUserID)
	assert.Equal(t, "u1", *cover.CoveringForUserID)

	_, armed := m.ActiveBreak(a.ID)
	assert.True(t, armed)
}

func TestResolveBreak_LunchDurationPausesAsLunch(t *testing.T) {
	m, st := newManager(t)
	ctx := context.Background()
	setMinOnDuty(t, st, 0)

	a := seedWorking(t, st, "u1", store.DefaultTaskName, 4)
	req, err := m.Request(ctx, a.ID, "u1", store.ApprovalLunch60, "lunch", 60)
	require.NoError(t, err)
	require.NoError(t, m.ResolveBreak(ctx, req.ID, true, "admin", ""))

	paused, err := st.GetAssignment(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusPausedLunch, paused.Status)
}

func TestResolveBreak_Denied(t *testing.T) {
	m, st := newManager(t)
	ctx := context.Background()
	setMinOnDuty(t, st, 0)

	a := seedWorking(t, st, "u1", store.DefaultTaskName, 2)
	req, err := m.Request(ctx, a.ID, "u1", store.ApprovalBreak15, "coffee", 15)
	require.NoError(t, err)
	require.NoError(t, m.ResolveBreak(ctx, req.ID, false, "admin", "too busy"))

	a2, err := st.GetAssignment(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusActive, a2.Status)
	assert.Equal(t, 1, auditCount(t, st, audit.ActionBreakDenied))
}

func TestCancel_ResumesAndRevertsCoverage(t *testing.T) {
	m, st := newManager(t)
	ctx := context.Background()
	setMinOnDuty(t, st, 0)
	m.minuteUnit = 10 * time.Millisecond

	a := seedWorking(t, st, "u1", store.CommsLeadTaskName, 2)
	candidate := seedWorking(t, st, "u2", store.DefaultTaskName, 2)

	req, err := m.Request(ctx, a.ID, "u1", store.ApprovalBreak15, "coffee", 15)
	require.NoError(t, err)
	require.NoError(t, m.ResolveBreak(ctx, req.ID, true, "admin", ""))

	require.NoError(t, m.Cancel(ctx, a.ID, "u1"))

	resumed, err := st.GetAssignment(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusActive, resumed.Status)

	reverted, err := st.GetAssignment(ctx, candidate.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusActive, reverted.Status)
	assert.Equal(t, store.DefaultTaskName, reverted.TaskName)
	assert.Nil(t, reverted.CoveringForUserID)

	_, armed := m.ActiveBreak(a.ID)
	assert.False(t, armed)

	// The disarmed countdown never fires a second resume.
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 0, auditCount(t, st, audit.ActionBreakResumed))
	assert.Equal(t, 1, auditCount(t, st, audit.ActionBreakCancelled))
}

func TestCancel_OnlyWhilePaused(t *testing.T) {
	m, st := newManager(t)
	a := seedWorking(t, st, "u1", store.DefaultTaskName, 2)

	err := m.Cancel(context.Background(), a.ID, "u1")
	assert.ErrorIs(t, err, store.ErrInvalidState)
}

func TestAutoResume(t *testing.T) {
	m, st := newManager(t)
	ctx := context.Background()
	setMinOnDuty(t, st, 0)
	m.minuteUnit = 5 * time.Millisecond

	a := seedWorking(t, st, "u1", store.CommsLeadTaskName, 2)
	candidate := seedWorking(t, st, "u2", store.DefaultTaskName, 2)

	req, err := m.Request(ctx, a.ID, "u1", store.ApprovalBreak15, "coffee", 15)
	require.NoError(t, err)
	require.NoError(t, m.ResolveBreak(ctx, req.ID, true, "admin", ""))

	require.Eventually(t, func() bool {
		a2, err := st.GetAssignment(ctx, a.ID)
		return err == nil && a2.Status == store.StatusActive
	}, 2*time.Second, 10*time.Millisecond)

	reverted, err := st.GetAssignment(ctx, candidate.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusActive, reverted.Status)
	assert.Equal(t, store.DefaultTaskName, reverted.TaskName)
	assert.Equal(t, 1, auditCount(t, st, audit.ActionBreakResumed))
}

func TestCheckQueued_PromotesOldestOnly(t *testing.T) {
	m, st := newManager(t)
	ctx := context.Background()
	setMinOnDuty(t, st, 0)

	a1 := seedWorking(t, st, "u1", store.DefaultTaskName, 2)
	a2 := seedWorking(t, st, "u2", store.DefaultTaskName, 2)

	base := time.Now().UTC().Add(-time.Hour)
	first := &store.ApprovalRequest{
		UserID: "u1", AssignmentID: a1.ID, Type: store.ApprovalBreak15,
		RequestedAt: base, Status: store.ApprovalQueued,
		Payload: store.ApprovalPayload{Break: &store.BreakPayload{DurationMinutes: 15}},
	}
	second := &store.ApprovalRequest{
		UserID: "u2", AssignmentID: a2.ID, Type: store.ApprovalBreak15,
		RequestedAt: base.Add(time.Minute), Status: store.ApprovalQueued,
		Payload: store.ApprovalPayload{Break: &store.BreakPayload{DurationMinutes: 15}},
	}
	require.NoError(t, st.CreateApproval(ctx, first))
	require.NoError(t, st.CreateApproval(ctx, second))

	require.NoError(t, m.CheckQueued(ctx))

	r1, err := st.GetApproval(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, store.ApprovalPending, r1.Status)

	// One promotion per pass: the second stays queued.
	r2, err := st.GetApproval(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, store.ApprovalQueued, r2.Status)
	assert.Equal(t, 1, auditCount(t, st, audit.ActionBreakUnqueued))
}

func TestCheckQueued_DeniesStaleRequests(t *testing.T) {
	m, st := newManager(t)
	ctx := context.Background()
	setMinOnDuty(t, st, 0)

	a := seedWorking(t, st, "u1", store.DefaultTaskName, 2)
	req := &store.ApprovalRequest{
		UserID: "u1", AssignmentID: a.ID, Type: store.ApprovalBreak15,
		RequestedAt: time.Now().UTC(), Status: store.ApprovalQueued,
		Payload: store.ApprovalPayload{Break: &store.BreakPayload{DurationMinutes: 15}},
	}
	require.NoError(t, st.CreateApproval(ctx, req))
	require.NoError(t, st.CompleteAssignment(ctx, a.ID, time.Now().UTC()))

	require.NoError(t, m.CheckQueued(ctx))

	stale, err := st.GetApproval(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, store.ApprovalDenied, stale.Status)
	assert.Contains(t, stale.ResolverNote, "no longer active")
}

func TestRearmCountdowns(t *testing.T) {
	m, st := newManager(t)
	ctx := context.Background()
	m.minuteUnit = 5 * time.Millisecond

	a := seedWorking(t, st, "u1", store.DefaultTaskName, 2)
	req := &store.ApprovalRequest{
		UserID: "u1", AssignmentID: a.ID, Type: store.ApprovalBreak15,
		RequestedAt: time.Now().UTC(),
		Payload:     store.ApprovalPayload{Break: &store.BreakPayload{DurationMinutes: 15}},
	}
	require.NoError(t, st.CreateApproval(ctx, req))
	require.NoError(t, st.ResolveApproval(ctx, req.ID, store.ApprovalApproved, "admin", "", time.Now().UTC()))
	require.NoError(t, st.PauseAssignment(ctx, a.ID, store.StatusPausedBreak))

	require.NoError(t, m.RearmCountdowns(ctx))

	require.Eventually(t, func() bool {
		a2, err := st.GetAssignment(ctx, a.ID)
		return err == nil && a2.Status == store.StatusActive
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRearmCountdowns_ElapsedBreakResumesImmediately(t *testing.T) {
	m, st := newManager(t)
	ctx := context.Background()

	a := seedWorking(t, st, "u1", store.DefaultTaskName, 2)
	req := &store.ApprovalRequest{
		UserID: "u1", AssignmentID: a.ID, Type: store.ApprovalBreak15,
		RequestedAt: time.Now().UTC().Add(-time.Hour),
		Payload:     store.ApprovalPayload{Break: &store.BreakPayload{DurationMinutes: 15}},
	}
	require.NoError(t, st.CreateApproval(ctx, req))
	require.NoError(t, st.ResolveApproval(ctx, req.ID, store.ApprovalApproved, "admin", "", time.Now().UTC().Add(-time.Hour)))
	require.NoError(t, st.PauseAssignment(ctx, a.ID, store.StatusPausedBreak))

	require.NoError(t, m.RearmCountdowns(ctx))

	a2, err := st.GetAssignment(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusActive, a2.Status)
}
