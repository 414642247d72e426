package lifecycle

import (
	"context"
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

var testNow = time.Date(2026, 8, 20, 10, 30, 0, 0, time.UTC)

func newEngine(t *testing.T) (*Engine, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	logger := zap.NewNop()
	engine := NewEngine(st, audit.NewRecorder(st, logger), notify.NopNotifier{}, logger).
		WithClock(func() time.Time { return testNow })
	return engine, st
}

func seedAssignment(t *testing.T, st *memstore.Store, userID, taskName string, status store.AssignmentStatus) *store.Assignment {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.UpsertUser(ctx, &store.User{ID: userID, DisplayName: userID, IsOperator: true}))

	shift := &store.Shift{UserID: userID, StartAt: testNow.Add(-90 * time.Minute)}
	require.NoError(t, st.OpenShift(ctx, shift))

	a := &store.Assignment{
		UserID:    userID,
		ShiftID:   shift.ID,
		TaskName:  taskName,
		Status:    status,
		HourIndex: 2,
	}
	require.NoError(t, st.CreateAssignment(ctx, a))
	return a
}

func TestStart(t *testing.T) {
	engine, st := newEngine(t)
	a := seedAssignment(t, st, "u1", store.DefaultTaskName, store.StatusPendingAck)

	started, err := engine.Start(context.Background(), a.ID, "u1")
	require.NoError(t, err)

	assert.Equal(t, store.StatusActive, started.Status)
	require.NotNil(t, started.StartedAt)
	assert.Equal(t, testNow, *started.StartedAt)
	require.NotNil(t, started.EndsAt)
	assert.Equal(t, time.Date(2026, 8, 20, 11, 0, 0, 0, time.UTC), *started.EndsAt)
}

func TestStart_WrongOwner(t *testing.T) {
	engine, st := newEngine(t)
	a := seedAssignment(t, st, "u1", store.DefaultTaskName, store.StatusPendingAck)

	_, err := engine.Start(context.Background(), a.ID, "intruder")
	assert.ErrorIs(t, err, store.ErrNotOwner)
}

func TestStart_AlreadyActive(t *testing.T) {
	engine, st := newEngine(t)
	a := seedAssignment(t, st, "u1", store.DefaultTaskName, store.StatusActive)

	_, err := engine.Start(context.Background(), a.ID, "u1")
	assert.ErrorIs(t, err, store.ErrInvalidState)
}

func TestComplete_OrdersTimestamps(t *testing.T) {
	engine, st := newEngine(t)
	a := seedAssignment(t, st, "u1", store.DefaultTaskName, store.StatusPendingAck)

	_, err := engine.Start(context.Background(), a.ID, "u1")
	require.NoError(t, err)

	completed, err := engine.Complete(context.Background(), a.ID, "u1")
	require.NoError(t, err)

	assert.Equal(t, store.StatusCompleted, completed.Status)
	require.NotNil(t, completed.StartedAt)
	require.NotNil(t, completed.EndedAt)
	assert.False(t, completed.EndedAt.Before(*completed.StartedAt))
}

func TestComplete_NotStarted(t *testing.T) {
	engine, st := newEngine(t)
	a := seedAssignment(t, st, "u1", store.DefaultTaskName, store.StatusPendingAck)

	_, err := engine.Complete(context.Background(), a.ID, "u1")
	assert.ErrorIs(t, err, store.ErrInvalidState)
}

func TestRequestEdit(t *testing.T) {
	engine, st := newEngine(t)
	a := seedAssignment(t, st, "u1", store.DefaultTaskName, store.StatusActive)

	req, err := engine.RequestEdit(context.Background(), a.ID, "u1",
		map[string]any{"batch": "B-42"}, "wrong batch assigned")
	require.NoError(t, err)

	assert.Equal(t, store.ApprovalPending, req.Status)
	assert.Equal(t, store.ApprovalEdit, req.Type)
	require.NotNil(t, req.Payload.Edit)
	assert.Equal(t, "B-42", req.Payload.Edit.ProposedChanges["batch"])
}

func TestRequestEdit_NotWorking(t *testing.T) {
	engine, st := newEngine(t)
	a := seedAssignment(t, st, "u1", store.DefaultTaskName, store.StatusPendingAck)

	_, err := engine.RequestEdit(context.Background(), a.ID, "u1", map[string]any{"k": "v"}, "r")
	assert.ErrorIs(t, err, store.ErrInvalidState)
}

func TestRequestEdit_Duplicate(t *testing.T) {
	engine, st := newEngine(t)
	a := seedAssignment(t, st, "u1", store.DefaultTaskName, store.StatusActive)

	_, err := engine.RequestEdit(context.Background(), a.ID, "u1", map[string]any{"k": "v"}, "first")
	require.NoError(t, err)

	_, err = engine.RequestEdit(context.Background(), a.ID, "u1", map[string]any{"k": "v2"}, "second")
	assert.ErrorIs(t, err, store.ErrDuplicateRequest)
}

func TestRequestEndEarly_Cooldown(t *testing.T) {
	engine, st := newEngine(t)
	ctx := context.Background()
	a := seedAssignment(t, st, "u1", store.DefaultTaskName, store.StatusActive)

	req, err := engine.RequestEndEarly(ctx, a.ID, "u1", "feeling unwell")
	require.NoError(t, err)
	require.NoError(t, st.ResolveApproval(ctx, req.ID, store.ApprovalDenied, "admin", "no", testNow))

	// Filed again inside the 300s cooldown window.
	_, err = engine.RequestEndEarly(ctx, a.ID, "u1", "still unwell")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wait")
}

func TestResolve_ApproveEdit(t *testing.T) {
	engine, st := newEngine(t)
	ctx := context.Background()
	a := seedAssignment(t, st, "u1", store.DefaultTaskName, store.StatusActive)

	req, err := engine.RequestEdit(ctx, a.ID, "u1", map[string]any{"batch": "B-42"}, "wrong batch")
	require.NoError(t, err)

	resolved, err := engine.Resolve(ctx, req.ID, true, "admin", "ok")
	require.NoError(t, err)
	assert.Equal(t, store.ApprovalApproved, resolved.Status)

	updated, err := st.GetAssignment(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "B-42", updated.Params["batch"])
}

func TestResolve_Deny(t *testing.T) {
	engine, st := newEngine(t)
	ctx := context.Background()
	a := seedAssignment(t, st, "u1", store.DefaultTaskName, store.StatusActive)

	req, err := engine.RequestEdit(ctx, a.ID, "u1", map[string]any{"batch": "B-42"}, "wrong batch")
	require.NoError(t, err)

	resolved, err := engine.Resolve(ctx, req.ID, false, "admin", "keep current batch")
	require.NoError(t, err)
	assert.Equal(t, store.ApprovalDenied, resolved.Status)

	updated, err := st.GetAssignment(ctx, a.ID)
	require.NoError(t, err)
	assert.NotContains(t, updated.Params, "batch")
}

func TestResolve_SecondResolverLoses(t *testing.T) {
	engine, st := newEngine(t)
	ctx := context.Background()
	a := seedAssignment(t, st, "u1", store.DefaultTaskName, store.StatusActive)

	req, err := engine.RequestEndEarly(ctx, a.ID, "u1", "done early")
	require.NoError(t, err)

	_, err = engine.Resolve(ctx, req.ID, true, "admin1", "")
	require.NoError(t, err)

	_, err = engine.Resolve(ctx, req.ID, false, "admin2", "")
	assert.ErrorIs(t, err, store.ErrAlreadyResolved)

	// The winner's effect stands.
	updated, err := st.GetAssignment(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusEndedEarly, updated.Status)
}

func TestResolve_ApproveEndEarly(t *testing.T) {
	engine, st := newEngine(t)
	ctx := context.Background()
	a := seedAssignment(t, st, "u1", store.DefaultTaskName, store.StatusActive)

	req, err := engine.RequestEndEarly(ctx, a.ID, "u1", "done early")
	require.NoError(t, err)

	_, err = engine.Resolve(ctx, req.ID, true, "admin", "")
	require.NoError(t, err)

	updated, err := st.GetAssignment(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusEndedEarly, updated.Status)
	require.NotNil(t, updated.EndedAt)
}

func TestResolve_RejectsBreakRequests(t *testing.T) {
	engine, st := newEngine(t)
	ctx := context.Background()
	a := seedAssignment(t, st, "u1", store.DefaultTaskName, store.StatusActive)

	req := &store.ApprovalRequest{
		UserID:       "u1",
		AssignmentID: a.ID,
		Type:         store.ApprovalBreak15,
		RequestedAt:  testNow,
		Payload:      store.ApprovalPayload{Break: &store.BreakPayload{DurationMinutes: 15}},
	}
	require.NoError(t, st.CreateApproval(ctx, req))

	_, err := engine.Resolve(ctx, req.ID, true, "admin", "")
	assert.ErrorIs(t, err, store.ErrInvalidState)
}
