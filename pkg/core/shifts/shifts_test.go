package shifts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/opsdesk/pkg/audit"
	"github.com/example/opsdesk/pkg/store"
	"github.com/example/opsdesk/pkg/store/memstore"
)

func newService(t *testing.T, now time.Time) (*Service, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	ctx := context.Background()

	// UTC base keeps the scheduled windows independent of DST.
	settings, err := st.GetSettings(ctx)
	require.NoError(t, err)
	settings.Timezone = "UTC"
	require.NoError(t, st.UpdateSettings(ctx, settings))

	logger := zap.NewNop()
	svc := NewService(st, audit.NewRecorder(st, logger), logger, nil).
		WithClock(func() time.Time { return now })
	return svc, st
}

func TestClockIn_SnapsToScheduledWindow(t *testing.T) {
	// 15:30 falls inside the 14:00 window.
	svc, _ := newService(t, time.Date(2026, 8, 20, 15, 30, 0, 0, time.UTC))

	shift, err := svc.ClockIn(context.Background(), "u1", "Avery")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 20, 14, 0, 0, 0, time.UTC), shift.StartAt)
	assert.Equal(t, "UTC", shift.TZBase)
}

func TestClockIn_MidnightWindowCrossesDays(t *testing.T) {
	// 01:00 is still inside the previous day's 22:00 window.
	svc, _ := newService(t, time.Date(2026, 8, 21, 1, 0, 0, 0, time.UTC))

	shift, err := svc.ClockIn(context.Background(), "u1", "Avery")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 20, 22, 0, 0, 0, time.UTC), shift.StartAt)
}

func TestClockIn_RegistersNewOperator(t *testing.T) {
	svc, st := newService(t, time.Date(2026, 8, 20, 15, 30, 0, 0, time.UTC))
	ctx := context.Background()

	_, err := svc.ClockIn(ctx, "u1", "Avery")
	require.NoError(t, err)

	user, err := st.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Avery", user.DisplayName)
	assert.True(t, user.IsOperator)
}

func TestClockIn_RejectsNonOperators(t *testing.T) {
	svc, st := newService(t, time.Date(2026, 8, 20, 15, 30, 0, 0, time.UTC))
	ctx := context.Background()
	require.NoError(t, st.UpsertUser(ctx, &store.User{ID: "admin1", DisplayName: "Admin", IsOperator: false}))

	_, err := svc.ClockIn(ctx, "admin1", "Admin")
	assert.ErrorIs(t, err, store.ErrInvalidState)
}

func TestClockIn_Twice(t *testing.T) {
	svc, _ := newService(t, time.Date(2026, 8, 20, 15, 30, 0, 0, time.UTC))
	ctx := context.Background()

	_, err := svc.ClockIn(ctx, "u1", "Avery")
	require.NoError(t, err)

	_, err = svc.ClockIn(ctx, "u1", "Avery")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrInvalidState)
	assert.Contains(t, err.Error(), "already clocked in")
}

func TestClockOut(t *testing.T) {
	now := time.Date(2026, 8, 20, 15, 30, 0, 0, time.UTC)
	svc, st := newService(t, now)
	ctx := context.Background()

	opened, err := svc.ClockIn(ctx, "u1", "Avery")
	require.NoError(t, err)

	closed, err := svc.ClockOut(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, opened.ID, closed.ID)
	require.NotNil(t, closed.EndAt)
	assert.Equal(t, now, *closed.EndAt)

	entries, err := st.ListAudit(ctx, store.AuditFilter{Action: audit.ActionShiftClosed})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestClockOut_NoOpenShift(t *testing.T) {
	svc, _ := newService(t, time.Date(2026, 8, 20, 15, 30, 0, 0, time.UTC))

	_, err := svc.ClockOut(context.Background(), "u1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
