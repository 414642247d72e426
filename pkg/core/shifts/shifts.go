// Package shifts handles clock-in and clock-out. Shifts run in fixed 9-hour
// windows starting at scheduled local hours; a clock-in inside a scheduled
// window snaps the shift start to the window boundary so hour indexes line up
// across the whole crew.
package shifts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/example/opsdesk/pkg/audit"
	"github.com/example/opsdesk/pkg/store"
)

// DefaultStartHours are the scheduled shift start hours in local time.
var DefaultStartHours = []int{6, 14, 22}

// Store defines the persistence operations the service needs.
type Store interface {
	store.ShiftStore
	store.UserStore
	store.SettingsStore
}

// Service handles shift windows.
type Service struct {
	store      Store
	audit      *audit.Recorder
	logger     *zap.Logger
	now        func() time.Time
	startHours []int
}

// NewService creates a Service. startHours may be nil to use the defaults.
func NewService(st Store, recorder *audit.Recorder, logger *zap.Logger, startHours []int) *Service {
	if len(startHours) == 0 {
		startHours = DefaultStartHours
	}
	return &Service{
		store:      st,
		audit:      recorder,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
		startHours: startHours,
	}
}

// WithClock overrides the service's clock; tests use this to pin time.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ClockIn opens a shift for the user, registering them as an operator if they
// are not yet known. The shift start snaps back to the scheduled window start
// when the clock-in lands inside one.
func (s *Service) ClockIn(ctx context.Context, userID, displayName string) (*store.Shift, error) {
	now := s.now()

	user, err := s.store.GetUser(ctx, userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		user = &store.User{ID: userID, DisplayName: displayName, IsOperator: true}
		if err := s.store.UpsertUser(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to register operator: %w", err)
		}
	case err != nil:
		return nil, err
	case !user.IsOperator:
		return nil, fmt.Errorf("user %s is not an operator: %w", userID, store.ErrInvalidState)
	}

	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	startAt := now
	if scheduled, ok := s.scheduledWindowStart(now, settings.Timezone); ok {
		startAt = scheduled
	}

	shift := &store.Shift{
		UserID:  userID,
		StartAt: startAt,
		TZBase:  settings.Timezone,
	}
	if err := s.store.OpenShift(ctx, shift); err != nil {
		if errors.Is(err, store.ErrInvalidState) {
			return nil, fmt.Errorf("user %s is already clocked in: %w", userID, err)
		}
		return nil, err
	}

	s.audit.Record(ctx, audit.ActionShiftOpened, userID, shift.ID, map[string]any{
		"start_at":   shift.StartAt.Format(time.RFC3339),
		"clocked_at": now.Format(time.RFC3339),
	})
	s.logger.Info("Shift opened",
		zap.String("shift_id", shift.ID),
		zap.String("user_id", userID),
		zap.Time("start_at", shift.StartAt))
	return shift, nil
}

// ClockOut closes the user's open shift.
func (s *Service) ClockOut(ctx context.Context, userID string) (*store.Shift, error) {
	now := s.now()
	shift, err := s.store.CloseShift(ctx, userID, now)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("user %s has no open shift: %w", userID, err)
		}
		return nil, err
	}

	s.audit.Record(ctx, audit.ActionShiftClosed, userID, shift.ID, map[string]any{
		"closed_at":      now.Format(time.RFC3339),
		"duration_hours": now.Sub(shift.StartAt).Hours(),
	})
	s.logger.Info("Shift closed",
		zap.String("shift_id", shift.ID),
		zap.String("user_id", userID))
	return shift, nil
}

// scheduledWindowStart returns the UTC start of the scheduled shift window
// containing now, computed from the daily start-hour recurrence in the base
// timezone. ok is false when now falls outside every window or the timezone
// is unusable.
func (s *Service) scheduledWindowStart(now time.Time, timezone string) (time.Time, bool) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		s.logger.Warn("Unusable base timezone, skipping window snap",
			zap.String("timezone", timezone),
			zap.Error(err))
		return time.Time{}, false
	}

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.DAILY,
		Byhour:  s.startHours,
		Dtstart: time.Date(2020, time.January, 1, 0, 0, 0, 0, loc),
	})
	if err != nil {
		s.logger.Warn("Failed to build shift window recurrence", zap.Error(err))
		return time.Time{}, false
	}

	latest := rule.Before(now.In(loc), true)
	if latest.IsZero() {
		return time.Time{}, false
	}
	if now.Sub(latest) >= store.ShiftHours*time.Hour {
		return time.Time{}, false
	}
	return latest.UTC(), true
}
