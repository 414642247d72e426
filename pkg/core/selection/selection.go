// Package selection holds the pure scheduling-policy functions: comms-lead
// rotation, pooled task choice, staffing math and hour-index arithmetic.
// Nothing here touches the store or the clock; every function is
// deterministic given its inputs.
package selection

import (
	"sort"
	"time"

	"github.com/example/opsdesk/pkg/store"
)

// SelectCommsLead picks the least-recently-used comms lead from the on-shift
// operators. A nil LastCommsLeadAt sorts earliest (never served), and user ID
// breaks ties so repeated calls are deterministic. Returns nil for an empty
// input.
func SelectCommsLead(operators []store.User) *store.User {
	if len(operators) == 0 {
		return nil
	}
	if len(operators) == 1 {
		return &operators[0]
	}

	sorted := make([]store.User, len(operators))
	copy(sorted, operators)
	sort.Slice(sorted, func(i, j int) bool {
		ti := lastServed(&sorted[i])
		tj := lastServed(&sorted[j])
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return sorted[i].ID < sorted[j].ID
	})
	return &sorted[0]
}

func lastServed(u *store.User) time.Time {
	if u.LastCommsLeadAt == nil {
		return time.Time{}
	}
	return *u.LastCommsLeadAt
}

// TaskChoice is the result of a pool selection.
type TaskChoice struct {
	Template *store.TaskTemplate
	InWindow bool
	// WindowWarning describes why the choice is outside its validity window;
	// empty when InWindow. The window is a soft constraint: the caller logs
	// the warning but the selection stands.
	WindowWarning string
}

// SelectTaskFromPool picks the best active template: priority ascending, then
// in-window templates before out-of-window ones, then oldest created_at.
// Returns nil if no active templates exist.
func SelectTaskFromPool(templates []store.TaskTemplate, now time.Time) *TaskChoice {
	type candidate struct {
		tpl      store.TaskTemplate
		inWindow bool
		warning  string
	}

	var candidates []candidate
	for _, tpl := range templates {
		if !tpl.IsActive {
			continue
		}
		c := candidate{tpl: tpl, inWindow: true}
		switch {
		case tpl.WindowStart != nil && now.Before(*tpl.WindowStart):
			c.inWindow = false
			c.warning = "task window opens at " + tpl.WindowStart.UTC().Format("2006-01-02 15:04 UTC")
		case tpl.WindowEnd != nil && now.After(*tpl.WindowEnd):
			c.inWindow = false
			c.warning = "task window closed at " + tpl.WindowEnd.UTC().Format("2006-01-02 15:04 UTC")
		}
		candidates = append(candidates, c)
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		ci, cj := candidates[i], candidates[j]
		if ci.tpl.Priority != cj.tpl.Priority {
			return ci.tpl.Priority < cj.tpl.Priority
		}
		if ci.inWindow != cj.inWindow {
			return ci.inWindow
		}
		return ci.tpl.CreatedAt.Before(cj.tpl.CreatedAt)
	})

	best := candidates[0]
	return &TaskChoice{
		Template:      &best.tpl,
		InWindow:      best.inWindow,
		WindowWarning: best.warning,
	}
}

// CheckMinimumStaffing reports whether removing the requesting user from duty
// still satisfies the staffing floor. It counts ACTIVE and COVERING
// assignments excluding the requester and compares against minRequired;
// exactly minRequired remaining passes.
func CheckMinimumStaffing(currentActive []store.Assignment, requestingUserID string, minRequired int) bool {
	count := 0
	for i := range currentActive {
		a := &currentActive[i]
		if a.IsWorking() && a.UserID != requestingUserID {
			count++
		}
	}
	return count >= minRequired
}

// BreakImpact describes what granting a break would do to coverage and
// staffing for the requesting user's hour.
type BreakImpact struct {
	UserTask             string
	NeedsCoverage        bool
	AvailableForCoverage int
	TotalActiveBefore    int
	TotalActiveAfter     int
}

// CalculateBreakImpact derives whether the requester's task needs coverage
// (a non-pooled task that is currently being worked) and how many
// default-task operators could provide it.
func CalculateBreakImpact(assignments []store.Assignment, breakUserID string) BreakImpact {
	var impact BreakImpact
	var userAssignment *store.Assignment

	for i := range assignments {
		a := &assignments[i]
		if a.UserID == breakUserID {
			userAssignment = a
		}
		if a.IsWorking() {
			impact.TotalActiveBefore++
			if a.TaskName == store.DefaultTaskName && a.UserID != breakUserID {
				impact.AvailableForCoverage++
			}
		}
	}

	impact.TotalActiveAfter = impact.TotalActiveBefore
	if userAssignment != nil {
		impact.UserTask = userAssignment.TaskName
		if userAssignment.IsWorking() {
			impact.TotalActiveAfter--
		}
		impact.NeedsCoverage = userAssignment.TaskName != store.DefaultTaskName && userAssignment.IsWorking()
	}
	return impact
}

// CoverageCandidates filters hour assignments down to operators currently
// ACTIVE on the default pooled task, excluding the given user. These are the
// operators escalation and break coverage may draw from.
func CoverageCandidates(assignments []store.Assignment, excludeUserID string) []store.Assignment {
	var out []store.Assignment
	for _, a := range assignments {
		if a.Status == store.StatusActive && a.TaskName == store.DefaultTaskName && a.UserID != excludeUserID {
			out = append(out, a)
		}
	}
	return out
}

// HourIndex computes the 1-based hour number within a 9-hour shift, clamped
// to [1, ShiftHours]. A shift that started at 06:00 is in hour 2 at 07:00
// and still hour 9 at 15:00.
func HourIndex(shiftStart, now time.Time) int {
	elapsed := now.Sub(shiftStart)
	idx := int(elapsed/time.Hour) + 1
	if idx < 1 {
		return 1
	}
	if idx > store.ShiftHours {
		return store.ShiftHours
	}
	return idx
}

// NextHourBoundary returns the top of the next hour in UTC; assignments
// default their ends_at to this.
func NextHourBoundary(now time.Time) time.Time {
	return now.UTC().Truncate(time.Hour).Add(time.Hour)
}

// ShiftTimeRemaining returns how much of the 9-hour shift is left, zero once
// the shift window has elapsed.
func ShiftTimeRemaining(shiftStart, now time.Time) time.Duration {
	end := shiftStart.Add(store.ShiftHours * time.Hour)
	if !now.Before(end) {
		return 0
	}
	return end.Sub(now)
}
