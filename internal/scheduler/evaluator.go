package scheduler

import (
	"time"

	"github.com/julianstephens/habitkit/internal/models"
	"github.com/julianstephens/habitkit/internal/utils"
)

// Evaluator decides whether a habit is due on a day. Streaks, analytics and
// the today view all go through it so they agree on what "scheduled" means.
type Evaluator struct {
	now utils.Clock
}

// NewEvaluator returns an evaluator reading "today" from clock.
func NewEvaluator(clock utils.Clock) *Evaluator {
	if clock == nil {
		clock = utils.SystemClock
	}
	return &Evaluator{now: clock}
}

// IsDue reports whether h is scheduled on the UTC day containing date.
// Archived habits are never due, nor is any day before the habit existed.
func (e *Evaluator) IsDue(h models.Habit, date time.Time) bool {
	if h.Archived {
		return false
	}
	if utils.DayKey(date) < utils.DayKey(h.CreatedAt) {
		return false
	}
	return h.TargetsWeekday(utils.WeekdayOf(date))
}

// IsFuture reports whether date falls on a day after today.
func (e *Evaluator) IsFuture(date time.Time) bool {
	return utils.DayKey(date) > utils.DayKey(e.now())
}

// Today returns UTC midnight of the current day.
func (e *Evaluator) Today() time.Time {
	return utils.StartOfDay(e.now())
}

// DueOn filters habits to those due on date, preserving order.
func (e *Evaluator) DueOn(habits []models.Habit, date time.Time) []models.Habit {
	var out []models.Habit
	for _, h := range habits {
		if e.IsDue(h, date) {
			out = append(out, h)
		}
	}
	return out
}
