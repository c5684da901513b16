// Package streaks computes consecutive-completion runs over scheduled days.
package streaks

import (
	"github.com/julianstephens/habitkit/internal/constants"
	"github.com/julianstephens/habitkit/internal/models"
	"github.com/julianstephens/habitkit/internal/scheduler"
	"github.com/julianstephens/habitkit/internal/utils"
)

// HabitSource looks up habits by id.
type HabitSource interface {
	Get(id string) (models.Habit, error)
}

// CompletionSource answers completion membership queries.
type CompletionSource interface {
	IsCompleted(habitID, dayKey string) bool
}

// Calculator computes streaks looking back StreakHorizonDays from today.
// Days on which a habit is not due neither extend nor break a streak.
type Calculator struct {
	habits  HabitSource
	done    CompletionSource
	eval    *scheduler.Evaluator
	horizon int
}

func NewCalculator(habits HabitSource, done CompletionSource, eval *scheduler.Evaluator) *Calculator {
	return &Calculator{
		habits:  habits,
		done:    done,
		eval:    eval,
		horizon: constants.StreakHorizonDays,
	}
}

// CurrentStreak counts consecutive due-and-completed days ending today. An
// incomplete today does not break the streak since the day is not over.
// Unknown habits have a streak of 0.
func (c *Calculator) CurrentStreak(habitID string) int {
	h, err := c.habits.Get(habitID)
	if err != nil {
		return 0
	}

	today := c.eval.Today()
	streak := 0
	for i := 0; i < c.horizon; i++ {
		day := utils.AddDays(today, -i)
		if !c.eval.IsDue(h, day) {
			continue
		}
		if c.done.IsCompleted(h.ID, utils.DayKey(day)) {
			streak++
			continue
		}
		if i == 0 {
			continue
		}
		break
	}
	return streak
}

// LongestStreak is the longest run of due-and-completed days within the
// horizon ending today.
func (c *Calculator) LongestStreak(habitID string) int {
	h, err := c.habits.Get(habitID)
	if err != nil {
		return 0
	}

	today := c.eval.Today()
	longest, run := 0, 0
	for i := c.horizon - 1; i >= 0; i-- {
		day := utils.AddDays(today, -i)
		if !c.eval.IsDue(h, day) {
			continue
		}
		if c.done.IsCompleted(h.ID, utils.DayKey(day)) {
			run++
			if run > longest {
				longest = run
			}
			continue
		}
		run = 0
	}
	return longest
}
