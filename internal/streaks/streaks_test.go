package streaks

import (
	"fmt"
	"testing"
	"time"

	"github.com/julianstephens/habitkit/internal/models"
	"github.com/julianstephens/habitkit/internal/scheduler"
	"github.com/julianstephens/habitkit/internal/utils"
)

type habitMap map[string]models.Habit

func (m habitMap) Get(id string) (models.Habit, error) {
	h, ok := m[id]
	if !ok {
		return models.Habit{}, fmt.Errorf("not found")
	}
	return h, nil
}

type doneSet map[string]bool

func (d doneSet) IsCompleted(habitID, dayKey string) bool {
	return d[habitID+"|"+dayKey]
}

func (d doneSet) mark(habitID string, days ...string) {
	for _, day := range days {
		d[habitID+"|"+day] = true
	}
}

func setupCalculator(today time.Time, habits ...models.Habit) (*Calculator, doneSet) {
	m := habitMap{}
	for _, h := range habits {
		m[h.ID] = h
	}
	done := doneSet{}
	return NewCalculator(m, done, scheduler.NewEvaluator(utils.FixedClock(today))), done
}

var meditation = models.Habit{
	ID:         "meditation",
	TargetDays: []time.Weekday{time.Monday, time.Wednesday, time.Friday},
	CreatedAt:  time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC), // Monday
}

func TestStreaksWithMissedDay(t *testing.T) {
	calc, done := setupCalculator(time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC), meditation)
	done.mark("meditation", "2024-01-01", "2024-01-03", "2024-01-08") // 01-05 missed

	if got := calc.CurrentStreak("meditation"); got != 1 {
		t.Errorf("CurrentStreak() = %d, want 1", got)
	}
	if got := calc.LongestStreak("meditation"); got != 2 {
		t.Errorf("LongestStreak() = %d, want 2", got)
	}
}

func TestCurrentStreakTodayPending(t *testing.T) {
	calc, done := setupCalculator(time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC), meditation)
	done.mark("meditation", "2024-01-01", "2024-01-03", "2024-01-05")

	if got := calc.CurrentStreak("meditation"); got != 3 {
		t.Errorf("CurrentStreak() = %d, want 3 with today still open", got)
	}
}

func TestCurrentStreakBrokenYesterday(t *testing.T) {
	daily := models.Habit{
		ID:         "daily",
		TargetDays: []time.Weekday{0, 1, 2, 3, 4, 5, 6},
		CreatedAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	calc, done := setupCalculator(time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC), daily)
	done.mark("daily", "2024-01-05", "2024-01-06", "2024-01-07", "2024-01-08")

	if got := calc.CurrentStreak("daily"); got != 0 {
		t.Errorf("CurrentStreak() = %d, want 0 after a missed yesterday", got)
	}
	if got := calc.LongestStreak("daily"); got != 4 {
		t.Errorf("LongestStreak() = %d, want 4", got)
	}
}

func TestStreaksUnknownAndArchived(t *testing.T) {
	archived := meditation
	archived.ID = "archived"
	archived.Archived = true

	calc, done := setupCalculator(time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC), archived)
	done.mark("archived", "2024-01-01", "2024-01-03", "2024-01-05", "2024-01-08")

	if got := calc.CurrentStreak("missing"); got != 0 {
		t.Errorf("unknown habit streak = %d, want 0", got)
	}
	if got := calc.CurrentStreak("archived"); got != 0 {
		t.Errorf("archived habit streak = %d, want 0", got)
	}
	if got := calc.LongestStreak("archived"); got != 0 {
		t.Errorf("archived habit longest = %d, want 0", got)
	}
}

func TestCompletionsOnUnscheduledDaysIgnored(t *testing.T) {
	calc, done := setupCalculator(time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC), meditation)
	done.mark("meditation", "2024-01-02", "2024-01-04", "2024-01-06", "2024-01-07")

	if got := calc.LongestStreak("meditation"); got != 0 {
		t.Errorf("LongestStreak() = %d, want 0", got)
	}
}

func TestHorizonBoundsLookback(t *testing.T) {
	daily := models.Habit{
		ID:         "daily",
		TargetDays: []time.Weekday{0, 1, 2, 3, 4, 5, 6},
		CreatedAt:  time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	today := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	calc, done := setupCalculator(today, daily)
	for i := 0; i < 500; i++ {
		done.mark("daily", utils.DayKey(utils.AddDays(today, -i)))
	}

	if got := calc.CurrentStreak("daily"); got != 365 {
		t.Errorf("CurrentStreak() = %d, want 365", got)
	}
	if got := calc.LongestStreak("daily"); got != 365 {
		t.Errorf("LongestStreak() = %d, want 365", got)
	}
}

func TestLongestStreakKeepsEarlierLongerRun(t *testing.T) {
	daily := models.Habit{
		ID:         "run",
		TargetDays: []time.Weekday{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday},
		CreatedAt:  time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
	}
	calc, done := setupCalculator(time.Date(2024, 1, 9, 12, 0, 0, 0, time.UTC), daily)
	done.mark("run", "2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05")
	done.mark("run", "2024-01-07", "2024-01-08", "2024-01-09") // 01-06 missed

	if got := calc.LongestStreak("run"); got != 5 {
		t.Errorf("LongestStreak() = %d, want 5", got)
	}
	if got := calc.CurrentStreak("run"); got != 3 {
		t.Errorf("CurrentStreak() = %d, want 3", got)
	}
}
