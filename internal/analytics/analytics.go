// Package analytics derives completion statistics from habits and the ledger.
// Every result is recomputed from current state; nothing is cached.
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/julianstephens/habitkit/internal/models"
	"github.com/julianstephens/habitkit/internal/scheduler"
	"github.com/julianstephens/habitkit/internal/utils"
)

// HabitLister provides the habit collection.
type HabitLister interface {
	List() []models.Habit
}

// CompletionSource answers completion membership queries.
type CompletionSource interface {
	IsCompleted(habitID, dayKey string) bool
}

// Bucket aggregates scheduled and completed counts for a day or a month.
// DayKey is YYYY-MM-DD for days and YYYY-MM for months.
type Bucket struct {
	Date           time.Time `json:"date"`
	DayKey         string    `json:"dayKey"`
	ScheduledCount int       `json:"scheduledCount"`
	CompletedCount int       `json:"completedCount"`
}

// Rate is a whole-number completion percentage with its inputs.
type Rate struct {
	Rate      int `json:"rate"`
	Scheduled int `json:"scheduled"`
	Completed int `json:"completed"`
}

// HabitStat is a per-habit rate over a window.
type HabitStat struct {
	Habit     models.Habit `json:"habit"`
	Scheduled int          `json:"scheduled"`
	Completed int          `json:"completed"`
	Rate      int          `json:"rate"`
}

type Aggregator struct {
	habits HabitLister
	done   CompletionSource
	eval   *scheduler.Evaluator
}

func NewAggregator(habits HabitLister, done CompletionSource, eval *scheduler.Evaluator) *Aggregator {
	return &Aggregator{habits: habits, done: done, eval: eval}
}

// RatePercent rounds 100*completed/scheduled half-up, and is 0 when nothing
// was scheduled.
func RatePercent(completed, scheduled int) int {
	if scheduled <= 0 {
		return 0
	}
	return int(math.Floor(100*float64(completed)/float64(scheduled) + 0.5))
}

// tally counts due and completed habits on one day.
func (a *Aggregator) tally(habits []models.Habit, day time.Time) (scheduled, completed int) {
	key := utils.DayKey(day)
	for _, h := range habits {
		if !a.eval.IsDue(h, day) {
			continue
		}
		scheduled++
		if a.done.IsCompleted(h.ID, key) {
			completed++
		}
	}
	return scheduled, completed
}

// CompletionTimeline returns one bucket per day for the last days days,
// oldest first and ending today.
func (a *Aggregator) CompletionTimeline(days int) []Bucket {
	if days <= 0 {
		return []Bucket{}
	}

	habits := a.habits.List()
	today := a.eval.Today()
	out := make([]Bucket, 0, days)
	for i := days - 1; i >= 0; i-- {
		day := utils.AddDays(today, -i)
		s, c := a.tally(habits, day)
		out = append(out, Bucket{Date: day, DayKey: utils.DayKey(day), ScheduledCount: s, CompletedCount: c})
	}
	return out
}

// CompletionTimelineByMonth returns one bucket per month, oldest first,
// ending with the current month. With months <= 0 the range starts at the
// month of the earliest habit. Days after today are never counted.
func (a *Aggregator) CompletionTimelineByMonth(months int) []Bucket {
	habits := a.habits.List()
	today := a.eval.Today()
	current := utils.StartOfMonth(today)

	start := current
	if months > 0 {
		start = current.AddDate(0, -(months - 1), 0)
	} else {
		for _, h := range habits {
			if m := utils.StartOfMonth(h.CreatedAt); m.Before(start) {
				start = m
			}
		}
	}

	var out []Bucket
	for month := start; !month.After(current); month = month.AddDate(0, 1, 0) {
		b := Bucket{Date: month, DayKey: utils.MonthKey(month)}
		next := month.AddDate(0, 1, 0)
		for day := month; day.Before(next) && !day.After(today); day = day.AddDate(0, 0, 1) {
			s, c := a.tally(habits, day)
			b.ScheduledCount += s
			b.CompletedCount += c
		}
		out = append(out, b)
	}
	return out
}

// MonthlyCompletionRate covers the first of the current month through today.
func (a *Aggregator) MonthlyCompletionRate() Rate {
	habits := a.habits.List()
	today := a.eval.Today()

	var r Rate
	for day := utils.StartOfMonth(today); !day.After(today); day = day.AddDate(0, 0, 1) {
		s, c := a.tally(habits, day)
		r.Scheduled += s
		r.Completed += c
	}
	r.Rate = RatePercent(r.Completed, r.Scheduled)
	return r
}

// HeatmapData returns CompletionTimeline(days) unchanged.
func (a *Aggregator) HeatmapData(days int) []Bucket {
	return a.CompletionTimeline(days)
}

// HabitStats rates each non-archived habit over the last days days, sorted
// by rate then completed count, both descending.
func (a *Aggregator) HabitStats(days int) []HabitStat {
	today := a.eval.Today()

	var out []HabitStat
	for _, h := range a.habits.List() {
		if h.Archived {
			continue
		}
		stat := HabitStat{Habit: h}
		for i := 0; i < days; i++ {
			day := utils.AddDays(today, -i)
			if !a.eval.IsDue(h, day) {
				continue
			}
			stat.Scheduled++
			if a.done.IsCompleted(h.ID, utils.DayKey(day)) {
				stat.Completed++
			}
		}
		stat.Rate = RatePercent(stat.Completed, stat.Scheduled)
		out = append(out, stat)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Rate != out[j].Rate {
			return out[i].Rate > out[j].Rate
		}
		return out[i].Completed > out[j].Completed
	})
	return out
}
