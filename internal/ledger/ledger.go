// Package ledger stores which habits were completed on which days.
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/julianstephens/habitkit/internal/constants"
	apperrors "github.com/julianstephens/habitkit/internal/errors"
	"github.com/julianstephens/habitkit/internal/logger"
	"github.com/julianstephens/habitkit/internal/models"
	"github.com/julianstephens/habitkit/internal/storage"
	"github.com/julianstephens/habitkit/internal/utils"
)

// Ledger maps day keys to completions. A habit appears at most once per day.
type Ledger struct {
	mu    sync.RWMutex
	store storage.Provider
	now   utils.Clock
	days  map[string][]models.Completion
}

// Open loads the ledger from store. Legacy entries are upgraded in memory
// and written back in the structured shape on the next mutation.
func Open(store storage.Provider, clock utils.Clock) (*Ledger, error) {
	if clock == nil {
		clock = utils.SystemClock
	}
	l := &Ledger{
		store: store,
		now:   clock,
		days:  map[string][]models.Completion{},
	}

	data, err := store.Get(constants.CompletionsKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return l, nil
	case err != nil:
		return nil, fmt.Errorf("failed to load completions: %w", err)
	}

	days, upgraded, err := decodeDays(data)
	if err != nil {
		logger.Warn("completion storage unreadable, starting empty", "error", err)
		return l, nil
	}
	if upgraded > 0 {
		logger.Info("upgraded legacy completion entries", "count", upgraded)
	}
	l.days = days
	return l, nil
}

// Toggle flips the completion of habitID on the day containing date and
// returns the new state. Dates after today are rejected.
func (l *Ledger) Toggle(habitID string, date time.Time) (bool, error) {
	if strings.TrimSpace(habitID) == "" {
		return false, apperrors.Validation("habitId", "must not be empty")
	}

	now := l.now()
	key := utils.DayKey(date)
	today := utils.DayKey(now)
	if key > today {
		return false, &apperrors.FutureDateError{DayKey: key, Today: today}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.cloneDays()
	entries := next[key]
	for i, e := range entries {
		if e.HabitID == habitID {
			entries = append(entries[:i], entries[i+1:]...)
			if len(entries) == 0 {
				delete(next, key)
			} else {
				next[key] = entries
			}
			return false, l.persist(next)
		}
	}

	next[key] = append(entries, models.Completion{HabitID: habitID, CompletedAt: now.UTC()})
	if err := l.persist(next); err != nil {
		return false, err
	}
	return true, nil
}

// IsCompleted reports whether habitID has an entry under dayKey.
func (l *Ledger) IsCompleted(habitID, dayKey string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, e := range l.days[dayKey] {
		if e.HabitID == habitID {
			return true
		}
	}
	return false
}

// EntriesForDay returns the completions recorded under dayKey.
func (l *Ledger) EntriesForDay(dayKey string) []models.Completion {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return append([]models.Completion(nil), l.days[dayKey]...)
}

// RemoveAllForHabit deletes every entry for habitID and returns the removed
// entries. Days left empty are dropped.
func (l *Ledger) RemoveAllForHabit(habitID string) ([]models.DatedCompletion, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var removed []models.DatedCompletion
	next := make(map[string][]models.Completion, len(l.days))
	for key, entries := range l.days {
		var kept []models.Completion
		for _, e := range entries {
			if e.HabitID == habitID {
				removed = append(removed, models.DatedCompletion{HabitID: e.HabitID, DayKey: key, CompletedAt: e.CompletedAt})
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) > 0 {
			next[key] = kept
		}
	}

	if len(removed) == 0 {
		return nil, nil
	}
	sortDated(removed)
	if err := l.persist(next); err != nil {
		return nil, err
	}
	return removed, nil
}

// Restore adds entries that are not already present. It returns the number added.
func (l *Ledger) Restore(entries []models.DatedCompletion) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.cloneDays()
	added := 0
	for _, c := range entries {
		if c.HabitID == "" || containsHabit(next[c.DayKey], c.HabitID) {
			continue
		}
		if _, err := utils.ParseDayKey(c.DayKey); err != nil {
			return 0, apperrors.Validation("dayKey", err.Error())
		}
		next[c.DayKey] = append(next[c.DayKey], models.Completion{HabitID: c.HabitID, CompletedAt: c.CompletedAt.UTC()})
		added++
	}
	if added == 0 {
		return 0, nil
	}
	return added, l.persist(next)
}

// All returns every completion in day-key then habit-id order.
func (l *Ledger) All() []models.DatedCompletion {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []models.DatedCompletion
	for key, entries := range l.days {
		for _, e := range entries {
			out = append(out, models.DatedCompletion{HabitID: e.HabitID, DayKey: key, CompletedAt: e.CompletedAt})
		}
	}
	sortDated(out)
	return out
}

// ReplaceAll overwrites the ledger with entries, typically a sync baseline.
func (l *Ledger) ReplaceAll(entries []models.DatedCompletion) error {
	next := make(map[string][]models.Completion)
	for _, c := range entries {
		if c.HabitID == "" || containsHabit(next[c.DayKey], c.HabitID) {
			continue
		}
		if _, err := utils.ParseDayKey(c.DayKey); err != nil {
			return apperrors.Validation("dayKey", err.Error())
		}
		next[c.DayKey] = append(next[c.DayKey], models.Completion{HabitID: c.HabitID, CompletedAt: c.CompletedAt.UTC()})
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.persist(next)
}

func (l *Ledger) cloneDays() map[string][]models.Completion {
	out := make(map[string][]models.Completion, len(l.days))
	for k, v := range l.days {
		out[k] = append([]models.Completion(nil), v...)
	}
	return out
}

func (l *Ledger) persist(next map[string][]models.Completion) error {
	data, err := encodeDays(next)
	if err != nil {
		return err
	}
	if err := l.store.Put(constants.CompletionsKey, data); err != nil {
		return fmt.Errorf("failed to save completions: %w", err)
	}
	l.days = next
	return nil
}

func containsHabit(entries []models.Completion, habitID string) bool {
	for _, e := range entries {
		if e.HabitID == habitID {
			return true
		}
	}
	return false
}

func sortDated(cs []models.DatedCompletion) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].DayKey != cs[j].DayKey {
			return cs[i].DayKey < cs[j].DayKey
		}
		return cs[i].HabitID < cs[j].HabitID
	})
}
