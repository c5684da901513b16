// Package reminder schedules habit reminders on a cron.
//
// A Service owns all of its timers; nothing is held at package level, so
// several services can run side by side.
package reminder

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/julianstephens/habitkit/internal/logger"
	"github.com/julianstephens/habitkit/internal/models"
	"github.com/julianstephens/habitkit/internal/utils"
)

// deliverTimeout bounds a single delivery.
const deliverTimeout = 30 * time.Second

// Payload is what a deliverer receives when a reminder fires.
type Payload struct {
	HabitID   string
	HabitName string
	At        string
}

// Deliverer sends a reminder to the user.
type Deliverer interface {
	Deliver(ctx context.Context, p Payload) error
}

// LogDeliverer writes reminders to the log.
type LogDeliverer struct{}

func (LogDeliverer) Deliver(_ context.Context, p Payload) error {
	logger.Info("habit reminder", "habit", p.HabitName, "id", p.HabitID, "at", p.At)
	return nil
}

// Handle identifies a scheduled reminder.
type Handle cron.EntryID

type Service struct {
	mu      sync.Mutex
	cron    *cron.Cron
	deliver Deliverer
	byHabit map[string]Handle
}

// NewService evaluates schedules in loc. A nil loc means UTC.
func NewService(d Deliverer, loc *time.Location) *Service {
	if d == nil {
		d = LogDeliverer{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		cron:    cron.New(cron.WithLocation(loc)),
		deliver: d,
		byHabit: make(map[string]Handle),
	}
}

// CronSpec returns the five-field schedule for h, or false when h should not
// be reminded.
func CronSpec(h models.Habit) (string, bool) {
	if h.Archived || !h.NotificationEnabled || h.NotificationTime == "" || len(h.TargetDays) == 0 {
		return "", false
	}
	t, err := utils.ParseTime(h.NotificationTime)
	if err != nil {
		return "", false
	}

	days := make([]int, 0, len(h.TargetDays))
	for _, d := range h.TargetDays {
		days = append(days, int(d))
	}
	sort.Ints(days)
	parts := make([]string, 0, len(days))
	for _, d := range days {
		parts = append(parts, strconv.Itoa(d))
	}
	return fmt.Sprintf("%d %d * * %s", t.Minute(), t.Hour(), strings.Join(parts, ",")), true
}

// Schedule runs delivery of p on spec until cancelled.
func (s *Service) Schedule(spec string, p Payload) (Handle, error) {
	id, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
		defer cancel()
		if err := s.deliver.Deliver(ctx, p); err != nil {
			logger.Warn("failed to deliver reminder", "habit", p.HabitID, "error", err)
		}
	})
	if err != nil {
		return 0, fmt.Errorf("failed to schedule reminder %q: %w", spec, err)
	}
	return Handle(id), nil
}

// Cancel removes a scheduled reminder. Unknown handles are ignored.
func (s *Service) Cancel(h Handle) {
	s.cron.Remove(cron.EntryID(h))
}

// SyncHabits replaces every habit reminder with those derived from habits
// and returns how many are scheduled.
func (s *Service) SyncHabits(habits []models.Habit) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, h := range s.byHabit {
		s.Cancel(h)
		delete(s.byHabit, id)
	}

	for _, h := range habits {
		spec, ok := CronSpec(h)
		if !ok {
			continue
		}
		handle, err := s.Schedule(spec, Payload{HabitID: h.ID, HabitName: h.Name, At: h.NotificationTime})
		if err != nil {
			return len(s.byHabit), err
		}
		s.byHabit[h.ID] = handle
	}

	logger.Debug("reminders synced", "count", len(s.byHabit))
	return len(s.byHabit), nil
}

// Next returns when h fires next, or the zero time if it is not scheduled
// or the service has not started.
func (s *Service) Next(h Handle) time.Time {
	return s.cron.Entry(cron.EntryID(h)).Next
}

// HandleFor returns the reminder scheduled for a habit by SyncHabits.
func (s *Service) HandleFor(habitID string) (Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.byHabit[habitID]
	return h, ok
}

func (s *Service) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for running deliveries.
func (s *Service) Stop() {
	<-s.cron.Stop().Done()
}
