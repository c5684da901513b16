package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/julianstephens/habitkit/internal/analytics"
	"github.com/julianstephens/habitkit/internal/backup"
	"github.com/julianstephens/habitkit/internal/config"
	"github.com/julianstephens/habitkit/internal/habits"
	"github.com/julianstephens/habitkit/internal/ledger"
	"github.com/julianstephens/habitkit/internal/logger"
	"github.com/julianstephens/habitkit/internal/scheduler"
	"github.com/julianstephens/habitkit/internal/storage"
	"github.com/julianstephens/habitkit/internal/storage/sqlite"
	"github.com/julianstephens/habitkit/internal/streaks"
	"github.com/julianstephens/habitkit/internal/utils"
)

type Context struct {
	Store    storage.Provider
	Settings config.Settings
	Clock    utils.Clock
	Out      io.Writer
}

// State is the opened local state shared by the commands.
type State struct {
	Habits    *habits.Repository
	Ledger    *ledger.Ledger
	Evaluator *scheduler.Evaluator
}

// OpenStore picks SQLite for *.db paths and a JSON directory otherwise.
func OpenStore(path string) storage.Provider {
	if strings.HasSuffix(strings.ToLower(path), ".db") {
		return sqlite.NewStore(path)
	}
	return storage.NewJSONStore(path)
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return home + path[1:]
		}
	}
	return path
}

func (c *Context) clock() utils.Clock {
	if c.Clock == nil {
		return utils.SystemClock
	}
	return c.Clock
}

func (c *Context) out() io.Writer {
	if c.Out == nil {
		return os.Stdout
	}
	return c.Out
}

func (c *Context) printf(format string, args ...interface{}) {
	fmt.Fprintf(c.out(), format, args...)
}

func (c *Context) println(args ...interface{}) {
	fmt.Fprintln(c.out(), args...)
}

// Open loads the habit repository and completion ledger.
func (c *Context) Open() (*State, error) {
	repo, err := habits.Open(c.Store, c.clock())
	if err != nil {
		return nil, err
	}
	l, err := ledger.Open(c.Store, c.clock())
	if err != nil {
		return nil, err
	}
	return &State{
		Habits:    repo,
		Ledger:    l,
		Evaluator: scheduler.NewEvaluator(c.clock()),
	}, nil
}

func (s *State) Streaks() *streaks.Calculator {
	return streaks.NewCalculator(s.Habits, s.Ledger, s.Evaluator)
}

func (s *State) Analytics() *analytics.Aggregator {
	return analytics.NewAggregator(s.Habits, s.Ledger, s.Evaluator)
}

// PerformAutomaticBackup creates an automatic backup and silently handles errors
func (c *Context) PerformAutomaticBackup() {
	if _, ok := c.Store.(*storage.MemoryStore); ok {
		return
	}
	mgr := backup.NewManager(c.Store, c.clock())
	if _, err := mgr.CreateBackup(); err != nil {
		logger.Warn("Automatic backup failed", "error", err)
	}
}

// ParseWeekdays parses a comma-separated list of weekdays. "daily" selects
// every day.
func ParseWeekdays(s string) ([]time.Weekday, error) {
	if strings.EqualFold(strings.TrimSpace(s), "daily") {
		return []time.Weekday{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday}, nil
	}

	dayMap := map[string]time.Weekday{
		"sun":       time.Sunday,
		"sunday":    time.Sunday,
		"mon":       time.Monday,
		"monday":    time.Monday,
		"tue":       time.Tuesday,
		"tuesday":   time.Tuesday,
		"wed":       time.Wednesday,
		"wednesday": time.Wednesday,
		"thu":       time.Thursday,
		"thursday":  time.Thursday,
		"fri":       time.Friday,
		"friday":    time.Friday,
		"sat":       time.Saturday,
		"saturday":  time.Saturday,
	}

	var weekdays []time.Weekday
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(strings.ToLower(part))
		if part == "" {
			continue
		}
		if wd, ok := dayMap[part]; ok {
			weekdays = append(weekdays, wd)
			continue
		}
		// Try parsing as number (0=Sunday, 6=Saturday)
		num, err := strconv.Atoi(part)
		if err != nil || num < 0 || num > 6 {
			return nil, fmt.Errorf("invalid weekday: %s", part)
		}
		weekdays = append(weekdays, time.Weekday(num))
	}
	return weekdays, nil
}

// FormatWeekdays renders weekdays as short names.
func FormatWeekdays(days []time.Weekday) string {
	if len(days) == 7 {
		return "daily"
	}
	if len(days) == 0 {
		return "never"
	}
	names := make([]string, 0, len(days))
	for _, d := range days {
		names = append(names, d.String()[:3])
	}
	return strings.Join(names, ",")
}

// ParseTags splits a comma-separated tag list.
func ParseTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// resolveDate parses a YYYY-MM-DD flag, defaulting to today.
func (c *Context) resolveDate(s string) (time.Time, error) {
	if s == "" {
		return utils.StartOfDay(c.clock()()), nil
	}
	day, err := utils.ParseDayKey(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format: %s (expected YYYY-MM-DD)", s)
	}
	return day, nil
}
