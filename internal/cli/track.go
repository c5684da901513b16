package cli

import (
	"github.com/julianstephens/habitkit/internal/utils"
)

type MarkCmd struct {
	Name string `arg:"" help:"Habit name or id."`
	Date string `help:"Date in YYYY-MM-DD format (default: today)." default:""`
}

func (c *MarkCmd) Run(ctx *Context) error {
	st, err := ctx.Open()
	if err != nil {
		return err
	}
	h, err := st.Habits.FindByName(c.Name)
	if err != nil {
		return err
	}
	day, err := ctx.resolveDate(c.Date)
	if err != nil {
		return err
	}

	done, err := st.Ledger.Toggle(h.ID, day)
	if err != nil {
		return err
	}
	if done {
		ctx.printf("Marked habit %q for %s\n", h.Name, utils.DayKey(day))
	} else {
		ctx.printf("Unmarked habit %q for %s\n", h.Name, utils.DayKey(day))
	}
	return nil
}

type TodayCmd struct {
	Date string `help:"Show another day (YYYY-MM-DD)." default:""`
}

func (c *TodayCmd) Run(ctx *Context) error {
	st, err := ctx.Open()
	if err != nil {
		return err
	}
	day, err := ctx.resolveDate(c.Date)
	if err != nil {
		return err
	}

	due := st.Evaluator.DueOn(st.Habits.List(), day)
	key := utils.DayKey(day)
	if len(due) == 0 {
		ctx.printf("No habits due on %s.\n", key)
		return nil
	}

	calc := st.Streaks()
	ctx.printf("Habits for %s:\n\n", key)
	recorded := 0
	for _, h := range due {
		status := "[ ]"
		if st.Ledger.IsCompleted(h.ID, key) {
			status = "[x]"
			recorded++
		}
		ctx.printf("%s %s  (streak %d)\n", status, h.Name, calc.CurrentStreak(h.ID))
	}
	ctx.printf("\nRecorded: %d/%d\n", recorded, len(due))
	return nil
}

type StreakCmd struct {
	Name string `arg:"" help:"Habit name or id."`
}

func (c *StreakCmd) Run(ctx *Context) error {
	st, err := ctx.Open()
	if err != nil {
		return err
	}
	h, err := st.Habits.FindByName(c.Name)
	if err != nil {
		return err
	}

	calc := st.Streaks()
	ctx.printf("%s\n  current: %d\n  longest: %d\n", h.Name, calc.CurrentStreak(h.ID), calc.LongestStreak(h.ID))
	return nil
}
