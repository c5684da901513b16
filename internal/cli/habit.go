package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/julianstephens/habitkit/internal/constants"
	"github.com/julianstephens/habitkit/internal/models"
	"github.com/julianstephens/habitkit/internal/storage"
)

type HabitCmd struct {
	Add       HabitAddCmd       `cmd:"" help:"Add a new habit."`
	List      HabitListCmd      `cmd:"" help:"List habits."`
	Edit      HabitEditCmd      `cmd:"" help:"Edit a habit."`
	Archive   HabitArchiveCmd   `cmd:"" help:"Archive a habit."`
	Unarchive HabitUnarchiveCmd `cmd:"" help:"Unarchive a habit."`
	Delete    HabitDeleteCmd    `cmd:"" help:"Delete a habit and its completions."`
	Restore   HabitRestoreCmd   `cmd:"" help:"Restore the most recently deleted habit."`
}

// deletedHabit is the undo record kept after a delete.
type deletedHabit struct {
	Habit       models.Habit             `json:"habit"`
	Completions []models.DatedCompletion `json:"completions"`
}

type HabitAddCmd struct {
	Name        string `arg:"" help:"Habit name."`
	Days        string `help:"Target weekdays, e.g. mon,wed,fri or daily." default:"daily"`
	Tags        string `help:"Comma-separated tags."`
	Description string `help:"Optional description."`
	Remind      string `help:"Reminder time in HH:MM."`
}

func (c *HabitAddCmd) Run(ctx *Context) error {
	st, err := ctx.Open()
	if err != nil {
		return err
	}

	if _, err := st.Habits.FindByName(c.Name); err == nil {
		return fmt.Errorf("habit with name %q already exists", c.Name)
	}

	days, err := ParseWeekdays(c.Days)
	if err != nil {
		return err
	}

	h, err := st.Habits.Create(models.HabitAttrs{
		Name:                c.Name,
		Description:         c.Description,
		TargetDays:          days,
		Tags:                ParseTags(c.Tags),
		NotificationEnabled: c.Remind != "",
		NotificationTime:    c.Remind,
	})
	if err != nil {
		return err
	}

	ctx.printf("Added habit: %s (%s)\n", h.Name, FormatWeekdays(h.TargetDays))
	return nil
}

type HabitListCmd struct {
	Archived bool   `help:"Include archived habits."`
	Tag      string `help:"Only show habits with this tag."`
}

func (c *HabitListCmd) Run(ctx *Context) error {
	st, err := ctx.Open()
	if err != nil {
		return err
	}

	shown := 0
	for _, h := range st.Habits.List() {
		if h.Archived && !c.Archived {
			continue
		}
		if c.Tag != "" && !h.HasTag(c.Tag) {
			continue
		}
		status := ""
		if h.Archived {
			status = " [ARCHIVED]"
		}
		tags := ""
		if len(h.Tags) > 0 {
			tags = " #" + strings.Join(h.Tags, " #")
		}
		ctx.printf("%s (%s)%s%s\n", h.Name, FormatWeekdays(h.TargetDays), tags, status)
		shown++
	}

	if shown == 0 {
		ctx.println("No habits found.")
	}
	return nil
}

type HabitEditCmd struct {
	Habit       string  `arg:"" help:"Habit name or id."`
	Name        *string `help:"New name."`
	Days        *string `help:"New target weekdays."`
	Tags        *string `help:"Replace tags (comma-separated)."`
	Description *string `help:"New description."`
	Remind      *string `help:"Reminder time in HH:MM, or empty to disable."`
}

func (c *HabitEditCmd) Run(ctx *Context) error {
	st, err := ctx.Open()
	if err != nil {
		return err
	}

	h, err := st.Habits.FindByName(c.Habit)
	if err != nil {
		return err
	}

	var patch models.HabitPatch
	patch.Name = c.Name
	patch.Description = c.Description
	if c.Days != nil {
		days, err := ParseWeekdays(*c.Days)
		if err != nil {
			return err
		}
		patch.TargetDays = &days
	}
	if c.Tags != nil {
		tags := ParseTags(*c.Tags)
		if tags == nil {
			tags = []string{}
		}
		patch.Tags = &tags
	}
	if c.Remind != nil {
		enabled := *c.Remind != ""
		patch.NotificationEnabled = &enabled
		patch.NotificationTime = c.Remind
	}
	if patch.IsEmpty() {
		return errors.New("nothing to change")
	}

	updated, err := st.Habits.Update(h.ID, patch)
	if err != nil {
		return err
	}
	ctx.printf("Updated habit: %s\n", updated.Name)
	return nil
}

type HabitArchiveCmd struct {
	Name string `arg:"" help:"Habit name to archive."`
}

func (c *HabitArchiveCmd) Run(ctx *Context) error {
	return setArchived(ctx, c.Name, true)
}

type HabitUnarchiveCmd struct {
	Name string `arg:"" help:"Habit name to unarchive."`
}

func (c *HabitUnarchiveCmd) Run(ctx *Context) error {
	return setArchived(ctx, c.Name, false)
}

func setArchived(ctx *Context, name string, archived bool) error {
	st, err := ctx.Open()
	if err != nil {
		return err
	}
	h, err := st.Habits.FindByName(name)
	if err != nil {
		return err
	}
	if h.Archived == archived {
		ctx.printf("Habit %q is already %s\n", h.Name, archivedWord(archived))
		return nil
	}
	if _, err := st.Habits.Update(h.ID, models.HabitPatch{Archived: &archived}); err != nil {
		return err
	}
	ctx.printf("Habit %q %s\n", h.Name, archivedWord(archived))
	return nil
}

func archivedWord(archived bool) string {
	if archived {
		return "archived"
	}
	return "unarchived"
}

type HabitDeleteCmd struct {
	Name string `arg:"" help:"Habit name to delete."`
}

// Run removes the habit, then its completions, and keeps both for restore.
func (c *HabitDeleteCmd) Run(ctx *Context) error {
	st, err := ctx.Open()
	if err != nil {
		return err
	}
	h, err := st.Habits.FindByName(c.Name)
	if err != nil {
		return err
	}

	if _, err := st.Habits.Delete(h.ID); err != nil {
		return err
	}
	removed, err := st.Ledger.RemoveAllForHabit(h.ID)
	if err != nil {
		return err
	}

	data, err := json.Marshal(deletedHabit{Habit: h, Completions: removed})
	if err != nil {
		return fmt.Errorf("failed to encode undo record: %w", err)
	}
	if err := ctx.Store.Put(constants.UndoKey, data); err != nil {
		return fmt.Errorf("failed to save undo record: %w", err)
	}

	ctx.printf("Deleted habit %q and %d completion(s). Use 'habit restore' to undo.\n", h.Name, len(removed))
	return nil
}

type HabitRestoreCmd struct{}

func (c *HabitRestoreCmd) Run(ctx *Context) error {
	data, err := ctx.Store.Get(constants.UndoKey)
	if errors.Is(err, storage.ErrNotFound) {
		return errors.New("nothing to restore")
	}
	if err != nil {
		return err
	}

	var rec deletedHabit
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("undo record is unreadable: %w", err)
	}

	st, err := ctx.Open()
	if err != nil {
		return err
	}
	restored, err := st.Habits.Restore(rec.Habit)
	if err != nil {
		return err
	}
	if !restored {
		return fmt.Errorf("habit %q already exists", rec.Habit.Name)
	}
	n, err := st.Ledger.Restore(rec.Completions)
	if err != nil {
		return err
	}
	if err := ctx.Store.Delete(constants.UndoKey); err != nil {
		return err
	}

	ctx.printf("Restored habit %q with %d completion(s)\n", rec.Habit.Name, n)
	return nil
}
