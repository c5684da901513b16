package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/julianstephens/habitkit/internal/reminder"
	"github.com/julianstephens/habitkit/internal/utils"
)

type RemindCmd struct {
	List bool `help:"Print the reminder schedule and exit."`
}

func (c *RemindCmd) Run(ctx *Context) error {
	if !ctx.Settings.Reminders.Enabled {
		return errors.New("reminders are disabled in settings")
	}

	st, err := ctx.Open()
	if err != nil {
		return err
	}
	habits := st.Habits.List()

	if c.List {
		shown := 0
		for _, h := range habits {
			if spec, ok := reminder.CronSpec(h); ok {
				ctx.printf("%-20s %s  (%s)\n", h.Name, h.NotificationTime, spec)
				shown++
			}
		}
		if shown == 0 {
			ctx.println("No reminders scheduled.")
		}
		return nil
	}

	loc, err := utils.LoadLocation(ctx.Settings.Reminders.Timezone)
	if err != nil {
		return err
	}
	svc := reminder.NewService(reminder.LogDeliverer{}, loc)
	n, err := svc.SyncHabits(habits)
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc.Start()
	ctx.printf("Scheduled %d reminder(s); press Ctrl+C to stop\n", n)
	<-runCtx.Done()
	svc.Stop()
	return nil
}
