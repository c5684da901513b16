package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/julianstephens/habitkit/internal/keyring"
	"github.com/julianstephens/habitkit/internal/logger"
	"github.com/julianstephens/habitkit/internal/models"
	"github.com/julianstephens/habitkit/internal/remote"
	"github.com/julianstephens/habitkit/internal/syncer"
)

type SyncCmd struct {
	URL         string `help:"Server URL (overrides settings)."`
	ServerMerge bool   `help:"Send the whole local state in one request and let the server merge it."`
}

func (c *SyncCmd) Run(ctx *Context) error {
	client, err := ctx.remoteClient(c.URL)
	if err != nil {
		return err
	}

	st, err := ctx.Open()
	if err != nil {
		return err
	}
	local := models.Snapshot{Habits: st.Habits.List(), Completions: st.Ledger.All()}

	var (
		merged models.Snapshot
		report syncer.Report
	)
	if c.ServerMerge {
		resp, err := client.Merge(context.Background(), local)
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
		merged = syncer.Normalize(resp.Snapshot)
		report = syncer.Report{
			HabitsCreated:       resp.Report.HabitsCreated,
			HabitsUpdated:       resp.Report.HabitsUpdated,
			CompletionsCreated:  resp.Report.CompletionsCreated,
			CompletionsRejected: resp.Report.CompletionsRejected,
		}
	} else {
		merged, report, err = syncer.NewEngine(client).Sync(context.Background(), local)
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
	}

	ctx.PerformAutomaticBackup()
	if err := st.Habits.ReplaceAll(merged.Habits); err != nil {
		return fmt.Errorf("failed to save synced habits: %w", err)
	}
	if err := st.Ledger.ReplaceAll(merged.Completions); err != nil {
		return fmt.Errorf("failed to save synced completions: %w", err)
	}

	logger.Info("local state replaced with sync result", "habits", len(merged.Habits), "completions", len(merged.Completions))
	ctx.printf("Synced: %d habit(s) created, %d updated, %d completion(s) pushed",
		report.HabitsCreated, report.HabitsUpdated, report.CompletionsCreated)
	if report.CompletionsRejected > 0 {
		ctx.printf(", %d rejected by the server", report.CompletionsRejected)
	}
	ctx.printf("\nLocal state: %d habit(s), %d completion(s)\n", len(merged.Habits), len(merged.Completions))
	return nil
}

func (c *Context) remoteClient(override string) (*remote.Client, error) {
	url := override
	if url == "" {
		url = c.Settings.Remote.URL
	}
	if url == "" {
		return nil, errors.New("no remote configured; set remote.url in settings or HABITKIT_REMOTE_URL")
	}

	token, err := keyring.GetToken()
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, errors.New("not logged in; run 'habitkit login --token <token>'")
		}
		return nil, err
	}

	var opts []remote.Option
	if c.Settings.Remote.Timeout > 0 {
		opts = append(opts, remote.WithTimeout(c.Settings.Remote.Timeout))
	}
	return remote.New(url, token, opts...)
}
