package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/habitkit/internal/cli"
	"github.com/julianstephens/habitkit/internal/config"
	"github.com/julianstephens/habitkit/internal/constants"
	apperrors "github.com/julianstephens/habitkit/internal/errors"
	"github.com/julianstephens/habitkit/internal/logger"
)

var CLI struct {
	Version  kong.VersionFlag
	Config   string `help:"Data path. Paths ending in .db use SQLite, anything else a JSON directory." type:"string" default:"~/.config/habitkit/habitkit.db"`
	Settings string `help:"Settings YAML file." type:"string" default:"~/.config/habitkit/config.yaml"`
	Debug    bool   `help:"Log debug output to stderr."`

	Init   cli.InitCmd   `cmd:"" help:"Initialize habitkit storage."`
	Habit  cli.HabitCmd  `cmd:"" help:"Manage habits."`
	Mark   cli.MarkCmd   `cmd:"" help:"Toggle a habit's completion for a day."`
	Today  cli.TodayCmd  `cmd:"" help:"Show habits due today." default:"1"`
	Streak cli.StreakCmd `cmd:"" help:"Show current and longest streak."`
	Stats  cli.StatsCmd  `cmd:"" help:"Show completion statistics."`
	Backup cli.BackupCmd `cmd:"" help:"Manage local backups."`
	Login  cli.LoginCmd  `cmd:"" help:"Store the server auth token."`
	Logout cli.LogoutCmd `cmd:"" help:"Remove the stored auth token."`
	Sync   cli.SyncCmd   `cmd:"" help:"Sync local state with the server."`
	Remind cli.RemindCmd `cmd:"" help:"Run habit reminders."`
	Serve  cli.ServeCmd  `cmd:"" help:"Run the habitkit server."`
	Token  cli.TokenCmd  `cmd:"" help:"Manage server auth tokens."`
}

// Commands that never touch local storage.
var storeless = map[string]bool{
	"init":   true,
	"login":  true,
	"logout": true,
	"serve":  true,
	"token":  true,
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("Local-first habit tracker with sync"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{"version": "v0.1.0"},
	)

	command := strings.Fields(ctx.Command())[0]

	dataPath := cli.ExpandPath(CLI.Config)
	if err := logger.Init(logger.Config{
		ConfigDir: filepath.Dir(dataPath),
		Debug:     CLI.Debug,
		Stderr:    command == "serve" || command == "remind",
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}

	settings, err := config.Load(cli.ExpandPath(CLI.Settings))
	apperrors.Fatal(err)

	store := cli.OpenStore(dataPath)
	appCtx := &cli.Context{
		Store:    store,
		Settings: settings,
	}

	// Load the store before running the command (Init command will handle its own loading)
	if !storeless[command] {
		apperrors.Fatal(store.Load())
		defer store.Close()
	}

	apperrors.Fatal(ctx.Run(appCtx), store.Close)
}
