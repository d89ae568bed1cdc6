package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/songday/internal/cli"
	"github.com/julianstephens/songday/internal/logger"
	"github.com/julianstephens/songday/internal/mailer"
	"github.com/julianstephens/songday/internal/spotify"
	"github.com/julianstephens/songday/internal/storage"
)

var CLI struct {
	Version  kong.VersionFlag
	StateDir string `help:"Base state directory." type:"path" default:"~/.config/songday"`
	Profile  string `help:"Profile name; each profile gets its own state subdirectory." default:"default"`
	Store    string `help:"State file name inside the profile directory (.json or .db)." default:"songday.json"`
	Quiet    bool   `short:"q" help:"Suppress progress output (cron-friendly)."`
	Debug    bool   `help:"Verbose logging, mirrored to stderr."`

	Init     cli.InitCmd     `cmd:"" help:"Initialize songday storage."`
	Poll     cli.PollCmd     `cmd:"" help:"Record current listening activity."`
	Finalize cli.FinalizeCmd `cmd:"" help:"Reconcile the playlist against the day-of-year target."`
	Status   cli.StatusCmd   `cmd:"" help:"Show today's target, playlist size and listening." default:"1"`
	Weekly   cli.WeeklyCmd   `cmd:"" help:"Show (and email) the last week's additions."`
	Config   struct {
		Get cli.ConfigGetCmd `cmd:"" help:"Show settings."`
		Set cli.ConfigSetCmd `cmd:"" help:"Change a setting."`
	} `cmd:"" help:"Manage settings."`
	Backup struct {
		Create  cli.BackupCreateCmd  `cmd:"" help:"Back up the profile state." default:"1"`
		List    cli.BackupListCmd    `cmd:"" help:"List available backups."`
		Restore cli.BackupRestoreCmd `cmd:"" help:"Restore the state from a backup."`
	} `cmd:"" help:"Manage state backups."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("songday"),
		kong.Description("Song-of-the-day playlist curator for Spotify"),
		kong.UsageOnError(),
		kong.Vars{"version": "v0.1.0"},
	)

	stateDir := filepath.Join(CLI.StateDir, CLI.Profile)

	if err := logger.Init(logger.Config{Debug: CLI.Debug, StateDir: stateDir}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not set up logging: %v\n", err)
	}

	// The extension decides the storage backend.
	statePath := filepath.Join(stateDir, CLI.Store)
	var store storage.Provider
	if strings.HasSuffix(statePath, ".json") {
		store = storage.NewJSONStore(statePath)
	} else {
		store = storage.NewSQLiteStore(statePath)
	}

	appCtx := &cli.Context{
		Store:    store,
		StateDir: stateDir,
		Quiet:    CLI.Quiet,
		NewCatalog: func(cctx context.Context) (spotify.Catalog, error) {
			return spotify.Authenticate(cctx, stateDir)
		},
	}

	if err := ctx.Run(appCtx); err != nil {
		notifyFailure(store, ctx.Command(), err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// notifyFailure emails a best-effort alert for an error that escaped a
// command. Any problem here is swallowed; the exit code already tells the
// operator something went wrong.
func notifyFailure(store storage.Provider, command string, runErr error) {
	settings, err := store.GetSettings()
	if err != nil {
		return
	}
	ml := mailer.New(settings)
	if err := ml.SendFailure(command, runErr); err != nil && !errors.Is(err, mailer.ErrDisabled) {
		logger.Warn("could not send failure notification", "error", err)
	}
}
