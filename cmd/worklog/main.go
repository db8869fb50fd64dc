package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/baiirun/worklog/internal/attachment"
	"github.com/baiirun/worklog/internal/config"
	"github.com/baiirun/worklog/internal/db"
	"github.com/baiirun/worklog/internal/engine"
	"github.com/baiirun/worklog/internal/logging"
	"github.com/baiirun/worklog/internal/model"
	"github.com/baiirun/worklog/internal/telemetry"
)

var version = "dev"

// Persistent flags.
var (
	flagConfig       string
	flagDB           string
	flagAs           string
	flagRole         string
	flagJSON         bool
	flagRequireProof bool
	flagLogLevel     string
)

// app is what a command needs once the root has loaded configuration.
type app struct {
	cfg       *config.Config
	db        *db.DB
	files     *attachment.FileStore
	svc       *engine.Service
	logger    *slog.Logger
	telemetry *telemetry.Providers
}

func (a *app) actor() model.Actor { return a.cfg.Actor }

func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.telemetry != nil {
		errs = append(errs, a.telemetry.Shutdown(ctx))
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}

// current is set by the root's PersistentPreRunE.
var current *app

var rootCmd = &cobra.Command{
	Use:   "worklog",
	Short: "Hierarchical work-item tracking with an audited history",
	Long: `worklog tracks projects, main tasks, sub-tasks and issues.

Every change is authorized against the acting user's role and assignments and
appended to the item's timeline. Main task progress is always derived from
its sub-tasks.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if current == nil {
			return nil
		}
		err := current.close(context.Background())
		current = nil
		return err
	},
}

// overrides maps explicitly set flags onto config keys.
func overrides(flags *pflag.FlagSet) map[string]any {
	out := make(map[string]any)
	set := func(name, key string, val any) {
		if f := flags.Lookup(name); f != nil && f.Changed {
			out[key] = val
		}
	}
	set("db", config.KeyDB, flagDB)
	set("as", config.KeyActorID, flagAs)
	set("role", config.KeyActorRole, flagRole)
	set("require-proof", config.KeyRequireCompletionProof, flagRequireProof)
	set("log-level", config.KeyLogLevel, flagLogLevel)
	return out
}

func setup(ctx context.Context, stderr io.Writer) (*app, error) {
	cfg, err := config.Load(flagConfig, overrides(rootCmd.PersistentFlags()))
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	providers, err := telemetry.Init(ctx, telemetry.Options{
		Enabled: cfg.Telemetry.Enabled,
		Stdout:  cfg.Telemetry.Stdout,
		Writer:  stderr,
		Version: version,
	})
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, telemetry: providers}

	a.db, err = db.Open(cfg.DB)
	if err != nil {
		_ = a.close(ctx)
		return nil, err
	}
	if err := a.db.Init(); err != nil {
		_ = a.close(ctx)
		return nil, err
	}

	a.files, err = attachment.NewFileStore(cfg.AttachmentsDir)
	if err != nil {
		_ = a.close(ctx)
		return nil, err
	}

	a.svc, err = engine.New(a.db, a.db, a.db, a.files, engine.Options{
		RequireCompletionProof: cfg.RequireCompletionProof,
		RequestTimeout:         cfg.RequestTimeout,
		Logger:                 logger,
		Tracer:                 telemetry.Tracer(""),
		Meter:                  telemetry.Meter(""),
	})
	if err != nil {
		_ = a.close(ctx)
		return nil, err
	}
	logger.Debug("ready", "db", cfg.DB, "actor", cfg.Actor.ID, "role", cfg.Actor.Role)
	return a, nil
}

// exitCode maps an engine error kind to a stable process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, engine.ErrAuthorization):
		return 3
	case errors.Is(err, engine.ErrNotFound):
		return 4
	case errors.Is(err, engine.ErrPrecondition):
		return 5
	case errors.Is(err, engine.ErrConflict):
		return 6
	case errors.Is(err, engine.ErrDependency):
		return 7
	}
	return 1
}

func init() {
	// Assigned here rather than in the rootCmd literal: setup reads
	// rootCmd's flags, which would otherwise form an initialization cycle.
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd.Context(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		current = a
		return nil
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "config file (default ~/.worklog/config.yaml)")
	pf.StringVar(&flagDB, "db", "", "database path (default ~/.worklog/worklog.db)")
	pf.StringVar(&flagAs, "as", "", "acting user id (default $USER)")
	pf.StringVar(&flagRole, "role", "", "acting user role: supervisor, member or viewer")
	pf.BoolVar(&flagJSON, "json", false, "output JSON")
	pf.BoolVar(&flagRequireProof, "require-proof", false, "require proof when completing sub-tasks")
	pf.StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn or error")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(issueCmd)
	rootCmd.AddCommand(attachCmd)
	rootCmd.AddCommand(progressCmd)
	rootCmd.AddCommand(timelineCmd)
	rootCmd.AddCommand(remindersCmd)
	rootCmd.AddCommand(browseCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(exitCode(err))
	}
}
