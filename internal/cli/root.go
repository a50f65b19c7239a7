// Package cli implements the closer command: reconciliation, daily report
// preparation and the daily close from the terminal.
package cli

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"invclose/internal/app"
	"invclose/internal/config"
	"invclose/internal/core/clock"
	appctx "invclose/internal/core/context"
	"invclose/internal/core/types"
	"invclose/pkg/logger"
)

// ValidFormats are the accepted --format values.
var ValidFormats = []string{"text", "json"}

// RootOptions holds the global flags.
type RootOptions struct {
	ConfigPath string
	Format     string
	Operator   string
}

// Engine is an opened close engine.
type Engine struct {
	Services *app.Services
	Clock    clock.Clock
	Location *time.Location
	Close    func()
}

// Opener builds the engine for one command run.
type Opener func(ctx context.Context, cfg config.Config) (*Engine, error)

// PostgresOpener opens the engine over the configured database.
func PostgresOpener(ctx context.Context, cfg config.Config) (*Engine, error) {
	clk := clock.System{}
	services, pool, err := app.OpenPostgres(ctx, cfg, "invclose-closer", clk)
	if err != nil {
		return nil, err
	}
	return &Engine{Services: services, Clock: clk, Close: pool.Close}, nil
}

// runner is shared by every subcommand.
type runner struct {
	opts *RootOptions
	open Opener
}

// NewRootCommand creates the closer command tree.
func NewRootCommand(open Opener) *cobra.Command {
	r := &runner{opts: &RootOptions{}, open: open}

	cmd := &cobra.Command{
		Use:   "closer",
		Short: "Daily inventory close",
		Long: `Reconcile vouchers against inventory, prepare the daily report and
commit a business day into the inventory master exactly once.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, r.opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", r.opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&r.opts.ConfigPath, "config", "c", "", "YAML config file (default $CONFIG_FILE)")
	cmd.PersistentFlags().StringVar(&r.opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&r.opts.Operator, "operator", "", "operator recorded as executed by (default system)")

	cmd.AddCommand(
		newUnmatchCommand(r),
		newReportCommand(r),
		newHashCommand(r),
		newConfirmCommand(r),
		newCloseCommand(r),
		newCloseDevCommand(r),
		newResetCommand(r),
		newStatusCommand(r),
		newDatasetsCommand(r),
		newHistoryCommand(r),
		newTokenCommand(r),
	)
	return cmd
}

// Execute runs cmd and returns the process exit code. Failures are written
// in the selected format.
func Execute(ctx context.Context, cmd *cobra.Command) int {
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}
	format, _ := cmd.PersistentFlags().GetString("format")
	f := &OutputFormatter{Format: format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr()}
	f.Error(err)
	return ExitCode(err)
}

func (r *runner) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: r.opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr()}
}

// with loads the configuration, opens the engine and runs fn with the
// operator and a logger in the context.
func (r *runner) with(cmd *cobra.Command, fn func(ctx context.Context, e *Engine) error) error {
	cfg, err := r.config()
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "create logger", err)
	}
	defer func() { _ = log.Sync() }()

	ctx := logger.WithLogger(cmd.Context(), log)
	ctx = appctx.WithTrace(ctx, appctx.NewTraceContext(ctx, "", ""))
	if r.opts.Operator != "" {
		ctx = appctx.WithUser(ctx, &appctx.UserContext{UserID: r.opts.Operator, Name: r.opts.Operator})
	}

	e, err := r.open(ctx, cfg)
	if err != nil {
		return err
	}
	if e.Close != nil {
		defer e.Close()
	}
	if e.Location == nil {
		if e.Location, err = cfg.Location(); err != nil {
			return WrapExitError(ExitCommandError, "load config", err)
		}
	}
	return fn(ctx, e)
}

func (r *runner) config() (config.Config, error) {
	cfg, err := config.Load(r.opts.ConfigPath)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "load config", err)
	}
	return cfg, nil
}

// businessDate parses the optional date argument. Without one the current
// date in the close time zone is used.
func businessDate(args []string, e *Engine) (time.Time, error) {
	if len(args) == 0 {
		return types.BusinessDate(e.Clock.Now().In(e.Location)), nil
	}
	d, err := types.ParseBusinessDate(args[0])
	if err != nil {
		return time.Time{}, WrapExitError(ExitCommandError, "business date", err)
	}
	return d, nil
}
