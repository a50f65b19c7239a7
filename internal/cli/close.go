package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"invclose/internal/core/clock"
	appctx "invclose/internal/core/context"
	"invclose/internal/domain/auth"
	"invclose/internal/domain/dailyclose"
)

func newConfirmCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "confirm [date]",
		Short: "Show what a close would check, without running it",
		Long: `Show the report, the latest import, voucher counts and amounts and every
gate a close would apply. Exits 3 when the close could not run now.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.with(cmd, func(ctx context.Context, e *Engine) error {
				date, err := businessDate(args, e)
				if err != nil {
					return err
				}
				conf, err := e.Services.Close.Confirm(ctx, date)
				if err != nil {
					return err
				}
				if err := r.formatter(cmd).Success(conf, func(w io.Writer) error {
					return writeConfirmation(w, conf)
				}); err != nil {
					return err
				}
				if !conf.CanProcess {
					return NewExitError(ExitPolicy, "daily close cannot run")
				}
				return nil
			})
		},
	}
}

func newCloseCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "close [date]",
		Short: "Commit the business day into the inventory master",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.with(cmd, func(ctx context.Context, e *Engine) error {
				date, err := businessDate(args, e)
				if err != nil {
					return err
				}
				out, err := e.Services.Close.Execute(ctx, date, appctx.Operator(ctx))
				if err != nil {
					return err
				}
				return r.formatter(cmd).Success(out, func(w io.Writer) error {
					return writeOutcome(w, out)
				})
			})
		},
	}
}

func newCloseDevCommand(r *runner) *cobra.Command {
	var opts dailyclose.DevOptions
	cmd := &cobra.Command{
		Use:   "close-dev [date]",
		Short: "Close with relaxed gates for development and recovery",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.with(cmd, func(ctx context.Context, e *Engine) error {
				date, err := businessDate(args, e)
				if err != nil {
					return err
				}
				out, err := e.Services.Close.ExecuteDevelopment(ctx, date, appctx.Operator(ctx), opts)
				if err != nil {
					return err
				}
				return r.formatter(cmd).Success(out, func(w io.Writer) error {
					return writeOutcome(w, out)
				})
			})
		},
	}
	cmd.Flags().BoolVar(&opts.SkipValidation, "skip-validation", false, "skip the timing and integrity gates")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "print the plan and write nothing")
	return cmd
}

func newResetCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <date>",
		Short: "Remove a close record that did not pass so the day can be retried",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.with(cmd, func(ctx context.Context, e *Engine) error {
				date, err := businessDate(args, e)
				if err != nil {
					return err
				}
				rec, err := e.Services.Close.ResetFailed(ctx, date)
				if err != nil {
					return err
				}
				return r.formatter(cmd).Success(rec, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "reset %s (was %s)\n", args[0], rec.Status)
					return err
				})
			})
		},
	}
}

func newStatusCommand(r *runner) *cobra.Command {
	var limit int
	var status string
	cmd := &cobra.Command{
		Use:   "status [date]",
		Short: "Show the close record of a date, or recent closes without one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.with(cmd, func(ctx context.Context, e *Engine) error {
				if len(args) == 0 {
					records, err := e.Services.Close.List(ctx, dailyclose.Filter{Status: dailyclose.Status(status), Limit: limit})
					if err != nil {
						return err
					}
					return r.formatter(cmd).Success(records, func(w io.Writer) error {
						return writeCloses(w, records)
					})
				}
				date, err := businessDate(args, e)
				if err != nil {
					return err
				}
				rec, err := e.Services.Close.Get(ctx, date)
				if err != nil {
					return err
				}
				return r.formatter(cmd).Success(rec, func(w io.Writer) error {
					return writeCloses(w, []dailyclose.Record{*rec})
				})
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows without a date")
	cmd.Flags().StringVar(&status, "status", "", "filter by status without a date")
	return cmd
}

func newTokenCommand(r *runner) *cobra.Command {
	var userID, name string
	var roles []string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API token for an operator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := r.config()
			if err != nil {
				return err
			}
			tokens := auth.NewJWTService(auth.JWTConfigFrom(cfg.Auth), clock.System{})
			token, expiresAt, err := tokens.GenerateAccessToken(userID, name, roles)
			if err != nil {
				return WrapExitError(ExitCommandError, "issue token", err)
			}
			data := map[string]any{"token": token, "expiresAt": expiresAt}
			return r.formatter(cmd).Success(data, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, token)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&name, "name", "", "display name recorded as executed by")
	cmd.Flags().StringSliceVar(&roles, "role", []string{"operator"}, "roles (operator, admin)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
