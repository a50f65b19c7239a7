package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	appctx "invclose/internal/core/context"
	"invclose/internal/core/types"
	"invclose/internal/domain/dailyreport"
	"invclose/internal/domain/unmatch"
	"invclose/internal/infrastructure/http/v1/dto"
)

func newUnmatchCommand(r *runner) *cobra.Command {
	var failOnFindings bool
	cmd := &cobra.Command{
		Use:   "unmatch [date]",
		Short: "List voucher lines that reference no inventory record",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.with(cmd, func(ctx context.Context, e *Engine) error {
				date, err := businessDate(args, e)
				if err != nil {
					return err
				}
				res, err := e.Services.Detector.Detect(ctx, date, appctx.Operator(ctx))
				if err != nil {
					return err
				}
				if err := r.formatter(cmd).Success(res, func(w io.Writer) error {
					return unmatch.Render(w, res)
				}); err != nil {
					return err
				}
				if failOnFindings && !res.Empty() {
					return NewExitError(ExitPolicy, fmt.Sprintf("%d unmatched voucher lines", res.Count()))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&failOnFindings, "fail-on-findings", false, "exit 3 when unmatched lines exist")
	return cmd
}

func newReportCommand(r *runner) *cobra.Command {
	var rebuild bool
	cmd := &cobra.Command{
		Use:   "report [date]",
		Short: "Prepare the daily report snapshot the close commits",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.with(cmd, func(ctx context.Context, e *Engine) error {
				date, err := businessDate(args, e)
				if err != nil {
					return err
				}
				res, err := e.Services.Reports.Prepare(ctx, date, appctx.Operator(ctx), dailyreport.Options{Rebuild: rebuild})
				if err != nil {
					return err
				}
				return r.formatter(cmd).Success(res, func(w io.Writer) error {
					return writeReport(w, res)
				})
			})
		},
	}
	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "issue a new dataset even when the current one is valid")
	return cmd
}

func newHashCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "hash [date]",
		Short: "Print the content hash of the day's vouchers",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.with(cmd, func(ctx context.Context, e *Engine) error {
				date, err := businessDate(args, e)
				if err != nil {
					return err
				}
				hash, err := e.Services.Validator.ComputeContentHash(ctx, date)
				if err != nil {
					return err
				}
				res := dto.HashResponse{BusinessDate: types.FormatDate(date), DataHash: hash}
				return r.formatter(cmd).Success(res, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "%s %s\n", res.BusinessDate, res.DataHash)
					return err
				})
			})
		},
	}
}

// listFlags are shared by datasets and history.
type listFlags struct {
	date        string
	processType string
	limit       int
}

func (l *listFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&l.date, "date", "", "business date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&l.processType, "process-type", "", "IMPORT, UNMATCH_LIST, DAILY_REPORT or DAILY_CLOSE")
	cmd.Flags().IntVar(&l.limit, "limit", 50, "maximum rows")
}

func newDatasetsCommand(r *runner) *cobra.Command {
	var flags listFlags
	cmd := &cobra.Command{
		Use:   "datasets",
		Short: "List dataset records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := dto.DatasetListRequest{Date: flags.date, ProcessType: flags.processType, Limit: flags.limit}.ToFilter()
			if err != nil {
				return WrapExitError(ExitCommandError, "filter", err)
			}
			return r.with(cmd, func(ctx context.Context, e *Engine) error {
				records, err := e.Services.Authority.GetAll(ctx, filter)
				if err != nil {
					return err
				}
				return r.formatter(cmd).Success(dto.NewListResponse(records), func(w io.Writer) error {
					return writeDatasets(w, records)
				})
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newHistoryCommand(r *runner) *cobra.Command {
	var flags listFlags
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List process history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := dto.HistoryListRequest{Date: flags.date, ProcessType: flags.processType, Limit: flags.limit}.ToFilter()
			if err != nil {
				return WrapExitError(ExitCommandError, "filter", err)
			}
			return r.with(cmd, func(ctx context.Context, e *Engine) error {
				entries, err := e.Services.Recorder.List(ctx, filter)
				if err != nil {
					return err
				}
				return r.formatter(cmd).Success(dto.NewListResponse(entries), func(w io.Writer) error {
					return writeHistory(w, entries)
				})
			})
		},
	}
	flags.register(cmd)
	return cmd
}
