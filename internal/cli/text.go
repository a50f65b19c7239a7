package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"invclose/internal/core/types"
	"invclose/internal/domain/dailyclose"
	"invclose/internal/domain/dailyreport"
	"invclose/internal/domain/dataset"
	"invclose/internal/domain/history"
	"invclose/internal/domain/voucher"
)

const timeLayout = "2006-01-02 15:04:05"

func table(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(timeLayout)
}

func writeReport(w io.Writer, r dailyreport.Result) error {
	state := "prepared"
	if r.Reused {
		state = "reused"
	}
	if _, err := fmt.Fprintf(w, "daily report %s %s\ndataset %s\nhash    %s\n",
		types.FormatDate(r.BusinessDate), state, r.DatasetID, r.DataHash); err != nil {
		return err
	}
	if s := r.Summary; s != nil {
		_, err := fmt.Fprintf(w, "rows    %d copied, %d created, %d touched, %d lines skipped\n",
			s.CopiedRows, s.CreatedRows, s.TouchedRows, s.SkippedLines)
		return err
	}
	return nil
}

func writeConfirmation(w io.Writer, c *dailyclose.Confirmation) error {
	fmt.Fprintf(w, "business date  %s\n", types.FormatDate(c.BusinessDate))
	fmt.Fprintf(w, "current time   %s\n", c.CurrentTime.Format(timeLayout))
	if c.Report != nil {
		fmt.Fprintf(w, "report         %s by %s at %s\n", c.Report.DatasetID, c.Report.ExecutedBy, formatTime(c.Report.CompletedAt))
		fmt.Fprintf(w, "report hash    %s\n", c.Report.DataHash)
	}
	if c.LatestImport != nil {
		fmt.Fprintf(w, "latest import  by %s at %s\n", c.LatestImport.ExecutedBy, formatTime(c.LatestImport.CompletedAt))
	}
	fmt.Fprintf(w, "current hash   %s\n", c.CurrentHash)
	for _, kind := range []voucher.Kind{voucher.KindSales, voucher.KindPurchase, voucher.KindAdjustment} {
		fmt.Fprintf(w, "%-14s %d lines\n", kind, c.Counts[kind])
	}
	fmt.Fprintf(w, "sales          %s\n", c.Amounts.Sales.StringFixed(types.AmountScale))
	fmt.Fprintf(w, "purchase       %s\n", c.Amounts.Purchase.StringFixed(types.AmountScale))
	fmt.Fprintf(w, "gross profit   %s\n", c.Amounts.EstimatedGrossProfit.StringFixed(types.AmountScale))
	for _, m := range c.Messages {
		line := fmt.Sprintf("[%s] %s", m.Level, m.Message)
		if m.Detail != "" {
			line += ": " + m.Detail
		}
		fmt.Fprintln(w, line)
	}
	_, err := fmt.Fprintf(w, "can process    %t\n", c.CanProcess)
	return err
}

func writeOutcome(w io.Writer, out dailyclose.Outcome) error {
	switch {
	case out.Plan != nil:
		p := out.Plan
		ds := "-"
		if p.DatasetID != nil {
			ds = p.DatasetID.String()
		}
		fmt.Fprintf(w, "%s %s\ndataset       %s\nhash          %s\nsnapshot rows %d\nmaster rows   %d\nnew keys      %d\nskipped       %d\n",
			out.Status, types.FormatDate(p.BusinessDate), ds, p.DataHash, p.SnapshotRows, p.MasterRows, p.NewKeys, p.Skipped)
		for _, warning := range p.Warnings {
			fmt.Fprintf(w, "[WARNING] %s\n", warning)
		}
		return nil
	case out.Record != nil:
		rec := out.Record
		_, err := fmt.Fprintf(w, "%s %s\nstatus        %s\ndataset       %s\nhash          %s\nbackup        %s\nrows applied  %d\ndeactivated   %d\n",
			out.Status, types.FormatDate(rec.BusinessDate), rec.Status, rec.DatasetID, rec.DataHash,
			rec.BackupPath, rec.RowsApplied, rec.RowsDeactivated)
		return err
	}
	_, err := fmt.Fprintln(w, out.Status)
	return err
}

func writeCloses(w io.Writer, records []dailyclose.Record) error {
	tw := table(w)
	fmt.Fprintln(tw, "DATE\tSTATUS\tDATASET\tPROCESSED BY\tPROCESSED AT\tAPPLIED\tDEACTIVATED\tREMARKS")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			types.FormatDate(r.BusinessDate), r.Status, r.DatasetID, r.ProcessedBy,
			r.ProcessedAt.Format(timeLayout), r.RowsApplied, r.RowsDeactivated, r.Remarks)
	}
	return tw.Flush()
}

func writeDatasets(w io.Writer, records []dataset.Record) error {
	tw := table(w)
	fmt.Fprintln(tw, "DATE\tPROCESS\tDATASET\tCREATED BY\tCREATED AT")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			types.FormatDate(r.BusinessDate), r.ProcessType, r.ID, r.CreatedBy, r.CreatedAt.Format(timeLayout))
	}
	return tw.Flush()
}

func writeHistory(w io.Writer, entries []history.Entry) error {
	tw := table(w)
	fmt.Fprintln(tw, "DATE\tPROCESS\tSTATUS\tEXECUTED BY\tSTARTED\tCOMPLETED\tREMARK")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			types.FormatDate(e.BusinessDate), e.ProcessType, e.Status, e.ExecutedBy,
			e.StartedAt.Format(timeLayout), formatTime(e.CompletedAt), e.Remark)
	}
	return tw.Flush()
}
