// Package integrity guards the daily close: it fingerprints the day's
// voucher content and enforces the close time window.
package integrity

import (
	"cmp"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"slices"
	"strings"
	"time"

	"invclose/internal/core/apperror"
	"invclose/internal/core/clock"
	"invclose/internal/core/id"
	"invclose/internal/core/types"
	"invclose/internal/domain/dataset"
	"invclose/internal/domain/history"
	"invclose/internal/domain/voucher"
)

// Timing check names reported in TIMING_VIOLATION details.
const (
	CheckCutoff         = "cutoff"
	CheckReportCooldown = "report_cooldown"
	CheckImportCooldown = "import_cooldown"
)

// NoRecordedHash warns that the daily report left no hash to compare with.
const NoRecordedHash = "no content hash recorded by the daily report"

// TimingPolicy configures the close time window. Each check can be
// disabled on its own.
type TimingPolicy struct {
	CutoffHour     int
	ReportCooldown time.Duration
	ImportCooldown time.Duration
	Location       *time.Location

	EnforceCutoff         bool
	EnforceReportCooldown bool
	EnforceImportCooldown bool
}

// DefaultTimingPolicy is cutoff 15:00, 30 minutes after the report and
// 5 minutes after the latest import, all enforced.
func DefaultTimingPolicy() TimingPolicy {
	return TimingPolicy{
		CutoffHour:            15,
		ReportCooldown:        30 * time.Minute,
		ImportCooldown:        5 * time.Minute,
		Location:              time.UTC,
		EnforceCutoff:         true,
		EnforceReportCooldown: true,
		EnforceImportCooldown: true,
	}
}

// Result of a data integrity check.
type Result struct {
	Valid        bool                   `json:"valid"`
	ExpectedHash string                 `json:"expectedHash"`
	CurrentHash  string                 `json:"currentHash"`
	ReportedAt   *time.Time             `json:"reportedAt,omitempty"`
	Changes      map[voucher.Kind]int   `json:"changes,omitempty"`
	Counts       map[voucher.Kind]int64 `json:"counts"`
	Warnings     []string               `json:"warnings,omitempty"`
}

// Summary renders the per-kind changes as one line.
func (r Result) Summary() string {
	if r.ExpectedHash == "" {
		return NoRecordedHash
	}
	var parts []string
	for _, k := range []voucher.Kind{voucher.KindSales, voucher.KindPurchase, voucher.KindAdjustment} {
		if n := r.Changes[k]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", k, n))
		}
	}
	if len(parts) == 0 {
		return "content hash differs"
	}
	return "modified after report: " + strings.Join(parts, ", ")
}

// Validator computes content hashes and enforces timing and integrity.
type Validator struct {
	vouchers voucher.Set
	history  *history.Recorder
	clock    clock.Clock
	timing   TimingPolicy
}

// NewValidator creates a validator.
func NewValidator(vouchers voucher.Set, recorder *history.Recorder, clk clock.Clock, timing TimingPolicy) *Validator {
	if timing.Location == nil {
		timing.Location = time.UTC
	}
	return &Validator{
		vouchers: vouchers,
		history:  recorder,
		clock:    clk,
		timing:   timing,
	}
}

// ComputeContentHash fingerprints every voucher line of date. Lines are
// ordered sales by id, purchases by id, adjustments by voucher id then line
// number, so the hash does not depend on storage order.
func (v *Validator) ComputeContentHash(ctx context.Context, date time.Time) (string, error) {
	date = types.BusinessDate(date)
	sales, purchases, adjustments, err := v.vouchers.Lines(ctx, date)
	if err != nil {
		return "", fmt.Errorf("load vouchers for hash: %w", err)
	}
	return ContentHash(sales, purchases, adjustments), nil
}

// ContentHash is the base64 SHA-256 of the canonical voucher content.
func ContentHash(sales, purchases, adjustments []voucher.Line) string {
	byID := func(a, b voucher.Line) int { return cmp.Compare(a.ID, b.ID) }
	sales = slices.Clone(sales)
	purchases = slices.Clone(purchases)
	adjustments = slices.Clone(adjustments)
	slices.SortStableFunc(sales, byID)
	slices.SortStableFunc(purchases, byID)
	slices.SortStableFunc(adjustments, func(a, b voucher.Line) int {
		return cmp.Or(cmp.Compare(a.VoucherID, b.VoucherID), cmp.Compare(a.LineNumber, b.LineNumber))
	})

	var b strings.Builder
	for _, l := range sales {
		fmt.Fprintf(&b, "SALES:%d,%s,%s,%s\n", l.ID, l.ProductCode, types.Canonical(l.Quantity), types.Canonical(l.Amount))
	}
	for _, l := range purchases {
		fmt.Fprintf(&b, "PURCHASE:%d,%s,%s,%s\n", l.ID, l.ProductCode, types.Canonical(l.Quantity), types.Canonical(l.Amount))
	}
	for _, l := range adjustments {
		fmt.Fprintf(&b, "ADJUST:%s-%d,%s,%s,%s\n", l.VoucherID, l.LineNumber, l.ProductCode, types.Canonical(l.Quantity), types.Canonical(l.Amount))
	}

	sum := sha256.Sum256([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// ValidateProcessingTime enforces the cutoff hour and the cooldowns after
// the daily report of reportDatasetID and after the latest import.
func (v *Validator) ValidateProcessingTime(ctx context.Context, date time.Time, reportDatasetID id.ID) error {
	date = types.BusinessDate(date)
	now := v.clock.Now()

	// The cutoff is a time of day, whatever business date is being closed.
	if local := now.In(v.timing.Location); v.timing.EnforceCutoff && local.Hour() < v.timing.CutoffHour {
		return apperror.NewTimingViolation(CheckCutoff,
			fmt.Sprintf("Daily close is allowed from %02d:00 %s, now %s", v.timing.CutoffHour, local.Format("MST"), local.Format("15:04"))).
			WithDetail("now", local.Format(time.RFC3339)).
			WithDetail("cutoff_hour", v.timing.CutoffHour)
	}

	if v.timing.EnforceReportCooldown {
		ds := reportDatasetID
		report, err := v.history.LatestCompleted(ctx, date, dataset.ProcessDailyReport, &ds)
		if err != nil {
			return err
		}
		if err := v.cooldown(CheckReportCooldown, "daily report", report, v.timing.ReportCooldown, now); err != nil {
			return err
		}
	}

	if v.timing.EnforceImportCooldown {
		imp, err := v.history.LatestCompleted(ctx, date, dataset.ProcessImport, nil)
		if err != nil {
			return err
		}
		if err := v.cooldown(CheckImportCooldown, "import", imp, v.timing.ImportCooldown, now); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) cooldown(check, what string, e *history.Entry, wait time.Duration, now time.Time) error {
	if e == nil || e.CompletedAt == nil {
		return nil
	}
	elapsed := now.Sub(*e.CompletedAt)
	if elapsed >= wait {
		return nil
	}
	return apperror.NewTimingViolation(check,
		fmt.Sprintf("Last %s completed %d minutes ago, wait %d minutes", what, int(elapsed.Minutes()), int(wait.Minutes()))).
		WithDetail("completed_at", e.CompletedAt.Format(time.RFC3339)).
		WithDetail("elapsed_minutes", int(elapsed.Minutes())).
		WithDetail("required_minutes", int(wait.Minutes()))
}

// ValidateDataIntegrity compares the current content hash with the hash the
// daily report of reportDatasetID recorded. Without a recorded hash there is
// nothing to compare: the result stays valid and carries a warning. When
// invalid, Changes counts lines modified after the report.
func (v *Validator) ValidateDataIntegrity(ctx context.Context, date time.Time, reportDatasetID id.ID) (Result, error) {
	date = types.BusinessDate(date)

	ds := reportDatasetID
	report, err := v.history.LatestCompleted(ctx, date, dataset.ProcessDailyReport, &ds)
	if err != nil {
		return Result{}, err
	}

	current, err := v.ComputeContentHash(ctx, date)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		CurrentHash: current,
		Counts:      make(map[voucher.Kind]int64, 3),
	}
	if report != nil {
		res.ExpectedHash = report.DataHash
		res.ReportedAt = report.CompletedAt
	}
	res.Valid = res.ExpectedHash == "" || res.ExpectedHash == res.CurrentHash
	if res.ExpectedHash == "" {
		res.Warnings = append(res.Warnings, NoRecordedHash)
	}

	for _, repo := range v.vouchers.All() {
		n, err := repo.CountByDate(ctx, date)
		if err != nil {
			return Result{}, fmt.Errorf("count %s vouchers: %w", repo.Kind(), err)
		}
		res.Counts[repo.Kind()] = n
		if n == 0 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("no %s vouchers for %s", repo.Kind(), types.FormatDate(date)))
		}
	}

	if !res.Valid && res.ReportedAt != nil {
		res.Changes = make(map[voucher.Kind]int, 3)
		for _, repo := range v.vouchers.All() {
			modified, err := repo.GetModifiedAfter(ctx, date, *res.ReportedAt)
			if err != nil {
				return Result{}, fmt.Errorf("find modified %s vouchers: %w", repo.Kind(), err)
			}
			if len(modified) > 0 {
				res.Changes[repo.Kind()] = len(modified)
			}
		}
	}
	return res, nil
}

// RequireIntegrity runs ValidateDataIntegrity and turns an invalid result
// into a DATA_INTEGRITY error.
func (v *Validator) RequireIntegrity(ctx context.Context, date time.Time, reportDatasetID id.ID) (Result, error) {
	res, err := v.ValidateDataIntegrity(ctx, date, reportDatasetID)
	if err != nil {
		return Result{}, err
	}
	if !res.Valid {
		return res, apperror.NewDataIntegrity(res.ExpectedHash, res.CurrentHash).
			WithDetail("changes", res.Summary())
	}
	return res, nil
}
