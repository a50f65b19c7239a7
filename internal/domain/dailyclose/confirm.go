package dailyclose

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"invclose/internal/core/apperror"
	"invclose/internal/core/id"
	"invclose/internal/core/types"
	"invclose/internal/domain/dataset"
	"invclose/internal/domain/voucher"
)

// Level of a confirmation message.
type Level string

const (
	LevelInfo    Level = "INFO"
	LevelWarning Level = "WARNING"
	LevelError   Level = "ERROR"
)

// Message is one line of a pre-close confirmation.
type Message struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// ReportInfo describes the daily report a close would commit.
type ReportInfo struct {
	DatasetID   id.ID      `json:"datasetId"`
	ExecutedBy  string     `json:"executedBy"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	DataHash    string     `json:"dataHash"`
}

// ImportInfo describes the latest completed import.
type ImportInfo struct {
	ExecutedBy  string     `json:"executedBy"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Amounts are voucher totals of the day.
type Amounts struct {
	Sales                decimal.Decimal `json:"sales"`
	Purchase             decimal.Decimal `json:"purchase"`
	EstimatedGrossProfit decimal.Decimal `json:"estimatedGrossProfit"`
}

// Confirmation is what an operator reviews before closing.
type Confirmation struct {
	BusinessDate time.Time              `json:"businessDate"`
	CurrentTime  time.Time              `json:"currentTime"`
	CanProcess   bool                   `json:"canProcess"`
	Report       *ReportInfo            `json:"report,omitempty"`
	LatestImport *ImportInfo            `json:"latestImport,omitempty"`
	Counts       map[voucher.Kind]int64 `json:"counts"`
	Amounts      Amounts                `json:"amounts"`
	CurrentHash  string                 `json:"currentHash"`
	Existing     *Record                `json:"existing,omitempty"`
	Messages     []Message              `json:"messages"`
}

func (c *Confirmation) block(msg, detail string) {
	c.CanProcess = false
	c.Messages = append(c.Messages, Message{Level: LevelError, Message: msg, Detail: detail})
}

// Confirm gathers everything Execute would check, without side effects.
// Policy violations become messages; only persistence errors are returned.
func (s *Service) Confirm(ctx context.Context, date time.Time) (*Confirmation, error) {
	date = types.BusinessDate(date)
	c := &Confirmation{
		BusinessDate: date,
		CurrentTime:  s.clock.Now(),
		CanProcess:   true,
		Counts:       make(map[voucher.Kind]int64, 3),
	}

	existing, err := s.repo.Get(ctx, date)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		c.Existing = existing
		c.block("daily close already recorded", "status "+string(existing.Status))
	}

	report, err := s.authority.Current(ctx, date, dataset.ProcessDailyReport)
	if err != nil {
		return nil, err
	}
	if report == nil {
		c.block("daily report not prepared", "")
	} else {
		ds := report.ID
		entry, err := s.history.LatestCompleted(ctx, date, dataset.ProcessDailyReport, &ds)
		if err != nil {
			return nil, err
		}
		info := &ReportInfo{DatasetID: report.ID, ExecutedBy: report.CreatedBy}
		if entry != nil {
			info.ExecutedBy = entry.ExecutedBy
			info.CompletedAt = entry.CompletedAt
			info.DataHash = entry.DataHash
		}
		c.Report = info
	}

	imp, err := s.history.LatestCompleted(ctx, date, dataset.ProcessImport, nil)
	if err != nil {
		return nil, err
	}
	if imp != nil {
		c.LatestImport = &ImportInfo{ExecutedBy: imp.ExecutedBy, CompletedAt: imp.CompletedAt}
	}

	if c.CurrentHash, err = s.validator.ComputeContentHash(ctx, date); err != nil {
		return nil, err
	}

	if report != nil {
		if err := s.validator.ValidateProcessingTime(ctx, date, report.ID); err != nil {
			appErr, ok := apperror.AsAppError(err)
			if !ok {
				return nil, err
			}
			c.block("timing violation", appErr.Message)
		}

		check, err := s.validator.ValidateDataIntegrity(ctx, date, report.ID)
		if err != nil {
			return nil, err
		}
		if !check.Valid {
			c.block("data integrity violation", check.Summary())
		}
		for _, w := range check.Warnings {
			c.Messages = append(c.Messages, Message{Level: LevelWarning, Message: w})
		}
	}

	for _, repo := range s.vouchers.All() {
		n, err := repo.CountByDate(ctx, date)
		if err != nil {
			return nil, err
		}
		c.Counts[repo.Kind()] = n
	}

	amounts, err := s.amounts(ctx, date)
	if err != nil {
		return nil, err
	}
	c.Amounts = amounts

	if c.CanProcess {
		c.Messages = append(c.Messages, Message{Level: LevelInfo, Message: "daily close can run"})
	}
	return c, nil
}

func (s *Service) amounts(ctx context.Context, date time.Time) (Amounts, error) {
	a := Amounts{Sales: decimal.Zero, Purchase: decimal.Zero}
	for _, repo := range []voucher.Repository{s.vouchers.Sales, s.vouchers.Purchases} {
		lines, err := repo.GetByDate(ctx, date)
		if err != nil {
			return Amounts{}, err
		}
		for _, l := range lines {
			if !l.Qualifies() {
				continue
			}
			if repo.Kind() == voucher.KindSales {
				a.Sales = a.Sales.Add(l.Amount)
			} else {
				a.Purchase = a.Purchase.Add(l.Amount)
			}
		}
	}
	a.EstimatedGrossProfit = a.Sales.Sub(a.Purchase)
	return a, nil
}
