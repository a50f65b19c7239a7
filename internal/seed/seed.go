// Package seed loads YAML fixtures of master rows, vouchers and master-data
// names into the stores, and records the load as a completed import.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"invclose/internal/core/apperror"
	"invclose/internal/core/id"
	"invclose/internal/core/tx"
	"invclose/internal/core/types"
	"invclose/internal/domain/dataset"
	"invclose/internal/domain/history"
	"invclose/internal/domain/inventory"
	"invclose/internal/domain/masterdata"
	"invclose/internal/domain/voucher"
	"invclose/pkg/logger"
)

// Fixture is the YAML document accepted by the loader.
type Fixture struct {
	BusinessDate string       `yaml:"business_date"`
	Names        Names        `yaml:"names"`
	Masters      []MasterRow  `yaml:"masters"`
	Vouchers     []VoucherRow `yaml:"vouchers"`
}

// Names maps codes to display names per master-data table.
type Names struct {
	Customers map[string]string `yaml:"customers"`
	Suppliers map[string]string `yaml:"suppliers"`
	Products  map[string]string `yaml:"products"`
}

// MasterRow is one inventory master row. Amounts default to quantity x price.
type MasterRow struct {
	inventory.Key `yaml:",inline"`

	ProductName string `yaml:"product_name"`
	Unit        string `yaml:"unit"`
	Category    string `yaml:"category"`
	Stock       string `yaml:"stock"`
	UnitPrice   string `yaml:"unit_price"`
	// AsOf defaults to the fixture business date.
	AsOf string `yaml:"as_of"`
}

// VoucherRow is one voucher line. Dates default to the fixture business date.
type VoucherRow struct {
	Kind          voucher.Kind `yaml:"kind"`
	VoucherID     string       `yaml:"voucher_id"`
	LineNumber    int          `yaml:"line_number"`
	VoucherNumber string       `yaml:"voucher_number"`
	VoucherDate   string       `yaml:"voucher_date"`
	JobDate       string       `yaml:"job_date"`
	VoucherType   string       `yaml:"voucher_type"`
	DetailType    string       `yaml:"detail_type"`
	UnitCode      string       `yaml:"unit_code"`

	inventory.Key `yaml:",inline"`
	ProductName   string `yaml:"product_name"`

	CounterpartyCode string `yaml:"counterparty_code"`
	CounterpartyName string `yaml:"counterparty_name"`

	Quantity  string `yaml:"quantity"`
	UnitPrice string `yaml:"unit_price"`
	Amount    string `yaml:"amount"`
}

// Parse decodes a fixture. Unknown fields are rejected.
func Parse(r io.Reader) (*Fixture, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f Fixture
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, apperror.NewValidation("fixture is empty")
		}
		return nil, apperror.NewValidation("invalid fixture").WithCause(err)
	}
	return &f, nil
}

// Dataset is the converted content of a fixture.
type Dataset struct {
	BusinessDate time.Time
	Masters      []inventory.Master
	Vouchers     map[voucher.Kind][]voucher.Line
	Names        map[masterdata.Entity]map[string]string
}

// Build validates the fixture and converts it to domain rows.
func (f *Fixture) Build() (Dataset, error) {
	date, err := types.ParseBusinessDate(f.BusinessDate)
	if err != nil {
		return Dataset{}, apperror.NewValidation(err.Error()).WithDetail("field", "business_date")
	}

	ds := Dataset{
		BusinessDate: date,
		Vouchers:     make(map[voucher.Kind][]voucher.Line),
		Names: map[masterdata.Entity]map[string]string{
			masterdata.EntityCustomer: f.Names.Customers,
			masterdata.EntitySupplier: f.Names.Suppliers,
			masterdata.EntityProduct:  f.Names.Products,
		},
	}

	seen := make(map[inventory.Key]struct{}, len(f.Masters))
	for i, row := range f.Masters {
		m, err := row.master(date)
		if err != nil {
			return Dataset{}, rowError("masters", i, err)
		}
		if _, dup := seen[m.Key]; dup {
			return Dataset{}, rowError("masters", i, fmt.Errorf("duplicate key %s", m.Key))
		}
		seen[m.Key] = struct{}{}
		ds.Masters = append(ds.Masters, m)
	}

	for i, row := range f.Vouchers {
		l, err := row.line(date)
		if err != nil {
			return Dataset{}, rowError("vouchers", i, err)
		}
		ds.Vouchers[l.Kind] = append(ds.Vouchers[l.Kind], l)
	}
	return ds, nil
}

func rowError(section string, i int, err error) error {
	return apperror.NewValidation(fmt.Sprintf("%s[%d]: %v", section, i, err)).
		WithDetail("section", section).
		WithDetail("index", i)
}

func (row MasterRow) master(fixtureDate time.Time) (inventory.Master, error) {
	if strings.TrimSpace(row.ProductCode) == "" {
		return inventory.Master{}, fmt.Errorf("product_code is required")
	}
	stock, err := types.ParseDecimal(row.Stock)
	if err != nil {
		return inventory.Master{}, err
	}
	price, err := types.ParseDecimal(row.UnitPrice)
	if err != nil {
		return inventory.Master{}, err
	}
	asOf, err := dateOr(row.AsOf, fixtureDate)
	if err != nil {
		return inventory.Master{}, err
	}

	amount := types.RoundAmount(stock.Mul(price))
	m := inventory.Master{
		Key:                 row.Key.Normalize(),
		ProductName:         row.ProductName,
		Unit:                row.Unit,
		ProductCategory1:    row.Category,
		PreviousStock:       stock,
		PreviousStockAmount: amount,
		CurrentStock:        stock,
		CurrentStockAmount:  amount,
		UnitPrice:           types.RoundPrice(price),
		AsOfDate:            asOf,
		IsActive:            true,
	}
	if stock.IsZero() {
		since := asOf
		m.ZeroStockSince = &since
	}
	return m, nil
}

func (row VoucherRow) line(fixtureDate time.Time) (voucher.Line, error) {
	switch row.Kind {
	case voucher.KindSales, voucher.KindPurchase, voucher.KindAdjustment:
	default:
		return voucher.Line{}, fmt.Errorf("unknown kind %q", row.Kind)
	}
	if row.VoucherID == "" {
		return voucher.Line{}, fmt.Errorf("voucher_id is required")
	}
	jobDate, err := dateOr(row.JobDate, fixtureDate)
	if err != nil {
		return voucher.Line{}, err
	}
	voucherDate, err := dateOr(row.VoucherDate, jobDate)
	if err != nil {
		return voucher.Line{}, err
	}

	var qty, price, amount decimal.Decimal
	if qty, err = types.ParseDecimal(row.Quantity); err != nil {
		return voucher.Line{}, err
	}
	if price, err = types.ParseDecimal(row.UnitPrice); err != nil {
		return voucher.Line{}, err
	}
	if amount, err = types.ParseDecimal(row.Amount); err != nil {
		return voucher.Line{}, err
	}
	if row.Amount == "" {
		amount = types.RoundAmount(qty.Mul(price))
	}

	return voucher.Line{
		Kind:             row.Kind,
		VoucherID:        row.VoucherID,
		LineNumber:       max(row.LineNumber, 1),
		VoucherNumber:    row.VoucherNumber,
		VoucherDate:      voucherDate,
		JobDate:          jobDate,
		VoucherType:      row.VoucherType,
		DetailType:       row.DetailType,
		UnitCode:         row.UnitCode,
		Key:              row.Key.Normalize(),
		ProductName:      row.ProductName,
		CounterpartyCode: row.CounterpartyCode,
		CounterpartyName: row.CounterpartyName,
		Quantity:         qty,
		UnitPrice:        price,
		Amount:           amount,
	}, nil
}

func dateOr(s string, fallback time.Time) (time.Time, error) {
	if s == "" {
		return fallback, nil
	}
	return types.ParseBusinessDate(s)
}

// NameWriter stores master-data display names.
type NameWriter interface {
	Upsert(ctx context.Context, entity masterdata.Entity, names map[string]string) error
}

// Loader writes fixtures into the stores.
type Loader struct {
	txManager tx.Manager
	masters   inventory.MasterRepository
	vouchers  voucher.Set
	names     NameWriter
	recorder  *history.Recorder
}

// NewLoader creates a loader.
func NewLoader(txManager tx.Manager, masters inventory.MasterRepository, vouchers voucher.Set, names NameWriter, recorder *history.Recorder) *Loader {
	return &Loader{
		txManager: txManager,
		masters:   masters,
		vouchers:  vouchers,
		names:     names,
		recorder:  recorder,
	}
}

// Result counts what a load wrote.
type Result struct {
	BusinessDate time.Time                 `json:"businessDate"`
	Masters      int                       `json:"masters"`
	Vouchers     map[voucher.Kind]int      `json:"vouchers"`
	Names        map[masterdata.Entity]int `json:"names"`
}

// Load writes the dataset in one transaction and records a completed IMPORT
// history entry for its business date. Existing master keys fail the load.
func (l *Loader) Load(ctx context.Context, ds Dataset, executedBy string) (Result, error) {
	res := Result{
		BusinessDate: ds.BusinessDate,
		Masters:      len(ds.Masters),
		Vouchers:     make(map[voucher.Kind]int),
		Names:        make(map[masterdata.Entity]int),
	}

	err := l.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		entry, err := l.recorder.Start(ctx, id.Nil(), ds.BusinessDate, dataset.ProcessImport, executedBy)
		if err != nil {
			return err
		}

		for _, entity := range []masterdata.Entity{masterdata.EntityCustomer, masterdata.EntitySupplier, masterdata.EntityProduct} {
			names := ds.Names[entity]
			if len(names) == 0 {
				continue
			}
			if err := l.names.Upsert(ctx, entity, names); err != nil {
				return fmt.Errorf("seed %s names: %w", entity, err)
			}
			res.Names[entity] = len(names)
		}

		if len(ds.Masters) > 0 {
			if err := l.masters.BulkInsert(ctx, ds.Masters); err != nil {
				return fmt.Errorf("seed masters: %w", err)
			}
		}

		for _, repo := range l.vouchers.All() {
			lines := ds.Vouchers[repo.Kind()]
			if len(lines) == 0 {
				continue
			}
			if err := repo.BulkInsert(ctx, lines); err != nil {
				return fmt.Errorf("seed %s vouchers: %w", repo.Kind(), err)
			}
			res.Vouchers[repo.Kind()] = len(lines)
		}

		remark := fmt.Sprintf("seed: %d masters, %d sales, %d purchases, %d adjustments",
			res.Masters, res.Vouchers[voucher.KindSales], res.Vouchers[voucher.KindPurchase], res.Vouchers[voucher.KindAdjustment])
		return l.recorder.Complete(ctx, entry, "", remark)
	})
	if err != nil {
		return Result{}, err
	}

	logger.Info(ctx, "fixture loaded",
		"business_date", types.FormatDate(ds.BusinessDate),
		"masters", res.Masters,
		"vouchers", res.Vouchers,
	)
	return res, nil
}
