// Package voucher models imported sales, purchase and adjustment voucher
// lines and the fixed business rules deciding which lines affect stock.
package voucher

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"invclose/internal/core/id"
	"invclose/internal/domain/inventory"
)

// Kind is the voucher family.
type Kind string

const (
	KindSales      Kind = "SALES"
	KindPurchase   Kind = "PURCHASE"
	KindAdjustment Kind = "ADJUSTMENT"
)

// Line is one imported voucher line. Lines are immutable once imported,
// except for InventoryUnitPrice and GrossProfit written by aggregation.
type Line struct {
	Kind Kind `db:"-" json:"kind"`

	ID            int64     `db:"id" json:"id"`
	VoucherID     string    `db:"voucher_id" json:"voucherId"`
	LineNumber    int       `db:"line_number" json:"lineNumber"`
	VoucherNumber string    `db:"voucher_number" json:"voucherNumber"`
	VoucherDate   time.Time `db:"voucher_date" json:"voucherDate"`
	JobDate       time.Time `db:"job_date" json:"jobDate"`
	VoucherType   string    `db:"voucher_type" json:"voucherType"`
	DetailType    string    `db:"detail_type" json:"detailType"`
	// UnitCode classifies adjustment lines (loss, transfer, cost allocation...).
	UnitCode string `db:"unit_code" json:"unitCode,omitempty"`

	inventory.Key
	ProductName string `db:"product_name" json:"productName"`

	// Counterparty is the customer on sales and the supplier on purchases.
	CounterpartyCode string `db:"counterparty_code" json:"counterpartyCode,omitempty"`
	CounterpartyName string `db:"counterparty_name" json:"counterpartyName,omitempty"`

	Quantity  decimal.Decimal `db:"quantity" json:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unitPrice"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`

	InventoryUnitPrice decimal.Decimal `db:"inventory_unit_price" json:"inventoryUnitPrice"`
	GrossProfit        decimal.Decimal `db:"gross_profit" json:"grossProfit"`

	DatasetID id.ID     `db:"dataset_id" json:"datasetId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// PricingUpdate is the enrichment aggregation writes back to a sales line.
type PricingUpdate struct {
	ID                 int64
	InventoryUnitPrice decimal.Decimal
	GrossProfit        decimal.Decimal
}

// Repository reads and writes the lines of one Kind.
type Repository interface {
	Kind() Kind

	// GetByDate returns lines whose job date is date.
	GetByDate(ctx context.Context, date time.Time) ([]Line, error)
	GetByDataset(ctx context.Context, datasetID id.ID) ([]Line, error)
	BulkInsert(ctx context.Context, lines []Line) error
	CountByDate(ctx context.Context, date time.Time) (int64, error)

	// GetModifiedAfter returns lines of date created or updated after ts.
	GetModifiedAfter(ctx context.Context, date time.Time, ts time.Time) ([]Line, error)

	UpdatePricing(ctx context.Context, updates []PricingUpdate) error
}

// Set groups the three voucher repositories.
type Set struct {
	Sales       Repository
	Purchases   Repository
	Adjustments Repository
}

// All returns the repositories in canonical order: sales, purchases, adjustments.
func (s Set) All() []Repository {
	return []Repository{s.Sales, s.Purchases, s.Adjustments}
}

// Lines loads every line of date across the three kinds.
func (s Set) Lines(ctx context.Context, date time.Time) (sales, purchases, adjustments []Line, err error) {
	if sales, err = s.Sales.GetByDate(ctx, date); err != nil {
		return nil, nil, nil, err
	}
	if purchases, err = s.Purchases.GetByDate(ctx, date); err != nil {
		return nil, nil, nil, err
	}
	if adjustments, err = s.Adjustments.GetByDate(ctx, date); err != nil {
		return nil, nil, nil, err
	}
	return sales, purchases, adjustments, nil
}
