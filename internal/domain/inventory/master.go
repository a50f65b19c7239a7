package inventory

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Master is the permanent, cumulative inventory record of one key.
// It is written only by Mutator (and by initial seeding).
type Master struct {
	Key

	ProductName      string `db:"product_name" json:"productName"`
	Unit             string `db:"unit" json:"unit"`
	ProductCategory1 string `db:"product_category1" json:"productCategory1"`

	PreviousStock       decimal.Decimal `db:"previous_stock" json:"previousStock"`
	PreviousStockAmount decimal.Decimal `db:"previous_stock_amount" json:"previousStockAmount"`
	CurrentStock        decimal.Decimal `db:"current_stock" json:"currentStock"`
	CurrentStockAmount  decimal.Decimal `db:"current_stock_amount" json:"currentStockAmount"`
	UnitPrice           decimal.Decimal `db:"unit_price" json:"unitPrice"`

	LastReceiptDate *time.Time `db:"last_receipt_date" json:"lastReceiptDate,omitempty"`
	LastSalesDate   *time.Time `db:"last_sales_date" json:"lastSalesDate,omitempty"`
	AsOfDate        time.Time  `db:"as_of_date" json:"asOfDate"`
	LastCloseDate   *time.Time `db:"last_close_date" json:"lastCloseDate,omitempty"`
	ZeroStockSince  *time.Time `db:"zero_stock_since" json:"zeroStockSince,omitempty"`

	IsActive  bool      `db:"is_active" json:"isActive"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// MasterRepository persists inventory master rows.
type MasterRepository interface {
	// GetByDate returns active rows with as_of_date on or before date.
	GetByDate(ctx context.Context, date time.Time) ([]Master, error)

	// GetByKey returns the row for key or nil when absent.
	GetByKey(ctx context.Context, key Key) (*Master, error)

	// FindClassification returns the product classification of the most
	// recent row sharing key, ignoring the shipping-mark name. "" when none.
	FindClassification(ctx context.Context, key Key) (string, error)

	// BulkInsert adds rows for keys seen for the first time (initial import).
	BulkInsert(ctx context.Context, rows []Master) error

	// Upsert inserts or replaces rows by key.
	Upsert(ctx context.Context, rows []Master) error

	// DeactivateZeroStock deactivates active rows whose stock has been zero
	// since at least thresholdDays before date and returns their keys.
	DeactivateZeroStock(ctx context.Context, date time.Time, thresholdDays int) ([]Key, error)
}

// AuditTrail records master changes made outside the close record.
type AuditTrail interface {
	RecordDeactivation(ctx context.Context, date time.Time, thresholdDays int, keys []Key) error
}
