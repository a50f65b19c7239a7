package inventory

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"invclose/internal/core/id"
)

// DailyFlag tracks whether a snapshot row has seen the day's vouchers.
type DailyFlag string

const (
	DailyFlagPending   DailyFlag = "9" // reset, no voucher folded yet
	DailyFlagSeen      DailyFlag = "1" // at least one voucher folded
	DailyFlagProcessed DailyFlag = "0" // daily stock computed
)

// Origin tells where a snapshot row came from.
type Origin string

const (
	OriginMaster  Origin = "master"  // copied from the inventory master
	OriginVoucher Origin = "voucher" // created for a key absent from the master
)

// CopyMode selects which master rows seed a snapshot.
type CopyMode int

const (
	// CopyThrough copies rows with as_of_date on or before the business date.
	// Used by reconciliation runs.
	CopyThrough CopyMode = iota + 1
	// CopyAsOf additionally skips rows already closed for the business date.
	// Used by report and close runs.
	CopyAsOf
)

// String returns the mode name.
func (m CopyMode) String() string {
	switch m {
	case CopyThrough:
		return "through"
	case CopyAsOf:
		return "as_of"
	}
	return "unknown"
}

// Snapshot is a dataset-scoped working copy of a master row plus the day's
// accumulators. Rows are disposable and always addressed by dataset id.
type Snapshot struct {
	DatasetID id.ID `db:"dataset_id" json:"datasetId"`
	Key

	ProductName      string `db:"product_name" json:"productName"`
	Unit             string `db:"unit" json:"unit"`
	ProductCategory1 string `db:"product_category1" json:"productCategory1"`

	// Balance carried in from the master (its current values).
	PreviousStock       decimal.Decimal `db:"previous_stock" json:"previousStock"`
	PreviousStockAmount decimal.Decimal `db:"previous_stock_amount" json:"previousStockAmount"`
	PreviousUnitPrice   decimal.Decimal `db:"previous_unit_price" json:"previousUnitPrice"`

	DailySalesQuantity      decimal.Decimal `db:"daily_sales_quantity" json:"dailySalesQuantity"`
	DailySalesAmount        decimal.Decimal `db:"daily_sales_amount" json:"dailySalesAmount"`
	DailyPurchaseQuantity   decimal.Decimal `db:"daily_purchase_quantity" json:"dailyPurchaseQuantity"`
	DailyPurchaseAmount     decimal.Decimal `db:"daily_purchase_amount" json:"dailyPurchaseAmount"`
	DailyAdjustmentQuantity decimal.Decimal `db:"daily_adjustment_quantity" json:"dailyAdjustmentQuantity"`
	DailyAdjustmentAmount   decimal.Decimal `db:"daily_adjustment_amount" json:"dailyAdjustmentAmount"`
	DailyLossQuantity       decimal.Decimal `db:"daily_loss_quantity" json:"dailyLossQuantity"`
	DailyTransferQuantity   decimal.Decimal `db:"daily_transfer_quantity" json:"dailyTransferQuantity"`
	DailyCorrectionQuantity decimal.Decimal `db:"daily_correction_quantity" json:"dailyCorrectionQuantity"`
	DailyGrossProfit        decimal.Decimal `db:"daily_gross_profit" json:"dailyGrossProfit"`
	DailyDiscountAmount     decimal.Decimal `db:"daily_discount_amount" json:"dailyDiscountAmount"`

	DailyStock       decimal.Decimal `db:"daily_stock" json:"dailyStock"`
	DailyStockAmount decimal.Decimal `db:"daily_stock_amount" json:"dailyStockAmount"`
	DailyUnitPrice   decimal.Decimal `db:"daily_unit_price" json:"dailyUnitPrice"`

	DailyFlag DailyFlag `db:"daily_flag" json:"dailyFlag"`
	Origin    Origin    `db:"origin" json:"origin"`

	LastReceiptDate *time.Time `db:"last_receipt_date" json:"lastReceiptDate,omitempty"`
	LastSalesDate   *time.Time `db:"last_sales_date" json:"lastSalesDate,omitempty"`
	ZeroStockSince  *time.Time `db:"zero_stock_since" json:"zeroStockSince,omitempty"`
	AsOfDate        time.Time  `db:"as_of_date" json:"asOfDate"`
}

// SnapshotFromMaster copies a master row into a snapshot of datasetID.
// Accumulators start at zero.
func SnapshotFromMaster(datasetID id.ID, m Master, date time.Time) Snapshot {
	s := Snapshot{
		DatasetID:           datasetID,
		Key:                 m.Key,
		ProductName:         m.ProductName,
		Unit:                m.Unit,
		ProductCategory1:    m.ProductCategory1,
		PreviousStock:       m.CurrentStock,
		PreviousStockAmount: m.CurrentStockAmount,
		PreviousUnitPrice:   m.UnitPrice,
		Origin:              OriginMaster,
		LastReceiptDate:     m.LastReceiptDate,
		LastSalesDate:       m.LastSalesDate,
		ZeroStockSince:      m.ZeroStockSince,
		AsOfDate:            date,
	}
	s.ResetDaily()
	return s
}

// NewVoucherSnapshot creates the zero-initialized row for a key that has
// vouchers but no master row.
func NewVoucherSnapshot(datasetID id.ID, key Key, productName string, date time.Time) Snapshot {
	s := Snapshot{
		DatasetID:   datasetID,
		Key:         key,
		ProductName: productName,
		Origin:      OriginVoucher,
		AsOfDate:    date,
	}
	s.ResetDaily()
	return s
}

// ResetDaily zeroes the accumulators and marks the row pending. The daily
// stock restarts from the carried balance.
func (s *Snapshot) ResetDaily() {
	s.DailySalesQuantity = decimal.Zero
	s.DailySalesAmount = decimal.Zero
	s.DailyPurchaseQuantity = decimal.Zero
	s.DailyPurchaseAmount = decimal.Zero
	s.DailyAdjustmentQuantity = decimal.Zero
	s.DailyAdjustmentAmount = decimal.Zero
	s.DailyLossQuantity = decimal.Zero
	s.DailyTransferQuantity = decimal.Zero
	s.DailyCorrectionQuantity = decimal.Zero
	s.DailyGrossProfit = decimal.Zero
	s.DailyDiscountAmount = decimal.Zero
	s.DailyStock = s.PreviousStock
	s.DailyStockAmount = s.PreviousStockAmount
	s.DailyUnitPrice = s.PreviousUnitPrice
	s.DailyFlag = DailyFlagPending
}

// SnapshotRepository persists snapshot rows. Every method is scoped to one
// dataset id.
type SnapshotRepository interface {
	// CopyFromMaster replaces the dataset's rows with active master rows
	// selected by mode.
	CopyFromMaster(ctx context.Context, datasetID id.ID, date time.Time, mode CopyMode) (int64, error)

	// ResetDaily zeroes accumulators and sets every row pending.
	ResetDaily(ctx context.Context, datasetID id.ID) error

	GetByDataset(ctx context.Context, datasetID id.ID) ([]Snapshot, error)
	CountByDataset(ctx context.Context, datasetID id.ID) (int64, error)

	// Insert adds rows (keys created from vouchers).
	Insert(ctx context.Context, rows []Snapshot) error

	// UpdateDaily writes accumulators, daily stock and flag of rows.
	UpdateDaily(ctx context.Context, rows []Snapshot) error

	// MarkProcessed flips seen rows to processed.
	MarkProcessed(ctx context.Context, datasetID id.ID) (int64, error)

	DeleteByDataset(ctx context.Context, datasetID id.ID) (int64, error)
}
