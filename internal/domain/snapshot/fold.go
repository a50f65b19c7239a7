package snapshot

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"invclose/internal/core/id"
	"invclose/internal/core/types"
	"invclose/internal/domain/inventory"
	"invclose/internal/domain/voucher"
)

// folder accumulates one day's voucher lines into snapshot rows held in memory.
type folder struct {
	datasetID id.ID
	date      time.Time

	rows    map[inventory.Key]*inventory.Snapshot
	order   []inventory.Key // insertion order of created rows
	created map[inventory.Key]bool
	touched map[inventory.Key]bool

	sales []voucher.Line // qualifying sales lines, for gross profit
}

func newFolder(datasetID id.ID, date time.Time, existing []inventory.Snapshot) *folder {
	f := &folder{
		datasetID: datasetID,
		date:      date,
		rows:      make(map[inventory.Key]*inventory.Snapshot, len(existing)),
		created:   make(map[inventory.Key]bool),
		touched:   make(map[inventory.Key]bool),
	}
	for i := range existing {
		s := existing[i]
		s.Key = s.Key.Normalize()
		f.rows[s.Key] = &s
	}
	return f
}

// row returns the snapshot row for the line's key, creating a zero row when
// the key is unknown. Excluded keys yield nil.
func (f *folder) row(l voucher.Line) *inventory.Snapshot {
	key := l.Key.Normalize()
	if key.Excluded() {
		return nil
	}
	if s, ok := f.rows[key]; ok {
		return s
	}
	s := inventory.NewVoucherSnapshot(f.datasetID, key, l.ProductName, f.date)
	f.rows[key] = &s
	f.created[key] = true
	f.order = append(f.order, key)
	return &s
}

func (f *folder) touch(s *inventory.Snapshot) {
	s.DailyFlag = inventory.DailyFlagSeen
	f.touched[s.Key] = true
}

func (f *folder) sale(l voucher.Line) {
	s := f.row(l)
	if s == nil {
		return
	}
	s.DailySalesQuantity = s.DailySalesQuantity.Add(l.Quantity)
	s.DailySalesAmount = s.DailySalesAmount.Add(l.Amount)
	if l.Quantity.IsPositive() {
		s.LastSalesDate = later(s.LastSalesDate, f.date)
	}
	f.sales = append(f.sales, l)
	f.touch(s)
}

// discount adds a sales discount line. Discounts never create rows.
func (f *folder) discount(l voucher.Line) {
	key := l.Key.Normalize()
	s, ok := f.rows[key]
	if !ok {
		return
	}
	s.DailyDiscountAmount = s.DailyDiscountAmount.Add(l.Amount)
	f.touch(s)
}

func (f *folder) purchase(l voucher.Line) {
	s := f.row(l)
	if s == nil {
		return
	}
	s.DailyPurchaseQuantity = s.DailyPurchaseQuantity.Add(l.Quantity)
	s.DailyPurchaseAmount = s.DailyPurchaseAmount.Add(l.Amount)
	if l.Quantity.IsPositive() {
		s.LastReceiptDate = later(s.LastReceiptDate, f.date)
	}
	f.touch(s)
}

func (f *folder) adjustment(l voucher.Line) {
	s := f.row(l)
	if s == nil {
		return
	}
	s.DailyAdjustmentQuantity = s.DailyAdjustmentQuantity.Add(l.Quantity)
	s.DailyAdjustmentAmount = s.DailyAdjustmentAmount.Add(l.Amount)
	switch voucher.AdjustmentCategory(l.UnitCode) {
	case voucher.AdjustmentLoss:
		s.DailyLossQuantity = s.DailyLossQuantity.Add(l.Quantity)
	case voucher.AdjustmentTransfer:
		s.DailyTransferQuantity = s.DailyTransferQuantity.Add(l.Quantity)
	case voucher.AdjustmentCorrection:
		s.DailyCorrectionQuantity = s.DailyCorrectionQuantity.Add(l.Quantity)
	}
	f.touch(s)
}

// compute derives daily stock, unit price and stock amount of touched rows,
// then gross profit of every folded sales line.
func (f *folder) compute() []voucher.PricingUpdate {
	for key := range f.touched {
		Recalculate(f.rows[key])
	}

	updates := make([]voucher.PricingUpdate, 0, len(f.sales))
	for _, l := range f.sales {
		s := f.rows[l.Key.Normalize()]
		gp := GrossProfit(l.Quantity, l.Amount, s.DailyUnitPrice)
		s.DailyGrossProfit = s.DailyGrossProfit.Add(gp)
		if l.ID != 0 {
			updates = append(updates, voucher.PricingUpdate{
				ID:                 l.ID,
				InventoryUnitPrice: s.DailyUnitPrice,
				GrossProfit:        gp,
			})
		}
	}
	return updates
}

// split returns created rows in creation order and touched existing rows.
func (f *folder) split() (created, updated []inventory.Snapshot) {
	for _, key := range f.order {
		created = append(created, *f.rows[key])
	}
	for key := range f.touched {
		if !f.created[key] {
			updated = append(updated, *f.rows[key])
		}
	}
	slices.SortFunc(updated, func(a, b inventory.Snapshot) int { return a.Key.Compare(b.Key) })
	return created, updated
}

// Recalculate computes the day's closing figures of one row:
// daily stock = previous + purchases - sales + adjustments, with the unit
// price moved to the weighted average when purchases occurred.
func Recalculate(s *inventory.Snapshot) {
	s.DailyStock = s.PreviousStock.
		Add(s.DailyPurchaseQuantity).
		Sub(s.DailySalesQuantity).
		Add(s.DailyAdjustmentQuantity)

	price := s.PreviousUnitPrice
	if !s.DailyPurchaseQuantity.IsZero() {
		price, _ = types.WeightedAverage(s.PreviousStock, s.PreviousUnitPrice, s.DailyPurchaseQuantity, s.DailyPurchaseAmount)
	}
	s.DailyUnitPrice = price
	s.DailyStockAmount = types.RoundAmount(s.DailyStock.Mul(price))
}

// GrossProfit of a sales line at the inventory unit price.
func GrossProfit(quantity, amount, unitPrice decimal.Decimal) decimal.Decimal {
	return types.RoundAmount(amount.Sub(quantity.Mul(unitPrice)))
}

func later(current *time.Time, date time.Time) *time.Time {
	if current != nil && !current.Before(date) {
		return current
	}
	d := date
	return &d
}
