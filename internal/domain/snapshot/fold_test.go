package snapshot

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invclose/internal/core/id"
	"invclose/internal/core/types"
	"invclose/internal/domain/inventory"
	"invclose/internal/domain/voucher"
)

func decEqual(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, types.MustDecimal(want).Equal(got), "want %s, got %s", want, got)
}

func masterRow(ds id.ID, product, qty, price string, date time.Time) inventory.Snapshot {
	q, p := types.MustDecimal(qty), types.MustDecimal(price)
	return inventory.SnapshotFromMaster(ds, inventory.Master{
		Key:                inventory.NewKey(product, "1", "1", "1", ""),
		CurrentStock:       q,
		CurrentStockAmount: q.Mul(p),
		UnitPrice:          p,
		AsOfDate:           date,
		IsActive:           true,
	}, date)
}

func goodsLine(kind voucher.Kind, voucherType, product, qty, amount string) voucher.Line {
	return voucher.Line{
		Kind:        kind,
		VoucherType: voucherType,
		DetailType:  voucher.DetailGoods,
		Key:         inventory.NewKey(product, "1", "1", "1", ""),
		Quantity:    types.MustDecimal(qty),
		Amount:      types.MustDecimal(amount),
	}
}

func TestRecalculate_WeightedAverage(t *testing.T) {
	s := masterRow(id.New(), "1", "10", "5.00", time.Now())
	s.DailyPurchaseQuantity = types.MustDecimal("10")
	s.DailyPurchaseAmount = types.MustDecimal("70.00")

	Recalculate(&s)

	decEqual(t, "20", s.DailyStock)
	decEqual(t, "6", s.DailyUnitPrice)
	decEqual(t, "120", s.DailyStockAmount)
}

func TestRecalculate_NonPositiveDenominatorKeepsPrice(t *testing.T) {
	s := masterRow(id.New(), "1", "-10", "5", time.Now())
	s.DailyPurchaseQuantity = types.MustDecimal("5")
	s.DailyPurchaseAmount = types.MustDecimal("40")

	Recalculate(&s)

	decEqual(t, "-5", s.DailyStock)
	decEqual(t, "5", s.DailyUnitPrice)
	decEqual(t, "-25", s.DailyStockAmount)
}

func TestRecalculate_NoPurchaseKeepsPrice(t *testing.T) {
	s := masterRow(id.New(), "1", "10", "5", time.Now())
	s.DailySalesQuantity = types.MustDecimal("4")
	s.DailyAdjustmentQuantity = types.MustDecimal("-1")

	Recalculate(&s)

	decEqual(t, "5", s.DailyStock)
	decEqual(t, "5", s.DailyUnitPrice)
	decEqual(t, "25", s.DailyStockAmount)
}

func TestGrossProfit(t *testing.T) {
	decEqual(t, "370", GrossProfit(types.MustDecimal("5"), types.MustDecimal("400"), types.MustDecimal("6")))
	decEqual(t, "0.33", GrossProfit(types.MustDecimal("1"), types.MustDecimal("1"), types.MustDecimal("0.6667")))
}

func TestFolder_DiscountNeverCreatesRows(t *testing.T) {
	ds := id.New()
	date := types.BusinessDate(time.Now())
	f := newFolder(ds, date, []inventory.Snapshot{masterRow(ds, "1", "1", "1", date)})

	l := goodsLine(voucher.KindSales, voucher.TypeCreditSale, "2", "1", "-50")
	l.DetailType = voucher.DetailDiscount
	f.discount(l)

	created, updated := f.split()
	assert.Empty(t, created)
	assert.Empty(t, updated)
}

func TestFolder_UnknownKeyCreatesVoucherRow(t *testing.T) {
	ds := id.New()
	date := types.BusinessDate(time.Now())
	f := newFolder(ds, date, nil)

	f.purchase(goodsLine(voucher.KindPurchase, voucher.TypeCreditPurchase, "9", "3", "30"))
	f.compute()
	created, updated := f.split()

	require.Len(t, created, 1)
	assert.Empty(t, updated)
	row := created[0]
	assert.Equal(t, inventory.OriginVoucher, row.Origin)
	assert.Equal(t, inventory.DailyFlagSeen, row.DailyFlag)
	assert.Equal(t, "00009", row.ProductCode)
	decEqual(t, "3", row.DailyStock)
	decEqual(t, "10", row.DailyUnitPrice)
	require.NotNil(t, row.LastReceiptDate)
	assert.True(t, row.LastReceiptDate.Equal(date))
}

func TestFolder_SplitOrdersUpdatedRowsByKey(t *testing.T) {
	ds := id.New()
	date := types.BusinessDate(time.Now())
	f := newFolder(ds, date, []inventory.Snapshot{
		masterRow(ds, "3", "5", "1", date),
		masterRow(ds, "1", "5", "1", date),
		masterRow(ds, "2", "5", "1", date),
	})

	for _, p := range []string{"3", "1", "2"} {
		f.sale(goodsLine(voucher.KindSales, voucher.TypeCashSale, p, "1", "2"))
	}
	f.compute()
	_, updated := f.split()

	require.Len(t, updated, 3)
	assert.Equal(t, "00001", updated[0].ProductCode)
	assert.Equal(t, "00002", updated[1].ProductCode)
	assert.Equal(t, "00003", updated[2].ProductCode)
}
