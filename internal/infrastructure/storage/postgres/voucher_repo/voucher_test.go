package voucher_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invclose/internal/core/types"
	"invclose/internal/domain/voucher"
)

func TestNewRepo_TablePerKind(t *testing.T) {
	set := NewSet(nil)

	assert.Equal(t, "sales_vouchers", set.Sales.(*Repo).table)
	assert.Equal(t, "purchase_vouchers", set.Purchases.(*Repo).table)
	assert.Equal(t, "inventory_adjustments", set.Adjustments.(*Repo).table)
	assert.Equal(t, voucher.KindAdjustment, set.Adjustments.Kind())

	assert.Panics(t, func() { NewRepo(nil, voucher.Kind("TRANSFER")) })
}

func TestInsertColumns_LeaveIDToTheTable(t *testing.T) {
	assert.NotContains(t, insertColumns, "id")
	assert.Contains(t, lineColumns, "id")
	assert.Equal(t, len(lineColumns)-1, len(insertColumns))
}

func TestModifiedAfterQuery(t *testing.T) {
	r := NewRepo(nil, voucher.KindPurchase)
	date := time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)
	ts := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

	sql, args, err := r.modifiedAfterQuery(date, ts).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "FROM purchase_vouchers WHERE job_date = $1 AND (created_at > $2 OR updated_at > $3) ORDER BY id")
	assert.Equal(t, []any{time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC), ts, ts}, args)
}

func TestPricingQuery_DoesNotTouchUpdatedAt(t *testing.T) {
	r := NewRepo(nil, voucher.KindSales)

	sql, args, err := r.pricingQuery(voucher.PricingUpdate{
		ID:                 42,
		InventoryUnitPrice: types.MustDecimal("6.0000"),
		GrossProfit:        types.MustDecimal("370.00"),
	}).ToSql()
	require.NoError(t, err)

	assert.Equal(t, "UPDATE sales_vouchers SET inventory_unit_price = $1, gross_profit = $2 WHERE id = $3", sql)
	assert.Equal(t, int64(42), args[2])
}
