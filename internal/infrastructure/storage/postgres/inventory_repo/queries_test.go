package inventory_repo

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invclose/internal/core/id"
	"invclose/internal/core/types"
	"invclose/internal/domain/inventory"
)

var businessDate = time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)

func TestCopyFromMasterQuery_Through(t *testing.T) {
	ds := id.New()

	sql, args, err := copyFromMasterQuery(ds, businessDate.Add(13*time.Hour), inventory.CopyThrough).ToSql()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sql, "INSERT INTO inventory_snapshot (dataset_id,product_code,"), sql)
	assert.Contains(t, sql, "SELECT $1::uuid, product_code, grade_code")
	assert.Contains(t, sql, "FROM inventory_master WHERE is_active = $5 AND as_of_date <= $6")
	assert.NotContains(t, sql, "last_close_date")
	assert.Equal(t, []any{ds, "9", "master", businessDate, true, businessDate}, args)
}

func TestCopyFromMasterQuery_AsOfSkipsClosedRows(t *testing.T) {
	sql, args, err := copyFromMasterQuery(id.New(), businessDate, inventory.CopyAsOf).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "(last_close_date IS NULL OR last_close_date < $7)")
	assert.Len(t, args, 7)
	assert.Equal(t, businessDate, args[6])
}

func TestResetDailyQuery(t *testing.T) {
	ds := id.New()

	sql, args, err := resetDailyQuery(ds).ToSql()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sql, "UPDATE inventory_snapshot SET daily_sales_quantity = $1"), sql)
	assert.Contains(t, sql, "daily_stock = previous_stock, daily_stock_amount = previous_stock_amount, daily_unit_price = previous_unit_price")
	assert.Contains(t, sql, "daily_flag = $12 WHERE dataset_id = $13")
	require.Len(t, args, 13)
	assert.Equal(t, "9", args[11])
	assert.Equal(t, ds, args[12])
}

func TestUpdateDailyQuery_ScopedToDatasetAndKey(t *testing.T) {
	ds := id.New()
	row := inventory.NewVoucherSnapshot(ds, inventory.NewKey("12", "1", "2", "30", "MK"), "Tea", businessDate)
	row.DailySalesQuantity = types.MustDecimal("4")
	row.DailyFlag = inventory.DailyFlagSeen

	sql, args, err := updateDailyQuery(row).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "WHERE dataset_id = $20 AND class_code = $21 AND grade_code = $22 AND product_code = $23 AND shipping_mark_code = $24 AND shipping_mark_name = $25")
	require.Len(t, args, 25)
	assert.Equal(t, types.MustDecimal("4"), args[0])
	assert.Equal(t, inventory.DailyFlagSeen, args[14])
	assert.Equal(t, ds, args[19])
	assert.Equal(t, "00012", args[22])
}

func TestUpsertQuery(t *testing.T) {
	rows := []inventory.Master{
		{Key: inventory.NewKey("1", "1", "1", "1", "A"), IsActive: true},
		{Key: inventory.NewKey("2", "1", "1", "1", "A"), IsActive: true},
	}

	sql, args, err := upsertQuery(rows).ToSql()
	require.NoError(t, err)

	assert.Equal(t, 2*len(masterColumns), len(args))
	assert.Contains(t, sql, "ON CONFLICT (product_code, grade_code, class_code, shipping_mark_code, shipping_mark_name) DO UPDATE SET")
	assert.Contains(t, sql, "product_category1 = COALESCE(NULLIF(EXCLUDED.product_category1, ''), inventory_master.product_category1)")
	assert.Contains(t, sql, "current_stock = EXCLUDED.current_stock")
	assert.NotContains(t, sql, "created_at = EXCLUDED.created_at")
	assert.NotContains(t, sql, "product_code = EXCLUDED.product_code")
}

func TestDeactivateQuery(t *testing.T) {
	now := businessDate.Add(16 * time.Hour)

	sql, args, err := deactivateQuery(businessDate, 30, now).ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"UPDATE inventory_master SET is_active = $1, updated_at = $2 WHERE current_stock = $3 AND is_active = $4 AND zero_stock_since IS NOT NULL AND zero_stock_since <= $5 RETURNING product_code, grade_code, class_code, shipping_mark_code, shipping_mark_name",
		sql)
	assert.Equal(t, []any{false, now, 0, true, time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)}, args)
}

func TestClassificationQuery_IgnoresMarkName(t *testing.T) {
	sql, args, err := classificationQuery(inventory.NewKey("5", "1", "1", "7", "ANY")).ToSql()
	require.NoError(t, err)

	assert.NotContains(t, sql, "shipping_mark_name")
	assert.Contains(t, sql, "product_category1 <> $5")
	assert.Contains(t, sql, "ORDER BY as_of_date DESC LIMIT 1")
	assert.Equal(t, []any{"001", "001", "00005", "0007", ""}, args)
}
