package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invclose/internal/core/id"
	"invclose/internal/core/types"
	"invclose/internal/domain/inventory"
	"invclose/internal/domain/voucher"
)

func TestExtractDBColumns_FlattensEmbeddedKey(t *testing.T) {
	cols := ExtractDBColumns[inventory.Master]()

	require.GreaterOrEqual(t, len(cols), 6)
	assert.Equal(t, []string{
		"product_code", "grade_code", "class_code", "shipping_mark_code", "shipping_mark_name",
	}, cols[:5])
	assert.Equal(t, "product_name", cols[5])
	assert.Contains(t, cols, "zero_stock_since")
	assert.Contains(t, cols, "is_active")
}

func TestExtractDBColumns_SkipsUntaggedFields(t *testing.T) {
	cols := ExtractDBColumns[voucher.Line]()

	assert.NotContains(t, cols, "")
	assert.NotContains(t, cols, "-")
	assert.Contains(t, cols, "voucher_id")
	assert.Contains(t, cols, "dataset_id")
}

func TestWithout(t *testing.T) {
	cols := []string{"id", "a", "b", "created_at"}

	assert.Equal(t, []string{"a", "b"}, Without(cols, "id", "created_at"))
	assert.Equal(t, []string{"id", "a", "b", "created_at"}, cols)
}

func TestStructToMap_Snapshot(t *testing.T) {
	ds := id.New()
	day := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	s := inventory.NewVoucherSnapshot(ds, inventory.NewKey("1", "2", "3", "4", "MARK"), "Green tea", day)

	m := StructToMap(s)

	assert.Equal(t, ds, m["dataset_id"])
	assert.Equal(t, "00001", m["product_code"])
	assert.Equal(t, "MARK", m["shipping_mark_name"])
	assert.Equal(t, "Green tea", m["product_name"])
	assert.Equal(t, inventory.OriginVoucher, m["origin"])
	assert.Equal(t, inventory.DailyFlagPending, m["daily_flag"])
	assert.Equal(t, day, m["as_of_date"])
}

func TestRowValues_FollowsColumnOrder(t *testing.T) {
	m := inventory.Master{
		Key:          inventory.NewKey("7", "1", "1", "10", "A"),
		CurrentStock: types.MustDecimal("12.5"),
		IsActive:     true,
	}

	row := RowValues(&m, []string{"is_active", "product_code", "current_stock", "missing"})

	require.Len(t, row, 4)
	assert.Equal(t, true, row[0])
	assert.Equal(t, "00007", row[1])
	assert.Equal(t, types.MustDecimal("12.5"), row[2])
	assert.Nil(t, row[3])
}
