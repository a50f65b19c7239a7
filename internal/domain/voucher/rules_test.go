package voucher

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"invclose/internal/domain/inventory"
)

func line(kind Kind, voucherType, detailType, unitCode string, qty int64, key inventory.Key) Line {
	return Line{
		Kind:        kind,
		VoucherType: voucherType,
		DetailType:  detailType,
		UnitCode:    unitCode,
		Quantity:    decimal.NewFromInt(qty),
		Key:         key,
	}
}

func TestQualifies(t *testing.T) {
	key := inventory.NewKey("10001", "1", "1", "5000", "NORTH")
	exit := inventory.NewKey("10001", "1", "1", "5000", "EXIT-01")

	tests := []struct {
		name string
		line Line
		want bool
	}{
		{"credit sale goods", line(KindSales, "51", "1", "", 3, key), true},
		{"cash sale return", line(KindSales, "52", "2", "", -1, key), true},
		{"sale discount", line(KindSales, "51", "3", "", 1, key), false},
		{"sale wrong type", line(KindSales, "53", "1", "", 1, key), false},
		{"sale zero quantity", line(KindSales, "51", "1", "", 0, key), false},
		{"sale excluded key", line(KindSales, "51", "1", "", 1, exit), false},
		{"credit purchase", line(KindPurchase, "11", "1", "", 10, key), true},
		{"cash purchase return", line(KindPurchase, "12", "2", "", -2, key), true},
		{"purchase sale type", line(KindPurchase, "51", "1", "", 10, key), false},
		{"adjustment loss", line(KindAdjustment, "71", "1", "1", -1, key), true},
		{"adjustment transfer", line(KindAdjustment, "72", "1", "4", 5, key), true},
		{"adjustment processing cost", line(KindAdjustment, "71", "1", "2", 1, key), false},
		{"adjustment processing fee", line(KindAdjustment, "71", "1", "5", 1, key), false},
		{"adjustment detail 2", line(KindAdjustment, "71", "2", "1", 1, key), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.line.Qualifies())
		})
	}
}

func TestIsSalesDiscount(t *testing.T) {
	key := inventory.NewKey("10001", "1", "1", "5000", "NORTH")
	assert.True(t, line(KindSales, "51", "3", "", 0, key).IsSalesDiscount())
	assert.False(t, line(KindSales, "51", "1", "", 1, key).IsSalesDiscount())
	assert.False(t, line(KindPurchase, "11", "3", "", 1, key).IsSalesDiscount())
}

func TestAdjustmentCategory(t *testing.T) {
	assert.Equal(t, AdjustmentLoss, AdjustmentCategory("1"))
	assert.Equal(t, AdjustmentLoss, AdjustmentCategory("3"))
	assert.Equal(t, AdjustmentTransfer, AdjustmentCategory("4"))
	assert.Equal(t, AdjustmentCorrection, AdjustmentCategory("6"))
	assert.Equal(t, "", AdjustmentCategory("2"))
}

func TestCategoryLabel(t *testing.T) {
	key := inventory.NewKey("10001", "", "", "", "")
	assert.Equal(t, "credit sale", line(KindSales, "51", "1", "", 1, key).CategoryLabel())
	assert.Equal(t, "cash sale", line(KindSales, "52", "1", "", 1, key).CategoryLabel())
	assert.Equal(t, "credit purchase", line(KindPurchase, "11", "1", "", 1, key).CategoryLabel())
	assert.Equal(t, "cash purchase", line(KindPurchase, "12", "1", "", 1, key).CategoryLabel())
	assert.Equal(t, "adjustment", line(KindAdjustment, "71", "1", "1", 1, key).CategoryLabel())
	assert.Equal(t, "transfer", line(KindAdjustment, "71", "1", "4", 1, key).CategoryLabel())
	assert.Equal(t, "sale", line(KindSales, "51", "1", "", 1, key).Category())
}
