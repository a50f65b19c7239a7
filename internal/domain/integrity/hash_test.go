package integrity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"invclose/internal/core/types"
	"invclose/internal/domain/inventory"
	"invclose/internal/domain/voucher"
)

func hashLine(id int64, voucherID string, lineNumber int, product, qty, amount string) voucher.Line {
	return voucher.Line{
		ID:         id,
		VoucherID:  voucherID,
		LineNumber: lineNumber,
		Key:        inventory.NewKey(product, "", "", "", ""),
		Quantity:   types.MustDecimal(qty),
		Amount:     types.MustDecimal(amount),
	}
}

func TestContentHash_KnownVector(t *testing.T) {
	sales := []voucher.Line{hashLine(1, "S-1", 1, "1", "3", "300")}
	purchases := []voucher.Line{hashLine(2, "P-1", 1, "2", "10.0", "70")}
	adjustments := []voucher.Line{hashLine(3, "A-1", 1, "3", "-1", "-5.00")}

	assert.Equal(t, "2DWCdmerp9Jk8bpzgqswcETBuZI+suIGvA3/GV4QLxw=", ContentHash(sales, purchases, adjustments))
}

func TestContentHash_Empty(t *testing.T) {
	assert.Equal(t, "47DEQpj8HBSa+/TImW+5JCeuQeRkm5NMpJWZG3hSuFU=", ContentHash(nil, nil, nil))
}

func TestContentHash_IndependentOfOrder(t *testing.T) {
	a := hashLine(1, "S-1", 1, "1", "3", "300")
	b := hashLine(2, "S-2", 1, "2", "1", "10")
	adj1 := hashLine(3, "A-1", 2, "3", "1", "5")
	adj2 := hashLine(4, "A-1", 1, "3", "1", "5")

	want := ContentHash([]voucher.Line{a, b}, nil, []voucher.Line{adj2, adj1})
	assert.Equal(t, want, ContentHash([]voucher.Line{b, a}, nil, []voucher.Line{adj1, adj2}))
}

func TestContentHash_DetectsChanges(t *testing.T) {
	base := ContentHash([]voucher.Line{hashLine(1, "S-1", 1, "1", "3", "300")}, nil, nil)

	assert.NotEqual(t, base, ContentHash([]voucher.Line{hashLine(1, "S-1", 1, "1", "3", "301")}, nil, nil))
	assert.NotEqual(t, base, ContentHash([]voucher.Line{hashLine(1, "S-1", 1, "1", "4", "300")}, nil, nil))
	assert.NotEqual(t, base, ContentHash(nil, []voucher.Line{hashLine(1, "S-1", 1, "1", "3", "300")}, nil))
	assert.Equal(t, base, ContentHash([]voucher.Line{hashLine(1, "S-1", 1, "1", "3.000", "300.0")}, nil, nil))
}

func TestResultSummary(t *testing.T) {
	assert.Equal(t, "no content hash recorded by the daily report", Result{}.Summary())
	assert.Equal(t, "content hash differs", Result{ExpectedHash: "x"}.Summary())
	assert.Equal(t, "modified after report: SALES 2, ADJUSTMENT 1", Result{
		ExpectedHash: "x",
		Changes:      map[voucher.Kind]int{voucher.KindSales: 2, voucher.KindAdjustment: 1},
	}.Summary())
}
