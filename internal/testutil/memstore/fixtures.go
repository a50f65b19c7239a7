package memstore

import (
	"time"

	"github.com/shopspring/decimal"

	"invclose/internal/core/types"
	"invclose/internal/domain/inventory"
	"invclose/internal/domain/voucher"
)

// Date parses YYYY-MM-DD into a business date. It panics on bad input.
func Date(s string) time.Time {
	d, err := types.ParseBusinessDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Key builds a normalized key with default grade, class and mark.
func Key(product string) inventory.Key {
	return inventory.NewKey(product, "1", "1", "1", "")
}

// Master builds an active master row holding qty at price, as of asOf.
func Master(key inventory.Key, qty, price string, asOf time.Time) inventory.Master {
	q := types.MustDecimal(qty)
	p := types.MustDecimal(price)
	return inventory.Master{
		Key:                 key,
		ProductName:         "Item " + key.ProductCode,
		Unit:                "kg",
		PreviousStock:       q,
		PreviousStockAmount: types.RoundAmount(q.Mul(p)),
		CurrentStock:        q,
		CurrentStockAmount:  types.RoundAmount(q.Mul(p)),
		UnitPrice:           p,
		AsOfDate:            asOf,
		IsActive:            true,
	}
}

func line(kind voucher.Kind, voucherType, detailType string, date time.Time, key inventory.Key, qty, amount string) voucher.Line {
	q := types.MustDecimal(qty)
	a := types.MustDecimal(amount)
	price := decimal.Zero
	if !q.IsZero() {
		price = types.RoundPrice(a.Div(q))
	}
	return voucher.Line{
		Kind:          kind,
		VoucherID:     "V-" + key.ProductCode,
		LineNumber:    1,
		VoucherNumber: "N-" + key.ProductCode,
		VoucherDate:   date,
		JobDate:       date,
		VoucherType:   voucherType,
		DetailType:    detailType,
		Key:           key,
		ProductName:   "Item " + key.ProductCode,
		Quantity:      q,
		UnitPrice:     price,
		Amount:        a,
	}
}

// Sale builds a qualifying credit sale line.
func Sale(date time.Time, key inventory.Key, qty, amount string) voucher.Line {
	l := line(voucher.KindSales, voucher.TypeCreditSale, voucher.DetailGoods, date, key, qty, amount)
	l.CounterpartyCode = "C001"
	return l
}

// Discount builds a sales discount line.
func Discount(date time.Time, key inventory.Key, amount string) voucher.Line {
	return line(voucher.KindSales, voucher.TypeCreditSale, voucher.DetailDiscount, date, key, "1", amount)
}

// Purchase builds a qualifying credit purchase line.
func Purchase(date time.Time, key inventory.Key, qty, amount string) voucher.Line {
	l := line(voucher.KindPurchase, voucher.TypeCreditPurchase, voucher.DetailGoods, date, key, qty, amount)
	l.CounterpartyCode = "S001"
	return l
}

// Adjustment builds an adjustment line with unitCode.
func Adjustment(date time.Time, key inventory.Key, unitCode, qty, amount string) voucher.Line {
	l := line(voucher.KindAdjustment, voucher.TypeAdjustment, voucher.DetailGoods, date, key, qty, amount)
	l.UnitCode = unitCode
	return l
}
