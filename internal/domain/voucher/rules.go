package voucher

// Voucher type codes.
const (
	TypeCreditSale     = "51"
	TypeCashSale       = "52"
	TypeCreditPurchase = "11"
	TypeCashPurchase   = "12"
	TypeAdjustment     = "71"
	TypeAdjustmentAlt  = "72"
)

// Detail type codes.
const (
	DetailGoods    = "1"
	DetailReturn   = "2"
	DetailDiscount = "3"
)

// Adjustment unit codes.
const (
	UnitLoss           = "1"
	UnitProcessingCost = "2"
	UnitSpoilage       = "3"
	UnitTransfer       = "4"
	UnitProcessingFee  = "5"
	UnitCorrection     = "6"
)

// Adjustment sub-categories reported on the snapshot.
const (
	AdjustmentLoss       = "loss"
	AdjustmentTransfer   = "transfer"
	AdjustmentCorrection = "correction"
)

// Qualifies reports whether the line moves stock: the right voucher and
// detail types, a non-zero quantity and a key that is not excluded.
func (l Line) Qualifies() bool {
	if l.Quantity.IsZero() || l.Key.Normalize().Excluded() {
		return false
	}
	switch l.Kind {
	case KindSales:
		return isSalesType(l.VoucherType) && isGoodsDetail(l.DetailType)
	case KindPurchase:
		return isPurchaseType(l.VoucherType) && isGoodsDetail(l.DetailType)
	case KindAdjustment:
		return isAdjustmentType(l.VoucherType) &&
			l.DetailType == DetailGoods &&
			l.UnitCode != UnitProcessingCost &&
			l.UnitCode != UnitProcessingFee
	}
	return false
}

// IsSalesDiscount reports sales discount lines. They carry no stock movement
// but their amount accumulates into the snapshot discount.
func (l Line) IsSalesDiscount() bool {
	return l.Kind == KindSales &&
		isSalesType(l.VoucherType) &&
		l.DetailType == DetailDiscount &&
		!l.Key.Normalize().Excluded()
}

// AdjustmentCategory maps an adjustment unit code to its sub-category, "" when
// the code has none.
func AdjustmentCategory(unitCode string) string {
	switch unitCode {
	case UnitLoss, UnitSpoilage:
		return AdjustmentLoss
	case UnitTransfer:
		return AdjustmentTransfer
	case UnitCorrection:
		return AdjustmentCorrection
	}
	return ""
}

// Category is the reconciliation category of the line's kind.
func (l Line) Category() string {
	switch l.Kind {
	case KindSales:
		return "sale"
	case KindPurchase:
		return "purchase"
	case KindAdjustment:
		return "adjustment"
	}
	return ""
}

// CategoryLabel is the operator-facing label of the voucher type.
func (l Line) CategoryLabel() string {
	switch l.VoucherType {
	case TypeCreditSale:
		return "credit sale"
	case TypeCashSale:
		return "cash sale"
	case TypeCreditPurchase:
		return "credit purchase"
	case TypeCashPurchase:
		return "cash purchase"
	case TypeAdjustment, TypeAdjustmentAlt:
		if l.UnitCode == UnitTransfer {
			return "transfer"
		}
		return "adjustment"
	}
	return l.Category()
}

func isSalesType(t string) bool    { return t == TypeCreditSale || t == TypeCashSale }
func isPurchaseType(t string) bool { return t == TypeCreditPurchase || t == TypeCashPurchase }
func isAdjustmentType(t string) bool {
	return t == TypeAdjustment || t == TypeAdjustmentAlt
}
func isGoodsDetail(t string) bool { return t == DetailGoods || t == DetailReturn }
