// Package inventory holds the inventory key, the permanent inventory master,
// the dataset-scoped snapshot and the mutator that rolls a closed day into
// the master.
package inventory

import (
	"cmp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/width"
)

// Code widths after zero padding.
const (
	ProductCodeWidth      = 5
	GradeCodeWidth        = 3
	ClassCodeWidth        = 3
	ShippingMarkCodeWidth = 4
	ShippingMarkNameWidth = 8
)

// excludedMarkPrefix marks internal write-off lines by shipping-mark name.
const excludedMarkPrefix = "EXIT"

// reservedMarkCodes are shipping-mark codes used for bookkeeping lines.
var reservedMarkCodes = map[string]struct{}{
	"9900": {},
	"9910": {},
	"1353": {},
}

// Key is the composite identity of an inventory item. It is a comparable
// value: two keys are equal iff all five normalized components are equal.
// Build keys with NewKey so components are normalized.
type Key struct {
	ProductCode      string `db:"product_code" json:"productCode" yaml:"product_code"`
	GradeCode        string `db:"grade_code" json:"gradeCode" yaml:"grade_code"`
	ClassCode        string `db:"class_code" json:"classCode" yaml:"class_code"`
	ShippingMarkCode string `db:"shipping_mark_code" json:"shippingMarkCode" yaml:"shipping_mark_code"`
	ShippingMarkName string `db:"shipping_mark_name" json:"shippingMarkName" yaml:"shipping_mark_name"`
}

// NewKey normalizes the five components into a Key.
func NewKey(productCode, gradeCode, classCode, shippingMarkCode, shippingMarkName string) Key {
	return Key{
		ProductCode:      normalizeCode(productCode, ProductCodeWidth),
		GradeCode:        normalizeCode(gradeCode, GradeCodeWidth),
		ClassCode:        normalizeCode(classCode, ClassCodeWidth),
		ShippingMarkCode: normalizeCode(shippingMarkCode, ShippingMarkCodeWidth),
		ShippingMarkName: normalizeName(shippingMarkName),
	}
}

// Normalize re-applies normalization. Rows read from storage or fixtures go
// through it before they are used as map keys.
func (k Key) Normalize() Key {
	return NewKey(k.ProductCode, k.GradeCode, k.ClassCode, k.ShippingMarkCode, k.ShippingMarkName)
}

// Excluded reports keys that never create or update snapshot or master rows.
func (k Key) Excluded() bool {
	if strings.Trim(k.ProductCode, "0") == "" {
		return true
	}
	if len(k.ShippingMarkName) >= len(excludedMarkPrefix) &&
		strings.EqualFold(k.ShippingMarkName[:len(excludedMarkPrefix)], excludedMarkPrefix) {
		return true
	}
	_, reserved := reservedMarkCodes[k.ShippingMarkCode]
	return reserved
}

// WithoutMarkName drops the shipping-mark name. Product classification is
// looked up with this key.
func (k Key) WithoutMarkName() Key {
	k.ShippingMarkName = ""
	return k
}

// String renders the key for logs and audit entries.
func (k Key) String() string {
	return k.ProductCode + "-" + k.GradeCode + "-" + k.ClassCode + "-" + k.ShippingMarkCode + "-" + k.ShippingMarkName
}

// Compare orders keys by product, grade, class, shipping-mark code and
// shipping-mark name.
func (k Key) Compare(o Key) int {
	return cmp.Or(
		cmp.Compare(k.ProductCode, o.ProductCode),
		cmp.Compare(k.GradeCode, o.GradeCode),
		cmp.Compare(k.ClassCode, o.ClassCode),
		cmp.Compare(k.ShippingMarkCode, o.ShippingMarkCode),
		cmp.Compare(k.ShippingMarkName, o.ShippingMarkName),
	)
}

// normalizeCode folds full-width characters, trims and left-pads with zeros.
// A blank code becomes all zeros.
func normalizeCode(s string, w int) string {
	s = strings.TrimSpace(width.Narrow.String(s))
	if n := utf8.RuneCountInString(s); n < w {
		s = strings.Repeat("0", w-n) + s
	}
	return s
}

// normalizeName folds full-width characters, trims and cuts to ShippingMarkNameWidth runes.
func normalizeName(s string) string {
	s = strings.TrimSpace(width.Narrow.String(s))
	if utf8.RuneCountInString(s) > ShippingMarkNameWidth {
		s = string([]rune(s)[:ShippingMarkNameWidth])
		s = strings.TrimSpace(s)
	}
	return s
}
