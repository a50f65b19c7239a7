// Package inventory_repo provides PostgreSQL implementations of the
// inventory master and snapshot repositories.
package inventory_repo

import (
	"strings"

	"github.com/Masterminds/squirrel"

	"invclose/internal/domain/inventory"
)

// keyColumns are the five key columns in key order.
var keyColumns = []string{
	"product_code", "grade_code", "class_code", "shipping_mark_code", "shipping_mark_name",
}

var keyOrder = strings.Join(keyColumns, ", ")

func keyEq(k inventory.Key) squirrel.Eq {
	return squirrel.Eq{
		"product_code":       k.ProductCode,
		"grade_code":         k.GradeCode,
		"class_code":         k.ClassCode,
		"shipping_mark_code": k.ShippingMarkCode,
		"shipping_mark_name": k.ShippingMarkName,
	}
}

func normalizeKeys[T any](rows []T, key func(*T) *inventory.Key) {
	for i := range rows {
		k := key(&rows[i])
		*k = k.Normalize()
	}
}
