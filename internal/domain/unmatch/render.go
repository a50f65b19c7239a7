package unmatch

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/width"

	"invclose/internal/core/types"
)

type column struct {
	title string
	cells int
	right bool
}

var columns = []column{
	{title: "CATEGORY", cells: 15},
	{title: "VOUCHER", cells: 10},
	{title: "DATE", cells: 10},
	{title: "LN", cells: 3, right: true},
	{title: "PROD", cells: 5},
	{title: "GRD", cells: 3},
	{title: "CLS", cells: 3},
	{title: "MARK", cells: 4},
	{title: "MARKNAME", cells: 8},
	{title: "PRODUCT NAME", cells: 20},
	{title: "COUNTERPARTY", cells: 16},
	{title: "QTY", cells: 10, right: true},
	{title: "AMOUNT", cells: 12, right: true},
	{title: "REASON", cells: 0},
}

// Render writes r as fixed-column text for operators. Column widths count
// terminal cells, so wide characters take two.
func Render(w io.Writer, r Result) error {
	if _, err := fmt.Fprintf(w, "UNMATCH LIST %s  dataset %s  policy %s\n",
		types.FormatDate(r.BusinessDate), r.DatasetID, r.Policy); err != nil {
		return err
	}

	titles := make([]string, len(columns))
	for i, c := range columns {
		titles[i] = c.title
	}
	if _, err := io.WriteString(w, row(titles)); err != nil {
		return err
	}

	for _, it := range r.Items {
		line := row([]string{
			it.CategoryLabel,
			it.VoucherNumber,
			types.FormatDate(it.VoucherDate),
			fmt.Sprint(it.LineNumber),
			it.ProductCode,
			it.GradeCode,
			it.ClassCode,
			it.ShippingMarkCode,
			it.ShippingMarkName,
			it.ProductName,
			it.CounterpartyName,
			it.Quantity.StringFixed(2),
			it.Amount.StringFixed(2),
			it.Reason.Message(),
		})
		if _, err := io.WriteString(w, line); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, "%d unmatched of %d checked lines\n", r.Count(), r.CheckedLines)
	return err
}

func row(values []string) string {
	var b strings.Builder
	for i, c := range columns {
		if i > 0 {
			b.WriteByte(' ')
		}
		if c.cells == 0 {
			b.WriteString(values[i])
			continue
		}
		b.WriteString(fit(values[i], c.cells, c.right))
	}
	b.WriteByte('\n')
	return b.String()
}

// fit truncates s to n cells and pads it to exactly n cells.
func fit(s string, n int, right bool) string {
	var b strings.Builder
	used := 0
	for _, r := range s {
		w := cells(r)
		if used+w > n {
			break
		}
		b.WriteRune(r)
		used += w
	}
	pad := strings.Repeat(" ", n-used)
	if right {
		return pad + b.String()
	}
	return b.String() + pad
}

func cells(r rune) int {
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return 2
	}
	return 1
}
