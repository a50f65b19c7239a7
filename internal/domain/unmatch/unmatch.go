// Package unmatch reconciles the day's voucher lines against the inventory
// snapshot and reports lines that reference no inventory record.
package unmatch

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"invclose/internal/core/id"
	"invclose/internal/domain/inventory"
	"invclose/internal/domain/voucher"
)

// Reason why a line was reported.
type Reason string

const (
	ReasonNotFound  Reason = "NOT_FOUND"
	ReasonZeroStock Reason = "ZERO_STOCK"
)

// Message is the operator text of the reason.
func (r Reason) Message() string {
	switch r {
	case ReasonNotFound:
		return "no matching inventory record"
	case ReasonZeroStock:
		return "stock is zero"
	}
	return string(r)
}

// ZeroStockPolicy decides whether zero stock is a finding.
type ZeroStockPolicy string

const (
	// ZeroStockSuppress never reports zero stock. Negative stock is valid.
	ZeroStockSuppress ZeroStockPolicy = "suppress"
	// ZeroStockFlag reports lines whose item ends the day at zero stock.
	ZeroStockFlag ZeroStockPolicy = "flag"
)

// ParseZeroStockPolicy parses a configured policy. Blank means suppress.
func ParseZeroStockPolicy(s string) (ZeroStockPolicy, error) {
	switch ZeroStockPolicy(s) {
	case "", ZeroStockSuppress:
		return ZeroStockSuppress, nil
	case ZeroStockFlag:
		return ZeroStockFlag, nil
	}
	return "", fmt.Errorf("unknown zero stock policy %q", s)
}

// Item is one unmatched voucher line.
type Item struct {
	Reason        Reason       `json:"reason"`
	Kind          voucher.Kind `json:"kind"`
	Category      string       `json:"category"`
	CategoryLabel string       `json:"categoryLabel"`

	VoucherNumber string    `json:"voucherNumber"`
	VoucherDate   time.Time `json:"voucherDate"`
	LineNumber    int       `json:"lineNumber"`

	inventory.Key
	ProductName    string `json:"productName"`
	Classification string `json:"classification"`

	CounterpartyCode string `json:"counterpartyCode,omitempty"`
	CounterpartyName string `json:"counterpartyName,omitempty"`

	Quantity decimal.Decimal `json:"quantity"`
	Amount   decimal.Decimal `json:"amount"`
}

// Result is the outcome of one detection run.
type Result struct {
	DatasetID    id.ID           `json:"datasetId"`
	BusinessDate time.Time       `json:"businessDate"`
	Policy       ZeroStockPolicy `json:"policy"`
	CheckedLines int             `json:"checkedLines"`
	Items        []Item          `json:"items"`
}

// Count is the number of findings.
func (r Result) Count() int {
	return len(r.Items)
}

// Empty reports whether reconciliation found nothing.
func (r Result) Empty() bool {
	return len(r.Items) == 0
}
