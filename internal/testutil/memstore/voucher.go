package memstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"invclose/internal/core/id"
	"invclose/internal/core/types"
	"invclose/internal/domain/voucher"
)

// VoucherRepo holds the lines of one kind.
type VoucherRepo struct {
	s    *Store
	kind voucher.Kind
}

var _ voucher.Repository = (*VoucherRepo)(nil)

func (r *VoucherRepo) Kind() voucher.Kind { return r.kind }

func (r *VoucherRepo) op(name string) string {
	return fmt.Sprintf("vouchers.%s.%s", r.kind, name)
}

func (r *VoucherRepo) GetByDate(_ context.Context, date time.Time) ([]voucher.Line, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter(r.op("GetByDate")); err != nil {
		return nil, err
	}
	date = types.BusinessDate(date)
	return r.filter(func(l voucher.Line) bool { return types.BusinessDate(l.JobDate).Equal(date) }), nil
}

func (r *VoucherRepo) GetByDataset(_ context.Context, datasetID id.ID) ([]voucher.Line, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter(r.op("GetByDataset")); err != nil {
		return nil, err
	}
	return r.filter(func(l voucher.Line) bool { return l.DatasetID == datasetID }), nil
}

// BulkInsert assigns ids and timestamps to lines that lack them.
func (r *VoucherRepo) BulkInsert(_ context.Context, lines []voucher.Line) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter(r.op("BulkInsert")); err != nil {
		return err
	}
	now := r.s.clock.Now().UTC()
	for _, l := range lines {
		l.Kind = r.kind
		if l.ID == 0 {
			r.s.nextLine++
			l.ID = r.s.nextLine
		}
		if l.CreatedAt.IsZero() {
			l.CreatedAt = now
		}
		if l.UpdatedAt.IsZero() {
			l.UpdatedAt = l.CreatedAt
		}
		r.s.vouchers[r.kind] = append(r.s.vouchers[r.kind], l)
	}
	return nil
}

func (r *VoucherRepo) CountByDate(_ context.Context, date time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter(r.op("CountByDate")); err != nil {
		return 0, err
	}
	date = types.BusinessDate(date)
	return int64(len(r.filter(func(l voucher.Line) bool { return types.BusinessDate(l.JobDate).Equal(date) }))), nil
}

func (r *VoucherRepo) GetModifiedAfter(_ context.Context, date time.Time, ts time.Time) ([]voucher.Line, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter(r.op("GetModifiedAfter")); err != nil {
		return nil, err
	}
	date = types.BusinessDate(date)
	return r.filter(func(l voucher.Line) bool {
		return types.BusinessDate(l.JobDate).Equal(date) && (l.CreatedAt.After(ts) || l.UpdatedAt.After(ts))
	}), nil
}

// UpdatePricing writes the enrichment. It does not count as a modification.
func (r *VoucherRepo) UpdatePricing(_ context.Context, updates []voucher.PricingUpdate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter(r.op("UpdatePricing")); err != nil {
		return err
	}
	lines := r.s.vouchers[r.kind]
	for _, u := range updates {
		i := slices.IndexFunc(lines, func(l voucher.Line) bool { return l.ID == u.ID })
		if i < 0 {
			return fmt.Errorf("%s line %d not found", r.kind, u.ID)
		}
		lines[i].InventoryUnitPrice = u.InventoryUnitPrice
		lines[i].GrossProfit = u.GrossProfit
	}
	return nil
}

// Modify changes the line with lineID and stamps it updated now.
func (r *VoucherRepo) Modify(lineID int64, fn func(*voucher.Line)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	lines := r.s.vouchers[r.kind]
	i := slices.IndexFunc(lines, func(l voucher.Line) bool { return l.ID == lineID })
	if i < 0 {
		return fmt.Errorf("%s line %d not found", r.kind, lineID)
	}
	fn(&lines[i])
	lines[i].UpdatedAt = r.s.clock.Now().UTC()
	return nil
}

// filter returns matching lines ordered by id. Callers hold mu.
func (r *VoucherRepo) filter(keep func(voucher.Line) bool) []voucher.Line {
	var out []voucher.Line
	for _, l := range r.s.vouchers[r.kind] {
		if keep(l) {
			out = append(out, l)
		}
	}
	slices.SortFunc(out, func(a, b voucher.Line) int { return cmp.Compare(a.ID, b.ID) })
	return out
}
