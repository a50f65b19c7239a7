package memstore

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"invclose/internal/core/id"
	"invclose/internal/core/types"
	"invclose/internal/domain/dataset"
	"invclose/internal/domain/inventory"
)

// MasterRepo is the in-memory inventory master.
type MasterRepo struct{ s *Store }

var _ inventory.MasterRepository = (*MasterRepo)(nil)

// Seed stores rows as is, keyed by their normalized key.
func (r *MasterRepo) Seed(rows ...inventory.Master) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range rows {
		m.Key = m.Key.Normalize()
		r.s.masters[m.Key] = m
	}
}

// All returns every row, active or not, ordered by key.
func (r *MasterRepo) All() []inventory.Master {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return sortedMasters(r.s.masters, func(inventory.Master) bool { return true })
}

func (r *MasterRepo) GetByDate(_ context.Context, date time.Time) ([]inventory.Master, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("masters.GetByDate"); err != nil {
		return nil, err
	}
	date = types.BusinessDate(date)
	return sortedMasters(r.s.masters, func(m inventory.Master) bool {
		return m.IsActive && !m.AsOfDate.After(date)
	}), nil
}

func (r *MasterRepo) GetByKey(_ context.Context, key inventory.Key) (*inventory.Master, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("masters.GetByKey"); err != nil {
		return nil, err
	}
	m, ok := r.s.masters[key.Normalize()]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (r *MasterRepo) FindClassification(_ context.Context, key inventory.Key) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("masters.FindClassification"); err != nil {
		return "", err
	}
	want := key.Normalize().WithoutMarkName()
	var best *inventory.Master
	for _, m := range r.s.masters {
		if m.Key.WithoutMarkName() != want || m.ProductCategory1 == "" {
			continue
		}
		if best == nil || m.AsOfDate.After(best.AsOfDate) {
			best = &m
		}
	}
	if best == nil {
		return "", nil
	}
	return best.ProductCategory1, nil
}

func (r *MasterRepo) BulkInsert(_ context.Context, rows []inventory.Master) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("masters.BulkInsert"); err != nil {
		return err
	}
	now := r.s.clock.Now().UTC()
	for _, m := range rows {
		m.Key = m.Key.Normalize()
		if _, ok := r.s.masters[m.Key]; ok {
			return fmt.Errorf("master row %s already exists", m.Key)
		}
		m.CreatedAt, m.UpdatedAt = now, now
		r.s.masters[m.Key] = m
	}
	return nil
}

func (r *MasterRepo) Upsert(_ context.Context, rows []inventory.Master) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("masters.Upsert"); err != nil {
		return err
	}
	now := r.s.clock.Now().UTC()
	for _, m := range rows {
		m.Key = m.Key.Normalize()
		m.CreatedAt = now
		if old, ok := r.s.masters[m.Key]; ok {
			m.CreatedAt = old.CreatedAt
			if m.ProductCategory1 == "" {
				m.ProductCategory1 = old.ProductCategory1
			}
		}
		m.UpdatedAt = now
		r.s.masters[m.Key] = m
	}
	return nil
}

func (r *MasterRepo) DeactivateZeroStock(_ context.Context, date time.Time, thresholdDays int) ([]inventory.Key, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("masters.DeactivateZeroStock"); err != nil {
		return nil, err
	}
	limit := types.BusinessDate(date).AddDate(0, 0, -thresholdDays)
	var keys []inventory.Key
	for k, m := range r.s.masters {
		if !m.IsActive || !m.CurrentStock.IsZero() || m.ZeroStockSince == nil || m.ZeroStockSince.After(limit) {
			continue
		}
		m.IsActive = false
		m.UpdatedAt = r.s.clock.Now().UTC()
		r.s.masters[k] = m
		keys = append(keys, k)
	}
	slices.SortFunc(keys, inventory.Key.Compare)
	return keys, nil
}

func sortedMasters(all map[inventory.Key]inventory.Master, keep func(inventory.Master) bool) []inventory.Master {
	var out []inventory.Master
	for _, k := range slices.SortedFunc(maps.Keys(all), inventory.Key.Compare) {
		if m := all[k]; keep(m) {
			out = append(out, m)
		}
	}
	return out
}

// SnapshotRepo is the in-memory snapshot table.
type SnapshotRepo struct{ s *Store }

var (
	_ inventory.SnapshotRepository = (*SnapshotRepo)(nil)
	_ dataset.SnapshotPurger       = (*SnapshotRepo)(nil)
)

func (r *SnapshotRepo) CopyFromMaster(_ context.Context, datasetID id.ID, date time.Time, mode inventory.CopyMode) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("snapshots.CopyFromMaster"); err != nil {
		return 0, err
	}
	date = types.BusinessDate(date)
	rows := make(map[inventory.Key]inventory.Snapshot)
	for k, m := range r.s.masters {
		if !m.IsActive || m.AsOfDate.After(date) {
			continue
		}
		if mode == inventory.CopyAsOf && m.LastCloseDate != nil && !m.LastCloseDate.Before(date) {
			continue
		}
		rows[k] = inventory.SnapshotFromMaster(datasetID, m, date)
	}
	r.s.snapshots[datasetID] = rows
	return int64(len(rows)), nil
}

func (r *SnapshotRepo) ResetDaily(_ context.Context, datasetID id.ID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("snapshots.ResetDaily"); err != nil {
		return err
	}
	for k, row := range r.s.snapshots[datasetID] {
		row.ResetDaily()
		r.s.snapshots[datasetID][k] = row
	}
	return nil
}

func (r *SnapshotRepo) GetByDataset(_ context.Context, datasetID id.ID) ([]inventory.Snapshot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("snapshots.GetByDataset"); err != nil {
		return nil, err
	}
	rows := r.s.snapshots[datasetID]
	out := make([]inventory.Snapshot, 0, len(rows))
	for _, k := range slices.SortedFunc(maps.Keys(rows), inventory.Key.Compare) {
		out = append(out, rows[k])
	}
	return out, nil
}

func (r *SnapshotRepo) CountByDataset(_ context.Context, datasetID id.ID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("snapshots.CountByDataset"); err != nil {
		return 0, err
	}
	return int64(len(r.s.snapshots[datasetID])), nil
}

func (r *SnapshotRepo) Insert(_ context.Context, rows []inventory.Snapshot) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("snapshots.Insert"); err != nil {
		return err
	}
	for _, row := range rows {
		ds := r.s.snapshots[row.DatasetID]
		if ds == nil {
			ds = make(map[inventory.Key]inventory.Snapshot)
			r.s.snapshots[row.DatasetID] = ds
		}
		if _, ok := ds[row.Key]; ok {
			return fmt.Errorf("snapshot row %s/%s already exists", row.DatasetID, row.Key)
		}
		ds[row.Key] = row
	}
	return nil
}

func (r *SnapshotRepo) UpdateDaily(_ context.Context, rows []inventory.Snapshot) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("snapshots.UpdateDaily"); err != nil {
		return err
	}
	for _, row := range rows {
		if _, ok := r.s.snapshots[row.DatasetID][row.Key]; !ok {
			return fmt.Errorf("snapshot row %s/%s not found", row.DatasetID, row.Key)
		}
		r.s.snapshots[row.DatasetID][row.Key] = row
	}
	return nil
}

func (r *SnapshotRepo) MarkProcessed(_ context.Context, datasetID id.ID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("snapshots.MarkProcessed"); err != nil {
		return 0, err
	}
	var n int64
	for k, row := range r.s.snapshots[datasetID] {
		if row.DailyFlag == inventory.DailyFlagSeen {
			row.DailyFlag = inventory.DailyFlagProcessed
			r.s.snapshots[datasetID][k] = row
			n++
		}
	}
	return n, nil
}

func (r *SnapshotRepo) DeleteByDataset(_ context.Context, datasetID id.ID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("snapshots.DeleteByDataset"); err != nil {
		return 0, err
	}
	n := int64(len(r.s.snapshots[datasetID]))
	delete(r.s.snapshots, datasetID)
	return n, nil
}
