package memstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"invclose/internal/core/apperror"
	"invclose/internal/core/id"
	"invclose/internal/core/types"
	"invclose/internal/domain/dailyclose"
	"invclose/internal/domain/dataset"
	"invclose/internal/domain/history"
)

// DatasetRepo is the in-memory dataset table.
type DatasetRepo struct{ s *Store }

var _ dataset.Repository = (*DatasetRepo)(nil)

func (r *DatasetRepo) DeleteByKey(_ context.Context, date time.Time, processType dataset.ProcessType) ([]id.ID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("datasets.DeleteByKey"); err != nil {
		return nil, err
	}
	var removed []id.ID
	r.s.datasets = slices.DeleteFunc(r.s.datasets, func(d dataset.Record) bool {
		if d.BusinessDate.Equal(date) && d.ProcessType == processType {
			removed = append(removed, d.ID)
			return true
		}
		return false
	})
	return removed, nil
}

// Insert fails with CONFLICT when the pair already has a record.
func (r *DatasetRepo) Insert(_ context.Context, rec dataset.Record) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("datasets.Insert"); err != nil {
		return err
	}
	for _, d := range r.s.datasets {
		if d.BusinessDate.Equal(rec.BusinessDate) && d.ProcessType == rec.ProcessType {
			return apperror.NewConflict("dataset already issued").
				WithDetail("business_date", types.FormatDate(rec.BusinessDate)).
				WithDetail("process_type", rec.ProcessType)
		}
	}
	r.s.datasets = append(r.s.datasets, rec)
	return nil
}

func (r *DatasetRepo) FindCurrent(_ context.Context, date time.Time, processType dataset.ProcessType) (*dataset.Record, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("datasets.FindCurrent"); err != nil {
		return nil, err
	}
	for _, d := range r.s.datasets {
		if d.BusinessDate.Equal(date) && d.ProcessType == processType && d.IsActive {
			return &d, nil
		}
	}
	return nil, nil
}

func (r *DatasetRepo) Exists(_ context.Context, datasetID id.ID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("datasets.Exists"); err != nil {
		return false, err
	}
	return slices.ContainsFunc(r.s.datasets, func(d dataset.Record) bool { return d.ID == datasetID }), nil
}

func (r *DatasetRepo) List(_ context.Context, filter dataset.Filter) ([]dataset.Record, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("datasets.List"); err != nil {
		return nil, err
	}
	var out []dataset.Record
	for _, d := range r.s.datasets {
		if filter.BusinessDate != nil && !d.BusinessDate.Equal(*filter.BusinessDate) {
			continue
		}
		if filter.ProcessType != "" && d.ProcessType != filter.ProcessType {
			continue
		}
		out = append(out, d)
	}
	slices.SortStableFunc(out, func(a, b dataset.Record) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return limit(out, filter.Limit), nil
}

// HistoryRepo is the in-memory process history.
type HistoryRepo struct{ s *Store }

var _ history.Repository = (*HistoryRepo)(nil)

// Entries returns every entry in insertion order.
func (r *HistoryRepo) Entries() []history.Entry {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]history.Entry(nil), r.s.history...)
}

func (r *HistoryRepo) Insert(_ context.Context, e history.Entry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("history.Insert"); err != nil {
		return err
	}
	r.s.history = append(r.s.history, e)
	return nil
}

func (r *HistoryRepo) Finish(_ context.Context, entryID id.ID, status history.Status, dataHash, remark string, completedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("history.Finish"); err != nil {
		return err
	}
	i := slices.IndexFunc(r.s.history, func(e history.Entry) bool { return e.ID == entryID })
	if i < 0 {
		return fmt.Errorf("history entry %s not found", entryID)
	}
	e := &r.s.history[i]
	e.Status = status
	e.DataHash = dataHash
	e.Remark = remark
	e.CompletedAt = &completedAt
	return nil
}

func (r *HistoryRepo) LatestCompleted(_ context.Context, date time.Time, processType dataset.ProcessType, datasetID *id.ID) (*history.Entry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("history.LatestCompleted"); err != nil {
		return nil, err
	}
	var latest *history.Entry
	for _, e := range r.s.history {
		if e.Status != history.StatusCompleted || e.ProcessType != processType || !e.BusinessDate.Equal(date) {
			continue
		}
		if datasetID != nil && (e.DatasetID == nil || *e.DatasetID != *datasetID) {
			continue
		}
		if latest == nil || e.CompletedAt.After(*latest.CompletedAt) {
			latest = &e
		}
	}
	return latest, nil
}

func (r *HistoryRepo) List(_ context.Context, filter history.Filter) ([]history.Entry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("history.List"); err != nil {
		return nil, err
	}
	var out []history.Entry
	for _, e := range r.s.history {
		if filter.BusinessDate != nil && !e.BusinessDate.Equal(*filter.BusinessDate) {
			continue
		}
		if filter.ProcessType != "" && e.ProcessType != filter.ProcessType {
			continue
		}
		out = append(out, e)
	}
	slices.SortStableFunc(out, func(a, b history.Entry) int { return b.StartedAt.Compare(a.StartedAt) })
	return limit(out, filter.Limit), nil
}

// CloseRepo is the in-memory daily close table.
type CloseRepo struct{ s *Store }

var _ dailyclose.Repository = (*CloseRepo)(nil)

// Seed stores rec as is.
func (r *CloseRepo) Seed(rec dailyclose.Record) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.closes[types.FormatDate(rec.BusinessDate)] = rec
}

func (r *CloseRepo) Get(_ context.Context, date time.Time) (*dailyclose.Record, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("closes.Get"); err != nil {
		return nil, err
	}
	rec, ok := r.s.closes[types.FormatDate(date)]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (r *CloseRepo) Insert(_ context.Context, rec dailyclose.Record) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("closes.Insert"); err != nil {
		return err
	}
	k := types.FormatDate(rec.BusinessDate)
	if _, ok := r.s.closes[k]; ok {
		return apperror.NewConflict("daily close already recorded").WithDetail("business_date", k)
	}
	r.s.closes[k] = rec
	return nil
}

func (r *CloseRepo) Update(_ context.Context, rec dailyclose.Record) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("closes.Update"); err != nil {
		return err
	}
	k := types.FormatDate(rec.BusinessDate)
	if _, ok := r.s.closes[k]; !ok {
		return fmt.Errorf("daily close %s not found", k)
	}
	r.s.closes[k] = rec
	return nil
}

func (r *CloseRepo) Delete(_ context.Context, date time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("closes.Delete"); err != nil {
		return false, err
	}
	k := types.FormatDate(date)
	_, ok := r.s.closes[k]
	delete(r.s.closes, k)
	return ok, nil
}

func (r *CloseRepo) List(_ context.Context, filter dailyclose.Filter) ([]dailyclose.Record, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("closes.List"); err != nil {
		return nil, err
	}
	var out []dailyclose.Record
	for _, rec := range r.s.closes {
		if filter.From != nil && rec.BusinessDate.Before(*filter.From) {
			continue
		}
		if filter.To != nil && rec.BusinessDate.After(*filter.To) {
			continue
		}
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		out = append(out, rec)
	}
	slices.SortFunc(out, func(a, b dailyclose.Record) int { return cmp.Compare(b.BusinessDate.Unix(), a.BusinessDate.Unix()) })
	return limit(out, filter.Limit), nil
}

func limit[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}
