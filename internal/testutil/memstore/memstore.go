// Package memstore implements every repository port in memory for tests.
// One Store holds all tables; repositories are views over it.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"invclose/internal/core/clock"
	"invclose/internal/core/id"
	"invclose/internal/core/tx"
	"invclose/internal/core/types"
	"invclose/internal/domain/dailyclose"
	"invclose/internal/domain/dataset"
	"invclose/internal/domain/history"
	"invclose/internal/domain/inventory"
	"invclose/internal/domain/masterdata"
	"invclose/internal/domain/voucher"
)

// DeactivationAudit is one recorded deactivation.
type DeactivationAudit struct {
	Date          string
	ThresholdDays int
	Keys          []inventory.Key
}

type failure struct {
	err       error
	remaining int // <0 fails forever
}

// Store is the in-memory database.
type Store struct {
	mu    sync.Mutex
	clock clock.Clock

	masters   map[inventory.Key]inventory.Master
	snapshots map[id.ID]map[inventory.Key]inventory.Snapshot
	vouchers  map[voucher.Kind][]voucher.Line
	nextLine  int64
	datasets  []dataset.Record
	history   []history.Entry
	closes    map[string]dailyclose.Record
	audits    []DeactivationAudit
	names     map[masterdata.Entity]map[string]string

	failures map[string]*failure
	calls    map[string]int
}

// New creates an empty store stamping rows with clk.
func New(clk clock.Clock) *Store {
	return &Store{
		clock:     clk,
		masters:   make(map[inventory.Key]inventory.Master),
		snapshots: make(map[id.ID]map[inventory.Key]inventory.Snapshot),
		vouchers:  make(map[voucher.Kind][]voucher.Line),
		closes:    make(map[string]dailyclose.Record),
		names:     make(map[masterdata.Entity]map[string]string),
		failures:  make(map[string]*failure),
		calls:     make(map[string]int),
	}
}

// FailOn makes every call of op return err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = &failure{err: err, remaining: -1}
}

// FailNext makes the next n calls of op return err.
func (s *Store) FailNext(op string, n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = &failure{err: err, remaining: n}
}

// Calls returns how often op was called.
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// enter counts the call and returns the injected failure. Callers hold mu.
func (s *Store) enter(op string) error {
	s.calls[op]++
	f, ok := s.failures[op]
	if !ok {
		return nil
	}
	if f.remaining == 0 {
		delete(s.failures, op)
		return nil
	}
	if f.remaining > 0 {
		f.remaining--
	}
	return fmt.Errorf("%s: %w", op, f.err)
}

// TxManager returns a transaction manager with no isolation.
func (s *Store) TxManager() tx.Manager { return tx.Nop{} }

// Masters returns the inventory master repository.
func (s *Store) Masters() *MasterRepo { return &MasterRepo{s: s} }

// Snapshots returns the snapshot repository.
func (s *Store) Snapshots() *SnapshotRepo { return &SnapshotRepo{s: s} }

// Vouchers returns the three voucher repositories.
func (s *Store) Vouchers() voucher.Set {
	return voucher.Set{
		Sales:       &VoucherRepo{s: s, kind: voucher.KindSales},
		Purchases:   &VoucherRepo{s: s, kind: voucher.KindPurchase},
		Adjustments: &VoucherRepo{s: s, kind: voucher.KindAdjustment},
	}
}

// Datasets returns the dataset repository.
func (s *Store) Datasets() *DatasetRepo { return &DatasetRepo{s: s} }

// History returns the history repository.
func (s *Store) History() *HistoryRepo { return &HistoryRepo{s: s} }

// Closes returns the daily close repository.
func (s *Store) Closes() *CloseRepo { return &CloseRepo{s: s} }

// Audit returns the audit trail.
func (s *Store) Audit() *AuditRepo { return &AuditRepo{s: s} }

// MasterData returns the master data name source.
func (s *Store) MasterData() *MasterDataRepo { return &MasterDataRepo{s: s} }

// SetName registers a master data display name.
func (s *Store) SetName(entity masterdata.Entity, code, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.names[entity] == nil {
		s.names[entity] = make(map[string]string)
	}
	s.names[entity][code] = name
}

// Audits returns recorded deactivations.
func (s *Store) Audits() []DeactivationAudit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]DeactivationAudit(nil), s.audits...)
}

// MasterDataRepo is a masterdata.Source over registered names.
type MasterDataRepo struct{ s *Store }

var _ masterdata.Source = (*MasterDataRepo)(nil)

// Name returns the registered name.
func (r *MasterDataRepo) Name(_ context.Context, entity masterdata.Entity, code string) (string, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("masterdata.Name"); err != nil {
		return "", false, err
	}
	name, ok := r.s.names[entity][code]
	return name, ok, nil
}

// Upsert registers names in bulk.
func (r *MasterDataRepo) Upsert(_ context.Context, entity masterdata.Entity, names map[string]string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("masterdata.Upsert"); err != nil {
		return err
	}
	if r.s.names[entity] == nil {
		r.s.names[entity] = make(map[string]string)
	}
	for code, name := range names {
		r.s.names[entity][code] = name
	}
	return nil
}

// AuditRepo records deactivations.
type AuditRepo struct{ s *Store }

var _ inventory.AuditTrail = (*AuditRepo)(nil)

// RecordDeactivation stores one audit entry.
func (r *AuditRepo) RecordDeactivation(_ context.Context, date time.Time, thresholdDays int, keys []inventory.Key) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("audit.RecordDeactivation"); err != nil {
		return err
	}
	r.s.audits = append(r.s.audits, DeactivationAudit{
		Date:          types.FormatDate(date),
		ThresholdDays: thresholdDays,
		Keys:          append([]inventory.Key(nil), keys...),
	})
	return nil
}
