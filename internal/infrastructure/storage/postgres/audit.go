package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/klauspost/compress/zstd"

	"invclose/internal/core/clock"
	appctx "invclose/internal/core/context"
	"invclose/internal/core/id"
	"invclose/internal/core/types"
	"invclose/internal/domain/inventory"
)

// AuditAction is the kind of audited change.
type AuditAction string

const (
	AuditActionDeactivate AuditAction = "deactivate"
)

// CompressionAlgo tells how Changes is stored.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

const auditEntityMaster = "inventory_master"

// defaultCompressThreshold is the payload size above which changes are
// stored zstd-compressed.
const defaultCompressThreshold = 10 * 1024

// AuditEntry is one sys_audit row.
type AuditEntry struct {
	ID                id.ID           `db:"id"`
	EntityType        string          `db:"entity_type"`
	BusinessDate      time.Time       `db:"business_date"`
	Action            AuditAction     `db:"action"`
	UserID            string          `db:"user_id"`
	Changes           json.RawMessage `db:"changes"`
	ChangesCompressed []byte          `db:"changes_compressed"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo"`
	CreatedAt         time.Time       `db:"created_at"`
}

// deactivationChanges is the payload of a deactivation entry.
type deactivationChanges struct {
	ThresholdDays int             `json:"thresholdDays"`
	Count         int             `json:"count"`
	Keys          []inventory.Key `json:"keys"`
}

// AuditTrail writes master changes made outside the close record to
// sys_audit. Large key lists are compressed.
type AuditTrail struct {
	txManager         *TxManager
	clock             clock.Clock
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

var _ inventory.AuditTrail = (*AuditTrail)(nil)

// NewAuditTrail creates the audit trail.
func NewAuditTrail(txManager *TxManager, clk clock.Clock) (*AuditTrail, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &AuditTrail{
		txManager:         txManager,
		clock:             clk,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: defaultCompressThreshold,
	}, nil
}

// RecordDeactivation stores the keys a zero-stock sweep deactivated.
func (a *AuditTrail) RecordDeactivation(ctx context.Context, date time.Time, thresholdDays int, keys []inventory.Key) error {
	payload, err := json.Marshal(deactivationChanges{
		ThresholdDays: thresholdDays,
		Count:         len(keys),
		Keys:          keys,
	})
	if err != nil {
		return fmt.Errorf("marshal deactivation: %w", err)
	}

	entry := a.pack(AuditEntry{
		ID:           id.New(),
		EntityType:   auditEntityMaster,
		BusinessDate: types.BusinessDate(date),
		Action:       AuditActionDeactivate,
		UserID:       appctx.Operator(ctx),
		Changes:      payload,
		CreatedAt:    a.clock.Now().UTC(),
	})

	sql, args, err := Builder().
		Insert("sys_audit").
		SetMap(StructToMap(entry)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build audit insert: %w", err)
	}
	if _, err := a.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	return nil
}

// Entries returns the newest entries of entityType for date, decompressed.
func (a *AuditTrail) Entries(ctx context.Context, entityType string, date time.Time, limit int) ([]AuditEntry, error) {
	sql, args, err := Builder().
		Select(ExtractDBColumns[AuditEntry]()...).
		From("sys_audit").
		Where(squirrel.Eq{"entity_type": entityType, "business_date": types.BusinessDate(date)}).
		OrderBy("created_at DESC").
		Limit(uint64(max(limit, 1))).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build audit select: %w", err)
	}

	var entries []AuditEntry
	if err := pgxscan.Select(ctx, a.txManager.GetQuerier(ctx), &entries, sql, args...); err != nil {
		return nil, fmt.Errorf("select audit: %w", err)
	}
	for i := range entries {
		if err := a.unpack(&entries[i]); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// pack moves Changes into ChangesCompressed when it exceeds the threshold.
func (a *AuditTrail) pack(e AuditEntry) AuditEntry {
	e.CompressionAlgo = CompressionNone
	if len(e.Changes) > a.compressThreshold {
		e.ChangesCompressed = a.encoder.EncodeAll(e.Changes, nil)
		e.Changes = nil
		e.CompressionAlgo = CompressionZstd
	}
	return e
}

func (a *AuditTrail) unpack(e *AuditEntry) error {
	if e.CompressionAlgo != CompressionZstd || len(e.ChangesCompressed) == 0 {
		return nil
	}
	raw, err := a.decoder.DecodeAll(e.ChangesCompressed, nil)
	if err != nil {
		return fmt.Errorf("decompress audit %s: %w", e.ID, err)
	}
	e.Changes = raw
	e.ChangesCompressed = nil
	return nil
}
