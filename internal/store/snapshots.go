package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SnapshotDims identifies one snapshot key. Unused dimensions stay empty;
// the full tuple plus the kind is the lookup key.
type SnapshotDims struct {
	Portfolio        string
	Asset            string
	CounterpartyRef  string
	CounterpartyName string
	Product          string
	Contract         string
	BaseAsset        string
	QuoteAsset       string
}

// SnapshotRow is one stored snapshot version. State carries the aggregate's
// folded values as JSON; the bitemporal columns mirror the feed ledger.
type SnapshotRow struct {
	ID          uuid.UUID
	RefSnapshot *uuid.UUID
	Kind        string
	Dims        SnapshotDims
	Version     int64
	State       json.RawMessage

	LoadStart          time.Time
	TradeDate          time.Time
	EffectiveDateStart time.Time
	EffectiveDateEnd   *time.Time
}

const snapshotColumns = `id, ref_snapshot, kind, portfolio, asset,
	counterparty_ref, counterparty_name, product, contract, base_asset, quote_asset,
	version, state, load_start, trade_date, effective_date_start, effective_date_end`

func scanSnapshot(row interface{ Scan(...interface{}) error }) (*SnapshotRow, error) {
	var (
		r   SnapshotRow
		ref uuid.NullUUID
		end sql.NullTime
	)
	err := row.Scan(
		&r.ID, &ref, &r.Kind, &r.Dims.Portfolio, &r.Dims.Asset,
		&r.Dims.CounterpartyRef, &r.Dims.CounterpartyName, &r.Dims.Product, &r.Dims.Contract,
		&r.Dims.BaseAsset, &r.Dims.QuoteAsset,
		&r.Version, &r.State, &r.LoadStart, &r.TradeDate, &r.EffectiveDateStart, &end,
	)
	if err != nil {
		return nil, err
	}
	if ref.Valid {
		r.RefSnapshot = &ref.UUID
	}
	if end.Valid {
		r.EffectiveDateEnd = &end.Time
	}
	return &r, nil
}

func (db *DB) querySnapshot(ctx context.Context, query string, args ...interface{}) (*SnapshotRow, error) {
	r, err := scanSnapshot(db.sql.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

const snapshotDimsWhere = `kind = $1 AND portfolio = $2 AND asset = $3
	AND counterparty_ref = $4 AND counterparty_name = $5
	AND product = $6 AND contract = $7 AND base_asset = $8 AND quote_asset = $9`

func snapshotDimsArgs(kind string, dims SnapshotDims) []interface{} {
	return []interface{}{
		kind, dims.Portfolio, dims.Asset,
		dims.CounterpartyRef, dims.CounterpartyName,
		dims.Product, dims.Contract, dims.BaseAsset, dims.QuoteAsset,
	}
}

// CachedSnapshot returns the best snapshot at or before tradeDate that was
// knowledge at effective.
func (db *DB) CachedSnapshot(ctx context.Context, kind string, dims SnapshotDims, tradeDate, effective time.Time) (*SnapshotRow, error) {
	args := append(snapshotDimsArgs(kind, dims), tradeDate, effective)
	return db.querySnapshot(ctx, `
		SELECT `+snapshotColumns+` FROM snapshots
		WHERE `+snapshotDimsWhere+`
		  AND trade_date <= $10
		  AND effective_date_start <= $11
		  AND (effective_date_end > $11 OR effective_date_end IS NULL)
		ORDER BY trade_date DESC, effective_date_start DESC, version DESC
		LIMIT 1
	`, args...)
}

// PreviousCachedSnapshot is CachedSnapshot with a strict trade-date bound,
// used by incremental rebuilds that must re-fold the target day itself.
func (db *DB) PreviousCachedSnapshot(ctx context.Context, kind string, dims SnapshotDims, tradeDate, effective time.Time) (*SnapshotRow, error) {
	args := append(snapshotDimsArgs(kind, dims), tradeDate, effective)
	return db.querySnapshot(ctx, `
		SELECT `+snapshotColumns+` FROM snapshots
		WHERE `+snapshotDimsWhere+`
		  AND trade_date < $10
		  AND effective_date_start <= $11
		  AND (effective_date_end > $11 OR effective_date_end IS NULL)
		ORDER BY trade_date DESC, effective_date_start DESC, version DESC
		LIMIT 1
	`, args...)
}

// OpenVersionSnapshot returns the open row at exactly tradeDate, the version
// a save supersedes.
func (db *DB) OpenVersionSnapshot(ctx context.Context, kind string, dims SnapshotDims, tradeDate time.Time) (*SnapshotRow, error) {
	args := append(snapshotDimsArgs(kind, dims), tradeDate)
	return db.querySnapshot(ctx, `
		SELECT `+snapshotColumns+` FROM snapshots
		WHERE `+snapshotDimsWhere+`
		  AND trade_date = $10
		  AND effective_date_end IS NULL
		LIMIT 1
	`, args...)
}

// ReplaceSnapshot inserts the new version and, when closeID is set, closes
// the superseded one in the same transaction.
func (db *DB) ReplaceSnapshot(ctx context.Context, closeID *uuid.UUID, effective time.Time, row *SnapshotRow) error {
	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if closeID != nil {
		if _, err := tx.ExecContext(ctx, `
			UPDATE snapshots SET effective_date_end = $1 WHERE id = $2
		`, effective, *closeID); err != nil {
			return err
		}
	}

	var ref interface{}
	if row.RefSnapshot != nil {
		ref = *row.RefSnapshot
	}
	var end interface{}
	if row.EffectiveDateEnd != nil {
		end = *row.EffectiveDateEnd
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO snapshots (`+snapshotColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`,
		row.ID, ref, row.Kind, row.Dims.Portfolio, row.Dims.Asset,
		row.Dims.CounterpartyRef, row.Dims.CounterpartyName, row.Dims.Product, row.Dims.Contract,
		row.Dims.BaseAsset, row.Dims.QuoteAsset,
		row.Version, row.State, row.LoadStart, row.TradeDate, row.EffectiveDateStart, end,
	); err != nil {
		return err
	}
	return tx.Commit()
}
