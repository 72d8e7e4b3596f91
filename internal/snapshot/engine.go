// Package snapshot folds ledger rows into daily aggregate snapshots. A
// snapshot at trade date T as of knowledge time E is seeded from the best
// earlier cached version, folds the item rows between the two dates, and is
// saved as a new version only when its values actually changed.
package snapshot

import (
	"context"
	"encoding/json"
	"time"

	"acefeed/internal/store"

	"github.com/google/uuid"
)

// Store is the snapshot persistence surface the engine needs.
type Store interface {
	CachedSnapshot(ctx context.Context, kind string, dims store.SnapshotDims, tradeDate, effective time.Time) (*store.SnapshotRow, error)
	PreviousCachedSnapshot(ctx context.Context, kind string, dims store.SnapshotDims, tradeDate, effective time.Time) (*store.SnapshotRow, error)
	OpenVersionSnapshot(ctx context.Context, kind string, dims store.SnapshotDims, tradeDate time.Time) (*store.SnapshotRow, error)
	ReplaceSnapshot(ctx context.Context, closeID *uuid.UUID, effective time.Time, row *store.SnapshotRow) error
}

// Aggregate is one snapshot kind: its identity, its fold, and its
// serialized state. I is the item type the fold consumes.
type Aggregate[I any] interface {
	Kind() string
	Dims() store.SnapshotDims

	Reset()
	ReadCached(row *store.SnapshotRow) error
	ProcessItem(item I)

	// Equal reports whether the aggregate's current values match a stored
	// row, the no-op test that suppresses redundant versions.
	Equal(row *store.SnapshotRow) bool
	State() (json.RawMessage, error)

	PreLoad(ctx context.Context, tradeDate, effective time.Time) error
	PostLoad(ctx context.Context, tradeDate, effective time.Time) error
	Items(ctx context.Context, tradeDateStart, tradeDateEnd, effective time.Time) ([]I, error)
}

// Engine drives one aggregate through load and save.
type Engine[I any] struct {
	store Store
	agg   Aggregate[I]
	now   func() time.Time

	cached        *store.SnapshotRow
	tradeDate     time.Time
	effectiveDate time.Time
	loadStart     time.Time
}

func NewEngine[I any](st Store, agg Aggregate[I]) *Engine[I] {
	return &Engine[I]{store: st, agg: agg, now: time.Now}
}

// Load builds the aggregate at tradeDate as of effective, seeding from the
// cached snapshot at or before tradeDate.
func (e *Engine[I]) Load(ctx context.Context, tradeDate, effective time.Time) error {
	cached, err := e.store.CachedSnapshot(ctx, e.agg.Kind(), e.agg.Dims(), tradeDate, effective)
	if err != nil {
		return err
	}
	return e.loadFrom(ctx, cached, tradeDate, effective)
}

// LoadIncremental is Load with a strictly earlier seed, so the target day's
// own items are re-folded. Day-by-day rebuilds use it to replace a day that
// may already have a stale snapshot.
func (e *Engine[I]) LoadIncremental(ctx context.Context, tradeDate, effective time.Time) error {
	cached, err := e.store.PreviousCachedSnapshot(ctx, e.agg.Kind(), e.agg.Dims(), tradeDate, effective)
	if err != nil {
		return err
	}
	return e.loadFrom(ctx, cached, tradeDate, effective)
}

func (e *Engine[I]) loadFrom(ctx context.Context, cached *store.SnapshotRow, tradeDate, effective time.Time) error {
	e.loadStart = e.now().UTC()
	e.cached = cached
	e.tradeDate = tradeDate
	e.effectiveDate = effective

	e.agg.Reset()
	var itemStart time.Time
	if cached != nil {
		if err := e.agg.ReadCached(cached); err != nil {
			return err
		}
		itemStart = cached.TradeDate
	}

	if err := e.agg.PreLoad(ctx, tradeDate, effective); err != nil {
		return err
	}

	items, err := e.agg.Items(ctx, itemStart, tradeDate, effective)
	if err != nil {
		return err
	}
	for i := range items {
		e.agg.ProcessItem(items[i])
	}

	return e.agg.PostLoad(ctx, tradeDate, effective)
}

// Save stores the loaded aggregate as the next version at its trade date.
// It reports false without writing when the open version already holds the
// same values.
func (e *Engine[I]) Save(ctx context.Context) (bool, error) {
	prev, err := e.store.OpenVersionSnapshot(ctx, e.agg.Kind(), e.agg.Dims(), e.tradeDate)
	if err != nil {
		return false, err
	}
	if prev != nil && e.agg.Equal(prev) {
		return false, nil
	}

	version := int64(1)
	var closeID *uuid.UUID
	if prev != nil {
		version = prev.Version + 1
		closeID = &prev.ID
	}

	state, err := e.agg.State()
	if err != nil {
		return false, err
	}

	row := &store.SnapshotRow{
		ID:                 uuid.New(),
		Kind:               e.agg.Kind(),
		Dims:               e.agg.Dims(),
		Version:            version,
		State:              state,
		LoadStart:          e.loadStart,
		TradeDate:          e.tradeDate,
		EffectiveDateStart: e.effectiveDate,
	}
	if e.cached != nil {
		ref := e.cached.ID
		row.RefSnapshot = &ref
	}

	if err := e.store.ReplaceSnapshot(ctx, closeID, e.effectiveDate, row); err != nil {
		return false, err
	}
	return true, nil
}
