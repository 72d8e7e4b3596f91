// Package pricing resolves market prices for snapshot valuation.
package pricing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Source answers price lookups at a point in time. A missing pair returns
// zero prices, not an error: valuation degrades to unpriced rather than
// failing a rebuild.
type Source interface {
	Ticker(ctx context.Context, baseAsset, quoteAsset string, asOf time.Time) (price, lastPrice decimal.Decimal, err error)
}

// TickerStore is the persistence half of a Source.
type TickerStore interface {
	LatestTicker(ctx context.Context, baseAsset, quoteAsset string, asOf time.Time) (price, lastPrice decimal.Decimal, err error)
}

// StoreSource serves prices from the ticker table.
type StoreSource struct {
	store TickerStore
}

func NewStoreSource(store TickerStore) *StoreSource {
	return &StoreSource{store: store}
}

func (s *StoreSource) Ticker(ctx context.Context, baseAsset, quoteAsset string, asOf time.Time) (decimal.Decimal, decimal.Decimal, error) {
	if baseAsset == quoteAsset {
		one := decimal.NewFromInt(1)
		return one, one, nil
	}
	return s.store.LatestTicker(ctx, baseAsset, quoteAsset, asOf)
}
