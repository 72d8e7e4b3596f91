package snapshot

import (
	"context"
	"time"

	"acefeed/internal/feed"
	"acefeed/internal/store"
)

// FeedSource fetches the ledger rows a feed-folding aggregate consumes.
// *store.DB satisfies it.
type FeedSource interface {
	FeedsAt(ctx context.Context, filter store.FeedFilter, tradeDateStart, tradeDateEnd, effective time.Time) ([]feed.Feed, error)
}

// TradeSource fetches the trade rows the position aggregate consumes.
type TradeSource interface {
	TradesAt(ctx context.Context, portfolio, baseAsset, quoteAsset string, tradeDateStart, tradeDateEnd, effective time.Time) ([]feed.Trade, error)
}
