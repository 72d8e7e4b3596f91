package invalidate

import (
	"time"

	"acefeed/internal/feed"
)

// ForFeed derives the invalidation messages a written feed row implies.
// Rows dated inside the current batch need no rebuild: the nightly create
// run has not covered them yet.
func ForFeed(f *feed.Feed, now time.Time) []Message {
	if !f.TradeDate.Before(LastBatch(now)) {
		return nil
	}
	contract := ""
	if f.Contract != nil {
		contract = *f.Contract
	}
	starts := []time.Time{f.TradeDate.UTC()}
	end := now.UTC()
	return []Message{
		{
			Type:            TypeUpdate,
			Portfolio:       f.Portfolio,
			Asset:           f.Asset,
			TradeDateStarts: starts,
			TradeDateEnd:    end,
		},
		{
			Type:             TypeUpdateCounterparty,
			Portfolio:        f.Portfolio,
			Asset:            f.Asset,
			CounterpartyRef:  f.CounterpartyRef,
			CounterpartyName: f.CounterpartyName,
			TradeDateStarts:  starts,
			TradeDateEnd:     end,
		},
		{
			Type:            TypeUpdateSummaryV2,
			Portfolio:       f.Portfolio,
			Asset:           f.Asset,
			Product:         f.Product,
			Contract:        contract,
			TradeDateStarts: starts,
			TradeDateEnd:    end,
		},
	}
}

// ForTrade derives the position invalidation a written trade row implies.
func ForTrade(t *feed.Trade, now time.Time) []Message {
	if !t.TradeDate.Before(LastBatch(now)) {
		return nil
	}
	return []Message{{
		Type:            TypeUpdatePosition,
		Portfolio:       t.Portfolio,
		BaseAsset:       t.BaseAsset,
		QuoteAsset:      t.QuoteAsset,
		TradeDateStarts: []time.Time{t.TradeDate.UTC()},
		TradeDateEnd:    now.UTC(),
	}}
}
