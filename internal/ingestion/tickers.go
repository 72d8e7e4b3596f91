package ingestion

import (
	"encoding/json"
	"fmt"
	"time"

	"acefeed/internal/store"

	"github.com/shopspring/decimal"
)

type tickerJSON struct {
	BaseAsset  string          `json:"base_asset"`
	QuoteAsset string          `json:"quote_asset"`
	Price      decimal.Decimal `json:"price"`
	LastPrice  decimal.Decimal `json:"last_price"`
	AsOf       *time.Time      `json:"as_of"`
}

// ParseTickers decodes a batch of ticker observations. Observations without
// their own timestamp are stamped with receivedAt.
func ParseTickers(data []byte, receivedAt time.Time) ([]store.Ticker, error) {
	var batch []tickerJSON
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("parse tickers: %w", err)
	}

	out := make([]store.Ticker, 0, len(batch))
	for _, j := range batch {
		asOf := receivedAt
		if j.AsOf != nil {
			asOf = *j.AsOf
		}
		out = append(out, store.Ticker{
			BaseAsset:  j.BaseAsset,
			QuoteAsset: j.QuoteAsset,
			Price:      j.Price,
			LastPrice:  j.LastPrice,
			AsOf:       asOf,
		})
	}
	return out, nil
}
