package snapshot

import (
	"context"
	"encoding/json"
	"time"

	"acefeed/internal/compcode"
	"acefeed/internal/feed"
	"acefeed/internal/pricing"
	"acefeed/internal/store"

	"github.com/shopspring/decimal"
)

// KindSummary is the per-(portfolio, asset) position aggregate.
const KindSummary = "summary"

// valuationAsset is the quote side of all snapshot valuations.
const valuationAsset = "USDT"

type summaryState struct {
	Position decimal.Decimal `json:"position"`
}

// Summary folds every non-margin feed amount of one (portfolio, asset) into
// a running position. Prices decorate the result but are not part of the
// stored state: an unchanged position is an unchanged snapshot.
type Summary struct {
	feeds  FeedSource
	prices pricing.Source

	portfolio string
	asset     string

	Position  decimal.Decimal
	LastPrice decimal.Decimal
	Change    decimal.Decimal
}

func NewSummary(feeds FeedSource, prices pricing.Source, portfolio, asset string) *Summary {
	s := &Summary{feeds: feeds, prices: prices, portfolio: portfolio, asset: asset}
	s.Reset()
	return s
}

func (s *Summary) Kind() string { return KindSummary }

func (s *Summary) Dims() store.SnapshotDims {
	return store.SnapshotDims{Portfolio: s.portfolio, Asset: s.asset}
}

func (s *Summary) Reset() {
	s.Position = decimal.Zero
	s.LastPrice = decimal.Zero
	s.Change = decimal.Zero
}

func (s *Summary) ReadCached(row *store.SnapshotRow) error {
	var st summaryState
	if err := json.Unmarshal(row.State, &st); err != nil {
		return err
	}
	s.Position = st.Position
	return nil
}

// ProcessItem adds the feed's amount. Execution start/end pairs are skipped:
// they net to the fee, which arrives on its own leg.
func (s *Summary) ProcessItem(item feed.Feed) {
	if compcode.IsExecutionLeg(item.CompCode) {
		return
	}
	s.Position = s.Position.Add(item.Amount)
}

func (s *Summary) Equal(row *store.SnapshotRow) bool {
	var st summaryState
	if err := json.Unmarshal(row.State, &st); err != nil {
		return false
	}
	return s.Position.Equal(st.Position)
}

func (s *Summary) State() (json.RawMessage, error) {
	return json.Marshal(summaryState{Position: s.Position})
}

func (s *Summary) PreLoad(ctx context.Context, tradeDate, effective time.Time) error {
	return nil
}

func (s *Summary) PostLoad(ctx context.Context, tradeDate, effective time.Time) error {
	price, lastPrice, err := s.prices.Ticker(ctx, s.asset, valuationAsset, tradeDate)
	if err != nil {
		return err
	}
	s.LastPrice = price
	s.Change = decimal.Zero
	if !price.IsZero() {
		s.Change = price.Sub(lastPrice).Div(price)
	}
	return nil
}

func (s *Summary) Items(ctx context.Context, tradeDateStart, tradeDateEnd, effective time.Time) ([]feed.Feed, error) {
	return s.feeds.FeedsAt(ctx, store.FeedFilter{
		Portfolio: s.portfolio,
		Asset:     s.asset,
	}, tradeDateStart, tradeDateEnd, effective)
}
