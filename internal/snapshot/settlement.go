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

// KindSettlement is the unsettled exposure per counterparty. Only PV rows
// contribute; once a leg settles the cash entry replaces it and it drops
// out of the fold.
const KindSettlement = "settlement"

type Settlement struct {
	feeds  FeedSource
	prices pricing.Source

	portfolio        string
	asset            string
	counterpartyRef  string
	counterpartyName string

	Position decimal.Decimal

	// NetExposure is valued at load time and not persisted.
	NetExposure decimal.Decimal
}

func NewSettlement(feeds FeedSource, prices pricing.Source, portfolio, asset, counterpartyRef, counterpartyName string) *Settlement {
	s := &Settlement{
		feeds:            feeds,
		prices:           prices,
		portfolio:        portfolio,
		asset:            asset,
		counterpartyRef:  counterpartyRef,
		counterpartyName: counterpartyName,
	}
	s.Reset()
	return s
}

func (s *Settlement) Kind() string { return KindSettlement }

func (s *Settlement) Dims() store.SnapshotDims {
	return store.SnapshotDims{
		Portfolio:        s.portfolio,
		Asset:            s.asset,
		CounterpartyRef:  s.counterpartyRef,
		CounterpartyName: s.counterpartyName,
	}
}

func (s *Settlement) Reset() {
	s.Position = decimal.Zero
	s.NetExposure = decimal.Zero
}

func (s *Settlement) ReadCached(row *store.SnapshotRow) error {
	var st summaryState
	if err := json.Unmarshal(row.State, &st); err != nil {
		return err
	}
	s.Position = st.Position
	return nil
}

func (s *Settlement) ProcessItem(item feed.Feed) {
	if compcode.IsExecutionLeg(item.CompCode) {
		return
	}
	if item.FeedType != feed.PV {
		return
	}
	s.Position = s.Position.Add(item.Amount)
}

func (s *Settlement) Equal(row *store.SnapshotRow) bool {
	var st summaryState
	if err := json.Unmarshal(row.State, &st); err != nil {
		return false
	}
	return s.Position.Equal(st.Position)
}

func (s *Settlement) State() (json.RawMessage, error) {
	return json.Marshal(summaryState{Position: s.Position})
}

func (s *Settlement) PreLoad(ctx context.Context, tradeDate, effective time.Time) error {
	return nil
}

func (s *Settlement) PostLoad(ctx context.Context, tradeDate, effective time.Time) error {
	price, _, err := s.prices.Ticker(ctx, s.asset, valuationAsset, tradeDate)
	if err != nil {
		return err
	}
	s.NetExposure = s.Position.Mul(price)
	return nil
}

func (s *Settlement) Items(ctx context.Context, tradeDateStart, tradeDateEnd, effective time.Time) ([]feed.Feed, error) {
	return s.feeds.FeedsAt(ctx, store.FeedFilter{
		Portfolio:        s.portfolio,
		Asset:            s.asset,
		CounterpartyRef:  &s.counterpartyRef,
		CounterpartyName: &s.counterpartyName,
	}, tradeDateStart, tradeDateEnd, effective)
}
