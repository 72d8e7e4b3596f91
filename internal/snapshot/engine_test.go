package snapshot_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"acefeed/internal/compcode"
	"acefeed/internal/feed"
	"acefeed/internal/snapshot"
	"acefeed/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// fakeSnapStore serves canned rows and records the write.
type fakeSnapStore struct {
	cached   *store.SnapshotRow
	previous *store.SnapshotRow
	open     *store.SnapshotRow

	cachedCalls   int
	previousCalls int

	savedRow   *store.SnapshotRow
	savedClose *uuid.UUID
}

func (s *fakeSnapStore) CachedSnapshot(ctx context.Context, kind string, dims store.SnapshotDims, tradeDate, effective time.Time) (*store.SnapshotRow, error) {
	s.cachedCalls++
	return s.cached, nil
}

func (s *fakeSnapStore) PreviousCachedSnapshot(ctx context.Context, kind string, dims store.SnapshotDims, tradeDate, effective time.Time) (*store.SnapshotRow, error) {
	s.previousCalls++
	return s.previous, nil
}

func (s *fakeSnapStore) OpenVersionSnapshot(ctx context.Context, kind string, dims store.SnapshotDims, tradeDate time.Time) (*store.SnapshotRow, error) {
	return s.open, nil
}

func (s *fakeSnapStore) ReplaceSnapshot(ctx context.Context, closeID *uuid.UUID, effective time.Time, row *store.SnapshotRow) error {
	s.savedClose = closeID
	s.savedRow = row
	return nil
}

// fakeFeeds returns its rows and records the requested window.
type fakeFeeds struct {
	rows  []feed.Feed
	start time.Time
	end   time.Time
}

func (f *fakeFeeds) FeedsAt(ctx context.Context, filter store.FeedFilter, tradeDateStart, tradeDateEnd, effective time.Time) ([]feed.Feed, error) {
	f.start = tradeDateStart
	f.end = tradeDateEnd
	return f.rows, nil
}

type fakePrices struct {
	price decimal.Decimal
	last  decimal.Decimal
}

func (p *fakePrices) Ticker(ctx context.Context, baseAsset, quoteAsset string, asOf time.Time) (decimal.Decimal, decimal.Decimal, error) {
	return p.price, p.last, nil
}

func stateJSON(t *testing.T, position string) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(map[string]string{"position": position})
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func feedRow(amount string, code compcode.Code) feed.Feed {
	return feed.Feed{
		CompCode: code,
		Amount:   decimal.RequireFromString(amount),
	}
}

var (
	day5      = time.Date(2023, 4, 5, 1, 0, 0, 0, time.UTC)
	knowledge = time.Date(2023, 4, 10, 12, 0, 0, 0, time.UTC)
)

func TestSaveSkipsWhenValuesUnchanged(t *testing.T) {
	st := &fakeSnapStore{
		open: &store.SnapshotRow{ID: uuid.New(), Version: 3, State: stateJSON(t, "5")},
	}
	feeds := &fakeFeeds{rows: []feed.Feed{feedRow("5", compcode.FXSpotBase)}}
	agg := snapshot.NewSummary(feeds, &fakePrices{price: decimal.NewFromInt(100)}, "7001", "BTC")
	eng := snapshot.NewEngine[feed.Feed](st, agg)

	if err := eng.Load(context.Background(), day5, knowledge); err != nil {
		t.Fatal(err)
	}
	saved, err := eng.Save(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if saved {
		t.Error("save must report false when the open version holds the same values")
	}
	if st.savedRow != nil {
		t.Error("no row may be written on a no-op save")
	}
}

func TestSaveWritesNextVersion(t *testing.T) {
	openID := uuid.New()
	st := &fakeSnapStore{
		open: &store.SnapshotRow{ID: openID, Version: 3, State: stateJSON(t, "2")},
	}
	feeds := &fakeFeeds{rows: []feed.Feed{feedRow("5", compcode.FXSpotBase)}}
	agg := snapshot.NewSummary(feeds, &fakePrices{price: decimal.NewFromInt(100)}, "7001", "BTC")
	eng := snapshot.NewEngine[feed.Feed](st, agg)

	if err := eng.Load(context.Background(), day5, knowledge); err != nil {
		t.Fatal(err)
	}
	saved, err := eng.Save(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !saved {
		t.Fatal("save must write when the position changed")
	}
	if st.savedRow.Version != 4 {
		t.Errorf("version: got %d, want 4", st.savedRow.Version)
	}
	if st.savedClose == nil || *st.savedClose != openID {
		t.Error("previous open version must be closed")
	}
}

func TestSaveFirstVersion(t *testing.T) {
	st := &fakeSnapStore{}
	feeds := &fakeFeeds{rows: []feed.Feed{feedRow("5", compcode.FXSpotBase)}}
	agg := snapshot.NewSummary(feeds, &fakePrices{}, "7001", "BTC")
	eng := snapshot.NewEngine[feed.Feed](st, agg)

	if err := eng.Load(context.Background(), day5, knowledge); err != nil {
		t.Fatal(err)
	}
	saved, err := eng.Save(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !saved {
		t.Fatal("first save must write")
	}
	if st.savedRow.Version != 1 {
		t.Errorf("version: got %d, want 1", st.savedRow.Version)
	}
	if st.savedClose != nil {
		t.Error("no prior version to close")
	}
}

func TestSaveRecordsSeedLineage(t *testing.T) {
	seedID := uuid.New()
	st := &fakeSnapStore{
		cached: &store.SnapshotRow{
			ID:        seedID,
			Version:   1,
			State:     stateJSON(t, "2"),
			TradeDate: time.Date(2023, 4, 3, 1, 0, 0, 0, time.UTC),
		},
	}
	feeds := &fakeFeeds{rows: []feed.Feed{feedRow("3", compcode.FXSpotBase)}}
	agg := snapshot.NewSummary(feeds, &fakePrices{}, "7001", "BTC")
	eng := snapshot.NewEngine[feed.Feed](st, agg)

	if err := eng.Load(context.Background(), day5, knowledge); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Save(context.Background()); err != nil {
		t.Fatal(err)
	}
	if st.savedRow.RefSnapshot == nil || *st.savedRow.RefSnapshot != seedID {
		t.Error("saved row must reference the cached seed")
	}
	if !feeds.start.Equal(st.cached.TradeDate) {
		t.Errorf("item window must start at the seed's trade date, got %s", feeds.start)
	}
	if agg.Position.String() != "5" {
		t.Errorf("position: got %s, want seed 2 + item 3", agg.Position)
	}
}

func TestLoadIncrementalUsesStrictlyEarlierSeed(t *testing.T) {
	st := &fakeSnapStore{}
	feeds := &fakeFeeds{}
	agg := snapshot.NewSummary(feeds, &fakePrices{}, "7001", "BTC")
	eng := snapshot.NewEngine[feed.Feed](st, agg)

	if err := eng.LoadIncremental(context.Background(), day5, knowledge); err != nil {
		t.Fatal(err)
	}
	if st.previousCalls != 1 || st.cachedCalls != 0 {
		t.Errorf("incremental load must seed from the strictly earlier snapshot, got previous=%d cached=%d",
			st.previousCalls, st.cachedCalls)
	}
}

func TestSummarySkipsExecutionLegs(t *testing.T) {
	feeds := &fakeFeeds{rows: []feed.Feed{
		feedRow("100", compcode.ExecutionStart),
		feedRow("-99", compcode.ExecutionEnd),
		feedRow("1", compcode.ExecutionFee),
	}}
	st := &fakeSnapStore{}
	agg := snapshot.NewSummary(feeds, &fakePrices{}, "7001", "BTC")
	eng := snapshot.NewEngine[feed.Feed](st, agg)

	if err := eng.Load(context.Background(), day5, knowledge); err != nil {
		t.Fatal(err)
	}
	if agg.Position.String() != "1" {
		t.Errorf("position: got %s, want just the fee leg", agg.Position)
	}
}

func TestSummaryPriceDecoration(t *testing.T) {
	feeds := &fakeFeeds{rows: []feed.Feed{feedRow("2", compcode.FXSpotBase)}}
	st := &fakeSnapStore{}
	prices := &fakePrices{price: decimal.NewFromInt(120), last: decimal.NewFromInt(100)}
	agg := snapshot.NewSummary(feeds, prices, "7001", "BTC")
	eng := snapshot.NewEngine[feed.Feed](st, agg)

	if err := eng.Load(context.Background(), day5, knowledge); err != nil {
		t.Fatal(err)
	}
	if agg.LastPrice.String() != "120" {
		t.Errorf("last price: got %s, want 120", agg.LastPrice)
	}
	want := decimal.RequireFromString("20").Div(decimal.RequireFromString("120"))
	if !agg.Change.Equal(want) {
		t.Errorf("change: got %s, want %s", agg.Change, want)
	}
}

func TestSettlementFoldsOnlyProvisionalLegs(t *testing.T) {
	pv := feedRow("10", compcode.FXSpotBase)
	pv.FeedType = feed.PV
	cash := feedRow("4", compcode.FXSpotBase)
	cash.FeedType = feed.Cash
	feeds := &fakeFeeds{rows: []feed.Feed{pv, cash}}

	st := &fakeSnapStore{}
	agg := snapshot.NewSettlement(feeds, &fakePrices{price: decimal.NewFromInt(2)}, "7001", "BTC", "CP-1", "Acme")
	eng := snapshot.NewEngine[feed.Feed](st, agg)

	if err := eng.Load(context.Background(), day5, knowledge); err != nil {
		t.Fatal(err)
	}
	if agg.Position.String() != "10" {
		t.Errorf("position: got %s, want the PV leg only", agg.Position)
	}
	if agg.NetExposure.String() != "20" {
		t.Errorf("net exposure: got %s, want position times price", agg.NetExposure)
	}
}
