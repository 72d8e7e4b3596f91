package processor_test

import (
	"context"
	"testing"
	"time"

	"acefeed/internal/compcode"
	"acefeed/internal/deal"
	"acefeed/internal/feed"
	"acefeed/internal/processor"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// fakeLedger keeps all rows in memory and hands itself out as the
// transaction. Good enough for exercising the dedup and cascade paths.
type fakeLedger struct {
	feeds  []feed.Feed
	trades []feed.Trade
}

func (l *fakeLedger) WithinTx(ctx context.Context, fn func(tx processor.Tx) error) error {
	return fn(l)
}

func (l *fakeLedger) CurrentFeedByCompCode(ctx context.Context, dealID int64, code compcode.Code) (*feed.Feed, error) {
	for i := range l.feeds {
		f := l.feeds[i]
		if f.DealID == dealID && f.CompCode == code && f.Open() && f.RecordType == feed.Create {
			return &f, nil
		}
	}
	return nil, nil
}

func (l *fakeLedger) CurrentFeedByDeal(ctx context.Context, dealID int64) (*feed.Feed, error) {
	for i := range l.feeds {
		f := l.feeds[i]
		if f.DealID == dealID && f.Open() && f.RecordType == feed.Create {
			return &f, nil
		}
	}
	return nil, nil
}

func (l *fakeLedger) OpenFeedsByDeal(ctx context.Context, dealID int64) ([]feed.Feed, error) {
	var out []feed.Feed
	for i := range l.feeds {
		if l.feeds[i].DealID == dealID && l.feeds[i].Open() {
			out = append(out, l.feeds[i])
		}
	}
	return out, nil
}

func (l *fakeLedger) CountOpenChildFeeds(ctx context.Context, masterDealID int64) (int, error) {
	n := 0
	for i := range l.feeds {
		f := l.feeds[i]
		if f.MasterDealID != nil && *f.MasterDealID == masterDealID && f.Open() {
			n++
		}
	}
	return n, nil
}

func (l *fakeLedger) CountOpenSiblingFeeds(ctx context.Context, masterDealID, excludeDealID int64) (int, error) {
	n := 0
	for i := range l.feeds {
		f := l.feeds[i]
		if f.MasterDealID != nil && *f.MasterDealID == masterDealID && f.DealID != excludeDealID && f.Open() {
			n++
		}
	}
	return n, nil
}

func (l *fakeLedger) LastClosedCreateFeeds(ctx context.Context, dealID int64) ([]feed.Feed, error) {
	var latest time.Time
	for i := range l.feeds {
		f := l.feeds[i]
		if f.DealID == dealID && f.RecordType == feed.Create && f.EffectiveDateEnd != nil && f.EffectiveDateEnd.After(latest) {
			latest = *f.EffectiveDateEnd
		}
	}
	var out []feed.Feed
	for i := range l.feeds {
		f := l.feeds[i]
		if f.DealID == dealID && f.RecordType == feed.Create && f.EffectiveDateEnd != nil && f.EffectiveDateEnd.Equal(latest) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (l *fakeLedger) InsertFeeds(ctx context.Context, feeds []feed.Feed) error {
	l.feeds = append(l.feeds, feeds...)
	return nil
}

func (l *fakeLedger) CloseFeeds(ctx context.Context, ids []uuid.UUID, end time.Time) error {
	for _, id := range ids {
		for i := range l.feeds {
			if l.feeds[i].ID == id {
				e := end
				l.feeds[i].EffectiveDateEnd = &e
			}
		}
	}
	return nil
}

func (l *fakeLedger) CurrentTradeByProduct(ctx context.Context, dealID int64, product string) (*feed.Trade, error) {
	for i := range l.trades {
		t := l.trades[i]
		if t.DealID == dealID && t.Product == product && t.EffectiveDateEnd == nil && t.RecordType == feed.Create {
			return &t, nil
		}
	}
	return nil, nil
}

func (l *fakeLedger) OpenTradesByDeal(ctx context.Context, dealID int64) ([]feed.Trade, error) {
	var out []feed.Trade
	for i := range l.trades {
		if l.trades[i].DealID == dealID && l.trades[i].EffectiveDateEnd == nil {
			out = append(out, l.trades[i])
		}
	}
	return out, nil
}

func (l *fakeLedger) CountOpenSiblingTrades(ctx context.Context, masterDealID, excludeDealID int64) (int, error) {
	n := 0
	for i := range l.trades {
		t := l.trades[i]
		if t.MasterDealID != nil && *t.MasterDealID == masterDealID && t.DealID != excludeDealID && t.EffectiveDateEnd == nil {
			n++
		}
	}
	return n, nil
}

func (l *fakeLedger) LastClosedCreateTrades(ctx context.Context, dealID int64) ([]feed.Trade, error) {
	var latest time.Time
	for i := range l.trades {
		t := l.trades[i]
		if t.DealID == dealID && t.RecordType == feed.Create && t.EffectiveDateEnd != nil && t.EffectiveDateEnd.After(latest) {
			latest = *t.EffectiveDateEnd
		}
	}
	var out []feed.Trade
	for i := range l.trades {
		t := l.trades[i]
		if t.DealID == dealID && t.RecordType == feed.Create && t.EffectiveDateEnd != nil && t.EffectiveDateEnd.Equal(latest) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (l *fakeLedger) InsertTrades(ctx context.Context, trades []feed.Trade) error {
	l.trades = append(l.trades, trades...)
	return nil
}

func (l *fakeLedger) CloseTrades(ctx context.Context, ids []uuid.UUID, end time.Time) error {
	for _, id := range ids {
		for i := range l.trades {
			if l.trades[i].ID == id {
				e := end
				l.trades[i].EffectiveDateEnd = &e
			}
		}
	}
	return nil
}

func (l *fakeLedger) openFeeds(dealID int64) []feed.Feed {
	out, _ := l.OpenFeedsByDeal(context.Background(), dealID)
	return out
}

type errorSink struct {
	records []processor.ErrorRecord
}

func (s *errorSink) RecordError(ctx context.Context, rec processor.ErrorRecord) error {
	s.records = append(s.records, rec)
	return nil
}

var (
	t1 = time.Date(2023, 4, 5, 9, 0, 0, 0, time.UTC)
	t2 = time.Date(2023, 4, 5, 10, 0, 0, 0, time.UTC)
	t3 = time.Date(2023, 4, 5, 11, 0, 0, 0, time.UTC)
)

func fxDeal(dealID, version int64, validFrom time.Time) *deal.Deal {
	return &deal.Deal{
		DealID:    dealID,
		DealRef:   "FX-1",
		Type:      deal.TypeFXSpot,
		Status:    deal.StatusConfirmed,
		Portfolio: "7001",
		Entity:    "SG",
		Account:   "MAIN",
		TradeDate: time.Date(2023, 4, 5, 0, 0, 0, 0, time.UTC),
		ValueDate: time.Date(2023, 4, 7, 0, 0, 0, 0, time.UTC),
		ValidFrom: validFrom,
		Version:   version,
		TypeData: deal.FXSpotData{
			Direction:   deal.DirectionBuy,
			BaseAsset:   "BTC",
			BaseAmount:  decimal.NewFromInt(1),
			QuoteAsset:  "USDT",
			QuoteAmount: decimal.NewFromInt(26000),
			FeeAsset:    "USDT",
			FeeAmount:   decimal.NewFromInt(5),
		},
	}
}

func newProcessor(l *fakeLedger) *processor.DealProcessor {
	return processor.New(l, nil, nil, nil, zerolog.Nop())
}

func process(t *testing.T, p *processor.DealProcessor, d *deal.Deal) {
	t.Helper()
	if err := p.ProcessDeal(context.Background(), d); err != nil {
		t.Fatal(err)
	}
}

func TestProcessDealWritesLegsAndTrade(t *testing.T) {
	l := &fakeLedger{}
	p := newProcessor(l)
	process(t, p, fxDeal(1, 1, t1))

	open := l.openFeeds(1)
	if len(open) != 3 {
		t.Fatalf("got %d open feeds, want base + quote + fee", len(open))
	}
	byCode := map[compcode.Code]feed.Feed{}
	for _, f := range open {
		byCode[f.CompCode] = f
	}
	if got := byCode[compcode.FXSpotBase].Amount; got.String() != "1" {
		t.Errorf("base amount: got %s, want 1", got)
	}
	if got := byCode[compcode.FXSpotQuote].Amount; got.String() != "-26000" {
		t.Errorf("quote amount: got %s, want -26000", got)
	}
	if got := byCode[compcode.FXSpotFee].Amount; got.String() != "-5" {
		t.Errorf("fee amount: got %s, want -5", got)
	}

	trades, _ := l.OpenTradesByDeal(context.Background(), 1)
	if len(trades) != 1 {
		t.Fatalf("got %d open trades, want 1", len(trades))
	}
}

func TestRevisionKeepsOneOpenRowPerLeg(t *testing.T) {
	l := &fakeLedger{}
	p := newProcessor(l)
	process(t, p, fxDeal(1, 1, t1))

	rev := fxDeal(1, 2, t2)
	data := rev.TypeData.(deal.FXSpotData)
	data.BaseAmount = decimal.NewFromInt(2)
	rev.TypeData = data
	process(t, p, rev)

	perCode := map[compcode.Code]int{}
	for _, f := range l.openFeeds(1) {
		perCode[f.CompCode]++
	}
	for code, n := range perCode {
		if n != 1 {
			t.Errorf("comp code %s has %d open rows, want 1", code, n)
		}
	}

	cur, _ := l.CurrentFeedByCompCode(context.Background(), 1, compcode.FXSpotBase)
	if cur.Amount.String() != "2" {
		t.Errorf("open base amount: got %s, want the revised 2", cur.Amount)
	}
	for _, f := range l.feeds {
		if f.RecordType == feed.Delete {
			t.Error("provisional supersede must not write a reversal")
		}
		if f.CompCode == compcode.FXSpotBase && f.Version == 1 {
			if f.EffectiveDateEnd == nil || !f.EffectiveDateEnd.Equal(t2) {
				t.Error("superseded row must close at the revision's valid_from")
			}
		}
	}
}

func TestSettledRevisionWritesReversal(t *testing.T) {
	l := &fakeLedger{}
	p := newProcessor(l)

	v1 := fxDeal(1, 1, t1)
	d1 := v1.TypeData.(deal.FXSpotData)
	d1.BaseSettled = true
	d1.QuoteSettled = true
	v1.TypeData = d1
	v1.Status = deal.StatusSettled
	process(t, p, v1)

	v2 := fxDeal(1, 2, t2)
	d2 := v2.TypeData.(deal.FXSpotData)
	d2.BaseAmount = decimal.NewFromInt(3)
	d2.BaseSettled = true
	d2.QuoteSettled = true
	v2.TypeData = d2
	v2.Status = deal.StatusSettled
	process(t, p, v2)

	var reversals []feed.Feed
	for _, f := range l.feeds {
		if f.RecordType == feed.Delete && f.CompCode == compcode.FXSpotBase {
			reversals = append(reversals, f)
		}
	}
	if len(reversals) != 1 {
		t.Fatalf("got %d base reversals, want 1", len(reversals))
	}
	r := reversals[0]
	if r.Amount.String() != "-1" {
		t.Errorf("reversal amount: got %s, want the negated original", r.Amount)
	}
	if r.RefID == nil {
		t.Error("reversal must reference the row it cancels")
	}
	if r.EffectiveDateEnd == nil {
		t.Error("reversal must never be an open row")
	}
}

func TestIdenticalRevisionWritesNothing(t *testing.T) {
	l := &fakeLedger{}
	p := newProcessor(l)
	process(t, p, fxDeal(1, 1, t1))

	before := len(l.feeds) + len(l.trades)
	process(t, p, fxDeal(1, 2, t2))
	after := len(l.feeds) + len(l.trades)

	if before != after {
		t.Errorf("row count went %d to %d, want unchanged on an identical revision", before, after)
	}
	for _, f := range l.feeds {
		if !f.Open() {
			t.Error("no row may be closed by an identical revision")
		}
	}
}

func TestCancelledRevisionClosesEverything(t *testing.T) {
	l := &fakeLedger{}
	p := newProcessor(l)
	process(t, p, fxDeal(1, 1, t1))

	cancel := fxDeal(1, 2, t2)
	cancel.Status = deal.StatusCancelled
	process(t, p, cancel)

	if open := l.openFeeds(1); len(open) != 0 {
		t.Errorf("got %d open feeds, want all closed", len(open))
	}
	if trades, _ := l.OpenTradesByDeal(context.Background(), 1); len(trades) != 0 {
		t.Errorf("got %d open trades, want all closed", len(trades))
	}
	for _, f := range l.feeds {
		if f.EffectiveDateEnd != nil && !f.EffectiveDateEnd.Equal(t2) {
			t.Errorf("close time: got %s, want %s", f.EffectiveDateEnd, t2)
		}
	}
}

func TestCancelledSettledDealWritesReversals(t *testing.T) {
	l := &fakeLedger{}
	p := newProcessor(l)

	v1 := fxDeal(1, 1, t1)
	d1 := v1.TypeData.(deal.FXSpotData)
	d1.BaseSettled = true
	d1.QuoteSettled = true
	v1.TypeData = d1
	v1.Status = deal.StatusSettled
	process(t, p, v1)

	cancel := fxDeal(1, 2, t2)
	d2 := cancel.TypeData.(deal.FXSpotData)
	d2.BaseSettled = true
	d2.QuoteSettled = true
	cancel.TypeData = d2
	cancel.Status = deal.StatusCancelled
	process(t, p, cancel)

	if open := l.openFeeds(1); len(open) != 0 {
		t.Errorf("got %d open feeds, want all closed", len(open))
	}
	if trades, _ := l.OpenTradesByDeal(context.Background(), 1); len(trades) != 0 {
		t.Errorf("got %d open trades, want all closed", len(trades))
	}

	wantAmounts := map[compcode.Code]string{
		compcode.FXSpotBase:  "-1",
		compcode.FXSpotQuote: "26000",
		compcode.FXSpotFee:   "5",
	}
	reversals := map[compcode.Code]feed.Feed{}
	for _, f := range l.feeds {
		if f.RecordType == feed.Delete {
			reversals[f.CompCode] = f
		}
		if f.RecordType == feed.Create && f.Version == 2 {
			t.Error("a cancelled deal must not produce a replacement row")
		}
	}
	for code, want := range wantAmounts {
		r, ok := reversals[code]
		if !ok {
			t.Errorf("comp code %s: no reversal written", code)
			continue
		}
		if r.Amount.String() != want {
			t.Errorf("comp code %s reversal: got %s, want %s", code, r.Amount, want)
		}
		if r.FeedType != feed.Cash {
			t.Errorf("comp code %s reversal: got feed type %s, want Cash", code, r.FeedType)
		}
		if r.RefID == nil {
			t.Errorf("comp code %s reversal must reference the row it cancels", code)
		}
		if r.EffectiveDateEnd == nil || !r.EffectiveDateStart.Equal(t2) {
			t.Errorf("comp code %s reversal must span a zero window at the cancel time", code)
		}
	}
}

func childDeal(dealID, masterID, version int64, validFrom time.Time) *deal.Deal {
	d := fxDeal(dealID, version, validFrom)
	d.MasterDealID = &masterID
	ref := "FX-1"
	d.MasterDealRef = &ref
	d.DealRef = "FX-1-C"
	return d
}

func TestChildSupersedesParentFeeds(t *testing.T) {
	l := &fakeLedger{}
	p := newProcessor(l)
	process(t, p, fxDeal(100, 1, t1))
	process(t, p, childDeal(101, 100, 1, t2))

	if open := l.openFeeds(100); len(open) != 0 {
		t.Errorf("got %d open parent feeds, want all closed by the child", len(open))
	}
	if open := l.openFeeds(101); len(open) != 3 {
		t.Errorf("got %d open child feeds, want 3", len(open))
	}
}

func TestLastCancelledChildReopensParent(t *testing.T) {
	l := &fakeLedger{}
	p := newProcessor(l)
	process(t, p, fxDeal(100, 1, t1))
	process(t, p, childDeal(101, 100, 1, t2))

	cancel := childDeal(101, 100, 2, t3)
	cancel.Status = deal.StatusCancelled
	process(t, p, cancel)

	if open := l.openFeeds(101); len(open) != 0 {
		t.Errorf("got %d open child feeds, want all closed", len(open))
	}
	open := l.openFeeds(100)
	if len(open) != 3 {
		t.Fatalf("got %d open parent feeds, want the 3 reopened copies", len(open))
	}
	for _, f := range open {
		if f.RefID == nil {
			t.Error("reopened row must reference its closed source")
		}
		if !f.EffectiveDateStart.Equal(t3) {
			t.Errorf("reopened row starts at %s, want the cancel time %s", f.EffectiveDateStart, t3)
		}
	}

	trades, _ := l.OpenTradesByDeal(context.Background(), 100)
	if len(trades) != 1 {
		t.Errorf("got %d open parent trades, want 1 reopened", len(trades))
	}
}

func TestSiblingKeepsParentClosed(t *testing.T) {
	l := &fakeLedger{}
	p := newProcessor(l)
	process(t, p, fxDeal(100, 1, t1))
	process(t, p, childDeal(101, 100, 1, t2))
	process(t, p, childDeal(102, 100, 1, t2))

	cancel := childDeal(101, 100, 2, t3)
	cancel.Status = deal.StatusCancelled
	process(t, p, cancel)

	if open := l.openFeeds(100); len(open) != 0 {
		t.Errorf("got %d open parent feeds, want none while a sibling is open", len(open))
	}
	if open := l.openFeeds(102); len(open) != 3 {
		t.Errorf("got %d open sibling feeds, want 3", len(open))
	}
}

func TestUnroutableDealIsRecordedNotFatal(t *testing.T) {
	l := &fakeLedger{}
	sink := &errorSink{}
	p := processor.New(l, sink, nil, nil, zerolog.Nop())

	d := fxDeal(1, 1, t1)
	d.Type = deal.Type("Exotic")
	if err := p.ProcessDeal(context.Background(), d); err != nil {
		t.Fatalf("unroutable deal must not error, got %v", err)
	}
	if len(sink.records) != 1 {
		t.Fatalf("got %d error records, want 1", len(sink.records))
	}
	if sink.records[0].ErrorType != "Flow" {
		t.Errorf("error type: got %s, want Flow", sink.records[0].ErrorType)
	}
	if len(l.feeds) != 0 {
		t.Error("unroutable deal must write nothing")
	}
}
