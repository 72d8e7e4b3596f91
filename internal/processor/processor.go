// Package processor turns deal revisions into ledger writes. One revision is
// processed in one transaction: rule evaluation, dedup against the open
// rows, the parent/child cascade, and the batched inserts and closes all
// commit or roll back together. Invalidation messages for downstream
// snapshot rebuilds are emitted only after the commit.
package processor

import (
	"context"
	"time"

	"acefeed/internal/compcode"
	"acefeed/internal/deal"
	"acefeed/internal/dedup"
	"acefeed/internal/feed"
	"acefeed/internal/invalidate"
	"acefeed/internal/observability"
	"acefeed/internal/rules"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Tx is the ledger surface the processor needs inside one transaction.
type Tx interface {
	CurrentFeedByCompCode(ctx context.Context, dealID int64, code compcode.Code) (*feed.Feed, error)
	CurrentFeedByDeal(ctx context.Context, dealID int64) (*feed.Feed, error)
	OpenFeedsByDeal(ctx context.Context, dealID int64) ([]feed.Feed, error)
	CountOpenChildFeeds(ctx context.Context, masterDealID int64) (int, error)
	CountOpenSiblingFeeds(ctx context.Context, masterDealID, excludeDealID int64) (int, error)
	LastClosedCreateFeeds(ctx context.Context, dealID int64) ([]feed.Feed, error)
	InsertFeeds(ctx context.Context, feeds []feed.Feed) error
	CloseFeeds(ctx context.Context, ids []uuid.UUID, end time.Time) error

	CurrentTradeByProduct(ctx context.Context, dealID int64, product string) (*feed.Trade, error)
	OpenTradesByDeal(ctx context.Context, dealID int64) ([]feed.Trade, error)
	CountOpenSiblingTrades(ctx context.Context, masterDealID, excludeDealID int64) (int, error)
	LastClosedCreateTrades(ctx context.Context, dealID int64) ([]feed.Trade, error)
	InsertTrades(ctx context.Context, trades []feed.Trade) error
	CloseTrades(ctx context.Context, ids []uuid.UUID, end time.Time) error
}

// Ledger runs a function inside one ledger transaction.
type Ledger interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// ErrorSink persists deal processing failures for later inspection. Failures
// never bounce the deal back to the broker.
type ErrorSink interface {
	RecordError(ctx context.Context, rec ErrorRecord) error
}

// Emitter publishes invalidation messages after a commit.
type Emitter interface {
	Emit(ctx context.Context, msgs []invalidate.Message) error
}

// ErrorRecord is one persisted processing failure.
type ErrorRecord struct {
	Source string
	// ErrorType is Flow for unroutable deals and Code for rule or ledger
	// failures.
	ErrorType string
	Product   string
	Reason    string
	DealID    int64
}

const (
	errorFlow = "Flow"
	errorCode = "Code"
)

// DealProcessor applies deal revisions to the ledger.
type DealProcessor struct {
	ledger  Ledger
	errors  ErrorSink
	emitter Emitter
	metrics *observability.Metrics
	log     zerolog.Logger

	// now is swapped out by tests.
	now func() time.Time
}

func New(ledger Ledger, errors ErrorSink, emitter Emitter, metrics *observability.Metrics, log zerolog.Logger) *DealProcessor {
	return &DealProcessor{
		ledger:  ledger,
		errors:  errors,
		emitter: emitter,
		metrics: metrics,
		log:     log,
		now:     time.Now,
	}
}

// ProcessDeal applies one deal revision. A failure inside the revision is
// recorded and swallowed: one bad deal must not stall the stream behind it.
func (p *DealProcessor) ProcessDeal(ctx context.Context, d *deal.Deal) error {
	handlers := rules.ForType(d.Type)
	if handlers == nil {
		if p.metrics != nil {
			p.metrics.DealsUnhandled.WithLabelValues(string(d.Type)).Inc()
		}
		p.recordError(ctx, d, errorFlow, "no handlers for deal type "+string(d.Type))
		return nil
	}

	var written writtenRows
	err := p.ledger.WithinTx(ctx, func(tx Tx) error {
		var err error
		written, err = p.applyDeal(ctx, tx, d)
		return err
	})
	if err != nil {
		p.recordError(ctx, d, errorCode, err.Error())
		return nil
	}

	if p.metrics != nil {
		for i := range written.feeds {
			p.metrics.FeedsWritten.WithLabelValues(string(written.feeds[i].RecordType)).Inc()
		}
		p.metrics.FeedsClosed.Add(float64(written.closedFeeds))
		p.metrics.TradesWritten.Add(float64(len(written.trades)))
	}

	p.emitInvalidations(ctx, written)
	return nil
}

// writtenRows collects the rows a revision committed, for post-commit
// invalidation and accounting.
type writtenRows struct {
	feeds       []feed.Feed
	trades      []feed.Trade
	closedFeeds int
}

func (p *DealProcessor) applyDeal(ctx context.Context, tx Tx, d *deal.Deal) (writtenRows, error) {
	var written writtenRows

	feeds, closed, err := p.applyFeeds(ctx, tx, d)
	if err != nil {
		return written, err
	}
	written.feeds = feeds
	written.closedFeeds = closed

	trades, err := p.applyTrades(ctx, tx, d)
	if err != nil {
		return written, err
	}
	written.trades = trades
	return written, nil
}

func (p *DealProcessor) applyFeeds(ctx context.Context, tx Tx, d *deal.Deal) ([]feed.Feed, int, error) {
	handlers := rules.ForType(d.Type)

	var creates, deletes []feed.Feed
	type supersede struct {
		prev   *feed.Feed
		create int // index into creates
	}
	var superseded []supersede

	for _, rule := range handlers {
		draft, err := rule(d)
		if err != nil {
			return nil, 0, err
		}

		prev, err := p.currentFeed(ctx, tx, d.DealID, draft.CompCode)
		if err != nil {
			return nil, 0, err
		}

		res := dedup.Evaluate(draft.Feed, prev, d.Status, d.ValidFrom, d.Version)
		deletes = append(deletes, res.Deletes...)
		for _, c := range res.Creates {
			creates = append(creates, c)
			if prev != nil {
				superseded = append(superseded, supersede{prev: prev, create: len(creates) - 1})
			}
		}
	}

	// Open child feeds mean the children carry the economics; the parent's
	// new rows are born closed so history still shows the revision.
	if len(creates) > 0 {
		childCount, err := tx.CountOpenChildFeeds(ctx, d.DealID)
		if err != nil {
			return nil, 0, err
		}
		if childCount != 0 {
			for i := range creates {
				end := creates[i].EffectiveDateStart
				creates[i].EffectiveDateEnd = &end
			}
		}
	}

	var closeIDs []uuid.UUID
	closedAny := false
	if len(creates) == 0 && d.Status.Inactive() {
		open, err := tx.OpenFeedsByDeal(ctx, d.DealID)
		if err != nil {
			return nil, 0, err
		}
		for i := range open {
			closeIDs = append(closeIDs, open[i].ID)
		}
		closedAny = len(open) > 0
	} else {
		for _, s := range superseded {
			creates[s.create].RefID = &s.prev.ID
			closeIDs = append(closeIDs, s.prev.ID)
		}
		closedAny = len(superseded) > 0
	}

	if d.IsChild() {
		parentCopies, err := p.cascadeFeedParent(ctx, tx, d, closedAny)
		if err != nil {
			return nil, 0, err
		}
		creates = append(creates, parentCopies...)
	}

	if err := tx.InsertFeeds(ctx, deletes); err != nil {
		return nil, 0, err
	}
	if err := tx.InsertFeeds(ctx, creates); err != nil {
		return nil, 0, err
	}
	if err := tx.CloseFeeds(ctx, closeIDs, d.ValidFrom); err != nil {
		return nil, 0, err
	}

	return append(deletes, creates...), len(closeIDs), nil
}

// cascadeFeedParent applies the child revision's effect on the parent deal.
// A non-cancelled child always supersedes the parent's open feeds; the
// cancellation of the last open child brings the parent's last-closed rows
// back.
func (p *DealProcessor) cascadeFeedParent(ctx context.Context, tx Tx, d *deal.Deal, closedAny bool) ([]feed.Feed, error) {
	master := *d.MasterDealID

	if d.Status.Inactive() {
		if !closedAny {
			return nil, nil
		}
		siblings, err := tx.CountOpenSiblingFeeds(ctx, master, d.DealID)
		if err != nil {
			return nil, err
		}
		if siblings != 0 {
			return nil, nil
		}
		last, err := tx.LastClosedCreateFeeds(ctx, master)
		if err != nil {
			return nil, err
		}
		var copies []feed.Feed
		for i := range last {
			if last[i].EffectiveDateStart.Equal(d.ValidFrom) {
				continue
			}
			copies = append(copies, feed.CopyForward(&last[i], d.ValidFrom))
		}
		return copies, nil
	}

	open, err := tx.OpenFeedsByDeal(ctx, master)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(open))
	for i := range open {
		ids = append(ids, open[i].ID)
	}
	return nil, tx.CloseFeeds(ctx, ids, d.ValidFrom)
}

// currentFeed finds the open row the draft competes with. Cash-flow legs
// look up by deal only: the single leg of a cash-flow deal may have moved
// comp code when its purpose was re-stated.
func (p *DealProcessor) currentFeed(ctx context.Context, tx Tx, dealID int64, code compcode.Code) (*feed.Feed, error) {
	if compcode.IsCashflow(code) {
		return tx.CurrentFeedByDeal(ctx, dealID)
	}
	return tx.CurrentFeedByCompCode(ctx, dealID, code)
}

func (p *DealProcessor) applyTrades(ctx context.Context, tx Tx, d *deal.Deal) ([]feed.Trade, error) {
	rule := rules.TradeForType(d.Type)
	if rule == nil {
		return nil, nil
	}

	candidate, err := rule(d)
	if err != nil {
		return nil, err
	}

	prev, err := tx.CurrentTradeByProduct(ctx, d.DealID, string(d.Type))
	if err != nil {
		return nil, err
	}

	res := dedup.EvaluateTrade(candidate, prev, d.Status)

	var closeIDs []uuid.UUID
	closedAny := false
	if len(res.Creates) == 0 && d.Status.Inactive() {
		open, err := tx.OpenTradesByDeal(ctx, d.DealID)
		if err != nil {
			return nil, err
		}
		for i := range open {
			closeIDs = append(closeIDs, open[i].ID)
		}
		closedAny = len(open) > 0
	} else if res.Superseded {
		for i := range res.Creates {
			res.Creates[i].RefID = &prev.ID
		}
		closeIDs = append(closeIDs, prev.ID)
		closedAny = true
	}

	creates := res.Creates
	if d.IsChild() {
		copies, err := p.cascadeTradeParent(ctx, tx, d, closedAny)
		if err != nil {
			return nil, err
		}
		creates = append(creates, copies...)
	}

	if err := tx.InsertTrades(ctx, res.Deletes); err != nil {
		return nil, err
	}
	if err := tx.InsertTrades(ctx, creates); err != nil {
		return nil, err
	}
	if err := tx.CloseTrades(ctx, closeIDs, d.ValidFrom); err != nil {
		return nil, err
	}

	return append(res.Deletes, creates...), nil
}

func (p *DealProcessor) cascadeTradeParent(ctx context.Context, tx Tx, d *deal.Deal, closedAny bool) ([]feed.Trade, error) {
	master := *d.MasterDealID

	if d.Status.Inactive() {
		siblings, err := tx.CountOpenSiblingTrades(ctx, master, d.DealID)
		if err != nil {
			return nil, err
		}
		if siblings != 0 {
			return nil, nil
		}
		last, err := tx.LastClosedCreateTrades(ctx, master)
		if err != nil {
			return nil, err
		}
		var copies []feed.Trade
		for i := range last {
			if last[i].EffectiveDateStart.Equal(d.ValidFrom) {
				continue
			}
			copies = append(copies, copyTradeForward(&last[i], d.ValidFrom))
		}
		return copies, nil
	}

	open, err := tx.OpenTradesByDeal(ctx, master)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(open))
	for i := range open {
		ids = append(ids, open[i].ID)
	}
	return nil, tx.CloseTrades(ctx, ids, d.ValidFrom)
}

func copyTradeForward(old *feed.Trade, start time.Time) feed.Trade {
	t := *old
	t.ID = uuid.New()
	t.RecordDate = time.Now().UTC()
	t.RefID = &old.ID
	t.EffectiveDateStart = start
	t.EffectiveDateEnd = nil
	return t
}

func (p *DealProcessor) emitInvalidations(ctx context.Context, written writtenRows) {
	if p.emitter == nil {
		return
	}
	now := p.now().UTC()

	var msgs []invalidate.Message
	for i := range written.feeds {
		msgs = append(msgs, invalidate.ForFeed(&written.feeds[i], now)...)
	}
	for i := range written.trades {
		msgs = append(msgs, invalidate.ForTrade(&written.trades[i], now)...)
	}
	if len(msgs) == 0 {
		return
	}

	msgs = invalidate.Coalesce(msgs)
	if err := p.emitter.Emit(ctx, msgs); err != nil {
		p.log.Error().Err(err).Int("messages", len(msgs)).Msg("invalidation emit failed")
	}
}

func (p *DealProcessor) recordError(ctx context.Context, d *deal.Deal, errType, reason string) {
	if p.metrics != nil {
		p.metrics.DealsFailed.WithLabelValues(string(d.Type), errType).Inc()
	}
	p.log.Error().
		Int64("deal_id", d.DealID).
		Str("deal_type", string(d.Type)).
		Str("error_type", errType).
		Str("reason", reason).
		Msg("deal processing failed")

	if p.errors == nil {
		return
	}
	rec := ErrorRecord{
		Source:    feed.SourceXAlpha,
		ErrorType: errType,
		Product:   string(d.Type),
		Reason:    reason,
		DealID:    d.DealID,
	}
	if err := p.errors.RecordError(ctx, rec); err != nil {
		p.log.Error().Err(err).Int64("deal_id", d.DealID).Msg("error record write failed")
	}
}
