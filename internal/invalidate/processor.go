package invalidate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"acefeed/internal/observability"
	"acefeed/internal/pricing"
	"acefeed/internal/snapshot"
	"acefeed/internal/store"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// createWorkers bounds the fan-out of the nightly full rebuild.
const createWorkers = 4

// Processor consumes invalidation messages and rebuilds the affected
// snapshot series one batch day at a time. A rebuild stops early as soon
// as a day saves nothing, since every later day folds the same unchanged
// prefix.
type Processor struct {
	store   *store.DB
	prices  pricing.Source
	metrics *observability.Metrics
	log     zerolog.Logger
}

func NewProcessor(db *store.DB, prices pricing.Source, metrics *observability.Metrics, log zerolog.Logger) *Processor {
	return &Processor{
		store:   db,
		prices:  prices,
		metrics: metrics,
		log:     log.With().Str("component", "invalidate").Logger(),
	}
}

// Write dispatches one message. Unknown types are logged and dropped so a
// bad message cannot wedge the consumer.
func (p *Processor) Write(ctx context.Context, msg Message) error {
	switch msg.Type {
	case TypeUpdate:
		return p.update(ctx, msg)
	case TypeUpdateCounterparty:
		return p.updateCounterparty(ctx, msg)
	case TypeUpdateSummaryV2:
		return p.updateSummaryV2(ctx, msg)
	case TypeUpdatePosition:
		return p.updatePosition(ctx, msg)
	case TypeCreate:
		return p.Create(ctx, msg.TradeDate, msg.EffectiveDate)
	default:
		p.log.Error().Str("type", string(msg.Type)).Msg("unrecognized invalidation message")
		return nil
	}
}

// rebuilder is the day-step surface of a snapshot engine.
type rebuilder interface {
	LoadIncremental(ctx context.Context, tradeDate, effective time.Time) error
	Save(ctx context.Context) (bool, error)
}

// rebuildRange replays batch days from just after each start date up to
// end, stopping a pass when a day is already up to date.
func (p *Processor) rebuildRange(ctx context.Context, kind string, build func() rebuilder, starts []time.Time, end time.Time) error {
	sorted := make([]time.Time, len(starts))
	copy(sorted, starts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	for _, start := range sorted {
		for date := BatchAfter(start); !date.After(end); date = date.AddDate(0, 0, 1) {
			eng := build()
			if err := eng.LoadIncremental(ctx, date, end); err != nil {
				return err
			}
			saved, err := eng.Save(ctx)
			if err != nil {
				return err
			}
			if p.metrics != nil {
				p.metrics.RebuildDaysReplayed.WithLabelValues(kind).Inc()
				if saved {
					p.metrics.SnapshotsSaved.WithLabelValues(kind).Inc()
				} else {
					p.metrics.SnapshotsSkipped.WithLabelValues(kind).Inc()
				}
			}
			if !saved {
				if p.metrics != nil {
					p.metrics.RebuildEarlyStops.WithLabelValues(kind).Inc()
				}
				p.log.Debug().Time("date", date).Msg("rebuild stop, day unchanged")
				break
			}
		}
	}
	return nil
}

func (p *Processor) update(ctx context.Context, msg Message) error {
	p.log.Info().
		Str("portfolio", msg.Portfolio).
		Str("asset", msg.Asset).
		Time("trade_date_end", msg.TradeDateEnd).
		Msg("update summary")
	return p.rebuildRange(ctx, snapshot.KindSummary, func() rebuilder {
		agg := snapshot.NewSummary(p.store, p.prices, msg.Portfolio, msg.Asset)
		return snapshot.NewEngine(p.store, agg)
	}, msg.TradeDateStarts, msg.TradeDateEnd)
}

func (p *Processor) updateCounterparty(ctx context.Context, msg Message) error {
	p.log.Info().
		Str("portfolio", msg.Portfolio).
		Str("asset", msg.Asset).
		Str("counterparty_ref", msg.CounterpartyRef).
		Time("trade_date_end", msg.TradeDateEnd).
		Msg("update settlement")
	return p.rebuildRange(ctx, snapshot.KindSettlement, func() rebuilder {
		agg := snapshot.NewSettlement(p.store, p.prices, msg.Portfolio, msg.Asset, msg.CounterpartyRef, msg.CounterpartyName)
		return snapshot.NewEngine(p.store, agg)
	}, msg.TradeDateStarts, msg.TradeDateEnd)
}

func (p *Processor) updateSummaryV2(ctx context.Context, msg Message) error {
	p.log.Info().
		Str("portfolio", msg.Portfolio).
		Str("asset", msg.Asset).
		Str("product", msg.Product).
		Str("contract", msg.Contract).
		Time("trade_date_end", msg.TradeDateEnd).
		Msg("update summary v2")
	return p.rebuildRange(ctx, snapshot.KindSummaryV2, func() rebuilder {
		agg := snapshot.NewSummaryV2(p.store, p.prices, msg.Portfolio, msg.Asset, msg.Product, msg.Contract)
		return snapshot.NewEngine(p.store, agg)
	}, msg.TradeDateStarts, msg.TradeDateEnd)
}

func (p *Processor) updatePosition(ctx context.Context, msg Message) error {
	p.log.Info().
		Str("portfolio", msg.Portfolio).
		Str("base_asset", msg.BaseAsset).
		Str("quote_asset", msg.QuoteAsset).
		Time("trade_date_end", msg.TradeDateEnd).
		Msg("update position")
	return p.rebuildRange(ctx, snapshot.KindPosition, func() rebuilder {
		agg := snapshot.NewPosition(p.store, p.prices, msg.Portfolio, msg.BaseAsset, msg.QuoteAsset)
		return snapshot.NewEngine(p.store, agg)
	}, msg.TradeDateStarts, msg.TradeDateEnd)
}

// Create walks every known dimension combination and takes a fresh
// snapshot at tradeDate. Failures are logged per portfolio so one bad
// series does not abort the nightly batch.
func (p *Processor) Create(ctx context.Context, tradeDate, effectiveDate time.Time) error {
	portfolios, err := p.store.Portfolios(ctx)
	if err != nil {
		return fmt.Errorf("list portfolios: %w", err)
	}
	p.log.Info().
		Int("portfolios", len(portfolios)).
		Time("trade_date", tradeDate).
		Time("effective_date", effectiveDate).
		Msg("create snapshots")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(createWorkers)
	for _, portfolio := range portfolios {
		portfolio := portfolio
		g.Go(func() error {
			if err := p.createPortfolio(gctx, portfolio, tradeDate, effectiveDate); err != nil {
				p.log.Error().Err(err).Str("portfolio", portfolio).Msg("create snapshots failed")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return p.createPositions(ctx, tradeDate, effectiveDate)
}

func (p *Processor) createPortfolio(ctx context.Context, portfolio string, tradeDate, effectiveDate time.Time) error {
	assets, err := p.store.Assets(ctx, portfolio)
	if err != nil {
		return fmt.Errorf("list assets: %w", err)
	}
	for _, asset := range assets {
		agg := snapshot.NewSummary(p.store, p.prices, portfolio, asset)
		if err := p.snap(ctx, snapshot.KindSummary, snapshot.NewEngine(p.store, agg), tradeDate, effectiveDate); err != nil {
			return fmt.Errorf("summary %s/%s: %w", portfolio, asset, err)
		}

		pairs, err := p.store.ProductContractPairs(ctx, portfolio, asset)
		if err != nil {
			return fmt.Errorf("list product contract pairs: %w", err)
		}
		for _, pair := range pairs {
			product, contract := pair[0], pair[1]
			agg := snapshot.NewSummaryV2(p.store, p.prices, portfolio, asset, product, contract)
			if err := p.snap(ctx, snapshot.KindSummaryV2, snapshot.NewEngine(p.store, agg), tradeDate, effectiveDate); err != nil {
				return fmt.Errorf("summary v2 %s/%s/%s: %w", portfolio, asset, product, err)
			}
		}

		counterparties, err := p.store.Counterparties(ctx, portfolio, asset)
		if err != nil {
			return fmt.Errorf("list counterparties: %w", err)
		}
		for _, cp := range counterparties {
			ref, name := cp[0], cp[1]
			agg := snapshot.NewSettlement(p.store, p.prices, portfolio, asset, ref, name)
			if err := p.snap(ctx, snapshot.KindSettlement, snapshot.NewEngine(p.store, agg), tradeDate, effectiveDate); err != nil {
				return fmt.Errorf("settlement %s/%s/%s: %w", portfolio, asset, ref, err)
			}
		}
	}
	return nil
}

func (p *Processor) createPositions(ctx context.Context, tradeDate, effectiveDate time.Time) error {
	portfolios, err := p.store.TradePortfolios(ctx)
	if err != nil {
		return fmt.Errorf("list trade portfolios: %w", err)
	}
	for _, portfolio := range portfolios {
		pairs, err := p.store.TradePairs(ctx, portfolio)
		if err != nil {
			p.log.Error().Err(err).Str("portfolio", portfolio).Msg("list trade pairs failed")
			continue
		}
		for _, pair := range pairs {
			base, quote := pair[0], pair[1]
			agg := snapshot.NewPosition(p.store, p.prices, portfolio, base, quote)
			if err := p.snap(ctx, snapshot.KindPosition, snapshot.NewEngine(p.store, agg), tradeDate, effectiveDate); err != nil {
				p.log.Error().Err(err).
					Str("portfolio", portfolio).
					Str("base_asset", base).
					Str("quote_asset", quote).
					Msg("position snapshot failed")
			}
		}
	}
	return nil
}

type loader interface {
	Load(ctx context.Context, tradeDate, effective time.Time) error
	Save(ctx context.Context) (bool, error)
}

func (p *Processor) snap(ctx context.Context, kind string, eng loader, tradeDate, effectiveDate time.Time) error {
	begin := time.Now()
	if err := eng.Load(ctx, tradeDate, effectiveDate); err != nil {
		return err
	}
	saved, err := eng.Save(ctx)
	if err != nil {
		return err
	}
	if p.metrics != nil {
		p.metrics.SnapshotDuration.WithLabelValues(kind).Observe(time.Since(begin).Seconds())
		if saved {
			p.metrics.SnapshotsSaved.WithLabelValues(kind).Inc()
		} else {
			p.metrics.SnapshotsSkipped.WithLabelValues(kind).Inc()
		}
	}
	return nil
}
