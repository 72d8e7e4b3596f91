package snapshot

import (
	"context"
	"encoding/json"
	"time"

	"acefeed/internal/deal"
	"acefeed/internal/feed"
	"acefeed/internal/pricing"
	"acefeed/internal/store"

	"github.com/shopspring/decimal"
)

// KindPosition is the running PnL per (portfolio, base asset, quote asset)
// pair, folded over trades with the weighted-average-price method.
const KindPosition = "position"

type positionState struct {
	NetPosition       decimal.Decimal `json:"net_position"`
	NetInvestment     decimal.Decimal `json:"net_investment"`
	AvgOpenPrice      decimal.Decimal `json:"avg_open_price"`
	RealizedPnl       decimal.Decimal `json:"realized_pnl"`
	UnrealizedPnl     decimal.Decimal `json:"unrealized_pnl"`
	TotalPnl          decimal.Decimal `json:"total_pnl"`
	RealizedPnlUSD    decimal.Decimal `json:"realized_pnl_usd"`
	UnrealizedPnlUSD  decimal.Decimal `json:"unrealized_pnl_usd"`
	TotalPnlUSD       decimal.Decimal `json:"total_pnl_usd"`
	TotalBuyQuantity  decimal.Decimal `json:"total_buy_quantity"`
	TotalSellQuantity decimal.Decimal `json:"total_sell_quantity"`
	AverageBuyPrice   decimal.Decimal `json:"average_buy_price"`
	AverageSellPrice  decimal.Decimal `json:"average_sell_price"`
	LastPrice         decimal.Decimal `json:"last_price"`
	MarketPrice       decimal.Decimal `json:"market_price"`
}

type Position struct {
	trades TradeSource
	prices pricing.Source

	portfolio  string
	baseAsset  string
	quoteAsset string

	positionState

	// Ticker prices fetched before each fold pass.
	baseTickerPrice  decimal.Decimal
	quoteTickerPrice decimal.Decimal
}

func NewPosition(trades TradeSource, prices pricing.Source, portfolio, baseAsset, quoteAsset string) *Position {
	p := &Position{
		trades:     trades,
		prices:     prices,
		portfolio:  portfolio,
		baseAsset:  baseAsset,
		quoteAsset: quoteAsset,
	}
	p.Reset()
	return p
}

func (p *Position) Kind() string { return KindPosition }

func (p *Position) Dims() store.SnapshotDims {
	return store.SnapshotDims{
		Portfolio:  p.portfolio,
		BaseAsset:  p.baseAsset,
		QuoteAsset: p.quoteAsset,
	}
}

func (p *Position) Reset() {
	p.positionState = positionState{}
}

func (p *Position) ReadCached(row *store.SnapshotRow) error {
	var st positionState
	if err := json.Unmarshal(row.State, &st); err != nil {
		return err
	}
	p.positionState = st
	return nil
}

func (p *Position) Equal(row *store.SnapshotRow) bool {
	var st positionState
	if err := json.Unmarshal(row.State, &st); err != nil {
		return false
	}
	return p.NetPosition.Equal(st.NetPosition) &&
		p.NetInvestment.Equal(st.NetInvestment) &&
		p.AvgOpenPrice.Equal(st.AvgOpenPrice) &&
		p.RealizedPnl.Equal(st.RealizedPnl) &&
		p.UnrealizedPnl.Equal(st.UnrealizedPnl) &&
		p.TotalPnl.Equal(st.TotalPnl) &&
		p.RealizedPnlUSD.Equal(st.RealizedPnlUSD) &&
		p.UnrealizedPnlUSD.Equal(st.UnrealizedPnlUSD) &&
		p.TotalPnlUSD.Equal(st.TotalPnlUSD) &&
		p.TotalBuyQuantity.Equal(st.TotalBuyQuantity) &&
		p.TotalSellQuantity.Equal(st.TotalSellQuantity) &&
		p.AverageBuyPrice.Equal(st.AverageBuyPrice) &&
		p.AverageSellPrice.Equal(st.AverageSellPrice) &&
		p.LastPrice.Equal(st.LastPrice) &&
		p.MarketPrice.Equal(st.MarketPrice)
}

func (p *Position) State() (json.RawMessage, error) {
	return json.Marshal(p.positionState)
}

func (p *Position) PreLoad(ctx context.Context, tradeDate, effective time.Time) error {
	basePrice, _, err := p.prices.Ticker(ctx, p.baseAsset, valuationAsset, tradeDate)
	if err != nil {
		return err
	}
	quotePrice, _, err := p.prices.Ticker(ctx, p.quoteAsset, valuationAsset, tradeDate)
	if err != nil {
		return err
	}
	p.baseTickerPrice = basePrice
	p.quoteTickerPrice = quotePrice
	return nil
}

func (p *Position) PostLoad(ctx context.Context, tradeDate, effective time.Time) error {
	return nil
}

func (p *Position) ProcessItem(item feed.Trade) {
	if item.TransferType != feed.TransferTrade {
		return
	}

	marketPrice := decimal.Zero
	if !p.quoteTickerPrice.IsZero() {
		marketPrice = p.baseTickerPrice.Div(p.quoteTickerPrice)
	}

	switch {
	case item.Product == string(deal.TypeExecution):
		p.applyExecutionFee(item.FeeAmount)
		p.applyMarketData(marketPrice)
	case !item.BaseAmount.IsZero():
		p.applyTrade(item.BaseAmount, item.QuoteAmount)
		p.applyMarketData(marketPrice)
	}
}

// Weighted average price PnL, after
// https://lichgo.github.io/2015/10/29/40-lines-pnl-calculation.html
func (p *Position) applyTrade(baseAmount, quoteAmount decimal.Decimal) {
	isBuy := baseAmount.IsPositive()
	tradedPrice := quoteAmount.Div(baseAmount).Abs()
	tradedQuantity := baseAmount.Abs()

	p.LastPrice = tradedPrice
	if isBuy {
		p.TotalBuyQuantity = p.TotalBuyQuantity.Add(tradedQuantity)
		if p.TotalBuyQuantity.IsPositive() {
			p.AverageBuyPrice = calAvgPrice(p.AverageBuyPrice, p.TotalBuyQuantity, tradedQuantity, tradedPrice)
		}
	} else {
		p.TotalSellQuantity = p.TotalSellQuantity.Add(tradedQuantity)
		if p.TotalSellQuantity.IsPositive() {
			p.AverageSellPrice = calAvgPrice(p.AverageSellPrice, p.TotalSellQuantity, tradedQuantity, tradedPrice)
		}
	}

	signedQuantity := tradedQuantity
	if !isBuy {
		signedQuantity = tradedQuantity.Neg()
	}
	stillOpen := !p.NetPosition.Mul(signedQuantity).IsNegative()

	p.NetInvestment = decimal.Max(p.NetInvestment, p.NetPosition.Mul(p.AvgOpenPrice).Abs())

	if !stillOpen {
		closed := decimal.Min(signedQuantity.Abs(), p.NetPosition.Abs())
		sign := p.NetPosition.Abs().Div(p.NetPosition)
		p.RealizedPnl = p.RealizedPnl.Add(tradedPrice.Sub(p.AvgOpenPrice).Mul(closed).Mul(sign))
		p.RealizedPnlUSD = p.quoteTickerPrice.Mul(p.RealizedPnl)
	}
	p.TotalPnl = p.RealizedPnl.Add(p.UnrealizedPnl)
	p.TotalPnlUSD = p.TotalPnl.Mul(p.quoteTickerPrice)

	if stillOpen {
		next := p.NetPosition.Add(signedQuantity)
		if !next.IsZero() {
			p.AvgOpenPrice = p.AvgOpenPrice.Mul(p.NetPosition).Add(tradedPrice.Mul(signedQuantity)).Div(next)
		} else {
			p.AvgOpenPrice = tradedPrice
		}
	} else if tradedQuantity.GreaterThan(p.NetPosition.Abs()) {
		// Close-and-open: the leftover position opens at the traded price.
		p.AvgOpenPrice = tradedPrice
	}

	p.NetPosition = p.NetPosition.Add(signedQuantity)
}

func (p *Position) applyExecutionFee(fee decimal.Decimal) {
	p.RealizedPnl = p.RealizedPnl.Add(fee)
	p.RealizedPnlUSD = p.quoteTickerPrice.Mul(p.RealizedPnl)
	p.TotalPnl = p.RealizedPnl.Add(p.UnrealizedPnl)
	p.TotalPnlUSD = p.TotalPnl.Mul(p.quoteTickerPrice)
}

func (p *Position) applyMarketData(marketPrice decimal.Decimal) {
	p.UnrealizedPnl = marketPrice.Sub(p.AvgOpenPrice).Mul(p.NetPosition)
	p.UnrealizedPnlUSD = p.quoteTickerPrice.Mul(p.UnrealizedPnl)
	p.TotalPnl = p.RealizedPnl.Add(p.UnrealizedPnl)
	p.TotalPnlUSD = p.TotalPnl.Mul(p.quoteTickerPrice)
	p.MarketPrice = marketPrice
}

func calAvgPrice(avgPrice, totalQuantity, tradedQuantity, tradedPrice decimal.Decimal) decimal.Decimal {
	prev := avgPrice.Mul(totalQuantity.Sub(tradedQuantity))
	return prev.Add(tradedPrice.Mul(tradedQuantity)).Div(totalQuantity)
}

func (p *Position) Items(ctx context.Context, tradeDateStart, tradeDateEnd, effective time.Time) ([]feed.Trade, error) {
	return p.trades.TradesAt(ctx, p.portfolio, p.baseAsset, p.quoteAsset, tradeDateStart, tradeDateEnd, effective)
}
