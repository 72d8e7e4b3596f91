package rules

import (
	"acefeed/internal/deal"
	"acefeed/internal/feed"
)

// TradeRule derives the deal's paired-leg trade view, or nil when the deal
// type has no such view.
type TradeRule func(d *deal.Deal) (*feed.Trade, error)

var tradeHandlers = map[deal.Type]TradeRule{
	deal.TypeFXSpot:    tradeFXSpot,
	deal.TypeExecution: tradeExecution,
	deal.TypeFutures:   tradeFutures,
}

// TradeForType returns the trade rule for a deal type, or nil when position
// aggregation does not track the type.
func TradeForType(t deal.Type) TradeRule {
	return tradeHandlers[t]
}

func tradeFXSpot(d *deal.Deal) (*feed.Trade, error) {
	data, ok := d.TypeData.(deal.FXSpotData)
	if !ok {
		return nil, typeDataErr(d, "FXSpotData")
	}

	t := feed.TradeFromDeal(d)
	t.TransferType = feed.TransferTrade
	t.FeedType = generalFeedType(d)

	dir := fxSpotDirection(data.Direction)
	t.BaseAsset = data.BaseAsset
	t.BaseAmount = dir.Mul(data.BaseAmount)
	t.QuoteAsset = data.QuoteAsset
	t.QuoteAmount = dir.Neg().Mul(data.QuoteAmount)
	t.FeeAsset = data.FeeAsset
	t.FeeAmount = data.FeeAmount.Neg()
	return &t, nil
}

func tradeExecution(d *deal.Deal) (*feed.Trade, error) {
	data, ok := d.TypeData.(deal.ExecutionData)
	if !ok {
		return nil, typeDataErr(d, "ExecutionData")
	}

	t := feed.TradeFromDeal(d)
	t.TransferType = feed.TransferTrade
	t.FeedType = generalFeedType(d)

	t.BaseAsset = data.StartAsset
	t.BaseAmount = data.StartAmount
	t.QuoteAsset = data.EndAsset
	t.QuoteAmount = data.EndAmount.Neg()
	t.FeeAsset = data.FeeAsset
	t.FeeAmount = data.FeeAmount
	return &t, nil
}

func tradeFutures(d *deal.Deal) (*feed.Trade, error) {
	data, ok := d.TypeData.(deal.FuturesData)
	if !ok {
		return nil, typeDataErr(d, "FuturesData")
	}

	t := feed.TradeFromDeal(d)
	t.TransferType = feed.TransferTrade
	t.FeedType = generalFeedType(d)

	var err error
	t.BaseAsset, t.BaseAmount, err = ParsePositionSize(data.PositionSizeBase)
	if err != nil {
		return nil, err
	}
	t.QuoteAsset, t.QuoteAmount, err = ParsePositionSize(data.PositionSizeQuote)
	if err != nil {
		return nil, err
	}
	t.FeeAsset = data.FeeAsset
	t.FeeAmount = data.FeeAmount.Neg()
	t.Contract = strPtr(data.TradingPair)
	return &t, nil
}
