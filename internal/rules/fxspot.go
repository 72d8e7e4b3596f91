package rules

import (
	"acefeed/internal/compcode"
	"acefeed/internal/deal"
	"acefeed/internal/feed"

	"github.com/shopspring/decimal"
)

func fxSpotDirection(dir deal.TradeDirection) decimal.Decimal {
	if dir == deal.DirectionBuy {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromInt(-1)
}

func fxSpotBase(d *deal.Deal) (Draft, error) {
	data, ok := d.TypeData.(deal.FXSpotData)
	if !ok {
		return Draft{}, typeDataErr(d, "FXSpotData")
	}

	f := feed.FromDeal(d)
	f.CompCode = compcode.FXSpotBase
	f.Asset = data.BaseAsset
	f.Amount = fxSpotDirection(data.Direction).Mul(data.BaseAmount)
	f.TransferType = feed.TransferTrade
	f.FeedType = settledOr(data.BaseSettled, d)
	return Draft{CompCode: compcode.FXSpotBase, Feed: &f}, nil
}

func fxSpotQuote(d *deal.Deal) (Draft, error) {
	data, ok := d.TypeData.(deal.FXSpotData)
	if !ok {
		return Draft{}, typeDataErr(d, "FXSpotData")
	}

	f := feed.FromDeal(d)
	f.CompCode = compcode.FXSpotQuote
	f.Asset = data.QuoteAsset
	f.Amount = fxSpotDirection(data.Direction).Neg().Mul(data.QuoteAmount)
	f.TransferType = feed.TransferTrade
	f.FeedType = settledOr(data.QuoteSettled, d)
	return Draft{CompCode: compcode.FXSpotQuote, Feed: &f}, nil
}

func fxSpotFee(d *deal.Deal) (Draft, error) {
	data, ok := d.TypeData.(deal.FXSpotData)
	if !ok {
		return Draft{}, typeDataErr(d, "FXSpotData")
	}

	f := feed.FromDeal(d)
	f.CompCode = compcode.FXSpotFee
	f.Asset = data.FeeAsset
	f.Amount = data.FeeAmount.Neg()
	f.TransferType = feed.TransferTrade
	f.FeedType = generalFeedType(d)
	return Draft{CompCode: compcode.FXSpotFee, Feed: &f}, nil
}
