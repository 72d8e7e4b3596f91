package rules

import (
	"fmt"
	"strings"

	"acefeed/internal/compcode"
	"acefeed/internal/deal"
	"acefeed/internal/feed"

	"github.com/shopspring/decimal"
)

// ParsePositionSize splits a venue position string such as
// "LINK 0.011959270142827855" into its asset and amount. The asset name may
// itself contain spaces, so the split is on the last one.
func ParsePositionSize(value string) (string, decimal.Decimal, error) {
	i := strings.LastIndex(value, " ")
	if i == -1 {
		return "", decimal.Zero, fmt.Errorf("position size %q: missing amount", value)
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(value[i+1:]))
	if err != nil {
		return "", decimal.Zero, fmt.Errorf("position size %q: %w", value, err)
	}
	return value[:i], amount, nil
}

func futuresQuantity(d *deal.Deal) (Draft, error) {
	data, ok := d.TypeData.(deal.FuturesData)
	if !ok {
		return Draft{}, typeDataErr(d, "FuturesData")
	}

	asset, amount, err := ParsePositionSize(data.PositionSizeBase)
	if err != nil {
		return Draft{}, err
	}

	f := feed.FromDeal(d)
	f.CompCode = compcode.FuturesBase
	f.Asset = asset
	f.Amount = amount
	f.TransferType = feed.TransferTrade
	f.FeedType = settledOr(data.BaseSettled, d)
	f.Contract = strPtr(data.TradingPair)
	return Draft{CompCode: compcode.FuturesBase, Feed: &f}, nil
}

func futuresMargin(d *deal.Deal) (Draft, error) {
	data, ok := d.TypeData.(deal.FuturesData)
	if !ok {
		return Draft{}, typeDataErr(d, "FuturesData")
	}

	asset, amount, err := ParsePositionSize(data.PositionSizeQuote)
	if err != nil {
		return Draft{}, err
	}

	f := feed.FromDeal(d)
	f.CompCode = compcode.FuturesQuote
	f.Asset = asset
	f.Amount = amount
	f.TransferType = feed.TransferTrade
	f.FeedType = settledOr(data.QuoteSettled, d)
	f.Contract = strPtr(data.TradingPair)
	return Draft{CompCode: compcode.FuturesQuote, Feed: &f}, nil
}

func futuresFee(d *deal.Deal) (Draft, error) {
	data, ok := d.TypeData.(deal.FuturesData)
	if !ok {
		return Draft{}, typeDataErr(d, "FuturesData")
	}

	f := feed.FromDeal(d)
	f.CompCode = compcode.FuturesFee
	f.Asset = data.FeeAsset
	f.Amount = data.FeeAmount.Neg()
	f.TransferType = feed.TransferTrade
	f.FeedType = generalFeedType(d)
	f.Contract = strPtr(data.TradingPair)
	return Draft{CompCode: compcode.FuturesFee, Feed: &f}, nil
}
