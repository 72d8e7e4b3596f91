package rules

import (
	"acefeed/internal/compcode"
	"acefeed/internal/deal"
	"acefeed/internal/feed"
)

func executionStart(d *deal.Deal) (Draft, error) {
	data, ok := d.TypeData.(deal.ExecutionData)
	if !ok {
		return Draft{}, typeDataErr(d, "ExecutionData")
	}

	f := feed.FromDeal(d)
	f.CompCode = compcode.ExecutionStart
	f.Asset = data.StartAsset
	f.Amount = data.StartAmount
	f.TransferType = feed.TransferTrade
	f.FeedType = settledOr(data.StartSettled, d)
	return Draft{CompCode: compcode.ExecutionStart, Feed: &f}, nil
}

func executionEnd(d *deal.Deal) (Draft, error) {
	data, ok := d.TypeData.(deal.ExecutionData)
	if !ok {
		return Draft{}, typeDataErr(d, "ExecutionData")
	}

	f := feed.FromDeal(d)
	f.CompCode = compcode.ExecutionEnd
	f.Asset = data.EndAsset
	f.Amount = data.EndAmount.Neg()
	f.TransferType = feed.TransferTrade
	f.FeedType = generalFeedType(d)
	return Draft{CompCode: compcode.ExecutionEnd, Feed: &f}, nil
}

func executionFee(d *deal.Deal) (Draft, error) {
	data, ok := d.TypeData.(deal.ExecutionData)
	if !ok {
		return Draft{}, typeDataErr(d, "ExecutionData")
	}

	f := feed.FromDeal(d)
	f.CompCode = compcode.ExecutionFee
	f.Asset = data.FeeAsset
	f.Amount = data.FeeAmount
	f.TransferType = feed.TransferTrade
	f.FeedType = settledOr(data.FeeSettled, d)
	return Draft{CompCode: compcode.ExecutionFee, Feed: &f}, nil
}
