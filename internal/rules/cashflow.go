package rules

import (
	"acefeed/internal/compcode"
	"acefeed/internal/deal"
	"acefeed/internal/feed"
)

// executionPurposeCodes are the cash-flow purposes booked as settlement legs
// of an execution rather than standalone transfers.
var executionPurposeCodes = map[compcode.Code]bool{
	compcode.ExecutionCashflowStart:    true,
	compcode.ExecutionCashflowEnd:      true,
	compcode.ExecutionCashflowFee:      true,
	compcode.ExecutionCashflowTransfer: true,
}

func cashflow(d *deal.Deal) (Draft, error) {
	data, ok := d.TypeData.(deal.CashflowData)
	if !ok {
		return Draft{}, typeDataErr(d, "CashflowData")
	}

	code := compcode.ForCashflowPurpose(data.Purpose)

	f := feed.FromDeal(d)
	f.CompCode = code
	f.Asset = data.Asset
	f.Amount = data.Amount
	if data.Direction != deal.CashReceive {
		f.Amount = f.Amount.Neg()
	}
	if executionPurposeCodes[code] {
		f.Product = string(deal.TypeExecution)
		f.TransferType = feed.TransferTrade
	} else {
		f.TransferType = feed.TransferTransfer
	}
	f.FeedType = generalFeedType(d)
	return Draft{CompCode: code, Feed: &f}, nil
}
