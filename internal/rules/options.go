package rules

import (
	"acefeed/internal/compcode"
	"acefeed/internal/deal"
	"acefeed/internal/feed"

	"github.com/shopspring/decimal"
)

func optionsPremium(d *deal.Deal) (Draft, error) {
	data, ok := d.TypeData.(deal.OptionsData)
	if !ok {
		return Draft{}, typeDataErr(d, "OptionsData")
	}

	f := feed.FromDeal(d)
	f.CompCode = compcode.OptionsPremium
	f.Asset = data.PremiumAsset
	// Buying the option pays the premium away.
	f.Amount = data.PremiumAmount
	if data.Direction == deal.DirectionBuy {
		f.Amount = f.Amount.Neg()
	}
	f.TransferType = feed.TransferTrade
	f.FeedType = settledOr(data.PremiumSettled, d)
	f.Contract = strPtr(data.Instrument)
	f.ValueDate = d.TradeDate
	return Draft{CompCode: compcode.OptionsPremium, Feed: &f}, nil
}

func optionsNotional(d *deal.Deal) (Draft, error) {
	data, ok := d.TypeData.(deal.OptionsData)
	if !ok {
		return Draft{}, typeDataErr(d, "OptionsData")
	}

	f := feed.FromDeal(d)
	f.CompCode = compcode.OptionsNotional
	f.Asset = data.BaseAsset
	f.Amount = data.Notional
	if data.Direction != deal.DirectionBuy {
		f.Amount = f.Amount.Neg()
	}
	f.TransferType = feed.TransferTrade
	f.FeedType = settledOr(data.PremiumSettled, d)
	// The notional settles at expiry; its contract is suffixed so the leg
	// never collides with the premium on the same instrument.
	f.ValueDate = data.Expiry
	f.Contract = strPtr(data.Instrument + "(N)")
	return Draft{CompCode: compcode.OptionsNotional, Feed: &f}, nil
}

func optionsFee(d *deal.Deal) (Draft, error) {
	data, ok := d.TypeData.(deal.OptionsData)
	if !ok {
		return Draft{}, typeDataErr(d, "OptionsData")
	}
	if isZero(data.FeeAmount) {
		return Draft{CompCode: compcode.OptionsFee}, nil
	}

	f := feed.FromDeal(d)
	f.CompCode = compcode.OptionsFee
	f.Asset = data.FeeAsset
	f.Amount = data.FeeAmount
	if f.Amount.IsPositive() {
		f.Amount = f.Amount.Neg()
	}
	f.TransferType = feed.TransferTrade
	f.FeedType = settledOr(data.PremiumSettled, d)
	f.Contract = strPtr(data.Instrument)
	f.ValueDate = d.TradeDate
	return Draft{CompCode: compcode.OptionsFee, Feed: &f}, nil
}

func optionsExerciseBase(d *deal.Deal) (Draft, error) {
	data, ok := d.TypeData.(deal.OptionsData)
	if !ok {
		return Draft{}, typeDataErr(d, "OptionsData")
	}
	if isZero(data.ExerciseBaseAmount) || data.ExpiryStatus != deal.OptionExercised {
		return Draft{CompCode: compcode.OptionsSpotExerciseBase}, nil
	}

	f := feed.FromDeal(d)
	f.CompCode = compcode.OptionsSpotExerciseBase
	f.Asset = data.ExerciseBaseAsset
	f.Amount = data.ExerciseBaseAmount
	f.TransferType = feed.TransferTrade
	f.FeedType = settledOr(data.ExerciseBaseSettled, d)
	f.TradeDate = data.Expiry
	f.ValueDate = data.Expiry
	f.Contract = strPtr(data.Instrument)
	return Draft{CompCode: compcode.OptionsSpotExerciseBase, Feed: &f}, nil
}

func optionsExerciseQuote(d *deal.Deal) (Draft, error) {
	data, ok := d.TypeData.(deal.OptionsData)
	if !ok {
		return Draft{}, typeDataErr(d, "OptionsData")
	}
	if isZero(data.ExerciseQuoteAmount) || data.ExpiryStatus != deal.OptionExercised {
		return Draft{CompCode: compcode.OptionsSpotExerciseQuote}, nil
	}

	f := feed.FromDeal(d)
	f.CompCode = compcode.OptionsSpotExerciseQuote
	f.Asset = data.ExerciseQuoteAsset
	f.Amount = data.ExerciseQuoteAmount
	f.TransferType = feed.TransferTrade
	f.FeedType = settledOr(data.ExerciseQuoteSettled, d)
	f.TradeDate = data.Expiry
	f.ValueDate = data.Expiry
	f.Contract = strPtr(data.Instrument)
	return Draft{CompCode: compcode.OptionsSpotExerciseQuote, Feed: &f}, nil
}

func marginAsset(asset string) string {
	if asset == "" {
		return "USDT"
	}
	return asset
}

// signedInitialMargin orients the margin amount from the portfolio's view.
func signedInitialMargin(data deal.OptionsData) decimal.Decimal {
	amount := data.InitialMargin
	if data.InitialMarginDirection != deal.MarginReceive {
		amount = amount.Neg()
	}
	return amount
}

func optionsInitialMargin(d *deal.Deal) (Draft, error) {
	data, ok := d.TypeData.(deal.OptionsData)
	if !ok {
		return Draft{}, typeDataErr(d, "OptionsData")
	}
	if isZero(data.InitialMargin) {
		return Draft{CompCode: compcode.InitialMarginIn}, nil
	}

	f := feed.FromDeal(d)
	f.CompCode = compcode.InitialMarginIn
	f.Asset = marginAsset(data.InitialMarginAsset)
	f.Amount = signedInitialMargin(data)
	f.TransferType = feed.TransferTransfer
	f.FeedType = settledOr(data.InitialMarginSettled, d)
	f.Contract = strPtr(data.Instrument)
	return Draft{CompCode: compcode.InitialMarginIn, Feed: &f}, nil
}

func optionsInitialMarginOut(d *deal.Deal) (Draft, error) {
	data, ok := d.TypeData.(deal.OptionsData)
	if !ok {
		return Draft{}, typeDataErr(d, "OptionsData")
	}
	if isZero(data.InitialMargin) || data.ExpiryStatus == deal.OptionOpen {
		return Draft{CompCode: compcode.InitialMarginOut}, nil
	}

	f := feed.FromDeal(d)
	f.CompCode = compcode.InitialMarginOut
	f.Asset = marginAsset(data.InitialMarginOutAsset)
	// The outbound leg unwinds whatever came in once the option expires.
	f.Amount = signedInitialMargin(data).Neg()
	f.TransferType = feed.TransferTransfer
	f.FeedType = settledOr(data.InitialMarginOutSettled, d)
	f.Contract = strPtr(data.Instrument)
	f.TradeDate = data.Expiry
	f.ValueDate = data.Expiry
	return Draft{CompCode: compcode.InitialMarginOut, Feed: &f}, nil
}
