// Package rules derives candidate ledger entries from deal revisions. Each
// rule covers one economic leg of a deal type and is pure: it inspects the
// revision and produces a draft, leaving dedup, cancellation and persistence
// to the processor.
package rules

import (
	"fmt"

	"acefeed/internal/compcode"
	"acefeed/internal/deal"
	"acefeed/internal/feed"

	"github.com/shopspring/decimal"
)

// Draft is one rule's output: the comp code the leg lives under and the
// candidate feed. A nil Feed means the leg does not exist in this revision
// (an unexercised option leg, a zero fee); the comp code still identifies
// which prior feed the absence applies to.
type Draft struct {
	CompCode compcode.Code
	Feed     *feed.Feed
}

// Rule derives one leg's draft from a deal revision.
type Rule func(d *deal.Deal) (Draft, error)

var handlers = map[deal.Type][]Rule{
	deal.TypeFXSpot:    {fxSpotBase, fxSpotQuote, fxSpotFee},
	deal.TypeExecution: {executionStart, executionEnd, executionFee},
	deal.TypeCashflow:  {cashflow},
	deal.TypeFutures:   {futuresQuantity, futuresMargin, futuresFee},
	deal.TypeOptions: {
		optionsPremium, optionsNotional, optionsFee,
		optionsExerciseBase, optionsExerciseQuote,
		optionsInitialMargin, optionsInitialMarginOut,
	},
}

// ForType returns the leg rules for a deal type, or nil for an unknown type.
func ForType(t deal.Type) []Rule {
	return handlers[t]
}

// generalFeedType maps the revision's processing status onto the feed type:
// a settled deal produces Cash legs, anything else is provisional.
func generalFeedType(d *deal.Deal) feed.FeedType {
	if d.Status == deal.StatusSettled {
		return feed.Cash
	}
	return feed.PV
}

// settledOr promotes a leg to Cash when its own settled flag is set, even if
// the deal as a whole has not settled.
func settledOr(settled bool, d *deal.Deal) feed.FeedType {
	if settled {
		return feed.Cash
	}
	return generalFeedType(d)
}

func isZero(x decimal.Decimal) bool {
	return x.Round(feed.AmountPrecision).IsZero()
}

func strPtr(s string) *string { return &s }

func typeDataErr(d *deal.Deal, want string) error {
	return fmt.Errorf("deal %d: type data is %T, want %s", d.DealID, d.TypeData, want)
}
