// Package compcode enumerates the component codes that identify the economic
// legs of a deal. A component code is the stable half of the (deal_id,
// comp_code) key under which ledger feeds are deduplicated and superseded
// across deal revisions.
package compcode

// Code is the stable numeric identifier of one economic leg.
type Code string

const (
	FXSpotBase  Code = "1001"
	FXSpotQuote Code = "1002"
	FXSpotFee   Code = "1003"

	ExecutionStart Code = "2001"
	ExecutionEnd   Code = "2002"
	ExecutionFee   Code = "2003"

	ExecutionCashflowStart    Code = "2011"
	ExecutionCashflowEnd      Code = "2012"
	ExecutionCashflowFee      Code = "2013"
	ExecutionCashflowTransfer Code = "2014"

	FuturesBase  Code = "3001"
	FuturesQuote Code = "3002"
	FuturesFee   Code = "3003"

	OptionsPremium           Code = "4001"
	OptionsNotional          Code = "4002"
	OptionsFee               Code = "4003"
	OptionsSpotExerciseBase  Code = "4004"
	OptionsSpotExerciseQuote Code = "4005"

	CashflowTransfer          Code = "5001"
	CashflowMMFee             Code = "5002"
	CashflowReferralFee       Code = "5003"
	CashflowTransactionFee    Code = "5004"
	CashflowPnlDividending    Code = "5005"
	CashflowMMProfitShare     Code = "5006"
	CashflowNonTradingExpense Code = "5007"
	CashflowIntercoLoan       Code = "5008"
	CashflowIntercoReturn     Code = "5009"
	CashflowFunding           Code = "5010"
	CashflowEtc               Code = "5011"
	CashflowBusinessPnl       Code = "5012"
	CashflowOtherIncome       Code = "5013"
	CashflowOtherExpense      Code = "5014"
	CashflowInvestments       Code = "5015"
	CashflowFundingFee        Code = "5016"
	CashflowInsuranceClear    Code = "5017"

	CashflowNFTBidAsk     Code = "5018"
	CashflowNFTToken      Code = "5019"
	CashflowNFTServiceFee Code = "5020"

	InitialMarginIn  Code = "6001"
	InitialMarginOut Code = "6002"
	VariationMargin  Code = "6003"
)

// cashflowCodes are the comp codes whose open-feed lookup is scoped by deal
// only: a cash-flow deal carries exactly one leg, so a purpose remap moves the
// leg to a different comp code and the previous one must still be found.
// Execution-transfer legs (2014) keep the comp-code-scoped lookup.
var cashflowCodes = map[Code]bool{
	CashflowTransfer:          true,
	CashflowMMFee:             true,
	CashflowReferralFee:       true,
	CashflowTransactionFee:    true,
	CashflowPnlDividending:    true,
	CashflowMMProfitShare:     true,
	CashflowNonTradingExpense: true,
	CashflowIntercoLoan:       true,
	CashflowIntercoReturn:     true,
	CashflowFunding:           true,
	CashflowEtc:               true,
	CashflowBusinessPnl:       true,
	CashflowOtherIncome:       true,
	CashflowOtherExpense:      true,
	CashflowInvestments:       true,
	CashflowFundingFee:        true,
	CashflowInsuranceClear:    true,
	CashflowNFTBidAsk:         true,
	CashflowNFTToken:          true,
	CashflowNFTServiceFee:     true,
	ExecutionCashflowStart:    true,
	ExecutionCashflowEnd:      true,
	ExecutionCashflowFee:      true,
}

// IsCashflow reports whether the open-feed lookup for c is scoped by deal
// only rather than by (deal, comp code).
func IsCashflow(c Code) bool {
	return cashflowCodes[c]
}

// MarginCodes lists the comp codes excluded from snapshot aggregation:
// margin movements are collateral, not position.
func MarginCodes() []Code {
	return []Code{InitialMarginIn, InitialMarginOut, VariationMargin}
}

// executionLegCodes are the paired start/end legs of an execution deal.
// Snapshot folds skip them: the pair nets to the execution's fee, which is
// carried by its own leg.
var executionLegCodes = map[Code]bool{
	ExecutionStart:         true,
	ExecutionEnd:           true,
	ExecutionCashflowStart: true,
	ExecutionCashflowEnd:   true,
}

// IsExecutionLeg reports whether c is an execution start/end leg that
// snapshot folds must skip.
func IsExecutionLeg(c Code) bool {
	return executionLegCodes[c]
}
