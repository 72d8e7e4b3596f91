package compcode

// purposeCodes maps a cash-flow deal's declared purpose to the comp code its
// single leg books under. Unknown purposes land in the etc bucket.
var purposeCodes = map[string]Code{
	"transfer":            CashflowTransfer,
	"mm fee":              CashflowMMFee,
	"referral fee":        CashflowReferralFee,
	"transaction fee":     CashflowTransactionFee,
	"p&l dividending":     CashflowPnlDividending,
	"mm profit share":     CashflowMMProfitShare,
	"non-trading expense": CashflowNonTradingExpense,
	"interco-loan":        CashflowIntercoLoan,
	"interco-return":      CashflowIntercoReturn,
	"funding":             CashflowFunding,
	"others":              CashflowEtc,
	"etc":                 CashflowEtc,
	"business pnl":        CashflowBusinessPnl,
	"other income":        CashflowOtherIncome,
	"other expense":       CashflowOtherExpense,
	"investments":         CashflowInvestments,

	"execution start":    ExecutionCashflowStart,
	"execution end":      ExecutionCashflowEnd,
	"execution fee":      ExecutionCashflowFee,
	"execution transfer": ExecutionCashflowTransfer,

	"trade funding fee":         CashflowFundingFee,
	"trade insurance clear fee": CashflowInsuranceClear,

	"nft bid ask price": CashflowNFTBidAsk,
	"nft token":         CashflowNFTToken,
	"nft service fee":   CashflowNFTServiceFee,

	"variation margin": VariationMargin,
}

// ForCashflowPurpose resolves a cash-flow purpose string to its comp code,
// defaulting to the etc bucket for purposes this catalog does not know.
func ForCashflowPurpose(purpose string) Code {
	if code, ok := purposeCodes[purpose]; ok {
		return code
	}
	return CashflowEtc
}
