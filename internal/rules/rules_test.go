package rules_test

import (
	"testing"
	"time"

	"acefeed/internal/compcode"
	"acefeed/internal/deal"
	"acefeed/internal/feed"
	"acefeed/internal/rules"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func baseDeal(t deal.Type, data deal.TypeData) *deal.Deal {
	return &deal.Deal{
		DealID:    101,
		DealRef:   "D-101",
		Type:      t,
		Status:    deal.StatusConfirmed,
		Portfolio: "7001",
		Entity:    "SG",
		Account:   "MAIN",
		TradeDate: time.Date(2023, 4, 5, 10, 0, 0, 0, time.UTC),
		ValueDate: time.Date(2023, 4, 7, 0, 0, 0, 0, time.UTC),
		ValidFrom: time.Date(2023, 4, 5, 10, 30, 0, 0, time.UTC),
		Version:   1,
		TypeData:  data,
	}
}

func evalRules(t *testing.T, d *deal.Deal) map[compcode.Code]*feed.Feed {
	t.Helper()
	rs := rules.ForType(d.Type)
	if rs == nil {
		t.Fatalf("no rules for type %s", d.Type)
	}
	out := make(map[compcode.Code]*feed.Feed)
	for _, r := range rs {
		draft, err := r(d)
		if err != nil {
			t.Fatalf("rule failed: %v", err)
		}
		out[draft.CompCode] = draft.Feed
	}
	return out
}

func TestFXSpotBuySigns(t *testing.T) {
	d := baseDeal(deal.TypeFXSpot, deal.FXSpotData{
		Direction:   deal.DirectionBuy,
		BaseAsset:   "BTC",
		BaseAmount:  dec("2"),
		QuoteAsset:  "USDT",
		QuoteAmount: dec("56000"),
		FeeAsset:    "USDT",
		FeeAmount:   dec("25"),
	})

	legs := evalRules(t, d)

	if got := legs[compcode.FXSpotBase].Amount; !got.Equal(dec("2")) {
		t.Errorf("base amount: got %s, want 2", got)
	}
	if got := legs[compcode.FXSpotQuote].Amount; !got.Equal(dec("-56000")) {
		t.Errorf("quote amount: got %s, want -56000", got)
	}
	if got := legs[compcode.FXSpotFee].Amount; !got.Equal(dec("-25")) {
		t.Errorf("fee amount: got %s, want -25", got)
	}
}

func TestFXSpotSellFlipsLegSigns(t *testing.T) {
	d := baseDeal(deal.TypeFXSpot, deal.FXSpotData{
		Direction:   deal.DirectionSell,
		BaseAsset:   "ETH",
		BaseAmount:  dec("10"),
		QuoteAsset:  "USDT",
		QuoteAmount: dec("18000"),
		FeeAsset:    "USDT",
		FeeAmount:   dec("9"),
	})

	legs := evalRules(t, d)

	if got := legs[compcode.FXSpotBase].Amount; !got.Equal(dec("-10")) {
		t.Errorf("base amount: got %s, want -10", got)
	}
	if got := legs[compcode.FXSpotQuote].Amount; !got.Equal(dec("18000")) {
		t.Errorf("quote amount: got %s, want 18000", got)
	}
	// Fee is paid regardless of direction.
	if got := legs[compcode.FXSpotFee].Amount; !got.Equal(dec("-9")) {
		t.Errorf("fee amount: got %s, want -9", got)
	}
}

func TestFXSpotPartialSettlement(t *testing.T) {
	d := baseDeal(deal.TypeFXSpot, deal.FXSpotData{
		Direction:   deal.DirectionBuy,
		BaseAsset:   "BTC",
		BaseAmount:  dec("1"),
		QuoteAsset:  "USDT",
		QuoteAmount: dec("28000"),
		BaseSettled: true,
	})

	legs := evalRules(t, d)

	if got := legs[compcode.FXSpotBase].FeedType; got != feed.Cash {
		t.Errorf("settled base leg: got %s, want Cash", got)
	}
	if got := legs[compcode.FXSpotQuote].FeedType; got != feed.PV {
		t.Errorf("unsettled quote leg: got %s, want PV", got)
	}
}

func TestSettledDealProducesCashLegs(t *testing.T) {
	d := baseDeal(deal.TypeFXSpot, deal.FXSpotData{
		Direction:   deal.DirectionBuy,
		BaseAsset:   "BTC",
		BaseAmount:  dec("1"),
		QuoteAsset:  "USDT",
		QuoteAmount: dec("28000"),
	})
	d.Status = deal.StatusSettled

	for code, f := range evalRules(t, d) {
		if f.FeedType != feed.Cash {
			t.Errorf("%s: got %s, want Cash", code, f.FeedType)
		}
	}
}

func TestExecutionSigns(t *testing.T) {
	d := baseDeal(deal.TypeExecution, deal.ExecutionData{
		StartAsset:  "USDT",
		StartAmount: dec("100000"),
		EndAsset:    "BTC",
		EndAmount:   dec("3.5"),
		FeeAsset:    "USDT",
		FeeAmount:   dec("120"),
	})

	legs := evalRules(t, d)

	if got := legs[compcode.ExecutionStart].Amount; !got.Equal(dec("100000")) {
		t.Errorf("start amount: got %s, want 100000", got)
	}
	if got := legs[compcode.ExecutionEnd].Amount; !got.Equal(dec("-3.5")) {
		t.Errorf("end amount: got %s, want -3.5", got)
	}
	// Execution fee is income, not expense.
	if got := legs[compcode.ExecutionFee].Amount; !got.Equal(dec("120")) {
		t.Errorf("fee amount: got %s, want 120", got)
	}
}

func TestCashflowPurposeSelectsCompCode(t *testing.T) {
	cases := []struct {
		purpose string
		want    compcode.Code
	}{
		{"transfer", compcode.CashflowTransfer},
		{"funding", compcode.CashflowFunding},
		{"execution fee", compcode.ExecutionCashflowFee},
		{"never seen before", compcode.CashflowEtc},
	}

	for _, tc := range cases {
		d := baseDeal(deal.TypeCashflow, deal.CashflowData{
			Purpose:   tc.purpose,
			Direction: deal.CashReceive,
			Asset:     "USDT",
			Amount:    dec("500"),
		})
		legs := evalRules(t, d)
		if _, ok := legs[tc.want]; !ok {
			t.Errorf("purpose %q: no leg at comp code %s", tc.purpose, tc.want)
		}
	}
}

func TestCashflowDirectionSign(t *testing.T) {
	recv := baseDeal(deal.TypeCashflow, deal.CashflowData{
		Purpose:   "transfer",
		Direction: deal.CashReceive,
		Asset:     "USDT",
		Amount:    dec("500"),
	})
	pay := baseDeal(deal.TypeCashflow, deal.CashflowData{
		Purpose:   "transfer",
		Direction: deal.CashPay,
		Asset:     "USDT",
		Amount:    dec("500"),
	})

	if got := evalRules(t, recv)[compcode.CashflowTransfer].Amount; !got.Equal(dec("500")) {
		t.Errorf("receive: got %s, want 500", got)
	}
	if got := evalRules(t, pay)[compcode.CashflowTransfer].Amount; !got.Equal(dec("-500")) {
		t.Errorf("pay: got %s, want -500", got)
	}
}

func TestParsePositionSize(t *testing.T) {
	asset, amount, err := rules.ParsePositionSize("LINK 0.011959270142827855")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if asset != "LINK" {
		t.Errorf("asset: got %q, want LINK", asset)
	}
	if !amount.Equal(dec("0.011959270142827855")) {
		t.Errorf("amount: got %s", amount)
	}

	// Asset names may contain spaces, so the split is on the last one.
	asset, amount, err = rules.ParsePositionSize("SOME TOKEN -3.25")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if asset != "SOME TOKEN" {
		t.Errorf("asset: got %q, want SOME TOKEN", asset)
	}
	if !amount.Equal(dec("-3.25")) {
		t.Errorf("amount: got %s, want -3.25", amount)
	}

	if _, _, err := rules.ParsePositionSize("USDT"); err == nil {
		t.Error("expected error for missing amount")
	}
}

func TestFuturesLegs(t *testing.T) {
	d := baseDeal(deal.TypeFutures, deal.FuturesData{
		TradingPair:       "ETHUSDT",
		PositionSizeBase:  "ETH 5",
		PositionSizeQuote: "USDT -9000",
		FeeAsset:          "USDT",
		FeeAmount:         dec("4.5"),
	})

	legs := evalRules(t, d)

	if got := legs[compcode.FuturesBase].Amount; !got.Equal(dec("5")) {
		t.Errorf("quantity: got %s, want 5", got)
	}
	if got := legs[compcode.FuturesQuote].Amount; !got.Equal(dec("-9000")) {
		t.Errorf("margin: got %s, want -9000", got)
	}
	if got := legs[compcode.FuturesFee].Amount; !got.Equal(dec("-4.5")) {
		t.Errorf("fee: got %s, want -4.5", got)
	}
	for _, code := range []compcode.Code{compcode.FuturesBase, compcode.FuturesQuote, compcode.FuturesFee} {
		f := legs[code]
		if f.Contract == nil || *f.Contract != "ETHUSDT" {
			t.Errorf("%s: contract not set to trading pair", code)
		}
	}
}

func optionsData() deal.OptionsData {
	return deal.OptionsData{
		Instrument:    "BTC-30JUN23-30000-C",
		Direction:     deal.DirectionBuy,
		Expiry:        time.Date(2023, 6, 30, 8, 0, 0, 0, time.UTC),
		PremiumAsset:  "USDT",
		PremiumAmount: dec("1500"),
		BaseAsset:     "BTC",
		Notional:      dec("1"),
		FeeAsset:      "USDT",
		FeeAmount:     dec("3"),
		ExpiryStatus:  deal.OptionOpen,
	}
}

func TestOptionsPremiumAndNotional(t *testing.T) {
	d := baseDeal(deal.TypeOptions, optionsData())
	legs := evalRules(t, d)

	premium := legs[compcode.OptionsPremium]
	if !premium.Amount.Equal(dec("-1500")) {
		t.Errorf("premium: got %s, want -1500 (buyer pays)", premium.Amount)
	}
	if !premium.ValueDate.Equal(d.TradeDate) {
		t.Errorf("premium value date: got %s, want trade date", premium.ValueDate)
	}

	notional := legs[compcode.OptionsNotional]
	if !notional.Amount.Equal(dec("1")) {
		t.Errorf("notional: got %s, want 1 (buyer receives)", notional.Amount)
	}
	if !notional.ValueDate.Equal(time.Date(2023, 6, 30, 8, 0, 0, 0, time.UTC)) {
		t.Errorf("notional value date: got %s, want expiry", notional.ValueDate)
	}
	if notional.Contract == nil || *notional.Contract != "BTC-30JUN23-30000-C(N)" {
		t.Error("notional contract missing (N) suffix")
	}
}

func TestOptionsExerciseLegsOnlyWhenExercised(t *testing.T) {
	data := optionsData()
	data.ExerciseBaseAsset = "BTC"
	data.ExerciseBaseAmount = dec("1")
	data.ExerciseQuoteAsset = "USDT"
	data.ExerciseQuoteAmount = dec("-30000")

	d := baseDeal(deal.TypeOptions, data)
	legs := evalRules(t, d)
	if legs[compcode.OptionsSpotExerciseBase] != nil {
		t.Error("open option produced an exercise base leg")
	}
	if legs[compcode.OptionsSpotExerciseQuote] != nil {
		t.Error("open option produced an exercise quote leg")
	}

	data.ExpiryStatus = deal.OptionExercised
	d = baseDeal(deal.TypeOptions, data)
	legs = evalRules(t, d)
	if legs[compcode.OptionsSpotExerciseBase] == nil {
		t.Fatal("exercised option missing exercise base leg")
	}
	if !legs[compcode.OptionsSpotExerciseBase].Amount.Equal(dec("1")) {
		t.Errorf("exercise base: got %s, want 1", legs[compcode.OptionsSpotExerciseBase].Amount)
	}
}

func TestOptionsZeroFeeIsAbsent(t *testing.T) {
	data := optionsData()
	data.FeeAmount = dec("0")
	d := baseDeal(deal.TypeOptions, data)

	legs := evalRules(t, d)
	if legs[compcode.OptionsFee] != nil {
		t.Error("zero fee produced a leg")
	}
}

func TestOptionsInitialMarginLegs(t *testing.T) {
	data := optionsData()
	data.InitialMargin = dec("2000")
	data.InitialMarginAsset = "USDT"
	data.InitialMarginDirection = deal.MarginReceive

	d := baseDeal(deal.TypeOptions, data)
	legs := evalRules(t, d)

	in := legs[compcode.InitialMarginIn]
	if in == nil {
		t.Fatal("missing initial margin in leg")
	}
	if !in.Amount.Equal(dec("2000")) {
		t.Errorf("margin in: got %s, want 2000", in.Amount)
	}
	if in.TransferType != feed.TransferTransfer {
		t.Errorf("margin transfer type: got %s, want transfer", in.TransferType)
	}

	// Margin stays in while the option is open.
	if legs[compcode.InitialMarginOut] != nil {
		t.Error("open option produced a margin out leg")
	}

	data.ExpiryStatus = deal.OptionNotExercised
	d = baseDeal(deal.TypeOptions, data)
	legs = evalRules(t, d)
	out := legs[compcode.InitialMarginOut]
	if out == nil {
		t.Fatal("expired option missing margin out leg")
	}
	if !out.Amount.Equal(dec("-2000")) {
		t.Errorf("margin out: got %s, want -2000", out.Amount)
	}
}

func TestTradeForTypeFXSpot(t *testing.T) {
	d := baseDeal(deal.TypeFXSpot, deal.FXSpotData{
		Direction:   deal.DirectionSell,
		BaseAsset:   "ETH",
		BaseAmount:  dec("10"),
		QuoteAsset:  "USDT",
		QuoteAmount: dec("18000"),
		FeeAsset:    "USDT",
		FeeAmount:   dec("9"),
	})

	rule := rules.TradeForType(d.Type)
	if rule == nil {
		t.Fatal("no trade rule for fx spot")
	}
	tr, err := rule(d)
	if err != nil {
		t.Fatalf("trade rule: %v", err)
	}
	if !tr.BaseAmount.Equal(dec("-10")) {
		t.Errorf("base: got %s, want -10", tr.BaseAmount)
	}
	if !tr.QuoteAmount.Equal(dec("18000")) {
		t.Errorf("quote: got %s, want 18000", tr.QuoteAmount)
	}
}

func TestTradeForTypeCashflowAbsent(t *testing.T) {
	if rules.TradeForType(deal.TypeCashflow) != nil {
		t.Error("cashflow deals must not produce trades")
	}
}
