package ingestion

import (
	"encoding/json"
	"fmt"
	"time"

	"acefeed/internal/deal"

	"github.com/shopspring/decimal"
)

// ParseDeal converts one upstream deal revision from its JSON wire form
// into a typed deal.Deal. Field names use snake_case to match the
// upstream producer.
func ParseDeal(data []byte) (*deal.Deal, error) {
	var j dealJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse deal: %w", err)
	}

	d := &deal.Deal{
		DealID:           j.DealID,
		MasterDealID:     j.MasterDealID,
		DealRef:          j.DealRef,
		MasterDealRef:    j.MasterDealRef,
		Type:             deal.Type(j.DealType),
		Status:           deal.ProcessingStatus(j.DealProcessingStatus),
		Portfolio:        j.PortfolioNumber,
		Entity:           j.PortfolioEntity,
		Account:          j.Account,
		CounterpartyRef:  j.CounterpartyRef,
		CounterpartyName: j.CounterpartyName,
		TradeDate:        j.TradeDate,
		ValueDate:        j.ValueDate,
		ValidFrom:        j.ValidFrom,
		Version:          j.Version,
	}

	var err error
	switch d.Type {
	case deal.TypeFXSpot:
		err = parseFXSpot(j.DealTypeData, d)
	case deal.TypeExecution:
		err = parseExecution(j.DealTypeData, d)
	case deal.TypeCashflow:
		err = parseCashflow(j.DealTypeData, d)
	case deal.TypeFutures:
		err = parseFutures(j.DealTypeData, d)
	case deal.TypeOptions:
		err = parseOptions(j.DealTypeData, d)
	default:
		// Unknown types flow through without a payload; the processor
		// records them as unhandled.
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s deal %d: %w", d.Type, d.DealID, err)
	}
	return d, nil
}

type dealJSON struct {
	DealID               int64           `json:"deal_id"`
	MasterDealID         *int64          `json:"master_deal_id"`
	DealRef              string          `json:"deal_ref"`
	MasterDealRef        *string         `json:"master_deal_ref"`
	DealType             string          `json:"deal_type"`
	DealProcessingStatus string          `json:"deal_processing_status"`
	PortfolioNumber      string          `json:"portfolio_number"`
	PortfolioEntity      string          `json:"portfolio_entity"`
	Account              string          `json:"account"`
	CounterpartyRef      string          `json:"counterparty_ref"`
	CounterpartyName     string          `json:"counterparty_name"`
	TradeDate            time.Time       `json:"trade_date"`
	ValueDate            time.Time       `json:"value_date"`
	ValidFrom            time.Time       `json:"valid_from"`
	Version              int64           `json:"version"`
	DealTypeData         json.RawMessage `json:"deal_type_data"`
}

type fxSpotJSON struct {
	Direction        string          `json:"direction"`
	BaseAsset        string          `json:"base_asset"`
	BaseAssetAmount  decimal.Decimal `json:"base_asset_amount"`
	QuoteAsset       string          `json:"quote_asset"`
	QuoteAssetAmount decimal.Decimal `json:"quote_asset_amount"`
	FeeAsset         string          `json:"fee_asset"`
	FeeAmount        decimal.Decimal `json:"fee_amount"`
	BaseSettled      bool            `json:"base_settled"`
	QuoteSettled     bool            `json:"quote_settled"`
}

func parseFXSpot(data []byte, d *deal.Deal) error {
	var j fxSpotJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	d.TypeData = deal.FXSpotData{
		Direction:    deal.TradeDirection(j.Direction),
		BaseAsset:    j.BaseAsset,
		BaseAmount:   j.BaseAssetAmount,
		QuoteAsset:   j.QuoteAsset,
		QuoteAmount:  j.QuoteAssetAmount,
		FeeAsset:     j.FeeAsset,
		FeeAmount:    j.FeeAmount,
		BaseSettled:  j.BaseSettled,
		QuoteSettled: j.QuoteSettled,
	}
	return nil
}

type executionJSON struct {
	StartAsset       string          `json:"start_asset"`
	StartAssetAmount decimal.Decimal `json:"start_asset_amount"`
	EndAsset         string          `json:"end_asset"`
	EndAssetAmount   decimal.Decimal `json:"end_asset_amount"`
	FeeAsset         string          `json:"fee_asset"`
	FeeAmount        decimal.Decimal `json:"fee_amount"`
	StartSettled     bool            `json:"start_settled"`
	FeeSettled       bool            `json:"fee_settled"`
}

func parseExecution(data []byte, d *deal.Deal) error {
	var j executionJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	d.TypeData = deal.ExecutionData{
		StartAsset:   j.StartAsset,
		StartAmount:  j.StartAssetAmount,
		EndAsset:     j.EndAsset,
		EndAmount:    j.EndAssetAmount,
		FeeAsset:     j.FeeAsset,
		FeeAmount:    j.FeeAmount,
		StartSettled: j.StartSettled,
		FeeSettled:   j.FeeSettled,
	}
	return nil
}

type cashflowJSON struct {
	CashflowPurpose string          `json:"cashflow_purpose"`
	Direction       string          `json:"direction"`
	Asset           string          `json:"asset"`
	Amount          decimal.Decimal `json:"amount"`
}

func parseCashflow(data []byte, d *deal.Deal) error {
	var j cashflowJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	d.TypeData = deal.CashflowData{
		Purpose:   j.CashflowPurpose,
		Direction: deal.CashDirection(j.Direction),
		Asset:     j.Asset,
		Amount:    j.Amount,
	}
	return nil
}

type futuresJSON struct {
	TradingPair       string          `json:"trading_pair"`
	PositionSizeBase  string          `json:"position_size_base"`
	PositionSizeQuote string          `json:"position_size_quote"`
	FeeAsset          string          `json:"fee_asset"`
	FeeAmount         decimal.Decimal `json:"fee_amount"`
	BaseSettled       bool            `json:"base_settled"`
	QuoteSettled      bool            `json:"quote_settled"`
}

func parseFutures(data []byte, d *deal.Deal) error {
	var j futuresJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	d.TypeData = deal.FuturesData{
		TradingPair:       j.TradingPair,
		PositionSizeBase:  j.PositionSizeBase,
		PositionSizeQuote: j.PositionSizeQuote,
		FeeAsset:          j.FeeAsset,
		FeeAmount:         j.FeeAmount,
		BaseSettled:       j.BaseSettled,
		QuoteSettled:      j.QuoteSettled,
	}
	return nil
}

type optionsJSON struct {
	OptionInstrument   string          `json:"option_instrument"`
	Direction          string          `json:"direction"`
	Expiry             time.Time       `json:"expiry"`
	PremiumAsset       string          `json:"premium_asset"`
	PremiumAssetAmount decimal.Decimal `json:"premium_asset_amount"`
	PremiumSettled     bool            `json:"premium_settled"`
	BaseAsset          string          `json:"base_asset"`
	Notional           decimal.Decimal `json:"notional"`
	OptionFeeAsset     string          `json:"option_fee_asset"`
	FeeAmount          decimal.Decimal `json:"fee_amount"`
	ExpiryStatus       string          `json:"expiry_status"`

	AceBaseAsset   string          `json:"ace_base_asset"`
	AceBaseAmount  decimal.Decimal `json:"ace_base_amount"`
	AceBaseSettle  bool            `json:"ace_base_settle"`
	AceQuoteAsset  string          `json:"ace_quote_asset"`
	AceQuoteAmount decimal.Decimal `json:"ace_quote_amount"`
	AceQuoteSettle bool            `json:"ace_quote_settle"`

	InitialMargin           decimal.Decimal `json:"initial_margin"`
	InitialMarginAsset      string          `json:"initial_margin_asset"`
	InitialMarginDirection  string          `json:"initial_margin_direction"`
	InitialMarginSettled    bool            `json:"initial_margin_settled"`
	InitialMarginOutAsset   string          `json:"initial_margin_out_asset"`
	InitialMarginOutSettled bool            `json:"initial_margin_out_settled"`
}

func parseOptions(data []byte, d *deal.Deal) error {
	var j optionsJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	d.TypeData = deal.OptionsData{
		Instrument:     j.OptionInstrument,
		Direction:      deal.TradeDirection(j.Direction),
		Expiry:         j.Expiry,
		PremiumAsset:   j.PremiumAsset,
		PremiumAmount:  j.PremiumAssetAmount,
		PremiumSettled: j.PremiumSettled,
		BaseAsset:      j.BaseAsset,
		Notional:       j.Notional,
		FeeAsset:       j.OptionFeeAsset,
		FeeAmount:      j.FeeAmount,
		ExpiryStatus:   deal.OptionExpiryStatus(j.ExpiryStatus),

		ExerciseBaseAsset:    j.AceBaseAsset,
		ExerciseBaseAmount:   j.AceBaseAmount,
		ExerciseBaseSettled:  j.AceBaseSettle,
		ExerciseQuoteAsset:   j.AceQuoteAsset,
		ExerciseQuoteAmount:  j.AceQuoteAmount,
		ExerciseQuoteSettled: j.AceQuoteSettle,

		InitialMargin:           j.InitialMargin,
		InitialMarginAsset:      j.InitialMarginAsset,
		InitialMarginDirection:  deal.MarginDirection(j.InitialMarginDirection),
		InitialMarginSettled:    j.InitialMarginSettled,
		InitialMarginOutAsset:   j.InitialMarginOutAsset,
		InitialMarginOutSettled: j.InitialMarginOutSettled,
	}
	return nil
}
