package deal

import (
	"time"

	"github.com/shopspring/decimal"
)

// TypeData is the tagged payload variant of a deal. Each deal type carries
// its own struct; rule functions switch on the concrete type instead of
// probing an untyped map.
type TypeData interface {
	DealType() Type
}

// TradeDirection is the side of a two-asset trade from the portfolio's view.
type TradeDirection string

const (
	DirectionBuy  TradeDirection = "buy"
	DirectionSell TradeDirection = "sell"
)

// CashDirection is the flow direction of a single-asset transfer.
type CashDirection string

const (
	CashReceive CashDirection = "receive"
	CashPay     CashDirection = "pay"
)

// FXSpotData is the payload of an FX spot deal. The per-leg settled flags
// model partial settlement: one leg can be cash-settled while the sibling
// leg is still provisional.
type FXSpotData struct {
	Direction TradeDirection

	BaseAsset   string
	BaseAmount  decimal.Decimal
	QuoteAsset  string
	QuoteAmount decimal.Decimal
	FeeAsset    string
	FeeAmount   decimal.Decimal

	BaseSettled  bool
	QuoteSettled bool
}

func (FXSpotData) DealType() Type { return TypeFXSpot }

// ExecutionData is the payload of an execution (agency fill) deal.
type ExecutionData struct {
	StartAsset  string
	StartAmount decimal.Decimal
	EndAsset    string
	EndAmount   decimal.Decimal
	FeeAsset    string
	FeeAmount   decimal.Decimal

	StartSettled bool
	FeeSettled   bool
}

func (ExecutionData) DealType() Type { return TypeExecution }

// CashflowData is the payload of a cash-flow deal. Purpose selects the comp
// code of the single leg.
type CashflowData struct {
	Purpose   string
	Direction CashDirection
	Asset     string
	Amount    decimal.Decimal
}

func (CashflowData) DealType() Type { return TypeCashflow }

// FuturesData is the payload of a futures deal. Position sizes arrive as
// "ASSET amount" strings from the venue and are parsed by the rule.
type FuturesData struct {
	TradingPair       string
	PositionSizeBase  string
	PositionSizeQuote string
	FeeAsset          string
	FeeAmount         decimal.Decimal

	BaseSettled  bool
	QuoteSettled bool
}

func (FuturesData) DealType() Type { return TypeFutures }

// OptionExpiryStatus is the exercise state of an options deal at expiry.
type OptionExpiryStatus string

const (
	OptionOpen         OptionExpiryStatus = "open"
	OptionNotExercised OptionExpiryStatus = "not_exercised"
	OptionExercised    OptionExpiryStatus = "exercised"
)

// MarginDirection is the side of an initial-margin movement.
type MarginDirection string

const (
	MarginReceive MarginDirection = "receive"
	MarginSend    MarginDirection = "send"
)

// OptionsData is the payload of an options deal. Several legs are
// conditional: exercise legs exist only once the option is exercised, and
// the margin-out leg only once the option has left the open state.
type OptionsData struct {
	Instrument string
	Direction  TradeDirection
	Expiry     time.Time

	PremiumAsset   string
	PremiumAmount  decimal.Decimal
	PremiumSettled bool

	BaseAsset string
	Notional  decimal.Decimal

	FeeAsset  string
	FeeAmount decimal.Decimal

	ExpiryStatus OptionExpiryStatus

	ExerciseBaseAsset    string
	ExerciseBaseAmount   decimal.Decimal
	ExerciseBaseSettled  bool
	ExerciseQuoteAsset   string
	ExerciseQuoteAmount  decimal.Decimal
	ExerciseQuoteSettled bool

	InitialMargin           decimal.Decimal
	InitialMarginAsset      string
	InitialMarginDirection  MarginDirection
	InitialMarginSettled    bool
	InitialMarginOutAsset   string
	InitialMarginOutSettled bool
}

func (OptionsData) DealType() Type { return TypeOptions }
