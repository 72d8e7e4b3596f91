package feed

import (
	"time"

	"acefeed/internal/deal"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Trade is the paired base/quote/fee view of a deal, one row per deal,
// folded by the position aggregate. Like feeds it is bitemporal and keeps
// at most one open row per deal.
type Trade struct {
	ID         uuid.UUID
	Source     string
	RecordDate time.Time
	Version    int64
	RefID      *uuid.UUID

	FeedType   FeedType
	RecordType RecordType

	DealID       int64
	MasterDealID *int64

	Portfolio    string
	Product      string
	TransferType TransferType
	Contract     *string

	DealRef       string
	MasterDealRef *string

	BaseAsset  string
	BaseAmount decimal.Decimal

	QuoteAsset  string
	QuoteAmount decimal.Decimal

	FeeAsset  string
	FeeAmount decimal.Decimal

	CounterpartyRef  string
	CounterpartyName string
	Account          string
	Entity           string

	ValueDate time.Time
	TradeDate time.Time

	EffectiveDateStart time.Time
	EffectiveDateEnd   *time.Time
}

// Open reports whether the trade is the current row for its deal.
func (t *Trade) Open() bool {
	return t.EffectiveDateEnd == nil
}

// TradeFromDeal fills the common trade fields from a deal revision.
func TradeFromDeal(d *deal.Deal) Trade {
	return Trade{
		ID:                 uuid.New(),
		Source:             SourceXAlpha,
		RecordDate:         time.Now().UTC(),
		Version:            d.Version,
		RecordType:         Create,
		DealID:             d.DealID,
		MasterDealID:       d.MasterDealID,
		Portfolio:          d.Portfolio,
		Product:            string(d.Type),
		DealRef:            d.DealRef,
		MasterDealRef:      d.MasterDealRef,
		CounterpartyRef:    d.CounterpartyRef,
		CounterpartyName:   d.CounterpartyName,
		Account:            d.Account,
		Entity:             d.Entity,
		ValueDate:          d.ValueDate,
		TradeDate:          d.TradeDate,
		EffectiveDateStart: d.ValidFrom,
	}
}

// CancelTrade builds the DELETE counter-entry negating all three legs of a
// settled trade, booked with a zero-length effective window at start.
func CancelTrade(old *Trade, start time.Time) Trade {
	t := *old
	t.ID = uuid.New()
	t.RecordDate = time.Now().UTC()
	t.RefID = &old.ID
	t.RecordType = Delete
	t.FeedType = Cash
	t.BaseAmount = old.BaseAmount.Neg()
	t.QuoteAmount = old.QuoteAmount.Neg()
	t.FeeAmount = old.FeeAmount.Neg()
	t.EffectiveDateStart = start
	end := start
	t.EffectiveDateEnd = &end
	return t
}

// EqualValues reports whether two trades describe the same economic fact,
// ignoring bookkeeping fields.
func (t *Trade) EqualValues(other *Trade) bool {
	if other == nil {
		return false
	}
	return t.Source == other.Source &&
		t.FeedType == other.FeedType &&
		t.RecordType == other.RecordType &&
		t.DealID == other.DealID &&
		ptrInt64Equal(t.MasterDealID, other.MasterDealID) &&
		t.Portfolio == other.Portfolio &&
		t.Product == other.Product &&
		t.TransferType == other.TransferType &&
		ptrStrEqual(t.Contract, other.Contract) &&
		t.DealRef == other.DealRef &&
		ptrStrEqual(t.MasterDealRef, other.MasterDealRef) &&
		t.BaseAsset == other.BaseAsset &&
		t.BaseAmount.Round(AmountPrecision).Equal(other.BaseAmount.Round(AmountPrecision)) &&
		t.QuoteAsset == other.QuoteAsset &&
		t.QuoteAmount.Round(AmountPrecision).Equal(other.QuoteAmount.Round(AmountPrecision)) &&
		t.FeeAsset == other.FeeAsset &&
		t.FeeAmount.Round(AmountPrecision).Equal(other.FeeAmount.Round(AmountPrecision)) &&
		t.CounterpartyRef == other.CounterpartyRef &&
		t.CounterpartyName == other.CounterpartyName &&
		t.Account == other.Account &&
		t.Entity == other.Entity &&
		t.ValueDate.Equal(other.ValueDate) &&
		t.TradeDate.Equal(other.TradeDate)
}
