// Package feed defines the ledger entries derived from deals: the Feed (one
// signed economic leg at one comp code) and the Trade (the paired base/quote
// view consumed by position aggregation). Both are bitemporal rows: trade
// date records the business event, the effective-date window records the
// interval during which the row was current knowledge.
package feed

import (
	"time"

	"acefeed/internal/compcode"
	"acefeed/internal/deal"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SourceXAlpha marks rows derived from upstream deals, as opposed to the
// manually entered overlay.
const SourceXAlpha = "XAL"

// AmountPrecision is the decimal precision at which amounts are compared
// for value equality.
const AmountPrecision = 8

// FeedType distinguishes settled money from provisional exposure.
type FeedType string

const (
	// Cash marks a settled, final leg. Superseding a Cash feed requires a
	// reversing DELETE entry because money has moved.
	Cash FeedType = "Cash"
	// PV marks a provisional, unsettled leg. PV feeds are superseded by
	// closing their effective window; no counter-entry is needed.
	PV FeedType = "PV"
)

// RecordType distinguishes forward entries from reversing counter-entries.
type RecordType string

const (
	Create RecordType = "CREATE"
	Delete RecordType = "DELETE"
)

// TransferType classifies the economic nature of a leg.
type TransferType string

const (
	TransferTrade    TransferType = "trade"
	TransferTransfer TransferType = "transfer"
)

// Feed is one signed ledger entry for one deal at one comp code.
type Feed struct {
	ID         uuid.UUID
	Source     string
	RecordDate time.Time
	Version    int64

	// RefID points at the feed this row supersedes, if any.
	RefID *uuid.UUID

	RecordType RecordType

	DealID       int64
	MasterDealID *int64

	FeedType     FeedType
	Portfolio    string
	TransferType TransferType
	Contract     *string

	DealRef       string
	MasterDealRef *string
	Product       string
	CoaCode       string
	CompCode      compcode.Code

	Asset  string
	Amount decimal.Decimal

	CounterpartyRef  string
	CounterpartyName string
	Account          string
	Entity           string

	ValueDate time.Time
	TradeDate time.Time

	EffectiveDateStart time.Time
	// EffectiveDateEnd is nil while the feed is the open (current) row for
	// its (deal_id, comp_code) key.
	EffectiveDateEnd *time.Time
}

// Open reports whether the feed is the current row for its key.
func (f *Feed) Open() bool {
	return f.EffectiveDateEnd == nil
}

// FromDeal synthesizes the common fields of a feed from a deal revision.
// Rules fill in the leg-specific fields (comp code, asset, signed amount,
// feed type) afterwards.
func FromDeal(d *deal.Deal) Feed {
	return Feed{
		ID:                 uuid.New(),
		Source:             SourceXAlpha,
		RecordDate:         time.Now().UTC(),
		Version:            d.Version,
		RecordType:         Create,
		DealID:             d.DealID,
		MasterDealID:       d.MasterDealID,
		Portfolio:          d.Portfolio,
		TransferType:       TransferTrade,
		DealRef:            d.DealRef,
		MasterDealRef:      d.MasterDealRef,
		Product:            string(d.Type),
		CoaCode:            "-1",
		CounterpartyRef:    d.CounterpartyRef,
		CounterpartyName:   d.CounterpartyName,
		Account:            d.Account,
		Entity:             d.Entity,
		ValueDate:          d.ValueDate,
		TradeDate:          d.TradeDate,
		EffectiveDateStart: d.ValidFrom,
	}
}

// Cancel builds the DELETE counter-entry that exactly negates a settled
// feed. The entry carries a zero-length effective window at start: it is a
// reversal booked into history, never an open row.
func Cancel(old *Feed, start time.Time) Feed {
	f := *old
	f.ID = uuid.New()
	f.RecordDate = time.Now().UTC()
	f.RefID = &old.ID
	f.RecordType = Delete
	f.FeedType = Cash
	f.Amount = old.Amount.Neg()
	f.EffectiveDateStart = start
	end := start
	f.EffectiveDateEnd = &end
	return f
}

// ZeroForward builds the zero-amount CREATE feed that carries a vanished
// leg's (deal_id, comp_code) identity forward so the key is never silently
// orphaned.
func ZeroForward(old *Feed, start time.Time, version int64) Feed {
	f := *old
	f.ID = uuid.New()
	f.RecordDate = time.Now().UTC()
	f.RefID = &old.ID
	f.RecordType = Create
	f.Version = version
	f.Amount = decimal.Zero
	f.EffectiveDateStart = start
	f.EffectiveDateEnd = nil
	return f
}

// CopyForward clones a closed feed into a fresh open row starting at start.
// Used to re-open a parent deal's feeds once its last child is cancelled.
func CopyForward(old *Feed, start time.Time) Feed {
	f := *old
	f.ID = uuid.New()
	f.RecordDate = time.Now().UTC()
	f.RefID = &old.ID
	f.EffectiveDateStart = start
	f.EffectiveDateEnd = nil
	return f
}
