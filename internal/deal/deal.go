// Package deal defines the upstream business event the feed engine consumes.
// A deal is immutable per revision; a later revision of the same deal_id
// arrives with a later valid_from and supersedes the earlier one.
package deal

import (
	"time"
)

// Type discriminates the rule list used to derive a deal's feeds.
type Type string

const (
	TypeFXSpot    Type = "FX Spot"
	TypeExecution Type = "Execution"
	TypeCashflow  Type = "Cash Flow"
	TypeFutures   Type = "Futures"
	TypeOptions   Type = "Options"
)

// ProcessingStatus is the upstream lifecycle state of a deal revision.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusConfirmed  ProcessingStatus = "confirmed"
	StatusProcessing ProcessingStatus = "processing"
	StatusSettled    ProcessingStatus = "settled"
	StatusCancelled  ProcessingStatus = "cancelled"
)

// Inactive reports whether the status withdraws the deal from the ledger:
// cancelled and pending revisions never produce new feeds, only close
// existing ones.
func (s ProcessingStatus) Inactive() bool {
	return s == StatusCancelled || s == StatusPending
}

// Deal is one revision of an upstream trade event.
type Deal struct {
	DealID        int64
	MasterDealID  *int64
	DealRef       string
	MasterDealRef *string

	Type   Type
	Status ProcessingStatus

	Portfolio        string
	Entity           string
	Account          string
	CounterpartyRef  string
	CounterpartyName string

	TradeDate time.Time
	ValueDate time.Time

	// ValidFrom is the effective timestamp at which this revision becomes
	// knowledge. It stamps effective_date_start on every feed the revision
	// produces and effective_date_end on every feed it supersedes.
	ValidFrom time.Time

	Version int64

	// TypeData holds the per-type payload; its concrete type is selected
	// by Type.
	TypeData TypeData
}

// IsChild reports whether the deal is a settlement leg of a parent deal.
func (d *Deal) IsChild() bool {
	return d.MasterDealID != nil
}
