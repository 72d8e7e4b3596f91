// Package invalidate rebuilds snapshots whose history was changed by a
// backdated ledger write. Feed and trade changes are announced as messages,
// coalesced per snapshot key, and replayed day by day until the rebuild
// converges with what is already stored.
package invalidate

import (
	"fmt"
	"time"
)

// Type discriminates invalidation messages.
type Type string

const (
	// TypeUpdate invalidates summary snapshots for a (portfolio, asset).
	TypeUpdate Type = "update"
	// TypeUpdateCounterparty invalidates settlement snapshots.
	TypeUpdateCounterparty Type = "update_counterparty"
	// TypeUpdateSummaryV2 invalidates per-product/contract summaries.
	TypeUpdateSummaryV2 Type = "update_summary_v2"
	// TypeUpdatePosition invalidates position snapshots for a trading pair.
	TypeUpdatePosition Type = "update_position"
	// TypeCreate schedules the daily full snapshot build.
	TypeCreate Type = "create"
)

// Message is one invalidation request. Update variants carry the set of
// trade dates whose history changed and the knowledge horizon up to which
// the rebuild should look; the create variant carries the batch dates for a
// scheduled full build.
type Message struct {
	Type Type `json:"type"`

	Portfolio string `json:"portfolio,omitempty"`
	Asset     string `json:"asset,omitempty"`

	CounterpartyRef  string `json:"counterparty_ref,omitempty"`
	CounterpartyName string `json:"counterparty_name,omitempty"`

	Product  string `json:"product,omitempty"`
	Contract string `json:"contract,omitempty"`

	BaseAsset  string `json:"base_asset,omitempty"`
	QuoteAsset string `json:"quote_asset,omitempty"`

	TradeDateStarts []time.Time `json:"trade_dates_start,omitempty"`
	TradeDateEnd    time.Time   `json:"trade_date_end,omitempty"`

	TradeDate     time.Time `json:"trade_date,omitempty"`
	EffectiveDate time.Time `json:"effective_date,omitempty"`
}

// Mergeable reports whether two messages with the same Key can be folded
// into one rebuild.
func (m Message) Mergeable() bool {
	switch m.Type {
	case TypeUpdate, TypeUpdateCounterparty, TypeUpdateSummaryV2, TypeUpdatePosition:
		return true
	}
	return false
}

// Key identifies the snapshot family a message invalidates. Messages with
// equal keys target the same rows and merge.
func (m Message) Key() string {
	switch m.Type {
	case TypeUpdate:
		return fmt.Sprintf("%s|%s-%s", m.Type, m.Portfolio, m.Asset)
	case TypeUpdateCounterparty:
		return fmt.Sprintf("%s|%s-%s-%s-%s", m.Type, m.Portfolio, m.Asset, m.CounterpartyRef, m.CounterpartyName)
	case TypeUpdateSummaryV2:
		return fmt.Sprintf("%s|%s-%s-%s-%s", m.Type, m.Portfolio, m.Asset, m.Product, m.Contract)
	case TypeUpdatePosition:
		return fmt.Sprintf("%s|%s-%s-%s", m.Type, m.Portfolio, m.BaseAsset, m.QuoteAsset)
	}
	return string(m.Type)
}

// Merge folds other into m: the start sets union and the knowledge horizon
// takes the later of the two.
func (m Message) Merge(other Message) Message {
	out := m
	out.TradeDateStarts = unionDates(m.TradeDateStarts, other.TradeDateStarts)
	if other.TradeDateEnd.After(out.TradeDateEnd) {
		out.TradeDateEnd = other.TradeDateEnd
	}
	return out
}

func unionDates(a, b []time.Time) []time.Time {
	seen := make(map[time.Time]bool, len(a)+len(b))
	out := make([]time.Time, 0, len(a)+len(b))
	for _, ts := range [2][]time.Time{a, b} {
		for _, t := range ts {
			t = t.UTC()
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}

// Coalesce folds a batch of messages: mergeable messages collapse per key,
// order is otherwise preserved.
func Coalesce(msgs []Message) []Message {
	merged := make(map[string]int)
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if !m.Mergeable() {
			out = append(out, m)
			continue
		}
		key := m.Key()
		if i, ok := merged[key]; ok {
			out[i] = out[i].Merge(m)
			continue
		}
		merged[key] = len(out)
		out = append(out, m)
	}
	return out
}
