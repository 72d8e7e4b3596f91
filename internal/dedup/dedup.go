// Package dedup decides, for one leg of one deal revision, which ledger rows
// to write: nothing when the candidate repeats the open row, a reversing
// DELETE plus a fresh CREATE when a settled row is superseded, a close-only
// supersede for provisional rows, a zero-amount carry-forward when a
// previously booked leg vanishes from the revision, and a reversing DELETE
// with no replacement when a settled deal turns inactive.
package dedup

import (
	"time"

	"acefeed/internal/deal"
	"acefeed/internal/feed"
)

// Result is the set of rows a leg evaluation produces. Closing the previous
// open row is the caller's job; Result only carries new rows.
type Result struct {
	Creates []feed.Feed
	Deletes []feed.Feed

	// Superseded is true when the previous open row must be closed because
	// a create replaces it.
	Superseded bool
}

func feedEqual(prev, candidate *feed.Feed) bool {
	if prev == nil && candidate == nil {
		return true
	}
	if prev == nil || candidate == nil {
		return false
	}
	return prev.EqualValues(candidate)
}

// Evaluate compares a rule's candidate against the leg's open row. candidate
// is nil when the leg is absent from this revision. An inactive revision
// produces no create; a settled row it leaves behind still gets its
// reversing DELETE, and the processor closes the open rows separately.
func Evaluate(candidate, prev *feed.Feed, status deal.ProcessingStatus, validFrom time.Time, version int64) Result {
	var out Result

	if status.Inactive() {
		if prev != nil && prev.FeedType == feed.Cash {
			out.Deletes = append(out.Deletes, feed.Cancel(prev, validFrom))
		}
		return out
	}
	if feedEqual(prev, candidate) {
		return out
	}

	start := validFrom
	if candidate != nil {
		start = candidate.EffectiveDateStart
	}

	if prev != nil && prev.FeedType == feed.Cash {
		out.Deletes = append(out.Deletes, feed.Cancel(prev, start))
	}
	if candidate == nil && prev != nil && !prev.ZeroAmount() {
		zero := feed.ZeroForward(prev, validFrom, version)
		candidate = &zero
	}
	if candidate != nil {
		out.Creates = append(out.Creates, *candidate)
		out.Superseded = prev != nil
	}
	return out
}

func tradeEqual(prev, candidate *feed.Trade) bool {
	if prev == nil && candidate == nil {
		return true
	}
	if prev == nil || candidate == nil {
		return false
	}
	return prev.EqualValues(candidate)
}

// TradeResult is the trade analogue of Result.
type TradeResult struct {
	Creates    []feed.Trade
	Deletes    []feed.Trade
	Superseded bool
}

// EvaluateTrade applies the same supersede semantics to the deal's paired
// trade view.
func EvaluateTrade(candidate, prev *feed.Trade, status deal.ProcessingStatus) TradeResult {
	var out TradeResult

	if status.Inactive() || tradeEqual(prev, candidate) {
		return out
	}
	if candidate == nil {
		return out
	}

	if prev != nil && prev.FeedType == feed.Cash {
		out.Deletes = append(out.Deletes, feed.CancelTrade(prev, candidate.EffectiveDateStart))
	}
	out.Creates = append(out.Creates, *candidate)
	out.Superseded = prev != nil
	return out
}
