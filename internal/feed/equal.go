package feed

import "time"

func ptrTimeEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func ptrInt64Equal(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func ptrStrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// EqualValues reports whether two feeds describe the same economic fact.
// Bookkeeping fields that change on every write (id, ref id, version,
// record date, the effective window) are ignored; amounts are compared at
// AmountPrecision decimal places.
func (f *Feed) EqualValues(other *Feed) bool {
	if other == nil {
		return false
	}
	return f.Source == other.Source &&
		f.RecordType == other.RecordType &&
		f.DealID == other.DealID &&
		ptrInt64Equal(f.MasterDealID, other.MasterDealID) &&
		f.FeedType == other.FeedType &&
		f.Portfolio == other.Portfolio &&
		f.TransferType == other.TransferType &&
		ptrStrEqual(f.Contract, other.Contract) &&
		f.DealRef == other.DealRef &&
		ptrStrEqual(f.MasterDealRef, other.MasterDealRef) &&
		f.Product == other.Product &&
		f.CoaCode == other.CoaCode &&
		f.CompCode == other.CompCode &&
		f.Asset == other.Asset &&
		f.Amount.Round(AmountPrecision).Equal(other.Amount.Round(AmountPrecision)) &&
		f.CounterpartyRef == other.CounterpartyRef &&
		f.CounterpartyName == other.CounterpartyName &&
		f.Account == other.Account &&
		f.Entity == other.Entity &&
		f.ValueDate.Equal(other.ValueDate) &&
		f.TradeDate.Equal(other.TradeDate)
}

// ZeroAmount reports whether the feed's amount rounds to zero at
// AmountPrecision.
func (f *Feed) ZeroAmount() bool {
	return f.Amount.Round(AmountPrecision).IsZero()
}
