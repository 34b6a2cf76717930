package core

import (
	"time"
)

// SoldOut reports whether the lot's capacity is exhausted, in whichever token capacity is denominated.
func (d LotData) SoldOut() bool {
	if d.Capacity == nil {
		return false
	}
	if d.CapacityInQuote {
		return d.Purchased != nil && d.Purchased.Cmp(d.Capacity) >= 0
	}
	return d.Sold != nil && d.Sold.Cmp(d.Capacity) >= 0
}

// HasStarted reports whether the lot's start time has passed.
func (d LotData) HasStarted(now time.Time) bool {
	return !now.Before(d.Start)
}

// HasConcluded reports whether the lot can no longer accept purchases or bids for reasons other than
// cancellation: its conclusion time passed or its capacity is exhausted.
func (d LotData) HasConcluded(now time.Time) bool {
	return !now.Before(d.Conclusion) || d.SoldOut()
}

// Status derives the lifecycle state from flags and timestamps.
func (d LotData) Status(now time.Time) LotStatus {
	switch {
	case d.Cancelled:
		return LotCancelled
	case d.Settled:
		return LotSettled
	case d.HasConcluded(now):
		return LotConcluded
	case d.HasStarted(now):
		return LotActive
	default:
		return LotCreated
	}
}

// IsLive reports whether purchases or bids are accepted.
func (d LotData) IsLive(now time.Time) bool {
	return d.Status(now) == LotActive
}

// CanCurate reports whether a curator may still curate the lot.
func (d LotData) CanCurate(now time.Time) bool {
	s := d.Status(now)
	return s == LotCreated || s == LotActive
}

// IsFinished reports whether the lot reached a terminal trading state (concluded, cancelled or settled),
// after which curator and seller proceeds become claimable.
func (d LotData) IsFinished(now time.Time) bool {
	s := d.Status(now)
	return s == LotConcluded || s == LotCancelled || s == LotSettled
}
