package modules

import (
	"fmt"
	"math/big"
	"time"

	"github.com/cloudx-io/auctionhouse/core"
)

// NewLotData validates the common auction params and returns the initial module view of a lot.
// A zero Start means now; a start in the past is rejected.
func NewLotData(now time.Time, params AuctionParams, quoteDecimals, baseDecimals uint8) (core.LotData, error) {
	if !core.IsPositive(params.Capacity) {
		return core.LotData{}, fmt.Errorf("capacity: %w", core.ErrZeroAmount)
	}
	if params.Duration <= 0 {
		return core.LotData{}, fmt.Errorf("%w: duration %s", core.ErrInvalidParams, params.Duration)
	}
	start := params.Start
	if start.IsZero() {
		start = now
	}
	if start.Before(now) {
		return core.LotData{}, fmt.Errorf("%w: start %s is in the past", core.ErrInvalidParams, start.UTC().Format(time.RFC3339))
	}

	return core.LotData{
		Start:           start,
		Conclusion:      start.Add(params.Duration),
		QuoteDecimals:   quoteDecimals,
		BaseDecimals:    baseDecimals,
		Capacity:        core.Copy(params.Capacity),
		CapacityInQuote: params.CapacityInQuote,
		Sold:            new(big.Int),
		Purchased:       new(big.Int),
	}, nil
}
