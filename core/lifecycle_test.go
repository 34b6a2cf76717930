package core

import (
	"math/big"
	"testing"
	"time"

	"github.com/peterldowns/testy/check"
)

func TestLotData_Status(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	lot := LotData{
		Start:      start,
		Conclusion: start.Add(time.Hour),
		Capacity:   big.NewInt(100),
		Sold:       big.NewInt(0),
		Purchased:  big.NewInt(0),
	}

	tests := []struct {
		name   string
		mutate func(d *LotData)
		now    time.Time
		want   LotStatus
	}{
		{"before start", nil, start.Add(-time.Second), LotCreated},
		{"at start", nil, start, LotActive},
		{"at conclusion", nil, start.Add(time.Hour), LotConcluded},
		{"sold out", func(d *LotData) { d.Sold = big.NewInt(100) }, start.Add(time.Minute), LotConcluded},
		{"quote capacity sold out", func(d *LotData) {
			d.CapacityInQuote = true
			d.Purchased = big.NewInt(100)
		}, start.Add(time.Minute), LotConcluded},
		{"cancelled wins over time", func(d *LotData) { d.Cancelled = true }, start.Add(2 * time.Hour), LotCancelled},
		{"settled", func(d *LotData) { d.Settled = true }, start.Add(2 * time.Hour), LotSettled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := lot
			if tt.mutate != nil {
				tt.mutate(&d)
			}
			check.Equal(t, tt.want, d.Status(tt.now))
		})
	}
}

func TestLotData_Predicates(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	lot := LotData{Start: start, Conclusion: start.Add(time.Hour), Capacity: big.NewInt(10), Sold: big.NewInt(0)}

	check.True(t, lot.CanCurate(start.Add(-time.Minute)))
	check.True(t, lot.CanCurate(start))
	check.False(t, lot.CanCurate(start.Add(time.Hour)))

	check.False(t, lot.IsLive(start.Add(-time.Minute)))
	check.True(t, lot.IsLive(start))

	check.False(t, lot.IsFinished(start))
	check.True(t, lot.IsFinished(start.Add(time.Hour)))

	lot.Cancelled = true
	check.False(t, lot.CanCurate(start))
	check.True(t, lot.IsFinished(start))
}
