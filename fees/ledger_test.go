package fees

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/auctionhouse/chain"
	"github.com/cloudx-io/auctionhouse/core"
)

var (
	owner    = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	protocol = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	curator  = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	quote    = common.HexToAddress("0x0000000000000000000000000000000000001000")
)

const fps core.Keycode = "FPS"

func TestSetFee(t *testing.T) {
	tests := []struct {
		name   string
		caller common.Address
		setup  Schedule
		kind   core.FeeKind
		value  uint32
		want   error
	}{
		{name: "protocol", caller: owner, kind: core.FeeProtocol, value: 1_000},
		{name: "not owner", caller: curator, kind: core.FeeProtocol, value: 1_000, want: core.ErrNotOwner},
		{name: "above basis", caller: owner, kind: core.FeeReferrer, value: core.FeeBasis + 1, want: core.ErrInvalidFee},
		{name: "protocol plus referrer above basis", caller: owner, setup: Schedule{Protocol: 60_000}, kind: core.FeeReferrer, value: 40_001, want: core.ErrInvalidFee},
		{name: "protocol plus referrer at basis", caller: owner, setup: Schedule{Protocol: 60_000}, kind: core.FeeReferrer, value: 40_000},
		{name: "max curator above ceiling", caller: owner, kind: core.FeeMaxCurator, value: core.MaxCuratorFeeCeiling + 1, want: core.ErrInvalidFee},
		{name: "unknown kind", caller: owner, kind: core.FeeKind(9), value: 1, want: core.ErrInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLedger(owner, protocol, nil)
			if tt.setup.Protocol > 0 {
				assert.NoError(t, l.SetFee(owner, fps, core.FeeProtocol, tt.setup.Protocol))
			}
			before := l.Fees(fps)

			err := l.SetFee(tt.caller, fps, tt.kind, tt.value)
			if tt.want != nil {
				check.True(t, errors.Is(err, tt.want))
				check.Equal(t, before, l.Fees(fps))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSnapshot(t *testing.T) {
	l := NewLedger(owner, protocol, nil)
	assert.NoError(t, l.SetFee(owner, fps, core.FeeProtocol, 2_000))
	assert.NoError(t, l.SetFee(owner, fps, core.FeeReferrer, 1_000))
	assert.NoError(t, l.SetFee(owner, fps, core.FeeMaxCurator, 5_000))

	check.Equal(t, core.FeeSnapshot{Protocol: 2_000, Referrer: 1_000}, l.Fees(fps).Snapshot())
	check.Equal(t, Schedule{}, l.Fees("EMP"))
}

func TestSetCuratorFee(t *testing.T) {
	l := NewLedger(owner, protocol, nil)
	assert.NoError(t, l.SetFee(owner, fps, core.FeeMaxCurator, 100))

	check.NoError(t, l.SetCuratorFee(curator, fps, 90))
	check.Equal(t, uint32(90), l.CuratorFee(curator, fps))

	err := l.SetCuratorFee(curator, fps, 101)
	check.True(t, errors.Is(err, core.ErrInvalidFee))
	check.Equal(t, uint32(90), l.CuratorFee(curator, fps))
	check.Equal(t, uint32(0), l.CuratorFee(curator, "EMP"))
}

func TestSetProtocol(t *testing.T) {
	l := NewLedger(owner, protocol, nil)
	err := l.SetProtocol(curator, curator)
	check.True(t, errors.Is(err, core.ErrNotPermitted))

	assert.NoError(t, l.SetProtocol(owner, curator))
	check.Equal(t, curator, l.Protocol())
}

func TestRewards_CreditAndDrain(t *testing.T) {
	l := NewLedger(owner, protocol, nil)
	l.Credit(protocol, quote, big.NewInt(200))
	l.Credit(protocol, quote, big.NewInt(50))
	l.Credit(protocol, quote, big.NewInt(0))

	check.Equal(t, "250", l.Reward(protocol, quote).String())
	check.Equal(t, "250", l.Drain(protocol, quote).String())
	check.Equal(t, "0", l.Reward(protocol, quote).String())
	check.Equal(t, "0", l.Drain(protocol, quote).String())
}

func TestLedger_JournalRevert(t *testing.T) {
	j := chain.NewJournal()
	l := NewLedger(owner, protocol, j)
	l.Credit(protocol, quote, big.NewInt(10))

	id := j.Snapshot()
	assert.NoError(t, l.SetFee(owner, fps, core.FeeProtocol, 3_000))
	l.Credit(protocol, quote, big.NewInt(5))
	l.Drain(protocol, quote)
	check.Error(t, j.End(id, errors.New("abort")))

	check.Equal(t, Schedule{}, l.Fees(fps))
	check.Equal(t, "10", l.Reward(protocol, quote).String())
}
