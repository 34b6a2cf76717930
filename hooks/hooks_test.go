package hooks

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/auctionhouse/core"
	"github.com/cloudx-io/auctionhouse/token"
)

var (
	hookAddr = common.HexToAddress("0x000000000000000000000000000000000000b00c")
	seller   = common.HexToAddress("0x0000000000000000000000000000000000005e11")
	buyer    = common.HexToAddress("0x000000000000000000000000000000000000b0e4")
)

func tokens() (quote, base *token.Memory) {
	quote = token.NewMemory(common.HexToAddress("0x1000"), "QUO", 18, nil)
	base = token.NewMemory(common.HexToAddress("0x2000"), "BAS", 18, nil)
	return quote, base
}

func TestPermissions(t *testing.T) {
	m := &Mock{Perms: core.Permissions(0).With(core.PermOnPurchase).With(core.PermSendBaseTokens)}
	perms := Permissions(m)

	check.True(t, perms.Has(core.PermOnPurchase))
	check.True(t, perms.Has(core.PermSendBaseTokens))
	check.False(t, perms.Has(core.PermOnBid))
	check.Equal(t, core.Permissions(0), Permissions(nil))
}

func TestDispatcher_NoHookIsNoop(t *testing.T) {
	ctx := context.Background()
	quote, base := tokens()
	d := NewDispatcher(nil, core.Permissions(0xff))

	check.NoError(t, d.Pre(ctx, core.PermOnPurchase, 0, buyer, big.NewInt(1)))
	check.NoError(t, d.Mid(ctx, 0, quote, base, big.NewInt(1)))
	check.NoError(t, d.Post(ctx, 0, buyer, big.NewInt(1)))
	check.NoError(t, d.Create(ctx, 0, seller, base.Address(), quote.Address(), big.NewInt(1), false, nil))
	check.Equal(t, seller, d.BaseSource(seller))
	check.Equal(t, seller, d.QuoteRecipient(seller))
}

func TestDispatcher_GatedByStoredPermissions(t *testing.T) {
	ctx := context.Background()
	m := &Mock{Addr: hookAddr, Perms: core.Permissions(0xff)}
	// Only OnBid was stored for the lot even though the contract claims everything now.
	d := NewDispatcher(m, core.Permissions(0).With(core.PermOnBid))

	assert.NoError(t, d.Pre(ctx, core.PermOnPurchase, 1, buyer, big.NewInt(5)))
	assert.NoError(t, d.Post(ctx, 1, buyer, big.NewInt(5)))
	assert.NoError(t, d.Pre(ctx, core.PermOnBid, 1, buyer, big.NewInt(5)))

	check.Equal(t, []string{"preHook"}, m.Calls)
	check.Equal(t, seller, d.BaseSource(seller))
}

func TestDispatcher_ErrorsPropagate(t *testing.T) {
	boom := errors.New("hook refused")
	m := &Mock{
		Addr:        hookAddr,
		PreHookFunc: func(context.Context, uint64, common.Address, *big.Int) error { return boom },
	}
	d := NewDispatcher(m, core.Permissions(0).With(core.PermOnPurchase))

	err := d.Pre(context.Background(), core.PermOnPurchase, 0, buyer, big.NewInt(1))
	check.True(t, errors.Is(err, boom))
}

func TestDispatcher_Mid(t *testing.T) {
	tests := []struct {
		name    string
		mints   int64
		payout  int64
		wantErr error
	}{
		{name: "exact", mints: 100, payout: 100},
		{name: "more than needed", mints: 150, payout: 100},
		{name: "underfunded", mints: 99, payout: 100, wantErr: core.ErrInvalidHookInvariant},
		{name: "nothing", mints: 0, payout: 1, wantErr: core.ErrInvalidHookInvariant},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quote, base := tokens()
			base.Mint(hookAddr, big.NewInt(1_000))

			m := &Mock{
				Addr: hookAddr,
				MidHookFunc: func(_ context.Context, _ uint64, _, _ common.Address, payout *big.Int) error {
					base.Mint(hookAddr, big.NewInt(tt.mints))
					return nil
				},
			}
			d := NewDispatcher(m, core.Permissions(0).With(core.PermSendBaseTokens))

			err := d.Mid(context.Background(), 3, quote, base, big.NewInt(tt.payout))
			if tt.wantErr != nil {
				check.True(t, errors.Is(err, tt.wantErr))
				return
			}
			check.NoError(t, err)
			check.Equal(t, hookAddr, d.BaseSource(seller))
		})
	}
}

func TestDispatcher_QuoteRecipient(t *testing.T) {
	m := &Mock{Addr: hookAddr}
	d := NewDispatcher(m, core.Permissions(0).With(core.PermReceiveQuoteTokens))
	check.Equal(t, hookAddr, d.QuoteRecipient(seller))
}
