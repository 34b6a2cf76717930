// Package fixedexpiry is a derivative module that locks base token payouts until an expiry time.
package fixedexpiry

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cloudx-io/auctionhouse/chain"
	"github.com/cloudx-io/auctionhouse/core"
	"github.com/cloudx-io/auctionhouse/modules"
	"github.com/cloudx-io/auctionhouse/token"
)

// Keycode is the module family of fixed expiry vesting positions.
const Keycode core.Keycode = "FXP"

// Params are the derivative params of a lot paying out through this module.
type Params struct {
	// Expiry is the unix time at which positions become redeemable.
	Expiry int64 `cbor:"expiry"`
}

// Position identifies a class of fungible derivative balances.
type Position struct {
	Base    common.Address
	Expiry  int64
	Wrapped bool
}

type holding struct {
	position Position
	holder   common.Address
}

// Module implements modules.Derivative. It custodies the underlying base tokens at Address().
type Module struct {
	veecode  core.Veecode
	address  common.Address
	clock    chain.Clock
	journal  *chain.Journal
	balances map[holding]*big.Int
}

var _ modules.Derivative = (*Module)(nil)

// New returns version of the module, custodying underlying tokens at address.
func New(version uint8, address common.Address, clock chain.Clock, journal *chain.Journal) *Module {
	return &Module{
		veecode:  core.NewVeecode(Keycode, version),
		address:  address,
		clock:    clock,
		journal:  journal,
		balances: make(map[holding]*big.Int),
	}
}

func (m *Module) Veecode() core.Veecode   { return m.veecode }
func (m *Module) Address() common.Address { return m.address }

func (m *Module) Mint(ctx context.Context, recipient common.Address, base common.Address, amount *big.Int, params []byte, wrap bool) error {
	var p Params
	if err := modules.DecodeParams(params, &p); err != nil {
		return err
	}
	if p.Expiry <= m.clock.Now().Unix() {
		return fmt.Errorf("%w: expiry %s already passed", core.ErrInvalidParams, time.Unix(p.Expiry, 0).UTC().Format(time.RFC3339))
	}
	if !core.IsPositive(amount) {
		return fmt.Errorf("mint: %w", core.ErrZeroAmount)
	}

	key := holding{Position{Base: base, Expiry: p.Expiry, Wrapped: wrap}, recipient}
	m.set(key, new(big.Int).Add(m.Balance(key.holder, key.position), amount))
	return nil
}

// Balance returns holder's balance of position.
func (m *Module) Balance(holder common.Address, position Position) *big.Int {
	return core.Copy(m.balances[holding{position, holder}])
}

// Redeem burns amount of holder's position and releases the underlying base token once expired.
func (m *Module) Redeem(ctx context.Context, holder common.Address, base token.Token, position Position, amount *big.Int) error {
	if position.Base != base.Address() {
		return fmt.Errorf("%w: position underlying is %s", core.ErrInvalidParams, position.Base.Hex())
	}
	if m.clock.Now().Unix() < position.Expiry {
		return fmt.Errorf("position not expired: %w", core.ErrInvalidState)
	}
	key := holding{position, holder}
	balance := m.Balance(holder, position)
	if !core.IsPositive(amount) || balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: redeem %s of %s", core.ErrInsufficientBalance, amount, balance)
	}

	if err := token.Transfer(base, m.address, holder, amount); err != nil {
		return fmt.Errorf("redeem: %w", err)
	}
	m.set(key, balance.Sub(balance, amount))
	return nil
}

func (m *Module) set(key holding, v *big.Int) {
	prev, had := m.balances[key]
	m.journal.Record(func() {
		if had {
			m.balances[key] = prev
		} else {
			delete(m.balances, key)
		}
	})
	m.balances[key] = v
}
