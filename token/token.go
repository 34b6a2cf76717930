// Package token moves token balances between parties under an exact-amount-received invariant.
package token

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cloudx-io/auctionhouse/chain"
	"github.com/cloudx-io/auctionhouse/core"
)

// MaxAllowance is an allowance that is never decremented by TransferFrom.
var MaxAllowance = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Token is the ERC20-shaped ledger the engine moves balances on. The sender of a call is passed
// explicitly; there is no implicit caller.
type Token interface {
	Address() common.Address
	Symbol() string
	Decimals() uint8
	BalanceOf(owner common.Address) *big.Int
	Allowance(owner, spender common.Address) *big.Int
	Approve(owner, spender common.Address, amount *big.Int) error
	Transfer(from, to common.Address, amount *big.Int) error
	TransferFrom(spender, from, to common.Address, amount *big.Int) error
}

type allowanceKey struct {
	owner   common.Address
	spender common.Address
}

// Memory is an in-memory token ledger whose mutations are recorded in a chain.Journal, so they roll
// back together with the engine operation that caused them.
type Memory struct {
	address     common.Address
	symbol      string
	decimals    uint8
	transferFee uint32
	journal     *chain.Journal

	balances   map[common.Address]*big.Int
	allowances map[allowanceKey]*big.Int
	supply     *big.Int
}

// Option configures a Memory token.
type Option func(*Memory)

// WithTransferFee makes every transfer burn pct (of core.FeeBasis) of the amount in flight, modelling
// fee-on-transfer tokens.
func WithTransferFee(pct uint32) Option {
	return func(m *Memory) { m.transferFee = pct }
}

// NewMemory creates an empty token. journal may be nil for standalone use.
func NewMemory(address common.Address, symbol string, decimals uint8, journal *chain.Journal, opts ...Option) *Memory {
	m := &Memory{
		address:    address,
		symbol:     symbol,
		decimals:   decimals,
		journal:    journal,
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[allowanceKey]*big.Int),
		supply:     new(big.Int),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Address() common.Address { return m.address }
func (m *Memory) Symbol() string          { return m.symbol }
func (m *Memory) Decimals() uint8         { return m.decimals }

// TotalSupply returns minted minus burned units.
func (m *Memory) TotalSupply() *big.Int { return core.Copy(m.supply) }

func (m *Memory) BalanceOf(owner common.Address) *big.Int {
	return core.Copy(m.balances[owner])
}

func (m *Memory) Allowance(owner, spender common.Address) *big.Int {
	return core.Copy(m.allowances[allowanceKey{owner, spender}])
}

// Mint creates amount units for to.
func (m *Memory) Mint(to common.Address, amount *big.Int) {
	m.setBalance(to, new(big.Int).Add(m.BalanceOf(to), amount))
	m.setSupply(new(big.Int).Add(m.supply, amount))
}

func (m *Memory) Approve(owner, spender common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("%w: approve negative amount", core.ErrInvalidParams)
	}
	m.setAllowance(allowanceKey{owner, spender}, core.Copy(amount))
	return nil
}

func (m *Memory) Transfer(from, to common.Address, amount *big.Int) error {
	return m.move(from, to, amount)
}

func (m *Memory) TransferFrom(spender, from, to common.Address, amount *big.Int) error {
	key := allowanceKey{from, spender}
	allowed := m.Allowance(from, spender)
	if allowed.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s allowance %s < %s", core.ErrInsufficientAllowance, m.symbol, allowed, amount)
	}
	if err := m.move(from, to, amount); err != nil {
		return err
	}
	if allowed.Cmp(MaxAllowance) != 0 {
		m.setAllowance(key, allowed.Sub(allowed, amount))
	}
	return nil
}

func (m *Memory) move(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("%w: transfer negative amount", core.ErrInvalidParams)
	}
	balance := m.BalanceOf(from)
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s balance of %s is %s, need %s", core.ErrInsufficientBalance, m.symbol, from.Hex(), balance, amount)
	}

	received := core.Copy(amount)
	if m.transferFee > 0 {
		burned := core.FeeAmount(amount, m.transferFee)
		received.Sub(received, burned)
		m.setSupply(new(big.Int).Sub(m.supply, burned))
	}

	m.setBalance(from, balance.Sub(balance, amount))
	m.setBalance(to, new(big.Int).Add(m.BalanceOf(to), received))
	return nil
}

func (m *Memory) setBalance(owner common.Address, v *big.Int) {
	prev, had := m.balances[owner]
	m.journal.Record(func() {
		if had {
			m.balances[owner] = prev
		} else {
			delete(m.balances, owner)
		}
	})
	m.balances[owner] = v
}

func (m *Memory) setAllowance(key allowanceKey, v *big.Int) {
	prev, had := m.allowances[key]
	m.journal.Record(func() {
		if had {
			m.allowances[key] = prev
		} else {
			delete(m.allowances, key)
		}
	})
	m.allowances[key] = v
}

func (m *Memory) setSupply(v *big.Int) {
	prev := m.supply
	m.journal.Record(func() { m.supply = prev })
	m.supply = v
}
