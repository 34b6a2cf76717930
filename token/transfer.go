package token

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cloudx-io/auctionhouse/core"
)

// TransferFrom pulls amount of tok from from to to using spender's standing allowance.
// The recipient must end up exactly amount richer; tokens that deduct anything in flight are rejected
// with core.ErrUnsupportedToken.
func TransferFrom(tok Token, spender, from, to common.Address, amount *big.Int) error {
	if !core.IsPositive(amount) {
		return nil
	}
	before := tok.BalanceOf(to)
	if err := tok.TransferFrom(spender, from, to, amount); err != nil {
		return fmt.Errorf("transfer %s from %s: %w", tok.Symbol(), from.Hex(), err)
	}
	return CheckReceived(tok, to, before, amount)
}

// Transfer pushes amount of tok from from to to, with the same exact-amount invariant as TransferFrom.
func Transfer(tok Token, from, to common.Address, amount *big.Int) error {
	if !core.IsPositive(amount) {
		return nil
	}
	before := tok.BalanceOf(to)
	if err := tok.Transfer(from, to, amount); err != nil {
		return fmt.Errorf("transfer %s to %s: %w", tok.Symbol(), to.Hex(), err)
	}
	return CheckReceived(tok, to, before, amount)
}

// CheckReceived verifies that holder's balance of tok grew by exactly amount since before.
func CheckReceived(tok Token, holder common.Address, before, amount *big.Int) error {
	after := tok.BalanceOf(holder)
	received := new(big.Int).Sub(after, before)
	if received.Cmp(amount) != 0 {
		return fmt.Errorf("%w: %s delivered %s of %s to %s", core.ErrUnsupportedToken, tok.Symbol(), received, amount, holder.Hex())
	}
	return nil
}
