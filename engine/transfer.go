package engine

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cloudx-io/auctionhouse/core"
	"github.com/cloudx-io/auctionhouse/modules"
	"github.com/cloudx-io/auctionhouse/permit"
	"github.com/cloudx-io/auctionhouse/token"
)

// collect pulls amount of tok from payer into engine custody, by signed permit when one is given and
// by standing allowance otherwise.
func (e *Engine) collect(tok token.Token, payer common.Address, amount *big.Int, approval *permit.Approval) error {
	if approval == nil {
		return token.TransferFrom(tok, e.address, payer, e.address, amount)
	}
	if e.permit == nil {
		return fmt.Errorf("%w: permit transfers are not enabled", core.ErrInvalidParams)
	}
	return e.permit.TransferFrom(tok, e.address, payer, e.address, amount, *approval)
}

// send pushes amount of tok out of engine custody.
func (e *Engine) send(tok token.Token, to common.Address, amount *big.Int) error {
	return token.Transfer(tok, e.address, to, amount)
}

// sendPayout delivers base payout to recipient, minting a derivative position when the lot pays out
// through one.
func (e *Engine) sendPayout(ctx context.Context, l *Lot, recipient common.Address, payout *big.Int, auctionOutput []byte) error {
	if !core.IsPositive(payout) {
		return nil
	}
	if l.DerivativeRef.IsZero() {
		return e.send(l.BaseToken, recipient, payout)
	}

	m, err := e.registry.Get(l.DerivativeRef)
	if err != nil {
		return err
	}
	deriv, ok := m.(modules.Derivative)
	if !ok {
		return fmt.Errorf("%w: %s is not a derivative module", core.ErrInvalidParams, l.DerivativeRef)
	}

	params := l.DerivativeParams
	if c := e.registry.Condenser(l.AuctionRef, l.DerivativeRef); c != nil {
		if params, err = c.Condense(auctionOutput, l.DerivativeParams); err != nil {
			return err
		}
	}

	if err := e.send(l.BaseToken, deriv.Address(), payout); err != nil {
		return err
	}
	if err := deriv.Mint(ctx, recipient, l.BaseToken.Address(), payout, params, l.Wrap); err != nil {
		return fmt.Errorf("mint %s: %w", l.DerivativeRef, err)
	}
	return nil
}
