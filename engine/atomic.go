package engine

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/cloudx-io/auctionhouse/core"
	"github.com/cloudx-io/auctionhouse/token"
)

// Purchase buys from an atomic lot and returns the base payout delivered to the recipient.
//
// The fee split is taken from p.Amount and the module fills the net amount. Payout comes out of lot
// funding for prefunded lots; otherwise it is collected per purchase from the seller, or from the
// callbacks through the mid hook, together with any curator fee the fill accrues.
func (e *Engine) Purchase(ctx context.Context, p PurchaseParams) (*big.Int, error) {
	var payout *big.Int
	err := e.execute(ctx, "purchase", p.LotID, func(log *zap.Logger) error {
		l, err := e.lot(p.LotID)
		if err != nil {
			return err
		}
		m, err := e.atomicModule(l)
		if err != nil {
			return err
		}
		if !core.IsPositive(p.Amount) {
			return fmt.Errorf("purchase: %w", core.ErrZeroAmount)
		}
		if err := e.checkAllowed(l, p.Buyer, p.AllowlistProof); err != nil {
			return err
		}
		recipient := p.Recipient
		if recipient == (common.Address{}) {
			recipient = p.Buyer
		}

		split := core.CalculateSplit(p.Amount, p.Referrer != (common.Address{}), e.lotFees(l))

		out, output, err := m.Purchase(ctx, p.LotID, split.Net, p.AuctionData)
		if err != nil {
			return err
		}
		if p.MinAmountOut != nil && out.Cmp(p.MinAmountOut) < 0 {
			return fmt.Errorf("%w: payout %s below minimum %s", core.ErrAmountBelowMinimum, out, p.MinAmountOut)
		}
		payout = out

		e.creditFees(l, p.Referrer, split)

		accrual := new(big.Int)
		if l.Prefunded {
			if err := e.funding.Consume(p.LotID, payout); err != nil {
				return err
			}
		} else if l.Curation.Curated {
			data, err := m.Lot(p.LotID)
			if err != nil {
				return err
			}
			soldBefore := new(big.Int).Sub(data.Sold, payout)
			accrual = core.CuratorAccrual(soldBefore, data.Sold, l.Curation.FeePct)
			e.funding.Record(p.LotID, accrual)
			e.update(l, func(l *Lot) {
				l.Curation.Reserve = new(big.Int).Add(l.Curation.Reserve, accrual)
			})
		}

		d := l.hooks()
		if err := d.Pre(ctx, core.PermOnPurchase, p.LotID, p.Buyer, p.Amount); err != nil {
			return err
		}
		if err := e.collect(l.QuoteToken, p.Buyer, p.Amount, p.Permit); err != nil {
			return err
		}

		if !l.Prefunded {
			need := new(big.Int).Add(payout, accrual)
			if err := d.Mid(ctx, p.LotID, l.QuoteToken, l.BaseToken, need); err != nil {
				return err
			}
			if err := token.TransferFrom(l.BaseToken, e.address, d.BaseSource(l.Seller), e.address, need); err != nil {
				return fmt.Errorf("collect payout: %w", err)
			}
		}

		if err := e.sendPayout(ctx, l, recipient, payout, output); err != nil {
			return err
		}
		if err := d.Post(ctx, p.LotID, recipient, payout); err != nil {
			return err
		}
		if err := e.send(l.QuoteToken, d.QuoteRecipient(l.Seller), split.Net); err != nil {
			return err
		}

		qd, bd := l.QuoteToken.Decimals(), l.BaseToken.Decimals()
		log.Info("purchase settled",
			zap.String("buyer", p.Buyer.Hex()),
			zap.String("referrer", p.Referrer.Hex()),
			zap.String("amount", core.FormatUnits(p.Amount, qd)),
			zap.String("to_referrer", core.FormatUnits(split.ToReferrer, qd)),
			zap.String("to_protocol", core.FormatUnits(split.ToProtocol, qd)),
			zap.String("net", core.FormatUnits(split.Net, qd)),
			zap.String("payout", core.FormatUnits(payout, bd)),
			zap.String("curator_accrual", core.FormatUnits(accrual, bd)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payout, nil
}

func (e *Engine) checkAllowed(l *Lot, buyer common.Address, proof []byte) error {
	if !l.HasAllowlist {
		return nil
	}
	ok, err := e.allowlist.IsAllowed(l.ID, buyer, proof)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w", buyer.Hex(), core.ErrNotAllowed)
	}
	return nil
}
