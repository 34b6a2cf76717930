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

// ClaimProceeds pays the seller of lotID what the lot owes them. Batch lots pay the quote proceeds
// accrued from claimed bids and may be claimed repeatedly as bids are claimed. Prefunded atomic lots
// return unsold capacity once after they conclude.
func (e *Engine) ClaimProceeds(ctx context.Context, caller common.Address, lotID uint64) (proceeds, refund *big.Int, err error) {
	proceeds, refund = new(big.Int), new(big.Int)
	err = e.execute(ctx, "claim_proceeds", lotID, func(log *zap.Logger) error {
		l, err := e.lot(lotID)
		if err != nil {
			return err
		}
		if caller != l.Seller {
			return core.ErrNotOwner
		}
		m, err := e.auctionModule(l)
		if err != nil {
			return err
		}
		data, err := m.Lot(lotID)
		if err != nil {
			return err
		}
		d := l.hooks()

		switch m.Type() {
		case core.AuctionTypeBatch:
			if !data.Settled {
				return core.ErrLotNotSettled
			}
			proceeds = core.Copy(l.Proceeds)
			e.update(l, func(l *Lot) { l.Proceeds = new(big.Int) })
			if err := e.send(l.QuoteToken, d.QuoteRecipient(l.Seller), proceeds); err != nil {
				return err
			}
		default:
			if !data.IsFinished(e.clock.Now()) {
				return core.ErrLotNotConcluded
			}
			if !l.Prefunded {
				break
			}
			if l.RefundClaimed {
				return core.ErrAlreadyClaimed
			}
			refund = new(big.Int).Sub(e.funding.Balance(lotID), curatorHeld(l))
			if err := e.funding.Consume(lotID, refund); err != nil {
				return err
			}
			e.update(l, func(l *Lot) { l.RefundClaimed = true })
			if err := e.send(l.BaseToken, d.BaseSource(l.Seller), refund); err != nil {
				return err
			}
		}

		if err := d.ClaimProceeds(ctx, lotID, proceeds, refund); err != nil {
			return err
		}
		log.Info("proceeds claimed",
			zap.String("proceeds", core.FormatUnits(proceeds, l.QuoteToken.Decimals())),
			zap.String("refund", core.FormatUnits(refund, l.BaseToken.Decimals())))
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return proceeds, refund, nil
}

// ClaimCuratorProceeds pays the curator of lotID its fee on filled capacity, capped by the reserve
// held for it, and returns any excess reserve to the seller. Batch lots must be settled first.
func (e *Engine) ClaimCuratorProceeds(ctx context.Context, lotID uint64) (*big.Int, error) {
	var paid *big.Int
	err := e.execute(ctx, "claim_curator_proceeds", lotID, func(log *zap.Logger) error {
		l, err := e.lot(lotID)
		if err != nil {
			return err
		}
		if !l.Curation.Curated {
			return core.ErrNotCurated
		}
		if l.Curation.Claimed {
			return core.ErrAlreadyClaimed
		}
		m, err := e.auctionModule(l)
		if err != nil {
			return err
		}
		data, err := m.Lot(lotID)
		if err != nil {
			return err
		}
		if m.Type() == core.AuctionTypeBatch && !data.Settled && !data.Cancelled {
			return core.ErrLotNotSettled
		}
		if !data.IsFinished(e.clock.Now()) {
			return core.ErrLotNotConcluded
		}

		reserve := core.Copy(l.Curation.Reserve)
		paid = core.CuratorFee(data.Sold, l.Curation.FeePct)
		if paid.Cmp(reserve) > 0 {
			paid = core.Copy(reserve)
		}
		excess := new(big.Int).Sub(reserve, paid)

		if err := e.funding.Consume(lotID, reserve); err != nil {
			return err
		}
		e.update(l, func(l *Lot) { l.Curation.Claimed = true })
		if err := e.send(l.BaseToken, l.Curation.Curator, paid); err != nil {
			return err
		}
		if err := e.send(l.BaseToken, l.hooks().BaseSource(l.Seller), excess); err != nil {
			return err
		}

		bd := l.BaseToken.Decimals()
		log.Info("curator paid",
			zap.String("curator", l.Curation.Curator.Hex()),
			zap.String("paid", core.FormatUnits(paid, bd)),
			zap.String("excess", core.FormatUnits(excess, bd)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paid, nil
}

// ClaimRewards pays caller every fee accrued to them in tok. A zero balance is a no-op.
func (e *Engine) ClaimRewards(ctx context.Context, caller common.Address, tok token.Token) (*big.Int, error) {
	var amount *big.Int
	err := e.execute(ctx, "claim_rewards", noLot, func(log *zap.Logger) error {
		amount = e.fees.Drain(caller, tok.Address())
		if amount.Sign() == 0 {
			return nil
		}
		if err := e.send(tok, caller, amount); err != nil {
			return fmt.Errorf("pay rewards: %w", err)
		}
		log.Info("rewards claimed",
			zap.String("beneficiary", caller.Hex()),
			zap.String("amount", core.FormatUnits(amount, tok.Decimals())+" "+tok.Symbol()))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return amount, nil
}
