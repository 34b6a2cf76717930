package engine

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/cloudx-io/auctionhouse/core"
)

// Bid places a bid on a live batch lot. The full amount is pulled into custody; fees are applied when
// the bid is claimed after settlement.
func (e *Engine) Bid(ctx context.Context, p BidParams) (uint64, error) {
	var bidID uint64
	err := e.execute(ctx, "bid", p.LotID, func(log *zap.Logger) error {
		l, err := e.lot(p.LotID)
		if err != nil {
			return err
		}
		m, err := e.batchModule(l)
		if err != nil {
			return err
		}
		if !core.IsPositive(p.Amount) {
			return fmt.Errorf("bid: %w", core.ErrZeroAmount)
		}
		if err := e.checkAllowed(l, p.Bidder, p.AllowlistProof); err != nil {
			return err
		}
		e.lotFees(l)

		bidID, err = m.Bid(ctx, p.LotID, p.Bidder, p.Referrer, p.Amount, p.AuctionData)
		if err != nil {
			return err
		}
		if err := l.hooks().Pre(ctx, core.PermOnBid, p.LotID, p.Bidder, p.Amount); err != nil {
			return err
		}
		if err := e.collect(l.QuoteToken, p.Bidder, p.Amount, p.Permit); err != nil {
			return err
		}

		log.Info("bid placed",
			zap.Uint64("bid_id", bidID),
			zap.String("bidder", p.Bidder.Hex()),
			zap.String("amount", core.FormatUnits(p.Amount, l.QuoteToken.Decimals())))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return bidID, nil
}

// CancelBid withdraws a submitted bid while its lot is live. The payment is released by ClaimBidRefund.
func (e *Engine) CancelBid(ctx context.Context, caller common.Address, lotID, bidID uint64) error {
	return e.execute(ctx, "cancel_bid", lotID, func(log *zap.Logger) error {
		l, err := e.lot(lotID)
		if err != nil {
			return err
		}
		m, err := e.batchModule(l)
		if err != nil {
			return err
		}
		if err := m.CancelBid(ctx, lotID, bidID, caller); err != nil {
			return err
		}
		log.Info("bid cancelled", zap.Uint64("bid_id", bidID))
		return nil
	})
}

// ClaimBidRefund returns the payment of a cancelled bid to its bidder before the lot settles.
func (e *Engine) ClaimBidRefund(ctx context.Context, caller common.Address, lotID, bidID uint64) (*big.Int, error) {
	var refund *big.Int
	err := e.execute(ctx, "claim_bid_refund", lotID, func(log *zap.Logger) error {
		l, err := e.lot(lotID)
		if err != nil {
			return err
		}
		m, err := e.batchModule(l)
		if err != nil {
			return err
		}
		refund, err = m.RefundBid(ctx, lotID, bidID, caller)
		if err != nil {
			return err
		}
		if err := e.send(l.QuoteToken, caller, refund); err != nil {
			return err
		}
		log.Info("bid refunded",
			zap.Uint64("bid_id", bidID),
			zap.String("refund", core.FormatUnits(refund, l.QuoteToken.Decimals())))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refund, nil
}

// Settle computes the outcome of a concluded batch lot. Unsold capacity goes back to the seller, and a
// partially filled marginal bid is paid out and refunded here, since it cannot be claimed like the others.
func (e *Engine) Settle(ctx context.Context, lotID uint64) (core.Settlement, error) {
	var s core.Settlement
	err := e.execute(ctx, "settle", lotID, func(log *zap.Logger) error {
		l, err := e.lot(lotID)
		if err != nil {
			return err
		}
		m, err := e.batchModule(l)
		if err != nil {
			return err
		}
		s, err = m.Settle(ctx, lotID)
		if err != nil {
			return err
		}
		e.update(l, func(l *Lot) { l.AuctionOutput = s.AuctionOutput })

		d := l.hooks()
		unsold := new(big.Int).Sub(l.Capacity, core.Copy(s.TotalOut))
		if unsold.Sign() > 0 {
			if err := e.funding.Consume(lotID, unsold); err != nil {
				return err
			}
			if err := e.send(l.BaseToken, d.BaseSource(l.Seller), unsold); err != nil {
				return err
			}
		}

		if s.HasPartialFill() {
			split := core.CalculateSplit(s.RefundPaid, s.RefundReferrer != (common.Address{}), e.lotFees(l))
			e.creditFees(l, s.RefundReferrer, split)
			e.update(l, func(l *Lot) { l.Proceeds = new(big.Int).Add(l.Proceeds, split.Net) })

			if err := e.funding.Consume(lotID, s.RefundPayout); err != nil {
				return err
			}
			if err := e.sendPayout(ctx, l, s.RefundBidder, s.RefundPayout, s.AuctionOutput); err != nil {
				return err
			}
			if err := e.send(l.QuoteToken, s.RefundBidder, s.RefundAmount); err != nil {
				return err
			}
		}

		if e.receipts != nil {
			bids, err := m.Bids(lotID)
			if err != nil {
				return err
			}
			receipt, err := e.receipts.SignSettlement(lotID, s, bids)
			if err != nil {
				return fmt.Errorf("sign settlement: %w", err)
			}
			e.update(l, func(l *Lot) { l.Receipt = receipt })
		}

		qd, bd := l.QuoteToken.Decimals(), l.BaseToken.Decimals()
		log.Info("lot settled",
			zap.String("total_in", core.FormatUnits(s.TotalIn, qd)),
			zap.String("total_out", core.FormatUnits(s.TotalOut, bd)),
			zap.String("unsold", core.FormatUnits(unsold, bd)),
			zap.Bool("partial_fill", s.HasPartialFill()))
		return nil
	})
	if err != nil {
		return core.Settlement{}, err
	}
	return s, nil
}

// ClaimBids pays out settled bids. Winning bids are charged the lot's cached fees on what they paid and
// receive their payout; losing bids are refunded in full without fees.
func (e *Engine) ClaimBids(ctx context.Context, lotID uint64, bidIDs []uint64) error {
	return e.execute(ctx, "claim_bids", lotID, func(log *zap.Logger) error {
		l, err := e.lot(lotID)
		if err != nil {
			return err
		}
		m, err := e.batchModule(l)
		if err != nil {
			return err
		}
		claims, err := m.ClaimBids(ctx, lotID, bidIDs)
		if err != nil {
			return err
		}

		snap := e.lotFees(l)
		qd, bd := l.QuoteToken.Decimals(), l.BaseToken.Decimals()
		for _, c := range claims {
			if !core.IsPositive(c.Payout) {
				if err := e.send(l.QuoteToken, c.Bidder, c.Paid); err != nil {
					return err
				}
				log.Info("bid refunded", zap.Uint64("bid_id", c.BidID), zap.String("refund", core.FormatUnits(c.Paid, qd)))
				continue
			}

			split := core.CalculateSplit(c.Paid, c.Referrer != (common.Address{}), snap)
			e.creditFees(l, c.Referrer, split)
			e.update(l, func(l *Lot) { l.Proceeds = new(big.Int).Add(l.Proceeds, split.Net) })
			if err := e.funding.Consume(lotID, c.Payout); err != nil {
				return err
			}
			if err := e.sendPayout(ctx, l, c.Bidder, c.Payout, l.AuctionOutput); err != nil {
				return err
			}
			log.Info("bid claimed",
				zap.Uint64("bid_id", c.BidID),
				zap.String("paid", core.FormatUnits(c.Paid, qd)),
				zap.String("payout", core.FormatUnits(c.Payout, bd)))
		}
		return nil
	})
}

// ClaimBid is ClaimBids for a single bid.
func (e *Engine) ClaimBid(ctx context.Context, lotID, bidID uint64) error {
	return e.ClaimBids(ctx, lotID, []uint64{bidID})
}
