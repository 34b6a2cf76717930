package engine

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/cloudx-io/auctionhouse/core"
	"github.com/cloudx-io/auctionhouse/hooks"
	"github.com/cloudx-io/auctionhouse/modules"
	"github.com/cloudx-io/auctionhouse/token"
)

// Auction creates a lot selling routing.BaseToken for routing.QuoteToken through the latest version
// of routing.AuctionType. Lot ids are sequential from 0.
func (e *Engine) Auction(ctx context.Context, seller common.Address, routing RoutingParams, params modules.AuctionParams) (uint64, error) {
	lotID := uint64(len(e.lots))
	err := e.execute(ctx, "auction", lotID, func(log *zap.Logger) error {
		if routing.BaseToken == nil || routing.QuoteToken == nil {
			return fmt.Errorf("%w: base and quote tokens are required", core.ErrInvalidParams)
		}
		if err := core.ValidateDecimals(routing.BaseToken.Decimals()); err != nil {
			return fmt.Errorf("base token: %w", err)
		}
		if err := core.ValidateDecimals(routing.QuoteToken.Decimals()); err != nil {
			return fmt.Errorf("quote token: %w", err)
		}

		perms := hooks.Permissions(routing.Callbacks)
		if routing.Callbacks != nil && routing.Callbacks.Address() == (common.Address{}) {
			return fmt.Errorf("%w: callbacks without an address", core.ErrInvalidParams)
		}

		m, err := e.registry.Latest(routing.AuctionType)
		if err != nil {
			return err
		}
		am, ok := m.(modules.AuctionModule)
		if !ok {
			return fmt.Errorf("%w: %s is not an auction module", core.ErrInvalidParams, m.Veecode())
		}

		var derivRef core.Veecode
		if routing.DerivativeType != "" {
			dm, err := e.registry.Latest(routing.DerivativeType)
			if err != nil {
				return err
			}
			if _, ok := dm.(modules.Derivative); !ok {
				return fmt.Errorf("%w: %s is not a derivative module", core.ErrInvalidParams, dm.Veecode())
			}
			derivRef = dm.Veecode()
		}

		// Batch payouts are claimed after settlement, so their capacity is always held in custody.
		prefunded := am.RequiresPrefunding() || routing.Prefunded || am.Type() == core.AuctionTypeBatch
		if prefunded && params.CapacityInQuote {
			return fmt.Errorf("%w: prefunded capacity must be in base", core.ErrInvalidParams)
		}
		if prefunded && perms.Has(core.PermSendBaseTokens) && !perms.Has(core.PermOnCreate) {
			return fmt.Errorf("%w: prefunding from callbacks requires onCreate", core.ErrInvalidParams)
		}

		l := &Lot{
			ID:               lotID,
			Seller:           seller,
			BaseToken:        routing.BaseToken,
			QuoteToken:       routing.QuoteToken,
			Created:          e.clock.Now(),
			AuctionRef:       am.Veecode(),
			DerivativeRef:    derivRef,
			DerivativeParams: routing.DerivativeParams,
			Wrap:             routing.Wrap,
			Callbacks:        routing.Callbacks,
			Permissions:      perms,
			Curation:         core.Curation{Curator: routing.Curator, Reserve: new(big.Int)},
			Prefunded:        prefunded,
			Capacity:         new(big.Int),
			Proceeds:         new(big.Int),
		}
		e.lots = append(e.lots, l)
		e.journal.Record(func() { e.lots = e.lots[:len(e.lots)-1] })

		if err := am.Auction(ctx, lotID, params, routing.QuoteToken.Decimals(), routing.BaseToken.Decimals()); err != nil {
			return err
		}

		if len(routing.AllowlistParams) > 0 {
			if e.allowlist == nil {
				return fmt.Errorf("%w: no allowlist configured", core.ErrInvalidParams)
			}
			if err := e.allowlist.Register(lotID, routing.AllowlistParams); err != nil {
				return err
			}
			e.update(l, func(l *Lot) { l.HasAllowlist = true })
		}

		d := l.hooks()
		if err := d.Create(ctx, lotID, seller, routing.BaseToken.Address(), routing.QuoteToken.Address(), params.Capacity, prefunded, routing.CallbackData); err != nil {
			return err
		}

		if prefunded {
			if err := token.TransferFrom(l.BaseToken, e.address, d.BaseSource(seller), e.address, params.Capacity); err != nil {
				return fmt.Errorf("prefund: %w", err)
			}
			e.funding.Record(lotID, params.Capacity)
			e.update(l, func(l *Lot) { l.Capacity = core.Copy(params.Capacity) })
		}

		log.Info("lot created",
			zap.String("seller", seller.Hex()),
			zap.String("auction", string(l.AuctionRef)),
			zap.String("derivative", string(l.DerivativeRef)),
			zap.String("base", l.BaseToken.Symbol()),
			zap.String("quote", l.QuoteToken.Symbol()),
			zap.String("capacity", formatCapacity(l, params)),
			zap.Bool("prefunded", prefunded),
			zap.Strings("permissions", perms.Names()))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return lotID, nil
}

func formatCapacity(l *Lot, params modules.AuctionParams) string {
	if params.CapacityInQuote {
		return core.FormatUnits(params.Capacity, l.QuoteToken.Decimals()) + " " + l.QuoteToken.Symbol()
	}
	return core.FormatUnits(params.Capacity, l.BaseToken.Decimals()) + " " + l.BaseToken.Symbol()
}

// Cancel ends lotID early if its auction module allows it and returns unconsumed funding, except the
// curator reserve, to the seller (or the callbacks that supplied it).
func (e *Engine) Cancel(ctx context.Context, caller common.Address, lotID uint64) error {
	return e.execute(ctx, "cancel", lotID, func(log *zap.Logger) error {
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
		if err := m.CancelAuction(ctx, lotID); err != nil {
			return err
		}

		d := l.hooks()
		refund := new(big.Int).Sub(e.funding.Balance(lotID), curatorHeld(l))
		if refund.Sign() > 0 {
			if err := e.funding.Consume(lotID, refund); err != nil {
				return err
			}
			if err := e.send(l.BaseToken, d.BaseSource(l.Seller), refund); err != nil {
				return err
			}
		}
		if l.Prefunded {
			e.update(l, func(l *Lot) { l.RefundClaimed = true })
		}

		if err := d.Cancel(ctx, lotID, refund, l.Prefunded); err != nil {
			return err
		}

		log.Info("lot cancelled", zap.String("refund", core.FormatUnits(refund, l.BaseToken.Decimals())))
		return nil
	})
}

// Curate accepts the curator role for lotID at the curator's declared fee. Prefunded lots deposit the
// maximum curator fee, on full capacity, at once.
func (e *Engine) Curate(ctx context.Context, caller common.Address, lotID uint64) error {
	return e.execute(ctx, "curate", lotID, func(log *zap.Logger) error {
		l, err := e.lot(lotID)
		if err != nil {
			return err
		}
		if l.Curation.Curator == (common.Address{}) || caller != l.Curation.Curator {
			return fmt.Errorf("caller is not the curator: %w", core.ErrNotPermitted)
		}
		if l.Curation.Curated {
			return core.ErrAlreadyCurated
		}

		m, err := e.auctionModule(l)
		if err != nil {
			return err
		}
		data, err := m.Lot(lotID)
		if err != nil {
			return err
		}
		if now := e.clock.Now(); !data.CanCurate(now) {
			if data.Status(now) == core.LotCancelled {
				return core.ErrLotCancelled
			}
			return core.ErrLotConcluded
		}

		pct := e.fees.CuratorFee(caller, l.AuctionRef.Keycode())
		if pct == 0 {
			return fmt.Errorf("curator has no fee for %s: %w", l.AuctionRef.Keycode(), core.ErrInvalidFee)
		}

		reserve := new(big.Int)
		if l.Prefunded {
			reserve = core.CuratorFee(l.Capacity, pct)
		}
		e.update(l, func(l *Lot) {
			l.Curation.Curated = true
			l.Curation.FeePct = pct
			l.Curation.Reserve = reserve
		})

		d := l.hooks()
		if err := d.Curate(ctx, lotID, reserve, l.Prefunded); err != nil {
			return err
		}
		if reserve.Sign() > 0 {
			if err := token.TransferFrom(l.BaseToken, e.address, d.BaseSource(l.Seller), e.address, reserve); err != nil {
				return fmt.Errorf("curator prefund: %w", err)
			}
			e.funding.Record(lotID, reserve)
		}

		log.Info("lot curated",
			zap.String("curator", caller.Hex()),
			zap.Uint32("fee_pct", pct),
			zap.String("reserve", core.FormatUnits(reserve, l.BaseToken.Decimals())))
		return nil
	})
}
