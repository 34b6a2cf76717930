package main

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cloudx-io/auctionhouse/allowlist"
	"github.com/cloudx-io/auctionhouse/api"
	"github.com/cloudx-io/auctionhouse/core"
	"github.com/cloudx-io/auctionhouse/engine"
	"github.com/cloudx-io/auctionhouse/modules"
	"github.com/cloudx-io/auctionhouse/modules/fixedbatch"
	"github.com/cloudx-io/auctionhouse/modules/fixedexpiry"
	"github.com/cloudx-io/auctionhouse/modules/fixedprice"
)

func (s *Service) handleAuction(ctx context.Context, req api.Request) (any, error) {
	seller, err := parseAddress("caller", req.Caller, false)
	if err != nil {
		return nil, err
	}
	lotReq := req.Lot
	if lotReq == nil {
		return nil, fmt.Errorf("%w: missing lot", core.ErrInvalidParams)
	}
	base, err := s.token(lotReq.Base)
	if err != nil {
		return nil, fmt.Errorf("base: %w", err)
	}
	quote, err := s.token(lotReq.Quote)
	if err != nil {
		return nil, fmt.Errorf("quote: %w", err)
	}

	capacityDecimals := base.Decimals()
	if lotReq.CapacityInQuote {
		capacityDecimals = quote.Decimals()
	}
	capacity, err := core.ParseUnits(lotReq.Capacity, capacityDecimals)
	if err != nil {
		return nil, fmt.Errorf("capacity: %w", err)
	}
	price, err := core.ParseUnits(lotReq.Price, quote.Decimals())
	if err != nil {
		return nil, fmt.Errorf("price: %w", err)
	}
	duration, err := time.ParseDuration(lotReq.Duration)
	if err != nil || duration <= 0 {
		return nil, fmt.Errorf("%w: duration %q", core.ErrInvalidParams, lotReq.Duration)
	}
	curator, err := parseAddress("curator", lotReq.Curator, true)
	if err != nil {
		return nil, err
	}

	keycode := core.Keycode(strings.ToUpper(lotReq.AuctionType))
	var impl any
	switch keycode {
	case fixedprice.Keycode:
		impl = fixedprice.Params{Price: price, MaxPayoutPercent: lotReq.MaxPayoutPercent}
	case fixedbatch.Keycode:
		impl = fixedbatch.Params{Price: price, MinFillPercent: lotReq.MinFillPercent}
	default:
		return nil, fmt.Errorf("%w: %q", core.ErrUnsupportedAuctionType, lotReq.AuctionType)
	}
	implParams, err := modules.EncodeParams(impl)
	if err != nil {
		return nil, err
	}

	routing := engine.RoutingParams{
		AuctionType: keycode,
		BaseToken:   base,
		QuoteToken:  quote,
		Curator:     curator,
		Prefunded:   lotReq.Prefunded,
	}

	var tree *allowlist.Tree
	if len(lotReq.Allowlist) > 0 {
		addrs := make([]common.Address, 0, len(lotReq.Allowlist))
		for _, a := range lotReq.Allowlist {
			addr, err := parseAddress("allowlist", a, false)
			if err != nil {
				return nil, err
			}
			addrs = append(addrs, addr)
		}
		if tree, err = allowlist.BuildTree(addrs); err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrInvalidParams, err)
		}
		if routing.AllowlistParams, err = tree.Params(); err != nil {
			return nil, err
		}
	}

	if lotReq.DerivativeType != "" {
		routing.DerivativeType = core.Keycode(strings.ToUpper(lotReq.DerivativeType))
		if routing.DerivativeType != fixedexpiry.Keycode {
			return nil, fmt.Errorf("%w: derivative %q", core.ErrUnsupportedAuctionType, lotReq.DerivativeType)
		}
		if routing.DerivativeParams, err = modules.EncodeParams(fixedexpiry.Params{Expiry: lotReq.Expiry.Unix()}); err != nil {
			return nil, err
		}
	}

	lotID, err := s.engine.Auction(ctx, seller, routing, modules.AuctionParams{
		Start:           lotReq.Start,
		Duration:        duration,
		Capacity:        capacity,
		CapacityInQuote: lotReq.CapacityInQuote,
		ImplParams:      implParams,
	})
	if err != nil {
		return nil, err
	}
	if tree != nil {
		s.trees[lotID] = tree
	}
	if s.metrics != nil {
		s.metrics.LotsCreated.WithLabelValues(string(keycode)).Inc()
	}
	return api.LotResult{LotID: lotID}, nil
}

// proof returns the caller's allowlist proof, computing it from the lot's tree when the request has none.
func (s *Service) proof(lotID uint64, caller common.Address, given []byte) []byte {
	if len(given) > 0 {
		return given
	}
	tree, ok := s.trees[lotID]
	if !ok {
		return nil
	}
	p, err := tree.Proof(caller)
	if err != nil {
		return nil
	}
	return p
}

func (s *Service) handlePurchase(ctx context.Context, req api.Request) (any, error) {
	buyer, err := parseAddress("caller", req.Caller, false)
	if err != nil {
		return nil, err
	}
	recipient, err := parseAddress("recipient", req.Recipient, true)
	if err != nil {
		return nil, err
	}
	ref, err := parseAddress("referrer", req.Referrer, true)
	if err != nil {
		return nil, err
	}
	lot, err := s.engine.Lot(req.LotID)
	if err != nil {
		return nil, err
	}
	amount, err := core.ParseUnits(req.Amount, lot.QuoteToken.Decimals())
	if err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	var minOut *big.Int
	if req.MinAmountOut != "" {
		if minOut, err = core.ParseUnits(req.MinAmountOut, lot.BaseToken.Decimals()); err != nil {
			return nil, fmt.Errorf("min_amount_out: %w", err)
		}
	}

	payout, err := s.engine.Purchase(ctx, engine.PurchaseParams{
		LotID:          req.LotID,
		Buyer:          buyer,
		Recipient:      recipient,
		Referrer:       ref,
		Amount:         amount,
		MinAmountOut:   minOut,
		AllowlistProof: s.proof(req.LotID, buyer, req.AllowlistProof),
		Permit:         req.Permit,
	})
	if err != nil {
		return nil, err
	}
	return api.AmountResult{
		Amount: core.FormatUnits(payout, lot.BaseToken.Decimals()),
		Token:  lot.BaseToken.Symbol(),
	}, nil
}

func (s *Service) handleBid(ctx context.Context, req api.Request) (any, error) {
	bidder, err := parseAddress("caller", req.Caller, false)
	if err != nil {
		return nil, err
	}
	ref, err := parseAddress("referrer", req.Referrer, true)
	if err != nil {
		return nil, err
	}
	lot, err := s.engine.Lot(req.LotID)
	if err != nil {
		return nil, err
	}
	amount, err := core.ParseUnits(req.Amount, lot.QuoteToken.Decimals())
	if err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}

	bidID, err := s.engine.Bid(ctx, engine.BidParams{
		LotID:          req.LotID,
		Bidder:         bidder,
		Referrer:       ref,
		Amount:         amount,
		AllowlistProof: s.proof(req.LotID, bidder, req.AllowlistProof),
		Permit:         req.Permit,
	})
	if err != nil {
		return nil, err
	}
	return api.BidResult{BidID: bidID}, nil
}

func (s *Service) handleClaimBidRefund(ctx context.Context, req api.Request) (any, error) {
	caller, err := parseAddress("caller", req.Caller, false)
	if err != nil {
		return nil, err
	}
	lot, err := s.engine.Lot(req.LotID)
	if err != nil {
		return nil, err
	}
	refund, err := s.engine.ClaimBidRefund(ctx, caller, req.LotID, req.BidID)
	if err != nil {
		return nil, err
	}
	return api.AmountResult{
		Amount: core.FormatUnits(refund, lot.QuoteToken.Decimals()),
		Token:  lot.QuoteToken.Symbol(),
	}, nil
}

func (s *Service) handleSettle(ctx context.Context, req api.Request) (any, error) {
	settlement, err := s.engine.Settle(ctx, req.LotID)
	if err != nil {
		return nil, err
	}
	lot, err := s.engine.Lot(req.LotID)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.Settlements.Inc()
	}

	result := api.SettlementResult{
		TotalIn:  core.FormatUnits(settlement.TotalIn, lot.QuoteToken.Decimals()),
		TotalOut: core.FormatUnits(settlement.TotalOut, lot.BaseToken.Decimals()),
	}
	if settlement.HasPartialFill() {
		result.PartialBidder = settlement.RefundBidder.Hex()
	}
	if len(lot.Receipt) > 0 {
		result.Receipt = api.Receipt(lot.Receipt).EncodeBase64()
	}
	return result, nil
}

func (s *Service) handleClaimProceeds(ctx context.Context, req api.Request) (any, error) {
	caller, err := parseAddress("caller", req.Caller, false)
	if err != nil {
		return nil, err
	}
	lot, err := s.engine.Lot(req.LotID)
	if err != nil {
		return nil, err
	}
	proceeds, refund, err := s.engine.ClaimProceeds(ctx, caller, req.LotID)
	if err != nil {
		return nil, err
	}
	return api.ProceedsResult{
		Proceeds: core.FormatUnits(proceeds, lot.QuoteToken.Decimals()),
		Refund:   core.FormatUnits(refund, lot.BaseToken.Decimals()),
	}, nil
}

func (s *Service) handleClaimCuratorProceeds(ctx context.Context, req api.Request) (any, error) {
	lot, err := s.engine.Lot(req.LotID)
	if err != nil {
		return nil, err
	}
	paid, err := s.engine.ClaimCuratorProceeds(ctx, req.LotID)
	if err != nil {
		return nil, err
	}
	return api.AmountResult{
		Amount: core.FormatUnits(paid, lot.BaseToken.Decimals()),
		Token:  lot.BaseToken.Symbol(),
	}, nil
}

func (s *Service) handleClaimRewards(ctx context.Context, req api.Request) (any, error) {
	caller, err := parseAddress("caller", req.Caller, false)
	if err != nil {
		return nil, err
	}
	tok, err := s.token(req.Token)
	if err != nil {
		return nil, err
	}
	amount, err := s.engine.ClaimRewards(ctx, caller, tok)
	if err != nil {
		return nil, err
	}
	return api.AmountResult{Amount: core.FormatUnits(amount, tok.Decimals()), Token: tok.Symbol()}, nil
}

// handleFaucet mints devnet tokens to the caller and approves the engine and Permit2 to spend them.
func (s *Service) handleFaucet(req api.Request) (any, error) {
	caller, err := parseAddress("caller", req.Caller, false)
	if err != nil {
		return nil, err
	}
	tok, err := s.token(req.Token)
	if err != nil {
		return nil, err
	}
	if err := s.mint(tok, caller, req.Amount); err != nil {
		return nil, err
	}
	return api.AmountResult{Amount: core.FormatUnits(tok.BalanceOf(caller), tok.Decimals()), Token: tok.Symbol()}, nil
}

func (s *Service) lotView(lotID uint64) (any, error) {
	lot, err := s.engine.Lot(lotID)
	if err != nil {
		return nil, err
	}
	status, err := s.engine.LotStatus(lotID)
	if err != nil {
		return nil, err
	}

	view := api.LotView{
		LotID:      lot.ID,
		Seller:     lot.Seller.Hex(),
		Base:       lot.BaseToken.Symbol(),
		Quote:      lot.QuoteToken.Symbol(),
		Auction:    string(lot.AuctionRef),
		Derivative: string(lot.DerivativeRef),
		Status:     status.String(),
		Prefunded:  lot.Prefunded,
		Funding:    core.FormatUnits(s.engine.Funding(lotID), lot.BaseToken.Decimals()),
		Proceeds:   core.FormatUnits(lot.Proceeds, lot.QuoteToken.Decimals()),
		Curated:    lot.Curation.Curated,
	}
	if lot.Curation.Curator != (common.Address{}) {
		view.Curator = lot.Curation.Curator.Hex()
	}
	if snapshot, ok, err := s.engine.LotFees(lotID); err == nil && ok {
		view.Fees = map[string]uint32{
			core.FeeProtocol.String(): snapshot.Protocol,
			core.FeeReferrer.String(): snapshot.Referrer,
		}
	}
	if len(lot.Receipt) > 0 {
		view.Receipt = api.Receipt(lot.Receipt).EncodeBase64()
	}
	return view, nil
}
