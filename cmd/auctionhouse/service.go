package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/cloudx-io/auctionhouse/allowlist"
	"github.com/cloudx-io/auctionhouse/api"
	"github.com/cloudx-io/auctionhouse/chain"
	"github.com/cloudx-io/auctionhouse/core"
	"github.com/cloudx-io/auctionhouse/engine"
	"github.com/cloudx-io/auctionhouse/fees"
	"github.com/cloudx-io/auctionhouse/modules"
	"github.com/cloudx-io/auctionhouse/modules/fixedbatch"
	"github.com/cloudx-io/auctionhouse/modules/fixedexpiry"
	"github.com/cloudx-io/auctionhouse/modules/fixedprice"
	"github.com/cloudx-io/auctionhouse/permit"
	"github.com/cloudx-io/auctionhouse/receipts"
	"github.com/cloudx-io/auctionhouse/token"
)

// derivativeAddress custodies base tokens backing fixed-expiry positions.
var derivativeAddress = common.HexToAddress("0x000000000000000000000000000000000000de01")

// Service is a devnet auction house: an engine over in-memory genesis tokens, driven by api.Request
// messages. Engine operations run one at a time under the executor lock.
type Service struct {
	mu sync.Mutex

	engine  *engine.Engine
	clock   chain.Clock
	owner   common.Address
	permit2 common.Address
	keys    *receipts.KeyManager
	metrics *Metrics
	logger  *zap.Logger

	tokens map[string]*token.Memory // by upper-case symbol
	trees  map[uint64]*allowlist.Tree
}

// NewService builds the engine, installs the reference modules, applies the fee schedule and mints
// genesis balances. Genesis holders approve the engine and Permit2 without limit.
func NewService(cfg *Config, clock chain.Clock, keys *receipts.KeyManager, metrics *Metrics, logger *zap.Logger) (*Service, error) {
	ctx := context.Background()
	journal := chain.NewJournal()
	owner := common.HexToAddress(cfg.Owner)
	engineAddr := common.HexToAddress(cfg.Engine)

	eng := engine.New(engine.Config{
		Address:   engineAddr,
		Clock:     clock,
		Journal:   journal,
		Logger:    logger.Named("engine"),
		Registry:  modules.NewRegistry(owner, journal),
		Fees:      fees.NewLedger(owner, common.HexToAddress(cfg.Protocol), journal),
		Permit2:   permit.New(common.HexToAddress(cfg.Permit2), clock, journal),
		Allowlist: allowlist.NewMerkle(journal),
		Receipts:  receipts.NewSigner(keys, clock, logger.Named("receipts")),
	})

	for _, m := range []modules.Module{
		fixedprice.New(1, clock, journal),
		fixedbatch.New(1, clock, journal),
		fixedexpiry.New(1, derivativeAddress, clock, journal),
	} {
		if err := eng.InstallModule(ctx, owner, m); err != nil {
			return nil, fmt.Errorf("install %s: %w", m.Veecode(), err)
		}
	}
	deriv := core.NewVeecode(fixedexpiry.Keycode, 1)
	for _, auction := range []core.Keycode{fixedprice.Keycode, fixedbatch.Keycode} {
		if err := eng.SetCondenser(ctx, owner, core.NewVeecode(auction, 1), deriv, modules.MergeCondenser{}); err != nil {
			return nil, fmt.Errorf("set condenser: %w", err)
		}
	}

	for keycode, schedule := range cfg.FeeSchedules() {
		for _, f := range []struct {
			kind  core.FeeKind
			value uint32
		}{
			{core.FeeMaxCurator, schedule.MaxCurator},
			{core.FeeProtocol, schedule.Protocol},
			{core.FeeReferrer, schedule.Referrer},
		} {
			if err := eng.SetFee(ctx, owner, keycode, f.kind, f.value); err != nil {
				return nil, fmt.Errorf("fees.%s.%s: %w", keycode, f.kind, err)
			}
		}
	}

	s := &Service{
		engine:  eng,
		clock:   clock,
		owner:   owner,
		permit2: common.HexToAddress(cfg.Permit2),
		keys:    keys,
		metrics: metrics,
		logger:  logger,
		tokens:  make(map[string]*token.Memory),
		trees:   make(map[uint64]*allowlist.Tree),
	}
	for _, tc := range cfg.Tokens {
		tok := token.NewMemory(common.HexToAddress(tc.Address), tc.Symbol, tc.Decimals, journal)
		for holder, amount := range tc.Balances {
			if err := s.mint(tok, common.HexToAddress(holder), amount); err != nil {
				return nil, fmt.Errorf("genesis %s: %w", tc.Symbol, err)
			}
		}
		s.tokens[strings.ToUpper(tc.Symbol)] = tok
		logger.Info("Genesis token created",
			zap.String("symbol", tc.Symbol),
			zap.Stringer("address", tok.Address()),
			zap.Int("holders", len(tc.Balances)))
	}
	return s, nil
}

func (s *Service) mint(tok *token.Memory, holder common.Address, amount string) error {
	value, err := core.ParseUnits(amount, tok.Decimals())
	if err != nil {
		return err
	}
	tok.Mint(holder, value)
	if err := tok.Approve(holder, s.engine.Address(), token.MaxAllowance); err != nil {
		return err
	}
	return tok.Approve(holder, s.permit2, token.MaxAllowance)
}

// Handle executes req and reports the outcome. It never returns an error; failures are described in
// the response with their error kind.
func (s *Service) Handle(ctx context.Context, req api.Request) api.Response {
	start := time.Now()
	result, err := s.dispatch(ctx, req)
	elapsed := time.Since(start)

	resp := api.Response{
		Type:           req.Type + "_response",
		Success:        err == nil,
		Result:         result,
		ProcessingTime: elapsed.Milliseconds(),
	}
	if err != nil {
		resp.Result = nil
		resp.Message = err.Error()
		resp.Kind = core.KindOf(err)
	}
	if s.metrics != nil {
		s.metrics.Observe(req.Type, resp, elapsed)
	}
	return resp
}

func (s *Service) dispatch(ctx context.Context, req api.Request) (any, error) {
	if req.Type == api.TypePing {
		return map[string]any{"message": "auction house is healthy", "timestamp": s.clock.Now().Unix()}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch req.Type {
	case api.TypeAuction:
		return s.handleAuction(ctx, req)
	case api.TypeCancel:
		return s.withCaller(req, func(caller common.Address) (any, error) {
			return nil, s.engine.Cancel(ctx, caller, req.LotID)
		})
	case api.TypeCurate:
		return s.withCaller(req, func(caller common.Address) (any, error) {
			return nil, s.engine.Curate(ctx, caller, req.LotID)
		})
	case api.TypePurchase:
		return s.handlePurchase(ctx, req)
	case api.TypeBid:
		return s.handleBid(ctx, req)
	case api.TypeCancelBid:
		return s.withCaller(req, func(caller common.Address) (any, error) {
			return nil, s.engine.CancelBid(ctx, caller, req.LotID, req.BidID)
		})
	case api.TypeClaimBidRefund:
		return s.handleClaimBidRefund(ctx, req)
	case api.TypeSettle:
		return s.handleSettle(ctx, req)
	case api.TypeClaimBids:
		return nil, s.engine.ClaimBids(ctx, req.LotID, req.BidIDs)
	case api.TypeClaimProceeds:
		return s.handleClaimProceeds(ctx, req)
	case api.TypeClaimCuratorProceeds:
		return s.handleClaimCuratorProceeds(ctx, req)
	case api.TypeClaimRewards:
		return s.handleClaimRewards(ctx, req)
	case api.TypeSetCuratorFee:
		return s.withCaller(req, func(caller common.Address) (any, error) {
			keycode := core.Keycode(strings.ToUpper(req.AuctionType))
			return nil, s.engine.SetCuratorFee(ctx, caller, keycode, req.FeePercent)
		})
	case api.TypeLot:
		return s.lotView(req.LotID)
	case api.TypeFaucet:
		return s.handleFaucet(req)
	case api.TypeReceiptKey:
		pem, err := s.keys.PublicKeyPEM()
		if err != nil {
			return nil, err
		}
		return api.ReceiptKeyResult{PublicKey: pem}, nil
	default:
		return nil, fmt.Errorf("%w: unknown request type %q", core.ErrInvalidParams, req.Type)
	}
}

func (s *Service) withCaller(req api.Request, fn func(caller common.Address) (any, error)) (any, error) {
	caller, err := parseAddress("caller", req.Caller, false)
	if err != nil {
		return nil, err
	}
	return fn(caller)
}

// parseAddress parses a hex address. Empty input is the zero address when optional is set.
func parseAddress(field, value string, optional bool) (common.Address, error) {
	if value == "" && optional {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%w: %s: invalid address %q", core.ErrInvalidParams, field, value)
	}
	return common.HexToAddress(value), nil
}

func (s *Service) token(symbol string) (*token.Memory, error) {
	tok, ok := s.tokens[strings.ToUpper(symbol)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnsupportedToken, symbol)
	}
	return tok, nil
}
