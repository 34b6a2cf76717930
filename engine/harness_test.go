package engine

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/peterldowns/testy/assert"

	"github.com/cloudx-io/auctionhouse/allowlist"
	"github.com/cloudx-io/auctionhouse/chain"
	"github.com/cloudx-io/auctionhouse/core"
	"github.com/cloudx-io/auctionhouse/fees"
	"github.com/cloudx-io/auctionhouse/hooks"
	"github.com/cloudx-io/auctionhouse/modules"
	"github.com/cloudx-io/auctionhouse/modules/fixedbatch"
	"github.com/cloudx-io/auctionhouse/modules/fixedexpiry"
	"github.com/cloudx-io/auctionhouse/modules/fixedprice"
	"github.com/cloudx-io/auctionhouse/permit"
	"github.com/cloudx-io/auctionhouse/token"
)

var (
	owner       = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	protocol    = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	seller      = common.HexToAddress("0x0000000000000000000000000000000000005e11")
	buyer       = common.HexToAddress("0x000000000000000000000000000000000000b0e4")
	bidder2     = common.HexToAddress("0x000000000000000000000000000000000000b1d2")
	bidder3     = common.HexToAddress("0x000000000000000000000000000000000000b1d3")
	referrer    = common.HexToAddress("0x0000000000000000000000000000000000000fef")
	curator     = common.HexToAddress("0x000000000000000000000000000000000000c0de")
	hookAddr    = common.HexToAddress("0x000000000000000000000000000000000000b00c")
	engineAddr  = common.HexToAddress("0x00000000000000000000000000000000000e6e6e")
	permit2Addr = common.HexToAddress("0x000000000022d473030f116ddee9f6b43ac78ba3")
	derivAddr   = common.HexToAddress("0x000000000000000000000000000000000000de01")
)

type harness struct {
	t       *testing.T
	ctx     context.Context
	clock   *chain.ManualClock
	journal *chain.Journal
	engine  *Engine
	ledger  *fees.Ledger
	permit  *permit.Permit2
	allow   *allowlist.Merkle
	fxp     *fixedexpiry.Module
	quote   *token.Memory
	base    *token.Memory
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	quoteDecimals uint8
	baseDecimals  uint8
	quoteOpts     []token.Option
	signer        SettlementSigner
}

func withDecimals(quote, base uint8) harnessOption {
	return func(c *harnessConfig) { c.quoteDecimals, c.baseDecimals = quote, base }
}

func withQuoteOptions(opts ...token.Option) harnessOption {
	return func(c *harnessConfig) { c.quoteOpts = opts }
}

func withSigner(s SettlementSigner) harnessOption {
	return func(c *harnessConfig) { c.signer = s }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	cfg := harnessConfig{quoteDecimals: 18, baseDecimals: 18}
	for _, opt := range opts {
		opt(&cfg)
	}

	h := &harness{
		t:       t,
		ctx:     context.Background(),
		clock:   chain.NewManualClock(time.Unix(1_700_000_000, 0)),
		journal: chain.NewJournal(),
	}
	h.ledger = fees.NewLedger(owner, protocol, h.journal)
	h.permit = permit.New(permit2Addr, h.clock, h.journal)
	h.allow = allowlist.NewMerkle(h.journal)
	h.quote = token.NewMemory(common.HexToAddress("0x1000"), "QUO", cfg.quoteDecimals, h.journal, cfg.quoteOpts...)
	h.base = token.NewMemory(common.HexToAddress("0x2000"), "BAS", cfg.baseDecimals, h.journal)
	h.fxp = fixedexpiry.New(1, derivAddr, h.clock, h.journal)

	h.engine = New(Config{
		Address:   engineAddr,
		Clock:     h.clock,
		Journal:   h.journal,
		Registry:  modules.NewRegistry(owner, h.journal),
		Fees:      h.ledger,
		Permit2:   h.permit,
		Allowlist: h.allow,
		Receipts:  cfg.signer,
	})

	assert.NoError(t, h.engine.InstallModule(h.ctx, owner, fixedprice.New(1, h.clock, h.journal)))
	assert.NoError(t, h.engine.InstallModule(h.ctx, owner, fixedbatch.New(1, h.clock, h.journal)))
	assert.NoError(t, h.engine.InstallModule(h.ctx, owner, h.fxp))

	h.fund(seller, h.base, units(1_000_000, cfg.baseDecimals))
	for _, b := range []common.Address{buyer, bidder2, bidder3} {
		h.fund(b, h.quote, units(1_000_000, cfg.quoteDecimals))
	}
	return h
}

func units(n int64, decimals uint8) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), core.Pow10(decimals))
}

func e18(n int64) *big.Int { return units(n, 18) }

// fund mints amount of tok to who and approves the engine for all of it.
func (h *harness) fund(who common.Address, tok *token.Memory, amount *big.Int) {
	h.t.Helper()
	tok.Mint(who, amount)
	assert.NoError(h.t, tok.Approve(who, engineAddr, token.MaxAllowance))
}

func (h *harness) setFees(keycode core.Keycode, protocolFee, referrerFee uint32) {
	h.t.Helper()
	assert.NoError(h.t, h.engine.SetFee(h.ctx, owner, keycode, core.FeeProtocol, protocolFee))
	assert.NoError(h.t, h.engine.SetFee(h.ctx, owner, keycode, core.FeeReferrer, referrerFee))
}

func (h *harness) setCuratorFee(keycode core.Keycode, pct uint32) {
	h.t.Helper()
	assert.NoError(h.t, h.engine.SetFee(h.ctx, owner, keycode, core.FeeMaxCurator, core.MaxCuratorFeeCeiling))
	assert.NoError(h.t, h.engine.SetCuratorFee(h.ctx, curator, keycode, pct))
}

type lotOption func(h *harness, r *RoutingParams, p *modules.AuctionParams)

func prefunded() lotOption {
	return func(_ *harness, r *RoutingParams, _ *modules.AuctionParams) { r.Prefunded = true }
}

func curatedBy(c common.Address) lotOption {
	return func(_ *harness, r *RoutingParams, _ *modules.AuctionParams) { r.Curator = c }
}

func withCallbacks(cb *hooks.Mock) lotOption {
	return func(_ *harness, r *RoutingParams, _ *modules.AuctionParams) { r.Callbacks = cb }
}

func startingIn(d time.Duration) lotOption {
	return func(h *harness, _ *RoutingParams, p *modules.AuctionParams) { p.Start = h.clock.Now().Add(d) }
}

// atomicLot lists capacity base at price quote per whole base token for a day.
func (h *harness) atomicLot(capacity, price *big.Int, opts ...lotOption) uint64 {
	h.t.Helper()
	routing := RoutingParams{AuctionType: fixedprice.Keycode, BaseToken: h.base, QuoteToken: h.quote}
	params := modules.AuctionParams{
		Duration:   24 * time.Hour,
		Capacity:   capacity,
		ImplParams: modules.MustEncodeParams(fixedprice.Params{Price: price}),
	}
	return h.createLot(routing, params, opts)
}

// batchLot lists capacity base at a fixed batch price for a day.
func (h *harness) batchLot(capacity, price *big.Int, minFill uint32, opts ...lotOption) uint64 {
	h.t.Helper()
	routing := RoutingParams{AuctionType: fixedbatch.Keycode, BaseToken: h.base, QuoteToken: h.quote}
	params := modules.AuctionParams{
		Duration:   24 * time.Hour,
		Capacity:   capacity,
		ImplParams: modules.MustEncodeParams(fixedbatch.Params{Price: price, MinFillPercent: minFill}),
	}
	return h.createLot(routing, params, opts)
}

func (h *harness) createLot(routing RoutingParams, params modules.AuctionParams, opts []lotOption) uint64 {
	h.t.Helper()
	for _, opt := range opts {
		opt(h, &routing, &params)
	}
	lotID, err := h.engine.Auction(h.ctx, seller, routing, params)
	assert.NoError(h.t, err)
	return lotID
}

func (h *harness) purchase(lotID uint64, from common.Address, ref common.Address, amount *big.Int) (*big.Int, error) {
	return h.engine.Purchase(h.ctx, PurchaseParams{LotID: lotID, Buyer: from, Referrer: ref, Amount: amount})
}

func (h *harness) bid(lotID uint64, from, ref common.Address, amount *big.Int) uint64 {
	h.t.Helper()
	id, err := h.engine.Bid(h.ctx, BidParams{LotID: lotID, Bidder: from, Referrer: ref, Amount: amount})
	assert.NoError(h.t, err)
	return id
}

func (h *harness) conclude() { h.clock.Advance(25 * time.Hour) }

type mockSigner struct {
	SignFunc func(lotID uint64, s core.Settlement, bids []core.Bid) ([]byte, error)
}

func (m *mockSigner) SignSettlement(lotID uint64, s core.Settlement, bids []core.Bid) ([]byte, error) {
	return m.SignFunc(lotID, s, bids)
}
