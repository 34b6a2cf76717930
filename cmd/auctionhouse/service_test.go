package main

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/cloudx-io/auctionhouse/api"
	"github.com/cloudx-io/auctionhouse/chain"
	"github.com/cloudx-io/auctionhouse/core"
	"github.com/cloudx-io/auctionhouse/fees"
	"github.com/cloudx-io/auctionhouse/permit"
	"github.com/cloudx-io/auctionhouse/receipts"
)

const (
	testSeller   = "0x0000000000000000000000000000000000005e11"
	testBuyer    = "0x000000000000000000000000000000000000b0e4"
	testOutsider = "0x000000000000000000000000000000000000bad0"
	testProtocol = "0x00000000000000000000000000000000000000bb"
)

type testService struct {
	*Service
	clock   *chain.ManualClock
	metrics *Metrics
}

func testConfig() *Config {
	return &Config{
		ListenAddress:  "127.0.0.1:0",
		MaxWorkers:     4,
		MetricsAddress: "127.0.0.1:0",
		LogLevel:       "info",
		Owner:          "0x00000000000000000000000000000000000000aa",
		Protocol:       testProtocol,
		Engine:         "0x00000000000000000000000000000000000e6e6e",
		Permit2:        "0x000000000022D473030F116dDEE9F6B43aC78BA3",
		Fees: map[string]fees.Schedule{
			"fps": {Protocol: 1000, Referrer: 500},
		},
		Tokens: []TokenConfig{
			{
				Symbol:   "USDC",
				Address:  "0x0000000000000000000000000000000000001000",
				Decimals: 6,
				Balances: map[string]string{testBuyer: "10000"},
			},
			{
				Symbol:   "BASE",
				Address:  "0x0000000000000000000000000000000000002000",
				Decimals: 18,
				Balances: map[string]string{testSeller: "1000"},
			},
		},
	}
}

func newTestService(t *testing.T) *testService {
	t.Helper()
	keys, err := receipts.NewKeyManager()
	assert.NoError(t, err)
	clock := chain.NewManualClock(time.Unix(1_700_000_000, 0))
	metrics := NewMetrics()
	s, err := NewService(testConfig(), clock, keys, metrics, zap.NewNop())
	assert.NoError(t, err)
	return &testService{Service: s, clock: clock, metrics: metrics}
}

func testUnits(n int64, decimals uint8) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), core.Pow10(decimals))
}

func (s *testService) do(t *testing.T, req api.Request) api.Response {
	t.Helper()
	return s.Handle(context.Background(), req)
}

func (s *testService) mustDo(t *testing.T, req api.Request) any {
	t.Helper()
	resp := s.do(t, req)
	assert.True(t, resp.Success)
	check.Equal(t, req.Type+"_response", resp.Type)
	return resp.Result
}

func fixedPriceLot() *api.CreateLot {
	return &api.CreateLot{
		AuctionType: "fps",
		Base:        "BASE",
		Quote:       "usdc",
		Capacity:    "100",
		Duration:    "24h",
		Price:       "2",
	}
}

func TestService_Ping(t *testing.T) {
	s := newTestService(t)
	resp := s.do(t, api.Request{Type: api.TypePing})
	check.True(t, resp.Success)
	check.Equal(t, "ping_response", resp.Type)
}

func TestService_AtomicFlow(t *testing.T) {
	s := newTestService(t)

	created := s.mustDo(t, api.Request{Type: api.TypeAuction, Caller: testSeller, Lot: fixedPriceLot()})
	lotID := created.(api.LotResult).LotID
	check.Equal(t, uint64(0), lotID)

	// 1.5% of 20 USDC goes to the protocol, the rest buys at 2 USDC per BASE.
	bought := s.mustDo(t, api.Request{Type: api.TypePurchase, Caller: testBuyer, LotID: lotID, Amount: "20", MinAmountOut: "9"})
	check.Equal(t, api.AmountResult{Amount: "9.85", Token: "BASE"}, bought.(api.AmountResult))

	view := s.mustDo(t, api.Request{Type: api.TypeLot, LotID: lotID}).(api.LotView)
	check.Equal(t, "active", view.Status)
	check.Equal(t, common.HexToAddress(testSeller).Hex(), view.Seller)
	check.Equal(t, "01FPS", view.Auction)
	check.False(t, view.Prefunded)
	check.Equal(t, uint32(1000), view.Fees["protocol"])
	check.Equal(t, uint32(500), view.Fees["referrer"])

	rewards := s.mustDo(t, api.Request{Type: api.TypeClaimRewards, Caller: testProtocol, Token: "USDC"})
	check.Equal(t, api.AmountResult{Amount: "0.3", Token: "USDC"}, rewards.(api.AmountResult))

	check.Equal(t, 1.0, testutil.ToFloat64(s.metrics.Requests.WithLabelValues(api.TypePurchase, "ok")))
	check.Equal(t, 1.0, testutil.ToFloat64(s.metrics.LotsCreated.WithLabelValues("FPS")))
}

func TestService_BatchFlowWithReceipt(t *testing.T) {
	s := newTestService(t)

	lot := fixedPriceLot()
	lot.AuctionType = "FPB"
	lot.Capacity = "10"
	lotID := s.mustDo(t, api.Request{Type: api.TypeAuction, Caller: testSeller, Lot: lot}).(api.LotResult).LotID

	bidID := s.mustDo(t, api.Request{Type: api.TypeBid, Caller: testBuyer, LotID: lotID, Amount: "10"}).(api.BidResult).BidID
	check.Equal(t, uint64(1), bidID)

	resp := s.do(t, api.Request{Type: api.TypeSettle, LotID: lotID})
	check.False(t, resp.Success)
	check.Equal(t, "invalid_state", resp.Kind)

	s.clock.Advance(25 * time.Hour)
	settled := s.mustDo(t, api.Request{Type: api.TypeSettle, LotID: lotID}).(api.SettlementResult)
	check.Equal(t, "10", settled.TotalIn)
	check.Equal(t, "5", settled.TotalOut)
	check.Equal(t, "", settled.PartialBidder)
	assert.NotEqual(t, "", settled.Receipt.String())

	s.mustDo(t, api.Request{Type: api.TypeClaimBids, LotID: lotID, BidIDs: []uint64{bidID}})
	proceeds := s.mustDo(t, api.Request{Type: api.TypeClaimProceeds, Caller: testSeller, LotID: lotID}).(api.ProceedsResult)
	check.Equal(t, "10", proceeds.Proceeds)

	key := s.mustDo(t, api.Request{Type: api.TypeReceiptKey}).(api.ReceiptKeyResult)
	receipt, err := api.ParseReceipt([]byte(settled.Receipt))
	assert.NoError(t, err)
	result, err := receipts.Validate(&receipts.ValidationInput{
		Receipt:      receipt,
		PublicKeyPEM: key.PublicKey,
		LotID:        lotID,
		BidID:        bidID,
		Bidder:       common.HexToAddress(testBuyer),
		Amount:       testUnits(10, 6),
	})
	assert.NoError(t, err)
	check.True(t, result.IsValid())
	check.Equal(t, 1.0, testutil.ToFloat64(s.metrics.Settlements))
}

func TestService_Allowlist(t *testing.T) {
	s := newTestService(t)

	lot := fixedPriceLot()
	lot.Allowlist = []string{testBuyer, testSeller}
	lotID := s.mustDo(t, api.Request{Type: api.TypeAuction, Caller: testSeller, Lot: lot}).(api.LotResult).LotID

	s.mustDo(t, api.Request{Type: api.TypeFaucet, Caller: testOutsider, Token: "USDC", Amount: "50"})
	resp := s.do(t, api.Request{Type: api.TypePurchase, Caller: testOutsider, LotID: lotID, Amount: "2"})
	check.False(t, resp.Success)
	check.Equal(t, "not_permitted", resp.Kind)

	s.mustDo(t, api.Request{Type: api.TypePurchase, Caller: testBuyer, LotID: lotID, Amount: "2"})
}

func TestService_PurchaseWithPermit(t *testing.T) {
	s := newTestService(t)
	lotID := s.mustDo(t, api.Request{Type: api.TypeAuction, Caller: testSeller, Lot: fixedPriceLot()}).(api.LotResult).LotID

	key, err := crypto.GenerateKey()
	assert.NoError(t, err)
	payer := crypto.PubkeyToAddress(key.PublicKey)
	s.mustDo(t, api.Request{Type: api.TypeFaucet, Caller: payer.Hex(), Token: "USDC", Amount: "50"})

	usdc := s.tokens["USDC"]
	signer := permit.New(common.HexToAddress(testConfig().Permit2), s.clock, nil)
	approval, err := signer.Sign(key, usdc.Address(), s.engine.Address(), testUnits(20, 6), 1, s.clock.Now().Add(time.Hour))
	assert.NoError(t, err)

	// The approval survives the JSON wire form.
	raw, err := json.Marshal(api.Request{Type: api.TypePurchase, Caller: payer.Hex(), LotID: lotID, Amount: "20", Permit: &approval})
	assert.NoError(t, err)
	var req api.Request
	assert.NoError(t, json.Unmarshal(raw, &req))

	bought := s.mustDo(t, req)
	check.Equal(t, "9.85", bought.(api.AmountResult).Amount)
	check.Equal(t, testUnits(30, 6).String(), usdc.BalanceOf(payer).String())

	resp := s.do(t, req)
	check.False(t, resp.Success)
	check.Equal(t, "nonce_already_used", resp.Kind)

	// A signature over 20 USDC does not authorize 10.
	approval.Nonce = 2
	resp = s.do(t, api.Request{Type: api.TypePurchase, Caller: payer.Hex(), LotID: lotID, Amount: "10", Permit: &approval})
	check.False(t, resp.Success)
	check.Equal(t, "invalid_signature", resp.Kind)
	check.Equal(t, testUnits(30, 6).String(), usdc.BalanceOf(payer).String())
}

func TestService_Faucet(t *testing.T) {
	s := newTestService(t)
	funded := s.mustDo(t, api.Request{Type: api.TypeFaucet, Caller: testOutsider, Token: "base", Amount: "1.5"})
	check.Equal(t, api.AmountResult{Amount: "1.5", Token: "BASE"}, funded.(api.AmountResult))

	funded = s.mustDo(t, api.Request{Type: api.TypeFaucet, Caller: testOutsider, Token: "BASE", Amount: "1"})
	check.Equal(t, "2.5", funded.(api.AmountResult).Amount)
}

func TestService_Errors(t *testing.T) {
	s := newTestService(t)
	s.mustDo(t, api.Request{Type: api.TypeAuction, Caller: testSeller, Lot: fixedPriceLot()})

	unknownAuction := fixedPriceLot()
	unknownAuction.AuctionType = "XYZ"
	badDuration := fixedPriceLot()
	badDuration.Duration = "soon"

	tests := []struct {
		name string
		req  api.Request
		kind string
	}{
		{name: "unknown type", req: api.Request{Type: "withdraw"}, kind: "invalid_params"},
		{name: "missing caller", req: api.Request{Type: api.TypeCancel, LotID: 0}, kind: "invalid_params"},
		{name: "unknown lot", req: api.Request{Type: api.TypePurchase, Caller: testBuyer, LotID: 99, Amount: "1"}, kind: "invalid_lot_id"},
		{name: "too many decimals", req: api.Request{Type: api.TypePurchase, Caller: testBuyer, LotID: 0, Amount: "1.1234567"}, kind: "invalid_params"},
		{name: "min out not met", req: api.Request{Type: api.TypePurchase, Caller: testBuyer, LotID: 0, Amount: "2", MinAmountOut: "1"}, kind: "amount_below_minimum"},
		{name: "bid on atomic lot", req: api.Request{Type: api.TypeBid, Caller: testBuyer, LotID: 0, Amount: "2"}, kind: "not_implemented"},
		{name: "unknown token", req: api.Request{Type: api.TypeClaimRewards, Caller: testBuyer, Token: "DOGE"}, kind: "unsupported_token"},
		{name: "missing lot", req: api.Request{Type: api.TypeAuction, Caller: testSeller}, kind: "invalid_params"},
		{name: "unknown auction type", req: api.Request{Type: api.TypeAuction, Caller: testSeller, Lot: unknownAuction}, kind: "not_implemented"},
		{name: "bad duration", req: api.Request{Type: api.TypeAuction, Caller: testSeller, Lot: badDuration}, kind: "invalid_params"},
		{name: "cancel by stranger", req: api.Request{Type: api.TypeCancel, Caller: testBuyer, LotID: 0}, kind: "not_permitted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.do(t, tt.req)
			check.False(t, resp.Success)
			check.Equal(t, tt.kind, resp.Kind)
			check.NotEqual(t, "", resp.Message)
			check.Nil(t, resp.Result)
		})
	}
}
