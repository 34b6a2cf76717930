// Package api defines the JSON messages of the auction house dispatch service. Every request and
// response carries a type field; amounts are human decimal strings in the relevant token's units.
package api

import (
	"time"

	"github.com/cloudx-io/auctionhouse/permit"
)

// Request types.
const (
	TypePing                 = "ping"
	TypeAuction              = "auction"
	TypeCancel               = "cancel"
	TypeCurate               = "curate"
	TypePurchase             = "purchase"
	TypeBid                  = "bid"
	TypeCancelBid            = "cancel_bid"
	TypeClaimBidRefund       = "claim_bid_refund"
	TypeSettle               = "settle"
	TypeClaimBids            = "claim_bids"
	TypeClaimProceeds        = "claim_proceeds"
	TypeClaimCuratorProceeds = "claim_curator_proceeds"
	TypeClaimRewards         = "claim_rewards"
	TypeSetCuratorFee        = "set_curator_fee"
	TypeLot                  = "lot"
	TypeFaucet               = "faucet"
	TypeReceiptKey           = "receipt_key"
)

// Request is a single engine operation. Which fields are read depends on Type.
type Request struct {
	Type   string `json:"type"`
	Caller string `json:"caller"`

	LotID  uint64   `json:"lot_id,omitempty"`
	BidID  uint64   `json:"bid_id,omitempty"`
	BidIDs []uint64 `json:"bid_ids,omitempty"`

	Amount       string `json:"amount,omitempty"`
	MinAmountOut string `json:"min_amount_out,omitempty"`
	Referrer     string `json:"referrer,omitempty"`
	Recipient    string `json:"recipient,omitempty"`

	// Token is a token symbol, for claim_rewards and faucet.
	Token string `json:"token,omitempty"`
	// AuctionType is a module keycode, for set_curator_fee.
	AuctionType string `json:"auction_type,omitempty"`
	FeePercent  uint32 `json:"fee_percent,omitempty"`

	// AllowlistProof is the bidder's proof from `allowlist.Tree.Proof`, for purchase and bid.
	AllowlistProof []byte `json:"allowlist_proof,omitempty"`
	// Permit pays for a purchase or bid by signed approval instead of the caller's standing allowance.
	Permit *permit.Approval `json:"permit,omitempty"`

	Lot *CreateLot `json:"lot,omitempty"`
}

// CreateLot describes a new lot. Price is in quote tokens per whole base token.
type CreateLot struct {
	AuctionType     string    `json:"auction_type"`
	Base            string    `json:"base"`
	Quote           string    `json:"quote"`
	Capacity        string    `json:"capacity"`
	CapacityInQuote bool      `json:"capacity_in_quote,omitempty"`
	Start           time.Time `json:"start,omitzero"`
	Duration        string    `json:"duration"`
	Price           string    `json:"price"`
	Prefunded       bool      `json:"prefunded,omitempty"`
	Curator         string    `json:"curator,omitempty"`
	Allowlist       []string  `json:"allowlist,omitempty"`

	MaxPayoutPercent uint32 `json:"max_payout_percent,omitempty"`
	MinFillPercent   uint32 `json:"min_fill_percent,omitempty"`

	DerivativeType string    `json:"derivative_type,omitempty"`
	Expiry         time.Time `json:"expiry,omitzero"`
}

// Response reports the outcome of a Request. Kind is the error kind when Success is false.
type Response struct {
	Type           string `json:"type"`
	Success        bool   `json:"success"`
	Message        string `json:"message,omitempty"`
	Kind           string `json:"kind,omitempty"`
	Result         any    `json:"result,omitempty"`
	ProcessingTime int64  `json:"processing_time_ms"`
}

type LotResult struct {
	LotID uint64 `json:"lot_id"`
}

type BidResult struct {
	BidID uint64 `json:"bid_id"`
}

type AmountResult struct {
	Amount string `json:"amount"`
	Token  string `json:"token"`
}

type ProceedsResult struct {
	Proceeds string `json:"proceeds"`
	Refund   string `json:"refund"`
}

type SettlementResult struct {
	TotalIn       string        `json:"total_in"`
	TotalOut      string        `json:"total_out"`
	PartialBidder string        `json:"partial_bidder,omitempty"`
	Receipt       ReceiptBase64 `json:"receipt,omitempty"`
}

type ReceiptKeyResult struct {
	PublicKey string `json:"public_key"` // PEM format
}

// LotView is the public state of a lot.
type LotView struct {
	LotID      uint64            `json:"lot_id"`
	Seller     string            `json:"seller"`
	Base       string            `json:"base"`
	Quote      string            `json:"quote"`
	Auction    string            `json:"auction"`
	Derivative string            `json:"derivative,omitempty"`
	Status     string            `json:"status"`
	Prefunded  bool              `json:"prefunded"`
	Funding    string            `json:"funding"`
	Proceeds   string            `json:"proceeds"`
	Curator    string            `json:"curator,omitempty"`
	Curated    bool              `json:"curated"`
	Fees       map[string]uint32 `json:"fees,omitempty"`
	Receipt    ReceiptBase64     `json:"receipt,omitempty"`
}
