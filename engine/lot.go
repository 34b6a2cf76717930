package engine

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cloudx-io/auctionhouse/core"
	"github.com/cloudx-io/auctionhouse/hooks"
	"github.com/cloudx-io/auctionhouse/permit"
	"github.com/cloudx-io/auctionhouse/token"
)

// Lot is the engine's record of a listed auction. Timing and fill state live in the auction module.
type Lot struct {
	ID         uint64
	Seller     common.Address
	BaseToken  token.Token
	QuoteToken token.Token
	Created    time.Time

	AuctionRef       core.Veecode
	DerivativeRef    core.Veecode
	DerivativeParams []byte
	Wrap             bool

	Callbacks   hooks.Callbacks
	Permissions core.Permissions

	Curation core.Curation
	// Fees is nil until the first purchase or bid caches the schedule.
	Fees *core.FeeSnapshot

	Prefunded bool
	// Capacity is the base capacity deposited at creation; zero for lots that are not prefunded.
	Capacity *big.Int
	// Proceeds is quote owed to the seller from claimed batch bids.
	Proceeds *big.Int
	// RefundClaimed marks that a prefunded atomic lot returned its unsold capacity.
	RefundClaimed bool

	HasAllowlist  bool
	AuctionOutput []byte
	Receipt       []byte
}

func (l *Lot) clone() Lot {
	c := *l
	c.Capacity = core.Copy(l.Capacity)
	c.Proceeds = core.Copy(l.Proceeds)
	c.Curation.Reserve = core.Copy(l.Curation.Reserve)
	if l.Fees != nil {
		f := *l.Fees
		c.Fees = &f
	}
	return c
}

func (l *Lot) hooks() hooks.Dispatcher {
	return hooks.NewDispatcher(l.Callbacks, l.Permissions)
}

// RoutingParams select the modules, tokens and optional features of a new lot.
type RoutingParams struct {
	AuctionType core.Keycode
	BaseToken   token.Token
	QuoteToken  token.Token

	// Curator may curate the lot for a fee. Zero means no curator.
	Curator      common.Address
	Callbacks    hooks.Callbacks
	CallbackData []byte

	AllowlistParams []byte

	// DerivativeType wraps payouts in a derivative when set.
	DerivativeType   core.Keycode
	DerivativeParams []byte
	Wrap             bool

	// Prefunded deposits capacity at creation even when the auction module does not require it.
	Prefunded bool
}

// PurchaseParams describe an atomic purchase.
type PurchaseParams struct {
	LotID uint64
	Buyer common.Address
	// Recipient receives the payout. Zero means Buyer.
	Recipient      common.Address
	Referrer       common.Address
	Amount         *big.Int
	MinAmountOut   *big.Int
	AuctionData    []byte
	AllowlistProof []byte
	// Permit authorizes the payment pull by signature instead of a standing allowance.
	Permit *permit.Approval
}

// BidParams describe a batch bid.
type BidParams struct {
	LotID          uint64
	Bidder         common.Address
	Referrer       common.Address
	Amount         *big.Int
	AuctionData    []byte
	AllowlistProof []byte
	Permit         *permit.Approval
}
