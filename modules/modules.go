// Package modules defines the auction, derivative and condenser collaborators the engine routes
// lots through, and the registry that resolves versioned references to them.
package modules

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cloudx-io/auctionhouse/core"
)

// AuctionParams are the lot parameters every auction module accepts. ImplParams is the module-specific
// CBOR payload.
type AuctionParams struct {
	Start           time.Time     `json:"start"`
	Duration        time.Duration `json:"duration"`
	Capacity        *big.Int      `json:"capacity"`
	CapacityInQuote bool          `json:"capacity_in_quote"`
	ImplParams      []byte        `json:"impl_params"`
}

// Module is anything the registry can install.
type Module interface {
	Veecode() core.Veecode
}

// AuctionModule is the common surface of atomic and batch auction modules.
type AuctionModule interface {
	Module
	Type() core.AuctionType

	// Auction registers lotID with the module. Start zero means the current time.
	Auction(ctx context.Context, lotID uint64, params AuctionParams, quoteDecimals, baseDecimals uint8) error
	// CancelAuction ends the lot early; modules reject cancellation once they no longer allow it.
	CancelAuction(ctx context.Context, lotID uint64) error
	// Lot returns the module's view of lotID.
	Lot(lotID uint64) (core.LotData, error)
	// RequiresPrefunding reports whether lots must deposit capacity at creation.
	RequiresPrefunding() bool
}

// AtomicAuction modules fill purchases at call time.
type AtomicAuction interface {
	AuctionModule
	// Purchase fills amount (quote, net of fees) and returns the base payout and module output.
	Purchase(ctx context.Context, lotID uint64, amount *big.Int, data []byte) (payout *big.Int, output []byte, err error)
}

// BatchAuction modules collect bids and settle them together after the lot concludes.
type BatchAuction interface {
	AuctionModule
	Bid(ctx context.Context, lotID uint64, bidder, referrer common.Address, amount *big.Int, data []byte) (bidID uint64, err error)
	// CancelBid withdraws a submitted bid while the lot is live.
	CancelBid(ctx context.Context, lotID, bidID uint64, caller common.Address) error
	// RefundBid marks a cancelled bid refunded and returns the amount owed back to the bidder.
	RefundBid(ctx context.Context, lotID, bidID uint64, caller common.Address) (*big.Int, error)
	Settle(ctx context.Context, lotID uint64) (core.Settlement, error)
	// ClaimBids transitions each bid to its final state and returns the outcome to pay out.
	ClaimBids(ctx context.Context, lotID uint64, bidIDs []uint64) ([]core.BidClaim, error)
	GetBid(lotID, bidID uint64) (core.Bid, error)
	// Bids lists every bid of lotID in id order.
	Bids(lotID uint64) ([]core.Bid, error)
}

// Derivative modules wrap base token payouts into derivative positions.
type Derivative interface {
	Module
	// Address is the custody address the engine deposits underlying base tokens to.
	Address() common.Address
	// Mint issues amount of the derivative to recipient. The engine has already moved amount of base
	// into Address().
	Mint(ctx context.Context, recipient common.Address, base common.Address, amount *big.Int, params []byte, wrap bool) error
}

// Condenser merges an auction module's output with a lot's derivative params into the derivative's
// input format.
type Condenser interface {
	Condense(auctionOutput, derivativeParams []byte) ([]byte, error)
}
