package core

import (
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// AuctionType is the settlement flow an auction module implements.
type AuctionType uint8

const (
	// AuctionTypeAtomic modules fill a purchase immediately at call time.
	AuctionTypeAtomic AuctionType = iota + 1
	// AuctionTypeBatch modules collect bids and settle them together after conclusion.
	AuctionTypeBatch
)

func (t AuctionType) String() string {
	switch t {
	case AuctionTypeAtomic:
		return "atomic"
	case AuctionTypeBatch:
		return "batch"
	default:
		return "unknown"
	}
}

// Keycode identifies a module family independent of version, e.g. "FPS".
type Keycode string

// Veecode is a versioned module reference: two-digit version followed by the keycode, e.g. "01FPS".
// The engine stores and forwards veecodes without interpreting them beyond this split.
type Veecode string

// NewVeecode builds the veecode for version of keycode.
func NewVeecode(keycode Keycode, version uint8) Veecode {
	return Veecode(fmt.Sprintf("%02d%s", version, keycode))
}

// Keycode returns the module family of the reference.
func (v Veecode) Keycode() Keycode {
	if len(v) < 3 {
		return ""
	}
	return Keycode(v[2:])
}

// Version returns the module version of the reference, or 0 if malformed.
func (v Veecode) Version() uint8 {
	if len(v) < 3 {
		return 0
	}
	n, err := strconv.ParseUint(string(v[:2]), 10, 8)
	if err != nil {
		return 0
	}
	return uint8(n)
}

// IsZero reports whether the reference is unset.
func (v Veecode) IsZero() bool { return v == "" }

// Permission is a single callback capability a hook contract can opt into.
type Permission uint8

const (
	PermOnCreate Permission = 1 << iota
	PermOnCancel
	PermOnCurate
	PermOnPurchase
	PermOnBid
	PermOnClaimProceeds
	PermReceiveQuoteTokens
	PermSendBaseTokens
)

// AllPermissions lists every permission flag in bit order.
var AllPermissions = []Permission{
	PermOnCreate,
	PermOnCancel,
	PermOnCurate,
	PermOnPurchase,
	PermOnBid,
	PermOnClaimProceeds,
	PermReceiveQuoteTokens,
	PermSendBaseTokens,
}

func (p Permission) String() string {
	switch p {
	case PermOnCreate:
		return "onCreate"
	case PermOnCancel:
		return "onCancel"
	case PermOnCurate:
		return "onCurate"
	case PermOnPurchase:
		return "onPurchase"
	case PermOnBid:
		return "onBid"
	case PermOnClaimProceeds:
		return "onClaimProceeds"
	case PermReceiveQuoteTokens:
		return "receiveQuoteTokens"
	case PermSendBaseTokens:
		return "sendBaseTokens"
	default:
		return "unknown"
	}
}

// Permissions is the bitset of callback permissions stored on a lot at creation.
type Permissions uint8

// Has reports whether flag is granted.
func (p Permissions) Has(flag Permission) bool { return uint8(p)&uint8(flag) != 0 }

// With returns p with flag granted.
func (p Permissions) With(flag Permission) Permissions { return Permissions(uint8(p) | uint8(flag)) }

// Names returns the granted flags in bit order.
func (p Permissions) Names() []string {
	names := make([]string, 0, len(AllPermissions))
	for _, flag := range AllPermissions {
		if p.Has(flag) {
			names = append(names, flag.String())
		}
	}
	return names
}

// FeeKind selects an entry of a fee schedule.
type FeeKind uint8

const (
	FeeProtocol FeeKind = iota + 1
	FeeReferrer
	FeeMaxCurator
)

func (k FeeKind) String() string {
	switch k {
	case FeeProtocol:
		return "protocol"
	case FeeReferrer:
		return "referrer"
	case FeeMaxCurator:
		return "max_curator"
	default:
		return "unknown"
	}
}

// FeeSnapshot is the protocol/referrer schedule cached on a lot at its first purchase or bid.
type FeeSnapshot struct {
	Protocol uint32 `json:"protocol"`
	Referrer uint32 `json:"referrer"`
}

// FeeSplit is the result of splitting a payment between referrer, protocol and seller.
type FeeSplit struct {
	ToReferrer *big.Int
	ToProtocol *big.Int
	Net        *big.Int
}

// Curation records the optional curator of a lot.
type Curation struct {
	Curator common.Address
	Curated bool
	FeePct  uint32
	// Reserve is the base token amount held in lot funding on behalf of the curator.
	Reserve *big.Int
	Claimed bool
}

// BidState is the lifecycle of a batch bid.
type BidState uint8

const (
	BidSubmitted BidState = iota + 1
	BidCancelled
	// BidRefunded is a cancelled bid whose payment was returned.
	BidRefunded
	BidClaimed
)

func (s BidState) String() string {
	switch s {
	case BidSubmitted:
		return "submitted"
	case BidCancelled:
		return "cancelled"
	case BidRefunded:
		return "refunded"
	case BidClaimed:
		return "claimed"
	default:
		return "unknown"
	}
}

// Bid is a batch auction bid as recorded by the batch module.
type Bid struct {
	ID       uint64
	Bidder   common.Address
	Referrer common.Address
	Amount   *big.Int
	State    BidState
}

// BidClaim is the outcome of a settled bid. Payout zero means Paid is refunded in full.
type BidClaim struct {
	BidID    uint64
	Bidder   common.Address
	Referrer common.Address
	Paid     *big.Int
	Payout   *big.Int
}

// Settlement is the aggregate outcome of settling a batch lot.
type Settlement struct {
	// TotalIn is the quote amount accepted, including the filled part of a partial bid.
	TotalIn *big.Int
	// TotalOut is the base amount sold, including the partial bid's payout.
	TotalOut *big.Int

	// The Refund* fields describe the marginal bid that was only partially filled.
	// RefundBidder is the zero address when there was none.
	RefundBidder   common.Address
	RefundReferrer common.Address
	RefundPaid     *big.Int // quote amount of the partial bid that was filled
	RefundAmount   *big.Int // quote amount returned to the partial bidder
	RefundPayout   *big.Int // base amount paid to the partial bidder

	AuctionOutput []byte
}

// HasPartialFill reports whether the settlement carries a partially filled bid.
func (s Settlement) HasPartialFill() bool {
	return s.RefundBidder != (common.Address{})
}

// LotStatus is the derived lifecycle state of a lot.
type LotStatus uint8

const (
	LotCreated LotStatus = iota + 1
	LotActive
	LotConcluded
	LotCancelled
	LotSettled
)

func (s LotStatus) String() string {
	switch s {
	case LotCreated:
		return "created"
	case LotActive:
		return "active"
	case LotConcluded:
		return "concluded"
	case LotCancelled:
		return "cancelled"
	case LotSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// LotData is an auction module's view of a lot.
type LotData struct {
	Start           time.Time
	Conclusion      time.Time
	QuoteDecimals   uint8
	BaseDecimals    uint8
	Capacity        *big.Int
	CapacityInQuote bool
	Sold            *big.Int // base
	Purchased       *big.Int // quote
	Cancelled       bool
	Settled         bool
}
