// Package engine is the settlement and accounting engine of the auction house. It routes purchases
// and bids through auction modules, applies fee splits, moves payment and payout tokens and keeps
// per-lot funding consistent across every flow.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cloudx-io/auctionhouse/chain"
	"github.com/cloudx-io/auctionhouse/core"
	"github.com/cloudx-io/auctionhouse/fees"
	"github.com/cloudx-io/auctionhouse/funding"
	"github.com/cloudx-io/auctionhouse/modules"
	"github.com/cloudx-io/auctionhouse/permit"
)

// Allowlist restricts who may purchase or bid on a lot.
type Allowlist interface {
	Register(lotID uint64, params []byte) error
	IsAllowed(lotID uint64, buyer common.Address, proof []byte) (bool, error)
}

// SettlementSigner produces a signed receipt for a settled batch lot.
type SettlementSigner interface {
	SignSettlement(lotID uint64, s core.Settlement, bids []core.Bid) ([]byte, error)
}

// Config wires an Engine to its collaborators. Journal, Clock, Registry and Fees are required.
type Config struct {
	// Address is the engine's custody address on every token.
	Address   common.Address
	Clock     chain.Clock
	Journal   *chain.Journal
	Logger    *zap.Logger
	Registry  *modules.Registry
	Fees      *fees.Ledger
	Funding   *funding.Tracker
	Permit2   *permit.Permit2
	Allowlist Allowlist
	Receipts  SettlementSigner
}

// Engine executes auction house operations. Each exported operation is atomic: on error every state
// change it made, in the engine and in journaled collaborators, is rolled back.
//
// An Engine is not safe for concurrent use. Callers serialize operations; hooks and modules may
// re-enter synchronously, but not into a lot whose operation is in flight.
type Engine struct {
	address   common.Address
	clock     chain.Clock
	journal   *chain.Journal
	logger    *zap.Logger
	registry  *modules.Registry
	fees      *fees.Ledger
	funding   *funding.Tracker
	permit    *permit.Permit2
	allowlist Allowlist
	receipts  SettlementSigner

	lots     []*Lot
	inFlight map[uint64]bool
}

// New returns an engine with no lots.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tracker := cfg.Funding
	if tracker == nil {
		tracker = funding.NewTracker(cfg.Journal, logger)
	}
	return &Engine{
		address:   cfg.Address,
		clock:     cfg.Clock,
		journal:   cfg.Journal,
		logger:    logger,
		registry:  cfg.Registry,
		fees:      cfg.Fees,
		funding:   tracker,
		permit:    cfg.Permit2,
		allowlist: cfg.Allowlist,
		receipts:  cfg.Receipts,
		inFlight:  make(map[uint64]bool),
	}
}

// Address is the engine's custody address.
func (e *Engine) Address() common.Address { return e.address }

const noLot uint64 = math.MaxUint64

// ErrPanicked wraps a panic recovered from a collaborator. It is outside the error taxonomy and
// reports kind "external".
var ErrPanicked = errors.New("collaborator panicked")

// execute runs fn as one atomic operation: an error or a panic reverts everything fn recorded. For
// lot operations it holds the lot's re-entrancy guard for the whole call.
func (e *Engine) execute(ctx context.Context, op string, lotID uint64, fn func(log *zap.Logger) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	log := e.logger.With(zap.String("op", op), zap.String("op_id", uuid.NewString()))
	if lotID != noLot {
		if e.inFlight[lotID] {
			return fmt.Errorf("%s lot %d: %w", op, lotID, core.ErrReentrancy)
		}
		e.inFlight[lotID] = true
		defer delete(e.inFlight, lotID)
		log = log.With(zap.Uint64("lot_id", lotID))
	}

	snap := e.journal.Snapshot()
	if err := e.journal.End(snap, run(log, fn)); err != nil {
		log.Warn("operation reverted", zap.String("kind", core.KindOf(err)), zap.Error(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// run calls fn and turns a panic raised by a hook or module into an error, so the caller's journal
// scope is always closed.
func run(log *zap.Logger, fn func(log *zap.Logger) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("operation panicked", zap.Any("panic", r), zap.Stack("stack"))
			err = fmt.Errorf("%w: %v", ErrPanicked, r)
		}
	}()
	return fn(log)
}

func (e *Engine) lot(lotID uint64) (*Lot, error) {
	if lotID >= uint64(len(e.lots)) {
		return nil, fmt.Errorf("%w: %d", core.ErrInvalidLotID, lotID)
	}
	return e.lots[lotID], nil
}

// update mutates l through fn and journals the previous value. Amount fields are replaced, never
// mutated in place, so a shallow copy is a complete snapshot.
func (e *Engine) update(l *Lot, fn func(*Lot)) {
	prev := *l
	e.journal.Record(func() { *l = prev })
	fn(l)
}

func (e *Engine) auctionModule(l *Lot) (modules.AuctionModule, error) {
	m, err := e.registry.Get(l.AuctionRef)
	if err != nil {
		return nil, err
	}
	am, ok := m.(modules.AuctionModule)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an auction module", core.ErrInvalidParams, l.AuctionRef)
	}
	return am, nil
}

func (e *Engine) atomicModule(l *Lot) (modules.AtomicAuction, error) {
	m, err := e.auctionModule(l)
	if err != nil {
		return nil, err
	}
	am, ok := m.(modules.AtomicAuction)
	if !ok || m.Type() != core.AuctionTypeAtomic {
		return nil, fmt.Errorf("lot %d is %s: %w", l.ID, m.Type(), core.ErrUnsupportedAuctionType)
	}
	return am, nil
}

func (e *Engine) batchModule(l *Lot) (modules.BatchAuction, error) {
	m, err := e.auctionModule(l)
	if err != nil {
		return nil, err
	}
	bm, ok := m.(modules.BatchAuction)
	if !ok || m.Type() != core.AuctionTypeBatch {
		return nil, fmt.Errorf("lot %d is %s: %w", l.ID, m.Type(), core.ErrUnsupportedAuctionType)
	}
	return bm, nil
}

// lotFees returns the fee snapshot of l, caching the live schedule on first use.
func (e *Engine) lotFees(l *Lot) core.FeeSnapshot {
	if l.Fees != nil {
		return *l.Fees
	}
	snap := e.fees.Fees(l.AuctionRef.Keycode()).Snapshot()
	e.update(l, func(l *Lot) { l.Fees = &snap })
	return snap
}

// creditFees credits the referrer and protocol shares of split in the lot's quote token.
func (e *Engine) creditFees(l *Lot, referrer common.Address, split core.FeeSplit) {
	quote := l.QuoteToken.Address()
	e.fees.Credit(referrer, quote, split.ToReferrer)
	e.fees.Credit(e.fees.Protocol(), quote, split.ToProtocol)
}

// curatorHeld is the part of lot funding reserved for an unpaid curator.
func curatorHeld(l *Lot) *big.Int {
	if !l.Curation.Curated || l.Curation.Claimed {
		return new(big.Int)
	}
	return core.Copy(l.Curation.Reserve)
}

// Lot returns a copy of the engine record for lotID.
func (e *Engine) Lot(lotID uint64) (Lot, error) {
	l, err := e.lot(lotID)
	if err != nil {
		return Lot{}, err
	}
	return l.clone(), nil
}

// LotCount returns how many lots were created.
func (e *Engine) LotCount() uint64 { return uint64(len(e.lots)) }

// LotFees returns the fee snapshot cached on lotID, or false if none was taken yet.
func (e *Engine) LotFees(lotID uint64) (core.FeeSnapshot, bool, error) {
	l, err := e.lot(lotID)
	if err != nil {
		return core.FeeSnapshot{}, false, err
	}
	if l.Fees == nil {
		return core.FeeSnapshot{}, false, nil
	}
	return *l.Fees, true, nil
}

// LotStatus derives the lifecycle state of lotID from its auction module.
func (e *Engine) LotStatus(lotID uint64) (core.LotStatus, error) {
	l, err := e.lot(lotID)
	if err != nil {
		return 0, err
	}
	m, err := e.auctionModule(l)
	if err != nil {
		return 0, err
	}
	data, err := m.Lot(lotID)
	if err != nil {
		return 0, err
	}
	return data.Status(e.clock.Now()), nil
}

// Funding returns the base token custodied for lotID.
func (e *Engine) Funding(lotID uint64) *big.Int { return e.funding.Balance(lotID) }

// Reward returns what beneficiary can claim in tok.
func (e *Engine) Reward(beneficiary, tok common.Address) *big.Int {
	return e.fees.Reward(beneficiary, tok)
}
