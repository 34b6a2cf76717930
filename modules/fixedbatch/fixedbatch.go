// Package fixedbatch is a batch auction module that fills bids at a constant price in arrival order
// once the lot concludes.
package fixedbatch

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cloudx-io/auctionhouse/chain"
	"github.com/cloudx-io/auctionhouse/core"
	"github.com/cloudx-io/auctionhouse/modules"
)

// Keycode is the module family of fixed price batch sales.
const Keycode core.Keycode = "FPB"

// Params are the implementation params of a fixed price batch lot.
type Params struct {
	// Price is the quote amount, in quote units, for one whole base token.
	Price *big.Int `cbor:"price"`
	// MinFillPercent is the share of capacity, in core.FeeBasis units, that must sell for the lot to
	// fill at all. Below it every bid is refunded.
	MinFillPercent uint32 `cbor:"min_fill_percent"`
}

type outcome struct {
	paid   *big.Int
	payout *big.Int
}

type lot struct {
	data     core.LotData
	price    *big.Int
	minFill  *big.Int
	bids     []core.Bid // bid id i is at index i-1
	outcomes map[uint64]outcome
}

// Module implements modules.BatchAuction.
type Module struct {
	veecode core.Veecode
	clock   chain.Clock
	journal *chain.Journal
	lots    map[uint64]*lot
}

var _ modules.BatchAuction = (*Module)(nil)

// New returns version of the fixed price batch module.
func New(version uint8, clock chain.Clock, journal *chain.Journal) *Module {
	return &Module{
		veecode: core.NewVeecode(Keycode, version),
		clock:   clock,
		journal: journal,
		lots:    make(map[uint64]*lot),
	}
}

func (m *Module) Veecode() core.Veecode    { return m.veecode }
func (m *Module) Type() core.AuctionType   { return core.AuctionTypeBatch }
func (m *Module) RequiresPrefunding() bool { return true }

func (m *Module) Auction(ctx context.Context, lotID uint64, params modules.AuctionParams, quoteDecimals, baseDecimals uint8) error {
	if _, ok := m.lots[lotID]; ok {
		return fmt.Errorf("%w: lot %d already registered", core.ErrInvalidParams, lotID)
	}
	var p Params
	if err := modules.DecodeParams(params.ImplParams, &p); err != nil {
		return err
	}
	if !core.IsPositive(p.Price) {
		return fmt.Errorf("%w: price must be positive", core.ErrInvalidParams)
	}
	if p.MinFillPercent > core.FeeBasis {
		return fmt.Errorf("%w: min fill percent %d", core.ErrInvalidParams, p.MinFillPercent)
	}
	if params.CapacityInQuote {
		return fmt.Errorf("%w: batch capacity must be in base", core.ErrInvalidParams)
	}

	data, err := modules.NewLotData(m.clock.Now(), params, quoteDecimals, baseDecimals)
	if err != nil {
		return err
	}

	m.lots[lotID] = &lot{
		data:     data,
		price:    core.Copy(p.Price),
		minFill:  core.FeeAmount(params.Capacity, p.MinFillPercent),
		outcomes: make(map[uint64]outcome),
	}
	m.journal.Record(func() { delete(m.lots, lotID) })
	return nil
}

func (m *Module) CancelAuction(ctx context.Context, lotID uint64) error {
	l, err := m.lot(lotID)
	if err != nil {
		return err
	}
	now := m.clock.Now()
	switch l.data.Status(now) {
	case core.LotCancelled:
		return core.ErrLotCancelled
	case core.LotSettled:
		return core.ErrLotSettled
	case core.LotActive, core.LotConcluded:
		// Bids are already in custody; only lots that have not started can be withdrawn.
		return fmt.Errorf("batch lot %d already started: %w", lotID, core.ErrInvalidState)
	}

	m.updateData(l, func(d *core.LotData) {
		d.Cancelled = true
		d.Conclusion = now
	})
	return nil
}

func (m *Module) Lot(lotID uint64) (core.LotData, error) {
	l, err := m.lot(lotID)
	if err != nil {
		return core.LotData{}, err
	}
	return l.data, nil
}

func (m *Module) Bid(ctx context.Context, lotID uint64, bidder, referrer common.Address, amount *big.Int, data []byte) (uint64, error) {
	l, err := m.lot(lotID)
	if err != nil {
		return 0, err
	}
	if !l.data.IsLive(m.clock.Now()) {
		return 0, core.ErrLotNotLive
	}
	if !core.IsPositive(amount) {
		return 0, fmt.Errorf("bid: %w", core.ErrZeroAmount)
	}

	l.bids = append(l.bids, core.Bid{
		ID:       uint64(len(l.bids) + 1),
		Bidder:   bidder,
		Referrer: referrer,
		Amount:   core.Copy(amount),
		State:    core.BidSubmitted,
	})
	m.journal.Record(func() { l.bids = l.bids[:len(l.bids)-1] })
	return uint64(len(l.bids)), nil
}

func (m *Module) CancelBid(ctx context.Context, lotID, bidID uint64, caller common.Address) error {
	l, b, err := m.bid(lotID, bidID)
	if err != nil {
		return err
	}
	if b.Bidder != caller {
		return core.ErrNotBidder
	}
	if !l.data.IsLive(m.clock.Now()) {
		return core.ErrLotNotLive
	}
	switch b.State {
	case core.BidSubmitted:
	case core.BidCancelled, core.BidRefunded:
		return core.ErrBidCancelled
	default:
		return core.ErrBidAlreadyClaimed
	}

	m.setState(l, bidID, core.BidCancelled)
	return nil
}

// RefundBid releases a cancelled bid's payment. After settlement, cancelled bids are claimed through
// ClaimBids instead.
func (m *Module) RefundBid(ctx context.Context, lotID, bidID uint64, caller common.Address) (*big.Int, error) {
	l, b, err := m.bid(lotID, bidID)
	if err != nil {
		return nil, err
	}
	if b.Bidder != caller {
		return nil, core.ErrNotBidder
	}
	switch b.State {
	case core.BidRefunded, core.BidClaimed:
		return nil, core.ErrBidAlreadyClaimed
	case core.BidSubmitted:
		return nil, core.ErrBidNotCancelled
	}
	if l.data.Settled {
		return nil, core.ErrLotSettled
	}

	m.setState(l, bidID, core.BidRefunded)
	return core.Copy(b.Amount), nil
}

// Settle fills submitted bids in id order until capacity runs out. The bid that crosses the capacity
// boundary is filled partially and paid out during settlement. If less than the minimum fill sells,
// nothing fills and every bid is refunded through ClaimBids.
func (m *Module) Settle(ctx context.Context, lotID uint64) (core.Settlement, error) {
	l, err := m.lot(lotID)
	if err != nil {
		return core.Settlement{}, err
	}
	switch l.data.Status(m.clock.Now()) {
	case core.LotCancelled:
		return core.Settlement{}, core.ErrLotCancelled
	case core.LotSettled:
		return core.Settlement{}, core.ErrLotSettled
	case core.LotCreated, core.LotActive:
		return core.Settlement{}, core.ErrLotNotConcluded
	}

	s := core.Settlement{
		TotalIn:      new(big.Int),
		TotalOut:     new(big.Int),
		RefundPaid:   new(big.Int),
		RefundAmount: new(big.Int),
		RefundPayout: new(big.Int),
	}
	outcomes := make(map[uint64]outcome)
	var partialID uint64
	remaining := core.Copy(l.data.Capacity)
	unit := core.Pow10(l.data.BaseDecimals)

	for _, b := range l.bids {
		if b.State != core.BidSubmitted || remaining.Sign() == 0 {
			continue
		}
		payout := core.MulDiv(b.Amount, unit, l.price)
		if payout.Sign() == 0 {
			continue
		}
		if payout.Cmp(remaining) <= 0 {
			outcomes[b.ID] = outcome{paid: core.Copy(b.Amount), payout: payout}
			s.TotalIn.Add(s.TotalIn, b.Amount)
			s.TotalOut.Add(s.TotalOut, payout)
			remaining.Sub(remaining, payout)
			continue
		}

		paid := core.MulDivUp(remaining, l.price, unit)
		if paid.Cmp(b.Amount) > 0 {
			paid = core.Copy(b.Amount)
		}
		partialID = b.ID
		s.RefundBidder = b.Bidder
		s.RefundReferrer = b.Referrer
		s.RefundPaid = paid
		s.RefundAmount = new(big.Int).Sub(b.Amount, paid)
		s.RefundPayout = core.Copy(remaining)
		s.TotalIn.Add(s.TotalIn, paid)
		s.TotalOut.Add(s.TotalOut, remaining)
		remaining.SetInt64(0)
	}

	if s.TotalOut.Cmp(l.minFill) < 0 {
		s = core.Settlement{
			TotalIn:      new(big.Int),
			TotalOut:     new(big.Int),
			RefundPaid:   new(big.Int),
			RefundAmount: new(big.Int),
			RefundPayout: new(big.Int),
		}
		outcomes = make(map[uint64]outcome)
		partialID = 0
	}

	prevOutcomes := l.outcomes
	m.journal.Record(func() { l.outcomes = prevOutcomes })
	l.outcomes = outcomes
	if partialID != 0 {
		m.setState(l, partialID, core.BidClaimed)
	}
	m.updateData(l, func(d *core.LotData) {
		d.Settled = true
		d.Sold = core.Copy(s.TotalOut)
		d.Purchased = core.Copy(s.TotalIn)
	})
	return s, nil
}

// ClaimBids returns each bid's outcome and marks it final. Losing and cancelled-unrefunded bids come
// back with their full amount as Paid and a zero Payout.
func (m *Module) ClaimBids(ctx context.Context, lotID uint64, bidIDs []uint64) ([]core.BidClaim, error) {
	l, err := m.lot(lotID)
	if err != nil {
		return nil, err
	}
	if !l.data.Settled {
		return nil, core.ErrLotNotSettled
	}

	claims := make([]core.BidClaim, 0, len(bidIDs))
	for _, id := range bidIDs {
		_, b, err := m.bid(lotID, id)
		if err != nil {
			return nil, err
		}

		claim := core.BidClaim{
			BidID:    b.ID,
			Bidder:   b.Bidder,
			Referrer: b.Referrer,
			Paid:     core.Copy(b.Amount),
			Payout:   new(big.Int),
		}
		switch b.State {
		case core.BidSubmitted:
			if o, ok := l.outcomes[id]; ok {
				claim.Paid = core.Copy(o.paid)
				claim.Payout = core.Copy(o.payout)
			}
			m.setState(l, id, core.BidClaimed)
		case core.BidCancelled:
			m.setState(l, id, core.BidRefunded)
		default:
			return nil, fmt.Errorf("bid %d: %w", id, core.ErrBidAlreadyClaimed)
		}
		claims = append(claims, claim)
	}
	return claims, nil
}

func (m *Module) GetBid(lotID, bidID uint64) (core.Bid, error) {
	_, b, err := m.bid(lotID, bidID)
	if err != nil {
		return core.Bid{}, err
	}
	b.Amount = core.Copy(b.Amount)
	return b, nil
}

func (m *Module) Bids(lotID uint64) ([]core.Bid, error) {
	l, err := m.lot(lotID)
	if err != nil {
		return nil, err
	}
	bids := make([]core.Bid, len(l.bids))
	for i, b := range l.bids {
		b.Amount = core.Copy(b.Amount)
		bids[i] = b
	}
	return bids, nil
}

func (m *Module) lot(lotID uint64) (*lot, error) {
	l, ok := m.lots[lotID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", core.ErrInvalidLotID, lotID)
	}
	return l, nil
}

func (m *Module) bid(lotID, bidID uint64) (*lot, core.Bid, error) {
	l, err := m.lot(lotID)
	if err != nil {
		return nil, core.Bid{}, err
	}
	if bidID == 0 || bidID > uint64(len(l.bids)) {
		return nil, core.Bid{}, fmt.Errorf("lot %d bid %d: %w", lotID, bidID, core.ErrInvalidBidID)
	}
	return l, l.bids[bidID-1], nil
}

func (m *Module) setState(l *lot, bidID uint64, state core.BidState) {
	i := bidID - 1
	prev := l.bids[i].State
	m.journal.Record(func() { l.bids[i].State = prev })
	l.bids[i].State = state
}

func (m *Module) updateData(l *lot, update func(*core.LotData)) {
	prev := l.data
	m.journal.Record(func() { l.data = prev })
	update(&l.data)
}
