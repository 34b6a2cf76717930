// Package fixedprice is an atomic auction module that sells base tokens at a constant price.
package fixedprice

import (
	"context"
	"fmt"
	"math/big"

	"github.com/cloudx-io/auctionhouse/chain"
	"github.com/cloudx-io/auctionhouse/core"
	"github.com/cloudx-io/auctionhouse/modules"
)

// Keycode is the module family of fixed price sales.
const Keycode core.Keycode = "FPS"

// Params are the implementation params of a fixed price lot.
type Params struct {
	// Price is the quote amount, in quote units, for one whole base token.
	Price *big.Int `cbor:"price"`
	// MaxPayoutPercent caps a single purchase's payout as a share of capacity, in core.FeeBasis
	// units. Zero means no cap.
	MaxPayoutPercent uint32 `cbor:"max_payout_percent"`
}

type lot struct {
	data      core.LotData
	price     *big.Int
	maxPayout *big.Int
}

// Module implements modules.AtomicAuction.
type Module struct {
	veecode core.Veecode
	clock   chain.Clock
	journal *chain.Journal
	lots    map[uint64]lot
}

var _ modules.AtomicAuction = (*Module)(nil)

// New returns version of the fixed price module.
func New(version uint8, clock chain.Clock, journal *chain.Journal) *Module {
	return &Module{
		veecode: core.NewVeecode(Keycode, version),
		clock:   clock,
		journal: journal,
		lots:    make(map[uint64]lot),
	}
}

func (m *Module) Veecode() core.Veecode    { return m.veecode }
func (m *Module) Type() core.AuctionType   { return core.AuctionTypeAtomic }
func (m *Module) RequiresPrefunding() bool { return false }

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
	if p.MaxPayoutPercent > core.FeeBasis {
		return fmt.Errorf("%w: max payout percent %d", core.ErrInvalidParams, p.MaxPayoutPercent)
	}

	data, err := modules.NewLotData(m.clock.Now(), params, quoteDecimals, baseDecimals)
	if err != nil {
		return err
	}

	capacityInBase := core.Copy(params.Capacity)
	if params.CapacityInQuote {
		capacityInBase = payoutFor(params.Capacity, p.Price, baseDecimals)
	}
	maxPayout := capacityInBase
	if p.MaxPayoutPercent > 0 {
		maxPayout = core.FeeAmount(capacityInBase, p.MaxPayoutPercent)
	}

	m.set(lotID, lot{data: data, price: core.Copy(p.Price), maxPayout: maxPayout})
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
	case core.LotConcluded:
		return core.ErrLotConcluded
	}

	l.data.Cancelled = true
	l.data.Conclusion = now
	m.set(lotID, l)
	return nil
}

func (m *Module) Lot(lotID uint64) (core.LotData, error) {
	l, err := m.lot(lotID)
	if err != nil {
		return core.LotData{}, err
	}
	return l.data, nil
}

// Purchase converts amount at the lot's price. The payout is bounded by the per-purchase cap and the
// remaining capacity.
func (m *Module) Purchase(ctx context.Context, lotID uint64, amount *big.Int, data []byte) (*big.Int, []byte, error) {
	l, err := m.lot(lotID)
	if err != nil {
		return nil, nil, err
	}
	if !l.data.IsLive(m.clock.Now()) {
		return nil, nil, core.ErrLotNotLive
	}

	payout := payoutFor(amount, l.price, l.data.BaseDecimals)
	if payout.Sign() == 0 {
		return nil, nil, fmt.Errorf("purchase of %s pays nothing: %w", amount, core.ErrZeroAmount)
	}
	if payout.Cmp(l.maxPayout) > 0 {
		return nil, nil, fmt.Errorf("%w: payout %s exceeds max %s", core.ErrInvalidParams, payout, l.maxPayout)
	}

	sold := new(big.Int).Add(l.data.Sold, payout)
	purchased := new(big.Int).Add(l.data.Purchased, amount)
	if l.data.CapacityInQuote {
		if purchased.Cmp(l.data.Capacity) > 0 {
			return nil, nil, fmt.Errorf("%w: purchase exceeds remaining quote capacity", core.ErrInvalidParams)
		}
	} else if sold.Cmp(l.data.Capacity) > 0 {
		return nil, nil, fmt.Errorf("%w: payout exceeds remaining capacity", core.ErrInvalidParams)
	}

	l.data.Sold = sold
	l.data.Purchased = purchased
	m.set(lotID, l)
	return payout, nil, nil
}

// PayoutFor quotes the base payout for amount of quote without purchasing.
func (m *Module) PayoutFor(lotID uint64, amount *big.Int) (*big.Int, error) {
	l, err := m.lot(lotID)
	if err != nil {
		return nil, err
	}
	return payoutFor(amount, l.price, l.data.BaseDecimals), nil
}

func payoutFor(amount, price *big.Int, baseDecimals uint8) *big.Int {
	return core.MulDiv(amount, core.Pow10(baseDecimals), price)
}

func (m *Module) lot(lotID uint64) (lot, error) {
	l, ok := m.lots[lotID]
	if !ok {
		return lot{}, fmt.Errorf("%w: %d", core.ErrInvalidLotID, lotID)
	}
	return l, nil
}

func (m *Module) set(lotID uint64, l lot) {
	prev, had := m.lots[lotID]
	m.journal.Record(func() {
		if had {
			m.lots[lotID] = prev
		} else {
			delete(m.lots, lotID)
		}
	})
	m.lots[lotID] = l
}
