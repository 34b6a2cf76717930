// Package funding tracks how much base token the engine custodies for each lot.
package funding

import (
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"github.com/cloudx-io/auctionhouse/chain"
	"github.com/cloudx-io/auctionhouse/core"
)

// Tracker is the per-lot base token custody ledger. Balances never go negative: a debit larger than
// the balance fails rather than clamping.
type Tracker struct {
	journal  *chain.Journal
	logger   *zap.Logger
	balances map[uint64]*big.Int
}

// NewTracker returns an empty tracker. A nil logger discards output.
func NewTracker(journal *chain.Journal, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		journal:  journal,
		logger:   logger,
		balances: make(map[uint64]*big.Int),
	}
}

// Balance returns the base token held for lotID.
func (t *Tracker) Balance(lotID uint64) *big.Int {
	return core.Copy(t.balances[lotID])
}

// Record adds amount to the custody of lotID.
func (t *Tracker) Record(lotID uint64, amount *big.Int) {
	if !core.IsPositive(amount) {
		return
	}
	t.set(lotID, new(big.Int).Add(t.Balance(lotID), amount))
}

// Consume removes amount from the custody of lotID.
func (t *Tracker) Consume(lotID uint64, amount *big.Int) error {
	if !core.IsPositive(amount) {
		return nil
	}
	balance := t.Balance(lotID)
	if balance.Cmp(amount) < 0 {
		t.logger.Error("lot funding would go negative",
			zap.Uint64("lot_id", lotID),
			zap.String("balance", balance.String()),
			zap.String("consume", amount.String()))
		return fmt.Errorf("%w: lot %d holds %s, consume %s", core.ErrInsufficientFunding, lotID, balance, amount)
	}
	t.set(lotID, balance.Sub(balance, amount))
	return nil
}

// Drain zeroes the custody of lotID and returns what it held.
func (t *Tracker) Drain(lotID uint64) *big.Int {
	balance := t.Balance(lotID)
	if balance.Sign() > 0 {
		t.set(lotID, new(big.Int))
	}
	return balance
}

func (t *Tracker) set(lotID uint64, v *big.Int) {
	prev, had := t.balances[lotID]
	t.journal.Record(func() {
		if had {
			t.balances[lotID] = prev
		} else {
			delete(t.balances, lotID)
		}
	})
	t.balances[lotID] = v
}
