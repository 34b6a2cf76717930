package fees

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cloudx-io/auctionhouse/chain"
	"github.com/cloudx-io/auctionhouse/core"
)

type rewardKey struct {
	beneficiary common.Address
	token       common.Address
}

// Rewards tracks fees owed per (beneficiary, token).
type Rewards struct {
	journal  *chain.Journal
	balances map[rewardKey]*big.Int
}

// NewRewards returns an empty rewards ledger.
func NewRewards(journal *chain.Journal) *Rewards {
	return &Rewards{journal: journal, balances: make(map[rewardKey]*big.Int)}
}

// Credit adds amount to beneficiary's rewards in token. Non-positive amounts are ignored.
func (r *Rewards) Credit(beneficiary, token common.Address, amount *big.Int) {
	if !core.IsPositive(amount) {
		return
	}
	key := rewardKey{beneficiary, token}
	r.set(key, new(big.Int).Add(core.Copy(r.balances[key]), amount))
}

// Reward returns what beneficiary can currently claim in token.
func (r *Rewards) Reward(beneficiary, token common.Address) *big.Int {
	return core.Copy(r.balances[rewardKey{beneficiary, token}])
}

// Drain zeroes beneficiary's rewards in token and returns the previous balance.
func (r *Rewards) Drain(beneficiary, token common.Address) *big.Int {
	key := rewardKey{beneficiary, token}
	amount := core.Copy(r.balances[key])
	if amount.Sign() == 0 {
		return amount
	}
	r.set(key, nil)
	return amount
}

func (r *Rewards) set(key rewardKey, v *big.Int) {
	prev, had := r.balances[key]
	r.journal.Record(func() {
		if had {
			r.balances[key] = prev
		} else {
			delete(r.balances, key)
		}
	})
	if v == nil {
		delete(r.balances, key)
		return
	}
	r.balances[key] = v
}
