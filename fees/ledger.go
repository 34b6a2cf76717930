// Package fees keeps the protocol fee schedule, curator fee declarations and the rewards ledger.
package fees

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cloudx-io/auctionhouse/chain"
	"github.com/cloudx-io/auctionhouse/core"
)

// Schedule is the fee configuration of one auction module family, in core.FeeBasis units.
type Schedule struct {
	Protocol   uint32 `json:"protocol" mapstructure:"protocol"`
	Referrer   uint32 `json:"referrer" mapstructure:"referrer"`
	MaxCurator uint32 `json:"max_curator" mapstructure:"max_curator"`
}

// Snapshot returns the part of the schedule cached on a lot.
func (s Schedule) Snapshot() core.FeeSnapshot {
	return core.FeeSnapshot{Protocol: s.Protocol, Referrer: s.Referrer}
}

// Validate checks the bounds every schedule must satisfy.
func (s Schedule) Validate() error {
	if uint64(s.Protocol)+uint64(s.Referrer) > uint64(core.FeeBasis) {
		return fmt.Errorf("%w: protocol %d + referrer %d exceeds %d", core.ErrInvalidFee, s.Protocol, s.Referrer, core.FeeBasis)
	}
	if s.MaxCurator > core.MaxCuratorFeeCeiling {
		return fmt.Errorf("%w: max curator %d exceeds %d", core.ErrInvalidFee, s.MaxCurator, core.MaxCuratorFeeCeiling)
	}
	return nil
}

type curatorKey struct {
	curator common.Address
	keycode core.Keycode
}

// Ledger holds owner-controlled fee configuration and the rewards owed to referrers, the protocol and
// curators.
type Ledger struct {
	owner    common.Address
	protocol common.Address
	journal  *chain.Journal

	schedules   map[core.Keycode]Schedule
	curatorFees map[curatorKey]uint32

	*Rewards
}

// NewLedger creates a ledger administered by owner whose protocol share is credited to protocol.
func NewLedger(owner, protocol common.Address, journal *chain.Journal) *Ledger {
	return &Ledger{
		owner:       owner,
		protocol:    protocol,
		journal:     journal,
		schedules:   make(map[core.Keycode]Schedule),
		curatorFees: make(map[curatorKey]uint32),
		Rewards:     NewRewards(journal),
	}
}

// Owner returns the administrator address.
func (l *Ledger) Owner() common.Address { return l.owner }

// Protocol returns the address credited with protocol fees.
func (l *Ledger) Protocol() common.Address { return l.protocol }

// Fees returns the current schedule for keycode. Unset keycodes have no fees.
func (l *Ledger) Fees(keycode core.Keycode) Schedule {
	return l.schedules[keycode]
}

// SetFee changes one entry of the schedule for keycode. Lots that already cached a snapshot are unaffected.
func (l *Ledger) SetFee(caller common.Address, keycode core.Keycode, kind core.FeeKind, value uint32) error {
	if caller != l.owner {
		return fmt.Errorf("set fee: %w", core.ErrNotOwner)
	}

	s := l.schedules[keycode]
	switch kind {
	case core.FeeProtocol:
		s.Protocol = value
	case core.FeeReferrer:
		s.Referrer = value
	case core.FeeMaxCurator:
		s.MaxCurator = value
	default:
		return fmt.Errorf("%w: unknown fee kind %d", core.ErrInvalidParams, kind)
	}
	if value > core.FeeBasis {
		return fmt.Errorf("%w: %s fee %d exceeds %d", core.ErrInvalidFee, kind, value, core.FeeBasis)
	}
	if err := s.Validate(); err != nil {
		return err
	}

	prev, had := l.schedules[keycode]
	l.journal.Record(func() {
		if had {
			l.schedules[keycode] = prev
		} else {
			delete(l.schedules, keycode)
		}
	})
	l.schedules[keycode] = s
	return nil
}

// SetProtocol changes the protocol fee recipient.
func (l *Ledger) SetProtocol(caller, protocol common.Address) error {
	if caller != l.owner {
		return fmt.Errorf("set protocol: %w", core.ErrNotOwner)
	}
	prev := l.protocol
	l.journal.Record(func() { l.protocol = prev })
	l.protocol = protocol
	return nil
}

// SetCuratorFee declares the fee curator charges on lots of keycode.
func (l *Ledger) SetCuratorFee(curator common.Address, keycode core.Keycode, value uint32) error {
	if maximum := l.schedules[keycode].MaxCurator; value > maximum {
		return fmt.Errorf("%w: curator fee %d exceeds max %d for %s", core.ErrInvalidFee, value, maximum, keycode)
	}

	key := curatorKey{curator, keycode}
	prev, had := l.curatorFees[key]
	l.journal.Record(func() {
		if had {
			l.curatorFees[key] = prev
		} else {
			delete(l.curatorFees, key)
		}
	})
	l.curatorFees[key] = value
	return nil
}

// CuratorFee returns the fee curator declared for keycode, zero if none.
func (l *Ledger) CuratorFee(curator common.Address, keycode core.Keycode) uint32 {
	return l.curatorFees[curatorKey{curator, keycode}]
}
