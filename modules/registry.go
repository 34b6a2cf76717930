package modules

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cloudx-io/auctionhouse/chain"
	"github.com/cloudx-io/auctionhouse/core"
)

type keycodeStatus struct {
	latest uint8
	sunset bool
}

type condenserKey struct {
	auction    core.Veecode
	derivative core.Veecode
}

// Registry resolves versioned module references. New lots use the latest version of a keycode;
// existing lots keep the version they were created with, even after the keycode is sunset.
type Registry struct {
	owner      common.Address
	journal    *chain.Journal
	status     map[core.Keycode]keycodeStatus
	modules    map[core.Veecode]Module
	condensers map[condenserKey]Condenser
}

// NewRegistry returns an empty registry administered by owner.
func NewRegistry(owner common.Address, journal *chain.Journal) *Registry {
	return &Registry{
		owner:      owner,
		journal:    journal,
		status:     make(map[core.Keycode]keycodeStatus),
		modules:    make(map[core.Veecode]Module),
		condensers: make(map[condenserKey]Condenser),
	}
}

// Install makes m the latest version of its keycode. Versions must strictly increase, and installing
// a new version lifts a sunset.
func (r *Registry) Install(caller common.Address, m Module) error {
	if caller != r.owner {
		return fmt.Errorf("install module: %w", core.ErrNotOwner)
	}
	v := m.Veecode()
	keycode, version := v.Keycode(), v.Version()
	if keycode == "" || version == 0 {
		return fmt.Errorf("%w: malformed veecode %q", core.ErrInvalidParams, v)
	}
	prev := r.status[keycode]
	if version <= prev.latest {
		return fmt.Errorf("%w: %s version %d not above installed %d", core.ErrInvalidParams, keycode, version, prev.latest)
	}

	r.setStatus(keycode, keycodeStatus{latest: version})
	r.modules[v] = m
	r.journal.Record(func() { delete(r.modules, v) })
	return nil
}

// Sunset stops new lots from using keycode.
func (r *Registry) Sunset(caller common.Address, keycode core.Keycode) error {
	if caller != r.owner {
		return fmt.Errorf("sunset module: %w", core.ErrNotOwner)
	}
	s, ok := r.status[keycode]
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrModuleNotInstalled, keycode)
	}
	if s.sunset {
		return fmt.Errorf("%w: %s", core.ErrModuleSunset, keycode)
	}
	s.sunset = true
	r.setStatus(keycode, s)
	return nil
}

// Latest returns the module new lots of keycode are created with.
func (r *Registry) Latest(keycode core.Keycode) (Module, error) {
	s, ok := r.status[keycode]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrModuleNotInstalled, keycode)
	}
	if s.sunset {
		return nil, fmt.Errorf("%w: %s", core.ErrModuleSunset, keycode)
	}
	return r.modules[core.NewVeecode(keycode, s.latest)], nil
}

// Get returns the module installed under v regardless of sunset status.
func (r *Registry) Get(v core.Veecode) (Module, error) {
	m, ok := r.modules[v]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrModuleNotInstalled, v)
	}
	return m, nil
}

// SetCondenser registers c for lots pairing auction and derivative. A nil c removes the pairing.
func (r *Registry) SetCondenser(caller common.Address, auction, derivative core.Veecode, c Condenser) error {
	if caller != r.owner {
		return fmt.Errorf("set condenser: %w", core.ErrNotOwner)
	}
	key := condenserKey{auction, derivative}
	prev, had := r.condensers[key]
	r.journal.Record(func() {
		if had {
			r.condensers[key] = prev
		} else {
			delete(r.condensers, key)
		}
	})
	if c == nil {
		delete(r.condensers, key)
		return nil
	}
	r.condensers[key] = c
	return nil
}

// Condenser returns the condenser for the pairing, or nil when derivative params pass through unchanged.
func (r *Registry) Condenser(auction, derivative core.Veecode) Condenser {
	return r.condensers[condenserKey{auction, derivative}]
}

func (r *Registry) setStatus(keycode core.Keycode, s keycodeStatus) {
	prev, had := r.status[keycode]
	r.journal.Record(func() {
		if had {
			r.status[keycode] = prev
		} else {
			delete(r.status, keycode)
		}
	})
	r.status[keycode] = s
}
