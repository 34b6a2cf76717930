// Package allowlist restricts who may purchase or bid on a lot with a Merkle root of allowed addresses.
package allowlist

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/fxamacker/cbor/v2"

	"github.com/cloudx-io/auctionhouse/chain"
	"github.com/cloudx-io/auctionhouse/core"
)

// Params are the allowlist params supplied at lot creation.
type Params struct {
	Root []byte `cbor:"root"`
}

// Merkle keeps one Merkle root per lot. Buyers prove membership with the sibling hashes from their
// leaf to the root.
type Merkle struct {
	journal *chain.Journal
	roots   map[uint64]common.Hash
}

// NewMerkle returns an allowlist with no registered lots.
func NewMerkle(journal *chain.Journal) *Merkle {
	return &Merkle{journal: journal, roots: make(map[uint64]common.Hash)}
}

// Register stores the root carried by params for lotID.
func (m *Merkle) Register(lotID uint64, params []byte) error {
	var p Params
	if err := cbor.Unmarshal(params, &p); err != nil {
		return fmt.Errorf("%w: allowlist params: %v", core.ErrInvalidParams, err)
	}
	if len(p.Root) != common.HashLength {
		return fmt.Errorf("%w: allowlist root must be %d bytes", core.ErrInvalidParams, common.HashLength)
	}
	if _, ok := m.roots[lotID]; ok {
		return fmt.Errorf("%w: lot %d already has an allowlist", core.ErrInvalidParams, lotID)
	}

	m.roots[lotID] = common.BytesToHash(p.Root)
	m.journal.Record(func() { delete(m.roots, lotID) })
	return nil
}

// IsAllowed checks buyer's membership proof for lotID. Lots without a registered root allow everyone.
func (m *Merkle) IsAllowed(lotID uint64, buyer common.Address, proof []byte) (bool, error) {
	root, ok := m.roots[lotID]
	if !ok {
		return true, nil
	}
	var siblings [][]byte
	if len(proof) > 0 {
		if err := cbor.Unmarshal(proof, &siblings); err != nil {
			return false, fmt.Errorf("%w: allowlist proof: %v", core.ErrInvalidParams, err)
		}
	}
	return Verify(root, buyer, siblings), nil
}

// Leaf is the Merkle leaf of addr.
func Leaf(addr common.Address) []byte {
	return crypto.Keccak256(addr.Bytes())
}

// Verify folds siblings onto addr's leaf and compares the result with root.
func Verify(root common.Hash, addr common.Address, siblings [][]byte) bool {
	node := Leaf(addr)
	for _, s := range siblings {
		node = hashPair(node, s)
	}
	return bytes.Equal(node, root.Bytes())
}

func hashPair(a, b []byte) []byte {
	if bytes.Compare(a, b) > 0 {
		a, b = b, a
	}
	return crypto.Keccak256(a, b)
}
