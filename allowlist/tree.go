package allowlist

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fxamacker/cbor/v2"
)

// Tree is a sorted-pair Merkle tree over a set of addresses, used by sellers to compute the root and
// by buyers to produce proofs.
type Tree struct {
	layers [][][]byte
}

// BuildTree builds the tree for addrs. Duplicates are ignored; an odd node is promoted unchanged.
func BuildTree(addrs []common.Address) (*Tree, error) {
	if len(addrs) == 0 {
		return nil, fmt.Errorf("allowlist needs at least one address")
	}
	leaves := make([][]byte, 0, len(addrs))
	for _, a := range addrs {
		leaves = append(leaves, Leaf(a))
	}
	slices.SortFunc(leaves, bytes.Compare)
	leaves = slices.CompactFunc(leaves, bytes.Equal)

	layers := [][][]byte{leaves}
	for level := leaves; len(level) > 1; {
		next := make([][]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			next = append(next, hashPair(level[i], level[i+1]))
		}
		layers = append(layers, next)
		level = next
	}
	return &Tree{layers: layers}, nil
}

// Root returns the Merkle root.
func (t *Tree) Root() common.Hash {
	return common.BytesToHash(t.layers[len(t.layers)-1][0])
}

// Params encodes the root as lot creation allowlist params.
func (t *Tree) Params() ([]byte, error) {
	return cbor.Marshal(Params{Root: t.Root().Bytes()})
}

// Proof returns the CBOR-encoded sibling path for addr, or an error if addr is not in the tree.
func (t *Tree) Proof(addr common.Address) ([]byte, error) {
	leaf := Leaf(addr)
	idx := slices.IndexFunc(t.layers[0], func(l []byte) bool { return bytes.Equal(l, leaf) })
	if idx < 0 {
		return nil, fmt.Errorf("address %s not in allowlist", addr.Hex())
	}

	var siblings [][]byte
	for _, level := range t.layers[:len(t.layers)-1] {
		sibling := idx ^ 1
		if sibling < len(level) {
			siblings = append(siblings, level[sibling])
		}
		idx /= 2
	}
	return cbor.Marshal(siblings)
}
