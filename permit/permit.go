// Package permit authorizes token pulls with single-use signed approvals, so a payer does not need a
// standing allowance to the engine.
package permit

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/cloudx-io/auctionhouse/chain"
	"github.com/cloudx-io/auctionhouse/core"
	"github.com/cloudx-io/auctionhouse/token"
)

var permitTypeHash = crypto.Keccak256([]byte("PermitTransferFrom(address token,address spender,uint256 amount,uint256 nonce,uint256 deadline)"))

// Approval is a signed authorization for spender to pull up to an exact amount of a token from the signer.
type Approval struct {
	Nonce     uint64    `json:"nonce"`
	Deadline  time.Time `json:"deadline"`
	Signature []byte    `json:"signature"`
}

type nonceKey struct {
	owner common.Address
	nonce uint64
}

// Permit2 is the signature-transfer contract. Owners approve its address once on each token; every
// pull through it then needs a fresh signed Approval.
type Permit2 struct {
	address common.Address
	clock   chain.Clock
	journal *chain.Journal
	used    map[nonceKey]struct{}
}

// New creates a Permit2 at address.
func New(address common.Address, clock chain.Clock, journal *chain.Journal) *Permit2 {
	return &Permit2{
		address: address,
		clock:   clock,
		journal: journal,
		used:    make(map[nonceKey]struct{}),
	}
}

// Address is the address owners grant allowance to.
func (p *Permit2) Address() common.Address { return p.address }

// NonceUsed reports whether owner already spent nonce.
func (p *Permit2) NonceUsed(owner common.Address, nonce uint64) bool {
	_, ok := p.used[nonceKey{owner, nonce}]
	return ok
}

// Digest is the hash an owner signs to authorize spender to pull amount of tok.
func (p *Permit2) Digest(tok, spender common.Address, amount *big.Int, nonce uint64, deadline time.Time) common.Hash {
	return crypto.Keccak256Hash(
		p.address.Bytes(),
		permitTypeHash,
		common.LeftPadBytes(tok.Bytes(), 32),
		common.LeftPadBytes(spender.Bytes(), 32),
		common.BigToHash(core.Copy(amount)).Bytes(),
		common.BigToHash(new(big.Int).SetUint64(nonce)).Bytes(),
		common.BigToHash(big.NewInt(deadline.Unix())).Bytes(),
	)
}

// Sign produces the Approval for the given transfer with key.
func (p *Permit2) Sign(key *ecdsa.PrivateKey, tok, spender common.Address, amount *big.Int, nonce uint64, deadline time.Time) (Approval, error) {
	digest := p.Digest(tok, spender, amount, nonce, deadline)
	sig, err := crypto.Sign(digest.Bytes(), key)
	if err != nil {
		return Approval{}, fmt.Errorf("sign permit: %w", err)
	}
	return Approval{Nonce: nonce, Deadline: deadline, Signature: sig}, nil
}

// TransferFrom moves exactly amount of tok from owner to to on behalf of spender, authorized by approval.
// The nonce is spent only if the transfer succeeds.
func (p *Permit2) TransferFrom(tok token.Token, spender, owner, to common.Address, amount *big.Int, approval Approval) error {
	if p.clock.Now().Unix() > approval.Deadline.Unix() {
		return fmt.Errorf("%w: deadline %s", core.ErrSignatureExpired, approval.Deadline.UTC().Format(time.RFC3339))
	}
	key := nonceKey{owner, approval.Nonce}
	if _, ok := p.used[key]; ok {
		return fmt.Errorf("%w: owner %s nonce %d", core.ErrNonceAlreadyUsed, owner.Hex(), approval.Nonce)
	}

	signer, err := p.recover(tok.Address(), spender, amount, approval)
	if err != nil {
		return err
	}
	if signer != owner {
		return fmt.Errorf("%w: signed by %s, expected %s", core.ErrInvalidSignature, signer.Hex(), owner.Hex())
	}

	p.used[key] = struct{}{}
	p.journal.Record(func() { delete(p.used, key) })

	if err := token.TransferFrom(tok, p.address, owner, to, amount); err != nil {
		delete(p.used, key)
		return fmt.Errorf("permit transfer: %w", err)
	}
	return nil
}

func (p *Permit2) recover(tok, spender common.Address, amount *big.Int, approval Approval) (common.Address, error) {
	if len(approval.Signature) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: signature length %d", core.ErrInvalidSignature, len(approval.Signature))
	}
	digest := p.Digest(tok, spender, amount, approval.Nonce, approval.Deadline)
	pub, err := crypto.SigToPub(digest.Bytes(), approval.Signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", core.ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
