// Package receipts signs the outcome of settled batch lots so bidders can verify, offline, that their
// bid was included and how the lot cleared.
//
// A receipt is a COSE_Sign1 message (ES256) whose payload is a canonical CBOR Payload. Bids appear only
// as salted hashes, so a receipt handed to one bidder does not reveal the others.
package receipts

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/veraison/go-cose"
	"go.uber.org/zap"

	"github.com/cloudx-io/auctionhouse/chain"
	"github.com/cloudx-io/auctionhouse/core"
)

// ContentType is the COSE content type of a receipt payload.
const ContentType = "application/cbor"

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("receipts: cbor enc mode: %v", err))
	}
}

// Payload is the signed content of a receipt. Amounts are base unit integers in decimal.
type Payload struct {
	ReceiptID       string   `cbor:"receipt_id" json:"receipt_id"`
	LotID           uint64   `cbor:"lot_id" json:"lot_id"`
	TotalIn         string   `cbor:"total_in" json:"total_in"`
	TotalOut        string   `cbor:"total_out" json:"total_out"`
	RefundAmount    string   `cbor:"refund_amount" json:"refund_amount"`
	RefundPayout    string   `cbor:"refund_payout" json:"refund_payout"`
	SettlementHash  string   `cbor:"settlement_hash" json:"settlement_hash"`
	SettlementNonce string   `cbor:"settlement_nonce" json:"settlement_nonce"`
	BidHashes       []string `cbor:"bid_hashes" json:"bid_hashes"`
	BidHashNonce    string   `cbor:"bid_hash_nonce" json:"bid_hash_nonce"`
	SignedAt        int64    `cbor:"signed_at" json:"signed_at"`
	PublicKey       string   `cbor:"public_key" json:"public_key"`
}

// Signer produces settlement receipts. It implements engine.SettlementSigner.
type Signer struct {
	keys   *KeyManager
	clock  chain.Clock
	logger *zap.Logger
}

// NewSigner returns a Signer using keys. A nil logger disables logging.
func NewSigner(keys *KeyManager, clock chain.Clock, logger *zap.Logger) *Signer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Signer{keys: keys, clock: clock, logger: logger}
}

// SignSettlement signs the outcome s of lotID, committing to every bid placed on the lot.
func (s *Signer) SignSettlement(lotID uint64, settlement core.Settlement, bids []core.Bid) ([]byte, error) {
	bidHashNonce, err := generateNonce()
	if err != nil {
		return nil, fmt.Errorf("failed to generate bid hash nonce: %w", err)
	}
	settlementNonce, err := generateNonce()
	if err != nil {
		return nil, fmt.Errorf("failed to generate settlement nonce: %w", err)
	}
	publicKeyPEM, err := s.keys.PublicKeyPEM()
	if err != nil {
		return nil, err
	}

	bidHashes := make([]string, 0, len(bids))
	for _, b := range bids {
		bidHashes = append(bidHashes, core.ComputeBidHash(lotID, b.ID, b.Bidder, b.Amount, bidHashNonce))
	}

	payload := Payload{
		ReceiptID:       uuid.NewString(),
		LotID:           lotID,
		TotalIn:         core.Copy(settlement.TotalIn).String(),
		TotalOut:        core.Copy(settlement.TotalOut).String(),
		RefundAmount:    core.Copy(settlement.RefundAmount).String(),
		RefundPayout:    core.Copy(settlement.RefundPayout).String(),
		SettlementHash:  core.ComputeSettlementHash(lotID, settlement, settlementNonce),
		SettlementNonce: settlementNonce,
		BidHashes:       bidHashes,
		BidHashNonce:    bidHashNonce,
		SignedAt:        s.clock.Now().Unix(),
		PublicKey:       publicKeyPEM,
	}
	payloadBytes, err := encMode.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal receipt payload: %w", err)
	}

	signer, err := cose.NewSigner(cose.AlgorithmES256, s.keys.privateKey)
	if err != nil {
		return nil, fmt.Errorf("create signer: %w", err)
	}
	msg := cose.NewSign1Message()
	msg.Headers.Protected.SetAlgorithm(cose.AlgorithmES256)
	msg.Headers.Protected[cose.HeaderLabelContentType] = ContentType
	msg.Payload = payloadBytes
	if err := msg.Sign(rand.Reader, nil, signer); err != nil {
		return nil, fmt.Errorf("sign receipt: %w", err)
	}
	receipt, err := msg.MarshalCBOR()
	if err != nil {
		return nil, fmt.Errorf("marshal receipt: %w", err)
	}

	s.logger.Info("settlement receipt signed",
		zap.String("receipt_id", payload.ReceiptID),
		zap.Uint64("lot_id", lotID),
		zap.Int("bids", len(bidHashes)),
		zap.Int("bytes", len(receipt)))
	return receipt, nil
}

// Decode returns the payload of receipt without verifying its signature.
func Decode(receipt []byte) (*Payload, error) {
	var msg cose.Sign1Message
	if err := msg.UnmarshalCBOR(receipt); err != nil {
		return nil, fmt.Errorf("parse COSE_Sign1: %w", err)
	}
	return decodePayload(msg.Payload)
}

// Open verifies receipt against publicKey and returns its payload.
func Open(receipt []byte, publicKeyPEM string) (*Payload, error) {
	publicKey, err := ParsePublicKeyPEM(publicKeyPEM)
	if err != nil {
		return nil, err
	}
	var msg cose.Sign1Message
	if err := msg.UnmarshalCBOR(receipt); err != nil {
		return nil, fmt.Errorf("parse COSE_Sign1: %w", err)
	}
	verifier, err := cose.NewVerifier(cose.AlgorithmES256, publicKey)
	if err != nil {
		return nil, fmt.Errorf("create verifier: %w", err)
	}
	if err := msg.Verify(nil, verifier); err != nil {
		return nil, fmt.Errorf("receipt signature verification failed: %w", err)
	}
	return decodePayload(msg.Payload)
}

func decodePayload(data []byte) (*Payload, error) {
	var p Payload
	if err := cbor.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse receipt payload: %w", err)
	}
	return &p, nil
}

func generateNonce() (string, error) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("entropy generation failed: %w", err)
	}
	return hex.EncodeToString(randomBytes), nil
}
