package receipts

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/veraison/go-cose"

	"github.com/cloudx-io/auctionhouse/core"
)

// ValidationInput is what a bidder knows about their own bid plus the receipt they were given.
type ValidationInput struct {
	Receipt []byte
	// PublicKeyPEM is the signing key the bidder trusts, obtained out of band.
	PublicKeyPEM string
	LotID        uint64
	BidID        uint64
	Bidder       common.Address
	Amount       *big.Int
}

// ValidationResult holds the outcome of each check. Call IsValid for the overall verdict.
type ValidationResult struct {
	SignatureValid      bool     `json:"signature_valid"`
	PublicKeyMatch      bool     `json:"public_key_match"`
	LotMatch            bool     `json:"lot_match"`
	BidHashValid        bool     `json:"bid_hash_valid"`
	SettlementHashValid bool     `json:"settlement_hash_valid"`
	ValidationDetails   []string `json:"validation_details"`
	Payload             *Payload `json:"receipt,omitempty"`
}

// IsValid returns true if all checks passed.
func (r *ValidationResult) IsValid() bool {
	return r.SignatureValid && r.PublicKeyMatch && r.LotMatch && r.BidHashValid && r.SettlementHashValid
}

// Validate checks a settlement receipt against the bidder's view of their bid:
// - the receipt is signed by the trusted key
// - it is for the expected lot
// - the bid is among the committed bid hashes
// - the settlement hash matches the reported totals
//
// It returns an error only when validation cannot be performed (malformed key or receipt).
func Validate(input *ValidationInput) (*ValidationResult, error) {
	publicKey, err := ParsePublicKeyPEM(input.PublicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("trusted public key: %w", err)
	}
	var msg cose.Sign1Message
	if err := msg.UnmarshalCBOR(input.Receipt); err != nil {
		return nil, fmt.Errorf("parse COSE_Sign1: %w", err)
	}
	payload, err := decodePayload(msg.Payload)
	if err != nil {
		return nil, err
	}

	result := &ValidationResult{Payload: payload}

	verifier, err := cose.NewVerifier(cose.AlgorithmES256, publicKey)
	if err != nil {
		return nil, fmt.Errorf("create verifier: %w", err)
	}
	if err := msg.Verify(nil, verifier); err != nil {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Signature verification failed: %v", err))
	} else {
		result.SignatureValid = true
		result.ValidationDetails = append(result.ValidationDetails, "Signature valid (ES256)")
	}

	if strings.TrimSpace(payload.PublicKey) == strings.TrimSpace(input.PublicKeyPEM) {
		result.PublicKeyMatch = true
		result.ValidationDetails = append(result.ValidationDetails, "Public key matches receipt")
	} else {
		result.ValidationDetails = append(result.ValidationDetails, "Public key mismatch: receipt names a different signing key")
	}

	if payload.LotID == input.LotID {
		result.LotMatch = true
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Lot validation passed: %d", payload.LotID))
	} else {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Lot mismatch: expected %d, receipt has %d", input.LotID, payload.LotID))
	}

	result.BidHashValid = validateBidHash(input, payload, result)
	result.SettlementHashValid = validateSettlementHash(payload, result)
	return result, nil
}

func validateBidHash(input *ValidationInput, payload *Payload, result *ValidationResult) bool {
	if payload.BidHashNonce == "" {
		result.ValidationDetails = append(result.ValidationDetails, "Bid hash nonce missing from receipt")
		return false
	}

	computed := core.ComputeBidHash(input.LotID, input.BidID, input.Bidder, input.Amount, payload.BidHashNonce)
	for _, h := range payload.BidHashes {
		if h == computed {
			result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Bid hash found in receipt: %s", computed))
			return true
		}
	}

	result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Bid hash NOT found in receipt. Computed: %s", computed))
	result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Total hashes in receipt: %d", len(payload.BidHashes)))
	return false
}

func validateSettlementHash(payload *Payload, result *ValidationResult) bool {
	var s core.Settlement
	for _, f := range []struct {
		name string
		raw  string
		dst  **big.Int
	}{
		{"total_in", payload.TotalIn, &s.TotalIn},
		{"total_out", payload.TotalOut, &s.TotalOut},
		{"refund_amount", payload.RefundAmount, &s.RefundAmount},
		{"refund_payout", payload.RefundPayout, &s.RefundPayout},
	} {
		v, ok := new(big.Int).SetString(f.raw, 10)
		if !ok {
			result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Malformed %s in receipt: %q", f.name, f.raw))
			return false
		}
		*f.dst = v
	}

	computed := core.ComputeSettlementHash(payload.LotID, s, payload.SettlementNonce)
	if computed == payload.SettlementHash {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Settlement hash validation passed: %s", computed))
		return true
	}
	result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Settlement hash mismatch: computed %s, receipt has %s", computed, payload.SettlementHash))
	return false
}
