package core

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ComputeBidHash computes the commitment of a bid included in a settlement receipt.
// The receipt signer and the validator both use it, so a bidder can check inclusion without the
// receipt revealing other bidders' addresses.
//
// Formula: keccak256(lot_id + "|" + bid_id + "|" + lowercase(bidder) + "|" + amount + "|" + nonce)
func ComputeBidHash(lotID, bidID uint64, bidder common.Address, amount *big.Int, nonce string) string {
	data := fmt.Sprintf("%d|%d|%s|%s|%s", lotID, bidID, strings.ToLower(bidder.Hex()), Copy(amount).String(), nonce)
	return crypto.Keccak256Hash([]byte(data)).Hex()
}

// ComputeSettlementHash commits to the aggregate outcome of a settled lot.
//
// Formula: keccak256(lot_id + "|" + total_in + "|" + total_out + "|" + refund_amount + "|" + refund_payout + "|" + nonce)
func ComputeSettlementHash(lotID uint64, s Settlement, nonce string) string {
	data := fmt.Sprintf("%d|%s|%s|%s|%s|%s", lotID,
		Copy(s.TotalIn).String(), Copy(s.TotalOut).String(),
		Copy(s.RefundAmount).String(), Copy(s.RefundPayout).String(), nonce)
	return crypto.Keccak256Hash([]byte(data)).Hex()
}
