package core

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the engine and its collaborators wraps exactly one of these,
// so callers can branch with errors.Is without matching on specific failures.
var (
	ErrInvalidLotID           = errors.New("invalid lot id")
	ErrInvalidState           = errors.New("invalid state")
	ErrNotPermitted           = errors.New("not permitted")
	ErrInvalidParams          = errors.New("invalid params")
	ErrAmountBelowMinimum     = errors.New("amount below minimum")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrInsufficientAllowance  = errors.New("insufficient allowance")
	ErrUnsupportedToken       = errors.New("unsupported token")
	ErrInvalidSignature       = errors.New("invalid signature")
	ErrSignatureExpired       = errors.New("signature expired")
	ErrNonceAlreadyUsed       = errors.New("nonce already used")
	ErrInvalidHookInvariant   = errors.New("invalid hook invariant")
	ErrModuleNotInstalled     = errors.New("module not installed")
	ErrModuleSunset           = errors.New("module sunset")
	ErrInsufficientFunding    = errors.New("insufficient funding")
	ErrNotImplemented         = errors.New("not implemented")
	ErrUnsupportedAuctionType = fmt.Errorf("unsupported auction type: %w", ErrNotImplemented)
)

// Specific failures, each wrapping its kind.
var (
	ErrNotOwner          = fmt.Errorf("not owner: %w", ErrNotPermitted)
	ErrNotBidder         = fmt.Errorf("not bidder: %w", ErrNotPermitted)
	ErrNotAllowed        = fmt.Errorf("caller not on allowlist: %w", ErrNotPermitted)
	ErrReentrancy        = fmt.Errorf("re-entrant call into lot: %w", ErrInvalidState)
	ErrLotNotLive        = fmt.Errorf("lot not live: %w", ErrInvalidState)
	ErrLotNotConcluded   = fmt.Errorf("lot not concluded: %w", ErrInvalidState)
	ErrLotConcluded      = fmt.Errorf("lot concluded: %w", ErrInvalidState)
	ErrLotCancelled      = fmt.Errorf("lot cancelled: %w", ErrInvalidState)
	ErrLotSettled        = fmt.Errorf("lot already settled: %w", ErrInvalidState)
	ErrLotNotSettled     = fmt.Errorf("lot not settled: %w", ErrInvalidState)
	ErrAlreadyCurated    = fmt.Errorf("lot already curated: %w", ErrInvalidState)
	ErrNotCurated        = fmt.Errorf("lot not curated: %w", ErrInvalidState)
	ErrAlreadyClaimed    = fmt.Errorf("already claimed: %w", ErrInvalidState)
	ErrBidAlreadyClaimed = fmt.Errorf("bid already claimed: %w", ErrInvalidState)
	ErrBidCancelled      = fmt.Errorf("bid cancelled: %w", ErrInvalidState)
	ErrBidNotCancelled   = fmt.Errorf("bid not cancelled: %w", ErrInvalidParams)
	ErrInvalidBidID      = fmt.Errorf("invalid bid id: %w", ErrInvalidParams)
	ErrInvalidFee        = fmt.Errorf("invalid fee: %w", ErrInvalidParams)
	ErrInvalidDecimals   = fmt.Errorf("token decimals out of bounds: %w", ErrInvalidParams)
	ErrZeroAmount        = fmt.Errorf("amount must be positive: %w", ErrInvalidParams)
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrInvalidLotID, "invalid_lot_id"},
	{ErrInvalidState, "invalid_state"},
	{ErrNotPermitted, "not_permitted"},
	{ErrInvalidParams, "invalid_params"},
	{ErrAmountBelowMinimum, "amount_below_minimum"},
	{ErrInsufficientBalance, "insufficient_balance"},
	{ErrInsufficientAllowance, "insufficient_allowance"},
	{ErrUnsupportedToken, "unsupported_token"},
	{ErrInvalidSignature, "invalid_signature"},
	{ErrSignatureExpired, "signature_expired"},
	{ErrNonceAlreadyUsed, "nonce_already_used"},
	{ErrInvalidHookInvariant, "invalid_hook_invariant"},
	{ErrModuleNotInstalled, "module_not_installed"},
	{ErrModuleSunset, "module_sunset"},
	{ErrInsufficientFunding, "insufficient_funding"},
	{ErrNotImplemented, "not_implemented"},
}

// KindOf returns the snake_case name of the error kind err wraps, "external" for errors
// raised by collaborators outside the taxonomy, and "" for nil.
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "external"
}
