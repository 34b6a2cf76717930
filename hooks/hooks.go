// Package hooks invokes the optional callback contract of a lot at the points its stored permissions allow.
package hooks

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cloudx-io/auctionhouse/core"
	"github.com/cloudx-io/auctionhouse/token"
)

// Callbacks is the external contract a seller can attach to a lot. The engine only calls the methods
// whose permission the lot stored at creation.
type Callbacks interface {
	// Address is where the callback contract holds tokens when it custodies base or receives quote.
	Address() common.Address
	HasPermission(flag core.Permission) bool

	OnCreate(ctx context.Context, lotID uint64, seller, base, quote common.Address, capacity *big.Int, prefund bool, data []byte) error
	OnCancel(ctx context.Context, lotID uint64, refund *big.Int, prefunded bool) error
	OnCurate(ctx context.Context, lotID uint64, curatorFee *big.Int, prefund bool) error

	// PreHook runs before payment is pulled from payer.
	PreHook(ctx context.Context, lotID uint64, payer common.Address, amount *big.Int) error
	// MidHook must leave the callback contract holding at least payout more base token than before.
	MidHook(ctx context.Context, lotID uint64, quote, base common.Address, payout *big.Int) error
	// PostHook is a notification after payout was delivered to recipient.
	PostHook(ctx context.Context, lotID uint64, recipient common.Address, payout *big.Int) error

	OnClaimProceeds(ctx context.Context, lotID uint64, proceeds, refund *big.Int) error
}

// Permissions queries every flag of cb. A nil cb grants nothing.
func Permissions(cb Callbacks) core.Permissions {
	var perms core.Permissions
	if cb == nil {
		return perms
	}
	for _, flag := range core.AllPermissions {
		if cb.HasPermission(flag) {
			perms = perms.With(flag)
		}
	}
	return perms
}

// Dispatcher binds a lot's callbacks to the permissions stored for it. The zero Dispatcher is the
// "no hook" variant: every call is a no-op and funds move between seller, payer and engine directly.
type Dispatcher struct {
	callbacks Callbacks
	perms     core.Permissions
}

// NewDispatcher returns the dispatcher for a lot.
func NewDispatcher(cb Callbacks, perms core.Permissions) Dispatcher {
	if cb == nil {
		return Dispatcher{}
	}
	return Dispatcher{callbacks: cb, perms: perms}
}

// Enabled reports whether the lot has callbacks holding flag.
func (d Dispatcher) Enabled(flag core.Permission) bool {
	return d.callbacks != nil && d.perms.Has(flag)
}

// BaseSource is who supplies base tokens for the lot: the callback contract when it holds
// SendBaseTokens, otherwise the seller.
func (d Dispatcher) BaseSource(seller common.Address) common.Address {
	if d.Enabled(core.PermSendBaseTokens) {
		return d.callbacks.Address()
	}
	return seller
}

// QuoteRecipient is who receives the seller's quote tokens: the callback contract when it holds
// ReceiveQuoteTokens, otherwise the seller.
func (d Dispatcher) QuoteRecipient(seller common.Address) common.Address {
	if d.Enabled(core.PermReceiveQuoteTokens) {
		return d.callbacks.Address()
	}
	return seller
}

// Create runs the onCreate callback when the lot holds PermOnCreate.
func (d Dispatcher) Create(ctx context.Context, lotID uint64, seller, base, quote common.Address, capacity *big.Int, prefund bool, data []byte) error {
	if !d.Enabled(core.PermOnCreate) {
		return nil
	}
	return wrap("onCreate", d.callbacks.OnCreate(ctx, lotID, seller, base, quote, capacity, prefund, data))
}

// Cancel runs the onCancel callback when the lot holds PermOnCancel.
func (d Dispatcher) Cancel(ctx context.Context, lotID uint64, refund *big.Int, prefunded bool) error {
	if !d.Enabled(core.PermOnCancel) {
		return nil
	}
	return wrap("onCancel", d.callbacks.OnCancel(ctx, lotID, refund, prefunded))
}

// Curate runs the onCurate callback when the lot holds PermOnCurate.
func (d Dispatcher) Curate(ctx context.Context, lotID uint64, curatorFee *big.Int, prefund bool) error {
	if !d.Enabled(core.PermOnCurate) {
		return nil
	}
	return wrap("onCurate", d.callbacks.OnCurate(ctx, lotID, curatorFee, prefund))
}

// ClaimProceeds runs the onClaimProceeds callback when the lot holds PermOnClaimProceeds.
func (d Dispatcher) ClaimProceeds(ctx context.Context, lotID uint64, proceeds, refund *big.Int) error {
	if !d.Enabled(core.PermOnClaimProceeds) {
		return nil
	}
	return wrap("onClaimProceeds", d.callbacks.OnClaimProceeds(ctx, lotID, proceeds, refund))
}

// Pre runs the pre-payment hook when the lot holds flag (PermOnPurchase or PermOnBid).
func (d Dispatcher) Pre(ctx context.Context, flag core.Permission, lotID uint64, payer common.Address, amount *big.Int) error {
	if !d.Enabled(flag) {
		return nil
	}
	return wrap("preHook", d.callbacks.PreHook(ctx, lotID, payer, amount))
}

// Mid asks a base-custodying hook to provide payout and verifies that its base balance grew by at
// least that much. Lots whose hook does not custody base skip the call.
func (d Dispatcher) Mid(ctx context.Context, lotID uint64, quote token.Token, base token.Token, payout *big.Int) error {
	if !d.Enabled(core.PermSendBaseTokens) {
		return nil
	}

	holder := d.callbacks.Address()
	before := base.BalanceOf(holder)
	if err := d.callbacks.MidHook(ctx, lotID, quote.Address(), base.Address(), core.Copy(payout)); err != nil {
		return wrap("midHook", err)
	}
	after := base.BalanceOf(holder)

	if grown := new(big.Int).Sub(after, before); grown.Cmp(payout) < 0 {
		return fmt.Errorf("%w: hook %s balance grew by %s, need %s",
			core.ErrInvalidHookInvariant, holder.Hex(), grown, payout)
	}
	return nil
}

// Post notifies the hook after a purchase delivered payout.
func (d Dispatcher) Post(ctx context.Context, lotID uint64, recipient common.Address, payout *big.Int) error {
	if !d.Enabled(core.PermOnPurchase) {
		return nil
	}
	return wrap("postHook", d.callbacks.PostHook(ctx, lotID, recipient, payout))
}

func wrap(point string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", point, err)
}
