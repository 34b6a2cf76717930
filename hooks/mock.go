package hooks

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cloudx-io/auctionhouse/core"
)

// Mock is a Callbacks implementation with overridable behaviour for tests and the devnet. Unset funcs
// succeed without side effects; Calls records every invocation by name.
type Mock struct {
	Addr  common.Address
	Perms core.Permissions

	OnCreateFunc        func(ctx context.Context, lotID uint64, seller, base, quote common.Address, capacity *big.Int, prefund bool, data []byte) error
	OnCancelFunc        func(ctx context.Context, lotID uint64, refund *big.Int, prefunded bool) error
	OnCurateFunc        func(ctx context.Context, lotID uint64, curatorFee *big.Int, prefund bool) error
	PreHookFunc         func(ctx context.Context, lotID uint64, payer common.Address, amount *big.Int) error
	MidHookFunc         func(ctx context.Context, lotID uint64, quote, base common.Address, payout *big.Int) error
	PostHookFunc        func(ctx context.Context, lotID uint64, recipient common.Address, payout *big.Int) error
	OnClaimProceedsFunc func(ctx context.Context, lotID uint64, proceeds, refund *big.Int) error

	Calls []string
}

func (m *Mock) Address() common.Address { return m.Addr }

func (m *Mock) HasPermission(flag core.Permission) bool { return m.Perms.Has(flag) }

func (m *Mock) OnCreate(ctx context.Context, lotID uint64, seller, base, quote common.Address, capacity *big.Int, prefund bool, data []byte) error {
	m.Calls = append(m.Calls, "onCreate")
	if m.OnCreateFunc != nil {
		return m.OnCreateFunc(ctx, lotID, seller, base, quote, capacity, prefund, data)
	}
	return nil
}

func (m *Mock) OnCancel(ctx context.Context, lotID uint64, refund *big.Int, prefunded bool) error {
	m.Calls = append(m.Calls, "onCancel")
	if m.OnCancelFunc != nil {
		return m.OnCancelFunc(ctx, lotID, refund, prefunded)
	}
	return nil
}

func (m *Mock) OnCurate(ctx context.Context, lotID uint64, curatorFee *big.Int, prefund bool) error {
	m.Calls = append(m.Calls, "onCurate")
	if m.OnCurateFunc != nil {
		return m.OnCurateFunc(ctx, lotID, curatorFee, prefund)
	}
	return nil
}

func (m *Mock) PreHook(ctx context.Context, lotID uint64, payer common.Address, amount *big.Int) error {
	m.Calls = append(m.Calls, "preHook")
	if m.PreHookFunc != nil {
		return m.PreHookFunc(ctx, lotID, payer, amount)
	}
	return nil
}

func (m *Mock) MidHook(ctx context.Context, lotID uint64, quote, base common.Address, payout *big.Int) error {
	m.Calls = append(m.Calls, "midHook")
	if m.MidHookFunc != nil {
		return m.MidHookFunc(ctx, lotID, quote, base, payout)
	}
	return nil
}

func (m *Mock) PostHook(ctx context.Context, lotID uint64, recipient common.Address, payout *big.Int) error {
	m.Calls = append(m.Calls, "postHook")
	if m.PostHookFunc != nil {
		return m.PostHookFunc(ctx, lotID, recipient, payout)
	}
	return nil
}

func (m *Mock) OnClaimProceeds(ctx context.Context, lotID uint64, proceeds, refund *big.Int) error {
	m.Calls = append(m.Calls, "onClaimProceeds")
	if m.OnClaimProceedsFunc != nil {
		return m.OnClaimProceedsFunc(ctx, lotID, proceeds, refund)
	}
	return nil
}
