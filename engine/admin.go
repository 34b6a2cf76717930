package engine

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/cloudx-io/auctionhouse/core"
	"github.com/cloudx-io/auctionhouse/modules"
)

// SetFee changes the fee schedule for keycode. Lots that already cached their fees keep them.
func (e *Engine) SetFee(ctx context.Context, caller common.Address, keycode core.Keycode, kind core.FeeKind, value uint32) error {
	return e.execute(ctx, "set_fee", noLot, func(log *zap.Logger) error {
		if err := e.fees.SetFee(caller, keycode, kind, value); err != nil {
			return err
		}
		log.Info("fee set", zap.String("keycode", string(keycode)), zap.Stringer("kind", kind), zap.Uint32("value", value))
		return nil
	})
}

// SetCuratorFee declares the fee curator charges for curating lots of keycode.
func (e *Engine) SetCuratorFee(ctx context.Context, curator common.Address, keycode core.Keycode, value uint32) error {
	return e.execute(ctx, "set_curator_fee", noLot, func(log *zap.Logger) error {
		return e.fees.SetCuratorFee(curator, keycode, value)
	})
}

// SetProtocol changes the protocol fee recipient.
func (e *Engine) SetProtocol(ctx context.Context, caller, protocol common.Address) error {
	return e.execute(ctx, "set_protocol", noLot, func(log *zap.Logger) error {
		return e.fees.SetProtocol(caller, protocol)
	})
}

// InstallModule installs m as the latest version of its keycode.
func (e *Engine) InstallModule(ctx context.Context, caller common.Address, m modules.Module) error {
	return e.execute(ctx, "install_module", noLot, func(log *zap.Logger) error {
		if err := e.registry.Install(caller, m); err != nil {
			return err
		}
		log.Info("module installed", zap.String("veecode", string(m.Veecode())))
		return nil
	})
}

// SunsetModule stops new lots from using keycode.
func (e *Engine) SunsetModule(ctx context.Context, caller common.Address, keycode core.Keycode) error {
	return e.execute(ctx, "sunset_module", noLot, func(log *zap.Logger) error {
		return e.registry.Sunset(caller, keycode)
	})
}

// SetCondenser pairs an auction and derivative module version with c.
func (e *Engine) SetCondenser(ctx context.Context, caller common.Address, auction, derivative core.Veecode, c modules.Condenser) error {
	return e.execute(ctx, "set_condenser", noLot, func(log *zap.Logger) error {
		return e.registry.SetCondenser(caller, auction, derivative, c)
	})
}
