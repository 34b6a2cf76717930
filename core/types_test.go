package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/peterldowns/testy/check"
)

func TestVeecode(t *testing.T) {
	v := NewVeecode("FPS", 1)
	check.Equal(t, Veecode("01FPS"), v)
	check.Equal(t, Keycode("FPS"), v.Keycode())
	check.Equal(t, uint8(1), v.Version())
	check.False(t, v.IsZero())

	check.Equal(t, Keycode(""), Veecode("1").Keycode())
	check.Equal(t, uint8(0), Veecode("xxFPB").Version())
	check.True(t, Veecode("").IsZero())
}

func TestPermissions(t *testing.T) {
	var p Permissions
	check.False(t, p.Has(PermOnPurchase))

	p = p.With(PermOnPurchase).With(PermSendBaseTokens)
	check.True(t, p.Has(PermOnPurchase))
	check.True(t, p.Has(PermSendBaseTokens))
	check.False(t, p.Has(PermOnBid))
	check.Equal(t, []string{"onPurchase", "sendBaseTokens"}, p.Names())
}

func TestKindOf(t *testing.T) {
	check.Equal(t, "", KindOf(nil))
	check.Equal(t, "invalid_state", KindOf(ErrBidAlreadyClaimed))
	check.Equal(t, "not_permitted", KindOf(fmt.Errorf("purchase: %w", ErrNotBidder)))
	check.Equal(t, "invalid_params", KindOf(ErrInvalidDecimals))
	check.Equal(t, "external", KindOf(errors.New("hook exploded")))
}

func TestBidState_String(t *testing.T) {
	check.Equal(t, "submitted", BidSubmitted.String())
	check.Equal(t, "refunded", BidRefunded.String())
	check.Equal(t, "claimed", BidClaimed.String())
	check.Equal(t, "unknown", BidState(0).String())
}
