package core

import (
	"math/big"
)

const (
	// FeeBasis is the denominator of every fee percentage: 100_000 == 100%.
	FeeBasis uint32 = 100_000

	// MaxCuratorFeeCeiling bounds the MaxCurator entry of any fee schedule.
	MaxCuratorFeeCeiling uint32 = 50_000
)

var feeBasis = big.NewInt(int64(FeeBasis))

// FeeAmount returns floor(amount * pct / FeeBasis).
func FeeAmount(amount *big.Int, pct uint32) *big.Int {
	if amount == nil || pct == 0 {
		return new(big.Int)
	}
	return MulDiv(amount, big.NewInt(int64(pct)), feeBasis)
}

// CalculateSplit splits amountIn into referrer share, protocol share and the net amount owed to the seller.
//
// Each share is truncated toward zero independently; the truncation residue stays in Net, so
// ToReferrer + ToProtocol + Net == amountIn always. Without a referrer the referrer share is paid to
// the protocol instead of being dropped.
func CalculateSplit(amountIn *big.Int, hasReferrer bool, fees FeeSnapshot) FeeSplit {
	toReferrer := FeeAmount(amountIn, fees.Referrer)
	toProtocol := FeeAmount(amountIn, fees.Protocol)
	if !hasReferrer {
		toProtocol.Add(toProtocol, toReferrer)
		toReferrer = new(big.Int)
	}

	net := Copy(amountIn)
	net.Sub(net, toReferrer)
	net.Sub(net, toProtocol)

	return FeeSplit{
		ToReferrer: toReferrer,
		ToProtocol: toProtocol,
		Net:        net,
	}
}

// CuratorFee returns the curator fee earned on filled base capacity.
func CuratorFee(filled *big.Int, pct uint32) *big.Int {
	return FeeAmount(filled, pct)
}

// CuratorAccrual is the curator fee newly earned when filled capacity grows from soldBefore to soldAfter.
// Summing accruals over any sequence of fills equals CuratorFee of the final total, with no
// rounding drift between per-fill and aggregate computation.
func CuratorAccrual(soldBefore, soldAfter *big.Int, pct uint32) *big.Int {
	after := CuratorFee(soldAfter, pct)
	return after.Sub(after, CuratorFee(soldBefore, pct))
}
