package core

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

const (
	// MinTokenDecimals and MaxTokenDecimals bound the decimals accepted for base and quote tokens.
	MinTokenDecimals uint8 = 6
	MaxTokenDecimals uint8 = 18
)

var pow10Cache [MaxTokenDecimals*2 + 1]*big.Int

func init() {
	for i := range pow10Cache {
		pow10Cache[i] = new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(i)), nil)
	}
}

// Pow10 returns 10^n. The result must not be mutated.
func Pow10(n uint8) *big.Int {
	if int(n) < len(pow10Cache) {
		return pow10Cache[n]
	}
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// ValidateDecimals rejects token decimals outside [MinTokenDecimals, MaxTokenDecimals].
func ValidateDecimals(decimals uint8) error {
	if decimals < MinTokenDecimals || decimals > MaxTokenDecimals {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidDecimals, decimals, MinTokenDecimals, MaxTokenDecimals)
	}
	return nil
}

// Zero returns a new zero amount.
func Zero() *big.Int { return new(big.Int) }

// Copy returns a copy of x, treating nil as zero.
func Copy(x *big.Int) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(x)
}

// IsPositive reports whether x is non-nil and greater than zero.
func IsPositive(x *big.Int) bool {
	return x != nil && x.Sign() > 0
}

// MulDiv returns floor(a*b/c). c must be positive.
func MulDiv(a, b, c *big.Int) *big.Int {
	p := new(big.Int).Mul(a, b)
	return p.Quo(p, c)
}

// MulDivUp returns ceil(a*b/c) for non-negative operands. c must be positive.
func MulDivUp(a, b, c *big.Int) *big.Int {
	p := new(big.Int).Mul(a, b)
	q, r := new(big.Int).QuoRem(p, c, new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

// Rescale converts amount from one decimal scale to another. Scaling down truncates toward zero.
func Rescale(amount *big.Int, from, to uint8) *big.Int {
	switch {
	case from == to:
		return Copy(amount)
	case from < to:
		return new(big.Int).Mul(amount, Pow10(to-from))
	default:
		return new(big.Int).Quo(amount, Pow10(from-to))
	}
}

// ParseUnits converts a human decimal string such as "1.5" into base units of a token with the given decimals.
// More fractional digits than decimals is an error rather than a silent truncation.
func ParseUnits(value string, decimals uint8) (*big.Int, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: parse amount %q: %v", ErrInvalidParams, value, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w: negative amount %q", ErrInvalidParams, value)
	}
	shifted := d.Shift(int32(decimals))
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("%w: %q has more than %d decimal places", ErrInvalidParams, value, decimals)
	}
	return shifted.BigInt(), nil
}

// FormatUnits renders base units as a human decimal string.
func FormatUnits(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}
