package core

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
)

// MaxBps is the denominator for basis-point fees. A fee may never exceed
// 100% of the amount it is computed on.
const MaxBps int64 = 10000

// MinBidIncrementBps is the minimum step between successive bids: each new
// bid must be at least 10% above the standing highest bid.
const MinBidIncrementBps int64 = 1000

var (
	// ErrAmountOutOfRange indicates an amount that is negative, fractional,
	// or wider than 256 bits. Amounts are integers in the currency's base
	// unit and must fit the fixed width used on chain.
	ErrAmountOutOfRange = errors.New("amount out of range")

	// ErrInvalidBps indicates a basis-point value outside [0, MaxBps].
	ErrInvalidBps = errors.New("bps out of range")
)

var bpsDenominator = decimal.NewFromInt(MaxBps)

// maxUint256 = 2^256 - 1, the widest amount the settlement layer accepts.
var maxUint256 = decimal.NewFromBigInt(new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1)), 0)

// MaxUint256 returns the largest representable amount.
func MaxUint256() decimal.Decimal {
	return maxUint256
}

// ValidateAmount checks that d is a non-negative integer that fits in 256
// bits. Violations are fatal input errors, never silently truncated.
func ValidateAmount(d decimal.Decimal) error {
	if !d.IsInteger() || d.Sign() < 0 || d.Cmp(maxUint256) > 0 {
		return ErrAmountOutOfRange
	}
	return nil
}

// FeePortion returns floor(amount × bps / 10000). The division truncates
// exactly (QuoRem, not rounded division) so fee math matches the integer
// arithmetic of the settlement contract it mirrors.
func FeePortion(amount decimal.Decimal, bps int64) (decimal.Decimal, error) {
	if bps < 0 || bps > MaxBps {
		return decimal.Zero, ErrInvalidBps
	}
	if err := ValidateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	q, _ := amount.Mul(decimal.NewFromInt(bps)).QuoRem(bpsDenominator, 0)
	return q, nil
}

// MinimumBid returns the smallest acceptable bid over a standing highest
// bid: highest + floor(highest × 10 / 100).
func MinimumBid(highest decimal.Decimal) (decimal.Decimal, error) {
	inc, err := FeePortion(highest, MinBidIncrementBps)
	if err != nil {
		return decimal.Zero, err
	}
	return highest.Add(inc), nil
}
