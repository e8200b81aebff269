package sol

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// LamportsPerSOL is the number of base units in one SOL.
const LamportsPerSOL = 1_000_000_000

// NativeDecimals is the decimal precision of SOL.
const NativeDecimals uint8 = 9

// ErrInvalidAmount is returned when an amount cannot be represented in base units.
var ErrInvalidAmount = errors.New("invalid amount")

// ToDisplay converts a base-unit integer into display units for the given decimals.
func ToDisplay(base uint64, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(base), -int32(decimals))
}

// ToBaseUnits converts a display amount into base units. Amounts that are negative,
// carry more fractional digits than decimals allows, or overflow a uint64 are rejected.
func ToBaseUnits(amount decimal.Decimal, decimals uint8) (uint64, error) {
	if amount.IsNegative() {
		return 0, fmt.Errorf("%w: %s is negative", ErrInvalidAmount, amount)
	}

	shifted := amount.Shift(int32(decimals))
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, fmt.Errorf("%w: %s has more than %d decimal places", ErrInvalidAmount, amount, decimals)
	}

	n := shifted.BigInt()
	if !n.IsUint64() {
		return 0, fmt.Errorf("%w: %s overflows base units", ErrInvalidAmount, amount)
	}

	return n.Uint64(), nil
}

// ParseAmount parses a display amount such as "0.5".
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	return d, nil
}

// LamportsToSOL renders lamports as a SOL decimal string.
func LamportsToSOL(lamports uint64) string {
	return ToDisplay(lamports, NativeDecimals).String()
}

// SOLToLamports parses a SOL decimal string into lamports.
func SOLToLamports(s string) (uint64, error) {
	d, err := ParseAmount(s)
	if err != nil {
		return 0, err
	}

	return ToBaseUnits(d, NativeDecimals)
}
