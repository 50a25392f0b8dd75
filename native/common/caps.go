package common

import (
	"fmt"

	"github.com/holiman/uint256"
)

// CheckCap rejects zero amounts and amounts above a per-operation ceiling.
// A ceiling of zero disables the upper bound.
func CheckCap(amount *uint256.Int, ceiling uint64) error {
	if amount == nil || amount.IsZero() {
		return ErrZeroAmount
	}
	if ceiling == 0 {
		return nil
	}
	if amount.Gt(uint256.NewInt(ceiling)) {
		return fmt.Errorf("%w: %s exceeds limit %d", ErrInvalidAmount, amount.Dec(), ceiling)
	}
	return nil
}

// MulScale returns amount*scale and reports ErrArithmeticOverflow when the
// product does not fit in 256 bits.
func MulScale(amount *uint256.Int, scale uint64) (uint256.Int, error) {
	var out uint256.Int
	if amount == nil {
		return out, nil
	}
	if _, overflow := out.MulOverflow(amount, uint256.NewInt(scale)); overflow {
		return uint256.Int{}, ErrArithmeticOverflow
	}
	return out, nil
}
