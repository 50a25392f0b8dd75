package lending

import (
	"math"
	"math/bits"

	"github.com/holiman/uint256"

	nativecommon "vstreet/native/common"
)

// LTVUnbacked is reported for an outstanding loan whose collateral is worth
// nothing. It compares above every ceiling so the position is liquidatable.
const LTVUnbacked = math.MaxUint64

func u256(v uint64) *uint256.Int { return uint256.NewInt(v) }

// addChecked returns a+b or ErrArithmeticOverflow.
func addChecked(a, b *uint256.Int) (uint256.Int, error) {
	var out uint256.Int
	if _, overflow := out.AddOverflow(a, b); overflow {
		return uint256.Int{}, nativecommon.ErrArithmeticOverflow
	}
	return out, nil
}

// addSaturating returns a+b clamped at the uint256 maximum.
func addSaturating(a, b *uint256.Int) uint256.Int {
	var out uint256.Int
	if _, overflow := out.AddOverflow(a, b); overflow {
		out.SetAllOne()
	}
	return out
}

// subSaturating returns a-b floored at zero.
func subSaturating(a, b *uint256.Int) uint256.Int {
	var out uint256.Int
	if a.Lt(b) {
		return out
	}
	out.Sub(a, b)
	return out
}

// mulDivChecked computes a*b/d. A zero divisor yields zero.
func mulDivChecked(a, b, d *uint256.Int) (uint256.Int, error) {
	var out uint256.Int
	if d.IsZero() {
		return out, nil
	}
	if _, overflow := out.MulOverflow(a, b); overflow {
		return uint256.Int{}, nativecommon.ErrArithmeticOverflow
	}
	out.Div(&out, d)
	return out, nil
}

func addSaturatingU64(a, b uint64) uint64 {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return sum
}

func mulSaturatingU64(a, b uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return math.MaxUint64
	}
	return lo
}

// ceilDiv returns ceil(a/b) for b > 0.
func ceilDiv(a *uint256.Int, b uint64) uint256.Int {
	var q, r uint256.Int
	q.DivMod(a, u256(b), &r)
	if !r.IsZero() {
		q.AddUint64(&q, 1)
	}
	return q
}
