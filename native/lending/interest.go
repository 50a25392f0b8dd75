package lending

import (
	"github.com/holiman/uint256"
)

// Utilization returns the share of supplied liquidity currently borrowed in
// whole percentage points, computed as (borrowed*scale/supplied)*100/scale.
// The intermediate quotient keeps scale precision before truncating to a
// percentage. The result is zero when either operand is zero and never
// exceeds 100.
func Utilization(borrowed, supplied *uint256.Int, scale uint64) uint64 {
	if borrowed == nil || supplied == nil || borrowed.IsZero() || supplied.IsZero() || scale == 0 {
		return 0
	}
	var ratio uint256.Int
	if _, overflow := ratio.MulDivOverflow(borrowed, u256(scale), supplied); overflow {
		return 100
	}
	if _, overflow := ratio.MulOverflow(&ratio, u256(100)); overflow {
		return 100
	}
	ratio.Div(&ratio, u256(scale))
	if !ratio.IsUint64() || ratio.Uint64() > 100 {
		return 100
	}
	return ratio.Uint64()
}

// InterestRate derives the supply interest rate as base + utilization*risk.
// The result saturates instead of wrapping.
func InterestRate(baseRate, riskMultiplier, utilization uint64) uint64 {
	return addSaturatingU64(baseRate, mulSaturatingU64(utilization, riskMultiplier))
}

// BorrowRate applies the dev fee surcharge to the supply rate:
// rate + rate*devFee/scale.
func BorrowRate(rate, devFee, scale uint64) uint64 {
	if scale == 0 || devFee == 0 {
		return rate
	}
	var fee uint256.Int
	fee.MulDivOverflow(u256(rate), u256(devFee), u256(scale))
	if !fee.IsUint64() {
		return ^uint64(0)
	}
	return addSaturatingU64(rate, fee.Uint64())
}

// reprice writes the rate model outputs back into the pool.
func (p *PoolState) reprice() {
	cfg := p.Config
	p.Utilization = Utilization(&p.TotalBorrowed, &p.TotalSupplied, cfg.ScaleFactor)
	p.InterestRate = InterestRate(cfg.BaseRate, cfg.RiskMultiplier, p.Utilization)
	p.APR = p.InterestRate
	p.BorrowRate = BorrowRate(p.InterestRate, cfg.DevFee, cfg.ScaleFactor)
}
