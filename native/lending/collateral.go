package lending

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"vstreet/core/events"
	"vstreet/crypto"
	nativecommon "vstreet/native/common"
)

// CollateralValue converts native collateral to value units. Sub-unit
// collateral is truncated.
func CollateralValue(balanceNative *uint256.Int, price, oneUnit uint64) (uint256.Int, error) {
	if oneUnit == 0 {
		return uint256.Int{}, nil
	}
	units := new(uint256.Int).Div(balanceNative, u256(oneUnit))
	var cv uint256.Int
	if _, overflow := cv.MulOverflow(units, u256(price)); overflow {
		return uint256.Int{}, nativecommon.ErrArithmeticOverflow
	}
	return cv, nil
}

// MaxLoanAmount applies the global LTV ceiling to a collateral value.
func MaxLoanAmount(cv *uint256.Int, ltvCeiling uint64) (uint256.Int, error) {
	return mulDivChecked(cv, u256(ltvCeiling), u256(100))
}

// LoanToValue returns loan*100/cv in percent. No loan is zero LTV and a loan
// against zero collateral value is LTVUnbacked.
func LoanToValue(loan, cv *uint256.Int) uint64 {
	if loan.IsZero() {
		return 0
	}
	if cv.IsZero() {
		return LTVUnbacked
	}
	var ltv uint256.Int
	if _, overflow := ltv.MulDivOverflow(loan, u256(100), cv); overflow || !ltv.IsUint64() {
		return LTVUnbacked
	}
	return ltv.Uint64()
}

// lockedCollateral is the share of collateral backing the loan.
func lockedCollateral(balanceNative *uint256.Int, ltv uint64) uint256.Int {
	pct := ltv
	if pct > 100 {
		pct = 100
	}
	var locked uint256.Int
	locked.MulDivOverflow(balanceNative, u256(pct), u256(100))
	return locked
}

// revalue recomputes CV, MLA, LTV, availability and loan status for u.
func (p *PoolState) revalue(u *UserAccount) error {
	cv, err := CollateralValue(&u.BalanceNative, p.Price, p.Config.OneNativeUnit)
	if err != nil {
		return err
	}
	mla, err := MaxLoanAmount(&cv, p.LTV)
	if err != nil {
		return err
	}
	u.CollateralValue = cv
	u.MaxLoan = mla
	u.LTV = LoanToValue(&u.LoanAmount, &cv)
	if u.LoanAmount.IsZero() {
		u.Loan = LoanInactive
		u.AvailableToWithdraw = u.BalanceNative
		return nil
	}
	u.Loan = LoanActive
	locked := lockedCollateral(&u.BalanceNative, u.LTV)
	u.AvailableToWithdraw = subSaturating(&u.BalanceNative, &locked)
	return nil
}

// revalueAll recomputes valuations for every account.
func (p *PoolState) revalueAll() error {
	var err error
	p.Users.Range(func(addr crypto.Address, u *UserAccount) bool {
		if err = p.revalue(u); err != nil {
			err = fmt.Errorf("revalue %s: %w", addr, err)
			return false
		}
		return true
	})
	return err
}

// liquidate seizes the locked share of collateral from an account whose LTV
// reached the ceiling and clears its loan. It reports whether anything was
// liquidated.
func (p *PoolState) liquidate(addr crypto.Address, u *UserAccount) (*events.LendingLiquidated, error) {
	if u.Loan != LoanActive || u.LoanAmount.IsZero() || u.LTV < p.LTV {
		return nil, nil
	}
	debt := u.LoanAmount
	seized := lockedCollateral(&u.BalanceNative, u.LTV)
	ltv := u.LTV
	u.BalanceNative = subSaturating(&u.BalanceNative, &seized)
	p.SeizedCollateral = addSaturating(&p.SeizedCollateral, &seized)
	u.LoanAmount.Clear()
	u.Loan = LoanInactive
	p.TotalBorrowed = subSaturating(&p.TotalBorrowed, &debt)
	if err := p.revalue(u); err != nil {
		return nil, err
	}
	return &events.LendingLiquidated{
		Account: addr.Raw(),
		Seized:  seized.ToBig(),
		Debt:    debt.ToBig(),
		LTV:     ltv,
	}, nil
}

// liquidateAll sweeps every account through liquidate.
func (p *PoolState) liquidateAll() ([]events.Event, error) {
	var (
		out []events.Event
		err error
	)
	p.Users.Range(func(addr crypto.Address, u *UserAccount) bool {
		var evt *events.LendingLiquidated
		evt, err = p.liquidate(addr, u)
		if err != nil {
			return false
		}
		if evt != nil {
			out = append(out, *evt)
		}
		return true
	})
	return out, err
}

// DepositCollateral pulls value native units from caller into the pool and
// credits them as collateral once the pull succeeds.
func (e *Engine) DepositCollateral(ctx context.Context, caller crypto.Address, value *uint256.Int) error {
	return e.execute(ctx, "depositCollateral", caller, func(next *PoolState, now uint64) (*effect, error) {
		if value == nil || value.IsZero() {
			return nil, nativecommon.ErrZeroAmount
		}
		if e.intake == nil {
			return nil, errValueReceiverNotSet
		}
		u := next.Users.GetOrCreate(caller, now)
		sum, err := addChecked(&u.BalanceNative, value)
		if err != nil {
			return nil, err
		}
		u.BalanceNative = sum
		if err := next.revalue(u); err != nil {
			return nil, err
		}
		intake := e.intake
		pulled := new(uint256.Int).Set(value)
		return &effect{
			transfer: func(ctx context.Context) error { return intake.ReceiveValue(ctx, caller, pulled) },
			events: []events.Event{events.LendingCollateralDeposited{
				Account: caller.Raw(),
				Amount:  value.ToBig(),
			}},
		}, nil
	})
}

// WithdrawCollateral returns amount whole native units to caller when they
// are not locked by an outstanding loan.
func (e *Engine) WithdrawCollateral(ctx context.Context, caller crypto.Address, amount *uint256.Int) error {
	return e.execute(ctx, "withdrawCollateral", caller, func(next *PoolState, now uint64) (*effect, error) {
		if err := nativecommon.CheckCap(amount, next.Config.MaxCollateralWithdraw); err != nil {
			return nil, err
		}
		if e.values == nil {
			return nil, errValueSenderNotSet
		}
		u, ok := next.Users.Get(caller)
		if !ok {
			return nil, nativecommon.ErrUserNotFound
		}
		native, err := nativecommon.MulScale(amount, next.Config.OneNativeUnit)
		if err != nil {
			return nil, err
		}
		if native.Gt(&u.AvailableToWithdraw) {
			return nil, fmt.Errorf("%w: collateral %s exceeds available %s", nativecommon.ErrInvalidAmount, native.Dec(), u.AvailableToWithdraw.Dec())
		}
		u.BalanceNative = subSaturating(&u.BalanceNative, &native)
		if err := next.revalue(u); err != nil {
			return nil, err
		}
		evts := []events.Event{events.LendingCollateralWithdrawn{Account: caller.Raw(), Amount: native.ToBig()}}
		liquidations, err := next.liquidateAll()
		if err != nil {
			return nil, err
		}
		evts = append(evts, liquidations...)
		values := e.values
		return &effect{
			transfer: func(ctx context.Context) error { return values.SendValue(ctx, caller, &native) },
			events:   evts,
		}, nil
	})
}
