package lending

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"vstreet/core/events"
	"vstreet/crypto"
	nativecommon "vstreet/native/common"
)

// TakeLoan lends amount whole tokens to caller against their collateral.
func (e *Engine) TakeLoan(ctx context.Context, caller crypto.Address, amount *uint256.Int) error {
	return e.execute(ctx, "takeLoan", caller, func(next *PoolState, now uint64) (*effect, error) {
		tokens, token, err := e.tokenTransfer(next)
		if err != nil {
			return nil, err
		}
		if err := nativecommon.CheckCap(amount, next.Config.MaxLoanAmount); err != nil {
			return nil, err
		}
		u, ok := next.Users.Get(caller)
		if !ok {
			return nil, nativecommon.ErrUserNotFound
		}
		scaled, err := nativecommon.MulScale(amount, next.Config.ScaleFactor)
		if err != nil {
			return nil, err
		}
		loan, err := addChecked(&u.LoanAmount, &scaled)
		if err != nil {
			return nil, err
		}
		if loan.Gt(&u.MaxLoan) {
			return nil, fmt.Errorf("%w: loan %s exceeds max loan %s", nativecommon.ErrInvalidAmount, loan.Dec(), u.MaxLoan.Dec())
		}
		borrowed, err := addChecked(&next.TotalBorrowed, &scaled)
		if err != nil {
			return nil, err
		}
		if borrowed.Gt(&next.TotalSupplied) {
			return nil, fmt.Errorf("%w: insufficient pool liquidity", nativecommon.ErrInvalidAmount)
		}
		if u.Loan != LoanActive {
			u.LoanCheckpoint = now
		}
		u.LoanAmount = loan
		next.TotalBorrowed = borrowed
		if err := next.revalue(u); err != nil {
			return nil, err
		}
		amt := amount.Clone()
		return &effect{
			transfer: func(ctx context.Context) error { return tokens.Transfer(ctx, token, caller, amt) },
			events: []events.Event{events.LendingLoanTaken{
				Account: caller.Raw(),
				Amount:  amt.ToBig(),
				Loan:    loan.ToBig(),
				LTV:     u.LTV,
			}},
		}, nil
	})
}

// PayLoan repays amount whole tokens of the caller's loan.
func (e *Engine) PayLoan(ctx context.Context, caller crypto.Address, amount *uint256.Int) error {
	return e.execute(ctx, "payLoan", caller, func(next *PoolState, now uint64) (*effect, error) {
		if amount == nil || amount.IsZero() {
			return nil, nativecommon.ErrZeroAmount
		}
		scaled, err := nativecommon.MulScale(amount, next.Config.ScaleFactor)
		if err != nil {
			return nil, err
		}
		return e.repay(next, caller, amount, &scaled)
	})
}

// PayAllLoan repays the caller's full loan, rounding the final fraction up to
// a whole token.
func (e *Engine) PayAllLoan(ctx context.Context, caller crypto.Address) error {
	return e.execute(ctx, "payAllLoan", caller, func(next *PoolState, now uint64) (*effect, error) {
		u, ok := next.Users.Get(caller)
		if !ok {
			return nil, nativecommon.ErrUserNotFound
		}
		if u.LoanAmount.IsZero() {
			return nil, fmt.Errorf("%w: no outstanding loan", nativecommon.ErrInvalidAmount)
		}
		whole := ceilDiv(&u.LoanAmount, next.Config.ScaleFactor)
		debt := u.LoanAmount
		return e.repay(next, caller, &whole, &debt)
	})
}

func (e *Engine) repay(next *PoolState, caller crypto.Address, amount, scaled *uint256.Int) (*effect, error) {
	tokens, token, err := e.tokenTransfer(next)
	if err != nil {
		return nil, err
	}
	u, ok := next.Users.Get(caller)
	if !ok {
		return nil, nativecommon.ErrUserNotFound
	}
	if scaled.Gt(&u.LoanAmount) {
		return nil, fmt.Errorf("%w: repayment exceeds loan", nativecommon.ErrInvalidAmount)
	}
	u.LoanAmount = subSaturating(&u.LoanAmount, scaled)
	next.TotalBorrowed = subSaturating(&next.TotalBorrowed, scaled)
	if err := next.revalue(u); err != nil {
		return nil, err
	}
	amt := amount.Clone()
	pool := e.pool
	remaining := u.LoanAmount
	return &effect{
		transfer: func(ctx context.Context) error { return tokens.TransferFrom(ctx, token, caller, pool, amt) },
		events: []events.Event{events.LendingLoanRepaid{
			Account:   caller.Raw(),
			Amount:    amt.ToBig(),
			Remaining: remaining.ToBig(),
		}},
	}, nil
}
