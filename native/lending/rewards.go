package lending

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"vstreet/core/events"
	"vstreet/crypto"
	nativecommon "vstreet/native/common"
)

// accrue returns principal*rate*elapsed/(secondsPerYear*scale).
func accrue(principal *uint256.Int, rate, elapsed, scale, secondsPerYear uint64) (uint256.Int, error) {
	var out uint256.Int
	if principal.IsZero() || rate == 0 || elapsed == 0 {
		return out, nil
	}
	if _, overflow := out.MulOverflow(principal, u256(rate)); overflow {
		return uint256.Int{}, nativecommon.ErrArithmeticOverflow
	}
	if _, overflow := out.MulOverflow(&out, u256(elapsed)); overflow {
		return uint256.Int{}, nativecommon.ErrArithmeticOverflow
	}
	denom := new(uint256.Int).Mul(u256(secondsPerYear), u256(scale))
	if denom.IsZero() {
		return uint256.Int{}, nil
	}
	out.Div(&out, denom)
	return out, nil
}

// accrueSupply credits supply interest to u since its checkpoint and moves
// the checkpoint to now, whatever the balance.
func accrueSupply(u *UserAccount, rate uint64, cfg Config, now uint64) error {
	if now <= u.SupplyCheckpoint {
		return nil
	}
	elapsed := now - u.SupplyCheckpoint
	u.SupplyCheckpoint = now
	delta, err := accrue(&u.Balance, rate, elapsed, cfg.ScaleFactor, cfg.SecondsPerYear)
	if err != nil {
		return err
	}
	u.Rewards = addSaturating(&u.Rewards, &delta)
	return nil
}

// accrueLoan adds borrow interest to an active loan and returns the amount
// added. Inactive loans only advance the checkpoint.
func accrueLoan(u *UserAccount, borrowRate uint64, cfg Config, now uint64) (uint256.Int, error) {
	if now <= u.LoanCheckpoint {
		return uint256.Int{}, nil
	}
	elapsed := now - u.LoanCheckpoint
	u.LoanCheckpoint = now
	if u.Loan != LoanActive {
		return uint256.Int{}, nil
	}
	interest, err := accrue(&u.LoanAmount, borrowRate, elapsed, cfg.ScaleFactor, cfg.SecondsPerYear)
	if err != nil {
		return uint256.Int{}, err
	}
	u.LoanAmount = addSaturating(&u.LoanAmount, &interest)
	return interest, nil
}

// accrueAll runs the accrual sweep over every account in directory order.
// Calling it twice for the same timestamp is a no-op.
func (p *PoolState) accrueAll(now uint64) error {
	var sweepErr error
	p.Users.Range(func(addr crypto.Address, u *UserAccount) bool {
		if err := accrueSupply(u, p.InterestRate, p.Config, now); err != nil {
			sweepErr = fmt.Errorf("accrue %s: %w", addr, err)
			return false
		}
		if !p.Config.BorrowInterest {
			if now > u.LoanCheckpoint {
				u.LoanCheckpoint = now
			}
			return true
		}
		interest, err := accrueLoan(u, p.BorrowRate, p.Config, now)
		if err != nil {
			sweepErr = fmt.Errorf("accrue loan %s: %w", addr, err)
			return false
		}
		if !interest.IsZero() {
			p.TotalBorrowed = addSaturating(&p.TotalBorrowed, &interest)
			if err := p.revalue(u); err != nil {
				sweepErr = err
				return false
			}
		}
		return true
	})
	return sweepErr
}

// WithdrawRewards pays out the caller's unwithdrawn rewards in whole tokens.
// Any sub-token remainder stays credited to the caller.
func (e *Engine) WithdrawRewards(ctx context.Context, caller crypto.Address) (*uint256.Int, error) {
	var paid uint256.Int
	err := e.execute(ctx, "withdrawRewards", caller, func(next *PoolState, now uint64) (*effect, error) {
		tokens, token, err := e.tokenTransfer(next)
		if err != nil {
			return nil, err
		}
		u, ok := next.Users.Get(caller)
		if !ok {
			return nil, nativecommon.ErrUserNotFound
		}
		cfg := next.Config
		withdrawable := subSaturating(&u.Rewards, &u.RewardsWithdrawn)
		if withdrawable.Gt(&next.AvailableRewardsPool) {
			return nil, nativecommon.ErrInsufficientRewardsPool
		}
		if withdrawable.Lt(u256(cfg.MinRewardWithdrawal)) {
			return nil, nativecommon.ErrInsufficientUserRewards
		}
		whole := new(uint256.Int).Div(&withdrawable, u256(cfg.ScaleFactor))
		if whole.IsZero() {
			return nil, nativecommon.ErrInsufficientUserRewards
		}
		scaled, err := nativecommon.MulScale(whole, cfg.ScaleFactor)
		if err != nil {
			return nil, err
		}
		u.RewardsWithdrawn = addSaturating(&u.RewardsWithdrawn, &scaled)
		next.TotalRewardsDistributed = addSaturating(&next.TotalRewardsDistributed, &scaled)
		next.AvailableRewardsPool = subSaturating(&next.AvailableRewardsPool, &scaled)
		paid = *whole
		return &effect{
			transfer: func(ctx context.Context) error { return tokens.Transfer(ctx, token, caller, whole) },
			events:   []events.Event{events.LendingRewardsWithdrawn{Account: caller.Raw(), Amount: whole.ToBig()}},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &paid, nil
}
