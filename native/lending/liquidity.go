package lending

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"vstreet/core/events"
	"vstreet/crypto"
	nativecommon "vstreet/native/common"
)

// DepositLiquidity pulls amount whole tokens from caller into the pool and
// credits amount*scale to the caller's supplied balance.
func (e *Engine) DepositLiquidity(ctx context.Context, caller crypto.Address, amount *uint256.Int) error {
	return e.execute(ctx, "depositLiquidity", caller, func(next *PoolState, now uint64) (*effect, error) {
		tokens, token, err := e.tokenTransfer(next)
		if err != nil {
			return nil, err
		}
		if err := nativecommon.CheckCap(amount, next.Config.MaxDeposit); err != nil {
			return nil, err
		}
		scaled, err := nativecommon.MulScale(amount, next.Config.ScaleFactor)
		if err != nil {
			return nil, err
		}
		u := next.Users.GetOrCreate(caller, now)
		balance, err := addChecked(&u.Balance, &scaled)
		if err != nil {
			return nil, err
		}
		total, err := addChecked(&next.TotalSupplied, &scaled)
		if err != nil {
			return nil, err
		}
		u.Balance = balance
		next.TotalSupplied = total
		amt := amount.Clone()
		pool := e.pool
		return &effect{
			transfer: func(ctx context.Context) error { return tokens.TransferFrom(ctx, token, caller, pool, amt) },
			events:   []events.Event{events.LendingDeposited{Account: caller.Raw(), Amount: amt.ToBig()}},
		}, nil
	})
}

// WithdrawLiquidity returns amount whole tokens of the caller's supplied
// balance. Liquidity lent out cannot be withdrawn.
func (e *Engine) WithdrawLiquidity(ctx context.Context, caller crypto.Address, amount *uint256.Int) error {
	return e.execute(ctx, "withdrawLiquidity", caller, func(next *PoolState, now uint64) (*effect, error) {
		tokens, token, err := e.tokenTransfer(next)
		if err != nil {
			return nil, err
		}
		if err := nativecommon.CheckCap(amount, next.Config.MaxWithdraw); err != nil {
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
		if scaled.Gt(&u.Balance) {
			return nil, fmt.Errorf("%w: withdrawal exceeds balance", nativecommon.ErrInvalidAmount)
		}
		free := subSaturating(&next.TotalSupplied, &next.TotalBorrowed)
		if scaled.Gt(&free) {
			return nil, fmt.Errorf("%w: insufficient pool liquidity", nativecommon.ErrInvalidAmount)
		}
		u.Balance = subSaturating(&u.Balance, &scaled)
		next.TotalSupplied = subSaturating(&next.TotalSupplied, &scaled)
		amt := amount.Clone()
		return &effect{
			transfer: func(ctx context.Context) error { return tokens.Transfer(ctx, token, caller, amt) },
			events:   []events.Event{events.LendingWithdrawn{Account: caller.Raw(), Amount: amt.ToBig()}},
		}, nil
	})
}
