package lending

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"vstreet/core/events"
	"vstreet/crypto"
	nativecommon "vstreet/native/common"
)

// SetPrice updates the oracle price, revalues every account and liquidates
// positions that crossed the ceiling.
func (e *Engine) SetPrice(ctx context.Context, caller crypto.Address, price uint64) error {
	return e.execute(ctx, "setPrice", caller, func(next *PoolState, now uint64) (*effect, error) {
		if err := next.Admins.Require(caller); err != nil {
			return nil, err
		}
		next.Price = price
		next.Config.Price = price
		if err := next.revalueAll(); err != nil {
			return nil, err
		}
		liquidations, err := next.liquidateAll()
		if err != nil {
			return nil, err
		}
		e.logger.Info("lending price updated", "price", price, "liquidations", len(liquidations))
		evts := append([]events.Event{events.LendingPriceUpdated{Price: price}}, liquidations...)
		return &effect{events: evts}, nil
	})
}

// SetLTV changes the global LTV ceiling in percent.
func (e *Engine) SetLTV(ctx context.Context, caller crypto.Address, ltv uint64) error {
	return e.execute(ctx, "setLTV", caller, func(next *PoolState, now uint64) (*effect, error) {
		if err := next.Admins.Require(caller); err != nil {
			return nil, err
		}
		if ltv > 100 {
			return nil, fmt.Errorf("%w: ltv %d above 100", nativecommon.ErrInvalidAmount, ltv)
		}
		next.LTV = ltv
		if err := next.revalueAll(); err != nil {
			return nil, err
		}
		liquidations, err := next.liquidateAll()
		if err != nil {
			return nil, err
		}
		e.logger.Info("lending ltv updated", "ltv", ltv, "liquidations", len(liquidations))
		evts := append([]events.Event{events.LendingLTVUpdated{LTV: ltv}}, liquidations...)
		return &effect{events: evts}, nil
	})
}

// ModifyAvailableRewardsPool sets the rewards pool to amount whole tokens.
func (e *Engine) ModifyAvailableRewardsPool(ctx context.Context, caller crypto.Address, amount *uint256.Int) error {
	return e.execute(ctx, "modifyRewardsPool", caller, func(next *PoolState, now uint64) (*effect, error) {
		if err := next.Admins.Require(caller); err != nil {
			return nil, err
		}
		if amount == nil {
			amount = new(uint256.Int)
		}
		scaled, err := nativecommon.MulScale(amount, next.Config.ScaleFactor)
		if err != nil {
			return nil, err
		}
		next.AvailableRewardsPool = scaled
		return &effect{events: []events.Event{events.LendingRewardsPoolUpdated{Amount: scaled.ToBig()}}}, nil
	})
}

// AddAdmin grants admin privileges to addr.
func (e *Engine) AddAdmin(ctx context.Context, caller, addr crypto.Address) error {
	return e.execute(ctx, "addAdmin", caller, func(next *PoolState, now uint64) (*effect, error) {
		if err := next.Admins.Require(caller); err != nil {
			return nil, err
		}
		if err := next.Admins.Add(addr); err != nil {
			return nil, err
		}
		e.logger.Info("lending admin added", "admin", addr.String(), "by", caller.String())
		return &effect{events: []events.Event{events.AdminChanged{Module: ModuleName, Admin: addr.Raw(), Added: true}}}, nil
	})
}

// RemoveAdmin revokes admin privileges from addr.
func (e *Engine) RemoveAdmin(ctx context.Context, caller, addr crypto.Address) error {
	return e.execute(ctx, "removeAdmin", caller, func(next *PoolState, now uint64) (*effect, error) {
		if err := next.Admins.Require(caller); err != nil {
			return nil, err
		}
		if err := next.Admins.Remove(addr); err != nil {
			return nil, err
		}
		e.logger.Info("lending admin removed", "admin", addr.String(), "by", caller.String())
		return &effect{events: []events.Event{events.AdminChanged{Module: ModuleName, Admin: addr.Raw()}}}, nil
	})
}

// SetTokenContract configures the fungible token the pool lends.
func (e *Engine) SetTokenContract(ctx context.Context, caller, token crypto.Address) error {
	return e.execute(ctx, "setTokenContract", caller, func(next *PoolState, now uint64) (*effect, error) {
		if err := next.Admins.Require(caller); err != nil {
			return nil, err
		}
		if token.IsZero() {
			return nil, fmt.Errorf("%w: zero token address", nativecommon.ErrInvalidAmount)
		}
		next.TokenContract = &token
		return &effect{events: []events.Event{events.TokenContractSet{Module: ModuleName, Token: token.Raw()}}}, nil
	})
}

// SetPaused halts or resumes every lending operation. It bypasses the pause
// guard so a paused pool can be resumed.
func (e *Engine) SetPaused(ctx context.Context, caller crypto.Address, paused bool) error {
	const op = "setPaused"
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return e.fail(op, caller, errNilState)
	}
	if err := e.state.Admins.Require(caller); err != nil {
		return e.fail(op, caller, err)
	}
	ctl, ok := e.pauses.(nativecommon.PauseControl)
	if !ok {
		return e.fail(op, caller, errPausesReadOnly)
	}
	if err := ctx.Err(); err != nil {
		return e.fail(op, caller, err)
	}
	ctl.Set(ModuleName, paused)
	e.logger.Warn("lending pause toggled", "paused", paused, "by", caller.String())
	e.emitter.Emit(events.ModulePauseChanged{Module: ModuleName, Paused: paused, By: caller.Raw()})
	return nil
}
