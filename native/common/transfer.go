package common

import (
	"context"
	"time"

	"github.com/holiman/uint256"

	"vstreet/crypto"
)

// TokenTransfer moves fungible tokens held by an external token service.
// The engines act as the pool account: Transfer pays out of the pool and
// TransferFrom pulls from a user who has pre-approved the pool.
type TokenTransfer interface {
	Transfer(ctx context.Context, token, to crypto.Address, amount *uint256.Int) error
	TransferFrom(ctx context.Context, token, from, to crypto.Address, amount *uint256.Int) error
}

// ValueSender returns native value held by the pool to an account.
type ValueSender interface {
	SendValue(ctx context.Context, to crypto.Address, amount *uint256.Int) error
}

// ValueReceiver pulls native value from an account into the pool. Collateral
// is credited only after the pull succeeds.
type ValueReceiver interface {
	ReceiveValue(ctx context.Context, from crypto.Address, amount *uint256.Int) error
}

// Clock supplies the current time to the engines.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// UnixNow returns the clock reading in unix seconds, clamped at zero.
func UnixNow(c Clock) uint64 {
	if c == nil {
		c = SystemClock{}
	}
	ts := c.Now().Unix()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}
