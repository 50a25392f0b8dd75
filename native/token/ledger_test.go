package token

import (
	"context"
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"vstreet/crypto"
)

func addr(b byte) crypto.Address {
	return crypto.AddressFromRaw([crypto.AddressLength]byte{b})
}

func TestLedgerTransferFrom(t *testing.T) {
	pool, user, tok := addr(1), addr(2), addr(9)
	l := NewLedger(pool)
	l.Mint(tok, user, uint256.NewInt(100))

	err := l.TransferFrom(context.Background(), tok, user, pool, uint256.NewInt(10))
	require.True(t, errors.Is(err, ErrInsufficientAllowance))

	l.Approve(tok, user, pool, uint256.NewInt(50))
	require.NoError(t, l.TransferFrom(context.Background(), tok, user, pool, uint256.NewInt(40)))
	bal := l.BalanceOf(tok, pool)
	require.Equal(t, uint64(40), bal.Uint64())

	err = l.TransferFrom(context.Background(), tok, user, pool, uint256.NewInt(20))
	require.ErrorIs(t, err, ErrInsufficientAllowance)

	require.NoError(t, l.Transfer(context.Background(), tok, user, uint256.NewInt(15)))
	bal = l.BalanceOf(tok, user)
	require.Equal(t, uint64(75), bal.Uint64())
	require.ErrorIs(t, l.Transfer(context.Background(), tok, user, uint256.NewInt(26)), ErrInsufficientBalance)
	require.ErrorIs(t, l.Transfer(context.Background(), addr(8), user, uint256.NewInt(1)), ErrUnknownToken)
}

func TestLedgerNativeValue(t *testing.T) {
	pool, user := addr(1), addr(2)
	l := NewLedger(pool)
	l.MintNative(user, uint256.NewInt(5))
	require.ErrorIs(t, l.SendValue(context.Background(), user, uint256.NewInt(1)), ErrInsufficientBalance)

	require.NoError(t, l.ReceiveValue(context.Background(), user, uint256.NewInt(5)))
	held := l.NativeBalance(pool)
	require.Equal(t, uint64(5), held.Uint64())
	require.ErrorIs(t, l.ReceiveValue(context.Background(), user, uint256.NewInt(1)), ErrInsufficientBalance)

	require.NoError(t, l.SendValue(context.Background(), user, uint256.NewInt(3)))
	got := l.NativeBalance(user)
	require.Equal(t, uint64(3), got.Uint64())
	require.ErrorIs(t, l.SendValue(context.Background(), user, uint256.NewInt(3)), ErrInsufficientBalance)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, l.SendValue(ctx, user, uint256.NewInt(1)), context.Canceled)
	require.ErrorIs(t, l.ReceiveValue(ctx, user, uint256.NewInt(1)), context.Canceled)
}
