package lending

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"vstreet/core/events"
	"vstreet/crypto"
	nativecommon "vstreet/native/common"
)

func bg() context.Context { return context.Background() }

const year = 365 * 24 * time.Hour

func TestDepositWithdrawScenario(t *testing.T) {
	h := newHarness(t, nil)
	alice := makeAddress(0x10)
	h.fund(alice, 1_000)

	require.NoError(t, h.engine.DepositLiquidity(bg(), alice, amt(1_000)))
	want := scaled(1_000)
	total := h.engine.TotalDeposited()
	require.True(t, total.Eq(&want), "total %s", total.Dec())
	bal, err := h.engine.UserBalance(alice)
	require.NoError(t, err)
	require.True(t, bal.Eq(&want))

	require.NoError(t, h.engine.WithdrawLiquidity(bg(), alice, amt(500)))
	want = scaled(500)
	total = h.engine.TotalDeposited()
	require.True(t, total.Eq(&want))

	require.NoError(t, h.engine.WithdrawLiquidity(bg(), alice, amt(500)))
	total = h.engine.TotalDeposited()
	require.True(t, total.IsZero())
	back := h.ledger.BalanceOf(h.token, alice)
	require.Equal(t, uint64(1_000), back.Uint64())
	require.Equal(t, 1, h.events.count(events.TypeLendingDeposited))
	require.Equal(t, 2, h.events.count(events.TypeLendingWithdrawn))
}

func TestDepositWithdrawRoundTripRestoresState(t *testing.T) {
	h := newHarness(t, nil)
	alice, bob := makeAddress(0x10), makeAddress(0x11)
	h.fund(alice, 300)
	h.fund(bob, 50)
	require.NoError(t, h.engine.DepositLiquidity(bg(), alice, amt(300)))

	before := h.engine.TotalDeposited()
	require.NoError(t, h.engine.DepositLiquidity(bg(), bob, amt(50)))
	require.NoError(t, h.engine.WithdrawLiquidity(bg(), bob, amt(50)))

	after := h.engine.TotalDeposited()
	require.True(t, before.Eq(&after))
	bal, err := h.engine.UserBalance(bob)
	require.NoError(t, err)
	require.True(t, bal.IsZero())
}

func TestWithdrawLiquidityValidation(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MaxWithdraw = 100 })
	alice := makeAddress(0x10)
	h.fund(alice, 500)

	err := h.engine.WithdrawLiquidity(bg(), alice, amt(10))
	require.ErrorIs(t, err, nativecommon.ErrUserNotFound)

	require.NoError(t, h.engine.DepositLiquidity(bg(), alice, amt(50)))
	require.ErrorIs(t, h.engine.WithdrawLiquidity(bg(), alice, amt(0)), nativecommon.ErrZeroAmount)
	require.ErrorIs(t, h.engine.WithdrawLiquidity(bg(), alice, amt(51)), nativecommon.ErrInvalidAmount)
	require.ErrorIs(t, h.engine.WithdrawLiquidity(bg(), alice, amt(101)), nativecommon.ErrInvalidAmount)
	require.GreaterOrEqual(t, h.events.count(events.TypeLendingError), 3)
}

func TestDepositCapAndTokenConfiguration(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MaxDeposit = 10 })
	alice := makeAddress(0x10)
	h.fund(alice, 100)
	require.ErrorIs(t, h.engine.DepositLiquidity(bg(), alice, amt(11)), nativecommon.ErrInvalidAmount)
	require.ErrorIs(t, h.engine.DepositLiquidity(bg(), alice, amt(0)), nativecommon.ErrZeroAmount)

	state := NewPoolState(Params{Owner: h.owner, LTV: 70, Config: DefaultConfig()})
	bare := NewEngine(h.pool, state)
	bare.SetTokenTransfer(h.ledger)
	require.ErrorIs(t, bare.DepositLiquidity(bg(), alice, amt(1)), nativecommon.ErrTokenNotConfigured)
	require.ErrorIs(t, bare.SetTokenContract(bg(), alice, h.token), nativecommon.ErrInsufficientAdminPrivileges)
	require.NoError(t, bare.SetTokenContract(bg(), h.owner, h.token))
	require.NoError(t, bare.DepositLiquidity(bg(), alice, amt(1)))
	got, ok := bare.TokenContract()
	require.True(t, ok)
	require.Equal(t, h.token, got)
}

func TestFailedTransferLeavesStateUntouched(t *testing.T) {
	h := newHarness(t, nil)
	alice := makeAddress(0x10)
	h.ledger.Mint(h.token, alice, uint256.NewInt(100))

	before := h.engine.ContractInfo()
	err := h.engine.DepositLiquidity(bg(), alice, amt(100))
	require.ErrorIs(t, err, nativecommon.ErrTransferFailed)

	after := h.engine.ContractInfo()
	require.True(t, before.TotalSupplied.Eq(&after.TotalSupplied))
	require.Equal(t, before.Users, after.Users)
	_, err = h.engine.UserInfo(alice)
	require.ErrorIs(t, err, nativecommon.ErrUserNotFound)
	require.Equal(t, 1, h.events.count(events.TypeLendingError))
	require.Zero(t, h.events.count(events.TypeLendingDeposited))
}

func TestCancelledContextAbortsBeforeCommit(t *testing.T) {
	h := newHarness(t, nil)
	alice := makeAddress(0x10)
	h.fund(alice, 10)
	ctx, cancel := context.WithCancel(bg())
	cancel()
	err := h.engine.DepositLiquidity(ctx, alice, amt(10))
	require.True(t, errors.Is(err, context.Canceled))
	total := h.engine.TotalDeposited()
	require.True(t, total.IsZero())
}

func TestRewardsAccrueOverOneYear(t *testing.T) {
	h := newHarness(t, nil)
	alice := makeAddress(0x10)
	h.fund(alice, 1_000_000)
	require.NoError(t, h.engine.DepositLiquidity(bg(), alice, amt(1_000_000)))

	h.clock.Advance(year)
	_, err := h.engine.Sweep(bg())
	require.NoError(t, err)

	info := h.user(alice)
	want := new(uint256.Int).Div(&info.Balance, uint256.NewInt(10))
	require.True(t, info.Rewards.Eq(want), "rewards %s want %s", info.Rewards.Dec(), want.Dec())

	// A second sweep at the same instant changes nothing.
	_, err = h.engine.Sweep(bg())
	require.NoError(t, err)
	again := h.user(alice)
	require.True(t, again.Rewards.Eq(&info.Rewards))
	require.Equal(t, info.SupplyCheckpoint, again.SupplyCheckpoint)
}

func TestNoRetroactiveRewardsForLateDeposit(t *testing.T) {
	h := newHarness(t, nil)
	alice := makeAddress(0x10)
	h.collateral(alice, 1)
	h.clock.Advance(year)

	h.fund(alice, 1_000)
	require.NoError(t, h.engine.DepositLiquidity(bg(), alice, amt(1_000)))
	_, err := h.engine.Sweep(bg())
	require.NoError(t, err)
	info := h.user(alice)
	require.True(t, info.Rewards.IsZero(), "unexpected rewards %s", info.Rewards.Dec())
}

func TestWithdrawRewards(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MinRewardWithdrawal = 1_000_000 })
	alice, bob := makeAddress(0x10), makeAddress(0x11)
	h.fund(alice, 1_000)
	require.NoError(t, h.engine.DepositLiquidity(bg(), alice, amt(1_000)))

	_, err := h.engine.WithdrawRewards(bg(), bob)
	require.ErrorIs(t, err, nativecommon.ErrUserNotFound)
	_, err = h.engine.WithdrawRewards(bg(), alice)
	require.ErrorIs(t, err, nativecommon.ErrInsufficientUserRewards)

	h.clock.Advance(year)
	_, err = h.engine.WithdrawRewards(bg(), alice)
	require.ErrorIs(t, err, nativecommon.ErrInsufficientRewardsPool)

	require.ErrorIs(t, h.engine.ModifyAvailableRewardsPool(bg(), alice, amt(500)), nativecommon.ErrInsufficientAdminPrivileges)
	require.NoError(t, h.engine.ModifyAvailableRewardsPool(bg(), h.owner, amt(500)))

	paid, err := h.engine.WithdrawRewards(bg(), alice)
	require.NoError(t, err)
	require.Equal(t, uint64(100), paid.Uint64())

	info := h.user(alice)
	withdrawn := scaled(100)
	require.True(t, info.RewardsWithdrawn.Eq(&withdrawn))
	pool := h.engine.ContractInfo()
	remaining := scaled(400)
	require.True(t, pool.AvailableRewardsPool.Eq(&remaining), "pool %s", pool.AvailableRewardsPool.Dec())
	require.True(t, pool.TotalRewardsDistributed.Eq(&withdrawn))

	_, err = h.engine.WithdrawRewards(bg(), alice)
	require.ErrorIs(t, err, nativecommon.ErrInsufficientUserRewards)
}

func TestTakeLoanWithinMaxLoan(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MaxLoanAmount = 200 })
	supplier, borrower := makeAddress(0x10), makeAddress(0x20)
	h.fund(supplier, 1_000)
	require.NoError(t, h.engine.DepositLiquidity(bg(), supplier, amt(1_000)))

	require.ErrorIs(t, h.engine.TakeLoan(bg(), borrower, amt(10)), nativecommon.ErrUserNotFound)

	h.collateral(borrower, 100)
	info := h.user(borrower)
	cv := scaled(200)
	mla := scaled(140)
	require.True(t, info.CollateralValue.Eq(&cv))
	require.True(t, info.MaxLoan.Eq(&mla))
	require.True(t, info.AvailableToWithdraw.Eq(&info.BalanceNative))

	require.ErrorIs(t, h.engine.TakeLoan(bg(), borrower, amt(0)), nativecommon.ErrZeroAmount)
	require.ErrorIs(t, h.engine.TakeLoan(bg(), borrower, amt(201)), nativecommon.ErrInvalidAmount)
	require.NoError(t, h.engine.TakeLoan(bg(), borrower, amt(100)))

	info = h.user(borrower)
	require.True(t, info.LoanActive)
	require.Equal(t, uint64(50), info.LTV)
	half := new(uint256.Int).Mul(uint256.NewInt(50), uint256.NewInt(oneNative))
	require.True(t, info.AvailableToWithdraw.Eq(half))
	got := h.ledger.BalanceOf(h.token, borrower)
	require.Equal(t, uint64(100), got.Uint64())

	require.ErrorIs(t, h.engine.TakeLoan(bg(), borrower, amt(41)), nativecommon.ErrInvalidAmount)
	pool := h.engine.ContractInfo()
	borrowed := scaled(100)
	require.True(t, pool.TotalBorrowed.Eq(&borrowed))
	require.Equal(t, uint64(10), pool.Utilization)
}

func TestTakeLoanNeedsPoolLiquidity(t *testing.T) {
	h := newHarness(t, nil)
	supplier, borrower := makeAddress(0x10), makeAddress(0x20)
	h.fund(supplier, 10)
	require.NoError(t, h.engine.DepositLiquidity(bg(), supplier, amt(10)))
	h.collateral(borrower, 100)
	require.ErrorIs(t, h.engine.TakeLoan(bg(), borrower, amt(11)), nativecommon.ErrInvalidAmount)
	require.NoError(t, h.engine.TakeLoan(bg(), borrower, amt(10)))
	require.ErrorIs(t, h.engine.WithdrawLiquidity(bg(), supplier, amt(1)), nativecommon.ErrInvalidAmount)
	require.Equal(t, uint64(100), h.engine.ContractInfo().Utilization)
}

func TestRepayLoan(t *testing.T) {
	h := newHarness(t, nil)
	supplier, borrower := makeAddress(0x10), makeAddress(0x20)
	h.fund(supplier, 1_000)
	require.NoError(t, h.engine.DepositLiquidity(bg(), supplier, amt(1_000)))
	h.collateral(borrower, 100)
	require.NoError(t, h.engine.TakeLoan(bg(), borrower, amt(70)))
	h.ledger.Approve(h.token, borrower, h.pool, uint256.NewInt(70))

	require.ErrorIs(t, h.engine.PayLoan(bg(), borrower, amt(0)), nativecommon.ErrZeroAmount)
	require.NoError(t, h.engine.PayLoan(bg(), borrower, amt(30)))
	info := h.user(borrower)
	left := scaled(40)
	require.True(t, info.LoanAmount.Eq(&left))
	require.True(t, info.LoanActive)
	require.ErrorIs(t, h.engine.PayLoan(bg(), borrower, amt(41)), nativecommon.ErrInvalidAmount)

	require.NoError(t, h.engine.PayAllLoan(bg(), borrower))
	info = h.user(borrower)
	require.True(t, info.LoanAmount.IsZero())
	require.False(t, info.LoanActive)
	require.Equal(t, uint64(0), info.LTV)
	require.True(t, info.AvailableToWithdraw.Eq(&info.BalanceNative))
	pool := h.engine.ContractInfo()
	require.True(t, pool.TotalBorrowed.IsZero())
	require.ErrorIs(t, h.engine.PayAllLoan(bg(), borrower), nativecommon.ErrInvalidAmount)
	require.Equal(t, 2, h.events.count(events.TypeLendingLoanRepaid))
}

func TestRepayTransferFailureKeepsDebt(t *testing.T) {
	h := newHarness(t, nil)
	supplier, borrower := makeAddress(0x10), makeAddress(0x20)
	h.fund(supplier, 1_000)
	require.NoError(t, h.engine.DepositLiquidity(bg(), supplier, amt(1_000)))
	h.collateral(borrower, 100)
	require.NoError(t, h.engine.TakeLoan(bg(), borrower, amt(70)))

	require.ErrorIs(t, h.engine.PayAllLoan(bg(), borrower), nativecommon.ErrTransferFailed)
	info := h.user(borrower)
	debt := scaled(70)
	require.True(t, info.LoanAmount.Eq(&debt))
	require.True(t, info.LoanActive)
}

func TestLiquidationOnPriceDrop(t *testing.T) {
	h := newHarness(t, nil)
	supplier, borrower, safe := makeAddress(0x10), makeAddress(0x20), makeAddress(0x21)
	h.fund(supplier, 1_000)
	require.NoError(t, h.engine.DepositLiquidity(bg(), supplier, amt(1_000)))
	h.collateral(borrower, 100)
	h.collateral(safe, 100)
	require.NoError(t, h.engine.TakeLoan(bg(), borrower, amt(70)))
	require.NoError(t, h.engine.TakeLoan(bg(), safe, amt(20)))

	require.ErrorIs(t, h.engine.SetPrice(bg(), borrower, 1_000_000), nativecommon.ErrInsufficientAdminPrivileges)
	// LTV lands exactly on the 70% ceiling.
	require.NoError(t, h.engine.SetPrice(bg(), h.owner, 1_000_000))

	info := h.user(borrower)
	require.False(t, info.LoanActive)
	require.True(t, info.LoanAmount.IsZero())
	remaining := new(uint256.Int).Mul(uint256.NewInt(30), uint256.NewInt(oneNative))
	require.True(t, info.BalanceNative.Eq(remaining), "collateral %s", info.BalanceNative.Dec())

	other := h.user(safe)
	require.True(t, other.LoanActive)
	require.Equal(t, uint64(20), other.LTV)

	pool := h.engine.ContractInfo()
	borrowed := scaled(20)
	require.True(t, pool.TotalBorrowed.Eq(&borrowed))
	seized := new(uint256.Int).Mul(uint256.NewInt(70), uint256.NewInt(oneNative))
	require.True(t, pool.SeizedCollateral.Eq(seized))
	require.Equal(t, uint64(1_000_000), pool.Price)
	require.Equal(t, 1, h.events.count(events.TypeLendingLiquidated))
}

func TestCollateralWithdrawal(t *testing.T) {
	h := newHarness(t, nil)
	supplier, borrower := makeAddress(0x10), makeAddress(0x20)
	h.fund(supplier, 1_000)
	require.NoError(t, h.engine.DepositLiquidity(bg(), supplier, amt(1_000)))
	require.ErrorIs(t, h.engine.WithdrawCollateral(bg(), borrower, amt(1)), nativecommon.ErrUserNotFound)
	require.ErrorIs(t, h.engine.DepositCollateral(bg(), borrower, uint256.NewInt(0)), nativecommon.ErrZeroAmount)

	h.collateral(borrower, 100)
	require.NoError(t, h.engine.TakeLoan(bg(), borrower, amt(70)))
	info := h.user(borrower)
	require.Equal(t, uint64(35), info.LTV)

	require.ErrorIs(t, h.engine.WithdrawCollateral(bg(), borrower, amt(66)), nativecommon.ErrInvalidAmount)
	require.NoError(t, h.engine.WithdrawCollateral(bg(), borrower, amt(10)))
	info = h.user(borrower)
	require.Equal(t, uint64(38), info.LTV)
	native := h.ledger.NativeBalance(borrower)
	ten := new(uint256.Int).Mul(uint256.NewInt(10), uint256.NewInt(oneNative))
	require.True(t, native.Eq(ten))
}

func TestCollateralWithdrawalTriggersLiquidation(t *testing.T) {
	h := newHarness(t, nil)
	supplier, borrower := makeAddress(0x10), makeAddress(0x20)
	h.fund(supplier, 1_000)
	require.NoError(t, h.engine.DepositLiquidity(bg(), supplier, amt(1_000)))
	h.collateral(borrower, 100)
	require.NoError(t, h.engine.TakeLoan(bg(), borrower, amt(70)))

	require.NoError(t, h.engine.WithdrawCollateral(bg(), borrower, amt(65)))
	info := h.user(borrower)
	require.False(t, info.LoanActive)
	require.True(t, info.BalanceNative.IsZero())
	require.Equal(t, 1, h.events.count(events.TypeLendingLiquidated))
}

func TestSetLTVValidationAndLiquidation(t *testing.T) {
	h := newHarness(t, nil)
	supplier, borrower := makeAddress(0x10), makeAddress(0x20)
	h.fund(supplier, 1_000)
	require.NoError(t, h.engine.DepositLiquidity(bg(), supplier, amt(1_000)))
	h.collateral(borrower, 100)
	require.NoError(t, h.engine.TakeLoan(bg(), borrower, amt(70)))

	require.ErrorIs(t, h.engine.SetLTV(bg(), h.owner, 101), nativecommon.ErrInvalidAmount)
	require.NoError(t, h.engine.SetLTV(bg(), h.owner, 80))
	info := h.user(borrower)
	mla := scaled(160)
	require.True(t, info.MaxLoan.Eq(&mla))

	require.NoError(t, h.engine.SetLTV(bg(), h.owner, 30))
	info = h.user(borrower)
	require.False(t, info.LoanActive)
}

func TestAdminManagement(t *testing.T) {
	h := newHarness(t, nil)
	ops := makeAddress(0x30)
	require.ErrorIs(t, h.engine.AddAdmin(bg(), ops, ops), nativecommon.ErrInsufficientAdminPrivileges)
	require.NoError(t, h.engine.AddAdmin(bg(), h.owner, ops))
	require.ErrorIs(t, h.engine.AddAdmin(bg(), ops, ops), nativecommon.ErrAdminAlreadyExists)
	require.NoError(t, h.engine.SetPrice(bg(), ops, 3_000_000))
	require.NoError(t, h.engine.RemoveAdmin(bg(), h.owner, ops))
	require.ErrorIs(t, h.engine.RemoveAdmin(bg(), h.owner, ops), nativecommon.ErrAdminDoesNotExist)
	require.ErrorIs(t, h.engine.SetPrice(bg(), ops, 1), nativecommon.ErrInsufficientAdminPrivileges)
	require.Equal(t, h.owner, h.engine.Owner())
	require.Equal(t, 1, h.events.count(events.TypeAdminAdded))
	require.Equal(t, 1, h.events.count(events.TypeAdminRemoved))
}

func TestBorrowInterestAccrues(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.BorrowInterest = true
		c.DevFee = 100_000
	})
	supplier, borrower := makeAddress(0x10), makeAddress(0x20)
	h.fund(supplier, 1_000)
	require.NoError(t, h.engine.DepositLiquidity(bg(), supplier, amt(1_000)))
	h.collateral(borrower, 100)
	require.NoError(t, h.engine.TakeLoan(bg(), borrower, amt(100)))

	pool := h.engine.ContractInfo()
	require.Equal(t, uint64(110_000), pool.BorrowRate)

	h.clock.Advance(year)
	_, err := h.engine.Sweep(bg())
	require.NoError(t, err)

	info := h.user(borrower)
	want := scaled(111)
	require.True(t, info.LoanAmount.Eq(&want), "loan %s", info.LoanAmount.Dec())
	pool = h.engine.ContractInfo()
	require.True(t, pool.TotalBorrowed.Eq(&want))
}

func TestPausedEngineRejectsOperations(t *testing.T) {
	h := newHarness(t, nil)
	pauses := nativecommon.NewPauses(ModuleName)
	h.engine.SetPauses(pauses)
	alice := makeAddress(0x10)
	h.fund(alice, 10)
	require.ErrorIs(t, h.engine.DepositLiquidity(bg(), alice, amt(10)), nativecommon.ErrModulePaused)

	require.ErrorIs(t, h.engine.SetPaused(bg(), alice, false), nativecommon.ErrInsufficientAdminPrivileges)
	require.True(t, pauses.IsPaused(ModuleName))
	require.NoError(t, h.engine.SetPaused(bg(), h.owner, false))
	require.NoError(t, h.engine.DepositLiquidity(bg(), alice, amt(10)))

	require.NoError(t, h.engine.SetPaused(bg(), h.owner, true))
	require.ErrorIs(t, h.engine.WithdrawLiquidity(bg(), alice, amt(10)), nativecommon.ErrModulePaused)
	require.Equal(t, 1, h.events.count(events.TypeModulePaused))
	require.Equal(t, 1, h.events.count(events.TypeModuleResumed))
}

func TestSetPausedNeedsControllablePauses(t *testing.T) {
	h := newHarness(t, nil)
	require.ErrorIs(t, h.engine.SetPaused(bg(), h.owner, true), errPausesReadOnly)
}

type memStore struct{ saved int }

func (m *memStore) PutLendingPool(*PoolState) error {
	m.saved++
	return nil
}

func TestCommittedOperationsArePersisted(t *testing.T) {
	h := newHarness(t, nil)
	store := &memStore{}
	h.engine.SetStore(store)
	alice := makeAddress(0x10)
	h.fund(alice, 10)
	require.NoError(t, h.engine.DepositLiquidity(bg(), alice, amt(10)))
	require.Error(t, h.engine.DepositLiquidity(bg(), alice, amt(10)))
	require.Equal(t, 1, store.saved)
	require.Len(t, h.engine.AllUsers(), 1)
}

func TestSupplyInvariantHolds(t *testing.T) {
	h := newHarness(t, nil)
	users := []byte{0x10, 0x11, 0x12}
	for i, b := range users {
		addr := makeAddress(b)
		h.fund(addr, 1_000)
		require.NoError(t, h.engine.DepositLiquidity(bg(), addr, amt(uint64(100*(i+1)))))
	}
	require.NoError(t, h.engine.WithdrawLiquidity(bg(), makeAddress(0x11), amt(150)))

	var sum uint256.Int
	for _, u := range h.engine.AllUsers() {
		sum.Add(&sum, &u.Balance)
	}
	total := h.engine.TotalDeposited()
	require.False(t, total.Lt(&sum))
	require.LessOrEqual(t, h.engine.ContractInfo().Utilization, uint64(100))
}

func TestDepositCollateralPullsNativeValue(t *testing.T) {
	h := newHarness(t, nil)
	supplier, mallory, borrower := makeAddress(0x10), makeAddress(0x40), makeAddress(0x20)
	h.fund(supplier, 1_000)
	require.NoError(t, h.engine.DepositLiquidity(bg(), supplier, amt(1_000)))

	// Claiming collateral without holding the native value credits nothing.
	claimed := uint256.NewInt(1_000_000_000_000_000)
	require.ErrorIs(t, h.engine.DepositCollateral(bg(), mallory, claimed), nativecommon.ErrTransferFailed)
	_, err := h.engine.UserInfo(mallory)
	require.ErrorIs(t, err, nativecommon.ErrUserNotFound)
	require.ErrorIs(t, h.engine.TakeLoan(bg(), mallory, amt(1_000)), nativecommon.ErrUserNotFound)
	poolTokens := h.ledger.BalanceOf(h.token, h.pool)
	require.Equal(t, uint64(1_000), poolTokens.Uint64())

	h.collateral(borrower, 100)
	held := h.ledger.NativeBalance(h.pool)
	want := new(uint256.Int).Mul(uint256.NewInt(100), uint256.NewInt(oneNative))
	require.True(t, held.Eq(want), "pool native %s", held.Dec())
	left := h.ledger.NativeBalance(borrower)
	require.True(t, left.IsZero())
}

func TestDepositCollateralRequiresReceiver(t *testing.T) {
	h := newHarness(t, nil)
	h.engine.SetValueReceiver(nil)
	borrower := makeAddress(0x20)
	h.ledger.MintNative(borrower, uint256.NewInt(oneNative))
	err := h.engine.DepositCollateral(bg(), borrower, uint256.NewInt(oneNative))
	require.ErrorIs(t, err, errValueReceiverNotSet)
}

// slowTransfer delivers the payout after the caller's deadline has passed
// and reports whatever context error it observes at that point.
type slowTransfer struct {
	nativecommon.TokenTransfer
	delay time.Duration
}

func (s slowTransfer) Transfer(ctx context.Context, token, to crypto.Address, amount *uint256.Int) error {
	time.Sleep(s.delay)
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.TokenTransfer.Transfer(ctx, token, to, amount)
}

func TestTransferOutlivesCallerDeadline(t *testing.T) {
	h := newHarness(t, nil)
	supplier, borrower := makeAddress(0x10), makeAddress(0x20)
	h.fund(supplier, 1_000)
	require.NoError(t, h.engine.DepositLiquidity(bg(), supplier, amt(1_000)))
	h.collateral(borrower, 100)
	h.engine.SetTokenTransfer(slowTransfer{TokenTransfer: h.ledger, delay: 100 * time.Millisecond})

	ctx, cancel := context.WithTimeout(bg(), 30*time.Millisecond)
	defer cancel()
	require.NoError(t, h.engine.TakeLoan(ctx, borrower, amt(50)))

	info := h.user(borrower)
	require.True(t, info.LoanActive)
	want := scaled(50)
	require.True(t, info.LoanAmount.Eq(&want), "loan %s", info.LoanAmount.Dec())
	paid := h.ledger.BalanceOf(h.token, borrower)
	require.Equal(t, uint64(50), paid.Uint64())
}

func TestWithdrawRewardsChecksPoolBeforeMinimum(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MinRewardWithdrawal = 200_000_000 })
	alice := makeAddress(0x10)
	h.fund(alice, 1_000)
	require.NoError(t, h.engine.DepositLiquidity(bg(), alice, amt(1_000)))
	h.clock.Advance(year)

	// 100 tokens accrued: below the minimum, and above the empty pool.
	_, err := h.engine.WithdrawRewards(bg(), alice)
	require.ErrorIs(t, err, nativecommon.ErrInsufficientRewardsPool)

	require.NoError(t, h.engine.ModifyAvailableRewardsPool(bg(), h.owner, amt(500)))
	_, err = h.engine.WithdrawRewards(bg(), alice)
	require.ErrorIs(t, err, nativecommon.ErrInsufficientUserRewards)
}
