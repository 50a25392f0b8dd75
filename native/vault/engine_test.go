package vault

import (
	"context"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"vstreet/core/events"
	"vstreet/crypto"
	nativecommon "vstreet/native/common"
	"vstreet/native/token"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type recorder struct{ events []events.Event }

func (r *recorder) Emit(evt events.Event) { r.events = append(r.events, evt) }

func (r *recorder) count(kind string) int {
	n := 0
	for _, evt := range r.events {
		if evt.EventType() == kind {
			n++
		}
	}
	return n
}

func makeAddress(b byte) crypto.Address {
	return crypto.AddressFromRaw([crypto.AddressLength]byte{b})
}

type fixture struct {
	engine *Engine
	ledger *token.Ledger
	clock  *fakeClock
	events *recorder
	owner  crypto.Address
	pool   crypto.Address
	token  crypto.Address
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		clock:  &fakeClock{now: time.Unix(1_700_000_000, 0)},
		events: &recorder{},
		owner:  makeAddress(0x01),
		pool:   makeAddress(0xAA),
		token:  makeAddress(0xEE),
	}
	tok := f.token
	f.ledger = token.NewLedger(f.pool)
	f.ledger.Mint(f.token, f.pool, uint256.NewInt(0))
	f.engine = NewEngine(f.pool, NewState(f.owner, nil, &tok))
	f.engine.SetTokenTransfer(f.ledger)
	f.engine.SetClock(f.clock)
	f.engine.SetEmitter(f.events)
	return f
}

func (f *fixture) fund(user crypto.Address, amount uint64) {
	f.ledger.Mint(f.token, user, uint256.NewInt(amount))
	f.ledger.Approve(f.token, user, f.pool, uint256.NewInt(amount))
}

func ctx() context.Context { return context.Background() }

func TestConvictionTable(t *testing.T) {
	cases := map[Conviction]struct {
		days       uint64
		multiplier uint64
	}{
		ConvictionOneDay:          {1, 100},
		ConvictionSevenDays:       {7, 150},
		ConvictionFourteenDays:    {14, 200},
		ConvictionTwentyEightDays: {28, 300},
		ConvictionNinetyDays:      {90, 400},
	}
	for level, want := range cases {
		require.Equal(t, want.days*86_400, level.Seconds(), level.String())
		require.Equal(t, want.multiplier, level.Multiplier(), level.String())
		parsed, err := ParseConviction(level.String())
		require.NoError(t, err)
		require.Equal(t, level, parsed)
	}
	parsed, err := ParseConviction("7days")
	require.NoError(t, err)
	require.Equal(t, ConvictionSevenDays, parsed)
	parsed, err = ParseConviction("1 day")
	require.Error(t, err)
	require.Zero(t, parsed)
	_, err = ParseConviction("30d")
	require.ErrorIs(t, err, ErrInvalidConviction)
	require.False(t, Conviction(9).Valid())
}

func TestStakeComputesPower(t *testing.T) {
	f := newFixture(t)
	alice := makeAddress(0x10)
	f.fund(alice, 1_000_000)

	pos, err := f.engine.Stake(ctx(), alice, uint256.NewInt(1_000_000), ConvictionSevenDays)
	require.NoError(t, err)
	require.Equal(t, uint64(1), pos.ID)
	require.Equal(t, uint64(150), pos.Multiplier)
	require.Equal(t, uint64(1_500_000), pos.Power.Uint64())
	require.Equal(t, pos.StartAt+7*86_400, pos.UnlockAt)
	require.True(t, pos.Active)
	require.False(t, pos.Claimed)
	require.Equal(t, 1, f.events.count(events.TypeVaultStaked))
	held := f.ledger.BalanceOf(f.token, f.pool)
	require.Equal(t, uint64(1_000_000), held.Uint64())
}

func TestStakeAggregates(t *testing.T) {
	f := newFixture(t)
	alice := makeAddress(0x10)
	f.fund(alice, 6_000_000)
	for _, s := range []struct {
		amount uint64
		level  Conviction
	}{
		{1_000_000, ConvictionOneDay},
		{2_000_000, ConvictionFourteenDays},
		{3_000_000, ConvictionNinetyDays},
	} {
		_, err := f.engine.Stake(ctx(), alice, uint256.NewInt(s.amount), s.level)
		require.NoError(t, err)
	}
	staked := f.engine.UserTotalStaked(alice)
	power := f.engine.UserTotalPower(alice)
	require.Equal(t, uint64(6_000_000), staked.Uint64())
	require.Equal(t, uint64(17_000_000), power.Uint64())

	stats := f.engine.GlobalStats()
	require.Equal(t, uint64(6_000_000), stats.TotalLocked.Uint64())
	require.Equal(t, uint64(17_000_000), stats.TotalPower.Uint64())
	require.Equal(t, uint64(3), stats.ActivePositionsCount)
	require.Equal(t, uint64(4), stats.NextPositionID)
}

func TestStakeValidation(t *testing.T) {
	f := newFixture(t)
	alice := makeAddress(0x10)
	_, err := f.engine.Stake(ctx(), alice, uint256.NewInt(0), ConvictionOneDay)
	require.ErrorIs(t, err, nativecommon.ErrZeroAmount)
	_, err = f.engine.Stake(ctx(), alice, uint256.NewInt(5), Conviction(0))
	require.ErrorIs(t, err, ErrInvalidConviction)

	_, err = f.engine.Stake(ctx(), alice, uint256.NewInt(5), ConvictionOneDay)
	require.ErrorIs(t, err, nativecommon.ErrTransferFailed)
	stats := f.engine.GlobalStats()
	require.True(t, stats.TotalLocked.IsZero())
	require.Equal(t, uint64(1), stats.NextPositionID)
	require.Empty(t, f.engine.UserPositions(alice))
	require.Equal(t, 3, f.events.count(events.TypeVaultError))

	bare := NewEngine(f.pool, NewState(f.owner, nil, nil))
	bare.SetTokenTransfer(f.ledger)
	_, err = bare.Stake(ctx(), alice, uint256.NewInt(5), ConvictionOneDay)
	require.ErrorIs(t, err, nativecommon.ErrTokenNotConfigured)
	require.ErrorIs(t, bare.SetToken(ctx(), alice, f.token), nativecommon.ErrInsufficientAdminPrivileges)
	require.NoError(t, bare.SetToken(ctx(), f.owner, f.token))
	require.NotNil(t, bare.GlobalStats().Token)
}

func TestUnlockAndClaimLifecycle(t *testing.T) {
	f := newFixture(t)
	alice, bob := makeAddress(0x10), makeAddress(0x11)
	f.fund(alice, 1_000)
	pos, err := f.engine.Stake(ctx(), alice, uint256.NewInt(1_000), ConvictionOneDay)
	require.NoError(t, err)

	_, err = f.engine.UnlockAndClaim(ctx(), alice, 99)
	require.ErrorIs(t, err, ErrPositionNotFound)
	_, err = f.engine.UnlockAndClaim(ctx(), bob, pos.ID)
	require.ErrorIs(t, err, ErrNotPositionOwner)
	_, err = f.engine.UnlockAndClaim(ctx(), alice, pos.ID)
	require.ErrorIs(t, err, ErrPositionNotMatured)

	info := f.engine.UserVaultInfo(alice)
	require.Equal(t, []uint64{pos.ID}, info.Active)
	require.Empty(t, info.Matured)
	require.Equal(t, uint64(86_400), f.engine.TimeUntilUnlock(pos.ID))

	f.clock.Advance(24 * time.Hour)
	info = f.engine.UserVaultInfo(alice)
	require.Empty(t, info.Active)
	require.Equal(t, []uint64{pos.ID}, info.Matured)
	require.Zero(t, f.engine.TimeUntilUnlock(pos.ID))
	require.Len(t, f.engine.UserMaturedPositions(alice), 1)

	claimed, err := f.engine.UnlockAndClaim(ctx(), alice, pos.ID)
	require.NoError(t, err)
	require.True(t, claimed.Claimed)
	require.False(t, claimed.Active)
	back := f.ledger.BalanceOf(f.token, alice)
	require.Equal(t, uint64(1_000), back.Uint64())

	_, err = f.engine.UnlockAndClaim(ctx(), alice, pos.ID)
	require.ErrorIs(t, err, ErrPositionAlreadyClaimed)

	info = f.engine.UserVaultInfo(alice)
	require.Empty(t, info.Active)
	require.Empty(t, info.Matured)
	require.Equal(t, []uint64{pos.ID}, info.History)
	require.True(t, info.TotalStaked.IsZero())
	require.True(t, info.TotalPower.IsZero())
	require.Len(t, f.engine.UserPositions(alice), 1)
	details, ok := f.engine.PositionDetails(pos.ID)
	require.True(t, ok)
	require.True(t, details.Claimed)
	require.Zero(t, f.engine.GlobalStats().ActivePositionsCount)
}

type failingTransfer struct{ nativecommon.TokenTransfer }

func (failingTransfer) Transfer(context.Context, crypto.Address, crypto.Address, *uint256.Int) error {
	return context.DeadlineExceeded
}

func TestClaimTransferFailureKeepsPosition(t *testing.T) {
	f := newFixture(t)
	alice := makeAddress(0x10)
	f.fund(alice, 10)
	pos, err := f.engine.Stake(ctx(), alice, uint256.NewInt(10), ConvictionOneDay)
	require.NoError(t, err)
	f.clock.Advance(48 * time.Hour)

	f.engine.SetTokenTransfer(failingTransfer{f.ledger})
	_, err = f.engine.UnlockAndClaim(ctx(), alice, pos.ID)
	require.ErrorIs(t, err, nativecommon.ErrTransferFailed)
	details, _ := f.engine.PositionDetails(pos.ID)
	require.True(t, details.Active)
	require.False(t, details.Claimed)
	staked := f.engine.UserTotalStaked(alice)
	require.Equal(t, uint64(10), staked.Uint64())
}

func TestClaimMultipleIsBestEffort(t *testing.T) {
	f := newFixture(t)
	alice, bob := makeAddress(0x10), makeAddress(0x11)
	f.fund(alice, 300)
	f.fund(bob, 50)
	first, err := f.engine.Stake(ctx(), alice, uint256.NewInt(100), ConvictionOneDay)
	require.NoError(t, err)
	second, err := f.engine.Stake(ctx(), alice, uint256.NewInt(200), ConvictionNinetyDays)
	require.NoError(t, err)
	foreign, err := f.engine.Stake(ctx(), bob, uint256.NewInt(50), ConvictionOneDay)
	require.NoError(t, err)

	f.clock.Advance(2 * 24 * time.Hour)
	res := f.engine.ClaimMultiple(ctx(), alice, []uint64{first.ID, second.ID, foreign.ID, 42})
	require.Equal(t, []uint64{first.ID}, res.Claimed)
	require.Len(t, res.Failed, 3)
	require.ErrorIs(t, res.Failed[second.ID], ErrPositionNotMatured)
	require.ErrorIs(t, res.Failed[foreign.ID], ErrNotPositionOwner)
	require.ErrorIs(t, res.Failed[42], ErrPositionNotFound)
	require.Equal(t, uint64(100), res.Amount.Uint64())
	require.Equal(t, 1, f.events.count(events.TypeVaultMultipleClaimed))

	none := f.engine.ClaimMultiple(ctx(), alice, []uint64{first.ID})
	require.Empty(t, none.Claimed)
	require.Equal(t, 1, f.events.count(events.TypeVaultMultipleClaimed))
}

func TestVaultAdmins(t *testing.T) {
	f := newFixture(t)
	ops := makeAddress(0x30)
	require.ErrorIs(t, f.engine.AddAdmin(ctx(), ops, ops), nativecommon.ErrInsufficientAdminPrivileges)
	require.NoError(t, f.engine.AddAdmin(ctx(), f.owner, ops))
	require.ErrorIs(t, f.engine.AddAdmin(ctx(), ops, ops), nativecommon.ErrAdminAlreadyExists)
	require.Len(t, f.engine.GlobalStats().Admins, 2)
}

func TestPausedVault(t *testing.T) {
	f := newFixture(t)
	pauses := nativecommon.NewPauses(ModuleName)
	f.engine.SetPauses(pauses)
	alice := makeAddress(0x10)
	f.fund(alice, 5)
	_, err := f.engine.Stake(ctx(), alice, uint256.NewInt(5), ConvictionOneDay)
	require.ErrorIs(t, err, nativecommon.ErrModulePaused)

	require.ErrorIs(t, f.engine.SetPaused(ctx(), alice, false), nativecommon.ErrInsufficientAdminPrivileges)
	require.NoError(t, f.engine.SetPaused(ctx(), f.owner, false))
	require.False(t, pauses.IsPaused(ModuleName))
	_, err = f.engine.Stake(ctx(), alice, uint256.NewInt(5), ConvictionOneDay)
	require.NoError(t, err)
	require.Equal(t, 1, f.events.count(events.TypeModuleResumed))

	f.engine.SetPauses(nil)
	require.ErrorIs(t, f.engine.SetPaused(ctx(), f.owner, true), errPausesReadOnly)
}

func TestEngineWithoutStateAnswersQueries(t *testing.T) {
	engine := NewEngine(makeAddress(0xAA), nil)
	alice := makeAddress(0x02)

	require.NotPanics(t, func() {
		info := engine.UserVaultInfo(alice)
		require.True(t, info.TotalStaked.IsZero())
		require.Empty(t, engine.UserPositions(alice))
		require.Empty(t, engine.UserActivePositions(alice))
		require.Empty(t, engine.UserMaturedPositions(alice))
		_, ok := engine.PositionDetails(1)
		require.False(t, ok)
		require.Zero(t, engine.TimeUntilUnlock(1))
		stats := engine.GlobalStats()
		require.Zero(t, stats.ActivePositionsCount)
		require.Nil(t, stats.Token)
		require.Nil(t, engine.Snapshot())
	})

	_, err := engine.Stake(ctx(), alice, uint256.NewInt(5), ConvictionOneDay)
	require.ErrorIs(t, err, errNilState)
}
