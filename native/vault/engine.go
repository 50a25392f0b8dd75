package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/holiman/uint256"

	"vstreet/core/events"
	"vstreet/crypto"
	nativecommon "vstreet/native/common"
)

// ModuleName is the pause-table key of the vault engine.
const ModuleName = "vault"

var (
	errNilState            = errors.New("vault engine: state not configured")
	errTokenTransferNotSet = errors.New("vault engine: token transfer not configured")
	errPausesReadOnly      = errors.New("vault engine: pause table cannot be toggled")
)

// Store persists committed vault snapshots.
type Store interface {
	PutVault(state *State) error
}

// Engine owns the vault ledger. Like the lending engine it holds its lock for
// the whole operation, stages changes on a clone and commits them only after
// the token transfer succeeds.
type Engine struct {
	mu      sync.Mutex
	state   *State
	pool    crypto.Address
	tokens  nativecommon.TokenTransfer
	clock   nativecommon.Clock
	store   Store
	emitter events.Emitter
	pauses  nativecommon.PauseView
	logger  *slog.Logger
}

// NewEngine wraps state. poolAddr custodies staked tokens.
func NewEngine(poolAddr crypto.Address, state *State) *Engine {
	return &Engine{
		state:   state,
		pool:    poolAddr,
		clock:   nativecommon.SystemClock{},
		emitter: events.NoopEmitter{},
		logger:  slog.Default(),
	}
}

func (e *Engine) SetTokenTransfer(t nativecommon.TokenTransfer) { e.tokens = t }

func (e *Engine) SetClock(c nativecommon.Clock) {
	if c == nil {
		c = nativecommon.SystemClock{}
	}
	e.clock = c
}

func (e *Engine) SetStore(s Store) { e.store = s }

// SetEmitter configures the event emitter. Nil installs a no-op emitter.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

func (e *Engine) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.Default()
	}
	e.logger = l.With("module", ModuleName)
}

func (e *Engine) fail(op string, caller crypto.Address, err error) error {
	e.emitter.Emit(events.VaultError{Operation: op, Account: caller.Raw(), Reason: err.Error()})
	return fmt.Errorf("vault engine: %s: %w", op, err)
}

func (e *Engine) commit(next *State) {
	e.state = next
	if e.store == nil {
		return
	}
	if err := e.store.PutVault(next); err != nil {
		e.logger.Error("persist vault", "error", err)
	}
}

func (e *Engine) tokenTransfer(st *State) (nativecommon.TokenTransfer, crypto.Address, error) {
	if st.Token == nil {
		return nil, crypto.Address{}, nativecommon.ErrTokenNotConfigured
	}
	if e.tokens == nil {
		return nil, crypto.Address{}, errTokenTransferNotSet
	}
	return e.tokens, *st.Token, nil
}

func (e *Engine) begin(op string, caller crypto.Address) error {
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return e.fail(op, caller, err)
	}
	if e.state == nil {
		return e.fail(op, caller, errNilState)
	}
	return nil
}

// Stake locks amount tokens for the conviction period and returns the new
// position.
func (e *Engine) Stake(ctx context.Context, caller crypto.Address, amount *uint256.Int, level Conviction) (Position, error) {
	const op = "stake"
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.begin(op, caller); err != nil {
		return Position{}, err
	}
	if amount == nil || amount.IsZero() {
		return Position{}, e.fail(op, caller, nativecommon.ErrZeroAmount)
	}
	if !level.Valid() {
		return Position{}, e.fail(op, caller, ErrInvalidConviction)
	}
	next := e.state.Clone()
	tokens, token, err := e.tokenTransfer(next)
	if err != nil {
		return Position{}, e.fail(op, caller, err)
	}
	var power uint256.Int
	if _, overflow := power.MulOverflow(amount, uint256.NewInt(level.Multiplier())); overflow {
		return Position{}, e.fail(op, caller, nativecommon.ErrArithmeticOverflow)
	}
	power.Div(&power, uint256.NewInt(100))

	now := nativecommon.UnixNow(e.clock)
	pos := &Position{
		ID:         next.NextPositionID,
		Owner:      caller,
		Amount:     *amount,
		Conviction: level,
		Multiplier: level.Multiplier(),
		Power:      power,
		StartAt:    now,
		UnlockAt:   now + level.Seconds(),
		Active:     true,
	}
	next.NextPositionID++
	next.Positions[pos.ID] = pos
	user := next.Users[caller.Raw()]
	if user == nil {
		user = &UserVault{}
		next.Users[caller.Raw()] = user
	}
	for _, pair := range []struct{ dst, add *uint256.Int }{
		{&user.TotalStaked, amount},
		{&user.TotalPower, &power},
		{&next.TotalLocked, amount},
		{&next.TotalPower, &power},
	} {
		if _, overflow := pair.dst.AddOverflow(pair.dst, pair.add); overflow {
			return Position{}, e.fail(op, caller, nativecommon.ErrArithmeticOverflow)
		}
	}
	user.History = append(user.History, pos.ID)

	if err := ctx.Err(); err != nil {
		return Position{}, e.fail(op, caller, err)
	}
	if err := tokens.TransferFrom(context.WithoutCancel(ctx), token, caller, e.pool, amount); err != nil {
		e.logger.Warn("vault stake transfer rejected", "caller", caller.String(), "error", err)
		return Position{}, e.fail(op, caller, fmt.Errorf("%w: %v", nativecommon.ErrTransferFailed, err))
	}
	e.commit(next)
	e.emitter.Emit(events.VaultStaked{
		Account:    caller.Raw(),
		PositionID: pos.ID,
		Amount:     amount.ToBig(),
		Power:      power.ToBig(),
		Conviction: level.String(),
		UnlockAt:   pos.UnlockAt,
	})
	return *pos, nil
}

// claim validates and stages the claim of one position on next.
func claim(next *State, caller crypto.Address, id, now uint64) (*Position, error) {
	pos, ok := next.Positions[id]
	if !ok {
		return nil, ErrPositionNotFound
	}
	if pos.Owner.Raw() != caller.Raw() {
		return nil, ErrNotPositionOwner
	}
	if pos.Claimed {
		return nil, ErrPositionAlreadyClaimed
	}
	if !pos.Active {
		return nil, ErrPositionInactive
	}
	if now < pos.UnlockAt {
		return nil, fmt.Errorf("%w (unlocks at %d, now %d)", ErrPositionNotMatured, pos.UnlockAt, now)
	}
	pos.Active = false
	pos.Claimed = true
	if user := next.Users[caller.Raw()]; user != nil {
		user.TotalStaked = subSaturating(&user.TotalStaked, &pos.Amount)
		user.TotalPower = subSaturating(&user.TotalPower, &pos.Power)
	}
	next.TotalLocked = subSaturating(&next.TotalLocked, &pos.Amount)
	next.TotalPower = subSaturating(&next.TotalPower, &pos.Power)
	return pos, nil
}

func subSaturating(a, b *uint256.Int) uint256.Int {
	var out uint256.Int
	if a.Lt(b) {
		return out
	}
	out.Sub(a, b)
	return out
}

// claimLocked runs one staged claim and transfer. The caller holds e.mu.
func (e *Engine) claimLocked(ctx context.Context, caller crypto.Address, id uint64) (*Position, error) {
	const op = "unlockAndClaim"
	if err := e.begin(op, caller); err != nil {
		return nil, err
	}
	next := e.state.Clone()
	pos, err := claim(next, caller, id, nativecommon.UnixNow(e.clock))
	if err != nil {
		return nil, e.fail(op, caller, err)
	}
	tokens, token, err := e.tokenTransfer(next)
	if err != nil {
		return nil, e.fail(op, caller, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, e.fail(op, caller, err)
	}
	if err := tokens.Transfer(context.WithoutCancel(ctx), token, caller, &pos.Amount); err != nil {
		e.logger.Warn("vault claim transfer rejected", "caller", caller.String(), "position", id, "error", err)
		return nil, e.fail(op, caller, fmt.Errorf("%w: %v", nativecommon.ErrTransferFailed, err))
	}
	e.commit(next)
	e.emitter.Emit(events.VaultClaimed{
		Account:    caller.Raw(),
		PositionID: id,
		Amount:     pos.Amount.ToBig(),
		Power:      pos.Power.ToBig(),
	})
	return pos, nil
}

// UnlockAndClaim returns the tokens of a matured position to its owner.
func (e *Engine) UnlockAndClaim(ctx context.Context, caller crypto.Address, id uint64) (Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pos, err := e.claimLocked(ctx, caller, id)
	if err != nil {
		return Position{}, err
	}
	return *pos, nil
}

// ClaimResult reports the outcome of a batch claim.
type ClaimResult struct {
	Claimed []uint64
	Failed  map[uint64]error
	Amount  uint256.Int
}

// ClaimMultiple claims each id independently. Failures are collected and do
// not affect the other ids.
func (e *Engine) ClaimMultiple(ctx context.Context, caller crypto.Address, ids []uint64) ClaimResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	res := ClaimResult{Failed: make(map[uint64]error)}
	for _, id := range ids {
		pos, err := e.claimLocked(ctx, caller, id)
		if err != nil {
			res.Failed[id] = err
			continue
		}
		res.Claimed = append(res.Claimed, id)
		res.Amount.Add(&res.Amount, &pos.Amount)
	}
	if len(res.Claimed) > 0 {
		e.emitter.Emit(events.VaultMultipleClaimed{
			Account:     caller.Raw(),
			PositionIDs: append([]uint64(nil), res.Claimed...),
			Amount:      res.Amount.ToBig(),
		})
	}
	return res
}

// AddAdmin grants vault admin privileges.
func (e *Engine) AddAdmin(ctx context.Context, caller, addr crypto.Address) error {
	const op = "addAdmin"
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.begin(op, caller); err != nil {
		return err
	}
	next := e.state.Clone()
	if err := next.Admins.Require(caller); err != nil {
		return e.fail(op, caller, err)
	}
	if err := next.Admins.Add(addr); err != nil {
		return e.fail(op, caller, err)
	}
	e.commit(next)
	e.logger.Info("vault admin added", "admin", addr.String(), "by", caller.String())
	e.emitter.Emit(events.AdminChanged{Module: ModuleName, Admin: addr.Raw(), Added: true})
	return nil
}

// SetToken configures the staked token.
func (e *Engine) SetToken(ctx context.Context, caller, token crypto.Address) error {
	const op = "setToken"
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.begin(op, caller); err != nil {
		return err
	}
	next := e.state.Clone()
	if err := next.Admins.Require(caller); err != nil {
		return e.fail(op, caller, err)
	}
	if token.IsZero() {
		return e.fail(op, caller, fmt.Errorf("%w: zero token address", nativecommon.ErrInvalidAmount))
	}
	next.Token = &token
	e.commit(next)
	e.emitter.Emit(events.TokenContractSet{Module: ModuleName, Token: token.Raw()})
	return nil
}

// SetPaused halts or resumes staking and claims. Unlike other mutations it is
// accepted while the vault is paused.
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
	e.logger.Warn("vault pause toggled", "paused", paused, "by", caller.String())
	e.emitter.Emit(events.ModulePauseChanged{Module: ModuleName, Paused: paused, By: caller.Raw()})
	return nil
}
