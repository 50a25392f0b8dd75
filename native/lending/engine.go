package lending

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"vstreet/core/events"
	"vstreet/crypto"
	nativecommon "vstreet/native/common"
)

var (
	errNilState            = errors.New("lending engine: state not configured")
	errValueSenderNotSet   = errors.New("lending engine: value sender not configured")
	errValueReceiverNotSet = errors.New("lending engine: value receiver not configured")
	errPausesReadOnly      = errors.New("lending engine: pause table cannot be toggled")
	errTokenTransferNotSet = errors.New("lending engine: token transfer not configured")
)

// ModuleName is the pause-table key of the lending engine.
const ModuleName = "lending"

// Store persists committed pool snapshots.
type Store interface {
	PutLendingPool(pool *PoolState) error
}

// Engine owns the lending pool and serialises every operation on it. A
// mutating operation accrues rewards, stages its changes on a clone of the
// pool, calls the external collaborator and only then swaps the clone in.
type Engine struct {
	mu      sync.Mutex
	state   *PoolState
	pool    crypto.Address
	tokens  nativecommon.TokenTransfer
	values  nativecommon.ValueSender
	intake  nativecommon.ValueReceiver
	clock   nativecommon.Clock
	store   Store
	emitter events.Emitter
	pauses  nativecommon.PauseView
	logger  *slog.Logger
}

// NewEngine constructs an engine around an existing pool. poolAddr is the
// account that custodies supplied tokens and collateral.
func NewEngine(poolAddr crypto.Address, state *PoolState) *Engine {
	return &Engine{
		state:   state,
		pool:    poolAddr,
		clock:   nativecommon.SystemClock{},
		emitter: events.NoopEmitter{},
		logger:  slog.Default(),
	}
}

// SetTokenTransfer wires the fungible token collaborator.
func (e *Engine) SetTokenTransfer(t nativecommon.TokenTransfer) { e.tokens = t }

// SetValueSender wires the native value collaborator used to return collateral.
func (e *Engine) SetValueSender(v nativecommon.ValueSender) { e.values = v }

// SetValueReceiver wires the collaborator that pulls deposited collateral.
func (e *Engine) SetValueReceiver(v nativecommon.ValueReceiver) { e.intake = v }

// SetClock overrides the time source. Nil restores the wall clock.
func (e *Engine) SetClock(c nativecommon.Clock) {
	if c == nil {
		c = nativecommon.SystemClock{}
	}
	e.clock = c
}

// SetStore configures snapshot persistence after each committed operation.
func (e *Engine) SetStore(s Store) { e.store = s }

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetLogger replaces the structured logger.
func (e *Engine) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.Default()
	}
	e.logger = l.With("module", ModuleName)
}

// PoolAddress returns the custody account of the pool.
func (e *Engine) PoolAddress() crypto.Address { return e.pool }

// effect describes what a staged operation needs after validation: the
// collaborator call that must succeed before commit and the events to emit
// once committed.
type effect struct {
	transfer func(ctx context.Context) error
	events   []events.Event
}

type mutation func(next *PoolState, now uint64) (*effect, error)

// execute runs one logical operation under the engine lock.
func (e *Engine) execute(ctx context.Context, op string, caller crypto.Address, fn mutation) error {
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return e.fail(op, caller, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return e.fail(op, caller, errNilState)
	}
	now := nativecommon.UnixNow(e.clock)
	next := e.state.Clone()
	if err := next.accrueAll(now); err != nil {
		return e.fail(op, caller, err)
	}
	eff, err := fn(next, now)
	if err != nil {
		return e.fail(op, caller, err)
	}
	if err := ctx.Err(); err != nil {
		return e.fail(op, caller, err)
	}
	if eff != nil && eff.transfer != nil {
		// A transfer the service may already have applied must not be
		// abandoned on caller cancellation; the client's own timeout bounds it.
		if err := eff.transfer(context.WithoutCancel(ctx)); err != nil {
			e.logger.Warn("lending transfer rejected", "op", op, "caller", caller.String(), "error", err)
			return e.fail(op, caller, fmt.Errorf("%w: %v", nativecommon.ErrTransferFailed, err))
		}
	}
	next.reprice()
	e.state = next
	e.persist()
	if eff != nil {
		for _, evt := range eff.events {
			e.emitter.Emit(evt)
		}
	}
	return nil
}

func (e *Engine) persist() {
	if e.store == nil {
		return
	}
	if err := e.store.PutLendingPool(e.state); err != nil {
		e.logger.Error("persist lending pool", "error", err)
	}
}

func (e *Engine) fail(op string, caller crypto.Address, err error) error {
	e.emitter.Emit(events.LendingError{Operation: op, Account: caller.Raw(), Reason: err.Error()})
	return fmt.Errorf("lending engine: %s: %w", op, err)
}

func (e *Engine) tokenTransfer(next *PoolState) (nativecommon.TokenTransfer, crypto.Address, error) {
	if next.TokenContract == nil {
		return nil, crypto.Address{}, nativecommon.ErrTokenNotConfigured
	}
	if e.tokens == nil {
		return nil, crypto.Address{}, errTokenTransferNotSet
	}
	return e.tokens, *next.TokenContract, nil
}

// Sweep accrues rewards for every account and liquidates positions at or
// above the LTV ceiling. It is safe to call periodically.
func (e *Engine) Sweep(ctx context.Context) (int, error) {
	liquidated := 0
	err := e.execute(ctx, "sweep", e.pool, func(next *PoolState, now uint64) (*effect, error) {
		evts, err := next.liquidateAll()
		liquidated = len(evts)
		return &effect{events: evts}, err
	})
	return liquidated, err
}
