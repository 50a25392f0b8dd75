package lending

import (
	"sync"
	"testing"
	"time"

	"github.com/holiman/uint256"

	"vstreet/core/events"
	"vstreet/crypto"
	"vstreet/native/token"
)

const oneNative = DefaultOneNativeUnit

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Emit(evt events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, evt := range r.events {
		out[i] = evt.EventType()
	}
	return out
}

func (r *recorder) count(kind string) int {
	n := 0
	for _, t := range r.types() {
		if t == kind {
			n++
		}
	}
	return n
}

type harness struct {
	t      *testing.T
	engine *Engine
	ledger *token.Ledger
	clock  *fakeClock
	events *recorder
	owner  crypto.Address
	pool   crypto.Address
	token  crypto.Address
}

func makeAddress(b byte) crypto.Address {
	return crypto.AddressFromRaw([crypto.AddressLength]byte{b})
}

// newHarness builds a pool priced at 2 tokens per native unit with a 70%
// LTV ceiling and a flat 10% supply rate.
func newHarness(t *testing.T, tweak func(*Config)) *harness {
	t.Helper()
	cfg := DefaultConfig()
	cfg.BaseRate = 100_000
	cfg.RiskMultiplier = 0
	cfg.DevFee = 0
	cfg.Price = 2_000_000
	if tweak != nil {
		tweak(&cfg)
	}
	h := &harness{
		t:      t,
		clock:  &fakeClock{now: time.Unix(1_700_000_000, 0)},
		events: &recorder{},
		owner:  makeAddress(0x01),
		pool:   makeAddress(0xAA),
		token:  makeAddress(0xEE),
	}
	tok := h.token
	state := NewPoolState(Params{Owner: h.owner, TokenContract: &tok, LTV: DefaultLTV, Config: cfg})
	h.ledger = token.NewLedger(h.pool)
	h.ledger.Mint(h.token, h.pool, uint256.NewInt(0))
	h.engine = NewEngine(h.pool, state)
	h.engine.SetTokenTransfer(h.ledger)
	h.engine.SetValueSender(h.ledger)
	h.engine.SetValueReceiver(h.ledger)
	h.engine.SetClock(h.clock)
	h.engine.SetEmitter(h.events)
	return h
}

// fund mints whole tokens to user and approves the pool to pull them.
func (h *harness) fund(user crypto.Address, amount uint64) {
	h.ledger.Mint(h.token, user, uint256.NewInt(amount))
	h.ledger.Approve(h.token, user, h.pool, uint256.NewInt(amount))
}

// collateral gives user native units and deposits all of them as collateral.
func (h *harness) collateral(user crypto.Address, units uint64) {
	h.t.Helper()
	value := new(uint256.Int).Mul(uint256.NewInt(units), uint256.NewInt(oneNative))
	h.ledger.MintNative(user, value)
	if err := h.engine.DepositCollateral(bg(), user, value); err != nil {
		h.t.Fatalf("deposit collateral: %v", err)
	}
}

func (h *harness) user(addr crypto.Address) UserInfo {
	h.t.Helper()
	info, err := h.engine.UserInfo(addr)
	if err != nil {
		h.t.Fatalf("user info: %v", err)
	}
	return info
}

func scaled(v uint64) uint256.Int {
	var out uint256.Int
	out.Mul(uint256.NewInt(v), uint256.NewInt(DefaultScaleFactor))
	return out
}

func amt(v uint64) *uint256.Int { return uint256.NewInt(v) }
