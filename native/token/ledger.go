package token

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/holiman/uint256"

	"vstreet/crypto"
)

var (
	ErrInsufficientBalance   = errors.New("token: insufficient balance")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	ErrUnknownToken          = errors.New("token: unknown token")
)

type balanceKey struct {
	token   [crypto.AddressLength]byte
	account [crypto.AddressLength]byte
}

type allowanceKey struct {
	token   [crypto.AddressLength]byte
	owner   [crypto.AddressLength]byte
	spender [crypto.AddressLength]byte
}

// Ledger is an in-process fungible token and native value ledger. It stands
// in for the external token service when the daemon runs standalone and in
// tests. Transfers are executed on behalf of Operator, the pool account.
type Ledger struct {
	mu         sync.Mutex
	operator   crypto.Address
	tokens     map[[crypto.AddressLength]byte]struct{}
	balances   map[balanceKey]uint256.Int
	allowances map[allowanceKey]uint256.Int
	native     map[[crypto.AddressLength]byte]uint256.Int
}

// NewLedger creates a ledger operated by the pool account.
func NewLedger(operator crypto.Address) *Ledger {
	return &Ledger{
		operator:   operator,
		tokens:     make(map[[crypto.AddressLength]byte]struct{}),
		balances:   make(map[balanceKey]uint256.Int),
		allowances: make(map[allowanceKey]uint256.Int),
		native:     make(map[[crypto.AddressLength]byte]uint256.Int),
	}
}

// Mint registers token if needed and credits amount to account.
func (l *Ledger) Mint(token, account crypto.Address, amount *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tokens[token.Raw()] = struct{}{}
	key := balanceKey{token.Raw(), account.Raw()}
	bal := l.balances[key]
	bal.Add(&bal, amount)
	l.balances[key] = bal
}

// Approve lets spender move up to amount of owner's tokens.
func (l *Ledger) Approve(token, owner, spender crypto.Address, amount *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allowances[allowanceKey{token.Raw(), owner.Raw(), spender.Raw()}] = *amount
}

// BalanceOf returns the token balance of account.
func (l *Ledger) BalanceOf(token, account crypto.Address) uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[balanceKey{token.Raw(), account.Raw()}]
}

// Transfer implements common.TokenTransfer by paying from the operator.
func (l *Ledger) Transfer(ctx context.Context, token, to crypto.Address, amount *uint256.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.move(token, l.operator, to, amount)
}

// TransferFrom implements common.TokenTransfer by spending the operator's
// allowance over from.
func (l *Ledger) TransferFrom(ctx context.Context, token, from, to crypto.Address, amount *uint256.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	key := allowanceKey{token.Raw(), from.Raw(), l.operator.Raw()}
	allowance := l.allowances[key]
	if allowance.Lt(amount) {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientAllowance, allowance.Dec(), amount.Dec())
	}
	if err := l.move(token, from, to, amount); err != nil {
		return err
	}
	allowance.Sub(&allowance, amount)
	l.allowances[key] = allowance
	return nil
}

func (l *Ledger) move(token, from, to crypto.Address, amount *uint256.Int) error {
	if _, ok := l.tokens[token.Raw()]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownToken, token)
	}
	fromKey := balanceKey{token.Raw(), from.Raw()}
	toKey := balanceKey{token.Raw(), to.Raw()}
	src := l.balances[fromKey]
	if src.Lt(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, from, src.Dec(), amount.Dec())
	}
	src.Sub(&src, amount)
	l.balances[fromKey] = src
	dst := l.balances[toKey]
	dst.Add(&dst, amount)
	l.balances[toKey] = dst
	return nil
}

// MintNative credits native value to account.
func (l *Ledger) MintNative(account crypto.Address, amount *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := account.Raw()
	bal := l.native[key]
	bal.Add(&bal, amount)
	l.native[key] = bal
}

// NativeBalance returns the native value held by account.
func (l *Ledger) NativeBalance(account crypto.Address) uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.native[account.Raw()]
}

// SendValue implements common.ValueSender.
func (l *Ledger) SendValue(ctx context.Context, to crypto.Address, amount *uint256.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.moveNative(l.operator, to, amount)
}

// ReceiveValue implements common.ValueReceiver by debiting from and crediting
// the operator.
func (l *Ledger) ReceiveValue(ctx context.Context, from crypto.Address, amount *uint256.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.moveNative(from, l.operator, amount)
}

func (l *Ledger) moveNative(from, to crypto.Address, amount *uint256.Int) error {
	src := l.native[from.Raw()]
	if src.Lt(amount) {
		return fmt.Errorf("%w: %s has %s native, needs %s", ErrInsufficientBalance, from, src.Dec(), amount.Dec())
	}
	src.Sub(&src, amount)
	l.native[from.Raw()] = src
	dst := l.native[to.Raw()]
	dst.Add(&dst, amount)
	l.native[to.Raw()] = dst
	return nil
}
