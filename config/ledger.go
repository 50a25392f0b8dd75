package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"vstreet/crypto"
	"vstreet/native/token"
)

// LedgerGenesis funds the in-process ledger used when no token service is
// configured. It is ignored when the daemon settles against a remote service.
type LedgerGenesis struct {
	Accounts []LedgerAccount `toml:"Accounts"`
}

// LedgerAccount credits Tokens of every configured token contract and Native
// value to Address. Allowance is granted to the pool on each token. Amounts
// are base-unit decimal strings.
type LedgerAccount struct {
	Address   string `toml:"Address"`
	Tokens    string `toml:"Tokens"`
	Native    string `toml:"Native"`
	Allowance string `toml:"Allowance"`
}

type ledgerEntry struct {
	account   crypto.Address
	tokens    *uint256.Int
	native    *uint256.Int
	allowance *uint256.Int
}

var errNoTokenContract = errors.New("token balances require a token contract")

// SeedLedger applies the genesis ledger section to l. Every configured token
// contract is registered even when no account holds it.
func (g *Genesis) SeedLedger(l *token.Ledger) error {
	pool, err := g.Pool()
	if err != nil {
		return fmt.Errorf("PoolAddress: %w", err)
	}
	tokens, err := g.ledgerTokens()
	if err != nil {
		return err
	}
	entries, err := g.ledgerEntries()
	if err != nil {
		return err
	}
	zero := new(uint256.Int)
	for _, tok := range tokens {
		l.Mint(tok, pool, zero)
	}
	for _, e := range entries {
		for _, tok := range tokens {
			l.Mint(tok, e.account, e.tokens)
			if !e.allowance.IsZero() {
				l.Approve(tok, e.account, pool, e.allowance)
			}
		}
		l.MintNative(e.account, e.native)
	}
	return nil
}

func (g *Genesis) ledgerTokens() ([]crypto.Address, error) {
	params, err := g.LendingParams()
	if err != nil {
		return nil, err
	}
	st, err := g.VaultState()
	if err != nil {
		return nil, err
	}
	var out []crypto.Address
	if params.TokenContract != nil {
		out = append(out, *params.TokenContract)
	}
	if st.Token != nil && (len(out) == 0 || out[0].Raw() != st.Token.Raw()) {
		out = append(out, *st.Token)
	}
	return out, nil
}

func (g *Genesis) ledgerEntries() ([]ledgerEntry, error) {
	var errs []error
	var out []ledgerEntry
	hasToken := strings.TrimSpace(g.TokenContract) != "" || strings.TrimSpace(g.Vault.Token) != ""
	for i, acct := range g.Ledger.Accounts {
		field := fmt.Sprintf("Ledger.Accounts[%d]", i)
		addr, err := crypto.DecodeAddress(acct.Address)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s.Address: %w", field, err))
			continue
		}
		if addr.IsZero() {
			errs = append(errs, fmt.Errorf("%s.Address: %w", field, errZeroAddress))
			continue
		}
		e := ledgerEntry{account: addr}
		var amountErr error
		if e.tokens, amountErr = parseAmount(acct.Tokens); amountErr != nil {
			errs = append(errs, fmt.Errorf("%s.Tokens: %w", field, amountErr))
			continue
		}
		if e.native, amountErr = parseAmount(acct.Native); amountErr != nil {
			errs = append(errs, fmt.Errorf("%s.Native: %w", field, amountErr))
			continue
		}
		if e.allowance, amountErr = parseAmount(acct.Allowance); amountErr != nil {
			errs = append(errs, fmt.Errorf("%s.Allowance: %w", field, amountErr))
			continue
		}
		if !hasToken && (!e.tokens.IsZero() || !e.allowance.IsZero()) {
			errs = append(errs, fmt.Errorf("%s: %w", field, errNoTokenContract))
			continue
		}
		out = append(out, e)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func parseAmount(value string) (*uint256.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return new(uint256.Int), nil
	}
	return uint256.FromDecimal(value)
}
