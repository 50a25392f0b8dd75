package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"vstreet/crypto"
	"vstreet/native/lending"
	"vstreet/native/vault"
)

var errZeroAddress = errors.New("zero address")

// DefaultGenesis returns a genesis owned by owner with the launch parameters
// and no token contract configured.
func DefaultGenesis(owner crypto.Address) *Genesis {
	return &Genesis{
		PoolAddress: poolAddressFor(owner).String(),
		Owner:       owner.String(),
		Admins:      []string{},
		LTV:         lending.DefaultLTV,
		Lending:     lending.DefaultConfig(),
	}
}

// poolAddressFor derives a deterministic custody address from the owner.
func poolAddressFor(owner crypto.Address) crypto.Address {
	raw := owner.Raw()
	for i := range raw {
		raw[i] ^= 0xff
	}
	return crypto.AddressFromRaw(raw)
}

// LoadGenesis reads the genesis file at path. Keys that are absent keep their
// default values and unknown keys are rejected.
func LoadGenesis(path string) (*Genesis, error) {
	g := &Genesis{
		LTV:     lending.DefaultLTV,
		Lending: lending.DefaultConfig(),
	}
	meta, err := toml.DecodeFile(path, g)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("genesis %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	g.Lending.Normalize()
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("genesis %s: %w", path, err)
	}
	return g, nil
}

// WriteGenesis encodes g as TOML at path, creating parent directories.
func WriteGenesis(path string, g *Genesis) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(g)
}

// Pool returns the custody address.
func (g *Genesis) Pool() (crypto.Address, error) {
	return crypto.DecodeAddress(g.PoolAddress)
}

// LendingParams converts the genesis into the lending pool constructor input.
func (g *Genesis) LendingParams() (lending.Params, error) {
	owner, err := crypto.DecodeAddress(g.Owner)
	if err != nil {
		return lending.Params{}, fmt.Errorf("Owner: %w", err)
	}
	admins, err := decodeAll(g.Admins)
	if err != nil {
		return lending.Params{}, fmt.Errorf("Admins: %w", err)
	}
	token, err := decodeOptional(g.TokenContract)
	if err != nil {
		return lending.Params{}, fmt.Errorf("TokenContract: %w", err)
	}
	return lending.Params{
		Owner:         owner,
		Admins:        admins,
		TokenContract: token,
		LTV:           g.LTV,
		Config:        g.Lending,
	}, nil
}

// VaultState builds the initial vault.
func (g *Genesis) VaultState() (*vault.State, error) {
	ownerStr := g.Vault.Owner
	if strings.TrimSpace(ownerStr) == "" {
		ownerStr = g.Owner
	}
	owner, err := crypto.DecodeAddress(ownerStr)
	if err != nil {
		return nil, fmt.Errorf("Vault.Owner: %w", err)
	}
	admins, err := decodeAll(g.Vault.Admins)
	if err != nil {
		return nil, fmt.Errorf("Vault.Admins: %w", err)
	}
	tokenStr := g.Vault.Token
	if strings.TrimSpace(tokenStr) == "" {
		tokenStr = g.TokenContract
	}
	token, err := decodeOptional(tokenStr)
	if err != nil {
		return nil, fmt.Errorf("Vault.Token: %w", err)
	}
	return vault.NewState(owner, admins, token), nil
}

func decodeAll(values []string) ([]crypto.Address, error) {
	out := make([]crypto.Address, 0, len(values))
	for _, v := range values {
		addr, err := crypto.DecodeAddress(v)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

func decodeOptional(value string) (*crypto.Address, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	addr, err := crypto.DecodeAddress(value)
	if err != nil {
		return nil, err
	}
	if addr.IsZero() {
		return nil, errZeroAddress
	}
	return &addr, nil
}
