package config

import (
	"vstreet/native/lending"
	"vstreet/native/vault"
)

// Genesis describes the initial state of the lending pool and the vault.
// Addresses are bech32 (vst1...) or 0x-prefixed hex strings.
type Genesis struct {
	// PoolAddress custodies supplied liquidity, collateral and staked tokens.
	PoolAddress   string         `toml:"PoolAddress"`
	Owner         string         `toml:"Owner"`
	Admins        []string       `toml:"Admins"`
	TokenContract string         `toml:"TokenContract"`
	LTV           uint64         `toml:"LTV"`
	Lending       lending.Config `toml:"Lending"`
	Vault         VaultGenesis   `toml:"Vault"`
	Pauses        Pauses         `toml:"Pauses"`
	Ledger        LedgerGenesis  `toml:"Ledger"`
}

// VaultGenesis seeds the staking vault. An empty Owner falls back to the
// pool owner and an empty Token to the lending token contract.
type VaultGenesis struct {
	Owner  string   `toml:"Owner"`
	Admins []string `toml:"Admins"`
	Token  string   `toml:"Token"`
}

// Pauses lists the modules that start paused.
type Pauses struct {
	Lending bool `toml:"Lending"`
	Vault   bool `toml:"Vault"`
}

// Modules returns the names of the paused modules.
func (p Pauses) Modules() []string {
	var out []string
	if p.Lending {
		out = append(out, lending.ModuleName)
	}
	if p.Vault {
		out = append(out, vault.ModuleName)
	}
	return out
}
