package config

import (
	"errors"
	"fmt"
)

// MaxLTV is the highest accepted liquidation ceiling.
const MaxLTV = 100

// Validate reports every problem found in the genesis.
func (g *Genesis) Validate() error {
	var errs []error
	if _, err := g.Pool(); err != nil {
		errs = append(errs, fmt.Errorf("PoolAddress: %w", err))
	}
	if _, err := g.LendingParams(); err != nil {
		errs = append(errs, err)
	}
	if _, err := g.VaultState(); err != nil {
		errs = append(errs, err)
	}
	if _, err := g.ledgerEntries(); err != nil {
		errs = append(errs, err)
	}
	if g.LTV > MaxLTV {
		errs = append(errs, fmt.Errorf("LTV must not exceed %d", MaxLTV))
	}
	if err := g.Lending.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
