package events

import (
	"math/big"

	"vstreet/core/types"
)

const (
	// TypeVaultStaked is emitted when a conviction position is opened.
	TypeVaultStaked = "vault.staked"
	// TypeVaultClaimed is emitted when a matured position is unlocked and paid out.
	TypeVaultClaimed = "vault.claimed"
	// TypeVaultMultipleClaimed summarises a batch claim with at least one success.
	TypeVaultMultipleClaimed = "vault.claimed.multiple"
	TypeVaultError           = "vault.error"
)

// VaultStaked captures a new position.
type VaultStaked struct {
	Account    [20]byte
	PositionID uint64
	Amount     *big.Int
	Power      *big.Int
	Conviction string
	UnlockAt   uint64
}

func (VaultStaked) EventType() string { return TypeVaultStaked }

func (e VaultStaked) Event() *types.Event {
	return &types.Event{Type: TypeVaultStaked, Attributes: map[string]string{
		"account":    formatAddress(e.Account),
		"positionId": formatUint(e.PositionID),
		"amount":     formatAmount(e.Amount),
		"power":      formatAmount(e.Power),
		"conviction": e.Conviction,
		"unlockAt":   formatUint(e.UnlockAt),
	}}
}

// VaultClaimed captures a claimed position.
type VaultClaimed struct {
	Account    [20]byte
	PositionID uint64
	Amount     *big.Int
	Power      *big.Int
}

func (VaultClaimed) EventType() string { return TypeVaultClaimed }

func (e VaultClaimed) Event() *types.Event {
	return &types.Event{Type: TypeVaultClaimed, Attributes: map[string]string{
		"account":    formatAddress(e.Account),
		"positionId": formatUint(e.PositionID),
		"amount":     formatAmount(e.Amount),
		"power":      formatAmount(e.Power),
	}}
}

// VaultMultipleClaimed summarises the successful part of a batch claim.
type VaultMultipleClaimed struct {
	Account     [20]byte
	PositionIDs []uint64
	Amount      *big.Int
}

func (VaultMultipleClaimed) EventType() string { return TypeVaultMultipleClaimed }

func (e VaultMultipleClaimed) Event() *types.Event {
	return &types.Event{Type: TypeVaultMultipleClaimed, Attributes: map[string]string{
		"account":     formatAddress(e.Account),
		"positionIds": formatIDs(e.PositionIDs),
		"amount":      formatAmount(e.Amount),
	}}
}

// VaultError reports a rejected vault operation.
type VaultError struct {
	Operation string
	Account   [20]byte
	Reason    string
}

func (VaultError) EventType() string { return TypeVaultError }

func (e VaultError) Event() *types.Event {
	return &types.Event{Type: TypeVaultError, Attributes: map[string]string{
		"operation": e.Operation,
		"account":   formatAddress(e.Account),
		"reason":    e.Reason,
	}}
}
