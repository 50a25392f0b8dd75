package events

import (
	"math/big"

	"vstreet/core/types"
)

const (
	// TypeLendingDeposited is emitted when liquidity is supplied to the pool.
	TypeLendingDeposited = "lending.deposited"
	// TypeLendingWithdrawn is emitted when supplied liquidity is withdrawn.
	TypeLendingWithdrawn = "lending.withdrawn"
	// TypeLendingRewardsWithdrawn is emitted when supply rewards are paid out.
	TypeLendingRewardsWithdrawn = "lending.rewards.withdrawn"
	TypeLendingCollateralIn     = "lending.collateral.deposited"
	TypeLendingCollateralOut    = "lending.collateral.withdrawn"
	TypeLendingLoanTaken        = "lending.loan.taken"
	TypeLendingLoanRepaid       = "lending.loan.repaid"
	// TypeLendingLiquidated is emitted when a position at or above the LTV
	// ceiling has its locked collateral seized.
	TypeLendingLiquidated   = "lending.liquidated"
	TypeLendingPriceUpdated = "lending.price.updated"
	TypeLendingLTVUpdated   = "lending.ltv.updated"
	TypeLendingRewardsPool  = "lending.rewardsPool.updated"
	TypeLendingError        = "lending.error"
)

// LendingDeposited records supplied liquidity in whole tokens.
type LendingDeposited struct {
	Account [20]byte
	Amount  *big.Int
}

// EventType satisfies the Event interface.
func (LendingDeposited) EventType() string { return TypeLendingDeposited }

// Event converts the structured payload into a broadcastable event.
func (e LendingDeposited) Event() *types.Event {
	return &types.Event{Type: TypeLendingDeposited, Attributes: map[string]string{
		"account": formatAddress(e.Account),
		"amount":  formatAmount(e.Amount),
	}}
}

// LendingWithdrawn records withdrawn liquidity in whole tokens.
type LendingWithdrawn struct {
	Account [20]byte
	Amount  *big.Int
}

func (LendingWithdrawn) EventType() string { return TypeLendingWithdrawn }

func (e LendingWithdrawn) Event() *types.Event {
	return &types.Event{Type: TypeLendingWithdrawn, Attributes: map[string]string{
		"account": formatAddress(e.Account),
		"amount":  formatAmount(e.Amount),
	}}
}

// LendingRewardsWithdrawn records a rewards payout in whole tokens.
type LendingRewardsWithdrawn struct {
	Account [20]byte
	Amount  *big.Int
}

func (LendingRewardsWithdrawn) EventType() string { return TypeLendingRewardsWithdrawn }

func (e LendingRewardsWithdrawn) Event() *types.Event {
	return &types.Event{Type: TypeLendingRewardsWithdrawn, Attributes: map[string]string{
		"account": formatAddress(e.Account),
		"amount":  formatAmount(e.Amount),
	}}
}

// LendingCollateralDeposited records native collateral in smallest units.
type LendingCollateralDeposited struct {
	Account [20]byte
	Amount  *big.Int
}

func (LendingCollateralDeposited) EventType() string { return TypeLendingCollateralIn }

func (e LendingCollateralDeposited) Event() *types.Event {
	return &types.Event{Type: TypeLendingCollateralIn, Attributes: map[string]string{
		"account": formatAddress(e.Account),
		"amount":  formatAmount(e.Amount),
	}}
}

// LendingCollateralWithdrawn records returned collateral in smallest units.
type LendingCollateralWithdrawn struct {
	Account [20]byte
	Amount  *big.Int
}

func (LendingCollateralWithdrawn) EventType() string { return TypeLendingCollateralOut }

func (e LendingCollateralWithdrawn) Event() *types.Event {
	return &types.Event{Type: TypeLendingCollateralOut, Attributes: map[string]string{
		"account": formatAddress(e.Account),
		"amount":  formatAmount(e.Amount),
	}}
}

// LendingLoanTaken captures a new borrow and the resulting position.
type LendingLoanTaken struct {
	Account [20]byte
	Amount  *big.Int
	Loan    *big.Int
	LTV     uint64
}

func (LendingLoanTaken) EventType() string { return TypeLendingLoanTaken }

func (e LendingLoanTaken) Event() *types.Event {
	return &types.Event{Type: TypeLendingLoanTaken, Attributes: map[string]string{
		"account": formatAddress(e.Account),
		"amount":  formatAmount(e.Amount),
		"loan":    formatAmount(e.Loan),
		"ltv":     formatUint(e.LTV),
	}}
}

// LendingLoanRepaid captures a repayment and the scaled debt left.
type LendingLoanRepaid struct {
	Account   [20]byte
	Amount    *big.Int
	Remaining *big.Int
}

func (LendingLoanRepaid) EventType() string { return TypeLendingLoanRepaid }

func (e LendingLoanRepaid) Event() *types.Event {
	return &types.Event{Type: TypeLendingLoanRepaid, Attributes: map[string]string{
		"account":   formatAddress(e.Account),
		"amount":    formatAmount(e.Amount),
		"remaining": formatAmount(e.Remaining),
	}}
}

// LendingLiquidated captures the seized collateral and cleared debt.
type LendingLiquidated struct {
	Account [20]byte
	Seized  *big.Int
	Debt    *big.Int
	LTV     uint64
}

func (LendingLiquidated) EventType() string { return TypeLendingLiquidated }

func (e LendingLiquidated) Event() *types.Event {
	return &types.Event{Type: TypeLendingLiquidated, Attributes: map[string]string{
		"account": formatAddress(e.Account),
		"seized":  formatAmount(e.Seized),
		"debt":    formatAmount(e.Debt),
		"ltv":     formatUint(e.LTV),
	}}
}

type LendingPriceUpdated struct {
	Price uint64
}

func (LendingPriceUpdated) EventType() string { return TypeLendingPriceUpdated }

func (e LendingPriceUpdated) Event() *types.Event {
	return &types.Event{Type: TypeLendingPriceUpdated, Attributes: map[string]string{"price": formatUint(e.Price)}}
}

type LendingLTVUpdated struct {
	LTV uint64
}

func (LendingLTVUpdated) EventType() string { return TypeLendingLTVUpdated }

func (e LendingLTVUpdated) Event() *types.Event {
	return &types.Event{Type: TypeLendingLTVUpdated, Attributes: map[string]string{"ltv": formatUint(e.LTV)}}
}

// LendingRewardsPoolUpdated carries the new scaled rewards pool.
type LendingRewardsPoolUpdated struct {
	Amount *big.Int
}

func (LendingRewardsPoolUpdated) EventType() string { return TypeLendingRewardsPool }

func (e LendingRewardsPoolUpdated) Event() *types.Event {
	return &types.Event{Type: TypeLendingRewardsPool, Attributes: map[string]string{"amount": formatAmount(e.Amount)}}
}

// LendingError reports a rejected lending operation.
type LendingError struct {
	Operation string
	Account   [20]byte
	Reason    string
}

func (LendingError) EventType() string { return TypeLendingError }

func (e LendingError) Event() *types.Event {
	return &types.Event{Type: TypeLendingError, Attributes: map[string]string{
		"operation": e.Operation,
		"account":   formatAddress(e.Account),
		"reason":    e.Reason,
	}}
}
