package lending

import (
	"github.com/holiman/uint256"

	"vstreet/crypto"
	nativecommon "vstreet/native/common"
)

// LoanStatus is the per-account loan state machine.
type LoanStatus uint8

const (
	LoanInactive LoanStatus = iota
	LoanActive
)

func (s LoanStatus) String() string {
	if s == LoanActive {
		return "active"
	}
	return "inactive"
}

// UserAccount is the ledger row kept for every participant. Balance, rewards
// and loan amounts are fixed-point values scaled by Config.ScaleFactor.
// BalanceNative holds collateral in the smallest native unit.
type UserAccount struct {
	Balance          uint256.Int
	Rewards          uint256.Int
	RewardsWithdrawn uint256.Int
	// SupplyCheckpoint and LoanCheckpoint are unix seconds and advance
	// independently.
	SupplyCheckpoint uint64
	LoanCheckpoint   uint64

	BalanceNative       uint256.Int
	CollateralValue     uint256.Int
	MaxLoan             uint256.Int
	AvailableToWithdraw uint256.Int
	LoanAmount          uint256.Int
	LTV                 uint64
	Loan                LoanStatus
}

// Clone returns an independent copy of the account.
func (u *UserAccount) Clone() *UserAccount {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

// PoolState is the root of the lending ledger.
type PoolState struct {
	Admins        nativecommon.AdminSet
	TokenContract *crypto.Address

	TotalSupplied           uint256.Int
	TotalBorrowed           uint256.Int
	AvailableRewardsPool    uint256.Int
	TotalRewardsDistributed uint256.Int
	// SeizedCollateral accumulates native value taken by liquidations.
	SeizedCollateral uint256.Int

	Utilization  uint64
	InterestRate uint64
	APR          uint64
	BorrowRate   uint64
	LTV          uint64
	Price        uint64

	Config Config
	Users  *Directory
}

// NewPoolState builds an empty pool from genesis parameters.
func NewPoolState(params Params) *PoolState {
	cfg := params.Config
	cfg.Normalize()
	state := &PoolState{
		Admins: nativecommon.NewAdminSet(params.Owner, params.Admins...),
		LTV:    params.LTV,
		Price:  cfg.Price,
		Config: cfg,
		Users:  NewDirectory(),
	}
	if params.TokenContract != nil {
		token := *params.TokenContract
		state.TokenContract = &token
	}
	state.reprice()
	return state
}

// Clone returns a deep copy of the pool suitable for staging mutations.
func (p *PoolState) Clone() *PoolState {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Admins = p.Admins.Clone()
	if p.TokenContract != nil {
		token := *p.TokenContract
		clone.TokenContract = &token
	}
	clone.Users = p.Users.Clone()
	return &clone
}

// Params carries the genesis values used to create a pool.
type Params struct {
	Owner         crypto.Address
	Admins        []crypto.Address
	TokenContract *crypto.Address
	LTV           uint64
	Config        Config
}
