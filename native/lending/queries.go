package lending

import (
	"github.com/holiman/uint256"

	"vstreet/crypto"
	nativecommon "vstreet/native/common"
)

// UserInfo is a read-only view of one ledger row.
type UserInfo struct {
	Address             crypto.Address
	Balance             uint256.Int
	Rewards             uint256.Int
	RewardsWithdrawn    uint256.Int
	SupplyCheckpoint    uint64
	LoanCheckpoint      uint64
	BalanceNative       uint256.Int
	CollateralValue     uint256.Int
	MaxLoan             uint256.Int
	AvailableToWithdraw uint256.Int
	LoanAmount          uint256.Int
	LTV                 uint64
	LoanActive          bool
}

// PoolInfo summarises the pool totals and rates.
type PoolInfo struct {
	Owner                   crypto.Address
	Admins                  []crypto.Address
	TokenContract           *crypto.Address
	TotalSupplied           uint256.Int
	TotalBorrowed           uint256.Int
	AvailableRewardsPool    uint256.Int
	TotalRewardsDistributed uint256.Int
	SeizedCollateral        uint256.Int
	Utilization             uint64
	InterestRate            uint64
	APR                     uint64
	BorrowRate              uint64
	LTV                     uint64
	Price                   uint64
	Users                   int
	Config                  Config
}

func userInfo(addr crypto.Address, u *UserAccount) UserInfo {
	return UserInfo{
		Address:             addr,
		Balance:             u.Balance,
		Rewards:             u.Rewards,
		RewardsWithdrawn:    u.RewardsWithdrawn,
		SupplyCheckpoint:    u.SupplyCheckpoint,
		LoanCheckpoint:      u.LoanCheckpoint,
		BalanceNative:       u.BalanceNative,
		CollateralValue:     u.CollateralValue,
		MaxLoan:             u.MaxLoan,
		AvailableToWithdraw: u.AvailableToWithdraw,
		LoanAmount:          u.LoanAmount,
		LTV:                 u.LTV,
		LoanActive:          u.Loan == LoanActive,
	}
}

// UserInfo returns the ledger row of addr.
func (e *Engine) UserInfo(addr crypto.Address) (UserInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return UserInfo{}, errNilState
	}
	u, ok := e.state.Users.Get(addr)
	if !ok {
		return UserInfo{}, nativecommon.ErrUserNotFound
	}
	return userInfo(addr, u), nil
}

// UserBalance returns the scaled supplied balance of addr.
func (e *Engine) UserBalance(addr crypto.Address) (uint256.Int, error) {
	info, err := e.UserInfo(addr)
	return info.Balance, err
}

// UserRewards returns accrued and withdrawn rewards of addr.
func (e *Engine) UserRewards(addr crypto.Address) (accrued, withdrawn uint256.Int, err error) {
	info, err := e.UserInfo(addr)
	return info.Rewards, info.RewardsWithdrawn, err
}

// AllUsers returns every ledger row in address order.
func (e *Engine) AllUsers() []UserInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil
	}
	out := make([]UserInfo, 0, e.state.Users.Len())
	e.state.Users.Range(func(addr crypto.Address, u *UserAccount) bool {
		out = append(out, userInfo(addr, u))
		return true
	})
	return out
}

// ContractInfo returns the global pool statistics.
func (e *Engine) ContractInfo() PoolInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.state
	if p == nil {
		return PoolInfo{}
	}
	info := PoolInfo{
		Owner:                   p.Admins.Owner,
		Admins:                  p.Admins.List(),
		TotalSupplied:           p.TotalSupplied,
		TotalBorrowed:           p.TotalBorrowed,
		AvailableRewardsPool:    p.AvailableRewardsPool,
		TotalRewardsDistributed: p.TotalRewardsDistributed,
		SeizedCollateral:        p.SeizedCollateral,
		Utilization:             p.Utilization,
		InterestRate:            p.InterestRate,
		APR:                     p.APR,
		BorrowRate:              p.BorrowRate,
		LTV:                     p.LTV,
		Price:                   p.Price,
		Users:                   p.Users.Len(),
		Config:                  p.Config,
	}
	if p.TokenContract != nil {
		token := *p.TokenContract
		info.TokenContract = &token
	}
	return info
}

// TotalDeposited returns the scaled total supplied liquidity.
func (e *Engine) TotalDeposited() uint256.Int {
	return e.ContractInfo().TotalSupplied
}

// Owner returns the pool owner.
func (e *Engine) Owner() crypto.Address {
	return e.ContractInfo().Owner
}

// TokenContract returns the configured token, if any.
func (e *Engine) TokenContract() (crypto.Address, bool) {
	info := e.ContractInfo()
	if info.TokenContract == nil {
		return crypto.Address{}, false
	}
	return *info.TokenContract, true
}

// Snapshot returns a deep copy of the pool for persistence or inspection.
func (e *Engine) Snapshot() *PoolState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}
