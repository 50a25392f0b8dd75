package state

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"vstreet/crypto"
	"vstreet/native/lending"
	"vstreet/native/vault"
)

// The stored* types are the RLP layout of the snapshots. Amounts are kept as
// big integers and maps are flattened into ordered slices so encodings are
// deterministic.

type storedConfig struct {
	ScaleFactor           uint64
	SecondsPerYear        uint64
	BaseRate              uint64
	RiskMultiplier        uint64
	OneNativeUnit         uint64
	Price                 uint64
	DevFee                uint64
	MaxLoanAmount         uint64
	MaxCollateralWithdraw uint64
	MaxDeposit            uint64
	MaxWithdraw           uint64
	MinRewardWithdrawal   uint64
	BorrowInterest        bool
}

type storedAccount struct {
	Address             [20]byte
	Balance             *big.Int
	Rewards             *big.Int
	RewardsWithdrawn    *big.Int
	SupplyCheckpoint    uint64
	LoanCheckpoint      uint64
	BalanceNative       *big.Int
	CollateralValue     *big.Int
	MaxLoan             *big.Int
	AvailableToWithdraw *big.Int
	LoanAmount          *big.Int
	LTV                 uint64
	Loan                uint8
}

type storedPool struct {
	Owner                   [20]byte
	Admins                  [][20]byte
	Token                   []byte
	TotalSupplied           *big.Int
	TotalBorrowed           *big.Int
	AvailableRewardsPool    *big.Int
	TotalRewardsDistributed *big.Int
	SeizedCollateral        *big.Int
	Utilization             uint64
	InterestRate            uint64
	APR                     uint64
	BorrowRate              uint64
	LTV                     uint64
	Price                   uint64
	Config                  storedConfig
	Accounts                []storedAccount
}

type storedPosition struct {
	ID         uint64
	Owner      [20]byte
	Amount     *big.Int
	Conviction uint8
	Multiplier uint64
	Power      *big.Int
	StartAt    uint64
	UnlockAt   uint64
	Active     bool
	Claimed    bool
}

type storedUserVault struct {
	Address     [20]byte
	TotalStaked *big.Int
	TotalPower  *big.Int
	History     []uint64
}

type storedVault struct {
	Owner          [20]byte
	Admins         [][20]byte
	Token          []byte
	TotalLocked    *big.Int
	TotalPower     *big.Int
	NextPositionID uint64
	Positions      []storedPosition
	Users          []storedUserVault
}

func toBig(v uint256.Int) *big.Int { return v.ToBig() }

func fromBig(v *big.Int) (uint256.Int, error) {
	var out uint256.Int
	if v == nil {
		return out, nil
	}
	if overflow := out.SetFromBig(v); overflow {
		return uint256.Int{}, fmt.Errorf("state: amount %s exceeds 256 bits", v)
	}
	return out, nil
}

type bigPair struct {
	dst *uint256.Int
	src *big.Int
}

func fromBigs(pairs ...bigPair) error {
	for _, p := range pairs {
		v, err := fromBig(p.src)
		if err != nil {
			return err
		}
		*p.dst = v
	}
	return nil
}

func encodeAddresses(addrs []crypto.Address) [][20]byte {
	out := make([][20]byte, len(addrs))
	for i, a := range addrs {
		out[i] = a.Raw()
	}
	return out
}

func decodeAddresses(raw [][20]byte) []crypto.Address {
	out := make([]crypto.Address, len(raw))
	for i, r := range raw {
		out[i] = crypto.AddressFromRaw(r)
	}
	return out
}

func encodeToken(token *crypto.Address) []byte {
	if token == nil {
		return nil
	}
	return token.Bytes()
}

func decodeToken(raw []byte) (*crypto.Address, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	addr, err := crypto.NewAddress(crypto.VSTPrefix, raw)
	if err != nil {
		return nil, err
	}
	return &addr, nil
}

func encodePool(p *lending.PoolState) storedPool {
	cfg := p.Config
	out := storedPool{
		Owner:                   p.Admins.Owner.Raw(),
		Admins:                  encodeAddresses(p.Admins.List()),
		Token:                   encodeToken(p.TokenContract),
		TotalSupplied:           toBig(p.TotalSupplied),
		TotalBorrowed:           toBig(p.TotalBorrowed),
		AvailableRewardsPool:    toBig(p.AvailableRewardsPool),
		TotalRewardsDistributed: toBig(p.TotalRewardsDistributed),
		SeizedCollateral:        toBig(p.SeizedCollateral),
		Utilization:             p.Utilization,
		InterestRate:            p.InterestRate,
		APR:                     p.APR,
		BorrowRate:              p.BorrowRate,
		LTV:                     p.LTV,
		Price:                   p.Price,
		Config:                  storedConfig(cfg),
	}
	p.Users.Range(func(addr crypto.Address, u *lending.UserAccount) bool {
		out.Accounts = append(out.Accounts, storedAccount{
			Address:             addr.Raw(),
			Balance:             toBig(u.Balance),
			Rewards:             toBig(u.Rewards),
			RewardsWithdrawn:    toBig(u.RewardsWithdrawn),
			SupplyCheckpoint:    u.SupplyCheckpoint,
			LoanCheckpoint:      u.LoanCheckpoint,
			BalanceNative:       toBig(u.BalanceNative),
			CollateralValue:     toBig(u.CollateralValue),
			MaxLoan:             toBig(u.MaxLoan),
			AvailableToWithdraw: toBig(u.AvailableToWithdraw),
			LoanAmount:          toBig(u.LoanAmount),
			LTV:                 u.LTV,
			Loan:                uint8(u.Loan),
		})
		return true
	})
	return out
}

func decodePool(s *storedPool) (*lending.PoolState, error) {
	token, err := decodeToken(s.Token)
	if err != nil {
		return nil, err
	}
	pool := lending.NewPoolState(lending.Params{
		Owner:         crypto.AddressFromRaw(s.Owner),
		Admins:        decodeAddresses(s.Admins),
		TokenContract: token,
		LTV:           s.LTV,
		Config:        lending.Config(s.Config),
	})
	if err := fromBigs(
		bigPair{&pool.TotalSupplied, s.TotalSupplied},
		bigPair{&pool.TotalBorrowed, s.TotalBorrowed},
		bigPair{&pool.AvailableRewardsPool, s.AvailableRewardsPool},
		bigPair{&pool.TotalRewardsDistributed, s.TotalRewardsDistributed},
		bigPair{&pool.SeizedCollateral, s.SeizedCollateral},
	); err != nil {
		return nil, err
	}
	pool.Utilization = s.Utilization
	pool.InterestRate = s.InterestRate
	pool.APR = s.APR
	pool.BorrowRate = s.BorrowRate
	pool.Price = s.Price
	for _, a := range s.Accounts {
		u := &lending.UserAccount{
			SupplyCheckpoint: a.SupplyCheckpoint,
			LoanCheckpoint:   a.LoanCheckpoint,
			LTV:              a.LTV,
			Loan:             lending.LoanStatus(a.Loan),
		}
		if err := fromBigs(
			bigPair{&u.Balance, a.Balance},
			bigPair{&u.Rewards, a.Rewards},
			bigPair{&u.RewardsWithdrawn, a.RewardsWithdrawn},
			bigPair{&u.BalanceNative, a.BalanceNative},
			bigPair{&u.CollateralValue, a.CollateralValue},
			bigPair{&u.MaxLoan, a.MaxLoan},
			bigPair{&u.AvailableToWithdraw, a.AvailableToWithdraw},
			bigPair{&u.LoanAmount, a.LoanAmount},
		); err != nil {
			return nil, err
		}
		pool.Users.Put(crypto.AddressFromRaw(a.Address), u)
	}
	return pool, nil
}

func encodeVault(st *vault.State) storedVault {
	out := storedVault{
		Owner:          st.Admins.Owner.Raw(),
		Admins:         encodeAddresses(st.Admins.List()),
		Token:          encodeToken(st.Token),
		TotalLocked:    toBig(st.TotalLocked),
		TotalPower:     toBig(st.TotalPower),
		NextPositionID: st.NextPositionID,
	}
	for _, id := range st.PositionIDs() {
		p := st.Positions[id]
		out.Positions = append(out.Positions, storedPosition{
			ID:         p.ID,
			Owner:      p.Owner.Raw(),
			Amount:     toBig(p.Amount),
			Conviction: uint8(p.Conviction),
			Multiplier: p.Multiplier,
			Power:      toBig(p.Power),
			StartAt:    p.StartAt,
			UnlockAt:   p.UnlockAt,
			Active:     p.Active,
			Claimed:    p.Claimed,
		})
	}
	for _, addr := range st.UserAddresses() {
		u := st.Users[addr.Raw()]
		out.Users = append(out.Users, storedUserVault{
			Address:     addr.Raw(),
			TotalStaked: toBig(u.TotalStaked),
			TotalPower:  toBig(u.TotalPower),
			History:     append([]uint64{}, u.History...),
		})
	}
	return out
}

func decodeVault(s *storedVault) (*vault.State, error) {
	token, err := decodeToken(s.Token)
	if err != nil {
		return nil, err
	}
	st := vault.NewState(crypto.AddressFromRaw(s.Owner), decodeAddresses(s.Admins), token)
	st.NextPositionID = s.NextPositionID
	if err := fromBigs(
		bigPair{&st.TotalLocked, s.TotalLocked},
		bigPair{&st.TotalPower, s.TotalPower},
	); err != nil {
		return nil, err
	}
	for _, sp := range s.Positions {
		p := &vault.Position{
			ID:         sp.ID,
			Owner:      crypto.AddressFromRaw(sp.Owner),
			Conviction: vault.Conviction(sp.Conviction),
			Multiplier: sp.Multiplier,
			StartAt:    sp.StartAt,
			UnlockAt:   sp.UnlockAt,
			Active:     sp.Active,
			Claimed:    sp.Claimed,
		}
		if err := fromBigs(bigPair{&p.Amount, sp.Amount}, bigPair{&p.Power, sp.Power}); err != nil {
			return nil, err
		}
		st.Positions[p.ID] = p
	}
	for _, su := range s.Users {
		u := &vault.UserVault{History: su.History}
		if err := fromBigs(bigPair{&u.TotalStaked, su.TotalStaked}, bigPair{&u.TotalPower, su.TotalPower}); err != nil {
			return nil, err
		}
		st.Users[su.Address] = u
	}
	return st, nil
}
