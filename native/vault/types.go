package vault

import (
	"errors"
	"sort"

	"github.com/holiman/uint256"

	"vstreet/crypto"
	nativecommon "vstreet/native/common"
)

var (
	ErrPositionNotFound       = errors.New("position not found")
	ErrNotPositionOwner       = errors.New("you are not the owner of this position")
	ErrPositionNotMatured     = errors.New("position has not matured yet")
	ErrPositionAlreadyClaimed = errors.New("position already claimed")
	ErrPositionInactive       = errors.New("position is not active")
	ErrInvalidConviction      = errors.New("invalid conviction level")
)

// Position is one time-locked stake. It is created active and moves to
// claimed exactly once.
type Position struct {
	ID         uint64
	Owner      crypto.Address
	Amount     uint256.Int
	Conviction Conviction
	Multiplier uint64
	Power      uint256.Int
	StartAt    uint64
	UnlockAt   uint64
	Active     bool
	Claimed    bool
}

// Matured reports whether the position can be claimed at now.
func (p *Position) Matured(now uint64) bool {
	return p.Active && !p.Claimed && now >= p.UnlockAt
}

// UserVault holds the authoritative per-user aggregates. Position lists are
// derived at read time from History.
type UserVault struct {
	TotalStaked uint256.Int
	TotalPower  uint256.Int
	History     []uint64
}

// State is the root of the vault ledger.
type State struct {
	Admins         nativecommon.AdminSet
	Token          *crypto.Address
	TotalLocked    uint256.Int
	TotalPower     uint256.Int
	NextPositionID uint64
	Positions      map[uint64]*Position
	Users          map[[crypto.AddressLength]byte]*UserVault
}

// NewState creates an empty vault.
func NewState(owner crypto.Address, admins []crypto.Address, token *crypto.Address) *State {
	st := &State{
		Admins:         nativecommon.NewAdminSet(owner, admins...),
		NextPositionID: 1,
		Positions:      make(map[uint64]*Position),
		Users:          make(map[[crypto.AddressLength]byte]*UserVault),
	}
	if token != nil {
		t := *token
		st.Token = &t
	}
	return st
}

// Clone deep copies the vault.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Admins = s.Admins.Clone()
	if s.Token != nil {
		t := *s.Token
		clone.Token = &t
	}
	clone.Positions = make(map[uint64]*Position, len(s.Positions))
	for id, p := range s.Positions {
		cp := *p
		clone.Positions[id] = &cp
	}
	clone.Users = make(map[[crypto.AddressLength]byte]*UserVault, len(s.Users))
	for key, u := range s.Users {
		cu := *u
		cu.History = append([]uint64(nil), u.History...)
		clone.Users[key] = &cu
	}
	return &clone
}

// PositionIDs returns every position id in ascending order.
func (s *State) PositionIDs() []uint64 {
	ids := make([]uint64, 0, len(s.Positions))
	for id := range s.Positions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// UserAddresses returns the users with vault rows ordered by address.
func (s *State) UserAddresses() []crypto.Address {
	out := make([]crypto.Address, 0, len(s.Users))
	for key := range s.Users {
		out = append(out, crypto.AddressFromRaw(key))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Compare(out[j]) < 0 })
	return out
}
