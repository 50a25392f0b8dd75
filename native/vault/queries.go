package vault

import (
	"github.com/holiman/uint256"

	"vstreet/crypto"
	nativecommon "vstreet/native/common"
)

// UserVaultInfo is the per-user view with position lists derived from the
// position table and the current time.
type UserVaultInfo struct {
	TotalStaked uint256.Int
	TotalPower  uint256.Int
	Active      []uint64
	Matured     []uint64
	History     []uint64
}

// GlobalStats summarises the vault.
type GlobalStats struct {
	TotalLocked          uint256.Int
	TotalPower           uint256.Int
	ActivePositionsCount uint64
	NextPositionID       uint64
	Token                *crypto.Address
	Owner                crypto.Address
	Admins               []crypto.Address
}

func (s *State) userInfo(user crypto.Address, now uint64) UserVaultInfo {
	row := s.Users[user.Raw()]
	if row == nil {
		return UserVaultInfo{}
	}
	info := UserVaultInfo{
		TotalStaked: row.TotalStaked,
		TotalPower:  row.TotalPower,
		History:     append([]uint64(nil), row.History...),
	}
	for _, id := range row.History {
		pos, ok := s.Positions[id]
		if !ok || pos.Claimed || !pos.Active {
			continue
		}
		if now >= pos.UnlockAt {
			info.Matured = append(info.Matured, id)
		} else {
			info.Active = append(info.Active, id)
		}
	}
	return info
}

func (s *State) positions(ids []uint64) []Position {
	out := make([]Position, 0, len(ids))
	for _, id := range ids {
		if pos, ok := s.Positions[id]; ok {
			out = append(out, *pos)
		}
	}
	return out
}

func (e *Engine) now() uint64 { return nativecommon.UnixNow(e.clock) }

// view returns the committed state, or an empty vault when none is set.
func (e *Engine) view() *State {
	if e.state == nil {
		return emptyState
	}
	return e.state
}

var emptyState = NewState(crypto.Address{}, nil, nil)

// UserVaultInfo returns the user's totals and derived position lists.
func (e *Engine) UserVaultInfo(user crypto.Address) UserVaultInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view().userInfo(user, e.now())
}

// PositionDetails returns a single position.
func (e *Engine) PositionDetails(id uint64) (Position, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pos, ok := e.view().Positions[id]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// UserPositions returns every position the user ever opened.
func (e *Engine) UserPositions(user crypto.Address) []Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.view()
	return st.positions(st.userInfo(user, e.now()).History)
}

// UserActivePositions returns positions still locked.
func (e *Engine) UserActivePositions(user crypto.Address) []Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.view()
	return st.positions(st.userInfo(user, e.now()).Active)
}

// UserMaturedPositions returns positions ready to claim.
func (e *Engine) UserMaturedPositions(user crypto.Address) []Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.view()
	return st.positions(st.userInfo(user, e.now()).Matured)
}

// GlobalStats returns vault totals and the count of unclaimed positions.
func (e *Engine) GlobalStats() GlobalStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.view()
	stats := GlobalStats{
		TotalLocked:    s.TotalLocked,
		TotalPower:     s.TotalPower,
		NextPositionID: s.NextPositionID,
		Owner:          s.Admins.Owner,
		Admins:         s.Admins.List(),
	}
	for _, pos := range s.Positions {
		if pos.Active && !pos.Claimed {
			stats.ActivePositionsCount++
		}
	}
	if s.Token != nil {
		t := *s.Token
		stats.Token = &t
	}
	return stats
}

// TimeUntilUnlock returns the seconds left before a position matures, zero
// when it already has or does not exist.
func (e *Engine) TimeUntilUnlock(id uint64) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	pos, ok := e.view().Positions[id]
	if !ok {
		return 0
	}
	now := e.now()
	if now >= pos.UnlockAt {
		return 0
	}
	return pos.UnlockAt - now
}

// UserTotalPower returns the user's current voting power.
func (e *Engine) UserTotalPower(user crypto.Address) uint256.Int {
	return e.UserVaultInfo(user).TotalPower
}

// UserTotalStaked returns the user's currently locked tokens.
func (e *Engine) UserTotalStaked(user crypto.Address) uint256.Int {
	return e.UserVaultInfo(user).TotalStaked
}

// Snapshot returns a deep copy of the vault state.
func (e *Engine) Snapshot() *State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}
