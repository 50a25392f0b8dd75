package common

import (
	"sort"

	"vstreet/crypto"
)

// AdminSet tracks the owner and the administrators allowed to call
// privileged operations. The owner is always an administrator.
type AdminSet struct {
	Owner  crypto.Address
	admins []crypto.Address
}

// NewAdminSet returns a set seeded with the owner and any extra admins.
// Duplicates are ignored.
func NewAdminSet(owner crypto.Address, admins ...crypto.Address) AdminSet {
	set := AdminSet{Owner: owner}
	set.admins = append(set.admins, owner)
	for _, a := range admins {
		if !set.IsAdmin(a) {
			set.admins = append(set.admins, a)
		}
	}
	return set
}

// IsAdmin reports whether addr holds admin privileges.
func (s AdminSet) IsAdmin(addr crypto.Address) bool {
	for _, a := range s.admins {
		if a.Raw() == addr.Raw() {
			return true
		}
	}
	return false
}

// Require returns ErrInsufficientAdminPrivileges unless caller is an admin.
func (s AdminSet) Require(caller crypto.Address) error {
	if !s.IsAdmin(caller) {
		return ErrInsufficientAdminPrivileges
	}
	return nil
}

// Add appends a new admin.
func (s *AdminSet) Add(addr crypto.Address) error {
	if s.IsAdmin(addr) {
		return ErrAdminAlreadyExists
	}
	s.admins = append(s.admins, addr)
	return nil
}

// Remove drops an admin. The owner cannot be removed.
func (s *AdminSet) Remove(addr crypto.Address) error {
	if addr.Raw() == s.Owner.Raw() {
		return ErrInsufficientAdminPrivileges
	}
	for i, a := range s.admins {
		if a.Raw() == addr.Raw() {
			s.admins = append(s.admins[:i:i], s.admins[i+1:]...)
			return nil
		}
	}
	return ErrAdminDoesNotExist
}

// List returns the admins sorted by address.
func (s AdminSet) List() []crypto.Address {
	out := make([]crypto.Address, len(s.admins))
	copy(out, s.admins)
	sort.Slice(out, func(i, j int) bool { return out[i].Compare(out[j]) < 0 })
	return out
}

// Clone returns an independent copy of the set.
func (s AdminSet) Clone() AdminSet {
	out := AdminSet{Owner: s.Owner}
	out.admins = make([]crypto.Address, len(s.admins))
	copy(out.admins, s.admins)
	return out
}
