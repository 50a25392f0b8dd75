package lending

import (
	"sort"

	"vstreet/crypto"
)

// Directory is an ordered mapping from account address to ledger row.
// Iteration follows ascending address order. Rows are never removed.
type Directory struct {
	keys     []crypto.Address
	accounts map[[crypto.AddressLength]byte]*UserAccount
}

// NewDirectory returns an empty directory.
func NewDirectory() *Directory {
	return &Directory{accounts: make(map[[crypto.AddressLength]byte]*UserAccount)}
}

// Len returns the number of accounts.
func (d *Directory) Len() int {
	if d == nil {
		return 0
	}
	return len(d.keys)
}

// Get returns the account stored for addr.
func (d *Directory) Get(addr crypto.Address) (*UserAccount, bool) {
	if d == nil {
		return nil, false
	}
	acct, ok := d.accounts[addr.Raw()]
	return acct, ok
}

// GetOrCreate returns the row for addr, creating it with both checkpoints
// at now when missing.
func (d *Directory) GetOrCreate(addr crypto.Address, now uint64) *UserAccount {
	if acct, ok := d.Get(addr); ok {
		return acct
	}
	acct := &UserAccount{SupplyCheckpoint: now, LoanCheckpoint: now}
	d.Put(addr, acct)
	return acct
}

// Put stores acct under addr, keeping the key order.
func (d *Directory) Put(addr crypto.Address, acct *UserAccount) {
	if d.accounts == nil {
		d.accounts = make(map[[crypto.AddressLength]byte]*UserAccount)
	}
	key := addr.Raw()
	if _, exists := d.accounts[key]; !exists {
		idx := sort.Search(len(d.keys), func(i int) bool { return d.keys[i].Compare(addr) >= 0 })
		d.keys = append(d.keys, crypto.Address{})
		copy(d.keys[idx+1:], d.keys[idx:])
		d.keys[idx] = crypto.AddressFromRaw(key)
	}
	d.accounts[key] = acct
}

// Range visits accounts in address order until fn returns false.
func (d *Directory) Range(fn func(addr crypto.Address, acct *UserAccount) bool) {
	if d == nil {
		return
	}
	for _, addr := range d.keys {
		if !fn(addr, d.accounts[addr.Raw()]) {
			return
		}
	}
}

// Addresses returns the ordered account keys.
func (d *Directory) Addresses() []crypto.Address {
	if d == nil {
		return nil
	}
	out := make([]crypto.Address, len(d.keys))
	copy(out, d.keys)
	return out
}

// Clone deep copies the directory and its rows.
func (d *Directory) Clone() *Directory {
	clone := NewDirectory()
	if d == nil {
		return clone
	}
	clone.keys = make([]crypto.Address, len(d.keys))
	copy(clone.keys, d.keys)
	for key, acct := range d.accounts {
		clone.accounts[key] = acct.Clone()
	}
	return clone
}
