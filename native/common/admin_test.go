package common

import (
	"errors"
	"testing"

	"vstreet/crypto"
)

func addr(b byte) crypto.Address {
	return crypto.AddressFromRaw([crypto.AddressLength]byte{b})
}

func TestAdminSetLifecycle(t *testing.T) {
	set := NewAdminSet(addr(1), addr(2), addr(2))
	if len(set.List()) != 2 {
		t.Fatalf("expected duplicate admin to be ignored, got %v", set.List())
	}
	if err := set.Require(addr(3)); !errors.Is(err, ErrInsufficientAdminPrivileges) {
		t.Fatalf("expected privilege error, got %v", err)
	}
	if err := set.Add(addr(3)); err != nil {
		t.Fatalf("add admin: %v", err)
	}
	if err := set.Add(addr(3)); !errors.Is(err, ErrAdminAlreadyExists) {
		t.Fatalf("expected ErrAdminAlreadyExists, got %v", err)
	}
	if err := set.Remove(addr(4)); !errors.Is(err, ErrAdminDoesNotExist) {
		t.Fatalf("expected ErrAdminDoesNotExist, got %v", err)
	}
	if err := set.Remove(addr(1)); err == nil {
		t.Fatalf("owner removal must fail")
	}

	clone := set.Clone()
	if err := clone.Remove(addr(3)); err != nil {
		t.Fatalf("remove admin: %v", err)
	}
	if !set.IsAdmin(addr(3)) {
		t.Fatalf("clone mutation leaked into original")
	}
}
