package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"vstreet/config"
	"vstreet/crypto"
	"vstreet/services/lendingd/server"
)

type staticPass string

func (p staticPass) Get() (string, error) { return string(p), nil }

func withPassphrase(t *testing.T, pass string) {
	t.Helper()
	prev := newPassphrase
	newPassphrase = func(string) interface{ Get() (string, error) } { return staticPass(pass) }
	t.Cleanup(func() { newPassphrase = prev })
}

func TestKeygenAndAddress(t *testing.T) {
	withPassphrase(t, "secret")
	path := filepath.Join(t.TempDir(), "admin.json")

	var out, errOut bytes.Buffer
	require.Equal(t, 0, run([]string{"keygen", "-out", path}, &out, &errOut), errOut.String())
	generated := strings.TrimSpace(out.String())
	require.True(t, strings.HasPrefix(generated, "vst1"))

	out.Reset()
	require.Equal(t, 0, run([]string{"address", "-keystore", path}, &out, &errOut), errOut.String())
	require.Equal(t, generated, strings.TrimSpace(out.String()))

	errOut.Reset()
	require.Equal(t, 1, run([]string{"keygen", "-out", path}, &out, &errOut))
	require.Contains(t, errOut.String(), "already exists")
}

func TestGenesisCommand(t *testing.T) {
	owner := crypto.AddressFromRaw([crypto.AddressLength]byte{7})
	path := filepath.Join(t.TempDir(), "genesis.toml")
	var out, errOut bytes.Buffer
	require.Equal(t, 0, run([]string{"genesis", "-owner", owner.String(), "-out", path}, &out, &errOut), errOut.String())

	loaded, err := config.LoadGenesis(path)
	require.NoError(t, err)
	require.Equal(t, owner.String(), loaded.Owner)
}

func TestTokenCommand(t *testing.T) {
	const secret = "0123456789abcdef0123456789abcdef"
	t.Setenv("VST_JWT_SECRET", secret)
	caller := crypto.AddressFromRaw([crypto.AddressLength]byte{9})

	var out, errOut bytes.Buffer
	require.Equal(t, 0, run([]string{"token", "-subject", caller.String(), "-issuer", "vst"}, &out, &errOut), errOut.String())

	auth := server.NewAuthenticator(server.AuthConfig{HMACSecret: secret, Issuer: "vst"}, nil)
	got, err := auth.Authenticate("Bearer " + strings.TrimSpace(out.String()))
	require.NoError(t, err)
	require.Equal(t, caller, got)
}

func TestUnknownCommand(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run([]string{"bogus"}, &out, &errOut); code != 2 {
		t.Fatalf("expected exit code 2, got %d", code)
	}
	if code := run(nil, &out, &errOut); code != 2 {
		t.Fatalf("expected exit code 2 with no args, got %d", code)
	}
}
