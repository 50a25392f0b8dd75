package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"vstreet/cmd/internal/passphrase"
	"vstreet/config"
	"vstreet/crypto"
	"vstreet/services/lendingd/server"
)

const (
	defaultPassEnv   = "VST_KEY_PASS"
	defaultSecretEnv = "VST_JWT_SECRET"
	defaultTokenTTL  = time.Hour
)

// newPassphrase is swapped in tests.
var newPassphrase = func(envVar string) interface{ Get() (string, error) } {
	return passphrase.NewSource(envVar, "keystore")
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		usage(stderr)
		return 2
	}
	var err error
	switch args[0] {
	case "keygen":
		err = runKeygen(args[1:], stdout)
	case "address":
		err = runAddress(args[1:], stdout)
	case "genesis":
		err = runGenesis(args[1:], stdout)
	case "token":
		err = runToken(args[1:], stdout)
	case "help", "-h", "--help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", args[0])
		usage(stderr)
		return 2
	}
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: vstctl <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  keygen   -out <file>                 generate a key into an encrypted keystore")
	fmt.Fprintln(w, "  address  -keystore <file>            print the address held by a keystore")
	fmt.Fprintln(w, "  genesis  -owner <addr> -out <file>   write a default genesis file")
	fmt.Fprintln(w, "  token    -subject <addr>             mint a bearer token for lendingd")
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func runKeygen(args []string, stdout io.Writer) error {
	fs := newFlagSet("keygen")
	out := fs.String("out", "", "keystore output path")
	passEnv := fs.String("pass-env", defaultPassEnv, "environment variable holding the keystore passphrase")
	force := fs.Bool("force", false, "overwrite an existing keystore")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*out) == "" {
		return errors.New("-out is required")
	}
	if _, err := os.Stat(*out); err == nil && !*force {
		return fmt.Errorf("%s already exists; pass -force to overwrite", *out)
	}
	pass, err := newPassphrase(*passEnv).Get()
	if err != nil {
		return err
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	if err := crypto.SaveToKeystore(*out, key, pass); err != nil {
		return fmt.Errorf("write keystore: %w", err)
	}
	fmt.Fprintln(stdout, key.PubKey().Address().String())
	return nil
}

func runAddress(args []string, stdout io.Writer) error {
	fs := newFlagSet("address")
	path := fs.String("keystore", "", "keystore path")
	passEnv := fs.String("pass-env", defaultPassEnv, "environment variable holding the keystore passphrase")
	if err := fs.Parse(args); err != nil {
		return err
	}
	addr, err := keystoreAddress(*path, *passEnv)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, addr.String())
	return nil
}

func keystoreAddress(path, passEnv string) (crypto.Address, error) {
	if strings.TrimSpace(path) == "" {
		return crypto.Address{}, errors.New("-keystore is required")
	}
	pass, err := newPassphrase(passEnv).Get()
	if err != nil {
		return crypto.Address{}, err
	}
	key, err := crypto.LoadFromKeystore(path, pass)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("open keystore: %w", err)
	}
	return key.PubKey().Address(), nil
}

func runGenesis(args []string, stdout io.Writer) error {
	fs := newFlagSet("genesis")
	ownerFlag := fs.String("owner", "", "pool owner address")
	out := fs.String("out", "genesis.toml", "genesis output path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	owner, err := crypto.DecodeAddress(*ownerFlag)
	if err != nil {
		return fmt.Errorf("-owner: %w", err)
	}
	genesis := config.DefaultGenesis(owner)
	if err := genesis.Validate(); err != nil {
		return err
	}
	if err := config.WriteGenesis(*out, genesis); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s (pool %s)\n", *out, genesis.PoolAddress)
	return nil
}

func runToken(args []string, stdout io.Writer) error {
	fs := newFlagSet("token")
	subject := fs.String("subject", "", "caller address embedded in the token")
	keystorePath := fs.String("keystore", "", "derive the subject from this keystore instead")
	passEnv := fs.String("pass-env", defaultPassEnv, "environment variable holding the keystore passphrase")
	secretEnv := fs.String("secret-env", defaultSecretEnv, "environment variable holding the HS256 secret")
	issuer := fs.String("issuer", "", "iss claim")
	audience := fs.String("audience", "", "aud claim")
	ttl := fs.Duration("ttl", defaultTokenTTL, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var caller crypto.Address
	var err error
	switch {
	case *keystorePath != "":
		caller, err = keystoreAddress(*keystorePath, *passEnv)
	case *subject != "":
		caller, err = crypto.DecodeAddress(*subject)
	default:
		err = errors.New("-subject or -keystore is required")
	}
	if err != nil {
		return err
	}
	secret := os.Getenv(*secretEnv)
	if strings.TrimSpace(secret) == "" {
		return fmt.Errorf("%s is not set", *secretEnv)
	}
	if *ttl <= 0 {
		return errors.New("-ttl must be positive")
	}
	token, err := server.IssueToken(secret, caller, *issuer, *audience, *ttl, time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, token)
	return nil
}
