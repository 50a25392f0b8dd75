package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"vstreet/observability/logging"
)

const secret = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func noEnv(string) (string, bool) { return "", false }

func envMap(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
listen: " :6000 "
tls:
  allow_insecure: true
auth:
  jwt_secret: "`+secret+`"
`)
	cfg, err := load(path, noEnv)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ListenAddress != ":6000" {
		t.Fatalf("unexpected listen address: %q", cfg.ListenAddress)
	}
	if cfg.GenesisFile != defaultGenesis {
		t.Fatalf("unexpected genesis %q", cfg.GenesisFile)
	}
	if cfg.SweepInterval != time.Minute {
		t.Fatalf("unexpected sweep interval %v", cfg.SweepInterval)
	}
	if cfg.RateLimit.RequestsPerMinute != defaultRatePerMin || cfg.RateLimit.Burst != defaultRateBurst {
		t.Fatalf("unexpected rate limit %+v", cfg.RateLimit)
	}
	if cfg.TLS.Enabled() {
		t.Fatalf("tls should be disabled")
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
tls:
  allow_insecure: true
auth:
  jwt_secret: "short"
sweep_interval: 30s
`)
	cfg, err := load(path, envMap(map[string]string{
		"VST_JWT_SECRET":        secret,
		"VST_LISTEN":            "127.0.0.1:7000",
		"VST_TOKEN_SERVICE_URL": " http://tokens:8080/rpc ",
		"VST_SWEEP_INTERVAL":    "5s",
		"VST_RATE_PER_MIN":      "60",
	}))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Auth.JWTSecret != secret {
		t.Fatalf("env secret not applied")
	}
	if cfg.ListenAddress != "127.0.0.1:7000" {
		t.Fatalf("unexpected listen %q", cfg.ListenAddress)
	}
	if cfg.TokenService.URL != "http://tokens:8080/rpc" {
		t.Fatalf("unexpected token url %q", cfg.TokenService.URL)
	}
	if cfg.SweepInterval != 5*time.Second {
		t.Fatalf("unexpected sweep interval %v", cfg.SweepInterval)
	}
	if cfg.RateLimit.RequestsPerMinute != 60 {
		t.Fatalf("unexpected rate %v", cfg.RateLimit.RequestsPerMinute)
	}
}

func TestLoadConfigRejectsBadEnv(t *testing.T) {
	path := writeConfig(t, `
tls:
  allow_insecure: true
auth:
  jwt_secret: "`+secret+`"
`)
	if _, err := load(path, envMap(map[string]string{"VST_SWEEP_INTERVAL": "soon"})); err == nil {
		t.Fatal("expected invalid duration error")
	}
}

func TestLoadConfigRequiresSecret(t *testing.T) {
	path := writeConfig(t, `
tls:
  allow_insecure: true
`)
	if _, err := load(path, noEnv); err == nil {
		t.Fatal("expected error when jwt secret is missing")
	}
}

func TestLoadConfigValidatesTLS(t *testing.T) {
	path := writeConfig(t, `
tls:
  cert: "server.crt"
auth:
  jwt_secret: "`+secret+`"
`)
	if _, err := load(path, noEnv); err == nil {
		t.Fatal("expected error when tls key is missing")
	}
}

func TestLoadConfigRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
tls:
  allow_insecure: true
auth:
  jwt_secret: "`+secret+`"
bogus: true
`)
	if _, err := load(path, noEnv); err == nil {
		t.Fatal("expected unknown field error")
	}
}

func TestSanitizedAndLogOptions(t *testing.T) {
	cfg := Config{Env: "dev", Auth: AuthConfig{JWTSecret: secret}, TokenService: TokenService{Bearer: "b"}, Log: LogConfig{File: "/tmp/x.log", Level: "debug"}}
	clean := cfg.Sanitized()
	if clean.Auth.JWTSecret != logging.RedactedValue || clean.TokenService.Bearer != logging.RedactedValue {
		t.Fatalf("secrets not masked: %+v", clean)
	}
	if cfg.Auth.JWTSecret != secret {
		t.Fatalf("original config mutated")
	}
	opts := cfg.LogOptions("lendingd")
	if opts.File == nil || opts.File.Path != "/tmp/x.log" || opts.Level != "debug" {
		t.Fatalf("unexpected log options %+v", opts)
	}
}
