package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"vstreet/observability/logging"
)

const (
	defaultListen        = ":9444"
	defaultGenesis       = "genesis.toml"
	defaultSweepInterval = time.Minute
	defaultRatePerMin    = 120
	defaultRateBurst     = 20
	defaultClockSkew     = 2 * time.Minute

	envPrefix = "VST_"
)

// Config captures the runtime settings for the lending daemon.
type Config struct {
	ListenAddress string        `yaml:"listen"`
	Env           string        `yaml:"env"`
	GenesisFile   string        `yaml:"genesis"`
	DataDir       string        `yaml:"data_dir"`
	JournalPath   string        `yaml:"journal"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	TLS           TLSConfig     `yaml:"tls"`
	Auth          AuthConfig    `yaml:"auth"`
	RateLimit     RateLimit     `yaml:"rate_limit"`
	TokenService  TokenService  `yaml:"token_service"`
	Log           LogConfig     `yaml:"log"`
	Telemetry     Telemetry     `yaml:"telemetry"`
}

// TLSConfig describes the certificate served by the HTTP listener.
type TLSConfig struct {
	CertPath      string `yaml:"cert"`
	KeyPath       string `yaml:"key"`
	AllowInsecure bool   `yaml:"allow_insecure"`
}

// AuthConfig configures HS256 bearer tokens. The subject claim carries the
// caller address.
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	Issuer    string        `yaml:"issuer"`
	Audience  string        `yaml:"audience"`
	ClockSkew time.Duration `yaml:"clock_skew"`
}

// RateLimit bounds requests per client.
type RateLimit struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
}

// TokenService points at the remote token and native value service. When URL
// is empty the daemon settles against an in-process ledger.
type TokenService struct {
	URL      string        `yaml:"url"`
	Bearer   string        `yaml:"bearer"`
	Timeout  time.Duration `yaml:"timeout"`
	RetryMax int           `yaml:"retry_max"`
}

// LogConfig selects the log level and an optional rotating file.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Telemetry configures OTLP export.
type Telemetry struct {
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
	Headers  string `yaml:"headers"`
	Traces   bool   `yaml:"traces"`
	Metrics  bool   `yaml:"metrics"`
}

// Load reads the YAML configuration from disk, applies VST_* environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Config{ListenAddress: defaultListen}
	if path == "" {
		return cfg, errors.New("config path required")
	}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return Config{}, err
	}
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = v
		}
	}
	str("LISTEN", &cfg.ListenAddress)
	str("ENV", &cfg.Env)
	str("GENESIS", &cfg.GenesisFile)
	str("DATA_DIR", &cfg.DataDir)
	str("JOURNAL", &cfg.JournalPath)
	str("JWT_SECRET", &cfg.Auth.JWTSecret)
	str("TOKEN_SERVICE_URL", &cfg.TokenService.URL)
	str("TOKEN_SERVICE_BEARER", &cfg.TokenService.Bearer)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FILE", &cfg.Log.File)
	if v, ok := lookup(envPrefix + "SWEEP_INTERVAL"); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%sSWEEP_INTERVAL: %w", envPrefix, err)
		}
		cfg.SweepInterval = d
	}
	if v, ok := lookup(envPrefix + "RATE_PER_MIN"); ok {
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("%sRATE_PER_MIN: %w", envPrefix, err)
		}
		cfg.RateLimit.RequestsPerMinute = n
	}
	if v, ok := lookup(envPrefix + "ALLOW_INSECURE"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%sALLOW_INSECURE: %w", envPrefix, err)
		}
		cfg.TLS.AllowInsecure = b
	}
	return nil
}

func (cfg *Config) normalize() {
	cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress)
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = defaultListen
	}
	cfg.Env = strings.TrimSpace(cfg.Env)
	cfg.GenesisFile = strings.TrimSpace(cfg.GenesisFile)
	if cfg.GenesisFile == "" {
		cfg.GenesisFile = defaultGenesis
	}
	cfg.DataDir = strings.TrimSpace(cfg.DataDir)
	cfg.JournalPath = strings.TrimSpace(cfg.JournalPath)
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	cfg.TLS.CertPath = strings.TrimSpace(cfg.TLS.CertPath)
	cfg.TLS.KeyPath = strings.TrimSpace(cfg.TLS.KeyPath)
	cfg.Auth.JWTSecret = strings.TrimSpace(cfg.Auth.JWTSecret)
	if cfg.Auth.ClockSkew <= 0 {
		cfg.Auth.ClockSkew = defaultClockSkew
	}
	if cfg.RateLimit.RequestsPerMinute <= 0 {
		cfg.RateLimit.RequestsPerMinute = defaultRatePerMin
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = defaultRateBurst
	}
	cfg.TokenService.URL = strings.TrimSpace(cfg.TokenService.URL)
	cfg.TokenService.Bearer = strings.TrimSpace(cfg.TokenService.Bearer)
}

func (cfg *Config) validate() error {
	if err := cfg.TLS.validate(); err != nil {
		return fmt.Errorf("tls: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth: jwt_secret is required")
	}
	if len(cfg.Auth.JWTSecret) < 32 {
		return errors.New("auth: jwt_secret must be at least 32 bytes")
	}
	if cfg.TokenService.RetryMax < 0 {
		return errors.New("token_service: retry_max must be non-negative")
	}
	return nil
}

func (cfg TLSConfig) validate() error {
	hasCert := cfg.CertPath != ""
	hasKey := cfg.KeyPath != ""
	if hasCert != hasKey {
		return errors.New("cert and key must either both be provided or both be empty")
	}
	if !cfg.AllowInsecure && !hasCert {
		return errors.New("cert and key are required unless allow_insecure=true")
	}
	return nil
}

// Enabled reports whether the listener serves TLS.
func (cfg TLSConfig) Enabled() bool {
	return cfg.CertPath != "" && cfg.KeyPath != ""
}

// LogOptions converts the log section into logging options.
func (cfg Config) LogOptions(service string) logging.Options {
	opts := logging.Options{Service: service, Env: cfg.Env, Level: cfg.Log.Level}
	if strings.TrimSpace(cfg.Log.File) != "" {
		opts.File = &logging.FileOptions{
			Path:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
			Compress:   true,
		}
	}
	return opts
}

// Sanitized returns a copy of the Config with secrets masked for logging.
func (cfg Config) Sanitized() Config {
	clone := cfg
	clone.Auth.JWTSecret = logging.MaskValue(clone.Auth.JWTSecret)
	clone.TokenService.Bearer = logging.MaskValue(clone.TokenService.Bearer)
	clone.Telemetry.Headers = logging.MaskValue(clone.Telemetry.Headers)
	return clone
}
