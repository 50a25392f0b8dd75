package lending

import (
	"errors"
	"fmt"
)

const (
	DefaultScaleFactor    = 1_000_000
	DefaultSecondsPerYear = 31_536_000
	DefaultOneNativeUnit  = 1_000_000_000_000
	DefaultLTV            = 70
)

// Config captures the runtime configuration for the lending pool. Rates and
// the dev fee are fixed-point fractions over ScaleFactor. Per-operation caps
// are whole token (or whole native unit) amounts where zero disables the cap.
type Config struct {
	ScaleFactor           uint64 `toml:"ScaleFactor" json:"scaleFactor"`
	SecondsPerYear        uint64 `toml:"SecondsPerYear" json:"secondsPerYear"`
	BaseRate              uint64 `toml:"BaseRate" json:"baseRate"`
	RiskMultiplier        uint64 `toml:"RiskMultiplier" json:"riskMultiplier"`
	OneNativeUnit         uint64 `toml:"OneNativeUnit" json:"oneNativeUnit"`
	Price                 uint64 `toml:"Price" json:"price"`
	DevFee                uint64 `toml:"DevFee" json:"devFee"`
	MaxLoanAmount         uint64 `toml:"MaxLoanAmount" json:"maxLoanAmount"`
	MaxCollateralWithdraw uint64 `toml:"MaxCollateralWithdraw" json:"maxCollateralWithdraw"`
	MaxDeposit            uint64 `toml:"MaxDeposit" json:"maxDeposit"`
	MaxWithdraw           uint64 `toml:"MaxWithdraw" json:"maxWithdraw"`
	MinRewardWithdrawal   uint64 `toml:"MinRewardWithdrawal" json:"minRewardWithdrawal"`
	BorrowInterest        bool   `toml:"BorrowInterest" json:"borrowInterest"`
}

// DefaultConfig mirrors the parameters the pool was launched with.
func DefaultConfig() Config {
	return Config{
		ScaleFactor:    DefaultScaleFactor,
		SecondsPerYear: DefaultSecondsPerYear,
		BaseRate:       10_000,
		RiskMultiplier: 1_000,
		OneNativeUnit:  DefaultOneNativeUnit,
		Price:          30_000,
		DevFee:         150_000,
	}
}

// Normalize fills the structural constants that must never be zero.
func (c *Config) Normalize() {
	if c.ScaleFactor == 0 {
		c.ScaleFactor = DefaultScaleFactor
	}
	if c.SecondsPerYear == 0 {
		c.SecondsPerYear = DefaultSecondsPerYear
	}
	if c.OneNativeUnit == 0 {
		c.OneNativeUnit = DefaultOneNativeUnit
	}
}

// Validate reports configuration values the engine cannot operate with.
func (c Config) Validate() error {
	var errs []error
	if c.ScaleFactor == 0 {
		errs = append(errs, errors.New("ScaleFactor must be positive"))
	}
	if c.SecondsPerYear == 0 {
		errs = append(errs, errors.New("SecondsPerYear must be positive"))
	}
	if c.OneNativeUnit == 0 {
		errs = append(errs, errors.New("OneNativeUnit must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("lending config: %w", errors.Join(errs...))
	}
	return nil
}
