package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// LendingMetrics tracks engine activity and pool levels.
type LendingMetrics struct {
	operations   *prometheus.CounterVec
	liquidations prometheus.Counter
	supplied     prometheus.Gauge
	borrowed     prometheus.Gauge
	rewardsPool  prometheus.Gauge
	utilization  prometheus.Gauge
	interestRate prometheus.Gauge
	borrowRate   prometheus.Gauge
	users        prometheus.Gauge
	vaultLocked  prometheus.Gauge
	vaultPower   prometheus.Gauge
	vaultActive  prometheus.Gauge
}

var (
	lendingOnce     sync.Once
	lendingRegistry *LendingMetrics
)

// PoolLevels is the subset of pool state exported as gauges. Amounts are in
// scaled token units.
type PoolLevels struct {
	Supplied     float64
	Borrowed     float64
	RewardsPool  float64
	Utilization  uint64
	InterestRate uint64
	BorrowRate   uint64
	Users        int
}

// VaultLevels is the subset of vault state exported as gauges.
type VaultLevels struct {
	Locked float64
	Power  float64
	Active int
}

// Lending returns the process-wide registry, registering it on first use.
func Lending() *LendingMetrics {
	lendingOnce.Do(func() {
		gauge := func(name, help string) prometheus.Gauge {
			return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "vst", Name: name, Help: help})
		}
		lendingRegistry = &LendingMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "vst",
				Name:      "operations_total",
				Help:      "Engine operations by module, operation and result.",
			}, []string{"module", "op", "result"}),
			liquidations: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "vst",
				Name:      "lending_liquidations_total",
				Help:      "Positions liquidated by the lending engine.",
			}),
			supplied:     gauge("lending_total_supplied", "Total supplied liquidity in scaled units."),
			borrowed:     gauge("lending_total_borrowed", "Total borrowed liquidity in scaled units."),
			rewardsPool:  gauge("lending_rewards_pool", "Rewards available for withdrawal in scaled units."),
			utilization:  gauge("lending_utilization_percent", "Pool utilisation in whole percent."),
			interestRate: gauge("lending_interest_rate", "Supply interest rate over the scale factor."),
			borrowRate:   gauge("lending_borrow_rate", "Borrow rate including the dev fee."),
			users:        gauge("lending_users", "Accounts known to the pool."),
			vaultLocked:  gauge("vault_total_locked", "Tokens locked in active positions."),
			vaultPower:   gauge("vault_total_power", "Aggregate voting power of active positions."),
			vaultActive:  gauge("vault_active_positions", "Active vault positions."),
		}
		prometheus.MustRegister(
			lendingRegistry.operations,
			lendingRegistry.liquidations,
			lendingRegistry.supplied,
			lendingRegistry.borrowed,
			lendingRegistry.rewardsPool,
			lendingRegistry.utilization,
			lendingRegistry.interestRate,
			lendingRegistry.borrowRate,
			lendingRegistry.users,
			lendingRegistry.vaultLocked,
			lendingRegistry.vaultPower,
			lendingRegistry.vaultActive,
		)
	})
	return lendingRegistry
}

// ObserveOperation counts one engine call.
func (m *LendingMetrics) ObserveOperation(module, op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.operations.WithLabelValues(module, op, result).Inc()
}

// ObserveLiquidations adds n liquidations.
func (m *LendingMetrics) ObserveLiquidations(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.liquidations.Add(float64(n))
}

// ObservePool records the latest pool levels.
func (m *LendingMetrics) ObservePool(levels PoolLevels) {
	if m == nil {
		return
	}
	m.supplied.Set(levels.Supplied)
	m.borrowed.Set(levels.Borrowed)
	m.rewardsPool.Set(levels.RewardsPool)
	m.utilization.Set(float64(levels.Utilization))
	m.interestRate.Set(float64(levels.InterestRate))
	m.borrowRate.Set(float64(levels.BorrowRate))
	m.users.Set(float64(levels.Users))
}

// ObserveVault records the latest vault levels.
func (m *LendingMetrics) ObserveVault(levels VaultLevels) {
	if m == nil {
		return
	}
	m.vaultLocked.Set(levels.Locked)
	m.vaultPower.Set(levels.Power)
	m.vaultActive.Set(float64(levels.Active))
}
