package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type LendingMetrics struct {
	operations      *prometheus.CounterVec
	rejections      *prometheus.CounterVec
	utilization     *prometheus.GaugeVec
	liquidityRate   *prometheus.GaugeVec
	variableRate    *prometheus.GaugeVec
	stableRate      *prometheus.GaugeVec
	borrowsOutstand *prometheus.GaugeVec
}

var (
	lendingOnce     sync.Once
	lendingRegistry *LendingMetrics
)

func Lending() *LendingMetrics {
	lendingOnce.Do(func() {
		lendingRegistry = &LendingMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "lending_operations_total",
				Help: "Count of completed pool operations by kind.",
			}, []string{"operation"}),
			rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "lending_rejections_total",
				Help: "Count of rejected pool operations by kind and reason.",
			}, []string{"operation", "reason"}),
			utilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "lending_reserve_utilization",
				Help: "Current borrow utilization ratio per reserve.",
			}, []string{"reserve"}),
			liquidityRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "lending_reserve_liquidity_rate",
				Help: "Current annual deposit rate per reserve.",
			}, []string{"reserve"}),
			variableRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "lending_reserve_variable_borrow_rate",
				Help: "Current annual variable borrow rate per reserve.",
			}, []string{"reserve"}),
			stableRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "lending_reserve_stable_borrow_rate",
				Help: "Current annual stable borrow rate per reserve.",
			}, []string{"reserve"}),
			borrowsOutstand: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "lending_reserve_borrows_outstanding",
				Help: "Total outstanding borrows per reserve and rate mode.",
			}, []string{"reserve", "mode"}),
		}
		prometheus.MustRegister(
			lendingRegistry.operations,
			lendingRegistry.rejections,
			lendingRegistry.utilization,
			lendingRegistry.liquidityRate,
			lendingRegistry.variableRate,
			lendingRegistry.stableRate,
			lendingRegistry.borrowsOutstand,
		)
	})
	return lendingRegistry
}

func (m *LendingMetrics) ObserveOperation(operation string) {
	if m == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	m.operations.WithLabelValues(operation).Inc()
}

func (m *LendingMetrics) ObserveRejection(operation, reason string) {
	if m == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	if reason == "" {
		reason = "unknown"
	}
	m.rejections.WithLabelValues(operation, reason).Inc()
}

func (m *LendingMetrics) SetUtilization(reserve string, ratio float64) {
	if m == nil || reserve == "" {
		return
	}
	m.utilization.WithLabelValues(reserve).Set(ratio)
}

func (m *LendingMetrics) SetRates(reserve string, liquidity, variable, stable float64) {
	if m == nil || reserve == "" {
		return
	}
	m.liquidityRate.WithLabelValues(reserve).Set(liquidity)
	m.variableRate.WithLabelValues(reserve).Set(variable)
	m.stableRate.WithLabelValues(reserve).Set(stable)
}

func (m *LendingMetrics) SetOutstandingBorrows(reserve, mode string, amount float64) {
	if m == nil || reserve == "" {
		return
	}
	if mode == "" {
		mode = "unknown"
	}
	m.borrowsOutstand.WithLabelValues(reserve, mode).Set(amount)
}

func (m *LendingMetrics) InitReserve(reserve string) {
	if m == nil || reserve == "" {
		return
	}
	m.utilization.WithLabelValues(reserve).Set(0)
	m.liquidityRate.WithLabelValues(reserve).Set(0)
	m.variableRate.WithLabelValues(reserve).Set(0)
	m.stableRate.WithLabelValues(reserve).Set(0)
}

func (m *LendingMetrics) InitOperation(operation string) {
	if m == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	m.operations.WithLabelValues(operation).Add(0)
}
