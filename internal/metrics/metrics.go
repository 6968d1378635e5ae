package metrics

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics for monitoring kiosk health and throughput
var (
	OrdersCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kiosk_orders_created_total",
			Help: "Total number of orders created",
		},
	)

	OrdersCompletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kiosk_orders_completed_total",
			Help: "Total number of orders that completed all items",
		},
	)

	OrdersFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kiosk_orders_failed_total",
			Help: "Total number of orders that failed during processing",
		},
	)

	DispenseCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kiosk_dispense_cycles_total",
			Help: "Total number of open/flow/close valve cycles",
		},
	)

	LitersDispensedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kiosk_liters_dispensed_total",
			Help: "Total volume dispensed in liters",
		},
	)

	HardwareFaultsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kiosk_hardware_faults_total",
			Help: "Total number of valve or flow sensor faults",
		},
	)

	ValvesOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kiosk_valves_open",
			Help: "Number of valves currently open",
		},
	)

	DispenseDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kiosk_dispense_duration_seconds",
			Help:    "Duration of a full item dispense including cup swaps",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)
)

func Register() {
	prometheus.MustRegister(
		OrdersCreatedTotal,
		OrdersCompletedTotal,
		OrdersFailedTotal,
		DispenseCyclesTotal,
		LitersDispensedTotal,
		HardwareFaultsTotal,
		ValvesOpen,
		DispenseDurationSeconds,
	)
}
