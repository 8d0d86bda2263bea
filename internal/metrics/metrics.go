package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kurort",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	reservationTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kurort",
			Name:      "reservation_transitions_total",
			Help:      "Reservation lifecycle transitions by resulting status.",
		},
		[]string{"status"},
	)

	reservationConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "kurort",
			Name:      "reservation_conflicts_total",
			Help:      "Create requests rejected because of an overlapping hold.",
		},
	)

	sweeperCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kurort",
			Name:      "sweeper_cycles_total",
			Help:      "Sweeper cycles by outcome.",
		},
		[]string{"outcome"},
	)

	sweeperExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "kurort",
			Name:      "sweeper_expired_total",
			Help:      "Pending holds transitioned to expired by the sweeper.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			reservationTransitions,
			reservationConflicts,
			sweeperCycles,
			sweeperExpired,
		)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncTransition records a reservation entering the given status.
func IncTransition(status string) {
	reservationTransitions.WithLabelValues(status).Inc()
}

// IncConflict records a rejected overlapping create.
func IncConflict() {
	reservationConflicts.Inc()
}

// IncSweeperCycle records a sweeper cycle outcome ("ok" or "error").
func IncSweeperCycle(outcome string) {
	sweeperCycles.WithLabelValues(outcome).Inc()
}

// AddSweeperExpired records holds expired in one cycle.
func AddSweeperExpired(n int) {
	sweeperExpired.Add(float64(n))
}
