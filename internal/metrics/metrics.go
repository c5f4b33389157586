package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeGranted  = "granted"
	OutcomeBusy     = "busy"
	OutcomeDailyCap = "daily_cap"
	OutcomeConflict = "conflict"
	OutcomeLocked   = "locked"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "leasemarket",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	leaseOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "leasemarket",
			Name:      "lease_requests_total",
			Help:      "Lease requests by outcome.",
		},
		[]string{"outcome"},
	)

	leasedHours = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "leasemarket",
			Name:      "leased_hours_total",
			Help:      "Hours granted in accepted contracts.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, leaseOutcomes, leasedHours)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// ObserveLease records one lease decision and the hours it granted.
func ObserveLease(outcome string, hours int) {
	leaseOutcomes.WithLabelValues(outcome).Inc()
	if outcome == OutcomeGranted && hours > 0 {
		leasedHours.Add(float64(hours))
	}
}
