package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	// IncHTTP should not panic
	assert.NotPanics(t, func() {
		IncHTTP("test_endpoint")
	})
}

func TestObserveLease(t *testing.T) {
	beforeGranted := testutil.ToFloat64(leaseOutcomes.WithLabelValues(OutcomeGranted))
	beforeHours := testutil.ToFloat64(leasedHours)

	ObserveLease(OutcomeGranted, 3)
	ObserveLease(OutcomeBusy, 5)

	assert.InDelta(t, beforeGranted+1, testutil.ToFloat64(leaseOutcomes.WithLabelValues(OutcomeGranted)), 1e-9)
	assert.InDelta(t, beforeHours+3, testutil.ToFloat64(leasedHours), 1e-9)
}
