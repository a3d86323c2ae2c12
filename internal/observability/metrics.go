package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	estimateCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "carbon_service",
		Subsystem: "emissions",
		Name:      "estimates_total",
		Help:      "Emission estimates computed, labelled by source (local or provider).",
	}, []string{"source"})
	providerFailureCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "carbon_service",
		Subsystem: "emissions",
		Name:      "provider_failures_total",
		Help:      "Rate-provider calls that fell back to the local factor table, labelled by failure reason.",
	}, []string{"reason"})
	claimedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "carbon_service",
		Subsystem: "ownership",
		Name:      "activities_claimed_total",
		Help:      "Anonymous activities transferred to an account via claim.",
	})
)

func init() {
	prometheus.MustRegister(estimateCounter, providerFailureCounter, claimedCounter)
}

// RecordEstimate counts one computed estimate by its source path.
func RecordEstimate(source string) {
	estimateCounter.WithLabelValues(source).Inc()
}

// RecordProviderFailure counts one absorbed provider failure.
func RecordProviderFailure(reason string) {
	providerFailureCounter.WithLabelValues(reason).Inc()
}

// RecordClaimed adds the number of activities moved by one claim.
func RecordClaimed(count int64) {
	if count <= 0 {
		return
	}
	claimedCounter.Add(float64(count))
}
