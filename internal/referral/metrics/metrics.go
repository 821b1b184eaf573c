package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the referral feature counters.
type Metrics struct {
	ReferralsCreated  prometheus.Counter
	ReferralsResolved prometheus.Counter
	CreatesThrottled  prometheus.Counter
	EventsTracked     *prometheus.CounterVec
}

// New creates and registers the referral metrics.
func New() *Metrics {
	return &Metrics{
		ReferralsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "capref_referrals_created_total",
			Help: "Total number of referrals created",
		}),
		ReferralsResolved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "capref_referrals_resolved_total",
			Help: "Total number of successful link token resolutions",
		}),
		CreatesThrottled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "capref_referral_creates_throttled_total",
			Help: "Total number of creates rejected by the anti-abuse window",
		}),
		EventsTracked: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "capref_referral_events_tracked_total",
			Help: "Total number of lifecycle events tracked, by event type",
		}, []string{"event"}),
	}
}
