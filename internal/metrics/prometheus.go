package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// UpstreamRequestsTotal counts calls to LinkedIn by operation and outcome ("ok" or "error").
	UpstreamRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pagepost_upstream_requests_total",
		Help: "Total number of requests made to the LinkedIn API.",
	}, []string{"operation", "outcome"})

	// UpstreamRequestDuration tracks LinkedIn latency per operation.
	UpstreamRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pagepost_upstream_request_duration_seconds",
		Help:    "Latency of requests made to the LinkedIn API.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// PostsPublishedTotal counts successful publishes by share media category.
	PostsPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pagepost_posts_published_total",
		Help: "Total number of posts published, by media category.",
	}, []string{"media_category"})

	// PublishFailuresTotal counts publish attempts that failed at upload or publish.
	PublishFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pagepost_publish_failures_total",
		Help: "Total number of failed publish attempts.",
	})

	// OrphanedAssetsTotal counts assets uploaded for a post that was never published.
	OrphanedAssetsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pagepost_orphaned_assets_total",
		Help: "Total number of uploaded assets left unused after a failed publish.",
	})

	// LoginSuccessTotal counts completed OAuth callbacks.
	LoginSuccessTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pagepost_logins_success_total",
		Help: "Total number of completed OAuth callbacks.",
	})

	// LoginFailureTotal counts OAuth callbacks that ended in an error.
	LoginFailureTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pagepost_logins_failure_total",
		Help: "Total number of failed OAuth callbacks.",
	})
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		UpstreamRequestsTotal,
		UpstreamRequestDuration,
		PostsPublishedTotal,
		PublishFailuresTotal,
		OrphanedAssetsTotal,
		LoginSuccessTotal,
		LoginFailureTotal,
	}
}

// Register adds the service metrics to reg. Registering twice on the same
// registry is not an error.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		return errors.New("metrics: nil registerer")
	}

	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return err
		}
	}

	return nil
}

// Outcome maps an error onto the outcome label value.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
