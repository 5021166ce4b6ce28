package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	Evaluations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "samplebound_evaluations_total", Help: "Bound evaluations by operation",
	}, []string{"op"})
	EvaluationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "samplebound_evaluation_seconds",
		Help:    "Time spent per bound evaluation",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	}, []string{"op"})
	Draws = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "samplebound_draws_total", Help: "Recorded draws",
	}, []string{"result"})
	Certifications = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "samplebound_certifications_total", Help: "Campaigns certified",
	})
	CacheRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "samplebound_cache_requests_total", Help: "Test length cache lookups",
	}, []string{"result"})
	RequestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "samplebound_api_requests_in_flight", Help: "API requests being served",
	})
)

func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(Evaluations, EvaluationSeconds, Draws, Certifications, CacheRequests, RequestsInFlight)
}

// Observe counts one evaluation of op and records its duration since start.
func Observe(op string, start time.Time) {
	Evaluations.WithLabelValues(op).Inc()
	EvaluationSeconds.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func DrawResult(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
