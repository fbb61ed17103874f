package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	playTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "play_requests_total",
			Help: "Total ticket purchase requests by result",
		},
		[]string{"result"},
	)

	playDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "play_request_duration_ms",
			Help:    "Ticket purchase duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
		[]string{"result"},
	)
)

// RecordPlay records business metrics for a ticket purchase.
// result should be "success" or "fail".
func RecordPlay(result string, started time.Time) {
	res := result
	if res != "success" {
		res = "fail"
	}
	playTotal.WithLabelValues(res).Inc()
	durMs := float64(time.Since(started).Milliseconds())
	playDuration.WithLabelValues(res).Observe(durMs)
}
