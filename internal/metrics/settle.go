package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	settleTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settle_rounds_total",
			Help: "Total round settlements by result and outcome",
		},
		[]string{"result", "outcome"},
	)

	settleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "settle_round_duration_ms",
			Help:    "Round settlement duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
		[]string{"result", "outcome"},
	)

	tickTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_ticks_total",
			Help: "Total scheduler ticks by action taken",
		},
		[]string{"action"},
	)
)

// RecordSettle 记录一次结算的业务指标
// result: "success" | "fail"
// outcome: "winner" | "no_winner"
func RecordSettle(result, outcome string, started time.Time) {
	res := result
	if res != "success" {
		res = "fail"
	}
	if outcome == "" {
		outcome = "no_winner"
	}
	settleTotal.WithLabelValues(res, outcome).Inc()
	durMs := float64(time.Since(started).Milliseconds())
	settleDuration.WithLabelValues(res, outcome).Observe(durMs)
}

// RecordTick 记录一次调度动作
// action: "noop" | "open" | "finalize" | "error"
func RecordTick(action string) {
	tickTotal.WithLabelValues(action).Inc()
}
