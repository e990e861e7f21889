package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	MarketDataLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fincast",
			Subsystem: "marketdata",
			Name:      "latency_seconds",
			Help:      "Latency of market data fetches",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	MarketDataErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fincast",
			Subsystem: "marketdata",
			Name:      "errors_total",
			Help:      "Failed market data attempts by provider",
		},
		[]string{"provider"},
	)

	HandlerLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fincast",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of forecast endpoints",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"endpoint"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(MarketDataLatency, MarketDataErrors, HandlerLatency)
	})
}
