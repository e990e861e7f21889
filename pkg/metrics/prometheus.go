package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	forecasts       *prometheus.CounterVec
	forecastSeconds *prometheus.HistogramVec
	errorsTotal     *prometheus.CounterVec
	predictedReturn *prometheus.GaugeVec
	latency         *prometheus.HistogramVec
}

// New creates a recorder registered on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		forecasts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincast_forecasts_total",
				Help: "Total number of completed ticker forecasts",
			},
			[]string{"ticker"},
		),
		forecastSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fincast_forecast_duration_seconds",
				Help:    "Time spent training and forecasting one ticker",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"ticker"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincast_errors_total",
				Help: "Total number of errors by pipeline stage",
			},
			[]string{"stage"},
		),
		predictedReturn: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fincast_predicted_return_percent",
				Help: "Last predicted return for a ticker",
			},
			[]string{"ticker"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fincast_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordForecast records a finished forecast and its duration.
func (r *Recorder) RecordForecast(ticker string, seconds float64) {
	r.forecasts.WithLabelValues(ticker).Inc()
	r.forecastSeconds.WithLabelValues(ticker).Observe(seconds)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(stage string) {
	r.errorsTotal.WithLabelValues(stage).Inc()
}

// RecordPredictedReturn records the latest predicted return for a ticker.
func (r *Recorder) RecordPredictedReturn(ticker string, pct float64) {
	r.predictedReturn.WithLabelValues(ticker).Set(pct)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordForecast(string, float64)        {}
func (Nop) RecordError(string)                    {}
func (Nop) RecordPredictedReturn(string, float64) {}
func (Nop) RecordLatency(string, float64)         {}
