package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "somfy_rts"

// Decode results used as the "result" label.
const (
	ResultOK        = "ok"
	ResultSanity    = "sanity"
	ResultIntegrity = "integrity"
)

var (
	registerOnce sync.Once

	capturesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "capture",
			Name:      "received_total",
			Help:      "Captures received from demodulator sources.",
		},
		[]string{"source"},
	)
	decodesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decode",
			Name:      "results_total",
			Help:      "Decode attempts by result and frame variant.",
		},
		[]string{"result", "variant"},
	)
	controlsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decode",
			Name:      "controls_total",
			Help:      "Decoded frames by control code.",
		},
		[]string{"control"},
	)
	counterRegressions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "remote",
			Name:      "counter_regressions_total",
			Help:      "First frames whose rolling counter did not advance.",
		},
	)
	remotesKnown = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "remote",
			Name:      "known",
			Help:      "Remotes currently held in the registry.",
		},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			capturesTotal,
			decodesTotal,
			controlsTotal,
			counterRegressions,
			remotesKnown,
			httpRequests,
			httpDuration,
		)
	})
}

func RecordCapture(source string) {
	Register()
	if source == "" {
		source = "unknown"
	}
	capturesTotal.WithLabelValues(source).Inc()
}

// RecordDecode counts one decode attempt. variant is empty for rejects that
// never got past classification.
func RecordDecode(result, variant string) {
	Register()
	if variant == "" {
		variant = "none"
	}
	decodesTotal.WithLabelValues(result, variant).Inc()
}

func RecordControl(control string) {
	Register()
	controlsTotal.WithLabelValues(control).Inc()
}

func RecordCounterRegression() {
	Register()
	counterRegressions.Inc()
}

func SetRemotesKnown(n int) {
	Register()
	remotesKnown.Set(float64(n))
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	Register()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}
