// Package metrics constructs the metrics the application will track.
package metrics

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// This holds the single instance of the metrics value needed for
// collecting metrics.
var m *metrics

var initOnce sync.Once

// metrics represents the set of metrics we gather. These fields are
// safe to be accessed concurrently.
type metrics struct {
	requests   *prometheus.CounterVec
	errors     prometheus.Counter
	panics     prometheus.Counter
	goroutines prometheus.Gauge
}

func initMetrics() {
	initOnce.Do(func() {
		m = &metrics{
			requests: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "utxochain",
					Subsystem: "web",
					Name:      "requests",
					Help:      "Number of requests handled by method",
				},
				[]string{"method"},
			),
			errors: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "utxochain",
					Subsystem: "web",
					Name:      "errors",
					Help:      "Number of requests that returned an error",
				},
			),
			panics: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "utxochain",
					Subsystem: "web",
					Name:      "panics",
					Help:      "Number of handler panics recovered",
				},
			),
			goroutines: promauto.NewGauge(
				prometheus.GaugeOpts{
					Namespace: "utxochain",
					Subsystem: "web",
					Name:      "goroutines",
					Help:      "Number of goroutines sampled on every 100th request",
				},
			),
		}
	})
}

// =============================================================================

// Metrics will be supported through the context.

// ctxKey represents the type of value for the context key.
type ctxKey int

// key is how metric values are stored/retrieved.
const key ctxKey = 1

// =============================================================================

// Set sets the metrics data into the context.
func Set(ctx context.Context) context.Context {
	initMetrics()
	return context.WithValue(ctx, key, m)
}

// AddGoroutines records the number of goroutines.
func AddGoroutines(ctx context.Context, n int) {
	if v, ok := ctx.Value(key).(*metrics); ok {
		v.goroutines.Set(float64(n))
	}
}

// AddRequests increments the request metric for the method.
func AddRequests(ctx context.Context, method string) {
	if v, ok := ctx.Value(key).(*metrics); ok {
		v.requests.WithLabelValues(method).Inc()
	}
}

// AddErrors increments the errors metric by 1.
func AddErrors(ctx context.Context) {
	if v, ok := ctx.Value(key).(*metrics); ok {
		v.errors.Inc()
	}
}

// AddPanics increments the panics metric by 1.
func AddPanics(ctx context.Context) {
	if v, ok := ctx.Value(key).(*metrics); ok {
		v.panics.Inc()
	}
}
