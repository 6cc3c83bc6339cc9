// Package telemetry provides Prometheus metrics, OpenTelemetry tracing setup,
// and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	CyclesTotal      prometheus.Counter
	CycleErrorsTotal prometheus.Counter
	MessagesBuffered prometheus.Counter
	AIResponsesTotal prometheus.Counter
	SelectionsTotal  *prometheus.CounterVec

	// Histograms (seconds)
	CallbackDuration prometheus.Observer

	// Gauges
	BufferDepthGauge prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		CyclesTotal = promauto.NewCounter(prometheus.CounterOpts{Name: "dachistream_cycles_total", Help: "Number of processing cycles run"})
		CycleErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{Name: "dachistream_cycle_errors_total", Help: "Number of cycles that failed in selection, context assembly, or callback"})
		MessagesBuffered = promauto.NewCounter(prometheus.CounterOpts{Name: "dachistream_messages_buffered_total", Help: "Number of chat messages accepted into the cycle buffer"})
		AIResponsesTotal = promauto.NewCounter(prometheus.CounterOpts{Name: "dachistream_ai_responses_total", Help: "Number of AI replies generated"})
		SelectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{Name: "dachistream_selections_total", Help: "Number of messages selected, by strategy"}, []string{"strategy"})
		CallbackDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "dachistream_callback_duration_seconds", Help: "Duration of the onMessageSelected callback", Buckets: prometheus.DefBuckets})
		BufferDepthGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "dachistream_buffer_depth", Help: "Current number of messages awaiting selection"})
	})
}

// IncCycle counts one processing cycle.
func IncCycle() {
	if CyclesTotal != nil {
		CyclesTotal.Inc()
	}
}

// IncCycleError counts a failed cycle.
func IncCycleError() {
	if CycleErrorsTotal != nil {
		CycleErrorsTotal.Inc()
	}
}

// IncMessageBuffered counts an accepted chat message.
func IncMessageBuffered() {
	if MessagesBuffered != nil {
		MessagesBuffered.Inc()
	}
}

// IncAIResponse counts a generated reply.
func IncAIResponse() {
	if AIResponsesTotal != nil {
		AIResponsesTotal.Inc()
	}
}

// IncSelection counts a selected message for the given strategy.
func IncSelection(strategy string) {
	if SelectionsTotal != nil {
		SelectionsTotal.WithLabelValues(strategy).Inc()
	}
}

// ObserveCallbackDuration records how long the selection callback took.
func ObserveCallbackDuration(d time.Duration) {
	if CallbackDuration != nil {
		CallbackDuration.Observe(d.Seconds())
	}
}

// SetBufferDepth records the current buffer size.
func SetBufferDepth(n int) {
	if BufferDepthGauge != nil {
		BufferDepthGauge.Set(float64(n))
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------

type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
