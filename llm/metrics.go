package llm

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records per-invocation counters and latencies.
type Metrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewMetrics registers the invocation collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llmkit",
			Subsystem: "bedrock",
			Name:      "invocations_total",
			Help:      "Bedrock invocations by provider, model, api and outcome.",
		}, []string{"provider", "model", "api", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "llmkit",
			Subsystem: "bedrock",
			Name:      "invocation_duration_seconds",
			Help:      "Bedrock invocation latency.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"provider", "model", "api"}),
	}
	reg.MustRegister(m.requests, m.latency)
	return m
}

// Middleware returns a Middleware that observes every invocation.
func (m *Metrics) Middleware() Middleware {
	return func(ctx context.Context, req *Request, next InvokeFunc) (*Response, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		provider := req.Provider.String()
		m.latency.WithLabelValues(provider, string(req.Model), string(req.API)).Observe(time.Since(start).Seconds())
		m.requests.WithLabelValues(provider, string(req.Model), string(req.API), outcome(err)).Inc()
		return resp, err
	}
}

// outcome is "ok", the error kind name, or "error" for foreign errors.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind.String()
	}
	return "error"
}
