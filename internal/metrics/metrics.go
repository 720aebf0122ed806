// Package metrics exports chat, tool and cache counters in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shopassist"

// Tool call outcomes.
const (
	ToolOK       = "ok"
	ToolEmpty    = "empty"
	ToolFailed   = "failed"
	ToolRejected = "rejected"
)

// Recorder owns a private registry. A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	chatRequests   *prometheus.CounterVec
	chatLatency    *prometheus.HistogramVec
	toolCalls      *prometheus.CounterVec
	toolLatency    prometheus.Histogram
	parseFallbacks *prometheus.CounterVec
	roundLimits    prometheus.Counter
	shapeOverrides *prometheus.CounterVec
	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
	llmTokens      *prometheus.CounterVec
}

var latencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60}

func NewRecorder() *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry()}

	r.chatRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "requests_total",
			Help:      "Total number of chat requests by response kind and status",
		},
		[]string{"kind", "status"},
	)
	r.chatLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "latency_seconds",
			Help:      "Chat request latency in seconds",
			Buckets:   latencyBuckets,
		},
		[]string{"kind"},
	)
	r.toolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "tool_calls_total",
			Help:      "Total number of tool calls by tool and outcome",
		},
		[]string{"tool_name", "status"},
	)
	r.toolLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "tool_latency_seconds",
			Help:      "Search tool latency in seconds",
			Buckets:   latencyBuckets,
		},
	)
	r.parseFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "parse_fallbacks_total",
			Help:      "Model replies that could not be decoded into a structured response",
		},
		[]string{"reason"},
	)
	r.roundLimits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "round_limit_total",
			Help:      "Conversations that hit the tool round limit",
		},
	)
	r.shapeOverrides = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "shape_overrides_total",
			Help:      "Final replies whose shape disagreed with what the search tool returned",
		},
		[]string{"reason"},
	)
	r.cacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Cache hits",
		},
		[]string{"cache"},
	)
	r.cacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Cache misses",
		},
		[]string{"cache"},
	)
	r.llmTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Tokens reported by the chat model",
		},
		[]string{"type"},
	)

	r.registry.MustRegister(
		r.chatRequests,
		r.chatLatency,
		r.toolCalls,
		r.toolLatency,
		r.parseFallbacks,
		r.roundLimits,
		r.shapeOverrides,
		r.cacheHits,
		r.cacheMisses,
		r.llmTokens,
	)
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) ObserveChat(kind, status string, d time.Duration) {
	if r == nil {
		return
	}
	r.chatRequests.WithLabelValues(kind, status).Inc()
	r.chatLatency.WithLabelValues(kind).Observe(d.Seconds())
}

func (r *Recorder) ToolCall(tool, status string) {
	if r == nil {
		return
	}
	r.toolCalls.WithLabelValues(tool, status).Inc()
}

func (r *Recorder) ObserveToolLatency(d time.Duration) {
	if r == nil {
		return
	}
	r.toolLatency.Observe(d.Seconds())
}

func (r *Recorder) ParseFallback(reason string) {
	if r == nil {
		return
	}
	r.parseFallbacks.WithLabelValues(reason).Inc()
}

func (r *Recorder) RoundLimit() {
	if r == nil {
		return
	}
	r.roundLimits.Inc()
}

// ShapeOverride counts a final reply the agent had to correct or flag.
func (r *Recorder) ShapeOverride(reason string) {
	if r == nil {
		return
	}
	r.shapeOverrides.WithLabelValues(reason).Inc()
}

func (r *Recorder) CacheHit(cache string) {
	if r == nil {
		return
	}
	r.cacheHits.WithLabelValues(cache).Inc()
}

func (r *Recorder) CacheMiss(cache string) {
	if r == nil {
		return
	}
	r.cacheMisses.WithLabelValues(cache).Inc()
}

func (r *Recorder) Tokens(prompt, completion int) {
	if r == nil {
		return
	}
	r.llmTokens.WithLabelValues("prompt").Add(float64(prompt))
	r.llmTokens.WithLabelValues("completion").Add(float64(completion))
}
