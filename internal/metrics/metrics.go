package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/cartridge/replaybuffer/internal/storage"
)

// Sampling modes used as the "mode" label.
const (
	ModeUniform     = "uniform"
	ModePrioritized = "prioritized"
)

// Collector records replay buffer metrics on its own registry.
//
// Metrics:
//   - replay_transitions_added_total
//   - replay_samples_total{mode}
//   - replay_resamples_total
//   - replay_priority_updates_total
//   - replay_sample_duration_seconds{mode}
//   - replay_rpc_errors_total{method,code}
//   - replay_buffer_size, replay_buffer_capacity
//   - replay_max_priority, replay_total_priority
type Collector struct {
	registry *prometheus.Registry
	logger   zerolog.Logger

	transitionsAdded prometheus.Counter
	samples          *prometheus.CounterVec
	resamples        prometheus.Counter
	priorityUpdates  prometheus.Counter
	sampleDuration   *prometheus.HistogramVec
	rpcErrors        *prometheus.CounterVec

	size          prometheus.Gauge
	capacity      prometheus.Gauge
	maxPriority   prometheus.Gauge
	totalPriority prometheus.Gauge
}

// NewCollector registers all replay metrics on a fresh registry.
func NewCollector(logger zerolog.Logger) *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		logger:   logger.With().Str("component", "metrics").Logger(),

		transitionsAdded: factory.NewCounter(prometheus.CounterOpts{
			Name: "replay_transitions_added_total",
			Help: "Total number of transitions written to the buffer",
		}),
		samples: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "replay_samples_total",
			Help: "Total number of n-step windows sampled",
		}, []string{"mode"}),
		resamples: factory.NewCounter(prometheus.CounterOpts{
			Name: "replay_resamples_total",
			Help: "Band draws rejected by the n-step reachability guard",
		}),
		priorityUpdates: factory.NewCounter(prometheus.CounterOpts{
			Name: "replay_priority_updates_total",
			Help: "Total number of per-index priority updates",
		}),
		sampleDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "replay_sample_duration_seconds",
			Help:    "Time spent drawing a batch",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"mode"}),
		rpcErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "replay_rpc_errors_total",
			Help: "Failed RPCs by method and status code",
		}, []string{"method", "code"}),

		size: factory.NewGauge(prometheus.GaugeOpts{
			Name: "replay_buffer_size",
			Help: "Number of populated slots",
		}),
		capacity: factory.NewGauge(prometheus.GaugeOpts{
			Name: "replay_buffer_capacity",
			Help: "Fixed number of slots",
		}),
		maxPriority: factory.NewGauge(prometheus.GaugeOpts{
			Name: "replay_max_priority",
			Help: "Highest raw priority assigned so far",
		}),
		totalPriority: factory.NewGauge(prometheus.GaugeOpts{
			Name: "replay_total_priority",
			Help: "Sum of priority^alpha over all slots",
		}),
	}
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) TransitionsAdded(n int) {
	c.transitionsAdded.Add(float64(n))
}

// Track a sampled batch
func (c *Collector) Sampled(mode string, batchSize, resamples int, duration time.Duration) {
	c.samples.WithLabelValues(mode).Add(float64(batchSize))
	c.resamples.Add(float64(resamples))
	c.sampleDuration.WithLabelValues(mode).Observe(duration.Seconds())

	c.logger.Debug().
		Str("metric", "sample").
		Str("mode", mode).
		Int("batch_size", batchSize).
		Int("resamples", resamples).
		Dur("duration", duration).
		Msg("Sample metric")
}

func (c *Collector) PrioritiesUpdated(n int) {
	c.priorityUpdates.Add(float64(n))
}

// Track a failed RPC
func (c *Collector) RPCError(method, code string) {
	c.rpcErrors.WithLabelValues(method, code).Inc()

	c.logger.Warn().
		Str("metric", "rpc_error").
		Str("method", method).
		Str("code", code).
		Msg("RPC error metric")
}

// ObserveBuffer refreshes the buffer gauges from a stats snapshot.
func (c *Collector) ObserveBuffer(stats storage.Stats) {
	c.size.Set(float64(stats.Size))
	c.capacity.Set(float64(stats.Capacity))
	c.maxPriority.Set(stats.MaxPriority)
	c.totalPriority.Set(stats.TotalPriority)
}
