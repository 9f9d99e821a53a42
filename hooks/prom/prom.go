// Package prom exports engine events as Prometheus metrics.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/unkn0wn-root/journeycas"
)

// Hooks holds the collectors. Keys are not used as labels; journey IDs are
// unbounded.
type Hooks struct {
	Conflicts    prometheus.Counter
	Exhausted    prometheus.Counter
	Commits      prometheus.Counter
	Attempts     prometheus.Histogram
	StoreErrors  *prometheus.CounterVec
	DecodeErrors prometheus.Counter
}

var _ journeycas.Hooks = (*Hooks)(nil)

// New registers the collectors on reg under namespace. A nil reg uses the
// default registerer.
func New(reg prometheus.Registerer, namespace string) *Hooks {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Hooks{
		Conflicts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cas_conflicts_total",
			Help:      "CAS attempts that lost the race and reloaded",
		}),
		Exhausted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cas_retry_exhausted_total",
			Help:      "Updates that returned a version conflict after the retry budget",
		}),
		Commits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_committed_total",
			Help:      "Updates committed",
		}),
		Attempts: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "update_attempts",
			Help:      "CAS attempts needed per committed update",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 34, 50},
		}),
		StoreErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Store operations that failed",
		}, []string{"op"}),
		DecodeErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Stored documents that failed to decode",
		}),
	}
}

func (h *Hooks) CASConflict(string, int)    { h.Conflicts.Inc() }
func (h *Hooks) RetryExhausted(string, int) { h.Exhausted.Inc() }
func (h *Hooks) DecodeError(string, error)  { h.DecodeErrors.Inc() }

func (h *Hooks) Committed(_ string, _ int64, attempts int) {
	h.Commits.Inc()
	h.Attempts.Observe(float64(attempts))
}

func (h *Hooks) StoreError(op, _ string, _ error) {
	h.StoreErrors.WithLabelValues(op).Inc()
}
