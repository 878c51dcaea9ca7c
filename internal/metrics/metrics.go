// Package metrics exposes the optimizer's progress as prometheus gauges and
// result-cache hits and misses as counters, scraped over /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/atlas-desktop/trading-backend/internal/optimization"
)

// Registry is the custom prometheus registry for the engine's metrics.
var Registry = prometheus.NewRegistry()

var (
	OptimizerVariationsTotal = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "stratcraft",
			Subsystem: "optimizer",
			Name:      "variations_total",
			Help:      "Total variations scheduled for the current optimization run",
		},
		[]string{"template_id"},
	)

	OptimizerVariationsCompleted = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "stratcraft",
			Subsystem: "optimizer",
			Name:      "variations_completed",
			Help:      "Variations evaluated so far in the current optimization run",
		},
		[]string{"template_id"},
	)

	OptimizerVariationsFailed = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "stratcraft",
			Subsystem: "optimizer",
			Name:      "variations_failed",
			Help:      "Variations that failed to evaluate in the current optimization run",
		},
		[]string{"template_id"},
	)

	OptimizerBestObjective = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "stratcraft",
			Subsystem: "optimizer",
			Name:      "best_objective",
			Help:      "Best objective value found so far",
		},
		[]string{"template_id"},
	)

	OptimizerPhase = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "stratcraft",
			Subsystem: "optimizer",
			Name:      "phase",
			Help:      "Current optimizer phase as an enumerated value (0=seeding,1=seed_search,2=refining,3=complete)",
		},
		[]string{"template_id"},
	)

	CacheHitsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stratcraft",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Result cache hits by tier",
		},
		[]string{"tier"}, // "local" or "remote"
	)

	CacheMissesTotal = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: "stratcraft",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Result cache misses",
		},
	)
)

func phaseValue(phase optimization.Phase) float64 {
	switch phase {
	case optimization.PhaseSeeding:
		return 0
	case optimization.PhaseSeedSearch:
		return 1
	case optimization.PhaseRefining:
		return 2
	case optimization.PhaseComplete:
		return 3
	default:
		return -1
	}
}

// ObserveOptimizerStatus pushes one status snapshot into the gauges above.
// Call it, with the run's template id, from the onUpdate callback given to
// optimization.NewStatusPublisher to keep /metrics current across a run.
func ObserveOptimizerStatus(templateID string, status optimization.Status) {
	OptimizerVariationsTotal.WithLabelValues(templateID).Set(float64(status.Total))
	OptimizerVariationsCompleted.WithLabelValues(templateID).Set(float64(status.Completed))
	OptimizerVariationsFailed.WithLabelValues(templateID).Set(float64(status.Failed))
	OptimizerBestObjective.WithLabelValues(templateID).Set(status.BestObjective)
	OptimizerPhase.WithLabelValues(templateID).Set(phaseValue(status.Phase))
}

// RecordCacheHit increments the hit counter for the tier ("local" or
// "remote") that served a cache lookup.
func RecordCacheHit(tier string) {
	CacheHitsTotal.WithLabelValues(tier).Inc()
}

// RecordCacheMiss increments the miss counter.
func RecordCacheMiss() {
	CacheMissesTotal.Inc()
}

// Init registers the standard Go process collectors alongside the
// engine's own metrics.
func Init() {
	Registry.MustRegister(prometheus.NewGoCollector())
	Registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
}
