package passes

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Telemetry holds the counters the passes maintain. Each run owns its own
// registry so repeated runs in one process do not collide.
type Telemetry struct {
	Registry *prometheus.Registry

	Inferred         *prometheus.CounterVec
	Unresolved       *prometheus.CounterVec
	Unsupported      *prometheus.CounterVec
	StructuralErrors *prometheus.CounterVec
	EOGEdges         prometheus.Counter
	PrunedEdges      prometheus.Counter
	Violations       prometheus.Counter
	PassDuration     *prometheus.HistogramVec
}

// NewTelemetry creates and registers the counters.
func NewTelemetry() *Telemetry {
	t := &Telemetry{
		Registry: prometheus.NewRegistry(),
		Inferred: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cpg_enrich_inferred_total",
			Help: "Declarations synthesised for resolution gaps.",
		}, []string{"kind"}),
		Unresolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cpg_enrich_unresolved_total",
			Help: "References left without a target.",
		}, []string{"kind"}),
		Unsupported: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cpg_enrich_unsupported_nodes_total",
			Help: "Nodes skipped because no handler knows their kind.",
		}, []string{"kind"}),
		StructuralErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cpg_enrich_structural_errors_total",
			Help: "Structural anomalies logged while enriching.",
		}, []string{"pass"}),
		EOGEdges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cpg_enrich_eog_edges_total",
			Help: "EOG edges created.",
		}),
		PrunedEdges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cpg_enrich_eog_pruned_edges_total",
			Help: "EOG edges removed as unreachable.",
		}),
		Violations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cpg_enrich_eog_violations_total",
			Help: "EOG mirror invariant violations.",
		}),
		PassDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cpg_enrich_pass_duration_seconds",
			Help:    "Wall time per pass.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"pass"}),
	}
	t.Registry.MustRegister(t.Inferred, t.Unresolved, t.Unsupported, t.StructuralErrors,
		t.EOGEdges, t.PrunedEdges, t.Violations, t.PassDuration)
	return t
}

// WriteFile writes every counter in the Prometheus text format.
func (t *Telemetry) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, t.Registry); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}
