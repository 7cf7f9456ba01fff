package revdel

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/revdel/internal/filestore"
)

// Metrics counts coordinator runs. A nil *Metrics records nothing.
type Metrics struct {
	runs        *prometheus.CounterVec
	items       *prometheus.CounterVec
	storageOps  *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
}

// NewMetrics registers the coordinator collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "revdel_runs_total",
			Help: "Redaction runs by kind and result",
		}, []string{"kind", "result"}),
		items: f.NewCounterVec(prometheus.CounterOpts{
			Name: "revdel_items_total",
			Help: "Requested ids by kind and outcome",
		}, []string{"kind", "outcome"}),
		storageOps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "revdel_storage_ops_total",
			Help: "File migration ops by phase and result",
		}, []string{"phase", "result"}),
		runDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "revdel_run_duration_seconds",
			Help:    "Time spent in one redaction run",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"kind"}),
	}
}

func (m *Metrics) observe(st *Status, elapsed time.Duration) {
	if m == nil || st == nil {
		return
	}
	kind := string(st.Kind)
	result := string(st.Result())
	if st.State == StateFailed {
		result = "failed"
	}
	m.runs.WithLabelValues(kind, result).Inc()
	m.runDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
	for _, o := range st.Outcomes {
		m.items.WithLabelValues(kind, string(o.Kind)).Inc()
	}

	if st.Storage == nil {
		return
	}
	for phase, ps := range map[string]*filestore.Status{
		PhaseStage:   st.Storage.Stage,
		PhaseDelete:  st.Storage.Delete,
		PhaseCleanup: st.Storage.Cleanup,
	} {
		if ps == nil {
			continue
		}
		m.storageOps.WithLabelValues(phase, "ok").Add(float64(ps.Succeeded))
		m.storageOps.WithLabelValues(phase, "failed").Add(float64(len(ps.Failures)))
	}
	for _, phase := range st.Storage.Aborted {
		m.storageOps.WithLabelValues(phase, "aborted").Inc()
	}
}
