package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the participant module. Tracks
// registration outcomes, partial aggregate writes (the operator-repair
// signal), and critical path durations.
type Metrics struct {
	Registered       *prometheus.CounterVec
	Removed          prometheus.Counter
	PartialWrites    *prometheus.CounterVec
	RegisterDuration prometheus.Histogram
	GetDuration      prometheus.Histogram
}

// New creates a Metrics instance with all participant module metrics registered.
func New() *Metrics {
	return &Metrics{
		Registered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "amparo_participants_registered_total",
			Help: "Total number of participants registered, by role",
		}, []string{"role"}),
		Removed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "amparo_participants_removed_total",
			Help: "Total number of participants removed",
		}),
		PartialWrites: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "amparo_participant_partial_writes_total",
			Help: "Aggregate writes left inconsistent after a failed compensation, by operation",
		}, []string{"operation"}),
		RegisterDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "amparo_participant_register_duration_seconds",
			Help:    "Duration of Register operations (identity + profile writes)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		GetDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "amparo_participant_get_duration_seconds",
			Help:    "Duration of Get operations (merged identity + profile read)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementRegistered records a successful registration for a role.
func (m *Metrics) IncrementRegistered(role string) {
	m.Registered.WithLabelValues(role).Inc()
}

// IncrementRemoved records a successful participant removal.
func (m *Metrics) IncrementRemoved() {
	m.Removed.Inc()
}

// IncrementPartialWrite records an aggregate left inconsistent by an operation.
func (m *Metrics) IncrementPartialWrite(operation string) {
	m.PartialWrites.WithLabelValues(operation).Inc()
}

// ObserveRegister records the duration of a Register operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveRegister(start time.Time) {
	m.RegisterDuration.Observe(time.Since(start).Seconds())
}

// ObserveGet records the duration of a Get operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveGet(start time.Time) {
	m.GetDuration.Observe(time.Since(start).Seconds())
}
