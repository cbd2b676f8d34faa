package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the scheduling module. Slot conflicts
// are counted per party so contention on caregiver calendars is visible
// separately from double-booked subjects.
type Metrics struct {
	Booked          prometheus.Counter
	SlotConflicts   *prometheus.CounterVec
	StatusChanges   *prometheus.CounterVec
	CreateDuration  prometheus.Histogram
	DirectoryLookup *prometheus.CounterVec
}

// New creates a Metrics instance with all scheduling module metrics registered.
func New() *Metrics {
	return &Metrics{
		Booked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "amparo_appointments_booked_total",
			Help: "Total number of appointments booked",
		}),
		SlotConflicts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "amparo_appointment_slot_conflicts_total",
			Help: "Bookings rejected because a slot was taken, by party",
		}, []string{"party"}),
		StatusChanges: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "amparo_appointment_status_changes_total",
			Help: "Appointment status transitions, by target status",
		}, []string{"status"}),
		CreateDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "amparo_appointment_create_duration_seconds",
			Help:    "Duration of appointment Create operations (booking critical path)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		DirectoryLookup: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "amparo_scheduling_directory_lookups_total",
			Help: "Participant directory lookups during booking, by outcome (hit, miss, bypass)",
		}, []string{"outcome"}),
	}
}

// IncrementBooked records a successful booking.
func (m *Metrics) IncrementBooked() {
	m.Booked.Inc()
}

// IncrementSlotConflict records a rejected booking for a party
// ("caregiver" or "subject").
func (m *Metrics) IncrementSlotConflict(party string) {
	m.SlotConflicts.WithLabelValues(party).Inc()
}

// IncrementStatusChange records a status transition.
func (m *Metrics) IncrementStatusChange(status string) {
	m.StatusChanges.WithLabelValues(status).Inc()
}

// ObserveCreate records the duration of a Create operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveCreate(start time.Time) {
	m.CreateDuration.Observe(time.Since(start).Seconds())
}

// IncrementDirectoryLookup records a directory cache outcome.
func (m *Metrics) IncrementDirectoryLookup(outcome string) {
	m.DirectoryLookup.WithLabelValues(outcome).Inc()
}
