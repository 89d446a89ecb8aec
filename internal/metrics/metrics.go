package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "autoservice"

// Reservation outcomes.
const (
	OutcomeReserved      = "reserved"
	OutcomeRetried       = "retried"
	OutcomeNoWorker      = "no_worker"
	OutcomeUnknown       = "unknown_service"
	OutcomeInvalid       = "invalid"
	OutcomeStorageFailed = "storage_error"
	OutcomeCancelled     = "cancelled"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	reservations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_total",
			Help:      "Reservation attempts by outcome.",
		},
		[]string{"outcome"},
	)

	slotComputation = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "slot_computation_seconds",
			Help:      "Time spent computing free slots for a day.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	remindersSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_total",
			Help:      "Appointment reminders by delivery status.",
		},
		[]string{"status"},
	)

	journalTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "journal_tasks_total",
			Help:      "Journal synchronization tasks by type and status.",
		},
		[]string{"task", "status"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, reservations, slotComputation, remindersSent, journalTasks)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncReservation(outcome string) {
	reservations.WithLabelValues(outcome).Inc()
}

func ObserveSlotComputation(d time.Duration) {
	slotComputation.Observe(d.Seconds())
}

func IncReminder(status string) {
	remindersSent.WithLabelValues(status).Inc()
}

func IncJournalTask(task, status string) {
	journalTasks.WithLabelValues(task, status).Inc()
}
