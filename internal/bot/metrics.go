package bot

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics структура для метрик Prometheus
type Metrics struct {
	MessagesProcessed    prometheus.Counter
	CommandsProcessed    *prometheus.CounterVec
	ErrorsTotal          prometheus.Counter
	UpdateProcessingTime prometheus.Histogram
	BookingsCreated      *prometheus.CounterVec
	ExportsTotal         prometheus.Counter
}

var (
	metricsOnce sync.Once
	botMetrics  *Metrics
)

// NewMetrics создает метрики бота. Повторные вызовы возвращают тот же набор.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		botMetrics = &Metrics{
			MessagesProcessed: promauto.NewCounter(prometheus.CounterOpts{
				Name: "telegram_bot_messages_processed_total",
				Help: "Total number of processed messages",
			}),
			CommandsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "telegram_bot_commands_processed_total",
				Help: "Total number of processed commands",
			}, []string{"command"}),
			ErrorsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "telegram_bot_errors_total",
				Help: "Total number of recovered handler panics",
			}),
			UpdateProcessingTime: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "telegram_bot_update_processing_time_seconds",
				Help:    "Time spent processing updates",
				Buckets: prometheus.DefBuckets,
			}),
			BookingsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "telegram_bot_bookings_created_total",
				Help: "Total number of appointments booked through the bot",
			}, []string{"service"}),
			ExportsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "telegram_bot_exports_total",
				Help: "Total number of Excel exports",
			}),
		}
	})
	return botMetrics
}

func (m *Metrics) command(name string) {
	if m == nil {
		return
	}
	m.CommandsProcessed.WithLabelValues(name).Inc()
}

func (m *Metrics) booked(service string) {
	if m == nil {
		return
	}
	m.BookingsCreated.WithLabelValues(service).Inc()
}
