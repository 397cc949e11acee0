package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	CrawlerPagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "crawler_pages_total",
		Help: "Количество выгруженных страниц истории",
	})
	CrawlerMessagesArchived = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "crawler_messages_archived_total",
		Help: "Количество сообщений, записанных в архив",
	})
	CrawlerScanErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crawler_scan_errors_total",
		Help: "Ошибки сканирования каналов",
	}, []string{"kind"})

	DigestBuildSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "digest_build_seconds",
		Help:    "Время построения дайджеста",
		Buckets: prometheus.DefBuckets,
	})
	DigestPostsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "digest_posts_total",
		Help: "Результаты ежедневной публикации дайджеста",
	}, []string{"outcome"})

	RemindersDispatched = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reminders_dispatched_total",
		Help: "Успешно доставленные напоминания",
	})
	ReminderDispatchErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reminder_dispatch_errors_total",
		Help: "Ошибки доставки напоминаний",
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: prometheus.DefBuckets,
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		CrawlerPagesTotal,
		CrawlerMessagesArchived,
		CrawlerScanErrors,
		DigestBuildSeconds,
		DigestPostsTotal,
		RemindersDispatched,
		ReminderDispatchErrors,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}
