package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TasksCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "todoflow_tasks_created_total",
			Help: "Total number of tasks created",
		},
	)

	TasksCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "todoflow_tasks_completed_total",
			Help: "Total number of tasks marked completed",
		},
	)

	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "todoflow_events_published_total",
			Help: "Total number of events published by type",
		},
		[]string{"type"},
	)

	EventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "todoflow_events_dropped_total",
			Help: "Total number of events dropped after delivery failure",
		},
		[]string{"type"},
	)

	HandlerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "todoflow_handler_failures_total",
			Help: "Total number of event handler failures by event type",
		},
		[]string{"type"},
	)

	RecurringSpawned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "todoflow_recurring_tasks_spawned_total",
			Help: "Total number of recurring task occurrences created",
		},
	)

	RemindersDelivered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "todoflow_reminders_delivered_total",
			Help: "Total number of reminder notifications delivered",
		},
	)

	ChatRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "todoflow_chat_requests_total",
			Help: "Total number of chat requests by agent mode",
		},
		[]string{"mode"},
	)
)

func init() {
	prometheus.MustRegister(
		TasksCreated,
		TasksCompleted,
		EventsPublished,
		EventsDropped,
		HandlerFailures,
		RecurringSpawned,
		RemindersDelivered,
		ChatRequests,
	)
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
