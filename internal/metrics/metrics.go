// Package metrics holds the Prometheus collectors shared by the API server and the worker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduling_bookings_total",
			Help: "Appointment creation attempts by source (manual, ai, recurring) and outcome.",
		},
		[]string{"source", "outcome"},
	)

	AppointmentEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduling_appointment_events_total",
			Help: "Appointment events handed to the webhook dispatcher by action.",
		},
		[]string{"action"},
	)

	WebhookDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduling_webhook_deliveries_total",
			Help: "Webhook delivery results (delivered, failed, dropped).",
		},
		[]string{"result"},
	)

	WebhookQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scheduling_webhook_queue_depth",
			Help: "Events waiting for delivery.",
		},
	)

	CallTransfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduling_call_transfers_total",
			Help: "Call transfer requests by status (transferred, queued).",
		},
		[]string{"status"},
	)

	OccurrencesMaterializedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduling_occurrences_materialized_total",
			Help: "Recurring rule occurrences by result (created, skipped).",
		},
		[]string{"result"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduling_http_requests_total",
			Help: "HTTP requests by method, route pattern and status code.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduling_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route pattern.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)
