package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CampaignsEndedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campaigns_ended_total",
		Help: "Total number of campaigns moved to ended by the lifecycle job",
	})

	FundingOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "funding_outcomes_total",
		Help: "Funding campaigns resolved, by outcome",
	}, []string{"outcome"})

	PaymentSchedulesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_schedules_total",
		Help: "Scheduled payment requests, by result",
	}, []string{"result"})

	PaymentCancellationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_cancellations_total",
		Help: "Gateway schedule cancellations, by result",
	}, []string{"result"})

	OrphanSchedulesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orphan_schedules_total",
		Help: "Gateway schedules without a local payment, by action result",
	}, []string{"result"})

	GatewayLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_request_latency_seconds",
		Help:    "Latency of payment gateway calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	OrdersPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shop_orders_placed_total",
		Help: "Total number of shop orders placed",
	})

	OrdersRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shop_orders_rejected_total",
		Help: "Shop orders rejected, by reason",
	}, []string{"reason"})

	RestockNotificationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "restock_notifications_sent_total",
		Help: "Restock subscriptions marked as sent",
	})

	ChatMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_total",
		Help: "Chat messages persisted and broadcast",
	})

	ChatAlarmsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_alarms_total",
		Help: "Staff alarms dispatched for newly active rooms",
	})

	ChatConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_connections",
		Help: "Open chat connections on this instance",
	})

	JobRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduled_job_runs_total",
		Help: "Scheduled job executions, by job and result",
	}, []string{"job", "result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
