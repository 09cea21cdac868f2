package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PurchasesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchases_created_total",
		Help: "Total number of receiving documents created",
	})

	PurchaseCreateFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchase_create_failed_total",
		Help: "Total number of rejected receiving document creations",
	}, []string{"reason"})

	PurchasesConfirmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchases_confirmed_total",
		Help: "Total number of receiving documents confirmed into live stock",
	})

	PurchasesDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchases_deleted_total",
		Help: "Total number of receiving documents deleted",
	})

	NumberingRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reception_numbering_retries_total",
		Help: "Total number of reception number collisions that forced a retry",
	})

	DuplicateSerialRejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duplicate_serial_rejections_total",
		Help: "Total number of batches rejected for colliding serial numbers",
	})

	AdjustmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_adjustments_total",
		Help: "Total number of manual stock adjustments committed",
	}, []string{"direction"})

	AdjustmentsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_adjustments_failed_total",
		Help: "Total number of failed stock adjustments",
	}, []string{"reason"})

	AdjustmentLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stock_adjustment_latency_seconds",
		Help:    "Latency of stock adjustment operations",
		Buckets: prometheus.DefBuckets,
	})

	BulkIntakeUnitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bulk_intake_units_total",
		Help: "Total number of units created through bulk intake",
	}, []string{"source"})

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
