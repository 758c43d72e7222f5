package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DraftsStagedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "drafts_staged_total",
		Help: "Total number of drafts staged",
	}, []string{"kind"})

	DraftsReplacedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "drafts_replaced_total",
		Help: "Total number of staged drafts replaced by a newer checkout",
	}, []string{"kind"})

	DocumentsFinalizedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "documents_finalized_total",
		Help: "Total number of documents finalized",
	}, []string{"kind", "entry"})

	DocumentsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "documents_failed_total",
		Help: "Total number of failed finalizations",
	}, []string{"reason"})

	DocumentsVoidedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "documents_voided_total",
		Help: "Total number of documents voided",
	})

	DocumentsReactivatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "documents_reactivated_total",
		Help: "Total number of voided documents reactivated",
	})

	StockCommitLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stock_commit_latency_seconds",
		Help:    "Latency of stock reserve and commit operations",
		Buckets: prometheus.DefBuckets,
	})

	StockRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_rejections_total",
		Help: "Total number of rejected stock commits",
	}, []string{"reason"})

	NumberingLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "document_numbering_latency_seconds",
		Help:    "Latency of document number allocation",
		Buckets: prometheus.DefBuckets,
	})

	PaymentsRecordedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_recorded_total",
		Help: "Total number of payments recorded",
	}, []string{"method"})

	AuditEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "audit_events_total",
		Help: "Total number of lifecycle events recorded by the audit worker",
	}, []string{"event_type"})

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
