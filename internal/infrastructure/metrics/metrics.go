// Package metrics holds the Prometheus collectors exported by the service
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Resolution outcomes recorded by the rate resolver
const (
	OutcomeCacheHit         = "cache_hit"
	OutcomeNegativeCacheHit = "negative_cache_hit"
	OutcomeFetched          = "fetched"
	OutcomeUnpublished      = "unpublished"
	OutcomeTransientFailure = "transient_failure"
	OutcomeStoreError       = "store_error"
)

// RateMetrics contains the collectors for rate resolution, the NBP client and the HTTP boundary
type RateMetrics struct {
	// Resolutions by currency and outcome
	ResolutionsTotal *prometheus.CounterVec

	// Store writes that failed after a resolution
	StoreWriteErrorsTotal *prometheus.CounterVec

	// Remote calls to the publisher
	NBPRequestsTotal   *prometheus.CounterVec
	NBPRequestDuration *prometheus.HistogramVec

	// Month index lookups served from memory
	IndexCacheHitsTotal prometheus.Counter

	// Conversions by direction
	ConversionsTotal *prometheus.CounterVec

	// HTTP boundary
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewRateMetrics registers the collectors on reg.
// Tests pass a fresh prometheus.NewRegistry to avoid duplicate registration.
func NewRateMetrics(reg prometheus.Registerer) *RateMetrics {
	factory := promauto.With(reg)

	return &RateMetrics{
		ResolutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_resolutions_total",
				Help: "Exchange rate resolutions by currency and outcome",
			},
			[]string{"currency", "outcome"},
		),

		StoreWriteErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_store_write_errors_total",
				Help: "Failed writes to the rate store",
			},
			[]string{"currency"},
		),

		NBPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nbp_requests_total",
				Help: "HTTP requests sent to the NBP archive",
			},
			[]string{"operation", "status"},
		),

		NBPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nbp_request_duration_seconds",
				Help:    "Duration of HTTP requests sent to the NBP archive",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 8), // 50ms .. 6.4s
			},
			[]string{"operation"},
		),

		IndexCacheHitsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "nbp_table_index_cache_hits_total",
				Help: "Month table index lookups served from memory",
			},
		),

		ConversionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conversions_total",
				Help: "Currency conversions by input and output currency",
			},
			[]string{"in_currency", "out_currency"},
		),

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// Nop returns metrics registered on a private registry, for callers that don't export them
func Nop() *RateMetrics {
	return NewRateMetrics(prometheus.NewRegistry())
}
