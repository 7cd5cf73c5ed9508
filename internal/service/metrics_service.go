package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the
// registration API.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration        *prometheus.HistogramVec
	requestTotal           *prometheus.CounterVec
	recommendationDuration prometheus.Histogram
	recommendationSkipped  prometheus.Counter
	draftRejections        *prometheus.CounterVec
	catalogCacheHits       prometheus.Counter
	catalogCacheMisses     prometheus.Counter
}

// NewMetricsService registers the service's Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	recommendationDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "recommendation_build_duration_seconds",
		Help:    "Time spent building schedule recommendations",
		Buckets: prometheus.DefBuckets,
	})

	recommendationSkipped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recommendation_courses_skipped_total",
		Help: "Courses dropped from recommendations for slot conflicts",
	})

	draftRejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "draft_additions_rejected_total",
		Help: "Draft group additions rejected by validation",
	}, []string{"reason"})

	catalogCacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "catalog_cache_hits_total",
		Help: "Catalog snapshot cache hits",
	})

	catalogCacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "catalog_cache_misses_total",
		Help: "Catalog snapshot cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, recommendationDuration,
		recommendationSkipped, draftRejections, catalogCacheHits, catalogCacheMisses, goroutines)

	return &MetricsService{
		registry:               registry,
		handler:                promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:        requestDuration,
		requestTotal:           requestTotal,
		recommendationDuration: recommendationDuration,
		recommendationSkipped:  recommendationSkipped,
		draftRejections:        draftRejections,
		catalogCacheHits:       catalogCacheHits,
		catalogCacheMisses:     catalogCacheMisses,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveHTTPRequest records one served request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	labels := prometheus.Labels{"method": method, "path": path, "status": strconv.Itoa(status)}
	s.requestDuration.With(labels).Observe(duration.Seconds())
	s.requestTotal.With(labels).Inc()
}

// ObserveRecommendation records one recommendation run.
func (s *MetricsService) ObserveRecommendation(duration time.Duration, skipped int) {
	s.recommendationDuration.Observe(duration.Seconds())
	s.recommendationSkipped.Add(float64(skipped))
}

// CountRejection tallies a rejected draft addition by validation reason.
func (s *MetricsService) CountRejection(reason string) {
	s.draftRejections.WithLabelValues(reason).Inc()
}

// CountCatalogCache tallies a catalog snapshot lookup.
func (s *MetricsService) CountCatalogCache(hit bool) {
	if hit {
		s.catalogCacheHits.Inc()
		return
	}
	s.catalogCacheMisses.Inc()
}
