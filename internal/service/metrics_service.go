package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Feed refresh outcomes.
const (
	RefreshOutcomeApplied = "applied"
	RefreshOutcomeStale   = "stale"
	RefreshOutcomeFailed  = "failed"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	dbQueryDuration *prometheus.HistogramVec
	realtimeEvents  *prometheus.CounterVec
	feedRefreshes   *prometheus.CounterVec
	feedDuration    prometheus.Observer
	feedSize        prometheus.Gauge
	streamSessions  prometheus.Gauge

	cacheHitCount  uint64
	cacheMissCount uint64
	requestCount   uint64
	eventCount     uint64
	refreshCount   uint64
	sessionCount   int64
}

// MetricsSnapshot is a point-in-time summary of the counters.
type MetricsSnapshot struct {
	RequestsTotal  uint64    `json:"requests_total"`
	CacheHits      uint64    `json:"cache_hits"`
	CacheMisses    uint64    `json:"cache_misses"`
	CacheHitRatio  float64   `json:"cache_hit_ratio"`
	RealtimeEvents uint64    `json:"realtime_events"`
	FeedRefreshes  uint64    `json:"feed_refreshes"`
	StreamSessions int64     `json:"stream_sessions"`
	Goroutines     int       `json:"goroutines"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// NewMetricsService registers core Prometheus collectors.
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

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	realtimeEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_events_total",
		Help: "Change feed events received",
	}, []string{"table", "type"})

	feedRefreshes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "announcement_feed_refreshes_total",
		Help: "Announcement refetches by outcome",
	}, []string{"outcome"})

	feedDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "announcement_feed_refresh_seconds",
		Help:    "Duration of a full announcement refetch",
		Buckets: prometheus.DefBuckets,
	})

	feedSize := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "announcement_feed_size",
		Help: "Announcements held in the current snapshot",
	})

	streamSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "announcement_stream_sessions",
		Help: "Open announcement websocket sessions",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		dbQueryDuration, realtimeEvents, feedRefreshes, feedDuration, feedSize, streamSessions, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		dbQueryDuration: dbQueryDuration,
		realtimeEvents:  realtimeEvents,
		feedRefreshes:   feedRefreshes,
		feedDuration:    feedDuration,
		feedSize:        feedSize,
		streamSessions:  streamSessions,
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// RecordRealtimeEvent counts one change feed event.
func (m *MetricsService) RecordRealtimeEvent(table, changeType string) {
	if m == nil {
		return
	}
	m.realtimeEvents.WithLabelValues(table, changeType).Inc()
	atomic.AddUint64(&m.eventCount, 1)
}

// RecordFeedRefresh counts a refetch outcome and, when applied, the new snapshot size.
func (m *MetricsService) RecordFeedRefresh(outcome string, duration time.Duration, size int) {
	if m == nil {
		return
	}
	m.feedRefreshes.WithLabelValues(outcome).Inc()
	m.feedDuration.Observe(duration.Seconds())
	if outcome == RefreshOutcomeApplied {
		m.feedSize.Set(float64(size))
	}
	atomic.AddUint64(&m.refreshCount, 1)
}

// StreamOpened and StreamClosed track websocket sessions.
func (m *MetricsService) StreamOpened() {
	if m == nil {
		return
	}
	m.streamSessions.Inc()
	atomic.AddInt64(&m.sessionCount, 1)
}

func (m *MetricsService) StreamClosed() {
	if m == nil {
		return
	}
	m.streamSessions.Dec()
	atomic.AddInt64(&m.sessionCount, -1)
}

// Snapshot returns aggregated counters.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	var ratio float64
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}
	return MetricsSnapshot{
		RequestsTotal:  atomic.LoadUint64(&m.requestCount),
		CacheHits:      hits,
		CacheMisses:    misses,
		CacheHitRatio:  ratio,
		RealtimeEvents: atomic.LoadUint64(&m.eventCount),
		FeedRefreshes:  atomic.LoadUint64(&m.refreshCount),
		StreamSessions: atomic.LoadInt64(&m.sessionCount),
		Goroutines:     runtime.NumGoroutine(),
		GeneratedAt:    time.Now().UTC(),
	}
}
