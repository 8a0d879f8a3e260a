package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	streamsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meshwire_engine_streams_total",
			Help: "Total number of streams initiated by the engine",
		},
		[]string{"protocol", "result"},
	)

	streamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meshwire_engine_stream_duration_seconds",
			Help:    "Stream duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"protocol"},
	)

	dnsLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meshwire_engine_dns_lookups_total",
			Help: "Total number of DNS lookups performed",
		},
		[]string{"result"},
	)

	dnsCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "meshwire_engine_dns_cache_hits_total",
			Help: "DNS queries answered from the local cache",
		},
	)

	dnsCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "meshwire_engine_dns_cache_misses_total",
			Help: "DNS queries that required a fresh lookup",
		},
	)

	xdsConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "meshwire_engine_xds_connected",
			Help: "Whether the engine currently holds an xDS connection (0 or 1)",
		},
	)

	statsFlushesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "meshwire_engine_stats_flushes_total",
			Help: "Number of stats flush cycles completed",
		},
	)
)

// RecordStream records a completed stream.
func RecordStream(protocol, result string, duration time.Duration) {
	streamsTotal.WithLabelValues(protocol, result).Inc()
	streamDuration.WithLabelValues(protocol).Observe(duration.Seconds())
}

// RecordDNSLookup records one resolver query.
func RecordDNSLookup(err error) {
	if err != nil {
		dnsLookupsTotal.WithLabelValues("error").Inc()
		return
	}
	dnsLookupsTotal.WithLabelValues("success").Inc()
}

// RecordDNSCacheHit records a query answered from cache.
func RecordDNSCacheHit() { dnsCacheHits.Inc() }

// RecordDNSCacheMiss records a query that missed the cache.
func RecordDNSCacheMiss() { dnsCacheMisses.Inc() }

// SetXdsConnected records the xDS connection state.
func SetXdsConnected(connected bool) {
	if connected {
		xdsConnected.Set(1)
		return
	}
	xdsConnected.Set(0)
}

// RecordStatsFlush records a completed flush cycle.
func RecordStatsFlush() { statsFlushesTotal.Inc() }
