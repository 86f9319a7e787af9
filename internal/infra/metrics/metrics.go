package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	MessagesAppliedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "book_messages_applied_total", Help: "Messages applied to a replica by symbol and type"}, []string{"symbol", "type"})
	MessagesDroppedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "book_messages_dropped_total", Help: "Messages dropped by symbol and reason"}, []string{"symbol", "reason"})
	SnapshotResetsTotal  = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "book_snapshot_resets_total", Help: "Snapshot-driven replica rebuilds by symbol"}, []string{"symbol"})
	ApplyLatencyMs       = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "apply_latency_ms", Help: "Producer event time to apply time", Buckets: prometheus.ExponentialBuckets(1, 2, 16)})
	RelayLagMs           = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "relay_lag_ms", Help: "Producer event time to gateway relay time", Buckets: prometheus.ExponentialBuckets(1, 2, 12)})
	BufferDepth          = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "ingest_buffer_depth", Help: "Pending messages per instrument"}, []string{"symbol"})
	BufferEvictionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "ingest_buffer_evictions_total", Help: "Messages evicted by overflow compaction"}, []string{"symbol"})
	BookStalenessMs      = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "book_staleness_ms", Help: "Time since the last applied message by symbol"}, []string{"symbol"})
	WSReconnectsTotal    = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "ws_reconnects_total", Help: "Feed reconnects by source and reason"}, []string{"source", "reason"})
	FeedErrorsTotal      = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "feed_errors_total", Help: "Transport errors by source and kind"}, []string{"source", "kind"})
	WSClients            = prometheus.NewGauge(prometheus.GaugeOpts{Name: "ws_clients", Help: "Connected downstream websocket clients"})
	PublishErrorsTotal   = prometheus.NewCounter(prometheus.CounterOpts{Name: "publish_errors_total", Help: "Failed read-model publishes"})
	PublishedTotal       = prometheus.NewCounter(prometheus.CounterOpts{Name: "published_total", Help: "Read models published to the broker"})
)

func Init(logger zerolog.Logger) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	toRegister := []prometheus.Collector{
		MessagesAppliedTotal, MessagesDroppedTotal, SnapshotResetsTotal,
		ApplyLatencyMs, RelayLagMs,
		BufferDepth, BufferEvictionsTotal,
		BookStalenessMs, WSReconnectsTotal, FeedErrorsTotal, WSClients,
		PublishErrorsTotal, PublishedTotal,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range toRegister {
		_ = reg.Register(c)
	}
	logger.Info().Msg("Prometheus metrics initialized")
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
