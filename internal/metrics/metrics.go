package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SamplesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pathgreen_samples_processed_total",
		Help: "Telemetry samples applied to the fleet state",
	})
	SamplesDiscarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pathgreen_samples_discarded_total",
		Help: "Telemetry samples discarded before reaching the fleet state",
	}, []string{"reason"})
	AlertsRaised = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pathgreen_alerts_total",
		Help: "Alerts raised on violation transitions",
	}, []string{"type", "severity"})
	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pathgreen_tick_duration_seconds",
		Help:    "Time spent applying one producer tick",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pathgreen_stream_sessions",
		Help: "Websocket sessions currently registered with the hub",
	})
	QueueDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pathgreen_stream_queue_drops_total",
		Help: "Messages dropped from full session queues",
	})
	Resyncs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pathgreen_stream_resyncs_total",
		Help: "Forced initial_state resends after queue overflow",
	})
	ChatRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pathgreen_chat_requests_total",
		Help: "Chat queries by outcome",
	}, []string{"outcome"})

	SinkWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pathgreen_sink_writes_total",
		Help: "Items persisted per sink",
	}, []string{"sink", "kind"})
	SinkDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pathgreen_sink_drops_total",
		Help: "Items dropped because a sink queue was full",
	}, []string{"sink"})
	SinkErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pathgreen_sink_errors_total",
		Help: "Failed sink batch writes after retries",
	}, []string{"sink"})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
