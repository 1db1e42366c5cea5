package metricsx

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total events published by topic and event type.",
		},
		[]string{"topic", "event_type"},
	)
	eventPublishFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_publish_failures_total",
			Help: "Total event publish failures by topic.",
		},
		[]string{"topic"},
	)
	eventsConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_consumed_total",
			Help: "Total events consumed by topic and outcome.",
		},
		[]string{"topic", "outcome"},
	)
	eventProcessingLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "event_processing_duration_seconds",
			Help:    "Event handler latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"topic"},
	)
	kafkaConsumerLag = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kafka_consumer_lag",
			Help: "Kafka consumer lag by topic.",
		},
		[]string{"topic", "group"},
	)
	archiveWriteFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archive_write_failures_total",
			Help: "Total S3 archive write failures by bucket.",
		},
		[]string{"bucket"},
	)
	influxWriteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "influx_write_failures_total",
			Help: "Total InfluxDB write failures.",
		},
	)
	wsConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_connections",
			Help: "Currently connected WebSocket clients.",
		},
	)
	wsSubscriptions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_subscriptions",
			Help: "Currently active seller subscriptions.",
		},
	)
	wsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ws_dropped_messages_total",
			Help: "Total WebSocket messages dropped on slow clients.",
		},
	)
	asynqQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "asynq_queue_depth",
			Help: "Asynq queue depth by queue.",
		},
		[]string{"queue"},
	)
)

func Register() {
	prometheus.MustRegister(httpRequests, httpLatency, eventsPublished, eventPublishFailures, eventsConsumed, eventProcessingLatency, kafkaConsumerLag, archiveWriteFailures, influxWriteFailures, wsConnections, wsSubscriptions, wsDropped, asynqQueueDepth)
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(lrw, r)
		status := strconv.Itoa(lrw.statusCode)
		httpRequests.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		httpLatency.WithLabelValues(r.Method, r.URL.Path, status).Observe(time.Since(start).Seconds())
	})
}

func IncPublished(topic string, eventType string) {
	eventsPublished.WithLabelValues(topic, eventType).Inc()
}

func IncPublishFailure(topic string) {
	eventPublishFailures.WithLabelValues(topic).Inc()
}

func IncConsumed(topic string, outcome string) {
	eventsConsumed.WithLabelValues(topic, outcome).Inc()
}

func ObserveProcessingLatency(topic string, d time.Duration) {
	eventProcessingLatency.WithLabelValues(topic).Observe(d.Seconds())
}

func SetKafkaLag(topic string, group string, lag int64) {
	kafkaConsumerLag.WithLabelValues(topic, group).Set(float64(lag))
}

func IncArchiveWriteFailure(bucket string) {
	archiveWriteFailures.WithLabelValues(bucket).Inc()
}

func IncInfluxWriteFailure() {
	influxWriteFailures.Inc()
}

func AddWSConnections(delta int) {
	wsConnections.Add(float64(delta))
}

func SetWSSubscriptions(n int) {
	wsSubscriptions.Set(float64(n))
}

func IncWSDropped() {
	wsDropped.Inc()
}

func SetAsynqQueueDepth(queue string, depth int) {
	asynqQueueDepth.WithLabelValues(queue).Set(float64(depth))
}

type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
