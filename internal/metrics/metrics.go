// Package metrics exports ingestion and store counters to Prometheus.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricPrefix = "hubtrail_"

// Ingest outcomes used as the "result" label.
const (
	ResultAccepted = "accepted"
	ResultRejected = "rejected"
	ResultIgnored  = "ignored"
	ResultFailed   = "failed"
)

var (
	registerOnce sync.Once

	ingestMessages *prometheus.CounterVec
	ingestRejects  *prometheus.CounterVec
	appendLatency  prometheus.Histogram
	lastSeq        prometheus.Gauge
	connState      *prometheus.GaugeVec
	connAttempts   prometheus.Counter
	backupsTotal   *prometheus.CounterVec
)

// Init registers the collectors with the default registry. It is safe to
// call more than once.
func Init() {
	registerOnce.Do(func() {
		ingestMessages = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_messages_total",
				Help: "Hub messages processed by result",
			},
			[]string{"source", "result"},
		)
		ingestRejects = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_rejects_total",
				Help: "Hub messages dropped by decode failure kind",
			},
			[]string{"reason"},
		)
		appendLatency = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "store_append_latency_seconds",
				Help:    "Synced store append latency in seconds",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
			},
		)
		lastSeq = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "store_last_seq",
				Help: "Last sequence id assigned by the store",
			},
		)
		connState = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "eventsocket_state",
				Help: "Current hub connection state (1 for the active state)",
			},
			[]string{"state"},
		)
		connAttempts = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "eventsocket_dials_total",
				Help: "Hub connection attempts",
			},
		)
		backupsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "backups_total",
				Help: "Store checkpoints by result",
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			ingestMessages,
			ingestRejects,
			appendLatency,
			lastSeq,
			connState,
			connAttempts,
			backupsTotal,
		)
	})
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveMessage counts one processed message.
func ObserveMessage(source, result string) {
	if source == "" {
		source = "unknown"
	}
	if ingestMessages != nil {
		ingestMessages.WithLabelValues(source, result).Inc()
	}
}

// IncReject counts a decode failure by reason.
func IncReject(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if ingestRejects != nil {
		ingestRejects.WithLabelValues(reason).Inc()
	}
}

// ObserveAppend records a successful append.
func ObserveAppend(seq uint64, duration time.Duration) {
	if appendLatency != nil {
		appendLatency.Observe(duration.Seconds())
	}
	SetLastSeq(seq)
}

// SetLastSeq publishes the store's last assigned id.
func SetLastSeq(seq uint64) {
	if lastSeq != nil {
		lastSeq.Set(float64(seq))
	}
}

// SetConnState marks state as the only active connection state.
func SetConnState(state string, all []string) {
	if connState == nil {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		connState.WithLabelValues(s).Set(v)
	}
}

// IncDial counts a connection attempt.
func IncDial() {
	if connAttempts != nil {
		connAttempts.Inc()
	}
}

// IncBackup counts a checkpoint attempt by result.
func IncBackup(result string) {
	if backupsTotal != nil {
		backupsTotal.WithLabelValues(result).Inc()
	}
}
