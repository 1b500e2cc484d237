package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	framesRead = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "go5250",
			Subsystem: "stream",
			Name:      "frames_read_total",
			Help:      "Total 5250 records read from the host.",
		},
		[]string{"session", "opcode"},
	)
	framesWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "go5250",
			Subsystem: "stream",
			Name:      "frames_written_total",
			Help:      "Total 5250 records written to the host.",
		},
		[]string{"session"},
	)
	bytesRead = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "go5250",
			Subsystem: "stream",
			Name:      "bytes_read_total",
			Help:      "Total payload bytes read from the host.",
		},
		[]string{"session"},
	)
	reconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "go5250",
			Subsystem: "session",
			Name:      "reconnects_total",
			Help:      "Reconnect attempts, by outcome.",
		},
		[]string{"session", "outcome"},
	)
	forcedAborts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "go5250",
			Subsystem: "session",
			Name:      "forced_aborts_total",
			Help:      "Aborts forced by retry exhaustion.",
		},
		[]string{"session"},
	)
	sessionState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "go5250",
			Subsystem: "session",
			Name:      "state",
			Help:      "Current session state (enumeration ordinal).",
		},
		[]string{"session"},
	)
	connectDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "go5250",
			Subsystem: "session",
			Name:      "connect_duration_seconds",
			Help:      "Connect attempt duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"session", "outcome"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			framesRead, framesWritten, bytesRead,
			reconnects, forcedAborts, sessionState, connectDuration,
		)
	})
}

func RecordFrameRead(session, opcode string, payloadBytes int) {
	RegisterMetrics()
	framesRead.WithLabelValues(session, opcode).Inc()
	bytesRead.WithLabelValues(session).Add(float64(payloadBytes))
}

func RecordFrameWritten(session string) {
	RegisterMetrics()
	framesWritten.WithLabelValues(session).Inc()
}

func RecordReconnect(session, outcome string) {
	RegisterMetrics()
	reconnects.WithLabelValues(session, outcome).Inc()
}

func RecordForcedAbort(session string) {
	RegisterMetrics()
	forcedAborts.WithLabelValues(session).Inc()
}

func RecordSessionState(session string, ordinal int) {
	RegisterMetrics()
	sessionState.WithLabelValues(session).Set(float64(ordinal))
}

func RecordConnectDuration(session, outcome string, d time.Duration) {
	RegisterMetrics()
	connectDuration.WithLabelValues(session, outcome).Observe(d.Seconds())
}
