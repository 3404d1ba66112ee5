package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments of the interview session engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Outbound audio
	ChunksSent    prometheus.Counter
	ChunksDropped prometheus.Counter
	SamplesSent   prometheus.Counter
	ChunkSamples  prometheus.Histogram

	// Inbound events
	InboundEvents   *prometheus.CounterVec
	DecodeErrors    prometheus.Counter
	ProtocolErrors  prometheus.Counter
	BinaryDiscarded prometheus.Counter

	// Sessions
	ActiveSessions   prometheus.Gauge
	SessionsStarted  prometheus.Counter
	SessionsEnded    *prometheus.CounterVec
	SessionDuration  prometheus.Histogram
	PlaybackFailures prometheus.Counter
}

// New creates all instruments and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ChunksSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "interview_audio_chunks_sent_total",
			Help: "Total number of outbound audio chunks handed to the transport",
		}),
		ChunksDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "interview_audio_chunks_dropped_total",
			Help: "Total number of outbound audio chunks the transport refused",
		}),
		SamplesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "interview_audio_samples_sent_total",
			Help: "Total number of PCM16 samples sent",
		}),
		ChunkSamples: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "interview_audio_chunk_samples",
			Help:    "Samples per outbound chunk",
			Buckets: prometheus.ExponentialBuckets(4096, 2, 8), // 4096 to ~524k
		}),

		InboundEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "interview_inbound_events_total",
			Help: "Total number of decoded inbound events by type",
		}, []string{"type"}),
		DecodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "interview_decode_errors_total",
			Help: "Total number of malformed inbound frames",
		}),
		ProtocolErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "interview_protocol_errors_total",
			Help: "Total number of inbound frames that could not be interpreted",
		}),
		BinaryDiscarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "interview_inbound_binary_discarded_total",
			Help: "Total number of inbound binary frames discarded",
		}),

		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "interview_active_sessions",
			Help: "Sessions currently holding a transport",
		}),
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "interview_sessions_started_total",
			Help: "Total number of session runs that opened a transport",
		}),
		SessionsEnded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "interview_sessions_ended_total",
			Help: "Total number of session runs torn down, by final state",
		}, []string{"state"}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "interview_session_duration_seconds",
			Help:    "Duration of session runs",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10), // 5s to ~42 minutes
		}),
		PlaybackFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "interview_playback_failures_total",
			Help: "Total number of swallowed text-to-speech failures",
		}),
	}
}

func (m *Metrics) RecordChunkSent(samples int) {
	if m == nil {
		return
	}
	m.ChunksSent.Inc()
	m.SamplesSent.Add(float64(samples))
	m.ChunkSamples.Observe(float64(samples))
}

func (m *Metrics) RecordChunkDropped() {
	if m == nil {
		return
	}
	m.ChunksDropped.Inc()
}

func (m *Metrics) RecordInbound(eventType string) {
	if m == nil {
		return
	}
	m.InboundEvents.WithLabelValues(eventType).Inc()
}

func (m *Metrics) RecordDecodeError() {
	if m == nil {
		return
	}
	m.DecodeErrors.Inc()
}

func (m *Metrics) RecordProtocolError() {
	if m == nil {
		return
	}
	m.ProtocolErrors.Inc()
}

func (m *Metrics) RecordBinaryDiscarded() {
	if m == nil {
		return
	}
	m.BinaryDiscarded.Inc()
}

// RecordSessionStarted is called once a run owns a transport.
func (m *Metrics) RecordSessionStarted() {
	if m == nil {
		return
	}
	m.SessionsStarted.Inc()
	m.ActiveSessions.Inc()
}

// RecordSessionEnded is called exactly once per started run.
func (m *Metrics) RecordSessionEnded(state string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
	m.SessionsEnded.WithLabelValues(state).Inc()
	m.SessionDuration.Observe(durationSeconds)
}

func (m *Metrics) RecordPlaybackFailure() {
	if m == nil {
		return
	}
	m.PlaybackFailures.Inc()
}
