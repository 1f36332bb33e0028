package screenrec

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the recorder's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	FramesDrawn    prometheus.Counter
	FramesCaptured prometheus.Counter
	FramesDropped  prometheus.Counter

	ChunksTotal   prometheus.Counter
	ChunkBytes    prometheus.Counter
	EncodeErrors  prometheus.Counter
	SessionsTotal *prometheus.CounterVec
	SessionState  *prometheus.GaugeVec
	ErrorsTotal   *prometheus.CounterVec

	TranscodeTotal    *prometheus.CounterVec
	TranscodeDuration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FramesDrawn: f.NewCounter(prometheus.CounterOpts{
			Name: "screenrec_compositor_frames_drawn_total",
			Help: "Total number of canvas redraws",
		}),
		FramesCaptured: f.NewCounter(prometheus.CounterOpts{
			Name: "screenrec_compositor_frames_captured_total",
			Help: "Total number of canvas frames delivered to the composite track",
		}),
		FramesDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "screenrec_compositor_frames_dropped_total",
			Help: "Total number of canvas frames the composite track refused",
		}),
		ChunksTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "screenrec_recorder_chunks_total",
			Help: "Total number of non-empty recording chunks",
		}),
		ChunkBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "screenrec_recorder_chunk_bytes_total",
			Help: "Total bytes of recorded chunks",
		}),
		EncodeErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "screenrec_recorder_encode_errors_total",
			Help: "Total number of fatal encoder or muxer errors",
		}),
		SessionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "screenrec_sessions_total",
			Help: "Total number of recording sessions by outcome",
		}, []string{"outcome"}), // "started", "failed", "completed"
		SessionState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "screenrec_session_state",
			Help: "1 for the current session state, 0 otherwise",
		}, []string{"state"}),
		ErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "screenrec_errors_total",
			Help: "Total number of surfaced errors by kind",
		}, []string{"kind"}),
		TranscodeTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "screenrec_transcode_total",
			Help: "Total number of transcodes by status",
		}, []string{"status"}),
		TranscodeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "screenrec_transcode_duration_seconds",
			Help:    "Transcode duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
	}
}

func (m *Metrics) frameDrawn() {
	if m != nil {
		m.FramesDrawn.Inc()
	}
}

func (m *Metrics) frameCaptured() {
	if m != nil {
		m.FramesCaptured.Inc()
	}
}

func (m *Metrics) frameDropped() {
	if m != nil {
		m.FramesDropped.Inc()
	}
}

func (m *Metrics) chunk(n int) {
	if m != nil {
		m.ChunksTotal.Inc()
		m.ChunkBytes.Add(float64(n))
	}
}

func (m *Metrics) encodeError() {
	if m != nil {
		m.EncodeErrors.Inc()
	}
}

func (m *Metrics) session(outcome string) {
	if m != nil {
		m.SessionsTotal.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) state(s SessionState) {
	if m == nil {
		return
	}
	for _, st := range []SessionState{StateInactive, StateRecording, StatePaused, StateProcessing} {
		v := 0.0
		if st == s {
			v = 1
		}
		m.SessionState.WithLabelValues(st.String()).Set(v)
	}
}

func (m *Metrics) error(kind ErrorKind) {
	if m != nil {
		m.ErrorsTotal.WithLabelValues(kind.String()).Inc()
	}
}

func (m *Metrics) transcode(status string, d time.Duration) {
	if m != nil {
		m.TranscodeTotal.WithLabelValues(status).Inc()
		m.TranscodeDuration.Observe(d.Seconds())
	}
}
