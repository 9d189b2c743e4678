package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the stream viewer
type Metrics struct {
	// Video pipeline metrics
	VideoPacketsReceived prometheus.Counter
	VideoPacketsInvalid  prometheus.Counter
	FramesCompleted      prometheus.Counter
	FramesDiscarded      prometheus.Counter
	FrameInterval        prometheus.Histogram
	VideoFormat          prometheus.Gauge
	VideoFPS             prometheus.Gauge

	// Audio pipeline metrics
	AudioPacketsReceived prometheus.Counter
	AudioPacketsInvalid  prometheus.Counter
	AudioSamples         prometheus.Counter
	AudioQueueDepth      prometheus.Gauge
	AudioBlocksDropped   prometheus.Counter

	// Sink metrics
	SinkErrors *prometheus.CounterVec
	WSClients  prometheus.Gauge

	// Command channel metrics
	ControlCommands *prometheus.CounterVec

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// Video pipeline metrics
		VideoPacketsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "u64_video_packets_received_total",
			Help: "Total number of video datagrams received",
		}),
		VideoPacketsInvalid: promauto.NewCounter(prometheus.CounterOpts{
			Name: "u64_video_packets_invalid_total",
			Help: "Total number of video datagrams discarded as malformed",
		}),
		FramesCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "u64_frames_completed_total",
			Help: "Total number of fully assembled video frames",
		}),
		FramesDiscarded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "u64_frames_discarded_total",
			Help: "Total number of incomplete frames discarded on frame switch",
		}),
		FrameInterval: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "u64_frame_interval_seconds",
			Help:    "Time between consecutive completed frames",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 9), // 5ms to ~1.3s
		}),
		VideoFormat: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "u64_video_format",
			Help: "Detected video format (0=unknown, 1=PAL, 2=NTSC)",
		}),
		VideoFPS: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "u64_video_fps",
			Help: "Completed frames per second over the last stats interval",
		}),

		// Audio pipeline metrics
		AudioPacketsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "u64_audio_packets_received_total",
			Help: "Total number of audio datagrams received",
		}),
		AudioPacketsInvalid: promauto.NewCounter(prometheus.CounterOpts{
			Name: "u64_audio_packets_invalid_total",
			Help: "Total number of audio datagrams discarded as malformed",
		}),
		AudioSamples: promauto.NewCounter(prometheus.CounterOpts{
			Name: "u64_audio_samples_total",
			Help: "Total number of PCM samples run through the DC filter",
		}),
		AudioQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "u64_audio_queue_depth",
			Help: "Current number of audio blocks waiting for playback",
		}),
		AudioBlocksDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "u64_audio_blocks_dropped_total",
			Help: "Total number of audio blocks dropped because the queue was full",
		}),

		// Sink metrics
		SinkErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "u64_sink_errors_total",
			Help: "Total number of failed sink writes",
		}, []string{"sink"}),
		WSClients: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "u64_ws_clients",
			Help: "Current number of connected WebSocket viewers",
		}),

		// Command channel metrics
		ControlCommands: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "u64_control_commands_total",
			Help: "Total number of commands sent to the machine",
		}, []string{"command", "transport", "result"}),

		// HTTP API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "u64_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "u64_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "u64_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordVideoPacket increments the video packets received counter
func (m *Metrics) RecordVideoPacket() {
	m.VideoPacketsReceived.Inc()
}

// RecordVideoPacketInvalid increments the malformed video packet counter
func (m *Metrics) RecordVideoPacketInvalid() {
	m.VideoPacketsInvalid.Inc()
}

// RecordFrameCompleted records a completed frame and the interval since
// the previous one
func (m *Metrics) RecordFrameCompleted(intervalSeconds float64) {
	m.FramesCompleted.Inc()
	if intervalSeconds > 0 {
		m.FrameInterval.Observe(intervalSeconds)
	}
}

// RecordFrameDiscarded adds to the discarded frame counter
func (m *Metrics) RecordFrameDiscarded(count uint64) {
	m.FramesDiscarded.Add(float64(count))
}

// SetVideoFormat sets the detected video format gauge
func (m *Metrics) SetVideoFormat(format int) {
	m.VideoFormat.Set(float64(format))
}

// SetVideoFPS sets the frames-per-second gauge
func (m *Metrics) SetVideoFPS(fps float64) {
	m.VideoFPS.Set(fps)
}

// RecordAudioPacket increments the audio packets received counter
func (m *Metrics) RecordAudioPacket() {
	m.AudioPacketsReceived.Inc()
}

// RecordAudioPacketInvalid increments the malformed audio packet counter
func (m *Metrics) RecordAudioPacketInvalid() {
	m.AudioPacketsInvalid.Inc()
}

// RecordAudioSamples adds processed samples to the sample counter
func (m *Metrics) RecordAudioSamples(count int) {
	m.AudioSamples.Add(float64(count))
}

// SetAudioQueueDepth sets the playback queue depth gauge
func (m *Metrics) SetAudioQueueDepth(depth int) {
	m.AudioQueueDepth.Set(float64(depth))
}

// RecordAudioBlockDropped increments the dropped block counter
func (m *Metrics) RecordAudioBlockDropped() {
	m.AudioBlocksDropped.Inc()
}

// RecordSinkError increments the failed write counter for one sink
func (m *Metrics) RecordSinkError(sink string) {
	m.SinkErrors.WithLabelValues(sink).Inc()
}

// SetWSClients sets the connected WebSocket viewer gauge
func (m *Metrics) SetWSClients(count int) {
	m.WSClients.Set(float64(count))
}

// RecordControlCommand records a command channel attempt
func (m *Metrics) RecordControlCommand(command, transport string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.ControlCommands.WithLabelValues(command, transport, result).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
