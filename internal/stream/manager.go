package stream

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/kcalvelli/c64-stream-viewer/internal/config"
	"github.com/kcalvelli/c64-stream-viewer/internal/events"
	"github.com/kcalvelli/c64-stream-viewer/internal/metrics"
	"github.com/kcalvelli/c64-stream-viewer/internal/sink"
)

// idleCheckInterval is how often the watchdog looks at session activity.
const idleCheckInterval = 5 * time.Second

// Manager owns the fixed pair of stream sessions. The wire protocol carries
// no stream or session identifiers: one machine sends one video stream and
// one audio stream to the ports we listen on, so there is exactly one
// session per medium for the lifetime of the process.
type Manager struct {
	logger  *slog.Logger
	cfg     *config.Config
	metrics *metrics.Metrics
	emitter *events.Emitter

	video *VideoSession
	audio *AudioSession

	frameSinks []sink.FrameSink
	audioSinks []sink.AudioSink

	ctx     context.Context
	cancel  context.CancelFunc
	cleanup chan struct{}

	// Reporter state, touched only by the watchdog goroutine.
	lastReport       time.Time
	lastFrames       uint64
	lastVideoPackets uint64
	lastAudioPackets uint64
}

// Snapshot bundles both session snapshots for the stats endpoint and the
// events emitter.
type Snapshot struct {
	Video VideoInfo `json:"video"`
	Audio AudioInfo `json:"audio"`
}

// NewManager creates the session pair and starts the audio delivery pump and
// the idle/stats watchdog.
func NewManager(logger *slog.Logger, cfg *config.Config, m *metrics.Metrics, frameSinks []sink.FrameSink, audioSinks []sink.AudioSink, emitter *events.Emitter) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	mgr := &Manager{
		logger:     logger,
		cfg:        cfg,
		metrics:    m,
		emitter:    emitter,
		frameSinks: frameSinks,
		audioSinks: audioSinks,
		ctx:        ctx,
		cancel:     cancel,
		cleanup:    make(chan struct{}),
		lastReport: time.Now(),
	}

	mgr.video = newVideoSession(logger, m, emitter, frameSinks)
	mgr.audio = newAudioSession(logger, m, audioSinks, cfg.Audio.QueueSize)

	go mgr.audio.pump()
	go mgr.startWatchdogRoutine()

	return mgr
}

// HandleVideoDatagram forwards one video datagram to the video session. Must
// be called from a single goroutine; see VideoSession.
func (m *Manager) HandleVideoDatagram(data []byte, from net.Addr) {
	m.video.HandleVideoDatagram(data, from)
}

// HandleAudioDatagram forwards one audio datagram to the audio session. Must
// be called from a single goroutine; see AudioSession.
func (m *Manager) HandleAudioDatagram(data []byte, from net.Addr) {
	m.audio.HandleAudioDatagram(data, from)
}

// VideoInfo returns the current video session snapshot.
func (m *Manager) VideoInfo() VideoInfo {
	return m.video.Info()
}

// AudioInfo returns the current audio session snapshot.
func (m *Manager) AudioInfo() AudioInfo {
	return m.audio.Info()
}

// Info returns snapshots of both sessions.
func (m *Manager) Info() Snapshot {
	return Snapshot{
		Video: m.video.Info(),
		Audio: m.audio.Info(),
	}
}

// Stop shuts the manager down: watchdog first so nothing touches the
// sessions during teardown, then the audio queue is closed and drained, then
// the sinks. The UDP server must already have stopped delivering datagrams.
func (m *Manager) Stop() {
	m.logger.Info("Stopping stream manager...")

	m.cancel()
	<-m.cleanup

	m.audio.stop()

	for _, s := range m.frameSinks {
		if err := s.Close(); err != nil {
			m.logger.Warn("Error closing frame sink",
				slog.String("sink", s.Name()),
				slog.String("error", err.Error()),
			)
		}
	}
	for _, s := range m.audioSinks {
		if err := s.Close(); err != nil {
			m.logger.Warn("Error closing audio sink",
				slog.String("sink", s.Name()),
				slog.String("error", err.Error()),
			)
		}
	}

	vi := m.video.Info()
	ai := m.audio.Info()
	m.logger.Info("Stream manager stopped",
		slog.Uint64("video_packets", vi.PacketsReceived),
		slog.Uint64("frames_completed", vi.FramesCompleted),
		slog.Uint64("frames_discarded", vi.FramesDiscarded),
		slog.Uint64("audio_packets", ai.PacketsReceived),
		slog.Uint64("audio_blocks_dropped", ai.BlocksDropped),
	)
}

// startWatchdogRoutine runs the idle checks and the periodic stats report in
// one goroutine until the manager stops.
func (m *Manager) startWatchdogRoutine() {
	defer close(m.cleanup)

	idleTicker := time.NewTicker(idleCheckInterval)
	defer idleTicker.Stop()

	// A zero stats interval disables reporting; a nil channel never fires.
	var statsC <-chan time.Time
	if interval := m.cfg.Stream.GetStatsIntervalDuration(); interval > 0 {
		statsTicker := time.NewTicker(interval)
		defer statsTicker.Stop()
		statsC = statsTicker.C
	}

	m.logger.Info("Stream watchdog started",
		slog.Duration("idle_timeout", m.cfg.Stream.GetIdleTimeoutDuration()),
		slog.Duration("stats_interval", m.cfg.Stream.GetStatsIntervalDuration()),
	)

	for {
		select {
		case <-m.ctx.Done():
			m.logger.Info("Stream watchdog stopping")
			return

		case <-idleTicker.C:
			m.checkIdle()

		case <-statsC:
			m.reportStats()
		}
	}
}

// checkIdle resets stale per-session state once a stream has gone quiet.
func (m *Manager) checkIdle() {
	timeout := m.cfg.Stream.GetIdleTimeoutDuration()

	if m.video.resetIfIdle(timeout) {
		m.logger.Warn("Video stream idle, dropped partial frame state",
			slog.Duration("idle_timeout", timeout),
		)
		m.emitter.PublishStreamState("idle")
	}

	if m.audio.resetIfIdle(timeout) {
		m.logger.Warn("Audio stream idle, filter state reset",
			slog.Duration("idle_timeout", timeout),
		)
	}
}

// reportStats logs per-interval throughput and publishes the snapshot.
func (m *Manager) reportStats() {
	now := time.Now()
	elapsed := now.Sub(m.lastReport).Seconds()
	if elapsed <= 0 {
		return
	}

	vi := m.video.Info()
	ai := m.audio.Info()

	fps := float64(vi.FramesCompleted-m.lastFrames) / elapsed
	videoPPS := float64(vi.PacketsReceived-m.lastVideoPackets) / elapsed
	audioPPS := float64(ai.PacketsReceived-m.lastAudioPackets) / elapsed

	m.lastReport = now
	m.lastFrames = vi.FramesCompleted
	m.lastVideoPackets = vi.PacketsReceived
	m.lastAudioPackets = ai.PacketsReceived

	m.video.setFPS(fps)
	m.metrics.SetVideoFPS(fps)
	vi.FPS = fps

	m.logger.Info("Stream statistics",
		slog.Float64("fps", fps),
		slog.Float64("video_pps", videoPPS),
		slog.Float64("audio_pps", audioPPS),
		slog.String("format", vi.Format),
		slog.Uint64("frames_completed", vi.FramesCompleted),
		slog.Uint64("frames_discarded", vi.FramesDiscarded),
		slog.Int("audio_queue_depth", ai.QueueDepth),
		slog.Uint64("audio_blocks_dropped", ai.BlocksDropped),
	)

	m.emitter.PublishStats(Snapshot{Video: vi, Audio: ai})
}
