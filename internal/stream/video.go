package stream

import (
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/kcalvelli/c64-stream-viewer/internal/events"
	"github.com/kcalvelli/c64-stream-viewer/internal/metrics"
	"github.com/kcalvelli/c64-stream-viewer/internal/protocol"
	"github.com/kcalvelli/c64-stream-viewer/internal/sink"
	"github.com/kcalvelli/c64-stream-viewer/internal/video"
)

// VideoSession reassembles the video packet stream into frames and fans
// completed frames out to the configured sinks.
//
// The assembler and the frame interval state are ordering-sensitive, so
// HandleVideoDatagram must only be called from the single receive goroutine.
// The mutex exists for the stats snapshot and the idle watchdog, not to make
// packet handling concurrent.
type VideoSession struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	emitter *events.Emitter
	sinks   []sink.FrameSink

	mu          sync.RWMutex
	asm         *video.Assembler
	packets     uint64
	invalid     uint64
	completed   uint64
	discarded   uint64
	width       int
	height      int
	format      video.Format
	fps         float64
	source      string
	startTime   time.Time
	lastFrameAt time.Time
	lastSeen    time.Time
}

// VideoInfo is a point-in-time snapshot of the video session for the HTTP
// API and the stats reporter.
type VideoInfo struct {
	PacketsReceived uint64    `json:"packets_received"`
	PacketsInvalid  uint64    `json:"packets_invalid"`
	FramesCompleted uint64    `json:"frames_completed"`
	FramesDiscarded uint64    `json:"frames_discarded"`
	Width           int       `json:"width"`
	Height          int       `json:"height"`
	Format          string    `json:"format"`
	FPS             float64   `json:"fps"`
	Source          string    `json:"source,omitempty"`
	StartTime       time.Time `json:"start_time"`
	LastActivity    time.Time `json:"last_activity"`
}

func newVideoSession(logger *slog.Logger, m *metrics.Metrics, emitter *events.Emitter, sinks []sink.FrameSink) *VideoSession {
	return &VideoSession{
		logger:  logger,
		metrics: m,
		emitter: emitter,
		sinks:   sinks,
		asm:     video.NewAssembler(),
	}
}

// HandleVideoDatagram feeds one received datagram into the assembler. Invalid
// datagrams are counted and dropped without an error: the stream has no flow
// control, so the only sane reaction to a bad packet is to wait for the next
// one. The data slice is retained by the assembler until the frame completes,
// so the caller must hand over a copy it will not reuse.
func (v *VideoSession) HandleVideoDatagram(data []byte, from net.Addr) {
	header, err := protocol.ParseVideoHeader(data)
	if err != nil {
		v.metrics.RecordVideoPacketInvalid()
		v.mu.Lock()
		v.invalid++
		v.mu.Unlock()
		v.logger.Debug("Dropping invalid video datagram",
			slog.Int("size", len(data)),
			slog.String("error", err.Error()),
		)
		return
	}

	now := time.Now()
	var (
		frame         *video.Frame
		interval      float64
		formatChanged bool
		discardDelta  uint64
	)

	v.mu.Lock()
	v.packets++
	v.lastSeen = now
	if v.startTime.IsZero() {
		v.startTime = now
	}
	if from != nil {
		v.source = from.String()
	}

	wasComplete := v.asm.IsComplete()
	v.asm.AddPacket(header, protocol.VideoPayload(data))

	if d := v.asm.Discarded(); d != v.discarded {
		discardDelta = d - v.discarded
		v.discarded = d
	}

	// Emit each frame once, on the transition to complete. Late duplicates
	// for an already assembled frame keep IsComplete true and fall through.
	if !wasComplete && v.asm.IsComplete() {
		if f, ok := v.asm.Assemble(); ok {
			frame = f
			v.completed++
			if !v.lastFrameAt.IsZero() {
				interval = f.Timestamp.Sub(v.lastFrameAt).Seconds()
			}
			v.lastFrameAt = f.Timestamp
			formatChanged = f.Format != v.format
			v.format = f.Format
			v.width = f.Width
			v.height = f.Height
		}
	}
	v.mu.Unlock()

	if discardDelta > 0 {
		v.metrics.RecordFrameDiscarded(discardDelta)
		v.logger.Debug("Discarded incomplete frame",
			slog.Uint64("frame", uint64(header.Frame)),
			slog.Uint64("total_discarded", v.discardedCount()),
		)
	}

	if frame == nil {
		return
	}

	v.metrics.RecordFrameCompleted(interval)

	if formatChanged {
		v.metrics.SetVideoFormat(int(frame.Format))
		v.emitter.PublishVideoFormat(frame.Format.String())
		v.logger.Info("Video format detected",
			slog.String("format", frame.Format.String()),
			slog.Int("width", frame.Width),
			slog.Int("height", frame.Height),
		)
	}

	for _, s := range v.sinks {
		if err := s.WriteFrame(frame); err != nil {
			v.metrics.RecordSinkError(s.Name())
			v.logger.Warn("Frame sink write failed",
				slog.String("sink", s.Name()),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Info returns a snapshot of the session counters.
func (v *VideoSession) Info() VideoInfo {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return VideoInfo{
		PacketsReceived: v.packets,
		PacketsInvalid:  v.invalid,
		FramesCompleted: v.completed,
		FramesDiscarded: v.discarded,
		Width:           v.width,
		Height:          v.height,
		Format:          v.format.String(),
		FPS:             v.fps,
		Source:          v.source,
		StartTime:       v.startTime,
		LastActivity:    v.lastSeen,
	}
}

// resetIfIdle drops partial assembly state once no packet has arrived within
// timeout. It reports whether anything was actually dropped, so the watchdog
// logs the transition once instead of on every tick.
func (v *VideoSession) resetIfIdle(timeout time.Duration) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.lastSeen.IsZero() || time.Since(v.lastSeen) < timeout {
		return false
	}
	if v.asm.PacketCount() == 0 {
		return false
	}

	v.asm.Reset()
	return true
}

func (v *VideoSession) setFPS(fps float64) {
	v.mu.Lock()
	v.fps = fps
	v.mu.Unlock()
}

func (v *VideoSession) discardedCount() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.discarded
}
