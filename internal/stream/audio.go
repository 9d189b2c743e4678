package stream

import (
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/kcalvelli/c64-stream-viewer/internal/audio"
	"github.com/kcalvelli/c64-stream-viewer/internal/metrics"
	"github.com/kcalvelli/c64-stream-viewer/internal/protocol"
	"github.com/kcalvelli/c64-stream-viewer/internal/sink"
)

// AudioSession filters incoming PCM blocks and queues them for delivery.
//
// The DC filter runs inline on the receive path because its state depends on
// sample order. Delivery to sinks is decoupled through a bounded queue: when
// a sink cannot keep up the newest block is dropped and counted rather than
// stalling reception.
type AudioSession struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	sinks   []sink.AudioSink

	queue chan []int16
	done  chan struct{}

	mu       sync.RWMutex
	filter   *audio.DCBlocker
	packets  uint64
	invalid  uint64
	samples  uint64
	dropped  uint64
	idle     bool
	closed   bool
	source   string
	started  time.Time
	lastSeen time.Time
}

// AudioInfo is a point-in-time snapshot of the audio session for the HTTP
// API and the stats reporter.
type AudioInfo struct {
	PacketsReceived uint64    `json:"packets_received"`
	PacketsInvalid  uint64    `json:"packets_invalid"`
	Samples         uint64    `json:"samples"`
	QueueDepth      int       `json:"queue_depth"`
	QueueCapacity   int       `json:"queue_capacity"`
	BlocksDropped   uint64    `json:"blocks_dropped"`
	Source          string    `json:"source,omitempty"`
	StartTime       time.Time `json:"start_time"`
	LastActivity    time.Time `json:"last_activity"`
}

func newAudioSession(logger *slog.Logger, m *metrics.Metrics, sinks []sink.AudioSink, queueSize int) *AudioSession {
	return &AudioSession{
		logger:  logger,
		metrics: m,
		sinks:   sinks,
		filter:  audio.NewDCBlocker(),
		queue:   make(chan []int16, queueSize),
		done:    make(chan struct{}),
	}
}

// HandleAudioDatagram extracts, filters and enqueues one audio block.
// Malformed datagrams are counted and dropped silently, like video. When the
// queue is full the block is dropped on the spot: sinks always see a
// contiguous prefix of the stream delayed by at most the queue, never an
// arbitrarily stale backlog.
func (a *AudioSession) HandleAudioDatagram(data []byte, from net.Addr) {
	payload, err := protocol.ExtractAudioPayload(data)
	if err != nil {
		a.metrics.RecordAudioPacketInvalid()
		a.mu.Lock()
		a.invalid++
		a.mu.Unlock()
		a.logger.Debug("Dropping invalid audio datagram",
			slog.Int("size", len(data)),
			slog.String("error", err.Error()),
		)
		return
	}

	samples := audio.SamplesFromBytes(payload)
	pairs := len(samples) / audio.Channels

	var (
		depth      int
		dropped    bool
		closedErr  bool
		enqueuedOK bool
	)

	a.mu.Lock()
	block := a.filter.ProcessBlock(samples)
	a.packets++
	a.samples += uint64(pairs)
	a.idle = false
	a.lastSeen = time.Now()
	if a.started.IsZero() {
		a.started = a.lastSeen
	}
	if from != nil {
		a.source = from.String()
	}
	if a.closed {
		closedErr = true
	} else {
		select {
		case a.queue <- block:
			depth = len(a.queue)
			enqueuedOK = true
		default:
			a.dropped++
			dropped = true
		}
	}
	a.mu.Unlock()

	a.metrics.RecordAudioSamples(pairs)
	if enqueuedOK {
		a.metrics.SetAudioQueueDepth(depth)
	}
	if dropped {
		a.metrics.RecordAudioBlockDropped()
	}
	if closedErr {
		a.logger.Debug("Audio datagram received after shutdown")
	}
}

// pump delivers queued blocks to every sink. It exits once the queue is
// closed and drained, then signals done.
func (a *AudioSession) pump() {
	defer close(a.done)

	for block := range a.queue {
		a.metrics.SetAudioQueueDepth(len(a.queue))
		for _, s := range a.sinks {
			if err := s.WriteAudio(block); err != nil {
				a.metrics.RecordSinkError(s.Name())
				a.logger.Warn("Audio sink write failed",
					slog.String("sink", s.Name()),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// stop closes the queue and waits for the pump to drain the remaining
// blocks. Safe to call more than once.
func (a *AudioSession) stop() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()
	<-a.done
}

// Info returns a snapshot of the session counters.
func (a *AudioSession) Info() AudioInfo {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return AudioInfo{
		PacketsReceived: a.packets,
		PacketsInvalid:  a.invalid,
		Samples:         a.samples,
		QueueDepth:      len(a.queue),
		QueueCapacity:   cap(a.queue),
		BlocksDropped:   a.dropped,
		Source:          a.source,
		StartTime:       a.started,
		LastActivity:    a.lastSeen,
	}
}

// resetIfIdle zeroes the DC filter once no packet has arrived within
// timeout, so a later restart of the stream begins from clean filter state
// instead of a stale bias estimate. Reports whether the reset happened.
func (a *AudioSession) resetIfIdle(timeout time.Duration) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.idle || a.lastSeen.IsZero() || time.Since(a.lastSeen) < timeout {
		return false
	}

	a.filter.Reset()
	a.idle = true
	return true
}
