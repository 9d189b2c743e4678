package sink

import (
	"github.com/kcalvelli/c64-stream-viewer/internal/video"
)

// FrameSink consumes completed video frames. WriteFrame is called from
// the video receive goroutine and must not block on slow consumers.
type FrameSink interface {
	Name() string
	WriteFrame(frame *video.Frame) error
	Close() error
}

// AudioSink consumes filtered PCM blocks of interleaved stereo samples.
// WriteAudio is called from the audio playback goroutine.
type AudioSink interface {
	Name() string
	WriteAudio(samples []int16) error
	Close() error
}
