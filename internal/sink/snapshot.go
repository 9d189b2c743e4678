package sink

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/kcalvelli/c64-stream-viewer/internal/config"
	"github.com/kcalvelli/c64-stream-viewer/internal/video"
)

// Snapshot retains the most recent completed frame for the HTTP
// snapshot endpoint and optionally dumps every Nth frame to disk as
// PNG.
type Snapshot struct {
	logger *slog.Logger
	dir    string
	every  uint64

	mu     sync.RWMutex
	latest *video.Frame
	frames uint64
	saved  uint64
}

// NewSnapshot creates the snapshot sink. When cfg.Dir is set the
// directory is created and every cfg.Every-th frame is written to it.
func NewSnapshot(logger *slog.Logger, cfg config.PNGSinkConfig) (*Snapshot, error) {
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create frame directory %s: %w", cfg.Dir, err)
		}
	}

	return &Snapshot{
		logger: logger,
		dir:    cfg.Dir,
		every:  uint64(cfg.Every),
	}, nil
}

// Name identifies the sink in logs
func (s *Snapshot) Name() string {
	return "snapshot"
}

// WriteFrame stores the frame as the latest and dumps it to disk when
// due. The frame buffer is owned by the sink layer after emission, so
// it is retained without copying.
func (s *Snapshot) WriteFrame(frame *video.Frame) error {
	s.mu.Lock()
	s.latest = frame
	s.frames++
	due := s.dir != "" && s.every > 0 && s.frames%s.every == 0
	var seq uint64
	if due {
		s.saved++
		seq = s.saved
	}
	s.mu.Unlock()

	if !due {
		return nil
	}

	data, err := encodePNG(frame)
	if err != nil {
		return fmt.Errorf("failed to encode frame %d: %w", frame.Number, err)
	}

	path := filepath.Join(s.dir, fmt.Sprintf("frame_%06d.png", seq))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	s.logger.Debug("Frame saved",
		slog.String("path", path),
		slog.Uint64("frame", uint64(frame.Number)),
	)

	return nil
}

// Latest returns the most recently stored frame, or nil before the
// first frame completes.
func (s *Snapshot) Latest() *video.Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// EncodePNG renders the latest frame as a PNG image.
func (s *Snapshot) EncodePNG() ([]byte, error) {
	frame := s.Latest()
	if frame == nil {
		return nil, fmt.Errorf("no frame assembled yet")
	}
	return encodePNG(frame)
}

// FrameCount returns how many frames passed through the sink.
func (s *Snapshot) FrameCount() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frames
}

// SavedCount returns how many frames were written to disk.
func (s *Snapshot) SavedCount() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saved
}

// Close releases nothing; the sink holds no file handles between frames.
func (s *Snapshot) Close() error {
	return nil
}

func encodePNG(frame *video.Frame) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, frame.Width, frame.Height))
	for y := 0; y < frame.Height; y++ {
		for x := 0; x < frame.Width; x++ {
			src := (y*frame.Width + x) * 3
			dst := img.PixOffset(x, y)
			img.Pix[dst] = frame.Pix[src]
			img.Pix[dst+1] = frame.Pix[src+1]
			img.Pix[dst+2] = frame.Pix[src+2]
			img.Pix[dst+3] = 0xFF
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}

	return buf.Bytes(), nil
}
