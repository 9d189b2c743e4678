package sink

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/kcalvelli/c64-stream-viewer/internal/audio"
)

// WAVRecorder appends the filtered audio stream to a WAV file. The
// header is written with placeholder sizes and patched on Close, so an
// interrupted recording still carries valid framing up to the last
// written block.
type WAVRecorder struct {
	logger     *slog.Logger
	path       string
	sampleRate int

	mu        sync.Mutex
	file      *os.File
	dataBytes uint32
}

// NewWAVRecorder creates the recording file and writes the placeholder
// header.
func NewWAVRecorder(logger *slog.Logger, path string, sampleRate int) (*WAVRecorder, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording file %s: %w", path, err)
	}

	header, err := audio.EncodeWAVHeader(sampleRate, audio.Channels, 0)
	if err != nil {
		file.Close()
		return nil, err
	}

	if _, err := file.Write(header); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}

	logger.Info("Recording audio",
		slog.String("path", path),
		slog.Int("sample_rate", sampleRate),
	)

	return &WAVRecorder{
		logger:     logger,
		path:       path,
		sampleRate: sampleRate,
		file:       file,
	}, nil
}

// Name identifies the sink in logs
func (w *WAVRecorder) Name() string {
	return "wav"
}

// WriteAudio appends one filtered block to the file.
func (w *WAVRecorder) WriteAudio(samples []int16) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return fmt.Errorf("recorder already closed")
	}

	if _, err := w.file.Write(audio.BytesFromSamples(samples)); err != nil {
		return fmt.Errorf("failed to write audio block: %w", err)
	}

	w.dataBytes += uint32(len(samples) * 2)
	return nil
}

// Close patches the RIFF and data chunk sizes and closes the file.
func (w *WAVRecorder) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}

	file := w.file
	w.file = nil

	sizes := make([]byte, 4)

	binary.LittleEndian.PutUint32(sizes, 36+w.dataBytes)
	if _, err := file.WriteAt(sizes, 4); err != nil {
		file.Close()
		return fmt.Errorf("failed to patch RIFF size: %w", err)
	}

	binary.LittleEndian.PutUint32(sizes, w.dataBytes)
	if _, err := file.WriteAt(sizes, 40); err != nil {
		file.Close()
		return fmt.Errorf("failed to patch data size: %w", err)
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close recording file: %w", err)
	}

	seconds := float64(w.dataBytes) / float64(w.sampleRate*audio.Channels*2)
	w.logger.Info("Recording finished",
		slog.String("path", w.path),
		slog.Uint64("bytes", uint64(w.dataBytes)),
		slog.Float64("seconds", seconds),
	)

	return nil
}
