package sink

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/kcalvelli/c64-stream-viewer/internal/audio"
)

func TestWAVRecorderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.wav")

	rec, err := NewWAVRecorder(slog.Default(), path, audio.DefaultSampleRate)
	if err != nil {
		t.Fatalf("NewWAVRecorder failed: %v", err)
	}

	first := []int16{100, -100, 200, -200}
	second := []int16{300, -300}
	if err := rec.WriteAudio(first); err != nil {
		t.Fatalf("WriteAudio failed: %v", err)
	}
	if err := rec.WriteAudio(second); err != nil {
		t.Fatalf("WriteAudio failed: %v", err)
	}

	if err := rec.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read recording: %v", err)
	}

	samples, sampleRate, channels, err := audio.DecodeWAV(data)
	if err != nil {
		t.Fatalf("Recording does not decode: %v", err)
	}

	if sampleRate != audio.DefaultSampleRate {
		t.Errorf("Expected sample rate %d, got %d", audio.DefaultSampleRate, sampleRate)
	}
	if channels != audio.Channels {
		t.Errorf("Expected %d channels, got %d", audio.Channels, channels)
	}

	expected := append(append([]int16{}, first...), second...)
	if len(samples) != len(expected) {
		t.Fatalf("Expected %d samples, got %d", len(expected), len(samples))
	}
	for i, want := range expected {
		if samples[i] != want {
			t.Errorf("Sample %d: expected %d, got %d", i, want, samples[i])
		}
	}
}

func TestWAVRecorderClosedWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.wav")

	rec, err := NewWAVRecorder(slog.Default(), path, audio.DefaultSampleRate)
	if err != nil {
		t.Fatalf("NewWAVRecorder failed: %v", err)
	}

	if err := rec.WriteAudio([]int16{1, 2}); err != nil {
		t.Fatalf("WriteAudio failed: %v", err)
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := rec.WriteAudio([]int16{3, 4}); err == nil {
		t.Error("Expected error writing after Close")
	}
	if err := rec.Close(); err != nil {
		t.Errorf("Second Close should be a no-op, got: %v", err)
	}
}
