package control

import (
	"bytes"
	"testing"
)

func TestEncodeStart(t *testing.T) {
	tests := []struct {
		name     string
		stream   StreamID
		ip       string
		port     int
		duration uint16
		expected []byte
	}{
		{
			name:   "video unbounded",
			stream: StreamVideo,
			ip:     "10.0.0.5",
			port:   11000,
			expected: append(
				[]byte{0x20, 0xFF, 0x10, 0x00, 0x00, 0x00},
				[]byte("10.0.0.5:11000")...,
			),
		},
		{
			name:   "audio unbounded",
			stream: StreamAudio,
			ip:     "192.168.1.20",
			port:   11001,
			expected: append(
				[]byte{0x21, 0xFF, 0x14, 0x00, 0x00, 0x00},
				[]byte("192.168.1.20:11001")...,
			),
		},
		{
			name:     "video with duration",
			stream:   StreamVideo,
			ip:       "10.0.0.5",
			port:     11000,
			duration: 0x1234,
			expected: append(
				[]byte{0x20, 0xFF, 0x10, 0x00, 0x34, 0x12},
				[]byte("10.0.0.5:11000")...,
			),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := EncodeStart(tt.stream, tt.ip, tt.port, tt.duration)
			if !bytes.Equal(cmd, tt.expected) {
				t.Errorf("EncodeStart = % X, expected % X", cmd, tt.expected)
			}
		})
	}
}

func TestEncodeStop(t *testing.T) {
	videoStop := EncodeStop(StreamVideo)
	if !bytes.Equal(videoStop, []byte{0x30, 0xFF, 0x00, 0x00}) {
		t.Errorf("EncodeStop(video) = % X", videoStop)
	}

	audioStop := EncodeStop(StreamAudio)
	if !bytes.Equal(audioStop, []byte{0x31, 0xFF, 0x00, 0x00}) {
		t.Errorf("EncodeStop(audio) = % X", audioStop)
	}
}

func TestStreamIDString(t *testing.T) {
	if StreamVideo.String() != "video" {
		t.Errorf("Expected video, got %s", StreamVideo.String())
	}
	if StreamAudio.String() != "audio" {
		t.Errorf("Expected audio, got %s", StreamAudio.String())
	}
	if StreamID(7).String() != "stream(7)" {
		t.Errorf("Expected stream(7), got %s", StreamID(7).String())
	}
}
