package protocol

import (
	"encoding/binary"
	"fmt"
)

// Stream format constants for the Ultimate 64 capture unit
const (
	// Video datagram structure
	VideoPacketSize  = 780 // 12-byte header + 768 payload bytes
	VideoHeaderSize  = 12
	VideoPayloadSize = 768

	// Video geometry carried in every header
	PixelsPerLine  = 384
	BytesPerLine   = 192 // two 4-bit pixels per byte
	LinesPerPacket = 4
	BitsPerPixel   = 4

	// Audio datagram structure
	AudioPacketSize  = 770 // 2-byte header + 768 payload bytes
	AudioHeaderSize  = 2
	AudioPayloadSize = 768
	SamplesPerPacket = 192 // interleaved stereo sample pairs
	BytesPerPair     = 4   // 16-bit left + 16-bit right

	// Line field encoding
	LastPacketFlag = 0x8000
	LineNumberMask = 0x7FFF
)

// VideoHeader represents the 12-byte video datagram header
// Layout (little-endian):
// [Sequence:2][Frame:2][Line:2][PixelsPerLine:2][LinesPerPacket:1][BitsPerPixel:1][Reserved:2]
// Bit 15 of the raw line field marks the last packet of a frame and is
// masked off before Line is stored.
type VideoHeader struct {
	Sequence       uint16 // Datagram sequence number
	Frame          uint16 // Frame number this packet belongs to
	Line           uint16 // Starting line index (flag bit masked off)
	PixelsPerLine  uint16 // Must equal 384
	LinesPerPacket uint8  // Must equal 4
	BitsPerPixel   uint8  // Must equal 4
	LastPacket     bool   // Bit 15 of the raw line field
}

// ParseVideoHeader parses and validates a complete video datagram.
// It fails unless the datagram is exactly VideoPacketSize bytes and the
// geometry fields match the fixed stream format. The stream has no
// retransmission, so callers count and drop failed datagrams.
func ParseVideoHeader(data []byte) (*VideoHeader, error) {
	if len(data) != VideoPacketSize {
		return nil, fmt.Errorf("video packet size mismatch: expected %d bytes, got %d", VideoPacketSize, len(data))
	}

	rawLine := binary.LittleEndian.Uint16(data[4:6])

	header := &VideoHeader{
		Sequence:       binary.LittleEndian.Uint16(data[0:2]),
		Frame:          binary.LittleEndian.Uint16(data[2:4]),
		Line:           rawLine & LineNumberMask,
		PixelsPerLine:  binary.LittleEndian.Uint16(data[6:8]),
		LinesPerPacket: data[8],
		BitsPerPixel:   data[9],
		LastPacket:     rawLine&LastPacketFlag != 0,
	}

	if err := ValidateVideoHeader(header); err != nil {
		return nil, fmt.Errorf("invalid video header: %w", err)
	}

	return header, nil
}

// ValidateVideoHeader validates the geometry fields against the fixed
// stream format
func ValidateVideoHeader(h *VideoHeader) error {
	if h.PixelsPerLine != PixelsPerLine {
		return fmt.Errorf("pixels per line must be %d, got %d", PixelsPerLine, h.PixelsPerLine)
	}

	if h.LinesPerPacket != LinesPerPacket {
		return fmt.Errorf("lines per packet must be %d, got %d", LinesPerPacket, h.LinesPerPacket)
	}

	if h.BitsPerPixel != BitsPerPixel {
		return fmt.Errorf("bits per pixel must be %d, got %d", BitsPerPixel, h.BitsPerPixel)
	}

	return nil
}

// PacketIndex returns the position of this packet within its frame,
// derived from the starting line number.
func (h *VideoHeader) PacketIndex() int {
	return int(h.Line) / int(h.LinesPerPacket)
}

// VideoPayload returns the 768 packed pixel bytes of a video datagram.
// The caller must have validated the datagram with ParseVideoHeader first.
func VideoPayload(data []byte) []byte {
	return data[VideoHeaderSize:VideoPacketSize]
}

// ExtractAudioPayload returns the PCM payload of an audio datagram: 768
// bytes of interleaved little-endian signed 16-bit stereo samples following
// the 2-byte header. The header bytes are opaque and skipped.
func ExtractAudioPayload(data []byte) ([]byte, error) {
	if len(data) != AudioPacketSize {
		return nil, fmt.Errorf("audio packet size mismatch: expected %d bytes, got %d", AudioPacketSize, len(data))
	}

	return data[AudioHeaderSize:], nil
}

// String returns a human-readable representation of the header
func (h *VideoHeader) String() string {
	last := ""
	if h.LastPacket {
		last = ", Last"
	}
	return fmt.Sprintf("VideoHeader{Seq:%d, Frame:%d, Line:%d%s}", h.Sequence, h.Frame, h.Line, last)
}
