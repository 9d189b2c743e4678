package video

import (
	"fmt"
	"time"
)

// Standard frame heights produced by the capture unit.
const (
	HeightPAL  = 272
	HeightNTSC = 240
)

// Format identifies the video standard detected from frame geometry.
// The stream carries no format negotiation; the standard falls out of the
// height derived from the last-packet marker.
type Format int

const (
	FormatUnknown Format = iota
	FormatPAL
	FormatNTSC
)

// FormatForHeight maps a detected frame height to its video standard.
func FormatForHeight(height int) Format {
	switch height {
	case HeightPAL:
		return FormatPAL
	case HeightNTSC:
		return FormatNTSC
	default:
		return FormatUnknown
	}
}

// String returns the conventional name of the video standard
func (f Format) String() string {
	switch f {
	case FormatPAL:
		return "PAL"
	case FormatNTSC:
		return "NTSC"
	default:
		return "UNKNOWN"
	}
}

// Frame is a fully assembled video frame with pixels expanded to RGB.
type Frame struct {
	Number    uint16
	Width     int
	Height    int
	Format    Format
	Pix       []byte // RGB triples, row-major, stride Width*3
	Timestamp time.Time
}

// At returns the pixel at (x, y).
func (f *Frame) At(x, y int) RGB {
	o := (y*f.Width + x) * 3
	return RGB{R: f.Pix[o], G: f.Pix[o+1], B: f.Pix[o+2]}
}

// String returns a human-readable representation of the frame
func (f *Frame) String() string {
	return fmt.Sprintf("Frame{Number:%d, %dx%d %s}", f.Number, f.Width, f.Height, f.Format)
}
