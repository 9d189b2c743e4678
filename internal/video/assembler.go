package video

import (
	"time"

	"github.com/kcalvelli/c64-stream-viewer/internal/protocol"
)

// storedPacket is one received packet keyed by its packet index.
type storedPacket struct {
	line    uint16
	payload []byte
}

// Assembler reconstructs frames from independently arriving, possibly
// out-of-order, possibly missing video packets. It tracks exactly one frame
// number at a time: a packet for a different frame number discards all
// accumulated state, so stale data never blocks progress on a stream with
// no flow control. Frame height is not configured; it is derived from the
// last-packet marker, which makes the assembler resolution-agnostic within
// the fixed pixel width.
//
// Not safe for concurrent use. Callers run it on the reception goroutine,
// which also keeps packet ordering intact.
type Assembler struct {
	frame    uint16
	tracking bool
	packets  map[int]storedPacket
	expected int
	height   int

	discarded uint64
}

// NewAssembler creates an empty frame assembler.
func NewAssembler() *Assembler {
	return &Assembler{
		packets: make(map[int]storedPacket, HeightPAL/protocol.LinesPerPacket),
	}
}

// AddPacket stores one validated packet. A frame number different from the
// tracked one resets the accumulator first; duplicate packet indices are
// last-write-wins. The payload slice is retained until the frame completes
// or is discarded, so it must not be reused by the caller.
func (a *Assembler) AddPacket(hdr *protocol.VideoHeader, payload []byte) {
	if !a.tracking || hdr.Frame != a.frame {
		if a.tracking && len(a.packets) > 0 && !a.IsComplete() {
			a.discarded++
		}
		a.reset(hdr.Frame)
	}

	idx := hdr.PacketIndex()
	a.packets[idx] = storedPacket{line: hdr.Line, payload: payload}

	if hdr.LastPacket {
		a.expected = idx + 1
		a.height = int(hdr.Line) + int(hdr.LinesPerPacket)
	}
}

// IsComplete reports whether the tracked frame has received its last-packet
// marker and at least the expected number of distinct packets.
func (a *Assembler) IsComplete() bool {
	return a.expected > 0 && len(a.packets) >= a.expected
}

// Assemble decodes the accumulated packets into a Frame. It returns false
// until the frame is complete. Regions of packets that never arrived stay
// zero (black); sub-lines beyond the detected height are clipped.
func (a *Assembler) Assemble() (*Frame, bool) {
	if !a.IsComplete() {
		return nil, false
	}

	width := protocol.PixelsPerLine
	frame := &Frame{
		Number:    a.frame,
		Width:     width,
		Height:    a.height,
		Format:    FormatForHeight(a.height),
		Pix:       make([]byte, width*a.height*3),
		Timestamp: time.Now(),
	}

	for _, pkt := range a.packets {
		for sub := 0; sub < protocol.LinesPerPacket; sub++ {
			y := int(pkt.line) + sub
			if y >= a.height {
				break
			}
			src := pkt.payload[sub*protocol.BytesPerLine : (sub+1)*protocol.BytesPerLine]
			dst := frame.Pix[y*width*3 : (y+1)*width*3]
			DecodeLine(dst, src)
		}
	}

	return frame, true
}

// Reset drops all accumulated state. Packet arrival for a new frame number
// resets implicitly; this is for the caller's idle watchdog.
func (a *Assembler) Reset() {
	a.tracking = false
	a.expected = 0
	a.height = 0
	a.packets = make(map[int]storedPacket, HeightPAL/protocol.LinesPerPacket)
}

func (a *Assembler) reset(frame uint16) {
	a.frame = frame
	a.tracking = true
	a.expected = 0
	a.height = 0
	a.packets = make(map[int]storedPacket, HeightPAL/protocol.LinesPerPacket)
}

// FrameNumber returns the frame number currently being accumulated and
// whether any frame is being tracked at all.
func (a *Assembler) FrameNumber() (uint16, bool) {
	return a.frame, a.tracking
}

// PacketCount returns the number of distinct packet indices stored for the
// tracked frame.
func (a *Assembler) PacketCount() int {
	return len(a.packets)
}

// Discarded returns how many partially accumulated frames were dropped by
// frame-number switches.
func (a *Assembler) Discarded() uint64 {
	return a.discarded
}
