package video

import (
	"testing"

	"github.com/kcalvelli/c64-stream-viewer/internal/protocol"
)

func TestGeometryFromLastPacket(t *testing.T) {
	a := NewAssembler()

	a.AddPacket(testHeader(t, 1, 0, false), testPayload(t, 0x11))
	if a.IsComplete() {
		t.Fatal("frame complete before last packet arrived")
	}

	a.AddPacket(testHeader(t, 1, 4, true), testPayload(t, 0x22))
	if !a.IsComplete() {
		t.Fatal("frame not complete after both packets arrived")
	}

	frame, ok := a.Assemble()
	if !ok {
		t.Fatal("Assemble() returned no frame for a complete assembly")
	}
	if frame.Height != 8 {
		t.Errorf("height = %d, expected 8 (last line 4 plus 4 lines per packet)", frame.Height)
	}
	if frame.Width != protocol.PixelsPerLine {
		t.Errorf("width = %d, expected %d", frame.Width, protocol.PixelsPerLine)
	}
}

func TestLastPacketAloneIsNotEnough(t *testing.T) {
	a := NewAssembler()

	// The last-packet marker fixes the expected count at 2, but only one
	// distinct packet has arrived.
	a.AddPacket(testHeader(t, 1, 4, true), testPayload(t, 0x22))
	if a.IsComplete() {
		t.Fatal("frame complete with a missing packet")
	}

	a.AddPacket(testHeader(t, 1, 0, false), testPayload(t, 0x11))
	if !a.IsComplete() {
		t.Fatal("frame not complete after the missing packet arrived")
	}
}

func TestDuplicatePacketIdempotent(t *testing.T) {
	a := NewAssembler()

	a.AddPacket(testHeader(t, 1, 4, true), testPayload(t, 0x22))
	a.AddPacket(testHeader(t, 1, 4, true), testPayload(t, 0x22))
	if a.IsComplete() {
		t.Fatal("duplicate packet counted as a distinct packet")
	}
	if a.PacketCount() != 1 {
		t.Errorf("packet count = %d, expected 1", a.PacketCount())
	}

	a.AddPacket(testHeader(t, 1, 0, false), testPayload(t, 0x11))
	if !a.IsComplete() {
		t.Fatal("frame not complete")
	}

	// Re-adding after completion must not change the outcome.
	a.AddPacket(testHeader(t, 1, 0, false), testPayload(t, 0x11))
	if !a.IsComplete() || a.PacketCount() != 2 {
		t.Errorf("completion state changed by duplicate: complete=%v count=%d",
			a.IsComplete(), a.PacketCount())
	}
}

func TestFrameSwitchDiscardsState(t *testing.T) {
	a := NewAssembler()

	// Frame 1 is one packet short of completion: lines 0 and 8 (last) of a
	// three-packet frame.
	a.AddPacket(testHeader(t, 1, 0, false), testPayload(t, 0x11))
	a.AddPacket(testHeader(t, 1, 8, true), testPayload(t, 0x33))
	if a.IsComplete() {
		t.Fatal("frame 1 unexpectedly complete")
	}

	// Any packet for a different frame number drops everything.
	a.AddPacket(testHeader(t, 2, 0, false), testPayload(t, 0x44))
	if a.PacketCount() != 1 {
		t.Errorf("packet count after frame switch = %d, expected 1", a.PacketCount())
	}
	if a.Discarded() != 1 {
		t.Errorf("discarded = %d, expected 1", a.Discarded())
	}

	// Returning to frame 1 must start from scratch, never complete from
	// stale state.
	a.AddPacket(testHeader(t, 1, 4, false), testPayload(t, 0x22))
	if a.IsComplete() {
		t.Fatal("completion reported from discarded state")
	}
	if a.PacketCount() != 1 {
		t.Errorf("packet count after switching back = %d, expected 1", a.PacketCount())
	}
	if a.Discarded() != 2 {
		t.Errorf("discarded = %d, expected 2", a.Discarded())
	}
}

func TestMissingPacketLeavesZeroRegion(t *testing.T) {
	a := NewAssembler()

	// Height 12 frame (last packet at line 8, expected count 3). The line 4
	// packet never arrives; a stray line 12 packet supplies the third
	// distinct index and is clipped entirely.
	a.AddPacket(testHeader(t, 5, 0, false), testPayload(t, 0x11))
	a.AddPacket(testHeader(t, 5, 8, true), testPayload(t, 0x33))
	a.AddPacket(testHeader(t, 5, 12, false), testPayload(t, 0x44))

	frame, ok := a.Assemble()
	if !ok {
		t.Fatal("frame did not assemble")
	}
	if frame.Height != 12 {
		t.Fatalf("height = %d, expected 12", frame.Height)
	}

	checkRow := func(y int, want RGB) {
		t.Helper()
		for x := 0; x < frame.Width; x++ {
			if got := frame.At(x, y); got != want {
				t.Fatalf("pixel (%d,%d) = %+v, expected %+v", x, y, got, want)
			}
		}
	}

	for y := 0; y < 4; y++ {
		checkRow(y, Palette[1])
	}
	for y := 4; y < 8; y++ {
		checkRow(y, RGB{}) // region of the missing packet stays zero
	}
	for y := 8; y < 12; y++ {
		checkRow(y, Palette[3])
	}
}

func TestAssembleBeforeCompleteReturnsFalse(t *testing.T) {
	a := NewAssembler()
	if _, ok := a.Assemble(); ok {
		t.Fatal("empty assembler produced a frame")
	}

	a.AddPacket(testHeader(t, 1, 0, false), testPayload(t, 0x11))
	if _, ok := a.Assemble(); ok {
		t.Fatal("incomplete assembler produced a frame")
	}
}

func TestResetClearsState(t *testing.T) {
	a := NewAssembler()

	a.AddPacket(testHeader(t, 1, 0, false), testPayload(t, 0x11))
	a.Reset()

	if a.PacketCount() != 0 {
		t.Errorf("packet count after Reset = %d, expected 0", a.PacketCount())
	}
	if _, tracking := a.FrameNumber(); tracking {
		t.Error("assembler still tracking a frame after Reset")
	}

	// The first packet after a reset starts fresh without counting a
	// discard.
	a.AddPacket(testHeader(t, 1, 0, false), testPayload(t, 0x11))
	if a.Discarded() != 0 {
		t.Errorf("discarded = %d, expected 0", a.Discarded())
	}
}

func TestFullPALFrameEndToEnd(t *testing.T) {
	a := NewAssembler()

	const frameNum = 9
	packets := HeightPAL / protocol.LinesPerPacket

	for idx := 0; idx < packets; idx++ {
		line := uint16(idx * protocol.LinesPerPacket)
		payload := make([]byte, protocol.VideoPayloadSize)
		for sub := 0; sub < protocol.LinesPerPacket; sub++ {
			y := int(line) + sub
			for j := 0; j < protocol.BytesPerLine; j++ {
				payload[sub*protocol.BytesPerLine+j] = byte((j % 16) | ((y % 16) << 4))
			}
		}
		a.AddPacket(testHeader(t, frameNum, line, idx == packets-1), payload)
	}

	frame, ok := a.Assemble()
	if !ok {
		t.Fatal("full frame did not assemble")
	}
	if frame.Height != HeightPAL || frame.Format != FormatPAL {
		t.Fatalf("geometry = %dx%d %s, expected %dx%d PAL",
			frame.Width, frame.Height, frame.Format, protocol.PixelsPerLine, HeightPAL)
	}
	if frame.Number != frameNum {
		t.Errorf("frame number = %d, expected %d", frame.Number, frameNum)
	}

	for y := 0; y < frame.Height; y++ {
		for j := 0; j < protocol.BytesPerLine; j++ {
			wantLeft := Palette[j%16]
			wantRight := Palette[y%16]
			if got := frame.At(2*j, y); got != wantLeft {
				t.Fatalf("pixel (%d,%d) = %+v, expected %+v", 2*j, y, got, wantLeft)
			}
			if got := frame.At(2*j+1, y); got != wantRight {
				t.Fatalf("pixel (%d,%d) = %+v, expected %+v", 2*j+1, y, got, wantRight)
			}
		}
	}
}

func TestOutOfOrderNTSCFrame(t *testing.T) {
	a := NewAssembler()

	packets := HeightNTSC / protocol.LinesPerPacket

	// Deliver in reverse: the flagged last packet arrives first, the frame
	// completes only when the final missing index shows up.
	for idx := packets - 1; idx >= 0; idx-- {
		line := uint16(idx * protocol.LinesPerPacket)
		a.AddPacket(testHeader(t, 3, line, idx == packets-1), testPayload(t, 0x21))
		if idx > 0 && a.IsComplete() {
			t.Fatalf("complete with %d packets still missing", idx)
		}
	}

	frame, ok := a.Assemble()
	if !ok {
		t.Fatal("frame did not assemble")
	}
	if frame.Height != HeightNTSC || frame.Format != FormatNTSC {
		t.Fatalf("geometry = %dx%d %s, expected %dx%d NTSC",
			frame.Width, frame.Height, frame.Format, protocol.PixelsPerLine, HeightNTSC)
	}
}

// Helper functions for tests

func testHeader(t *testing.T, frame, line uint16, last bool) *protocol.VideoHeader {
	t.Helper()

	return &protocol.VideoHeader{
		Frame:          frame,
		Line:           line,
		PixelsPerLine:  protocol.PixelsPerLine,
		LinesPerPacket: protocol.LinesPerPacket,
		BitsPerPixel:   protocol.BitsPerPixel,
		LastPacket:     last,
	}
}

func testPayload(t *testing.T, fill byte) []byte {
	t.Helper()

	payload := make([]byte, protocol.VideoPayloadSize)
	for i := range payload {
		payload[i] = fill
	}
	return payload
}
