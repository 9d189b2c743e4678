package audio

import "testing"

// makeStereo builds an interleaved block with the same value on both channels.
func makeStereo(t *testing.T, values ...int16) []int16 {
	t.Helper()
	block := make([]int16, 0, len(values)*2)
	for _, v := range values {
		block = append(block, v, v)
	}
	return block
}

func TestDCBlockerRemovesConstantOffset(t *testing.T) {
	b := NewDCBlocker()

	// A constant input is pure DC. The first output passes through,
	// then the filter decays the offset toward zero.
	block := make([]int16, 4000*Channels)
	for i := range block {
		block[i] = 1000
	}
	out := b.ProcessBlock(block)

	if out[0] != 1000 || out[1] != 1000 {
		t.Errorf("Expected first pair to pass through as 1000, got %d, %d", out[0], out[1])
	}

	// Decay is monotonic per channel.
	for i := Channels * 2; i < len(out); i += Channels {
		if out[i] > out[i-Channels] {
			t.Fatalf("Output rose from %d to %d at sample %d", out[i-Channels], out[i], i)
		}
	}

	last := out[len(out)-2:]
	if last[0] != 0 || last[1] != 0 {
		t.Errorf("Expected constant input to settle at 0, got %d, %d", last[0], last[1])
	}
}

func TestDCBlockerImpulseResponse(t *testing.T) {
	b := NewDCBlocker()

	block := makeStereo(t, 1000, 0, 0, 0)
	out := b.ProcessBlock(block)

	// y0 = 1000, y1 = 0 - 1000 + 0.995*1000 = -5, then a slow decay
	// that still rounds to -5.
	expected := []int16{1000, 1000, -5, -5, -5, -5, -5, -5}
	for i, want := range expected {
		if out[i] != want {
			t.Errorf("Sample %d: expected %d, got %d", i, want, out[i])
		}
	}
}

func TestDCBlockerStatePersistsAcrossBlocks(t *testing.T) {
	// Splitting the input into blocks must not change the output.
	input := makeStereo(t, 1000, 500, -200, 0, 0, 300)

	whole := NewDCBlocker()
	wholeOut := whole.ProcessBlock(append([]int16{}, input...))

	split := NewDCBlocker()
	first := split.ProcessBlock(append([]int16{}, input[:4]...))
	second := split.ProcessBlock(append([]int16{}, input[4:]...))
	splitOut := append(first, second...)

	if len(splitOut) != len(wholeOut) {
		t.Fatalf("Expected %d samples, got %d", len(wholeOut), len(splitOut))
	}
	for i := range wholeOut {
		if splitOut[i] != wholeOut[i] {
			t.Errorf("Sample %d: whole %d, split %d", i, wholeOut[i], splitOut[i])
		}
	}
}

func TestDCBlockerChannelsAreIndependent(t *testing.T) {
	b := NewDCBlocker()

	block := []int16{1000, -500, 0, 0}
	out := b.ProcessBlock(block)

	if out[0] != 1000 || out[1] != -500 {
		t.Errorf("Expected first pair 1000, -500, got %d, %d", out[0], out[1])
	}
	// y1 = -x0 + 0.995*x0 = -0.005*x0 per channel.
	if out[2] != -5 || out[3] != 3 {
		t.Errorf("Expected second pair -5, 3, got %d, %d", out[2], out[3])
	}
}

func TestDCBlockerClampsOverflow(t *testing.T) {
	b := NewDCBlocker()

	// A full negative-to-positive swing overshoots the int16 range:
	// y1 = 32767 - (-32768) + 0.995*(-32768) = 32930.84.
	block := makeStereo(t, -32768, 32767)
	out := b.ProcessBlock(block)

	if out[0] != -32768 || out[1] != -32768 {
		t.Errorf("Expected first pair -32768, got %d, %d", out[0], out[1])
	}
	if out[2] != 32767 || out[3] != 32767 {
		t.Errorf("Expected clamped pair 32767, got %d, %d", out[2], out[3])
	}
}

func TestDCBlockerReset(t *testing.T) {
	b := NewDCBlocker()
	b.ProcessBlock(makeStereo(t, 1000, 2000, 3000))

	b.Reset()

	out := b.ProcessBlock(makeStereo(t, 1000))
	if out[0] != 1000 || out[1] != 1000 {
		t.Errorf("Expected pass-through after reset, got %d, %d", out[0], out[1])
	}
}

func TestDCBlockerEmptyBlock(t *testing.T) {
	b := NewDCBlocker()
	out := b.ProcessBlock(nil)
	if len(out) != 0 {
		t.Errorf("Expected empty output, got %d samples", len(out))
	}
}
