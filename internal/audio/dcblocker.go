package audio

import "math"

// dcAlpha is the feedback coefficient of the DC-blocking filter. The
// cutoff it sets is well below audibility at the stream's sample rate.
const dcAlpha = 0.995

// DCBlocker is a first-order recursive high-pass filter that removes DC
// bias from the interleaved stereo stream. Per channel it computes
//
//	y[n] = x[n] - x[n-1] + alpha*y[n-1]
//
// and carries the x[n-1]/y[n-1] state across packet boundaries so no click
// is introduced where packets meet.
//
// Filter state is a function of sample order, so a blocker must only ever
// be driven sequentially in reception order. It is not safe for concurrent
// use.
type DCBlocker struct {
	lastInput  [Channels]float64
	lastOutput [Channels]float64
}

// NewDCBlocker creates a filter with zeroed state, matching a stream that
// starts from silence.
func NewDCBlocker() *DCBlocker {
	return &DCBlocker{}
}

// ProcessBlock filters one block of interleaved stereo samples in place
// and returns the same slice. Output order and count always match the
// input; there is no buffering delay beyond the one-sample filter state.
func (d *DCBlocker) ProcessBlock(samples []int16) []int16 {
	for i, s := range samples {
		ch := i % Channels
		samples[i] = clampSample(d.processSample(ch, float64(s)))
	}
	return samples
}

// processSample advances the recurrence for one channel and returns the
// unclamped filter output.
func (d *DCBlocker) processSample(ch int, x float64) float64 {
	y := x - d.lastInput[ch] + dcAlpha*d.lastOutput[ch]
	d.lastInput[ch] = x
	d.lastOutput[ch] = y
	return y
}

// Reset zeroes the filter state. Only for stream restarts; resetting
// mid-stream reintroduces the start-up transient.
func (d *DCBlocker) Reset() {
	for ch := 0; ch < Channels; ch++ {
		d.lastInput[ch] = 0
		d.lastOutput[ch] = 0
	}
}

func clampSample(y float64) int16 {
	r := math.Round(y)
	if r > math.MaxInt16 {
		return math.MaxInt16
	}
	if r < math.MinInt16 {
		return math.MinInt16
	}
	return int16(r)
}
