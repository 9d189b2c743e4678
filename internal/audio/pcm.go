package audio

import "encoding/binary"

// Stream audio format: interleaved stereo, 16-bit signed little-endian.
const (
	Channels          = 2
	BitDepth          = 16
	DefaultSampleRate = 47976 // measured output rate of the capture unit
)

// SamplesFromBytes decodes little-endian signed 16-bit PCM bytes into
// samples. The byte order on the wire is L,R,L,R interleaved; the returned
// slice keeps that interleaving. A trailing odd byte is ignored.
func SamplesFromBytes(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}

// BytesFromSamples encodes interleaved samples back to little-endian
// signed 16-bit PCM bytes.
func BytesFromSamples(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	return data
}
