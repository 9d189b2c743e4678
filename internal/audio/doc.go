// Package audio handles the stream's PCM path: sample conversion for the
// interleaved little-endian stereo format, a stateful DC-blocking filter
// that carries per-channel state across packet boundaries, and WAV
// encoding for recording sinks.
package audio
