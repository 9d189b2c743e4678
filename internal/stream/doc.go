// Package stream manages the video and audio stream sessions. It wires the
// packet decoders to the frame assembler, the DC filter and the configured
// sinks, tracks per-session statistics, and resets stale state when a stream
// goes idle.
package stream
