// Package server implements the UDP receivers for the video and audio
// streams and the HTTP API for monitoring, frame snapshots and live
// WebSocket viewing.
package server
