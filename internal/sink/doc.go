// Package sink delivers decoded frames and filtered audio to their
// consumers. Sinks are the pluggable back half of the pipeline: the
// snapshot store and PNG dumper, the WAV recorder, and the WebSocket
// fan-out hub all sit behind the same two small interfaces so the
// stream sessions never know where their output goes.
package sink
