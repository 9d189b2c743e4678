// Package video reconstructs displayable frames from the Ultimate 64 video
// stream: the fixed VIC-II palette, packed 4-bit pixel expansion, and a
// loss-tolerant frame assembler that derives frame geometry from the
// in-band last-packet marker.
package video
