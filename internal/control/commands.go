package control

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
)

// Stream identifiers understood by the command port.
type StreamID uint8

const (
	StreamVideo StreamID = 0
	StreamAudio StreamID = 1
)

// String returns the stream name for logs.
func (s StreamID) String() string {
	switch s {
	case StreamVideo:
		return "video"
	case StreamAudio:
		return "audio"
	default:
		return fmt.Sprintf("stream(%d)", uint8(s))
	}
}

const (
	// ControlPort is the fixed TCP command port on the machine.
	ControlPort = 64

	startCommandBase = 0x20
	stopCommandBase  = 0x30
	commandMarker    = 0xFF
)

// EncodeStart encodes a stream start command. The machine will send the
// stream to ip:port for duration ticks, or until stopped when duration
// is zero.
func EncodeStart(stream StreamID, ip string, port int, duration uint16) []byte {
	target := net.JoinHostPort(ip, strconv.Itoa(port))

	// Parameters are the 2-byte duration followed by the target address.
	paramLen := uint16(2 + len(target))

	cmd := make([]byte, 6+len(target))
	cmd[0] = startCommandBase + byte(stream)
	cmd[1] = commandMarker
	binary.LittleEndian.PutUint16(cmd[2:4], paramLen)
	binary.LittleEndian.PutUint16(cmd[4:6], duration)
	copy(cmd[6:], target)

	return cmd
}

// EncodeStop encodes a stream stop command. Stop carries no parameters.
func EncodeStop(stream StreamID) []byte {
	cmd := make([]byte, 4)
	cmd[0] = stopCommandBase + byte(stream)
	cmd[1] = commandMarker
	binary.LittleEndian.PutUint16(cmd[2:4], 0)

	return cmd
}
