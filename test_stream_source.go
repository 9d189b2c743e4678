package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"math"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Fake Ultimate 64: listens on the TCP command port, decodes start/stop
// commands, and streams a synthetic PAL color-bar picture plus a 440 Hz
// stereo tone to the requested target at roughly real-time pacing.

const (
	pixelsPerLine   = 384
	bytesPerLine    = 192
	linesPerFrame   = 272 // PAL
	linesPerPacket  = 4
	packetsPerFrame = linesPerFrame / linesPerPacket
	videoHeaderSize = 12
	videoPacketSize = videoHeaderSize + linesPerPacket*bytesPerLine

	audioHeaderSize  = 2
	samplesPerPacket = 192
	audioPacketSize  = audioHeaderSize + samplesPerPacket*4
	sampleRate       = 47976

	lastPacketFlag = 0x8000
)

var (
	framesSent uint64
	audioSent  uint64
)

// streams holds the current UDP targets. A nil connection means the stream
// is stopped.
type streams struct {
	mu    sync.Mutex
	video *net.UDPConn
	audio *net.UDPConn
}

func (s *streams) start(id byte, target string) {
	addr, err := net.ResolveUDPAddr("udp", target)
	if err != nil {
		log.Printf("❌ Bad stream target %q: %v", target, err)
		return
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		log.Printf("❌ Cannot dial %s: %v", target, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch id {
	case 0:
		if s.video != nil {
			s.video.Close()
		}
		s.video = conn
	case 1:
		if s.audio != nil {
			s.audio.Close()
		}
		s.audio = conn
	default:
		conn.Close()
		log.Printf("❌ Unknown stream id %d", id)
	}
}

func (s *streams) stop(id byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch id {
	case 0:
		if s.video != nil {
			s.video.Close()
			s.video = nil
		}
	case 1:
		if s.audio != nil {
			s.audio.Close()
			s.audio = nil
		}
	}
}

func (s *streams) videoConn() *net.UDPConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.video
}

func (s *streams) audioConn() *net.UDPConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audio
}

func streamName(id byte) string {
	switch id {
	case 0:
		return "video"
	case 1:
		return "audio"
	default:
		return fmt.Sprintf("stream(%d)", id)
	}
}

// handleControl reads commands off one control connection. The real machine
// accepts one command per connection, but tolerating several costs nothing.
func handleControl(conn net.Conn, s *streams) {
	defer conn.Close()

	buf := make([]byte, 256)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		handleCommand(buf[:n], s)
	}
}

func handleCommand(cmd []byte, s *streams) {
	if len(cmd) < 4 || cmd[1] != 0xFF {
		log.Printf("❌ Malformed command: % x", cmd)
		return
	}

	id := cmd[0] & 0x0F
	switch cmd[0] & 0xF0 {
	case 0x20:
		paramLen := int(binary.LittleEndian.Uint16(cmd[2:4]))
		if len(cmd) < 6 || paramLen < 2 || len(cmd) < 4+paramLen {
			log.Printf("❌ Truncated start command: % x", cmd)
			return
		}
		duration := binary.LittleEndian.Uint16(cmd[4:6])
		target := string(cmd[6 : 4+paramLen])

		log.Printf("🎬 START %s → %s (duration=%d)", streamName(id), target, duration)
		s.start(id, target)

	case 0x30:
		log.Printf("🛑 STOP %s", streamName(id))
		s.stop(id)

	default:
		log.Printf("❌ Unknown command byte 0x%02x", cmd[0])
	}
}

// colorBarLine builds one line of packed 4-bit pixels: sixteen vertical
// bars, one per palette entry, low nibble is the left pixel of each pair.
func colorBarLine() []byte {
	line := make([]byte, bytesPerLine)
	barWidth := pixelsPerLine / 16
	for x := 0; x < pixelsPerLine; x += 2 {
		left := byte(x / barWidth)
		right := byte((x + 1) / barWidth)
		line[x/2] = left&0x0F | (right&0x0F)<<4
	}
	return line
}

func videoLoop(s *streams) {
	line := colorBarLine()
	payload := make([]byte, linesPerPacket*bytesPerLine)
	for i := 0; i < linesPerPacket; i++ {
		copy(payload[i*bytesPerLine:], line)
	}

	var seq, frame uint16
	pkt := make([]byte, videoPacketSize)

	ticker := time.NewTicker(20 * time.Millisecond) // 50 fps PAL cadence
	defer ticker.Stop()

	for range ticker.C {
		conn := s.videoConn()
		if conn == nil {
			continue
		}

		for p := 0; p < packetsPerFrame; p++ {
			lineNum := uint16(p * linesPerPacket)
			if p == packetsPerFrame-1 {
				lineNum |= lastPacketFlag
			}

			binary.LittleEndian.PutUint16(pkt[0:2], seq)
			binary.LittleEndian.PutUint16(pkt[2:4], frame)
			binary.LittleEndian.PutUint16(pkt[4:6], lineNum)
			binary.LittleEndian.PutUint16(pkt[6:8], pixelsPerLine)
			pkt[8] = linesPerPacket
			pkt[9] = 4 // bits per pixel
			pkt[10] = 0
			pkt[11] = 0
			copy(pkt[videoHeaderSize:], payload)

			conn.Write(pkt)
			seq++
		}

		frame++
		atomic.AddUint64(&framesSent, 1)
	}
}

func audioLoop(s *streams) {
	// 192 sample pairs per packet at 47976 Hz is one packet every ~4 ms.
	nsPerSecond := float64(time.Second)
	interval := time.Duration(nsPerSecond * samplesPerPacket / sampleRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var seq uint16
	var phase float64
	step := 2 * math.Pi * 440 / sampleRate
	pkt := make([]byte, audioPacketSize)

	for range ticker.C {
		conn := s.audioConn()
		if conn == nil {
			continue
		}

		binary.LittleEndian.PutUint16(pkt[0:2], seq)
		seq++

		for i := 0; i < samplesPerPacket; i++ {
			v := int16(12000 * math.Sin(phase))
			phase += step
			binary.LittleEndian.PutUint16(pkt[audioHeaderSize+i*4:], uint16(v))
			binary.LittleEndian.PutUint16(pkt[audioHeaderSize+i*4+2:], uint16(v))
		}
		if phase > 2*math.Pi {
			phase -= 2 * math.Pi
		}

		conn.Write(pkt)
		atomic.AddUint64(&audioSent, 1)
	}
}

func statsLoop() {
	for range time.Tick(5 * time.Second) {
		log.Printf("📊 Sent %d frames, %d audio packets",
			atomic.LoadUint64(&framesSent), atomic.LoadUint64(&audioSent))
	}
}

func main() {
	controlAddr := flag.String("control", ":64", "TCP command port listen address")
	target := flag.String("target", "", "Stream to this host immediately instead of waiting for a start command")
	videoPort := flag.Int("video-port", 11000, "Video target port used with -target")
	audioPort := flag.Int("audio-port", 11001, "Audio target port used with -target")
	flag.Parse()

	s := &streams{}

	go videoLoop(s)
	go audioLoop(s)
	go statsLoop()

	if *target != "" {
		v := net.JoinHostPort(*target, fmt.Sprintf("%d", *videoPort))
		a := net.JoinHostPort(*target, fmt.Sprintf("%d", *audioPort))
		log.Printf("🎬 Streaming immediately to %s / %s", v, a)
		s.start(0, v)
		s.start(1, a)
	}

	ln, err := net.Listen("tcp", *controlAddr)
	if err != nil {
		log.Fatal("Control listener failed to start: ", err)
	}

	log.Printf("🚀 Fake Ultimate 64 command port on %s", *controlAddr)
	log.Printf("💡 Point the viewer at this host, or use -target to push streams directly")

	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Fatal("Accept failed: ", err)
		}
		go handleControl(conn, s)
	}
}
