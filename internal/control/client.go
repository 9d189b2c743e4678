package control

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Commander starts and stops individual hardware streams. Implementations
// must not retry on their own: a stream that fails to start is reported
// to the operator, and the receive path keeps waiting for datagrams
// regardless.
type Commander interface {
	StartStream(ctx context.Context, stream StreamID, ip string, port int, duration uint16) error
	StopStream(ctx context.Context, stream StreamID) error
}

// Config contains command channel configuration
type Config struct {
	Host    string
	Port    int
	Timeout time.Duration
}

// Client sends binary commands to the machine's TCP command port. Each
// command opens a fresh connection, writes once and closes; the machine
// sends no reply.
type Client struct {
	config Config
}

// NewClient creates a TCP command client for the machine at config.Host.
func NewClient(config Config) (*Client, error) {
	if config.Host == "" {
		return nil, fmt.Errorf("host cannot be empty")
	}

	if config.Port <= 0 {
		config.Port = ControlPort
	}

	if config.Timeout <= 0 {
		config.Timeout = 2 * time.Second
	}

	return &Client{config: config}, nil
}

// StartStream asks the machine to begin sending the given stream to ip:port.
func (c *Client) StartStream(ctx context.Context, stream StreamID, ip string, port int, duration uint16) error {
	if err := c.send(ctx, EncodeStart(stream, ip, port, duration)); err != nil {
		return fmt.Errorf("failed to start %s stream: %w", stream, err)
	}
	return nil
}

// StopStream asks the machine to stop sending the given stream.
func (c *Client) StopStream(ctx context.Context, stream StreamID) error {
	if err := c.send(ctx, EncodeStop(stream)); err != nil {
		return fmt.Errorf("failed to stop %s stream: %w", stream, err)
	}
	return nil
}

// send writes one command over a fresh connection, single attempt.
func (c *Client) send(ctx context.Context, cmd []byte) error {
	addr := net.JoinHostPort(c.config.Host, strconv.Itoa(c.config.Port))

	dialer := net.Dialer{Timeout: c.config.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(c.config.Timeout)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}

	if _, err := conn.Write(cmd); err != nil {
		return fmt.Errorf("failed to write command: %w", err)
	}

	return nil
}

// StartAV starts the video and audio streams toward the given local
// address. Both streams are attempted even if one fails.
func StartAV(ctx context.Context, c Commander, ip string, videoPort, audioPort int, duration uint16) error {
	videoErr := c.StartStream(ctx, StreamVideo, ip, videoPort, duration)
	audioErr := c.StartStream(ctx, StreamAudio, ip, audioPort, duration)
	return errors.Join(videoErr, audioErr)
}

// StopAV stops the video and audio streams.
func StopAV(ctx context.Context, c Commander) error {
	videoErr := c.StopStream(ctx, StreamVideo)
	audioErr := c.StopStream(ctx, StreamAudio)
	return errors.Join(videoErr, audioErr)
}
