package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kcalvelli/c64-stream-viewer/internal/config"
	"github.com/kcalvelli/c64-stream-viewer/internal/metrics"
	"github.com/kcalvelli/c64-stream-viewer/internal/stream"
)

// UDPServer receives the video and audio datagram streams, one port each.
// Every port gets exactly one receive goroutine and datagrams are handed to
// the stream manager synchronously on it: assembler and filter state depend
// on arrival order, so a worker pool would corrupt frames and audio alike.
type UDPServer struct {
	cfg     *config.ServerConfig
	logger  *slog.Logger
	mgr     *stream.Manager
	metrics *metrics.Metrics

	videoConn *net.UDPConn
	audioConn *net.UDPConn

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	mu             sync.RWMutex
	videoDatagrams uint64
	audioDatagrams uint64
	readErrors     uint64
}

// ServerStatistics represents receiver performance counters
type ServerStatistics struct {
	VideoDatagrams uint64 `json:"video_datagrams"`
	AudioDatagrams uint64 `json:"audio_datagrams"`
	ReadErrors     uint64 `json:"read_errors"`
}

// NewUDPServer creates a new UDP receiver instance
func NewUDPServer(cfg *config.ServerConfig, logger *slog.Logger, mgr *stream.Manager, m *metrics.Metrics) *UDPServer {
	ctx, cancel := context.WithCancel(context.Background())

	return &UDPServer{
		cfg:     cfg,
		logger:  logger,
		mgr:     mgr,
		metrics: m,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start binds both stream ports and launches the receive loops.
func (s *UDPServer) Start() error {
	videoConn, err := s.listen(s.cfg.VideoPort)
	if err != nil {
		return fmt.Errorf("failed to bind video port: %w", err)
	}
	s.videoConn = videoConn

	audioConn, err := s.listen(s.cfg.AudioPort)
	if err != nil {
		videoConn.Close()
		return fmt.Errorf("failed to bind audio port: %w", err)
	}
	s.audioConn = audioConn

	s.logger.Info("UDP server started",
		slog.String("video_address", videoConn.LocalAddr().String()),
		slog.String("audio_address", audioConn.LocalAddr().String()),
		slog.Int("buffer_size", s.cfg.BufferSize),
	)

	g, ctx := errgroup.WithContext(s.ctx)
	s.group = g

	g.Go(func() error {
		return s.receiveLoop(ctx, s.videoConn, "video", s.handleVideoDatagram)
	})
	g.Go(func() error {
		return s.receiveLoop(ctx, s.audioConn, "audio", s.handleAudioDatagram)
	})

	return nil
}

// Stop gracefully stops both receive loops
func (s *UDPServer) Stop() error {
	s.logger.Info("Stopping UDP server...")

	s.cancel()

	if s.videoConn != nil {
		if err := s.videoConn.Close(); err != nil {
			s.logger.Warn("Error closing video connection", slog.String("error", err.Error()))
		}
	}
	if s.audioConn != nil {
		if err := s.audioConn.Close(); err != nil {
			s.logger.Warn("Error closing audio connection", slog.String("error", err.Error()))
		}
	}

	if s.group != nil {
		if err := s.group.Wait(); err != nil {
			s.logger.Warn("Receive loop error during shutdown", slog.String("error", err.Error()))
		}
	}

	stats := s.GetStatistics()
	s.logger.Info("UDP server stopped",
		slog.Uint64("video_datagrams", stats.VideoDatagrams),
		slog.Uint64("audio_datagrams", stats.AudioDatagrams),
		slog.Uint64("read_errors", stats.ReadErrors),
	)

	return nil
}

// VideoAddr returns the bound video listener address, nil before Start.
func (s *UDPServer) VideoAddr() net.Addr {
	if s.videoConn == nil {
		return nil
	}
	return s.videoConn.LocalAddr()
}

// AudioAddr returns the bound audio listener address, nil before Start.
func (s *UDPServer) AudioAddr() net.Addr {
	if s.audioConn == nil {
		return nil
	}
	return s.audioConn.LocalAddr()
}

func (s *UDPServer) listen(port int) (*net.UDPConn, error) {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", s.cfg.BindAddress, port))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on UDP: %w", err)
	}

	if err := conn.SetReadBuffer(s.cfg.BufferSize); err != nil {
		s.logger.Warn("Failed to set UDP read buffer size",
			slog.Int("buffer_size", s.cfg.BufferSize),
			slog.String("error", err.Error()),
		)
	}

	return conn, nil
}

// receiveLoop reads datagrams from one connection until the context is
// canceled. Each datagram is copied out of the read buffer before the
// handler runs, since handlers retain payload slices past the call.
func (s *UDPServer) receiveLoop(ctx context.Context, conn *net.UDPConn, medium string, handle func([]byte, net.Addr)) error {
	// The largest datagram on the wire is 780 bytes; anything bigger gets
	// truncated and rejected by the parser.
	buffer := make([]byte, 2048)

	s.logger.Debug("Receive loop started", slog.String("medium", medium))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Receive loop stopping", slog.String("medium", medium))
			return nil
		default:
		}

		// Read deadline so the loop can notice cancellation periodically.
		if err := conn.SetReadDeadline(time.Now().Add(1 * time.Second)); err != nil {
			s.logger.Error("Failed to set read deadline",
				slog.String("medium", medium),
				slog.String("error", err.Error()),
			)
			continue
		}

		n, addr, err := conn.ReadFromUDP(buffer)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}

			select {
			case <-ctx.Done():
				return nil
			default:
				s.mu.Lock()
				s.readErrors++
				s.mu.Unlock()
				s.logger.Error("Failed to read datagram",
					slog.String("medium", medium),
					slog.String("error", err.Error()),
				)
				continue
			}
		}

		data := make([]byte, n)
		copy(data, buffer[:n])

		handle(data, addr)
	}
}

func (s *UDPServer) handleVideoDatagram(data []byte, from net.Addr) {
	s.metrics.RecordVideoPacket()
	s.mu.Lock()
	s.videoDatagrams++
	s.mu.Unlock()

	s.mgr.HandleVideoDatagram(data, from)
}

func (s *UDPServer) handleAudioDatagram(data []byte, from net.Addr) {
	s.metrics.RecordAudioPacket()
	s.mu.Lock()
	s.audioDatagrams++
	s.mu.Unlock()

	s.mgr.HandleAudioDatagram(data, from)
}

// GetStatistics returns current receiver statistics
func (s *UDPServer) GetStatistics() ServerStatistics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return ServerStatistics{
		VideoDatagrams: s.videoDatagrams,
		AudioDatagrams: s.audioDatagrams,
		ReadErrors:     s.readErrors,
	}
}
