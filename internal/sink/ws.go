package sink

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/kcalvelli/c64-stream-viewer/internal/audio"
	"github.com/kcalvelli/c64-stream-viewer/internal/metrics"
	"github.com/kcalvelli/c64-stream-viewer/internal/video"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Per-client send buffer in messages. A stalled client starts
	// losing messages instead of stalling the pipeline.
	clientBuffer = 16
)

// frameMessage is the wire form of a completed frame.
type frameMessage struct {
	Type   string `msgpack:"type"`
	Number uint16 `msgpack:"number"`
	Width  int    `msgpack:"width"`
	Height int    `msgpack:"height"`
	Format string `msgpack:"format"`
	Pix    []byte `msgpack:"pix"`
}

// audioMessage is the wire form of a filtered audio block, samples as
// little-endian signed 16-bit interleaved stereo.
type audioMessage struct {
	Type       string `msgpack:"type"`
	SampleRate int    `msgpack:"sample_rate"`
	Samples    []byte `msgpack:"samples"`
}

type wsClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub fans decoded frames and audio blocks out to WebSocket clients as
// msgpack-encoded binary messages. Each client gets a buffered send
// channel; messages to a full channel are dropped rather than letting a
// slow client hold back the stream.
type Hub struct {
	logger     *slog.Logger
	sampleRate int
	metrics    *metrics.Metrics // nil disables gauge updates
	upgrader   websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*wsClient
	closed  bool

	sent    uint64
	dropped uint64
}

// HubStats describes fan-out activity for the stats endpoint
type HubStats struct {
	Clients int    `json:"clients"`
	Sent    uint64 `json:"messages_sent"`
	Dropped uint64 `json:"messages_dropped"`
}

// NewHub creates a WebSocket fan-out hub. m may be nil to skip the
// viewer count gauge.
func NewHub(logger *slog.Logger, sampleRate int, m *metrics.Metrics) *Hub {
	return &Hub{
		logger:     logger,
		sampleRate: sampleRate,
		metrics:    m,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // viewer clients connect from anywhere on the LAN
			},
		},
		clients: make(map[string]*wsClient),
	}
}

// Name identifies the sink in logs
func (h *Hub) Name() string {
	return "websocket"
}

// ServeWS upgrades an HTTP request and registers the connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed",
			slog.String("remote", r.RemoteAddr),
			slog.String("error", err.Error()),
		)
		return
	}

	client := &wsClient{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, clientBuffer),
	}

	h.mu.Lock()
	h.clients[client.id] = client
	count := len(h.clients)
	h.mu.Unlock()

	h.setClientGauge(count)
	h.logger.Info("WebSocket client connected",
		slog.String("client_id", client.id),
		slog.String("remote", r.RemoteAddr),
		slog.Int("clients", count),
	)

	go h.writePump(client)
	go h.readPump(client)
}

// WriteFrame broadcasts a completed frame to all clients.
func (h *Hub) WriteFrame(frame *video.Frame) error {
	data, err := msgpack.Marshal(frameMessage{
		Type:   "frame",
		Number: frame.Number,
		Width:  frame.Width,
		Height: frame.Height,
		Format: frame.Format.String(),
		Pix:    frame.Pix,
	})
	if err != nil {
		return fmt.Errorf("failed to encode frame message: %w", err)
	}

	h.broadcast(data)
	return nil
}

// WriteAudio broadcasts a filtered audio block to all clients.
func (h *Hub) WriteAudio(samples []int16) error {
	data, err := msgpack.Marshal(audioMessage{
		Type:       "audio",
		SampleRate: h.sampleRate,
		Samples:    audio.BytesFromSamples(samples),
	})
	if err != nil {
		return fmt.Errorf("failed to encode audio message: %w", err)
	}

	h.broadcast(data)
	return nil
}

// broadcast offers the message to every client, dropping per client
// when the send buffer is full.
func (h *Hub) broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return
	}

	for _, client := range h.clients {
		select {
		case client.send <- data:
			atomic.AddUint64(&h.sent, 1)
		default:
			atomic.AddUint64(&h.dropped, 1)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns fan-out statistics.
func (h *Hub) Stats() HubStats {
	return HubStats{
		Clients: h.ClientCount(),
		Sent:    atomic.LoadUint64(&h.sent),
		Dropped: atomic.LoadUint64(&h.dropped),
	}
}

// Close disconnects every client and rejects further upgrades.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	clients := h.clients
	h.clients = make(map[string]*wsClient)
	h.mu.Unlock()

	h.setClientGauge(0)
	for _, client := range clients {
		close(client.send)
	}

	return nil
}

func (h *Hub) setClientGauge(count int) {
	if h.metrics != nil {
		h.metrics.SetWSClients(count)
	}
}

func (h *Hub) unregister(client *wsClient) {
	h.mu.Lock()
	_, registered := h.clients[client.id]
	if registered {
		delete(h.clients, client.id)
	}
	count := len(h.clients)
	h.mu.Unlock()

	if registered {
		close(client.send)
		h.setClientGauge(count)
		h.logger.Info("WebSocket client disconnected",
			slog.String("client_id", client.id),
			slog.Int("clients", count),
		)
	}
}

// writePump drains the client's send channel onto the connection and
// keeps it alive with pings.
func (h *Hub) writePump(client *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case data, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client messages; the stream is one-way. Its job is
// pong handling and noticing the disconnect.
func (h *Hub) readPump(client *wsClient) {
	defer func() {
		h.unregister(client)
		client.conn.Close()
	}()

	client.conn.SetReadLimit(512)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}
