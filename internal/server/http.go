package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kcalvelli/c64-stream-viewer/internal/config"
	"github.com/kcalvelli/c64-stream-viewer/internal/metrics"
	"github.com/kcalvelli/c64-stream-viewer/internal/sink"
	"github.com/kcalvelli/c64-stream-viewer/internal/stream"
)

// HTTPServer provides HTTP API endpoints for monitoring and live viewing
type HTTPServer struct {
	server    *http.Server
	logger    *slog.Logger
	config    *config.Config
	streamMgr *stream.Manager
	udpServer *UDPServer
	metrics   *metrics.Metrics
	snapshot  *sink.Snapshot
	hub       *sink.Hub

	startTime time.Time
}

// NewHTTPServer creates a new HTTP API server. snapshot and hub may be nil,
// in which case /frame.png answers 404 and /ws is not routed.
func NewHTTPServer(cfg config.HTTPConfig, logger *slog.Logger,
	appConfig *config.Config, streamMgr *stream.Manager, udpServer *UDPServer,
	m *metrics.Metrics, snapshot *sink.Snapshot, hub *sink.Hub) *HTTPServer {

	h := &HTTPServer{
		logger:    logger,
		config:    appConfig,
		streamMgr: streamMgr,
		udpServer: udpServer,
		metrics:   m,
		snapshot:  snapshot,
		hub:       hub,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	// Health check endpoint
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))

	// Stream monitoring endpoints
	mux.HandleFunc("/streams", h.withMetrics("/streams", h.handleStreams))
	mux.HandleFunc("/streams/video", h.withMetrics("/streams/video", h.handleVideoStream))
	mux.HandleFunc("/streams/audio", h.withMetrics("/streams/audio", h.handleAudioStream))

	// Latest frame snapshot
	mux.HandleFunc("/frame.png", h.withMetrics("/frame.png", h.handleFramePNG))

	// Live WebSocket stream; the hub handles the upgrade itself
	if h.hub != nil {
		mux.HandleFunc("/ws", h.hub.ServeWS)
	}

	// Configuration endpoint
	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))

	// Statistics endpoint
	mux.HandleFunc("/stats", h.withMetrics("/stats", h.handleStats))

	// Prometheus metrics endpoint (no metrics needed for metrics endpoint)
	mux.Handle("/metrics", promhttp.Handler())

	// Root endpoint with API documentation
	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		// Create a response writer wrapper to capture status code
		ww := &responseWriter{ResponseWriter: w, statusCode: 200}

		// Call the original handler
		handler(ww, r)

		// Record metrics
		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		// Record error if status code indicates an error
		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP API server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	return h.server.Shutdown(ctx)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(h.startTime)
	udpStats := h.udpServer.GetStatistics()
	videoInfo := h.streamMgr.VideoInfo()
	audioInfo := h.streamMgr.AudioInfo()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    uptime.String(),
		"service": map[string]interface{}{
			"name":    "c64-stream-viewer",
			"version": "1.0.0",
		},
		"components": map[string]interface{}{
			"udp_server": map[string]interface{}{
				"status":          "running",
				"video_datagrams": udpStats.VideoDatagrams,
				"audio_datagrams": udpStats.AudioDatagrams,
				"read_errors":     udpStats.ReadErrors,
			},
			"video_stream": map[string]interface{}{
				"frames_completed": videoInfo.FramesCompleted,
				"format":           videoInfo.Format,
				"fps":              videoInfo.FPS,
			},
			"audio_stream": map[string]interface{}{
				"packets_received": audioInfo.PacketsReceived,
				"queue_depth":      audioInfo.QueueDepth,
				"blocks_dropped":   audioInfo.BlocksDropped,
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

// handleStreams implements the /streams endpoint
func (h *HTTPServer) handleStreams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := h.streamMgr.Info()

	response := map[string]interface{}{
		"timestamp": time.Now().UTC(),
		"video":     snap.Video,
		"audio":     snap.Audio,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleVideoStream implements the /streams/video endpoint
func (h *HTTPServer) handleVideoStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.streamMgr.VideoInfo())
}

// handleAudioStream implements the /streams/audio endpoint
func (h *HTTPServer) handleAudioStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.streamMgr.AudioInfo())
}

// handleFramePNG implements the /frame.png endpoint. It answers 404 until
// the first frame has been assembled.
func (h *HTTPServer) handleFramePNG(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.snapshot == nil {
		http.Error(w, "Snapshot sink not configured", http.StatusNotFound)
		return
	}

	data, err := h.snapshot.EncodePNG()
	if err != nil {
		http.Error(w, "No frame assembled yet", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Return sanitized configuration (remove sensitive data)
	sanitizedConfig := map[string]interface{}{
		"server": map[string]interface{}{
			"bind_address": h.config.Server.BindAddress,
			"video_port":   h.config.Server.VideoPort,
			"audio_port":   h.config.Server.AudioPort,
			"buffer_size":  h.config.Server.BufferSize,
		},
		"audio": map[string]interface{}{
			"sample_rate": h.config.Audio.SampleRate,
			"queue_size":  h.config.Audio.QueueSize,
		},
		"ultimate": map[string]interface{}{
			"host":         h.config.Ultimate.Host,
			"control_mode": h.config.Ultimate.ControlMode,
			"control_port": h.config.Ultimate.ControlPort,
			"duration":     h.config.Ultimate.Duration,
		},
		"discovery": map[string]interface{}{
			"enabled": h.config.Discovery.Enabled,
			"service": h.config.Discovery.Service,
		},
		"stream": map[string]interface{}{
			"idle_timeout":   h.config.Stream.IdleTimeout,
			"stats_interval": h.config.Stream.StatsInterval,
		},
		"sinks": map[string]interface{}{
			"png_dir":   h.config.Sinks.PNG.Dir,
			"png_every": h.config.Sinks.PNG.Every,
			"wav_path":  h.config.Sinks.WAV.Path,
		},
		"events": map[string]interface{}{
			"enabled":      h.config.Events.Enabled,
			"topic_prefix": h.config.Events.TopicPrefix,
			// Note: broker URL is intentionally omitted, it may carry credentials
		},
		"logging": map[string]interface{}{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sanitizedConfig)
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	udpStats := h.udpServer.GetStatistics()
	snap := h.streamMgr.Info()
	uptime := time.Since(h.startTime)

	stats := map[string]interface{}{
		"uptime":    uptime.String(),
		"timestamp": time.Now().UTC(),
		"udp":       udpStats,
		"video":     snap.Video,
		"audio":     snap.Audio,
	}

	if h.hub != nil {
		stats["websocket"] = h.hub.Stats()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	apiDoc := map[string]interface{}{
		"service": "C64 Ultimate A/V Stream Viewer",
		"version": "1.0.0",
		"endpoints": map[string]interface{}{
			"GET /":              "API documentation",
			"GET /health":        "Service health check",
			"GET /streams":       "Video and audio stream snapshots",
			"GET /streams/video": "Video stream details",
			"GET /streams/audio": "Audio stream details",
			"GET /frame.png":     "Latest assembled frame as PNG",
			"GET /ws":            "Live frame and audio WebSocket stream",
			"GET /config":        "Get service configuration",
			"GET /stats":         "Get service statistics",
			"GET /metrics":       "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(apiDoc)
}
