package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kcalvelli/c64-stream-viewer/internal/config"
	"github.com/kcalvelli/c64-stream-viewer/internal/control"
	"github.com/kcalvelli/c64-stream-viewer/internal/events"
	"github.com/kcalvelli/c64-stream-viewer/internal/metrics"
	"github.com/kcalvelli/c64-stream-viewer/internal/server"
	"github.com/kcalvelli/c64-stream-viewer/internal/sink"
	"github.com/kcalvelli/c64-stream-viewer/internal/stream"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "c64-stream-viewer"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration. The default path is allowed to be absent so the
	// service runs out of the box; an explicitly given path is not.
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && *configPath == defaultConfigPath {
			cfg = config.Default()
		} else {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(1)
		}
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	// Log service startup
	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.String("bind_address", cfg.Server.BindAddress),
		slog.Int("video_port", cfg.Server.VideoPort),
		slog.Int("audio_port", cfg.Server.AudioPort),
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.String("ultimate_host", cfg.Ultimate.Host),
		slog.String("control_mode", cfg.Ultimate.ControlMode),
		slog.Bool("discovery_enabled", cfg.Discovery.Enabled),
		slog.Bool("events_enabled", cfg.Events.Enabled),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Build the frame and audio sinks. The snapshot sink and the WebSocket
	// hub are always present; file sinks only when configured.
	snapshot, err := sink.NewSnapshot(logger, cfg.Sinks.PNG)
	if err != nil {
		logger.Error("Failed to create snapshot sink", slog.String("error", err.Error()))
		os.Exit(1)
	}

	hub := sink.NewHub(logger, cfg.Audio.SampleRate, appMetrics)

	frameSinks := []sink.FrameSink{snapshot, hub}
	audioSinks := []sink.AudioSink{hub}

	if cfg.Sinks.WAV.Path != "" {
		recorder, err := sink.NewWAVRecorder(logger, cfg.Sinks.WAV.Path, cfg.Audio.SampleRate)
		if err != nil {
			logger.Error("Failed to create WAV recorder", slog.String("error", err.Error()))
			os.Exit(1)
		}
		audioSinks = append(audioSinks, recorder)
	}

	// Initialize the MQTT event emitter (nil when disabled; all publish
	// methods tolerate that)
	emitter := events.NewEmitter(logger, cfg.Events)
	if emitter != nil {
		if err := emitter.Connect(ctx); err != nil {
			logger.Warn("MQTT broker not reachable, continuing with auto-reconnect",
				slog.String("broker", cfg.Events.BrokerURL),
				slog.String("error", err.Error()),
			)
		}
	}

	// Initialize stream manager
	streamMgr := stream.NewManager(logger, cfg, appMetrics, frameSinks, audioSinks, emitter)
	logger.Info("Stream manager initialized",
		slog.Duration("idle_timeout", cfg.Stream.GetIdleTimeoutDuration()),
		slog.Int("audio_queue_size", cfg.Audio.QueueSize),
	)

	// Initialize UDP server
	udpServer := server.NewUDPServer(&cfg.Server, logger, streamMgr, appMetrics)
	logger.Info("UDP server initialized")

	// Initialize HTTP API server (if enabled)
	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, cfg, streamMgr, udpServer, appMetrics, snapshot, hub)
		logger.Info("HTTP API server initialized",
			slog.String("address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		)
	}

	// Start UDP server
	if err := udpServer.Start(); err != nil {
		logger.Error("Failed to start UDP server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start HTTP server (if enabled)
	if httpServer != nil {
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Ask the machine to start streaming toward us. Reception works either
	// way, so a failure here only means the operator starts the streams by
	// hand.
	commander := setupControl(ctx, logger, cfg, appMetrics)

	emitter.PublishStreamState("started")

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("video_address", fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.VideoPort)),
		slog.String("audio_address", fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.AudioPort)),
	)

	// Wait for shutdown signal
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")

	// Tell the machine to stop streaming (best effort)
	if commander != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := control.StopAV(stopCtx, commander)
		stopCancel()
		appMetrics.RecordControlCommand("stop", cfg.Ultimate.ControlMode, err == nil)
		if err != nil {
			logger.Warn("Failed to stop streams", slog.String("error", err.Error()))
		}
	}

	// Stop HTTP server first (stop accepting new requests)
	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	// Stop UDP server (stop accepting new datagrams)
	if err := udpServer.Stop(); err != nil {
		logger.Error("Error stopping UDP server", slog.String("error", err.Error()))
	}

	// Stop stream manager (drain the audio queue and close the sinks)
	streamMgr.Stop()

	emitter.PublishStreamState("stopped")
	emitter.Close()

	// Get final statistics
	stats := udpServer.GetStatistics()
	logger.Info("Final server statistics",
		slog.Uint64("video_datagrams", stats.VideoDatagrams),
		slog.Uint64("audio_datagrams", stats.AudioDatagrams),
		slog.Uint64("read_errors", stats.ReadErrors),
	)

	logger.Info("Service stopped")
}

// setupControl locates the machine and asks it to stream to this host. It
// returns the commander so shutdown can send the stop commands, or nil when
// no machine is configured or reachable.
func setupControl(ctx context.Context, logger *slog.Logger, cfg *config.Config, m *metrics.Metrics) control.Commander {
	host := cfg.Ultimate.Host
	port := cfg.Ultimate.ControlPort

	if host == "" && cfg.Discovery.Enabled {
		logger.Info("Discovering devices",
			slog.String("service", cfg.Discovery.Service),
			slog.Duration("wait", cfg.Discovery.GetWaitDuration()),
		)

		devices, err := control.Discover(ctx, cfg.Discovery.Service, cfg.Discovery.Domain, cfg.Discovery.GetWaitDuration())
		if err != nil {
			logger.Warn("Device discovery failed", slog.String("error", err.Error()))
		}
		for _, d := range devices {
			logger.Info("Discovered device",
				slog.String("name", d.Name),
				slog.String("host", d.Host),
				slog.Int("port", d.Port),
			)
		}
		if len(devices) > 0 {
			host = devices[0].Host
			if devices[0].Port > 0 {
				port = devices[0].Port
			}
		}
	}

	if host == "" {
		logger.Info("No machine configured or discovered, start the streams manually")
		return nil
	}

	localIP := cfg.Ultimate.LocalIP
	if localIP == "" {
		ip, err := control.LocalIPFor(host, port)
		if err != nil {
			logger.Error("Failed to determine local IP for stream target",
				slog.String("host", host),
				slog.String("error", err.Error()),
			)
			return nil
		}
		localIP = ip
	}

	var commander control.Commander
	switch cfg.Ultimate.ControlMode {
	case "rest":
		c, err := control.NewRESTClient(control.RESTConfig{
			Host:    host,
			Timeout: cfg.Ultimate.GetRESTTimeoutDuration(),
		})
		if err != nil {
			logger.Error("Failed to create REST control client", slog.String("error", err.Error()))
			return nil
		}
		commander = c
	default:
		c, err := control.NewClient(control.Config{
			Host:    host,
			Port:    port,
			Timeout: cfg.Ultimate.GetTCPTimeoutDuration(),
		})
		if err != nil {
			logger.Error("Failed to create control client", slog.String("error", err.Error()))
			return nil
		}
		commander = c
	}

	logger.Info("Requesting stream start",
		slog.String("mode", cfg.Ultimate.ControlMode),
		slog.String("host", host),
		slog.String("target_ip", localIP),
		slog.Int("video_port", cfg.Server.VideoPort),
		slog.Int("audio_port", cfg.Server.AudioPort),
	)

	err := control.StartAV(ctx, commander, localIP, cfg.Server.VideoPort, cfg.Server.AudioPort, uint16(cfg.Ultimate.Duration))
	m.RecordControlCommand("start", cfg.Ultimate.ControlMode, err == nil)
	if err != nil {
		logger.Error("Failed to start streams", slog.String("error", err.Error()))
	}

	return commander
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo // default fallback
	}

	// Configure handler options
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	// Determine output destination
	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	case "text", "":
		handler = slog.NewTextHandler(output, opts)
	default:
		// Default to text format
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
