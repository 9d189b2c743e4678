package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/kcalvelli/c64-stream-viewer/internal/config"
)

const publishTimeout = 2 * time.Second

// Emitter publishes stream events to an MQTT broker
type Emitter struct {
	cfg    config.EventsConfig
	logger *slog.Logger
	client mqtt.Client

	mu        sync.RWMutex
	connected bool
	published uint64
	errors    uint64
}

// Stats contains emitter statistics
type Stats struct {
	Connected bool   `json:"connected"`
	Published uint64 `json:"published"`
	Errors    uint64 `json:"errors"`
}

type stateEvent struct {
	State string    `json:"state"`
	Time  time.Time `json:"time"`
}

type formatEvent struct {
	Format string    `json:"format"`
	Time   time.Time `json:"time"`
}

// NewEmitter creates an MQTT emitter, or nil when events are disabled.
// All methods are safe to call on a nil receiver.
func NewEmitter(logger *slog.Logger, cfg config.EventsConfig) *Emitter {
	if !cfg.Enabled {
		return nil
	}

	return &Emitter{
		cfg:    cfg,
		logger: logger,
	}
}

// Connect establishes the broker connection
func (e *Emitter) Connect(ctx context.Context) error {
	if e == nil {
		return nil
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(e.cfg.BrokerURL)
	opts.SetClientID(e.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		e.mu.Lock()
		e.connected = true
		e.mu.Unlock()
		e.logger.Info("MQTT connection established",
			slog.String("broker", e.cfg.BrokerURL),
			slog.String("client_id", e.cfg.ClientID),
		)
	}

	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.mu.Lock()
		e.connected = false
		e.mu.Unlock()
		e.logger.Warn("MQTT connection lost, will auto-reconnect",
			slog.String("broker", e.cfg.BrokerURL),
			slog.String("error", err.Error()),
		)
	}

	e.client = mqtt.NewClient(opts)

	token := e.client.Connect()
	if !token.WaitTimeout(e.cfg.GetConnectTimeoutDuration()) {
		return fmt.Errorf("MQTT connection timeout after %s", e.cfg.GetConnectTimeoutDuration())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("MQTT connection failed: %w", err)
	}

	e.mu.Lock()
	e.connected = true
	e.mu.Unlock()

	return nil
}

// PublishStreamState publishes a stream lifecycle change ("started",
// "stopped", "idle").
func (e *Emitter) PublishStreamState(state string) {
	e.publishJSON("stream/state", stateEvent{State: state, Time: time.Now()})
}

// PublishVideoFormat publishes a detected format change ("PAL", "NTSC").
func (e *Emitter) PublishVideoFormat(format string) {
	e.publishJSON("video/format", formatEvent{Format: format, Time: time.Now()})
}

// PublishStats publishes a periodic statistics snapshot.
func (e *Emitter) PublishStats(stats any) {
	e.publishJSON("stats", stats)
}

// publishJSON marshals the payload and publishes it under the configured
// topic prefix. Failures are counted and logged, never propagated: event
// delivery must not disturb the stream pipelines.
func (e *Emitter) publishJSON(subtopic string, payload any) {
	if e == nil {
		return
	}

	if !e.isConnected() {
		e.recordError()
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		e.recordError()
		e.logger.Warn("Failed to marshal event payload",
			slog.String("topic", subtopic),
			slog.String("error", err.Error()),
		)
		return
	}

	topic := e.cfg.TopicPrefix + "/" + subtopic
	token := e.client.Publish(topic, byte(e.cfg.QoS), false, data)
	if !token.WaitTimeout(publishTimeout) {
		e.recordError()
		e.logger.Warn("Event publish timeout", slog.String("topic", topic))
		return
	}
	if err := token.Error(); err != nil {
		e.recordError()
		e.logger.Warn("Event publish failed",
			slog.String("topic", topic),
			slog.String("error", err.Error()),
		)
		return
	}

	e.mu.Lock()
	e.published++
	e.mu.Unlock()

	e.logger.Debug("Event published",
		slog.String("topic", topic),
		slog.Int("size", len(data)),
	)
}

// Stats returns emitter statistics
func (e *Emitter) Stats() Stats {
	if e == nil {
		return Stats{}
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	return Stats{
		Connected: e.connected,
		Published: e.published,
		Errors:    e.errors,
	}
}

// Close disconnects from the broker
func (e *Emitter) Close() {
	if e == nil {
		return
	}

	if e.client != nil && e.client.IsConnected() {
		e.client.Disconnect(250)
		e.logger.Info("MQTT disconnected")
	}

	e.mu.Lock()
	e.connected = false
	e.mu.Unlock()
}

func (e *Emitter) isConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}

func (e *Emitter) recordError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}
