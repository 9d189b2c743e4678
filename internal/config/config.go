package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	HTTP      HTTPConfig      `yaml:"http"`
	Audio     AudioConfig     `yaml:"audio"`
	Ultimate  UltimateConfig  `yaml:"ultimate"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Stream    StreamConfig    `yaml:"stream"`
	Sinks     SinksConfig     `yaml:"sinks"`
	Events    EventsConfig    `yaml:"events"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig contains UDP receiver configuration
type ServerConfig struct {
	BindAddress string `yaml:"bind_address"`
	VideoPort   int    `yaml:"video_port"`
	AudioPort   int    `yaml:"audio_port"`
	BufferSize  int    `yaml:"buffer_size"`
}

// HTTPConfig contains HTTP API server configuration
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
	Enabled bool   `yaml:"enabled"`
}

// AudioConfig contains audio playback parameters
type AudioConfig struct {
	SampleRate int `yaml:"sample_rate"`
	QueueSize  int `yaml:"queue_size"`
}

// UltimateConfig describes how to reach the machine's command channel
type UltimateConfig struct {
	Host        string `yaml:"host"`         // empty = rely on discovery
	ControlMode string `yaml:"control_mode"` // "tcp" or "rest"
	ControlPort int    `yaml:"control_port"`
	TCPTimeout  int    `yaml:"tcp_timeout"`  // seconds
	RESTTimeout int    `yaml:"rest_timeout"` // seconds
	LocalIP     string `yaml:"local_ip"`     // empty = auto-detect
	Duration    int    `yaml:"duration"`     // 0 = stream until stopped
}

// DiscoveryConfig contains mDNS discovery configuration
type DiscoveryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Service string `yaml:"service"`
	Domain  string `yaml:"domain"`
	Wait    int    `yaml:"wait"` // seconds
}

// StreamConfig contains stream session housekeeping parameters
type StreamConfig struct {
	IdleTimeout   int `yaml:"idle_timeout"`   // seconds
	StatsInterval int `yaml:"stats_interval"` // seconds, 0 disables
}

// SinksConfig contains optional frame and audio sink configuration
type SinksConfig struct {
	PNG PNGSinkConfig `yaml:"png"`
	WAV WAVSinkConfig `yaml:"wav"`
}

// PNGSinkConfig dumps every Nth completed frame as a PNG file
type PNGSinkConfig struct {
	Dir   string `yaml:"dir"` // empty = disabled
	Every int    `yaml:"every"`
}

// WAVSinkConfig records the filtered audio stream to a WAV file
type WAVSinkConfig struct {
	Path string `yaml:"path"` // empty = disabled
}

// EventsConfig contains MQTT event publishing configuration
type EventsConfig struct {
	Enabled        bool   `yaml:"enabled"`
	BrokerURL      string `yaml:"broker_url"`
	ClientID       string `yaml:"client_id"`
	TopicPrefix    string `yaml:"topic_prefix"`
	QoS            int    `yaml:"qos"`
	ConnectTimeout int    `yaml:"connect_timeout"` // seconds
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the configuration used when no file is given. The
// stream ports match the machine's conventional targets.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			BindAddress: "0.0.0.0",
			VideoPort:   11000,
			AudioPort:   11001,
			BufferSize:  2 * 1024 * 1024,
		},
		HTTP: HTTPConfig{
			Port:    8080,
			Address: "0.0.0.0",
			Enabled: true,
		},
		Audio: AudioConfig{
			SampleRate: 47976,
			QueueSize:  20,
		},
		Ultimate: UltimateConfig{
			ControlMode: "tcp",
			ControlPort: 64,
			TCPTimeout:  2,
			RESTTimeout: 5,
		},
		Discovery: DiscoveryConfig{
			Enabled: true,
			Service: "_ultimate64._tcp",
			Domain:  "local.",
			Wait:    5,
		},
		Stream: StreamConfig{
			IdleTimeout:   30,
			StatsInterval: 10,
		},
		Sinks: SinksConfig{
			PNG: PNGSinkConfig{Every: 50},
		},
		Events: EventsConfig{
			BrokerURL:      "tcp://localhost:1883",
			ClientID:       "c64-stream-viewer",
			TopicPrefix:    "c64stream",
			QoS:            0,
			ConnectTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Load reads and parses the configuration file. Missing keys keep their
// default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Ultimate.Validate(); err != nil {
		return fmt.Errorf("ultimate config: %w", err)
	}

	if err := c.Discovery.Validate(); err != nil {
		return fmt.Errorf("discovery config: %w", err)
	}

	if err := c.Stream.Validate(); err != nil {
		return fmt.Errorf("stream config: %w", err)
	}

	if err := c.Sinks.Validate(); err != nil {
		return fmt.Errorf("sinks config: %w", err)
	}

	if err := c.Events.Validate(); err != nil {
		return fmt.Errorf("events config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	if s.VideoPort < 1 || s.VideoPort > 65535 {
		return fmt.Errorf("video_port must be between 1 and 65535, got %d", s.VideoPort)
	}

	if s.AudioPort < 1 || s.AudioPort > 65535 {
		return fmt.Errorf("audio_port must be between 1 and 65535, got %d", s.AudioPort)
	}

	if s.VideoPort == s.AudioPort {
		return fmt.Errorf("video_port and audio_port must differ, both are %d", s.VideoPort)
	}

	if s.BindAddress == "" {
		return fmt.Errorf("bind_address cannot be empty")
	}

	if s.BufferSize < 1024 {
		return fmt.Errorf("buffer_size must be at least 1024 bytes, got %d", s.BufferSize)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.SampleRate < 8000 || a.SampleRate > 96000 {
		return fmt.Errorf("sample_rate must be between 8000 and 96000 Hz, got %d", a.SampleRate)
	}

	if a.QueueSize < 1 {
		return fmt.Errorf("queue_size must be at least 1, got %d", a.QueueSize)
	}

	return nil
}

// Validate validates command channel configuration
func (u *UltimateConfig) Validate() error {
	if u.ControlMode != "tcp" && u.ControlMode != "rest" {
		return fmt.Errorf("control_mode must be 'tcp' or 'rest', got '%s'", u.ControlMode)
	}

	if u.ControlPort < 1 || u.ControlPort > 65535 {
		return fmt.Errorf("control_port must be between 1 and 65535, got %d", u.ControlPort)
	}

	if u.TCPTimeout < 1 {
		return fmt.Errorf("tcp_timeout must be at least 1 second, got %d", u.TCPTimeout)
	}

	if u.RESTTimeout < 1 {
		return fmt.Errorf("rest_timeout must be at least 1 second, got %d", u.RESTTimeout)
	}

	if u.Duration < 0 || u.Duration > 65535 {
		return fmt.Errorf("duration must be between 0 and 65535, got %d", u.Duration)
	}

	return nil
}

// Validate validates discovery configuration
func (d *DiscoveryConfig) Validate() error {
	if d.Enabled {
		if d.Service == "" {
			return fmt.Errorf("service cannot be empty when discovery is enabled")
		}

		if d.Wait < 1 {
			return fmt.Errorf("wait must be at least 1 second, got %d", d.Wait)
		}
	}

	return nil
}

// Validate validates stream housekeeping configuration
func (s *StreamConfig) Validate() error {
	if s.IdleTimeout < 1 {
		return fmt.Errorf("idle_timeout must be at least 1 second, got %d", s.IdleTimeout)
	}

	if s.StatsInterval < 0 {
		return fmt.Errorf("stats_interval cannot be negative, got %d", s.StatsInterval)
	}

	return nil
}

// Validate validates sink configuration
func (s *SinksConfig) Validate() error {
	if s.PNG.Dir != "" && s.PNG.Every < 1 {
		return fmt.Errorf("png every must be at least 1, got %d", s.PNG.Every)
	}

	return nil
}

// Validate validates event publishing configuration
func (e *EventsConfig) Validate() error {
	if !e.Enabled {
		return nil
	}

	if e.BrokerURL == "" {
		return fmt.Errorf("broker_url cannot be empty when events are enabled")
	}

	if e.ClientID == "" {
		return fmt.Errorf("client_id cannot be empty when events are enabled")
	}

	if e.QoS < 0 || e.QoS > 2 {
		return fmt.Errorf("qos must be 0, 1 or 2, got %d", e.QoS)
	}

	if e.ConnectTimeout < 1 {
		return fmt.Errorf("connect_timeout must be at least 1 second, got %d", e.ConnectTimeout)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetTCPTimeoutDuration returns the command channel timeout as a time.Duration
func (u *UltimateConfig) GetTCPTimeoutDuration() time.Duration {
	return time.Duration(u.TCPTimeout) * time.Second
}

// GetRESTTimeoutDuration returns the HTTP API timeout as a time.Duration
func (u *UltimateConfig) GetRESTTimeoutDuration() time.Duration {
	return time.Duration(u.RESTTimeout) * time.Second
}

// GetWaitDuration returns the discovery browse window as a time.Duration
func (d *DiscoveryConfig) GetWaitDuration() time.Duration {
	return time.Duration(d.Wait) * time.Second
}

// GetIdleTimeoutDuration returns the stream idle timeout as a time.Duration
func (s *StreamConfig) GetIdleTimeoutDuration() time.Duration {
	return time.Duration(s.IdleTimeout) * time.Second
}

// GetStatsIntervalDuration returns the statistics interval as a time.Duration
func (s *StreamConfig) GetStatsIntervalDuration() time.Duration {
	return time.Duration(s.StatsInterval) * time.Second
}

// GetConnectTimeoutDuration returns the broker connect timeout as a time.Duration
func (e *EventsConfig) GetConnectTimeoutDuration() time.Duration {
	return time.Duration(e.ConnectTimeout) * time.Second
}
