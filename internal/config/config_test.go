package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default config must validate, got: %v", err)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:        "default configuration",
			modify:      func(c *Config) {},
			expectError: false,
		},
		{
			name: "invalid video port",
			modify: func(c *Config) {
				c.Server.VideoPort = 70000
			},
			expectError: true,
			errorMsg:    "video_port must be between 1 and 65535",
		},
		{
			name: "video and audio port collide",
			modify: func(c *Config) {
				c.Server.AudioPort = c.Server.VideoPort
			},
			expectError: true,
			errorMsg:    "must differ",
		},
		{
			name: "invalid sample rate",
			modify: func(c *Config) {
				c.Audio.SampleRate = 1000
			},
			expectError: true,
			errorMsg:    "sample_rate must be between 8000 and 96000",
		},
		{
			name: "invalid queue size",
			modify: func(c *Config) {
				c.Audio.QueueSize = 0
			},
			expectError: true,
			errorMsg:    "queue_size must be at least 1",
		},
		{
			name: "invalid control mode",
			modify: func(c *Config) {
				c.Ultimate.ControlMode = "telnet"
			},
			expectError: true,
			errorMsg:    "control_mode must be 'tcp' or 'rest'",
		},
		{
			name: "duration exceeds wire range",
			modify: func(c *Config) {
				c.Ultimate.Duration = 100000
			},
			expectError: true,
			errorMsg:    "duration must be between 0 and 65535",
		},
		{
			name: "discovery without service",
			modify: func(c *Config) {
				c.Discovery.Service = ""
			},
			expectError: true,
			errorMsg:    "service cannot be empty",
		},
		{
			name: "disabled discovery skips validation",
			modify: func(c *Config) {
				c.Discovery.Enabled = false
				c.Discovery.Service = ""
			},
			expectError: false,
		},
		{
			name: "png sink without interval",
			modify: func(c *Config) {
				c.Sinks.PNG.Dir = "/tmp/frames"
				c.Sinks.PNG.Every = 0
			},
			expectError: true,
			errorMsg:    "png every must be at least 1",
		},
		{
			name: "events enabled without broker",
			modify: func(c *Config) {
				c.Events.Enabled = true
				c.Events.BrokerURL = ""
			},
			expectError: true,
			errorMsg:    "broker_url cannot be empty",
		},
		{
			name: "invalid qos",
			modify: func(c *Config) {
				c.Events.Enabled = true
				c.Events.QoS = 3
			},
			expectError: true,
			errorMsg:    "qos must be 0, 1 or 2",
		},
		{
			name: "invalid log level",
			modify: func(c *Config) {
				c.Logging.Level = "trace"
			},
			expectError: true,
			errorMsg:    "level must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.modify(config)

			err := config.Validate()
			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				} else if tt.errorMsg != "" && !contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
				}
			} else {
				if err != nil {
					t.Errorf("Expected no error but got: %v", err)
				}
			}
		})
	}
}

func TestConfigLoad(t *testing.T) {
	tempDir := t.TempDir()

	tests := []struct {
		name        string
		configYAML  string
		expectError bool
		errorMsg    string
	}{
		{
			name: "full config file",
			configYAML: `
server:
  bind_address: "0.0.0.0"
  video_port: 11000
  audio_port: 11001
  buffer_size: 2097152
http:
  enabled: true
  address: "0.0.0.0"
  port: 8080
audio:
  sample_rate: 47976
  queue_size: 20
ultimate:
  host: "192.168.1.64"
  control_mode: "tcp"
  control_port: 64
  tcp_timeout: 2
  rest_timeout: 5
discovery:
  enabled: true
  service: "_ultimate64._tcp"
  domain: "local."
  wait: 5
stream:
  idle_timeout: 30
  stats_interval: 10
logging:
  level: "info"
  format: "text"
  output: "stdout"
`,
			expectError: false,
		},
		{
			name: "partial config keeps defaults",
			configYAML: `
ultimate:
  host: "10.0.0.64"
logging:
  level: "debug"
`,
			expectError: false,
		},
		{
			name: "invalid YAML syntax",
			configYAML: `
server:
  video_port: 11000
  buffer_size: invalid_number
`,
			expectError: true,
			errorMsg:    "failed to parse",
		},
		{
			name: "validation failure",
			configYAML: `
server:
  video_port: 70000
`,
			expectError: true,
			errorMsg:    "video_port must be between 1 and 65535",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(tempDir, "config.yaml")
			err := os.WriteFile(configPath, []byte(tt.configYAML), 0644)
			if err != nil {
				t.Fatalf("Failed to create test config file: %v", err)
			}

			config, err := Load(configPath)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				} else if tt.errorMsg != "" && !contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
				}
			} else {
				if err != nil {
					t.Errorf("Expected no error but got: %v", err)
				} else if config == nil {
					t.Errorf("Expected config to be loaded but got nil")
				}
			}
		})
	}
}

func TestConfigLoadOverridesDefaults(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.yaml")

	configYAML := `
server:
  video_port: 21000
ultimate:
  host: "192.168.1.64"
`
	if err := os.WriteFile(configPath, []byte(configYAML), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	config, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if config.Server.VideoPort != 21000 {
		t.Errorf("Expected video_port 21000, got %d", config.Server.VideoPort)
	}
	if config.Ultimate.Host != "192.168.1.64" {
		t.Errorf("Expected host 192.168.1.64, got %s", config.Ultimate.Host)
	}
	// Untouched keys keep their defaults.
	if config.Server.AudioPort != 11001 {
		t.Errorf("Expected default audio_port 11001, got %d", config.Server.AudioPort)
	}
	if config.Audio.QueueSize != 20 {
		t.Errorf("Expected default queue_size 20, got %d", config.Audio.QueueSize)
	}
}

func TestConfigLoadNonexistentFile(t *testing.T) {
	_, err := Load("nonexistent.yaml")
	if err == nil {
		t.Errorf("Expected error for nonexistent file but got none")
	}
	if !contains(err.Error(), "failed to read config file") {
		t.Errorf("Expected error about reading file, got: %v", err)
	}
}

func TestDurationHelpers(t *testing.T) {
	ultimate := UltimateConfig{
		TCPTimeout:  2,
		RESTTimeout: 5,
	}

	if ultimate.GetTCPTimeoutDuration() != 2*time.Second {
		t.Errorf("Expected 2 seconds, got %v", ultimate.GetTCPTimeoutDuration())
	}

	if ultimate.GetRESTTimeoutDuration() != 5*time.Second {
		t.Errorf("Expected 5 seconds, got %v", ultimate.GetRESTTimeoutDuration())
	}

	discovery := DiscoveryConfig{Wait: 5}
	if discovery.GetWaitDuration() != 5*time.Second {
		t.Errorf("Expected 5 seconds, got %v", discovery.GetWaitDuration())
	}

	stream := StreamConfig{
		IdleTimeout:   30,
		StatsInterval: 10,
	}

	if stream.GetIdleTimeoutDuration() != 30*time.Second {
		t.Errorf("Expected 30 seconds, got %v", stream.GetIdleTimeoutDuration())
	}

	if stream.GetStatsIntervalDuration() != 10*time.Second {
		t.Errorf("Expected 10 seconds, got %v", stream.GetStatsIntervalDuration())
	}

	events := EventsConfig{ConnectTimeout: 3}
	if events.GetConnectTimeoutDuration() != 3*time.Second {
		t.Errorf("Expected 3 seconds, got %v", events.GetConnectTimeoutDuration())
	}
}

func TestServerConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		config ServerConfig
		valid  bool
	}{
		{
			name: "valid config",
			config: ServerConfig{
				BindAddress: "0.0.0.0",
				VideoPort:   11000,
				AudioPort:   11001,
				BufferSize:  65536,
			},
			valid: true,
		},
		{
			name: "video port too low",
			config: ServerConfig{
				BindAddress: "0.0.0.0",
				VideoPort:   0,
				AudioPort:   11001,
				BufferSize:  65536,
			},
			valid: false,
		},
		{
			name: "audio port too high",
			config: ServerConfig{
				BindAddress: "0.0.0.0",
				VideoPort:   11000,
				AudioPort:   70000,
				BufferSize:  65536,
			},
			valid: false,
		},
		{
			name: "empty bind address",
			config: ServerConfig{
				BindAddress: "",
				VideoPort:   11000,
				AudioPort:   11001,
				BufferSize:  65536,
			},
			valid: false,
		},
		{
			name: "buffer too small",
			config: ServerConfig{
				BindAddress: "0.0.0.0",
				VideoPort:   11000,
				AudioPort:   11001,
				BufferSize:  512,
			},
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.valid && err != nil {
				t.Errorf("Expected valid config but got error: %v", err)
			}
			if !tt.valid && err == nil {
				t.Errorf("Expected invalid config but got no error")
			}
		})
	}
}

func TestLoggingConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		config LoggingConfig
		valid  bool
	}{
		{
			name: "valid json to stdout",
			config: LoggingConfig{
				Level:  "info",
				Format: "json",
				Output: "stdout",
			},
			valid: true,
		},
		{
			name: "valid text to stderr",
			config: LoggingConfig{
				Level:  "debug",
				Format: "text",
				Output: "stderr",
			},
			valid: true,
		},
		{
			name: "invalid log level",
			config: LoggingConfig{
				Level:  "trace",
				Format: "json",
				Output: "stdout",
			},
			valid: false,
		},
		{
			name: "invalid format",
			config: LoggingConfig{
				Level:  "info",
				Format: "xml",
				Output: "stdout",
			},
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.valid && err != nil {
				t.Errorf("Expected valid config but got error: %v", err)
			}
			if !tt.valid && err == nil {
				t.Errorf("Expected invalid config but got no error")
			}
		})
	}
}

// Helper function to check if a string contains a substring
func contains(s, substr string) bool {
	return len(s) >= len(substr) && (s == substr || len(substr) == 0 ||
		(len(s) > len(substr) && findSubstring(s, substr)))
}

func findSubstring(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
