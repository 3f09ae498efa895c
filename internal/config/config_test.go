package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	yaml := `
endpoint:
  base_url: wss://events.example.com/stream
  protocol_version: "1.0"
connection:
  connect_timeout: 10s
  heartbeat_interval: 30s
  max_reconnect_attempts: 3
codec:
  compression_threshold: 2048
dispatch:
  handler_retries: 5
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Endpoint.BaseURL != "wss://events.example.com/stream" {
		t.Errorf("Endpoint.BaseURL = %q, want %q", cfg.Endpoint.BaseURL, "wss://events.example.com/stream")
	}
	if cfg.Connection.ConnectTimeout != 10*time.Second {
		t.Errorf("Connection.ConnectTimeout = %v, want 10s", cfg.Connection.ConnectTimeout)
	}
	if cfg.Connection.MaxReconnectAttempts != 3 {
		t.Errorf("Connection.MaxReconnectAttempts = %d, want 3", cfg.Connection.MaxReconnectAttempts)
	}
	if cfg.Codec.CompressionThreshold != 2048 {
		t.Errorf("Codec.CompressionThreshold = %d, want 2048", cfg.Codec.CompressionThreshold)
	}
	if cfg.Dispatch.HandlerRetries != 5 {
		t.Errorf("Dispatch.HandlerRetries = %d, want 5", cfg.Dispatch.HandlerRetries)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_STREAM_HOST", "stream.internal.example.com")

	yaml := `
endpoint:
  base_url: wss://${TEST_STREAM_HOST}/events
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Endpoint.BaseURL != "wss://stream.internal.example.com/events" {
		t.Errorf("Endpoint.BaseURL = %q, want env-expanded host", cfg.Endpoint.BaseURL)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
endpoint:
  base_url: wss://events.example.com/stream
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Endpoint.Version != DefaultProtocolVersion {
		t.Errorf("Endpoint.Version = %q, want default %q", cfg.Endpoint.Version, DefaultProtocolVersion)
	}
	if cfg.Connection.ConnectTimeout != DefaultConnectTimeout {
		t.Errorf("Connection.ConnectTimeout = %v, want default %v", cfg.Connection.ConnectTimeout, DefaultConnectTimeout)
	}
	if cfg.Connection.HeartbeatInterval != DefaultHeartbeatInterval {
		t.Errorf("Connection.HeartbeatInterval = %v, want default %v", cfg.Connection.HeartbeatInterval, DefaultHeartbeatInterval)
	}
	if cfg.Connection.MaxReconnectAttempts != DefaultMaxReconnectAttempts {
		t.Errorf("Connection.MaxReconnectAttempts = %d, want default %d", cfg.Connection.MaxReconnectAttempts, DefaultMaxReconnectAttempts)
	}
	if cfg.Codec.CompressionThreshold != DefaultCompressionThreshold {
		t.Errorf("Codec.CompressionThreshold = %d, want default %d", cfg.Codec.CompressionThreshold, DefaultCompressionThreshold)
	}
	if cfg.Dispatch.HandlerRetries != DefaultHandlerRetries {
		t.Errorf("Dispatch.HandlerRetries = %d, want default %d", cfg.Dispatch.HandlerRetries, DefaultHandlerRetries)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Endpoint: EndpointConfig{BaseURL: "wss://events.example.com/stream", Version: "1.0"},
			Connection: ConnectionConfig{
				ConnectTimeout:       10 * time.Second,
				HeartbeatInterval:    30 * time.Second,
				WriteTimeout:         5 * time.Second,
				MaxReconnectAttempts: 5,
				ReconnectBaseDelay:   time.Second,
				ReconnectMaxDelay:    30 * time.Second,
				MaxPendingMessages:   1000,
			},
			Codec:    CodecConfig{CompressionThreshold: 1024},
			Dispatch: DispatchConfig{HandlerRetries: 3, RetryDelay: time.Second},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: "",
		},
		{
			name:    "missing base url",
			mutate:  func(c *Config) { c.Endpoint.BaseURL = "" },
			wantErr: "endpoint.base_url is required",
		},
		{
			name:    "non-websocket scheme",
			mutate:  func(c *Config) { c.Endpoint.BaseURL = "https://events.example.com" },
			wantErr: `endpoint.base_url must use ws:// or wss://, got "https://events.example.com"`,
		},
		{
			name:    "zero heartbeat interval",
			mutate:  func(c *Config) { c.Connection.HeartbeatInterval = 0 },
			wantErr: "connection.heartbeat_interval must be > 0",
		},
		{
			name:    "max delay below base delay",
			mutate:  func(c *Config) { c.Connection.ReconnectMaxDelay = 500 * time.Millisecond },
			wantErr: "connection.reconnect_max_delay (500ms) cannot be less than reconnect_base_delay (1s)",
		},
		{
			name:    "zero pending bound",
			mutate:  func(c *Config) { c.Connection.MaxPendingMessages = 0 },
			wantErr: "connection.max_pending_messages must be >= 1",
		},
		{
			name:    "negative handler retries",
			mutate:  func(c *Config) { c.Dispatch.HandlerRetries = -1 },
			wantErr: "dispatch.handler_retries cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeTempFile(t, "endpoint: [not: valid")
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid yaml")
	}
}
