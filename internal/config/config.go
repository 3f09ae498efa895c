package config

import "time"

// Config is the root configuration for the event-stream client.
type Config struct {
	Endpoint   EndpointConfig   `yaml:"endpoint"`
	Connection ConnectionConfig `yaml:"connection"`
	Codec      CodecConfig      `yaml:"codec"`
	Dispatch   DispatchConfig   `yaml:"dispatch"`
}

// EndpointConfig identifies the server-side event stream.
type EndpointConfig struct {
	BaseURL string `yaml:"base_url"`
	Version string `yaml:"protocol_version"`
}

// ConnectionConfig holds Connection Manager settings.
type ConnectionConfig struct {
	ConnectTimeout       time.Duration `yaml:"connect_timeout"`
	HeartbeatInterval    time.Duration `yaml:"heartbeat_interval"`
	WriteTimeout         time.Duration `yaml:"write_timeout"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay    time.Duration `yaml:"reconnect_max_delay"`
	MaxPendingMessages   int           `yaml:"max_pending_messages"`
}

// CodecConfig holds Message Codec settings. The encryption key itself
// comes from the environment, never from the config file.
type CodecConfig struct {
	CompressionThreshold int `yaml:"compression_threshold"`
}

// DispatchConfig holds Event Dispatcher settings.
type DispatchConfig struct {
	HandlerRetries int           `yaml:"handler_retries"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
}
