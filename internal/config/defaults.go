package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultProtocolVersion      = "1.0"
	DefaultConnectTimeout       = 10 * time.Second
	DefaultHeartbeatInterval    = 30 * time.Second
	DefaultWriteTimeout         = 5 * time.Second
	DefaultMaxReconnectAttempts = 5
	DefaultReconnectBaseDelay   = 1 * time.Second
	DefaultReconnectMaxDelay    = 30 * time.Second
	DefaultMaxPendingMessages   = 1000
	DefaultCompressionThreshold = 1024
	DefaultHandlerRetries       = 3
	DefaultRetryDelay           = 1 * time.Second
)

func (c *Config) applyDefaults() {
	if c.Endpoint.Version == "" {
		c.Endpoint.Version = DefaultProtocolVersion
	}

	if c.Connection.ConnectTimeout == 0 {
		c.Connection.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Connection.HeartbeatInterval == 0 {
		c.Connection.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.Connection.WriteTimeout == 0 {
		c.Connection.WriteTimeout = DefaultWriteTimeout
	}
	if c.Connection.MaxReconnectAttempts == 0 {
		c.Connection.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.Connection.ReconnectBaseDelay == 0 {
		c.Connection.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Connection.ReconnectMaxDelay == 0 {
		c.Connection.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Connection.MaxPendingMessages == 0 {
		c.Connection.MaxPendingMessages = DefaultMaxPendingMessages
	}

	if c.Codec.CompressionThreshold == 0 {
		c.Codec.CompressionThreshold = DefaultCompressionThreshold
	}

	if c.Dispatch.HandlerRetries == 0 {
		c.Dispatch.HandlerRetries = DefaultHandlerRetries
	}
	if c.Dispatch.RetryDelay == 0 {
		c.Dispatch.RetryDelay = DefaultRetryDelay
	}
}
