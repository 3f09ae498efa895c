package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Endpoint.BaseURL == "" {
		return errors.New("endpoint.base_url is required")
	}
	if !strings.HasPrefix(c.Endpoint.BaseURL, "ws://") && !strings.HasPrefix(c.Endpoint.BaseURL, "wss://") {
		return fmt.Errorf("endpoint.base_url must use ws:// or wss://, got %q", c.Endpoint.BaseURL)
	}

	if c.Connection.ConnectTimeout <= 0 {
		return errors.New("connection.connect_timeout must be > 0")
	}
	if c.Connection.HeartbeatInterval <= 0 {
		return errors.New("connection.heartbeat_interval must be > 0")
	}
	if c.Connection.MaxReconnectAttempts < 0 {
		return errors.New("connection.max_reconnect_attempts cannot be negative")
	}
	if c.Connection.ReconnectBaseDelay <= 0 {
		return errors.New("connection.reconnect_base_delay must be > 0")
	}
	if c.Connection.ReconnectMaxDelay < c.Connection.ReconnectBaseDelay {
		return fmt.Errorf("connection.reconnect_max_delay (%v) cannot be less than reconnect_base_delay (%v)",
			c.Connection.ReconnectMaxDelay, c.Connection.ReconnectBaseDelay)
	}
	if c.Connection.MaxPendingMessages < 1 {
		return errors.New("connection.max_pending_messages must be >= 1")
	}

	if c.Codec.CompressionThreshold < 1 {
		return errors.New("codec.compression_threshold must be >= 1")
	}

	if c.Dispatch.HandlerRetries < 0 {
		return errors.New("dispatch.handler_retries cannot be negative")
	}
	if c.Dispatch.RetryDelay < 0 {
		return errors.New("dispatch.retry_delay cannot be negative")
	}

	return nil
}
