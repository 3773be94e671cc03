package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if !strings.HasPrefix(c.Stream.URL, "ws://") && !strings.HasPrefix(c.Stream.URL, "wss://") {
		return fmt.Errorf("stream.url must be a ws:// or wss:// URL, got %q", c.Stream.URL)
	}
	if c.Stream.ReconnectBaseDelay <= 0 {
		return errors.New("stream.reconnect_base_delay must be > 0")
	}
	if c.Stream.ReconnectMaxDelay < c.Stream.ReconnectBaseDelay {
		return errors.New("stream.reconnect_max_delay must be >= stream.reconnect_base_delay")
	}
	if c.Stream.MaxReconnectAttempts < 1 {
		return errors.New("stream.max_reconnect_attempts must be >= 1")
	}

	if c.Poller.Interval <= 0 {
		return errors.New("poller.interval must be > 0")
	}

	if c.Alerts.Threshold <= 0 || c.Alerts.Threshold >= 1 {
		return fmt.Errorf("alerts.threshold must be in (0, 1), got %g", c.Alerts.Threshold)
	}

	for i, inst := range c.Instruments {
		if inst.ID == "" {
			return fmt.Errorf("instruments[%d].id is required", i)
		}
		if inst.Pair == "" {
			return fmt.Errorf("instruments[%d].pair is required", i)
		}
	}

	for i, city := range c.Cities {
		if strings.TrimSpace(city) == "" {
			return fmt.Errorf("cities[%d] must not be empty", i)
		}
	}

	return nil
}
