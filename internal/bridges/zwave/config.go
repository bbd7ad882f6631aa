package zwave

import (
	"fmt"
	"time"
)

// Config holds the bridge's operational settings. The process config maps
// onto it; see infrastructure/config.
type Config struct {
	// ID identifies this bridge in health messages.
	ID string

	// Version is reported in health messages.
	Version string

	// Device is the controller path, reported in health messages.
	Device string

	// HealthInterval is how often health is published. Default 30s.
	HealthInterval time.Duration

	// QoS is used for events, state and acks.
	QoS byte

	// PublishBuffer is the outbound queue length. Events are dropped, and
	// counted, when it is full. Default 1024.
	PublishBuffer int
}

// DefaultConfig returns the settings used for zero fields.
func DefaultConfig() Config {
	return Config{
		ID:             "zwave-bridge-01",
		Version:        "dev",
		HealthInterval: 30 * time.Second,
		QoS:            1,
		PublishBuffer:  1024,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ID == "" {
		c.ID = d.ID
	}
	if c.Version == "" {
		c.Version = d.Version
	}
	if c.HealthInterval <= 0 {
		c.HealthInterval = d.HealthInterval
	}
	if c.PublishBuffer <= 0 {
		c.PublishBuffer = d.PublishBuffer
	}
	return c
}

// Validate checks values that have no sensible default.
func (c Config) Validate() error {
	if c.QoS > 2 {
		return fmt.Errorf("qos must be 0, 1, or 2, got %d", c.QoS)
	}
	return nil
}
