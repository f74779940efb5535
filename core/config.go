package core

import (
	"fmt"
	"strings"
	"time"
)

type RefreshConfig struct {
	ExpiryBufferSeconds   int `koanf:"expiry_buffer_seconds" mapstructure:"expiry_buffer_seconds"`
	MaxAttempts           int `koanf:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffSeconds int `koanf:"initial_backoff_seconds" mapstructure:"initial_backoff_seconds"`
	MaxBackoffSeconds     int `koanf:"max_backoff_seconds" mapstructure:"max_backoff_seconds"`
}

func (c RefreshConfig) ExpiryBuffer() time.Duration {
	return time.Duration(c.ExpiryBufferSeconds) * time.Second
}

func (c RefreshConfig) InitialBackoff() time.Duration {
	return time.Duration(c.InitialBackoffSeconds) * time.Second
}

func (c RefreshConfig) MaxBackoff() time.Duration {
	return time.Duration(c.MaxBackoffSeconds) * time.Second
}

type TransferConfig struct {
	TTLMinutes   int    `koanf:"ttl_minutes" mapstructure:"ttl_minutes"`
	SigningKeyID string `koanf:"signing_key_id" mapstructure:"signing_key_id"`
}

func (c TransferConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

type Config struct {
	ServiceName string         `koanf:"service_name" mapstructure:"service_name"`
	Refresh     RefreshConfig  `koanf:"refresh" mapstructure:"refresh"`
	Transfer    TransferConfig `koanf:"transfer" mapstructure:"transfer"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "cloud-accounts",
		Refresh: RefreshConfig{
			ExpiryBufferSeconds:   120,
			MaxAttempts:           3,
			InitialBackoffSeconds: 1,
			MaxBackoffSeconds:     4,
		},
		Transfer: TransferConfig{
			TTLMinutes:   10,
			SigningKeyID: "transfer-key",
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Refresh.ExpiryBufferSeconds < 0 {
		return fmt.Errorf("core: refresh.expiry_buffer_seconds must not be negative")
	}
	if c.Refresh.MaxAttempts < 1 {
		return fmt.Errorf("core: refresh.max_attempts must be at least 1")
	}
	if c.Refresh.InitialBackoffSeconds < 0 {
		return fmt.Errorf("core: refresh.initial_backoff_seconds must not be negative")
	}
	if c.Refresh.MaxBackoffSeconds < c.Refresh.InitialBackoffSeconds {
		return fmt.Errorf("core: refresh.max_backoff_seconds must not be below the initial backoff")
	}
	if c.Transfer.TTLMinutes < 1 {
		return fmt.Errorf("core: transfer.ttl_minutes must be at least 1")
	}
	return nil
}
