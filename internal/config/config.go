package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format"`

	// DatabasePath locates the identity directory. Empty keeps names in memory only.
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	CodeLength     int           `mapstructure:"code_length" yaml:"code_length"`
	SessionTTL     time.Duration `mapstructure:"session_ttl" yaml:"session_ttl"`
	ReaperInterval time.Duration `mapstructure:"reaper_interval" yaml:"reaper_interval"`

	ClientBuffer       int   `mapstructure:"client_buffer" yaml:"client_buffer"`
	MaxMessageBytes    int64 `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	RateLimitPerMinute int   `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`

	// PublicURL is the base URL encoded in share QR codes. Derived from the request when empty.
	PublicURL string `mapstructure:"public_url" yaml:"public_url"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:               ":8999",
		ReadHeaderTimeout:  5 * time.Second,
		ShutdownTimeout:    5 * time.Second,
		LogLevel:           "info",
		LogFormat:          "console",
		DatabasePath:       "lobby.db",
		CodeLength:         4,
		SessionTTL:         time.Hour,
		ReaperInterval:     time.Minute,
		ClientBuffer:       32,
		MaxMessageBytes:    1 << 16,
		RateLimitPerMinute: 120,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.CodeLength != 0 {
		c.CodeLength = other.CodeLength
	}
	if other.SessionTTL != 0 {
		c.SessionTTL = other.SessionTTL
	}
	if other.ReaperInterval != 0 {
		c.ReaperInterval = other.ReaperInterval
	}
	if other.ClientBuffer != 0 {
		c.ClientBuffer = other.ClientBuffer
	}
	if other.MaxMessageBytes != 0 {
		c.MaxMessageBytes = other.MaxMessageBytes
	}
	if other.RateLimitPerMinute != 0 {
		c.RateLimitPerMinute = other.RateLimitPerMinute
	}
	if other.PublicURL != "" {
		c.PublicURL = other.PublicURL
	}
}
