package config

import (
	"net"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds server configuration values.
type Config struct {
	Host              string        `mapstructure:"host" yaml:"host"`
	Port              int           `mapstructure:"port" yaml:"port" validate:"min=1,max=65535"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout" validate:"gt=0"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gt=0"`

	// Keep-alive probing. A zero interval disables pings.
	PingInterval time.Duration `mapstructure:"ping_interval" yaml:"ping_interval" validate:"min=0"`
	PingTimeout  time.Duration `mapstructure:"ping_timeout" yaml:"ping_timeout" validate:"gt=0"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" validate:"gt=0"`

	MaxMessageBytes   int64    `mapstructure:"max_message_bytes" yaml:"max_message_bytes" validate:"gt=0"`
	MessagesPerMinute int      `mapstructure:"messages_per_minute" yaml:"messages_per_minute" validate:"min=0"`
	AllowedOrigins    []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`

	DefaultRoom        string   `mapstructure:"default_room" yaml:"default_room" validate:"required,max=64"`
	Rooms              []string `mapstructure:"rooms" yaml:"rooms" validate:"dive,required,max=64"`
	ReapEmptyRooms     bool     `mapstructure:"reap_empty_rooms" yaml:"reap_empty_rooms"`
	AnnounceDepartures bool     `mapstructure:"announce_departures" yaml:"announce_departures"`
	SingleRoom         bool     `mapstructure:"single_room" yaml:"single_room"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level" validate:"oneof=debug info warn warning error"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format" validate:"oneof=console json"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Host:              "0.0.0.0",
		Port:              8765,
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		PingInterval:      30 * time.Second,
		PingTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		MaxMessageBytes:   10 << 20,
		DefaultRoom:       "general",
		Rooms:             []string{"general", "random", "tech"},
		LogLevel:          "info",
		LogFormat:         "console",
	}
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Host != "" {
		c.Host = other.Host
	}
	if other.Port != 0 {
		c.Port = other.Port
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
}
