package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds server configuration values.
type Config struct {
	Host               string        `mapstructure:"host" yaml:"host"`
	Port               int           `mapstructure:"port" yaml:"port"`
	HTTPAddr           string        `mapstructure:"http_addr" yaml:"http_addr"`
	Admins             []string      `mapstructure:"admins" yaml:"admins"`
	LogLevel           string        `mapstructure:"log_level" yaml:"log_level"`
	DatabasePath       string        `mapstructure:"database_path" yaml:"database_path"`
	ServerName         string        `mapstructure:"server_name" yaml:"server_name"`
	IdleTimeout        time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	SendQueue          int           `mapstructure:"send_queue" yaml:"send_queue"`
	MaxFrameBytes      int           `mapstructure:"max_frame_bytes" yaml:"max_frame_bytes"`
	MaxFramesPerMinute int           `mapstructure:"max_frames_per_minute" yaml:"max_frames_per_minute"`
	EchoPosts          bool          `mapstructure:"echo_posts" yaml:"echo_posts"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            6969,
		HTTPAddr:        ":8080",
		Admins:          []string{"admin"},
		LogLevel:        "info",
		DatabasePath:    "betairc.db",
		ServerName:      "BetaIRC",
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		SendQueue:       64,
		MaxFrameBytes:   4096,
		EchoPosts:       true,
	}
}

// ListenAddr is the TCP chat address.
func (c Config) ListenAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// UpdateFrom overwrites non-zero values from other config into receiver.
// EchoPosts and HTTPAddr are not touched: their zero values are meaningful.
func (c *Config) UpdateFrom(other Config) {
	if other.Host != "" {
		c.Host = other.Host
	}
	if other.Port != 0 {
		c.Port = other.Port
	}
	if len(other.Admins) > 0 {
		c.Admins = other.Admins
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.ServerName != "" {
		c.ServerName = other.ServerName
	}
	if other.IdleTimeout != 0 {
		c.IdleTimeout = other.IdleTimeout
	}
	if other.WriteTimeout != 0 {
		c.WriteTimeout = other.WriteTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.SendQueue != 0 {
		c.SendQueue = other.SendQueue
	}
	if other.MaxFrameBytes != 0 {
		c.MaxFrameBytes = other.MaxFrameBytes
	}
	if other.MaxFramesPerMinute != 0 {
		c.MaxFramesPerMinute = other.MaxFramesPerMinute
	}
}
