package client

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds saved connection details.
type Config struct {
	Server   string `mapstructure:"server" yaml:"server"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username,omitempty"`
}

// DefaultConfig points at a local server.
func DefaultConfig() Config {
	return Config{Server: "127.0.0.1", Port: 6969}
}

// Addr is the server address to dial.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Server, strconv.Itoa(c.Port))
}

// LoadConfig reads connection details from path. The format follows the file
// extension (yaml, json, toml); files without one are read as yaml.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetDefault("server", cfg.Server)
	v.SetDefault("port", cfg.Port)
	v.SetConfigFile(path)
	if filepath.Ext(path) == "" {
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("read client config: %w", err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal client config: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes connection details to path as yaml.
func SaveConfig(path string, cfg Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
