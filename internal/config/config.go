package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	// Global settings
	Format  string `mapstructure:"format"`
	Quiet   bool   `mapstructure:"quiet"`
	Verbose bool   `mapstructure:"verbose"`

	// Default values for commands
	Defaults DefaultsConfig `mapstructure:"defaults"`
}

// DefaultsConfig holds default values for session commands
type DefaultsConfig struct {
	// Server is the debug server address (ws://, wss://, or http(s) form)
	Server string `mapstructure:"server"`
	// Node is the node path selected before running a command
	Node string `mapstructure:"node"`
	// Timeout bounds a reply wait when the command sets no deadline
	Timeout string `mapstructure:"timeout"`
	// Retry is the pause between reconnect attempts in watch mode
	Retry string `mapstructure:"retry"`
}

// Default returns a Config with default values
func Default() *Config {
	return &Config{
		Format: "auto",
		Defaults: DefaultsConfig{
			Server:  "ws://localhost:9001",
			Timeout: "30s",
			Retry:   "1s",
		},
	}
}

// ReplyTimeout parses the configured default timeout, falling back to 30s.
func (c *Config) ReplyTimeout() time.Duration {
	d, err := time.ParseDuration(c.Defaults.Timeout)
	if err != nil || d < 0 {
		return 30 * time.Second
	}
	return d
}

// Load loads configuration from files and environment
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("dedbg")
	v.SetConfigType("yaml")

	// Config paths in order of precedence, lowest first
	v.AddConfigPath("/etc/dedbg/")
	if configDir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(configDir, "dedbg"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
		v.SetConfigName(".dedbg")
	}
	v.AddConfigPath(".")

	// Environment variables
	v.SetEnvPrefix("DEDBG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.BindEnv("format", "DEDBG_FORMAT")
	v.BindEnv("quiet", "DEDBG_QUIET")
	v.BindEnv("verbose", "DEDBG_VERBOSE")
	v.BindEnv("defaults.server", "DEDBG_SERVER")
	v.BindEnv("defaults.node", "DEDBG_NODE")
	v.BindEnv("defaults.timeout", "DEDBG_TIMEOUT")

	// Set defaults
	cfg := Default()
	v.SetDefault("format", cfg.Format)
	v.SetDefault("quiet", cfg.Quiet)
	v.SetDefault("verbose", cfg.Verbose)
	v.SetDefault("defaults.server", cfg.Defaults.Server)
	v.SetDefault("defaults.timeout", cfg.Defaults.Timeout)
	v.SetDefault("defaults.retry", cfg.Defaults.Retry)

	// Try to read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// Config file not found; use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a specific file
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ConfigFile returns the path to the config file that was loaded
func ConfigFile() string {
	v := viper.New()

	v.SetConfigName("dedbg")
	v.SetConfigType("yaml")

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err == nil {
		return v.ConfigFileUsed()
	}

	v.SetConfigName(".dedbg")
	if err := v.ReadInConfig(); err == nil {
		return v.ConfigFileUsed()
	}

	return ""
}
