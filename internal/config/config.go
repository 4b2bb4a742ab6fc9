// Package config provides Viper-based configuration loading for the arena
// game server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// HTTPConfig holds settings for the HTTP listener that serves the WebSocket
// endpoint and the health check.
type HTTPConfig struct {
	// Host is the bind address.
	Host string `mapstructure:"host"`
	// Port is the TCP port.
	Port int `mapstructure:"port"`
	// ReadTimeout bounds request header reads.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout bounds response writes for plain HTTP requests.
	// It does not apply to upgraded WebSocket connections.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// AllowedOrigins lists the browser origins accepted for WebSocket
	// upgrades and health CORS. "*" accepts all.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// ArenaConfig holds game-facing settings.
type ArenaConfig struct {
	// DefaultRoom is the room code joined when a client omits room_id.
	DefaultRoom string `mapstructure:"default_room"`
	// MaxPlayers is the capacity of every room.
	MaxPlayers int `mapstructure:"max_players"`
	// SendBuffer is the per-connection outbound frame buffer size.
	SendBuffer int `mapstructure:"send_buffer"`
	// ContentPath points to the arena tuning YAML file. Empty means the
	// built-in defaults are used.
	ContentPath string `mapstructure:"content_path"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	HTTP    HTTPConfig    `mapstructure:"http"`
	Arena   ArenaConfig   `mapstructure:"arena"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateHTTP(c.HTTP); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateArena(c.Arena); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateHTTP(h HTTPConfig) error {
	var errs []string
	if h.Port < 1 || h.Port > 65535 {
		errs = append(errs, fmt.Sprintf("http.port must be 1-65535, got %d", h.Port))
	}
	if h.ReadTimeout < 0 {
		errs = append(errs, "http.read_timeout must not be negative")
	}
	if h.WriteTimeout < 0 {
		errs = append(errs, "http.write_timeout must not be negative")
	}
	if h.ShutdownTimeout <= 0 {
		errs = append(errs, "http.shutdown_timeout must be positive")
	}
	if len(h.AllowedOrigins) == 0 {
		errs = append(errs, "http.allowed_origins must not be empty")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateArena(a ArenaConfig) error {
	var errs []string
	if a.DefaultRoom == "" {
		errs = append(errs, "arena.default_room must not be empty")
	}
	if a.MaxPlayers < 1 {
		errs = append(errs, fmt.Sprintf("arena.max_players must be >= 1, got %d", a.MaxPlayers))
	}
	if a.SendBuffer < 1 {
		errs = append(errs, fmt.Sprintf("arena.send_buffer must be >= 1, got %d", a.SendBuffer))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment
// variable overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with ARENA_ prefix
	v.SetEnvPrefix("ARENA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8000)
	v.SetDefault("http.read_timeout", "10s")
	v.SetDefault("http.write_timeout", "10s")
	v.SetDefault("http.shutdown_timeout", "10s")
	v.SetDefault("http.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("arena.default_room", "1234")
	v.SetDefault("arena.max_players", 5)
	v.SetDefault("arena.send_buffer", 64)
	v.SetDefault("arena.content_path", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
