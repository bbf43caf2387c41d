// Package config provides Viper-based configuration loading for the Go Fish server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. GOFISH_HTTP_PORT.
const EnvPrefix = "GOFISH"

// HTTPConfig holds the websocket and HTTP listener settings.
type HTTPConfig struct {
	// Host is the bind address for the HTTP listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the HTTP listener.
	Port int `mapstructure:"port"`
	// PongWait is how long a websocket may stay silent before it is dropped.
	PongWait time.Duration `mapstructure:"pong_wait"`
	// PingInterval is how often the server pings each websocket. Must be below PongWait.
	PingInterval time.Duration `mapstructure:"ping_interval"`
	// MaxMessageBytes caps a single inbound websocket frame.
	MaxMessageBytes int64 `mapstructure:"max_message_bytes"`
	// OutboxSize is the per-connection send buffer, in messages.
	OutboxSize int `mapstructure:"outbox_size"`
	// AllowedOrigins restricts websocket upgrades; empty allows any origin.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// HealthConfig holds the gRPC health service settings.
type HealthConfig struct {
	// GRPCHost is the bind address for the health service.
	GRPCHost string `mapstructure:"grpc_host"`
	// GRPCPort is the TCP port for the health service; 0 disables it.
	GRPCPort int `mapstructure:"grpc_port"`
}

// Enabled reports whether the gRPC health service should run.
func (h HealthConfig) Enabled() bool {
	return h.GRPCPort != 0
}

// Addr returns the "host:port" gRPC address.
func (h HealthConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.GRPCHost, h.GRPCPort)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// GameConfig holds table rules and troller tuning.
type GameConfig struct {
	MinPlayers           int           `mapstructure:"min_players"`
	MaxPlayers           int           `mapstructure:"max_players"`
	OctopusChance        int           `mapstructure:"octopus_chance"`
	DeckSwapChance       int           `mapstructure:"deck_swap_chance"`
	EarthquakeChance     int           `mapstructure:"earthquake_chance"`
	OctopusSkipDelay     time.Duration `mapstructure:"octopus_skip_delay"`
	DeckSwapRefreshDelay time.Duration `mapstructure:"deck_swap_refresh_delay"`
	// AbandonedRoomTTL removes dealt rooms nobody has been connected to for
	// this long. Zero keeps rooms forever.
	AbandonedRoomTTL time.Duration `mapstructure:"abandoned_room_ttl"`
	// SweepInterval is how often abandoned rooms are looked for.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	// Seed makes all randomness reproducible when non-zero.
	Seed uint64 `mapstructure:"seed"`
}

// Config is the top-level application configuration.
type Config struct {
	HTTP    HTTPConfig    `mapstructure:"http"`
	Health  HealthConfig  `mapstructure:"health"`
	Logging LoggingConfig `mapstructure:"logging"`
	Game    GameConfig    `mapstructure:"game"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateHTTP(c.HTTP); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateHealth(c.Health); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateGame(c.Game); err != nil {
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
	if h.PongWait <= 0 {
		errs = append(errs, "http.pong_wait must be positive")
	}
	if h.PingInterval <= 0 || h.PingInterval >= h.PongWait {
		errs = append(errs, fmt.Sprintf("http.ping_interval must be positive and below http.pong_wait, got %s", h.PingInterval))
	}
	if h.MaxMessageBytes < 1 {
		errs = append(errs, fmt.Sprintf("http.max_message_bytes must be >= 1, got %d", h.MaxMessageBytes))
	}
	if h.OutboxSize < 1 {
		errs = append(errs, fmt.Sprintf("http.outbox_size must be >= 1, got %d", h.OutboxSize))
	}
	if h.ShutdownTimeout < 0 {
		errs = append(errs, "http.shutdown_timeout must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateHealth(h HealthConfig) error {
	if h.GRPCPort < 0 || h.GRPCPort > 65535 {
		return fmt.Errorf("health.grpc_port must be 0-65535, got %d", h.GRPCPort)
	}
	if h.Enabled() && h.GRPCHost == "" {
		return fmt.Errorf("health.grpc_host must not be empty when health.grpc_port is set")
	}
	return nil
}

func validateGame(g GameConfig) error {
	var errs []string
	if g.MinPlayers < 2 {
		errs = append(errs, fmt.Sprintf("game.min_players must be >= 2, got %d", g.MinPlayers))
	}
	if g.MaxPlayers < g.MinPlayers || g.MaxPlayers > 4 {
		errs = append(errs, fmt.Sprintf("game.max_players must be between game.min_players and 4, got %d", g.MaxPlayers))
	}
	chances := []struct {
		key string
		val int
	}{
		{"game.octopus_chance", g.OctopusChance},
		{"game.deck_swap_chance", g.DeckSwapChance},
		{"game.earthquake_chance", g.EarthquakeChance},
	}
	for _, c := range chances {
		if c.val < 0 || c.val > 100 {
			errs = append(errs, fmt.Sprintf("%s must be 0-100, got %d", c.key, c.val))
		}
	}
	if g.OctopusSkipDelay < 0 {
		errs = append(errs, "game.octopus_skip_delay must not be negative")
	}
	if g.DeckSwapRefreshDelay < 0 {
		errs = append(errs, "game.deck_swap_refresh_delay must not be negative")
	}
	if g.AbandonedRoomTTL < 0 {
		errs = append(errs, "game.abandoned_room_ttl must not be negative")
	}
	if g.AbandonedRoomTTL > 0 && g.SweepInterval <= 0 {
		errs = append(errs, "game.sweep_interval must be positive when game.abandoned_room_ttl is set")
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

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result. An empty path uses defaults and the
// environment only.
//
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := NewViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}
	return LoadFromViper(v)
}

// NewViper returns a Viper instance with defaults and GOFISH_ environment
// overrides installed.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
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
	v.SetDefault("http.port", 3001)
	v.SetDefault("http.pong_wait", "60s")
	v.SetDefault("http.ping_interval", "25s")
	v.SetDefault("http.max_message_bytes", 64*1024)
	v.SetDefault("http.outbox_size", 64)
	v.SetDefault("http.allowed_origins", []string{})
	v.SetDefault("http.shutdown_timeout", "10s")

	v.SetDefault("health.grpc_host", "127.0.0.1")
	v.SetDefault("health.grpc_port", 0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("game.min_players", 2)
	v.SetDefault("game.max_players", 4)
	v.SetDefault("game.octopus_chance", 15)
	v.SetDefault("game.deck_swap_chance", 12)
	v.SetDefault("game.earthquake_chance", 10)
	v.SetDefault("game.octopus_skip_delay", "3s")
	v.SetDefault("game.deck_swap_refresh_delay", "2500ms")
	v.SetDefault("game.abandoned_room_ttl", "0s")
	v.SetDefault("game.sweep_interval", "1m")
	v.SetDefault("game.seed", 0)
}
