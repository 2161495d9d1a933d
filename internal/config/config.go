package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/cartridge/replaybuffer/internal/storage"
)

// EnvPrefix is prepended to every environment variable, e.g. REPLAY_CAPACITY.
const EnvPrefix = "REPLAY"

// Config holds all replay service configuration
type Config struct {
	// Service endpoints
	GRPCAddr string `mapstructure:"grpc_addr"`
	HTTPAddr string `mapstructure:"http_addr"`

	// Buffer shape
	Capacity       int `mapstructure:"capacity"`
	ObservationDim int `mapstructure:"observation_dim"`
	ActionDim      int `mapstructure:"action_dim"`

	// Prioritization
	Alpha               float64 `mapstructure:"alpha"`
	MaxResampleAttempts int     `mapstructure:"max_resample_attempts"`
	Seed                int64   `mapstructure:"seed"`

	// Events; empty NATSURL disables publishing
	NATSURL     string `mapstructure:"nats_url"`
	NATSSubject string `mapstructure:"nats_subject"`

	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// Logging
	LogLevel string `mapstructure:"log_level"`
}

// Default returns a config with sensible defaults
func Default() *Config {
	return &Config{
		GRPCAddr:            ":8080",
		HTTPAddr:            ":9090",
		Capacity:            100000,
		ObservationDim:      8,
		ActionDim:           3,
		Alpha:               0.6,
		MaxResampleAttempts: storage.DefaultMaxResampleAttempts,
		NATSSubject:         "replay",
		ShutdownTimeout:     30 * time.Second,
		LogLevel:            "info",
	}
}

// BufferOptions converts the config into storage options.
func (c *Config) BufferOptions() storage.Options {
	return storage.Options{
		Capacity:            c.Capacity,
		ObservationDim:      c.ObservationDim,
		ActionDim:           c.ActionDim,
		Alpha:               c.Alpha,
		MaxResampleAttempts: c.MaxResampleAttempts,
		Seed:                c.Seed,
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.GRPCAddr == "" {
		return fmt.Errorf("grpc_addr is required")
	}
	if c.Capacity <= 0 {
		return fmt.Errorf("capacity must be positive")
	}
	if c.ObservationDim <= 0 || c.ActionDim <= 0 {
		return fmt.Errorf("observation_dim and action_dim must be positive")
	}
	if c.Alpha < 0 {
		return fmt.Errorf("alpha must be >= 0")
	}
	if c.MaxResampleAttempts < 0 {
		return fmt.Errorf("max_resample_attempts must be >= 0")
	}
	if c.NATSURL != "" && c.NATSSubject == "" {
		return fmt.Errorf("nats_subject is required when nats_url is set")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive")
	}
	return nil
}

// BindFlags binds every flag to the viper key with dashes replaced by
// underscores, so --max-resample-attempts feeds max_resample_attempts.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var bindErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if bindErr != nil {
			return
		}
		bindErr = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
	})
	return bindErr
}

// Load resolves configuration from defaults, REPLAY_* environment
// variables and any flags bound to v, in increasing precedence.
func Load(v *viper.Viper) (*Config, error) {
	cfg := Default()

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetDefault("grpc_addr", cfg.GRPCAddr)
	v.SetDefault("http_addr", cfg.HTTPAddr)
	v.SetDefault("capacity", cfg.Capacity)
	v.SetDefault("observation_dim", cfg.ObservationDim)
	v.SetDefault("action_dim", cfg.ActionDim)
	v.SetDefault("alpha", cfg.Alpha)
	v.SetDefault("max_resample_attempts", cfg.MaxResampleAttempts)
	v.SetDefault("seed", cfg.Seed)
	v.SetDefault("nats_url", cfg.NATSURL)
	v.SetDefault("nats_subject", cfg.NATSSubject)
	v.SetDefault("shutdown_timeout", cfg.ShutdownTimeout)
	v.SetDefault("log_level", cfg.LogLevel)

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
