package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(viper.New())
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("REPLAY_CAPACITY", "4096")
	t.Setenv("REPLAY_ALPHA", "0.7")
	t.Setenv("REPLAY_SHUTDOWN_TIMEOUT", "5s")
	t.Setenv("REPLAY_NATS_URL", "nats://localhost:4222")

	cfg, err := Load(viper.New())
	require.NoError(t, err)
	assert.Equal(t, 4096, cfg.Capacity)
	assert.Equal(t, 0.7, cfg.Alpha)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "nats://localhost:4222", cfg.NATSURL)
}

func TestLoad_FlagsBeatEnv(t *testing.T) {
	t.Setenv("REPLAY_CAPACITY", "4096")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("capacity", 0, "")
	flags.Int("max-resample-attempts", 0, "")
	require.NoError(t, flags.Parse([]string{"--capacity=64", "--max-resample-attempts=7"}))

	v := viper.New()
	require.NoError(t, BindFlags(v, flags))
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Capacity)
	assert.Equal(t, 7, cfg.MaxResampleAttempts)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"capacity":  func(c *Config) { c.Capacity = 0 },
		"dims":      func(c *Config) { c.ActionDim = 0 },
		"alpha":     func(c *Config) { c.Alpha = -0.5 },
		"attempts":  func(c *Config) { c.MaxResampleAttempts = -1 },
		"subject":   func(c *Config) { c.NATSURL = "nats://x"; c.NATSSubject = "" },
		"grpc addr": func(c *Config) { c.GRPCAddr = "" },
		"shutdown":  func(c *Config) { c.ShutdownTimeout = 0 },
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(cfg)
		assert.Error(t, cfg.Validate(), name)
	}
	assert.NoError(t, Default().Validate())
}
