package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Default()
	cfg.MudName = "TestMUD"
	cfg.AuthToken = "secret"
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "mesh.mudvault.org", cfg.GatewayHost)
	assert.Equal(t, 8081, cfg.GatewayPort)
	assert.Equal(t, 30*time.Second, cfg.ReconnectDelay)
	assert.Equal(t, 10, cfg.MaxReconnects)
	assert.Equal(t, 60*time.Second, cfg.PingInterval)
	assert.Equal(t, 300*time.Second, cfg.MaxRetryDelay)
	assert.Equal(t, float64(2), cfg.RetryBackoff)
	assert.Equal(t, 4096, cfg.MaxMessageLen)
	assert.Equal(t, 100, cfg.HistorySize)
	assert.Equal(t, 50, cfg.ChannelHistory)
	assert.Equal(t, 20, cfg.TellsPerMinute)
	assert.Equal(t, 30, cfg.ChannelsPerMinute)
	assert.Equal(t, 5, cfg.WhoPerMinute)
	assert.True(t, cfg.EnableTell)
	assert.False(t, cfg.EnableMail)
	assert.False(t, cfg.EnableFile)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MESH_MUD_NAME", "EnvMUD")
	t.Setenv("MESH_AUTH_TOKEN", "env-token")
	t.Setenv("MESH_GATEWAY_HOST", "gateway.example.com")
	t.Setenv("MESH_GATEWAY_PORT", "9000")
	t.Setenv("MESH_PING_INTERVAL", "90")
	t.Setenv("MESH_MAX_RETRY_DELAY", "2m")
	t.Setenv("MESH_ENABLE_CHANNEL", "off")
	t.Setenv("MESH_FILTER_PROFANITY", "0")
	t.Setenv("MESH_MAX_TELLS_MIN", "7")
	t.Setenv("MESH_RETRY_BACKOFF", "1.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "EnvMUD", cfg.MudName)
	assert.Equal(t, "env-token", cfg.AuthToken)
	assert.Equal(t, "gateway.example.com", cfg.GatewayHost)
	assert.Equal(t, 9000, cfg.GatewayPort)
	assert.Equal(t, 90*time.Second, cfg.PingInterval)
	assert.Equal(t, 2*time.Minute, cfg.MaxRetryDelay)
	assert.False(t, cfg.EnableChannel)
	assert.False(t, cfg.FilterProfanity)
	assert.Equal(t, 7, cfg.TellsPerMinute)
	assert.Equal(t, 1.5, cfg.RetryBackoff)
}

func TestEnvIgnoresGarbage(t *testing.T) {
	t.Setenv("MESH_MUD_NAME", "EnvMUD")
	t.Setenv("MESH_AUTH_TOKEN", "env-token")
	t.Setenv("MESH_GATEWAY_PORT", "not-a-number")
	t.Setenv("MESH_ENABLE_TELL", "maybe")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8081, cfg.GatewayPort, "unparseable values keep the default")
	assert.True(t, cfg.EnableTell)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, validConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing mud name", func(c *Config) { c.MudName = "" }, "mud_name is required"},
		{"bad mud name", func(c *Config) { c.MudName = "has spaces!" }, "not a valid MUD name"},
		{"missing token", func(c *Config) { c.AuthToken = "" }, "auth_token is required"},
		{"missing host", func(c *Config) { c.GatewayHost = "" }, "gateway_host is required"},
		{"port too high", func(c *Config) { c.GatewayPort = 70000 }, "out of range"},
		{"ping too short", func(c *Config) { c.PingInterval = 10 * time.Second }, "at least 30s"},
		{"message too long", func(c *Config) { c.MaxMessageLen = 8192 }, "max_message_len"},
		{"message zero", func(c *Config) { c.MaxMessageLen = 0 }, "max_message_len"},
		{"backoff below one", func(c *Config) { c.RetryBackoff = 0.5 }, "retry_backoff"},
		{"no reconnects", func(c *Config) { c.MaxReconnects = 0 }, "max_reconnects"},
		{"zero history", func(c *Config) { c.HistorySize = 0 }, "history sizes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestGatewayAddr(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "mesh.mudvault.org:8081", cfg.GatewayAddr())
}
