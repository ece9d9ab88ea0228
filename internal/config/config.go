// Package config holds the mesh client configuration and its
// environment loader.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Coffee-Nerd/MudVault-Mesh/internal/proto"
)

// Config enumerates every option the client understands. Defaults
// come from the published client recommendations; Validate enforces
// the protocol bounds.
type Config struct {
	// Identity and gateway endpoint.
	MudName     string
	GatewayHost string
	GatewayPort int
	AuthToken   string
	AdminEmail  string

	// Connection lifecycle.
	ReconnectDelay time.Duration
	MaxReconnects  int
	PingInterval   time.Duration
	ConnectTimeout time.Duration
	RetryBackoff   float64
	MaxRetryDelay  time.Duration

	// Sizes.
	MaxMessageLen  int
	BufferSize     int
	HistorySize    int
	ChannelHistory int

	// Rate caps per minute, per local player.
	TellsPerMinute    int
	ChannelsPerMinute int
	WhoPerMinute      int

	// Minimum local level per command.
	MinLevelTell    int
	MinLevelChannel int
	MinLevelWho     int
	MinLevelFinger  int

	// Behaviour toggles.
	FilterProfanity bool
	LogAllMessages  bool
	AuditLogPath    string
	EnableColor     bool

	// Feature toggles per kind.
	EnableTell    bool
	EnableChannel bool
	EnableWho     bool
	EnableFinger  bool
	EnableLocate  bool
	EnableEmote   bool
	EnableMail    bool
	EnableFile    bool
}

// Default returns the recommended configuration. MudName and
// AuthToken must still be supplied before Validate passes.
func Default() Config {
	return Config{
		GatewayHost: "mesh.mudvault.org",
		GatewayPort: 8081,

		ReconnectDelay: 30 * time.Second,
		MaxReconnects:  10,
		PingInterval:   60 * time.Second,
		ConnectTimeout: 30 * time.Second,
		RetryBackoff:   2,
		MaxRetryDelay:  300 * time.Second,

		MaxMessageLen:  4096,
		BufferSize:     8192,
		HistorySize:    100,
		ChannelHistory: 50,

		TellsPerMinute:    20,
		ChannelsPerMinute: 30,
		WhoPerMinute:      5,

		MinLevelTell:    1,
		MinLevelChannel: 1,
		MinLevelWho:     1,
		MinLevelFinger:  5,

		FilterProfanity: true,
		EnableColor:     true,

		EnableTell:    true,
		EnableChannel: true,
		EnableWho:     true,
		EnableFinger:  true,
		EnableLocate:  true,
		EnableEmote:   true,
		EnableMail:    false,
		EnableFile:    false,
	}
}

// Load reads an optional .env file and applies MESH_* environment
// overrides on top of the defaults.
func Load() (Config, error) {
	// Missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	cfg := Default()
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = time.Duration(n) * time.Second
			} else if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "on":
				*dst = true
			case "0", "false", "no", "off":
				*dst = false
			}
		}
	}

	str("MESH_MUD_NAME", &cfg.MudName)
	str("MESH_GATEWAY_HOST", &cfg.GatewayHost)
	num("MESH_GATEWAY_PORT", &cfg.GatewayPort)
	str("MESH_AUTH_TOKEN", &cfg.AuthToken)
	str("MESH_ADMIN_EMAIL", &cfg.AdminEmail)

	dur("MESH_RECONNECT_DELAY", &cfg.ReconnectDelay)
	num("MESH_MAX_RECONNECTS", &cfg.MaxReconnects)
	dur("MESH_PING_INTERVAL", &cfg.PingInterval)
	dur("MESH_CONNECT_TIMEOUT", &cfg.ConnectTimeout)
	dur("MESH_MAX_RETRY_DELAY", &cfg.MaxRetryDelay)
	if v, ok := os.LookupEnv("MESH_RETRY_BACKOFF"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RetryBackoff = f
		}
	}

	num("MESH_MAX_MESSAGE_LEN", &cfg.MaxMessageLen)
	num("MESH_BUFFER_SIZE", &cfg.BufferSize)
	num("MESH_HISTORY_SIZE", &cfg.HistorySize)
	num("MESH_CHANNEL_HISTORY", &cfg.ChannelHistory)

	num("MESH_MAX_TELLS_MIN", &cfg.TellsPerMinute)
	num("MESH_MAX_CHANNELS_MIN", &cfg.ChannelsPerMinute)
	num("MESH_MAX_WHO_MIN", &cfg.WhoPerMinute)

	num("MESH_MIN_LEVEL_TELL", &cfg.MinLevelTell)
	num("MESH_MIN_LEVEL_CHANNEL", &cfg.MinLevelChannel)
	num("MESH_MIN_LEVEL_WHO", &cfg.MinLevelWho)
	num("MESH_MIN_LEVEL_FINGER", &cfg.MinLevelFinger)

	boolean("MESH_FILTER_PROFANITY", &cfg.FilterProfanity)
	boolean("MESH_LOG_ALL_MESSAGES", &cfg.LogAllMessages)
	str("MESH_AUDIT_LOG", &cfg.AuditLogPath)
	boolean("MESH_ENABLE_COLOR", &cfg.EnableColor)

	boolean("MESH_ENABLE_TELL", &cfg.EnableTell)
	boolean("MESH_ENABLE_CHANNEL", &cfg.EnableChannel)
	boolean("MESH_ENABLE_WHO", &cfg.EnableWho)
	boolean("MESH_ENABLE_FINGER", &cfg.EnableFinger)
	boolean("MESH_ENABLE_LOCATE", &cfg.EnableLocate)
	boolean("MESH_ENABLE_EMOTE", &cfg.EnableEmote)
	boolean("MESH_ENABLE_MAIL", &cfg.EnableMail)
	boolean("MESH_ENABLE_FILE", &cfg.EnableFile)
}

// Validate enforces required fields and protocol bounds.
func (c Config) Validate() error {
	if c.MudName == "" {
		return fmt.Errorf("mud_name is required")
	}
	if !proto.ValidMudName(c.MudName) {
		return fmt.Errorf("mud_name %q is not a valid MUD name", c.MudName)
	}
	if c.AuthToken == "" {
		return fmt.Errorf("auth_token is required")
	}
	if c.GatewayHost == "" {
		return fmt.Errorf("gateway_host is required")
	}
	if c.GatewayPort <= 0 || c.GatewayPort > 65535 {
		return fmt.Errorf("gateway_port %d out of range", c.GatewayPort)
	}
	if c.PingInterval < 30*time.Second {
		return fmt.Errorf("ping_interval must be at least 30s, got %s", c.PingInterval)
	}
	if c.MaxMessageLen <= 0 || c.MaxMessageLen > 4096 {
		return fmt.Errorf("max_message_len must be in (0, 4096], got %d", c.MaxMessageLen)
	}
	if c.RetryBackoff < 1 {
		return fmt.Errorf("retry_backoff must be >= 1, got %g", c.RetryBackoff)
	}
	if c.MaxReconnects < 1 {
		return fmt.Errorf("max_reconnects must be >= 1, got %d", c.MaxReconnects)
	}
	if c.HistorySize < 1 || c.ChannelHistory < 1 {
		return fmt.Errorf("history sizes must be >= 1")
	}
	return nil
}

// GatewayAddr renders the host:port dial target.
func (c Config) GatewayAddr() string {
	return fmt.Sprintf("%s:%d", c.GatewayHost, c.GatewayPort)
}
