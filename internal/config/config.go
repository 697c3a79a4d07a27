// Package config loads server settings from HEXHAVEN_* environment variables.
package config

import (
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/KirkDiggler/hexhaven-api/internal/engine/rest"
	"github.com/KirkDiggler/hexhaven-api/internal/errors"
)

// Config holds every setting the server command needs
type Config struct {
	LogLevel string `env:"HEXHAVEN_LOG_LEVEL" envDefault:"info"`

	HTTPAddr string `env:"HEXHAVEN_HTTP_ADDR" envDefault:":8080"`
	GRPCAddr string `env:"HEXHAVEN_GRPC_ADDR" envDefault:":50051"`

	// HandshakeTimeout bounds the wait for a websocket client's hello
	HandshakeTimeout time.Duration `env:"HEXHAVEN_HANDSHAKE_TIMEOUT" envDefault:"5s"`
	ReconnectGrace   time.Duration `env:"HEXHAVEN_RECONNECT_GRACE"   envDefault:"10s"`
	OutboxSize       int           `env:"HEXHAVEN_OUTBOX_SIZE"       envDefault:"256"`
	PersistTimeout   time.Duration `env:"HEXHAVEN_PERSIST_TIMEOUT"   envDefault:"5s"`
	SnapshotTTL      time.Duration `env:"HEXHAVEN_SNAPSHOT_TTL"      envDefault:"24h"`
	MaxRooms         int           `env:"HEXHAVEN_MAX_ROOMS"         envDefault:"100"`
	LogSize          int           `env:"HEXHAVEN_LOG_SIZE"          envDefault:"200"`

	// RedisEndpoint selects the Redis repositories. Empty keeps state in memory.
	RedisEndpoint         string   `env:"HEXHAVEN_REDIS_ENDPOINT"`
	RedisClusterEndpoints []string `env:"HEXHAVEN_REDIS_CLUSTER_ENDPOINTS" envSeparator:","`
	RedisPoolSize         int      `env:"HEXHAVEN_REDIS_POOL_SIZE"         envDefault:"10"`
	RedisTLS              bool     `env:"HEXHAVEN_REDIS_TLS"`

	Rules RulesConfig

	OtelEndpoint string `env:"HEXHAVEN_OTEL_ENDPOINT"`
	ServiceName  string `env:"HEXHAVEN_SERVICE_NAME" envDefault:"hexhaven-api"`
}

// RulesConfig carries the tunable rest and reroll numbers
type RulesConfig struct {
	ShortRestHeal      int `env:"HEXHAVEN_SHORT_REST_HEAL"      envDefault:"1"`
	LongRestHeal       int `env:"HEXHAVEN_LONG_REST_HEAL"       envDefault:"2"`
	RerollDamage       int `env:"HEXHAVEN_REROLL_DAMAGE"        envDefault:"1"`
	MinDiscard         int `env:"HEXHAVEN_MIN_DISCARD"          envDefault:"2"`
	LongRestInitiative int `env:"HEXHAVEN_LONG_REST_INITIATIVE" envDefault:"99"`
}

// Load parses the process environment
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFrom parses the given variables instead of the process environment
func LoadFrom(environ map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeInvalidArgument, "failed to parse environment")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges that env parsing cannot express
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()

	if _, ok := levels[strings.ToLower(c.LogLevel)]; !ok {
		vb.InvalidField("LogLevel", "must be one of debug, info, warn, error")
	}
	errors.ValidateRequired("HTTPAddr", c.HTTPAddr, vb)
	errors.ValidateRequired("GRPCAddr", c.GRPCAddr, vb)
	if c.HandshakeTimeout <= 0 {
		vb.InvalidField("HandshakeTimeout", "must be positive")
	}
	if c.ReconnectGrace < 0 {
		vb.InvalidField("ReconnectGrace", "must not be negative")
	}
	if c.OutboxSize <= 0 {
		vb.InvalidField("OutboxSize", "must be positive")
	}
	if c.PersistTimeout <= 0 {
		vb.InvalidField("PersistTimeout", "must be positive")
	}
	if c.MaxRooms <= 0 {
		vb.InvalidField("MaxRooms", "must be positive")
	}
	if c.LogSize <= 0 {
		vb.InvalidField("LogSize", "must be positive")
	}
	if c.RedisEndpoint != "" && len(c.RedisClusterEndpoints) > 0 {
		vb.InvalidField("RedisEndpoint", "set either a single endpoint or cluster endpoints")
	}
	if c.Rules.MinDiscard < 2 {
		vb.InvalidField("MinDiscard", "a rest needs at least two discarded cards")
	}
	if c.Rules.ShortRestHeal < 0 || c.Rules.LongRestHeal < 0 || c.Rules.RerollDamage < 0 {
		vb.InvalidField("Rules", "heal and damage amounts must not be negative")
	}
	errors.ValidateRange("LongRestInitiative", c.Rules.LongRestInitiative, 1, 99, vb)

	return vb.Build()
}

// UseRedis reports whether Redis repositories are configured
func (c *Config) UseRedis() bool {
	return c.RedisEndpoint != "" || len(c.RedisClusterEndpoints) > 0
}

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// SlogLevel maps LogLevel onto slog
func (c *Config) SlogLevel() slog.Level {
	if lvl, ok := levels[strings.ToLower(c.LogLevel)]; ok {
		return lvl
	}
	return slog.LevelInfo
}

// RestRules converts the rules block for the engine
func (c *Config) RestRules() rest.Rules {
	return rest.Rules{
		ShortRestHeal:      c.Rules.ShortRestHeal,
		LongRestHeal:       c.Rules.LongRestHeal,
		RerollDamage:       c.Rules.RerollDamage,
		MinDiscard:         c.Rules.MinDiscard,
		LongRestInitiative: c.Rules.LongRestInitiative,
	}
}
