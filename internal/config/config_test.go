package config_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KirkDiggler/hexhaven-api/internal/config"
	"github.com/KirkDiggler/hexhaven-api/internal/engine/rest"
	"github.com/KirkDiggler/hexhaven-api/internal/errors"
)

func TestDefaults(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, ":50051", cfg.GRPCAddr)
	assert.Equal(t, 5*time.Second, cfg.HandshakeTimeout)
	assert.Equal(t, 10*time.Second, cfg.ReconnectGrace)
	assert.Equal(t, 24*time.Hour, cfg.SnapshotTTL)
	assert.Equal(t, 200, cfg.LogSize)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
	assert.False(t, cfg.UseRedis())
	assert.Equal(t, rest.DefaultRules(), cfg.RestRules())
}

func TestOverrides(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{
		"HEXHAVEN_LOG_LEVEL":               "DEBUG",
		"HEXHAVEN_RECONNECT_GRACE":         "30s",
		"HEXHAVEN_REDIS_CLUSTER_ENDPOINTS": "r1:6379,r2:6379",
		"HEXHAVEN_SHORT_REST_HEAL":         "0",
		"HEXHAVEN_LONG_REST_INITIATIVE":    "90",
	})
	require.NoError(t, err)

	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.Equal(t, 30*time.Second, cfg.ReconnectGrace)
	assert.Equal(t, []string{"r1:6379", "r2:6379"}, cfg.RedisClusterEndpoints)
	assert.True(t, cfg.UseRedis())
	assert.Zero(t, cfg.RestRules().ShortRestHeal)
	assert.Equal(t, 90, cfg.RestRules().LongRestInitiative)
}

func TestInvalid(t *testing.T) {
	testCases := []struct {
		name    string
		environ map[string]string
		field   string
	}{
		{name: "log level", environ: map[string]string{"HEXHAVEN_LOG_LEVEL": "loud"}, field: "LogLevel"},
		{name: "zero handshake", environ: map[string]string{"HEXHAVEN_HANDSHAKE_TIMEOUT": "0s"}, field: "HandshakeTimeout"},
		{name: "negative grace", environ: map[string]string{"HEXHAVEN_RECONNECT_GRACE": "-1s"}, field: "ReconnectGrace"},
		{name: "zero outbox", environ: map[string]string{"HEXHAVEN_OUTBOX_SIZE": "0"}, field: "OutboxSize"},
		{name: "both redis modes", environ: map[string]string{
			"HEXHAVEN_REDIS_ENDPOINT":          "localhost:6379",
			"HEXHAVEN_REDIS_CLUSTER_ENDPOINTS": "r1:6379",
		}, field: "RedisEndpoint"},
		{name: "min discard", environ: map[string]string{"HEXHAVEN_MIN_DISCARD": "1"}, field: "MinDiscard"},
		{name: "long rest initiative", environ: map[string]string{"HEXHAVEN_LONG_REST_INITIATIVE": "100"}, field: "LongRestInitiative"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.LoadFrom(tc.environ)
			require.Error(t, err)
			assert.True(t, errors.IsInvalidArgument(err))
			assert.Contains(t, err.Error(), tc.field)
		})
	}
}

func TestUnparseable(t *testing.T) {
	_, err := config.LoadFrom(map[string]string{"HEXHAVEN_PERSIST_TIMEOUT": "soon"})
	require.Error(t, err)
	assert.True(t, errors.IsInvalidArgument(err))
}
