package lib

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("GRAPH_BACKEND", "memory")
	t.Setenv("NOTIFICATION_BACKEND", "memory")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.MutualWeight)
	assert.Equal(t, 10, cfg.SuggestionLimit)
	assert.Equal(t, 3, cfg.MutationAttempts)
	assert.Equal(t, 5*time.Minute, cfg.ConnectionsCacheTTL)
	assert.False(t, cfg.UsesMongo())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("GRAPH_BACKEND", "neo4j")
	t.Setenv("NOTIFICATION_BACKEND", "sqlite")
	t.Setenv("MUTUAL_WEIGHT", "3")
	t.Setenv("CONNECTIONS_CACHE_TTL", "30s")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.MutualWeight)
	assert.Equal(t, 30*time.Second, cfg.ConnectionsCacheTTL)
	assert.Equal(t, "https://a.example,https://b.example", cfg.AllowOrigins())
}

func TestLoadConfigRejectsUnknownBackend(t *testing.T) {
	t.Setenv("GRAPH_BACKEND", "redis")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "GRAPH_BACKEND")
}

func TestJWTRoundTrip(t *testing.T) {
	token, err := GenerateJWT("alice", "secret", time.Hour)
	require.NoError(t, err)

	userID, err := VerifyJWT(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "alice", userID)

	_, err = VerifyJWT(token, "other-secret")
	assert.Error(t, err)
}
