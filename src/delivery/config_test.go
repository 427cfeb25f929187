package delivery

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Udit004/alumni-networking-sub003/src/lib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFileConfig(t *testing.T) {
	data := []byte(`
endpoints:
  - name: primary
    url: http://api-1:3000/api
  - name: backup
    url: http://api-2:3000/api
attempt_timeout: 2s
poll_interval: 1m
hints_path: /tmp/hints.db
fallback:
  mongo_uri: mongodb://localhost:27017
`)
	cfg, err := ParseFileConfig(data)
	require.NoError(t, err)

	assert.Len(t, cfg.Endpoints, 2)
	assert.Equal(t, 2*time.Second, cfg.AttemptTimeout)
	assert.Equal(t, time.Minute, cfg.PollInterval)
	assert.Equal(t, DefaultMaxPollFailures, cfg.MaxPollFailures)
	assert.Equal(t, DefaultLimit, cfg.Limit)
	assert.Equal(t, "alumni_network", cfg.Fallback.Database)

	set := cfg.EndpointSet("tok", nil)
	assert.Equal(t, 2, set.Len())
	assert.Equal(t, "http://api-2:3000/api", set.Lookup("backup").URL)

	opts := cfg.Options()
	assert.Equal(t, time.Minute, opts.PollInterval)
}

func TestParseFileConfigRejects(t *testing.T) {
	tests := map[string]string{
		"unknown field":  "endpoints: [{name: a, url: http://a}]\npol_interval: 1s\n",
		"missing url":    "endpoints: [{name: a}]\n",
		"missing name":   "endpoints: [{url: http://a}]\n",
		"duplicate name": "endpoints: [{name: a, url: http://a}, {name: a, url: http://b}]\n",
		"no source":      "limit: 5\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseFileConfig([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestLoadFileConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notifyctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("endpoints: [{name: a, url: http://a}]\n"), 0o600))

	cfg, err := LoadFileConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultAttemptTimeout, cfg.AttemptTimeout)

	_, err = LoadFileConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEndpointSetOrdered(t *testing.T) {
	set := NewEndpointSet(&Endpoint{Name: "a"}, &Endpoint{Name: "b"}, &Endpoint{Name: "c"})

	names := func(list []*Endpoint) []string {
		out := make([]string, len(list))
		for i, ep := range list {
			out[i] = ep.Name
		}
		return out
	}
	assert.Equal(t, []string{"a", "b", "c"}, names(set.Ordered("")))
	assert.Equal(t, []string{"c", "a", "b"}, names(set.Ordered("c")))
	assert.Equal(t, []string{"a", "b", "c"}, names(set.Ordered("gone")))
}

func TestGormHintStore(t *testing.T) {
	db, err := lib.ConnectSQLite(filepath.Join(t.TempDir(), "hints.db"))
	require.NoError(t, err)
	hints, err := NewGormHintStore(db)
	require.NoError(t, err)
	ctx := context.Background()

	got, err := hints.Load(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, hints.Save(ctx, "bob", "primary"))
	require.NoError(t, hints.Save(ctx, "bob", "backup"))
	require.NoError(t, hints.Save(ctx, "alice", "primary"))

	got, err = hints.Load(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "backup", got)
}
