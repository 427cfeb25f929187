package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "notifyctl", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"watch", "read", "read-all", "endpoints"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"config", "user", "token", "verbose", "format"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
	assert.Equal(t, "v", cmd.PersistentFlags().Lookup("verbose").Shorthand)
	assert.Equal(t, "text", cmd.PersistentFlags().Lookup("format").DefValue)
}

// stubAPI answers the notification routes with a fixed list
type stubAPI struct {
	mu      sync.Mutex
	reads   []string
	readAll int
	server  *httptest.Server
}

func newStubAPI(t *testing.T) *stubAPI {
	s := &stubAPI{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/notifications", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("recipient") != "bob" || r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"success":false,"message":"forbidden"}`)
			return
		}
		fmt.Fprint(w, `{"success":true,"notifications":[
			{"id":"n1","recipient":"bob","type":"message","payload":{"message":"older"},"createdAt":"2024-03-01T09:00:00Z","read":true},
			{"id":"n2","recipient":"bob","type":"connection_request","payload":{"message":"Alice sent you a connection request"},"createdAt":"2024-03-01T10:00:00Z","read":false}
		]}`)
	})
	mux.HandleFunc("PUT /api/notifications/read-all", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.readAll++
		s.mu.Unlock()
		fmt.Fprint(w, `{"success":true}`)
	})
	mux.HandleFunc("PUT /api/notifications/{id}/read", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.reads = append(s.reads, r.PathValue("id"))
		s.mu.Unlock()
		fmt.Fprint(w, `{"success":true}`)
	})
	s.server = httptest.NewServer(mux)
	t.Cleanup(s.server.Close)
	return s
}

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "notifyctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestWatchOnce(t *testing.T) {
	api := newStubAPI(t)
	cfg := writeConfig(t, fmt.Sprintf(`
endpoints:
  - name: down
    url: http://127.0.0.1:1/api
  - name: local
    url: %s/api
attempt_timeout: 500ms
hints_path: %s
`, api.server.URL, filepath.Join(t.TempDir(), "hints.db")))

	out, err := run(t, "watch", "--once", "--config", cfg, "--user", "bob", "--token", "tok")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "[ ] n2"), lines[0])
	assert.Contains(t, lines[0], "Alice sent you a connection request")
	assert.True(t, strings.HasPrefix(lines[1], "[x] n1"), lines[1])
}

func TestWatchOnceJSON(t *testing.T) {
	api := newStubAPI(t)
	cfg := writeConfig(t, fmt.Sprintf("endpoints: [{name: local, url: %s/api}]\n", api.server.URL))

	out, err := run(t, "watch", "--once", "--format", "json", "-c", cfg, "-u", "bob", "--token", "tok")
	require.NoError(t, err)

	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "n2", list[0]["id"])
}

func TestReadCommands(t *testing.T) {
	api := newStubAPI(t)
	cfg := writeConfig(t, fmt.Sprintf("endpoints: [{name: local, url: %s/api}]\n", api.server.URL))

	out, err := run(t, "read", "n2", "-c", cfg, "-u", "bob", "--token", "tok")
	require.NoError(t, err)
	assert.Contains(t, out, "marked n2 read")

	_, err = run(t, "read-all", "-c", cfg, "-u", "bob", "--token", "tok")
	require.NoError(t, err)

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Equal(t, []string{"n2"}, api.reads)
	assert.Equal(t, 1, api.readAll)
}

func TestReadFailsWhenNothingAnswers(t *testing.T) {
	cfg := writeConfig(t, "endpoints: [{name: down, url: http://127.0.0.1:1/api}]\nattempt_timeout: 200ms\n")

	_, err := run(t, "read", "n1", "-c", cfg, "-u", "bob")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestEndpointsReport(t *testing.T) {
	api := newStubAPI(t)
	cfg := writeConfig(t, fmt.Sprintf(`
endpoints:
  - name: down
    url: http://127.0.0.1:1/api
  - name: local
    url: %s/api
attempt_timeout: 500ms
`, api.server.URL))

	out, err := run(t, "endpoints", "-c", cfg, "-u", "bob", "--token", "tok")
	require.NoError(t, err)
	assert.Contains(t, out, "state: bound_rest")
	assert.Contains(t, out, "bound: local")
	assert.Contains(t, out, "healthy: 1/2")
}

func TestCommandErrors(t *testing.T) {
	_, err := run(t, "watch", "--once", "--format", "xml", "-u", "bob")
	assert.Error(t, err)

	cfg := writeConfig(t, "endpoints: [{name: a, url: http://a}]\n")
	_, err = run(t, "watch", "--once", "-c", cfg)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = run(t, "watch", "--once", "-c", filepath.Join(t.TempDir(), "missing.yaml"), "-u", "bob")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSessionClosesHintsDatabase(t *testing.T) {
	cfg := writeConfig(t, fmt.Sprintf("endpoints: [{name: a, url: http://a}]\nhints_path: %s\n",
		filepath.Join(t.TempDir(), "hints.db")))

	s, err := openSession(context.Background(), &RootOptions{ConfigPath: cfg, User: "bob"})
	require.NoError(t, err)
	assert.Len(t, s.closers, 1)

	s.Close()
	assert.Empty(t, s.closers)
}

func TestSessionRejectsBrokenHintsDatabase(t *testing.T) {
	hints := filepath.Join(t.TempDir(), "hints.db")
	require.NoError(t, os.WriteFile(hints, []byte("not a database, just text that is long enough to fill a header"), 0o600))
	cfg := writeConfig(t, fmt.Sprintf("endpoints: [{name: a, url: http://a}]\nhints_path: %s\n", hints))

	_, err := openSession(context.Background(), &RootOptions{ConfigPath: cfg, User: "bob"})
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
