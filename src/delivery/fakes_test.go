package delivery

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Udit004/alumni-networking-sub003/src/models"
)

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers map[*fakeTicker]struct{}
}

type fakeTicker struct {
	clock *fakeClock
	every time.Duration
	next  time.Time
	ch    chan time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{
		now:     time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		tickers: make(map[*fakeTicker]struct{}),
	}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) NewTicker(d time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTicker{clock: f, every: d, next: f.now.Add(d), ch: make(chan time.Time, 1)}
	f.tickers[t] = struct{}{}
	return t
}

// Advance moves time forward and fires every ticker that came due
func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
	for t := range f.tickers {
		for !t.next.After(f.now) {
			select {
			case t.ch <- f.now:
			default:
			}
			t.next = t.next.Add(t.every)
		}
	}
}

// Live returns how many tickers have not been stopped
func (f *fakeClock) Live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tickers)
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	delete(t.clock.tickers, t)
}

const testToken = "tok"

// fakeAPI serves the notification routes for one recipient
type fakeAPI struct {
	mu      sync.Mutex
	list    []models.Notification
	fail    bool
	hang    bool
	fetches int
	reads   []string
	readAll int

	release chan struct{}
	server  *httptest.Server
}

func newFakeAPI(t *testing.T, list ...models.Notification) *fakeAPI {
	t.Helper()
	api := &fakeAPI{list: list, release: make(chan struct{})}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/notifications", func(w http.ResponseWriter, r *http.Request) {
		if !api.enter(w, r, true) {
			return
		}
		api.mu.Lock()
		out := append([]models.Notification(nil), api.list...)
		api.mu.Unlock()
		writeJSON(w, http.StatusOK, envelope{Success: true, Notifications: out})
	})
	mux.HandleFunc("PUT /api/notifications/read-all", func(w http.ResponseWriter, r *http.Request) {
		if !api.enter(w, r, false) {
			return
		}
		api.mu.Lock()
		api.readAll++
		for i := range api.list {
			api.list[i].Read = true
		}
		api.mu.Unlock()
		writeJSON(w, http.StatusOK, envelope{Success: true, Message: "ok"})
	})
	mux.HandleFunc("PUT /api/notifications/{id}/read", func(w http.ResponseWriter, r *http.Request) {
		if !api.enter(w, r, false) {
			return
		}
		id := r.PathValue("id")
		api.mu.Lock()
		defer api.mu.Unlock()
		for i := range api.list {
			if api.list[i].Id == id {
				api.list[i].Read = true
				api.reads = append(api.reads, id)
				writeJSON(w, http.StatusOK, envelope{Success: true, Message: "ok"})
				return
			}
		}
		writeJSON(w, http.StatusNotFound, envelope{Message: "Notification not found"})
	})

	api.server = httptest.NewServer(mux)
	t.Cleanup(api.server.Close)
	t.Cleanup(func() { close(api.release) })
	return api
}

// enter applies auth and the configured failure mode
func (a *fakeAPI) enter(w http.ResponseWriter, r *http.Request, fetch bool) bool {
	a.mu.Lock()
	if fetch {
		a.fetches++
	}
	hang, fail := a.hang, a.fail
	a.mu.Unlock()

	if r.Header.Get("Authorization") != "Bearer "+testToken {
		writeJSON(w, http.StatusUnauthorized, envelope{Message: "Not authorized, no token"})
		return false
	}
	if hang {
		select {
		case <-r.Context().Done():
		case <-a.release:
		}
		return false
	}
	if fail {
		writeJSON(w, http.StatusInternalServerError, envelope{Message: "Server error"})
		return false
	}
	return true
}

func (a *fakeAPI) URL() string { return a.server.URL + "/api" }

func (a *fakeAPI) set(fn func(a *fakeAPI)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fn(a)
}

func (a *fakeAPI) fetchCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fetches
}

func (a *fakeAPI) mutations() ([]string, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.reads...), a.readAll
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
