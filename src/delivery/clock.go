package delivery

import "time"

// Ticker is the subset of time.Ticker the coordinator uses
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock creates tickers; tests substitute one they can advance by hand
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// SystemClock is the wall clock
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) NewTicker(d time.Duration) Ticker {
	return &systemTicker{t: time.NewTicker(d)}
}

type systemTicker struct {
	t *time.Ticker
}

func (s *systemTicker) C() <-chan time.Time { return s.t.C }
func (s *systemTicker) Stop()               { s.t.Stop() }
