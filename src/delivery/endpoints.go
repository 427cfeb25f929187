package delivery

import (
	"sync"
	"time"
)

// Endpoint is one configured notification API
type Endpoint struct {
	Name      string
	URL       string
	Source    Source
	IsHealthy bool
	LastCheck time.Time
	Latency   time.Duration
	LastError string
}

// EndpointSet keeps the declared endpoints and their observed health
type EndpointSet struct {
	endpoints []*Endpoint
	mu        sync.RWMutex
}

// NewEndpointSet creates a set in declared order
func NewEndpointSet(endpoints ...*Endpoint) *EndpointSet {
	return &EndpointSet{endpoints: endpoints}
}

// Len returns how many endpoints are declared
func (s *EndpointSet) Len() int {
	return len(s.endpoints)
}

// Lookup finds an endpoint by name
func (s *EndpointSet) Lookup(name string) *Endpoint {
	for _, ep := range s.endpoints {
		if ep.Name == name {
			return ep
		}
	}
	return nil
}

// Ordered returns the probe order: preferred first when it is declared, then
// the rest in declared order
func (s *EndpointSet) Ordered(preferred string) []*Endpoint {
	out := make([]*Endpoint, 0, len(s.endpoints))
	if ep := s.Lookup(preferred); ep != nil {
		out = append(out, ep)
	}
	for _, ep := range s.endpoints {
		if ep.Name != preferred {
			out = append(out, ep)
		}
	}
	return out
}

// Record stores the outcome of a call against ep
func (s *EndpointSet) Record(ep *Endpoint, err error, latency time.Duration, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ep.IsHealthy = err == nil
	ep.LastCheck = at
	ep.Latency = latency
	ep.LastError = ""
	if err != nil {
		ep.LastError = err.Error()
	}
}

// Status returns the current status of all endpoints
func (s *EndpointSet) Status() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	endpoints := make([]map[string]interface{}, 0, len(s.endpoints))
	healthyCount := 0

	for _, ep := range s.endpoints {
		if ep.IsHealthy {
			healthyCount++
		}
		entry := map[string]interface{}{
			"name":       ep.Name,
			"url":        ep.URL,
			"is_healthy": ep.IsHealthy,
			"latency_ms": ep.Latency.Milliseconds(),
			"last_check": "",
		}
		if !ep.LastCheck.IsZero() {
			entry["last_check"] = ep.LastCheck.Format(time.RFC3339)
		}
		if ep.LastError != "" {
			entry["last_error"] = ep.LastError
		}
		endpoints = append(endpoints, entry)
	}

	return map[string]interface{}{
		"total":     len(s.endpoints),
		"healthy":   healthyCount,
		"endpoints": endpoints,
	}
}
