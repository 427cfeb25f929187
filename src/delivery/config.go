package delivery

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultAttemptTimeout  = 3 * time.Second
	DefaultPollInterval    = 30 * time.Second
	DefaultMaxPollFailures = 3
	DefaultLimit           = 20
)

// EndpointConfig declares one notification API
type EndpointConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// FallbackConfig points at the notification store used when no API answers
type FallbackConfig struct {
	MongoURI string `yaml:"mongo_uri,omitempty"`
	Database string `yaml:"database,omitempty"`
}

// FileConfig is the YAML file read by notifyctl
type FileConfig struct {
	Endpoints       []EndpointConfig `yaml:"endpoints"`
	AttemptTimeout  time.Duration    `yaml:"attempt_timeout,omitempty"`
	PollInterval    time.Duration    `yaml:"poll_interval,omitempty"`
	MaxPollFailures int              `yaml:"max_poll_failures,omitempty"`
	Limit           int              `yaml:"limit,omitempty"`
	HintsPath       string           `yaml:"hints_path,omitempty"`
	Fallback        FallbackConfig   `yaml:"fallback,omitempty"`
}

// LoadFileConfig reads and validates a YAML config file
func LoadFileConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseFileConfig(data)
}

// ParseFileConfig decodes YAML, rejecting unknown fields, and fills defaults
func ParseFileConfig(data []byte) (*FileConfig, error) {
	var cfg FileConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *FileConfig) applyDefaults() {
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = DefaultAttemptTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.MaxPollFailures <= 0 {
		c.MaxPollFailures = DefaultMaxPollFailures
	}
	if c.Limit <= 0 {
		c.Limit = DefaultLimit
	}
	if c.Fallback.MongoURI != "" && c.Fallback.Database == "" {
		c.Fallback.Database = "alumni_network"
	}
}

// Validate checks endpoint names and URLs
func (c *FileConfig) Validate() error {
	seen := make(map[string]bool, len(c.Endpoints))
	for i, ep := range c.Endpoints {
		if ep.Name == "" {
			return fmt.Errorf("endpoint %d has no name", i)
		}
		if ep.URL == "" {
			return fmt.Errorf("endpoint %q has no url", ep.Name)
		}
		if seen[ep.Name] {
			return fmt.Errorf("duplicate endpoint name %q", ep.Name)
		}
		seen[ep.Name] = true
	}
	if len(c.Endpoints) == 0 && c.Fallback.MongoURI == "" {
		return fmt.Errorf("no endpoints and no fallback configured")
	}
	return nil
}

// EndpointSet builds REST clients for every declared endpoint
func (c *FileConfig) EndpointSet(token string, client *http.Client) *EndpointSet {
	endpoints := make([]*Endpoint, 0, len(c.Endpoints))
	for _, ep := range c.Endpoints {
		endpoints = append(endpoints, &Endpoint{
			Name:   ep.Name,
			URL:    ep.URL,
			Source: NewRESTClient(ep.URL, token, client),
		})
	}
	return NewEndpointSet(endpoints...)
}

// Options converts the file settings to coordinator options
func (c *FileConfig) Options() Options {
	return Options{
		AttemptTimeout:  c.AttemptTimeout,
		PollInterval:    c.PollInterval,
		MaxPollFailures: c.MaxPollFailures,
		Limit:           c.Limit,
	}
}
