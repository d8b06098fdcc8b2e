// File: utils/config.go
package utils

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultGreeting is the text the existing front-end expects in RustHelloResponse.
const DefaultGreeting = "Hello from Rust! 🦀"

// Config holds all configurable bridge parameters.
type Config struct {
	// Transport
	Addr          string        `yaml:"addr"`           // Listen address of the HTTP server
	SubscribePath string        `yaml:"subscribe_path"` // Websocket endpoint the front-end connects to
	HealthPath    string        `yaml:"health_path"`    // JSON health endpoint
	MetricsPath   string        `yaml:"metrics_path"`   // Prometheus endpoint
	ReadTimeout   time.Duration `yaml:"read_timeout"`   // Idle limit per websocket frame (0 disables)
	WriteTimeout  time.Duration `yaml:"write_timeout"`  // Limit on one outbound frame; slower clients are dropped

	// Greeter
	Greeting       string `yaml:"greeting"`        // Text sent back for every hello request
	ReceiverBuffer int    `yaml:"receiver_buffer"` // Initial capacity of each inbound signal queue, which grows past it

	// Lifecycle
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // Grace period for HTTP and actor shutdown
}

// DefaultConfig returns a Config struct with default values.
func DefaultConfig() Config {
	return Config{
		Addr:          DefaultAddr,
		SubscribePath: "/subscribe",
		HealthPath:    "/healthz",
		MetricsPath:   "/metrics",
		ReadTimeout:   0,
		WriteTimeout:  5 * time.Second,

		Greeting:       DefaultGreeting,
		ReceiverBuffer: 1024,

		ShutdownTimeout: 5 * time.Second,
	}
}

// LoadConfig reads a YAML file over the defaults. An empty path returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyDefaults fills zero values left by a partial file.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Addr == "" {
		c.Addr = defaults.Addr
	}
	if c.SubscribePath == "" {
		c.SubscribePath = defaults.SubscribePath
	}
	if c.HealthPath == "" {
		c.HealthPath = defaults.HealthPath
	}
	if c.MetricsPath == "" {
		c.MetricsPath = defaults.MetricsPath
	}
	if c.Greeting == "" {
		c.Greeting = defaults.Greeting
	}
	if c.ReceiverBuffer == 0 {
		c.ReceiverBuffer = defaults.ReceiverBuffer
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = defaults.WriteTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = defaults.ShutdownTimeout
	}
}

// Validate checks that the configuration can be served.
func (c Config) Validate() error {
	var errs []error

	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}

	paths := map[string]string{
		"subscribe_path": c.SubscribePath,
		"health_path":    c.HealthPath,
		"metrics_path":   c.MetricsPath,
	}
	seen := make(map[string]string, len(paths))
	for _, key := range []string{"subscribe_path", "health_path", "metrics_path"} {
		p := paths[key]
		if !strings.HasPrefix(p, "/") {
			errs = append(errs, fmt.Errorf("%s must start with /, got %q", key, p))
			continue
		}
		if other, dup := seen[p]; dup {
			errs = append(errs, fmt.Errorf("%s and %s both use %q", other, key, p))
		}
		seen[p] = key
	}

	if c.Greeting == "" {
		errs = append(errs, errors.New("greeting is required"))
	}
	if c.ReceiverBuffer < 1 {
		errs = append(errs, fmt.Errorf("receiver_buffer must be positive, got %d", c.ReceiverBuffer))
	}
	if c.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("write_timeout must be positive, got %s", c.WriteTimeout))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("shutdown_timeout must be positive, got %s", c.ShutdownTimeout))
	}
	if c.ReadTimeout < 0 {
		errs = append(errs, fmt.Errorf("read_timeout must not be negative, got %s", c.ReadTimeout))
	}

	return errors.Join(errs...)
}
