package app

import (
	"errors"
	"fmt"

	"github.com/eyevinn-osaas/strom-sub001/internal/lifecycle"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	FlowPaths   []string // hcl files or directories
	CatalogPath string   // optional YAML catalog override

	LogFormat string
	LogLevel  string
	// HTTPPort serves the API and keeps the flow running until the context
	// ends. 0 builds, reports and tears down.
	HTTPPort int
	// EventsURL forwards diagnostic events to a socket.io server.
	EventsURL string
	State     lifecycle.State
	// Simulate emits the runtime outputs the flow waits for and negotiates
	// a raw format on dynamic routes.
	Simulate bool
}

// NewConfig validates cfg.
func NewConfig(cfg Config) (*Config, error) {
	if len(cfg.FlowPaths) == 0 {
		return nil, errors.New("a flow path is required")
	}
	if cfg.HTTPPort < 0 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("http port %d out of range", cfg.HTTPPort)
	}
	if !cfg.State.Valid() {
		return nil, fmt.Errorf("invalid initial state %d", int(cfg.State))
	}
	return &cfg, nil
}
