// Bookrec - Hybrid Book Recommendation Engine
// Copyright 2026 M. Whitten (mwhitten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mwhitten/bookrec

// Package config loads and validates the application configuration from
// layered sources: built-in defaults, an optional YAML file, and
// BOOKREC_-prefixed environment variables, in ascending precedence.
package config

import (
	"fmt"
	"time"

	"github.com/mwhitten/bookrec/internal/database"
	"github.com/mwhitten/bookrec/internal/docstore"
	"github.com/mwhitten/bookrec/internal/logging"
	"github.com/mwhitten/bookrec/internal/recommend"
)

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig     `json:"server" koanf:"server"`
	Database  database.Config  `json:"database" koanf:"database"`
	DocStore  docstore.Config  `json:"docstore" koanf:"docstore"`
	Logging   logging.Config   `json:"logging" koanf:"logging"`
	Recommend recommend.Config `json:"recommend" koanf:"recommend"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `json:"host" koanf:"host"`
	Port int    `json:"port" koanf:"port"`

	ReadTimeout     time.Duration `json:"read_timeout" koanf:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout" koanf:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout" koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" koanf:"shutdown_timeout"`

	CORSOrigins []string `json:"cors_origins" koanf:"cors_origins"`

	// RateLimitReqs requests per RateLimitWindow per client IP.
	RateLimitReqs     int           `json:"rate_limit_reqs" koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `json:"rate_limit_window" koanf:"rate_limit_window"`
	RateLimitDisabled bool          `json:"rate_limit_disabled" koanf:"rate_limit_disabled"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// defaultConfig returns the built-in defaults. File and environment
// layers override these.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Database:  database.DefaultConfig(),
		DocStore:  docstore.DefaultConfig(),
		Logging:   logging.DefaultConfig(),
		Recommend: recommend.DefaultConfig(),
	}
}

// Validate checks the configuration for values that would fail at
// runtime. It is called by Load; callers constructing a Config by hand
// should call it themselves.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1,65535], got %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server read/write timeouts must be positive")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive")
	}
	if !c.Server.RateLimitDisabled {
		if c.Server.RateLimitReqs < 1 {
			return fmt.Errorf("server.rate_limit_reqs must be positive, got %d", c.Server.RateLimitReqs)
		}
		if c.Server.RateLimitWindow <= 0 {
			return fmt.Errorf("server.rate_limit_window must be positive")
		}
	}
	if c.Database.QueryTimeout <= 0 {
		return fmt.Errorf("database.query_timeout must be positive")
	}
	if !c.DocStore.InMemory && c.DocStore.Path == "" {
		return fmt.Errorf("docstore.path is required unless docstore.in_memory is set")
	}
	if err := c.Recommend.Validate(); err != nil {
		return fmt.Errorf("recommend: %w", err)
	}
	return nil
}
