// Bookrec - Hybrid Book Recommendation Engine
// Copyright 2026 M. Whitten (mwhitten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mwhitten/bookrec

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where the config file is searched, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/bookrec/config.yaml",
	"/etc/bookrec/config.yml",
}

// ConfigPathEnvVar overrides the config file search entirely.
const ConfigPathEnvVar = "BOOKREC_CONFIG"

// envPrefix is stripped from environment variables before mapping.
const envPrefix = "BOOKREC_"

// Load builds the configuration from layered sources:
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. BOOKREC_-prefixed environment variables (highest priority)
//
// The result is validated before being returned.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate configuration: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns the first config file that exists, or empty.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are the config paths parsed as comma-separated slices
// when they arrive from the environment as plain strings.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Values that already arrived as slices (from the
// YAML layer) are left alone.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps stripped environment variable names to config paths.
// Unmapped variables are ignored so unrelated BOOKREC_ variables never
// pollute the configuration.
var envMappings = map[string]string{
	// Server
	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_idle_timeout":     "server.idle_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"cors_origins":          "server.cors_origins",
	"rate_limit_requests":   "server.rate_limit_reqs",
	"rate_limit_window":     "server.rate_limit_window",
	"disable_rate_limit":    "server.rate_limit_disabled",

	// Relational store
	"duckdb_path":          "database.path",
	"duckdb_threads":       "database.threads",
	"duckdb_max_memory":    "database.max_memory",
	"duckdb_query_timeout": "database.query_timeout",
	"breaker_failures":     "database.breaker_failure_threshold",
	"breaker_timeout":      "database.breaker_timeout",

	// Document store
	"docstore_path":      "docstore.path",
	"docstore_in_memory": "docstore.in_memory",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Recommendation engine
	"weight_content_based":  "recommend.weights.content_based",
	"weight_collaborative":  "recommend.weights.collaborative",
	"weight_trending":       "recommend.weights.trending",
	"weight_geographic":     "recommend.weights.geographic",
	"weight_cold_start":     "recommend.weights.cold_start",
	"default_k":             "recommend.limits.default_k",
	"max_k":                 "recommend.limits.max_k",
	"strategy_timeout":      "recommend.limits.strategy_timeout",
	"diversity_strength":    "recommend.diversity.strength",
	"diversity_max_author":  "recommend.diversity.max_per_author",
	"diversity_max_genre":   "recommend.diversity.max_per_genre",
	"geo_radius_km":         "recommend.geographic.radius_km",
	"cold_start_min":        "recommend.cold_start.min_ratings",
	"cache_enabled":         "recommend.cache.enabled",
	"cache_ttl":             "recommend.cache.ttl",
	"cache_sweep_interval":  "recommend.cache.sweep_interval",
	"model_version":         "recommend.model_version",
	"trending_window_pct":   "recommend.trending.window_pct",
	"trending_shrinkage":    "recommend.trending.shrinkage_c",
	"trending_global_mean":  "recommend.trending.global_mean_rating",
	"collab_min_shared":     "recommend.collaborative.min_shared_ratings",
	"collab_max_neighbors":  "recommend.collaborative.max_neighbors",
	"content_min_sim":       "recommend.content_based.min_similarity",
	"content_max_liked":     "recommend.content_based.max_liked_books",
}

// envTransformFunc maps a BOOKREC_ environment variable to its config
// path. The prefix is already stripped by the provider.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
