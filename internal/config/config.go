/*-------------------------------------------------------------------------
 *
 * SQL Sandbox - Configuration
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package config loads runtime configuration with a defaults -> file ->
// environment precedence chain.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"sqlsandbox/internal/sandbox"
)

// Config is the full runtime configuration.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Sandbox SandboxConfig `yaml:"sandbox"`
	LLM     LLMConfig     `yaml:"llm"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level string `yaml:"level"`
}

// SandboxConfig holds the resource limits applied to every session.
type SandboxConfig struct {
	MaxRows        int `yaml:"max_rows"`
	QueryTimeoutMS int `yaml:"query_timeout_ms"`
	MaxUploadMB    int `yaml:"max_upload_mb"`
	HistoryLimit   int `yaml:"history_limit"`
}

// LLMConfig selects and authenticates the completion provider.
type LLMConfig struct {
	Provider       string   `yaml:"provider"`
	Model          string   `yaml:"model"`
	FallbackModels []string `yaml:"fallback_models"`
	APIKey         string   `yaml:"api_key"`
	APIKeyFile     string   `yaml:"api_key_file"`
	BaseURL        string   `yaml:"base_url"`
	MaxTokens      int      `yaml:"max_tokens"`
}

// Default returns the built-in configuration.
func Default() *Config {
	limits := sandbox.DefaultLimits()
	return &Config{
		Log: LogConfig{Level: "warn"},
		Sandbox: SandboxConfig{
			MaxRows:        limits.MaxRows,
			QueryTimeoutMS: int(limits.QueryTimeout / time.Millisecond),
			MaxUploadMB:    int(limits.MaxUploadBytes / (1024 * 1024)),
			HistoryLimit:   limits.HistoryLimit,
		},
		LLM: LLMConfig{
			Provider:  "openrouter",
			Model:     "anthropic/claude-3.5-haiku",
			MaxTokens: 2048,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file if a path is
// given, then environment overrides. A missing file at an explicit path is
// an error; an empty path skips the file layer.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if cfg.LLM.APIKey == "" && cfg.LLM.APIKeyFile != "" {
		data, err := os.ReadFile(cfg.LLM.APIKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read API key file: %w", err)
		}
		cfg.LLM.APIKey = strings.TrimSpace(string(data))
	}

	return cfg, nil
}

// applyEnv overlays environment variables on top of whatever the defaults
// and file produced.
func (c *Config) applyEnv() {
	if v := os.Getenv("SQLSANDBOX_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("SQLSANDBOX_LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("SQLSANDBOX_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("SQLSANDBOX_LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("SQLSANDBOX_LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	} else if v := os.Getenv("OPENROUTER_API_KEY"); v != "" && c.LLM.APIKey == "" {
		c.LLM.APIKey = v
	}
}

// Limits converts the sandbox section into the limits consumed by sessions,
// substituting defaults for zero or negative values.
func (c *Config) Limits() sandbox.Limits {
	limits := sandbox.DefaultLimits()
	if c.Sandbox.MaxRows > 0 {
		limits.MaxRows = c.Sandbox.MaxRows
	}
	if c.Sandbox.QueryTimeoutMS > 0 {
		limits.QueryTimeout = time.Duration(c.Sandbox.QueryTimeoutMS) * time.Millisecond
	}
	if c.Sandbox.MaxUploadMB > 0 {
		limits.MaxUploadBytes = int64(c.Sandbox.MaxUploadMB) * 1024 * 1024
	}
	if c.Sandbox.HistoryLimit > 0 {
		limits.HistoryLimit = c.Sandbox.HistoryLimit
	}
	return limits
}
