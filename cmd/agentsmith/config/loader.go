// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidConfig indicates the configuration failed validation.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrMissingAPIKey indicates the selected hosted provider has no key.
	ErrMissingAPIKey = errors.New("missing API key")
)

// providerKeyEnv maps hosted providers to the variable holding their key.
var providerKeyEnv = map[string]string{
	"gemini": "GOOGLE_API_KEY",
	"openai": "OPENAI_API_KEY",
}

var (
	// Global is a singleton instance
	Global *AgentSmithConfig
	once   sync.Once

	configValidate = validator.New()
)

// LookupFunc reads an environment variable.
type LookupFunc func(key string) (string, bool)

// Load ensures the config is loaded into the Global variable.
//
// It reads ./.env (without overriding variables already set), then
// ~/.agentsmith/config.yaml, creating it with defaults on first run, then
// applies environment overrides.
func Load() error {
	var err error
	once.Do(func() {
		if envErr := LoadDotEnv(".env"); envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
			err = envErr
			return
		}
		var path string
		path, err = DefaultPath()
		if err != nil {
			return
		}
		Global, err = LoadFrom(path, os.LookupEnv)
	})
	return err
}

// DefaultPath returns ~/.agentsmith/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".agentsmith", "config.yaml"), nil
}

// LoadFrom reads the config at path, creating it with defaults if missing,
// and applies overrides from lookup.
func LoadFrom(path string, lookup LookupFunc) (*AgentSmithConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "First run detected, creating the config at %s\n", path)
		if err := createDefault(path); err != nil {
			return nil, err
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read the config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	ApplyEnv(&cfg, lookup)
	return &cfg, nil
}

func createDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ApplyEnv overrides cfg from the environment and seals any API keys.
//
// Recognized variables:
//   - GOOGLE_API_KEY, OPENAI_API_KEY: provider keys
//   - OLLAMA_BASE_URL: base URL when the provider is ollama
//   - AGENTSMITH_PROVIDER: provider name
//   - AGENTSMITH_MODEL, then DEFAULT_LLM_MODEL: model name
func ApplyEnv(cfg *AgentSmithConfig, lookup LookupFunc) {
	if cfg.Secrets == nil {
		cfg.Secrets = NewSecrets()
	}
	for provider, key := range providerKeyEnv {
		if v, ok := lookup(key); ok && v != "" {
			cfg.Secrets.Set(provider, []byte(v))
		}
	}
	if v, ok := lookup("AGENTSMITH_PROVIDER"); ok && v != "" {
		cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := lookup("AGENTSMITH_MODEL"); ok && v != "" {
		cfg.LLM.Model = v
	} else if v, ok := lookup("DEFAULT_LLM_MODEL"); ok && v != "" {
		cfg.LLM.Model = v
	}
	if cfg.LLM.Provider == "ollama" {
		if v, ok := lookup("OLLAMA_BASE_URL"); ok && v != "" {
			cfg.LLM.BaseURL = v
		}
	}
}

// Validate checks struct constraints and that the selected hosted provider
// has a key.
func (c *AgentSmithConfig) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if env, hosted := providerKeyEnv[c.LLM.Provider]; hosted {
		if c.Secrets == nil || !c.Secrets.Has(c.LLM.Provider) {
			return fmt.Errorf("%w: provider %s needs %s", ErrMissingAPIKey, c.LLM.Provider, env)
		}
	}
	return nil
}

// LoadDotEnv sets variables from a dotenv file. Variables already present
// in the environment are left untouched. A missing file yields an error
// matching os.ErrNotExist.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return err
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
