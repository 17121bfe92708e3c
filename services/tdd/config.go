// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tdd

import (
	"fmt"
	"time"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds configuration for a workflow run.
type Config struct {
	// Language is the target language key.
	// Default: "go"
	Language string

	// MaxFeatureAttempts caps write-test plus implement-fix attempts per
	// feature. A feature is abandoned once its attempts reach this value.
	// Default: 3
	MaxFeatureAttempts int

	// MaxIterations caps executed steps across the run. 0 disables the cap.
	// Default: 200
	MaxIterations int

	// TestTimeout bounds a single sandbox execution.
	// Default: 10s
	TestTimeout time.Duration

	// HistoryDetailLimit truncates history details, in bytes.
	// Default: 500
	HistoryDetailLimit int
}

// DefaultConfig returns a Config with sensible defaults.
//
// Outputs:
//
//	*Config - Configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Language:           "go",
		MaxFeatureAttempts: 3,
		MaxIterations:      200,
		TestTimeout:        10 * time.Second,
		HistoryDetailLimit: 500,
	}
}

// Validate checks that the configuration is valid, clamping out-of-range
// values.
//
// Outputs:
//
//	error - Non-nil if the language is empty
func (c *Config) Validate() error {
	if c.Language == "" {
		return fmt.Errorf("%w: language must be set", ErrInvalidConfig)
	}
	if c.MaxFeatureAttempts < 1 {
		c.MaxFeatureAttempts = 1
	}
	if c.MaxIterations < 0 {
		c.MaxIterations = 0
	}
	if c.TestTimeout < 100*time.Millisecond {
		c.TestTimeout = 100 * time.Millisecond
	}
	if c.HistoryDetailLimit < 0 {
		c.HistoryDetailLimit = 0
	}
	return nil
}

// =============================================================================
// CONFIGURATION OPTIONS
// =============================================================================

// Option is a function that modifies Config.
type Option func(*Config)

// WithLanguage sets the target language.
func WithLanguage(language string) Option {
	return func(c *Config) {
		c.Language = language
	}
}

// WithMaxFeatureAttempts sets the per-feature attempt cap.
func WithMaxFeatureAttempts(n int) Option {
	return func(c *Config) {
		c.MaxFeatureAttempts = n
	}
}

// WithMaxIterations sets the global step ceiling.
func WithMaxIterations(n int) Option {
	return func(c *Config) {
		c.MaxIterations = n
	}
}

// WithTestTimeout sets the sandbox execution bound.
func WithTestTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.TestTimeout = d
	}
}

// WithHistoryDetailLimit sets the history detail truncation length.
func WithHistoryDetailLimit(n int) Option {
	return func(c *Config) {
		c.HistoryDetailLimit = n
	}
}

// NewConfig creates a Config from defaults and options.
func NewConfig(opts ...Option) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
