// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the agentsmith CLI configuration from
// ~/.agentsmith/config.yaml, the environment and a local .env file.
package config

import (
	"time"
)

// CurrentConfigVersion is written into new config files.
const CurrentConfigVersion = "1"

// AgentSmithConfig is the on-disk CLI configuration.
type AgentSmithConfig struct {
	Meta MetaConfig `yaml:"meta"`

	// LLM selects the model backend.
	LLM LLMConfig `yaml:"llm"`

	// Run holds engine limits.
	Run RunConfig `yaml:"run"`

	// Output controls where results are written.
	Output OutputConfig `yaml:"output"`

	Logging LoggingConfig `yaml:"logging"`

	// Secrets are never read from or written to the file.
	Secrets *Secrets `yaml:"-"`
}

type MetaConfig struct {
	Version string `yaml:"version"`
}

type LLMConfig struct {
	// Provider is one of "gemini", "openai", "ollama".
	Provider string `yaml:"provider" validate:"required,oneof=gemini openai ollama"`
	Model    string `yaml:"model,omitempty"`
	BaseURL  string `yaml:"base_url,omitempty" validate:"omitempty,url"`

	// SynthesisTimeout bounds a single model call.
	SynthesisTimeout time.Duration `yaml:"synthesis_timeout" validate:"gte=0"`

	// RequestsPerMinute rate-limits model calls. 0 disables limiting.
	RequestsPerMinute int `yaml:"requests_per_minute" validate:"gte=0"`
}

type RunConfig struct {
	Language           string        `yaml:"language" validate:"required,oneof=go python"`
	MaxFeatureAttempts int           `yaml:"max_feature_attempts" validate:"gte=1,lte=100"`
	MaxIterations      int           `yaml:"max_iterations" validate:"gte=0"`
	TestTimeout        time.Duration `yaml:"test_timeout" validate:"gte=100ms"`
}

type OutputConfig struct {
	// ProjectsDir is the parent of per-run project directories.
	ProjectsDir string `yaml:"projects_dir" validate:"required"`

	// ArchiveDir holds the run archive database.
	ArchiveDir string `yaml:"archive_dir" validate:"required"`

	// Archive toggles recording runs in the archive.
	Archive bool `yaml:"archive"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Dir   string `yaml:"dir,omitempty"`
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() AgentSmithConfig {
	return AgentSmithConfig{
		Meta: MetaConfig{Version: CurrentConfigVersion},
		LLM: LLMConfig{
			Provider:         "gemini",
			SynthesisTimeout: 2 * time.Minute,
		},
		Run: RunConfig{
			Language:           "go",
			MaxFeatureAttempts: 3,
			MaxIterations:      200,
			TestTimeout:        10 * time.Second,
		},
		Output: OutputConfig{
			ProjectsDir: "agentsmith_projects",
			ArchiveDir:  "~/.agentsmith/runs",
			Archive:     true,
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "~/.agentsmith/logs",
		},
	}
}
