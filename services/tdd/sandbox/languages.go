// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sandbox

import (
	"sort"
	"sync"
)

// =============================================================================
// LANGUAGE CONFIGURATION
// =============================================================================

// LayoutFunc writes production and test code into a workspace directory.
type LayoutFunc func(dir, production, tests string) error

// ClassifyFunc maps an exited runner to a verdict.
//
// Inputs:
//
//	exitCode - Runner exit code
//	output - Raw combined output
//
// Outputs:
//
//	Verdict - PASS, FAIL or ERROR
//	[]string - Failing test names, when known
//	string - Human-readable output to report (may differ from raw)
type ClassifyFunc func(exitCode int, output []byte) (Verdict, []string, string)

// LanguageConfig defines how a language's tests are laid out and run.
type LanguageConfig struct {
	// Language is the language identifier (e.g., "go", "python").
	Language string

	// Command is the runner executable.
	Command string

	// Args are the runner arguments, relative to the workspace.
	Args []string

	// Env is appended to the inherited environment.
	Env []string

	// ProductionFile is the file name the production code is written to.
	ProductionFile string

	// TestFile is the file name the accumulated tests are written to.
	TestFile string

	// Fence is the tag synthesizers use on fenced code blocks.
	Fence string

	// Layout writes the workspace. Nil uses ProductionFile/TestFile verbatim.
	Layout LayoutFunc

	// Classify maps the exit to a verdict. Nil uses ClassifyMarkers.
	Classify ClassifyFunc
}

// =============================================================================
// LANGUAGE CONFIG REGISTRY
// =============================================================================

// Registry manages language configurations.
//
// Thread Safety: Safe for concurrent use. Register should only be done
// during setup.
type Registry struct {
	mu      sync.RWMutex
	configs map[string]*LanguageConfig
}

// DefaultRegistry holds the built-in Go and Python configurations.
var DefaultRegistry = NewRegistry()

// NewRegistry creates a registry with the Go and Python configurations.
func NewRegistry() *Registry {
	r := &Registry{configs: make(map[string]*LanguageConfig)}
	r.registerDefaults()
	return r
}

func (r *Registry) registerDefaults() {
	r.configs["go"] = &LanguageConfig{
		Language:       "go",
		Command:        "go",
		Args:           []string{"test", "-json", "-count=1", "./..."},
		Env:            []string{"GOWORK=off", "GOFLAGS=-mod=mod", "GOTOOLCHAIN=local"},
		ProductionFile: "production.go",
		TestFile:       "production_test.go",
		Fence:          "go",
		Layout:         layoutGo,
		Classify:       ClassifyGoJSON,
	}

	r.configs["python"] = &LanguageConfig{
		Language:       "python",
		Command:        "python3",
		Args:           []string{"-m", "pytest", "-q", "-p", "no:cacheprovider", "test_production.py"},
		Env:            []string{"PYTHONDONTWRITEBYTECODE=1"},
		ProductionFile: "production.py",
		TestFile:       "test_production.py",
		Fence:          "python",
		Layout:         layoutPython,
		Classify:       ClassifyPytest,
	}
}

// Get returns the configuration for a language.
//
// Thread Safety: Safe for concurrent use.
func (r *Registry) Get(language string) (*LanguageConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[language]
	return cfg, ok
}

// Register adds or replaces a language configuration.
//
// Thread Safety: Safe for concurrent use, but should only be called during setup.
func (r *Registry) Register(cfg *LanguageConfig) {
	if cfg == nil || cfg.Language == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.Language] = cfg
}

// Languages returns the registered language names, sorted.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	langs := make([]string, 0, len(r.configs))
	for lang := range r.configs {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// Lookup returns the configuration for a language from DefaultRegistry.
func Lookup(language string) (*LanguageConfig, bool) {
	return DefaultRegistry.Get(language)
}
