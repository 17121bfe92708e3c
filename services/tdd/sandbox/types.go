// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sandbox runs accumulated tests against candidate production code
// in a fresh, disposable workspace and classifies the outcome.
//
// Each call to Executor.Run creates a new temporary directory, lays out the
// language-specific files, runs the test command as a child process in its
// own process group under a hard timeout, and removes the directory on every
// exit path. Outcomes are classified into exactly one Verdict.
package sandbox

import (
	"errors"
	"time"
)

// =============================================================================
// VERDICT
// =============================================================================

// Verdict classifies a single test execution.
type Verdict string

const (
	// VerdictPass means every test ran and passed.
	VerdictPass Verdict = "PASS"

	// VerdictFail means at least one test (or the build) failed.
	VerdictFail Verdict = "FAIL"

	// VerdictError means the runner could not produce a test verdict.
	VerdictError Verdict = "ERROR"

	// VerdictTimeout means the execution bound elapsed and the process
	// group was killed.
	VerdictTimeout Verdict = "TIMEOUT"
)

// String returns the verdict name.
func (v Verdict) String() string {
	return string(v)
}

// IsPass returns true only for VerdictPass.
func (v Verdict) IsPass() bool {
	return v == VerdictPass
}

// =============================================================================
// RESULT
// =============================================================================

// Result is the outcome of one execution.
type Result struct {
	// Verdict is the classification.
	Verdict Verdict `json:"verdict"`

	// Output is the captured, human-readable runner output.
	Output string `json:"output"`

	// ExitCode is the runner's exit code, -1 if it never exited normally.
	ExitCode int `json:"exit_code"`

	// Duration is the wall time of the execution.
	Duration time.Duration `json:"duration"`

	// FailedTests names the failing tests, when the runner reports them.
	FailedTests []string `json:"failed_tests,omitempty"`

	// Truncated is true if Output was cut at the byte cap.
	Truncated bool `json:"truncated,omitempty"`

	// Reason explains ERROR verdicts.
	Reason string `json:"reason,omitempty"`
}

// Summary returns the verdict plus reason, suitable for log lines.
func (r *Result) Summary() string {
	if r == nil {
		return "no result"
	}
	if r.Reason != "" {
		return r.Verdict.String() + ": " + r.Reason
	}
	return r.Verdict.String()
}

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	// ErrNilContext indicates a nil context.Context was passed.
	ErrNilContext = errors.New("context must not be nil")

	// ErrUnsupportedLanguage indicates no configuration for the language.
	ErrUnsupportedLanguage = errors.New("no test configuration for language")

	// ErrNoTests indicates the test code was empty.
	ErrNoTests = errors.New("no tests defined")
)
