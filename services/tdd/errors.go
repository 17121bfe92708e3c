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
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	// ErrNilContext indicates a nil context.Context was passed.
	ErrNilContext = errors.New("context must not be nil")

	// ErrEmptyRequest indicates the request text was blank.
	ErrEmptyRequest = errors.New("request must not be empty")

	// ErrInvalidConfig indicates the configuration could not be used.
	ErrInvalidConfig = errors.New("invalid workflow configuration")

	// ErrMissingDependency indicates a required collaborator was nil.
	ErrMissingDependency = errors.New("missing workflow dependency")

	// ErrUnsafeCandidate indicates the safety gate rejected a candidate.
	ErrUnsafeCandidate = errors.New("candidate rejected by safety gate")

	// ErrIncompatibleCandidate indicates the interface gate rejected a candidate.
	ErrIncompatibleCandidate = errors.New("candidate rejected by interface gate")

	// ErrPersistence indicates the recorder failed at finalize.
	ErrPersistence = errors.New("failed to persist run")

	// ErrAlreadyRunning indicates Run was called on a busy engine.
	ErrAlreadyRunning = errors.New("engine is already running")
)

// =============================================================================
// TYPED ERRORS
// =============================================================================

// RunError is a fatal error that stopped a run in a given state.
type RunError struct {
	State State
	Cause error
}

// Error implements the error interface.
func (e *RunError) Error() string {
	return fmt.Sprintf("run aborted in %s: %v", e.State, e.Cause)
}

// Unwrap returns the underlying error.
func (e *RunError) Unwrap() error {
	return e.Cause
}

// CandidateRejectedError describes why a gate refused a candidate.
type CandidateRejectedError struct {
	// Gate is ErrUnsafeCandidate or ErrIncompatibleCandidate.
	Gate error

	// Reason is the gate's explanation.
	Reason string

	// Cause is the gate's classification, if any.
	Cause error
}

// Error implements the error interface.
func (e *CandidateRejectedError) Error() string {
	return fmt.Sprintf("%v: %s", e.Gate, e.Reason)
}

// Unwrap returns the gate sentinel and the gate's classification.
func (e *CandidateRejectedError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Gate}
	}
	return []error{e.Gate, e.Cause}
}
