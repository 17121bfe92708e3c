// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package gate holds the checks every generated code change must pass
// before it may replace the accepted production code.
//
// Two gates exist:
//
//   - SafetyValidator rejects text that matches a denylist of capabilities
//     a candidate must never use (process spawning, dynamic evaluation,
//     dynamic import, filesystem opens, interpreter exit).
//   - InterfaceValidator rejects candidates whose public top-level surface
//     differs from the accepted code.
//
// Neither gate executes the candidate and neither has side effects.
package gate

import "errors"

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	// ErrEmptyCandidate indicates the candidate contains no code.
	ErrEmptyCandidate = errors.New("candidate is empty")

	// ErrUnsafePattern indicates the candidate matched a denylisted pattern.
	ErrUnsafePattern = errors.New("candidate matches a forbidden pattern")

	// ErrParseFailed indicates a text could not be parsed for the language.
	ErrParseFailed = errors.New("candidate failed to parse")

	// ErrInterfaceChanged indicates the public symbol set differs.
	ErrInterfaceChanged = errors.New("public interface changed")

	// ErrUnsupportedLanguage indicates no grammar is registered for a language.
	ErrUnsupportedLanguage = errors.New("no grammar for language")
)

// =============================================================================
// DECISION
// =============================================================================

// Decision is the verdict of a gate on a single candidate.
type Decision struct {
	// Accepted is true when the candidate passed the gate.
	Accepted bool

	// Reason is a human-readable explanation. Empty when accepted.
	Reason string

	// Pattern names the denylist entry that matched, if any.
	Pattern string

	// Err classifies the rejection (one of the sentinel errors above).
	Err error
}

// accept is the zero-reason accepting decision.
func accept() Decision {
	return Decision{Accepted: true}
}

// reject builds a rejecting decision.
func reject(err error, reason string) Decision {
	return Decision{Accepted: false, Reason: reason, Err: err}
}
