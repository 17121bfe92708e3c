// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package synth turns workflow requests into prompts, sends them to a
// language model, and shapes the replies into feature lists or code.
package synth

import "errors"

// =============================================================================
// REQUEST KINDS
// =============================================================================

// Kind selects the prompt template and the shape of the response.
type Kind string

const (
	// KindDecompose asks for an ordered JSON array of minimal features.
	KindDecompose Kind = "decompose"

	// KindWriteTest asks for a failing test for one feature.
	KindWriteTest Kind = "write_test"

	// KindImplementFix asks for the minimal change making the tests pass.
	KindImplementFix Kind = "implement_fix"

	// KindRefactor asks for a behavior-preserving cleanup.
	KindRefactor Kind = "refactor"
)

// String returns the kind name.
func (k Kind) String() string {
	return string(k)
}

// IsCode returns true for kinds whose reply is source code.
func (k Kind) IsCode() bool {
	return k == KindWriteTest || k == KindImplementFix || k == KindRefactor
}

// =============================================================================
// REQUEST / RESPONSE
// =============================================================================

// Request carries everything a prompt template may need. Fields unused by a
// kind are ignored.
type Request struct {
	// Kind selects the template.
	Kind Kind

	// Goal is the user's original request (decompose).
	Goal string

	// Feature is the feature in flight (write_test, implement_fix).
	Feature string

	// ProductionCode is the accepted implementation.
	ProductionCode string

	// TestCode is the accumulated test suite (implement_fix).
	TestCode string

	// TestOutput is the last execution's output (implement_fix).
	TestOutput string

	// Language names the target language ("go", "python").
	Language string
}

// Response is the tagged reply of one synthesizer call.
type Response struct {
	// Kind echoes the request kind.
	Kind Kind

	// Text is the raw model reply.
	Text string

	// Code is the extracted code for code kinds; empty for decompose.
	Code string
}

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	// ErrTransport indicates the model could not be reached or did not
	// answer in time. Callers treat it as fatal for the run.
	ErrTransport = errors.New("synthesizer transport failure")

	// ErrMalformed indicates a reply did not have the expected shape.
	ErrMalformed = errors.New("malformed synthesizer reply")

	// ErrUnknownKind indicates an unsupported request kind.
	ErrUnknownKind = errors.New("unknown request kind")

	// ErrNilContext indicates a nil context.Context was passed.
	ErrNilContext = errors.New("context must not be nil")
)
