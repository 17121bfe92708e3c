// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tdd drives closed-loop, test-verified code synthesis.
//
// A run turns a natural-language request into an ordered queue of small
// features and takes each feature through a test-first cycle:
//
//  1. DECOMPOSE - Synthesizer splits the request into features
//  2. SELECT_FEATURE - Next feature is popped from the queue
//  3. WRITE_TEST - Synthesizer writes a test, appended to the suite
//  4. EXECUTE_TESTS - Sandbox runs the suite against the production code
//  5. DECIDE - Pass refactors, failure retries or abandons
//  6. IMPLEMENT_FIX - Synthesizer proposes code, gated before it is applied
//  7. REFACTOR - Synthesizer cleans up passing code, gated the same way
//  8. FINALIZE - Session is handed to the recorder
//
// # Gates
//
// Every candidate passes the safety gate (denylisted constructs) and then
// the interface gate (unchanged public symbol set) before it replaces the
// production code. A rejected candidate leaves the code untouched and still
// consumes an attempt.
//
// # Limits
//
// A feature is abandoned once it has used MaxFeatureAttempts attempts
// without passing. MaxIterations bounds the number of steps in the whole
// run. Neither limit fails the run.
//
// # Thread Safety
//
// An Engine runs one session at a time. The SessionState it returns is
// owned by the caller once Run returns.
//
// # Example Usage
//
//	engine, err := tdd.NewEngine(tdd.Dependencies{
//	    Synthesizer: synth.New(client, synth.DefaultConfig(), logger),
//	    Executor:    executor,
//	    Safety:      gate.NewSafetyValidator("go"),
//	    Interface:   gate.NewInterfaceValidator("go"),
//	}, tdd.NewConfig(tdd.WithLanguage("go")), logger)
//
//	session, err := engine.Run(ctx, "a stack of ints with push and pop")
package tdd
