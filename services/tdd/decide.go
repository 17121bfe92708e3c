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

import "github.com/AleutianAI/agentsmith/services/tdd/sandbox"

// DecideInput is everything the decision depends on.
type DecideInput struct {
	HasFeature     bool
	Verdict        sandbox.Verdict
	IterationCount int
	MaxAttempts    int
}

// Decision is the outcome of Decide.
type Decision struct {
	Next      State
	Abandoned bool
}

// Decide picks the step after a test execution. It is a pure function of
// its input.
//
// Rules, first match wins:
//
//  1. no feature in flight: finalize
//  2. verdict PASS: refactor
//  3. attempts reached the cap: abandon the feature and select the next
//  4. otherwise: implement a fix
func Decide(in DecideInput) Decision {
	switch {
	case !in.HasFeature:
		return Decision{Next: StateFinalize}
	case in.Verdict.IsPass():
		return Decision{Next: StateRefactor}
	case in.IterationCount >= in.MaxAttempts:
		return Decision{Next: StateSelectFeature, Abandoned: true}
	default:
		return Decision{Next: StateImplementFix}
	}
}
