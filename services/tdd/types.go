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

// =============================================================================
// STATE MACHINE
// =============================================================================

// State represents a state in the workflow.
type State string

const (
	// StateDecompose splits the request into an ordered feature queue.
	StateDecompose State = "decompose"

	// StateSelectFeature pops the next feature, or finalizes on empty queue.
	StateSelectFeature State = "select_feature"

	// StateWriteTest requests a failing test for the current feature.
	StateWriteTest State = "write_test"

	// StateExecuteTests runs the accumulated tests in the sandbox.
	StateExecuteTests State = "execute_tests"

	// StateDecide chooses the next step from the last result.
	StateDecide State = "decide"

	// StateImplementFix requests and gates a candidate implementation.
	StateImplementFix State = "implement_fix"

	// StateRefactor requests and gates a behavior-preserving cleanup.
	StateRefactor State = "refactor"

	// StateFinalize hands the session to persistence and stops.
	StateFinalize State = "finalize"

	// StateAborted marks a run stopped by a fatal error.
	StateAborted State = "aborted"
)

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// IsTerminal returns true if no further step follows this state.
func (s State) IsTerminal() bool {
	return s == StateFinalize || s == StateAborted
}

// CallsSynthesizer returns true for states that make a synthesizer call.
func (s State) CallsSynthesizer() bool {
	switch s {
	case StateDecompose, StateWriteTest, StateImplementFix, StateRefactor:
		return true
	default:
		return false
	}
}

// =============================================================================
// HISTORY ACTIONS
// =============================================================================

// Action names what a step did. Exactly one action is recorded per step.
type Action string

const (
	ActionDecompose         Action = "decompose"
	ActionDecomposeFallback Action = "decompose_fallback"
	ActionSelectFeature     Action = "select_feature"
	ActionQueueExhausted    Action = "queue_exhausted"
	ActionWriteTest         Action = "write_test"
	ActionExecuteTests      Action = "execute_tests"
	ActionDecide            Action = "decide"
	ActionFeatureAbandoned  Action = "feature_abandoned"
	ActionCandidateAccepted Action = "candidate_accepted"
	ActionCandidateRejected Action = "candidate_rejected"
	ActionRefactorAccepted  Action = "refactor_accepted"
	ActionRefactorRejected  Action = "refactor_rejected"
	ActionBudgetExhausted   Action = "iteration_budget_exhausted"
	ActionFinalize          Action = "finalize"
	ActionAborted           Action = "aborted"
)

// =============================================================================
// RUN STATUS
// =============================================================================

// RunStatus is the lifecycle status of a session.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)
