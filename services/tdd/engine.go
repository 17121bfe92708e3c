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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/agentsmith/services/tdd/gate"
	"github.com/AleutianAI/agentsmith/services/tdd/sandbox"
	"github.com/AleutianAI/agentsmith/services/tdd/synth"
)

// =============================================================================
// CAPABILITIES
// =============================================================================

// Synthesizer turns structured requests into generated text.
type Synthesizer interface {
	Generate(ctx context.Context, req synth.Request) (*synth.Response, error)
}

// TestExecutor runs production and test code in isolation.
//
// The returned error is non-nil only when ctx was cancelled; every other
// failure is reported through the Result verdict.
type TestExecutor interface {
	Run(ctx context.Context, production, tests string, timeout time.Duration) (*sandbox.Result, error)
}

// SafetyGate statically screens candidate code.
type SafetyGate interface {
	Evaluate(candidate string) gate.Decision
}

// InterfaceGate compares the public surface of two versions of the code.
type InterfaceGate interface {
	Evaluate(ctx context.Context, old, candidate string) gate.Decision
}

// Dependencies are the collaborators an Engine drives.
type Dependencies struct {
	Synthesizer Synthesizer
	Executor    TestExecutor
	Safety      SafetyGate
	Interface   InterfaceGate

	// Recorder is optional. Nil discards snapshots.
	Recorder Recorder
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine runs the test-driven synthesis loop.
//
// Thread Safety: an Engine runs one session at a time. Concurrent calls to
// Run fail with ErrAlreadyRunning.
type Engine struct {
	deps    Dependencies
	config  *Config
	logger  *slog.Logger
	running atomic.Bool
}

// NewEngine creates an Engine.
//
// Inputs:
//
//	deps - Collaborators. Synthesizer, Executor, Safety and Interface are required.
//	cfg - Workflow configuration. Nil uses DefaultConfig().
//	logger - Logger for structured logging. Nil uses slog.Default().
//
// Outputs:
//
//	*Engine - Configured engine
//	error - Non-nil if a dependency is missing or the config is invalid
func NewEngine(deps Dependencies, cfg *Config, logger *slog.Logger) (*Engine, error) {
	switch {
	case deps.Synthesizer == nil:
		return nil, fmt.Errorf("%w: synthesizer", ErrMissingDependency)
	case deps.Executor == nil:
		return nil, fmt.Errorf("%w: executor", ErrMissingDependency)
	case deps.Safety == nil:
		return nil, fmt.Errorf("%w: safety gate", ErrMissingDependency)
	case deps.Interface == nil:
		return nil, fmt.Errorf("%w: interface gate", ErrMissingDependency)
	}
	if deps.Recorder == nil {
		deps.Recorder = NopRecorder{}
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{deps: deps, config: cfg, logger: logger}, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() *Config {
	return e.config
}

// Run drives one session from DECOMPOSE to FINALIZE.
//
// Description:
//
//	Every executed step appends exactly one history entry. Per-feature
//	failures (rejected candidates, failing or timed-out tests, abandoned
//	features) never fail the run. Only a synthesizer failure or caller
//	cancellation stops it early; the session is still handed to the
//	recorder and returned.
//
// Inputs:
//
//	ctx - Context for cancellation
//	request - The natural-language goal
//
// Outputs:
//
//	*SessionState - The final session (non-nil whenever the run started)
//	error - *RunError on a terminal failure, wrapped ErrPersistence if the
//	        recorder failed at finalize, nil otherwise
func (e *Engine) Run(ctx context.Context, request string) (*SessionState, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	request = strings.TrimSpace(request)
	if request == "" {
		return nil, ErrEmptyRequest
	}
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	defer e.running.Store(false)

	s := NewSessionState(uuid.NewString(), request, e.config.Language, e.config.HistoryDetailLimit)

	ctx, span := startRunSpan(ctx, s.RunID, s.Language)
	defer span.End()

	logger := e.logger.With(slog.String("run_id", s.RunID))
	logger.Info("Starting synthesis run",
		slog.String("language", s.Language),
		slog.Int("request_length", len(request)),
		slog.Int("max_feature_attempts", e.config.MaxFeatureAttempts),
		slog.Int("max_iterations", e.config.MaxIterations),
	)

	state := StateDecompose
	for state != StateFinalize {
		if err := ctx.Err(); err != nil {
			return e.abort(ctx, s, state, err, logger)
		}
		if e.budgetExhausted(s) {
			state = e.exhaustBudget(ctx, s, state, logger)
			continue
		}

		next, err := e.step(ctx, s, state, logger)
		if err != nil {
			return e.abort(ctx, s, state, err, logger)
		}
		recordStateTransition(ctx, state, next)
		state = next
	}

	return e.finalize(ctx, s, logger)
}

// step executes one state and returns the next.
func (e *Engine) step(ctx context.Context, s *SessionState, state State, logger *slog.Logger) (State, error) {
	switch state {
	case StateDecompose:
		return e.stepDecompose(ctx, s, logger)
	case StateSelectFeature:
		return e.stepSelectFeature(ctx, s, logger), nil
	case StateWriteTest:
		return e.stepWriteTest(ctx, s, logger)
	case StateExecuteTests:
		return e.stepExecuteTests(ctx, s, logger)
	case StateDecide:
		return e.stepDecide(ctx, s, logger), nil
	case StateImplementFix:
		return e.stepImplementFix(ctx, s, logger)
	case StateRefactor:
		return e.stepRefactor(ctx, s, logger)
	default:
		return StateAborted, fmt.Errorf("unexpected state %q", state)
	}
}

// =============================================================================
// STEPS
// =============================================================================

func (e *Engine) stepDecompose(ctx context.Context, s *SessionState, logger *slog.Logger) (State, error) {
	resp, err := e.deps.Synthesizer.Generate(ctx, synth.Request{
		Kind:     synth.KindDecompose,
		Goal:     s.Request,
		Language: s.Language,
	})
	if err != nil {
		return StateAborted, err
	}

	features, parseErr := synth.ParseFeatures(resp.Text)
	if parseErr != nil {
		logger.Warn("Decomposition unusable, using request as the only feature",
			slog.String("error", parseErr.Error()),
		)
		s.Features.Push(s.Request)
		e.record(ctx, s, HistoryEntry{
			State:  StateDecompose,
			Next:   StateSelectFeature,
			Action: ActionDecomposeFallback,
			Detail: parseErr.Error(),
		}, logger)
		return StateSelectFeature, nil
	}

	s.Features.Push(features...)
	logger.Info("Request decomposed", slog.Int("features", len(features)))
	e.record(ctx, s, HistoryEntry{
		State:  StateDecompose,
		Next:   StateSelectFeature,
		Action: ActionDecompose,
		Detail: fmt.Sprintf("%d features: %s", len(features), strings.Join(features, "; ")),
	}, logger)
	return StateSelectFeature, nil
}

func (e *Engine) stepSelectFeature(ctx context.Context, s *SessionState, logger *slog.Logger) State {
	feature, ok := s.Features.Pop()
	if !ok {
		s.clearFeature()
		e.record(ctx, s, HistoryEntry{
			State:  StateSelectFeature,
			Next:   StateFinalize,
			Action: ActionQueueExhausted,
			Detail: fmt.Sprintf("completed %d, abandoned %d", len(s.Completed), len(s.Abandoned)),
		}, logger)
		return StateFinalize
	}

	s.selectFeature(feature)
	logger.Info("Feature selected",
		slog.String("feature", feature),
		slog.Int("remaining", s.Features.Len()),
	)
	e.record(ctx, s, HistoryEntry{
		State:   StateSelectFeature,
		Next:    StateWriteTest,
		Action:  ActionSelectFeature,
		Feature: feature,
		Detail:  fmt.Sprintf("%d remaining", s.Features.Len()),
	}, logger)
	return StateWriteTest
}

func (e *Engine) stepWriteTest(ctx context.Context, s *SessionState, logger *slog.Logger) (State, error) {
	resp, err := e.deps.Synthesizer.Generate(ctx, synth.Request{
		Kind:           synth.KindWriteTest,
		Goal:           s.Request,
		Feature:        s.CurrentFeature,
		ProductionCode: s.ProductionCode,
		TestCode:       s.TestCode,
		Language:       s.Language,
	})
	if err != nil {
		return StateAborted, err
	}

	detail := "test appended"
	if code := strings.TrimSpace(resp.Code); code != "" {
		s.appendTest(code)
	} else {
		detail = "synthesizer returned no test code"
		logger.Warn("Empty test from synthesizer", slog.String("feature", s.CurrentFeature))
	}
	s.IterationCount++

	e.record(ctx, s, HistoryEntry{
		State:   StateWriteTest,
		Next:    StateExecuteTests,
		Action:  ActionWriteTest,
		Feature: s.CurrentFeature,
		Detail:  detail,
	}, logger)
	return StateExecuteTests, nil
}

func (e *Engine) stepExecuteTests(ctx context.Context, s *SessionState, logger *slog.Logger) (State, error) {
	result, err := e.deps.Executor.Run(ctx, s.ProductionCode, s.TestCode, e.config.TestTimeout)
	if err != nil {
		return StateAborted, err
	}
	if result == nil {
		result = &sandbox.Result{Verdict: sandbox.VerdictError, Reason: "executor returned no result"}
	}
	s.LastTestResult = result

	logger.Info("Tests executed",
		slog.String("feature", s.CurrentFeature),
		slog.String("verdict", result.Verdict.String()),
		slog.Duration("duration", result.Duration),
	)
	e.record(ctx, s, HistoryEntry{
		State:   StateExecuteTests,
		Next:    StateDecide,
		Action:  ActionExecuteTests,
		Feature: s.CurrentFeature,
		Detail:  result.Summary(),
	}, logger)
	return StateDecide, nil
}

func (e *Engine) stepDecide(ctx context.Context, s *SessionState, logger *slog.Logger) State {
	in := DecideInput{
		HasFeature:     s.HasFeature,
		IterationCount: s.IterationCount,
		MaxAttempts:    e.config.MaxFeatureAttempts,
	}
	if s.LastTestResult != nil {
		in.Verdict = s.LastTestResult.Verdict
	}
	d := Decide(in)

	entry := HistoryEntry{
		State:   StateDecide,
		Next:    d.Next,
		Action:  ActionDecide,
		Feature: s.CurrentFeature,
		Detail:  fmt.Sprintf("verdict %s after %d/%d attempts", in.Verdict, in.IterationCount, in.MaxAttempts),
	}
	if d.Abandoned {
		feature := s.CurrentFeature
		s.Abandoned = append(s.Abandoned, feature)
		s.clearFeature()
		recordFeatureOutcome(ctx, "abandoned")
		logger.Warn("Feature abandoned",
			slog.String("feature", feature),
			slog.Int("attempts", in.IterationCount),
		)
		entry.Action = ActionFeatureAbandoned
		entry.Detail = fmt.Sprintf("abandoned after %d attempts, last verdict %s", in.IterationCount, in.Verdict)
	}
	e.record(ctx, s, entry, logger)
	return d.Next
}

func (e *Engine) stepImplementFix(ctx context.Context, s *SessionState, logger *slog.Logger) (State, error) {
	req := synth.Request{
		Kind:           synth.KindImplementFix,
		Goal:           s.Request,
		Feature:        s.CurrentFeature,
		ProductionCode: s.ProductionCode,
		TestCode:       s.TestCode,
		Language:       s.Language,
	}
	if s.LastTestResult != nil {
		req.TestOutput = s.LastTestResult.Output
	}
	resp, err := e.deps.Synthesizer.Generate(ctx, req)
	if err != nil {
		return StateAborted, err
	}

	s.IterationCount++
	entry := HistoryEntry{
		State:   StateImplementFix,
		Next:    StateExecuteTests,
		Feature: s.CurrentFeature,
	}
	if rejection := e.gateCandidate(ctx, s.ProductionCode, resp.Code); rejection != nil {
		recordCandidate(ctx, StateImplementFix, false)
		logger.Warn("Candidate rejected",
			slog.String("feature", s.CurrentFeature),
			slog.String("reason", rejection.Error()),
		)
		entry.Action = ActionCandidateRejected
		entry.Detail = rejection.Error()
	} else {
		recordCandidate(ctx, StateImplementFix, true)
		s.ProductionCode = resp.Code
		entry.Action = ActionCandidateAccepted
		entry.Detail = fmt.Sprintf("production code updated (%d bytes)", len(resp.Code))
	}
	e.record(ctx, s, entry, logger)
	return StateExecuteTests, nil
}

func (e *Engine) stepRefactor(ctx context.Context, s *SessionState, logger *slog.Logger) (State, error) {
	resp, err := e.deps.Synthesizer.Generate(ctx, synth.Request{
		Kind:           synth.KindRefactor,
		Goal:           s.Request,
		Feature:        s.CurrentFeature,
		ProductionCode: s.ProductionCode,
		TestCode:       s.TestCode,
		Language:       s.Language,
	})
	if err != nil {
		return StateAborted, err
	}

	feature := s.CurrentFeature
	entry := HistoryEntry{
		State:   StateRefactor,
		Next:    StateSelectFeature,
		Feature: feature,
	}
	if rejection := e.gateCandidate(ctx, s.ProductionCode, resp.Code); rejection != nil {
		recordCandidate(ctx, StateRefactor, false)
		logger.Info("Refactor rejected, keeping current code",
			slog.String("feature", feature),
			slog.String("reason", rejection.Error()),
		)
		entry.Action = ActionRefactorRejected
		entry.Detail = rejection.Error()
	} else {
		recordCandidate(ctx, StateRefactor, true)
		s.ProductionCode = resp.Code
		entry.Action = ActionRefactorAccepted
		entry.Detail = fmt.Sprintf("production code refactored (%d bytes)", len(resp.Code))
	}

	s.Completed = append(s.Completed, feature)
	s.clearFeature()
	recordFeatureOutcome(ctx, "completed")
	e.record(ctx, s, entry, logger)
	return StateSelectFeature, nil
}

// =============================================================================
// TERMINATION
// =============================================================================

func (e *Engine) budgetExhausted(s *SessionState) bool {
	return e.config.MaxIterations > 0 && s.GlobalIterationCount >= e.config.MaxIterations
}

// exhaustBudget records the ceiling being hit in place of the step that
// would have run, abandoning any feature in flight.
func (e *Engine) exhaustBudget(ctx context.Context, s *SessionState, state State, logger *slog.Logger) State {
	if s.HasFeature {
		s.Abandoned = append(s.Abandoned, s.CurrentFeature)
		recordFeatureOutcome(ctx, "abandoned")
	}
	logger.Warn("Iteration budget exhausted",
		slog.Int("max_iterations", e.config.MaxIterations),
		slog.String("state", state.String()),
		slog.Int("pending", s.Features.Len()),
	)
	e.record(ctx, s, HistoryEntry{
		State:   state,
		Next:    StateFinalize,
		Action:  ActionBudgetExhausted,
		Feature: s.CurrentFeature,
		Detail:  fmt.Sprintf("%d steps executed, %d features pending", s.GlobalIterationCount, s.Features.Len()),
	}, logger)
	s.clearFeature()
	return StateFinalize
}

// finalize records the terminal entry and hands the session to the recorder.
func (e *Engine) finalize(ctx context.Context, s *SessionState, logger *slog.Logger) (*SessionState, error) {
	s.Status = RunStatusCompleted
	s.FinishedAt = time.Now()
	s.History.Append(HistoryEntry{
		State:  StateFinalize,
		Next:   StateFinalize,
		Action: ActionFinalize,
		Detail: fmt.Sprintf("completed %d, abandoned %d, pending %d",
			len(s.Completed), len(s.Abandoned), s.Features.Len()),
	})

	e.observeEnd(ctx, s, logger)

	if err := e.deps.Recorder.Finalize(ctx, s); err != nil {
		logger.Error("Failed to persist run", slog.String("error", err.Error()))
		return s, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return s, nil
}

// abort stops the run after a terminal failure in state.
func (e *Engine) abort(ctx context.Context, s *SessionState, state State, cause error, logger *slog.Logger) (*SessionState, error) {
	runErr := &RunError{State: state, Cause: cause}

	s.Status = RunStatusFailed
	s.Error = runErr.Error()
	s.FinishedAt = time.Now()
	s.GlobalIterationCount++
	s.History.Append(HistoryEntry{
		State:   state,
		Next:    StateAborted,
		Action:  ActionAborted,
		Feature: s.CurrentFeature,
		Attempt: s.IterationCount,
		Detail:  cause.Error(),
	})

	logger.Error("Synthesis run aborted",
		slog.String("state", state.String()),
		slog.String("error", cause.Error()),
		slog.Bool("cancelled", errors.Is(cause, context.Canceled)),
	)
	e.observeEnd(ctx, s, logger)

	// The session is persisted even when the caller's context is done.
	if err := e.deps.Recorder.Finalize(context.WithoutCancel(ctx), s); err != nil {
		logger.Error("Failed to persist aborted run", slog.String("error", err.Error()))
	}
	return s, runErr
}

func (e *Engine) observeEnd(ctx context.Context, s *SessionState, logger *slog.Logger) {
	setRunSpanResult(ctx, s)
	recordRunMetrics(ctx, s.Language, s.Elapsed(), s.Status)

	logger.Info("Synthesis run finished",
		slog.String("status", string(s.Status)),
		slog.Int("steps", s.History.Len()),
		slog.Int("completed", len(s.Completed)),
		slog.Int("abandoned", len(s.Abandoned)),
		slog.Duration("duration", s.Elapsed()),
	)
}

// =============================================================================
// HELPERS
// =============================================================================

// record counts the step, appends its history entry and snapshots the session.
func (e *Engine) record(ctx context.Context, s *SessionState, entry HistoryEntry, logger *slog.Logger) {
	s.GlobalIterationCount++
	if entry.Attempt == 0 {
		entry.Attempt = s.IterationCount
	}
	stored := s.History.Append(entry)

	logger.Debug("Transition",
		slog.String("from", entry.State.String()),
		slog.String("to", entry.Next.String()),
		slog.String("action", string(entry.Action)),
		slog.Int("seq", stored.Seq),
	)

	if err := e.deps.Recorder.Snapshot(ctx, s, stored); err != nil {
		logger.Warn("Snapshot failed",
			slog.Int("seq", stored.Seq),
			slog.String("error", err.Error()),
		)
	}
}

// gateCandidate runs the safety gate then the interface gate. It returns nil
// when the candidate may replace current.
func (e *Engine) gateCandidate(ctx context.Context, current, candidate string) *CandidateRejectedError {
	if d := e.deps.Safety.Evaluate(candidate); !d.Accepted {
		return &CandidateRejectedError{Gate: ErrUnsafeCandidate, Reason: d.Reason, Cause: d.Err}
	}
	if d := e.deps.Interface.Evaluate(ctx, current, candidate); !d.Accepted {
		return &CandidateRejectedError{Gate: ErrIncompatibleCandidate, Reason: d.Reason, Cause: d.Err}
	}
	return nil
}
