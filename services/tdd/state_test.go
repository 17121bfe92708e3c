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
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/agentsmith/services/tdd/sandbox"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name string
		in   DecideInput
		want Decision
	}{
		{"no feature", DecideInput{HasFeature: false, Verdict: sandbox.VerdictPass, IterationCount: 1, MaxAttempts: 3}, Decision{Next: StateFinalize}},
		{"pass", DecideInput{HasFeature: true, Verdict: sandbox.VerdictPass, IterationCount: 1, MaxAttempts: 3}, Decision{Next: StateRefactor}},
		{"pass on last attempt", DecideInput{HasFeature: true, Verdict: sandbox.VerdictPass, IterationCount: 3, MaxAttempts: 3}, Decision{Next: StateRefactor}},
		{"fail with attempts left", DecideInput{HasFeature: true, Verdict: sandbox.VerdictFail, IterationCount: 2, MaxAttempts: 3}, Decision{Next: StateImplementFix}},
		{"fail at cap", DecideInput{HasFeature: true, Verdict: sandbox.VerdictFail, IterationCount: 3, MaxAttempts: 3}, Decision{Next: StateSelectFeature, Abandoned: true}},
		{"timeout at cap", DecideInput{HasFeature: true, Verdict: sandbox.VerdictTimeout, IterationCount: 3, MaxAttempts: 3}, Decision{Next: StateSelectFeature, Abandoned: true}},
		{"timeout with attempts left", DecideInput{HasFeature: true, Verdict: sandbox.VerdictTimeout, IterationCount: 1, MaxAttempts: 3}, Decision{Next: StateImplementFix}},
		{"error with attempts left", DecideInput{HasFeature: true, Verdict: sandbox.VerdictError, IterationCount: 1, MaxAttempts: 3}, Decision{Next: StateImplementFix}},
		{"no result yet", DecideInput{HasFeature: true, IterationCount: 1, MaxAttempts: 3}, Decision{Next: StateImplementFix}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.in)
			assert.Equal(t, tt.want, got)
			// Same input, same answer.
			assert.Equal(t, got, Decide(tt.in))
		})
	}
}

func TestFeatureQueue(t *testing.T) {
	q := NewFeatureQueue("a", "b")
	q.Push("c")
	assert.Equal(t, 3, q.Len())
	assert.Equal(t, []string{"a", "b", "c"}, q.Items())

	got, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "a", got)
	assert.NotContains(t, q.Items(), "a")

	items := q.Items()
	items[0] = "mutated"
	assert.Equal(t, []string{"b", "c"}, q.Items(), "Items returns a copy")

	q.Pop()
	q.Pop()
	assert.True(t, q.IsEmpty())
	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestFeatureQueue_JSON(t *testing.T) {
	data, err := json.Marshal(NewFeatureQueue("x", "y"))
	require.NoError(t, err)
	assert.JSONEq(t, `["x","y"]`, string(data))

	data, err = json.Marshal(NewFeatureQueue())
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))

	var q FeatureQueue
	require.NoError(t, json.Unmarshal([]byte(`["p","q"]`), &q))
	assert.Equal(t, []string{"p", "q"}, q.Items())
}

func TestHistoryLog_Append(t *testing.T) {
	h := NewHistoryLog(500)

	first := h.Append(HistoryEntry{State: StateDecompose, Action: ActionDecompose})
	second := h.Append(HistoryEntry{State: StateSelectFeature, Action: ActionSelectFeature})

	assert.Equal(t, 1, first.Seq)
	assert.Equal(t, 2, second.Seq)
	assert.False(t, first.Timestamp.IsZero())
	assert.Equal(t, 2, h.Len())
	assert.Equal(t, 1, h.Count(ActionDecompose))

	last, ok := h.Last()
	require.True(t, ok)
	assert.Equal(t, ActionSelectFeature, last.Action)

	_, ok = NewHistoryLog(0).Last()
	assert.False(t, ok)
}

func TestHistoryLog_KeepsTimestamp(t *testing.T) {
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	e := NewHistoryLog(0).Append(HistoryEntry{Timestamp: ts})
	assert.Equal(t, ts, e.Timestamp)
}

func TestHistoryLog_TruncatesDetail(t *testing.T) {
	h := NewHistoryLog(500)
	e := h.Append(HistoryEntry{Detail: strings.Repeat("x", 600)})
	assert.Len(t, e.Detail, 503)
	assert.True(t, strings.HasSuffix(e.Detail, "..."))

	e = h.Append(HistoryEntry{Detail: strings.Repeat("y", 500)})
	assert.Len(t, e.Detail, 500)
}

func TestTruncateDetail(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{"under limit", "abc", 5, "abc"},
		{"at limit", "abcde", 5, "abcde"},
		{"over limit", "abcdef", 5, "abcde..."},
		{"unlimited", "abcdef", 0, "abcdef"},
		{"rune boundary", "abécd", 3, "ab..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, truncateDetail(tt.in, tt.limit))
		})
	}
}

func TestHistoryLog_JSON(t *testing.T) {
	data, err := json.Marshal(NewHistoryLog(10))
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))

	h := NewHistoryLog(10)
	h.Append(HistoryEntry{State: StateFinalize, Next: StateFinalize, Action: ActionFinalize})
	data, err = json.Marshal(h)
	require.NoError(t, err)

	var back HistoryLog
	require.NoError(t, json.Unmarshal(data, &back))
	require.Equal(t, 1, back.Len())
	assert.Equal(t, ActionFinalize, back.Entries()[0].Action)
}

func TestSessionState(t *testing.T) {
	s := NewSessionState("run-1", "goal", "go", 500)
	assert.Equal(t, RunStatusRunning, s.Status)
	assert.Empty(t, s.FinalVerdict())

	s.selectFeature("a")
	s.IterationCount = 2
	s.selectFeature("b")
	assert.Equal(t, 0, s.IterationCount)
	assert.True(t, s.HasFeature)

	s.appendTest("t1")
	s.appendTest("t2")
	assert.Equal(t, "t1\n\npackage sandbox\n\nt2", s.TestCode)
	s.appendTest("package sandbox_test\n\nt3")
	assert.True(t, strings.HasSuffix(s.TestCode, "t2\n\npackage sandbox_test\n\nt3"))

	s.clearFeature()
	assert.False(t, s.HasFeature)
	assert.Empty(t, s.CurrentFeature)

	s.LastTestResult = &sandbox.Result{Verdict: sandbox.VerdictFail}
	s.Features.Push("c")
	s.Abandoned = append(s.Abandoned, "b")
	sum := s.Summary()
	assert.Equal(t, sandbox.VerdictFail, sum.FinalVerdict)
	assert.Equal(t, []string{"c"}, sum.Pending)
	assert.Equal(t, []string{"b"}, sum.Abandoned)

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"pending_features":["c"]`)
}

func TestSessionState_AppendTestPython(t *testing.T) {
	s := NewSessionState("run-1", "goal", "python", 500)
	s.appendTest("def test_a(): pass")
	s.appendTest("def test_b(): pass")
	assert.Equal(t, "def test_a(): pass\n\ndef test_b(): pass", s.TestCode)
}

func TestConfig_Validate(t *testing.T) {
	cfg := NewConfig(
		WithMaxFeatureAttempts(0),
		WithMaxIterations(-5),
		WithTestTimeout(time.Millisecond),
		WithHistoryDetailLimit(-1),
	)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.MaxFeatureAttempts)
	assert.Equal(t, 0, cfg.MaxIterations)
	assert.Equal(t, 100*time.Millisecond, cfg.TestTimeout)
	assert.Equal(t, 0, cfg.HistoryDetailLimit)

	assert.ErrorIs(t, NewConfig(WithLanguage("")).Validate(), ErrInvalidConfig)

	def := DefaultConfig()
	assert.Equal(t, "go", def.Language)
	assert.Equal(t, 3, def.MaxFeatureAttempts)
	assert.Equal(t, 200, def.MaxIterations)
	assert.Equal(t, 500, def.HistoryDetailLimit)
}

func TestState(t *testing.T) {
	assert.True(t, StateFinalize.IsTerminal())
	assert.True(t, StateAborted.IsTerminal())
	assert.False(t, StateDecide.IsTerminal())

	assert.True(t, StateWriteTest.CallsSynthesizer())
	assert.False(t, StateExecuteTests.CallsSynthesizer())
	assert.False(t, StateDecide.CallsSynthesizer())
}
