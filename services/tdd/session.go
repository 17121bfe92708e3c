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
	"time"

	"github.com/AleutianAI/agentsmith/services/tdd/sandbox"
)

// SessionState is the working state of one run.
//
// The engine owns it exclusively while the run is active. Recorders see it
// only during their callbacks and must not retain or mutate it.
type SessionState struct {
	RunID    string `json:"run_id"`
	Request  string `json:"request"`
	Language string `json:"language"`

	// Features holds pending features. It never contains CurrentFeature.
	Features *FeatureQueue `json:"pending_features"`

	CurrentFeature string `json:"current_feature,omitempty"`
	HasFeature     bool   `json:"has_feature"`

	// ProductionCode changes only when a candidate passes both gates.
	ProductionCode string `json:"production_code"`

	// TestCode only ever grows.
	TestCode string `json:"test_code"`

	LastTestResult *sandbox.Result `json:"last_test_result,omitempty"`

	History *HistoryLog `json:"history"`

	// IterationCount counts attempts on the current feature.
	IterationCount int `json:"iteration_count"`

	// GlobalIterationCount counts executed steps across the run.
	GlobalIterationCount int `json:"global_iteration_count"`

	Completed []string `json:"completed_features"`
	Abandoned []string `json:"abandoned_features"`

	Status     RunStatus `json:"status"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// NewSessionState creates the initial state of a run.
func NewSessionState(runID, request, language string, detailLimit int) *SessionState {
	return &SessionState{
		RunID:     runID,
		Request:   request,
		Language:  language,
		Features:  NewFeatureQueue(),
		History:   NewHistoryLog(detailLimit),
		Completed: []string{},
		Abandoned: []string{},
		Status:    RunStatusRunning,
		StartedAt: time.Now(),
	}
}

// selectFeature moves feature into flight and resets the attempt count.
func (s *SessionState) selectFeature(feature string) {
	s.CurrentFeature = feature
	s.HasFeature = true
	s.IterationCount = 0
}

func (s *SessionState) clearFeature() {
	s.CurrentFeature = ""
	s.HasFeature = false
}

// appendTest adds a test block, separated from earlier tests by a blank line.
// Later Go blocks get a package clause so each one stays a separate file.
func (s *SessionState) appendTest(code string) {
	if s.TestCode == "" {
		s.TestCode = code
		return
	}
	if s.Language == "go" {
		code = sandbox.EnsurePackageClause(code)
	}
	s.TestCode += "\n\n" + code
}

// Elapsed returns the run's wall time so far, or in total once finished.
func (s *SessionState) Elapsed() time.Duration {
	if !s.FinishedAt.IsZero() {
		return s.FinishedAt.Sub(s.StartedAt)
	}
	return time.Since(s.StartedAt)
}

// FinalVerdict returns the verdict of the last execution, if any.
func (s *SessionState) FinalVerdict() sandbox.Verdict {
	if s.LastTestResult == nil {
		return ""
	}
	return s.LastTestResult.Verdict
}

// Summary returns a compact, serializable view of the run.
func (s *SessionState) Summary() Summary {
	return Summary{
		RunID:        s.RunID,
		Request:      s.Request,
		Language:     s.Language,
		Status:       s.Status,
		Completed:    append([]string(nil), s.Completed...),
		Abandoned:    append([]string(nil), s.Abandoned...),
		Pending:      s.Features.Items(),
		Steps:        s.History.Len(),
		FinalVerdict: s.FinalVerdict(),
		Duration:     s.Elapsed(),
		Error:        s.Error,
	}
}

// Summary is the outcome of a run as reported to users.
type Summary struct {
	RunID        string          `json:"run_id"`
	Request      string          `json:"request"`
	Language     string          `json:"language"`
	Status       RunStatus       `json:"status"`
	Completed    []string        `json:"completed"`
	Abandoned    []string        `json:"abandoned"`
	Pending      []string        `json:"pending"`
	Steps        int             `json:"steps"`
	FinalVerdict sandbox.Verdict `json:"final_verdict,omitempty"`
	Duration     time.Duration   `json:"duration"`
	Error        string          `json:"error,omitempty"`
}
