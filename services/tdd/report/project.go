// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package report persists synthesis runs.
//
// ProjectWriter lays a run out on disk as a project directory with
// per-execution snapshots and a final report. Archive keeps a queryable
// record of every run in BadgerDB.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AleutianAI/agentsmith/services/tdd"
	"github.com/AleutianAI/agentsmith/services/tdd/sandbox"
)

const (
	dirPerm  = 0o750
	filePerm = 0o640

	versionsDir    = "versions"
	historyFile    = "history.json"
	sessionFile    = "session.json"
	readmeFile     = "README.md"
	testOutputFile = "test_output.txt"
)

// ErrNoProject indicates Finalize was called before any project directory
// could be created.
var ErrNoProject = errors.New("project directory not created")

// ProjectWriter writes a run into <root>/<timestamp>_<slug>/.
//
// Layout:
//
//	versions/iter_<n>/   production, tests and runner output after the n-th execution
//	<production file>    final production code
//	<test file>          final tests
//	history.json         the full history log
//	session.json         the final session state
//	README.md            run summary
//
// Thread Safety: NOT safe for concurrent use. One writer per run.
type ProjectWriter struct {
	root       string
	now        func() time.Time
	logger     *slog.Logger
	dir        string
	executions int
}

// NewProjectWriter creates a writer rooted at root.
//
// Inputs:
//
//	root - Parent directory for project directories. Created on demand.
//	logger - Logger for structured logging. Nil uses slog.Default().
//
// Outputs:
//
//	*ProjectWriter - The writer
func NewProjectWriter(root string, logger *slog.Logger) *ProjectWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProjectWriter{root: root, now: time.Now, logger: logger}
}

// Dir returns the project directory, or "" before the first write.
func (w *ProjectWriter) Dir() string {
	return w.dir
}

// Snapshot writes a version directory after every test execution.
func (w *ProjectWriter) Snapshot(_ context.Context, s *tdd.SessionState, entry tdd.HistoryEntry) error {
	if err := w.ensureDir(s); err != nil {
		return err
	}
	if entry.Action != tdd.ActionExecuteTests {
		return nil
	}

	w.executions++
	dir := filepath.Join(w.dir, versionsDir, fmt.Sprintf("iter_%d", w.executions))
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("create version directory: %w", err)
	}

	prodName, testName := fileNames(s.Language)
	output := ""
	if s.LastTestResult != nil {
		output = s.LastTestResult.Verdict.String() + "\n\n" + s.LastTestResult.Output
	}
	files := map[string]string{
		prodName:       s.ProductionCode,
		testName:       s.TestCode,
		testOutputFile: output,
	}
	for name, content := range files {
		if err := writeFileAtomic(filepath.Join(dir, name), []byte(content), filePerm); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}

// Finalize writes the final code, history and README.
func (w *ProjectWriter) Finalize(_ context.Context, s *tdd.SessionState) error {
	if err := w.ensureDir(s); err != nil {
		return errors.Join(ErrNoProject, err)
	}

	history, err := json.MarshalIndent(s.History, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	digest, err := Digest(history)
	if err != nil {
		return fmt.Errorf("digest history: %w", err)
	}
	session, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	prodName, testName := fileNames(s.Language)
	files := []struct {
		name    string
		content []byte
	}{
		{prodName, []byte(s.ProductionCode)},
		{testName, []byte(s.TestCode)},
		{historyFile, history},
		{sessionFile, session},
		{readmeFile, []byte(RenderReadme(s, digest))},
	}
	for _, f := range files {
		if err := writeFileAtomic(filepath.Join(w.dir, f.name), f.content, filePerm); err != nil {
			return fmt.Errorf("write %s: %w", f.name, err)
		}
	}

	w.logger.Info("Project written",
		slog.String("run_id", s.RunID),
		slog.String("dir", w.dir),
		slog.Int("versions", w.executions),
		slog.String("history_digest", digest),
	)
	return nil
}

func (w *ProjectWriter) ensureDir(s *tdd.SessionState) error {
	if w.dir != "" {
		return nil
	}
	name := w.now().Format("20060102_150405") + "_" + Slug(s.Request)
	dir := filepath.Join(w.root, name)
	if err := os.MkdirAll(filepath.Join(dir, versionsDir), dirPerm); err != nil {
		return fmt.Errorf("create project directory: %w", err)
	}
	w.dir = dir
	return nil
}

// fileNames returns the production and test file names for a language.
func fileNames(language string) (string, string) {
	if cfg, ok := sandbox.Lookup(language); ok {
		return cfg.ProductionFile, cfg.TestFile
	}
	return "production.txt", "tests.txt"
}

// RenderReadme renders the run summary as Markdown.
func RenderReadme(s *tdd.SessionState, historyDigest string) string {
	var sb strings.Builder
	sum := s.Summary()
	prodName, testName := fileNames(s.Language)

	fmt.Fprintf(&sb, "# %s\n\n", s.Request)
	sb.WriteString("## Summary\n\n")
	fmt.Fprintf(&sb, "- Run: `%s`\n", sum.RunID)
	fmt.Fprintf(&sb, "- Language: %s\n", sum.Language)
	fmt.Fprintf(&sb, "- Status: %s\n", sum.Status)
	fmt.Fprintf(&sb, "- Steps: %d\n", sum.Steps)
	verdict := "not run"
	if sum.FinalVerdict != "" {
		verdict = sum.FinalVerdict.String()
	}
	fmt.Fprintf(&sb, "- Final test status: %s\n", verdict)
	fmt.Fprintf(&sb, "- Duration: %s\n", sum.Duration.Round(time.Millisecond))
	if sum.Error != "" {
		fmt.Fprintf(&sb, "- Error: %s\n", sum.Error)
	}

	writeList(&sb, "Completed features", sum.Completed)
	writeList(&sb, "Abandoned features", sum.Abandoned)
	writeList(&sb, "Pending features", sum.Pending)

	sb.WriteString("\n## Files\n\n")
	fmt.Fprintf(&sb, "- `%s`: production code\n", prodName)
	fmt.Fprintf(&sb, "- `%s`: tests\n", testName)
	fmt.Fprintf(&sb, "- `%s`: history (sha256 of canonical JSON `%s`)\n", historyFile, historyDigest)
	fmt.Fprintf(&sb, "- `%s/`: code and test output after each execution\n", versionsDir)

	if cfg, ok := sandbox.Lookup(s.Language); ok {
		sb.WriteString("\n## How to Run\n\n```bash\n")
		fmt.Fprintf(&sb, "%s %s\n", cfg.Command, strings.Join(cfg.Args, " "))
		sb.WriteString("```\n")
	}
	return sb.String()
}

func writeList(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n### %s\n\n", title)
	for _, item := range items {
		fmt.Fprintf(sb, "- %s\n", item)
	}
}
