// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds executor configuration.
type Config struct {
	// Language selects the LanguageConfig.
	// Default: "go"
	Language string

	// MaxOutputBytes caps captured output.
	// Default: 65536 (64KB)
	MaxOutputBytes int

	// WaitDelay bounds how long Wait blocks on output pipes after the
	// process group is killed.
	// Default: 2s
	WaitDelay time.Duration

	// TempRoot is the parent of every workspace. Empty uses os.TempDir.
	TempRoot string

	// Registry overrides DefaultRegistry.
	Registry *Registry
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Language:       "go",
		MaxOutputBytes: 64 * 1024,
		WaitDelay:      2 * time.Second,
	}
}

// =============================================================================
// EXECUTOR
// =============================================================================

// Executor runs tests in disposable workspaces.
//
// Thread Safety: Safe for concurrent use. Each call owns its workspace and
// its process group.
type Executor struct {
	lang      *LanguageConfig
	maxOutput int
	waitDelay time.Duration
	tempRoot  string
	logger    *slog.Logger
}

// New creates an executor for the configured language.
//
// Outputs:
//
//	*Executor - Ready to use executor
//	error - ErrUnsupportedLanguage if the language is not registered
func New(cfg Config, logger *slog.Logger) (*Executor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Language == "" {
		cfg.Language = def.Language
	}
	if cfg.MaxOutputBytes < 1024 {
		cfg.MaxOutputBytes = def.MaxOutputBytes
	}
	if cfg.WaitDelay <= 0 {
		cfg.WaitDelay = def.WaitDelay
	}
	reg := cfg.Registry
	if reg == nil {
		reg = DefaultRegistry
	}

	lang, ok := reg.Get(cfg.Language)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, cfg.Language)
	}

	return &Executor{
		lang:      lang,
		maxOutput: cfg.MaxOutputBytes,
		waitDelay: cfg.WaitDelay,
		tempRoot:  cfg.TempRoot,
		logger:    logger.With(slog.String("component", "sandbox"), slog.String("language", lang.Language)),
	}, nil
}

// Language returns the configuration this executor runs.
func (e *Executor) Language() *LanguageConfig {
	return e.lang
}

// Run executes tests against production code.
//
// Description:
//
//	Creates a fresh temporary directory, lays out the code, runs the
//	language's test command in its own process group bounded by timeout,
//	and removes the directory before returning. A timeout kills the whole
//	process group and yields VerdictTimeout.
//
// Inputs:
//
//	ctx - Caller context; cancellation aborts the run
//	production - Accepted production code
//	tests - Accumulated test code
//	timeout - Hard bound for the child process
//
// Outputs:
//
//	*Result - Always non-nil
//	error - Non-nil only when ctx was cancelled or is nil
//
// Thread Safety: Safe for concurrent use.
func (e *Executor) Run(ctx context.Context, production, tests string, timeout time.Duration) (*Result, error) {
	if ctx == nil {
		return &Result{Verdict: VerdictError, ExitCode: -1, Reason: ErrNilContext.Error()}, ErrNilContext
	}

	start := time.Now()
	result := e.run(ctx, production, tests, timeout)
	result.Duration = time.Since(start)
	recordExecution(e.lang.Language, result)

	e.logger.Info("Tests executed",
		slog.String("verdict", result.Verdict.String()),
		slog.Int("exit_code", result.ExitCode),
		slog.Duration("duration", result.Duration),
		slog.Int("failed_count", len(result.FailedTests)),
		slog.Bool("truncated", result.Truncated),
	)

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (e *Executor) run(ctx context.Context, production, tests string, timeout time.Duration) *Result {
	if strings.TrimSpace(tests) == "" {
		return errorResult(ErrNoTests.Error())
	}

	dir, err := os.MkdirTemp(e.tempRoot, "agentsmith-sandbox-*")
	if err != nil {
		return errorResult(fmt.Sprintf("create workspace: %v", err))
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			e.logger.Warn("Workspace cleanup failed", slog.String("dir", dir), slog.String("error", err.Error()))
		}
	}()

	layout := e.lang.Layout
	if layout == nil {
		layout = layoutPlain(e.lang)
	}
	if err := layout(dir, production, tests); err != nil {
		return errorResult(fmt.Sprintf("prepare workspace: %v", err))
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var out bytes.Buffer
	limited := &limitedWriter{w: &out, limit: e.maxOutput}

	cmd := exec.CommandContext(runCtx, e.lang.Command, e.lang.Args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), e.lang.Env...)
	cmd.Stdout = limited
	cmd.Stderr = limited
	cmd.WaitDelay = e.waitDelay
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }

	e.logger.Debug("Executing command",
		slog.String("command", e.lang.Command),
		slog.Any("args", e.lang.Args),
		slog.Duration("timeout", timeout),
	)

	runErr := cmd.Run()
	// Reap anything the runner left behind in its group.
	_ = killProcessGroup(cmd)

	if killedByDeadline(runErr, runCtx.Err(), ctx.Err()) {
		return &Result{
			Verdict:   VerdictTimeout,
			Output:    out.String() + fmt.Sprintf("\nexecution exceeded %s and was killed\n", timeout),
			ExitCode:  -1,
			Truncated: limited.truncated,
		}
	}
	if ctx.Err() != nil {
		r := errorResult("run cancelled")
		r.Output = out.String()
		return r
	}

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			r := errorResult(fmt.Sprintf("command execution failed: %v", runErr))
			r.Output = out.String()
			return r
		}
		exitCode = exitErr.ExitCode()
	}

	classify := e.lang.Classify
	if classify == nil {
		classify = ClassifyMarkers
	}
	verdict, failed, text := classify(exitCode, out.Bytes())

	result := &Result{
		Verdict:     verdict,
		Output:      text,
		ExitCode:    exitCode,
		FailedTests: failed,
		Truncated:   limited.truncated,
	}
	if verdict == VerdictError {
		result.Reason = fmt.Sprintf("runner exited with status %d", exitCode)
	}
	return result
}

// killedByDeadline reports whether the runner was stopped by the execution
// timeout. A runner that exited cleanly is never a timeout, even when the
// deadline passed before the check.
func killedByDeadline(runErr, runCtxErr, parentErr error) bool {
	return runErr != nil && parentErr == nil && errors.Is(runCtxErr, context.DeadlineExceeded)
}

func errorResult(reason string) *Result {
	return &Result{Verdict: VerdictError, ExitCode: -1, Reason: reason, Output: reason}
}

// =============================================================================
// OUTPUT CAPTURE
// =============================================================================

// limitedWriter wraps a writer with a size limit. Writes past the limit are
// discarded but reported as written so the child never blocks on a pipe.
type limitedWriter struct {
	w         io.Writer
	limit     int
	written   int
	truncated bool
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	remaining := lw.limit - lw.written
	if remaining <= 0 {
		lw.truncated = true
		return n, nil
	}
	if len(p) > remaining {
		p = p[:remaining]
		lw.truncated = true
	}
	written, err := lw.w.Write(p)
	lw.written += written
	if err != nil {
		return written, err
	}
	return n, nil
}
