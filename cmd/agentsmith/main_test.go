// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/AleutianAI/agentsmith/cmd/agentsmith/config"
	"github.com/AleutianAI/agentsmith/pkg/ux"
	"github.com/AleutianAI/agentsmith/services/llm"
	"github.com/AleutianAI/agentsmith/services/tdd"
	"github.com/AleutianAI/agentsmith/services/tdd/gate"
	"github.com/AleutianAI/agentsmith/services/tdd/report"
	"github.com/AleutianAI/agentsmith/services/tdd/sandbox"
	"github.com/AleutianAI/agentsmith/services/tdd/synth"
	"github.com/charmbracelet/huh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// =============================================================================
// Interactive Loop Tests
// =============================================================================

func scriptedPrompt(replies ...string) func() (string, error) {
	i := 0
	return func() (string, error) {
		if i >= len(replies) {
			return "", huh.ErrUserAborted
		}
		r := replies[i]
		i++
		return r, nil
	}
}

func TestInteractiveLoop(t *testing.T) {
	tests := []struct {
		name    string
		replies []string
		want    []string
	}{
		{"exit stops", []string{"add numbers", "exit", "never"}, []string{"add numbers"}},
		{"quit stops", []string{"QUIT"}, nil},
		{"sair stops", []string{"a", "b", " sair "}, []string{"a", "b"}},
		{"blank lines skipped", []string{"", "  ", "x", "exit"}, []string{"x"}},
		{"aborted prompt stops", []string{"only"}, []string{"only"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			runOne := func(_ context.Context, request string) error {
				got = append(got, request)
				return nil
			}
			printer := ux.NewPrinterWithLevel(&bytes.Buffer{}, ux.PersonalityMachine)

			err := interactiveLoop(context.Background(), scriptedPrompt(tt.replies...), runOne, printer)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInteractiveLoop_ErrorsContinue(t *testing.T) {
	var buf bytes.Buffer
	printer := ux.NewPrinterWithLevel(&buf, ux.PersonalityMachine)
	calls := 0
	runOne := func(context.Context, string) error {
		calls++
		return errors.New("synthesis failed")
	}

	err := interactiveLoop(context.Background(), scriptedPrompt("a", "b", "exit"), runOne, printer)

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, strings.Count(buf.String(), "ERROR: synthesis failed"))
}

func TestInteractiveLoop_PromptError(t *testing.T) {
	prompt := func() (string, error) { return "", errors.New("tty gone") }
	err := interactiveLoop(context.Background(), prompt, nil, ux.NewPrinterWithLevel(&bytes.Buffer{}, ux.PersonalityMachine))
	assert.ErrorContains(t, err, "tty gone")
}

func TestInteractiveLoop_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	prompted := false
	prompt := func() (string, error) { prompted = true; return "x", nil }

	err := interactiveLoop(ctx, prompt, nil, ux.NewPrinterWithLevel(&bytes.Buffer{}, ux.PersonalityMachine))

	require.NoError(t, err)
	assert.False(t, prompted)
}

// =============================================================================
// Flag Tests
// =============================================================================

func TestApplyRunFlags(t *testing.T) {
	cfg := config.DefaultConfig()
	require.NoError(t, runCmd.Flags().Set("language", "PYTHON"))
	require.NoError(t, runCmd.Flags().Set("max-attempts", "5"))
	require.NoError(t, runCmd.Flags().Set("test-timeout", "30s"))
	require.NoError(t, runCmd.Flags().Set("no-archive", "true"))
	t.Cleanup(func() { runNoArchive = false })

	applyRunFlags(runCmd, &cfg)

	assert.Equal(t, "python", cfg.Run.Language)
	assert.Equal(t, 5, cfg.Run.MaxFeatureAttempts)
	assert.Equal(t, 30*time.Second, cfg.Run.TestTimeout)
	assert.False(t, cfg.Output.Archive)
	// unset flags keep config values
	assert.Equal(t, 200, cfg.Run.MaxIterations)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
}

// =============================================================================
// Output Tests
// =============================================================================

func TestPrintSummary(t *testing.T) {
	s := tdd.NewSessionState("run-1", "add numbers", "go", 500)
	s.Status = tdd.RunStatusCompleted
	s.Completed = []string{"add"}
	s.Abandoned = []string{"divide"}
	s.LastTestResult = &sandbox.Result{Verdict: sandbox.VerdictPass}
	s.FinishedAt = s.StartedAt.Add(1500 * time.Millisecond)

	var buf bytes.Buffer
	printSummary(ux.NewPrinterWithLevel(&buf, ux.PersonalityMachine), s, "/tmp/proj")

	out := buf.String()
	for _, want := range []string{
		"run_id=run-1",
		"status=completed",
		"final_verdict=PASS",
		"duration=1.5s",
		"project=/tmp/proj",
		"completed_features\tadd",
		"abandoned_features\tdivide",
		"WARN: Finished with 1 abandoned feature(s)",
	} {
		assert.Contains(t, out, want)
	}
}

func TestPrintSummary_Failed(t *testing.T) {
	s := tdd.NewSessionState("run-2", "x", "go", 500)
	s.Status = tdd.RunStatusFailed
	s.Error = "transport down"

	var buf bytes.Buffer
	printSummary(ux.NewPrinterWithLevel(&buf, ux.PersonalityMachine), s, "")

	assert.Contains(t, buf.String(), "final_verdict=not run")
	assert.Contains(t, buf.String(), "Run failed: transport down")
	assert.NotContains(t, buf.String(), "project=")
}

func TestPrintHistory(t *testing.T) {
	rec := report.RunRecord{
		Summary: tdd.Summary{
			RunID:     "0123456789abcdef",
			Request:   "add numbers",
			Language:  "go",
			Status:    tdd.RunStatusCompleted,
			Completed: []string{"add"},
		},
		StartedAt: time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC),
		History: []tdd.HistoryEntry{
			{Seq: 1, State: tdd.StateDecompose, Action: tdd.ActionDecompose},
		},
		ProductionCode: "package sandbox\n",
		ProjectDir:     "/tmp/p",
	}

	var buf bytes.Buffer
	printer := ux.NewPrinterWithLevel(&buf, ux.PersonalityMachine)
	printHistoryList(printer, []report.RunRecord{rec})
	assert.Contains(t, buf.String(), "01234567")
	assert.Contains(t, buf.String(), "add numbers")

	buf.Reset()
	printHistoryList(printer, nil)
	assert.Contains(t, buf.String(), "No runs archived yet.")

	buf.Reset()
	printRunRecord(printer, &rec)
	out := buf.String()
	assert.Contains(t, out, "request=add numbers")
	assert.Contains(t, out, "project=/tmp/p")
	assert.Contains(t, out, "history\t  1 decompose")
	assert.Contains(t, out, "package sandbox")
}

// =============================================================================
// Open Project Tests
// =============================================================================

func TestOpenCommand(t *testing.T) {
	tests := []struct {
		goos string
		want string
	}{
		{"darwin", "open"},
		{"windows", "explorer"},
		{"linux", "xdg-open"},
		{"freebsd", "xdg-open"},
	}
	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			name, args := openCommand(tt.goos, "/tmp/project")
			assert.Equal(t, tt.want, name)
			assert.Equal(t, []string{"/tmp/project"}, args)
		})
	}
}

func TestOpenProjectDir(t *testing.T) {
	orig := startDetached
	defer func() { startDetached = orig }()

	var started []string
	startDetached = func(name string, args ...string) error {
		started = append(append(started, name), args...)
		return nil
	}

	dir := t.TempDir()
	require.NoError(t, openProjectDir(dir))
	require.Len(t, started, 2)
	assert.Equal(t, dir, started[1])

	started = nil
	assert.Error(t, openProjectDir(""))
	assert.Error(t, openProjectDir(filepath.Join(dir, "missing")))
	assert.Empty(t, started)

	startDetached = func(string, ...string) error { return exec.ErrNotFound }
	assert.ErrorIs(t, openProjectDir(dir), exec.ErrNotFound)
}

// =============================================================================
// Metrics and Tracing Tests
// =============================================================================

func TestMetricsRouter(t *testing.T) {
	router := newMetricsRouter()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestStartMetricsServer(t *testing.T) {
	srv, err := startMetricsServer("127.0.0.1:0", slog.Default())
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, srv.Shutdown(ctx))
}

func TestStartMetricsServer_BadAddress(t *testing.T) {
	_, err := startMetricsServer("256.0.0.1:bad", slog.Default())
	assert.Error(t, err)
}

func restoreGlobalProviders(t *testing.T) {
	t.Cleanup(func() {
		otel.SetTracerProvider(tracenoop.NewTracerProvider())
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
	})
}

func TestInitTelemetry_Stdout(t *testing.T) {
	restoreGlobalProviders(t)

	var buf bytes.Buffer
	shutdown, err := initTelemetry(telemetryOptions{Stdout: &buf})
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "tdd.run")
	span.End()
	counter, err := otel.Meter("test").Int64Counter("stdout_check_total")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)
	require.NoError(t, shutdown(context.Background()))

	assert.Contains(t, buf.String(), "tdd.run")
	assert.Contains(t, buf.String(), "agentsmith")
	assert.Contains(t, buf.String(), "stdout_check_total")
}

func TestInitTelemetry_Prometheus(t *testing.T) {
	restoreGlobalProviders(t)

	shutdown, err := initTelemetry(telemetryOptions{Prometheus: true})
	require.NoError(t, err)
	defer shutdown(context.Background())

	counter, err := otel.Meter("test").Int64Counter("prometheus_check_total")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	w := httptest.NewRecorder()
	newMetricsRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), "prometheus_check_total")
}

func TestInitTelemetry_Nothing(t *testing.T) {
	shutdown, err := initTelemetry(telemetryOptions{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

// =============================================================================
// Pipeline Tests
// =============================================================================

// scriptedLLM answers by prompt kind.
type scriptedLLM struct{}

func (scriptedLLM) Generate(_ context.Context, prompt string, _ llm.GenerationParams) (string, error) {
	switch {
	case strings.Contains(prompt, "Decompose the request"):
		return `["add two integers"]`, nil
	case strings.Contains(prompt, "Write a FAILING"):
		return "```go\npackage sandbox\n\nimport \"testing\"\n\nfunc TestAdd(t *testing.T) {\n\tif Add(2, 3) != 5 {\n\t\tt.Fatal(\"Add(2, 3) != 5\")\n\t}\n}\n```", nil
	default:
		return "```go\npackage sandbox\n\nfunc Add(a, b int) int {\n\treturn a + b\n}\n```", nil
	}
}

func TestPipelineRun_EndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("runs the go toolchain")
	}
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go toolchain not available")
	}

	executor, err := sandbox.New(sandbox.Config{Language: "go"}, slog.Default())
	require.NoError(t, err)
	archive, err := report.OpenInMemoryArchive(slog.Default())
	require.NoError(t, err)
	defer archive.Close()

	cfg := config.DefaultConfig()
	cfg.Output.ProjectsDir = t.TempDir()
	cfg.Run.TestTimeout = 2 * time.Minute
	p := &pipeline{
		cfg:      &cfg,
		synth:    synth.New(scriptedLLM{}, synth.DefaultConfig(), slog.Default()),
		executor: executor,
		safety:   gate.NewSafetyValidator("go"),
		iface:    gate.NewInterfaceValidator("go"),
		archive:  archive,
		logger:   slog.Default(),
	}

	s, dir, err := p.run(context.Background(), "add two numbers")
	require.NoError(t, err)

	assert.Equal(t, tdd.RunStatusCompleted, s.Status)
	assert.Equal(t, []string{"add two integers"}, s.Completed)
	assert.Equal(t, sandbox.VerdictPass, s.FinalVerdict())
	require.NotEmpty(t, dir)

	code, err := os.ReadFile(filepath.Join(dir, "production.go"))
	require.NoError(t, err)
	assert.Contains(t, string(code), "func Add(a, b int) int")

	rec, err := archive.Get(s.RunID)
	require.NoError(t, err)
	assert.Equal(t, dir, rec.ProjectDir)
}
