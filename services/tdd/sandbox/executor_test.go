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
	"context"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shellExecutor builds an executor whose "test runner" is a shell script.
func shellExecutor(t *testing.T, script string) (*Executor, string) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	reg := &Registry{configs: map[string]*LanguageConfig{}}
	reg.Register(&LanguageConfig{
		Language:       "shell",
		Command:        "sh",
		Args:           []string{"-c", script},
		ProductionFile: "prod.txt",
		TestFile:       "tests.txt",
	})

	root := t.TempDir()
	e, err := New(Config{Language: "shell", Registry: reg, TempRoot: root, WaitDelay: 500 * time.Millisecond}, nil)
	require.NoError(t, err)
	return e, root
}

func TestExecutor_Pass(t *testing.T) {
	e, _ := shellExecutor(t, "cat prod.txt tests.txt; exit 0")

	r, err := e.Run(context.Background(), "def add", "assert add works", 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, VerdictPass, r.Verdict)
	assert.Contains(t, r.Output, "def add")
	assert.Contains(t, r.Output, "assert add works")
	assert.Equal(t, 0, r.ExitCode)
}

func TestExecutor_Fail(t *testing.T) {
	e, _ := shellExecutor(t, "echo 'test_add FAILED'; exit 1")

	r, err := e.Run(context.Background(), "", "t", 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, VerdictFail, r.Verdict)
	assert.Equal(t, 1, r.ExitCode)
}

func TestExecutor_MarkersFailOnCleanExit(t *testing.T) {
	e, _ := shellExecutor(t, "echo '1 failed, 0 passed'; exit 0")

	r, err := e.Run(context.Background(), "", "t", 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, VerdictFail, r.Verdict)
}

func TestExecutor_TimeoutKillsProcessGroup(t *testing.T) {
	e, _ := shellExecutor(t, "sleep 30 & sleep 30")

	start := time.Now()
	r, err := e.Run(context.Background(), "", "t", 200*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, VerdictTimeout, r.Verdict)
	assert.Equal(t, -1, r.ExitCode)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestKilledByDeadline(t *testing.T) {
	killed := &exec.ExitError{}
	tests := []struct {
		name      string
		runErr    error
		runCtxErr error
		parentErr error
		want      bool
	}{
		{"killed at deadline", killed, context.DeadlineExceeded, nil, true},
		{"clean exit after deadline", nil, context.DeadlineExceeded, nil, false},
		{"failed before deadline", killed, nil, nil, false},
		{"parent cancelled", killed, context.Canceled, context.Canceled, false},
		{"parent deadline", killed, context.DeadlineExceeded, context.DeadlineExceeded, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, killedByDeadline(tt.runErr, tt.runCtxErr, tt.parentErr))
		})
	}
}

func TestExecutor_StartFailureIsError(t *testing.T) {
	reg := &Registry{configs: map[string]*LanguageConfig{}}
	reg.Register(&LanguageConfig{
		Language:       "ghost",
		Command:        "agentsmith-no-such-runner",
		ProductionFile: "p",
		TestFile:       "t",
	})
	e, err := New(Config{Language: "ghost", Registry: reg, TempRoot: t.TempDir()}, nil)
	require.NoError(t, err)

	r, err := e.Run(context.Background(), "x", "y", time.Second)
	require.NoError(t, err)
	assert.Equal(t, VerdictError, r.Verdict)
	assert.Contains(t, r.Reason, "command execution failed")
}

func TestExecutor_EmptyTestsIsError(t *testing.T) {
	e, _ := shellExecutor(t, "exit 0")

	r, err := e.Run(context.Background(), "code", "   \n", time.Second)
	require.NoError(t, err)
	assert.Equal(t, VerdictError, r.Verdict)
	assert.Equal(t, ErrNoTests.Error(), r.Reason)
}

func TestExecutor_WorkspaceRemoved(t *testing.T) {
	e, root := shellExecutor(t, "exit 1")

	for i := 0; i < 3; i++ {
		_, err := e.Run(context.Background(), "p", "t", 5*time.Second)
		require.NoError(t, err)
	}
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExecutor_FreshWorkspacePerCall(t *testing.T) {
	// The script fails if a marker from a previous run survives.
	e, _ := shellExecutor(t, "test -f leftover && exit 1; touch leftover; exit 0")

	for i := 0; i < 2; i++ {
		r, err := e.Run(context.Background(), "p", "t", 5*time.Second)
		require.NoError(t, err)
		assert.Equal(t, VerdictPass, r.Verdict, "run %d", i)
	}
}

func TestExecutor_CancelledContext(t *testing.T) {
	e, _ := shellExecutor(t, "sleep 30")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	r, err := e.Run(ctx, "", "t", 30*time.Second)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, r)
	assert.Equal(t, VerdictError, r.Verdict)
}

func TestExecutor_OutputCapped(t *testing.T) {
	e, _ := shellExecutor(t, "i=0; while [ $i -lt 5000 ]; do echo 'line line line line'; i=$((i+1)); done")
	e.maxOutput = 1024

	r, err := e.Run(context.Background(), "", "t", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, r.Truncated)
	assert.LessOrEqual(t, len(r.Output), 1024)
}

func TestNew_UnsupportedLanguage(t *testing.T) {
	_, err := New(Config{Language: "cobol"}, nil)
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
}

func TestExecutor_NilContext(t *testing.T) {
	e, err := New(DefaultConfig(), nil)
	require.NoError(t, err)

	//nolint:staticcheck // exercising the nil guard
	r, err := e.Run(nil, "", "t", time.Second)
	assert.ErrorIs(t, err, ErrNilContext)
	assert.Equal(t, VerdictError, r.Verdict)
}

// =============================================================================
// REAL TOOLCHAINS
// =============================================================================

func TestExecutor_GoToolchain(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping toolchain test in short mode")
	}
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go not available")
	}

	e, err := New(Config{Language: "go", TempRoot: t.TempDir()}, nil)
	require.NoError(t, err)

	prod := "package whatever\n\nfunc Add(a, b int) int { return a + b }\n"
	tests := "package whatever\n\nimport \"testing\"\n\nfunc TestAdd(t *testing.T) {\n\tif Add(2, 3) != 5 {\n\t\tt.Fatal(\"bad sum\")\n\t}\n}\n"

	r, err := e.Run(context.Background(), prod, tests, 2*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, VerdictPass, r.Verdict, r.Output)

	broken := strings.Replace(prod, "a + b", "a - b", 1)
	r, err = e.Run(context.Background(), broken, tests, 2*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, VerdictFail, r.Verdict, r.Output)
	assert.Contains(t, r.FailedTests, "TestAdd")
}

func TestExecutor_PythonToolchain(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping toolchain test in short mode")
	}
	if err := exec.Command("python3", "-c", "import pytest").Run(); err != nil {
		t.Skip("pytest not available")
	}

	e, err := New(Config{Language: "python", TempRoot: t.TempDir()}, nil)
	require.NoError(t, err)

	prod := "def add(a, b):\n    return a + b\n"
	tests := "def test_add():\n    assert add(2, 3) == 5\n"

	r, err := e.Run(context.Background(), prod, tests, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, VerdictPass, r.Verdict, r.Output)

	r, err = e.Run(context.Background(), "def add(a, b):\n    return a - b\n", tests, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, VerdictFail, r.Verdict, r.Output)
}
