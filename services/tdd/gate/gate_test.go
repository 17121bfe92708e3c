// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package gate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pyCalc = `import re

def add(a, b):
    return a + b

def _helper(x):
    return x

class Calculator:
    def mul(self, a, b):
        return a * b
`

const goCalc = `package sandbox

type Calculator struct{}

func (c *Calculator) Mul(a, b int) int { return a * b }

func Add(a, b int) int { return a + b }

func helper() {}
`

// =============================================================================
// SAFETY
// =============================================================================

func TestSafetyValidator_RejectsDenylistedPatterns(t *testing.T) {
	tests := []struct {
		name     string
		language string
		code     string
		pattern  string
	}{
		{"python subprocess", "python", "import subprocess\nsubprocess.run(['ls'])", "subprocess"},
		{"python os.system", "python", "import os\nos.system('rm -rf /')", "os.system"},
		{"python eval", "python", "def f(x):\n    return eval(x)", "eval"},
		{"python exec", "python", "exec('print(1)')", "exec"},
		{"python open", "python", "with open('x') as f:\n    pass", "open"},
		{"python dynamic import", "python", "m = __import__ ('os')", "__import__"},
		{"python shutil", "python", "shutil.rmtree('/')", "shutil"},
		{"python sys.exit", "python", "import sys\nsys.exit(1)", "sys.exit"},
		{"python in string literal", "python", "MSG = 'never call os.system(x)'", "os.system"},
		{"go os/exec", "go", "package p\nimport \"os/exec\"\nfunc F() { exec.Command(\"ls\").Run() }", "os/exec"},
		{"go os.Open", "go", "package p\nimport \"os\"\nfunc F() { os.Open(\"x\") }", "os.open"},
		{"go os.Exit", "go", "package p\nimport \"os\"\nfunc F() { os.Exit(1) }", "os.Exit"},
		{"go plugin", "go", "package p\nimport \"plugin\"", "plugin"},
		{"go log.Fatalf", "go", "package p\nimport \"log\"\nfunc F() { log.Fatalf(\"x\") }", "log.Fatal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewSafetyValidator(tt.language).Evaluate(tt.code)
			assert.False(t, d.Accepted)
			assert.Equal(t, tt.pattern, d.Pattern)
			assert.True(t, errors.Is(d.Err, ErrUnsafePattern))
			assert.NotEmpty(t, d.Reason)
		})
	}
}

func TestSafetyValidator_RejectsRegardlessOfSurroundingCode(t *testing.T) {
	v := NewSafetyValidator("python")
	clean := NewSafetyValidator("python").Evaluate(pyCalc)
	require.True(t, clean.Accepted)

	d := v.Evaluate(pyCalc + "\nx = eval('1+1')\n" + pyCalc)
	assert.False(t, d.Accepted)
	assert.Equal(t, "eval", d.Pattern)
}

func TestSafetyValidator_AcceptsCleanCode(t *testing.T) {
	assert.True(t, NewSafetyValidator("python").Evaluate(pyCalc).Accepted)
	assert.True(t, NewSafetyValidator("go").Evaluate(goCalc).Accepted)
}

func TestSafetyValidator_RejectsEmpty(t *testing.T) {
	d := NewSafetyValidator("go").Evaluate("  \n\t")
	assert.False(t, d.Accepted)
	assert.ErrorIs(t, d.Err, ErrEmptyCandidate)
}

func TestSafetyValidator_UnknownLanguageUsesAllTables(t *testing.T) {
	v := NewSafetyValidator("ruby")
	assert.False(t, v.Evaluate("subprocess.call('x')").Accepted)
	assert.False(t, v.Evaluate(`import "os/exec"`).Accepted)
	assert.Equal(t, "ruby", v.Language())
}

// =============================================================================
// INTERFACE
// =============================================================================

func TestInterfaceValidator_Reflexive(t *testing.T) {
	ctx := context.Background()
	assert.True(t, NewInterfaceValidator("python").Evaluate(ctx, pyCalc, pyCalc).Accepted)
	assert.True(t, NewInterfaceValidator("go").Evaluate(ctx, goCalc, goCalc).Accepted)
}

func TestInterfaceValidator_EmptyOldAlwaysAccepts(t *testing.T) {
	ctx := context.Background()
	for _, candidate := range []string{pyCalc, "def broken(:", ""} {
		d := NewInterfaceValidator("python").Evaluate(ctx, "", candidate)
		assert.True(t, d.Accepted, "candidate %q", candidate)
	}
}

func TestInterfaceValidator_RenameRejects(t *testing.T) {
	ctx := context.Background()

	py := NewInterfaceValidator("python").Evaluate(ctx, pyCalc,
		"def plus(a, b):\n    return a + b\n\nclass Calculator:\n    pass\n")
	assert.False(t, py.Accepted)
	assert.ErrorIs(t, py.Err, ErrInterfaceChanged)
	assert.Contains(t, py.Reason, "removed add")
	assert.Contains(t, py.Reason, "added plus")

	goCandidate := `package sandbox

type Calculator struct{}

func (c *Calculator) Times(a, b int) int { return a * b }

func Add(a, b int) int { return a + b }
`
	g := NewInterfaceValidator("go").Evaluate(ctx, goCalc, goCandidate)
	assert.False(t, g.Accepted)
	assert.Contains(t, g.Reason, "Calculator.Mul")
	assert.Contains(t, g.Reason, "Calculator.Times")
}

func TestInterfaceValidator_PrivateChangesAccepted(t *testing.T) {
	ctx := context.Background()

	py := pyCalc + "\ndef _another(y):\n    return y\n"
	assert.True(t, NewInterfaceValidator("python").Evaluate(ctx, pyCalc, py).Accepted)

	g := goCalc + "\nfunc another() int { return 1 }\n"
	assert.True(t, NewInterfaceValidator("go").Evaluate(ctx, goCalc, g).Accepted)
}

func TestInterfaceValidator_ParseErrorRejects(t *testing.T) {
	ctx := context.Background()

	d := NewInterfaceValidator("python").Evaluate(ctx, pyCalc, "def add(a, b:\n    return a +\n")
	assert.False(t, d.Accepted)
	assert.ErrorIs(t, d.Err, ErrParseFailed)

	g := NewInterfaceValidator("go").Evaluate(ctx, goCalc, "package sandbox\nfunc Add(a, b int int {")
	assert.False(t, g.Accepted)
	assert.ErrorIs(t, g.Err, ErrParseFailed)
}

func TestPublicSymbols(t *testing.T) {
	ctx := context.Background()

	py, err := PublicSymbols(ctx, "python", pyCalc+"\n@staticmethod\ndef decorated():\n    pass\n")
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"add": {}, "Calculator": {}, "decorated": {}}, py)

	g, err := PublicSymbols(ctx, "go", goCalc)
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"Add": {}, "Calculator": {}, "Calculator.Mul": {}}, g)

	_, err = PublicSymbols(ctx, "cobol", "x")
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
}

func TestReceiverType(t *testing.T) {
	tests := map[string]string{
		"(s *Stack[T])": "Stack",
		"(h Handler)":   "Handler",
		"(*Queue)":      "Queue",
		"()":            "",
	}
	for in, want := range tests {
		assert.Equal(t, want, receiverType(in), in)
	}
}
