// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"strings"
	"testing"
)

// =============================================================================
// Icon.Render Tests
// =============================================================================

func TestIcon_Render(t *testing.T) {
	for _, icon := range []Icon{IconSuccess, IconWarning, IconError, IconPending, IconArrow} {
		t.Run(string(icon), func(t *testing.T) {
			if got := icon.Render(); !strings.Contains(got, string(icon)) {
				t.Errorf("Render() = %q, want it to contain %q", got, icon)
			}
		})
	}
}

// =============================================================================
// Printer Tests
// =============================================================================

func TestPrinter_MachineMode(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinterWithLevel(&buf, PersonalityMachine)

	p.Title("hidden title")
	p.Success("done")
	p.Warning("careful")
	p.Error("broken")
	p.Info("plain")
	p.KeyValue("Run ID", "abc")
	p.List("Completed features", IconSuccess, []string{"a", "b"})
	p.Box("Box", "content")

	want := strings.Join([]string{
		"OK: done",
		"WARN: careful",
		"ERROR: broken",
		"plain",
		"run_id=abc",
		"completed_features\ta",
		"completed_features\tb",
		"Box: content",
		"",
	}, "\n")
	if got := buf.String(); got != want {
		t.Errorf("machine output =\n%q\nwant\n%q", got, want)
	}
}

func TestPrinter_MinimalMode(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinterWithLevel(&buf, PersonalityMinimal)

	p.Success("done")

	if !strings.Contains(buf.String(), string(IconSuccess)) || !strings.Contains(buf.String(), "done") {
		t.Errorf("minimal output = %q", buf.String())
	}
}

func TestPrinter_FullMode(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinterWithLevel(&buf, PersonalityFull)

	p.Title("Agent Smith")
	p.KeyValue("Status", "completed")
	p.List("Abandoned", IconError, []string{"hard feature"})
	p.List("Empty", IconError, nil)
	p.Box("Result", "all good")
	p.Code("production.go", "package sandbox\n")

	out := buf.String()
	for _, want := range []string{"Agent Smith", "Status", "completed", "hard feature", "Result", "all good", "package sandbox"} {
		if !strings.Contains(out, want) {
			t.Errorf("full output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Empty") {
		t.Error("empty list should print nothing")
	}
}

func TestPrinter_ErrorBox(t *testing.T) {
	var buf bytes.Buffer
	NewPrinterWithLevel(&buf, PersonalityFull).ErrorBox("Run failed", "transport down")
	if !strings.Contains(buf.String(), "transport down") {
		t.Errorf("ErrorBox output = %q", buf.String())
	}
}

func TestProgressBar(t *testing.T) {
	if got := ProgressBar(3, 10, 20, PersonalityMachine); got != "3/10" {
		t.Errorf("machine ProgressBar = %q", got)
	}
	if got := ProgressBar(1, 0, 20, PersonalityFull); got != "1/0" {
		t.Errorf("zero total ProgressBar = %q", got)
	}
	if got := ProgressBar(5, 10, 10, PersonalityFull); !strings.Contains(got, "50%") {
		t.Errorf("full ProgressBar = %q", got)
	}
	if got := ProgressBar(20, 10, 10, PersonalityFull); !strings.Contains(got, "100%") {
		t.Errorf("overflow ProgressBar = %q", got)
	}
}

// =============================================================================
// Personality Tests
// =============================================================================

func TestParsePersonalityLevel(t *testing.T) {
	tests := map[string]PersonalityLevel{
		"full":    PersonalityFull,
		"MINIMAL": PersonalityMinimal,
		"q":       PersonalityMachine,
		"plain":   PersonalityMachine,
		"other":   PersonalityFull,
	}
	for in, want := range tests {
		if got := ParsePersonalityLevel(in); got != want {
			t.Errorf("ParsePersonalityLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestInitPersonality_Env(t *testing.T) {
	old := GetPersonalityLevel()
	defer SetPersonalityLevel(old)

	t.Setenv("AGENTSMITH_OUTPUT", "minimal")
	InitPersonality()
	if got := GetPersonalityLevel(); got != PersonalityMinimal {
		t.Errorf("level = %v, want minimal", got)
	}
	if NewPrinter(&bytes.Buffer{}).Machine() {
		t.Error("printer should follow the personality level")
	}
}
