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
	"bufio"
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

// =============================================================================
// GO (go test -json)
// =============================================================================

// testEvent is one line of `go test -json` output.
type testEvent struct {
	Action  string `json:"Action"`
	Package string `json:"Package"`
	Test    string `json:"Test"`
	Output  string `json:"Output"`
}

// ClassifyGoJSON classifies `go test -json` output.
//
// Description:
//
//	Events are read line by line; lines that are not JSON (build errors
//	printed by older toolchains) are kept as output. A run is PASS only if
//	it exited 0, no fail event was seen and at least one test passed. Exit
//	code 1 is the go command's test-or-build failure status and maps to
//	FAIL. Any other exit code without fail events is ERROR.
//
// Outputs:
//
//	Verdict - PASS, FAIL or ERROR
//	[]string - Failed test names
//	string - Reconstructed plain-text output
func ClassifyGoJSON(exitCode int, output []byte) (Verdict, []string, string) {
	var (
		text     strings.Builder
		failed   []string
		passes   int
		failures int
	)

	scanner := bufio.NewScanner(bytes.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		var ev testEvent
		if len(line) == 0 || line[0] != '{' || json.Unmarshal(line, &ev) != nil {
			text.Write(line)
			text.WriteByte('\n')
			continue
		}
		text.WriteString(ev.Output)
		switch ev.Action {
		case "pass":
			if ev.Test != "" {
				passes++
			}
		case "fail":
			failures++
			if ev.Test != "" {
				failed = append(failed, ev.Test)
			}
		}
	}

	switch {
	case exitCode == 0 && failures == 0 && passes > 0:
		return VerdictPass, nil, text.String()
	case exitCode == 0 && failures == 0:
		return VerdictFail, nil, text.String() + "\nno tests ran\n"
	case failures > 0 || exitCode == 1:
		return VerdictFail, failed, text.String()
	default:
		return VerdictError, nil, text.String()
	}
}

// =============================================================================
// PYTEST
// =============================================================================

var pytestFailedPattern = regexp.MustCompile(`(?m)^(?:FAILED|ERROR) (\S+)`)

// pytestRan matches output only pytest itself prints: the session header, the
// short summary, a per-test result line or the final counts.
var pytestRan = regexp.MustCompile(`(?m)(^=+ test session starts|short test summary info|^(?:FAILED|ERROR) \S|\b\d+ (?:passed|failed|errors?|skipped)\b|\bno tests ran\b)`)

// ClassifyPytest classifies pytest by its documented exit codes.
//
// Exit codes: 0 all passed; 1 tests failed; 2 interrupted, which includes
// collection errors such as a syntax error in production code; 3 internal
// error; 4 usage error; 5 no tests collected. 1, 2 and 5 are FAIL since the
// next implementation can fix them; 3, 4 and anything else are ERROR. Exit
// 1, 2 or 5 without any pytest report is also ERROR.
func ClassifyPytest(exitCode int, output []byte) (Verdict, []string, string) {
	text := string(output)
	var failed []string
	for _, m := range pytestFailedPattern.FindAllStringSubmatch(text, -1) {
		failed = append(failed, m[1])
	}

	switch exitCode {
	case 0:
		return VerdictPass, nil, text
	case 1, 2, 5:
		if !pytestRan.MatchString(text) {
			// The interpreter failed before pytest reported anything, e.g.
			// "No module named pytest".
			return VerdictError, failed, text
		}
		return VerdictFail, failed, text
	default:
		return VerdictError, failed, text
	}
}

// =============================================================================
// MARKERS (fallback)
// =============================================================================

var failureMarker = regexp.MustCompile(`(?i)\b(fail(ed|ure|ures)?|error(s)?)\b`)

// ClassifyMarkers is the fallback for runners with no structured contract:
// PASS only on exit 0 with no failure or error markers in the output.
func ClassifyMarkers(exitCode int, output []byte) (Verdict, []string, string) {
	if exitCode == 0 && !failureMarker.Match(output) {
		return VerdictPass, nil, string(output)
	}
	return VerdictFail, nil, string(output)
}
