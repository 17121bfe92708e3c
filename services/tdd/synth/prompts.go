// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package synth

import (
	"fmt"
	"strings"
)

// maxFeedbackChars bounds the test output quoted back to the model.
const maxFeedbackChars = 1000

// SystemPrompt is sent with every request.
const SystemPrompt = "You are a senior software engineer practicing strict test-driven development. " +
	"Reply with code in a single fenced block unless asked for JSON."

// BuildPrompt renders the prompt for a request.
//
// Outputs:
//
//	string - The prompt text
//	error - ErrUnknownKind for unsupported kinds
func BuildPrompt(req Request) (string, error) {
	switch req.Kind {
	case KindDecompose:
		return buildDecomposePrompt(req), nil
	case KindWriteTest:
		return buildWriteTestPrompt(req), nil
	case KindImplementFix:
		return buildImplementFixPrompt(req), nil
	case KindRefactor:
		return buildRefactorPrompt(req), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, req.Kind)
	}
}

func buildDecomposePrompt(req Request) string {
	var sb strings.Builder
	sb.WriteString("User request: ")
	sb.WriteString(req.Goal)
	sb.WriteString("\n\nDecompose the request into minimal testable features:\n")
	sb.WriteString("- One feature per entry\n")
	sb.WriteString("- Ordered so each feature only depends on earlier ones\n")
	sb.WriteString("- Output a JSON array of strings and nothing else\n")
	return sb.String()
}

func buildWriteTestPrompt(req Request) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Write a FAILING %s test for the feature:\n%s\n\n", testFramework(req.Language), req.Feature))
	sb.WriteString("Current production code:\n")
	writeCode(&sb, req.Language, req.ProductionCode)
	sb.WriteString("\nGuidelines:\n")
	sb.WriteString("- Test only what the feature requires\n")
	sb.WriteString("- The test is expected to fail until the feature is implemented\n")
	sb.WriteString(languageNotes(req.Language))
	sb.WriteString("\nTest code:\n")
	return sb.String()
}

func buildImplementFixPrompt(req Request) string {
	var sb strings.Builder
	sb.WriteString("Feature: ")
	sb.WriteString(req.Feature)
	sb.WriteString("\n\nCurrent production code:\n")
	writeCode(&sb, req.Language, req.ProductionCode)
	sb.WriteString("\nTests:\n")
	writeCode(&sb, req.Language, req.TestCode)
	sb.WriteString("\nFailing test output:\n```\n")
	sb.WriteString(truncate(req.TestOutput, maxFeedbackChars))
	sb.WriteString("\n```\n\n")
	sb.WriteString("Implement the MINIMAL change that makes the tests pass:\n")
	sb.WriteString("- Return the complete production file\n")
	sb.WriteString("- Keep existing public functions and types unchanged\n")
	sb.WriteString("- Do not add features the tests do not require\n")
	sb.WriteString(languageNotes(req.Language))
	sb.WriteString("\nCorrected code:\n")
	return sb.String()
}

func buildRefactorPrompt(req Request) string {
	var sb strings.Builder
	sb.WriteString("Refactor the code while keeping its behavior:\n")
	writeCode(&sb, req.Language, req.ProductionCode)
	sb.WriteString("\nGuidelines:\n")
	sb.WriteString("1. Remove duplication and keep it simple\n")
	sb.WriteString("2. Improve readability\n")
	sb.WriteString("3. Do not rename, add or remove public functions or types\n")
	sb.WriteString(languageNotes(req.Language))
	sb.WriteString("\nRefactored code:\n")
	return sb.String()
}

func writeCode(sb *strings.Builder, language, code string) {
	sb.WriteString("```")
	sb.WriteString(language)
	sb.WriteString("\n")
	if strings.TrimSpace(code) == "" {
		sb.WriteString("(empty)\n")
	} else {
		sb.WriteString(code)
		if !strings.HasSuffix(code, "\n") {
			sb.WriteString("\n")
		}
	}
	sb.WriteString("```\n")
}

func testFramework(language string) string {
	switch language {
	case "go":
		return "Go testing"
	case "python":
		return "pytest"
	default:
		return language
	}
}

func languageNotes(language string) string {
	switch language {
	case "go":
		return "- Use package sandbox and only the standard library\n" +
			"- Do not use os/exec, os.Exit, file I/O, unsafe or plugin\n"
	case "python":
		return "- Production code lives in production.py and is star-imported by the tests\n" +
			"- Do not use subprocess, os.system, eval, exec, open, shutil or sys.exit\n"
	default:
		return ""
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
