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
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/mod/modfile"
)

// ModulePath is the module path of the Go sandbox workspace.
const ModulePath = "sandbox"

// goVersion is written to the sandbox go.mod.
const goVersion = "1.22"

// PythonPrelude is prepended to the Python test file so tests can reach the
// production module by star import.
const PythonPrelude = "import re\nimport sys\nsys.path.insert(0, '.')\nfrom production import *\n\n"

var packageClause = regexp.MustCompile(`(?m)^package[ \t]+(\w+)`)

// =============================================================================
// GO
// =============================================================================

func layoutGo(dir, production, tests string) error {
	mod, err := goModFile()
	if err != nil {
		return fmt.Errorf("generate go.mod: %w", err)
	}
	if err := writeFile(dir, "go.mod", mod); err != nil {
		return err
	}

	if strings.TrimSpace(production) != "" {
		if err := writeFile(dir, "production.go", []byte(normalizePackage(production))); err != nil {
			return err
		}
	}

	for i, block := range SplitGoFiles(tests) {
		name := fmt.Sprintf("production_%d_test.go", i+1)
		if err := writeFile(dir, name, []byte(normalizePackage(block))); err != nil {
			return err
		}
	}
	return nil
}

func goModFile() ([]byte, error) {
	f := new(modfile.File)
	if err := f.AddModuleStmt(ModulePath); err != nil {
		return nil, err
	}
	if err := f.AddGoStmt(goVersion); err != nil {
		return nil, err
	}
	return f.Format()
}

// SplitGoFiles splits accumulated Go test text into one source per package
// clause. Text before the first clause stays with the first file.
func SplitGoFiles(text string) []string {
	locs := packageClause.FindAllStringIndex(text, -1)
	if len(locs) <= 1 {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []string{text}
	}

	files := make([]string, 0, len(locs))
	for i := range locs {
		start := locs[i][0]
		if i == 0 {
			start = 0
		}
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		files = append(files, text[start:end])
	}
	return files
}

// EnsurePackageClause prefixes a Go source block with the sandbox package
// clause when it has none, so SplitGoFiles keeps it a file of its own.
func EnsurePackageClause(block string) string {
	if packageClause.MatchString(block) {
		return block
	}
	return "package " + ModulePath + "\n\n" + block
}

// normalizePackage forces the package clause to the sandbox package, keeping
// external test packages external.
func normalizePackage(src string) string {
	m := packageClause.FindStringSubmatchIndex(src)
	if m == nil {
		return "package " + ModulePath + "\n\n" + src
	}
	name := src[m[2]:m[3]]
	want := ModulePath
	if strings.HasSuffix(name, "_test") {
		want = ModulePath + "_test"
	}
	return src[:m[0]] + "package " + want + src[m[1]:]
}

// =============================================================================
// PYTHON
// =============================================================================

func layoutPython(dir, production, tests string) error {
	if err := writeFile(dir, "production.py", []byte(production)); err != nil {
		return err
	}
	return writeFile(dir, "test_production.py", []byte(PythonPrelude+tests))
}

// =============================================================================
// GENERIC
// =============================================================================

func layoutPlain(cfg *LanguageConfig) LayoutFunc {
	return func(dir, production, tests string) error {
		if err := writeFile(dir, cfg.ProductionFile, []byte(production)); err != nil {
			return err
		}
		return writeFile(dir, cfg.TestFile, []byte(tests))
	}
}

func writeFile(dir, name string, data []byte) error {
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
