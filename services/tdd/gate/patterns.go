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

import "regexp"

// Category groups denylist entries by the capability they guard.
type Category string

const (
	CategoryProcess     Category = "process_invocation"
	CategoryDynamicEval Category = "dynamic_evaluation"
	CategoryImport      Category = "dynamic_import"
	CategoryFilesystem  Category = "filesystem_open"
	CategoryExit        Category = "interpreter_exit"
)

// DeniedPattern is a single denylist entry.
type DeniedPattern struct {
	// Name is the pattern identifier reported in rejections.
	Name string

	// Language is the language this pattern applies to ("" for all).
	Language string

	// Category is the capability the pattern guards.
	Category Category

	// Expr matches the raw candidate text.
	Expr *regexp.Regexp
}

// PythonPatterns returns the denylist for Python candidates.
func PythonPatterns() []DeniedPattern {
	return []DeniedPattern{
		{Name: "__import__", Language: "python", Category: CategoryImport, Expr: regexp.MustCompile(`__import__\s*\(`)},
		{Name: "importlib", Language: "python", Category: CategoryImport, Expr: regexp.MustCompile(`importlib\.`)},
		{Name: "subprocess", Language: "python", Category: CategoryProcess, Expr: regexp.MustCompile(`subprocess\.`)},
		{Name: "os.system", Language: "python", Category: CategoryProcess, Expr: regexp.MustCompile(`os\.system\(`)},
		{Name: "os.popen", Language: "python", Category: CategoryProcess, Expr: regexp.MustCompile(`os\.(popen|exec[lv]p?e?|spawn[lv]p?e?)\(`)},
		{Name: "eval", Language: "python", Category: CategoryDynamicEval, Expr: regexp.MustCompile(`eval\(`)},
		{Name: "exec", Language: "python", Category: CategoryDynamicEval, Expr: regexp.MustCompile(`exec\(`)},
		{Name: "open", Language: "python", Category: CategoryFilesystem, Expr: regexp.MustCompile(`open\(`)},
		{Name: "shutil", Language: "python", Category: CategoryFilesystem, Expr: regexp.MustCompile(`shutil\.`)},
		{Name: "sys.exit", Language: "python", Category: CategoryExit, Expr: regexp.MustCompile(`sys\.exit`)},
		{Name: "os._exit", Language: "python", Category: CategoryExit, Expr: regexp.MustCompile(`os\._exit\(`)},
	}
}

// GoPatterns returns the denylist for Go candidates.
func GoPatterns() []DeniedPattern {
	return []DeniedPattern{
		{Name: "os/exec", Language: "go", Category: CategoryProcess, Expr: regexp.MustCompile(`"os/exec"`)},
		{Name: "os.StartProcess", Language: "go", Category: CategoryProcess, Expr: regexp.MustCompile(`os\.StartProcess\(`)},
		{Name: "syscall", Language: "go", Category: CategoryProcess, Expr: regexp.MustCompile(`"syscall"|"golang\.org/x/sys/`)},
		{Name: "plugin", Language: "go", Category: CategoryImport, Expr: regexp.MustCompile(`"plugin"`)},
		{Name: "unsafe", Language: "go", Category: CategoryDynamicEval, Expr: regexp.MustCompile(`"unsafe"`)},
		{Name: "go:linkname", Language: "go", Category: CategoryDynamicEval, Expr: regexp.MustCompile(`//go:linkname`)},
		{Name: "yaegi", Language: "go", Category: CategoryDynamicEval, Expr: regexp.MustCompile(`github\.com/traefik/yaegi`)},
		{Name: "os.open", Language: "go", Category: CategoryFilesystem, Expr: regexp.MustCompile(`os\.(Open|OpenFile|Create|ReadFile|WriteFile|Remove|RemoveAll|Rename|Mkdir|MkdirAll|ReadDir)\(`)},
		{Name: "ioutil", Language: "go", Category: CategoryFilesystem, Expr: regexp.MustCompile(`"io/ioutil"`)},
		{Name: "os.Exit", Language: "go", Category: CategoryExit, Expr: regexp.MustCompile(`os\.Exit\(`)},
		{Name: "log.Fatal", Language: "go", Category: CategoryExit, Expr: regexp.MustCompile(`log\.Fatal(f|ln)?\(`)},
		{Name: "runtime.Goexit", Language: "go", Category: CategoryExit, Expr: regexp.MustCompile(`runtime\.Goexit\(`)},
	}
}

// PatternsFor returns the denylist for a language. Unknown languages get
// the union of every table.
func PatternsFor(language string) []DeniedPattern {
	switch language {
	case "python":
		return PythonPatterns()
	case "go":
		return GoPatterns()
	default:
		return append(PythonPatterns(), GoPatterns()...)
	}
}
