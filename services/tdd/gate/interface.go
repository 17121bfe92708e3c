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
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/python"
)

// =============================================================================
// INTERFACE VALIDATOR
// =============================================================================

// InterfaceValidator checks that a candidate keeps the public surface of the
// accepted code: the set of top-level public function and type names must be
// identical.
//
// For Go, exported functions, exported types and exported methods (reported
// as "Recv.Method") form the surface. For Python, module-level functions and
// classes (decorated or not) whose name does not start with "_" form it.
//
// Thread Safety: Safe for concurrent use. A parser is created per call.
type InterfaceValidator struct {
	language string
}

// NewInterfaceValidator creates a validator for the given language.
func NewInterfaceValidator(language string) *InterfaceValidator {
	return &InterfaceValidator{language: language}
}

// Evaluate compares the public surface of old and candidate.
//
// Description:
//
//	An empty old text always accepts, since there is no surface to keep.
//	Otherwise both texts are parsed; a parse error in either rejects.
//
// Inputs:
//
//	ctx - Context for parser cancellation
//	old - Currently accepted production code
//	candidate - Proposed replacement
//
// Outputs:
//
//	Decision - Accepted iff both symbol sets are equal
func (v *InterfaceValidator) Evaluate(ctx context.Context, old, candidate string) Decision {
	if strings.TrimSpace(old) == "" {
		return accept()
	}

	oldSyms, err := PublicSymbols(ctx, v.language, old)
	if err != nil {
		return reject(ErrParseFailed, fmt.Sprintf("accepted code: %v", err))
	}
	newSyms, err := PublicSymbols(ctx, v.language, candidate)
	if err != nil {
		return reject(ErrParseFailed, fmt.Sprintf("candidate: %v", err))
	}

	added, removed := diffSets(oldSyms, newSyms)
	if len(added) == 0 && len(removed) == 0 {
		return accept()
	}

	var parts []string
	if len(removed) > 0 {
		parts = append(parts, "removed "+strings.Join(removed, ", "))
	}
	if len(added) > 0 {
		parts = append(parts, "added "+strings.Join(added, ", "))
	}
	return reject(ErrInterfaceChanged, "public interface changed: "+strings.Join(parts, "; "))
}

// PublicSymbols parses source and returns its public top-level names.
//
// Outputs:
//
//	map[string]struct{} - Set of public names
//	error - ErrParseFailed on syntax errors, ErrUnsupportedLanguage otherwise
func PublicSymbols(ctx context.Context, language, source string) (map[string]struct{}, error) {
	lang := grammarFor(language)
	if lang == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, language)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(lang)

	content := []byte(source)
	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, fmt.Errorf("%w: syntax error", ErrParseFailed)
	}

	syms := make(map[string]struct{})
	switch language {
	case "go":
		collectGoSymbols(root, content, syms)
	case "python":
		collectPythonSymbols(root, content, syms)
	}
	return syms, nil
}

func grammarFor(language string) *sitter.Language {
	switch language {
	case "go":
		return golang.GetLanguage()
	case "python":
		return python.GetLanguage()
	default:
		return nil
	}
}

// =============================================================================
// GO
// =============================================================================

func collectGoSymbols(root *sitter.Node, content []byte, out map[string]struct{}) {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		switch child.Type() {
		case "function_declaration":
			if name := fieldText(child, "name", content); isGoExported(name) {
				out[name] = struct{}{}
			}
		case "method_declaration":
			name := fieldText(child, "name", content)
			recv := receiverType(fieldText(child, "receiver", content))
			if isGoExported(name) && isGoExported(recv) {
				out[recv+"."+name] = struct{}{}
			}
		case "type_declaration":
			for j := 0; j < int(child.NamedChildCount()); j++ {
				spec := child.NamedChild(j)
				if spec.Type() != "type_spec" && spec.Type() != "type_alias" {
					continue
				}
				if name := fieldText(spec, "name", content); isGoExported(name) {
					out[name] = struct{}{}
				}
			}
		}
	}
}

// receiverType reduces "(s *Stack[T])" to "Stack".
func receiverType(receiver string) string {
	receiver = strings.TrimSpace(receiver)
	receiver = strings.TrimPrefix(receiver, "(")
	receiver = strings.TrimSuffix(receiver, ")")
	parts := strings.Fields(receiver)
	if len(parts) == 0 {
		return ""
	}
	typ := strings.TrimPrefix(parts[len(parts)-1], "*")
	if idx := strings.IndexByte(typ, '['); idx >= 0 {
		typ = typ[:idx]
	}
	return typ
}

func isGoExported(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return r != utf8.RuneError && unicode.IsUpper(r)
}

// =============================================================================
// PYTHON
// =============================================================================

func collectPythonSymbols(root *sitter.Node, content []byte, out map[string]struct{}) {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child.Type() == "decorated_definition" {
			if def := child.ChildByFieldName("definition"); def != nil {
				child = def
			}
		}
		switch child.Type() {
		case "function_definition", "class_definition":
			name := fieldText(child, "name", content)
			if name != "" && !strings.HasPrefix(name, "_") {
				out[name] = struct{}{}
			}
		}
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func fieldText(node *sitter.Node, field string, content []byte) string {
	child := node.ChildByFieldName(field)
	if child == nil {
		return ""
	}
	return child.Content(content)
}

// diffSets returns the sorted names only in b (added) and only in a (removed).
func diffSets(a, b map[string]struct{}) (added, removed []string) {
	for name := range b {
		if _, ok := a[name]; !ok {
			added = append(added, name)
		}
	}
	for name := range a {
		if _, ok := b[name]; !ok {
			removed = append(removed, name)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}
