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
	"fmt"
	"strings"
)

// =============================================================================
// SAFETY VALIDATOR
// =============================================================================

// SafetyValidator rejects candidates that reference denylisted capabilities.
//
// Matching is textual over the raw candidate, so a forbidden call inside a
// string literal or comment is also rejected. False positives are preferred
// over false negatives.
//
// Thread Safety: Safe for concurrent use. The pattern table is read-only.
type SafetyValidator struct {
	language string
	patterns []DeniedPattern
}

// NewSafetyValidator creates a validator for the given language.
//
// Inputs:
//
//	language - Language key ("go", "python"); unknown keys use every table
//
// Outputs:
//
//	*SafetyValidator - Ready to use validator
func NewSafetyValidator(language string) *SafetyValidator {
	return &SafetyValidator{
		language: language,
		patterns: PatternsFor(language),
	}
}

// Evaluate checks a candidate against the denylist.
//
// Inputs:
//
//	candidate - Raw candidate code
//
// Outputs:
//
//	Decision - Accepted unless the candidate is empty or matches a pattern
func (v *SafetyValidator) Evaluate(candidate string) Decision {
	if strings.TrimSpace(candidate) == "" {
		return reject(ErrEmptyCandidate, "candidate contains no code")
	}
	for _, p := range v.patterns {
		if loc := p.Expr.FindStringIndex(candidate); loc != nil {
			d := reject(ErrUnsafePattern,
				fmt.Sprintf("forbidden %s pattern %q at offset %d", p.Category, p.Name, loc[0]))
			d.Pattern = p.Name
			return d
		}
	}
	return accept()
}

// Language returns the language this validator was built for.
func (v *SafetyValidator) Language() string {
	return v.language
}
