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
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/kaptinlin/jsonschema"
)

// featureListSchema is the contract of a decompose reply.
const featureListSchema = `{
  "type": "array",
  "minItems": 1,
  "items": {"type": "string", "minLength": 1}
}`

var (
	featureSchemaOnce sync.Once
	featureSchema     *jsonschema.Schema
	featureSchemaErr  error
)

func compiledFeatureSchema() (*jsonschema.Schema, error) {
	featureSchemaOnce.Do(func() {
		featureSchema, featureSchemaErr = jsonschema.NewCompiler().Compile([]byte(featureListSchema))
	})
	return featureSchema, featureSchemaErr
}

// ParseFeatures parses a decompose reply into an ordered feature list.
//
// Description:
//
//	The reply may wrap the JSON array in a fenced block. The array must
//	contain at least one non-empty string. Entries are trimmed and blank
//	entries dropped after validation.
//
// Outputs:
//
//	[]string - Features in reply order
//	error - ErrMalformed when the reply is not a valid feature list
func ParseFeatures(text string) ([]string, error) {
	raw := []byte(ExtractCode(text, "json"))

	schema, err := compiledFeatureSchema()
	if err != nil {
		return nil, fmt.Errorf("compile feature schema: %w", err)
	}

	if !json.Valid(raw) {
		return nil, fmt.Errorf("%w: reply is not JSON", ErrMalformed)
	}
	if result := schema.ValidateJSON(raw); !result.IsValid() {
		return nil, fmt.Errorf("%w: reply is not a non-empty array of strings", ErrMalformed)
	}

	var items []string
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	features := make([]string, 0, len(items))
	for _, item := range items {
		if s := strings.TrimSpace(item); s != "" {
			features = append(features, s)
		}
	}
	if len(features) == 0 {
		return nil, fmt.Errorf("%w: every feature is blank", ErrMalformed)
	}
	return features, nil
}
