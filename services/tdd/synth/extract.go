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

import "strings"

// ExtractCode returns the contents of the first fenced code block in text,
// preferring a block tagged with fence. Without a fenced block the trimmed
// text is returned as-is.
func ExtractCode(text, fence string) string {
	var markers []string
	if fence != "" {
		markers = append(markers, "```"+fence, "```"+strings.ToLower(fence))
	}
	markers = append(markers, "```")

	for _, marker := range markers {
		start := strings.Index(text, marker)
		if start == -1 {
			continue
		}

		start += len(marker)
		// Skip the rest of the opening fence line (language tag, attributes).
		if idx := strings.Index(text[start:], "\n"); idx != -1 {
			start += idx + 1
		} else {
			continue
		}

		end := strings.Index(text[start:], "```")
		if end == -1 {
			continue
		}

		if content := strings.TrimSpace(text[start : start+end]); content != "" {
			return content
		}
	}

	return strings.TrimSpace(text)
}
