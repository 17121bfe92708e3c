// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tdd

import (
	"encoding/json"
	"time"
	"unicode/utf8"
)

// HistoryEntry records one executed step.
type HistoryEntry struct {
	// Seq is the 1-based position in the log.
	Seq int `json:"seq"`

	// Timestamp is when the step completed.
	Timestamp time.Time `json:"timestamp"`

	// State is the state that executed.
	State State `json:"state"`

	// Next is the state the engine moved to.
	Next State `json:"next"`

	// Action names what the step did.
	Action Action `json:"action"`

	// Feature is the feature in flight, if any.
	Feature string `json:"feature,omitempty"`

	// Attempt is the feature's iteration count after the step.
	Attempt int `json:"attempt,omitempty"`

	// Detail is a bounded free-text description.
	Detail string `json:"detail,omitempty"`
}

// HistoryLog is the append-only record of a run.
//
// Thread Safety: Not safe for concurrent use. Owned by the engine.
type HistoryLog struct {
	entries     []HistoryEntry
	detailLimit int
}

// NewHistoryLog creates a log truncating details beyond detailLimit bytes.
// A limit <= 0 disables truncation.
func NewHistoryLog(detailLimit int) *HistoryLog {
	return &HistoryLog{detailLimit: detailLimit}
}

// Append adds an entry, assigning its sequence number, and returns it.
func (h *HistoryLog) Append(e HistoryEntry) HistoryEntry {
	e.Seq = len(h.entries) + 1
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	e.Detail = truncateDetail(e.Detail, h.detailLimit)
	h.entries = append(h.entries, e)
	return e
}

// Len returns the number of entries.
func (h *HistoryLog) Len() int {
	return len(h.entries)
}

// Entries returns a copy of all entries in order.
func (h *HistoryLog) Entries() []HistoryEntry {
	out := make([]HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Last returns the most recent entry.
func (h *HistoryLog) Last() (HistoryEntry, bool) {
	if len(h.entries) == 0 {
		return HistoryEntry{}, false
	}
	return h.entries[len(h.entries)-1], true
}

// Count returns how many entries carry the action.
func (h *HistoryLog) Count(action Action) int {
	n := 0
	for _, e := range h.entries {
		if e.Action == action {
			n++
		}
	}
	return n
}

// MarshalJSON encodes the log as an array.
func (h *HistoryLog) MarshalJSON() ([]byte, error) {
	if h.entries == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(h.entries)
}

// UnmarshalJSON decodes an array into the log.
func (h *HistoryLog) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &h.entries)
}

// truncateDetail cuts s to limit bytes on a rune boundary and marks the cut.
func truncateDetail(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
