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

import "encoding/json"

// FeatureQueue is an ordered FIFO of pending features.
//
// Thread Safety: Not safe for concurrent use. Owned by the engine.
type FeatureQueue struct {
	items []string
}

// NewFeatureQueue creates a queue holding features in order.
func NewFeatureQueue(features ...string) *FeatureQueue {
	q := &FeatureQueue{}
	q.Push(features...)
	return q
}

// Push appends features to the back of the queue.
func (q *FeatureQueue) Push(features ...string) {
	q.items = append(q.items, features...)
}

// Pop removes and returns the front feature. ok is false when empty.
func (q *FeatureQueue) Pop() (feature string, ok bool) {
	if len(q.items) == 0 {
		return "", false
	}
	feature = q.items[0]
	q.items[0] = ""
	q.items = q.items[1:]
	return feature, true
}

// Len returns the number of pending features.
func (q *FeatureQueue) Len() int {
	return len(q.items)
}

// IsEmpty returns true when no features are pending.
func (q *FeatureQueue) IsEmpty() bool {
	return len(q.items) == 0
}

// Items returns a copy of the pending features in order.
func (q *FeatureQueue) Items() []string {
	out := make([]string, len(q.items))
	copy(out, q.items)
	return out
}

// MarshalJSON encodes the queue as an array.
func (q *FeatureQueue) MarshalJSON() ([]byte, error) {
	return json.Marshal(q.Items())
}

// UnmarshalJSON decodes an array into the queue.
func (q *FeatureQueue) UnmarshalJSON(data []byte) error {
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	q.items = items
	return nil
}
