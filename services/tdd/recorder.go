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
	"context"
	"errors"
)

// Recorder persists a run. Snapshot is called after every step; Finalize
// once, after the last step. Snapshot errors are logged and ignored.
type Recorder interface {
	Snapshot(ctx context.Context, s *SessionState, entry HistoryEntry) error
	Finalize(ctx context.Context, s *SessionState) error
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) Snapshot(context.Context, *SessionState, HistoryEntry) error { return nil }
func (NopRecorder) Finalize(context.Context, *SessionState) error               { return nil }

// MultiRecorder fans out to several recorders.
type MultiRecorder []Recorder

// Snapshot calls every recorder and joins their errors.
func (m MultiRecorder) Snapshot(ctx context.Context, s *SessionState, entry HistoryEntry) error {
	var errs []error
	for _, r := range m {
		if err := r.Snapshot(ctx, s, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Finalize calls every recorder and joins their errors.
func (m MultiRecorder) Finalize(ctx context.Context, s *SessionState) error {
	var errs []error
	for _, r := range m {
		if err := r.Finalize(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
