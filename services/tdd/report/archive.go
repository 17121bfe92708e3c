// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/agentsmith/services/tdd"
)

const runKeyPrefix = "run/"

// ErrRunNotFound indicates no archived run matches an id.
var ErrRunNotFound = errors.New("run not found")

// ErrAmbiguousID indicates an id prefix matches more than one run.
var ErrAmbiguousID = errors.New("run id prefix is ambiguous")

// RunRecord is an archived run.
type RunRecord struct {
	Summary        tdd.Summary        `json:"summary"`
	StartedAt      time.Time          `json:"started_at"`
	History        []tdd.HistoryEntry `json:"history"`
	ProductionCode string             `json:"production_code"`
	TestCode       string             `json:"test_code"`
	ProjectDir     string             `json:"project_dir,omitempty"`
}

// Archive stores finished runs in BadgerDB under run/<id>.
//
// Thread Safety: Safe for concurrent use.
type Archive struct {
	db         *badger.DB
	logger     *slog.Logger
	projectDir func() string
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// OpenArchive opens or creates an archive at path.
//
// Inputs:
//
//	path - Directory for database files. Created if it doesn't exist.
//	logger - Logger for BadgerDB messages. Nil uses slog.Default().
//
// Outputs:
//
//	*Archive - The archive. Caller must call Close() when done.
//	error - Non-nil if the database cannot be opened
func OpenArchive(path string, logger *slog.Logger) (*Archive, error) {
	if path == "" {
		return nil, errors.New("archive path is required")
	}
	if err := os.MkdirAll(path, dirPerm); err != nil {
		return nil, fmt.Errorf("create archive directory %s: %w", path, err)
	}
	return openArchive(badger.DefaultOptions(path).WithSyncWrites(true), logger)
}

// OpenInMemoryArchive opens an archive that is lost on Close.
func OpenInMemoryArchive(logger *slog.Logger) (*Archive, error) {
	return openArchive(badger.DefaultOptions("").WithInMemory(true), logger)
}

func openArchive(opts badger.Options, logger *slog.Logger) (*Archive, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.WithNumVersionsToKeep(1).WithLogger(&badgerLogger{logger: logger})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &Archive{db: db, logger: logger}, nil
}

// Close closes the database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// WithProjectDir records the directory reported by dir alongside each run.
func (a *Archive) WithProjectDir(dir func() string) *Archive {
	a.projectDir = dir
	return a
}

// Snapshot does nothing; only finished runs are archived.
func (a *Archive) Snapshot(context.Context, *tdd.SessionState, tdd.HistoryEntry) error {
	return nil
}

// Finalize archives the session.
func (a *Archive) Finalize(_ context.Context, s *tdd.SessionState) error {
	rec := RunRecord{
		Summary:        s.Summary(),
		StartedAt:      s.StartedAt,
		History:        s.History.Entries(),
		ProductionCode: s.ProductionCode,
		TestCode:       s.TestCode,
	}
	if a.projectDir != nil {
		rec.ProjectDir = a.projectDir()
	}
	return a.Put(rec)
}

// Put stores a record, replacing any record with the same run id.
func (a *Archive) Put(rec RunRecord) error {
	if rec.Summary.RunID == "" {
		return errors.New("record has no run id")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal run record: %w", err)
	}
	err = a.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(runKeyPrefix+rec.Summary.RunID), data)
	})
	if err != nil {
		return fmt.Errorf("store run %s: %w", rec.Summary.RunID, err)
	}
	return nil
}

// Get returns the run whose id equals or starts with id.
func (a *Archive) Get(id string) (*RunRecord, error) {
	if id == "" {
		return nil, ErrRunNotFound
	}
	var matches []RunRecord
	err := a.scan(runKeyPrefix+id, func(rec RunRecord) {
		matches = append(matches, rec)
	})
	if err != nil {
		return nil, err
	}
	for i := range matches {
		if matches[i].Summary.RunID == id {
			return &matches[i], nil
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("%w: %s matches %d runs", ErrAmbiguousID, id, len(matches))
	}
}

// List returns every archived run, newest first.
func (a *Archive) List() ([]RunRecord, error) {
	var out []RunRecord
	if err := a.scan(runKeyPrefix, func(rec RunRecord) { out = append(out, rec) }); err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out, nil
}

func (a *Archive) scan(prefix string, fn func(RunRecord)) error {
	return a.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var rec RunRecord
				if err := json.Unmarshal(val, &rec); err != nil {
					return fmt.Errorf("decode %s: %w", item.Key(), err)
				}
				fn(rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}
