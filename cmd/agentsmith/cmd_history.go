// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/AleutianAI/agentsmith/cmd/agentsmith/config"
	"github.com/AleutianAI/agentsmith/pkg/ux"
	"github.com/AleutianAI/agentsmith/services/tdd/report"
	"github.com/spf13/cobra"
)

func openConfiguredArchive() (*report.Archive, error) {
	archive, err := report.OpenArchive(config.ExpandPath(config.Global.Output.ArchiveDir), appLogger.Slog())
	if err != nil {
		return nil, fmt.Errorf("open run archive: %w", err)
	}
	return archive, nil
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	archive, err := openConfiguredArchive()
	if err != nil {
		return err
	}
	defer archive.Close()

	records, err := archive.List()
	if err != nil {
		return err
	}
	printHistoryList(ux.NewPrinter(cmd.OutOrStdout()), records)
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	archive, err := openConfiguredArchive()
	if err != nil {
		return err
	}
	defer archive.Close()

	rec, err := archive.Get(args[0])
	if err != nil {
		return err
	}
	printRunRecord(ux.NewPrinter(cmd.OutOrStdout()), rec)
	return nil
}

// printHistoryList prints one line per run.
func printHistoryList(printer *ux.Printer, records []report.RunRecord) {
	if len(records) == 0 {
		printer.Info("No runs archived yet.")
		return
	}
	printer.Title(fmt.Sprintf("%d archived run(s)", len(records)))
	for _, rec := range records {
		s := rec.Summary
		id := s.RunID
		if len(id) > 8 {
			id = id[:8]
		}
		progress := ux.ProgressBar(len(s.Completed), len(s.Completed)+len(s.Abandoned)+len(s.Pending), 10, ux.GetPersonalityLevel())
		printer.Info(fmt.Sprintf("%s  %s  %-9s  %s  %s",
			id, rec.StartedAt.Local().Format("2006-01-02 15:04"), s.Status, progress, s.Request))
	}
}

// printRunRecord prints the details of one run.
func printRunRecord(printer *ux.Printer, rec *report.RunRecord) {
	s := rec.Summary

	printer.Title("Run " + s.RunID)
	printer.KeyValue("Request", s.Request)
	printer.KeyValue("Language", s.Language)
	printer.KeyValue("Status", string(s.Status))
	printer.KeyValue("Started", rec.StartedAt.Local().Format(time.RFC3339))
	printer.KeyValue("Duration", s.Duration.Round(time.Millisecond).String())
	printer.KeyValue("Steps", strconv.Itoa(s.Steps))
	if s.FinalVerdict != "" {
		printer.KeyValue("Final verdict", string(s.FinalVerdict))
	}
	if rec.ProjectDir != "" {
		printer.KeyValue("Project", rec.ProjectDir)
	}
	if s.Error != "" {
		printer.KeyValue("Error", s.Error)
	}
	printer.List("Completed features", ux.IconSuccess, s.Completed)
	printer.List("Abandoned features", ux.IconError, s.Abandoned)
	printer.List("Pending features", ux.IconPending, s.Pending)

	steps := make([]string, 0, len(rec.History))
	for _, e := range rec.History {
		line := fmt.Sprintf("%3d %-16s %s", e.Seq, e.State, e.Action)
		if e.Feature != "" {
			line += "  [" + e.Feature + "]"
		}
		steps = append(steps, line)
	}
	printer.List("History", ux.IconArrow, steps)

	if rec.ProductionCode != "" {
		printer.Code("Production code", rec.ProductionCode)
	}
}
