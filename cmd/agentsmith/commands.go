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
	"time"

	"github.com/AleutianAI/agentsmith/cmd/agentsmith/config"
	"github.com/AleutianAI/agentsmith/pkg/logging"
	"github.com/AleutianAI/agentsmith/pkg/ux"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// --- Global Command Variables ---
var (
	personalityLevel string // UX personality level (full/minimal/machine)
	logLevel         string

	// run flags
	runLanguage         string
	runMaxAttempts      int
	runMaxIterations    int
	runTestTimeout      time.Duration
	runSynthesisTimeout time.Duration
	runProvider         string
	runModel            string
	runOutDir           string
	runNoArchive        bool
	runMetricsAddr      string
	runTraceStdout      bool
	runOpen             bool

	appLogger *logging.Logger

	rootCmd = &cobra.Command{
		Use:   "agentsmith",
		Short: "Closed-loop test-driven code synthesis",
		Long: `agentsmith turns a natural-language request into working code by
decomposing it into features and driving each one through a
write-test, run, fix and refactor loop against a real test runner.`,
		SilenceUsage:      true,
		PersistentPreRunE: setupCommand,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if appLogger != nil {
				_ = appLogger.Close()
			}
		},
	}

	runCmd = &cobra.Command{
		Use:   "run [request]",
		Short: "Synthesize code for a request; prompts interactively when none is given",
		RunE:  runSynthesis, // Defined in cmd_run.go
	}

	// --- History ---
	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "Inspect archived runs",
	}
	historyListCmd = &cobra.Command{
		Use:   "list",
		Short: "List archived runs, newest first",
		Args:  cobra.NoArgs,
		RunE:  runHistoryList, // Defined in cmd_history.go
	}
	historyShowCmd = &cobra.Command{
		Use:   "show [run_id]",
		Short: "Show an archived run by id or unique id prefix",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryShow, // Defined in cmd_history.go
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the agentsmith version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "agentsmith", version)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&personalityLevel, "output", "", "output style: full, minimal or machine (default from AGENTSMITH_OUTPUT)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (default from config)")

	flags := runCmd.Flags()
	flags.StringVar(&runLanguage, "language", "", "target language: go or python")
	flags.IntVar(&runMaxAttempts, "max-attempts", 0, "attempts per feature before it is abandoned")
	flags.IntVar(&runMaxIterations, "max-iterations", 0, "step ceiling for the whole run (0 disables it)")
	flags.DurationVar(&runTestTimeout, "test-timeout", 0, "bound on a single test execution")
	flags.DurationVar(&runSynthesisTimeout, "synthesis-timeout", 0, "bound on a single model call")
	flags.StringVar(&runProvider, "provider", "", "LLM provider: gemini, openai or ollama")
	flags.StringVar(&runModel, "model", "", "model name (default depends on provider)")
	flags.StringVar(&runOutDir, "out", "", "parent directory for project output")
	flags.BoolVar(&runNoArchive, "no-archive", false, "do not record the run in the archive")
	flags.StringVar(&runMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	flags.BoolVar(&runTraceStdout, "trace-stdout", false, "export OpenTelemetry spans and metrics to stderr")
	flags.BoolVar(&runOpen, "open", false, "open the project directory when a run finishes")

	historyCmd.AddCommand(historyListCmd, historyShowCmd)
	rootCmd.AddCommand(runCmd, historyCmd, versionCmd)
}

// setupCommand initializes output style, configuration and logging.
func setupCommand(cmd *cobra.Command, args []string) error {
	if personalityLevel != "" {
		ux.SetPersonalityLevel(ux.ParsePersonalityLevel(personalityLevel))
	} else {
		ux.InitPersonality()
	}
	if cmd == versionCmd {
		return nil
	}

	if err := config.Load(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	levelName := config.Global.Logging.Level
	if logLevel != "" {
		levelName = logLevel
	}
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return err
	}
	appLogger = logging.New(logging.Config{
		Level:   level,
		LogDir:  config.Global.Logging.Dir,
		Service: "agentsmith",
	})
	return nil
}
