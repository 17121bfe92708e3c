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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/AleutianAI/agentsmith/cmd/agentsmith/config"
	"github.com/AleutianAI/agentsmith/pkg/ux"
	"github.com/AleutianAI/agentsmith/services/llm"
	"github.com/AleutianAI/agentsmith/services/tdd"
	"github.com/AleutianAI/agentsmith/services/tdd/gate"
	"github.com/AleutianAI/agentsmith/services/tdd/report"
	"github.com/AleutianAI/agentsmith/services/tdd/sandbox"
	"github.com/AleutianAI/agentsmith/services/tdd/synth"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

// errNoRequest is returned when no request is given and stdin is not a terminal.
var errNoRequest = errors.New("a request is required when not running interactively")

// exitWords end the interactive loop.
var exitWords = map[string]bool{"exit": true, "quit": true, "sair": true}

func runSynthesis(cmd *cobra.Command, args []string) error {
	cfg := config.Global
	applyRunFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := appLogger.Slog()
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telemetry := telemetryOptions{Prometheus: runMetricsAddr != ""}
	if runTraceStdout {
		telemetry.Stdout = cmd.ErrOrStderr()
	}
	if telemetry.Stdout != nil || telemetry.Prometheus {
		shutdown, err := initTelemetry(telemetry)
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Warn("Telemetry shutdown failed", slog.String("error", err.Error()))
			}
		}()
	}

	if runMetricsAddr != "" {
		srv, err := startMetricsServer(runMetricsAddr, logger)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	p, err := newPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	printer := ux.NewPrinter(cmd.OutOrStdout())
	runOne := func(ctx context.Context, request string) error {
		s, dir, err := p.run(ctx, request)
		if s != nil {
			printSummary(printer, s, dir)
		}
		if runOpen && dir != "" {
			if openErr := openProjectDir(dir); openErr != nil {
				printer.Warning(fmt.Sprintf("Could not open %s: %v", dir, openErr))
			}
		}
		return err
	}

	if len(args) > 0 {
		return runOne(ctx, strings.Join(args, " "))
	}
	if !ux.IsInteractive() {
		return errNoRequest
	}
	printer.Title("Agent Smith")
	printer.Info("Type a request, or exit to quit.")
	return interactiveLoop(ctx, promptRequest, runOne, printer)
}

// applyRunFlags overrides cfg with the flags set on cmd.
func applyRunFlags(cmd *cobra.Command, cfg *config.AgentSmithConfig) {
	flags := cmd.Flags()
	if flags.Changed("language") {
		cfg.Run.Language = strings.ToLower(runLanguage)
	}
	if flags.Changed("max-attempts") {
		cfg.Run.MaxFeatureAttempts = runMaxAttempts
	}
	if flags.Changed("max-iterations") {
		cfg.Run.MaxIterations = runMaxIterations
	}
	if flags.Changed("test-timeout") {
		cfg.Run.TestTimeout = runTestTimeout
	}
	if flags.Changed("synthesis-timeout") {
		cfg.LLM.SynthesisTimeout = runSynthesisTimeout
	}
	if flags.Changed("provider") {
		cfg.LLM.Provider = strings.ToLower(runProvider)
	}
	if flags.Changed("model") {
		cfg.LLM.Model = runModel
	}
	if flags.Changed("out") {
		cfg.Output.ProjectsDir = runOutDir
	}
	if runNoArchive {
		cfg.Output.Archive = false
	}
}

// interactiveLoop prompts for requests until an exit word, an aborted
// prompt or a cancelled context. Failed runs are reported and the loop
// continues.
func interactiveLoop(
	ctx context.Context,
	prompt func() (string, error),
	runOne func(context.Context, string) error,
	printer *ux.Printer,
) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		request, err := prompt()
		if errors.Is(err, huh.ErrUserAborted) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read request: %w", err)
		}
		request = strings.TrimSpace(request)
		if exitWords[strings.ToLower(request)] {
			return nil
		}
		if request == "" {
			continue
		}
		if err := runOne(ctx, request); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			printer.Error(err.Error())
		}
	}
}

func promptRequest() (string, error) {
	var request string
	err := huh.NewInput().
		Title("What do you want to build?").
		Placeholder("a function that adds two numbers").
		Value(&request).
		Run()
	return request, err
}

// pipeline holds the components shared by every run of one command.
type pipeline struct {
	cfg      *config.AgentSmithConfig
	synth    *synth.Synthesizer
	executor *sandbox.Executor
	safety   *gate.SafetyValidator
	iface    *gate.InterfaceValidator
	archive  *report.Archive
	logger   *slog.Logger
}

func newPipeline(ctx context.Context, cfg *config.AgentSmithConfig, logger *slog.Logger) (*pipeline, error) {
	provider, err := llm.ParseProvider(cfg.LLM.Provider)
	if err != nil {
		return nil, err
	}
	var apiKey string
	if cfg.Secrets != nil && cfg.Secrets.Has(string(provider)) {
		if apiKey, err = cfg.Secrets.Reveal(string(provider)); err != nil {
			return nil, err
		}
	}
	client, err := llm.NewClient(ctx, llm.Config{
		Provider: provider,
		Model:    cfg.LLM.Model,
		APIKey:   apiKey,
		BaseURL:  cfg.LLM.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("create LLM client: %w", err)
	}

	executor, err := sandbox.New(sandbox.Config{Language: cfg.Run.Language}, logger)
	if err != nil {
		return nil, err
	}

	synthCfg := synth.DefaultConfig()
	if cfg.LLM.SynthesisTimeout > 0 {
		synthCfg.CallTimeout = cfg.LLM.SynthesisTimeout
	}
	synthCfg.RequestsPerMinute = cfg.LLM.RequestsPerMinute
	synthCfg.Fence = executor.Language().Fence

	p := &pipeline{
		cfg:      cfg,
		synth:    synth.New(client, synthCfg, logger),
		executor: executor,
		safety:   gate.NewSafetyValidator(cfg.Run.Language),
		iface:    gate.NewInterfaceValidator(cfg.Run.Language),
		logger:   logger,
	}

	if cfg.Output.Archive {
		archive, err := report.OpenArchive(config.ExpandPath(cfg.Output.ArchiveDir), logger)
		if err != nil {
			logger.Warn("Run archive unavailable, continuing without it", slog.String("error", err.Error()))
		} else {
			p.archive = archive
		}
	}

	logger.Info("Pipeline ready",
		slog.String("provider", string(provider)),
		slog.String("model", cfg.LLM.Model),
		slog.Bool("api_key_present", apiKey != ""),
		slog.String("language", cfg.Run.Language),
		slog.Bool("archive", p.archive != nil),
	)
	return p, nil
}

// run executes one request, writing the project under the output directory.
func (p *pipeline) run(ctx context.Context, request string) (*tdd.SessionState, string, error) {
	writer := report.NewProjectWriter(config.ExpandPath(p.cfg.Output.ProjectsDir), p.logger)
	recorder := tdd.MultiRecorder{writer}
	if p.archive != nil {
		recorder = append(recorder, p.archive.WithProjectDir(writer.Dir))
	}

	engine, err := tdd.NewEngine(tdd.Dependencies{
		Synthesizer: p.synth,
		Executor:    p.executor,
		Safety:      p.safety,
		Interface:   p.iface,
		Recorder:    recorder,
	}, tdd.NewConfig(
		tdd.WithLanguage(p.cfg.Run.Language),
		tdd.WithMaxFeatureAttempts(p.cfg.Run.MaxFeatureAttempts),
		tdd.WithMaxIterations(p.cfg.Run.MaxIterations),
		tdd.WithTestTimeout(p.cfg.Run.TestTimeout),
	), p.logger)
	if err != nil {
		return nil, "", err
	}

	s, err := engine.Run(ctx, request)
	return s, writer.Dir(), err
}

// Close releases the archive.
func (p *pipeline) Close() {
	if p.archive != nil {
		if err := p.archive.Close(); err != nil {
			p.logger.Warn("Archive close failed", slog.String("error", err.Error()))
		}
	}
}

// printSummary prints the outcome of a run.
func printSummary(printer *ux.Printer, s *tdd.SessionState, dir string) {
	sum := s.Summary()

	printer.Title("Run summary")
	printer.KeyValue("Run ID", sum.RunID)
	printer.KeyValue("Status", string(sum.Status))
	printer.KeyValue("Steps", strconv.Itoa(sum.Steps))
	verdict := string(sum.FinalVerdict)
	if verdict == "" {
		verdict = "not run"
	}
	printer.KeyValue("Final verdict", verdict)
	printer.KeyValue("Duration", sum.Duration.Round(time.Millisecond).String())
	if dir != "" {
		printer.KeyValue("Project", dir)
	}
	printer.List("Completed features", ux.IconSuccess, sum.Completed)
	printer.List("Abandoned features", ux.IconError, sum.Abandoned)
	printer.List("Pending features", ux.IconPending, sum.Pending)

	switch {
	case sum.Status != tdd.RunStatusCompleted:
		printer.ErrorBox("Run failed", sum.Error)
	case len(sum.Abandoned) > 0:
		printer.Warning(fmt.Sprintf("Finished with %d abandoned feature(s)", len(sum.Abandoned)))
	default:
		printer.Success("All features implemented")
	}
}
