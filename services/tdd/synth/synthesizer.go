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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/AleutianAI/agentsmith/services/llm"
	"golang.org/x/time/rate"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds synthesizer configuration.
type Config struct {
	// CallTimeout bounds a single model call.
	// Default: 2m
	CallTimeout time.Duration

	// RequestsPerMinute rate-limits model calls. 0 disables limiting.
	// Default: 0
	RequestsPerMinute int

	// Temperature is passed to the model.
	// Default: 0.2
	Temperature float32

	// Fence is the code fence tag preferred when extracting code.
	Fence string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		CallTimeout: 2 * time.Minute,
		Temperature: 0.2,
	}
}

// =============================================================================
// SYNTHESIZER
// =============================================================================

// Synthesizer produces feature lists and code by prompting a language model.
//
// Thread Safety: Safe for concurrent use.
type Synthesizer struct {
	client    llm.LLMClient
	config    Config
	limiter   *rate.Limiter
	callCount atomic.Int64
	logger    *slog.Logger
}

// New creates a synthesizer over an LLM client.
func New(client llm.LLMClient, cfg Config, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultConfig().CallTimeout
	}
	s := &Synthesizer{
		client: client,
		config: cfg,
		logger: logger.With(slog.String("component", "synthesizer")),
	}
	if cfg.RequestsPerMinute > 0 {
		s.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return s
}

// Generate runs one synthesis request.
//
// Description:
//
//	Builds the prompt for req.Kind, waits for the rate limiter, and calls
//	the model under CallTimeout. For code kinds the reply is reduced to
//	its first fenced block (or trimmed text).
//
// Inputs:
//
//	ctx - Context for cancellation
//	req - The request
//
// Outputs:
//
//	*Response - The tagged reply
//	error - ErrUnknownKind, or ErrTransport wrapping the client failure.
//	  An empty model reply is not an error: the Response has no Text or Code.
func (s *Synthesizer) Generate(ctx context.Context, req Request) (*Response, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	prompt, err := BuildPrompt(req)
	if err != nil {
		return nil, err
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limiter: %v", ErrTransport, err)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.config.CallTimeout)
	defer cancel()

	temp := s.config.Temperature
	start := time.Now()
	text, err := s.client.Generate(callCtx, prompt, llm.GenerationParams{
		System:      SystemPrompt,
		Temperature: &temp,
	})
	n := s.callCount.Add(1)
	if errors.Is(err, llm.ErrEmptyResponse) {
		// An empty reply is a content fault, handled by the caller like any
		// unparseable output.
		s.logger.Warn("Synthesis returned no content",
			slog.String("kind", req.Kind.String()),
			slog.Duration("duration", time.Since(start)),
		)
		return &Response{Kind: req.Kind}, nil
	}
	if err != nil {
		s.logger.Error("Synthesis failed",
			slog.String("kind", req.Kind.String()),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %s: %w", ErrTransport, req.Kind, err)
	}

	s.logger.Debug("Synthesis completed",
		slog.String("kind", req.Kind.String()),
		slog.Int64("call", n),
		slog.Duration("duration", time.Since(start)),
		slog.Int("reply_chars", len(text)),
	)

	resp := &Response{Kind: req.Kind, Text: text}
	if req.Kind.IsCode() {
		fence := s.config.Fence
		if fence == "" {
			fence = req.Language
		}
		resp.Code = ExtractCode(text, fence)
	}
	return resp, nil
}

// CallCount returns the number of model calls made.
func (s *Synthesizer) CallCount() int64 {
	return s.callCount.Load()
}
