// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("agentsmith.llm")

// contentGenerator is the part of llms.Model this client needs.
type contentGenerator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// LangChainClient adapts a langchaingo model to LLMClient. It backs the
// Gemini and Ollama providers.
type LangChainClient struct {
	model    contentGenerator
	provider Provider
	name     string
}

// NewGeminiClient creates a Google Gemini client.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*LangChainClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: gemini", ErrMissingAPIKey)
	}
	if model == "" {
		model = DefaultModel(ProviderGemini)
	}
	m, err := googleai.New(ctx, googleai.WithAPIKey(apiKey), googleai.WithDefaultModel(model))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	slog.Info("Initializing Gemini client", "model", model)
	return &LangChainClient{model: m, provider: ProviderGemini, name: model}, nil
}

// NewOllamaClient creates a client for a local Ollama server.
func NewOllamaClient(baseURL, model string) (*LangChainClient, error) {
	if model == "" {
		model = DefaultModel(ProviderOllama)
	}
	opts := []ollama.Option{ollama.WithModel(model)}
	if baseURL != "" {
		opts = append(opts, ollama.WithServerURL(strings.TrimSuffix(baseURL, "/")))
	}
	m, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}
	slog.Info("Initializing Ollama client", "base_url", baseURL, "model", model)
	return &LangChainClient{model: m, provider: ProviderOllama, name: model}, nil
}

// Generate implements the LLMClient interface
func (c *LangChainClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	ctx, span := tracer.Start(ctx, "LangChainClient.Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.provider", string(c.provider)),
		attribute.String("llm.model", c.name),
		attribute.Int("llm.prompt_chars", len(prompt)),
	)

	system := params.System
	if system == "" {
		system = defaultSystemPrompt
	}
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	resp, err := c.model.GenerateContent(ctx, messages, callOptions(params)...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate failed")
		slog.Error("LLM call failed", "provider", c.provider, "error", err)
		return "", fmt.Errorf("%s API call failed: %w", c.provider, err)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		span.SetStatus(codes.Error, "empty response")
		return "", fmt.Errorf("%s: %w", c.provider, ErrEmptyResponse)
	}

	content := resp.Choices[0].Content
	span.SetAttributes(attribute.Int("llm.response_chars", len(content)))
	slog.Debug("Received response", "provider", c.provider, "stop_reason", resp.Choices[0].StopReason)
	return content, nil
}

func callOptions(params GenerationParams) []llms.CallOption {
	var opts []llms.CallOption
	if params.Temperature != nil {
		opts = append(opts, llms.WithTemperature(float64(*params.Temperature)))
	}
	if params.TopP != nil {
		opts = append(opts, llms.WithTopP(float64(*params.TopP)))
	}
	if params.MaxTokens != nil {
		opts = append(opts, llms.WithMaxTokens(*params.MaxTokens))
	}
	if len(params.Stop) > 0 {
		opts = append(opts, llms.WithStopWords(params.Stop))
	}
	return opts
}
