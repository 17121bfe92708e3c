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
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type fakeModel struct {
	messages []llms.MessageContent
	opts     llms.CallOptions
	reply    *llms.ContentResponse
	err      error
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	for _, o := range options {
		o(&f.opts)
	}
	return f.reply, f.err
}

func TestLangChainClient_Generate(t *testing.T) {
	model := &fakeModel{reply: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "hello"}}}}
	c := &LangChainClient{model: model, provider: ProviderGemini, name: "test"}

	temp := float32(0.2)
	out, err := c.Generate(context.Background(), "prompt", GenerationParams{System: "sys", Temperature: &temp})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	require.Len(t, model.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.messages[1].Role)
	assert.InDelta(t, 0.2, model.opts.Temperature, 0.0001)
}

func TestLangChainClient_Errors(t *testing.T) {
	boom := errors.New("boom")
	c := &LangChainClient{model: &fakeModel{err: boom}, provider: ProviderOllama}
	_, err := c.Generate(context.Background(), "p", GenerationParams{})
	assert.ErrorIs(t, err, boom)

	c = &LangChainClient{model: &fakeModel{reply: &llms.ContentResponse{}}, provider: ProviderOllama}
	_, err = c.Generate(context.Background(), "p", GenerationParams{})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestOpenAIClient_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req["model"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"def add(a, b): return a + b"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c, err := NewOpenAIClient("key", "gpt-test", srv.URL)
	require.NoError(t, err)

	out, err := c.Generate(context.Background(), "write add", GenerationParams{})
	require.NoError(t, err)
	assert.Equal(t, "def add(a, b): return a + b", out)
}

func TestOpenAIClient_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","choices":[]}`))
	}))
	defer srv.Close()

	c, err := NewOpenAIClient("key", "gpt-test", srv.URL)
	require.NoError(t, err)
	_, err = c.Generate(context.Background(), "x", GenerationParams{})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestNewClient_Validation(t *testing.T) {
	ctx := context.Background()

	_, err := NewClient(ctx, Config{Provider: ProviderGemini})
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	_, err = NewClient(ctx, Config{Provider: ProviderOpenAI})
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	_, err = NewClient(ctx, Config{Provider: "bard"})
	assert.ErrorIs(t, err, ErrUnknownProvider)

	c, err := NewClient(ctx, Config{Provider: ProviderOllama, BaseURL: "http://127.0.0.1:11434"})
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestParseProvider(t *testing.T) {
	tests := map[string]Provider{
		"gemini":   ProviderGemini,
		" Google ": ProviderGemini,
		"OPENAI":   ProviderOpenAI,
		"ollama":   ProviderOllama,
	}
	for in, want := range tests {
		got, err := ParseProvider(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseProvider("bard")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestDefaultModel(t *testing.T) {
	assert.Equal(t, "gemini-2.5-flash", DefaultModel(ProviderGemini))
	assert.Equal(t, "gpt-4o-mini", DefaultModel(ProviderOpenAI))
	assert.Equal(t, "", DefaultModel("x"))
}
