// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/awnumar/memguard"
)

// ErrSecretNotSet indicates no key is held for a provider.
var ErrSecretNotSet = errors.New("secret not set")

// Secrets holds provider API keys encrypted in memory.
//
// Keys are sealed into memguard enclaves as soon as they are read from the
// environment. Reveal decrypts into a locked buffer only for the moment the
// LLM client is built.
//
// Thread Safety: Safe for concurrent use.
type Secrets struct {
	mu   sync.RWMutex
	keys map[string]*memguard.Enclave
}

// NewSecrets creates an empty secret store.
func NewSecrets() *Secrets {
	return &Secrets{keys: make(map[string]*memguard.Enclave)}
}

// Set seals value for provider. The source slice is wiped. An empty value
// removes the key.
func (s *Secrets) Set(provider string, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(value) == 0 {
		delete(s.keys, provider)
		return
	}
	s.keys[provider] = memguard.NewEnclave(value)
}

// Has reports whether a key is held for provider.
func (s *Secrets) Has(provider string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.keys[provider]
	return ok
}

// Reveal returns the plaintext key for provider.
func (s *Secrets) Reveal(provider string) (string, error) {
	s.mu.RLock()
	enclave, ok := s.keys[provider]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrSecretNotSet, provider)
	}

	buf, err := enclave.Open()
	if err != nil {
		return "", fmt.Errorf("open enclave for %s: %w", provider, err)
	}
	defer buf.Destroy()
	return buf.String(), nil
}
