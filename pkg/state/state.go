// Copyright Flowbot Authors
// SPDX-License-Identifier: Apache-2.0

// Package state persists per-conversation and per-user bot state as opaque
// JSON documents addressed by string keys.
package state

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/leseb/flowbot/pkg/provider"
)

// Providers is the registry of state store backend implementations.
// Import implementation packages with blank imports to register them:
//
//	import _ "github.com/leseb/flowbot/pkg/state/memory"
//	import _ "github.com/leseb/flowbot/pkg/state/sqlite"
//	import _ "github.com/leseb/flowbot/pkg/state/postgres"
//	import _ "github.com/leseb/flowbot/pkg/state/s3"
var Providers = provider.NewRegistry[Store]("state_store")

// Store is a key/value document store.
type Store interface {
	// Read returns the documents for keys. Keys with no document are
	// absent from the result.
	Read(ctx context.Context, keys []string) (map[string][]byte, error)
	// Write upserts every document in items.
	Write(ctx context.Context, items map[string][]byte) error
	// Delete removes keys. Missing keys are not an error.
	Delete(ctx context.Context, keys []string) error
	Close() error
}

// Load reads key and unmarshals it into v. It reports false when the key
// has no document, leaving v untouched.
func Load(ctx context.Context, s Store, key string, v any) (bool, error) {
	docs, err := s.Read(ctx, []string{key})
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	data, ok := docs[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// Save marshals each value and writes them in one call.
func Save(ctx context.Context, s Store, values map[string]any) error {
	items := make(map[string][]byte, len(values))
	for key, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		items[key] = data
	}
	return s.Write(ctx, items)
}
