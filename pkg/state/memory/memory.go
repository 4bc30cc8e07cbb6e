// Copyright Flowbot Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"sync"

	"github.com/leseb/flowbot/pkg/state"
)

func init() {
	state.Providers.Register("memory", func(_ context.Context, _ map[string]string) (state.Store, error) {
		return New(), nil
	})
}

// compile-time check
var _ state.Store = (*Store)(nil)

// Store is an in-memory implementation of state.Store. Contents are lost
// on restart.
type Store struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// New creates a new in-memory store
func New() *Store {
	return &Store{
		docs: make(map[string][]byte),
	}
}

// Read returns copies of the stored documents
func (s *Store) Read(ctx context.Context, keys []string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]byte, len(keys))
	for _, key := range keys {
		if data, ok := s.docs[key]; ok {
			out[key] = append([]byte(nil), data...)
		}
	}
	return out, nil
}

// Write stores copies of the documents
func (s *Store) Write(ctx context.Context, items map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, data := range items {
		s.docs[key] = append([]byte(nil), data...)
	}
	return nil
}

// Delete removes documents
func (s *Store) Delete(ctx context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.docs, key)
	}
	return nil
}

// Close is a no-op
func (s *Store) Close() error {
	return nil
}
