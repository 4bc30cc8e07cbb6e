// Copyright Flowbot Authors
// SPDX-License-Identifier: Apache-2.0

// Package statetest provides a shared conformance test suite for
// state.Store implementations. Each backend should call Run from its own
// _test.go file.
package statetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leseb/flowbot/pkg/state"
)

// Run exercises a Store implementation against the shared contract. The
// newStore function is called once per sub-test to provide an isolated
// store instance.
func Run(t *testing.T, newStore func(t *testing.T) state.Store) {
	t.Helper()

	t.Run("WriteAndRead", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()
		ctx := context.Background()

		require.NoError(t, store.Write(ctx, map[string][]byte{
			"msteams/conversations/c1": []byte(`{"history":[]}`),
			"msteams/users/u1":         []byte(`{"name":"Ada"}`),
		}))

		got, err := store.Read(ctx, []string{"msteams/conversations/c1", "msteams/users/u1"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"history":[]}`, string(got["msteams/conversations/c1"]))
		assert.JSONEq(t, `{"name":"Ada"}`, string(got["msteams/users/u1"]))
	})

	t.Run("MissingKeysAreAbsent", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()
		ctx := context.Background()

		require.NoError(t, store.Write(ctx, map[string][]byte{"present": []byte(`1`)}))

		got, err := store.Read(ctx, []string{"present", "absent"})
		require.NoError(t, err)
		assert.Len(t, got, 1)
		_, ok := got["absent"]
		assert.False(t, ok)
	})

	t.Run("Overwrite", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()
		ctx := context.Background()

		require.NoError(t, store.Write(ctx, map[string][]byte{"k": []byte(`{"v":1}`)}))
		require.NoError(t, store.Write(ctx, map[string][]byte{"k": []byte(`{"v":2}`)}))

		got, err := store.Read(ctx, []string{"k"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"v":2}`, string(got["k"]))
	})

	t.Run("Delete", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()
		ctx := context.Background()

		require.NoError(t, store.Write(ctx, map[string][]byte{"a": []byte(`1`), "b": []byte(`2`)}))
		require.NoError(t, store.Delete(ctx, []string{"a", "never-written"}))

		got, err := store.Read(ctx, []string{"a", "b"})
		require.NoError(t, err)
		assert.Len(t, got, 1)
		assert.Equal(t, "2", string(got["b"]))
	})

	t.Run("ReadReturnsCopies", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()
		ctx := context.Background()

		require.NoError(t, store.Write(ctx, map[string][]byte{"k": []byte(`"abc"`)}))
		got, err := store.Read(ctx, []string{"k"})
		require.NoError(t, err)
		got["k"][1] = 'z'

		again, err := store.Read(ctx, []string{"k"})
		require.NoError(t, err)
		assert.Equal(t, `"abc"`, string(again["k"]))
	})

	t.Run("TypedRoundTrip", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()
		ctx := context.Background()

		convKey := state.ConversationKey("webchat", "conv-1")
		userKey := state.UserKey("webchat", "user-1")

		conv := state.Conversation{}
		conv.Append(state.Turn{Role: "user", Content: "hello"}, 20)
		conv.Append(state.Turn{Role: "assistant", Content: "hi"}, 20)
		require.NoError(t, state.Save(ctx, store, map[string]any{
			convKey: conv,
			userKey: state.UserInfo{Name: "Ada", Locale: "en-GB"},
		}))

		var gotConv state.Conversation
		found, err := state.Load(ctx, store, convKey, &gotConv)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, conv, gotConv)

		var gotUser state.UserInfo
		found, err = state.Load(ctx, store, userKey, &gotUser)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "en-GB", gotUser.Locale)

		var missing state.UserInfo
		found, err = state.Load(ctx, store, state.UserKey("webchat", "nobody"), &missing)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("ConcurrentWrites", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()
		ctx := context.Background()

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				key := fmt.Sprintf("conv-%d", i)
				assert.NoError(t, store.Write(ctx, map[string][]byte{key: []byte(fmt.Sprint(i))}))
			}(i)
		}
		wg.Wait()

		keys := make([]string, 8)
		for i := range keys {
			keys[i] = fmt.Sprintf("conv-%d", i)
		}
		got, err := store.Read(ctx, keys)
		require.NoError(t, err)
		assert.Len(t, got, 8)
	})
}
