// Copyright Flowbot Authors
// SPDX-License-Identifier: Apache-2.0

package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leseb/flowbot/pkg/state"
	"github.com/leseb/flowbot/pkg/state/postgres"
	"github.com/leseb/flowbot/pkg/state/statetest"
)

func TestPostgresConformance(t *testing.T) {
	dsn := os.Getenv("STATE_STORE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("Skipping Postgres conformance tests: STATE_STORE_TEST_POSTGRES_DSN must be set")
	}

	statetest.Run(t, func(t *testing.T) state.Store {
		store, err := postgres.New(context.Background(), dsn)
		require.NoError(t, err)
		// The table is shared between sub-tests; start each one clean.
		require.NoError(t, store.Delete(context.Background(), suiteKeys()))
		return store
	})
}

func TestPostgresRequiresDSN(t *testing.T) {
	_, err := postgres.New(context.Background(), "")
	assert.ErrorContains(t, err, "dsn is required")
}

func suiteKeys() []string {
	keys := []string{
		"msteams/conversations/c1", "msteams/users/u1", "present", "absent", "k", "a", "b",
		state.ConversationKey("webchat", "conv-1"), state.UserKey("webchat", "user-1"),
	}
	for _, c := range "01234567" {
		keys = append(keys, "conv-"+string(c))
	}
	return keys
}
