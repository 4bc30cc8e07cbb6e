// Copyright Flowbot Authors
// SPDX-License-Identifier: Apache-2.0

package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/leseb/flowbot/pkg/state"
	"github.com/leseb/flowbot/pkg/state/sqlstore"

	_ "modernc.org/sqlite"
)

func init() {
	state.Providers.Register("sqlite", func(ctx context.Context, params map[string]string) (state.Store, error) {
		return New(ctx, params["dsn"])
	})
}

var dialect = sqlstore.Dialect{
	Name: "sqlite",
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS bot_state (
			id TEXT PRIMARY KEY,
			data BLOB NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
	},
	Placeholder: func(int) string { return "?" },
}

// New opens (or creates) the SQLite database at path. ":memory:" is
// accepted; a single connection is used so every caller sees the same
// database.
func New(ctx context.Context, path string) (*sqlstore.Store, error) {
	if path == "" {
		path = "flowbot-state.db"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}

	s, err := sqlstore.New(ctx, db, dialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}
