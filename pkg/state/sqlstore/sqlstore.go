// Copyright Flowbot Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlstore implements state.Store on database/sql. The sqlite and
// postgres backends supply a Dialect and an opened *sql.DB.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/leseb/flowbot/pkg/state"
)

// compile-time check
var _ state.Store = (*Store)(nil)

// Dialect captures what differs between SQL engines.
type Dialect struct {
	Name        string
	Schema      []string
	Placeholder func(i int) string // 1-based
}

// Store is a SQL-backed state.Store over the bot_state table.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// New creates the schema if needed and returns a Store that owns db.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	for _, stmt := range dialect.Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("%s create tables: %w", dialect.Name, err)
		}
	}
	return &Store{db: db, dialect: dialect}, nil
}

func (s *Store) placeholders(n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = s.dialect.Placeholder(i + 1)
	}
	return strings.Join(ps, ", ")
}

func keyArgs(keys []string) []any {
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	return args
}

// Read fetches the documents for keys in one query.
func (s *Store) Read(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	query := "SELECT id, data FROM bot_state WHERE id IN (" + s.placeholders(len(keys)) + ")"
	rows, err := s.db.QueryContext(ctx, query, keyArgs(keys)...)
	if err != nil {
		return nil, fmt.Errorf("%s read: %w", s.dialect.Name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   string
			data []byte
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("%s scan: %w", s.dialect.Name, err)
		}
		out[id] = data
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s read: %w", s.dialect.Name, err)
	}
	return out, nil
}

// Write upserts all documents in a single transaction.
func (s *Store) Write(ctx context.Context, items map[string][]byte) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s begin: %w", s.dialect.Name, err)
	}
	defer tx.Rollback()

	p := s.dialect.Placeholder
	stmt := fmt.Sprintf(
		"INSERT INTO bot_state (id, data, updated_at) VALUES (%s, %s, %s) "+
			"ON CONFLICT (id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at",
		p(1), p(2), p(3))

	now := time.Now().UTC()
	for key, data := range items {
		if _, err := tx.ExecContext(ctx, stmt, key, data, now); err != nil {
			return fmt.Errorf("%s write %s: %w", s.dialect.Name, key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s commit: %w", s.dialect.Name, err)
	}
	return nil
}

// Delete removes keys in one statement.
func (s *Store) Delete(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	query := "DELETE FROM bot_state WHERE id IN (" + s.placeholders(len(keys)) + ")"
	if _, err := s.db.ExecContext(ctx, query, keyArgs(keys)...); err != nil {
		return fmt.Errorf("%s delete: %w", s.dialect.Name, err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
