/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	// registers the "sqlite" database/sql driver
	_ "modernc.org/sqlite"

	"github.com/carverauto/entityradar/pkg/logger"
	"github.com/carverauto/entityradar/pkg/models"
)

const memoryPath = ":memory:"

// DB is the database/sql backed entity store.
type DB struct {
	conn        *sql.DB
	dialect     dialect
	logger      logger.Logger
	now         func() time.Time
	snapshotRaw bool
}

var _ Service = (*DB)(nil)

// Option customises a DB.
type Option func(*DB)

// WithClock replaces time.Now, used for created_at and retirement stamps.
func WithClock(now func() time.Time) Option {
	return func(db *DB) {
		db.now = now
	}
}

// New opens the configured backend and ensures the schema.
func New(ctx context.Context, config *models.DatabaseConfig, log logger.Logger, opts ...Option) (*DB, error) {
	if config == nil {
		return nil, fmt.Errorf("%w: missing database configuration", ErrFailedOpenDB)
	}

	var (
		conn *sql.DB
		d    dialect
		err  error
	)

	switch config.Driver {
	case models.DriverSQLite, "":
		conn, err = openSQLite(config.Path)
		d = sqliteDialect
	case models.DriverPostgres:
		conn, err = openPostgres(config.Postgres, log)
		d = postgresDialect
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, config.Driver)
	}

	if err != nil {
		return nil, err
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: %w", ErrFailedOpenDB, err)
	}

	if err := RunMigrations(ctx, conn, d, log); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{
		conn:        conn,
		dialect:     d,
		logger:      log,
		now:         time.Now,
		snapshotRaw: config.SnapshotRaw,
	}

	for _, opt := range opts {
		opt(db)
	}

	return db, nil
}

// NewMemory opens a private in-memory SQLite store.
func NewMemory(ctx context.Context, log logger.Logger, opts ...Option) (*DB, error) {
	return New(ctx, &models.DatabaseConfig{Driver: models.DriverSQLite, Path: memoryPath}, log, opts...)
}

func openSQLite(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: sqlite path is required", ErrFailedOpenDB)
	}

	dsn := memoryPath

	if path != memoryPath {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrFailedOpenDB, err)
			}
		}

		pragmas := []string{"busy_timeout(5000)", "journal_mode(WAL)", "foreign_keys(1)"}

		params := make([]string, 0, len(pragmas))
		for _, p := range pragmas {
			params = append(params, "_pragma="+p)
		}

		dsn = "file:" + path + "?" + strings.Join(params, "&")
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedOpenDB, err)
	}

	// SQLite allows a single writer; one connection serialises every
	// transaction and keeps ":memory:" databases from splitting per connection.
	conn.SetMaxOpenConns(1)

	return conn, nil
}

// Close releases the underlying connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) exec(ctx context.Context, tx *sql.Tx, query string, args ...interface{}) (sql.Result, error) {
	return tx.ExecContext(ctx, db.dialect.rebind(query), args...)
}

func (db *DB) query(ctx context.Context, q queryer, query string, args ...interface{}) (*sql.Rows, error) {
	rows, err := q.QueryContext(ctx, db.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}

	return rows, nil
}

func (db *DB) queryRow(ctx context.Context, q queryer, query string, args ...interface{}) *sql.Row {
	return q.QueryRowContext(ctx, db.dialect.rebind(query), args...)
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}
