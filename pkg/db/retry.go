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
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// PostgreSQL SQLSTATE codes for transient errors that should be retried.
const (
	sqlstateDeadlockDetected    = "40P01" // Deadlock detected
	sqlstateSerializationFailed = "40001" // Serialization failure
	sqlstateStatementTimeout    = "57014" // Statement timeout
	sqliteBusy                  = "SQLITE_BUSY"
)

const (
	defaultMaxRetryAttempts  = 3
	defaultDeadlockBackoffMs = 500
	defaultBaseBackoffMs     = 150
	maxRetryAttemptsEnv      = "ENTITYRADAR_DB_MAX_RETRY_ATTEMPTS"
	deadlockBackoffMsEnv     = "ENTITYRADAR_DB_DEADLOCK_BACKOFF_MS"
)

// classifyError checks whether an error is a transient database error that
// can be retried as-is. Constraint violations are not transient: the caller
// has to re-read first.
func classifyError(err error) (string, bool) {
	if err == nil {
		return "", false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlstateDeadlockDetected, sqlstateSerializationFailed, sqlstateStatementTimeout:
			return pgErr.Code, true
		}

		return pgErr.Code, false
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return sqliteBusy, true
		}

		return strconv.Itoa(liteErr.Code()), false
	}

	// Fallback to string matching for wrapped errors
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "40p01"), strings.Contains(msg, "deadlock detected"):
		return sqlstateDeadlockDetected, true
	case strings.Contains(msg, "40001"), strings.Contains(msg, "could not serialize access"):
		return sqlstateSerializationFailed, true
	case strings.Contains(msg, "57014"), strings.Contains(msg, "statement timeout"):
		return sqlstateStatementTimeout, true
	case strings.Contains(msg, "database is locked"):
		return sqliteBusy, true
	default:
		return "", false
	}
}

// backoffDelay is exponential with jitter so competing writers fall out of
// lockstep.
func backoffDelay(attempt int, code string) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	var base time.Duration

	switch code {
	case sqlstateDeadlockDetected, sqlstateSerializationFailed:
		base = time.Duration(getDeadlockBackoffMs()) * time.Millisecond
	default:
		base = time.Duration(defaultBaseBackoffMs) * time.Millisecond
	}

	backoff := base * time.Duration(1<<(attempt-1))
	jitter := time.Now().UnixNano() % int64(base)

	return backoff + time.Duration(jitter)
}

// inTx runs fn in a transaction, retrying transient failures. Unique
// violations are surfaced as ErrConstraint.
func (db *DB) inTx(ctx context.Context, name string, fn func(tx *sql.Tx) error) error {
	maxAttempts := getMaxRetryAttempts()

	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := db.runTx(ctx, fn)
		if err == nil {
			return nil
		}

		if errors.Is(err, ErrConstraint) || db.dialect.isUniqueViolation(err) {
			if !errors.Is(err, ErrConstraint) {
				err = fmt.Errorf("%w: %s: %w", ErrConstraint, name, err)
			}

			return err
		}

		lastErr = err

		code, transient := classifyError(err)
		if !transient || attempt == maxAttempts {
			break
		}

		delay := backoffDelay(attempt, code)

		db.logger.Warn().
			Err(err).
			Str("code", code).
			Str("operation", name).
			Int("attempt", attempt).
			Int("max_attempts", maxAttempts).
			Dur("backoff", delay).
			Msg("transient database error, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}

func (db *DB) runTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", ErrDatabaseError, err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrDatabaseError, err)
	}

	return nil
}

func getMaxRetryAttempts() int {
	return envPositiveInt(maxRetryAttemptsEnv, defaultMaxRetryAttempts)
}

func getDeadlockBackoffMs() int {
	return envPositiveInt(deadlockBackoffMsEnv, defaultDeadlockBackoffMs)
}

func envPositiveInt(key string, def int) int {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}

	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}

	return parsed
}
