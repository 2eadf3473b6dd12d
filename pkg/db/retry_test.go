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
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/carverauto/entityradar/pkg/models"
)

// Static test errors for err113 compliance.
var (
	errTestDeadlock      = fmt.Errorf("ERROR: deadlock detected (SQLSTATE 40P01)")
	errTestSerialization = fmt.Errorf("could not serialize access due to concurrent update")
	errTestLocked        = fmt.Errorf("database is locked")
	errTestUnknown       = fmt.Errorf("some random database error")
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      string
		transient bool
	}{
		{"nil", nil, "", false},
		{"pg deadlock", &pgconn.PgError{Code: "40P01"}, sqlstateDeadlockDetected, true},
		{"pg serialization", &pgconn.PgError{Code: "40001"}, sqlstateSerializationFailed, true},
		{"pg statement timeout", &pgconn.PgError{Code: "57014"}, sqlstateStatementTimeout, true},
		{"pg unique violation", &pgconn.PgError{Code: "23505"}, "23505", false},
		{"wrapped deadlock", errTestDeadlock, sqlstateDeadlockDetected, true},
		{"wrapped serialization", errTestSerialization, sqlstateSerializationFailed, true},
		{"sqlite locked text", errTestLocked, sqliteBusy, true},
		{"unknown", errTestUnknown, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, transient := classifyError(tt.err)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.transient, transient)
		})
	}
}

func TestBackoffDelay(t *testing.T) {
	deadlock := backoffDelay(1, sqlstateDeadlockDetected)
	regular := backoffDelay(1, sqliteBusy)

	assert.GreaterOrEqual(t, deadlock.Milliseconds(), int64(defaultDeadlockBackoffMs))
	assert.GreaterOrEqual(t, regular.Milliseconds(), int64(defaultBaseBackoffMs))
	assert.Less(t, regular.Milliseconds(), int64(2*defaultBaseBackoffMs))

	third := backoffDelay(3, sqliteBusy)
	assert.GreaterOrEqual(t, third.Milliseconds(), int64(4*defaultBaseBackoffMs))

	zero := backoffDelay(0, sqliteBusy)
	assert.Less(t, zero.Milliseconds(), int64(2*defaultBaseBackoffMs))
}

func TestRetryEnvDefaults(t *testing.T) {
	t.Setenv(maxRetryAttemptsEnv, "")
	assert.Equal(t, defaultMaxRetryAttempts, getMaxRetryAttempts())

	t.Setenv(maxRetryAttemptsEnv, "7")
	assert.Equal(t, 7, getMaxRetryAttempts())

	t.Setenv(deadlockBackoffMsEnv, "-1")
	assert.Equal(t, defaultDeadlockBackoffMs, getDeadlockBackoffMs())
}

func TestRebind(t *testing.T) {
	q := `SELECT doc FROM entities WHERE global_id = ? AND revision = ?`

	assert.Equal(t, q, sqliteDialect.rebind(q))
	assert.Equal(t, `SELECT doc FROM entities WHERE global_id = $1 AND revision = $2`, postgresDialect.rebind(q))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, postgresDialect.isUniqueViolation(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, postgresDialect.isUniqueViolation(&pgconn.PgError{Code: "40001"}))
	assert.False(t, sqliteDialect.isUniqueViolation(errTestUnknown))
	assert.False(t, sqliteDialect.isUniqueViolation(nil))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", placeholders(0))
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?, ?, ?", placeholders(3))
}

func TestIndexName(t *testing.T) {
	assert.Equal(t, "ux_entities_global_id", indexName(uniqueIndexes[0]))
	assert.Equal(t, "ix_entities_last_seen", indexName(secondaryIndexes[0]))
}

func TestEntityQueryBuildArgs(t *testing.T) {
	q := newEntityQuery("entities", collectionCurrent)
	q.buildArgs(nil)

	stmt, args := q.sql("t.doc", "t.global_id", 0)
	assert.Equal(t, "SELECT t.doc FROM entities t ORDER BY t.global_id", stmt)
	assert.Empty(t, args)

	q = newEntityQuery("entity_history", collectionHistory)
	q.buildArgs(&models.EntityFilter{GlobalIDs: []string{"g1", "g2"}, Hostname: "Web-1"})

	stmt, args = q.sql("t.doc", "t.as_of", 5)
	assert.Contains(t, stmt, "t.global_id IN (?, ?)")
	assert.Contains(t, stmt, "t.pending_delete = ?")
	assert.Contains(t, stmt, "a.as_of = t.as_of")
	assert.Contains(t, stmt, " LIMIT ?")
	assert.Equal(t, []interface{}{"g1", "g2", false, collectionHistory, "hostname", "web-1", 5}, args)
}
