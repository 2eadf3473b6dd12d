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
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/carverauto/entityradar/pkg/models"
)

const sqlstateUniqueViolation = "23505"

// dialect captures the few differences between the SQLite and PostgreSQL
// renditions of the store.
type dialect struct {
	name          string
	numberedBinds bool
}

//nolint:gochecknoglobals // immutable dialect descriptors
var (
	sqliteDialect   = dialect{name: models.DriverSQLite}
	postgresDialect = dialect{name: models.DriverPostgres, numberedBinds: true}
)

// rebind rewrites '?' placeholders to '$n' for PostgreSQL. Queries in this
// package never contain literal question marks.
func (d dialect) rebind(query string) string {
	if !d.numberedBinds {
		return query
	}

	var b strings.Builder

	b.Grow(len(query) + 8)

	n := 0

	for _, r := range query {
		if r == '?' {
			n++

			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))

			continue
		}

		b.WriteRune(r)
	}

	return b.String()
}

// isUniqueViolation reports whether err came from a unique or primary key
// constraint.
func (d dialect) isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == sqlstateUniqueViolation
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}

		// without extended result codes only the primary code is set
		return liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT &&
			strings.Contains(liteErr.Error(), "UNIQUE constraint failed")
	}

	return false
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}

	return strings.Repeat("?, ", n-1) + "?"
}
