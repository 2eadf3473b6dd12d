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
	"strings"

	"github.com/carverauto/entityradar/pkg/logger"
)

const (
	collectionCurrent = "current"
	collectionHistory = "history"
)

// docTypePlaceholder is replaced by the dialect's document column type.
const docTypePlaceholder = "{{DOC}}"

//nolint:gochecknoglobals // schema statements
var tableStatements = []string{
	`CREATE TABLE IF NOT EXISTS entities (
		global_id      TEXT PRIMARY KEY,
		created_at     BIGINT NOT NULL,
		first_seen     BIGINT NOT NULL,
		last_seen      BIGINT NOT NULL,
		pending_delete BOOLEAN NOT NULL DEFAULT FALSE,
		revision       BIGINT NOT NULL,
		doc            {{DOC}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS entity_history (
		global_id      TEXT NOT NULL,
		as_of          BIGINT NOT NULL,
		last_seen      BIGINT NOT NULL,
		pending_delete BOOLEAN NOT NULL DEFAULT FALSE,
		doc            {{DOC}} NOT NULL,
		PRIMARY KEY (global_id, as_of)
	)`,
	`CREATE TABLE IF NOT EXISTS entity_tombstones (
		global_id   TEXT PRIMARY KEY,
		merged_into TEXT NOT NULL,
		retired_at  BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS adapter_keys (
		source_name TEXT NOT NULL,
		local_id    TEXT NOT NULL,
		global_id   TEXT NOT NULL,
		PRIMARY KEY (source_name, local_id)
	)`,
	`CREATE TABLE IF NOT EXISTS entity_attrs (
		collection TEXT NOT NULL,
		global_id  TEXT NOT NULL,
		as_of      BIGINT NOT NULL,
		attr       TEXT NOT NULL,
		value      TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS entity_filters (
		name TEXT PRIMARY KEY,
		doc  {{DOC}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS schema_fields (
		kind        TEXT NOT NULL,
		name        TEXT NOT NULL,
		raw         BOOLEAN NOT NULL,
		field_type  TEXT NOT NULL DEFAULT '',
		is_list     BOOLEAN NOT NULL DEFAULT FALSE,
		format      TEXT NOT NULL DEFAULT '',
		title       TEXT NOT NULL DEFAULT '',
		nested_kind TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (kind, name, raw)
	)`,
}

// uniqueIndexes back the store's uniqueness invariants. Failing to ensure any
// of them blocks startup.
//
//nolint:gochecknoglobals // schema statements
var uniqueIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_entities_global_id ON entities (global_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_adapter_keys_source_local ON adapter_keys (source_name, local_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_entity_history_global_as_of ON entity_history (global_id, as_of)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_entity_tombstones_global_id ON entity_tombstones (global_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_entity_attrs_row ON entity_attrs (collection, global_id, as_of, attr, value)`,
}

// secondaryIndexes only affect query latency; failures are logged.
//
//nolint:gochecknoglobals // schema statements
var secondaryIndexes = []string{
	`CREATE INDEX IF NOT EXISTS ix_entities_last_seen ON entities (last_seen)`,
	`CREATE INDEX IF NOT EXISTS ix_entities_created ON entities (created_at, global_id)`,
	`CREATE INDEX IF NOT EXISTS ix_entity_history_last_seen ON entity_history (last_seen)`,
	`CREATE INDEX IF NOT EXISTS ix_entity_history_as_of ON entity_history (as_of)`,
	`CREATE INDEX IF NOT EXISTS ix_entity_attrs_lookup ON entity_attrs (collection, attr, value)`,
	`CREATE INDEX IF NOT EXISTS ix_adapter_keys_global_id ON adapter_keys (global_id)`,
	`CREATE INDEX IF NOT EXISTS ix_entity_tombstones_merged_into ON entity_tombstones (merged_into)`,
}

// RunMigrations creates the store's tables and indexes if they do not exist.
func RunMigrations(ctx context.Context, conn *sql.DB, d dialect, log logger.Logger) error {
	log.Info().Str("driver", d.name).Msg("Ensuring entity store schema is applied")

	docType := "TEXT"
	if d.name == postgresDialect.name {
		docType = "JSONB"
	}

	for i, stmt := range tableStatements {
		stmt = strings.ReplaceAll(stmt, docTypePlaceholder, docType)

		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: table statement %d: %w", ErrFailedToInit, i+1, err)
		}
	}

	for _, stmt := range uniqueIndexes {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrUniqueIndex, indexName(stmt), err)
		}
	}

	for _, stmt := range secondaryIndexes {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			log.Warn().
				Err(err).
				Str("index", indexName(stmt)).
				Msg("Failed to create secondary index; queries will be slower")
		}
	}

	log.Info().
		Int("tables", len(tableStatements)).
		Int("unique_indexes", len(uniqueIndexes)).
		Int("secondary_indexes", len(secondaryIndexes)).
		Msg("Entity store schema applied")

	return nil
}

// indexName pulls the index name out of a CREATE INDEX statement for logs.
func indexName(stmt string) string {
	fields := strings.Fields(stmt)
	for i, f := range fields {
		if strings.EqualFold(f, "EXISTS") && i+1 < len(fields) {
			return fields[i+1]
		}
	}

	return stmt
}
