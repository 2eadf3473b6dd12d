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
	"encoding/json"
	"errors"
	"fmt"

	"github.com/carverauto/entityradar/pkg/models"
)

// SetFilter stores a named candidate filter, replacing any previous one. A
// nil filter removes it.
func (db *DB) SetFilter(ctx context.Context, name string, filter *models.EntityFilter) error {
	if name == "" {
		return ErrFilterNameRequired
	}

	return db.inTx(ctx, "set_filter", func(tx *sql.Tx) error {
		if filter == nil {
			_, err := db.exec(ctx, tx, `DELETE FROM entity_filters WHERE name = ?`, name)
			return err
		}

		doc, err := encodeDoc(filter)
		if err != nil {
			return err
		}

		_, err = db.exec(ctx, tx,
			`INSERT INTO entity_filters (name, doc) VALUES (?, ?)
			ON CONFLICT (name) DO UPDATE SET doc = excluded.doc`, name, doc)
		if err != nil {
			return fmt.Errorf("%w: filter %s: %w", ErrFailedToInsert, name, err)
		}

		return nil
	})
}

// GetFilter returns the named filter, or nil when none is stored.
func (db *DB) GetFilter(ctx context.Context, name string) (*models.EntityFilter, error) {
	var doc []byte

	err := db.queryRow(ctx, db.conn, `SELECT doc FROM entity_filters WHERE name = ?`, name).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("%w: filter %s: %w", ErrFailedToQuery, name, err)
	}

	var f models.EntityFilter
	if err := json.Unmarshal(doc, &f); err != nil {
		return nil, fmt.Errorf("%w: filter %s: %w", ErrFailedToScan, name, err)
	}

	return &f, nil
}

// RecordSchema upserts schema registry rows. Rows are never removed, so the
// persisted field set only grows.
func (db *DB) RecordSchema(ctx context.Context, fields []models.SchemaField) error {
	if len(fields) == 0 {
		return nil
	}

	return db.inTx(ctx, "record_schema", func(tx *sql.Tx) error {
		for _, f := range fields {
			if f.Kind == "" {
				return ErrSchemaKindRequired
			}

			if _, err := db.exec(ctx, tx,
				`INSERT INTO schema_fields (kind, name, raw, field_type, is_list, format, title, nested_kind)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (kind, name, raw) DO UPDATE SET
					field_type = excluded.field_type,
					is_list = excluded.is_list,
					format = excluded.format,
					title = excluded.title,
					nested_kind = excluded.nested_kind`,
				f.Kind, f.Name, f.Raw, f.Type, f.List, f.Format, f.Title, f.Nested); err != nil {
				return fmt.Errorf("%w: schema %s.%s: %w", ErrFailedToInsert, f.Kind, f.Name, err)
			}
		}

		return nil
	})
}

// GetSchema returns the persisted schema rows for kind: declared fields first,
// then raw payload paths, each sorted by name.
func (db *DB) GetSchema(ctx context.Context, kind string) ([]models.SchemaField, error) {
	if kind == "" {
		return nil, ErrSchemaKindRequired
	}

	rows, err := db.query(ctx, db.conn,
		`SELECT name, raw, field_type, is_list, format, title, nested_kind
		FROM schema_fields WHERE kind = ? ORDER BY raw, name`, kind)
	if err != nil {
		return nil, err
	}

	defer func() { _ = rows.Close() }()

	var out []models.SchemaField

	for rows.Next() {
		f := models.SchemaField{Kind: kind}
		if err := rows.Scan(&f.Name, &f.Raw, &f.Type, &f.List, &f.Format, &f.Title, &f.Nested); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFailedToScan, err)
		}

		out = append(out, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}

	return out, nil
}
