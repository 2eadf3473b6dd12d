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
	"time"

	"github.com/carverauto/entityradar/pkg/models"
	"github.com/carverauto/entityradar/pkg/registry"
)

const maxTombstoneHops = 64

// UpsertAdapterEntity creates or refreshes the constituent for
// (source, local id). All writes for one canonical entity happen in one
// transaction guarded by the entity revision.
func (db *DB) UpsertAdapterEntity(ctx context.Context, adapter *models.AdapterEntity) (*models.CanonicalEntity, error) {
	if adapter == nil {
		return nil, ErrAdapterNil
	}

	if adapter.SourceName == "" || adapter.LocalID == "" {
		return nil, ErrAdapterKeyRequired
	}

	var out *models.CanonicalEntity

	err := db.inTx(ctx, "upsert_adapter_entity", func(tx *sql.Tx) error {
		globalID, err := db.ownerOf(ctx, tx, adapter.Key())
		if err != nil {
			return err
		}

		if globalID == "" {
			e := registry.NewCanonical(adapter, db.now())
			if err := db.insertEntity(ctx, tx, e); err != nil {
				return err
			}

			if _, err := db.exec(ctx, tx,
				`INSERT INTO adapter_keys (source_name, local_id, global_id) VALUES (?, ?, ?)`,
				adapter.SourceName, adapter.LocalID, e.GlobalID); err != nil {
				return fmt.Errorf("%w: adapter key: %w", ErrFailedToInsert, err)
			}

			out = e

			return nil
		}

		e, err := db.loadEntity(ctx, tx, globalID)
		if err != nil {
			return err
		}

		if !registry.ReplaceAdapter(e, adapter) {
			// the key row points here but the document lost the constituent
			db.logger.Warn().
				Str("global_id", globalID).
				Str("source", adapter.SourceName).
				Str("local_id", adapter.LocalID).
				Msg("Adapter key without constituent; re-attaching")

			e.Adapters = append(e.Adapters, *adapter)
			registry.RecomputeDerived(e)
		}

		if err := db.updateEntity(ctx, tx, e); err != nil {
			return err
		}

		out = e

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// GetEntity returns the current entity for globalID, following tombstones.
func (db *DB) GetEntity(ctx context.Context, globalID string) (*models.CanonicalEntity, error) {
	id, err := db.ResolveID(ctx, globalID)
	if err != nil {
		return nil, err
	}

	return db.loadEntity(ctx, db.conn, id)
}

// ResolveID follows merge tombstones to the current global id.
func (db *DB) ResolveID(ctx context.Context, globalID string) (string, error) {
	if globalID == "" {
		return "", ErrGlobalIDRequired
	}

	id := globalID

	for hop := 0; hop < maxTombstoneHops; hop++ {
		var exists int

		err := db.queryRow(ctx, db.conn, `SELECT 1 FROM entities WHERE global_id = ?`, id).Scan(&exists)
		if err == nil {
			return id, nil
		}

		if !errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: %w", ErrFailedToQuery, err)
		}

		var next string

		err = db.queryRow(ctx, db.conn, `SELECT merged_into FROM entity_tombstones WHERE global_id = ?`, id).Scan(&next)
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: %s", ErrEntityNotFound, globalID)
		}

		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrFailedToQuery, err)
		}

		id = next
	}

	return "", fmt.Errorf("%w: %s", ErrTombstoneLoop, globalID)
}

// AddTag attaches a tag without touching constituent data.
func (db *DB) AddTag(ctx context.Context, globalID string, tag models.Tag) (*models.CanonicalEntity, error) {
	if tag.Name == "" {
		return nil, ErrTagNameRequired
	}

	id, err := db.ResolveID(ctx, globalID)
	if err != nil {
		return nil, err
	}

	if tag.AppliedAt.IsZero() {
		tag.AppliedAt = db.now().UTC()
	}

	var out *models.CanonicalEntity

	err = db.inTx(ctx, "add_tag", func(tx *sql.Tx) error {
		e, err := db.loadEntity(ctx, tx, id)
		if err != nil {
			return err
		}

		if registry.AddTag(e, tag) {
			if err := db.updateEntity(ctx, tx, e); err != nil {
				return err
			}
		}

		out = e

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// MarkMissing flags constituents of source that were not fetched since
// seenSince, skipping the local ids in reported. Entities are never deleted.
func (db *DB) MarkMissing(ctx context.Context, source models.SourceRef, seenSince time.Time, reported []string) (int, error) {
	keep := make(map[string]struct{}, len(reported))
	for _, id := range reported {
		keep[id] = struct{}{}
	}

	rows, err := db.query(ctx, db.conn,
		`SELECT DISTINCT global_id FROM adapter_keys WHERE source_name = ?`, source.Name)
	if err != nil {
		return 0, err
	}

	ids, err := scanStrings(rows)
	if err != nil {
		return 0, err
	}

	flagged := 0

	for _, id := range ids {
		changed := 0

		err := db.inTx(ctx, "mark_missing", func(tx *sql.Tx) error {
			changed = 0

			e, err := db.loadEntity(ctx, tx, id)
			if err != nil {
				return err
			}

			for i := range e.Adapters {
				a := &e.Adapters[i]
				if a.SourceName != source.Name || a.PendingDelete || !a.FetchTime.Before(seenSince) {
					continue
				}

				if source.InstanceID != "" && a.InstanceID != source.InstanceID {
					continue
				}

				if _, ok := keep[a.LocalID]; ok {
					continue
				}

				a.PendingDelete = true
				changed++
			}

			if changed == 0 {
				return nil
			}

			registry.RecomputeDerived(e)

			return db.updateEntity(ctx, tx, e)
		})
		if err != nil && !errors.Is(err, ErrEntityNotFound) {
			return flagged, err
		}

		if err == nil {
			flagged += changed
		}
	}

	return flagged, nil
}

func (db *DB) ownerOf(ctx context.Context, q queryer, key models.AdapterKey) (string, error) {
	var globalID string

	err := db.queryRow(ctx, q,
		`SELECT global_id FROM adapter_keys WHERE source_name = ? AND local_id = ?`,
		key.Source, key.LocalID).Scan(&globalID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}

	if err != nil {
		return "", fmt.Errorf("%w: adapter key: %w", ErrFailedToQuery, err)
	}

	return globalID, nil
}

func (db *DB) loadEntity(ctx context.Context, q queryer, globalID string) (*models.CanonicalEntity, error) {
	var (
		revision int64
		doc      []byte
	)

	err := db.queryRow(ctx, q, `SELECT revision, doc FROM entities WHERE global_id = ?`, globalID).Scan(&revision, &doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, globalID)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: entity: %w", ErrFailedToQuery, err)
	}

	e, err := decodeEntity(doc)
	if err != nil {
		return nil, err
	}

	e.Revision = revision

	return e, nil
}

func (db *DB) insertEntity(ctx context.Context, tx *sql.Tx, e *models.CanonicalEntity) error {
	e.Revision = 1

	doc, err := encodeDoc(e)
	if err != nil {
		return err
	}

	if _, err := db.exec(ctx, tx,
		`INSERT INTO entities (global_id, created_at, first_seen, last_seen, pending_delete, revision, doc)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.GlobalID, toNanos(e.CreatedAt), toNanos(e.FirstSeen), toNanos(e.LastSeen),
		e.PendingDelete, e.Revision, doc); err != nil {
		return fmt.Errorf("%w: entity: %w", ErrFailedToInsert, err)
	}

	return db.writeAttrs(ctx, tx, e)
}

// updateEntity writes e if nobody else changed it since it was loaded.
func (db *DB) updateEntity(ctx context.Context, tx *sql.Tx, e *models.CanonicalEntity) error {
	expected := e.Revision
	e.Revision = expected + 1

	doc, err := encodeDoc(e)
	if err != nil {
		return err
	}

	res, err := db.exec(ctx, tx,
		`UPDATE entities SET first_seen = ?, last_seen = ?, pending_delete = ?, revision = ?, doc = ?
		WHERE global_id = ? AND revision = ?`,
		toNanos(e.FirstSeen), toNanos(e.LastSeen), e.PendingDelete, e.Revision, doc,
		e.GlobalID, expected)
	if err != nil {
		return fmt.Errorf("%w: entity: %w", ErrFailedToUpdate, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: entity %s changed concurrently (revision %d)", ErrConstraint, e.GlobalID, expected)
	}

	return db.writeAttrs(ctx, tx, e)
}

// writeAttrs replaces the current-collection index rows of e.
func (db *DB) writeAttrs(ctx context.Context, tx *sql.Tx, e *models.CanonicalEntity) error {
	if _, err := db.exec(ctx, tx,
		`DELETE FROM entity_attrs WHERE collection = ? AND global_id = ?`,
		collectionCurrent, e.GlobalID); err != nil {
		return fmt.Errorf("%w: attrs: %w", ErrFailedToUpdate, err)
	}

	return db.insertAttrs(ctx, tx, collectionCurrent, e, 0)
}

func (db *DB) insertAttrs(ctx context.Context, tx *sql.Tx, collection string, e *models.CanonicalEntity, asOf int64) error {
	for _, a := range registry.IndexAttrs(e) {
		if _, err := db.exec(ctx, tx,
			`INSERT INTO entity_attrs (collection, global_id, as_of, attr, value) VALUES (?, ?, ?, ?, ?)`,
			collection, e.GlobalID, asOf, a.Name, a.Value); err != nil {
			return fmt.Errorf("%w: attr %s: %w", ErrFailedToInsert, a.Name, err)
		}
	}

	return nil
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	defer func() { _ = rows.Close() }()

	var out []string

	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFailedToScan, err)
		}

		out = append(out, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}

	return out, nil
}
