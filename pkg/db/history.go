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
	"time"

	"github.com/carverauto/entityradar/pkg/models"
	"github.com/carverauto/entityradar/pkg/registry"
)

const snapshotPageSize = 500

// Snapshot copies every current entity into entity_history keyed by
// (global_id, as_of). Existing rows for the same key are left untouched, so
// a snapshot document is never rewritten. It returns the number of rows
// written.
func (db *DB) Snapshot(ctx context.Context, asOf time.Time) (int, error) {
	stamp := toNanos(asOf)
	written := 0

	err := db.inTx(ctx, "snapshot", func(tx *sql.Tx) error {
		written = 0
		after := ""

		for {
			page, err := db.entityPage(ctx, tx, after)
			if err != nil {
				return err
			}

			if len(page) == 0 {
				return nil
			}

			for _, e := range page {
				n, err := db.insertHistory(ctx, tx, e, stamp)
				if err != nil {
					return err
				}

				written += n
			}

			after = page[len(page)-1].GlobalID
		}
	})
	if err != nil {
		return 0, err
	}

	db.logger.Info().
		Time("as_of", asOf).
		Int("entities", written).
		Msg("Snapshot written")

	return written, nil
}

// entityPage reads one keyset page fully so the transaction's connection is
// free for the inserts that follow.
func (db *DB) entityPage(ctx context.Context, tx *sql.Tx, after string) ([]*models.CanonicalEntity, error) {
	rows, err := db.query(ctx, tx,
		`SELECT revision, doc FROM entities WHERE global_id > ? ORDER BY global_id LIMIT ?`,
		after, snapshotPageSize)
	if err != nil {
		return nil, err
	}

	defer func() { _ = rows.Close() }()

	var page []*models.CanonicalEntity

	for rows.Next() {
		var (
			revision int64
			doc      []byte
		)

		if err := rows.Scan(&revision, &doc); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFailedToScan, err)
		}

		e, err := decodeEntity(doc)
		if err != nil {
			return nil, err
		}

		e.Revision = revision
		page = append(page, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}

	return page, nil
}

func (db *DB) insertHistory(ctx context.Context, tx *sql.Tx, e *models.CanonicalEntity, stamp int64) (int, error) {
	snap := registry.Clone(e)
	if !db.snapshotRaw {
		snap = registry.StripRaw(e)
	}

	doc, err := encodeDoc(&snap)
	if err != nil {
		return 0, err
	}

	res, err := db.exec(ctx, tx,
		`INSERT INTO entity_history (global_id, as_of, last_seen, pending_delete, doc)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (global_id, as_of) DO NOTHING`,
		snap.GlobalID, stamp, toNanos(snap.LastSeen), snap.PendingDelete, doc)
	if err != nil {
		return 0, fmt.Errorf("%w: history %s: %w", ErrFailedToInsert, snap.GlobalID, err)
	}

	n, err := res.RowsAffected()
	if err != nil || n == 0 {
		return 0, nil
	}

	if err := db.insertAttrs(ctx, tx, collectionHistory, &snap, stamp); err != nil {
		return 0, err
	}

	return 1, nil
}

// QueryHistory returns snapshots matching filter ordered by as_of then
// creation. Pending-delete entities are part of a snapshot and are returned
// unless the filter narrows them out by other predicates.
func (db *DB) QueryHistory(ctx context.Context, filter *models.HistoryFilter) ([]models.HistoricalEntity, error) {
	var ef models.EntityFilter
	if filter != nil {
		ef = filter.EntityFilter
	}

	ef.IncludePendingDelete = true

	q := newEntityQuery("entity_history", collectionHistory)
	q.buildArgs(&ef)

	if filter != nil && !filter.AsOf.IsZero() {
		q.add("t.as_of = ?", toNanos(filter.AsOf))
	}

	stmt, args := q.sql("t.as_of, t.doc", "t.as_of, t.global_id", sqlLimit(&ef))

	rows, err := db.query(ctx, db.conn, stmt, args...)
	if err != nil {
		return nil, err
	}

	defer func() { _ = rows.Close() }()

	var out []models.HistoricalEntity

	for rows.Next() {
		var (
			asOf int64
			doc  []byte
		)

		if err := rows.Scan(&asOf, &doc); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFailedToScan, err)
		}

		e, err := decodeEntity(doc)
		if err != nil {
			return nil, err
		}

		if !registry.Matches(e, &ef) {
			continue
		}

		out = append(out, models.HistoricalEntity{AsOf: fromNanos(asOf), Entity: *e})

		if ef.Limit > 0 && len(out) >= ef.Limit {
			break
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}

	return out, nil
}
