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

	"github.com/carverauto/entityradar/pkg/models"
	"github.com/carverauto/entityradar/pkg/registry"
)

// ApplyLinks merges every canonical entity owning one of keys into the
// survivor chosen by registry.Merge. Retired ids get a tombstone, their
// adapter keys are repointed and tombstones that pointed at them are
// shortened to the survivor. Re-applying an applied link set finds a single
// owner and changes nothing.
func (db *DB) ApplyLinks(ctx context.Context, keys []models.AdapterKey) (*models.CanonicalEntity, error) {
	var out *models.CanonicalEntity

	err := db.inTx(ctx, "apply_links", func(tx *sql.Tx) error {
		out = nil

		owners := make([]string, 0, len(keys))
		seen := make(map[string]struct{}, len(keys))

		for _, key := range keys {
			id, err := db.ownerOf(ctx, tx, key)
			if err != nil {
				return err
			}

			if id == "" {
				db.logger.Debug().
					Str("source", key.Source).
					Str("local_id", key.LocalID).
					Msg("Ignoring link to unknown adapter")

				continue
			}

			if _, dup := seen[id]; dup {
				continue
			}

			seen[id] = struct{}{}
			owners = append(owners, id)
		}

		entities := make([]*models.CanonicalEntity, 0, len(owners))

		for _, id := range owners {
			e, err := db.loadEntity(ctx, tx, id)
			if err != nil {
				return err
			}

			entities = append(entities, e)
		}

		if len(entities) < 2 {
			if len(entities) == 1 {
				out = entities[0]
			}

			return nil
		}

		revisions := make(map[string]int64, len(entities))
		for _, e := range entities {
			revisions[e.GlobalID] = e.Revision
		}

		survivor, retired := registry.Merge(entities)

		if err := db.updateEntity(ctx, tx, survivor); err != nil {
			return err
		}

		retiredAt := toNanos(db.now())

		for _, id := range retired {
			if err := db.retire(ctx, tx, id, revisions[id], survivor.GlobalID, retiredAt); err != nil {
				return err
			}
		}

		db.logger.Info().
			Str("global_id", survivor.GlobalID).
			Strs("retired", retired).
			Int("constituents", len(survivor.Adapters)).
			Msg("Merged canonical entities")

		out = survivor

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (db *DB) retire(ctx context.Context, tx *sql.Tx, id string, revision int64, into string, retiredAt int64) error {
	res, err := db.exec(ctx, tx, `DELETE FROM entities WHERE global_id = ? AND revision = ?`, id, revision)
	if err != nil {
		return fmt.Errorf("%w: retire %s: %w", ErrFailedToUpdate, id, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: entity %s changed concurrently", ErrConstraint, id)
	}

	statements := []struct {
		query string
		args  []interface{}
	}{
		{`DELETE FROM entity_attrs WHERE collection = ? AND global_id = ?`, []interface{}{collectionCurrent, id}},
		{`INSERT INTO entity_tombstones (global_id, merged_into, retired_at) VALUES (?, ?, ?)`, []interface{}{id, into, retiredAt}},
		{`UPDATE adapter_keys SET global_id = ? WHERE global_id = ?`, []interface{}{into, id}},
		{`UPDATE entity_tombstones SET merged_into = ? WHERE merged_into = ?`, []interface{}{into, id}},
	}

	for _, s := range statements {
		if _, err := db.exec(ctx, tx, s.query, s.args...); err != nil {
			return fmt.Errorf("%w: retire %s: %w", ErrFailedToUpdate, id, err)
		}
	}

	return nil
}
