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
	"errors"
	"fmt"
	"strings"

	"github.com/carverauto/entityradar/pkg/models"
	"github.com/carverauto/entityradar/pkg/registry"
)

// entityQuery builds the indexed part of a filter into SQL. The remaining
// predicates (constituent fields) are applied by registry.Matches.
type entityQuery struct {
	table      string
	collection string
	where      []string
	args       []interface{}
}

func newEntityQuery(table, collection string) *entityQuery {
	return &entityQuery{table: table, collection: collection}
}

func (q *entityQuery) add(clause string, args ...interface{}) {
	q.where = append(q.where, clause)
	q.args = append(q.args, args...)
}

// buildArgs translates filter predicates that have an index.
func (q *entityQuery) buildArgs(f *models.EntityFilter) {
	if f == nil {
		return
	}

	if len(f.GlobalIDs) > 0 {
		ids := make([]interface{}, 0, len(f.GlobalIDs))
		for _, id := range f.GlobalIDs {
			ids = append(ids, id)
		}

		q.add("t.global_id IN ("+placeholders(len(ids))+")", ids...)
	}

	if f.LastSeenAfter != nil {
		q.add("t.last_seen > ?", toNanos(*f.LastSeenAfter))
	}

	if f.LastSeenBefore != nil {
		q.add("t.last_seen < ?", toNanos(*f.LastSeenBefore))
	}

	if !f.IncludePendingDelete {
		q.add("t.pending_delete = ?", false)
	}

	asOf := "0"
	if q.collection == collectionHistory {
		asOf = "t.as_of"
	}

	for _, a := range registry.FilterAttrs(f) {
		q.add(`EXISTS (SELECT 1 FROM entity_attrs a WHERE a.collection = ? AND a.global_id = t.global_id
			AND a.as_of = `+asOf+` AND a.attr = ? AND a.value = ?)`, q.collection, a.Name, a.Value)
	}
}

func (q *entityQuery) sql(columns, orderBy string, limit int) (string, []interface{}) {
	var b strings.Builder

	fmt.Fprintf(&b, "SELECT %s FROM %s t", columns, q.table)

	if len(q.where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(q.where, " AND "))
	}

	b.WriteString(" ORDER BY ")
	b.WriteString(orderBy)

	args := append([]interface{}(nil), q.args...)

	if limit > 0 {
		b.WriteString(" LIMIT ?")

		args = append(args, limit)
	}

	return b.String(), args
}

// sqlLimit pushes the limit down only when every predicate ran in SQL.
func sqlLimit(f *models.EntityFilter) int {
	if f == nil || len(f.Fields) > 0 {
		return 0
	}

	return f.Limit
}

// Query returns current canonical entities matching filter, oldest first.
// Retired global ids in the filter are resolved to their survivors.
func (db *DB) Query(ctx context.Context, filter *models.EntityFilter) ([]*models.CanonicalEntity, error) {
	if filter != nil && len(filter.GlobalIDs) > 0 {
		resolved, err := db.resolveAll(ctx, filter.GlobalIDs)
		if err != nil {
			return nil, err
		}

		f := *filter
		f.GlobalIDs = resolved
		filter = &f
	}

	q := newEntityQuery("entities", collectionCurrent)
	q.buildArgs(filter)

	stmt, args := q.sql("t.revision, t.doc", "t.created_at, t.global_id", sqlLimit(filter))

	rows, err := db.query(ctx, db.conn, stmt, args...)
	if err != nil {
		return nil, err
	}

	defer func() { _ = rows.Close() }()

	var out []*models.CanonicalEntity

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

		if !registry.Matches(e, filter) {
			continue
		}

		out = append(out, e)

		if filter != nil && filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}

	return out, nil
}

func (db *DB) resolveAll(ctx context.Context, ids []string) ([]string, error) {
	out := make([]string, 0, len(ids))

	for _, id := range ids {
		resolved, err := db.ResolveID(ctx, id)
		if errors.Is(err, ErrEntityNotFound) {
			out = append(out, id)
			continue
		}

		if err != nil {
			return nil, err
		}

		out = append(out, resolved)
	}

	return out, nil
}
