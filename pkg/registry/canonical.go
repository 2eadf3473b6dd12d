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

// Package registry holds the pure document transformations behind the entity
// store: creating canonical entities, replacing constituents, merging and
// deriving index attributes. Nothing here touches storage.
package registry

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/entityradar/pkg/models"
)

// NewGlobalID returns a fresh time-ordered global id.
func NewGlobalID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}

// NewCanonical creates a canonical entity with a single constituent.
func NewCanonical(adapter *models.AdapterEntity, now time.Time) *models.CanonicalEntity {
	e := &models.CanonicalEntity{
		GlobalID:  NewGlobalID(),
		CreatedAt: now.UTC(),
		Adapters:  []models.AdapterEntity{*adapter},
	}

	RecomputeDerived(e)

	return e
}

// ReplaceAdapter swaps the constituent with the same key in place, keeping
// its position. It reports false when the entity has no such constituent.
func ReplaceAdapter(e *models.CanonicalEntity, adapter *models.AdapterEntity) bool {
	for i := range e.Adapters {
		if e.Adapters[i].Key() == adapter.Key() {
			e.Adapters[i] = *adapter
			RecomputeDerived(e)

			return true
		}
	}

	return false
}

// RecomputeDerived refreshes first/last seen and the entity-level
// pending_delete flag from the constituents.
func RecomputeDerived(e *models.CanonicalEntity) {
	e.FirstSeen = time.Time{}
	e.LastSeen = time.Time{}

	pending := len(e.Adapters) > 0

	for i := range e.Adapters {
		ft := e.Adapters[i].FetchTime
		if e.FirstSeen.IsZero() || ft.Before(e.FirstSeen) {
			e.FirstSeen = ft
		}

		if ft.After(e.LastSeen) {
			e.LastSeen = ft
		}

		if !e.Adapters[i].PendingDelete {
			pending = false
		}
	}

	e.PendingDelete = pending
}

// SortBySurvivorship orders entities so the survivor of a merge comes first:
// earliest creation, then lexically smallest global id.
func SortBySurvivorship(entities []*models.CanonicalEntity) {
	sort.SliceStable(entities, func(i, j int) bool {
		a, b := entities[i], entities[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}

		return a.GlobalID < b.GlobalID
	})
}

// Merge folds entities into the survivor. The input slice is reordered.
// Constituents keep their order within each entity and entities are
// concatenated in survivorship order; a duplicated (source, local id) keeps
// its first position and the most recently fetched value. Tags are unioned.
// The survivor is returned as a new document; retired lists the ids that
// must be tombstoned.
func Merge(entities []*models.CanonicalEntity) (survivor *models.CanonicalEntity, retired []string) {
	if len(entities) == 0 {
		return nil, nil
	}

	SortBySurvivorship(entities)

	head := entities[0]
	merged := &models.CanonicalEntity{
		GlobalID:  head.GlobalID,
		CreatedAt: head.CreatedAt,
		Revision:  head.Revision,
	}

	position := make(map[models.AdapterKey]int)
	tagSeen := make(map[string]struct{})

	for _, e := range entities {
		if e.GlobalID != head.GlobalID {
			retired = append(retired, e.GlobalID)
		}

		for _, a := range e.Adapters {
			if idx, ok := position[a.Key()]; ok {
				if !a.FetchTime.Before(merged.Adapters[idx].FetchTime) {
					merged.Adapters[idx] = a
				}

				continue
			}

			position[a.Key()] = len(merged.Adapters)
			merged.Adapters = append(merged.Adapters, a)
		}

		for _, tag := range e.Tags {
			key := tag.Name + "\x00" + tag.Value + "\x00" + tag.Source
			if _, dup := tagSeen[key]; dup {
				continue
			}

			tagSeen[key] = struct{}{}
			merged.Tags = append(merged.Tags, tag)
		}
	}

	RecomputeDerived(merged)

	return merged, retired
}

// AddTag appends a tag unless an identical (name, value, source) is present.
// It reports whether the entity changed.
func AddTag(e *models.CanonicalEntity, tag models.Tag) bool {
	for _, existing := range e.Tags {
		if existing.Name == tag.Name && existing.Value == tag.Value && existing.Source == tag.Source {
			return false
		}
	}

	e.Tags = append(e.Tags, tag)

	return true
}

// StripRaw returns a deep-enough copy of e without raw payloads, the form
// stored in historical snapshots.
func StripRaw(e *models.CanonicalEntity) models.CanonicalEntity {
	out := Clone(e)
	for i := range out.Adapters {
		out.Adapters[i].Raw = nil
	}

	return out
}

// Clone copies the entity and its slices. Field and raw maps are shared.
func Clone(e *models.CanonicalEntity) models.CanonicalEntity {
	out := *e
	out.Adapters = append([]models.AdapterEntity(nil), e.Adapters...)

	if e.Tags != nil {
		out.Tags = append([]models.Tag(nil), e.Tags...)
	}

	return out
}
