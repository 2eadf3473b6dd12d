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

// Package models holds the entity documents and configuration types shared
// across entityradar packages.
package models

import (
	"time"
)

// SourceRef identifies one running collector: the source system and the
// instance of it (for example "ad" / "dc1").
type SourceRef struct {
	Name       string `json:"source_name"`
	InstanceID string `json:"source_instance_id"`
}

// AdapterKey is the uniqueness key of a constituent across all current
// canonical entities.
type AdapterKey struct {
	Source  string `json:"source_name"`
	LocalID string `json:"source_local_id"`
}

func (k AdapterKey) String() string {
	return k.Source + "/" + k.LocalID
}

// AdapterEntity is one source's observation of a real-world object.
type AdapterEntity struct {
	SourceName    string                 `json:"source_name"`
	InstanceID    string                 `json:"source_instance_id"`
	LocalID       string                 `json:"source_local_id"`
	FetchTime     time.Time              `json:"fetch_time"`
	Kind          string                 `json:"kind"`
	Fields        map[string]interface{} `json:"fields,omitempty"`
	Raw           map[string]interface{} `json:"raw,omitempty"`
	PendingDelete bool                   `json:"pending_delete,omitempty"`
}

func (a *AdapterEntity) Key() AdapterKey {
	return AdapterKey{Source: a.SourceName, LocalID: a.LocalID}
}

// Tag is a manually attached label; it never touches constituent data.
type Tag struct {
	Name      string    `json:"name"`
	Value     string    `json:"value,omitempty"`
	Source    string    `json:"source"`
	AppliedAt time.Time `json:"applied_at"`
}

// CanonicalEntity is the merged view of one real-world object.
type CanonicalEntity struct {
	GlobalID  string    `json:"global_id"`
	CreatedAt time.Time `json:"created_at"`
	// Adapters is ordered and append-only apart from in-place replacement.
	Adapters      []AdapterEntity `json:"adapters"`
	Tags          []Tag           `json:"tags,omitempty"`
	FirstSeen     time.Time       `json:"first_seen"`
	LastSeen      time.Time       `json:"last_seen"`
	PendingDelete bool            `json:"pending_delete,omitempty"`
	Revision      int64           `json:"revision"`
}

// Keys lists the adapter keys of every constituent in order.
func (e *CanonicalEntity) Keys() []AdapterKey {
	out := make([]AdapterKey, 0, len(e.Adapters))
	for i := range e.Adapters {
		out = append(out, e.Adapters[i].Key())
	}

	return out
}

// Adapter returns the constituent for key, or nil.
func (e *CanonicalEntity) Adapter(key AdapterKey) *AdapterEntity {
	for i := range e.Adapters {
		if e.Adapters[i].Key() == key {
			return &e.Adapters[i]
		}
	}

	return nil
}

// Tombstone forwards a retired global id to the entity that absorbed it.
type Tombstone struct {
	GlobalID   string    `json:"global_id"`
	MergedInto string    `json:"merged_into"`
	RetiredAt  time.Time `json:"retired_at"`
}

// HistoricalEntity is an immutable copy of a canonical entity as of a
// snapshot time.
type HistoricalEntity struct {
	AsOf   time.Time       `json:"as_of"`
	Entity CanonicalEntity `json:"entity"`
}

// SchemaField is a persisted row of the global field registry.
type SchemaField struct {
	Kind   string `json:"kind"`
	Name   string `json:"name"`
	Type   string `json:"type,omitempty"`
	List   bool   `json:"list,omitempty"`
	Format string `json:"format,omitempty"`
	Title  string `json:"title,omitempty"`
	Nested string `json:"nested,omitempty"`
	Raw    bool   `json:"raw,omitempty"`
}
