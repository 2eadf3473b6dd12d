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

package record

import (
	"sort"
	"sync"
)

// FieldUsage is the registry's view of a field name that has been written at
// least once for a kind.
type FieldUsage struct {
	Name   string `json:"name"`
	Type   Type   `json:"type"`
	List   bool   `json:"list,omitempty"`
	Format string `json:"format,omitempty"`
	Title  string `json:"title,omitempty"`
	Nested string `json:"nested,omitempty"`
	Raw    bool   `json:"raw,omitempty"`
}

type kindUsage struct {
	fields map[string]FieldUsage
	raw    map[string]struct{}
}

// Registry is the shared schema registry. Records created from it report
// every first use of a field name and raw payload key; the sets only grow.
type Registry struct {
	mu    sync.RWMutex
	kinds map[string]*kindUsage
}

func NewRegistry() *Registry {
	return &Registry{kinds: make(map[string]*kindUsage)}
}

// NewRecord creates an empty record bound to this registry.
func (r *Registry) NewRecord(schema *Schema) *Record {
	return &Record{
		schema:   schema,
		registry: r,
		values:   make(map[string]interface{}),
	}
}

func (r *Registry) usageLocked(kind string) *kindUsage {
	u, ok := r.kinds[kind]
	if !ok {
		u = &kindUsage{
			fields: make(map[string]FieldUsage),
			raw:    make(map[string]struct{}),
		}
		r.kinds[kind] = u
	}

	return u
}

// noteField records a field write. A later declaration with a different type
// replaces the displayed type; values already written are left alone.
func (r *Registry) noteField(kind string, f *Field) {
	usage := usageOf(f)

	r.mu.RLock()
	existing, ok := r.kinds[kind]
	if ok {
		if cur, seen := existing.fields[f.name]; seen && cur == usage {
			r.mu.RUnlock()
			return
		}
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.usageLocked(kind).fields[f.name] = usage
}

func (r *Registry) noteRaw(kind string, paths []string) {
	if len(paths) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.usageLocked(kind)
	for _, p := range paths {
		u.raw[p] = struct{}{}
	}
}

// Seed merges usage loaded from persistent storage.
func (r *Registry) Seed(kind string, usages []FieldUsage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.usageLocked(kind)
	for _, usage := range usages {
		if usage.Raw {
			u.raw[usage.Name] = struct{}{}
			continue
		}

		if _, exists := u.fields[usage.Name]; !exists {
			u.fields[usage.Name] = usage
		}
	}
}

// Fields returns the used field names for a kind, sorted by name.
func (r *Registry) Fields(kind string) []FieldUsage {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.kinds[kind]
	if !ok {
		return nil
	}

	out := make([]FieldUsage, 0, len(u.fields))
	for _, f := range u.fields {
		out = append(out, f)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out
}

// RawFields returns the dotted raw payload paths seen for a kind, sorted.
func (r *Registry) RawFields(kind string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.kinds[kind]
	if !ok {
		return nil
	}

	out := make([]string, 0, len(u.raw))
	for p := range u.raw {
		out = append(out, p)
	}

	sort.Strings(out)

	return out
}

// Usage returns fields and raw paths together, the form persisted by the store.
func (r *Registry) Usage(kind string) []FieldUsage {
	out := r.Fields(kind)
	for _, p := range r.RawFields(kind) {
		out = append(out, FieldUsage{Name: p, Raw: true})
	}

	return out
}

func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.kinds))
	for k := range r.kinds {
		out = append(out, k)
	}

	sort.Strings(out)

	return out
}

func usageOf(f *Field) FieldUsage {
	u := FieldUsage{
		Name:   f.name,
		Type:   f.typ,
		List:   f.list,
		Format: f.format,
		Title:  f.title,
	}

	if f.nested != nil {
		u.Nested = f.nested.Kind()
	}

	return u
}
