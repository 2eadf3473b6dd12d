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

package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/carverauto/entityradar/pkg/models"
	"github.com/carverauto/entityradar/pkg/record"
)

// Indexed attribute names.
const (
	AttrHostname = "hostname"
	AttrIP       = "ip"
	AttrMAC      = "mac"
	AttrTag      = "tag"
	AttrSource   = "source"
)

// Attr is one secondary index row for an entity.
type Attr struct {
	Name  string
	Value string
}

// NormalizeHostname lower-cases and trims a hostname for index lookups.
func NormalizeHostname(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

// NormalizeMAC lower-cases a MAC and unifies separators to ':'.
func NormalizeMAC(m string) string {
	m = strings.ToLower(strings.TrimSpace(m))
	return strings.ReplaceAll(m, "-", ":")
}

// IndexAttrs extracts the deduplicated, sorted index rows for an entity.
func IndexAttrs(e *models.CanonicalEntity) []Attr {
	seen := make(map[Attr]struct{})

	add := func(name, value string) {
		if value == "" {
			return
		}

		seen[Attr{Name: name, Value: value}] = struct{}{}
	}

	for i := range e.Adapters {
		a := &e.Adapters[i]
		add(AttrSource, a.SourceName)

		for _, h := range record.StringsOf(a.Fields[record.FieldHostname]) {
			add(AttrHostname, NormalizeHostname(h))
		}

		for _, ip := range record.StringsOf(a.Fields[record.FieldIPs]) {
			add(AttrIP, strings.TrimSpace(ip))
		}

		for _, mac := range record.StringsOf(a.Fields[record.FieldMACs]) {
			add(AttrMAC, NormalizeMAC(mac))
		}
	}

	for _, tag := range e.Tags {
		add(AttrTag, tag.Name)
	}

	out := make([]Attr, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}

		return out[i].Value < out[j].Value
	})

	return out
}

// FilterAttrs returns the indexed predicates of a filter in normalized form.
func FilterAttrs(f *models.EntityFilter) []Attr {
	if f == nil {
		return nil
	}

	var out []Attr

	if f.Source != "" {
		out = append(out, Attr{AttrSource, f.Source})
	}

	if f.Hostname != "" {
		out = append(out, Attr{AttrHostname, NormalizeHostname(f.Hostname)})
	}

	if f.IP != "" {
		out = append(out, Attr{AttrIP, strings.TrimSpace(f.IP)})
	}

	if f.MAC != "" {
		out = append(out, Attr{AttrMAC, NormalizeMAC(f.MAC)})
	}

	if f.Tag != "" {
		out = append(out, Attr{AttrTag, f.Tag})
	}

	return out
}

// Matches evaluates every predicate of f against e. Stores use it after an
// index lookup so results are exact regardless of which index narrowed them.
func Matches(e *models.CanonicalEntity, f *models.EntityFilter) bool {
	if f == nil {
		return true
	}

	if e.PendingDelete && !f.IncludePendingDelete {
		return false
	}

	if len(f.GlobalIDs) > 0 && !contains(f.GlobalIDs, e.GlobalID) {
		return false
	}

	if f.LastSeenAfter != nil && !e.LastSeen.After(*f.LastSeenAfter) {
		return false
	}

	if f.LastSeenBefore != nil && !e.LastSeen.Before(*f.LastSeenBefore) {
		return false
	}

	if want := FilterAttrs(f); len(want) > 0 {
		have := make(map[Attr]struct{})
		for _, a := range IndexAttrs(e) {
			have[a] = struct{}{}
		}

		for _, a := range want {
			if _, ok := have[a]; !ok {
				return false
			}
		}
	}

	for name, value := range f.Fields {
		if !anyAdapterHas(e, name, value) {
			return false
		}
	}

	return true
}

func anyAdapterHas(e *models.CanonicalEntity, name, want string) bool {
	for i := range e.Adapters {
		v, ok := e.Adapters[i].Fields[name]
		if !ok {
			continue
		}

		if items, isList := v.([]interface{}); isList {
			for _, item := range items {
				if fmt.Sprint(item) == want {
					return true
				}
			}

			continue
		}

		if fmt.Sprint(v) == want {
			return true
		}
	}

	return false
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}

	return false
}
