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

package models

import "time"

// DefaultFilterName is the filter document used for unscoped correlation passes.
const DefaultFilterName = "default"

// EntityFilter selects canonical entities. All set predicates must match.
// Predicates on constituent fields match when any constituent matches.
type EntityFilter struct {
	GlobalIDs      []string          `json:"global_ids,omitempty"`
	Source         string            `json:"source,omitempty"`
	Hostname       string            `json:"hostname,omitempty"`
	IP             string            `json:"ip,omitempty"`
	MAC            string            `json:"mac,omitempty"`
	Tag            string            `json:"tag,omitempty"`
	LastSeenAfter  *time.Time        `json:"last_seen_after,omitempty"`
	LastSeenBefore *time.Time        `json:"last_seen_before,omitempty"`
	Fields         map[string]string `json:"fields,omitempty"`
	// IncludePendingDelete keeps entities whose sources stopped reporting.
	IncludePendingDelete bool `json:"include_pending_delete,omitempty"`
	Limit                int  `json:"limit,omitempty"`
}

// IsEmpty reports whether the filter selects everything.
func (f *EntityFilter) IsEmpty() bool {
	return f == nil || (len(f.GlobalIDs) == 0 && f.Source == "" && f.Hostname == "" &&
		f.IP == "" && f.MAC == "" && f.Tag == "" && f.LastSeenAfter == nil &&
		f.LastSeenBefore == nil && len(f.Fields) == 0)
}

// HistoryFilter selects historical snapshots. A zero AsOf selects every
// snapshot; otherwise only the snapshot taken exactly at AsOf.
type HistoryFilter struct {
	EntityFilter
	AsOf time.Time `json:"as_of,omitempty"`
}
