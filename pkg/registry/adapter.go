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
	"time"

	"github.com/carverauto/entityradar/pkg/models"
	"github.com/carverauto/entityradar/pkg/record"
)

// AdapterFromRecord wraps a populated record with its provenance.
func AdapterFromRecord(src models.SourceRef, localID string, rec *record.Record, fetched time.Time) *models.AdapterEntity {
	return &models.AdapterEntity{
		SourceName: src.Name,
		InstanceID: src.InstanceID,
		LocalID:    localID,
		FetchTime:  fetched.UTC(),
		Kind:       rec.Kind(),
		Fields:     rec.Values(),
		Raw:        rec.Raw(),
	}
}

// SchemaFields converts registry usage into persisted schema rows.
func SchemaFields(kind string, usage []record.FieldUsage) []models.SchemaField {
	out := make([]models.SchemaField, 0, len(usage))

	for _, u := range usage {
		f := models.SchemaField{
			Kind:   kind,
			Name:   u.Name,
			List:   u.List,
			Format: u.Format,
			Title:  u.Title,
			Nested: u.Nested,
			Raw:    u.Raw,
		}

		if !u.Raw {
			f.Type = u.Type.String()
		}

		out = append(out, f)
	}

	return out
}

// UsageFromSchema is the inverse of SchemaFields, used to seed a registry
// from storage.
func UsageFromSchema(fields []models.SchemaField) []record.FieldUsage {
	out := make([]record.FieldUsage, 0, len(fields))

	for _, f := range fields {
		out = append(out, record.FieldUsage{
			Name:   f.Name,
			Type:   record.ParseType(f.Type),
			List:   f.List,
			Format: f.Format,
			Title:  f.Title,
			Nested: f.Nested,
			Raw:    f.Raw,
		})
	}

	return out
}
