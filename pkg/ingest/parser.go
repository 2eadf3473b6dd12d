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

package ingest

import (
	"encoding/json"
	"math"
	"time"

	"github.com/carverauto/entityradar/pkg/record"
)

// Parser maps a sanitized payload onto a typed record.
type Parser func(payload map[string]interface{}, rec *record.Record) error

// MapFields copies payload keys that match declared fields of the record's
// schema, coercing JSON numbers and RFC 3339 strings to the declared type.
// The first invalid value fails the record.
func MapFields(payload map[string]interface{}, rec *record.Record) error {
	for _, f := range rec.Schema().Fields() {
		v, ok := payload[f.Name()]
		if !ok || v == nil {
			continue
		}

		if !f.IsList() {
			if err := rec.Set(f.Name(), coerce(f, v)); err != nil {
				return err
			}

			continue
		}

		items, isList := v.([]interface{})
		if !isList {
			items = []interface{}{v}
		}

		for _, item := range items {
			if err := rec.Append(f.Name(), coerce(f, item)); err != nil {
				return err
			}
		}
	}

	return nil
}

// coerce returns v unchanged when it cannot be converted, leaving the
// record to reject it.
func coerce(f *record.Field, v interface{}) interface{} {
	switch f.Type() {
	case record.TypeString:
		if n, ok := v.(json.Number); ok {
			return n.String()
		}
	case record.TypeInt:
		switch n := v.(type) {
		case json.Number:
			if i, err := n.Int64(); err == nil {
				return i
			}
		case float64:
			if n == math.Trunc(n) && math.Abs(n) < math.MaxInt64 {
				return int64(n)
			}
		}
	case record.TypeFloat:
		if n, ok := v.(json.Number); ok {
			if fl, err := n.Float64(); err == nil {
				return fl
			}
		}
	case record.TypeTime:
		if s, ok := v.(string); ok {
			if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
				return t
			}
		}
	case record.TypeRecord:
		if m, ok := v.(map[string]interface{}); ok && f.NestedSchema() != nil {
			return coerceNested(f.NestedSchema(), m)
		}
	}

	return v
}

func coerceNested(schema *record.Schema, m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))

	for k, v := range m {
		f, ok := schema.Field(k)
		if !ok {
			out[k] = v
			continue
		}

		if items, isList := v.([]interface{}); isList && f.IsList() {
			converted := make([]interface{}, 0, len(items))
			for _, item := range items {
				converted = append(converted, coerce(f, item))
			}

			out[k] = converted

			continue
		}

		out[k] = coerce(f, v)
	}

	return out
}
