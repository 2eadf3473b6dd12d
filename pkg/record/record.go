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

// Package record implements the self-describing typed records that
// collectors populate before they reach the entity store.
package record

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// Record is a mutable bag of validated field values for one kind plus a
// sanitized copy of the source payload. Records are not safe for concurrent
// mutation; the registry they report to is.
type Record struct {
	schema   *Schema
	registry *Registry
	values   map[string]interface{}
	raw      map[string]interface{}
}

func (r *Record) Kind() string {
	return r.schema.Kind()
}

func (r *Record) Schema() *Schema {
	return r.schema
}

// Set validates and assigns a field. On error the previous value (or its
// absence) is left untouched.
func (r *Record) Set(name string, value interface{}) error {
	f, err := r.field(name, value)
	if err != nil {
		return err
	}

	normalized, err := f.Validate(value)
	if err != nil {
		return r.annotate(err)
	}

	r.values[name] = normalized
	r.registry.noteField(r.Kind(), f)

	return nil
}

// Append adds one item to a list field, creating the list on first use.
func (r *Record) Append(name string, item interface{}) error {
	f, err := r.field(name, item)
	if err != nil {
		return err
	}

	if !f.list {
		return &ValidationError{Kind: r.Kind(), Field: name, Value: item, Reason: "append on scalar field", Err: ErrTypeMismatch}
	}

	normalized, err := f.validateItem(item)
	if err != nil {
		return r.annotate(err)
	}

	current, _ := r.values[name].([]interface{})
	next := make([]interface{}, len(current), len(current)+1)
	copy(next, current)
	r.values[name] = append(next, normalized)
	r.registry.noteField(r.Kind(), f)

	return nil
}

// Unset removes a field value. Registry usage is unaffected.
func (r *Record) Unset(name string) {
	delete(r.values, name)
}

// Get returns the stored value and whether the field has been set. A field
// explicitly set to nil reports (nil, true).
func (r *Record) Get(name string) (interface{}, bool) {
	v, ok := r.values[name]
	return v, ok
}

func (r *Record) GetString(name string) string {
	s, _ := r.values[name].(string)
	return s
}

func (r *Record) GetStrings(name string) []string {
	return StringsOf(r.values[name])
}

func (r *Record) GetTime(name string) (time.Time, bool) {
	t, ok := r.values[name].(time.Time)
	return t, ok
}

// Names returns the names of set fields, sorted.
func (r *Record) Names() []string {
	out := make([]string, 0, len(r.values))
	for k := range r.values {
		out = append(out, k)
	}

	sort.Strings(out)

	return out
}

// Values returns a copy of the set field values.
func (r *Record) Values() map[string]interface{} {
	return cloneValue(r.values).(map[string]interface{})
}

// SetRaw stores a sanitized copy of the source payload, replacing any
// previous payload, and reports every key path to the registry.
func (r *Record) SetRaw(payload map[string]interface{}) {
	if payload == nil {
		r.raw = nil
		return
	}

	r.raw = SanitizeKeys(payload)
	r.registry.noteRaw(r.Kind(), RawPaths(r.raw))
}

func (r *Record) Raw() map[string]interface{} {
	if r.raw == nil {
		return nil
	}

	return cloneValue(r.raw).(map[string]interface{})
}

func (r *Record) field(name string, value interface{}) (*Field, error) {
	f, ok := r.schema.Field(name)
	if !ok {
		return nil, &ValidationError{Kind: r.Kind(), Field: name, Value: value, Reason: "not declared", Err: ErrUnknownField}
	}

	return f, nil
}

func (r *Record) annotate(err error) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		ve.Kind = r.Kind()
		return ve
	}

	return fmt.Errorf("%s: %w", r.Kind(), err)
}

// StringsOf flattens a stored string or list-of-strings value.
func StringsOf(v interface{}) []string {
	switch val := v.(type) {
	case string:
		if val == "" {
			return nil
		}

		return []string{val}
	case []string:
		return append([]string(nil), val...)
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}

		return out
	default:
		return nil
	}
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}

		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}

		return out
	default:
		return val
	}
}
