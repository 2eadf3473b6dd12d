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
	"fmt"
	"reflect"
	"time"
)

// Type is the declared type of a field value (or of each item of a list field).
type Type int

const (
	TypeString Type = iota + 1
	TypeInt
	TypeFloat
	TypeBool
	TypeTime
	TypeRecord
)

func (t Type) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	case TypeTime:
		return "time"
	case TypeRecord:
		return "record"
	default:
		return "unknown"
	}
}

func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Type) UnmarshalText(b []byte) error {
	*t = ParseType(string(b))
	return nil
}

// ParseType is the inverse of Type.String.
func ParseType(s string) Type {
	for t := TypeString; t <= TypeRecord; t++ {
		if t.String() == s {
			return t
		}
	}

	return 0
}

// Field declares a named, typed slot. Builder methods mutate and return the
// receiver so declarations read as one expression.
type Field struct {
	name   string
	typ    Type
	list   bool
	enum   []interface{}
	min    *float64
	max    *float64
	format string
	title  string
	nested *Schema
}

func NewField(name string, typ Type) *Field {
	return &Field{name: name, typ: typ}
}

func String(name string) *Field { return NewField(name, TypeString) }
func Int(name string) *Field    { return NewField(name, TypeInt) }
func Float(name string) *Field  { return NewField(name, TypeFloat) }
func Bool(name string) *Field   { return NewField(name, TypeBool) }
func Time(name string) *Field   { return NewField(name, TypeTime) }

// Nested declares a field holding a record of another kind.
func Nested(name string, schema *Schema) *Field {
	f := NewField(name, TypeRecord)
	f.nested = schema

	return f
}

// List turns the field into a ListField of its declared item type.
func (f *Field) List() *Field {
	f.list = true
	return f
}

func (f *Field) WithEnum(values ...interface{}) *Field {
	f.enum = make([]interface{}, 0, len(values))
	for _, v := range values {
		if n, err := f.normalizeScalar(v); err == nil {
			f.enum = append(f.enum, n)
		}
	}

	return f
}

func (f *Field) WithRange(min, max float64) *Field {
	f.min = &min
	f.max = &max

	return f
}

func (f *Field) WithMin(min float64) *Field {
	f.min = &min
	return f
}

// WithFormat attaches a display/format hint such as "ip", "mac" or "hostname".
func (f *Field) WithFormat(format string) *Field {
	f.format = format
	return f
}

func (f *Field) WithTitle(title string) *Field {
	f.title = title
	return f
}

func (f *Field) Name() string         { return f.name }
func (f *Field) Type() Type           { return f.typ }
func (f *Field) IsList() bool         { return f.list }
func (f *Field) Format() string       { return f.format }
func (f *Field) Title() string        { return f.title }
func (f *Field) NestedSchema() *Schema { return f.nested }

// Validate checks value against the declaration and returns the normalized
// form that is stored. nil is always accepted (fields are nullable).
func (f *Field) Validate(value interface{}) (interface{}, error) {
	if value == nil {
		return nil, nil
	}

	if !f.list {
		return f.validateItem(value)
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, f.typeError(value, "expected a list of "+f.typ.String())
	}

	items := make([]interface{}, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		item, err := f.validateItem(rv.Index(i).Interface())
		if err != nil {
			return nil, err
		}

		items = append(items, item)
	}

	return items, nil
}

func (f *Field) validateItem(value interface{}) (interface{}, error) {
	if f.typ == TypeRecord {
		return f.validateNested(value)
	}

	n, err := f.normalizeScalar(value)
	if err != nil {
		return nil, err
	}

	if len(f.enum) > 0 && !f.enumContains(n) {
		return nil, &ValidationError{Field: f.name, Value: value, Reason: fmt.Sprintf("not one of %v", f.enum), Err: ErrValueInvalid}
	}

	if num, ok := asFloat(n); ok {
		if f.min != nil && num < *f.min {
			return nil, &ValidationError{Field: f.name, Value: value, Reason: fmt.Sprintf("below minimum %v", *f.min), Err: ErrValueInvalid}
		}

		if f.max != nil && num > *f.max {
			return nil, &ValidationError{Field: f.name, Value: value, Reason: fmt.Sprintf("above maximum %v", *f.max), Err: ErrValueInvalid}
		}
	}

	return n, nil
}

func (f *Field) validateNested(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case *Record:
		if v == nil || v.schema == nil {
			return nil, f.typeError(value, "expected record, got nil")
		}

		if f.nested != nil && v.Kind() != f.nested.Kind() {
			return nil, f.typeError(value, "expected record of kind "+f.nested.Kind())
		}

		return v.Values(), nil
	case map[string]interface{}:
		// raw mappings are accepted as-is
		return cloneValue(v), nil
	default:
		return nil, f.typeError(value, "expected record or mapping")
	}
}

func (f *Field) normalizeScalar(value interface{}) (interface{}, error) {
	switch f.typ {
	case TypeString:
		if s, ok := value.(string); ok {
			return s, nil
		}
	case TypeBool:
		if b, ok := value.(bool); ok {
			return b, nil
		}
	case TypeTime:
		if t, ok := value.(time.Time); ok {
			return t.UTC(), nil
		}
	case TypeInt:
		if i, ok := asInt(value); ok {
			return i, nil
		}
	case TypeFloat:
		if fl, ok := asFloat(value); ok {
			return fl, nil
		}
	case TypeRecord:
		return f.validateNested(value)
	}

	return nil, f.typeError(value, "expected "+f.typ.String())
}

func (f *Field) enumContains(v interface{}) bool {
	for _, allowed := range f.enum {
		if allowed == v {
			return true
		}
	}

	return false
}

func (f *Field) typeError(value interface{}, reason string) error {
	return &ValidationError{Field: f.name, Value: value, Reason: reason, Err: ErrTypeMismatch}
}

func asInt(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	default:
		return 0, false
	}
}

func asFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	default:
		if i, ok := asInt(value); ok {
			return float64(i), true
		}

		return 0, false
	}
}
