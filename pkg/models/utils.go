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

import (
	"errors"
	"reflect"
	"strings"
)

var errNotStruct = errors.New("input must be a struct or pointer to struct")

// FilterSensitiveFields renders a struct as a map keyed by json names,
// leaving out every field tagged `sensitive:"true"` at any depth. It is used
// to log effective configuration.
func FilterSensitiveFields(input interface{}) (map[string]interface{}, error) {
	if input == nil {
		return map[string]interface{}{}, nil
	}

	out, ok := filterValue(reflect.ValueOf(input)).(map[string]interface{})
	if !ok {
		return nil, errNotStruct
	}

	return out, nil
}

func filterValue(rv reflect.Value) interface{} {
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}

		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Struct:
		rt := rv.Type()
		out := make(map[string]interface{}, rt.NumField())

		for i := 0; i < rt.NumField(); i++ {
			field := rt.Field(i)
			if !field.IsExported() || field.Tag.Get("sensitive") == "true" {
				continue
			}

			name, skip := jsonName(field)
			if skip {
				continue
			}

			out[name] = filterValue(rv.Field(i))
		}

		return out
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil
		}

		out := make([]interface{}, rv.Len())
		for i := range out {
			out[i] = filterValue(rv.Index(i))
		}

		return out
	case reflect.Map:
		if rv.IsNil() {
			return nil
		}

		out := make(map[string]interface{}, rv.Len())

		iter := rv.MapRange()
		for iter.Next() {
			if key, ok := iter.Key().Interface().(string); ok {
				out[key] = filterValue(iter.Value())
			}
		}

		return out
	case reflect.Invalid:
		return nil
	default:
		return rv.Interface()
	}
}

func jsonName(field reflect.StructField) (string, bool) {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", true
	}

	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		name = field.Name
	}

	return name, false
}
