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
	"strconv"
	"strings"
)

const emptyKey = "_empty"

// SanitizeKeys returns a deep copy of payload whose map keys are safe to use
// as document field names: no dots, no leading '$', no NUL bytes, never
// empty. Keys that collide after rewriting get a numeric suffix in sorted
// order so the result is deterministic.
func SanitizeKeys(payload map[string]interface{}) map[string]interface{} {
	return sanitizeMap(payload)
}

func sanitizeMap(in map[string]interface{}) map[string]interface{} {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	out := make(map[string]interface{}, len(in))
	for _, k := range keys {
		clean := sanitizeKey(k)
		if _, taken := out[clean]; taken {
			for i := 1; ; i++ {
				candidate := clean + "_" + strconv.Itoa(i)
				if _, exists := out[candidate]; !exists {
					clean = candidate
					break
				}
			}
		}

		out[clean] = sanitizeValue(in[k])
	}

	return out
}

func sanitizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return sanitizeMap(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = sanitizeValue(item)
		}

		return out
	default:
		return val
	}
}

func sanitizeKey(k string) string {
	k = strings.ReplaceAll(k, "\x00", "")
	k = strings.ReplaceAll(k, ".", "_")

	if strings.HasPrefix(k, "$") {
		k = "_" + k[1:]
	}

	if k == "" {
		return emptyKey
	}

	return k
}

// RawPaths lists every key path in a sanitized payload, nested keys joined by
// dots. Lists are transparent: keys of maps inside lists use the list's path.
func RawPaths(payload map[string]interface{}) []string {
	seen := make(map[string]struct{})
	walkPaths("", payload, seen)

	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}

	sort.Strings(out)

	return out
}

func walkPaths(prefix string, v interface{}, seen map[string]struct{}) {
	switch val := v.(type) {
	case map[string]interface{}:
		for k, item := range val {
			path := k
			if prefix != "" {
				path = prefix + "." + k
			}

			seen[path] = struct{}{}
			walkPaths(path, item, seen)
		}
	case []interface{}:
		for _, item := range val {
			walkPaths(prefix, item, seen)
		}
	}
}
