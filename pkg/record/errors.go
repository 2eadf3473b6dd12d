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
	"errors"
	"fmt"
)

var (
	// ErrTypeMismatch is returned when a value is not an instance of the declared field type.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrValueInvalid is returned when a value violates a declared enum or range.
	ErrValueInvalid = errors.New("value not allowed")
	// ErrUnknownField is returned when writing a field the schema does not declare.
	ErrUnknownField = errors.New("unknown field")
)

// ValidationError describes a rejected field write. It wraps one of the
// sentinel errors above so callers can use errors.Is.
type ValidationError struct {
	Kind   string
	Field  string
	Value  interface{}
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s.%s: %v (%s, got %T)", e.Kind, e.Field, e.Err, e.Reason, e.Value)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
