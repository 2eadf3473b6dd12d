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
	"errors"
	"fmt"
)

var (
	ErrLocalIDRequired = errors.New("source local id is required")
	ErrMissingIDKey    = errors.New("payload is missing id key")
	ErrMalformedRecord = errors.New("malformed record")
	ErrUnknownKind     = errors.New("unknown record kind")
)

// RecordError reports a single bad record. Collectors yield it to skip the
// record without aborting the cycle.
type RecordError struct {
	LocalID  string
	Location string
	Err      error
}

func (e *RecordError) Error() string {
	switch {
	case e.LocalID != "":
		return fmt.Sprintf("record %s: %v", e.LocalID, e.Err)
	case e.Location != "":
		return fmt.Sprintf("record at %s: %v", e.Location, e.Err)
	default:
		return fmt.Sprintf("record: %v", e.Err)
	}
}

func (e *RecordError) Unwrap() error {
	return e.Err
}
