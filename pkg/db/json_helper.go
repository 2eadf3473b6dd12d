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

package db

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/carverauto/entityradar/pkg/models"
)

// encodeDoc marshals a document for the doc column. Both dialects accept the
// JSON text (TEXT in SQLite, JSONB in PostgreSQL).
func encodeDoc(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("%w: encode document: %w", ErrFailedToInsert, err)
	}

	return string(b), nil
}

func decodeEntity(doc []byte) (*models.CanonicalEntity, error) {
	var e models.CanonicalEntity
	if err := json.Unmarshal(doc, &e); err != nil {
		return nil, fmt.Errorf("%w: decode entity: %w", ErrFailedToScan, err)
	}

	return &e, nil
}

// toNanos stores times as integer nanoseconds so ordering and equality are
// exact in both dialects.
func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}

	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}

	return time.Unix(0, n).UTC()
}
