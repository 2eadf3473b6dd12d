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

import "errors"

var (

	// Core database errors.

	ErrDatabaseError = errors.New("database error")
	ErrFailedOpenDB  = errors.New("failed to open database")
	ErrFailedToInit  = errors.New("failed to initialize schema")
	// ErrUniqueIndex means a required unique index could not be ensured; the
	// store refuses to start without it.
	ErrUniqueIndex = errors.New("required unique index missing")

	// Operation errors.

	ErrFailedToScan   = errors.New("failed to scan")
	ErrFailedToQuery  = errors.New("failed to query")
	ErrFailedToInsert = errors.New("failed to insert")
	ErrFailedToUpdate = errors.New("failed to update")

	// ErrConstraint is a retryable write conflict: a unique-index violation or
	// a concurrent modification of the same canonical entity. Callers should
	// re-read and retry.
	ErrConstraint = errors.New("constraint violation")

	// Lookup errors.

	ErrEntityNotFound = errors.New("entity not found")
	ErrTombstoneLoop  = errors.New("tombstone chain too long")

	// Validation errors.

	ErrAdapterNil         = errors.New("adapter entity is nil")
	ErrAdapterKeyRequired = errors.New("source_name and source_local_id are required")
	ErrGlobalIDRequired   = errors.New("global_id is required")
	ErrTagNameRequired    = errors.New("tag name is required")
	ErrFilterNameRequired = errors.New("filter name is required")
	ErrSchemaKindRequired = errors.New("schema kind is required")
	ErrUnsupportedDriver  = errors.New("unsupported database driver")
)
