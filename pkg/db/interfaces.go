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

// Package db implements the canonical entity store on top of database/sql.
package db

import (
	"context"
	"time"

	"github.com/carverauto/entityradar/pkg/models"
)

//go:generate mockgen -destination=mock_db.go -package=db github.com/carverauto/entityradar/pkg/db Service

// Service represents all entity store operations.
type Service interface {
	Close() error

	// Entity operations.

	// UpsertAdapterEntity creates a canonical entity for an unseen
	// (source, local id) or replaces the existing constituent in place.
	UpsertAdapterEntity(ctx context.Context, adapter *models.AdapterEntity) (*models.CanonicalEntity, error)
	// ApplyLinks merges the canonical entities owning the given adapters.
	// Unknown keys are ignored; fewer than two owners is a no-op.
	ApplyLinks(ctx context.Context, keys []models.AdapterKey) (*models.CanonicalEntity, error)
	// GetEntity returns the current entity, following merge tombstones.
	GetEntity(ctx context.Context, globalID string) (*models.CanonicalEntity, error)
	ResolveID(ctx context.Context, globalID string) (string, error)
	Query(ctx context.Context, filter *models.EntityFilter) ([]*models.CanonicalEntity, error)
	AddTag(ctx context.Context, globalID string, tag models.Tag) (*models.CanonicalEntity, error)
	// MarkMissing flags constituents of source not fetched since seenSince as
	// pending delete and returns how many were flagged. Local ids in reported
	// were still sent by the source and are left alone.
	MarkMissing(ctx context.Context, source models.SourceRef, seenSince time.Time, reported []string) (int, error)

	// History operations.

	Snapshot(ctx context.Context, asOf time.Time) (int, error)
	QueryHistory(ctx context.Context, filter *models.HistoryFilter) ([]models.HistoricalEntity, error)

	// Filter operations.

	SetFilter(ctx context.Context, name string, filter *models.EntityFilter) error
	GetFilter(ctx context.Context, name string) (*models.EntityFilter, error)

	// Schema registry persistence.

	RecordSchema(ctx context.Context, fields []models.SchemaField) error
	GetSchema(ctx context.Context, kind string) ([]models.SchemaField, error)
}
