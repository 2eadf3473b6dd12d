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

package api

import (
	"context"
	"time"

	"github.com/carverauto/entityradar/pkg/correlation"
	"github.com/carverauto/entityradar/pkg/models"
)

//go:generate mockgen -destination=mock_api.go -package=api github.com/carverauto/entityradar/pkg/core/api Scheduler

// Scheduler is the correlation control surface exposed over HTTP.
type Scheduler interface {
	Start(ctx context.Context) error
	Stop() error
	Trigger(ids []string) error
	State() correlation.StateInfo
}

// Store is the subset of the entity store the API reads and annotates.
type Store interface {
	Query(ctx context.Context, filter *models.EntityFilter) ([]*models.CanonicalEntity, error)
	GetEntity(ctx context.Context, globalID string) (*models.CanonicalEntity, error)
	AddTag(ctx context.Context, globalID string, tag models.Tag) (*models.CanonicalEntity, error)
	QueryHistory(ctx context.Context, filter *models.HistoryFilter) ([]models.HistoricalEntity, error)
	SetFilter(ctx context.Context, name string, filter *models.EntityFilter) error
	GetFilter(ctx context.Context, name string) (*models.EntityFilter, error)
	GetSchema(ctx context.Context, kind string) ([]models.SchemaField, error)
}

// CollectorStatus is the last cycle outcome of one configured collector.
type CollectorStatus struct {
	Source    string    `json:"source"`
	Instance  string    `json:"instance"`
	LastCycle time.Time `json:"last_cycle,omitempty"`
	Fetched   int       `json:"fetched"`
	Upserted  int       `json:"upserted"`
	Failed    int       `json:"failed"`
	Missing   int       `json:"missing"`
	Complete  bool      `json:"complete"`
	LastError string    `json:"last_error,omitempty"`
}
