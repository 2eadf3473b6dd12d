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

// Package ingest runs collectors and feeds their records into the entity store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carverauto/entityradar/pkg/db"
	"github.com/carverauto/entityradar/pkg/logger"
	"github.com/carverauto/entityradar/pkg/models"
	"github.com/carverauto/entityradar/pkg/record"
	"github.com/carverauto/entityradar/pkg/registry"
)

const defaultConflictRetries = 3

// Store is the subset of the entity store ingestion writes to.
type Store interface {
	UpsertAdapterEntity(ctx context.Context, adapter *models.AdapterEntity) (*models.CanonicalEntity, error)
	MarkMissing(ctx context.Context, source models.SourceRef, seenSince time.Time, reported []string) (int, error)
	RecordSchema(ctx context.Context, fields []models.SchemaField) error
	GetSchema(ctx context.Context, kind string) ([]models.SchemaField, error)
}

// CycleStats summarizes one fetch cycle of a collector.
type CycleStats struct {
	Source    models.SourceRef `json:"source"`
	StartedAt time.Time        `json:"started_at"`
	Fetched   int              `json:"fetched"`
	Upserted  int              `json:"upserted"`
	Failed    int              `json:"failed"`
	Missing   int              `json:"missing"`
	// Complete is false when the fetch aborted; missing detection is skipped.
	Complete bool `json:"complete"`
}

// IngesterOption configures an Ingester.
type IngesterOption func(*Ingester)

// WithParser registers a payload parser for a record kind.
func WithParser(kind string, p Parser) IngesterOption {
	return func(i *Ingester) { i.parsers[kind] = p }
}

// WithIngestClock overrides the fetch time source.
func WithIngestClock(now func() time.Time) IngesterOption {
	return func(i *Ingester) { i.now = now }
}

// WithCycleObserver registers a callback invoked by Run after every cycle.
func WithCycleObserver(fn func(CycleStats, error)) IngesterOption {
	return func(i *Ingester) { i.observer = fn }
}

// Ingester converts raw collector output into adapter entities and upserts
// them. Per-record failures never abort a cycle.
type Ingester struct {
	store           Store
	registry        *record.Registry
	logger          logger.Logger
	now             func() time.Time
	parsers         map[string]Parser
	conflictRetries int
	observer        func(CycleStats, error)
}

func NewIngester(store Store, reg *record.Registry, log logger.Logger, opts ...IngesterOption) *Ingester {
	if reg == nil {
		reg = record.NewRegistry()
	}

	i := &Ingester{
		store:           store,
		registry:        reg,
		logger:          log,
		now:             time.Now,
		parsers:         make(map[string]Parser),
		conflictRetries: defaultConflictRetries,
	}

	for _, opt := range opts {
		opt(i)
	}

	return i
}

// SeedRegistry loads the persisted field registry for kind so usage survives
// restarts.
func (i *Ingester) SeedRegistry(ctx context.Context, kind string) error {
	fields, err := i.store.GetSchema(ctx, kind)
	if err != nil {
		return fmt.Errorf("loading schema for %s: %w", kind, err)
	}

	i.registry.Seed(kind, registry.UsageFromSchema(fields))

	return nil
}

// RunCycle performs one complete fetch of c. Constituents of the source not
// seen in a complete cycle are flagged pending delete.
func (i *Ingester) RunCycle(ctx context.Context, c Collector) (CycleStats, error) {
	src := c.Source()
	schema := c.Schema()
	start := i.now().UTC()

	stats := CycleStats{Source: src, StartedAt: start}

	// ids the source sent but that failed to ingest; still reported, not missing
	var failedIDs []string

	log := i.logger.With().
		Str("source", src.Name).
		Str("instance", src.InstanceID).
		Logger()

	for raw, err := range c.Fetch(ctx) {
		if err != nil {
			var recErr *RecordError
			if errors.As(err, &recErr) {
				stats.Failed++

				log.Warn().Err(err).Str("location", recErr.Location).Msg("Skipping malformed record")

				continue
			}

			log.Error().Err(err).Int("fetched", stats.Fetched).Msg("Collector fetch aborted; cycle incomplete")

			return stats, fmt.Errorf("fetching %s: %w", src.Name, err)
		}

		stats.Fetched++

		if err := i.ingest(ctx, src, schema, raw); err != nil {
			stats.Failed++

			if raw.LocalID != "" {
				failedIDs = append(failedIDs, raw.LocalID)
			}

			log.Warn().Err(err).Str("local_id", raw.LocalID).Msg("Failed to ingest record")

			continue
		}

		stats.Upserted++
	}

	stats.Complete = true

	missing, err := i.store.MarkMissing(ctx, src, start, failedIDs)
	if err != nil {
		return stats, fmt.Errorf("marking missing for %s: %w", src.Name, err)
	}

	stats.Missing = missing

	if usage := i.registry.Usage(schema.Kind()); len(usage) > 0 {
		if err := i.store.RecordSchema(ctx, registry.SchemaFields(schema.Kind(), usage)); err != nil {
			log.Warn().Err(err).Msg("Failed to persist field registry")
		}
	}

	log.Info().
		Int("fetched", stats.Fetched).
		Int("upserted", stats.Upserted).
		Int("failed", stats.Failed).
		Int("missing", stats.Missing).
		Msg("Collector cycle complete")

	return stats, nil
}

func (i *Ingester) ingest(ctx context.Context, src models.SourceRef, schema *record.Schema, raw RawEntity) error {
	if raw.LocalID == "" {
		return ErrLocalIDRequired
	}

	payload := record.SanitizeKeys(raw.Payload)

	rec := i.registry.NewRecord(schema)

	parse, ok := i.parsers[schema.Kind()]
	if !ok {
		parse = MapFields
	}

	if err := parse(payload, rec); err != nil {
		return &RecordError{LocalID: raw.LocalID, Err: err}
	}

	rec.SetRaw(payload)

	adapter := registry.AdapterFromRecord(src, raw.LocalID, rec, i.now())

	var err error

	for attempt := 0; attempt <= i.conflictRetries; attempt++ {
		if _, err = i.store.UpsertAdapterEntity(ctx, adapter); err == nil {
			return nil
		}

		if !errors.Is(err, db.ErrConstraint) {
			return err
		}
	}

	return err
}

// Run repeats RunCycle every interval until ctx is done.
func (i *Ingester) Run(ctx context.Context, c Collector, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		stats, err := i.RunCycle(ctx, c)
		if err != nil && ctx.Err() == nil {
			i.logger.Error().Err(err).Str("source", c.Source().Name).Msg("Collector cycle failed")
		}

		if i.observer != nil {
			i.observer(stats, err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
