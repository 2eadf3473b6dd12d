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
	"context"
	"encoding/json"
	"errors"
	"iter"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/entityradar/pkg/db"
	"github.com/carverauto/entityradar/pkg/logger"
	"github.com/carverauto/entityradar/pkg/models"
	"github.com/carverauto/entityradar/pkg/record"
)

var (
	t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	errCollectorDown = errors.New("collector unreachable")
	errStoreDown     = errors.New("store unavailable")
)

type sliceCollector struct {
	items []RawEntity
	errAt int
	err   error
}

func (*sliceCollector) Source() models.SourceRef {
	return models.SourceRef{Name: "edr", InstanceID: "tenant-1"}
}

func (*sliceCollector) Schema() *record.Schema { return record.DeviceSchema() }

func (c *sliceCollector) Fetch(context.Context) iter.Seq2[RawEntity, error] {
	return func(yield func(RawEntity, error) bool) {
		for i, item := range c.items {
			if c.err != nil && i == c.errAt {
				yield(RawEntity{}, c.err)
				return
			}

			if !yield(item, nil) {
				return
			}
		}
	}
}

func writeLines(t *testing.T, path string, lines ...string) {
	t.Helper()

	data := ""
	for _, l := range lines {
		data += l + "\n"
	}

	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
}

func TestMapFieldsCoercesJSONValues(t *testing.T) {
	payload, err := decodeObject([]byte(`{
		"hostname": "web-1",
		"ips": "10.0.0.1",
		"uptime_seconds": 3600,
		"last_boot": "2025-05-31T08:00:00Z",
		"serial": 12345,
		"interfaces": [{"name": "eth0", "mac": "aa:bb:cc:dd:ee:ff", "vlan": 20}],
		"vendor_blob": {"x": 1}
	}`))
	require.NoError(t, err)

	rec := record.NewRegistry().NewRecord(record.DeviceSchema())
	require.NoError(t, MapFields(payload, rec))

	values := rec.Values()
	assert.Equal(t, "web-1", values[record.FieldHostname])
	assert.Equal(t, []interface{}{"10.0.0.1"}, values[record.FieldIPs])
	assert.Equal(t, int64(3600), values[record.FieldUptime])
	assert.Equal(t, time.Date(2025, 5, 31, 8, 0, 0, 0, time.UTC), values[record.FieldLastBoot])
	assert.Equal(t, "12345", values[record.FieldSerial])
	assert.NotContains(t, values, "vendor_blob")

	ifaces, ok := values[record.FieldInterfaces].([]interface{})
	require.True(t, ok)
	require.Len(t, ifaces, 1)
	assert.Equal(t, int64(20), ifaces[0].(map[string]interface{})["vlan"])
}

func TestMapFieldsRejectsInvalidValue(t *testing.T) {
	rec := record.NewRegistry().NewRecord(record.DeviceSchema())

	err := MapFields(map[string]interface{}{record.FieldOSType: "beos"}, rec)
	require.Error(t, err)

	var verr *record.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, record.FieldOSType, verr.Field)
}

func TestLocalID(t *testing.T) {
	id, err := LocalID(map[string]interface{}{"tenant": "t1", "agent": json.Number("42")}, []string{"tenant", "agent"})
	require.NoError(t, err)
	assert.Equal(t, "t1_42", id)

	_, err = LocalID(map[string]interface{}{"tenant": "t1"}, []string{"tenant", "agent"})
	require.ErrorIs(t, err, ErrMissingIDKey)

	_, err = LocalID(map[string]interface{}{"agent": "  "}, []string{"agent"})
	require.ErrorIs(t, err, ErrMissingIDKey)
}

func TestNewJSONLinesCollectorValidates(t *testing.T) {
	_, err := NewJSONLinesCollector(models.CollectorConfig{Source: "x", Kind: "Printer", IDKeys: []string{"id"}})
	require.ErrorIs(t, err, ErrUnknownKind)

	_, err = NewJSONLinesCollector(models.CollectorConfig{Source: "x", Kind: "device"})
	require.ErrorIs(t, err, ErrMissingIDKey)
}

func TestJSONLinesCollectorReadsDirectoryInOrder(t *testing.T) {
	dir := t.TempDir()

	writeLines(t, filepath.Join(dir, "b.jsonl"), `{"ip": "10.0.0.2"}`)
	writeLines(t, filepath.Join(dir, "a.ndjson"),
		`{"ip": "10.0.0.1"}`,
		``,
		`{not json`,
		`{"hostname": "no-ip"}`,
	)
	writeLines(t, filepath.Join(dir, "notes.txt"), `{"ip": "10.9.9.9"}`)

	c, err := NewJSONLinesCollector(models.CollectorConfig{
		Source: "nmap", Instance: "scan1", Kind: record.KindDevice, Path: dir, IDKeys: []string{"ip"},
	})
	require.NoError(t, err)

	var (
		ids       []string
		locations []string
	)

	for raw, err := range c.Fetch(context.Background()) {
		if err != nil {
			var recErr *RecordError
			require.ErrorAs(t, err, &recErr)

			locations = append(locations, recErr.Location)

			continue
		}

		ids = append(ids, raw.LocalID)
	}

	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, ids)
	assert.Equal(t, []string{"a.ndjson:3", "a.ndjson:4"}, locations)
}

func TestJSONLinesCollectorMissingPathAbortsFetch(t *testing.T) {
	c, err := NewJSONLinesCollector(models.CollectorConfig{
		Source: "nmap", Kind: record.KindDevice, Path: filepath.Join(t.TempDir(), "absent.jsonl"), IDKeys: []string{"ip"},
	})
	require.NoError(t, err)

	for _, err := range c.Fetch(context.Background()) {
		require.Error(t, err)

		var recErr *RecordError
		assert.NotErrorAs(t, err, &recErr)
	}
}

func TestRunCycleIngestsAndFlagsMissing(t *testing.T) {
	ctx := context.Background()

	store, err := db.NewMemory(ctx, logger.NewTestLogger())
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	path := filepath.Join(t.TempDir(), "scan.jsonl")
	writeLines(t, path,
		`{"ip": "10.0.0.1", "hostname": "web-1", "ips": ["10.0.0.1"], "scan.meta": {"$port": 22}}`,
		`{"ip": "10.0.0.2", "hostname": "web-2", "ips": ["10.0.0.2"]}`,
		`{"ip": "10.0.0.3", "os_type": "beos"}`,
		`garbage`,
	)

	c, err := NewJSONLinesCollector(models.CollectorConfig{
		Source: "nmap", Instance: "scan1", Kind: record.KindDevice, Path: path, IDKeys: []string{"ip"},
	})
	require.NoError(t, err)

	now := t0
	ing := NewIngester(store, record.NewRegistry(), logger.NewTestLogger(),
		WithIngestClock(func() time.Time { return now }))

	stats, err := ing.RunCycle(ctx, c)
	require.NoError(t, err)
	assert.True(t, stats.Complete)
	assert.Equal(t, 3, stats.Fetched)
	assert.Equal(t, 2, stats.Upserted)
	assert.Equal(t, 2, stats.Failed)
	assert.Equal(t, 0, stats.Missing)

	got, err := store.Query(ctx, &models.EntityFilter{Hostname: "web-1"})
	require.NoError(t, err)
	require.Len(t, got, 1)

	adapter := got[0].Adapters[0]
	assert.Equal(t, "scan1", adapter.InstanceID)
	assert.Equal(t, t0, adapter.FetchTime)
	assert.Contains(t, adapter.Raw, "scan_meta")

	schema, err := store.GetSchema(ctx, record.KindDevice)
	require.NoError(t, err)

	declared := make(map[string]bool)
	raw := make(map[string]bool)

	for _, f := range schema {
		if f.Raw {
			raw[f.Name] = true
		} else {
			declared[f.Name] = true
		}
	}

	assert.True(t, declared[record.FieldHostname])
	assert.True(t, raw["scan_meta._port"])

	// web-2 disappears from the next scan
	writeLines(t, path, `{"ip": "10.0.0.1", "hostname": "web-1"}`)

	now = t0.Add(time.Hour)

	stats, err = ing.RunCycle(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Missing)

	active, err := store.Query(ctx, &models.EntityFilter{Source: "nmap"})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "10.0.0.1", active[0].Adapters[0].LocalID)

	all, err := store.Query(ctx, &models.EntityFilter{Source: "nmap", IncludePendingDelete: true})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRunCycleKeepsRecordsThatFailToIngest(t *testing.T) {
	ctx := context.Background()

	store, err := db.NewMemory(ctx, logger.NewTestLogger())
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	path := filepath.Join(t.TempDir(), "scan.jsonl")
	writeLines(t, path, `{"ip": "10.0.0.3", "hostname": "db-1", "os_type": "linux"}`)

	c, err := NewJSONLinesCollector(models.CollectorConfig{
		Source: "nmap", Instance: "scan1", Kind: record.KindDevice, Path: path, IDKeys: []string{"ip"},
	})
	require.NoError(t, err)

	now := t0
	ing := NewIngester(store, record.NewRegistry(), logger.NewTestLogger(),
		WithIngestClock(func() time.Time { return now }))

	_, err = ing.RunCycle(ctx, c)
	require.NoError(t, err)

	// still reported, but the new value is rejected
	writeLines(t, path, `{"ip": "10.0.0.3", "hostname": "db-1", "os_type": "beos"}`)

	now = t0.Add(time.Hour)

	stats, err := ing.RunCycle(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 0, stats.Missing)

	active, err := store.Query(ctx, &models.EntityFilter{Hostname: "db-1"})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.False(t, active[0].PendingDelete)
	assert.Equal(t, t0, active[0].Adapters[0].FetchTime)

	// dropped from the source entirely
	writeLines(t, path, `{"ip": "10.0.0.9", "hostname": "db-9"}`)

	now = t0.Add(2 * time.Hour)

	stats, err = ing.RunCycle(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Missing)
}

func TestRunCyclePassesFailedIDsToMissingDetection(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := db.NewMockService(ctrl)

	c := &sliceCollector{items: []RawEntity{
		{LocalID: "a1", Payload: map[string]interface{}{"hostname": "laptop-1"}},
		{LocalID: "a2", Payload: map[string]interface{}{"hostname": "laptop-2"}},
	}}

	gomock.InOrder(
		store.EXPECT().UpsertAdapterEntity(gomock.Any(), gomock.Any()).Return(&models.CanonicalEntity{GlobalID: "g1"}, nil),
		store.EXPECT().UpsertAdapterEntity(gomock.Any(), gomock.Any()).Return(nil, errStoreDown),
	)
	store.EXPECT().MarkMissing(gomock.Any(), c.Source(), t0, []string{"a2"}).Return(0, nil)
	store.EXPECT().RecordSchema(gomock.Any(), gomock.Any()).Return(nil)

	ing := NewIngester(store, nil, logger.NewTestLogger(), WithIngestClock(func() time.Time { return t0 }))

	stats, err := ing.RunCycle(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Upserted)
	assert.Equal(t, 1, stats.Failed)
}

func TestRunCycleAbortedFetchSkipsMissingDetection(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := db.NewMockService(ctrl)

	c := &sliceCollector{
		items: []RawEntity{
			{LocalID: "a1", Payload: map[string]interface{}{"hostname": "laptop-1"}},
			{LocalID: "a2", Payload: map[string]interface{}{"hostname": "laptop-2"}},
		},
		errAt: 1,
		err:   errCollectorDown,
	}

	store.EXPECT().UpsertAdapterEntity(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, a *models.AdapterEntity) (*models.CanonicalEntity, error) {
			assert.Equal(t, "a1", a.LocalID)
			assert.Equal(t, "edr", a.SourceName)

			return &models.CanonicalEntity{GlobalID: "g1"}, nil
		})

	ing := NewIngester(store, nil, logger.NewTestLogger())

	stats, err := ing.RunCycle(context.Background(), c)
	require.ErrorIs(t, err, errCollectorDown)
	assert.False(t, stats.Complete)
	assert.Equal(t, 1, stats.Upserted)
}

func TestRunCycleRetriesConstraintConflicts(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := db.NewMockService(ctrl)

	c := &sliceCollector{items: []RawEntity{
		{LocalID: "a1", Payload: map[string]interface{}{"hostname": "laptop-1"}},
		{Payload: map[string]interface{}{"hostname": "no-id"}},
	}}

	gomock.InOrder(
		store.EXPECT().UpsertAdapterEntity(gomock.Any(), gomock.Any()).Return(nil, db.ErrConstraint),
		store.EXPECT().UpsertAdapterEntity(gomock.Any(), gomock.Any()).Return(&models.CanonicalEntity{GlobalID: "g1"}, nil),
	)
	store.EXPECT().MarkMissing(gomock.Any(), c.Source(), t0, gomock.Len(0)).Return(0, nil)
	store.EXPECT().RecordSchema(gomock.Any(), gomock.Any()).Return(nil)

	ing := NewIngester(store, nil, logger.NewTestLogger(), WithIngestClock(func() time.Time { return t0 }))

	stats, err := ing.RunCycle(context.Background(), c)
	require.NoError(t, err)
	assert.True(t, stats.Complete)
	assert.Equal(t, 1, stats.Upserted)
	assert.Equal(t, 1, stats.Failed)
}

func TestSeedRegistryLoadsPersistedUsage(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := db.NewMockService(ctrl)

	store.EXPECT().GetSchema(gomock.Any(), record.KindDevice).Return([]models.SchemaField{
		{Kind: record.KindDevice, Name: "hostname", Type: "string"},
		{Kind: record.KindDevice, Name: "vendor.model", Raw: true},
	}, nil)

	reg := record.NewRegistry()
	ing := NewIngester(store, reg, logger.NewTestLogger())

	require.NoError(t, ing.SeedRegistry(context.Background(), record.KindDevice))
	assert.Len(t, reg.Usage(record.KindDevice), 2)
}

func TestRunReportsCyclesUntilCancelled(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := db.NewMockService(ctrl)

	store.EXPECT().MarkMissing(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(0, nil).AnyTimes()

	cycles := make(chan CycleStats, 4)
	ing := NewIngester(store, nil, logger.NewTestLogger(),
		WithCycleObserver(func(s CycleStats, err error) {
			assert.NoError(t, err)
			cycles <- s
		}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		ing.Run(ctx, &sliceCollector{}, time.Hour)
	}()

	select {
	case s := <-cycles:
		assert.True(t, s.Complete)
		assert.Equal(t, "edr", s.Source.Name)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for first cycle")
	}

	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
