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
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/entityradar/pkg/logger"
	"github.com/carverauto/entityradar/pkg/models"
	"github.com/carverauto/entityradar/pkg/record"
	"github.com/carverauto/entityradar/pkg/registry"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// stepClock returns a clock that advances one second per call.
func stepClock() func() time.Time {
	var (
		mu  sync.Mutex
		now = t0
	)

	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()

		now = now.Add(time.Second)

		return now
	}
}

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewMemory(context.Background(), logger.NewTestLogger(), WithClock(stepClock()))
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	return db
}

func device(t *testing.T, reg *record.Registry, src models.SourceRef, local string, fetched time.Time, hostname string) *models.AdapterEntity {
	t.Helper()

	rec := reg.NewRecord(record.DeviceSchema())
	if hostname != "" {
		require.NoError(t, rec.Set(record.FieldHostname, hostname))
	}

	rec.SetRaw(map[string]interface{}{"id": local, "host.name": hostname})

	return registry.AdapterFromRecord(src, local, rec, fetched)
}

func upsert(t *testing.T, db *DB, a *models.AdapterEntity) *models.CanonicalEntity {
	t.Helper()

	e, err := db.UpsertAdapterEntity(context.Background(), a)
	require.NoError(t, err)

	return e
}

var (
	nmapScan1 = models.SourceRef{Name: "nmap", InstanceID: "scan1"}
	adDC1     = models.SourceRef{Name: "ad", InstanceID: "dc1"}
)

func TestUpsertCreatesThenReplacesInPlace(t *testing.T) {
	db := newTestDB(t)
	reg := record.NewRegistry()
	ctx := context.Background()

	first := upsert(t, db, device(t, reg, nmapScan1, "10.0.0.5", t0, "host-5"))
	require.NotEmpty(t, first.GlobalID)
	assert.Equal(t, int64(1), first.Revision)

	second := upsert(t, db, device(t, reg, nmapScan1, "10.0.0.6", t0, "host-6"))
	assert.NotEqual(t, first.GlobalID, second.GlobalID)

	again := upsert(t, db, device(t, reg, nmapScan1, "10.0.0.5", t0.Add(time.Hour), "host-5b"))
	assert.Equal(t, first.GlobalID, again.GlobalID)
	assert.Equal(t, first.CreatedAt, again.CreatedAt)
	require.Len(t, again.Adapters, 1)
	assert.Equal(t, "host-5b", again.Adapters[0].Fields[record.FieldHostname])
	assert.Equal(t, t0.Add(time.Hour), again.LastSeen)

	got, err := db.GetEntity(ctx, first.GlobalID)
	require.NoError(t, err)
	assert.Equal(t, "host-5b", got.Adapters[0].Fields[record.FieldHostname])
	assert.Equal(t, int64(2), got.Revision)
	assert.Equal(t, map[string]interface{}{"id": "10.0.0.5", "host_name": "host-5b"}, got.Adapters[0].Raw)
}

func TestUpsertValidation(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.UpsertAdapterEntity(ctx, nil)
	assert.ErrorIs(t, err, ErrAdapterNil)

	_, err = db.UpsertAdapterEntity(ctx, &models.AdapterEntity{SourceName: "nmap"})
	assert.ErrorIs(t, err, ErrAdapterKeyRequired)
}

func TestRepeatedUpsertsKeepOneConstituent(t *testing.T) {
	db := newTestDB(t)
	reg := record.NewRegistry()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		upsert(t, db, device(t, reg, nmapScan1, "10.0.0.5", t0.Add(time.Duration(i)*time.Minute), "host-5"))
		upsert(t, db, device(t, reg, adDC1, "HOST-5", t0.Add(time.Duration(i)*time.Minute), "host-5"))
	}

	all, err := db.Query(ctx, &models.EntityFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	for _, e := range all {
		assert.Len(t, e.Adapters, 1)
	}

	assertUniqueConstituents(t, db)
}

func TestConcurrentUpsertsOfSameKey(t *testing.T) {
	db := newTestDB(t)
	reg := record.NewRegistry()
	ctx := context.Background()

	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			a := device(t, reg, nmapScan1, "10.0.0.5", t0.Add(time.Duration(i)*time.Second), "host-5")

			for attempt := 0; attempt < 5; attempt++ {
				_, err := db.UpsertAdapterEntity(ctx, a)
				if err == nil || !errors.Is(err, ErrConstraint) {
					assert.NoError(t, err)
					return
				}
			}
		}(i)
	}

	wg.Wait()

	all, err := db.Query(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Len(t, all[0].Adapters, 1)
}

func TestHostnameCorrelationExample(t *testing.T) {
	db := newTestDB(t)
	reg := record.NewRegistry()
	ctx := context.Background()

	nmapFetch := t0
	adFetch := t0.Add(3 * time.Hour)

	a := upsert(t, db, device(t, reg, nmapScan1, "10.0.0.5", nmapFetch, "host-5.corp.local"))
	b := upsert(t, db, device(t, reg, adDC1, "HOST-5", adFetch, "HOST-5.corp.local"))

	merged, err := db.ApplyLinks(ctx, []models.AdapterKey{{Source: "nmap", LocalID: "10.0.0.5"}, {Source: "ad", LocalID: "HOST-5"}})
	require.NoError(t, err)
	assert.Equal(t, a.GlobalID, merged.GlobalID)

	res, err := db.Query(ctx, &models.EntityFilter{GlobalIDs: []string{a.GlobalID}})
	require.NoError(t, err)
	require.Len(t, res, 1)

	e := res[0]
	assert.Len(t, e.Adapters, 2)
	assert.Equal(t, nmapFetch, e.FirstSeen)
	assert.Equal(t, adFetch, e.LastSeen)

	// the retired id forwards to the survivor
	viaRetired, err := db.GetEntity(ctx, b.GlobalID)
	require.NoError(t, err)
	assert.Equal(t, a.GlobalID, viaRetired.GlobalID)

	res, err = db.Query(ctx, &models.EntityFilter{GlobalIDs: []string{b.GlobalID}})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, a.GlobalID, res[0].GlobalID)

	byHost, err := db.Query(ctx, &models.EntityFilter{Hostname: "HOST-5.CORP.LOCAL"})
	require.NoError(t, err)
	require.Len(t, byHost, 1)
	assert.Equal(t, a.GlobalID, byHost[0].GlobalID)
}

func TestApplyLinksIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	reg := record.NewRegistry()
	ctx := context.Background()

	upsert(t, db, device(t, reg, nmapScan1, "a", t0, ""))
	upsert(t, db, device(t, reg, adDC1, "b", t0, ""))

	links := []models.AdapterKey{{Source: "nmap", LocalID: "a"}, {Source: "ad", LocalID: "b"}}

	once, err := db.ApplyLinks(ctx, links)
	require.NoError(t, err)

	twice, err := db.ApplyLinks(ctx, links)
	require.NoError(t, err)

	assert.Equal(t, once.GlobalID, twice.GlobalID)
	assert.Equal(t, once.Keys(), twice.Keys())
	assert.Equal(t, once.Revision, twice.Revision)

	all, err := db.Query(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestApplyLinksIgnoresUnknownKeys(t *testing.T) {
	db := newTestDB(t)
	reg := record.NewRegistry()
	ctx := context.Background()

	a := upsert(t, db, device(t, reg, nmapScan1, "a", t0, ""))

	got, err := db.ApplyLinks(ctx, []models.AdapterKey{{Source: "nmap", LocalID: "a"}, {Source: "ad", LocalID: "missing"}})
	require.NoError(t, err)
	assert.Equal(t, a.GlobalID, got.GlobalID)

	got, err = db.ApplyLinks(ctx, []models.AdapterKey{{Source: "ad", LocalID: "missing"}})
	require.NoError(t, err)
	assert.Nil(t, got)
}

// grouping returns, for each entity, its constituent keys; keyed by the
// first key so two stores can be compared without looking at ids.
func grouping(t *testing.T, db *DB) map[models.AdapterKey][]models.AdapterKey {
	t.Helper()

	all, err := db.Query(context.Background(), &models.EntityFilter{IncludePendingDelete: true})
	require.NoError(t, err)

	out := make(map[models.AdapterKey][]models.AdapterKey)
	for _, e := range all {
		keys := e.Keys()
		out[keys[0]] = keys
	}

	return out
}

func TestMergeIsCommutativeInOutcome(t *testing.T) {
	reg := record.NewRegistry()
	ctx := context.Background()

	seed := func(db *DB) {
		upsert(t, db, device(t, reg, nmapScan1, "A", t0, ""))
		upsert(t, db, device(t, reg, adDC1, "B", t0.Add(time.Minute), ""))
		upsert(t, db, device(t, reg, models.SourceRef{Name: "cmdb", InstanceID: "x"}, "C", t0.Add(2*time.Minute), ""))
	}

	a, b, c := models.AdapterKey{Source: "nmap", LocalID: "A"}, models.AdapterKey{Source: "ad", LocalID: "B"}, models.AdapterKey{Source: "cmdb", LocalID: "C"}

	stepwise := newTestDB(t)
	seed(stepwise)

	_, err := stepwise.ApplyLinks(ctx, []models.AdapterKey{a, b})
	require.NoError(t, err)
	_, err = stepwise.ApplyLinks(ctx, []models.AdapterKey{b, c})
	require.NoError(t, err)

	oneShot := newTestDB(t)
	seed(oneShot)

	_, err = oneShot.ApplyLinks(ctx, []models.AdapterKey{c, a, b})
	require.NoError(t, err)

	assert.Equal(t, grouping(t, oneShot), grouping(t, stepwise))
	assert.Equal(t, []models.AdapterKey{a, b, c}, grouping(t, oneShot)[a])

	// both survivors are the entity first created for A
	for _, db := range []*DB{stepwise, oneShot} {
		owner, err := db.ownerOf(ctx, db.conn, c)
		require.NoError(t, err)

		aOwner, err := db.ownerOf(ctx, db.conn, a)
		require.NoError(t, err)
		assert.Equal(t, aOwner, owner)
	}
}

func TestUniquenessAfterUpsertsAndMerges(t *testing.T) {
	db := newTestDB(t)
	reg := record.NewRegistry()
	ctx := context.Background()

	keys := []models.AdapterKey{}

	for i, local := range []string{"1", "2", "3", "4", "5", "6"} {
		src := nmapScan1
		if i%2 == 1 {
			src = adDC1
		}

		upsert(t, db, device(t, reg, src, local, t0.Add(time.Duration(i)*time.Minute), ""))
		keys = append(keys, models.AdapterKey{Source: src.Name, LocalID: local})
	}

	steps := [][]models.AdapterKey{
		{keys[0], keys[1]},
		{keys[2], keys[3]},
		{keys[1], keys[2]},
		{keys[4], keys[5]},
		{keys[0], keys[3]},
	}

	for i, link := range steps {
		_, err := db.ApplyLinks(ctx, link)
		require.NoError(t, err)

		upsert(t, db, device(t, reg, nmapScan1, "1", t0.Add(time.Duration(10+i)*time.Minute), "again"))
		assertUniqueConstituents(t, db)
	}

	g := grouping(t, db)
	assert.Len(t, g, 2)
	assert.Len(t, g[keys[0]], 4)
	assert.Len(t, g[keys[4]], 2)
}

func assertUniqueConstituents(t *testing.T, db *DB) {
	t.Helper()

	all, err := db.Query(context.Background(), &models.EntityFilter{IncludePendingDelete: true})
	require.NoError(t, err)

	owners := make(map[models.AdapterKey]string)

	for _, e := range all {
		for _, key := range e.Keys() {
			prev, dup := owners[key]
			assert.False(t, dup, "key %s owned by %s and %s", key, prev, e.GlobalID)
			owners[key] = e.GlobalID

			owner, err := db.ownerOf(context.Background(), db.conn, key)
			require.NoError(t, err)
			assert.Equal(t, e.GlobalID, owner)
		}
	}
}

func TestSnapshotsAreIndependentAndImmutable(t *testing.T) {
	db := newTestDB(t)
	reg := record.NewRegistry()
	ctx := context.Background()

	e := upsert(t, db, device(t, reg, nmapScan1, "10.0.0.5", t0, "before"))

	t1 := t0.Add(time.Hour)
	n, err := db.Snapshot(ctx, t1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	upsert(t, db, device(t, reg, nmapScan1, "10.0.0.5", t0.Add(90*time.Minute), "after"))

	t2 := t0.Add(2 * time.Hour)
	_, err = db.Snapshot(ctx, t2)
	require.NoError(t, err)

	// re-snapshotting an existing as_of writes nothing
	n, err = db.Snapshot(ctx, t1)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	at1, err := db.QueryHistory(ctx, &models.HistoryFilter{AsOf: t1})
	require.NoError(t, err)
	require.Len(t, at1, 1)
	assert.Equal(t, e.GlobalID, at1[0].Entity.GlobalID)
	assert.Equal(t, t1, at1[0].AsOf)
	assert.Equal(t, "before", at1[0].Entity.Adapters[0].Fields[record.FieldHostname])
	assert.Nil(t, at1[0].Entity.Adapters[0].Raw)

	at2, err := db.QueryHistory(ctx, &models.HistoryFilter{AsOf: t2})
	require.NoError(t, err)
	require.Len(t, at2, 1)
	assert.Equal(t, "after", at2[0].Entity.Adapters[0].Fields[record.FieldHostname])

	all, err := db.QueryHistory(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byHost, err := db.QueryHistory(ctx, &models.HistoryFilter{EntityFilter: models.EntityFilter{Hostname: "before"}})
	require.NoError(t, err)
	require.Len(t, byHost, 1)
	assert.Equal(t, t1, byHost[0].AsOf)
}

func TestSnapshotKeepsRawWhenConfigured(t *testing.T) {
	db := newTestDB(t)
	db.snapshotRaw = true
	reg := record.NewRegistry()
	ctx := context.Background()

	upsert(t, db, device(t, reg, nmapScan1, "10.0.0.5", t0, "h"))

	_, err := db.Snapshot(ctx, t0)
	require.NoError(t, err)

	hist, err := db.QueryHistory(ctx, nil)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.NotNil(t, hist[0].Entity.Adapters[0].Raw)
}

func TestQueryByIndexedAttributes(t *testing.T) {
	db := newTestDB(t)
	reg := record.NewRegistry()
	ctx := context.Background()

	rec := reg.NewRecord(record.DeviceSchema())
	require.NoError(t, rec.Set(record.FieldHostname, "web-1"))
	require.NoError(t, rec.Set(record.FieldIPs, []string{"10.0.0.1", "192.168.1.1"}))
	require.NoError(t, rec.Set(record.FieldMACs, []string{"AA-BB-CC-00-11-22"}))
	require.NoError(t, rec.Set(record.FieldSerial, "SN-1"))

	web := upsert(t, db, registry.AdapterFromRecord(nmapScan1, "10.0.0.1", rec, t0.Add(time.Hour)))
	db1 := upsert(t, db, device(t, reg, adDC1, "DB-1", t0, "db-1"))

	_, err := db.AddTag(ctx, db1.GlobalID, models.Tag{Name: "critical", Source: "ui"})
	require.NoError(t, err)

	cutoff := t0.Add(30 * time.Minute)

	tests := []struct {
		name   string
		filter *models.EntityFilter
		want   []string
	}{
		{"all", nil, []string{web.GlobalID, db1.GlobalID}},
		{"hostname", &models.EntityFilter{Hostname: "WEB-1"}, []string{web.GlobalID}},
		{"ip", &models.EntityFilter{IP: "192.168.1.1"}, []string{web.GlobalID}},
		{"mac", &models.EntityFilter{MAC: "aa:bb:cc:00:11:22"}, []string{web.GlobalID}},
		{"source", &models.EntityFilter{Source: "ad"}, []string{db1.GlobalID}},
		{"tag", &models.EntityFilter{Tag: "critical"}, []string{db1.GlobalID}},
		{"last seen after", &models.EntityFilter{LastSeenAfter: &cutoff}, []string{web.GlobalID}},
		{"last seen before", &models.EntityFilter{LastSeenBefore: &cutoff}, []string{db1.GlobalID}},
		{"field", &models.EntityFilter{Fields: map[string]string{"serial": "SN-1"}}, []string{web.GlobalID}},
		{"no match", &models.EntityFilter{Hostname: "web-1", Source: "ad"}, nil},
		{"limit", &models.EntityFilter{Limit: 1}, []string{web.GlobalID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := db.Query(ctx, tt.filter)
			require.NoError(t, err)

			var ids []string
			for _, e := range res {
				ids = append(ids, e.GlobalID)
			}

			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestAddTagFollowsTombstones(t *testing.T) {
	db := newTestDB(t)
	reg := record.NewRegistry()
	ctx := context.Background()

	a := upsert(t, db, device(t, reg, nmapScan1, "a", t0, ""))
	b := upsert(t, db, device(t, reg, adDC1, "b", t0, ""))

	_, err := db.ApplyLinks(ctx, []models.AdapterKey{{Source: "nmap", LocalID: "a"}, {Source: "ad", LocalID: "b"}})
	require.NoError(t, err)

	e, err := db.AddTag(ctx, b.GlobalID, models.Tag{Name: "owner", Value: "ops", Source: "ui"})
	require.NoError(t, err)
	assert.Equal(t, a.GlobalID, e.GlobalID)
	require.Len(t, e.Tags, 1)
	assert.False(t, e.Tags[0].AppliedAt.IsZero())

	// constituents are untouched
	assert.Len(t, e.Adapters, 2)

	_, err = db.AddTag(ctx, a.GlobalID, models.Tag{})
	assert.ErrorIs(t, err, ErrTagNameRequired)
}

func TestTombstoneChainsAreShortened(t *testing.T) {
	db := newTestDB(t)
	reg := record.NewRegistry()
	ctx := context.Background()

	a := upsert(t, db, device(t, reg, nmapScan1, "a", t0, ""))
	b := upsert(t, db, device(t, reg, adDC1, "b", t0, ""))
	c := upsert(t, db, device(t, reg, adDC1, "c", t0, ""))

	_, err := db.ApplyLinks(ctx, []models.AdapterKey{{Source: "ad", LocalID: "b"}, {Source: "ad", LocalID: "c"}})
	require.NoError(t, err)
	_, err = db.ApplyLinks(ctx, []models.AdapterKey{{Source: "nmap", LocalID: "a"}, {Source: "ad", LocalID: "c"}})
	require.NoError(t, err)

	for _, id := range []string{b.GlobalID, c.GlobalID} {
		var into string
		require.NoError(t, db.queryRow(ctx, db.conn,
			`SELECT merged_into FROM entity_tombstones WHERE global_id = ?`, id).Scan(&into))
		assert.Equal(t, a.GlobalID, into)
	}
}

func TestResolveIDUnknown(t *testing.T) {
	db := newTestDB(t)

	_, err := db.ResolveID(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrEntityNotFound)

	_, err = db.GetEntity(context.Background(), "")
	assert.ErrorIs(t, err, ErrGlobalIDRequired)
}

func TestMarkMissing(t *testing.T) {
	db := newTestDB(t)
	reg := record.NewRegistry()
	ctx := context.Background()

	cycle := t0.Add(time.Hour)

	stale := upsert(t, db, device(t, reg, nmapScan1, "stale", t0, ""))
	fresh := upsert(t, db, device(t, reg, nmapScan1, "fresh", cycle, ""))
	other := upsert(t, db, device(t, reg, models.SourceRef{Name: "nmap", InstanceID: "scan2"}, "other", t0, ""))

	n, err := db.MarkMissing(ctx, nmapScan1, cycle, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	visible, err := db.Query(ctx, nil)
	require.NoError(t, err)

	var ids []string
	for _, e := range visible {
		ids = append(ids, e.GlobalID)
	}

	assert.ElementsMatch(t, []string{fresh.GlobalID, other.GlobalID}, ids)

	got, err := db.GetEntity(ctx, stale.GlobalID)
	require.NoError(t, err)
	assert.True(t, got.PendingDelete)

	// a fresh report revives it
	revived := upsert(t, db, device(t, reg, nmapScan1, "stale", cycle.Add(time.Hour), ""))
	assert.False(t, revived.PendingDelete)

	n, err = db.MarkMissing(ctx, nmapScan1, cycle, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// reported this cycle but not refreshed
	kept := upsert(t, db, device(t, reg, nmapScan1, "kept", t0, ""))

	n, err = db.MarkMissing(ctx, nmapScan1, cycle, []string{"kept"})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	got, err = db.GetEntity(ctx, kept.GlobalID)
	require.NoError(t, err)
	assert.False(t, got.PendingDelete)
}

func TestStaleRevisionIsAConstraintError(t *testing.T) {
	db := newTestDB(t)
	reg := record.NewRegistry()
	ctx := context.Background()

	e := upsert(t, db, device(t, reg, nmapScan1, "a", t0, ""))
	upsert(t, db, device(t, reg, nmapScan1, "a", t0.Add(time.Minute), ""))

	err := db.inTx(ctx, "stale", func(tx *sql.Tx) error {
		return db.updateEntity(ctx, tx, e)
	})
	assert.ErrorIs(t, err, ErrConstraint)
}

func TestDuplicateAdapterKeyIsAConstraintError(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	err := db.inTx(ctx, "dup", func(tx *sql.Tx) error {
		for i := 0; i < 2; i++ {
			if _, err := db.exec(ctx, tx,
				`INSERT INTO adapter_keys (source_name, local_id, global_id) VALUES (?, ?, ?)`,
				"nmap", "a", "g"); err != nil {
				return err
			}
		}

		return nil
	})
	assert.ErrorIs(t, err, ErrConstraint)
}

func TestFilters(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	got, err := db.GetFilter(ctx, models.DefaultFilterName)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, db.SetFilter(ctx, models.DefaultFilterName, &models.EntityFilter{Source: "nmap"}))
	require.NoError(t, db.SetFilter(ctx, models.DefaultFilterName, &models.EntityFilter{Source: "ad", Limit: 10}))

	got, err = db.GetFilter(ctx, models.DefaultFilterName)
	require.NoError(t, err)
	assert.Equal(t, &models.EntityFilter{Source: "ad", Limit: 10}, got)

	require.NoError(t, db.SetFilter(ctx, models.DefaultFilterName, nil))

	got, err = db.GetFilter(ctx, models.DefaultFilterName)
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.ErrorIs(t, db.SetFilter(ctx, "", nil), ErrFilterNameRequired)
}

func TestSchemaPersistence(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	reg := record.NewRegistry()

	rec := reg.NewRecord(record.DeviceSchema())
	require.NoError(t, rec.Set(record.FieldHostname, "h"))
	require.NoError(t, rec.Append(record.FieldIPs, "10.0.0.1"))
	rec.SetRaw(map[string]interface{}{"vendor": map[string]interface{}{"id": 1}})

	require.NoError(t, db.RecordSchema(ctx, registry.SchemaFields(record.KindDevice, reg.Usage(record.KindDevice))))

	fields, err := db.GetSchema(ctx, record.KindDevice)
	require.NoError(t, err)
	require.Len(t, fields, 4)

	assert.Equal(t, "hostname", fields[0].Name)
	assert.Equal(t, "string", fields[0].Type)
	assert.Equal(t, "ips", fields[1].Name)
	assert.True(t, fields[1].List)
	assert.Equal(t, "vendor", fields[2].Name)
	assert.True(t, fields[2].Raw)
	assert.Equal(t, "vendor.id", fields[3].Name)

	seeded := record.NewRegistry()
	seeded.Seed(record.KindDevice, registry.UsageFromSchema(fields))
	assert.Equal(t, reg.Usage(record.KindDevice), seeded.Usage(record.KindDevice))

	_, err = db.GetSchema(ctx, "")
	assert.ErrorIs(t, err, ErrSchemaKindRequired)
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New(context.Background(), &models.DatabaseConfig{Driver: "mongo"}, logger.NewTestLogger())
	assert.ErrorIs(t, err, ErrUnsupportedDriver)

	_, err = New(context.Background(), nil, logger.NewTestLogger())
	assert.ErrorIs(t, err, ErrFailedOpenDB)
}

func TestMigrationsAreRepeatable(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, RunMigrations(context.Background(), db.conn, db.dialect, logger.NewTestLogger()))
}
