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

package registry

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/entityradar/pkg/models"
)

var base = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func adapter(source, local string, fetched time.Time, fields map[string]interface{}) *models.AdapterEntity {
	return &models.AdapterEntity{
		SourceName: source,
		InstanceID: source + "-1",
		LocalID:    local,
		FetchTime:  fetched,
		Kind:       "Device",
		Fields:     fields,
		Raw:        map[string]interface{}{"id": local},
	}
}

func TestNewGlobalIDIsVersion7(t *testing.T) {
	id, err := uuid.Parse(NewGlobalID())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
}

func TestNewCanonical(t *testing.T) {
	e := NewCanonical(adapter("nmap", "10.0.0.5", base, nil), base)

	assert.NotEmpty(t, e.GlobalID)
	assert.Len(t, e.Adapters, 1)
	assert.Equal(t, base, e.FirstSeen)
	assert.Equal(t, base, e.LastSeen)
	assert.False(t, e.PendingDelete)
}

func TestReplaceAdapterKeepsPosition(t *testing.T) {
	e := NewCanonical(adapter("nmap", "a", base, nil), base)
	e.Adapters = append(e.Adapters, *adapter("ad", "b", base.Add(time.Hour), nil))

	updated := adapter("nmap", "a", base.Add(2*time.Hour), map[string]interface{}{"hostname": "x"})
	require.True(t, ReplaceAdapter(e, updated))

	require.Len(t, e.Adapters, 2)
	assert.Equal(t, "a", e.Adapters[0].LocalID)
	assert.Equal(t, "x", e.Adapters[0].Fields["hostname"])
	assert.Equal(t, base.Add(time.Hour), e.FirstSeen)
	assert.Equal(t, base.Add(2*time.Hour), e.LastSeen)

	assert.False(t, ReplaceAdapter(e, adapter("nmap", "zzz", base, nil)))
}

func TestRecomputeDerivedPendingDelete(t *testing.T) {
	e := NewCanonical(adapter("nmap", "a", base, nil), base)
	e.Adapters = append(e.Adapters, *adapter("ad", "b", base, nil))

	e.Adapters[0].PendingDelete = true
	RecomputeDerived(e)
	assert.False(t, e.PendingDelete)

	e.Adapters[1].PendingDelete = true
	RecomputeDerived(e)
	assert.True(t, e.PendingDelete)
}

func entity(id string, created time.Time, adapters ...*models.AdapterEntity) *models.CanonicalEntity {
	e := &models.CanonicalEntity{GlobalID: id, CreatedAt: created}
	for _, a := range adapters {
		e.Adapters = append(e.Adapters, *a)
	}

	RecomputeDerived(e)

	return e
}

func TestMergeSurvivorIsEarliestCreated(t *testing.T) {
	older := entity("zzz", base, adapter("ad", "HOST-5", base.Add(time.Hour), nil))
	newer := entity("aaa", base.Add(time.Minute), adapter("nmap", "10.0.0.5", base, nil))

	survivor, retired := Merge([]*models.CanonicalEntity{newer, older})

	assert.Equal(t, "zzz", survivor.GlobalID)
	assert.Equal(t, []string{"aaa"}, retired)
	assert.Equal(t, []models.AdapterKey{{Source: "ad", LocalID: "HOST-5"}, {Source: "nmap", LocalID: "10.0.0.5"}}, survivor.Keys())
	assert.Equal(t, base, survivor.FirstSeen)
	assert.Equal(t, base.Add(time.Hour), survivor.LastSeen)
}

func TestMergeTieBreaksOnGlobalID(t *testing.T) {
	a := entity("b-id", base, adapter("s", "1", base, nil))
	b := entity("a-id", base, adapter("s", "2", base, nil))

	survivor, retired := Merge([]*models.CanonicalEntity{a, b})

	assert.Equal(t, "a-id", survivor.GlobalID)
	assert.Equal(t, []string{"b-id"}, retired)
}

func TestMergeDedupesKeepingLatestValue(t *testing.T) {
	a := entity("a", base, adapter("s", "1", base, map[string]interface{}{"v": "old"}), adapter("s", "2", base, nil))
	b := entity("b", base.Add(time.Second), adapter("s", "1", base.Add(time.Hour), map[string]interface{}{"v": "new"}))

	survivor, _ := Merge([]*models.CanonicalEntity{b, a})

	require.Len(t, survivor.Adapters, 2)
	assert.Equal(t, "1", survivor.Adapters[0].LocalID)
	assert.Equal(t, "new", survivor.Adapters[0].Fields["v"])
}

func TestMergeUnionsTags(t *testing.T) {
	a := entity("a", base, adapter("s", "1", base, nil))
	a.Tags = []models.Tag{{Name: "owner", Value: "ops", Source: "ui"}}
	b := entity("b", base.Add(time.Second), adapter("s", "2", base, nil))
	b.Tags = []models.Tag{{Name: "owner", Value: "ops", Source: "ui"}, {Name: "critical", Source: "ui"}}

	survivor, _ := Merge([]*models.CanonicalEntity{a, b})

	assert.Len(t, survivor.Tags, 2)
}

func TestMergeIsOrderIndependent(t *testing.T) {
	mk := func() []*models.CanonicalEntity {
		return []*models.CanonicalEntity{
			entity("a", base, adapter("s", "1", base, nil)),
			entity("b", base.Add(time.Second), adapter("s", "2", base, nil)),
			entity("c", base.Add(2*time.Second), adapter("s", "3", base, nil)),
		}
	}

	all := mk()
	oneShot, _ := Merge(all)

	parts := mk()
	ab, _ := Merge([]*models.CanonicalEntity{parts[0], parts[1]})
	abc, _ := Merge([]*models.CanonicalEntity{parts[2], ab})

	assert.Equal(t, oneShot.GlobalID, abc.GlobalID)
	assert.Equal(t, oneShot.Keys(), abc.Keys())
}

func TestMergeEmpty(t *testing.T) {
	survivor, retired := Merge(nil)
	assert.Nil(t, survivor)
	assert.Nil(t, retired)
}

func TestStripRawDoesNotMutateSource(t *testing.T) {
	e := NewCanonical(adapter("nmap", "a", base, nil), base)

	stripped := StripRaw(e)

	assert.Nil(t, stripped.Adapters[0].Raw)
	assert.NotNil(t, e.Adapters[0].Raw)
}

func TestAddTag(t *testing.T) {
	e := NewCanonical(adapter("nmap", "a", base, nil), base)

	assert.True(t, AddTag(e, models.Tag{Name: "owner", Value: "ops", Source: "ui"}))
	assert.False(t, AddTag(e, models.Tag{Name: "owner", Value: "ops", Source: "ui"}))
	assert.True(t, AddTag(e, models.Tag{Name: "owner", Value: "sec", Source: "ui"}))
	assert.Len(t, e.Tags, 2)
}
