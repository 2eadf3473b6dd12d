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

	"github.com/stretchr/testify/assert"

	"github.com/carverauto/entityradar/pkg/models"
)

func sampleEntity() *models.CanonicalEntity {
	e := entity("g1", base,
		adapter("nmap", "10.0.0.5", base, map[string]interface{}{
			"hostname": "Host-5.corp.local",
			"ips":      []interface{}{"10.0.0.5"},
			"macs":     []interface{}{"AA-BB-CC-DD-EE-FF"},
			"os_type":  "linux",
		}),
		adapter("ad", "HOST-5", base.Add(time.Hour), map[string]interface{}{
			"hostname": "host-5.corp.local",
			"serial":   "SN1",
			"uptime":   float64(3600),
		}),
	)
	e.Tags = []models.Tag{{Name: "critical", Source: "ui"}}

	return e
}

func TestIndexAttrs(t *testing.T) {
	attrs := IndexAttrs(sampleEntity())

	assert.Equal(t, []Attr{
		{AttrHostname, "host-5.corp.local"},
		{AttrIP, "10.0.0.5"},
		{AttrMAC, "aa:bb:cc:dd:ee:ff"},
		{AttrSource, "ad"},
		{AttrSource, "nmap"},
		{AttrTag, "critical"},
	}, attrs)
}

func TestMatches(t *testing.T) {
	e := sampleEntity()
	after := base.Add(30 * time.Minute)
	before := base.Add(30 * time.Minute)

	tests := []struct {
		name   string
		filter *models.EntityFilter
		want   bool
	}{
		{"nil filter", nil, true},
		{"global id", &models.EntityFilter{GlobalIDs: []string{"g1"}}, true},
		{"other global id", &models.EntityFilter{GlobalIDs: []string{"g2"}}, false},
		{"hostname case insensitive", &models.EntityFilter{Hostname: "HOST-5.CORP.LOCAL"}, true},
		{"mac separators", &models.EntityFilter{MAC: "aa:bb:cc:dd:ee:ff"}, true},
		{"ip and source", &models.EntityFilter{IP: "10.0.0.5", Source: "ad"}, true},
		{"missing ip", &models.EntityFilter{IP: "10.0.0.6"}, false},
		{"tag", &models.EntityFilter{Tag: "critical"}, true},
		{"last seen after", &models.EntityFilter{LastSeenAfter: &after}, true},
		{"last seen before", &models.EntityFilter{LastSeenBefore: &before}, false},
		{"field scalar", &models.EntityFilter{Fields: map[string]string{"serial": "SN1"}}, true},
		{"field number", &models.EntityFilter{Fields: map[string]string{"uptime": "3600"}}, true},
		{"field list", &models.EntityFilter{Fields: map[string]string{"ips": "10.0.0.5"}}, true},
		{"field mismatch", &models.EntityFilter{Fields: map[string]string{"os_type": "windows"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(e, tt.filter))
		})
	}
}

func TestMatchesPendingDelete(t *testing.T) {
	e := sampleEntity()
	for i := range e.Adapters {
		e.Adapters[i].PendingDelete = true
	}

	RecomputeDerived(e)

	assert.False(t, Matches(e, &models.EntityFilter{}))
	assert.True(t, Matches(e, &models.EntityFilter{IncludePendingDelete: true}))
}
