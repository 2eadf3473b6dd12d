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

// Package strategies contains reference correlation strategies.
package strategies

import (
	"context"
	"iter"
	"net/netip"
	"strings"

	"github.com/carverauto/entityradar/pkg/correlation"
	"github.com/carverauto/entityradar/pkg/models"
	"github.com/carverauto/entityradar/pkg/record"
	"github.com/carverauto/entityradar/pkg/registry"
)

// NameHostname identifies the Hostname strategy in configuration.
const NameHostname = "hostname"

// Hostname links entities whose constituents report the same short
// hostname, compared case-insensitively with the domain stripped.
type Hostname struct{}

func (Hostname) Name() string { return NameHostname }

func (Hostname) Correlate(ctx context.Context, candidates []*models.CanonicalEntity) iter.Seq2[correlation.Result, error] {
	return func(yield func(correlation.Result, error) bool) {
		for _, g := range groupBy(candidates, hostnameSignals) {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			res := correlation.CorrelationResult{
				Associated: g.keys(),
				Evidence:   prefixed("hostname=", g.evidence),
				Reason:     correlation.ReasonLogic,
			}

			if !yield(res, nil) {
				return
			}
		}
	}
}

func hostnameSignals(e *models.CanonicalEntity) []string {
	var out []string

	for i := range e.Adapters {
		for _, h := range record.StringsOf(e.Adapters[i].Fields[record.FieldHostname]) {
			out = append(out, ShortHostname(h))
		}
	}

	return dedupe(out)
}

// ShortHostname normalizes h and strips its domain. Addresses are not
// hostnames and yield "".
func ShortHostname(h string) string {
	h = registry.NormalizeHostname(h)
	if h == "" {
		return ""
	}

	if _, err := netip.ParseAddr(h); err == nil {
		return ""
	}

	if idx := strings.IndexByte(h, '.'); idx > 0 {
		h = h[:idx]
	}

	return h
}

func prefixed(prefix string, values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, prefix+v)
	}

	return out
}
