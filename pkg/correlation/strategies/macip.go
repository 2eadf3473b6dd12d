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

package strategies

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/carverauto/entityradar/pkg/correlation"
	"github.com/carverauto/entityradar/pkg/models"
	"github.com/carverauto/entityradar/pkg/record"
	"github.com/carverauto/entityradar/pkg/registry"
)

// NameMACAndIP identifies the MACAndIP strategy in configuration.
const NameMACAndIP = "mac_ip"

// MACAndIP links entities whose constituents report the same MAC address
// bound to the same IP address, either at top level or on one interface.
// A warning is raised when a linked group disagrees on os_type.
type MACAndIP struct{}

func (MACAndIP) Name() string { return NameMACAndIP }

func (MACAndIP) Correlate(ctx context.Context, candidates []*models.CanonicalEntity) iter.Seq2[correlation.Result, error] {
	return func(yield func(correlation.Result, error) bool) {
		for _, g := range groupBy(candidates, macIPSignals) {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			res := correlation.CorrelationResult{
				Associated: g.keys(),
				Evidence:   prefixed("mac_ip=", g.evidence),
				Reason:     correlation.ReasonLogic,
			}

			if !yield(res, nil) {
				return
			}

			if w := osConflict(&g); w != nil {
				if !yield(w, nil) {
					return
				}
			}
		}
	}
}

func macIPSignals(e *models.CanonicalEntity) []string {
	var out []string

	for i := range e.Adapters {
		fields := e.Adapters[i].Fields

		out = append(out, pairs(
			record.StringsOf(fields[record.FieldMACs]),
			record.StringsOf(fields[record.FieldIPs]),
		)...)

		ifaces, _ := fields[record.FieldInterfaces].([]interface{})
		for _, item := range ifaces {
			iface, ok := item.(map[string]interface{})
			if !ok {
				continue
			}

			out = append(out, pairs(
				record.StringsOf(iface["mac"]),
				record.StringsOf(iface["ips"]),
			)...)
		}
	}

	return dedupe(out)
}

func pairs(macs, ips []string) []string {
	out := make([]string, 0, len(macs)*len(ips))

	for _, mac := range macs {
		mac = registry.NormalizeMAC(mac)
		if mac == "" {
			continue
		}

		for _, ip := range ips {
			ip = strings.TrimSpace(ip)
			if ip == "" {
				continue
			}

			out = append(out, mac+"/"+ip)
		}
	}

	return out
}

func osConflict(g *group) *correlation.WarningResult {
	var types []string

	for _, m := range g.members {
		for i := range m.Adapters {
			types = append(types, strings.ToLower(strings.TrimSpace(
				fmt.Sprint(valueOr(m.Adapters[i].Fields[record.FieldOSType], "")))))
		}
	}

	types = dedupe(types)
	if len(types) < 2 {
		return nil
	}

	return &correlation.WarningResult{
		Title:    "Linked entities report conflicting operating systems",
		Body:     fmt.Sprintf("os_type values %s for entities sharing %s", strings.Join(types, ", "), strings.Join(g.evidence, ", ")),
		Severity: correlation.SeverityWarning,
		Entities: g.ids(),
		Strategy: NameMACAndIP,
	}
}

func valueOr(v, def interface{}) interface{} {
	if v == nil {
		return def
	}

	return v
}
