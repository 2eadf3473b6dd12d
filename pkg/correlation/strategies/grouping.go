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
	"sort"

	"github.com/carverauto/entityradar/pkg/models"
)

// group is a connected set of candidates sharing at least one signal.
type group struct {
	members  []*models.CanonicalEntity
	evidence []string
}

// keys returns one adapter key per member; the store resolves each key to its
// owner, so one is enough to name the entity.
func (g *group) keys() []models.AdapterKey {
	out := make([]models.AdapterKey, 0, len(g.members))
	for _, m := range g.members {
		out = append(out, m.Adapters[0].Key())
	}

	return out
}

func (g *group) ids() []string {
	out := make([]string, 0, len(g.members))
	for _, m := range g.members {
		out = append(out, m.GlobalID)
	}

	return out
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}

	return uf
}

func (uf *unionFind) find(i int) int {
	for uf.parent[i] != i {
		uf.parent[i] = uf.parent[uf.parent[i]]
		i = uf.parent[i]
	}

	return i
}

// union keeps the smaller index as root so results do not depend on call
// order.
func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}

	if rb < ra {
		ra, rb = rb, ra
	}

	uf.parent[rb] = ra
}

// groupBy joins candidates that share any signal and returns every group
// with two or more members, ordered by their first member's global id.
// Evidence lists the signals that joined each group.
func groupBy(candidates []*models.CanonicalEntity, signals func(*models.CanonicalEntity) []string) []group {
	entities := make([]*models.CanonicalEntity, 0, len(candidates))

	for _, c := range candidates {
		if c != nil && len(c.Adapters) > 0 {
			entities = append(entities, c)
		}
	}

	sort.Slice(entities, func(i, j int) bool { return entities[i].GlobalID < entities[j].GlobalID })

	uf := newUnionFind(len(entities))
	owner := make(map[string]int)
	shared := make(map[string]bool)

	for i, e := range entities {
		for _, sig := range signals(e) {
			first, ok := owner[sig]
			if !ok {
				owner[sig] = i
				continue
			}

			if first != i {
				shared[sig] = true
				uf.union(first, i)
			}
		}
	}

	byRoot := make(map[int]*group)

	var roots []int

	for i, e := range entities {
		root := uf.find(i)

		g, ok := byRoot[root]
		if !ok {
			g = &group{}
			byRoot[root] = g
			roots = append(roots, root)
		}

		g.members = append(g.members, e)
	}

	for sig := range shared {
		g := byRoot[uf.find(owner[sig])]
		g.evidence = append(g.evidence, sig)
	}

	sort.Ints(roots)

	out := make([]group, 0, len(roots))

	for _, root := range roots {
		g := byRoot[root]
		if len(g.members) < 2 {
			continue
		}

		sort.Strings(g.evidence)
		out = append(out, *g)
	}

	return out
}

// dedupe returns the sorted distinct non-empty values.
func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))

	for _, v := range values {
		if v == "" {
			continue
		}

		if _, ok := seen[v]; ok {
			continue
		}

		seen[v] = struct{}{}
		out = append(out, v)
	}

	sort.Strings(out)

	return out
}
