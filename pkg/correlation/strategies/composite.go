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
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/carverauto/entityradar/pkg/correlation"
	"github.com/carverauto/entityradar/pkg/models"
)

var (
	ErrUnknownStrategy = errors.New("unknown correlation strategy")
	ErrEmptyComposite  = errors.New("composite strategy needs at least one member")
)

// Composite runs several strategies in order over the same candidates. Links
// from an earlier member stay valid for later ones because the store
// resolves adapter keys to their current owner.
type Composite struct {
	members []correlation.Strategy
}

func NewComposite(members ...correlation.Strategy) (*Composite, error) {
	if len(members) == 0 {
		return nil, ErrEmptyComposite
	}

	return &Composite{members: members}, nil
}

func (c *Composite) Name() string {
	return correlation.StrategyNames(c.members)
}

func (c *Composite) Correlate(ctx context.Context, candidates []*models.CanonicalEntity) iter.Seq2[correlation.Result, error] {
	return func(yield func(correlation.Result, error) bool) {
		for _, m := range c.members {
			for res, err := range m.Correlate(ctx, candidates) {
				if err != nil {
					yield(nil, fmt.Errorf("%s: %w", m.Name(), err))
					return
				}

				if !yield(res, nil) {
					return
				}
			}
		}
	}
}

// ByName returns a built-in strategy.
func ByName(name string) (correlation.Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case NameHostname:
		return Hostname{}, nil
	case NameMACAndIP, "macip", "mac+ip":
		return MACAndIP{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// FromNames builds the configured strategy. No names selects every built-in
// strategy; a single name is returned unwrapped.
func FromNames(names []string) (correlation.Strategy, error) {
	if len(names) == 0 {
		names = []string{NameHostname, NameMACAndIP}
	}

	members := make([]correlation.Strategy, 0, len(names))

	for _, name := range names {
		s, err := ByName(name)
		if err != nil {
			return nil, err
		}

		members = append(members, s)
	}

	if len(members) == 1 {
		return members[0], nil
	}

	return NewComposite(members...)
}
