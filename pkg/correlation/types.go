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

// Package correlation runs correlation passes over canonical entities on a
// schedule or on demand, one pass at a time.
package correlation

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/carverauto/entityradar/pkg/models"
)

// ActiveState is the externally visible scheduler state.
type ActiveState int

const (
	StateDisabled ActiveState = iota
	StateStartingUp
	StateScheduled
	// StateInProgress is never stored: it is StateScheduled while the
	// single-flight flag is set.
	StateInProgress
	StateShuttingDown
)

func (s ActiveState) String() string {
	switch s {
	case StateDisabled:
		return "disabled"
	case StateStartingUp:
		return "starting_up"
	case StateScheduled:
		return "scheduled"
	case StateInProgress:
		return "in_progress"
	case StateShuttingDown:
		return "shutting_down"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON responses.
func (s ActiveState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (s *ActiveState) UnmarshalText(b []byte) error {
	for st := StateDisabled; st <= StateShuttingDown; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}

	return fmt.Errorf("%w: %q", errUnknownState, string(b))
}

// Reason classifies why a strategy linked adapter entities.
type Reason string

const (
	// ReasonExecution links come from an operator or scoped re-run.
	ReasonExecution Reason = "execution"
	// ReasonLogic links come from matching rules.
	ReasonLogic Reason = "logic"
)

// Severity of a warning raised during a pass.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Result is one item yielded by a Strategy: a CorrelationResult or a
// WarningResult.
type Result interface {
	isResult()
}

// CorrelationResult asks the store to merge the canonical entities owning
// the associated adapter entities.
type CorrelationResult struct {
	Associated []models.AdapterKey `json:"associated"`
	Evidence   []string            `json:"evidence,omitempty"`
	Reason     Reason              `json:"reason"`
}

// WarningResult is forwarded to the configured Notifier. PassID and
// RaisedAt are filled in by the scheduler.
type WarningResult struct {
	Title    string    `json:"title"`
	Body     string    `json:"body"`
	Severity Severity  `json:"severity"`
	Entities []string  `json:"entities,omitempty"`
	Strategy string    `json:"strategy,omitempty"`
	PassID   string    `json:"pass_id,omitempty"`
	RaisedAt time.Time `json:"raised_at"`
}

func (CorrelationResult) isResult() {}
func (WarningResult) isResult()     {}

// Strategy decides which adapter entities belong together. Correlate is
// lazy; the scheduler applies each result as it is yielded, and a non-nil
// error aborts the pass.
type Strategy interface {
	Name() string
	Correlate(ctx context.Context, candidates []*models.CanonicalEntity) iter.Seq2[Result, error]
}

// StrategyFunc adapts a function to the Strategy interface.
type StrategyFunc struct {
	Label string
	Fn    func(ctx context.Context, candidates []*models.CanonicalEntity) iter.Seq2[Result, error]
}

func (f StrategyFunc) Name() string {
	return f.Label
}

func (f StrategyFunc) Correlate(ctx context.Context, candidates []*models.CanonicalEntity) iter.Seq2[Result, error] {
	return f.Fn(ctx, candidates)
}

// TriggerKind records what started a pass.
type TriggerKind string

const (
	TriggerScheduled TriggerKind = "scheduled"
	TriggerManual    TriggerKind = "manual"
)

// PassReport summarizes one correlation pass.
type PassReport struct {
	ID          string      `json:"id"`
	Trigger     TriggerKind `json:"trigger"`
	Strategy    string      `json:"strategy"`
	Scoped      bool        `json:"scoped"`
	StartedAt   time.Time   `json:"started_at"`
	FinishedAt  time.Time   `json:"finished_at"`
	Candidates  int         `json:"candidates"`
	Links       int         `json:"links"`
	LinkErrors  int         `json:"link_errors"`
	Warnings    int         `json:"warnings"`
	Snapshotted int         `json:"snapshotted"`
	Error       string      `json:"error,omitempty"`
}

// Duration of the pass.
func (r *PassReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Succeeded reports whether the pass ran to completion.
func (r *PassReport) Succeeded() bool {
	return r.Error == ""
}

// StateInfo is returned by Scheduler.State.
type StateInfo struct {
	State     ActiveState     `json:"state"`
	LastError string          `json:"last_error,omitempty"`
	LastPass  *PassReport     `json:"last_pass,omitempty"`
	Interval  models.Duration `json:"interval"`
	Strategy  string          `json:"strategy,omitempty"`
}

// StrategyNames joins the names of several strategies.
func StrategyNames(strategies []Strategy) string {
	names := make([]string, 0, len(strategies))
	for _, s := range strategies {
		names = append(names, s.Name())
	}

	return strings.Join(names, "+")
}
