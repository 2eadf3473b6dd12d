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

package correlation

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/carverauto/entityradar/pkg/logger"
)

//go:generate mockgen -destination=mock_notifier.go -package=correlation github.com/carverauto/entityradar/pkg/correlation Notifier

// Notifier receives warnings raised during correlation passes.
type Notifier interface {
	Notify(ctx context.Context, warning *WarningResult) error
}

// LogNotifier writes warnings to the component logger.
type LogNotifier struct {
	logger logger.Logger
}

func NewLogNotifier(log logger.Logger) *LogNotifier {
	return &LogNotifier{logger: log}
}

func (n *LogNotifier) Notify(_ context.Context, w *WarningResult) error {
	n.logger.Warn().
		Str("pass_id", w.PassID).
		Str("strategy", w.Strategy).
		Str("severity", string(w.Severity)).
		Strs("entities", w.Entities).
		Str("body", w.Body).
		Msg(w.Title)

	return nil
}

// MultiNotifier fans a warning out to every notifier and joins their errors.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, w *WarningResult) error {
	var errs []error

	for _, n := range m {
		if err := n.Notify(ctx, w); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// RateLimitedNotifier drops warnings beyond a per-minute budget so a noisy
// strategy cannot flood downstream channels.
type RateLimitedNotifier struct {
	next    Notifier
	limiter *rate.Limiter
	logger  logger.Logger
	dropped atomic.Int64
}

// NewRateLimitedNotifier allows perMinute warnings with a burst of the same
// size. A non-positive perMinute disables limiting.
func NewRateLimitedNotifier(next Notifier, perMinute int, log logger.Logger) *RateLimitedNotifier {
	limit := rate.Inf
	burst := 0

	if perMinute > 0 {
		limit = rate.Limit(float64(perMinute) / 60)
		burst = perMinute
	}

	return &RateLimitedNotifier{
		next:    next,
		limiter: rate.NewLimiter(limit, burst),
		logger:  log,
	}
}

func (n *RateLimitedNotifier) Notify(ctx context.Context, w *WarningResult) error {
	if !n.limiter.Allow() {
		dropped := n.dropped.Add(1)

		n.logger.Debug().
			Str("pass_id", w.PassID).
			Str("title", w.Title).
			Int64("dropped_total", dropped).
			Msg("Correlation warning dropped by rate limit")

		return nil
	}

	return n.next.Notify(ctx, w)
}

// Dropped returns how many warnings were discarded.
func (n *RateLimitedNotifier) Dropped() int64 {
	return n.dropped.Load()
}
