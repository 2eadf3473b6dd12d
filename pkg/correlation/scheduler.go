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
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/entityradar/pkg/db"
	"github.com/carverauto/entityradar/pkg/logger"
	"github.com/carverauto/entityradar/pkg/models"
)

const defaultLinkRetries = 3

// Store is the subset of the entity store a correlation pass needs.
type Store interface {
	Query(ctx context.Context, filter *models.EntityFilter) ([]*models.CanonicalEntity, error)
	GetFilter(ctx context.Context, name string) (*models.EntityFilter, error)
	ApplyLinks(ctx context.Context, keys []models.AdapterKey) (*models.CanonicalEntity, error)
	Snapshot(ctx context.Context, asOf time.Time) (int, error)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithInterval sets the period between scheduled passes.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.interval = d }
}

// WithClock overrides the time source used for reports and snapshots.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithLinkRetries bounds how often a conflicting ApplyLinks is retried.
func WithLinkRetries(n int) Option {
	return func(s *Scheduler) { s.linkRetries = n }
}

// WithPassObserver registers a callback invoked after every pass.
func WithPassObserver(fn func(PassReport)) Option {
	return func(s *Scheduler) { s.observer = fn }
}

type job struct {
	trigger TriggerKind
	ids     []string
}

type triggerCmd struct {
	job   job
	reply chan error
}

// run holds the channels of one Start..Stop cycle.
type run struct {
	cancel context.CancelFunc
	quit   <-chan struct{}
	cmds   chan triggerCmd
	done   chan struct{}
}

// Scheduler owns the correlation lifecycle. A loop goroutine owns the
// ticker and command channel; a single worker executes passes.
type Scheduler struct {
	store       Store
	notifier    Notifier
	logger      logger.Logger
	now         func() time.Time
	interval    time.Duration
	linkRetries int
	observer    func(PassReport)

	// running is the single-flight flag. It is set by whoever queues a pass
	// and cleared by the worker when the pass ends.
	running atomic.Bool

	mu       sync.Mutex
	state    ActiveState
	lastErr  string
	lastPass *PassReport
	strategy Strategy
	current  *run
}

// NewScheduler returns a disabled scheduler.
func NewScheduler(store Store, strategy Strategy, notifier Notifier, log logger.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:       store,
		strategy:    strategy,
		notifier:    notifier,
		logger:      log,
		now:         time.Now,
		interval:    time.Duration(models.DefaultCorrelationInterval),
		linkRetries: defaultLinkRetries,
		state:       StateDisabled,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.notifier == nil {
		s.notifier = NewLogNotifier(log)
	}

	return s
}

// SetStrategy replaces the strategy used by subsequent passes.
func (s *Scheduler) SetStrategy(strategy Strategy) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.strategy = strategy
}

// State reports the current state without waiting for a running pass.
func (s *Scheduler) State() StateInfo {
	s.mu.Lock()
	info := StateInfo{
		State:     s.state,
		LastError: s.lastErr,
		Interval:  models.Duration(s.interval),
	}

	if s.lastPass != nil {
		p := *s.lastPass
		info.LastPass = &p
	}

	if s.strategy != nil {
		info.Strategy = s.strategy.Name()
	}
	s.mu.Unlock()

	if info.State == StateScheduled && s.running.Load() {
		info.State = StateInProgress
	}

	return info
}

// Start registers the periodic pass. The first pass runs immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateDisabled {
		state := s.state
		s.mu.Unlock()

		return fmt.Errorf("%w: cannot start while %s", ErrLifecycleConflict, state)
	}

	s.state = StateStartingUp
	strategy := s.strategy
	s.mu.Unlock()

	if err := s.validate(strategy); err != nil {
		s.mu.Lock()
		s.state = StateDisabled
		s.lastErr = err.Error()
		s.mu.Unlock()

		s.logger.Error().Err(err).Msg("Correlation scheduler failed to start")

		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	r := &run{
		cancel: cancel,
		quit:   loopCtx.Done(),
		cmds:   make(chan triggerCmd),
		done:   make(chan struct{}),
	}

	work := make(chan job, 1)
	results := make(chan PassReport, 1)

	s.mu.Lock()
	s.state = StateScheduled
	s.lastErr = ""
	s.current = r
	s.mu.Unlock()

	// passes are not cancelled by Stop; they run to completion
	go s.worker(context.WithoutCancel(loopCtx), work, results)
	go s.loop(loopCtx, r, work, results)

	s.logger.Info().
		Dur("interval", s.interval).
		Str("strategy", strategy.Name()).
		Msg("Correlation scheduler started")

	return nil
}

func (s *Scheduler) validate(strategy Strategy) error {
	if strategy == nil {
		return ErrNoStrategy
	}

	if s.interval <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, s.interval)
	}

	return nil
}

// Stop unregisters the periodic pass and waits for an in-flight pass to
// finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if s.state != StateScheduled || s.current == nil {
		state := s.state
		s.mu.Unlock()

		return fmt.Errorf("%w: cannot stop while %s", ErrLifecycleConflict, state)
	}

	s.state = StateShuttingDown
	r := s.current
	s.mu.Unlock()

	s.logger.Info().Msg("Stopping correlation scheduler")

	r.cancel()
	<-r.done

	s.logger.Info().Msg("Correlation scheduler stopped")

	return nil
}

// Trigger queues a pass immediately and returns without waiting for it.
// A non-empty ids scopes the pass to those entities; otherwise the stored
// default filter selects candidates.
func (s *Scheduler) Trigger(ids []string) error {
	s.mu.Lock()
	if s.state != StateScheduled || s.current == nil {
		state := s.state
		s.mu.Unlock()

		return fmt.Errorf("%w: cannot trigger while %s", ErrLifecycleConflict, state)
	}

	r := s.current
	s.mu.Unlock()

	cmd := triggerCmd{
		job:   job{trigger: TriggerManual, ids: append([]string(nil), ids...)},
		reply: make(chan error, 1),
	}

	select {
	case r.cmds <- cmd:
	case <-r.quit:
		return fmt.Errorf("%w: %w", ErrLifecycleConflict, errSchedulerNotActive)
	}

	return <-cmd.reply
}

func (s *Scheduler) loop(ctx context.Context, r *run, work chan<- job, results <-chan PassReport) {
	ticker := time.NewTicker(s.interval)

	defer func() {
		ticker.Stop()
		close(work)

		for rep := range results {
			s.record(&rep)
		}

		s.mu.Lock()
		s.state = StateDisabled
		s.current = nil
		s.mu.Unlock()

		close(r.done)
	}()

	if err := s.enqueue(work, job{trigger: TriggerScheduled}); err != nil {
		s.logger.Warn().Err(err).Msg("Initial correlation pass not queued")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.enqueue(work, job{trigger: TriggerScheduled}); err != nil {
				s.logger.Debug().Msg("Skipping scheduled correlation pass; previous pass still running")
			}
		case cmd := <-r.cmds:
			cmd.reply <- s.enqueue(work, cmd.job)
		case rep := <-results:
			s.record(&rep)
		}
	}
}

// enqueue sets the single-flight flag and hands the job to the worker. The
// worker clears the flag, so the work channel never holds more than one job.
func (s *Scheduler) enqueue(work chan<- job, j job) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrBusy
	}

	work <- j

	return nil
}

func (s *Scheduler) worker(ctx context.Context, work <-chan job, results chan<- PassReport) {
	defer close(results)

	for j := range work {
		results <- s.runPass(ctx, j)
	}
}

func (s *Scheduler) record(rep *PassReport) {
	s.mu.Lock()
	s.lastPass = rep
	s.lastErr = rep.Error
	s.mu.Unlock()

	recordPassMetrics(rep)

	if s.observer != nil {
		s.observer(*rep)
	}
}

func (s *Scheduler) runPass(ctx context.Context, j job) (rep PassReport) {
	defer s.running.Store(false)

	s.mu.Lock()
	strategy := s.strategy
	s.mu.Unlock()

	rep = PassReport{
		ID:        uuid.NewString(),
		Trigger:   j.trigger,
		Strategy:  strategy.Name(),
		Scoped:    len(j.ids) > 0,
		StartedAt: s.now().UTC(),
	}

	log := s.logger.With().
		Str("pass_id", rep.ID).
		Str("trigger", string(rep.Trigger)).
		Str("strategy", rep.Strategy).
		Logger()

	defer func() {
		rep.FinishedAt = s.now().UTC()
	}()

	candidates, err := s.candidates(ctx, j.ids)
	if err != nil {
		rep.Error = err.Error()
		log.Error().Err(err).Msg("Failed to load correlation candidates")

		return rep
	}

	rep.Candidates = len(candidates)

	if err := s.correlate(ctx, strategy, candidates, &rep); err != nil {
		rep.Error = err.Error()
		log.Error().
			Err(err).
			Int("candidates", rep.Candidates).
			Int("links", rep.Links).
			Msg("Correlation pass aborted")

		return rep
	}

	n, err := s.store.Snapshot(ctx, s.now())
	if err != nil {
		rep.Error = err.Error()
		log.Error().Err(err).Msg("Failed to snapshot entities after correlation")

		return rep
	}

	rep.Snapshotted = n

	log.Info().
		Int("candidates", rep.Candidates).
		Int("links", rep.Links).
		Int("link_errors", rep.LinkErrors).
		Int("warnings", rep.Warnings).
		Int("snapshotted", rep.Snapshotted).
		Msg("Correlation pass complete")

	return rep
}

func (s *Scheduler) candidates(ctx context.Context, ids []string) ([]*models.CanonicalEntity, error) {
	if len(ids) > 0 {
		return s.store.Query(ctx, &models.EntityFilter{GlobalIDs: ids})
	}

	filter, err := s.store.GetFilter(ctx, models.DefaultFilterName)
	if err != nil {
		return nil, err
	}

	if filter == nil {
		filter = &models.EntityFilter{}
	}

	return s.store.Query(ctx, filter)
}

// correlate drains the strategy, applying links and forwarding warnings as
// they arrive. Links applied before a failure are kept.
func (s *Scheduler) correlate(
	ctx context.Context, strategy Strategy, candidates []*models.CanonicalEntity, rep *PassReport) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &StrategyError{
				Strategy:   strategy.Name(),
				Candidates: len(candidates),
				Err:        fmt.Errorf("%w: %v", ErrStrategyPanic, r),
			}
		}
	}()

	for res, resErr := range strategy.Correlate(ctx, candidates) {
		if resErr != nil {
			return &StrategyError{Strategy: strategy.Name(), Candidates: len(candidates), Err: resErr}
		}

		switch r := res.(type) {
		case CorrelationResult:
			s.applyLinks(ctx, &r, rep)
		case *CorrelationResult:
			s.applyLinks(ctx, r, rep)
		case WarningResult:
			s.notify(ctx, strategy, &r, rep)
		case *WarningResult:
			s.notify(ctx, strategy, r, rep)
		default:
			return &StrategyError{
				Strategy:   strategy.Name(),
				Candidates: len(candidates),
				Err:        fmt.Errorf("%w: %T", ErrUnsupportedResult, res),
			}
		}
	}

	return nil
}

func (s *Scheduler) applyLinks(ctx context.Context, res *CorrelationResult, rep *PassReport) {
	var err error

	for attempt := 0; attempt <= s.linkRetries; attempt++ {
		_, err = s.store.ApplyLinks(ctx, res.Associated)
		if !errors.Is(err, db.ErrConstraint) {
			break
		}
	}

	if err != nil {
		rep.LinkErrors++

		s.logger.Warn().
			Err(err).
			Str("pass_id", rep.ID).
			Int("keys", len(res.Associated)).
			Strs("evidence", res.Evidence).
			Msg("Failed to apply correlation links")

		return
	}

	rep.Links++
}

func (s *Scheduler) notify(ctx context.Context, strategy Strategy, w *WarningResult, rep *PassReport) {
	w.PassID = rep.ID
	w.RaisedAt = s.now().UTC()

	if w.Strategy == "" {
		w.Strategy = strategy.Name()
	}

	if w.Severity == "" {
		w.Severity = SeverityWarning
	}

	rep.Warnings++

	if err := s.notifier.Notify(ctx, w); err != nil {
		s.logger.Warn().Err(err).Str("pass_id", rep.ID).Str("title", w.Title).Msg("Failed to deliver correlation warning")
	}
}
