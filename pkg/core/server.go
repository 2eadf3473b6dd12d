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

// Package core wires the entity store, the correlation scheduler, ingestion
// and the HTTP API into one service.
package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/carverauto/entityradar/pkg/core/api"
	"github.com/carverauto/entityradar/pkg/correlation"
	"github.com/carverauto/entityradar/pkg/correlation/strategies"
	"github.com/carverauto/entityradar/pkg/db"
	"github.com/carverauto/entityradar/pkg/ingest"
	"github.com/carverauto/entityradar/pkg/logger"
	"github.com/carverauto/entityradar/pkg/models"
	"github.com/carverauto/entityradar/pkg/natsutil"
	"github.com/carverauto/entityradar/pkg/record"
	"github.com/carverauto/entityradar/pkg/version"
)

const (
	serviceName     = "entityradar"
	shutdownTimeout = 30 * time.Second
)

var errAlreadyStarted = errors.New("server already started")

// Server is the entityradar service. It implements lifecycle.Service.
type Server struct {
	config    *models.Config
	logger    logger.Logger
	db        db.Service
	scheduler *correlation.Scheduler
	ingester  *ingest.Ingester
	apiServer *api.APIServer

	collectors []collectorRun
	natsConn   *nats.Conn
	meters     *sdkmetric.MeterProvider

	mu       sync.RWMutex
	statuses map[string]api.CollectorStatus
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	apiErr   chan error
}

type collectorRun struct {
	collector ingest.Collector
	interval  time.Duration
}

// NewServer opens the store and builds every component from cfg.
func NewServer(ctx context.Context, cfg *models.Config, log logger.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if safe, err := models.FilterSensitiveFields(cfg); err == nil {
		log.Debug().Interface("config", safe).Msg("Effective configuration")
	}

	strategy, err := strategies.FromNames(cfg.Correlation.Strategies)
	if err != nil {
		return nil, err
	}

	collectors, err := buildCollectors(cfg.Collectors)
	if err != nil {
		return nil, err
	}

	database, err := db.New(ctx, &cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("opening entity store: %w", err)
	}

	s := &Server{
		config:     cfg,
		logger:     log,
		db:         database,
		collectors: collectors,
		statuses:   make(map[string]api.CollectorStatus),
	}

	s.initMetrics(ctx)

	notifier, err := s.buildNotifier(ctx)
	if err != nil {
		_ = database.Close()
		return nil, err
	}

	s.scheduler = correlation.NewScheduler(database, strategy, notifier, log,
		correlation.WithInterval(time.Duration(cfg.Correlation.Interval)))

	reg := record.NewRegistry()
	s.ingester = ingest.NewIngester(database, reg, log, ingest.WithCycleObserver(s.recordCycle))

	for _, kind := range []string{record.KindDevice, record.KindUser} {
		if err := s.ingester.SeedRegistry(ctx, kind); err != nil {
			log.Warn().Err(err).Str("kind", kind).Msg("Failed to load persisted field registry")
		}
	}

	s.apiServer = api.NewAPIServer(cfg.API,
		api.WithStore(database),
		api.WithScheduler(s.scheduler),
		api.WithLogger(log),
		api.WithCollectorStatus(s.CollectorStatuses),
	)

	return s, nil
}

func buildCollectors(configs []models.CollectorConfig) ([]collectorRun, error) {
	out := make([]collectorRun, 0, len(configs))

	for i := range configs {
		c, err := ingest.NewJSONLinesCollector(configs[i])
		if err != nil {
			return nil, fmt.Errorf("collector %s: %w", configs[i].Source, err)
		}

		interval := time.Duration(configs[i].Interval)
		if interval <= 0 {
			interval = time.Duration(models.DefaultCollectorInterval)
		}

		out = append(out, collectorRun{collector: c, interval: interval})
	}

	return out, nil
}

// buildNotifier logs every warning and, when NATS is configured, publishes
// it to JetStream. Delivery is throttled by warnings_per_minute.
func (s *Server) buildNotifier(ctx context.Context) (correlation.Notifier, error) {
	notifiers := correlation.MultiNotifier{correlation.NewLogNotifier(s.logger)}

	if s.config.NATS != nil {
		pub, conn, err := natsutil.ConnectWarningPublisher(ctx, s.config.NATS, s.logger)
		if err != nil {
			return nil, fmt.Errorf("connecting warning publisher: %w", err)
		}

		s.natsConn = conn
		notifiers = append(notifiers, pub)
	}

	return correlation.NewRateLimitedNotifier(notifiers, s.config.Correlation.WarningsPerMinute, s.logger), nil
}

func (s *Server) initMetrics(ctx context.Context) {
	if s.config.Logging == nil {
		return
	}

	mp, err := logger.NewMeterProvider(ctx, &s.config.Logging.OTel, serviceName, version.Version())
	if err != nil {
		if !errors.Is(err, logger.ErrOTelMetricsDisabled) {
			s.logger.Warn().Err(err).Msg("Failed to initialize OTel metrics")
		}

		return
	}

	s.meters = mp
}

// Handler exposes the API router.
func (s *Server) Handler() *api.APIServer {
	return s.apiServer
}

// Scheduler exposes the correlation scheduler.
func (s *Server) Scheduler() *correlation.Scheduler {
	return s.scheduler
}

// Start launches the API listener, the collectors and, when enabled, the
// correlation scheduler.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return errAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.apiErr = make(chan error, 1)
	s.mu.Unlock()

	s.logger.Info().
		Str("version", version.String()).
		Str("listen_addr", s.config.ListenAddr).
		Int("collectors", len(s.collectors)).
		Msg("Starting entityradar")

	go func() {
		if err := s.apiServer.Start(s.config.ListenAddr); err != nil {
			s.logger.Error().Err(err).Msg("API server failed")
			s.apiErr <- err
		}
	}()

	for _, run := range s.collectors {
		s.wg.Add(1)

		go func(run collectorRun) {
			defer s.wg.Done()

			s.ingester.Run(runCtx, run.collector, run.interval)
		}(run)
	}

	if s.config.Correlation.Enabled {
		if err := s.scheduler.Start(runCtx); err != nil {
			s.abortStart(ctx)

			return fmt.Errorf("starting correlation scheduler: %w", err)
		}
	}

	return nil
}

// abortStart undoes a partial Start: the listener is shut down and the
// collectors are stopped. The store stays open for Stop.
func (s *Server) abortStart(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := s.apiServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to shut down API after start failure")
	}

	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
}

// Stop shuts the API down, stops the scheduler after any in-flight pass,
// waits for collectors and closes the store.
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	var errs []error

	if err := s.apiServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("api shutdown: %w", err))
	}

	if err := s.scheduler.Stop(); err != nil && !errors.Is(err, correlation.ErrLifecycleConflict) {
		errs = append(errs, err)
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()

	if s.natsConn != nil {
		if err := s.natsConn.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to drain NATS connection")
		}
	}

	if s.meters != nil {
		if err := s.meters.Shutdown(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to shut down meter provider")
		}
	}

	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing entity store: %w", err))
	}

	s.logger.Info().Msg("entityradar stopped")

	return errors.Join(errs...)
}

// APIErrors reports a listener failure after Start.
func (s *Server) APIErrors() <-chan error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.apiErr
}

func (s *Server) recordCycle(stats ingest.CycleStats, err error) {
	status := api.CollectorStatus{
		Source:    stats.Source.Name,
		Instance:  stats.Source.InstanceID,
		LastCycle: stats.StartedAt,
		Fetched:   stats.Fetched,
		Upserted:  stats.Upserted,
		Failed:    stats.Failed,
		Missing:   stats.Missing,
		Complete:  stats.Complete,
	}

	if err != nil {
		status.LastError = err.Error()
	}

	s.mu.Lock()
	s.statuses[stats.Source.Name+"/"+stats.Source.InstanceID] = status
	s.mu.Unlock()
}

// CollectorStatuses returns the last cycle of every collector that has run.
func (s *Server) CollectorStatuses() []api.CollectorStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]api.CollectorStatus, 0, len(s.statuses))
	for _, st := range s.statuses {
		out = append(out, st)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}

		return out[i].Instance < out[j].Instance
	})

	return out
}
