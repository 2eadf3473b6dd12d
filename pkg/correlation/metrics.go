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
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	correlationMeterName = "entityradar.correlation"

	metricPassesName         = "correlation_passes_total"
	metricLinksName          = "correlation_links_applied_total"
	metricWarningsName       = "correlation_warnings_total"
	metricCandidatesName     = "correlation_last_pass_candidates"
	metricPassDurationMsName = "correlation_last_pass_duration_ms"
)

type correlationMetricsObservatory struct {
	passesOK       atomic.Int64
	passesFailed   atomic.Int64
	links          atomic.Int64
	warnings       atomic.Int64
	candidates     atomic.Int64
	passDurationMs atomic.Int64
}

var (
	//nolint:gochecknoglobals // metric observers are shared singletons
	correlationMetricsOnce sync.Once
	//nolint:gochecknoglobals // metric observers are shared singletons
	correlationMetricsData = &correlationMetricsObservatory{}
	//nolint:gochecknoglobals // metric observers are shared singletons
	correlationMetricsInstruments struct {
		passes         metric.Int64ObservableCounter
		links          metric.Int64ObservableCounter
		warnings       metric.Int64ObservableCounter
		candidates     metric.Int64ObservableGauge
		passDurationMs metric.Int64ObservableGauge
	}
	correlationMetricsRegistration metric.Registration //nolint:unused,gochecknoglobals // kept to retain callback
)

//nolint:gochecknoglobals // attribute sets are immutable
var (
	outcomeSuccess = metric.WithAttributes(attribute.String("outcome", "success"))
	outcomeFailure = metric.WithAttributes(attribute.String("outcome", "failure"))
)

func initCorrelationMetrics() {
	meter := otel.Meter(correlationMeterName)

	var err error

	correlationMetricsInstruments.passes, err = meter.Int64ObservableCounter(
		metricPassesName,
		metric.WithDescription("Correlation passes by outcome"),
	)
	if err != nil {
		otel.Handle(err)
		return
	}

	correlationMetricsInstruments.links, err = meter.Int64ObservableCounter(
		metricLinksName,
		metric.WithDescription("Correlation results applied to the entity store"),
	)
	if err != nil {
		otel.Handle(err)
		return
	}

	correlationMetricsInstruments.warnings, err = meter.Int64ObservableCounter(
		metricWarningsName,
		metric.WithDescription("Warnings raised by correlation strategies"),
	)
	if err != nil {
		otel.Handle(err)
		return
	}

	correlationMetricsInstruments.candidates, err = meter.Int64ObservableGauge(
		metricCandidatesName,
		metric.WithDescription("Candidate entities in the latest correlation pass"),
	)
	if err != nil {
		otel.Handle(err)
		return
	}

	correlationMetricsInstruments.passDurationMs, err = meter.Int64ObservableGauge(
		metricPassDurationMsName,
		metric.WithDescription("Duration of the latest correlation pass in milliseconds"),
	)
	if err != nil {
		otel.Handle(err)
		return
	}

	registration, err := meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		observer.ObserveInt64(correlationMetricsInstruments.passes, correlationMetricsData.passesOK.Load(), outcomeSuccess)
		observer.ObserveInt64(correlationMetricsInstruments.passes, correlationMetricsData.passesFailed.Load(), outcomeFailure)
		observer.ObserveInt64(correlationMetricsInstruments.links, correlationMetricsData.links.Load())
		observer.ObserveInt64(correlationMetricsInstruments.warnings, correlationMetricsData.warnings.Load())
		observer.ObserveInt64(correlationMetricsInstruments.candidates, correlationMetricsData.candidates.Load())
		observer.ObserveInt64(correlationMetricsInstruments.passDurationMs, correlationMetricsData.passDurationMs.Load())
		return nil
	},
		correlationMetricsInstruments.passes,
		correlationMetricsInstruments.links,
		correlationMetricsInstruments.warnings,
		correlationMetricsInstruments.candidates,
		correlationMetricsInstruments.passDurationMs,
	)
	if err != nil {
		otel.Handle(err)
		return
	}

	correlationMetricsRegistration = registration
}

// recordPassMetrics folds a finished pass into the exported instruments.
func recordPassMetrics(rep *PassReport) {
	correlationMetricsOnce.Do(initCorrelationMetrics)

	if rep.Succeeded() {
		correlationMetricsData.passesOK.Add(1)
	} else {
		correlationMetricsData.passesFailed.Add(1)
	}

	correlationMetricsData.links.Add(int64(rep.Links))
	correlationMetricsData.warnings.Add(int64(rep.Warnings))
	correlationMetricsData.candidates.Store(int64(rep.Candidates))
	correlationMetricsData.passDurationMs.Store(rep.Duration().Milliseconds())
}
