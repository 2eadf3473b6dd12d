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

// Package app wires configuration, logging and the core server together.
package app

import (
	"context"

	"github.com/carverauto/entityradar/pkg/config"
	"github.com/carverauto/entityradar/pkg/core"
	"github.com/carverauto/entityradar/pkg/lifecycle"
)

const serviceName = "entityradar"

// Options contains runtime configuration derived from CLI flags.
type Options struct {
	ConfigPath string
}

// Run boots the service and blocks until it is told to stop.
func Run(ctx context.Context, opts Options) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(ctx, opts.ConfigPath, nil)
	if err != nil {
		return err
	}

	mainLogger, flush, err := lifecycle.ServiceLogger(ctx, "entityradar-main", cfg.Logging)
	if err != nil {
		return err
	}

	defer func() {
		if shutdownErr := flush(); shutdownErr != nil {
			mainLogger.Error().Err(shutdownErr).Msg("Error shutting down logger")
		}
	}()

	server, err := core.NewServer(ctx, cfg, mainLogger)
	if err != nil {
		return err
	}

	return lifecycle.RunServer(ctx, &lifecycle.ServerOptions{
		ServiceName: serviceName,
		Service:     server,
		Logger:      mainLogger,
	})
}
