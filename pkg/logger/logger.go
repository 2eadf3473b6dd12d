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

// Package logger provides JSON structured logging using zerolog
package logger

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

//nolint:gochecknoglobals // process-wide default logger, mirrors zerolog/log
var globalLogger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// New builds a Logger from the configuration. When OTel export is enabled the
// JSON stream is teed into the OTLP log pipeline.
func New(ctx context.Context, config *Config) (Logger, error) {
	zlog, err := build(ctx, config)
	if err != nil {
		return nil, err
	}

	return &zlogger{logger: zlog}, nil
}

// Init replaces the process-wide logger used by package level helpers.
func Init(ctx context.Context, config *Config) error {
	zlog, err := build(ctx, config)
	if err != nil {
		return err
	}

	globalLogger = zlog
	log.Logger = globalLogger

	return nil
}

func build(ctx context.Context, config *Config) (zerolog.Logger, error) {
	if config == nil {
		config = DefaultConfig()
	}

	var output io.Writer = os.Stdout
	if config.Output == "stderr" {
		output = os.Stderr
	}

	level := zerolog.InfoLevel

	if config.Debug {
		level = zerolog.DebugLevel
	} else if config.Level != "" {
		var err error

		level, err = zerolog.ParseLevel(config.Level)
		if err != nil {
			return zerolog.Nop(), err
		}
	}

	zerolog.TimeFieldFormat = time.RFC3339
	if config.TimeFormat != "" {
		zerolog.TimeFieldFormat = config.TimeFormat
	}

	if config.OTel.Enabled {
		otelWriter, err := NewOTELWriter(ctx, config.OTel)
		if err != nil && !errors.Is(err, ErrOTelLoggingDisabled) {
			return zerolog.Nop(), err
		}

		if otelWriter != nil {
			output = NewMultiWriter(output, otelWriter)
		}
	}

	return zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger(), nil
}

func GetLogger() zerolog.Logger {
	return globalLogger
}

func SetDebug(debug bool) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	globalLogger = globalLogger.Level(level)
	log.Logger = globalLogger
}

func WithComponent(component string) zerolog.Logger {
	return globalLogger.With().Str("component", component).Logger()
}

// Shutdown flushes the OTLP log pipeline if it was started.
func Shutdown() error {
	return ShutdownOTEL()
}
