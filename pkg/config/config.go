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

package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/carverauto/entityradar/pkg/logger"
	"github.com/carverauto/entityradar/pkg/models"
)

var (
	errInvalidConfigSource = errors.New("invalid CONFIG_SOURCE value")
	errInvalidConfigPtr    = errors.New("config must be a non-nil pointer")
)

const (
	configSourceFile = "file"
	configSourceEnv  = "env"
)

// Config holds the configuration loading dependencies.
type Config struct {
	fileLoader ConfigLoader
	envLoader  ConfigLoader
	logger     logger.Logger
}

// NewConfig initializes a Config with a file loader and the ENTITYRADAR_
// environment overlay. A nil logger logs warnings to stderr.
func NewConfig(log logger.Logger) *Config {
	if log == nil {
		log = logger.Wrap(zerolog.New(os.Stderr).Level(zerolog.WarnLevel).With().Timestamp().Logger())
	}

	prefix := os.Getenv("CONFIG_ENV_PREFIX")
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}

	return &Config{
		fileLoader: &FileConfigLoader{logger: log},
		envLoader:  NewEnvConfigLoader(log, prefix),
		logger:     log,
	}
}

// ValidateConfig validates a configuration if it implements Validator.
func ValidateConfig(cfg interface{}) error {
	v, ok := cfg.(Validator)
	if !ok {
		return nil
	}

	return v.Validate()
}

// LoadAndValidate overlays the file at path (skipped when path is empty or
// CONFIG_SOURCE=env) and then environment overrides onto cfg, and validates
// the result. cfg should already hold defaults.
func (c *Config) LoadAndValidate(ctx context.Context, path string, cfg interface{}) error {
	if cfg == nil {
		return errInvalidConfigPtr
	}

	source := strings.ToLower(os.Getenv("CONFIG_SOURCE"))

	switch source {
	case configSourceFile, "":
		if path != "" {
			if err := c.fileLoader.Load(ctx, path, cfg); err != nil {
				return err
			}
		}
	case configSourceEnv:
	default:
		return fmt.Errorf("%w: %s (expected '%s' or '%s')",
			errInvalidConfigSource, source, configSourceFile, configSourceEnv)
	}

	if err := c.envLoader.Load(ctx, path, cfg); err != nil {
		return err
	}

	if mc, ok := cfg.(*models.Config); ok {
		c.normalizeTLSPaths(mc)
	}

	return ValidateConfig(cfg)
}

// Load reads the service configuration starting from defaults.
func Load(ctx context.Context, path string, log logger.Logger) (*models.Config, error) {
	cfg := models.DefaultConfig()

	if err := NewConfig(log).LoadAndValidate(ctx, path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// normalizeTLSPaths resolves relative postgres TLS files against cert_dir.
func (c *Config) normalizeTLSPaths(cfg *models.Config) {
	pg := cfg.Database.Postgres
	if pg == nil || pg.TLS == nil || pg.CertDir == "" {
		return
	}

	tls := pg.TLS

	for _, p := range []*string{&tls.CertFile, &tls.KeyFile, &tls.CAFile} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(pg.CertDir, *p)
		}
	}

	c.logger.Debug().
		Str("cert_file", tls.CertFile).
		Str("key_file", tls.KeyFile).
		Str("ca_file", tls.CAFile).
		Msg("Normalized TLS paths")
}
