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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/entityradar/pkg/logger"
	"github.com/carverauto/entityradar/pkg/models"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestLoadYAMLKeepsDefaults(t *testing.T) {
	path := writeFile(t, "entityradar.yaml", `
listen_addr: ":9000"
database:
  driver: sqlite
  path: /tmp/er.db
correlation:
  enabled: true
  interval: 30m
  strategies: [hostname]
collectors:
  - source: nmap
    instance: scan1
    kind: Device
    path: /var/spool/nmap
    id_keys: [ip]
    interval: 5m
`)

	cfg, err := Load(context.Background(), path, logger.NewTestLogger())
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, "/tmp/er.db", cfg.Database.Path)
	assert.Equal(t, models.Duration(30*time.Minute), cfg.Correlation.Interval)
	assert.Equal(t, []string{"hostname"}, cfg.Correlation.Strategies)
	require.Len(t, cfg.Collectors, 1)
	assert.Equal(t, models.Duration(5*time.Minute), cfg.Collectors[0].Interval)
	assert.NotNil(t, cfg.Logging)
	assert.Nil(t, cfg.NATS)
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "entityradar.json", `{
		"database": {"driver": "postgres", "postgres": {"host": "db", "database": "er", "cert_dir": "/certs", "tls": {"ca_file": "ca.pem", "cert_file": "/abs/client.pem"}}},
		"correlation": {"interval": 3600000000000}
	}`)

	cfg, err := Load(context.Background(), path, logger.NewTestLogger())
	require.NoError(t, err)

	assert.Equal(t, models.DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, models.Duration(time.Hour), cfg.Correlation.Interval)
	assert.Equal(t, "/certs/ca.pem", cfg.Database.Postgres.TLS.CAFile)
	assert.Equal(t, "/abs/client.pem", cfg.Database.Postgres.TLS.CertFile)
	assert.Equal(t, models.DefaultListenAddr, cfg.ListenAddr)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "entityradar.yaml", "listen_addr: \":9000\"\n")

	t.Setenv("ENTITYRADAR_LISTEN_ADDR", ":7000")
	t.Setenv("ENTITYRADAR_DB_PATH", "/data/alias.db")
	t.Setenv("ENTITYRADAR_CORRELATION_INTERVAL", "45m")
	t.Setenv("ENTITYRADAR_CORRELATION_STRATEGIES", "mac_ip, hostname")
	t.Setenv("ENTITYRADAR_NATS_URL", "nats://nats:4222")

	cfg, err := Load(context.Background(), path, logger.NewTestLogger())
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.ListenAddr)
	assert.Equal(t, "/data/alias.db", cfg.Database.Path)
	assert.Equal(t, models.Duration(45*time.Minute), cfg.Correlation.Interval)
	assert.Equal(t, []string{"mac_ip", "hostname"}, cfg.Correlation.Strategies)
	require.NotNil(t, cfg.NATS)
	assert.Equal(t, "nats://nats:4222", cfg.NATS.URL)
}

func TestEnvCanonicalNameWinsOverAlias(t *testing.T) {
	t.Setenv("ENTITYRADAR_DATABASE_DRIVER", "sqlite")
	t.Setenv("ENTITYRADAR_DB_DRIVER", "postgres")

	cfg, err := Load(context.Background(), "", logger.NewTestLogger())
	require.NoError(t, err)
	assert.Equal(t, models.DriverSQLite, cfg.Database.Driver)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Run("driver", func(t *testing.T) {
		t.Setenv("ENTITYRADAR_DB_DRIVER", "mongodb")

		_, err := Load(context.Background(), "", logger.NewTestLogger())
		require.ErrorIs(t, err, models.ErrInvalidConfig)
	})

	t.Run("interval", func(t *testing.T) {
		path := writeFile(t, "c.yaml", "correlation:\n  interval: 0s\n")

		_, err := Load(context.Background(), path, logger.NewTestLogger())
		require.ErrorIs(t, err, models.ErrInvalidConfig)
	})

	t.Run("duration syntax", func(t *testing.T) {
		t.Setenv("ENTITYRADAR_CORRELATION_INTERVAL", "soon")

		_, err := Load(context.Background(), "", logger.NewTestLogger())
		require.Error(t, err)
	})

	t.Run("source", func(t *testing.T) {
		t.Setenv("CONFIG_SOURCE", "kv")

		_, err := Load(context.Background(), "", logger.NewTestLogger())
		require.ErrorIs(t, err, errInvalidConfigSource)
	})
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "absent.json"), logger.NewTestLogger())
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestEnvLoaderRejectsNonStruct(t *testing.T) {
	l := NewEnvConfigLoader(logger.NewTestLogger(), DefaultEnvPrefix)

	var s string
	require.ErrorIs(t, l.Load(context.Background(), "", &s), ErrDstMustBePointerToStruct)
	require.ErrorIs(t, l.Load(context.Background(), "", nil), ErrDstMustBeNonNilPointer)
}
