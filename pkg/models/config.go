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

package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/carverauto/entityradar/pkg/logger"
)

var (
	errInvalidDuration = errors.New("invalid duration")

	ErrInvalidConfig = errors.New("invalid configuration")
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	DefaultListenAddr          = ":8090"
	DefaultSQLitePath          = "/var/lib/entityradar/entityradar.db"
	DefaultCorrelationInterval = Duration(2 * time.Hour)
	DefaultCollectorInterval   = Duration(15 * time.Minute)
	DefaultWarningSubject      = "entityradar.correlation.warnings"
	DefaultWarningStream       = "ENTITYRADAR_WARNINGS"
)

// Duration accepts "2h" style strings or a number of nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	return d.set(v)
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var v interface{}
	if err := node.Decode(&v); err != nil {
		return err
	}

	if i, ok := v.(int); ok {
		v = float64(i)
	}

	return d.set(v)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) set(v interface{}) error {
	switch value := v.(type) {
	case float64:
		// parse numeric as nanoseconds
		*d = Duration(time.Duration(value))
		return nil
	case string:
		dur, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}

		*d = Duration(dur)

		return nil
	default:
		return errInvalidDuration
	}
}

// Config is the entityradar service configuration.
type Config struct {
	ListenAddr  string            `json:"listen_addr" yaml:"listen_addr"`
	API         APIConfig         `json:"api" yaml:"api"`
	Database    DatabaseConfig    `json:"database" yaml:"database"`
	Correlation CorrelationConfig `json:"correlation" yaml:"correlation"`
	NATS        *NATSConfig       `json:"nats,omitempty" yaml:"nats,omitempty"`
	Collectors  []CollectorConfig `json:"collectors,omitempty" yaml:"collectors,omitempty"`
	Logging     *logger.Config    `json:"logging,omitempty" yaml:"logging,omitempty"`
}

type DatabaseConfig struct {
	Driver string `json:"driver" yaml:"driver"`
	// Path is the SQLite database file; ":memory:" is accepted.
	Path     string          `json:"path,omitempty" yaml:"path,omitempty"`
	Postgres *PostgresConfig `json:"postgres,omitempty" yaml:"postgres,omitempty"`
	// SnapshotRaw keeps raw payloads in historical snapshots.
	SnapshotRaw bool `json:"snapshot_raw,omitempty" yaml:"snapshot_raw,omitempty"`
}

// PostgresConfig describes a CNPG/PostgreSQL connection.
type PostgresConfig struct {
	Host               string            `json:"host" yaml:"host"`
	Port               int               `json:"port,omitempty" yaml:"port,omitempty"`
	Database           string            `json:"database" yaml:"database"`
	Username           string            `json:"username,omitempty" yaml:"username,omitempty"`
	Password           string            `json:"password,omitempty" yaml:"password,omitempty" sensitive:"true"`
	SSLMode            string            `json:"ssl_mode,omitempty" yaml:"ssl_mode,omitempty"`
	ApplicationName    string            `json:"application_name,omitempty" yaml:"application_name,omitempty"`
	CertDir            string            `json:"cert_dir,omitempty" yaml:"cert_dir,omitempty"`
	TLS                *TLSConfig        `json:"tls,omitempty" yaml:"tls,omitempty"`
	MaxConnections     int               `json:"max_connections,omitempty" yaml:"max_connections,omitempty"`
	MaxConnLifetime    Duration          `json:"max_conn_lifetime,omitempty" yaml:"max_conn_lifetime,omitempty"`
	StatementTimeout   Duration          `json:"statement_timeout,omitempty" yaml:"statement_timeout,omitempty"`
	ExtraRuntimeParams map[string]string `json:"extra_runtime_params,omitempty" yaml:"extra_runtime_params,omitempty"`
}

type TLSConfig struct {
	CertFile string `json:"cert_file" yaml:"cert_file"`
	KeyFile  string `json:"key_file" yaml:"key_file"`
	CAFile   string `json:"ca_file" yaml:"ca_file"`
}

type CorrelationConfig struct {
	// Enabled starts the scheduler with the service.
	Enabled  bool     `json:"enabled" yaml:"enabled"`
	Interval Duration `json:"interval" yaml:"interval"`
	// Strategies names the reference strategies to compose: "hostname", "mac_ip".
	Strategies []string `json:"strategies,omitempty" yaml:"strategies,omitempty"`
	// WarningsPerMinute throttles operator warnings; zero disables throttling.
	WarningsPerMinute int `json:"warnings_per_minute,omitempty" yaml:"warnings_per_minute,omitempty"`
}

// NATSConfig enables publishing correlation warnings to JetStream.
type NATSConfig struct {
	URL        string     `json:"url" yaml:"url"`
	Domain     string     `json:"domain,omitempty" yaml:"domain,omitempty"`
	CredsFile  string     `json:"creds_file,omitempty" yaml:"creds_file,omitempty"`
	TLS        *TLSConfig `json:"tls,omitempty" yaml:"tls,omitempty"`
	ServerName string     `json:"server_name,omitempty" yaml:"server_name,omitempty"`
	Stream     string     `json:"stream,omitempty" yaml:"stream,omitempty"`
	Subject    string     `json:"subject,omitempty" yaml:"subject,omitempty"`
}

// APIConfig secures the HTTP control surface. An empty APIKey disables
// authentication.
type APIConfig struct {
	APIKey string     `json:"api_key,omitempty" yaml:"api_key,omitempty" sensitive:"true"`
	CORS   CORSConfig `json:"cors" yaml:"cors"`
}

type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins,omitempty" yaml:"allowed_origins,omitempty"`
	AllowCredentials bool     `json:"allow_credentials,omitempty" yaml:"allow_credentials,omitempty"`
}

// CollectorConfig configures a JSON-lines drop collector.
type CollectorConfig struct {
	Source   string `json:"source" yaml:"source"`
	Instance string `json:"instance" yaml:"instance"`
	Kind     string `json:"kind" yaml:"kind"`
	Path     string `json:"path" yaml:"path"`
	// IDKeys are payload keys joined to form the source local id.
	IDKeys   []string `json:"id_keys" yaml:"id_keys"`
	Interval Duration `json:"interval,omitempty" yaml:"interval,omitempty"`
}

// DefaultConfig returns a configuration usable without a file.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr: DefaultListenAddr,
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			Path:   DefaultSQLitePath,
		},
		Correlation: CorrelationConfig{
			Enabled:    true,
			Interval:   DefaultCorrelationInterval,
			Strategies: []string{"hostname", "mac_ip"},
		},
		Logging: logger.DefaultConfig(),
	}
}

// Validate checks the configuration after defaults and overrides are applied.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("%w: listen_addr is required", ErrInvalidConfig)
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("%w: database.path is required for sqlite", ErrInvalidConfig)
		}
	case DriverPostgres:
		if c.Database.Postgres == nil || c.Database.Postgres.Host == "" {
			return fmt.Errorf("%w: database.postgres.host is required", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown database driver %q", ErrInvalidConfig, c.Database.Driver)
	}

	if c.Correlation.Interval <= 0 {
		return fmt.Errorf("%w: correlation.interval must be positive", ErrInvalidConfig)
	}

	for i, col := range c.Collectors {
		if col.Source == "" || col.Path == "" || col.Kind == "" {
			return fmt.Errorf("%w: collectors[%d] needs source, kind and path", ErrInvalidConfig, i)
		}

		if len(col.IDKeys) == 0 {
			return fmt.Errorf("%w: collectors[%d] needs id_keys", ErrInvalidConfig, i)
		}
	}

	if c.NATS != nil && c.NATS.URL == "" {
		return fmt.Errorf("%w: nats.url is required when nats is configured", ErrInvalidConfig)
	}

	return nil
}
