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

package db

import (
	"crypto/tls"
	"crypto/x509"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/carverauto/entityradar/pkg/logger"
	"github.com/carverauto/entityradar/pkg/models"
)

var errPostgresTLSIncomplete = errors.New("cnpg tls: cert_file, key_file, and ca_file are required")

// connURL renders the PostgreSQL connection URL for cfg.
func connURL(cfg *models.PostgresConfig) string {
	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", cfg.Host, port),
		Path:   "/" + cfg.Database,
	}

	if cfg.Username != "" {
		if cfg.Password != "" {
			u.User = url.UserPassword(cfg.Username, cfg.Password)
		} else {
			u.User = url.User(cfg.Username)
		}
	}

	query := u.Query()

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	query.Set("sslmode", sslMode)

	if cfg.ApplicationName != "" {
		query.Set("application_name", cfg.ApplicationName)
	}

	u.RawQuery = query.Encode()

	return u.String()
}

// openPostgres dials a CNPG/PostgreSQL cluster through the pgx stdlib adapter.
func openPostgres(cfg *models.PostgresConfig, log logger.Logger) (*sql.DB, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: postgres configuration is required", ErrFailedOpenDB)
	}

	connConfig, err := pgx.ParseConfig(connURL(cfg))
	if err != nil {
		return nil, fmt.Errorf("%w: cnpg: failed to parse connection string: %w", ErrFailedOpenDB, err)
	}

	if connConfig.RuntimeParams == nil {
		connConfig.RuntimeParams = make(map[string]string)
	}

	for k, v := range cfg.ExtraRuntimeParams {
		if k == "" {
			continue
		}

		connConfig.RuntimeParams[k] = v
	}

	if cfg.StatementTimeout > 0 {
		timeout := time.Duration(cfg.StatementTimeout) / time.Millisecond
		connConfig.RuntimeParams["statement_timeout"] = fmt.Sprintf("%d", timeout)
	}

	tlsConfig, err := buildTLSConfig(cfg)
	if err != nil {
		return nil, err
	}

	if tlsConfig != nil {
		connConfig.TLSConfig = tlsConfig
	}

	conn := stdlib.OpenDB(*connConfig)

	if cfg.MaxConnections > 0 {
		conn.SetMaxOpenConns(cfg.MaxConnections)
	}

	if cfg.MaxConnLifetime > 0 {
		conn.SetConnMaxLifetime(time.Duration(cfg.MaxConnLifetime))
	}

	log.Info().
		Str("host", cfg.Host).
		Str("database", cfg.Database).
		Int("max_conns", cfg.MaxConnections).
		Msg("Opened CNPG/PostgreSQL entity store")

	return conn, nil
}

func buildTLSConfig(cfg *models.PostgresConfig) (*tls.Config, error) {
	if cfg.TLS == nil {
		return nil, nil
	}

	resolve := func(path string) string {
		if path == "" || filepath.IsAbs(path) || cfg.CertDir == "" {
			return path
		}

		return filepath.Join(cfg.CertDir, path)
	}

	certFile := resolve(cfg.TLS.CertFile)
	keyFile := resolve(cfg.TLS.KeyFile)
	caFile := resolve(cfg.TLS.CAFile)

	if certFile == "" || keyFile == "" || caFile == "" {
		return nil, errPostgresTLSIncomplete
	}

	clientCert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("cnpg tls: failed to load client keypair: %w", err)
	}

	caBytes, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("cnpg tls: failed to read CA file: %w", err)
	}

	caPool := x509.NewCertPool()
	if !caPool.AppendCertsFromPEM(caBytes) {
		return nil, fmt.Errorf("cnpg tls: unable to append CA certificate")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{clientCert},
		RootCAs:      caPool,
		MinVersion:   tls.VersionTLS12,
		ServerName:   cfg.Host,
	}, nil
}
