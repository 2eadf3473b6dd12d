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

// Package natsutil publishes entityradar events to NATS JetStream.
package natsutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/entityradar/pkg/correlation"
	"github.com/carverauto/entityradar/pkg/logger"
	"github.com/carverauto/entityradar/pkg/models"
)

// publisher is the part of jetstream.JetStream used to emit events.
type publisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// WarningPublisher forwards correlation warnings to JetStream as CloudEvents.
type WarningPublisher struct {
	js      publisher
	subject string
	logger  logger.Logger
}

var _ correlation.Notifier = (*WarningPublisher)(nil)

func NewWarningPublisher(js publisher, subject string, log logger.Logger) *WarningPublisher {
	if subject == "" {
		subject = models.DefaultWarningSubject
	}

	return &WarningPublisher{js: js, subject: subject, logger: log}
}

// Notify publishes one warning. The CloudEvent id doubles as the JetStream
// message id so redeliveries are deduplicated by the stream.
func (p *WarningPublisher) Notify(ctx context.Context, w *correlation.WarningResult) error {
	at := w.RaisedAt

	event := models.CloudEvent{
		SpecVersion:     models.CloudEventSpecVersion,
		ID:              uuid.New().String(),
		Source:          models.CorrelationEventSource,
		Type:            models.WarningEventType,
		DataContentType: "application/json",
		Subject:         p.subject,
		Time:            &at,
		Data:            w,
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal correlation warning: %w", err)
	}

	ack, err := p.js.Publish(ctx, event.Subject, eventBytes, jetstream.WithMsgID(event.ID))
	if err != nil {
		return fmt.Errorf("failed to publish correlation warning: %w", err)
	}

	p.logger.Debug().
		Str("event_id", event.ID).
		Str("subject", event.Subject).
		Uint64("seq", ack.Sequence).
		Msg("Published correlation warning")

	return nil
}

// Connect opens a NATS connection with credentials and mTLS when configured.
func Connect(cfg *models.NATSConfig, log logger.Logger, extraOpts ...nats.Option) (*nats.Conn, error) {
	opts := []nats.Option{nats.Name("entityradar")}

	if cfg.CredsFile != "" {
		opts = append(opts, nats.UserCredentials(cfg.CredsFile))
	}

	if cfg.TLS != nil {
		tlsConf, err := TLSConfig(cfg.TLS, cfg.ServerName)
		if err != nil {
			return nil, fmt.Errorf("failed to build NATS TLS config: %w", err)
		}

		opts = append(opts, nats.Secure(tlsConf))
	}

	opts = append(opts,
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
		nats.ConnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("Connected to NATS")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)

	opts = append(opts, extraOpts...)

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return nc, nil
}

// ConnectWarningPublisher connects, ensures the warning stream exists and
// returns a publisher bound to it. The caller owns the returned connection.
func ConnectWarningPublisher(ctx context.Context, cfg *models.NATSConfig, log logger.Logger) (*WarningPublisher, *nats.Conn, error) {
	nc, err := Connect(cfg, log)
	if err != nil {
		return nil, nil, err
	}

	var js jetstream.JetStream

	if cfg.Domain != "" {
		js, err = jetstream.NewWithDomain(nc, cfg.Domain)
	} else {
		js, err = jetstream.New(nc)
	}

	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	subject := cfg.Subject
	if subject == "" {
		subject = models.DefaultWarningSubject
	}

	stream := cfg.Stream
	if stream == "" {
		stream = models.DefaultWarningStream
	}

	if err := EnsureStream(ctx, js, stream, subject, log); err != nil {
		nc.Close()
		return nil, nil, err
	}

	return NewWarningPublisher(js, subject, log), nc, nil
}

// EnsureStream creates streamName when missing, or adds subject to it when
// no existing subject pattern covers it.
func EnsureStream(ctx context.Context, js jetstream.StreamManager, streamName, subject string, log logger.Logger) error {
	stream, err := js.Stream(ctx, streamName)
	if err != nil {
		if !isStreamMissingErr(err) {
			return fmt.Errorf("failed to look up stream %s: %w", streamName, err)
		}

		if _, err := js.CreateStream(ctx, jetstream.StreamConfig{
			Name:     streamName,
			Subjects: []string{subject},
		}); err != nil {
			return fmt.Errorf("failed to create stream %s: %w", streamName, err)
		}

		log.Info().Str("stream", streamName).Str("subject", subject).Msg("Created NATS JetStream stream")

		return nil
	}

	cfg := stream.CachedInfo().Config

	subjects := ensureSubjectList(append([]string(nil), cfg.Subjects...), subject)
	if len(subjects) == len(cfg.Subjects) {
		return nil
	}

	cfg.Subjects = subjects

	if _, err := js.UpdateStream(ctx, cfg); err != nil {
		return fmt.Errorf("failed to add subject %s to stream %s: %w", subject, streamName, err)
	}

	log.Info().Str("stream", streamName).Str("subject", subject).Msg("Added subject to NATS JetStream stream")

	return nil
}

// ensureSubjectList appends subject unless a pattern already covers it.
func ensureSubjectList(subjects []string, subject string) []string {
	for _, pattern := range subjects {
		if matchesSubject(pattern, subject) {
			return subjects
		}
	}

	return append(subjects, subject)
}

// matchesSubject applies NATS wildcard rules: '*' matches one token and a
// trailing '>' matches the rest.
func matchesSubject(pattern, subject string) bool {
	pt := strings.Split(pattern, ".")
	st := strings.Split(subject, ".")

	for i, tok := range pt {
		if tok == ">" {
			return i == len(pt)-1 && len(st) > i
		}

		if i >= len(st) {
			return false
		}

		if tok != "*" && tok != st[i] {
			return false
		}
	}

	return len(pt) == len(st)
}

func isStreamMissingErr(err error) bool {
	return errors.Is(err, jetstream.ErrStreamNotFound) ||
		errors.Is(err, jetstream.ErrNoStreamResponse) ||
		errors.Is(err, nats.ErrStreamNotFound) ||
		errors.Is(err, nats.ErrNoStreamResponse) ||
		errors.Is(err, nats.ErrNoResponders)
}
