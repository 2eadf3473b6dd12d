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

package api

import (
	"errors"
	"net/http"

	"github.com/carverauto/entityradar/pkg/correlation"
	"github.com/carverauto/entityradar/pkg/db"
	"github.com/carverauto/entityradar/pkg/models"
	"github.com/carverauto/entityradar/pkg/record"
)

var (
	errBadRequest      = errors.New("bad request")
	errNotConfigured   = errors.New("component not configured")
	errInvalidTimeArg  = errors.New("invalid time parameter")
	errInvalidLimitArg = errors.New("invalid limit parameter")
)

type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func (*requestError) Unwrap() error { return errBadRequest }

func badRequest(msg string) error {
	return &requestError{msg: msg}
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var strategyErr *correlation.StrategyError

	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, errInvalidTimeArg),
		errors.Is(err, errInvalidLimitArg),
		errors.Is(err, record.ErrTypeMismatch),
		errors.Is(err, record.ErrValueInvalid),
		errors.Is(err, correlation.ErrInvalidInterval),
		errors.Is(err, db.ErrGlobalIDRequired),
		errors.Is(err, db.ErrTagNameRequired),
		errors.Is(err, db.ErrFilterNameRequired),
		errors.Is(err, db.ErrSchemaKindRequired):
		return http.StatusBadRequest
	case errors.Is(err, db.ErrEntityNotFound):
		return http.StatusNotFound
	case errors.Is(err, db.ErrConstraint),
		errors.As(err, &strategyErr),
		errors.Is(err, correlation.ErrLifecycleConflict),
		errors.Is(err, correlation.ErrBusy),
		errors.Is(err, correlation.ErrNoStrategy):
		return http.StatusConflict
	case errors.Is(err, errNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *APIServer) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)

	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg("API request failed")

		msg = "internal server error"
	}

	writeJSON(w, status, models.ErrorResponse{Message: msg, Status: status})
}
