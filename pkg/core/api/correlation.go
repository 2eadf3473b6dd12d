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
	"context"
	"net/http"

	"github.com/carverauto/entityradar/pkg/models"
)

func (s *APIServer) getCorrelationState(w http.ResponseWriter, _ *http.Request) {
	if s.scheduler == nil {
		s.writeError(w, errNotConfigured)
		return
	}

	writeJSON(w, http.StatusOK, s.scheduler.State())
}

func (s *APIServer) startCorrelation(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		s.writeError(w, errNotConfigured)
		return
	}

	// the scheduler outlives the request
	if err := s.scheduler.Start(context.WithoutCancel(r.Context())); err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, s.scheduler.State())
}

func (s *APIServer) stopCorrelation(w http.ResponseWriter, _ *http.Request) {
	if s.scheduler == nil {
		s.writeError(w, errNotConfigured)
		return
	}

	if err := s.scheduler.Stop(); err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, s.scheduler.State())
}

func (s *APIServer) triggerCorrelation(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		s.writeError(w, errNotConfigured)
		return
	}

	var req models.TriggerRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.scheduler.Trigger(req.EntityIDs); err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, s.scheduler.State())
}

func (s *APIServer) getCorrelationFilter(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, errNotConfigured)
		return
	}

	f, err := s.store.GetFilter(r.Context(), models.DefaultFilterName)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if f == nil {
		f = &models.EntityFilter{}
	}

	writeJSON(w, http.StatusOK, f)
}

func (s *APIServer) putCorrelationFilter(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, errNotConfigured)
		return
	}

	var f models.EntityFilter
	if err := decodeBody(r, &f); err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.store.SetFilter(r.Context(), models.DefaultFilterName, &f); err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, &f)
}
