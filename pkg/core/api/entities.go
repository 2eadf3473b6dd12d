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
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/carverauto/entityradar/pkg/models"
)

const (
	defaultQueryLimit = 100
	maxQueryLimit     = 1000

	fieldParamPrefix = "field."
	tagSourceManual  = "api"
)

func (s *APIServer) queryEntities(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, errNotConfigured)
		return
	}

	f, err := parseEntityFilter(r.URL.Query())
	if err != nil {
		s.writeError(w, err)
		return
	}

	entities, err := s.store.Query(r.Context(), f)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if entities == nil {
		entities = []*models.CanonicalEntity{}
	}

	writeJSON(w, http.StatusOK, entities)
}

func (s *APIServer) getEntity(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, errNotConfigured)
		return
	}

	e, err := s.store.GetEntity(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, e)
}

func (s *APIServer) addTag(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, errNotConfigured)
		return
	}

	var req models.TagRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	source := req.Source
	if source == "" {
		source = tagSourceManual
	}

	e, err := s.store.AddTag(r.Context(), mux.Vars(r)["id"], models.Tag{
		Name:   strings.TrimSpace(req.Name),
		Value:  req.Value,
		Source: source,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, e)
}

func (s *APIServer) queryHistory(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, errNotConfigured)
		return
	}

	params := r.URL.Query()

	f, err := parseEntityFilter(params)
	if err != nil {
		s.writeError(w, err)
		return
	}

	hf := &models.HistoryFilter{EntityFilter: *f}

	if v := params.Get("as_of"); v != "" {
		t, err := parseTime("as_of", v)
		if err != nil {
			s.writeError(w, err)
			return
		}

		hf.AsOf = *t
	}

	history, err := s.store.QueryHistory(r.Context(), hf)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if history == nil {
		history = []models.HistoricalEntity{}
	}

	writeJSON(w, http.StatusOK, history)
}

func (s *APIServer) getSchema(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, errNotConfigured)
		return
	}

	fields, err := s.store.GetSchema(r.Context(), mux.Vars(r)["kind"])
	if err != nil {
		s.writeError(w, err)
		return
	}

	if fields == nil {
		fields = []models.SchemaField{}
	}

	writeJSON(w, http.StatusOK, fields)
}

// parseEntityFilter builds a filter from query parameters. global_id may
// repeat; field.<name>=<value> matches constituent fields.
func parseEntityFilter(params url.Values) (*models.EntityFilter, error) {
	f := &models.EntityFilter{
		GlobalIDs: params["global_id"],
		Source:    params.Get("source"),
		Hostname:  params.Get("hostname"),
		IP:        params.Get("ip"),
		MAC:       params.Get("mac"),
		Tag:       params.Get("tag"),
		Limit:     defaultQueryLimit,
	}

	for key, values := range params {
		name, ok := strings.CutPrefix(key, fieldParamPrefix)
		if !ok || name == "" || len(values) == 0 {
			continue
		}

		if f.Fields == nil {
			f.Fields = make(map[string]string)
		}

		f.Fields[name] = values[0]
	}

	var err error

	if f.LastSeenAfter, err = optionalTime(params, "last_seen_after"); err != nil {
		return nil, err
	}

	if f.LastSeenBefore, err = optionalTime(params, "last_seen_before"); err != nil {
		return nil, err
	}

	if v := params.Get("include_pending_delete"); v != "" {
		if f.IncludePendingDelete, err = strconv.ParseBool(v); err != nil {
			return nil, badRequest("include_pending_delete must be a boolean")
		}
	}

	if v := params.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%w: %q", errInvalidLimitArg, v)
		}

		f.Limit = min(n, maxQueryLimit)
	}

	return f, nil
}

func optionalTime(params url.Values, key string) (*time.Time, error) {
	v := params.Get(key)
	if v == "" {
		return nil, nil
	}

	return parseTime(key, v)
}

func parseTime(key, v string) (*time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errInvalidTimeArg, key, err)
	}

	t = t.UTC()

	return &t, nil
}
