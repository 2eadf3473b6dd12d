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

package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/carverauto/entityradar/pkg/models"
	"github.com/carverauto/entityradar/pkg/record"
)

// maxLineBytes bounds one JSON-lines record.
const maxLineBytes = 4 << 20

// RawEntity is one fetched payload with its stable source-local id.
type RawEntity struct {
	Payload map[string]interface{}
	LocalID string
}

// Collector produces a finite, lazy sequence of raw entities per fetch cycle.
// A *RecordError skips one record; any other error aborts the cycle.
type Collector interface {
	Source() models.SourceRef
	Schema() *record.Schema
	Fetch(ctx context.Context) iter.Seq2[RawEntity, error]
}

// JSONLinesCollector reads newline-delimited JSON objects from a file or
// from every *.jsonl, *.ndjson and *.json file in a drop directory.
type JSONLinesCollector struct {
	cfg    models.CollectorConfig
	schema *record.Schema
}

// NewJSONLinesCollector builds a collector for one configured source.
func NewJSONLinesCollector(cfg models.CollectorConfig) (*JSONLinesCollector, error) {
	schema, ok := record.SchemaFor(cfg.Kind)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}

	if len(cfg.IDKeys) == 0 {
		return nil, fmt.Errorf("%w: collector %s has no id_keys", ErrMissingIDKey, cfg.Source)
	}

	return &JSONLinesCollector{cfg: cfg, schema: schema}, nil
}

func (c *JSONLinesCollector) Source() models.SourceRef {
	return models.SourceRef{Name: c.cfg.Source, InstanceID: c.cfg.Instance}
}

func (c *JSONLinesCollector) Schema() *record.Schema {
	return c.schema
}

func (c *JSONLinesCollector) Fetch(ctx context.Context) iter.Seq2[RawEntity, error] {
	return func(yield func(RawEntity, error) bool) {
		files, err := c.files()
		if err != nil {
			yield(RawEntity{}, err)
			return
		}

		for _, path := range files {
			if !c.readFile(ctx, path, yield) {
				return
			}
		}
	}
}

func (c *JSONLinesCollector) files() ([]string, error) {
	info, err := os.Stat(c.cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("collector %s: %w", c.cfg.Source, err)
	}

	if !info.IsDir() {
		return []string{c.cfg.Path}, nil
	}

	var files []string

	err = filepath.WalkDir(c.cfg.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != c.cfg.Path {
				return filepath.SkipDir
			}

			return nil
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".jsonl", ".ndjson", ".json":
			files = append(files, path)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collector %s: %w", c.cfg.Source, err)
	}

	sort.Strings(files)

	return files, nil
}

// readFile yields every record of one file and reports whether iteration
// should continue.
func (c *JSONLinesCollector) readFile(ctx context.Context, path string, yield func(RawEntity, error) bool) bool {
	f, err := os.Open(path)
	if err != nil {
		return yield(RawEntity{}, fmt.Errorf("collector %s: %w", c.cfg.Source, err))
	}

	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	line := 0

	for scanner.Scan() {
		line++

		if err := ctx.Err(); err != nil {
			yield(RawEntity{}, err)
			return false
		}

		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		location := fmt.Sprintf("%s:%d", filepath.Base(path), line)

		payload, err := decodeObject(raw)
		if err != nil {
			if !yield(RawEntity{}, &RecordError{Location: location, Err: fmt.Errorf("%w: %w", ErrMalformedRecord, err)}) {
				return false
			}

			continue
		}

		localID, err := LocalID(payload, c.cfg.IDKeys)
		if err != nil {
			if !yield(RawEntity{}, &RecordError{Location: location, Err: err}) {
				return false
			}

			continue
		}

		if !yield(RawEntity{Payload: payload, LocalID: localID}, nil) {
			return false
		}
	}

	if err := scanner.Err(); err != nil {
		return yield(RawEntity{}, fmt.Errorf("collector %s: reading %s: %w", c.cfg.Source, path, err))
	}

	return true
}

// decodeObject keeps numbers as json.Number so ids and integers survive
// exactly.
func decodeObject(raw []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var payload map[string]interface{}
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}

	if payload == nil {
		return nil, errors.New("expected a JSON object")
	}

	return payload, nil
}

// LocalID joins the values of keys with "_" to form a stable id.
func LocalID(payload map[string]interface{}, keys []string) (string, error) {
	parts := make([]string, 0, len(keys))

	for _, k := range keys {
		v, ok := payload[k]
		if !ok || v == nil {
			return "", fmt.Errorf("%w: %s", ErrMissingIDKey, k)
		}

		s := strings.TrimSpace(fmt.Sprint(v))
		if s == "" {
			return "", fmt.Errorf("%w: %s", ErrMissingIDKey, k)
		}

		parts = append(parts, s)
	}

	return strings.Join(parts, "_"), nil
}
