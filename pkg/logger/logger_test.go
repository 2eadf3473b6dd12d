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

package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestNewParsesLevel(t *testing.T) {
	log, err := New(context.Background(), &Config{Level: "warn", Output: "stderr"})
	require.NoError(t, err)

	zl := log.WithComponent("test")
	assert.Equal(t, zerolog.WarnLevel, zl.GetLevel())
}

func TestNewDebugOverridesLevel(t *testing.T) {
	log, err := New(context.Background(), &Config{Level: "error", Debug: true})
	require.NoError(t, err)

	zl := log.WithComponent("test")
	assert.Equal(t, zerolog.DebugLevel, zl.GetLevel())
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(context.Background(), &Config{Level: "chatty"})
	require.Error(t, err)
}

func TestWrapAddsComponentField(t *testing.T) {
	var buf bytes.Buffer

	log := Wrap(zerolog.New(&buf))
	component := log.WithComponent("scheduler")
	component.Info().Str("pass_id", "p-1").Msg("pass finished")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "scheduler", line["component"])
	assert.Equal(t, "p-1", line["pass_id"])
	assert.Equal(t, "pass finished", line["message"])
}

func TestSetDebug(t *testing.T) {
	SetDebug(true)
	assert.Equal(t, zerolog.DebugLevel, GetLogger().GetLevel())

	SetDebug(false)
	assert.Equal(t, zerolog.InfoLevel, GetLogger().GetLevel())
}

func TestTestLoggerIsDisabled(t *testing.T) {
	zl := NewTestLogger().WithComponent("x")
	assert.Equal(t, zerolog.Disabled, zl.GetLevel())
}

func TestDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Duration
		wantErr  bool
	}{
		{name: "string duration", input: `"5s"`, expected: Duration(5 * time.Second)},
		{name: "numeric duration (nanoseconds)", input: `5000000000`, expected: Duration(5 * time.Second)},
		{name: "complex duration string", input: `"1h30m45s"`, expected: Duration(time.Hour + 30*time.Minute + 45*time.Second)},
		{name: "invalid duration string", input: `"invalid"`, wantErr: true},
		{name: "invalid type", input: `true`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration

			err := json.Unmarshal([]byte(tt.input), &d)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, d)
		})
	}
}

func TestDuration_UnmarshalYAML(t *testing.T) {
	var cfg struct {
		Timeout Duration `yaml:"timeout"`
	}

	require.NoError(t, yaml.Unmarshal([]byte("timeout: 2m\n"), &cfg))
	assert.Equal(t, Duration(2*time.Minute), cfg.Timeout)
}

func TestOTelWriterDisabled(t *testing.T) {
	_, err := NewOTELWriter(context.Background(), OTelConfig{})
	require.ErrorIs(t, err, ErrOTelLoggingDisabled)

	_, err = NewOTELWriter(context.Background(), OTelConfig{Enabled: true})
	require.ErrorIs(t, err, ErrOTelEndpointRequired)
}

func TestNewMeterProviderDisabled(t *testing.T) {
	_, err := NewMeterProvider(context.Background(), nil, "entityradar", "dev")
	require.ErrorIs(t, err, ErrOTelMetricsDisabled)

	_, err = NewMeterProvider(context.Background(), &OTelConfig{Enabled: true}, "entityradar", "dev")
	require.ErrorIs(t, err, ErrOTelMetricsDisabled)
}

func TestAttributeStringTruncates(t *testing.T) {
	long := bytes.Repeat([]byte("a"), maxAttributeValueLength+10)

	out := attributeString(string(long))
	assert.Len(t, out, maxAttributeValueLength)
	assert.Equal(t, `{"k":1}`, attributeString(map[string]interface{}{"k": 1}))
}
