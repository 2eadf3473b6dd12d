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
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/carverauto/entityradar/pkg/logger"
)

// DefaultEnvPrefix prefixes every entityradar environment override.
const DefaultEnvPrefix = "ENTITYRADAR_"

var (
	// ErrDstMustBeNonNilPointer indicates that the destination must be a non-nil pointer.
	ErrDstMustBeNonNilPointer = errors.New("dst must be a non-nil pointer")
	// ErrDstMustBePointerToStruct indicates that the destination must be a pointer to a struct.
	ErrDstMustBePointerToStruct = errors.New("dst must be a pointer to a struct")
)

// defaultAliases maps canonical variable names (without prefix) to the
// short forms operators use.
var defaultAliases = map[string]string{
	"DATABASE_DRIVER": "DB_DRIVER",
	"DATABASE_PATH":   "DB_PATH",
}

// EnvConfigLoader loads configuration from environment variables.
// Nested struct fields use underscore separation: DATABASE_PATH maps to
// config.Database.Path.
type EnvConfigLoader struct {
	logger  logger.Logger
	prefix  string
	aliases map[string]string
}

// NewEnvConfigLoader creates a new environment variable config loader.
func NewEnvConfigLoader(log logger.Logger, prefix string) *EnvConfigLoader {
	return &EnvConfigLoader{
		logger:  log,
		prefix:  prefix,
		aliases: defaultAliases,
	}
}

// Load implements ConfigLoader. Only variables that are set change dst.
func (e *EnvConfigLoader) Load(_ context.Context, _ string, dst interface{}) error {
	if jsonConfig := os.Getenv(e.prefix + "CONFIG_JSON"); jsonConfig != "" {
		if err := json.Unmarshal([]byte(jsonConfig), dst); err != nil {
			return fmt.Errorf("failed to unmarshal %sCONFIG_JSON: %w", e.prefix, err)
		}

		e.logger.Info().Msg("Loaded configuration from CONFIG_JSON environment variable")
	}

	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return ErrDstMustBeNonNilPointer
	}

	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return ErrDstMustBePointerToStruct
	}

	return e.loadStruct(v, "")
}

// loadStruct walks the json-tagged fields of v. name is the canonical
// variable name of v without the prefix.
func (e *EnvConfigLoader) loadStruct(v reflect.Value, name string) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.CanSet() {
			continue
		}

		jsonTag := fieldType.Tag.Get("json")
		if jsonTag == "" || jsonTag == "-" {
			continue
		}

		key := strings.ToUpper(strings.Split(jsonTag, ",")[0])
		if name != "" {
			key = name + "_" + key
		}

		if err := e.setFieldValue(field, key); err != nil {
			return err
		}
	}

	return nil
}

// lookup returns the value for a canonical name, falling back to its alias.
func (e *EnvConfigLoader) lookup(key string) (string, string, bool) {
	envName := e.prefix + key
	if v, ok := os.LookupEnv(envName); ok && v != "" {
		return envName, v, true
	}

	if alias, ok := e.aliases[key]; ok {
		envName = e.prefix + alias
		if v, ok := os.LookupEnv(envName); ok && v != "" {
			return envName, v, true
		}
	}

	return "", "", false
}

// anySet reports whether a variable exists below the canonical name key, so
// optional sections are only allocated when configured.
func (e *EnvConfigLoader) anySet(key string) bool {
	full := e.prefix + key + "_"

	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, full) {
			return true
		}
	}

	for canonical, alias := range e.aliases {
		if strings.HasPrefix(canonical, key+"_") {
			if _, ok := os.LookupEnv(e.prefix + alias); ok {
				return true
			}
		}
	}

	return false
}

func (e *EnvConfigLoader) setFieldValue(field reflect.Value, key string) error {
	if isDuration(field.Type()) {
		return e.setScalar(field, key)
	}

	switch {
	case field.Kind() == reflect.Struct:
		return e.loadStruct(field, key)
	case field.Kind() == reflect.Ptr && field.Type().Elem().Kind() == reflect.Struct:
		if field.IsNil() {
			if !e.anySet(key) {
				return nil
			}

			field.Set(reflect.New(field.Type().Elem()))
		}

		return e.loadStruct(field.Elem(), key)
	default:
		return e.setScalar(field, key)
	}
}

func (e *EnvConfigLoader) setScalar(field reflect.Value, key string) error {
	envName, envValue, ok := e.lookup(key)
	if !ok {
		return nil
	}

	if err := setFieldByKind(field, envName, envValue); err != nil {
		return err
	}

	e.logger.Debug().Str("env", envName).Msg("Loaded value from environment variable")

	return nil
}

func isDuration(t reflect.Type) bool {
	return t.Kind() == reflect.Int64 && (t == reflect.TypeOf(time.Duration(0)) || t.Name() == "Duration")
}

// setFieldByKind sets field value based on its reflect.Kind.
func setFieldByKind(field reflect.Value, envName, envValue string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(envValue)
	case reflect.Bool:
		b, err := strconv.ParseBool(envValue)
		if err != nil {
			return fmt.Errorf("invalid boolean value for %s: %w", envName, err)
		}

		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return setIntField(field, envName, envValue)
	case reflect.Slice:
		return setSliceField(field, envName, envValue)
	default:
		if err := json.Unmarshal([]byte(envValue), field.Addr().Interface()); err != nil {
			return fmt.Errorf("unsupported value for %s: %w", envName, err)
		}
	}

	return nil
}

// setIntField sets an integer field value, with special handling for durations.
func setIntField(field reflect.Value, envName, envValue string) error {
	if isDuration(field.Type()) {
		d, err := time.ParseDuration(envValue)
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %w", envName, err)
		}

		field.SetInt(int64(d))

		return nil
	}

	i, err := strconv.ParseInt(envValue, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer value for %s: %w", envName, err)
	}

	field.SetInt(i)

	return nil
}

// setSliceField splits string slices on commas and decodes anything else as JSON.
func setSliceField(field reflect.Value, envName, envValue string) error {
	if field.Type().Elem().Kind() != reflect.String {
		if err := json.Unmarshal([]byte(envValue), field.Addr().Interface()); err != nil {
			return fmt.Errorf("invalid slice value for %s: %w", envName, err)
		}

		return nil
	}

	values := strings.Split(envValue, ",")
	slice := reflect.MakeSlice(field.Type(), 0, len(values))

	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			slice = reflect.Append(slice, reflect.ValueOf(v).Convert(field.Type().Elem()))
		}
	}

	field.Set(slice)

	return nil
}
