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

package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/carverauto/entityradar/pkg/correlation"
	"github.com/carverauto/entityradar/pkg/models"
)

var (
	errInvalidTag   = errors.New("tag must be name or name=value")
	errInvalidField = errors.New("field must be name=value")
)

func stateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show the correlation scheduler state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var state correlation.StateInfo
			if err := opts.client().do(cmd.Context(), http.MethodGet, "/correlation/state", nil, nil, &state); err != nil {
				return err
			}

			return outputResult(opts.out, state, opts.output)
		},
	}
}

func startCmd(opts *options) *cobra.Command {
	return schedulerCmd(opts, "start", "Enable scheduled correlation passes")
}

func stopCmd(opts *options) *cobra.Command {
	return schedulerCmd(opts, "stop", "Disable scheduled correlation passes")
}

func schedulerCmd(opts *options, verb, short string) *cobra.Command {
	return &cobra.Command{
		Use:   verb,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var state correlation.StateInfo
			if err := opts.client().do(cmd.Context(), http.MethodPost, "/correlation/"+verb, nil, nil, &state); err != nil {
				return err
			}

			return outputResult(opts.out, state, opts.output)
		},
	}
}

func triggerCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "trigger [global-id...]",
		Short: "Run a correlation pass now",
		Long: `Run a correlation pass immediately.

With no ids the pass covers every entity selected by the default filter.
With ids it is scoped to those entities.

Examples:
  entityctl trigger
  entityctl trigger 6f1c2a1e-0d7e-4b59-9b0e-2f7f5d8e9a10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var state correlation.StateInfo

			req := models.TriggerRequest{EntityIDs: args}
			if err := opts.client().do(cmd.Context(), http.MethodPost, "/correlation/trigger", nil, req, &state); err != nil {
				return err
			}

			return outputResult(opts.out, state, opts.output)
		},
	}
}

func getCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get <global-id>",
		Short: "Show one canonical entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var entity models.CanonicalEntity
			if err := opts.client().do(cmd.Context(), http.MethodGet, "/entities/"+url.PathEscape(args[0]), nil, nil, &entity); err != nil {
				return err
			}

			return outputResult(opts.out, &entity, opts.output)
		},
	}
}

func entitiesCmd(opts *options) *cobra.Command {
	var (
		ids            []string
		fields         []string
		attrs          = map[string]*string{}
		limit          int
		includePending bool
	)

	cmd := &cobra.Command{
		Use:   "entities",
		Short: "List canonical entities",
		Long: `List canonical entities matching a filter.

Examples:
  entityctl entities --limit 20
  entityctl entities --field os_type=linux -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			query := url.Values{}

			for _, id := range ids {
				query.Add("global_id", id)
			}

			for name, value := range attrs {
				if *value != "" {
					query.Set(name, *value)
				}
			}

			for _, f := range fields {
				name, value, ok := strings.Cut(f, "=")
				if !ok || name == "" {
					return fmt.Errorf("%w: %q", errInvalidField, f)
				}

				query.Add("field."+name, value)
			}

			if limit > 0 {
				query.Set("limit", strconv.Itoa(limit))
			}

			if includePending {
				query.Set("include_pending_delete", "true")
			}

			var entities []*models.CanonicalEntity
			if err := opts.client().do(cmd.Context(), http.MethodGet, "/entities", query, nil, &entities); err != nil {
				return err
			}

			return outputResult(opts.out, entities, opts.output)
		},
	}

	cmd.Flags().StringSliceVar(&ids, "global-id", nil, "Restrict to these global ids")
	for _, name := range []string{"source", "hostname", "ip", "mac", "tag"} {
		attrs[name] = cmd.Flags().String(name, "", "Match entities by "+name)
	}

	cmd.Flags().StringArrayVar(&fields, "field", nil, "Field match as name=value (repeatable)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of entities")
	cmd.Flags().BoolVar(&includePending, "include-pending-delete", false, "Include entities no source reports any more")

	return cmd
}

func tagCmd(opts *options) *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "tag <global-id> <name[=value]>",
		Short: "Attach a manual tag to an entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, value, _ := strings.Cut(args[1], "=")
			if strings.TrimSpace(name) == "" {
				return fmt.Errorf("%w: %q", errInvalidTag, args[1])
			}

			req := models.TagRequest{Name: name, Value: value, Source: source}

			var entity models.CanonicalEntity

			path := "/entities/" + url.PathEscape(args[0]) + "/tags"
			if err := opts.client().do(cmd.Context(), http.MethodPost, path, nil, req, &entity); err != nil {
				return err
			}

			return outputResult(opts.out, &entity, opts.output)
		},
	}

	cmd.Flags().StringVar(&source, "source", "entityctl", "Source recorded on the tag")

	return cmd
}
