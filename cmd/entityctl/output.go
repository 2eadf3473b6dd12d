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
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/carverauto/entityradar/pkg/correlation"
	"github.com/carverauto/entityradar/pkg/models"
)

// outputResult writes result in the requested format.
func outputResult(w io.Writer, result interface{}, format string) error {
	switch format {
	case "json":
		return outputJSON(w, result)
	case "yaml":
		return outputYAML(w, result)
	default:
		return outputTable(w, result)
	}
}

func outputJSON(w io.Writer, result interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	return encoder.Encode(result)
}

// outputYAML goes through JSON so field names and custom marshalers match
// the API.
func outputYAML(w io.Writer, result interface{}) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}

	var generic interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return err
	}

	out, err := yaml.Marshal(generic)
	if err != nil {
		return err
	}

	_, err = w.Write(out)

	return err
}

func outputTable(out io.Writer, result interface{}) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	switch r := result.(type) {
	case correlation.StateInfo:
		writeStateTable(w, &r)
	case *models.CanonicalEntity:
		writeEntityTable(w, r)
	case []*models.CanonicalEntity:
		writeEntitiesTable(w, r)
	default:
		return outputJSON(out, result)
	}

	return w.Flush()
}

func writeStateTable(w io.Writer, s *correlation.StateInfo) {
	fmt.Fprintf(w, "STATE:\t%s\n", s.State)
	fmt.Fprintf(w, "STRATEGY:\t%s\n", valueOrDash(s.Strategy))
	fmt.Fprintf(w, "INTERVAL:\t%s\n", time.Duration(s.Interval))

	if s.LastPass != nil {
		p := s.LastPass
		fmt.Fprintf(w, "LAST PASS:\t%s (%s, %s)\n", p.ID, p.Trigger, p.FinishedAt.Format(time.RFC3339))
		fmt.Fprintf(w, "CANDIDATES:\t%d\n", p.Candidates)
		fmt.Fprintf(w, "LINKS:\t%d (%d failed)\n", p.Links, p.LinkErrors)
		fmt.Fprintf(w, "WARNINGS:\t%d\n", p.Warnings)
	}

	if s.LastError != "" {
		fmt.Fprintf(w, "LAST ERROR:\t%s\n", s.LastError)
	}
}

func writeEntityTable(w io.Writer, e *models.CanonicalEntity) {
	fmt.Fprintf(w, "GLOBAL ID:\t%s\n", e.GlobalID)
	fmt.Fprintf(w, "FIRST SEEN:\t%s\n", e.FirstSeen.Format(time.RFC3339))
	fmt.Fprintf(w, "LAST SEEN:\t%s\n", e.LastSeen.Format(time.RFC3339))
	fmt.Fprintf(w, "REVISION:\t%d\n", e.Revision)

	if e.PendingDelete {
		fmt.Fprintln(w, "PENDING DELETE:\ttrue")
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "SOURCE\tLOCAL ID\tKIND\tFETCHED\tFIELDS")

	for i := range e.Adapters {
		a := &e.Adapters[i]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			a.SourceName, a.LocalID, a.Kind, a.FetchTime.Format(time.RFC3339), fieldNames(a.Fields))
	}

	if len(e.Tags) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "TAG\tVALUE\tSOURCE")

		for _, t := range e.Tags {
			fmt.Fprintf(w, "%s\t%s\t%s\n", t.Name, valueOrDash(t.Value), t.Source)
		}
	}
}

func writeEntitiesTable(w io.Writer, entities []*models.CanonicalEntity) {
	if len(entities) == 0 {
		fmt.Fprintln(w, "No entities found.")
		return
	}

	fmt.Fprintln(w, "GLOBAL ID\tSOURCES\tLAST SEEN\tTAGS")

	for _, e := range entities {
		sources := make([]string, 0, len(e.Adapters))
		for i := range e.Adapters {
			sources = append(sources, e.Adapters[i].SourceName+"/"+e.Adapters[i].LocalID)
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n",
			e.GlobalID, strings.Join(sources, ","), e.LastSeen.Format(time.RFC3339), len(e.Tags))
	}
}

func fieldNames(fields map[string]interface{}) string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}

	sort.Strings(names)

	return valueOrDash(strings.Join(names, ","))
}

func valueOrDash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}
