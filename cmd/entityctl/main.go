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

// entityctl drives a running entityradar service over its HTTP API.
//
// Usage:
//
//	entityctl state
//	entityctl start
//	entityctl trigger <global-id>...
//	entityctl get <global-id>
//	entityctl entities --global-id <id> --limit 20
//	entityctl tag <global-id> owner=alice
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

const (
	defaultAddr = "http://localhost:8090"
	envAPIKey   = "ENTITYRADAR_API_KEY"
	envAddr     = "ENTITYRADAR_ADDR"
)

var version = "dev"

type options struct {
	addr   string
	apiKey string
	output string
	out    io.Writer
}

func (o *options) client() *client {
	return newClient(o.addr, o.apiKey)
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{out: out}

	rootCmd := &cobra.Command{
		Use:   "entityctl",
		Short: "Control an entityradar service",
		Long: `entityctl talks to the entityradar HTTP API.

It inspects and drives the correlation scheduler and reads canonical
entities from the store.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	addr := os.Getenv(envAddr)
	if addr == "" {
		addr = defaultAddr
	}

	rootCmd.PersistentFlags().StringVar(&opts.addr, "addr", addr, "Base URL of the entityradar API (env "+envAddr+")")
	rootCmd.PersistentFlags().StringVar(&opts.apiKey, "api-key", os.Getenv(envAPIKey), "API key (env "+envAPIKey+")")
	rootCmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "table", "Output format: table, json, yaml")

	rootCmd.AddCommand(stateCmd(opts))
	rootCmd.AddCommand(startCmd(opts))
	rootCmd.AddCommand(stopCmd(opts))
	rootCmd.AddCommand(triggerCmd(opts))
	rootCmd.AddCommand(getCmd(opts))
	rootCmd.AddCommand(entitiesCmd(opts))
	rootCmd.AddCommand(tagCmd(opts))

	return rootCmd
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
