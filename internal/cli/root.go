// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cli assembles the root Cobra command for nexus-router.
package cli

import (
	"github.com/spf13/cobra"
	"github.com/tombee/nexus-router/internal/commands/shared"
)

// SetVersion sets the version information (called from main)
func SetVersion(v, c, b string) {
	shared.SetVersion(v, c, b)
}

// NewRootCommand creates the root Cobra command for nexus-router
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nexus-router",
		Short: "nexus-router - deterministic tool dispatch with an auditable event log",
		Long: `nexus-router executes tool-call plans through dispatch adapters and
records every decision in an append-only event log. Runs are replayable,
exportable as portable bundles, and importable into other databases.

Requests are JSON documents read from a file or stdin; responses are JSON
on stdout. Logs go to stderr.`,
		SilenceUsage:  true, // Don't show usage on errors
		SilenceErrors: true, // We handle errors ourselves for proper exit codes
	}

	verbose, json, config, db := shared.RegisterFlagPointers()

	cmd.PersistentFlags().BoolVarP(verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVar(json, "json", false, "Output in JSON format")
	cmd.PersistentFlags().StringVar(config, "config", "", "Path to config file (default: ~/.config/nexus-router/config.yaml)")
	cmd.PersistentFlags().StringVar(db, "db", "", "Event store database path (overrides config)")

	return cmd
}

// HandleExitError handles exit errors with proper exit codes
func HandleExitError(err error) {
	shared.HandleExitError(err)
}
