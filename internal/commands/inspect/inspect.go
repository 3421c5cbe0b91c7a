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

// Package inspect implements the inspect subcommand.
package inspect

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"github.com/tombee/nexus-router/internal/commands/shared"
	"github.com/tombee/nexus-router/sdk"
)

// NewCommand creates the inspect command
func NewCommand() *cobra.Command {
	var (
		runID  string
		status string
		since  string
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "List runs recorded in the event store",
		Long: `Inspect lists run summaries from the event store, newest first,
optionally filtered by run id, status, or creation time.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := shared.LoadEnvironment()
			if err != nil {
				return err
			}

			raw, err := json.Marshal(&sdk.InspectRequest{
				DBPath: env.Config.DBPath,
				RunID:  runID,
				Status: status,
				Since:  since,
				Limit:  limit,
				Offset: offset,
			})
			if err != nil {
				return err
			}

			result, err := sdk.Inspect(cmd.Context(), raw)
			if err != nil {
				if errors.Is(err, sdk.ErrInvalidRequest) {
					return shared.NewBadRequestError("invalid inspect request", err)
				}
				return err
			}

			if shared.GetJSON() {
				return shared.EmitJSON(result)
			}

			if len(result.Runs) == 0 {
				cmd.Println("no runs")
				return nil
			}
			for _, run := range result.Runs {
				cmd.Printf("%s  %-9s  %-7s  %4d events  %s  %s\n",
					run.CreatedAt, run.Status, run.Mode, run.EventCount, run.RunID, run.Goal)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run-id", "", "Filter to one run id")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (RUNNING, COMPLETED, FAILED)")
	cmd.Flags().StringVar(&since, "since", "", "Filter to runs created at or after this RFC 3339 timestamp")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum runs to return (default 50)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Runs to skip")

	return cmd
}
