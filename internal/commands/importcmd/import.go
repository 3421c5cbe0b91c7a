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

// Package importcmd implements the import subcommand.
package importcmd

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"github.com/tombee/nexus-router/internal/commands/shared"
	"github.com/tombee/nexus-router/sdk"
)

// NewCommand creates the import command
func NewCommand() *cobra.Command {
	var (
		mode     string
		newRunID string
		noVerify bool
		noReplay bool
	)

	cmd := &cobra.Command{
		Use:   "import [bundle.json]",
		Short: "Import a bundle into the event store",
		Long: `Import loads an exported bundle ('-' or no argument reads stdin) into
the event store. Conflicting run ids are rejected unless --mode picks
overwrite or new_run_id. The bundle digest is verified and the imported
stream is replayed unless disabled.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := shared.LoadEnvironment()
			if err != nil {
				return err
			}

			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			bundleRaw, err := shared.ReadRequest(path)
			if err != nil {
				return shared.NewBadRequestError("reading bundle", err)
			}

			verify := !noVerify
			replayAfter := !noReplay
			raw, err := json.Marshal(&sdk.ImportRequest{
				DBPath:            env.Config.DBPath,
				Bundle:            json.RawMessage(bundleRaw),
				Mode:              mode,
				NewRunID:          newRunID,
				VerifyDigest:      &verify,
				ReplayAfterImport: &replayAfter,
			})
			if err != nil {
				return shared.NewBadRequestError("bundle is not valid JSON", err)
			}

			result, err := sdk.Import(cmd.Context(), raw)
			if err != nil {
				if errors.Is(err, sdk.ErrInvalidRequest) {
					return shared.NewBadRequestError("invalid import request", err)
				}
				return err
			}

			if shared.GetJSON() {
				if err := shared.EmitJSON(result); err != nil {
					return err
				}
			} else {
				cmd.Printf("import %s\n", result.Status)
				if result.ImportedRunID != "" {
					cmd.Printf("  run_id: %s\n", result.ImportedRunID)
					cmd.Printf("  events: %d\n", result.EventsInserted)
				}
				if result.Conflict != nil {
					cmd.Printf("  conflict: %s (existing run %s)\n", result.Conflict.Reason, result.Conflict.ExistingRunID)
				}
				if result.ReplayOK != nil {
					cmd.Printf("  replay_ok: %v\n", *result.ReplayOK)
				}
			}

			if result.Status != "ok" {
				return shared.NewSilentExit(shared.ExitRunFailed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "Conflict mode (reject_on_conflict, overwrite, new_run_id)")
	cmd.Flags().StringVar(&newRunID, "new-run-id", "", "Target run id for --mode new_run_id")
	cmd.Flags().BoolVar(&noVerify, "no-verify", false, "Skip bundle digest verification")
	cmd.Flags().BoolVar(&noReplay, "no-replay", false, "Skip replay after import")

	return cmd
}
