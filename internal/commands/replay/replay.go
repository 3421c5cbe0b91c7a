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

// Package replay implements the replay subcommand.
package replay

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"github.com/tombee/nexus-router/internal/commands/shared"
	"github.com/tombee/nexus-router/sdk"
)

// NewCommand creates the replay command
func NewCommand() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "replay <run-id>",
		Short: "Reconstruct a run from its event stream",
		Long: `Replay reads a run's events in order, rebuilds the run view, and
checks the stream invariants (contiguous seq, paired tool calls, terminal
event). With --strict=false, violations are reported but only a missing
stream fails the replay.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := shared.LoadEnvironment()
			if err != nil {
				return err
			}

			raw, err := json.Marshal(&sdk.ReplayRequest{
				DBPath: env.Config.DBPath,
				RunID:  args[0],
				Strict: &strict,
			})
			if err != nil {
				return err
			}

			result, err := sdk.Replay(cmd.Context(), raw)
			if err != nil {
				if errors.Is(err, sdk.ErrInvalidRequest) {
					return shared.NewBadRequestError("invalid replay request", err)
				}
				return err
			}

			if shared.GetJSON() {
				if err := shared.EmitJSON(result); err != nil {
					return err
				}
			} else {
				verdict := "OK"
				if !result.OK {
					verdict = "FAILED"
				}
				cmd.Printf("replay %s %s\n", args[0], verdict)
				cmd.Printf("  goal:    %s\n", result.RunView.Goal)
				cmd.Printf("  outcome: %s\n", result.RunView.Outcome)
				cmd.Printf("  steps:   %d\n", len(result.RunView.Steps))
				for _, violation := range result.Violations {
					if violation.Seq > 0 {
						cmd.Printf("  violation %s (seq %d): %s\n", violation.Code, violation.Seq, violation.Message)
					} else {
						cmd.Printf("  violation %s: %s\n", violation.Code, violation.Message)
					}
				}
			}

			if !result.OK {
				return shared.NewSilentExit(shared.ExitRunFailed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", true, "Fail the replay on any invariant violation")

	return cmd
}
