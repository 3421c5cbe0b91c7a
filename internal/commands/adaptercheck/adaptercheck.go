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

// Package adaptercheck implements the validate-adapter subcommand.
package adaptercheck

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/tombee/nexus-router/internal/commands/shared"
	"github.com/tombee/nexus-router/sdk"
)

// NewCommand creates the validate-adapter command
func NewCommand() *cobra.Command {
	var (
		configFile string
		strict     bool
	)

	cmd := &cobra.Command{
		Use:   "validate-adapter <factory-ref>",
		Short: "Validate an adapter factory without dispatching",
		Long: `Validate-adapter loads an adapter through its registered factory
("package:function") and runs the lint checks: protocol fields, id and kind
format, capability names, and manifest cross-checks. No tool call is ever
dispatched.

Factories are compile-time registrations; the stock binary only knows the
factories the embedding build added.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := sdk.AdapterCheckRequest{
				FactoryRef: args[0],
				Strict:     &strict,
			}
			if configFile != "" {
				raw, err := os.ReadFile(configFile)
				if err != nil {
					return shared.NewBadRequestError("reading adapter config", err)
				}
				if err := json.Unmarshal(raw, &req.Config); err != nil {
					return shared.NewBadRequestError("adapter config is not a JSON object", err)
				}
			}

			result := sdk.InspectAdapter(shared.Factories(), req)

			if shared.GetJSON() {
				if err := shared.EmitJSON(result.InspectionResult); err != nil {
					return err
				}
			} else {
				cmd.Println(result.Render())
			}

			if !result.OK {
				return shared.NewSilentExit(shared.ExitRunFailed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configFile, "adapter-config", "", "JSON file with the factory config")
	cmd.Flags().BoolVar(&strict, "strict", true, "Fail on unknown capability names")

	return cmd
}
