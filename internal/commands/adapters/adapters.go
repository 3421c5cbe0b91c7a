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

// Package adapters implements the adapters subcommand.
package adapters

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombee/nexus-router/internal/commands/shared"
	"github.com/tombee/nexus-router/sdk"
)

// NewCommand creates the adapters command
func NewCommand() *cobra.Command {
	var capability string

	cmd := &cobra.Command{
		Use:   "adapters",
		Short: "List registered dispatch adapters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := shared.LoadEnvironment()
			if err != nil {
				return err
			}

			result := sdk.ListAdapters(env.Registry, capability)

			if shared.GetJSON() {
				return shared.EmitJSON(result)
			}

			if result.Total == 0 {
				cmd.Println("no adapters")
				return nil
			}
			for _, info := range result.Adapters {
				marker := " "
				if info.AdapterID == result.DefaultAdapterID {
					marker = "*"
				}
				cmd.Printf("%s %-16s %-12s %s\n", marker, info.AdapterID, info.AdapterKind,
					strings.Join(info.Capabilities, ", "))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&capability, "capability", "", "Only adapters declaring this capability")

	return cmd
}
