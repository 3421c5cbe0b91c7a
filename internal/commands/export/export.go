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

// Package export implements the export subcommand.
package export

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/tombee/nexus-router/internal/commands/shared"
	"github.com/tombee/nexus-router/sdk"
)

// NewCommand creates the export command
func NewCommand() *cobra.Command {
	var (
		outputFile   string
		noProvenance bool
	)

	cmd := &cobra.Command{
		Use:   "export <run-id>",
		Short: "Export a run as a portable bundle",
		Long: `Export snapshots a run and its full event stream as a canonical JSON
bundle carrying a SHA-256 digest. The bundle is written to --output, or to
stdout.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := shared.LoadEnvironment()
			if err != nil {
				return err
			}

			includeProvenance := !noProvenance
			raw, err := json.Marshal(&sdk.ExportRequest{
				DBPath:            env.Config.DBPath,
				RunID:             args[0],
				IncludeProvenance: &includeProvenance,
			})
			if err != nil {
				return err
			}

			b, err := sdk.Export(cmd.Context(), raw)
			if err != nil {
				if errors.Is(err, sdk.ErrInvalidRequest) {
					return shared.NewBadRequestError("invalid export request", err)
				}
				return err
			}

			// The bundle digest covers its canonical serialization, so the
			// artifact is written via Marshal, never re-encoded.
			payload, err := b.Marshal()
			if err != nil {
				return err
			}
			payload = append(payload, '\n')

			if outputFile != "" && outputFile != "-" {
				if err := os.WriteFile(outputFile, payload, 0644); err != nil {
					return err
				}
				cmd.Printf("exported run %s to %s (%d events)\n", args[0], outputFile, len(b.Events))
				return nil
			}

			_, err = cmd.OutOrStdout().Write(payload)
			return err
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write the bundle to a file ('-' for stdout)")
	cmd.Flags().BoolVar(&noProvenance, "no-provenance", false, "Omit the export provenance record")

	return cmd
}
