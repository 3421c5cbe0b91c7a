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

// Package run implements the run subcommand.
package run

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombee/nexus-router/internal/commands/shared"
	"github.com/tombee/nexus-router/pkg/router"
	"github.com/tombee/nexus-router/sdk"
)

// NewCommand creates the run command
func NewCommand() *cobra.Command {
	var (
		goal       string
		mode       string
		adapterID  string
		allowApply bool
		maxSteps   int
	)

	cmd := &cobra.Command{
		Use:   "run [request.json]",
		Short: "Execute a run request",
		Long: `Run executes a versioned run request against the event store.

The request is read from the given file ('-' for stdin). Alternatively a
minimal request can be assembled from flags:

  nexus-router run --goal "summarize the diff" --mode dry_run

The full JSON response is printed on stdout in --json mode; otherwise a
short summary. Exit code 1 indicates a failed run.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, args, goal, mode, adapterID, allowApply, maxSteps)
		},
	}

	cmd.Flags().StringVarP(&goal, "goal", "g", "", "Goal for a flag-assembled request (instead of a request file)")
	cmd.Flags().StringVar(&mode, "mode", "", "Run mode (dry_run, apply)")
	cmd.Flags().StringVar(&adapterID, "adapter", "", "Adapter to dispatch through")
	cmd.Flags().BoolVar(&allowApply, "allow-apply", false, "Permit apply-mode execution")
	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "Cap the number of executed steps")

	return cmd
}

func runRun(cmd *cobra.Command, args []string, goal, mode, adapterID string, allowApply bool, maxSteps int) error {
	env, err := shared.LoadEnvironment()
	if err != nil {
		return err
	}

	raw, err := requestPayload(args, goal, mode, adapterID, allowApply, maxSteps)
	if err != nil {
		return err
	}

	resp, err := sdk.Run(cmd.Context(), env.Config.DBPath, raw,
		sdk.WithRegistry(env.Registry), sdk.WithLogger(env.Logger))
	if err != nil {
		if errors.Is(err, sdk.ErrInvalidRequest) {
			return shared.NewBadRequestError("invalid run request", err)
		}
		return err
	}

	if shared.GetJSON() {
		if err := shared.EmitJSON(resp); err != nil {
			return err
		}
	} else {
		printSummary(cmd, resp)
	}

	if resp.Error != nil {
		return shared.NewSilentExit(shared.ExitRunFailed)
	}
	for _, result := range resp.Results {
		if result.Status == "error" {
			return shared.NewSilentExit(shared.ExitRunFailed)
		}
	}
	return nil
}

// requestPayload builds the raw request: from flags when --goal is given,
// otherwise from the file argument or stdin.
func requestPayload(args []string, goal, mode, adapterID string, allowApply bool, maxSteps int) ([]byte, error) {
	if goal == "" {
		path := "-"
		if len(args) == 1 {
			path = args[0]
		}
		raw, err := shared.ReadRequest(path)
		if err != nil {
			return nil, shared.NewBadRequestError("reading request", err)
		}
		return raw, nil
	}

	req := router.Request{Goal: goal, Mode: mode}
	if adapterID != "" {
		req.Dispatch = &router.DispatchSpec{AdapterID: adapterID}
	}
	if allowApply || maxSteps > 0 {
		req.Policy = &router.Policy{AllowApply: allowApply}
		if maxSteps > 0 {
			req.Policy.MaxSteps = &maxSteps
		}
	}
	return json.Marshal(&req)
}

func printSummary(cmd *cobra.Command, resp *router.Response) {
	status := "COMPLETED"
	if resp.Error != nil {
		status = "FAILED"
	} else {
		for _, result := range resp.Results {
			if result.Status == "error" {
				status = "FAILED"
			}
		}
	}

	cmd.Printf("run %s %s\n", resp.Run.RunID, status)
	cmd.Printf("  adapter: %s (%s, %s)\n", resp.Dispatch.AdapterID, resp.Dispatch.AdapterKind, resp.Dispatch.SelectionSource)
	cmd.Printf("  mode:    %s\n", resp.Summary.Mode)
	cmd.Printf("  steps:   %d", resp.Summary.Steps)
	if len(resp.Summary.ToolsUsed) > 0 {
		cmd.Printf(" (%s)", strings.Join(resp.Summary.ToolsUsed, ", "))
	}
	cmd.Println()
	cmd.Printf("  events:  %d\n", resp.Run.EventsCommitted)
	if resp.Error != nil {
		cmd.Printf("  error:   %s: %s\n", resp.Error.Code, resp.Error.Message)
	}
	for _, result := range resp.Results {
		if result.Status == "error" {
			cmd.Printf("  step %s failed\n", result.StepID)
		}
	}
}
