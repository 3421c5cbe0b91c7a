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

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tombee/nexus-router/internal/cli"
	"github.com/tombee/nexus-router/internal/commands/adaptercheck"
	"github.com/tombee/nexus-router/internal/commands/adapters"
	"github.com/tombee/nexus-router/internal/commands/export"
	"github.com/tombee/nexus-router/internal/commands/importcmd"
	"github.com/tombee/nexus-router/internal/commands/inspect"
	"github.com/tombee/nexus-router/internal/commands/replay"
	"github.com/tombee/nexus-router/internal/commands/run"
	versioncmd "github.com/tombee/nexus-router/internal/commands/version"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildDate)

	rootCmd := cli.NewRootCommand()
	rootCmd.AddCommand(run.NewCommand())
	rootCmd.AddCommand(inspect.NewCommand())
	rootCmd.AddCommand(replay.NewCommand())
	rootCmd.AddCommand(export.NewCommand())
	rootCmd.AddCommand(importcmd.NewCommand())
	rootCmd.AddCommand(adapters.NewCommand())
	rootCmd.AddCommand(adaptercheck.NewCommand())
	rootCmd.AddCommand(versioncmd.NewCommand())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		cli.HandleExitError(err)
	}
}
