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
	"github.com/spf13/cobra"
)

// configPath is shared by every subcommand that needs to locate the
// process graph: a file path, or a directory searched for
// config.DefaultFileNames.
var configPath string

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orckit",
		Short: "orckit orchestrates a declarative local process graph",
		Long: `orckit starts, stops, and monitors a set of locally declared
processes — dev servers, background workers, and supporting containers —
wired together with dependency ordering, readiness checks, and lifecycle
hooks, described in a single orckit.yaml file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".", "path to the orckit config file or its containing directory")

	cmd.AddCommand(newStartCommand())
	cmd.AddCommand(newStopCommand())
	cmd.AddCommand(newRestartCommand())
	cmd.AddCommand(newStatusCommand())
	cmd.AddCommand(newLogsCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}
