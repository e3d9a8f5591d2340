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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dominicbartl/orckit/internal/ipc"
)

func newStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <process>",
		Short: "Stop a single running process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runControlCommand(cmd, ipc.ActionStop, args[0], nil)
		},
	}
}

func newRestartCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "restart <process>",
		Short: "Restart a single process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runControlCommand(cmd, ipc.ActionRestart, args[0], nil)
		},
	}
}

func newLogsCommand() *cobra.Command {
	var lines int
	cmd := &cobra.Command{
		Use:   "logs <process>",
		Short: "Print a process's recent captured output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runControlCommand(cmd, ipc.ActionLogs, args[0], map[string]any{"lines": float64(lines)})
		},
	}
	cmd.Flags().IntVar(&lines, "lines", 100, "number of recent lines to print")
	return cmd
}

func runControlCommand(cmd *cobra.Command, action, processName string, options map[string]any) error {
	resp, err := sendCommand(action, processName, options)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%s", resp.Message)
	}
	if action == ipc.ActionLogs {
		if lines, ok := resp.Data.([]any); ok {
			for _, l := range lines {
				fmt.Fprintln(cmd.OutOrStdout(), l)
			}
			return nil
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
	return nil
}
