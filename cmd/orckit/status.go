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
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current status of every process",
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := readOneStatus()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
			fmt.Fprintln(w, "PROCESS\tSTATUS\tRESTARTS\tPID")
			for _, p := range msg.Processes {
				pid := "-"
				if p.PID != nil {
					pid = fmt.Sprintf("%d", *p.PID)
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", p.Name, p.Status, p.RestartCount, pid)
			}
			return w.Flush()
		},
	}
}
