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
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dominicbartl/orckit/internal/boot"
	"github.com/dominicbartl/orckit/internal/log"
	"github.com/dominicbartl/orckit/internal/ui"
)

// shutdownTimeout bounds how long a SIGINT/SIGTERM has to let every
// process stop gracefully before the CLI gives up waiting.
const shutdownTimeout = 30 * time.Second

func newStartCommand() *cobra.Command {
	var noUI bool
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start every process declared in the config and stay attached",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd, noUI)
		},
	}
	cmd.Flags().BoolVar(&noUI, "no-ui", false, "disable the terminal multiplexer session UI")
	return cmd
}

func runStart(cmd *cobra.Command, noUI bool) error {
	logger := log.New(log.FromEnv())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var session ui.Session = ui.NullSession{}
	if !noUI {
		session = ui.NewLogSession(logger)
	}

	reporter := boot.NewLogReporter(logger)
	result, err := boot.Sequence(ctx, configPath, reporter, logger, session)
	if err != nil {
		return fmt.Errorf("boot failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "orckit: %s started on %s\n", result.Config.ProjectName, result.Server.Path())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Fprintln(cmd.OutOrStdout(), "\nshutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	return boot.Shutdown(shutdownCtx, result)
}
