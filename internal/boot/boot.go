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

package boot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dominicbartl/orckit/internal/config"
	"github.com/dominicbartl/orckit/internal/graph"
	"github.com/dominicbartl/orckit/internal/ipc"
	"github.com/dominicbartl/orckit/internal/metrics"
	"github.com/dominicbartl/orckit/internal/orchestrator"
	"github.com/dominicbartl/orckit/internal/ui"
)

// Result is everything a successful Sequence call hands back to the
// caller for further use (graceful shutdown, IPC address, etc).
type Result struct {
	Config       *config.Config
	Plan         *graph.Plan
	Orchestrator *orchestrator.Orchestrator
	Server       *ipc.Server
	Lock         *InstanceLock
	Metrics      *metrics.Registry
}

// Sequence runs the full boot pipeline: load and validate the config at
// path, acquire the instance lock for its project, resolve its dependency graph,
// run preflight checks, start the IPC server, and start every process
// wave by wave. On any failure it releases what it acquired and
// returns a non-nil error; on success the caller owns Result and must
// eventually call Shutdown. session may be nil to run with no external
// UI collaborator (ui.NullSession{}).
func Sequence(ctx context.Context, path string, reporter Reporter, logger *slog.Logger, session ui.Session) (*Result, error) {
	if reporter == nil {
		reporter = NullReporter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if session == nil {
		session = ui.NullSession{}
	}

	reporter.PhaseStarted(PhaseLoad)
	cfg, err := config.Load(path)
	if err != nil {
		reporter.PhaseFailed(PhaseLoad, err)
		return nil, err
	}

	reporter.PhaseStarted(PhaseLock)
	lock := NewInstanceLock(cfg.ProjectName)
	if err := lock.Acquire(); err != nil {
		reporter.PhaseFailed(PhaseLock, err)
		return nil, err
	}

	reporter.PhaseStarted(PhaseResolve)
	plan, err := graph.Resolve(cfg)
	if err != nil {
		reporter.PhaseFailed(PhaseResolve, err)
		lock.Release()
		return nil, err
	}

	reg, err := metrics.New()
	if err != nil {
		lock.Release()
		return nil, fmt.Errorf("boot: failed to construct metrics registry: %w", err)
	}

	orch := orchestrator.New(cfg, plan, logger, reg)
	orch.AttachUI(session)

	reporter.PhaseStarted(PhasePreflight)
	if err := orch.RunPreflight(ctx); err != nil {
		reporter.PhaseFailed(PhasePreflight, err)
		lock.Release()
		return nil, err
	}

	server := ipc.NewServer(cfg.ProjectName, orch.HandleCommand, logger)
	if err := server.Start(ctx); err != nil {
		reporter.PhaseFailed(PhaseStart, err)
		lock.Release()
		return nil, err
	}
	orch.AttachServer(server)

	reporter.PhaseStarted(PhaseStart)
	for w, wave := range plan.Waves {
		for _, name := range wave {
			reporter.ProcessStarting(name, w)
		}
	}
	if err := orch.Start(ctx); err != nil {
		reporter.PhaseFailed(PhaseStart, err)
		server.Close()
		lock.Release()
		return nil, err
	}

	reporter.Ready()

	return &Result{
		Config:       cfg,
		Plan:         plan,
		Orchestrator: orch,
		Server:       server,
		Lock:         lock,
		Metrics:      reg,
	}, nil
}

// Shutdown tears a Result down in the opposite order it was acquired:
// stop processes, close the IPC server, shut down metrics, release the
// instance lock.
func Shutdown(ctx context.Context, r *Result) error {
	var firstErr error
	if r.Orchestrator != nil {
		if err := r.Orchestrator.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if r.Server != nil {
		if err := r.Server.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if r.Metrics != nil {
		if err := r.Metrics.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if r.Lock != nil {
		if err := r.Lock.Release(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
