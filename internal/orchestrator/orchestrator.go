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

// Package orchestrator binds the config, graph, process, health,
// hooks, preflight, status, and ipc packages into the running system:
// it resolves the dependency graph into waves, starts each wave
// concurrently with a happens-before barrier between waves, and tears
// everything down in reverse order on shutdown.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dominicbartl/orckit/internal/config"
	"github.com/dominicbartl/orckit/internal/graph"
	"github.com/dominicbartl/orckit/internal/health"
	"github.com/dominicbartl/orckit/internal/hooks"
	"github.com/dominicbartl/orckit/internal/ipc"
	"github.com/dominicbartl/orckit/internal/metrics"
	"github.com/dominicbartl/orckit/internal/preflight"
	"github.com/dominicbartl/orckit/internal/process"
	"github.com/dominicbartl/orckit/internal/status"
	"github.com/dominicbartl/orckit/internal/ui"
	conductorerrors "github.com/dominicbartl/orckit/pkg/errors"
)

// globalHookTimeout bounds the *_all hooks declared at the top level of
// a config, per spec §4.5.
const globalHookTimeout = 60 * time.Second

// RunnerFactory constructs a process.Runner for p. Exposed as a field so
// tests can substitute a fake runner without spawning real children.
type RunnerFactory func(projectName string, p *config.Process, exec *hooks.Executor, portOf health.PortChecker) process.Runner

// Orchestrator owns the full supervised-process lifecycle for one
// loaded configuration.
type Orchestrator struct {
	cfg     *config.Config
	plan    *graph.Plan
	logger  *slog.Logger
	hooks   *hooks.Executor
	preflt  *preflight.Runner
	monitor *status.Monitor
	metrics *metrics.Registry
	server  *ipc.Server
	ui      ui.Session

	newRunner RunnerFactory

	mu      sync.Mutex
	runners map[string]process.Runner
	portMap map[int]string
	wg      sync.WaitGroup
}

// New constructs an Orchestrator for cfg. cfg is assumed already
// validated (config.Validate) and resolved (graph.Resolve produced
// plan without error).
func New(cfg *config.Config, plan *graph.Plan, logger *slog.Logger, reg *metrics.Registry) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	hx := hooks.NewExecutor()
	o := &Orchestrator{
		cfg:       cfg,
		plan:      plan,
		logger:    logger,
		hooks:     hx,
		preflt:    preflight.NewRunner(hx),
		monitor:   status.New(status.NewSampler(), reg),
		metrics:   reg,
		newRunner: process.New,
		ui:        ui.NullSession{},
		runners:   make(map[string]process.Runner),
		portMap:   make(map[int]string),
	}
	return o
}

// Monitor exposes the status monitor for the caller to subscribe to or
// query a snapshot from.
func (o *Orchestrator) Monitor() *status.Monitor { return o.monitor }

// AttachServer wires an IPC server so status snapshots and log lines
// are broadcast to connected clients as they happen.
func (o *Orchestrator) AttachServer(s *ipc.Server) { o.server = s }

// AttachUI wires an external terminal-multiplexer session. Pass
// ui.NullSession{} (the default) when no UI collaborator is enabled.
func (o *Orchestrator) AttachUI(s ui.Session) { o.ui = s }

// RunPreflight executes every preflight check and returns a
// PreflightError if any failed.
func (o *Orchestrator) RunPreflight(ctx context.Context) error {
	results := o.preflt.Run(ctx, o.cfg)
	for _, res := range results {
		if !res.Passed {
			o.logger.Warn("preflight check failed", "check", res.Name, "error", res.Error)
		}
	}
	return preflight.Err(results)
}

// portChecker reports whether another registered process already
// claims a TCP port, used to produce a more actionable readiness error
// than a bare connection refusal.
func (o *Orchestrator) portChecker(port int) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	name, ok := o.portMap[port]
	return name, ok
}

// Start runs global pre_start_all, then starts every process wave by
// wave: all members of a wave are started concurrently, and the next
// wave only begins once every member of the current one has reached
// running or failed. If any wave member fails to become ready, Start
// aborts — no further waves are started, and processes already running
// are left running for the caller to inspect or stop.
func (o *Orchestrator) Start(ctx context.Context) error {
	if h := o.cfg.Hooks.PreStartAll; h != "" {
		res := o.hooks.Run(ctx, h, nil, "", globalHookTimeout)
		if !res.Ok {
			return &conductorerrors.HookError{Phase: "pre_start_all", Detail: res.Output, Cause: res.Error}
		}
	}

	if err := o.ui.CreateSession(); err != nil {
		o.logger.Warn("ui create_session failed", "error", err)
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.monitor.RunSampling(ctx)
	}()

	procs := o.cfg.ProcessMap()
	windows := make(map[string]bool)
	for _, p := range o.cfg.Processes {
		o.monitor.Register(p.Name, p.Category)
		if p.ReadyCheck.Kind == config.ReadyTCP && p.ReadyCheck.Port > 0 {
			o.mu.Lock()
			o.portMap[p.ReadyCheck.Port] = p.Name
			o.mu.Unlock()
		}
		if !windows[p.Category] {
			if err := o.ui.CreateWindow(p.Category, p.Category); err != nil {
				o.logger.Warn("ui create_window failed", "category", p.Category, "error", err)
			}
			windows[p.Category] = true
		}
		if err := o.ui.CreatePane(p.Category, p.Name, p.Command, p.Workdir); err != nil {
			o.logger.Warn("ui create_pane failed", "process", p.Name, "error", err)
		}
	}

	for _, wave := range o.plan.Waves {
		g, gctx := errgroup.WithContext(ctx)
		for _, name := range wave {
			name := name
			p := procs[name]
			g.Go(func() error { return o.startOne(gctx, p) })
		}
		if err := g.Wait(); err != nil {
			o.logger.Error("wave failed, aborting further startup", "error", err)
			return err
		}
	}

	if h := o.cfg.Hooks.PostStartAll; h != "" {
		res := o.hooks.Run(ctx, h, nil, "", globalHookTimeout)
		if !res.Ok {
			o.logger.Warn("post_start_all hook failed", "error", res.Error)
		}
	}

	return nil
}

func (o *Orchestrator) startOne(ctx context.Context, p *config.Process) error {
	r := o.newRunner(o.cfg.ProjectName, p, o.hooks, o.portChecker)

	o.mu.Lock()
	o.runners[p.Name] = r
	o.mu.Unlock()

	o.wg.Add(1)
	go o.pumpEvents(r)

	done := make(chan error, 1)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		done <- r.Start(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-done:
			if err != nil {
				return err
			}
			return nil
		default:
		}
		switch r.State() {
		case process.StateRunning:
			return nil
		case process.StateFailed:
			select {
			case err := <-done:
				if err != nil {
					return err
				}
			case <-time.After(100 * time.Millisecond):
			}
			return fmt.Errorf("process %s failed to start", p.Name)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// pumpEvents relays one runner's events into the status monitor and,
// if attached, the IPC server, until the runner's channel is closed or
// the orchestrator is fully torn down.
func (o *Orchestrator) pumpEvents(r process.Runner) {
	defer o.wg.Done()
	for ev := range r.Subscribe() {
		switch ev.Kind {
		case process.EventStatus:
			o.monitor.UpdateStatus(ev.Process, ev.NewState)
		case process.EventRestarting:
			o.monitor.IncrementRestart(ev.Process)
		case process.EventBuildProgress, process.EventBuildStats, process.EventBuildComplete:
			o.monitor.UpdateBuild(ev.Process, status.BuildMetrics{
				Progress:         ev.Progress,
				Errors:           ev.Errors,
				Warnings:         ev.Warnings,
				LastBuildSuccess: ev.Success,
				LastDurationMs:   ev.DurationMs,
			}, ev.Kind == process.EventBuildComplete)
			if o.metrics != nil && ev.Kind == process.EventBuildComplete {
				o.metrics.ObserveBuildDuration(context.Background(), ev.Process, float64(ev.DurationMs)/1000)
			}
		case process.EventStdout, process.EventStderr:
			if o.server != nil {
				level := "stdout"
				if ev.Kind == process.EventStderr {
					level = "stderr"
				}
				o.server.BroadcastLog(ev.Process, level, ev.Line)
			}
		}
		if pid, ok := r.PID(); ok {
			o.monitor.UpdatePID(ev.Process, pid)
		}
		snap := o.monitor.Snapshot()
		if o.server != nil {
			o.server.BroadcastStatus(snapshotToMessage(snap))
		}
		if err := o.ui.UpdateOverview(ui.FormatOverview(snap)); err != nil {
			o.logger.Warn("ui update_overview failed", "error", err)
		}
	}
}

// Stop shuts every process down in reverse start order, running
// pre_stop_all/post_stop_all around the sequence.
func (o *Orchestrator) Stop(ctx context.Context) error {
	if h := o.cfg.Hooks.PreStopAll; h != "" {
		res := o.hooks.Run(ctx, h, nil, "", globalHookTimeout)
		if !res.Ok {
			o.logger.Warn("pre_stop_all hook failed", "error", res.Error)
		}
	}

	var firstErr error
	for _, name := range graph.ReverseOrder(o.plan.Order) {
		o.mu.Lock()
		r, ok := o.runners[name]
		o.mu.Unlock()
		if !ok {
			continue
		}
		if err := r.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if h := o.cfg.Hooks.PostStopAll; h != "" {
		res := o.hooks.Run(ctx, h, nil, "", globalHookTimeout)
		if !res.Ok {
			o.logger.Warn("post_stop_all hook failed", "error", res.Error)
		}
	}

	if err := o.ui.KillSession(); err != nil {
		o.logger.Warn("ui kill_session failed", "error", err)
	}

	o.monitor.Stop()
	return firstErr
}

// HandleCommand dispatches a single IPC command against the running
// process set. It is the closure the caller hands to ipc.NewServer so
// the server never imports this package.
func (o *Orchestrator) HandleCommand(ctx context.Context, action, processName string, options map[string]any) (bool, string, any) {
	o.mu.Lock()
	r, ok := o.runners[processName]
	o.mu.Unlock()
	if !ok {
		return false, fmt.Sprintf("unknown process %q", processName), nil
	}

	switch action {
	case ipc.ActionStart:
		if unmet := o.unmetDependencies(processName); len(unmet) > 0 {
			err := &conductorerrors.DependencyError{Process: processName, Unmet: unmet}
			return false, err.Error(), nil
		}
		if err := r.Start(ctx); err != nil {
			return false, err.Error(), nil
		}
		return true, "started", nil
	case ipc.ActionStop:
		if err := r.Stop(ctx); err != nil {
			return false, err.Error(), nil
		}
		return true, "stopped", nil
	case ipc.ActionRestart:
		if err := r.Restart(ctx); err != nil {
			return false, err.Error(), nil
		}
		o.monitor.IncrementRestart(processName)
		return true, "restarted", nil
	case ipc.ActionLogs:
		n := 100
		if raw, ok := options["lines"]; ok {
			if f, ok := raw.(float64); ok {
				n = int(f)
			}
		}
		return true, "", r.LogTail(n)
	default:
		return false, fmt.Sprintf("unsupported action %q", action), nil
	}
}

// unmetDependencies returns the declared dependencies of processName
// that are not currently running. The orchestrator rejects an explicit
// start command while any are unmet rather than silently starting a
// process whose dependencies aren't ready, per the resolved reading of
// an unresolved config ambiguity around manual/IPC-triggered starts.
func (o *Orchestrator) unmetDependencies(processName string) []string {
	procs := o.cfg.ProcessMap()
	p, ok := procs[processName]
	if !ok {
		return nil
	}
	var unmet []string
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, dep := range p.Dependencies {
		r, ok := o.runners[dep]
		if !ok || r.State() != process.StateRunning {
			unmet = append(unmet, dep)
		}
	}
	return unmet
}

func snapshotToMessage(snap status.Snapshot) ipc.ServerMessage {
	infos := make([]ipc.ProcessInfo, 0, len(snap.Processes))
	for _, p := range snap.Processes {
		info := ipc.ProcessInfo{
			Name:         p.Name,
			Status:       string(p.Status),
			Category:     p.Category,
			RestartCount: p.RestartCount,
		}
		if p.PID != 0 {
			pid := p.PID
			info.PID = &pid
		}
		if !p.StartedAt.IsZero() {
			ms := time.Since(p.StartedAt).Milliseconds()
			info.UptimeMs = &ms
		}
		if p.Build.Progress != 0 || p.Build.Errors != 0 || p.Build.Warnings != 0 {
			progress := p.Build.Progress
			info.Build = &ipc.BuildInfo{
				Progress: &progress,
				Errors:   p.Build.Errors,
				Warnings: p.Build.Warnings,
			}
		}
		infos = append(infos, info)
	}
	return ipc.ServerMessage{
		Timestamp: snap.Timestamp.UnixMilli(),
		Processes: infos,
	}
}
