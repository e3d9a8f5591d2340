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

package process

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/dominicbartl/orckit/internal/config"
	"github.com/dominicbartl/orckit/internal/health"
	"github.com/dominicbartl/orckit/internal/hooks"
	conductorerrors "github.com/dominicbartl/orckit/pkg/errors"
)

// eventBufferSize bounds the per-runner event channel. A slow subscriber
// falls behind rather than blocking the runner's own I/O loop.
const eventBufferSize = 256

// gracePeriod is how long Stop waits after SIGTERM before escalating to
// SIGKILL, per spec §4.4/§5.
const gracePeriod = 10 * time.Second

// defaultLogRingCapacity bounds RunnerState.log_ring when a process
// declares no output_filter.max_lines override, per spec §4.1.
const defaultLogRingCapacity = 1000

// Runner is the capability interface every process type implements:
// start/stop/restart, pid/state introspection, and event subscription.
// Concrete runners differ only in which build parser they attach.
type Runner interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Restart(ctx context.Context) error
	PID() (int, bool)
	State() State
	RestartCount() int
	Subscribe() <-chan Event
	LogTail(n int) []string
}

// buildParser extracts structured build events from a single line of
// child output. It is consulted for every line; webpackParser extracts
// nothing outside deep mode, while angularParser falls back to text
// patterns and viteParser only uses text patterns.
type buildParser interface {
	parseLine(line string) []Event
}

// New constructs the Runner for p, selecting its build parser from
// p.Type and p.IntegrationMode.
func New(projectName string, p *config.Process, exec *hooks.Executor, portOf health.PortChecker) Runner {
	r := &baseRunner{
		project:  projectName,
		cfg:      p,
		hooks:    exec,
		events:   make(chan Event, eventBufferSize),
		state:    StatePending,
		parser:   selectParser(p),
	}
	r.prober, r.logProber = buildProber(p, portOf)
	return r
}

func selectParser(p *config.Process) buildParser {
	switch p.Type {
	case config.TypeBundlerWebpack:
		return &webpackParser{deep: p.IntegrationMode == config.IntegrationDeep}
	case config.TypeBundlerAngular:
		return &angularParser{deep: p.IntegrationMode == config.IntegrationDeep}
	case config.TypeBundlerVite:
		return &viteParser{}
	default:
		return nil
	}
}

func buildProber(p *config.Process, portOf health.PortChecker) (health.Prober, *health.LogPatternProber) {
	rc := p.ReadyCheck
	switch rc.Kind {
	case config.ReadyHTTP:
		return &health.HTTPProber{URL: rc.URL, ExpectedStatus: rc.ExpectedStatus, PortOf: portOf}, nil
	case config.ReadyTCP:
		return &health.TCPProber{Host: rc.Host, Port: rc.Port, PortOf: portOf}, nil
	case config.ReadyCustom:
		return &health.CustomProber{Command: rc.Command, Workdir: p.Workdir}, nil
	case config.ReadyLogPattern:
		lp, err := health.NewLogPatternProber(rc.Regex)
		if err != nil {
			// Config validation should have caught this; fall back to an
			// always-unsatisfied prober rather than crashing the runner.
			lp = &health.LogPatternProber{}
		}
		return lp, lp
	default:
		return nil, nil
	}
}

// baseRunner implements Runner for every process type. Type-specific
// behavior is limited to the attached buildParser.
type baseRunner struct {
	project string
	cfg     *config.Process
	hooks   *hooks.Executor
	parser  buildParser
	prober  health.Prober
	logProber *health.LogPatternProber

	events chan Event

	mu           sync.Mutex
	state        State
	pid          int
	restartCount int
	generation   int
	ring         *logRing
	cancel       context.CancelFunc
	stopRequested bool
}

func (r *baseRunner) Name() string { return r.cfg.Name }

func (r *baseRunner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *baseRunner) PID() (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pid, r.pid != 0
}

func (r *baseRunner) RestartCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.restartCount
}

func (r *baseRunner) Subscribe() <-chan Event { return r.events }

func (r *baseRunner) LogTail(n int) []string {
	r.mu.Lock()
	ring := r.ring
	r.mu.Unlock()
	if ring == nil {
		return nil
	}
	return ring.tail(n)
}

func (r *baseRunner) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
	r.emit(Event{Kind: EventStatus, NewState: s})
}

func (r *baseRunner) emit(e Event) {
	e.Process = r.cfg.Name
	e.At = time.Now()
	select {
	case r.events <- e:
	default:
		// Slow subscriber: drop rather than block the I/O loop, per
		// spec §5 backpressure policy.
	}
}

// Start transitions pending→starting, spawns the child, and launches
// the readiness wait. It blocks until the child exits, including any
// restarts the restart policy performs; callers that need to act once
// the process is running call it from their own goroutine and watch
// State or the event stream.
func (r *baseRunner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.state != StatePending && r.state != StateStopped && r.state != StateFailed {
		r.mu.Unlock()
		return fmt.Errorf("process %s: cannot start from state %s", r.cfg.Name, r.state)
	}
	r.generation++
	r.stopRequested = false
	r.mu.Unlock()

	if r.logProber != nil {
		r.logProber.Reset()
	}

	return r.runGeneration(ctx)
}

func (r *baseRunner) runGeneration(ctx context.Context) error {
	if r.hooks != nil && r.cfg.Hooks.PreStart != "" {
		res := r.hooks.Run(ctx, r.cfg.Hooks.PreStart, r.cfg.Env, r.cfg.Workdir, 30*time.Second)
		if !res.Ok {
			r.setState(StateFailed)
			return &conductorerrors.HookError{Phase: "pre_start", Process: r.cfg.Name, Detail: res.Output, Cause: res.Error}
		}
	}

	r.setState(StateStarting)

	runCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	cmd := exec.CommandContext(runCtx, "sh", "-c", r.cfg.Command)
	cmd.Dir = r.cfg.Workdir
	cmd.Env = mergeEnv(r.cfg.Env)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		r.setState(StateFailed)
		return &conductorerrors.ProcessSpawnError{Process: r.cfg.Name, Cause: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		r.setState(StateFailed)
		return &conductorerrors.ProcessSpawnError{Process: r.cfg.Name, Cause: err}
	}

	if err := cmd.Start(); err != nil {
		r.setState(StateFailed)
		return &conductorerrors.ProcessSpawnError{Process: r.cfg.Name, Cause: err}
	}

	r.mu.Lock()
	r.pid = cmd.Process.Pid
	r.ring = newLogRing(ringCapacity(r.cfg))
	r.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(2)
	go r.pump(&wg, stdout, EventStdout)
	go r.pump(&wg, stderr, EventStderr)

	exitCh := make(chan error, 1)
	go func() {
		wg.Wait()
		exitCh <- cmd.Wait()
	}()

	if r.cfg.ReadyCheck.Kind == config.ReadyExitCode || r.cfg.ReadyCheck.Kind == config.ReadyNone {
		if r.cfg.ReadyCheck.Kind == config.ReadyNone {
			r.markReady()
		}
	} else {
		go r.waitReady(runCtx)
	}

	exitErr := <-exitCh
	return r.handleExit(ctx, exitErr)
}

func (r *baseRunner) markReady() {
	if r.hooks != nil && r.cfg.Hooks.PostStart != "" {
		res := r.hooks.Run(context.Background(), r.cfg.Hooks.PostStart, r.cfg.Env, r.cfg.Workdir, 30*time.Second)
		if !res.Ok {
			r.emit(Event{Kind: EventFailed, Reason: fmt.Sprintf("post_start hook failed: %v", res.Error)})
		}
	}
	r.setState(StateRunning)
	r.emit(Event{Kind: EventReady})
}

func (r *baseRunner) waitReady(ctx context.Context) {
	rc := r.cfg.ReadyCheck
	err := health.WaitForReady(ctx, r.cfg.Name, r.prober, rc.Timeout(), rc.Interval(), rc.MaxAttempts, nil)
	r.mu.Lock()
	alreadyDone := r.state == StateRunning || r.state == StateFailed || r.state == StateStopped || r.state == StateStopping
	r.mu.Unlock()
	if alreadyDone {
		return
	}
	if err != nil {
		r.emit(Event{Kind: EventFailed, Reason: err.Error()})
		r.stopChild()
		return
	}
	r.markReady()
}

func (r *baseRunner) handleExit(ctx context.Context, exitErr error) error {
	code, sig := exitCodeOf(exitErr)
	r.emit(Event{Kind: EventExit, ExitCode: code, Signal: sig})

	r.mu.Lock()
	requestedStop := r.stopRequested
	r.pid = 0
	r.mu.Unlock()

	if requestedStop {
		r.runPostStop(ctx)
		r.setState(StateStopped)
		return nil
	}

	if code == 0 {
		r.runPostStop(ctx)
		r.setState(StateStopped)
		return nil
	}

	r.setState(StateFailed)

	switch r.cfg.RestartPolicy {
	case config.RestartNever, "":
		return &conductorerrors.ProcessSpawnError{Process: r.cfg.Name, Cause: fmt.Errorf("exited with code %d", code)}
	case config.RestartOnFailure, config.RestartAlways:
		r.mu.Lock()
		if r.restartCount >= r.cfg.MaxRetries {
			r.mu.Unlock()
			return &conductorerrors.ProcessSpawnError{Process: r.cfg.Name, Cause: fmt.Errorf("exited with code %d, retries exhausted", code)}
		}
		r.restartCount++
		attempt := r.restartCount
		r.mu.Unlock()

		time.Sleep(r.cfg.RestartDelay())
		r.emit(Event{Kind: EventRestarting, Attempt: attempt})
		return r.runGeneration(ctx)
	}
	return nil
}

func (r *baseRunner) runPostStop(ctx context.Context) {
	if r.hooks != nil && r.cfg.Hooks.PostStop != "" {
		res := r.hooks.Run(ctx, r.cfg.Hooks.PostStop, r.cfg.Env, r.cfg.Workdir, 30*time.Second)
		if !res.Ok {
			r.emit(Event{Kind: EventFailed, Reason: fmt.Sprintf("post_stop hook failed: %v", res.Error)})
		}
	}
}

// Stop requests graceful shutdown: pre_stop hook, SIGTERM to the
// process group, grace period, then SIGKILL.
func (r *baseRunner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.state == StateStopped || r.state == StatePending {
		r.mu.Unlock()
		return nil
	}
	r.stopRequested = true
	pid := r.pid
	r.mu.Unlock()

	r.setState(StateStopping)

	if r.hooks != nil && r.cfg.Hooks.PreStop != "" {
		res := r.hooks.Run(ctx, r.cfg.Hooks.PreStop, r.cfg.Env, r.cfg.Workdir, 30*time.Second)
		if !res.Ok {
			return &conductorerrors.HookError{Phase: "pre_stop", Process: r.cfg.Name, Detail: res.Output, Cause: res.Error}
		}
	}

	if pid == 0 {
		return nil
	}
	return gracefulStopGroup(pid, gracePeriod)
}

func (r *baseRunner) stopChild() {
	r.mu.Lock()
	pid := r.pid
	r.mu.Unlock()
	if pid != 0 {
		_ = gracefulStopGroup(pid, gracePeriod)
	}
}

// Restart stops then starts the process, incrementing restart_count by
// exactly one once the stop succeeds. A failed stop is returned as is,
// without incrementing restart_count or starting the process.
func (r *baseRunner) Restart(ctx context.Context) error {
	if err := r.Stop(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	r.restartCount++
	r.mu.Unlock()
	return r.Start(ctx)
}

func (r *baseRunner) pump(wg *sync.WaitGroup, rd io.Reader, kind Kind) {
	defer wg.Done()
	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		raw := scanner.Text()

		if !r.passesOutputFilter(raw) {
			continue
		}

		if r.logProber != nil {
			r.logProber.Observe(raw)
		}

		if r.parser != nil {
			for _, ev := range r.parser.parseLine(raw) {
				r.handleBuildEvent(ev)
			}
		}

		line := r.decorateLine(raw)

		r.mu.Lock()
		if r.ring != nil {
			r.ring.push(line)
		}
		r.mu.Unlock()

		r.emit(Event{Kind: kind, Line: line, Highlighted: containsAny(raw, r.cfg.OutputFilter.Highlight)})
	}
}

// passesOutputFilter applies output_filter.{include,suppress} to a raw
// line, per spec §4.1: a line failing include (when declared) or
// matching suppress never reaches the ring buffer or subscribers.
func (r *baseRunner) passesOutputFilter(raw string) bool {
	f := r.cfg.OutputFilter
	if len(f.Include) > 0 && !containsAny(raw, f.Include) {
		return false
	}
	if containsAny(raw, f.Suppress) {
		return false
	}
	return true
}

// decorateLine applies output_filter.{timestamps,prefix} to a line that
// already passed passesOutputFilter.
func (r *baseRunner) decorateLine(raw string) string {
	f := r.cfg.OutputFilter
	line := raw
	if f.Prefix != "" {
		line = f.Prefix + line
	}
	if f.Timestamps {
		line = time.Now().Format(time.RFC3339) + " " + line
	}
	return line
}

func containsAny(line string, patterns []string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(line, p) {
			return true
		}
	}
	return false
}

// ringCapacity returns the log ring's capacity for p: its declared
// output_filter.max_lines, or defaultLogRingCapacity.
func ringCapacity(p *config.Process) int {
	if p.OutputFilter.MaxLines > 0 {
		return p.OutputFilter.MaxLines
	}
	return defaultLogRingCapacity
}

func (r *baseRunner) handleBuildEvent(ev Event) {
	switch ev.Kind {
	case EventBuildStart:
		if r.State() == StateRunning {
			r.setState(StateBuilding)
		}
	case EventBuildComplete, EventBuildFailed:
		if r.State() == StateBuilding {
			r.setState(StateRunning)
		}
	}
	r.emit(ev)
}

func mergeEnv(processEnv map[string]string) []string {
	base := map[string]string{}
	for _, kv := range envPairs() {
		base[kv[0]] = kv[1]
	}
	for k, v := range processEnv {
		base[k] = v
	}
	out := make([]string, 0, len(base))
	for k, v := range base {
		out = append(out, k+"="+v)
	}
	return out
}
