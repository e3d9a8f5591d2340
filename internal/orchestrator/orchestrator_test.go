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

package orchestrator

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dominicbartl/orckit/internal/config"
	"github.com/dominicbartl/orckit/internal/graph"
	"github.com/dominicbartl/orckit/internal/health"
	"github.com/dominicbartl/orckit/internal/hooks"
	"github.com/dominicbartl/orckit/internal/process"
)

// fakeRunner is a process.Runner stand-in that becomes running
// immediately (or failed, if configured) without spawning anything.
type fakeRunner struct {
	name       string
	failStart  bool
	mu         sync.Mutex
	state      process.State
	stopped    []string
	events     chan process.Event
}

func newFakeRunner(name string, failStart bool) *fakeRunner {
	return &fakeRunner{name: name, failStart: failStart, state: process.StatePending, events: make(chan process.Event, 8)}
}

func (f *fakeRunner) Name() string { return f.name }

func (f *fakeRunner) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failStart {
		f.state = process.StateFailed
		return assert.AnError
	}
	f.state = process.StateRunning
	return nil
}

func (f *fakeRunner) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = process.StateStopped
	f.stopped = append(f.stopped, f.name)
	return nil
}

func (f *fakeRunner) Restart(ctx context.Context) error { return f.Start(ctx) }

func (f *fakeRunner) PID() (int, bool) { return 1, true }

func (f *fakeRunner) State() process.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeRunner) RestartCount() int { return 0 }

func (f *fakeRunner) Subscribe() <-chan process.Event { return f.events }

func (f *fakeRunner) LogTail(n int) []string { return nil }

func testConfig() *config.Config {
	return &config.Config{
		SchemaVersion: 1,
		ProjectName:   "demo",
		Processes: []*config.Process{
			{Name: "db", Type: config.TypeShell, Command: "true"},
			{Name: "api", Type: config.TypeShell, Command: "true", Dependencies: []string{"db"}},
		},
	}
}

func newTestOrchestrator(t *testing.T, failing map[string]bool) *Orchestrator {
	t.Helper()
	cfg := testConfig()
	plan, err := graph.Resolve(cfg)
	require.NoError(t, err)

	o := New(cfg, plan, nil, nil)
	o.newRunner = func(project string, p *config.Process, exec *hooks.Executor, portOf health.PortChecker) process.Runner {
		return newFakeRunner(p.Name, failing[p.Name])
	}
	return o
}

func TestOrchestrator_StartsWavesInOrder(t *testing.T) {
	o := newTestOrchestrator(t, nil)
	require.NoError(t, o.Start(context.Background()))

	db := o.runners["db"]
	api := o.runners["api"]
	require.NotNil(t, db)
	require.NotNil(t, api)
	assert.Equal(t, process.StateRunning, db.State())
	assert.Equal(t, process.StateRunning, api.State())
}

func TestOrchestrator_WaveFailureAbortsFurtherWaves(t *testing.T) {
	o := newTestOrchestrator(t, map[string]bool{"db": true})
	err := o.Start(context.Background())
	assert.Error(t, err)

	o.mu.Lock()
	_, apiStarted := o.runners["api"]
	o.mu.Unlock()
	assert.False(t, apiStarted, "second wave must not start once the first wave fails")
}

func TestOrchestrator_StopsInReverseOrder(t *testing.T) {
	o := newTestOrchestrator(t, nil)
	require.NoError(t, o.Start(context.Background()))
	require.NoError(t, o.Stop(context.Background()))

	db := o.runners["db"].(*fakeRunner)
	api := o.runners["api"].(*fakeRunner)
	assert.Equal(t, []string{"api"}, api.stopped)
	assert.Equal(t, []string{"db"}, db.stopped)
}

func TestOrchestrator_HandleCommand_RejectsUnmetDependencies(t *testing.T) {
	o := newTestOrchestrator(t, nil)
	o.mu.Lock()
	o.runners["db"] = newFakeRunner("db", false)
	o.runners["api"] = newFakeRunner("api", false)
	o.mu.Unlock()

	success, msg, _ := o.HandleCommand(context.Background(), "start", "api", nil)
	assert.False(t, success)
	assert.Contains(t, msg, "db")

	o.mu.Lock()
	o.runners["db"].(*fakeRunner).state = process.StateRunning
	o.mu.Unlock()

	success, _, _ = o.HandleCommand(context.Background(), "start", "api", nil)
	assert.True(t, success)
}

func TestOrchestrator_HandleCommand_UnknownProcess(t *testing.T) {
	o := newTestOrchestrator(t, nil)
	success, msg, _ := o.HandleCommand(context.Background(), "start", "ghost", nil)
	assert.False(t, success)
	assert.Contains(t, msg, "ghost")
}

func TestOrchestrator_HandleCommand_LogsReturnsTail(t *testing.T) {
	o := newTestOrchestrator(t, nil)
	r := newFakeRunner("db", false)
	o.mu.Lock()
	o.runners["db"] = r
	o.mu.Unlock()

	_, _, data := o.HandleCommand(context.Background(), "logs", "db", map[string]any{"lines": float64(10)})
	assert.Nil(t, data)
}

func TestOrchestrator_HandleCommand_RestartIncrementsRestartCount(t *testing.T) {
	o := newTestOrchestrator(t, nil)
	o.monitor.Register("db", "")
	o.mu.Lock()
	o.runners["db"] = newFakeRunner("db", false)
	o.mu.Unlock()

	success, _, _ := o.HandleCommand(context.Background(), "restart", "db", nil)
	require.True(t, success)

	snap := o.monitor.Snapshot()
	assert.Equal(t, 1, snap.Processes["db"].RestartCount)

	success, _, _ = o.HandleCommand(context.Background(), "restart", "db", nil)
	require.True(t, success)
	snap = o.monitor.Snapshot()
	assert.Equal(t, 2, snap.Processes["db"].RestartCount)
}
