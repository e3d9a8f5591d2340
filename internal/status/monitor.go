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

// Package status aggregates per-process runtime state into immutable
// snapshots, sampling OS-level resource usage on a fixed cadence and
// publishing a snapshot on every mutation plus every heartbeat tick.
package status

import (
	"context"
	"sync"
	"time"

	"github.com/dominicbartl/orckit/internal/metrics"
	"github.com/dominicbartl/orckit/internal/process"
)

// DefaultUpdateInterval is the heartbeat cadence at which a snapshot is
// emitted even without a state change, per spec §4.7.
const DefaultUpdateInterval = time.Second

// BuildMetrics mirrors RunnerState.build_metrics.
type BuildMetrics struct {
	Errors          int
	Warnings        int
	Progress        int
	LastBuildSuccess bool
	LastDurationMs  int64
}

// ProcessInfo is the monitor's per-process view.
type ProcessInfo struct {
	Name         string
	Category     string
	Status       process.State
	PID          int
	RestartCount int
	HealthState  string
	StartedAt    time.Time
	Build        BuildMetrics
	CPUPercent   float64
	RSSBytes     uint64
}

// Summary counts processes by status.
type Summary struct {
	Running  int
	Building int
	Failed   int
	Stopped  int
	Total    int
}

// Snapshot is a single, immutable, timestamped view of every registered
// process. Once published a Snapshot is never mutated.
type Snapshot struct {
	Timestamp time.Time
	Processes map[string]ProcessInfo
	Summary   Summary
}

// Sampler reads best-effort resource usage for pid. Implementations must
// never panic; a failed sample should return ok=false.
type Sampler func(pid int) (cpuPercent float64, rssBytes uint64, ok bool)

// Monitor owns the process → ProcessInfo map. All mutations go through
// its methods, which serialize access; Snapshot returns a deep copy.
type Monitor struct {
	mu       sync.Mutex
	procs    map[string]ProcessInfo
	sampler  Sampler
	interval time.Duration
	metrics  *metrics.Registry

	subscribers []chan Snapshot
	stop        chan struct{}
	stopped     bool
}

// New constructs a Monitor. sampler may be nil to disable resource
// sampling entirely (sample fields stay zero).
func New(sampler Sampler, reg *metrics.Registry) *Monitor {
	return &Monitor{
		procs:    make(map[string]ProcessInfo),
		sampler:  sampler,
		interval: DefaultUpdateInterval,
		metrics:  reg,
		stop:     make(chan struct{}),
	}
}

// WithInterval overrides the heartbeat sampling cadence (default
// DefaultUpdateInterval). Must be called before RunSampling starts.
func (m *Monitor) WithInterval(d time.Duration) *Monitor {
	m.interval = d
	return m
}

// Subscribe returns a channel that receives every published snapshot.
// The channel is unbuffered-equivalent in behavior: a slow subscriber
// only ever sees the latest snapshot, never a backlog, since publish
// uses a non-blocking coalescing send.
func (m *Monitor) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, 1)
	m.mu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.mu.Unlock()
	return ch
}

// Register adds a process to the monitor in the pending state.
func (m *Monitor) Register(name, category string) {
	m.mu.Lock()
	m.procs[name] = ProcessInfo{Name: name, Category: category, Status: process.StatePending}
	m.mu.Unlock()
	m.publish()
}

// Unregister removes a process from the monitor.
func (m *Monitor) Unregister(name string) {
	m.mu.Lock()
	delete(m.procs, name)
	m.mu.Unlock()
	m.publish()
}

// Clear removes every registered process.
func (m *Monitor) Clear() {
	m.mu.Lock()
	m.procs = make(map[string]ProcessInfo)
	m.mu.Unlock()
	m.publish()
}

// UpdateStatus records a new lifecycle state for name.
func (m *Monitor) UpdateStatus(name string, st process.State) {
	m.mu.Lock()
	info := m.procs[name]
	info.Name = name
	if st == process.StateStarting && info.StartedAt.IsZero() {
		info.StartedAt = time.Now()
	}
	info.Status = st
	m.procs[name] = info
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.SetProcessStatus(name, string(st))
	}
	m.publish()
}

// UpdatePID records the child pid for name (0 clears it).
func (m *Monitor) UpdatePID(name string, pid int) {
	m.mu.Lock()
	info := m.procs[name]
	info.Name = name
	info.PID = pid
	m.procs[name] = info
	m.mu.Unlock()
	m.publish()
}

// UpdateHealth records the health-check state for name.
func (m *Monitor) UpdateHealth(name, state string) {
	m.mu.Lock()
	info := m.procs[name]
	info.Name = name
	info.HealthState = state
	m.procs[name] = info
	m.mu.Unlock()
	m.publish()
}

// IncrementRestart bumps name's restart count by one.
func (m *Monitor) IncrementRestart(name string) {
	m.mu.Lock()
	info := m.procs[name]
	info.Name = name
	info.RestartCount++
	m.procs[name] = info
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.IncRestart(name)
	}
	m.publish()
}

// UpdateBuild merges partial build metrics into name's current ones.
// Zero-value Progress, Errors and Warnings in partial are treated as
// "no update". When completed is true, LastBuildSuccess and
// LastDurationMs are applied and Errors and Warnings are overwritten,
// zero values included.
func (m *Monitor) UpdateBuild(name string, partial BuildMetrics, completed bool) {
	m.mu.Lock()
	info := m.procs[name]
	info.Name = name
	if partial.Progress != 0 {
		info.Build.Progress = partial.Progress
	}
	if partial.Errors != 0 {
		info.Build.Errors = partial.Errors
	}
	if partial.Warnings != 0 {
		info.Build.Warnings = partial.Warnings
	}
	if completed {
		info.Build.LastBuildSuccess = partial.LastBuildSuccess
		info.Build.LastDurationMs = partial.LastDurationMs
		info.Build.Errors = partial.Errors
		info.Build.Warnings = partial.Warnings
	}
	m.procs[name] = info
	m.mu.Unlock()
	m.publish()
}

// Snapshot returns a deep copy of the current state.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Monitor) snapshotLocked() Snapshot {
	procs := make(map[string]ProcessInfo, len(m.procs))
	summary := Summary{}
	for k, v := range m.procs {
		procs[k] = v
		summary.Total++
		switch v.Status {
		case process.StateRunning:
			summary.Running++
		case process.StateBuilding:
			summary.Building++
		case process.StateFailed:
			summary.Failed++
		case process.StateStopped:
			summary.Stopped++
		}
	}
	return Snapshot{Timestamp: time.Now(), Processes: procs, Summary: summary}
}

func (m *Monitor) publish() {
	snap := m.Snapshot()
	m.mu.Lock()
	subs := append([]chan Snapshot(nil), m.subscribers...)
	m.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- snap:
		default:
			// Coalesce: drop the stale snapshot and deliver the latest,
			// per spec §5 backpressure policy.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// RunSampling starts the heartbeat sampling loop: every interval it
// samples each running process's resource usage (best-effort, silent
// on failure) and publishes a snapshot even if nothing changed. It
// blocks until ctx is cancelled.
func (m *Monitor) RunSampling(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		case <-ticker.C:
			m.sampleOnce()
			m.publish()
		}
	}
}

// Stop halts the sampling loop started by RunSampling.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	m.mu.Unlock()
	close(m.stop)
}

func (m *Monitor) sampleOnce() {
	if m.sampler == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, info := range m.procs {
		if info.PID == 0 {
			continue
		}
		cpu, rss, ok := m.sampler(info.PID)
		if !ok {
			continue
		}
		info.CPUPercent = cpu
		info.RSSBytes = rss
		m.procs[name] = info
	}
}
