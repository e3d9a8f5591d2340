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

import "log/slog"

// Phase identifies a stage of the boot sequence.
type Phase string

const (
	PhaseLock      Phase = "lock"
	PhaseLoad      Phase = "load_config"
	PhaseResolve   Phase = "resolve_graph"
	PhasePreflight Phase = "preflight"
	PhaseStart     Phase = "start_processes"
	PhaseReady     Phase = "ready"
)

// Reporter is notified as the boot sequence advances. The terminal UI
// collaborator (out of scope here — spec §1) implements this to render
// a live progress view; orckit's core only depends on the interface.
type Reporter interface {
	PhaseStarted(p Phase)
	PhaseFailed(p Phase, err error)
	ProcessStarting(name string, wave int)
	ProcessReady(name string)
	ProcessFailed(name string, err error)
	Ready()
}

// NullReporter discards every event. It is the default when no
// external UI collaborator is attached.
type NullReporter struct{}

func (NullReporter) PhaseStarted(Phase)                {}
func (NullReporter) PhaseFailed(Phase, error)          {}
func (NullReporter) ProcessStarting(string, int)       {}
func (NullReporter) ProcessReady(string)               {}
func (NullReporter) ProcessFailed(string, error)       {}
func (NullReporter) Ready()                            {}

// LogReporter renders boot progress as structured log lines, used for
// non-interactive runs (CI, headless daemons) where no terminal UI
// collaborator is attached.
type LogReporter struct {
	Logger *slog.Logger
}

// NewLogReporter constructs a LogReporter. logger defaults to
// slog.Default() if nil.
func NewLogReporter(logger *slog.Logger) *LogReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogReporter{Logger: logger}
}

func (r *LogReporter) PhaseStarted(p Phase) {
	r.Logger.Info("boot phase started", "phase", string(p))
}

func (r *LogReporter) PhaseFailed(p Phase, err error) {
	r.Logger.Error("boot phase failed", "phase", string(p), "error", err)
}

func (r *LogReporter) ProcessStarting(name string, wave int) {
	r.Logger.Info("starting process", "process", name, "wave", wave)
}

func (r *LogReporter) ProcessReady(name string) {
	r.Logger.Info("process ready", "process", name)
}

func (r *LogReporter) ProcessFailed(name string, err error) {
	r.Logger.Error("process failed to start", "process", name, "error", err)
}

func (r *LogReporter) Ready() {
	r.Logger.Info("all processes started")
}
