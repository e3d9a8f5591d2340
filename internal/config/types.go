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

// Package config defines orckit's declarative process graph: the typed,
// validated configuration model that the dependency resolver, runners,
// and orchestrator all consume.
package config

import (
	"time"

	"github.com/google/uuid"
)

// ProcessType selects which runner class is instantiated for a process.
type ProcessType string

const (
	TypeShell          ProcessType = "shell"
	TypeContainer      ProcessType = "container"
	TypeNode           ProcessType = "node"
	TypeBundlerWebpack ProcessType = "bundler-webpack"
	TypeBundlerAngular ProcessType = "bundler-angular"
	TypeBundlerVite    ProcessType = "bundler-vite"
	TypeBuildOnce      ProcessType = "build-once"
)

// RestartPolicy governs what a runner does when its child exits.
type RestartPolicy string

const (
	RestartNever      RestartPolicy = "never"
	RestartOnFailure  RestartPolicy = "on-failure"
	RestartAlways     RestartPolicy = "always"
)

// IntegrationMode selects whether bundler runners extract structured
// build events from child output or treat it as opaque text.
type IntegrationMode string

const (
	IntegrationSurface IntegrationMode = "surface"
	IntegrationDeep    IntegrationMode = "deep"
)

// namespaceUUID is the fixed namespace orckit uses to derive stable,
// deterministic process ids from project name + process name.
var namespaceUUID = uuid.MustParse("5f8c1b7a-6e3b-4b63-9f0a-9a6d9a4a7c2e")

// OutputFilter describes per-line transformations applied to a process's
// captured stdout/stderr before it reaches subscribers.
type OutputFilter struct {
	Suppress  []string `yaml:"suppress,omitempty" json:"suppress,omitempty"`
	Include   []string `yaml:"include,omitempty" json:"include,omitempty"`
	Highlight []string `yaml:"highlight,omitempty" json:"highlight,omitempty"`
	Prefix    string   `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	Timestamps bool    `yaml:"timestamps,omitempty" json:"timestamps,omitempty"`
	MaxLines  int      `yaml:"max_lines,omitempty" json:"max_lines,omitempty"`
}

// Hooks lists the shell commands run synchronously around a process's
// lifecycle edges.
type Hooks struct {
	PreStart  string `yaml:"pre_start,omitempty" json:"pre_start,omitempty"`
	PostStart string `yaml:"post_start,omitempty" json:"post_start,omitempty"`
	PreStop   string `yaml:"pre_stop,omitempty" json:"pre_stop,omitempty"`
	PostStop  string `yaml:"post_stop,omitempty" json:"post_stop,omitempty"`
}

// GlobalHooks lists the shell commands run around the orchestrator's
// overall start/stop actions.
type GlobalHooks struct {
	PreStartAll  string `yaml:"pre_start_all,omitempty" json:"pre_start_all,omitempty"`
	PostStartAll string `yaml:"post_start_all,omitempty" json:"post_start_all,omitempty"`
	PreStopAll   string `yaml:"pre_stop_all,omitempty" json:"pre_stop_all,omitempty"`
	PostStopAll  string `yaml:"post_stop_all,omitempty" json:"post_stop_all,omitempty"`
}

// ReadyCheckKind identifies which readiness strategy a ReadyCheck uses.
type ReadyCheckKind string

const (
	ReadyNone       ReadyCheckKind = ""
	ReadyHTTP       ReadyCheckKind = "http"
	ReadyTCP        ReadyCheckKind = "tcp"
	ReadyLogPattern ReadyCheckKind = "log_pattern"
	ReadyCustom     ReadyCheckKind = "custom"
	ReadyExitCode   ReadyCheckKind = "exit_code"
)

// ReadyCheck is a tagged-union readiness strategy. Exactly one of the
// kind-specific fields is populated, selected by Kind.
type ReadyCheck struct {
	Kind ReadyCheckKind `yaml:"type" json:"type"`

	// Http fields (Kind == ReadyHTTP)
	URL            string `yaml:"url,omitempty" json:"url,omitempty"`
	ExpectedStatus int    `yaml:"expected_status,omitempty" json:"expected_status,omitempty"`

	// Tcp fields (Kind == ReadyTCP)
	Host string `yaml:"host,omitempty" json:"host,omitempty"`
	Port int    `yaml:"port,omitempty" json:"port,omitempty"`

	// LogPattern fields (Kind == ReadyLogPattern)
	Regex string `yaml:"regex,omitempty" json:"regex,omitempty"`

	// Custom fields (Kind == ReadyCustom)
	Command string `yaml:"command,omitempty" json:"command,omitempty"`

	// Shared timing, applies to every kind.
	TimeoutMs   int64 `yaml:"timeout_ms,omitempty" json:"timeout_ms,omitempty"`
	IntervalMs  int64 `yaml:"interval_ms,omitempty" json:"interval_ms,omitempty"`
	MaxAttempts int   `yaml:"max_attempts,omitempty" json:"max_attempts,omitempty"`
}

// Defaults for shared ReadyCheck timing, per spec §3.
const (
	DefaultTimeoutMs   = 60000
	DefaultIntervalMs  = 1000
	DefaultMaxAttempts = 60
	DefaultExpectedStatus = 200
)

// ApplyDefaults fills in the shared timing fields and (for Http) the
// default expected status, if unset.
func (r *ReadyCheck) ApplyDefaults() {
	if r.TimeoutMs <= 0 {
		r.TimeoutMs = DefaultTimeoutMs
	}
	if r.IntervalMs <= 0 {
		r.IntervalMs = DefaultIntervalMs
	}
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = DefaultMaxAttempts
	}
	if r.Kind == ReadyHTTP && r.ExpectedStatus == 0 {
		r.ExpectedStatus = DefaultExpectedStatus
	}
}

// Timeout returns the ready-check's overall timeout as a time.Duration.
func (r ReadyCheck) Timeout() time.Duration {
	return time.Duration(r.TimeoutMs) * time.Millisecond
}

// Interval returns the ready-check's poll interval as a time.Duration.
func (r ReadyCheck) Interval() time.Duration {
	return time.Duration(r.IntervalMs) * time.Millisecond
}

// Process is the immutable configuration for a single supervised process.
type Process struct {
	Name            string            `yaml:"name" json:"name"`
	Category        string            `yaml:"category,omitempty" json:"category,omitempty"`
	Type            ProcessType       `yaml:"type" json:"type"`
	Command         string            `yaml:"command" json:"command"`
	Workdir         string            `yaml:"workdir,omitempty" json:"workdir,omitempty"`
	Env             map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	Dependencies    []string          `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	RestartPolicy   RestartPolicy     `yaml:"restart_policy,omitempty" json:"restart_policy,omitempty"`
	MaxRetries      int               `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
	RestartDelayMs  int64             `yaml:"restart_delay_ms,omitempty" json:"restart_delay_ms,omitempty"`
	ReadyCheck      ReadyCheck        `yaml:"ready_check,omitempty" json:"ready_check,omitempty"`
	OutputFilter    OutputFilter      `yaml:"output_filter,omitempty" json:"output_filter,omitempty"`
	Hooks           Hooks             `yaml:"hooks,omitempty" json:"hooks,omitempty"`
	IntegrationMode IntegrationMode   `yaml:"integration_mode,omitempty" json:"integration_mode,omitempty"`
}

// RestartDelay returns the configured restart delay as a time.Duration.
func (p *Process) RestartDelay() time.Duration {
	return time.Duration(p.RestartDelayMs) * time.Millisecond
}

// ID returns a stable id derived deterministically from the project name
// and process name (UUIDv5), used to correlate log lines, hook runs, and
// IPC ProcessInfo entries across a process's lifetime.
func (p *Process) ID(projectName string) string {
	return uuid.NewSHA1(namespaceUUID, []byte(projectName+"/"+p.Name)).String()
}

// PreflightCheck is a user-defined environment check run before any
// process starts.
type PreflightCheck struct {
	Name      string `yaml:"name" json:"name"`
	Command   string `yaml:"command" json:"command"`
	ErrorMsg  string `yaml:"error_msg,omitempty" json:"error_msg,omitempty"`
	FixHint   string `yaml:"fix_hint,omitempty" json:"fix_hint,omitempty"`
	Condition string `yaml:"condition,omitempty" json:"condition,omitempty"`
}

// Preflight groups the custom preflight checks declared in config, plus
// the parameters for the mandatory runtimeVersionAtLeast built-in.
type Preflight struct {
	Checks []PreflightCheck `yaml:"checks,omitempty" json:"checks,omitempty"`

	// RuntimeCommand, when set, is run (e.g. "node -v") to obtain the
	// runtime version string checked against RuntimeVersionMajor. The
	// check is skipped entirely when this is empty, since there is
	// nothing declared to validate against.
	RuntimeCommand      string `yaml:"runtime_command,omitempty" json:"runtime_command,omitempty"`
	RuntimeVersionMajor int    `yaml:"runtime_version_major,omitempty" json:"runtime_version_major,omitempty"`
}

// Config is the top-level, validated declarative process graph.
type Config struct {
	// SchemaVersion mirrors the teacher's Config.Version field: 1 is the
	// only supported version today. Loader rejects any other value.
	SchemaVersion int `yaml:"version,omitempty" json:"version,omitempty"`

	ProjectName string `yaml:"project_name" json:"project_name"`

	// Processes preserves declaration order. Wave membership does not
	// depend on it: graph.Resolve sorts each wave by process name.
	Processes []*Process `yaml:"processes" json:"processes"`

	Hooks     GlobalHooks `yaml:"hooks,omitempty" json:"hooks,omitempty"`
	Preflight Preflight   `yaml:"preflight,omitempty" json:"preflight,omitempty"`
}

// ProcessMap returns the processes keyed by name for O(1) lookup.
func (c *Config) ProcessMap() map[string]*Process {
	m := make(map[string]*Process, len(c.Processes))
	for _, p := range c.Processes {
		m[p.Name] = p
	}
	return m
}
