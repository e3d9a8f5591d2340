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

// Package process implements the per-type runner lifecycle state
// machine: spawning children, capturing and filtering their output,
// polling readiness, restarting on failure, and extracting structured
// build events from bundler tool output in deep integration mode.
package process

import "time"

// Kind tags the variant carried by an Event.
type Kind string

const (
	EventStatus      Kind = "status"
	EventStdout      Kind = "stdout"
	EventStderr      Kind = "stderr"
	EventExit        Kind = "exit"
	EventFailed      Kind = "failed"
	EventReady       Kind = "ready"
	EventRestarting  Kind = "restarting"
	EventBuildStart  Kind = "build:start"
	EventBuildProgress Kind = "build:progress"
	EventBuildStats  Kind = "build:stats"
	EventBuildComplete Kind = "build:complete"
	EventBuildFailed Kind = "build:failed"
)

// State is a runner's position in the lifecycle state machine.
type State string

const (
	StatePending  State = "pending"
	StateStarting State = "starting"
	StateBuilding State = "building"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateFailed   State = "failed"
	StateStopped  State = "stopped"
)

// Event is a tagged union of everything a runner reports about itself.
// Subscribers drain these from a bounded per-runner channel; only the
// fields relevant to Kind are populated.
type Event struct {
	Process string
	Kind    Kind
	At      time.Time

	// EventStatus
	NewState State

	// EventStdout / EventStderr
	Line        string
	Highlighted bool

	// EventExit
	ExitCode int
	Signal   string

	// EventFailed
	Reason string

	// EventRestarting
	Attempt int

	// EventBuildProgress
	Progress int

	// EventBuildStats / EventBuildComplete
	Errors      int
	Warnings    int
	Success     bool
	DurationMs  int64
}
