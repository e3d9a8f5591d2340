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

package ipc

// BuildInfo mirrors the IPC-serialized build metrics for one process.
type BuildInfo struct {
	Progress   *int   `json:"progress,omitempty"`
	DurationMs *int64 `json:"duration,omitempty"`
	Errors     int    `json:"errors"`
	Warnings   int    `json:"warnings"`
}

// ProcessInfo is the wire shape of a single process's status, per §6.
type ProcessInfo struct {
	Name         string     `json:"name"`
	Status       string     `json:"status"`
	Category     string     `json:"category,omitempty"`
	UptimeMs     *int64     `json:"uptime_ms,omitempty"`
	PID          *int       `json:"pid,omitempty"`
	RestartCount int        `json:"restartCount"`
	Build        *BuildInfo `json:"buildInfo,omitempty"`
}

// ServerMessage is any message the server sends to a client. Only the
// fields relevant to Type are populated; json tags use omitempty so
// fields of other message types are left out of the wire payload. A
// zero value is left out too: a command_response with success false
// carries no "success" key.
type ServerMessage struct {
	Type string `json:"type"`

	// status_update
	Timestamp     int64         `json:"timestamp,omitempty"`
	Processes     []ProcessInfo `json:"processes,omitempty"`
	SystemMetrics any           `json:"systemMetrics,omitempty"`

	// log
	ProcessName string `json:"processName,omitempty"`
	Level       string `json:"level,omitempty"`
	Content     string `json:"content,omitempty"`

	// command_response
	Success bool   `json:"success,omitempty"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// ClientMessage is any message a client sends to the server.
type ClientMessage struct {
	Type        string         `json:"type"`
	Action      string         `json:"action"`
	ProcessName string         `json:"processName"`
	Options     map[string]any `json:"options,omitempty"`
}

const (
	msgStatusUpdate    = "status_update"
	msgLog             = "log"
	msgCommandResponse = "command_response"
	msgCommand         = "command"

	ActionStart   = "start"
	ActionStop    = "stop"
	ActionRestart = "restart"
	ActionLogs    = "logs"
)
