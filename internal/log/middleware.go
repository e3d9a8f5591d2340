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

package log

import (
	"log/slog"
	"time"
)

// CommandRequest represents an inbound IPC command for logging purposes.
type CommandRequest struct {
	// Action is the command action (e.g., "start", "stop", "restart", "logs").
	Action string

	// ProcessName is the target process name, if any.
	ProcessName string

	// ClientAddr is the remote address of the connected client.
	ClientAddr string

	// Metadata contains additional request metadata.
	Metadata map[string]interface{}
}

// CommandResponse represents the outcome of an IPC command for logging purposes.
type CommandResponse struct {
	// Success indicates whether the command succeeded.
	Success bool

	// Error is the error message if the command failed.
	Error string

	// DurationMs is how long the command took to handle.
	DurationMs int64

	// Metadata contains additional response metadata.
	Metadata map[string]interface{}
}

// LogCommandRequest logs an incoming IPC command.
func LogCommandRequest(logger *slog.Logger, req *CommandRequest) {
	attrs := []any{
		"event", "ipc_command",
		"action", req.Action,
		"remote", req.ClientAddr,
	}

	if req.ProcessName != "" {
		attrs = append(attrs, "process", req.ProcessName)
	}

	for k, v := range req.Metadata {
		attrs = append(attrs, k, v)
	}

	logger.Info("ipc command received", attrs...)
}

// LogCommandResponse logs the outcome of an IPC command.
func LogCommandResponse(logger *slog.Logger, req *CommandRequest, resp *CommandResponse) {
	attrs := []any{
		"event", "ipc_command_response",
		"action", req.Action,
		"success", resp.Success,
		"duration_ms", resp.DurationMs,
		"remote", req.ClientAddr,
	}

	if req.ProcessName != "" {
		attrs = append(attrs, "process", req.ProcessName)
	}

	if resp.Error != "" {
		attrs = append(attrs, "error", resp.Error)
	}

	for k, v := range resp.Metadata {
		attrs = append(attrs, k, v)
	}

	level := slog.LevelInfo
	message := "ipc command completed"

	if !resp.Success {
		level = slog.LevelWarn
		message = "ipc command failed"
	}

	logger.Log(nil, level, message, attrs...)
}

// CommandMiddleware wraps IPC command handling with consistent request/response logging.
type CommandMiddleware struct {
	logger *slog.Logger
}

// NewCommandMiddleware creates a new IPC command logging middleware.
func NewCommandMiddleware(logger *slog.Logger) *CommandMiddleware {
	return &CommandMiddleware{
		logger: logger,
	}
}

// Handle wraps a function that processes an IPC command.
// It logs the request and response automatically.
func (m *CommandMiddleware) Handle(req *CommandRequest, handler func() error) error {
	start := time.Now()

	LogCommandRequest(m.logger, req)

	err := handler()

	resp := &CommandResponse{
		Success:    err == nil,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		resp.Error = err.Error()
	}

	LogCommandResponse(m.logger, req, resp)

	return err
}
