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

// Package ui defines the contract between the core orchestrator and an
// external terminal-multiplexer session UI. Pane layout, themes, and
// attach behavior are the external collaborator's concern; the core
// only calls the methods below and renders an opaque overview string.
package ui

import "log/slog"

// Session is the capability the orchestrator drives a multiplexer UI
// through. Every method is best-effort: a failing UI call never aborts
// process startup, since the external collaborator is optional.
type Session interface {
	CreateSession() error
	CreateWindow(category, title string) error
	CreatePane(category, process, command, workdir string) error
	UpdateOverview(text string) error
	Attach() error
	KillSession() error
}

// NullSession implements Session with no-ops. It is the default when
// the UI collaborator is disabled (spec's "null implementation is
// acceptable when the UI is disabled").
type NullSession struct{}

func (NullSession) CreateSession() error                            { return nil }
func (NullSession) CreateWindow(category, title string) error       { return nil }
func (NullSession) CreatePane(category, process, command, workdir string) error { return nil }
func (NullSession) UpdateOverview(text string) error                { return nil }
func (NullSession) Attach() error                                   { return nil }
func (NullSession) KillSession() error                              { return nil }

// LogSession logs every UI call instead of driving a real multiplexer.
// Useful for headless runs (CI, containers) where no terminal is
// attached but the call sequence is still worth recording.
type LogSession struct {
	Logger *slog.Logger
}

// NewLogSession constructs a LogSession. logger defaults to
// slog.Default() if nil.
func NewLogSession(logger *slog.Logger) *LogSession {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSession{Logger: logger}
}

func (s *LogSession) CreateSession() error {
	s.Logger.Info("ui: create_session")
	return nil
}

func (s *LogSession) CreateWindow(category, title string) error {
	s.Logger.Info("ui: create_window", "category", category, "title", title)
	return nil
}

func (s *LogSession) CreatePane(category, process, command, workdir string) error {
	s.Logger.Info("ui: create_pane", "category", category, "process", process, "workdir", workdir)
	return nil
}

func (s *LogSession) UpdateOverview(text string) error {
	s.Logger.Debug("ui: update_overview", "text", text)
	return nil
}

func (s *LogSession) Attach() error {
	s.Logger.Info("ui: attach")
	return nil
}

func (s *LogSession) KillSession() error {
	s.Logger.Info("ui: kill_session")
	return nil
}
