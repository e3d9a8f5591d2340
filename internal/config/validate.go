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

package config

import (
	"fmt"
	"regexp"
	"strings"

	conductorerrors "github.com/dominicbartl/orckit/pkg/errors"
)

// SupportedSchemaVersion is the only version this build of orckit accepts.
const SupportedSchemaVersion = 1

var validProcessTypes = map[ProcessType]bool{
	TypeShell:          true,
	TypeContainer:      true,
	TypeNode:           true,
	TypeBundlerWebpack: true,
	TypeBundlerAngular: true,
	TypeBundlerVite:    true,
	TypeBuildOnce:      true,
}

var validReadyKinds = map[ReadyCheckKind]bool{
	ReadyNone:       true,
	ReadyHTTP:       true,
	ReadyTCP:        true,
	ReadyLogPattern: true,
	ReadyCustom:     true,
	ReadyExitCode:   true,
}

var validRestartPolicies = map[RestartPolicy]bool{
	"":               true,
	RestartNever:     true,
	RestartOnFailure: true,
	RestartAlways:    true,
}

// MultiError aggregates every validation failure found in a single pass,
// so a user sees the whole list of problems instead of fixing one typo
// per invocation.
type MultiError struct {
	Errors []error
}

func (m *MultiError) Error() string {
	parts := make([]string, len(m.Errors))
	for i, e := range m.Errors {
		parts[i] = e.Error()
	}
	return fmt.Sprintf("%d config error(s):\n  - %s", len(m.Errors), strings.Join(parts, "\n  - "))
}

// Unwrap exposes the wrapped errors to errors.Is/As via Go 1.20+ multi-unwrap.
func (m *MultiError) Unwrap() []error {
	return m.Errors
}

func (m *MultiError) add(err error) {
	m.Errors = append(m.Errors, err)
}

// Validate checks every referential and range invariant the config model
// promises: unique non-empty process names, dependencies that resolve to
// declared processes, sane restart/ready-check settings. It does not
// check for dependency cycles — that is the resolver's job (internal/graph),
// since cycle detection requires the same traversal the wave scheduler
// already performs.
func (c *Config) Validate() error {
	merr := &MultiError{}

	if c.SchemaVersion != 0 && c.SchemaVersion != SupportedSchemaVersion {
		merr.add(&conductorerrors.ConfigError{
			Key:    "version",
			Reason: fmt.Sprintf("unsupported schema version %d (expected %d)", c.SchemaVersion, SupportedSchemaVersion),
		})
	}

	if strings.TrimSpace(c.ProjectName) == "" {
		merr.add(&conductorerrors.ValidationError{
			Field:      "project_name",
			Message:    "must not be empty",
			Suggestion: "set project_name at the top of the config file",
		})
	}

	if len(c.Processes) == 0 {
		merr.add(&conductorerrors.ValidationError{
			Field:   "processes",
			Message: "must declare at least one process",
		})
	}

	seen := make(map[string]bool, len(c.Processes))
	for i, p := range c.Processes {
		field := fmt.Sprintf("processes[%d]", i)

		name := strings.TrimSpace(p.Name)
		if name == "" {
			merr.add(&conductorerrors.ValidationError{
				Field:   field + ".name",
				Message: "must not be empty",
			})
		} else if seen[name] {
			merr.add(&conductorerrors.ValidationError{
				Field:      field + ".name",
				Message:    fmt.Sprintf("duplicate process name %q", name),
				Suggestion: "process names must be unique within a config",
			})
		}
		seen[name] = true

		if !validProcessTypes[p.Type] {
			merr.add(&conductorerrors.ValidationError{
				Field:   field + ".type",
				Message: fmt.Sprintf("unknown process type %q", p.Type),
			})
		}

		if strings.TrimSpace(p.Command) == "" && p.Type != TypeContainer {
			merr.add(&conductorerrors.ValidationError{
				Field:   field + ".command",
				Message: "must not be empty",
			})
		}

		if p.MaxRetries < 0 {
			merr.add(&conductorerrors.ValidationError{
				Field:   field + ".max_retries",
				Message: "must be >= 0",
			})
		}

		if !validRestartPolicies[p.RestartPolicy] {
			merr.add(&conductorerrors.ValidationError{
				Field:   field + ".restart_policy",
				Message: fmt.Sprintf("unknown restart policy %q", p.RestartPolicy),
			})
		}

		validateReadyCheck(merr, field+".ready_check", p.ReadyCheck)

		for j, dep := range p.Dependencies {
			if strings.TrimSpace(dep) == "" {
				merr.add(&conductorerrors.ValidationError{
					Field:   fmt.Sprintf("%s.dependencies[%d]", field, j),
					Message: "must not be empty",
				})
			}
			if dep == name {
				merr.add(&conductorerrors.ValidationError{
					Field:   fmt.Sprintf("%s.dependencies[%d]", field, j),
					Message: fmt.Sprintf("process %q cannot depend on itself", name),
				})
			}
		}
	}

	names := make(map[string]bool, len(c.Processes))
	for _, p := range c.Processes {
		names[p.Name] = true
	}
	for i, p := range c.Processes {
		for j, dep := range p.Dependencies {
			if dep == "" || names[dep] {
				continue
			}
			merr.add(&conductorerrors.ValidationError{
				Field:      fmt.Sprintf("processes[%d].dependencies[%d]", i, j),
				Message:    fmt.Sprintf("process %q depends on unknown process %q", p.Name, dep),
				Suggestion: "dependencies must name a process declared elsewhere in this config",
			})
		}
	}

	for i, chk := range c.Preflight.Checks {
		if strings.TrimSpace(chk.Name) == "" {
			merr.add(&conductorerrors.ValidationError{
				Field:   fmt.Sprintf("preflight.checks[%d].name", i),
				Message: "must not be empty",
			})
		}
		if strings.TrimSpace(chk.Command) == "" {
			merr.add(&conductorerrors.ValidationError{
				Field:   fmt.Sprintf("preflight.checks[%d].command", i),
				Message: "must not be empty",
			})
		}
	}

	if len(merr.Errors) == 0 {
		return nil
	}
	return merr
}

func validateReadyCheck(merr *MultiError, field string, r ReadyCheck) {
	if !validReadyKinds[r.Kind] {
		merr.add(&conductorerrors.ValidationError{
			Field:   field + ".type",
			Message: fmt.Sprintf("unknown ready check type %q", r.Kind),
		})
		return
	}

	switch r.Kind {
	case ReadyHTTP:
		if strings.TrimSpace(r.URL) == "" {
			merr.add(&conductorerrors.ValidationError{Field: field + ".url", Message: "must not be empty"})
		}
		if r.ExpectedStatus != 0 && (r.ExpectedStatus < 100 || r.ExpectedStatus > 599) {
			merr.add(&conductorerrors.ValidationError{
				Field:   field + ".expected_status",
				Message: fmt.Sprintf("must be between 100 and 599, got %d", r.ExpectedStatus),
			})
		}
	case ReadyTCP:
		if strings.TrimSpace(r.Host) == "" {
			merr.add(&conductorerrors.ValidationError{Field: field + ".host", Message: "must not be empty"})
		}
		if r.Port <= 0 || r.Port > 65535 {
			merr.add(&conductorerrors.ValidationError{
				Field:   field + ".port",
				Message: fmt.Sprintf("must be between 1 and 65535, got %d", r.Port),
			})
		}
	case ReadyLogPattern:
		if strings.TrimSpace(r.Regex) == "" {
			merr.add(&conductorerrors.ValidationError{Field: field + ".regex", Message: "must not be empty"})
		} else if _, err := regexp.Compile(r.Regex); err != nil {
			merr.add(&conductorerrors.ValidationError{Field: field + ".regex", Message: fmt.Sprintf("invalid regular expression: %v", err)})
		}
	case ReadyCustom:
		if strings.TrimSpace(r.Command) == "" {
			merr.add(&conductorerrors.ValidationError{Field: field + ".command", Message: "must not be empty"})
		}
	case ReadyExitCode, ReadyNone:
		// no kind-specific fields to check
	}

	if r.TimeoutMs < 0 {
		merr.add(&conductorerrors.ValidationError{Field: field + ".timeout_ms", Message: "must be >= 0"})
	}
	if r.IntervalMs < 0 {
		merr.add(&conductorerrors.ValidationError{Field: field + ".interval_ms", Message: "must be >= 0"})
	}
	if r.MaxAttempts < 0 {
		merr.add(&conductorerrors.ValidationError{Field: field + ".max_attempts", Message: "must be >= 0"})
	}
}
