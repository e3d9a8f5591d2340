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

package errors_test

import (
	"errors"
	"testing"

	conductorerrors "github.com/dominicbartl/orckit/pkg/errors"
)

func TestPreflightError_Error(t *testing.T) {
	err := &conductorerrors.PreflightError{Failed: []string{"node-version", "ports-available"}}
	want := "preflight failed: node-version, ports-available"
	if got := err.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestPreflightError_Empty(t *testing.T) {
	err := &conductorerrors.PreflightError{}
	if got := err.Error(); got != "preflight failed: (none)" {
		t.Errorf("got %q", got)
	}
}

func TestHookError_Error(t *testing.T) {
	err := &conductorerrors.HookError{Phase: "pre_start", Process: "api", Detail: "exit status 1"}
	want := "hook pre_start for api failed: exit status 1"
	if got := err.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestHookError_Global(t *testing.T) {
	err := &conductorerrors.HookError{Phase: "pre_start_all", Detail: "boom"}
	want := "hook pre_start_all failed: boom"
	if got := err.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestHookError_Unwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := &conductorerrors.HookError{Phase: "post_start", Cause: cause}
	if !errors.Is(err, cause) {
		t.Errorf("expected errors.Is to find cause")
	}
}

func TestReadinessTimeoutError_Error(t *testing.T) {
	err := &conductorerrors.ReadinessTimeoutError{Process: "api", Attempts: 3, ElapsedMs: 1500}
	want := "process api did not become ready after 3 attempts (1500ms)"
	if got := err.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestProcessSpawnError_Unwrap(t *testing.T) {
	cause := errors.New("exec: not found")
	err := &conductorerrors.ProcessSpawnError{Process: "web", Cause: cause}
	if !errors.Is(err, cause) {
		t.Errorf("expected errors.Is to find cause")
	}
}

func TestIPCProtocolError_Error(t *testing.T) {
	err := &conductorerrors.IPCProtocolError{Detail: "invalid json"}
	want := "ipc protocol error: invalid json"
	if got := err.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
