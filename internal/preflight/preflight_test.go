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

package preflight_test

import (
	"context"
	"testing"

	"github.com/dominicbartl/orckit/internal/config"
	"github.com/dominicbartl/orckit/internal/hooks"
	"github.com/dominicbartl/orckit/internal/preflight"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner_CustomCheckPassAndFail(t *testing.T) {
	r := preflight.NewRunner(hooks.NewExecutor())
	cfg := &config.Config{
		ProjectName: "demo",
		Processes:   []*config.Process{{Name: "api", Type: config.TypeShell, Command: "true"}},
		Preflight: config.Preflight{Checks: []config.PreflightCheck{
			{Name: "ok-check", Command: "exit 0"},
			{Name: "bad-check", Command: "exit 1", ErrorMsg: "synthetic failure"},
		}},
	}

	results := r.Run(context.Background(), cfg)

	var ok, bad *preflight.CheckResult
	for i := range results {
		switch results[i].Name {
		case "ok-check":
			ok = &results[i]
		case "bad-check":
			bad = &results[i]
		}
	}
	require.NotNil(t, ok)
	require.NotNil(t, bad)
	assert.True(t, ok.Passed)
	assert.False(t, bad.Passed)
	assert.Equal(t, "synthetic failure", bad.Error)
}

func TestErr_AggregatesFailedCheckNames(t *testing.T) {
	results := []preflight.CheckResult{
		{Name: "a", Passed: true},
		{Name: "b", Passed: false},
		{Name: "c", Passed: false},
	}
	err := preflight.Err(results)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b")
	assert.Contains(t, err.Error(), "c")
}

func TestErr_NilWhenAllPassed(t *testing.T) {
	results := []preflight.CheckResult{{Name: "a", Passed: true}}
	assert.NoError(t, preflight.Err(results))
}

func TestRunner_SkipsContainerDaemonCheckWhenNoContainerProcess(t *testing.T) {
	r := preflight.NewRunner(hooks.NewExecutor())
	cfg := &config.Config{
		ProjectName: "demo",
		Processes:   []*config.Process{{Name: "api", Type: config.TypeShell, Command: "true"}},
	}

	results := r.Run(context.Background(), cfg)
	for _, res := range results {
		assert.NotEqual(t, "container-daemon-reachable", res.Name)
	}
}

func TestRunner_SkipsRuntimeVersionCheckWhenNotConfigured(t *testing.T) {
	r := preflight.NewRunner(hooks.NewExecutor())
	cfg := &config.Config{
		ProjectName: "demo",
		Processes:   []*config.Process{{Name: "api", Type: config.TypeShell, Command: "true"}},
	}

	results := r.Run(context.Background(), cfg)
	for _, res := range results {
		assert.NotEqual(t, "runtime-version-at-least", res.Name)
	}
}

func TestRunner_RuntimeVersionCheckPassesWhenMajorMeetsRequirement(t *testing.T) {
	r := preflight.NewRunner(hooks.NewExecutor())
	cfg := &config.Config{
		ProjectName: "demo",
		Processes:   []*config.Process{{Name: "api", Type: config.TypeShell, Command: "true"}},
		Preflight: config.Preflight{
			RuntimeCommand:      "echo v18.20.3",
			RuntimeVersionMajor: 18,
		},
	}

	results := r.Run(context.Background(), cfg)
	res := findResult(results, "runtime-version-at-least")
	require.NotNil(t, res)
	assert.True(t, res.Passed)
}

func TestRunner_RuntimeVersionCheckFailsWhenMajorBelowRequirement(t *testing.T) {
	r := preflight.NewRunner(hooks.NewExecutor())
	cfg := &config.Config{
		ProjectName: "demo",
		Processes:   []*config.Process{{Name: "api", Type: config.TypeShell, Command: "true"}},
		Preflight: config.Preflight{
			RuntimeCommand:      "echo v16.2.0",
			RuntimeVersionMajor: 18,
		},
	}

	results := r.Run(context.Background(), cfg)
	res := findResult(results, "runtime-version-at-least")
	require.NotNil(t, res)
	assert.False(t, res.Passed)
	assert.Contains(t, res.Error, "below the required")
}

func TestRunner_ExtractsPortFromHTTPReadyCheckURL(t *testing.T) {
	r := preflight.NewRunner(hooks.NewExecutor())
	cfg := &config.Config{
		ProjectName: "demo",
		Processes: []*config.Process{{
			Name:    "api",
			Type:    config.TypeShell,
			Command: "true",
			ReadyCheck: config.ReadyCheck{
				Kind: config.ReadyHTTP,
				URL:  "http://localhost:8099/healthz",
			},
		}},
	}

	results := r.Run(context.Background(), cfg)
	require.NotNil(t, findResult(results, "port-8099-available"))
}

func findResult(results []preflight.CheckResult, name string) *preflight.CheckResult {
	for i := range results {
		if results[i].Name == name {
			return &results[i]
		}
	}
	return nil
}
