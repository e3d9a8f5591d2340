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

// Package preflight runs the built-in and user-defined environment
// checks the orchestrator requires to pass before starting any process.
package preflight

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/client"

	"github.com/dominicbartl/orckit/internal/config"
	"github.com/dominicbartl/orckit/internal/hooks"
	conductorerrors "github.com/dominicbartl/orckit/pkg/errors"
)

// CheckResult is the outcome of a single preflight check.
type CheckResult struct {
	Name       string
	Passed     bool
	DurationMs int64
	Error      string
	FixHint    string
}

// Runner executes the built-in checks plus the custom checks declared
// in config.Preflight.
type Runner struct {
	hooks *hooks.Executor
}

// NewRunner constructs a preflight Runner.
func NewRunner(exec *hooks.Executor) *Runner {
	return &Runner{hooks: exec}
}

// Run executes every applicable check and returns the full result set.
// The orchestrator aborts startup if any result is !Passed.
func (r *Runner) Run(ctx context.Context, cfg *config.Config) []CheckResult {
	var results []CheckResult

	results = append(results, r.checkMultiplexerPresent())

	if hasContainerProcess(cfg) {
		results = append(results, r.checkContainerDaemon(ctx))
	}

	if cfg.Preflight.RuntimeCommand != "" {
		results = append(results, r.checkRuntimeVersion(ctx, cfg.Preflight))
	}

	for _, port := range extractPorts(cfg) {
		results = append(results, r.checkPortAvailable(port))
	}

	for _, chk := range cfg.Preflight.Checks {
		results = append(results, r.runCustom(ctx, chk))
	}

	return results
}

// Err turns a result set into a PreflightError if any check failed, or
// nil if every check passed.
func Err(results []CheckResult) error {
	var failed []string
	for _, res := range results {
		if !res.Passed {
			failed = append(failed, res.Name)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return &conductorerrors.PreflightError{Failed: failed}
}

func timed(name string, fn func() (bool, string, string)) CheckResult {
	start := time.Now()
	passed, errMsg, fixHint := fn()
	return CheckResult{
		Name:       name,
		Passed:     passed,
		DurationMs: time.Since(start).Milliseconds(),
		Error:      errMsg,
		FixHint:    fixHint,
	}
}

// multiplexerBinary is the terminal multiplexer the external UI
// collaborator expects to find on PATH. orckit's core only checks for
// its presence; session creation itself is out of scope (spec §1).
const multiplexerBinary = "tmux"

func (r *Runner) checkMultiplexerPresent() CheckResult {
	return timed("multiplexer-present", func() (bool, string, string) {
		if _, err := exec.LookPath(multiplexerBinary); err != nil {
			return false, fmt.Sprintf("%s not found on PATH", multiplexerBinary), "install tmux or disable the UI collaborator"
		}
		return true, "", ""
	})
}

func (r *Runner) checkContainerDaemon(ctx context.Context) CheckResult {
	return timed("container-daemon-reachable", func() (bool, string, string) {
		cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			return false, fmt.Sprintf("failed to construct docker client: %v", err), "ensure DOCKER_HOST is set correctly"
		}
		defer cli.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if _, err := cli.Ping(pingCtx); err != nil {
			return false, fmt.Sprintf("docker daemon unreachable: %v", err), "start the container daemon"
		}
		return true, "", ""
	})
}

// runtimeVersionPattern pulls a dotted version number out of a command's
// version output (e.g. "v18.20.3" from `node -v`, "Python 3.11.4").
var runtimeVersionPattern = regexp.MustCompile(`v?(\d+)\.\d+`)

func (r *Runner) checkRuntimeVersion(ctx context.Context, pf config.Preflight) CheckResult {
	return timed("runtime-version-at-least", func() (bool, string, string) {
		out, err := exec.CommandContext(ctx, "sh", "-c", pf.RuntimeCommand).CombinedOutput()
		if err != nil {
			return false, fmt.Sprintf("failed to run %q: %v", pf.RuntimeCommand, err), "ensure the runtime is installed and on PATH"
		}

		major, ok := parseMajorVersion(string(out))
		if !ok {
			return false, fmt.Sprintf("could not parse a version number from %q output: %s", pf.RuntimeCommand, strings.TrimSpace(string(out))), "confirm runtime_command prints a version string"
		}
		if major < pf.RuntimeVersionMajor {
			return false, fmt.Sprintf("runtime major version %d is below the required %d", major, pf.RuntimeVersionMajor),
				fmt.Sprintf("upgrade the runtime to major version %d or newer", pf.RuntimeVersionMajor)
		}
		return true, "", ""
	})
}

func parseMajorVersion(output string) (int, bool) {
	m := runtimeVersionPattern.FindStringSubmatch(output)
	if m == nil {
		return 0, false
	}
	major, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return major, true
}

func (r *Runner) checkPortAvailable(port int) CheckResult {
	return timed(fmt.Sprintf("port-%d-available", port), func() (bool, string, string) {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err != nil {
			return false, fmt.Sprintf("port %d is already in use: %v", port, err), "stop the process holding this port or change the config"
		}
		ln.Close()
		return true, "", ""
	})
}

func (r *Runner) runCustom(ctx context.Context, chk config.PreflightCheck) CheckResult {
	return timed(chk.Name, func() (bool, string, string) {
		res := r.hooks.Run(ctx, chk.Command, nil, "", hooks.DefaultTimeout)
		if !res.Ok {
			msg := chk.ErrorMsg
			if msg == "" {
				msg = fmt.Sprintf("command failed: %v", res.Error)
			}
			return false, msg, chk.FixHint
		}
		return true, "", ""
	})
}

func hasContainerProcess(cfg *config.Config) bool {
	for _, p := range cfg.Processes {
		if p.Type == config.TypeContainer {
			return true
		}
	}
	return false
}

// extractPorts collects every TCP port referenced by a ready_check —
// tcp.port directly, or parsed from an http ready-check's URL — so
// preflight can verify they're free before anything starts. Ports
// exposed only through a container's own `-p` mapping are not covered:
// see DESIGN.md's preflight "Known gap" note.
func extractPorts(cfg *config.Config) []int {
	var ports []int
	for _, p := range cfg.Processes {
		switch p.ReadyCheck.Kind {
		case config.ReadyTCP:
			if p.ReadyCheck.Port > 0 {
				ports = append(ports, p.ReadyCheck.Port)
			}
		case config.ReadyHTTP:
			if port, ok := portFromURL(p.ReadyCheck.URL); ok {
				ports = append(ports, port)
			}
		}
	}
	return ports
}

// portFromURL extracts the numeric port from an http(s) ready-check
// URL, defaulting to 80/443 when the URL carries no explicit port.
func portFromURL(rawURL string) (int, bool) {
	if rawURL == "" {
		return 0, false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0, false
	}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return 0, false
		}
		return port, true
	}
	switch u.Scheme {
	case "https":
		return 443, true
	case "http", "":
		return 80, true
	default:
		return 0, false
	}
}
