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

package process

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// gracefulStopGroup sends SIGTERM to pid's entire process group (every
// child spawned with Setpgid gets its own group, so this reaches
// grandchildren a shell command may have forked), waits up to grace,
// then escalates to SIGKILL. Mirrors the teacher's two-phase shutdown.
func gracefulStopGroup(pid int, grace time.Duration) error {
	if pid <= 0 {
		return nil
	}

	_ = syscall.Kill(-pid, syscall.SIGTERM)

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if !pidAlive(pid) {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	if !pidAlive(pid) {
		return nil
	}

	_ = syscall.Kill(-pid, syscall.SIGKILL)

	killDeadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(killDeadline) {
		if !pidAlive(pid) {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return nil
}

func pidAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// exitCodeOf extracts the numeric exit code and, if the process died
// from a signal, its name, from the error cmd.Wait returns.
func exitCodeOf(err error) (code int, signal string) {
	if err == nil {
		return 0, ""
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return -1, ws.Signal().String()
		}
		return exitErr.ExitCode(), ""
	}
	return -1, ""
}
