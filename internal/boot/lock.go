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

// Package boot sequences a single orckit run: loading and validating
// configuration, acquiring the project-scoped instance lock,
// running preflight checks, and starting the orchestrator, reporting
// progress through a caller-supplied Reporter.
package boot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

var (
	// ErrAlreadyRunning is returned when another orckit instance holds
	// the lock for the same project.
	ErrAlreadyRunning = errors.New("another orckit instance is already running for this project")

	// ErrInvalidLockPID is returned when the lock file contains
	// non-numeric data.
	ErrInvalidLockPID = errors.New("invalid pid in lock file")
)

// InstanceLock guards against two orckit processes managing the same
// project concurrently, which would double-spawn every configured
// process. It opens (creating if needed) the lock file and takes a
// non-blocking exclusive flock on it; the kernel drops the flock when
// the holder exits, so a file left by an unclean shutdown does not
// block a new instance.
type InstanceLock struct {
	path string
	file *os.File
}

// LockPath returns the canonical instance-lock path for a project.
func LockPath(projectName string) string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("orckit-%s.lock", projectName))
}

// NewInstanceLock constructs a lock for the given project.
func NewInstanceLock(projectName string) *InstanceLock {
	return &InstanceLock{path: LockPath(projectName)}
}

// Acquire creates and locks the lock file, writing the current pid.
// Returns ErrAlreadyRunning if another live instance holds it.
func (l *InstanceLock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0700); err != nil {
		return fmt.Errorf("boot: failed to create lock directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return fmt.Errorf("boot: failed to open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		if err == syscall.EWOULDBLOCK {
			return ErrAlreadyRunning
		}
		return fmt.Errorf("boot: failed to lock: %w", err)
	}

	if err := f.Truncate(0); err != nil {
		f.Close()
		return fmt.Errorf("boot: failed to truncate lock file: %w", err)
	}
	if _, err := f.WriteString(strconv.Itoa(os.Getpid())); err != nil {
		f.Close()
		return fmt.Errorf("boot: failed to write pid: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("boot: failed to sync lock file: %w", err)
	}

	l.file = f
	return nil
}

// HolderPID reads the pid recorded by whoever currently holds (or last
// held) the lock file.
func (l *InstanceLock) HolderPID() (int, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, ErrInvalidLockPID
	}
	return pid, nil
}

// Release unlocks and removes the lock file.
func (l *InstanceLock) Release() error {
	if l.file == nil {
		return nil
	}
	syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	l.file.Close()
	l.file = nil
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("boot: failed to remove lock file: %w", err)
	}
	return nil
}
