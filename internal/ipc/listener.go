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

// Package ipc implements the local control-and-status socket: a
// line-delimited JSON protocol that broadcasts status snapshots and
// filtered log lines to any number of connected clients, and accepts
// start/stop/restart/logs commands back.
package ipc

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
)

// SocketPath returns the canonical socket path for a project, per
// spec §4.8: <tmpdir>/orckit-<project>.sock.
func SocketPath(projectName string) string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("orckit-%s.sock", projectName))
}

// listen opens a Unix domain socket at path, removing any stale socket
// file left behind by a prior, uncleanly-terminated run.
func listen(path string) (net.Listener, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create socket directory: %w", err)
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to remove stale socket: %w", err)
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on unix socket: %w", err)
	}

	if err := os.Chmod(path, 0600); err != nil {
		ln.Close()
		return nil, fmt.Errorf("failed to set socket permissions: %w", err)
	}

	return ln, nil
}
