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

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/dominicbartl/orckit/internal/config"
	"github.com/dominicbartl/orckit/internal/ipc"
)

// dialTimeout bounds how long the CLI waits to connect to a running
// instance's socket before giving up.
const dialTimeout = 3 * time.Second

// projectName loads just enough of the config at configPath to learn
// which running instance's socket to talk to.
func projectName() (string, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return "", err
	}
	return cfg.ProjectName, nil
}

// sendCommand connects to the running instance for the configured
// project, sends a single command, and returns its response.
func sendCommand(action, processName string, options map[string]any) (*ipc.ServerMessage, error) {
	project, err := projectName()
	if err != nil {
		return nil, err
	}

	conn, err := net.DialTimeout("unix", ipc.SocketPath(project), dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("no running orckit instance found for %q: %w", project, err)
	}
	defer conn.Close()

	req := ipc.ClientMessage{Type: "command", Action: action, ProcessName: processName, Options: options}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(append(payload, '\n')); err != nil {
		return nil, err
	}

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("no response from orckit instance")
	}

	var resp ipc.ServerMessage
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("malformed response: %w", err)
	}
	return &resp, nil
}

// readOneStatus connects and returns the first status_update broadcast
// it receives, used by `orckit status`.
func readOneStatus() (*ipc.ServerMessage, error) {
	project, err := projectName()
	if err != nil {
		return nil, err
	}

	conn, err := net.DialTimeout("unix", ipc.SocketPath(project), dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("no running orckit instance found for %q: %w", project, err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(dialTimeout))
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var msg ipc.ServerMessage
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			continue
		}
		if msg.Type == "status_update" {
			return &msg, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("no status update received")
}
