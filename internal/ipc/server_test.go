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

package ipc_test

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dominicbartl/orckit/internal/ipc"
)

func dialClient(t *testing.T, path string) net.Conn {
	t.Helper()
	var conn net.Conn
	var err error
	for i := 0; i < 50; i++ {
		conn, err = net.Dial("unix", path)
		if err == nil {
			return conn
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, err)
	return conn
}

func TestServer_CommandDispatchRoundTrip(t *testing.T) {
	project := fmt.Sprintf("srvtest-%d", time.Now().UnixNano())

	var gotAction, gotProcess string
	handler := func(ctx context.Context, action, processName string, options map[string]any) (bool, string, any) {
		gotAction = action
		gotProcess = processName
		return true, "started", nil
	}

	s := ipc.NewServer(project, handler, nil)
	require.NoError(t, s.Start(context.Background()))
	defer s.Close()

	conn := dialClient(t, s.Path())
	defer conn.Close()

	req := map[string]any{"type": "command", "action": "start", "processName": "api"}
	payload, err := json.Marshal(req)
	require.NoError(t, err)
	_, err = conn.Write(append(payload, '\n'))
	require.NoError(t, err)

	scanner := bufio.NewScanner(conn)
	require.True(t, scanner.Scan())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp))
	assert.Equal(t, "command_response", resp["type"])
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "start", gotAction)
	assert.Equal(t, "api", gotProcess)
}

func TestServer_BroadcastStatusReachesClient(t *testing.T) {
	project := fmt.Sprintf("srvtest-%d", time.Now().UnixNano())
	s := ipc.NewServer(project, nil, nil)
	require.NoError(t, s.Start(context.Background()))
	defer s.Close()

	conn := dialClient(t, s.Path())
	defer conn.Close()

	// Give the accept goroutine a moment to register the connection
	// before broadcasting.
	time.Sleep(20 * time.Millisecond)

	s.BroadcastStatus(ipc.ServerMessage{
		Processes: []ipc.ProcessInfo{{Name: "api", Status: "running"}},
	})

	scanner := bufio.NewScanner(conn)
	require.True(t, scanner.Scan())

	var msg map[string]any
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &msg))
	assert.Equal(t, "status_update", msg["type"])
}

func TestServer_UnparsableLineDoesNotCrashConnection(t *testing.T) {
	project := fmt.Sprintf("srvtest-%d", time.Now().UnixNano())
	handler := func(ctx context.Context, action, processName string, options map[string]any) (bool, string, any) {
		return true, "", nil
	}
	s := ipc.NewServer(project, handler, nil)
	require.NoError(t, s.Start(context.Background()))
	defer s.Close()

	conn := dialClient(t, s.Path())
	defer conn.Close()

	_, err := conn.Write([]byte("not valid json\n"))
	require.NoError(t, err)

	valid := map[string]any{"type": "command", "action": "stop", "processName": "api"}
	payload, err := json.Marshal(valid)
	require.NoError(t, err)
	_, err = conn.Write(append(payload, '\n'))
	require.NoError(t, err)

	scanner := bufio.NewScanner(conn)
	require.True(t, scanner.Scan())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp))
	assert.Equal(t, "command_response", resp["type"])
}
