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

package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/time/rate"

	conductorlog "github.com/dominicbartl/orckit/internal/log"
	conductorerrors "github.com/dominicbartl/orckit/pkg/errors"
)

// CommandHandler executes a client command and reports the outcome.
// The orchestrator supplies this as a closure at construction time so
// the server never holds a back-reference to it (design note, §9).
type CommandHandler func(ctx context.Context, action, processName string, options map[string]any) (success bool, message string, data any)

// logSampleRate bounds how many log-line broadcasts per second are sent
// to a single client; excess lines are dropped rather than queued, per
// spec §4.8 ("optional, may be sampled").
const logSampleRate = 200

// Server listens on a Unix domain socket and fans out status/log
// messages to every connected client while accepting control commands
// back. It never blocks runner or status-monitor callers: broadcasts
// are always non-blocking sends into per-connection channels.
type Server struct {
	path       string
	handler    CommandHandler
	logger     *slog.Logger
	middleware *conductorlog.CommandMiddleware

	ln net.Listener

	mu    sync.Mutex
	conns map[*connection]struct{}
}

// NewServer constructs a Server bound to the socket path for
// projectName. handler is invoked for every validated client command.
func NewServer(projectName string, handler CommandHandler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		path:       SocketPath(projectName),
		handler:    handler,
		logger:     logger,
		middleware: conductorlog.NewCommandMiddleware(logger),
		conns:      make(map[*connection]struct{}),
	}
}

// Path returns the socket path this server binds to.
func (s *Server) Path() string { return s.path }

// Start opens the listener and begins accepting connections in the
// background. It returns once the listener is ready.
func (s *Server) Start(ctx context.Context) error {
	ln, err := listen(s.path)
	if err != nil {
		return err
	}
	s.ln = ln

	go s.acceptLoop(ctx)
	return nil
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("ipc accept failed", "error", err)
			return
		}
		c := newConnection(conn)
		s.mu.Lock()
		s.conns[c] = struct{}{}
		s.mu.Unlock()

		go s.serve(ctx, c)
	}
}

func (s *Server) serve(ctx context.Context, c *connection) {
	defer func() {
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
		c.close()
	}()

	go c.writeLoop()

	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var msg ClientMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			// Unparsable lines are ignored per spec §4.8 — the
			// connection stays open, only this line is dropped.
			continue
		}
		if msg.Type != msgCommand {
			continue
		}
		s.dispatch(ctx, c, msg)
	}
}

func (s *Server) dispatch(ctx context.Context, c *connection, msg ClientMessage) {
	req := &conductorlog.CommandRequest{
		Action:      msg.Action,
		ProcessName: msg.ProcessName,
		ClientAddr:  c.conn.RemoteAddr().String(),
	}

	if s.handler == nil {
		s.middleware.Handle(req, func() error {
			c.sendCommandResponse(false, "no command handler configured", nil)
			return errors.New("no command handler configured")
		})
		return
	}
	switch msg.Action {
	case ActionStart, ActionStop, ActionRestart, ActionLogs:
	default:
		err := &conductorerrors.IPCProtocolError{Detail: "unknown action " + msg.Action}
		s.middleware.Handle(req, func() error {
			c.sendCommandResponse(false, err.Error(), nil)
			return err
		})
		return
	}

	s.middleware.Handle(req, func() error {
		success, message, data := s.handler(ctx, msg.Action, msg.ProcessName, msg.Options)
		c.sendCommandResponse(success, message, data)
		if !success {
			return errors.New(message)
		}
		return nil
	})
}

// BroadcastStatus fans a status snapshot out to every connected client,
// coalescing with any not-yet-sent status update per connection.
func (s *Server) BroadcastStatus(msg ServerMessage) {
	msg.Type = msgStatusUpdate
	s.mu.Lock()
	conns := make([]*connection, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.sendStatus(msg)
	}
}

// BroadcastLog fans a single filtered output line out to every client,
// rate-limited per connection so a chatty process cannot starve the
// socket.
func (s *Server) BroadcastLog(processName, level, content string) {
	msg := ServerMessage{
		Type:        msgLog,
		ProcessName: processName,
		Level:       level,
		Content:     content,
		Timestamp:   time.Now().UnixMilli(),
	}
	s.mu.Lock()
	conns := make([]*connection, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		if c.logLimiter.Allow() {
			c.sendLog(msg)
		}
	}
}

// Close stops accepting new connections, closes every active one, and
// removes the socket file.
func (s *Server) Close() error {
	if s.ln != nil {
		s.ln.Close()
	}
	s.mu.Lock()
	conns := make([]*connection, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.conns = make(map[*connection]struct{})
	s.mu.Unlock()

	for _, c := range conns {
		c.close()
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// connection wraps one accepted client with a coalescing status slot,
// a rate-limited log channel, and a best-effort command-response queue.
type connection struct {
	conn net.Conn

	statusCh chan ServerMessage
	logCh    chan ServerMessage
	cmdCh    chan ServerMessage

	logLimiter *rate.Limiter

	closeOnce sync.Once
	done      chan struct{}
}

func newConnection(conn net.Conn) *connection {
	return &connection{
		conn:       conn,
		statusCh:   make(chan ServerMessage, 1),
		logCh:      make(chan ServerMessage, 64),
		cmdCh:      make(chan ServerMessage, 8),
		logLimiter: rate.NewLimiter(rate.Limit(logSampleRate), logSampleRate),
		done:       make(chan struct{}),
	}
}

func (c *connection) sendStatus(msg ServerMessage) {
	select {
	case c.statusCh <- msg:
	default:
		// Coalesce: drop the stale update, keep only the latest.
		select {
		case <-c.statusCh:
		default:
		}
		select {
		case c.statusCh <- msg:
		default:
		}
	}
}

func (c *connection) sendLog(msg ServerMessage) {
	select {
	case c.logCh <- msg:
	default:
		// Client is falling behind on logs; drop rather than block.
	}
}

func (c *connection) sendCommandResponse(success bool, message string, data any) {
	msg := ServerMessage{Type: msgCommandResponse, Success: success, Message: message, Data: data}
	select {
	case c.cmdCh <- msg:
	default:
	}
}

func (c *connection) writeLoop() {
	enc := json.NewEncoder(c.conn)
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.cmdCh:
			if enc.Encode(msg) != nil {
				return
			}
		case msg := <-c.statusCh:
			if enc.Encode(msg) != nil {
				return
			}
		case msg := <-c.logCh:
			if enc.Encode(msg) != nil {
				return
			}
		}
	}
}

func (c *connection) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}
