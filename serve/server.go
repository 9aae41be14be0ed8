package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"

	infill "github.com/Paranoid-AF/infill"
	"github.com/Paranoid-AF/infill/generate"
)

// maxMessageSize bounds one JSON line; requests may carry a whole document.
const maxMessageSize = 16 << 20

// Completer processes an infill request and returns a response.
type Completer interface {
	Complete(ctx context.Context, req *infill.Request) *infill.Response
	Close()
}

// Server answers infill, cancel and config messages on a Unix domain socket.
type Server struct {
	listener net.Listener
	sockPath string
	sessions *sessionTable

	mu     sync.Mutex
	engine Completer

	closeOnce sync.Once
}

// NewServer creates a server bound to sockPath using the on-disk config.
func NewServer(sockPath string) (*Server, error) {
	return NewServerWithCompleter(sockPath, generate.NewEngine())
}

// NewServerWithCompleter creates a server bound to sockPath that delegates
// completions to c.
func NewServerWithCompleter(sockPath string, c Completer) (*Server, error) {
	if err := os.Remove(sockPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: ln,
		sockPath: sockPath,
		sessions: newSessionTable(),
		engine:   c,
	}, nil
}

// Serve accepts connections until the listener is closed.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go s.handleConn(conn)
	}
}

// Close cancels in-flight requests, stops the engine and removes the socket.
// It is safe to call more than once.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.listener.Close()
		s.sessions.cancelAll()
		s.mu.Lock()
		s.engine.Close()
		s.mu.Unlock()
		os.Remove(s.sockPath)
	})
}

func (s *Server) completer() Completer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine
}

// envelope holds the fields that tell the message kinds apart.
type envelope struct {
	Type   string `json:"type"`
	Action string `json:"action"`
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	line, err := readLine(conn)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			slog.Warn("read failed", "error", err)
		}
		return
	}
	slog.Debug("request", "data", string(line))

	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		slog.Warn("invalid request", "error", err)
		return
	}

	var reply any
	switch {
	case env.Type == "cancel":
		var req infill.CancelRequest
		json.Unmarshal(line, &req)
		reply = s.cancel(&req)
	case env.Action != "":
		reply = s.configure(env.Action)
	default:
		var req infill.Request
		if err := json.Unmarshal(line, &req); err != nil {
			slog.Warn("invalid request", "error", err)
			return
		}
		resp := s.complete(&req)
		if resp == nil {
			return
		}
		reply = resp
	}
	writeJSON(conn, reply)
}

func readLine(r io.Reader) ([]byte, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxMessageSize)
	if sc.Scan() {
		return sc.Bytes(), nil
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// complete runs req and returns nil when the request was cancelled, since the
// client has already moved on.
func (s *Server) complete(req *infill.Request) *infill.Response {
	ctx, done := s.sessions.begin(req.SessionID)
	defer done()

	resp := s.completer().Complete(ctx, req)
	if ctx.Err() != nil {
		slog.Debug("request cancelled", "session_id", req.SessionID, "request_id", req.RequestID)
		return nil
	}
	resp.RequestID = req.RequestID
	if resp.Error == nil {
		slog.Debug("completed", "session_id", req.SessionID, "request_id", req.RequestID,
			"trace_id", resp.TraceID, "cached", resp.Cached)
	}
	return resp
}

func (s *Server) cancel(req *infill.CancelRequest) infill.CancelResponse {
	if req.SessionID == "" {
		return infill.CancelResponse{
			Error: &infill.Error{Code: "invalid_request", Message: "session_id is required"},
		}
	}
	cancelled := s.sessions.cancel(req.SessionID)
	slog.Info("cancel", "session_id", req.SessionID, "cancelled", cancelled)
	return infill.CancelResponse{OK: true, Cancelled: cancelled}
}

func (s *Server) configure(action string) infill.ConfigResponse {
	switch action {
	case "defaults":
		return infill.ConfigResponse{Config: infill.DefaultConfig()}
	case "get", "validate", "reload":
	default:
		return infill.ConfigResponse{
			Error: &infill.Error{Code: "unknown_action", Message: "unknown config action: " + action},
		}
	}

	cfg, err := infill.LoadConfig()
	if err != nil {
		return infill.ConfigResponse{Error: &infill.Error{Code: "config_error", Message: err.Error()}}
	}
	switch action {
	case "validate":
		return infill.ConfigResponse{Warnings: infill.ValidateConfig(cfg)}
	case "reload":
		s.swapEngine(generate.NewEngineWithConfig(cfg))
		slog.Info("engine reloaded", "provider", cfg.Provider)
	}
	return infill.ConfigResponse{Config: cfg}
}

// swapEngine installs c. Requests already running keep the engine they
// started with.
func (s *Server) swapEngine(c Completer) {
	s.mu.Lock()
	old := s.engine
	s.engine = c
	s.mu.Unlock()
	if old != nil {
		old.Close()
	}
}

func writeJSON(w io.Writer, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal response", "error", err)
		return
	}
	slog.Debug("response", "data", string(data))
	w.Write(append(data, '\n'))
}
