package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/openskills/skillbridge/internal/logging"
	"github.com/openskills/skillbridge/internal/rpc"
)

// maxRequestBytes bounds a single request line.
const maxRequestBytes = 1024 * 1024

// Handler executes one RPC method. The stop return value requests
// server shutdown after the response is written.
type Handler interface {
	Handle(ctx context.Context, method string, params map[string]any) (map[string]any, bool, error)
	Serial() string
}

// Server is a newline-delimited JSON-RPC TCP server. It only serves
// loopback peers; any other connection is dropped without a response.
type Server struct {
	host    string
	port    int
	handler Handler

	// Ready receives the readiness banner; defaults to os.Stdout.
	// Supervising processes wait for this line before connecting.
	Ready io.Writer

	mu       sync.Mutex
	listener net.Listener
	stopped  bool
}

// NewServer creates a Server for the given handler.
func NewServer(host string, port int, handler Handler) *Server {
	return &Server{
		host:    host,
		port:    port,
		handler: handler,
		Ready:   os.Stdout,
	}
}

// ListenAndServe binds the listener, prints the readiness banner, and
// serves until Stop is called or the context is canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	port := ln.Addr().(*net.TCPAddr).Port
	fmt.Fprintf(s.Ready, "PHONEAGENT_RPC_READY platform=android serial=%s host=%s port=%d\n",
		s.handler.Serial(), s.host, port)
	logging.Info("bridge listening", logging.Addr(ln.Addr().String()), logging.Serial(s.handler.Serial()))

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			stopped := s.stopped
			s.mu.Unlock()
			if stopped || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		connCtx := logging.NewContext(ctx, logging.With(logging.Addr(conn.RemoteAddr().String())))
		go s.handleConn(connCtx, conn)
	}
}

// Addr returns the bound listener address, or nil before
// ListenAndServe.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop shuts the server down. Safe to call more than once.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	if !isLoopback(conn.RemoteAddr()) {
		logging.Warn("rejected non-loopback peer", logging.Addr(conn.RemoteAddr().String()))
		return
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRequestBytes)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		stop := s.handleLine(ctx, conn, line)
		if stop {
			s.Stop()
			return
		}
	}

	// An oversized line still gets an answer before the connection
	// closes; callers never hang on a silent disconnect. Draining the
	// rest of the line keeps the close from turning into a reset that
	// could outrun the response.
	if errors.Is(scanner.Err(), bufio.ErrTooLong) {
		s.send(conn, rpc.Fail(nil, rpc.NewError(rpc.CodeParseError,
			"Request line exceeds %d bytes", maxRequestBytes)))
		_ = conn.SetReadDeadline(time.Now().Add(time.Second))
		_, _ = io.Copy(io.Discard, conn)
	}
}

// handleLine processes one request line and writes one response line.
// Malformed input still produces a response so callers never hang.
func (s *Server) handleLine(ctx context.Context, conn net.Conn, line []byte) bool {
	var req rpc.Request
	if err := json.Unmarshal(line, &req); err != nil {
		s.send(conn, rpc.Fail(nil, rpc.NewError(rpc.CodeParseError, "Invalid JSON payload")))
		return false
	}
	if req.Method == "" {
		s.send(conn, rpc.Fail(req.ID, rpc.NewError(rpc.CodeInvalidRequest, "Missing 'method' field")))
		return false
	}

	log := logging.FromContext(ctx)
	if log == nil {
		log = logging.Default()
	}

	result, stop, err := s.handler.Handle(ctx, req.Method, req.Params)
	if err != nil {
		var rpcErr *rpc.Error
		if !errors.As(err, &rpcErr) {
			rpcErr = rpc.NewError(rpc.CodeInternalError, "%s", err.Error())
		}
		log.Debug("method failed", logging.Method(req.Method), logging.Err(err))
		s.send(conn, rpc.Fail(req.ID, rpcErr))
		return false
	}

	s.send(conn, rpc.Ok(req.ID, result))
	return stop
}

func (s *Server) send(conn net.Conn, resp rpc.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		logging.Error("marshal response", logging.Err(err))
		return
	}
	data = append(data, '\n')
	if _, err := conn.Write(data); err != nil {
		logging.Debug("write response", logging.Err(err))
	}
}

func isLoopback(addr net.Addr) bool {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return false
	}
	return tcp.IP.IsLoopback()
}
