package rpc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/openskills/skillbridge/internal/logging"
)

// Client calls a bridge over TCP. Each call opens a fresh connection,
// writes one request line, and reads one response line.
type Client struct {
	host           string
	port           int
	connectTimeout time.Duration
	readTimeout    time.Duration
	maxResponse    int64
	nextID         int64
}

// ClientOptions configures a Client.
type ClientOptions struct {
	Host           string
	Port           int
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	// MaxResponseBytes bounds a single response line. Screenshots
	// arrive base64-encoded, so the ceiling is generous.
	MaxResponseBytes int64
}

// NewClient creates a Client. Zero option fields get defaults.
func NewClient(opts ClientOptions) *Client {
	if opts.Host == "" {
		opts.Host = "127.0.0.1"
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 30 * time.Second
	}
	if opts.MaxResponseBytes <= 0 {
		opts.MaxResponseBytes = 10 * 1024 * 1024
	}
	return &Client{
		host:           opts.Host,
		port:           opts.Port,
		connectTimeout: opts.ConnectTimeout,
		readTimeout:    opts.ReadTimeout,
		maxResponse:    opts.MaxResponseBytes,
	}
}

// Call invokes a bridge method and unmarshals the result into out.
// Pass a nil out to discard the result.
func (c *Client) Call(ctx context.Context, method string, params map[string]any, out any) error {
	c.nextID++
	req := Request{ID: c.nextID, Method: method, Params: params}

	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}
	if resp.Error != nil {
		return fmt.Errorf("call %s: %w", method, resp.Error)
	}
	if out == nil || resp.Result == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("call %s: decode result: %w", method, err)
	}
	return nil
}

// Do sends a fully formed request and returns the raw response
// without interpreting bridge errors.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if req.ID == nil {
		c.nextID++
		req.ID = c.nextID
	}
	return c.roundTrip(ctx, req)
}

func (c *Client) roundTrip(ctx context.Context, req Request) (*Response, error) {
	addr := net.JoinHostPort(c.host, strconv.Itoa(c.port))

	dialer := net.Dialer{Timeout: c.connectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", addr, err)
	}
	defer conn.Close()

	start := time.Now()

	line, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	line = append(line, '\n')

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(c.readTimeout))
	}

	if _, err := conn.Write(line); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	reader := bufio.NewReaderSize(io.LimitReader(conn, c.maxResponse), 64*1024)
	respLine, err := reader.ReadBytes('\n')
	if err != nil && (len(respLine) == 0 || err != io.EOF) {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if len(bytes.TrimSpace(respLine)) == 0 {
		return nil, fmt.Errorf("empty response from %s", addr)
	}

	var resp Response
	if err := json.Unmarshal(respLine, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w (head: %s)", err, head(respLine, 120))
	}

	logging.Debug("rpc round trip",
		logging.Method(req.Method),
		logging.Addr(addr),
		logging.Duration(time.Since(start)))

	return &resp, nil
}

// head returns the leading bytes of a malformed response for error
// messages.
func head(b []byte, n int) string {
	s := string(bytes.TrimSpace(b))
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
