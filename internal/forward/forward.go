// Package forward binds a loopback TCP port and forwards each
// connection to the RPC server running on an iOS device, reached
// through its CoreDevice tunnel hostname. Keeping the listener on
// 127.0.0.1 keeps the device's RPC port off the LAN.
package forward

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openskills/skillbridge/internal/devices"
	"github.com/openskills/skillbridge/internal/logging"
	"github.com/openskills/skillbridge/internal/model"
)

const coredeviceSuffix = ".coredevice.local"

// HostnameLookup resolves extra tunnel hostnames for a device UDID.
type HostnameLookup func(ctx context.Context, udid string) []string

// Forwarder forwards loopback connections to one device.
type Forwarder struct {
	udid           string
	port           int
	connectTimeout time.Duration
	lookup         HostnameLookup

	// dial is swapped out in tests.
	dial func(ctx context.Context, candidates []string) (net.Conn, string, error)

	mu       sync.Mutex
	listener net.Listener
	stopped  bool
}

// Options configures a Forwarder.
type Options struct {
	// UDID is the device UDID or CoreDevice identifier.
	UDID string
	// Port is both the local listen port and the device port.
	Port int
	// ConnectTimeout bounds each remote dial attempt.
	ConnectTimeout time.Duration
	// Lookup resolves tunnel hostnames; defaults to devicectl.
	Lookup HostnameLookup
}

// New creates a Forwarder.
func New(opts Options) *Forwarder {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 2 * time.Second
	}
	if opts.Lookup == nil {
		opts.Lookup = devicectlLookup
	}
	f := &Forwarder{
		udid:           opts.UDID,
		port:           opts.Port,
		connectTimeout: opts.ConnectTimeout,
		lookup:         opts.Lookup,
	}
	f.dial = f.dialCandidates
	return f
}

// devicectlLookup asks devicectl for the device's potential
// hostnames.
func devicectlLookup(ctx context.Context, udid string) []string {
	devs, err := devices.ListIOS(ctx)
	if err != nil {
		logging.Debug("devicectl lookup failed", logging.Err(err))
		return nil
	}
	return hostnamesFor(devs, udid)
}

// hostnamesFor finds the device matching udid and returns its tunnel
// hostnames.
func hostnamesFor(devs []model.Device, udid string) []string {
	needle := strings.ToLower(udid)
	for _, d := range devs {
		if strings.ToLower(d.Serial) == needle {
			return d.Hostnames
		}
		for _, h := range d.Hostnames {
			if strings.Contains(strings.ToLower(h), needle) {
				return d.Hostnames
			}
		}
	}
	return nil
}

// Candidates returns the remote hostnames to try, in order: the UDID
// itself as a coredevice name, then any discovered tunnel hostnames,
// deduplicated preserving order.
func Candidates(udid string, extra []string) []string {
	var out []string
	if strings.HasSuffix(udid, coredeviceSuffix) {
		out = append(out, udid)
	} else {
		out = append(out, udid+coredeviceSuffix)
	}
	for _, h := range extra {
		if strings.HasSuffix(h, coredeviceSuffix) {
			out = append(out, h)
		}
	}

	seen := make(map[string]bool, len(out))
	deduped := out[:0]
	for _, h := range out {
		if !seen[h] {
			seen[h] = true
			deduped = append(deduped, h)
		}
	}
	return deduped
}

// ListenAndServe binds 127.0.0.1 and serves until Stop or context
// cancellation.
func (f *Forwarder) ListenAndServe(ctx context.Context) error {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(f.port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	f.mu.Lock()
	f.listener = ln
	f.mu.Unlock()

	logging.Info("forwarding", logging.Addr(addr), logging.Serial(f.udid))

	go func() {
		<-ctx.Done()
		f.Stop()
	}()

	for {
		client, err := ln.Accept()
		if err != nil {
			f.mu.Lock()
			stopped := f.stopped
			f.mu.Unlock()
			if stopped || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go f.handleClient(ctx, client)
	}
}

// Addr returns the bound address, or nil before ListenAndServe.
func (f *Forwarder) Addr() net.Addr {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listener == nil {
		return nil
	}
	return f.listener.Addr()
}

// Stop shuts the forwarder down. Safe to call more than once.
func (f *Forwarder) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped {
		return
	}
	f.stopped = true
	if f.listener != nil {
		_ = f.listener.Close()
	}
}

func (f *Forwarder) handleClient(ctx context.Context, client net.Conn) {
	remote, via, err := f.connectRemote(ctx)
	if err != nil {
		logging.Warn("dropping client, device unreachable",
			logging.Serial(f.udid), logging.Err(err))
		client.Close()
		return
	}

	logging.Debug("connected", logging.Addr(via))
	pump(client, remote)
}

// connectRemote tries each candidate hostname in order.
func (f *Forwarder) connectRemote(ctx context.Context) (net.Conn, string, error) {
	candidates := Candidates(f.udid, f.lookup(ctx, f.udid))
	return f.dial(ctx, candidates)
}

func (f *Forwarder) dialCandidates(ctx context.Context, candidates []string) (net.Conn, string, error) {
	dialer := net.Dialer{Timeout: f.connectTimeout}
	for _, host := range candidates {
		addr := net.JoinHostPort(host, strconv.Itoa(f.port))
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn, addr, nil
		}
		logging.Debug("candidate failed", logging.Addr(addr), logging.Err(err))
	}
	return nil, "", fmt.Errorf("no reachable coredevice hostname for %s (tried %s)",
		f.udid, strings.Join(candidates, ", "))
}

// pump copies bytes in both directions until either side closes, then
// tears both connections down.
func pump(a, b net.Conn) {
	var g errgroup.Group
	g.Go(func() error {
		_, err := io.Copy(a, b)
		a.Close()
		b.Close()
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(b, a)
		a.Close()
		b.Close()
		return err
	})
	_ = g.Wait()
}
