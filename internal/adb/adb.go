// Package adb wraps the Android Debug Bridge command line tool.
package adb

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	shellquote "github.com/kballard/go-shellquote"

	"github.com/openskills/skillbridge/internal/logging"
	"github.com/openskills/skillbridge/internal/model"
)

// DefaultTimeout bounds a single adb invocation.
const DefaultTimeout = 30 * time.Second

// Executor runs external commands and returns their stdout. Stderr
// never reaches the returned payload; screencap and cat pipe binary
// data through stdout and a stray adb warning must not corrupt it. On
// failure stderr is folded into the error instead.
type Executor interface {
	Execute(ctx context.Context, name string, args ...string) ([]byte, error)
}

type osExecutor struct{}

func (osExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		if detail := strings.TrimSpace(stderr.String()); detail != "" {
			err = fmt.Errorf("%w: %s", err, detail)
		}
	}
	return stdout.Bytes(), err
}

// Runner invokes adb against a single device.
type Runner struct {
	binary  string
	serial  string
	timeout time.Duration
	exec    Executor
}

// NewRunner creates a Runner for the given adb binary and device
// serial. An empty serial lets adb pick the only attached device.
func NewRunner(binary, serial string) *Runner {
	return &Runner{
		binary:  binary,
		serial:  serial,
		timeout: DefaultTimeout,
		exec:    osExecutor{},
	}
}

// WithExecutor returns a copy of the Runner using the given executor.
func (r *Runner) WithExecutor(e Executor) *Runner {
	clone := *r
	clone.exec = e
	return &clone
}

// WithTimeout returns a copy of the Runner using the given per-call
// timeout.
func (r *Runner) WithTimeout(d time.Duration) *Runner {
	clone := *r
	clone.timeout = d
	return &clone
}

// Serial returns the device serial the Runner targets.
func (r *Runner) Serial() string {
	return r.serial
}

// Run executes adb with the given arguments and returns its combined
// output. The serial, when set, is inserted as "-s <serial>".
func (r *Runner) Run(ctx context.Context, args ...string) (string, error) {
	full := make([]string, 0, len(args)+2)
	if r.serial != "" {
		full = append(full, "-s", r.serial)
	}
	full = append(full, args...)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	out, err := r.exec.Execute(ctx, r.binary, full...)
	logging.Debug("adb command finished",
		logging.Serial(r.serial),
		logging.Duration(time.Since(start)),
		logging.Err(err))
	if err != nil {
		return string(out), fmt.Errorf("adb %s: %w (output: %s)",
			shellquote.Join(args...), err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// State returns the adb connection state for the runner's device,
// for example "device" or "offline".
func (r *Runner) State(ctx context.Context) (string, error) {
	out, err := r.Run(ctx, "get-state")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Shell executes a shell command on the device.
func (r *Runner) Shell(ctx context.Context, args ...string) (string, error) {
	return r.Run(ctx, append([]string{"shell"}, args...)...)
}

// RunRaw executes adb and returns the raw bytes of its output. Used
// for binary payloads such as screenshots.
func (r *Runner) RunRaw(ctx context.Context, args ...string) ([]byte, error) {
	full := make([]string, 0, len(args)+2)
	if r.serial != "" {
		full = append(full, "-s", r.serial)
	}
	full = append(full, args...)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out, err := r.exec.Execute(ctx, r.binary, full...)
	if err != nil {
		return nil, fmt.Errorf("adb %s: %w", shellquote.Join(args...), err)
	}
	return out, nil
}

// Resolve locates the adb binary. Resolution order is the explicit
// override, the SKILLBRIDGE_ADB environment variable, the PATH, and
// finally the platform-tools directory of known SDK roots.
func Resolve(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if env := os.Getenv("SKILLBRIDGE_ADB"); env != "" {
		return env, nil
	}
	if path, err := exec.LookPath("adb"); err == nil {
		return path, nil
	}

	for _, root := range sdkRoots() {
		candidate := filepath.Join(root, "platform-tools", "adb")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("adb binary not found; install platform-tools or set SKILLBRIDGE_ADB")
}

func sdkRoots() []string {
	var roots []string
	for _, env := range []string{"ANDROID_HOME", "ANDROID_SDK_ROOT"} {
		if v := os.Getenv(env); v != "" {
			roots = append(roots, v)
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		roots = append(roots, filepath.Join(home, "Library", "Android", "sdk"))
	}
	return roots
}

// Devices lists attached devices by parsing "adb devices -l" output.
func Devices(ctx context.Context, binary string) ([]model.Device, error) {
	r := NewRunner(binary, "")
	out, err := r.Run(ctx, "devices", "-l")
	if err != nil {
		return nil, err
	}
	return parseDevices(out), nil
}

// parseDevices parses the output of "adb devices -l". The first line
// is a banner; each following non-empty line is
// "<serial> <state> key:value ...".
func parseDevices(out string) []model.Device {
	var devices []model.Device
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "*") || strings.HasPrefix(line, "List of devices") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		d := model.Device{
			Serial:   fields[0],
			State:    fields[1],
			Platform: model.Android,
		}
		for _, f := range fields[2:] {
			if name, ok := strings.CutPrefix(f, "model:"); ok {
				d.Name = strings.ReplaceAll(name, "_", " ")
			}
		}
		if d.Name == "" {
			d.Name = d.Serial
		}
		devices = append(devices, d)
	}
	return devices
}
