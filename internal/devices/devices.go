// Package devices discovers connected Android and iOS devices and
// implements the selection rule shared by all device-facing commands.
package devices

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/openskills/skillbridge/internal/adb"
	"github.com/openskills/skillbridge/internal/logging"
	"github.com/openskills/skillbridge/internal/model"
	"github.com/openskills/skillbridge/internal/ui/tui"
)

// devicectlTimeout is the minimum timeout passed to devicectl; the
// tool is slow to enumerate tunnels on first use.
const devicectlTimeout = 5 * time.Second

// ErrNoDevices is wrapped by List errors when nothing is connected.
var ErrNoDevices = fmt.Errorf("no devices found")

// List returns the connected devices for a platform.
func List(ctx context.Context, platform model.Platform, adbBinary string) ([]model.Device, error) {
	switch platform {
	case model.Android:
		return ListAndroid(ctx, adbBinary)
	case model.IOS:
		return ListIOS(ctx)
	default:
		return nil, fmt.Errorf("unknown platform %q", platform)
	}
}

// ListAndroid returns Android devices reported by adb.
func ListAndroid(ctx context.Context, adbBinary string) ([]model.Device, error) {
	binary, err := adb.Resolve(adbBinary)
	if err != nil {
		return nil, err
	}
	return adb.Devices(ctx, binary)
}

// devicectlOutput mirrors the JSON written by
// "xcrun devicectl list devices --json-output".
type devicectlOutput struct {
	Result struct {
		Devices []struct {
			Identifier       string `json:"identifier"`
			DeviceProperties struct {
				Name string `json:"name"`
			} `json:"deviceProperties"`
			HardwareProperties struct {
				UDID string `json:"udid"`
			} `json:"hardwareProperties"`
			ConnectionProperties struct {
				TunnelState        string   `json:"tunnelState"`
				PotentialHostnames []string `json:"potentialHostnames"`
			} `json:"connectionProperties"`
		} `json:"devices"`
	} `json:"result"`
}

// ListIOS returns connected iOS devices. devicectl is preferred
// because it reports CoreDevice tunnel hostnames; when it is
// unavailable the xctrace listing still yields names and UDIDs.
func ListIOS(ctx context.Context) ([]model.Device, error) {
	devs, err := listDevicectl(ctx)
	if err == nil {
		return devs, nil
	}
	logging.Debug("devicectl unavailable, falling back to xctrace", logging.Err(err))
	return listXCTrace(ctx)
}

// listDevicectl runs devicectl. The tool only writes structured
// output to a file, so results go through a temporary JSON file.
func listDevicectl(ctx context.Context) ([]model.Device, error) {
	tmp, err := os.CreateTemp("", "skillbridge-devicectl-*.json")
	if err != nil {
		return nil, err
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	ctx, cancel := context.WithTimeout(ctx, devicectlTimeout+5*time.Second)
	defer cancel()

	// devicectl rejects timeouts under 5 seconds.
	cmd := exec.CommandContext(ctx, "xcrun", "devicectl",
		"--timeout", fmt.Sprintf("%d", int(devicectlTimeout.Seconds())),
		"list", "devices", "--json-output", tmpPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("devicectl list devices: %w (output: %s)",
			err, strings.TrimSpace(string(out)))
	}

	data, err := os.ReadFile(tmpPath)
	if err != nil {
		return nil, err
	}
	return parseDevicectl(data)
}

func parseDevicectl(data []byte) ([]model.Device, error) {
	var out devicectlOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse devicectl output: %w", err)
	}

	var devices []model.Device
	for _, d := range out.Result.Devices {
		udid := d.HardwareProperties.UDID
		if udid == "" {
			udid = d.Identifier
		}
		if udid == "" {
			continue
		}

		dev := model.Device{
			Serial:   udid,
			Name:     d.DeviceProperties.Name,
			Platform: model.IOS,
			State:    d.ConnectionProperties.TunnelState,
		}
		if dev.Name == "" {
			dev.Name = udid
		}
		for _, h := range d.ConnectionProperties.PotentialHostnames {
			if strings.HasSuffix(h, ".coredevice.local") {
				dev.Hostnames = append(dev.Hostnames, h)
			}
		}
		devices = append(devices, dev)
	}
	return devices, nil
}

// xctraceDeviceRe matches "Name (os version) (udid)" listing lines.
// The host machine line carries no OS version and is skipped.
var xctraceDeviceRe = regexp.MustCompile(`^(.+?) \(([^()]+)\) \(([0-9A-Fa-f-]+)\)$`)

func listXCTrace(ctx context.Context) ([]model.Device, error) {
	cmd := exec.CommandContext(ctx, "xcrun", "xctrace", "list", "devices")
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("xctrace list devices: %w (output: %s)",
			err, strings.TrimSpace(string(out)))
	}
	return parseXCTrace(string(out)), nil
}

// parseXCTrace extracts physical devices from the sectioned xctrace
// listing. Simulators and offline sections are ignored.
func parseXCTrace(output string) []model.Device {
	var devices []model.Device
	section := ""
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "==") {
			section = strings.Trim(line, "= ")
			continue
		}
		if section != "Devices" || line == "" {
			continue
		}
		m := xctraceDeviceRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		devices = append(devices, model.Device{
			Serial:   m[3],
			Name:     m[1],
			Platform: model.IOS,
			State:    "connected",
		})
	}
	return devices
}

// Select applies the device selection rule: zero devices is an error,
// one device is chosen automatically, and several devices require an
// interactive picker. Without a terminal, several devices is an error
// naming the candidates.
func Select(devs []model.Device, serial string) (model.Device, error) {
	if serial != "" {
		for _, d := range devs {
			if d.Serial == serial {
				return d, nil
			}
		}
		return model.Device{}, fmt.Errorf("device %q not found", serial)
	}

	ready := make([]model.Device, 0, len(devs))
	for _, d := range devs {
		if d.Ready() {
			ready = append(ready, d)
		}
	}

	switch len(ready) {
	case 0:
		return model.Device{}, ErrNoDevices
	case 1:
		logging.Debug("auto-selected device", logging.Serial(ready[0].Serial))
		return ready[0], nil
	}

	if !isInteractive() {
		serials := make([]string, len(ready))
		for i, d := range ready {
			serials[i] = d.Serial
		}
		return model.Device{}, fmt.Errorf("multiple devices connected (%s); pass --serial",
			strings.Join(serials, ", "))
	}

	return tui.PickDevice(ready)
}

// isInteractive is overridable in tests.
var isInteractive = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}
