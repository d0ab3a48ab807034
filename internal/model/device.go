package model

import "fmt"

// Device represents a connected mobile device discovered on the host.
type Device struct {
	// Serial is the adb serial (Android) or UDID (iOS).
	Serial string `json:"serial"`
	// Name is the human-readable device name, when the discovery tool
	// reports one.
	Name string `json:"name,omitempty"`
	// Platform identifies which toolchain drives the device.
	Platform Platform `json:"platform"`
	// State is the raw connection state reported by the discovery tool
	// (adb: device/offline/unauthorized).
	State string `json:"state,omitempty"`
	// Hostnames lists CoreDevice tunnel hostnames for iOS devices.
	Hostnames []string `json:"hostnames,omitempty"`
}

// Label returns a display string for pickers and logs.
func (d Device) Label() string {
	if d.Name != "" {
		return fmt.Sprintf("%s (%s)", d.Name, d.Serial)
	}
	return d.Serial
}

// Ready returns true if the device can accept commands.
func (d Device) Ready() bool {
	switch d.Platform {
	case Android:
		return d.State == "device"
	default:
		return true
	}
}
