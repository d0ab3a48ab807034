package model

import (
	"fmt"
	"strings"
)

// Platform represents a mobile device platform the bridge can drive.
type Platform string

const (
	Android Platform = "android"
	IOS     Platform = "ios"
)

// IsValid returns true if the platform is recognized.
func (p Platform) IsValid() bool {
	switch p {
	case Android, IOS:
		return true
	default:
		return false
	}
}

// String returns the string representation of the platform.
func (p Platform) String() string {
	return string(p)
}

// AllPlatforms returns all supported device platforms.
func AllPlatforms() []Platform {
	return []Platform{Android, IOS}
}

// ParsePlatform converts a string to a Platform.
func ParsePlatform(s string) (Platform, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))

	p := Platform(normalized)
	if p.IsValid() {
		return p, nil
	}

	switch normalized {
	case "adb":
		return Android, nil
	case "iphone", "ipad", "apple":
		return IOS, nil
	default:
		return "", fmt.Errorf("unknown platform %q (valid: android, ios)", s)
	}
}
