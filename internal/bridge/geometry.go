package bridge

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// coordRe matches the rect syntax "{{x, y}, {w, h}}" used by element
// coordinates in tree output.
var coordRe = regexp.MustCompile(`^\{\{\s*(-?\d+(?:\.\d+)?)\s*,\s*(-?\d+(?:\.\d+)?)\s*\},\s*\{\s*(-?\d+(?:\.\d+)?)\s*,\s*(-?\d+(?:\.\d+)?)\s*\}\}$`)

// boundsRe matches UiAutomator bounds "[x1,y1][x2,y2]".
var boundsRe = regexp.MustCompile(`^\[(-?\d+),(-?\d+)\]\[(-?\d+),(-?\d+)\]$`)

// Rect is an element rectangle in screen points.
type Rect struct {
	X, Y, W, H float64
}

// ParseCoordinate parses a "{{x, y}, {w, h}}" string.
func ParseCoordinate(coordinate string) (Rect, error) {
	m := coordRe.FindStringSubmatch(strings.TrimSpace(coordinate))
	if m == nil {
		return Rect{}, fmt.Errorf("coordinate must look like {{x, y}, {w, h}}; got '%s'", coordinate)
	}
	vals := make([]float64, 4)
	for i := 0; i < 4; i++ {
		v, err := strconv.ParseFloat(m[i+1], 64)
		if err != nil {
			return Rect{}, fmt.Errorf("coordinate must look like {{x, y}, {w, h}}; got '%s'", coordinate)
		}
		vals[i] = v
	}
	return Rect{X: vals[0], Y: vals[1], W: vals[2], H: vals[3]}, nil
}

// Center returns the integer center point of the rect.
func (r Rect) Center() (x, y int) {
	return int(math.Round(r.X + r.W/2)), int(math.Round(r.Y + r.H/2))
}

// String renders the rect back in coordinate syntax.
func (r Rect) String() string {
	return fmt.Sprintf("{{%.1f, %.1f}, {%.1f, %.1f}}", r.X, r.Y, r.W, r.H)
}

// boundsToRect converts UiAutomator "[x1,y1][x2,y2]" bounds into a
// Rect, clamping negative spans to zero.
func boundsToRect(bounds string) (Rect, bool) {
	m := boundsRe.FindStringSubmatch(strings.TrimSpace(bounds))
	if m == nil {
		return Rect{}, false
	}
	vals := make([]float64, 4)
	for i := 0; i < 4; i++ {
		v, err := strconv.ParseFloat(m[i+1], 64)
		if err != nil {
			return Rect{}, false
		}
		vals[i] = v
	}
	return Rect{
		X: vals[0],
		Y: vals[1],
		W: math.Max(0, vals[2]-vals[0]),
		H: math.Max(0, vals[3]-vals[1]),
	}, true
}

// clamp limits v to [0, limit-1].
func clamp(v, limit int) int {
	if v < 0 {
		return 0
	}
	if v > limit-1 {
		return limit - 1
	}
	return v
}
