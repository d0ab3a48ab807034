// Package bridge exposes a localhost-only newline-delimited JSON-RPC
// server that drives an Android device through adb and UiAutomator.
// The method surface mirrors the iOS agent as closely as adb allows.
package bridge

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/openskills/skillbridge/internal/adb"
	"github.com/openskills/skillbridge/internal/rpc"
)

var (
	screenSizeRe = regexp.MustCompile(`(\d+)\s*x\s*(\d+)`)
	packageRe    = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*(?:\.[A-Za-z][A-Za-z0-9_]*)+$`)

	focusPatterns = []*regexp.Regexp{
		regexp.MustCompile(`mCurrentFocus=.*? ([A-Za-z0-9_.]+)/`),
		regexp.MustCompile(`mFocusedApp=.*? ([A-Za-z0-9_.]+)/`),
	}
)

// windowDumpPath is where uiautomator writes its hierarchy on device.
const windowDumpPath = "/sdcard/window_dump.xml"

// AndroidBridge executes RPC methods against one Android device.
type AndroidBridge struct {
	runner *adb.Runner
	apiKey string

	// sleep is swapped out in tests.
	sleep func(time.Duration)
}

// NewAndroidBridge creates a bridge over the given adb runner.
func NewAndroidBridge(runner *adb.Runner) *AndroidBridge {
	return &AndroidBridge{
		runner: runner,
		sleep:  time.Sleep,
	}
}

// Serial returns the serial of the device the bridge drives.
func (b *AndroidBridge) Serial() string {
	return b.runner.Serial()
}

// Handle executes one method. The second return value is true when
// the server should shut down after responding.
func (b *AndroidBridge) Handle(ctx context.Context, method string, params map[string]any) (map[string]any, bool, error) {
	switch method {
	case "get_tree":
		tree, err := b.currentTree(ctx)
		if err != nil {
			return nil, false, err
		}
		return map[string]any{"tree": tree}, false, nil

	case "get_screen_image":
		payload, err := b.screenPayload(ctx)
		if err != nil {
			return nil, false, err
		}
		return payload, false, nil

	case "get_context":
		tree, err := b.currentTree(ctx)
		if err != nil {
			return nil, false, err
		}
		payload, err := b.screenPayload(ctx)
		if err != nil {
			return nil, false, err
		}
		payload["tree"] = tree
		return payload, false, nil

	case "tap":
		x, err := intParam(params, "x")
		if err != nil {
			return nil, false, err
		}
		y, err := intParam(params, "y")
		if err != nil {
			return nil, false, err
		}
		if _, err := b.runner.Shell(ctx, "input", "tap", strconv.Itoa(x), strconv.Itoa(y)); err != nil {
			return nil, false, err
		}
		return b.treeResult(ctx)

	case "tap_element":
		return b.tapElement(ctx, params)

	case "enter_text":
		return b.enterText(ctx, params)

	case "scroll":
		return b.scroll(ctx, params)

	case "swipe":
		return b.swipe(ctx, params)

	case "open_app":
		return b.openApp(ctx, params)

	case "set_api_key":
		key, err := stringParam(params, "api_key")
		if err != nil {
			return nil, false, err
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, false, fmt.Errorf("api_key is required")
		}
		b.apiKey = key
		return map[string]any{"ok": true}, false, nil

	case "submit_prompt":
		if b.apiKey == "" {
			return nil, false, fmt.Errorf("No API key found")
		}
		return nil, false, fmt.Errorf("submit_prompt is not supported on the Android bridge; use RPC tool methods directly")

	case "stop":
		return map[string]any{}, true, nil
	}

	return nil, false, rpc.NewError(rpc.CodeMethodNotFound, "Unsupported command: %s", method)
}

func (b *AndroidBridge) tapElement(ctx context.Context, params map[string]any) (map[string]any, bool, error) {
	coordinate, err := stringParam(params, "coordinate")
	if err != nil {
		return nil, false, err
	}
	rect, err := ParseCoordinate(coordinate)
	if err != nil {
		return nil, false, err
	}

	count := 1
	if v, ok := params["count"]; ok {
		f, err := asNumber(v, "count")
		if err != nil {
			return nil, false, err
		}
		count = int(f)
	}
	if count < 1 {
		return nil, false, fmt.Errorf("count must be >= 1")
	}
	longPress, _ := params["longPress"].(bool)

	x, y := rect.Center()
	xs, ys := strconv.Itoa(x), strconv.Itoa(y)

	if longPress {
		// A swipe that stays in place is the adb idiom for long press.
		if _, err := b.runner.Shell(ctx, "input", "swipe", xs, ys, xs, ys, "550"); err != nil {
			return nil, false, err
		}
		count = 1
	} else {
		for i := 0; i < count; i++ {
			if _, err := b.runner.Shell(ctx, "input", "tap", xs, ys); err != nil {
				return nil, false, err
			}
		}
	}

	tree, err := b.currentTree(ctx)
	if err != nil {
		return nil, false, err
	}
	return map[string]any{
		"coordinate": coordinate,
		"count":      count,
		"longPress":  longPress,
		"tree":       tree,
	}, false, nil
}

func (b *AndroidBridge) enterText(ctx context.Context, params map[string]any) (map[string]any, bool, error) {
	coordinate, err := stringParam(params, "coordinate")
	if err != nil {
		return nil, false, err
	}
	text, err := stringParam(params, "text")
	if err != nil {
		return nil, false, err
	}
	rect, err := ParseCoordinate(coordinate)
	if err != nil {
		return nil, false, err
	}

	x, y := rect.Center()
	if _, err := b.runner.Shell(ctx, "input", "tap", strconv.Itoa(x), strconv.Itoa(y)); err != nil {
		return nil, false, err
	}
	b.sleep(200 * time.Millisecond)

	if err := b.typeText(ctx, text); err != nil {
		return nil, false, err
	}
	// Confirm with Enter so forms submit the same way the iOS agent
	// does.
	if _, err := b.runner.Shell(ctx, "input", "keyevent", "66"); err != nil {
		return nil, false, err
	}

	tree, err := b.currentTree(ctx)
	if err != nil {
		return nil, false, err
	}
	return map[string]any{"coordinate": coordinate, "tree": tree}, false, nil
}

// typeText sends text line by line, chunked to survive adb argument
// limits, with keyevent 66 between lines.
func (b *AndroidBridge) typeText(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		for _, chunk := range chunkText(line, inputChunkSize) {
			escaped := escapeInputText(chunk)
			if escaped == "" {
				continue
			}
			if _, err := b.runner.Shell(ctx, "input", "text", escaped); err != nil {
				return err
			}
		}
		if i < len(lines)-1 {
			if _, err := b.runner.Shell(ctx, "input", "keyevent", "66"); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *AndroidBridge) scroll(ctx context.Context, params map[string]any) (map[string]any, bool, error) {
	x, err := intParam(params, "x")
	if err != nil {
		return nil, false, err
	}
	y, err := intParam(params, "y")
	if err != nil {
		return nil, false, err
	}
	dx, err := intParam(params, "distanceX")
	if err != nil {
		return nil, false, err
	}
	dy, err := intParam(params, "distanceY")
	if err != nil {
		return nil, false, err
	}

	width, height, err := b.screenSize(ctx)
	if err != nil {
		return nil, false, err
	}
	x2 := clamp(x+dx, width)
	y2 := clamp(y+dy, height)

	if _, err := b.runner.Shell(ctx, "input", "swipe",
		strconv.Itoa(x), strconv.Itoa(y), strconv.Itoa(x2), strconv.Itoa(y2), "220"); err != nil {
		return nil, false, err
	}
	return b.treeResult(ctx)
}

func (b *AndroidBridge) swipe(ctx context.Context, params map[string]any) (map[string]any, bool, error) {
	x, err := intParam(params, "x")
	if err != nil {
		return nil, false, err
	}
	y, err := intParam(params, "y")
	if err != nil {
		return nil, false, err
	}
	direction, err := stringParam(params, "direction")
	if err != nil {
		return nil, false, err
	}
	direction = strings.ToLower(strings.TrimSpace(direction))

	width, height, err := b.screenSize(ctx)
	if err != nil {
		return nil, false, err
	}

	span := min(width, height) / 2
	if span < 180 {
		span = 180
	}

	x2, y2 := x, y
	switch direction {
	case "up":
		y2 = y - span
	case "down":
		y2 = y + span
	case "left":
		x2 = x - span
	case "right":
		x2 = x + span
	default:
		return nil, false, fmt.Errorf("direction must be one of: up, down, left, right")
	}
	x2 = clamp(x2, width)
	y2 = clamp(y2, height)

	if _, err := b.runner.Shell(ctx, "input", "swipe",
		strconv.Itoa(x), strconv.Itoa(y), strconv.Itoa(x2), strconv.Itoa(y2), "220"); err != nil {
		return nil, false, err
	}
	return b.treeResult(ctx)
}

func (b *AndroidBridge) openApp(ctx context.Context, params map[string]any) (map[string]any, bool, error) {
	pkg := ""
	if v, ok := params["bundle_identifier"].(string); ok {
		pkg = v
	}
	if pkg == "" {
		if v, ok := params["package_name"].(string); ok {
			pkg = v
		}
	}
	pkg = strings.TrimSpace(pkg)
	if pkg == "" {
		return nil, false, fmt.Errorf("bundle_identifier is required")
	}
	if !packageRe.MatchString(pkg) {
		return nil, false, fmt.Errorf("bundle_identifier '%s' is not a valid Android package name", pkg)
	}

	if err := b.launchPackage(ctx, pkg); err != nil {
		return nil, false, err
	}
	b.sleep(800 * time.Millisecond)

	if foreground := b.foregroundPackage(ctx); foreground != "" && foreground != pkg {
		return nil, false, fmt.Errorf("failed to foreground app '%s' (current foreground package: '%s')", pkg, foreground)
	}

	tree, err := b.currentTree(ctx)
	if err != nil {
		return nil, false, err
	}
	return map[string]any{
		"bundle_identifier": pkg,
		"package_name":      pkg,
		"tree":              tree,
	}, false, nil
}

// launchPackage resolves the launcher activity and starts it, falling
// back to a monkey launcher event when resolution fails.
func (b *AndroidBridge) launchPackage(ctx context.Context, pkg string) error {
	resolved, err := b.runner.Shell(ctx, "cmd", "package", "resolve-activity", "--brief", pkg)
	if err == nil {
		component := ""
		lines := strings.Split(resolved, "\n")
		for i := len(lines) - 1; i >= 0; i-- {
			line := strings.TrimSpace(lines[i])
			if strings.Contains(line, "/") {
				component = line
				break
			}
		}
		if component != "" {
			out, err := b.runner.Shell(ctx, "am", "start", "-W", "-n", component)
			if err == nil && !strings.Contains(out, "Error:") {
				return nil
			}
		}
	}

	out, err := b.runner.Shell(ctx, "monkey", "-p", pkg, "-c", "android.intent.category.LAUNCHER", "1")
	if err != nil || strings.Contains(out, "No activities found to run") {
		detail := strings.TrimSpace(out)
		if err != nil {
			detail = err.Error()
		}
		return fmt.Errorf("failed to open app '%s': %s", pkg, detail)
	}
	return nil
}

// foregroundPackage reads the focused window's package, or "" when it
// cannot be determined.
func (b *AndroidBridge) foregroundPackage(ctx context.Context) string {
	out, err := b.runner.Shell(ctx, "dumpsys", "window", "windows")
	if err != nil {
		return ""
	}
	for _, re := range focusPatterns {
		if m := re.FindStringSubmatch(out); m != nil {
			return m[1]
		}
	}
	return ""
}

func (b *AndroidBridge) currentTree(ctx context.Context) (string, error) {
	if _, err := b.runner.Shell(ctx, "uiautomator", "dump", windowDumpPath); err != nil {
		return "", err
	}
	raw, err := b.runner.Run(ctx, "exec-out", "cat", windowDumpPath)
	if err != nil {
		return "", err
	}
	xmlText, err := extractXML(raw)
	if err != nil {
		return "", err
	}
	return FormatTree(xmlText)
}

func (b *AndroidBridge) treeResult(ctx context.Context) (map[string]any, bool, error) {
	tree, err := b.currentTree(ctx)
	if err != nil {
		return nil, false, err
	}
	return map[string]any{"tree": tree}, false, nil
}

// screenPayload captures a screenshot and wraps it for transport.
func (b *AndroidBridge) screenPayload(ctx context.Context) (map[string]any, error) {
	png, err := b.runner.RunRaw(ctx, "exec-out", "screencap", "-p")
	if err != nil {
		return nil, err
	}
	if !IsPNG(png) {
		return nil, fmt.Errorf("device screencap did not return PNG bytes")
	}

	payload := map[string]any{
		"screenshot_base64": base64.StdEncoding.EncodeToString(png),
	}
	if w, h, ok := PNGDimensions(png); ok {
		payload["metadata"] = map[string]any{"width": w, "height": h}
	}
	return payload, nil
}

func (b *AndroidBridge) screenSize(ctx context.Context) (width, height int, err error) {
	out, err := b.runner.Shell(ctx, "wm", "size")
	if err != nil {
		return 0, 0, err
	}
	m := screenSizeRe.FindStringSubmatch(out)
	if m == nil {
		return 0, 0, fmt.Errorf("failed to read screen size from: %q", strings.TrimSpace(out))
	}
	width, _ = strconv.Atoi(m[1])
	height, _ = strconv.Atoi(m[2])
	return width, height, nil
}

func stringParam(params map[string]any, key string) (string, error) {
	v, ok := params[key]
	if !ok {
		return "", fmt.Errorf("missing parameter '%s'", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("parameter '%s' must be a string", key)
	}
	return s, nil
}

func intParam(params map[string]any, key string) (int, error) {
	v, ok := params[key]
	if !ok {
		return 0, fmt.Errorf("missing parameter '%s'", key)
	}
	f, err := asNumber(v, key)
	if err != nil {
		return 0, err
	}
	return int(math.Round(f)), nil
}

func asNumber(v any, key string) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("parameter '%s' must be a number", key)
		}
		return f, nil
	}
	return 0, fmt.Errorf("parameter '%s' must be a number", key)
}
