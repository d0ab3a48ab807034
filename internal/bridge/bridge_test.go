package bridge

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/openskills/skillbridge/internal/adb"
	"github.com/openskills/skillbridge/internal/rpc"
)

// scriptedExecutor replays canned output keyed by a space-joined
// suffix of the adb arguments, and records every invocation.
type scriptedExecutor struct {
	responses map[string]scriptResponse
	calls     []string
}

type scriptResponse struct {
	output string
	err    error
}

func (s *scriptedExecutor) Execute(_ context.Context, _ string, args ...string) ([]byte, error) {
	joined := strings.Join(args, " ")
	s.calls = append(s.calls, joined)
	for key, resp := range s.responses {
		if strings.Contains(joined, key) {
			return []byte(resp.output), resp.err
		}
	}
	return nil, nil
}

func (s *scriptedExecutor) called(fragment string) int {
	n := 0
	for _, c := range s.calls {
		if strings.Contains(c, fragment) {
			n++
		}
	}
	return n
}

func newTestBridge(exec *scriptedExecutor) *AndroidBridge {
	runner := adb.NewRunner("adb", "emulator-5554").WithExecutor(exec)
	b := NewAndroidBridge(runner)
	b.sleep = func(time.Duration) {}
	return b
}

func treeResponses() map[string]scriptResponse {
	return map[string]scriptResponse{
		"uiautomator dump": {output: ""},
		"exec-out cat":     {output: hierarchyFixture},
	}
}

func TestHandleGetTree(t *testing.T) {
	exec := &scriptedExecutor{responses: treeResponses()}
	b := newTestBridge(exec)

	result, stop, err := b.Handle(context.Background(), "get_tree", nil)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if stop {
		t.Error("get_tree should not stop the server")
	}

	tree, ok := result["tree"].(string)
	if !ok || !strings.HasPrefix(tree, "Hierarchy") {
		t.Errorf("tree = %v", result["tree"])
	}
}

func TestHandleGetScreenImage(t *testing.T) {
	png := pngHeader(1080, 2400)
	exec := &scriptedExecutor{responses: map[string]scriptResponse{
		"screencap": {output: string(png)},
	}}
	b := newTestBridge(exec)

	result, _, err := b.Handle(context.Background(), "get_screen_image", nil)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	encoded, ok := result["screenshot_base64"].(string)
	if !ok {
		t.Fatal("missing screenshot_base64")
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("decode screenshot: %v", err)
	}
	if !IsPNG(decoded) {
		t.Error("decoded screenshot is not PNG")
	}

	meta, ok := result["metadata"].(map[string]any)
	if !ok {
		t.Fatal("missing metadata")
	}
	if meta["width"] != 1080 || meta["height"] != 2400 {
		t.Errorf("metadata = %v", meta)
	}
}

func TestHandleGetScreenImageNotPNG(t *testing.T) {
	exec := &scriptedExecutor{responses: map[string]scriptResponse{
		"screencap": {output: "error: no display"},
	}}
	b := newTestBridge(exec)

	_, _, err := b.Handle(context.Background(), "get_screen_image", nil)
	if err == nil || !strings.Contains(err.Error(), "PNG") {
		t.Errorf("Handle() error = %v, want PNG complaint", err)
	}
}

func TestHandleTap(t *testing.T) {
	exec := &scriptedExecutor{responses: treeResponses()}
	b := newTestBridge(exec)

	result, _, err := b.Handle(context.Background(), "tap", map[string]any{"x": float64(120), "y": float64(640)})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if exec.called("input tap 120 640") != 1 {
		t.Errorf("calls = %v, want one tap at 120,640", exec.calls)
	}
	if _, ok := result["tree"].(string); !ok {
		t.Error("tap result missing tree")
	}
}

func TestHandleTapMissingParam(t *testing.T) {
	b := newTestBridge(&scriptedExecutor{})
	_, _, err := b.Handle(context.Background(), "tap", map[string]any{"x": float64(10)})
	if err == nil || !strings.Contains(err.Error(), "missing parameter 'y'") {
		t.Errorf("Handle() error = %v", err)
	}
}

func TestHandleTapElement(t *testing.T) {
	exec := &scriptedExecutor{responses: treeResponses()}
	b := newTestBridge(exec)

	params := map[string]any{
		"coordinate": "{{100, 200}, {80, 40}}",
		"count":      float64(2),
	}
	result, _, err := b.Handle(context.Background(), "tap_element", params)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	// Center of the rect, tapped twice.
	if exec.called("input tap 140 220") != 2 {
		t.Errorf("calls = %v, want two taps at 140,220", exec.calls)
	}
	if result["count"] != 2 {
		t.Errorf("count = %v, want 2", result["count"])
	}
	if result["longPress"] != false {
		t.Errorf("longPress = %v, want false", result["longPress"])
	}
}

func TestHandleTapElementLongPress(t *testing.T) {
	exec := &scriptedExecutor{responses: treeResponses()}
	b := newTestBridge(exec)

	params := map[string]any{
		"coordinate": "{{100, 200}, {80, 40}}",
		"count":      float64(3),
		"longPress":  true,
	}
	result, _, err := b.Handle(context.Background(), "tap_element", params)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	// A long press is a swipe in place; the count collapses to one.
	if exec.called("input swipe 140 220 140 220 550") != 1 {
		t.Errorf("calls = %v, want one in-place swipe", exec.calls)
	}
	if exec.called("input tap") != 0 {
		t.Errorf("calls = %v, want no taps", exec.calls)
	}
	if result["count"] != 1 {
		t.Errorf("count = %v, want 1", result["count"])
	}
}

func TestHandleTapElementBadCount(t *testing.T) {
	b := newTestBridge(&scriptedExecutor{})
	params := map[string]any{
		"coordinate": "{{0, 0}, {10, 10}}",
		"count":      float64(0),
	}
	_, _, err := b.Handle(context.Background(), "tap_element", params)
	if err == nil || !strings.Contains(err.Error(), "count must be >= 1") {
		t.Errorf("Handle() error = %v", err)
	}
}

func TestHandleEnterText(t *testing.T) {
	exec := &scriptedExecutor{responses: treeResponses()}
	b := newTestBridge(exec)

	params := map[string]any{
		"coordinate": "{{0, 0}, {200, 100}}",
		"text":       "hi there\nsecond line",
	}
	_, _, err := b.Handle(context.Background(), "enter_text", params)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if exec.called("input tap 100 50") != 1 {
		t.Errorf("calls = %v, want focus tap", exec.calls)
	}
	if exec.called("input text hi%sthere") != 1 {
		t.Errorf("calls = %v, want escaped first line", exec.calls)
	}
	if exec.called("input text second%sline") != 1 {
		t.Errorf("calls = %v, want escaped second line", exec.calls)
	}
	// One Enter between lines, one to confirm.
	if exec.called("input keyevent 66") != 2 {
		t.Errorf("calls = %v, want two keyevent 66", exec.calls)
	}
}

func TestHandleEnterTextChunksLongLines(t *testing.T) {
	exec := &scriptedExecutor{responses: treeResponses()}
	b := newTestBridge(exec)

	params := map[string]any{
		"coordinate": "{{0, 0}, {200, 100}}",
		"text":       strings.Repeat("a", 100),
	}
	if _, _, err := b.Handle(context.Background(), "enter_text", params); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	var chunks []int
	for _, call := range exec.calls {
		if i := strings.Index(call, "input text "); i >= 0 {
			chunks = append(chunks, len(call)-i-len("input text "))
		}
	}
	if len(chunks) != 2 || chunks[0] != 80 || chunks[1] != 20 {
		t.Errorf("chunk lengths = %v, want [80 20]", chunks)
	}
}

func TestHandleScroll(t *testing.T) {
	responses := treeResponses()
	responses["wm size"] = scriptResponse{output: "Physical size: 1080x2400\n"}
	exec := &scriptedExecutor{responses: responses}
	b := newTestBridge(exec)

	params := map[string]any{
		"x": float64(540), "y": float64(1200),
		"distanceX": float64(0), "distanceY": float64(2000),
	}
	if _, _, err := b.Handle(context.Background(), "scroll", params); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	// Destination clamps to the screen edge.
	if exec.called("input swipe 540 1200 540 2399 220") != 1 {
		t.Errorf("calls = %v, want clamped swipe", exec.calls)
	}
}

func TestHandleSwipe(t *testing.T) {
	tests := map[string]struct {
		direction string
		wantCall  string
	}{
		"up":    {"up", "input swipe 540 1200 540 660 220"},
		"down":  {"down", "input swipe 540 1200 540 1740 220"},
		"left":  {"left", "input swipe 540 1200 0 1200 220"},
		"right": {"right", "input swipe 540 1200 1079 1200 220"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			responses := treeResponses()
			responses["wm size"] = scriptResponse{output: "Physical size: 1080x2400\n"}
			exec := &scriptedExecutor{responses: responses}
			b := newTestBridge(exec)

			params := map[string]any{
				"x": float64(540), "y": float64(1200), "direction": tt.direction,
			}
			if _, _, err := b.Handle(context.Background(), "swipe", params); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if exec.called(tt.wantCall) != 1 {
				t.Errorf("calls = %v, want %q", exec.calls, tt.wantCall)
			}
		})
	}
}

func TestHandleSwipeBadDirection(t *testing.T) {
	responses := treeResponses()
	responses["wm size"] = scriptResponse{output: "Physical size: 1080x2400\n"}
	b := newTestBridge(&scriptedExecutor{responses: responses})

	params := map[string]any{
		"x": float64(0), "y": float64(0), "direction": "sideways",
	}
	_, _, err := b.Handle(context.Background(), "swipe", params)
	if err == nil || !strings.Contains(err.Error(), "direction must be one of") {
		t.Errorf("Handle() error = %v", err)
	}
}

func TestHandleOpenApp(t *testing.T) {
	responses := treeResponses()
	responses["resolve-activity"] = scriptResponse{output: "priority=0 preferredOrder=0\ncom.android.settings/.Settings\n"}
	responses["am start"] = scriptResponse{output: "Status: ok\n"}
	responses["dumpsys window windows"] = scriptResponse{
		output: "mCurrentFocus=Window{abc u0 com.android.settings/com.android.settings.Settings}\n",
	}
	exec := &scriptedExecutor{responses: responses}
	b := newTestBridge(exec)

	result, _, err := b.Handle(context.Background(), "open_app", map[string]any{
		"bundle_identifier": "com.android.settings",
	})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if result["package_name"] != "com.android.settings" {
		t.Errorf("result = %v", result)
	}
	if exec.called("am start -W -n com.android.settings/.Settings") != 1 {
		t.Errorf("calls = %v, want am start", exec.calls)
	}
	if exec.called("monkey") != 0 {
		t.Errorf("calls = %v, want no monkey fallback", exec.calls)
	}
}

func TestHandleOpenAppMonkeyFallback(t *testing.T) {
	responses := treeResponses()
	responses["resolve-activity"] = scriptResponse{output: "", err: errors.New("exit status 1")}
	responses["monkey"] = scriptResponse{output: "Events injected: 1\n"}
	responses["dumpsys window windows"] = scriptResponse{
		output: "mCurrentFocus=Window{abc u0 com.example.app/com.example.app.Main}\n",
	}
	exec := &scriptedExecutor{responses: responses}
	b := newTestBridge(exec)

	_, _, err := b.Handle(context.Background(), "open_app", map[string]any{
		"bundle_identifier": "com.example.app",
	})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if exec.called("monkey -p com.example.app") != 1 {
		t.Errorf("calls = %v, want monkey launch", exec.calls)
	}
}

func TestHandleOpenAppValidation(t *testing.T) {
	b := newTestBridge(&scriptedExecutor{})

	tests := map[string]struct {
		params     map[string]any
		errContain string
	}{
		"missing package": {
			params:     map[string]any{},
			errContain: "bundle_identifier is required",
		},
		"invalid package": {
			params:     map[string]any{"bundle_identifier": "not a package!"},
			errContain: "not a valid Android package name",
		},
		"single segment": {
			params:     map[string]any{"bundle_identifier": "settings"},
			errContain: "not a valid Android package name",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := b.Handle(context.Background(), "open_app", tt.params)
			if err == nil || !strings.Contains(err.Error(), tt.errContain) {
				t.Errorf("Handle() error = %v, want %q", err, tt.errContain)
			}
		})
	}
}

func TestHandleOpenAppForegroundMismatch(t *testing.T) {
	responses := treeResponses()
	responses["resolve-activity"] = scriptResponse{output: "com.example.app/.Main\n"}
	responses["am start"] = scriptResponse{output: "Status: ok\n"}
	responses["dumpsys window windows"] = scriptResponse{
		output: "mCurrentFocus=Window{abc u0 com.other.app/com.other.app.Main}\n",
	}
	b := newTestBridge(&scriptedExecutor{responses: responses})

	_, _, err := b.Handle(context.Background(), "open_app", map[string]any{
		"bundle_identifier": "com.example.app",
	})
	if err == nil || !strings.Contains(err.Error(), "failed to foreground") {
		t.Errorf("Handle() error = %v", err)
	}
}

func TestHandleAPIKey(t *testing.T) {
	b := newTestBridge(&scriptedExecutor{})

	// submit_prompt without a key.
	_, _, err := b.Handle(context.Background(), "submit_prompt", nil)
	if err == nil || !strings.Contains(err.Error(), "No API key found") {
		t.Errorf("Handle() error = %v", err)
	}

	result, _, err := b.Handle(context.Background(), "set_api_key", map[string]any{"api_key": "sk-test"})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if result["ok"] != true {
		t.Errorf("result = %v", result)
	}

	// With a key set, submit_prompt still reports it is unsupported.
	_, _, err = b.Handle(context.Background(), "submit_prompt", nil)
	if err == nil || !strings.Contains(err.Error(), "not supported") {
		t.Errorf("Handle() error = %v", err)
	}
}

func TestHandleSetAPIKeyEmpty(t *testing.T) {
	b := newTestBridge(&scriptedExecutor{})
	_, _, err := b.Handle(context.Background(), "set_api_key", map[string]any{"api_key": "   "})
	if err == nil || !strings.Contains(err.Error(), "api_key is required") {
		t.Errorf("Handle() error = %v", err)
	}
}

func TestHandleStop(t *testing.T) {
	b := newTestBridge(&scriptedExecutor{})
	result, stop, err := b.Handle(context.Background(), "stop", nil)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if !stop {
		t.Error("stop should request shutdown")
	}
	if len(result) != 0 {
		t.Errorf("result = %v, want empty", result)
	}
}

func TestHandleUnsupported(t *testing.T) {
	b := newTestBridge(&scriptedExecutor{})
	_, _, err := b.Handle(context.Background(), "levitate", nil)
	if err == nil {
		t.Fatal("Handle() expected error")
	}
	var rpcErr *rpc.Error
	if !errors.As(err, &rpcErr) {
		t.Fatalf("error %T is not *rpc.Error", err)
	}
	if rpcErr.Code != rpc.CodeMethodNotFound {
		t.Errorf("Code = %d, want %d", rpcErr.Code, rpc.CodeMethodNotFound)
	}
	if rpcErr.Message != "Unsupported command: levitate" {
		t.Errorf("Message = %q", rpcErr.Message)
	}
}
