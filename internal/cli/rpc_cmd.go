package cli

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/openskills/skillbridge/internal/artifacts"
	"github.com/openskills/skillbridge/internal/rpc"
	"github.com/openskills/skillbridge/internal/ui"
)

func rpcCommand() *cli.Command {
	return &cli.Command{
		Name:  "rpc",
		Usage: "Call the device RPC server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "RPC server host",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "RPC server port",
			},
			&cli.DurationFlag{
				Name:  "connect-timeout",
				Usage: "Connection timeout",
			},
			&cli.DurationFlag{
				Name:  "read-timeout",
				Usage: "Response read timeout",
			},
			&cli.IntFlag{
				Name:  "max-bytes",
				Usage: "Maximum response size in bytes",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print JSON output",
			},
		},
		Commands: []*cli.Command{
			rpcCallCommand(),
			rpcTreeCommand("get-tree", "Print the current UI hierarchy", "get_tree", nil),
			rpcContextCommand(),
			rpcScreenImageCommand(),
			rpcOpenAppCommand(),
			rpcTapCommand(),
			rpcTapElementCommand(),
			rpcEnterTextCommand(),
			rpcScrollCommand(),
			rpcSwipeCommand(),
			rpcStopCommand(),
			rpcReplCommand(),
		},
	}
}

// rpcClient builds a client from flags and configuration.
func rpcClient(cmd *cli.Command) (*rpc.Client, *artifacts.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	opts := rpc.ClientOptions{
		Host:             cfg.RPC.Host,
		Port:             cfg.RPC.Port,
		ConnectTimeout:   cfg.RPC.ConnectTimeout,
		ReadTimeout:      cfg.RPC.ReadTimeout,
		MaxResponseBytes: cfg.RPC.MaxResponseBytes,
	}
	if flag := cmd.String("host"); flag != "" {
		opts.Host = flag
	}
	if cmd.IsSet("port") {
		opts.Port = cmd.Int("port")
	}
	if flag := cmd.Duration("connect-timeout"); flag > 0 {
		opts.ConnectTimeout = flag
	}
	if flag := cmd.Duration("read-timeout"); flag > 0 {
		opts.ReadTimeout = flag
	}
	if flag := cmd.Int("max-bytes"); flag > 0 {
		opts.MaxResponseBytes = int64(flag)
	}

	return rpc.NewClient(opts), artifacts.NewStore(cfg.RPC.ArtifactsDir), nil
}

func printJSON(v any, pretty bool) error {
	enc := json.NewEncoder(os.Stdout)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// treeResult is the common shape of tree-returning methods.
type treeResult struct {
	Tree string `json:"tree"`
}

// callAndPrintTree invokes a method and prints the resulting tree,
// falling back to raw JSON when no tree came back.
func callAndPrintTree(ctx context.Context, cmd *cli.Command, method string, params map[string]any) error {
	client, _, err := rpcClient(cmd)
	if err != nil {
		return err
	}

	var result map[string]any
	if err := client.Call(ctx, method, params, &result); err != nil {
		return err
	}
	if tree, ok := result["tree"].(string); ok {
		fmt.Println(tree)
		return nil
	}
	return printJSON(result, cmd.Bool("pretty"))
}

func rpcTreeCommand(name, usage, method string, params map[string]any) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return callAndPrintTree(ctx, cmd, method, params)
		},
	}
}

func rpcCallCommand() *cli.Command {
	return &cli.Command{
		Name:      "call",
		Usage:     "Call an arbitrary RPC method with JSON params",
		UsageText: "skillbridge rpc call [--params '{\"x\": 1}'] <method>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "params",
				Usage: "JSON object with method parameters",
			},
			&cli.StringFlag{
				Name:  "print",
				Value: "json",
				Usage: "Output mode: json, result, or tree",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return fmt.Errorf("call requires exactly one argument: <method>")
			}
			method := cmd.Args().Get(0)

			params, err := parseParams(cmd.String("params"))
			if err != nil {
				return err
			}

			client, _, err := rpcClient(cmd)
			if err != nil {
				return err
			}
			resp, err := client.Do(ctx, rpc.Request{Method: method, Params: params})
			if err != nil {
				return err
			}

			pretty := cmd.Bool("pretty")
			switch cmd.String("print") {
			case "json":
				if err := printJSON(resp, pretty); err != nil {
					return err
				}
			case "result":
				var result any
				if resp.Result != nil {
					if err := json.Unmarshal(resp.Result, &result); err != nil {
						return err
					}
				}
				if err := printJSON(result, pretty); err != nil {
					return err
				}
			case "tree":
				var result treeResult
				if resp.Result != nil {
					_ = json.Unmarshal(resp.Result, &result)
				}
				if result.Tree != "" {
					fmt.Println(result.Tree)
				} else if err := printJSON(resp, pretty); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown --print mode: %s", cmd.String("print"))
			}

			if resp.Error != nil {
				return resp.Error
			}
			return nil
		},
	}
}

func rpcContextCommand() *cli.Command {
	return &cli.Command{
		Name:  "get-context",
		Usage: "Print the UI hierarchy and save a screenshot",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			client, store, err := rpcClient(cmd)
			if err != nil {
				return err
			}

			var result struct {
				Tree             string `json:"tree"`
				ScreenshotBase64 string `json:"screenshot_base64"`
			}
			if err := client.Call(ctx, "get_context", nil, &result); err != nil {
				return err
			}

			if result.ScreenshotBase64 != "" {
				if path, err := saveScreenshot(store, "context", result.ScreenshotBase64); err == nil {
					fmt.Fprintln(os.Stderr, "Wrote screenshot: "+path)
				} else {
					fmt.Fprintln(os.Stderr, ui.StatusWarning("screenshot not saved: "+err.Error()))
				}
			}

			fmt.Println(result.Tree)
			return nil
		},
	}
}

func rpcScreenImageCommand() *cli.Command {
	return &cli.Command{
		Name:  "get-screen-image",
		Usage: "Save a screenshot of the device screen",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "print-metadata",
				Usage: "Print the image metadata",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			client, store, err := rpcClient(cmd)
			if err != nil {
				return err
			}

			var result struct {
				ScreenshotBase64 string         `json:"screenshot_base64"`
				Metadata         map[string]any `json:"metadata"`
			}
			if err := client.Call(ctx, "get_screen_image", nil, &result); err != nil {
				return err
			}
			if result.ScreenshotBase64 == "" {
				return fmt.Errorf("response missing screenshot_base64")
			}

			path, err := saveScreenshot(store, "screen", result.ScreenshotBase64)
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, "Wrote screenshot: "+path)

			if cmd.Bool("print-metadata") {
				return printJSON(result.Metadata, cmd.Bool("pretty"))
			}
			return nil
		},
	}
}

func rpcOpenAppCommand() *cli.Command {
	return &cli.Command{
		Name:      "open-app",
		Usage:     "Open an app by bundle identifier or package name",
		UsageText: "skillbridge rpc open-app <identifier>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return fmt.Errorf("open-app requires exactly one argument: <identifier>")
			}
			return callAndPrintTree(ctx, cmd, "open_app", map[string]any{
				"bundle_identifier": cmd.Args().Get(0),
			})
		},
	}
}

func rpcTapCommand() *cli.Command {
	return &cli.Command{
		Name:      "tap",
		Usage:     "Tap at screen coordinates",
		UsageText: "skillbridge rpc tap <x> <y>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			coords, err := floatArgs(cmd, 2)
			if err != nil {
				return err
			}
			return callAndPrintTree(ctx, cmd, "tap", map[string]any{
				"x": coords[0], "y": coords[1],
			})
		},
	}
}

func rpcTapElementCommand() *cli.Command {
	return &cli.Command{
		Name:  "tap-element",
		Usage: "Tap the center of an element rectangle",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "coordinate",
				Usage:    "Element frame like '{{x, y}, {w, h}}'",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "count",
				Usage: "Number of taps",
			},
			&cli.BoolFlag{
				Name:  "long-press",
				Usage: "Long-press instead of tapping",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			params := map[string]any{"coordinate": cmd.String("coordinate")}
			if cmd.IsSet("count") {
				params["count"] = cmd.Int("count")
			}
			if cmd.Bool("long-press") {
				params["longPress"] = true
			}
			return callAndPrintTree(ctx, cmd, "tap_element", params)
		},
	}
}

func rpcEnterTextCommand() *cli.Command {
	return &cli.Command{
		Name:  "enter-text",
		Usage: "Type text into an element",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "coordinate",
				Usage:    "Element frame like '{{x, y}, {w, h}}'",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "text",
				Usage:    "Text to type",
				Required: true,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return callAndPrintTree(ctx, cmd, "enter_text", map[string]any{
				"coordinate": cmd.String("coordinate"),
				"text":       cmd.String("text"),
			})
		},
	}
}

func rpcScrollCommand() *cli.Command {
	return &cli.Command{
		Name:      "scroll",
		Usage:     "Scroll from a point by a distance",
		UsageText: "skillbridge rpc scroll <x> <y> <distanceX> <distanceY>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			vals, err := floatArgs(cmd, 4)
			if err != nil {
				return err
			}
			return callAndPrintTree(ctx, cmd, "scroll", map[string]any{
				"x": vals[0], "y": vals[1],
				"distanceX": vals[2], "distanceY": vals[3],
			})
		},
	}
}

func rpcSwipeCommand() *cli.Command {
	return &cli.Command{
		Name:      "swipe",
		Usage:     "Swipe from a point in a direction",
		UsageText: "skillbridge rpc swipe <x> <y> <up|down|left|right>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 3 {
				return fmt.Errorf("swipe requires three arguments: <x> <y> <direction>")
			}
			x, err := strconv.ParseFloat(cmd.Args().Get(0), 64)
			if err != nil {
				return fmt.Errorf("invalid x: %w", err)
			}
			y, err := strconv.ParseFloat(cmd.Args().Get(1), 64)
			if err != nil {
				return fmt.Errorf("invalid y: %w", err)
			}
			return callAndPrintTree(ctx, cmd, "swipe", map[string]any{
				"x": x, "y": y, "direction": cmd.Args().Get(2),
			})
		},
	}
}

func rpcStopCommand() *cli.Command {
	return &cli.Command{
		Name:  "stop",
		Usage: "Ask the RPC server to shut down",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			client, _, err := rpcClient(cmd)
			if err != nil {
				return err
			}
			resp, err := client.Do(ctx, rpc.Request{Method: "stop"})
			if err != nil {
				return err
			}
			if err := printJSON(resp, cmd.Bool("pretty")); err != nil {
				return err
			}
			if resp.Error != nil {
				return resp.Error
			}
			return nil
		},
	}
}

func rpcReplCommand() *cli.Command {
	return &cli.Command{
		Name:  "repl",
		Usage: "Interactively call RPC methods",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			client, _, err := rpcClient(cmd)
			if err != nil {
				return err
			}

			interactive := term.IsTerminal(int(os.Stdin.Fd()))
			if interactive {
				fmt.Fprintln(os.Stderr, ui.Header("RPC REPL")+". Enter: <method> [<json_params_object>]. Use 'quit' to exit.")
			}
			scanner := bufio.NewScanner(os.Stdin)
			for {
				if interactive {
					fmt.Fprint(os.Stderr, "> ")
				}
				if !scanner.Scan() {
					break
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				if line == "quit" || line == "exit" {
					break
				}

				method, rest, _ := strings.Cut(line, " ")
				params, err := parseParams(strings.TrimSpace(rest))
				if err != nil {
					fmt.Fprintln(os.Stderr, ui.StatusError(err.Error()))
					continue
				}

				resp, err := client.Do(ctx, rpc.Request{Method: method, Params: params})
				if err != nil {
					fmt.Fprintln(os.Stderr, ui.StatusError("RPC failed: "+err.Error()))
					continue
				}
				if err := printJSON(resp, cmd.Bool("pretty")); err != nil {
					return err
				}
				if resp.Error != nil {
					fmt.Fprintln(os.Stderr, ui.StatusError(resp.Error.Message))
				}
			}
			return scanner.Err()
		},
	}
}

// parseParams decodes a JSON object string; empty means no params.
func parseParams(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var params map[string]any
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return nil, fmt.Errorf("params must be a JSON object: %w", err)
	}
	return params, nil
}

// floatArgs parses exactly n positional float arguments.
func floatArgs(cmd *cli.Command, n int) ([]float64, error) {
	if cmd.Args().Len() != n {
		return nil, fmt.Errorf("expected %d numeric arguments, got %d", n, cmd.Args().Len())
	}
	vals := make([]float64, n)
	for i := 0; i < n; i++ {
		v, err := strconv.ParseFloat(cmd.Args().Get(i), 64)
		if err != nil {
			return nil, fmt.Errorf("argument %d is not a number: %q", i+1, cmd.Args().Get(i))
		}
		vals[i] = v
	}
	return vals, nil
}

// saveScreenshot decodes a base64 PNG and stores it as an artifact.
func saveScreenshot(store *artifacts.Store, prefix, b64 string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", fmt.Errorf("decode screenshot: %w", err)
	}
	return store.SavePNG(prefix, data)
}
