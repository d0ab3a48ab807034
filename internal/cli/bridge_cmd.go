package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/openskills/skillbridge/internal/adb"
	"github.com/openskills/skillbridge/internal/bridge"
	"github.com/openskills/skillbridge/internal/devices"
)

func bridgeCommand() *cli.Command {
	return &cli.Command{
		Name:  "bridge",
		Usage: "Serve the Android JSON-RPC bridge on localhost",
		Description: `Start a newline-delimited JSON-RPC server that drives a
   connected Android device through adb and UiAutomator. The server
   only accepts loopback connections and prints a readiness line once
   it is listening.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "serial",
				Aliases: []string{"s"},
				Usage:   "Device serial (auto-selected when one device is attached)",
			},
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen address",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Listen port",
			},
			&cli.StringFlag{
				Name:  "adb-binary",
				Usage: "Path to the adb binary",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			host := cfg.Bridge.Host
			if flag := cmd.String("host"); flag != "" {
				host = flag
			}
			port := cfg.Bridge.Port
			if cmd.IsSet("port") {
				port = cmd.Int("port")
			}
			adbOverride := cfg.Bridge.ADBBinary
			if flag := cmd.String("adb-binary"); flag != "" {
				adbOverride = flag
			}

			binary, err := adb.Resolve(adbOverride)
			if err != nil {
				return err
			}

			devs, err := adb.Devices(ctx, binary)
			if err != nil {
				return err
			}
			device, err := devices.Select(devs, cmd.String("serial"))
			if err != nil {
				return fmt.Errorf("select device: %w", err)
			}

			runner := adb.NewRunner(binary, device.Serial)
			state, err := runner.State(ctx)
			if err != nil {
				return err
			}
			if state != "device" {
				return fmt.Errorf("device %s is not ready (state %s)", device.Serial, state)
			}

			srv := bridge.NewServer(host, port, bridge.NewAndroidBridge(runner))
			return srv.ListenAndServe(ctx)
		},
	}
}
