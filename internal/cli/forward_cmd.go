package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/openskills/skillbridge/internal/devices"
	"github.com/openskills/skillbridge/internal/forward"
)

func forwardCommand() *cli.Command {
	return &cli.Command{
		Name:  "forward",
		Usage: "Forward a localhost port to the RPC server on an iOS device",
		Description: `Bind a loopback TCP port and forward each connection to the
   device's RPC server over its CoreDevice tunnel hostname. The local
   port and the device port are the same.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "udid",
				Usage: "Device UDID (auto-selected when one device is connected)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to bind locally and dial on the device",
			},
			&cli.DurationFlag{
				Name:  "connect-timeout",
				Usage: "Remote connect timeout",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			udid := cmd.String("udid")
			if udid == "" {
				devs, err := devices.ListIOS(ctx)
				if err != nil {
					return err
				}
				device, err := devices.Select(devs, "")
				if err != nil {
					return fmt.Errorf("select device: %w", err)
				}
				udid = device.Serial
			}

			port := cfg.Forward.Port
			if cmd.IsSet("port") {
				port = cmd.Int("port")
			}
			timeout := cfg.Forward.ConnectTimeout
			if flag := cmd.Duration("connect-timeout"); flag > 0 {
				timeout = flag
			}

			fmt.Printf("Forwarding 127.0.0.1:%d -> <device>:%d (udid=%s)\n", port, port, udid)

			fwd := forward.New(forward.Options{
				UDID:           udid,
				Port:           port,
				ConnectTimeout: timeout,
			})
			return fwd.ListenAndServe(ctx)
		},
	}
}
