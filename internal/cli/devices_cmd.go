package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/openskills/skillbridge/internal/devices"
	"github.com/openskills/skillbridge/internal/model"
	"github.com/openskills/skillbridge/internal/ui"
)

// platformNames joins the supported platform identifiers for help text.
func platformNames() string {
	all := model.AllPlatforms()
	names := make([]string, len(all))
	for i, p := range all {
		names[i] = string(p)
	}
	return strings.Join(names, " or ")
}

func devicesCommand() *cli.Command {
	return &cli.Command{
		Name:  "devices",
		Usage: "List connected devices",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "platform",
				Aliases: []string{"p"},
				Value:   "android",
				Usage:   "Platform to query: " + platformNames(),
			},
			&cli.StringFlag{
				Name:  "adb-binary",
				Usage: "Path to the adb binary",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Emit devices as JSON",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			platform, err := model.ParsePlatform(cmd.String("platform"))
			if err != nil {
				return err
			}

			devs, err := devices.List(ctx, platform, cmd.String("adb-binary"))
			if err != nil {
				return err
			}

			if cmd.Bool("json") {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(devs)
			}

			if len(devs) == 0 {
				fmt.Println(ui.StatusWarning(fmt.Sprintf("no %s devices connected", platform)))
				return nil
			}

			fmt.Println(ui.Label(fmt.Sprintf("%s devices", platform)))
			for _, d := range devs {
				line := fmt.Sprintf("  %s  %s", d.Label(), ui.DeviceState(d.State))
				fmt.Println(line)
				for _, h := range d.Hostnames {
					fmt.Println(ui.Dim("    " + h))
				}
			}
			return nil
		},
	}
}
