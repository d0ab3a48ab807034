package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/openskills/skillbridge/internal/config"
	"github.com/openskills/skillbridge/internal/ui"
)

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage skillbridge configuration",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the effective configuration",
				Action: func(_ context.Context, _ *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					data, err := yaml.Marshal(cfg)
					if err != nil {
						return err
					}
					fmt.Println(ui.Dim("# " + configFilePath()))
					fmt.Print(string(data))
					return nil
				},
			},
			{
				Name:  "init",
				Usage: "Write a config file with current defaults",
				Action: func(_ context.Context, _ *cli.Command) error {
					if config.Exists() {
						return fmt.Errorf("config file already exists at %s", config.FilePath())
					}
					cfg := config.Default()
					if err := cfg.Save(); err != nil {
						return err
					}
					fmt.Println(ui.StatusSuccess("wrote " + config.FilePath()))
					return nil
				},
			},
			{
				Name:  "path",
				Usage: "Print the config file path",
				Action: func(_ context.Context, _ *cli.Command) error {
					fmt.Fprintln(os.Stdout, configFilePath())
					return nil
				},
			},
		},
	}
}
