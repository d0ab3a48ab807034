package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/openskills/skillbridge/internal/registry"
	"github.com/openskills/skillbridge/internal/ui"
	"github.com/openskills/skillbridge/internal/util"
)

func registryCommand() *cli.Command {
	rootFlag := &cli.StringFlag{
		Name:    "root",
		Aliases: []string{"r"},
		Usage:   "Corpus root directory (defaults to the configured root)",
	}

	return &cli.Command{
		Name:  "registry",
		Usage: "Build and inspect the skill registry",
		Commands: []*cli.Command{
			{
				Name:  "build",
				Usage: "Scan the corpus and write the registry file",
				Flags: []cli.Flag{
					rootFlag,
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Registry file path (defaults to <root>/skills.json)",
					},
				},
				Action: func(_ context.Context, cmd *cli.Command) error {
					root, out, err := registryPaths(cmd)
					if err != nil {
						return err
					}

					doc, err := registry.Build(root)
					if err != nil {
						return err
					}
					if err := doc.Write(out); err != nil {
						return err
					}

					fmt.Println(ui.StatusSuccess(fmt.Sprintf("wrote %s (%d skills)", out, doc.SkillsCount)))
					return nil
				},
			},
			{
				Name:  "show",
				Usage: "Render the registry without writing it",
				Flags: []cli.Flag{
					rootFlag,
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: json, yaml, or markdown",
					},
				},
				Action: func(_ context.Context, cmd *cli.Command) error {
					root, _, err := registryPaths(cmd)
					if err != nil {
						return err
					}

					format, err := resolveFormat(cmd)
					if err != nil {
						return err
					}

					doc, err := registry.Build(root)
					if err != nil {
						return err
					}
					return doc.Render(os.Stdout, format)
				},
			},
			{
				Name:  "export",
				Usage: "Render a previously built registry file",
				Flags: []cli.Flag{
					rootFlag,
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: json, yaml, or markdown",
					},
				},
				Action: func(_ context.Context, cmd *cli.Command) error {
					_, out, err := registryPaths(cmd)
					if err != nil {
						return err
					}

					format, err := resolveFormat(cmd)
					if err != nil {
						return err
					}

					doc, err := registry.Load(out)
					if err != nil {
						return err
					}
					return doc.Render(os.Stdout, format)
				},
			},
		},
	}
}

// registryPaths resolves the corpus root and registry file from flags
// and configuration.
func registryPaths(cmd *cli.Command) (root, out string, err error) {
	cfg, err := loadConfig()
	if err != nil {
		return "", "", err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", "", err
	}

	root = cfg.CorpusRoot(cwd)
	if flag := cmd.String("root"); flag != "" {
		root = util.ExpandPath(flag, cwd)
	}

	out = filepath.Join(root, cfg.Corpus.RegistryFile)
	if flag := cmd.String("output"); flag != "" {
		out = util.ExpandPath(flag, cwd)
	}

	return root, out, nil
}

func resolveFormat(cmd *cli.Command) (registry.Format, error) {
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}

	raw := cfg.Output.Format
	if flag := cmd.String("format"); flag != "" {
		raw = flag
	}
	return registry.ParseFormat(raw)
}
