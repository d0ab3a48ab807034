package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/openskills/skillbridge/internal/parser/skills"
	"github.com/openskills/skillbridge/internal/progress"
	"github.com/openskills/skillbridge/internal/ui"
	"github.com/openskills/skillbridge/internal/util"
	"github.com/openskills/skillbridge/internal/validation"
)

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Check every skill in the corpus for structural problems",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Corpus root directory (defaults to the configured root)",
			},
			&cli.BoolFlag{
				Name:  "strict",
				Usage: "Treat warnings as errors",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			root := cfg.CorpusRoot(cwd)
			if flag := cmd.String("root"); flag != "" {
				root = util.ExpandPath(flag, cwd)
			}

			dirs, err := skills.ListSkillDirectories(root)
			if err != nil {
				return err
			}
			if len(dirs) == 0 {
				fmt.Println(ui.StatusSkipped("no skills found under " + root))
				return nil
			}

			bar := progress.Simple(int64(len(dirs)), "Validating")
			result, err := validation.ValidateCorpus(root, func(dir string) {
				bar.Describe("Validating " + filepath.Base(dir))
				_ = bar.Add(1)
			})
			_ = bar.Finish()
			// Findings start on a clean line once the bar is gone.
			_ = bar.Clear()
			if err != nil {
				return err
			}

			for _, warning := range result.Warnings {
				fmt.Println(ui.StatusWarning(warning))
			}
			for _, vErr := range result.Errors {
				fmt.Println(ui.StatusError(vErr.Error()))
			}

			fmt.Println(result.Summary())

			if !result.Valid() {
				return fmt.Errorf("validation failed")
			}
			if cmd.Bool("strict") && len(result.Warnings) > 0 {
				return fmt.Errorf("validation failed (strict mode, %d warnings)", len(result.Warnings))
			}
			fmt.Println(ui.StatusSuccess("corpus is valid"))
			return nil
		},
	}
}
