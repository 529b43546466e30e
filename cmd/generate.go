package cmd

import (
	"context"
	"errors"
	"os"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/matchmaker/internal/generator"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate synthetic employer and employee profiles with ground-truth scores",
	PreRun: func(cmd *cobra.Command, _ []string) {
		bindFlags(cmd, map[string]string{
			"employers": "generate.employers",
			"employees": "generate.employees",
			"seed":      "generate.seed",
		})
	},
	Run: func(cmd *cobra.Command, _ []string) {
		generate(cmd)
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().Int("employers", generator.DefaultEmployers, "number of employer profiles")
	generateCmd.Flags().Int("employees", generator.DefaultEmployees, "number of employee profiles")
	generateCmd.Flags().Uint64("seed", 0, "random seed; 0 picks one from the clock")
	generateCmd.Flags().BoolP("yes", "y", false, "overwrite existing files without asking")
}

func generate(cmd *cobra.Command) {
	ctx := context.Background()
	logger, config := setup("generate")

	employers, employees, reviews := generator.Paths(config.DataDir)

	if !flagSet(cmd, "yes") && anyExists(employers, employees, reviews) {
		confirm := promptui.Prompt{
			Label:     "Overwrite existing data in " + config.DataDir,
			IsConfirm: true,
		}
		if _, err := confirm.Run(); err != nil {
			if errors.Is(err, promptui.ErrAbort) {
				logger.Info("exiting", zap.String("reason", "got no from prompt"))
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}

	result, err := generator.Run(ctx, generator.Options{
		Employers: config.Generate.Employers,
		Employees: config.Generate.Employees,
		OutputDir: config.DataDir,
		Seed:      config.Generate.Seed,
	}, logger)
	if err != nil {
		logger.Fatal("generating profiles", zap.Error(err))
	}

	logger.Info("generation finished",
		zap.Int("employers", result.Employers),
		zap.Int("employees", result.Employees),
		zap.Int("pairs", result.Pairs),
	)
}

func anyExists(paths ...string) bool {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return true
		}
	}
	return false
}

func flagSet(cmd *cobra.Command, name string) bool {
	flag := cmd.Flag(name)
	return flag != nil && flag.Value.String() == "true"
}
