package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/matsen/litreview/internal/endpoints/builtin"
	"github.com/matsen/litreview/internal/ops"
)

var (
	initType  string
	initTitle string
	initForce bool
)

func init() {
	initCmd.Flags().StringVar(&initType, "type", ops.DefaultReviewType, "Review type that fills the default endpoints")
	initCmd.Flags().StringVar(&initTitle, "title", "", "Project title")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Initialize a directory that already contains files")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Create a review repository",
	Long: `Create a review repository in dir (default: current directory).

Writes settings.json from the review type, the empty records file and
the search directory, then makes the first commit.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	dir, err := os.Getwd()
	if err != nil {
		return err
	}
	if len(args) == 1 {
		dir = args[0]
	}
	cfg := mustGlobalConfig()

	res, err := ops.Init(context.Background(), dir, ops.InitOptions{
		ReviewType: initType,
		Title:      initTitle,
		Registry:   builtin.Registry(),
		Identity:   identity(cfg),
		Force:      initForce,
	})
	exitOnError(err)

	if humanOutput {
		outputHuman("Initialized %s review in %s\n", initType, dir)
		return nil
	}
	return outputJSON(res)
}
