package main

import (
	"github.com/spf13/cobra"

	"github.com/matsen/litreview/internal/ops"
)

func init() {
	rootCmd.AddCommand(formatCmd)
}

var formatCmd = &cobra.Command{
	Use:   "format",
	Short: "Rewrite the records file in canonical form",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m := mustOpenManager()
		defer closeManager(m)

		res, err := ops.Format(cmd.Context(), m)
		exitOnError(err)
		printResult(res)
		return nil
	},
}
