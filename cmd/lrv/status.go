package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/matsen/litreview/internal/ops"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show record counts and the next operations",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	m := mustOpenManager()
	defer closeManager(m)

	report, err := ops.Status(m)
	exitOnError(err)

	if !humanOutput {
		return outputJSON(report)
	}
	outputHuman("%d records\n", report.Total)
	if report.Total > 0 {
		outputHuman("  %s\n", formatCounts(report.Counts))
	}
	switch {
	case len(report.Next) == 0:
		outputHuman("Nothing to do\n")
	default:
		outputHuman("Next: lrv %s\n", strings.Join(report.Next, ", lrv "))
	}
	if report.Blocked {
		outputHuman("Automated operations wait for the manual ones\n")
	}
	return nil
}
