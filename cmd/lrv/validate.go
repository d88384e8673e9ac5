package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/matsen/litreview/internal/ops"
)

func init() {
	rootCmd.AddCommand(validateCmd)
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the dataset invariants",
	Long: `Check the records file: unique IDs, valid states, required fields,
PDF files and colrev IDs. Exits with code 3 when violations are found.`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

// ValidateResult is the JSON output of validate.
type ValidateResult struct {
	Valid      bool            `json:"valid"`
	Violations []ops.Violation `json:"violations"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	m := mustOpenManager()
	violations, err := ops.Validate(m)
	if err != nil {
		closeManager(m)
		exitOnError(err)
	}
	closeManager(m)

	if violations == nil {
		violations = []ops.Violation{}
	}
	result := ValidateResult{Valid: len(violations) == 0, Violations: violations}
	if humanOutput {
		if result.Valid {
			outputHuman("Dataset is valid\n")
		}
		for _, v := range violations {
			if v.ID != "" {
				outputHuman("%s [%s]: %s\n", v.ID, v.Rule, v.Detail)
			} else {
				outputHuman("[%s]: %s\n", v.Rule, v.Detail)
			}
		}
	} else {
		outputJSON(result)
	}
	if !result.Valid {
		os.Exit(ExitDataError)
	}
	return nil
}
